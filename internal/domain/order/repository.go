package order

import "context"

// Repository is the order store as seen by checkout. Get returns ErrNotFound
// (possibly wrapped) when no single row matches.
type Repository interface {
	Get(ctx context.Context, id string) (*Order, error)
	UpdatePayment(ctx context.Context, id string, update PaymentUpdate) error
}

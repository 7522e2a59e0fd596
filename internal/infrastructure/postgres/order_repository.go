// Package postgres talks to the order store's database directly through pgx,
// for deployments that bypass the REST gateway.
package postgres

import (
	"context"
	"errors"
	"fmt"

	domain "github.com/Zhima-Mochi/checkout-payment/internal/domain/order"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Querier is the subset of *pgxpool.Pool the repository needs.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

var _ Querier = (*pgxpool.Pool)(nil)

const (
	selectOrderSQL = `SELECT o.id::text,
       COALESCE(o.order_number::text, ''),
       COALESCE(o.restaurant_id::text, ''),
       COALESCE(o.user_id::text, ''),
       COALESCE(o.status::text, ''),
       COALESCE(o.payment_intent_id, ''),
       COALESCE(o.payment_status, ''),
       COALESCE(r.name, '')
  FROM orders o
  LEFT JOIN restaurants r ON r.id = o.restaurant_id
 WHERE o.id = $1`

	updatePaymentSQL = `UPDATE orders
   SET payment_intent_id = $2, payment_status = $3, updated_at = $4
 WHERE id = $1`
)

type OrderRepository struct {
	db Querier
}

func NewOrderRepository(db Querier) *OrderRepository {
	return &OrderRepository{db: db}
}

// Connect opens a pool against dsn and verifies it with a ping.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}
	return pool, nil
}

func (r *OrderRepository) Get(ctx context.Context, id string) (*domain.Order, error) {
	var (
		o      domain.Order
		status string
	)
	err := r.db.QueryRow(ctx, selectOrderSQL, id).Scan(
		&o.ID,
		&o.OrderNumber,
		&o.Restaurant.ID,
		&o.UserID,
		&status,
		&o.PaymentIntentID,
		&o.PaymentStatus,
		&o.Restaurant.Name,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("postgres: order %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: get order %s: %w", id, err)
	}
	o.Status = domain.Status(status)
	return &o, nil
}

func (r *OrderRepository) UpdatePayment(ctx context.Context, id string, update domain.PaymentUpdate) error {
	tag, err := r.db.Exec(ctx, updatePaymentSQL, id, update.PaymentIntentID, update.PaymentStatus, update.UpdatedAt.UTC())
	if err != nil {
		return fmt.Errorf("postgres: update order %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres: order %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

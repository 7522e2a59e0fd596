package application

import "context"

// UseCase is the shape every application workflow exposes to its transports.
// Handlers depend on this rather than on concrete use case types.
type UseCase[C any, R any] interface {
	Execute(ctx context.Context, cmd C) (R, error)
}

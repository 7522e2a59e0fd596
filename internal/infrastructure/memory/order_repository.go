package memory

import (
	"context"
	"fmt"
	"sync"

	domain "github.com/Zhima-Mochi/checkout-payment/internal/domain/order"
)

// OrderRepository is an in-process order store for local runs and tests.
type OrderRepository struct {
	mu     sync.RWMutex
	orders map[string]*domain.Order
}

func NewOrderRepository(seed ...*domain.Order) *OrderRepository {
	r := &OrderRepository{
		orders: make(map[string]*domain.Order, len(seed)),
	}
	for _, o := range seed {
		if o != nil && o.ID != "" {
			r.orders[o.ID] = o.Clone()
		}
	}
	return r
}

// Put inserts or replaces an order.
func (r *OrderRepository) Put(ctx context.Context, order *domain.Order) error {
	_ = ctx
	if order == nil || order.ID == "" {
		return fmt.Errorf("order repository: id is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.orders[order.ID] = order.Clone()
	return nil
}

func (r *OrderRepository) Get(ctx context.Context, id string) (*domain.Order, error) {
	_ = ctx

	r.mu.RLock()
	defer r.mu.RUnlock()

	order, ok := r.orders[id]
	if !ok {
		return nil, domain.ErrNotFound
	}

	return order.Clone(), nil
}

func (r *OrderRepository) UpdatePayment(ctx context.Context, id string, update domain.PaymentUpdate) error {
	_ = ctx
	if id == "" {
		return fmt.Errorf("order repository: id is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	order, exists := r.orders[id]
	if !exists {
		return domain.ErrNotFound
	}

	order.Apply(update)
	return nil
}

package order

import (
	"errors"
	"time"
)

var ErrNotFound = errors.New("order: not found")

// Status is the fulfilment status owned by the order store. This service only reads it.
type Status string

// Restaurant is the projection of the related restaurant row joined at lookup.
type Restaurant struct {
	ID   string
	Name string
}

type Order struct {
	ID              string
	OrderNumber     string
	Restaurant      Restaurant
	UserID          string
	Status          Status
	PaymentIntentID string
	PaymentStatus   string
	UpdatedAt       time.Time
}

// RestaurantName returns the display name, or fallback when the join carried none.
func (o *Order) RestaurantName(fallback string) string {
	if o == nil || o.Restaurant.Name == "" {
		return fallback
	}
	return o.Restaurant.Name
}

func (o *Order) Clone() *Order {
	if o == nil {
		return nil
	}
	clone := *o
	return &clone
}

// PaymentUpdate is the only mutation this service applies to an order.
type PaymentUpdate struct {
	PaymentIntentID string
	PaymentStatus   string
	UpdatedAt       time.Time
}

// Apply copies the payment fields onto the order.
func (o *Order) Apply(u PaymentUpdate) {
	o.PaymentIntentID = u.PaymentIntentID
	o.PaymentStatus = u.PaymentStatus
	o.UpdatedAt = u.UpdatedAt
}

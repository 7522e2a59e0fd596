package order

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRestaurantNameFallsBack(t *testing.T) {
	o := &Order{ID: "o1"}
	assert.Equal(t, "Restaurant", o.RestaurantName("Restaurant"))

	o.Restaurant.Name = "Pizza Place"
	assert.Equal(t, "Pizza Place", o.RestaurantName("Restaurant"))

	var missing *Order
	assert.Equal(t, "Restaurant", missing.RestaurantName("Restaurant"))
}

func TestApplyOnlyTouchesPaymentFields(t *testing.T) {
	at := time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)
	o := &Order{ID: "o1", OrderNumber: "A100", Status: "pending"}

	o.Apply(PaymentUpdate{PaymentIntentID: "pi_1", PaymentStatus: "succeeded", UpdatedAt: at})

	assert.Equal(t, "pi_1", o.PaymentIntentID)
	assert.Equal(t, "succeeded", o.PaymentStatus)
	assert.Equal(t, at, o.UpdatedAt)
	assert.Equal(t, Status("pending"), o.Status)
	assert.Equal(t, "A100", o.OrderNumber)
}

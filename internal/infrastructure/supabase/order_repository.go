// Package supabase reads and updates orders through the Supabase REST (PostgREST) API.
package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	domain "github.com/Zhima-Mochi/checkout-payment/internal/domain/order"
	"github.com/supabase-community/postgrest-go"
)

const (
	restPath      = "/rest/v1"
	schema        = "public"
	ordersTable   = "orders"
	orderColumns  = "*, restaurants(name)"
	codeNoRows    = "PGRST116"
	isoTimeLayout = "2006-01-02T15:04:05.000Z07:00"
)

// OrderRepository implements order.Repository against the "orders" table.
type OrderRepository struct {
	client *postgrest.Client
}

// NewOrderRepository builds a PostgREST client for the project at baseURL,
// authenticating with the given API key.
func NewOrderRepository(baseURL, apiKey string) (*OrderRepository, error) {
	if baseURL == "" || apiKey == "" {
		return nil, errors.New("supabase: base url and api key are required")
	}
	client := postgrest.NewClient(strings.TrimRight(baseURL, "/")+restPath, schema, map[string]string{
		"apikey":        apiKey,
		"Authorization": "Bearer " + apiKey,
	})
	if client.ClientError != nil {
		return nil, fmt.Errorf("supabase: build client: %w", client.ClientError)
	}
	return &OrderRepository{client: client}, nil
}

type restaurantRow struct {
	Name string `json:"name"`
}

type orderRow struct {
	ID              flexString     `json:"id"`
	OrderNumber     flexString     `json:"order_number"`
	RestaurantID    flexString     `json:"restaurant_id"`
	UserID          flexString     `json:"user_id"`
	Status          flexString     `json:"status"`
	PaymentIntentID flexString     `json:"payment_intent_id"`
	PaymentStatus   flexString     `json:"payment_status"`
	Restaurants     *restaurantRow `json:"restaurants"`
}

func (row orderRow) toDomain() *domain.Order {
	o := &domain.Order{
		ID:              string(row.ID),
		OrderNumber:     string(row.OrderNumber),
		UserID:          string(row.UserID),
		Status:          domain.Status(row.Status),
		PaymentIntentID: string(row.PaymentIntentID),
		PaymentStatus:   string(row.PaymentStatus),
		Restaurant:      domain.Restaurant{ID: string(row.RestaurantID)},
	}
	if row.Restaurants != nil {
		o.Restaurant.Name = row.Restaurants.Name
	}
	return o
}

// Get fetches exactly one order with its restaurant name. The postgrest
// client has no context support, so ctx is not propagated.
func (r *OrderRepository) Get(ctx context.Context, id string) (*domain.Order, error) {
	_ = ctx
	body, _, err := r.client.From(ordersTable).
		Select(orderColumns, "", false).
		Eq("id", id).
		Single().
		Execute()
	if err != nil {
		if strings.Contains(err.Error(), codeNoRows) {
			return nil, fmt.Errorf("supabase: order %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("supabase: get order %s: %w", id, err)
	}

	var row orderRow
	if err := json.Unmarshal(body, &row); err != nil {
		return nil, fmt.Errorf("supabase: decode order %s: %w", id, err)
	}
	if row.ID == "" {
		return nil, fmt.Errorf("supabase: order %s: %w", id, domain.ErrNotFound)
	}
	return row.toDomain(), nil
}

func (r *OrderRepository) UpdatePayment(ctx context.Context, id string, update domain.PaymentUpdate) error {
	_ = ctx
	values := map[string]any{
		"payment_intent_id": update.PaymentIntentID,
		"payment_status":    update.PaymentStatus,
		"updated_at":        update.UpdatedAt.UTC().Format(isoTimeLayout),
	}
	if _, _, err := r.client.From(ordersTable).
		Update(values, "minimal", "").
		Eq("id", id).
		Execute(); err != nil {
		return fmt.Errorf("supabase: update order %s: %w", id, err)
	}
	return nil
}

// flexString accepts a JSON string, number, or null. Order numbers and
// foreign keys are text in some deployments and integers in others.
type flexString string

func (s *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*s = ""
		return nil
	}
	if b[0] == '"' {
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*s = flexString(v)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*s = flexString(n.String())
	return nil
}

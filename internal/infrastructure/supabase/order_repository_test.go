package supabase

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	domain "github.com/Zhima-Mochi/checkout-payment/internal/domain/order"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePostgREST struct {
	mu      sync.Mutex
	rows    map[string]string
	patches []map[string]any
	apiKeys []string
}

func (f *fakePostgREST) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.apiKeys = append(f.apiKeys, r.Header.Get("apikey"))
	if !strings.HasSuffix(r.URL.Path, "/rest/v1/orders") {
		http.NotFound(w, r)
		return
	}
	id := strings.TrimPrefix(r.URL.Query().Get("id"), "eq.")

	switch r.Method {
	case http.MethodGet:
		row, ok := f.rows[id]
		if !ok {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusNotAcceptable)
			_, _ = io.WriteString(w, `{"code":"PGRST116","details":"The result contains 0 rows","hint":null,"message":"JSON object requested, multiple (or no) rows returned"}`)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, row)
	case http.MethodPatch:
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		body["id"] = id
		f.patches = append(f.patches, body)
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func newRepo(t *testing.T, fake *fakePostgREST) *OrderRepository {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	repo, err := NewOrderRepository(srv.URL+"/", "anon-key")
	require.NoError(t, err)
	return repo
}

func TestGetMapsJoinedRow(t *testing.T) {
	fake := &fakePostgREST{rows: map[string]string{
		"o1": `{"id":"o1","order_number":"A100","restaurant_id":"r1","user_id":"u1","status":"pending","payment_intent_id":null,"restaurants":{"name":"Pizza Place"}}`,
		"o2": `{"id":"o2","order_number":4521,"restaurant_id":7,"user_id":"u2","status":"confirmed","restaurants":null}`,
	}}
	repo := newRepo(t, fake)

	got, err := repo.Get(context.Background(), "o1")
	require.NoError(t, err)
	assert.Equal(t, "o1", got.ID)
	assert.Equal(t, "A100", got.OrderNumber)
	assert.Equal(t, domain.Restaurant{ID: "r1", Name: "Pizza Place"}, got.Restaurant)
	assert.Equal(t, "u1", got.UserID)
	assert.Equal(t, domain.Status("pending"), got.Status)
	assert.Empty(t, got.PaymentIntentID)

	got, err = repo.Get(context.Background(), "o2")
	require.NoError(t, err)
	assert.Equal(t, "4521", got.OrderNumber)
	assert.Equal(t, "7", got.Restaurant.ID)
	assert.Empty(t, got.Restaurant.Name)

	assert.Contains(t, fake.apiKeys, "anon-key")
}

func TestGetMissingOrderIsNotFound(t *testing.T) {
	repo := newRepo(t, &fakePostgREST{rows: map[string]string{}})

	_, err := repo.Get(context.Background(), "missing")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestUpdatePaymentSendsPaymentFields(t *testing.T) {
	fake := &fakePostgREST{}
	repo := newRepo(t, fake)

	at := time.Date(2026, 10, 18, 14, 5, 6, 789_000_000, time.UTC)
	err := repo.UpdatePayment(context.Background(), "o1", domain.PaymentUpdate{
		PaymentIntentID: "pi_1",
		PaymentStatus:   "succeeded",
		UpdatedAt:       at,
	})
	require.NoError(t, err)

	require.Len(t, fake.patches, 1)
	assert.Equal(t, map[string]any{
		"id":                "o1",
		"payment_intent_id": "pi_1",
		"payment_status":    "succeeded",
		"updated_at":        "2026-10-18T14:05:06.789Z",
	}, fake.patches[0])
}

func TestNewOrderRepositoryRequiresConfig(t *testing.T) {
	_, err := NewOrderRepository("", "key")
	assert.Error(t, err)
	_, err = NewOrderRepository("http://localhost", "")
	assert.Error(t, err)
}

package payment

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Zhima-Mochi/checkout-payment/internal/application"
	domorder "github.com/Zhima-Mochi/checkout-payment/internal/domain/order"
	dompay "github.com/Zhima-Mochi/checkout-payment/internal/domain/payment"
	"github.com/Zhima-Mochi/checkout-payment/internal/infrastructure/memory"
	obsprovider "github.com/Zhima-Mochi/checkout-payment/internal/infrastructure/observability"
	"github.com/Zhima-Mochi/checkout-payment/internal/observability"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ application.UseCase[ProcessPaymentInput, *ProcessPaymentResult] = (*ProcessPaymentUseCase)(nil)

var fixedNow = time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)

type fakeProcessor struct {
	mu      sync.Mutex
	charges []dompay.Charge
	intent  *dompay.Intent
	err     error
}

func (f *fakeProcessor) CreateAndConfirm(_ context.Context, charge dompay.Charge) (*dompay.Intent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.charges = append(f.charges, charge)
	if f.err != nil {
		return nil, f.err
	}
	if f.intent != nil {
		return f.intent, nil
	}
	return &dompay.Intent{
		ID:           "pi_1",
		Status:       "succeeded",
		ClientSecret: "secret",
		Amount:       charge.Amount,
		Currency:     charge.Currency,
	}, nil
}

// failingUpdates wraps a repository and rejects every payment update.
type failingUpdates struct {
	domorder.Repository
	gets int
}

func (f *failingUpdates) Get(ctx context.Context, id string) (*domorder.Order, error) {
	f.gets++
	return f.Repository.Get(ctx, id)
}

func (f *failingUpdates) UpdatePayment(context.Context, string, domorder.PaymentUpdate) error {
	return errors.New("store unavailable")
}

type countingCounter struct {
	mu    sync.Mutex
	calls [][]observability.Label
}

func (c *countingCounter) Add(_ float64, labels ...observability.Label) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, labels)
}

func (c *countingCounter) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.calls)
}

func pizzaOrder() *domorder.Order {
	return &domorder.Order{
		ID:          "o1",
		OrderNumber: "A100",
		Restaurant:  domorder.Restaurant{ID: "r1", Name: "Pizza Place"},
		UserID:      "u1",
		Status:      "pending",
	}
}

func newUseCase(repo domorder.Repository, proc dompay.Processor, tel observability.Observability) *ProcessPaymentUseCase {
	return NewProcessPaymentUseCase(repo, proc, tel, Settings{
		StoreBaseURL: "https://proj.supabase.co/",
		Now:          func() time.Time { return fixedNow },
	})
}

func validInput() ProcessPaymentInput {
	return ProcessPaymentInput{
		OrderID:         "o1",
		Amount:          decimal.RequireFromString("25.00"),
		PaymentMethodID: "pm_1",
	}
}

func TestExecuteChargesAndReconciles(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewOrderRepository(pizzaOrder())
	proc := &fakeProcessor{}

	res, err := newUseCase(repo, proc, nil).Execute(ctx, validInput())
	require.NoError(t, err)
	require.NoError(t, res.ReconcileErr)

	assert.Equal(t, &dompay.Intent{ID: "pi_1", Status: "succeeded", ClientSecret: "secret", Amount: 2500, Currency: "usd"}, res.Intent)
	assert.Equal(t, "o1", res.Order.ID)
	assert.Equal(t, "A100", res.Order.OrderNumber)
	assert.Equal(t, domorder.Status("pending"), res.Order.Status)

	require.Len(t, proc.charges, 1)
	assert.Equal(t, dompay.Charge{
		Amount:          2500,
		Currency:        "usd",
		PaymentMethodID: "pm_1",
		Description:     "Food order from Pizza Place - Order #A100",
		Metadata: map[string]string{
			"orderId":      "o1",
			"orderNumber":  "A100",
			"restaurantId": "r1",
			"userId":       "u1",
		},
		ReturnURL: "https://proj.supabase.co/order-success?order_id=o1",
	}, proc.charges[0])

	stored, err := repo.Get(ctx, "o1")
	require.NoError(t, err)
	assert.Equal(t, "pi_1", stored.PaymentIntentID)
	assert.Equal(t, "succeeded", stored.PaymentStatus)
	assert.Equal(t, fixedNow, stored.UpdatedAt)
	assert.Equal(t, domorder.Status("pending"), stored.Status)
}

func TestExecuteMirrorsProcessorStatus(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewOrderRepository(pizzaOrder())
	proc := &fakeProcessor{intent: &dompay.Intent{ID: "pi_3ds", Status: "requires_action", ClientSecret: "s", Amount: 999, Currency: "usd"}}

	in := validInput()
	in.Amount = decimal.RequireFromString("9.99")
	res, err := newUseCase(repo, proc, nil).Execute(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, dompay.Status("requires_action"), res.Intent.Status)
	assert.Equal(t, int64(999), proc.charges[0].Amount)

	stored, _ := repo.Get(ctx, "o1")
	assert.Equal(t, "requires_action", stored.PaymentStatus)
}

func TestExecuteAmountRounding(t *testing.T) {
	proc := &fakeProcessor{}
	in := validInput()
	in.Amount = decimal.RequireFromString("12.345")

	_, err := newUseCase(memory.NewOrderRepository(pizzaOrder()), proc, nil).Execute(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, int64(1235), proc.charges[0].Amount)
}

func TestExecuteCurrencyAndCustomerPassThrough(t *testing.T) {
	proc := &fakeProcessor{}
	in := validInput()
	in.Currency = "eur"
	in.CustomerID = "cus_1"

	res, err := newUseCase(memory.NewOrderRepository(pizzaOrder()), proc, nil).Execute(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, "eur", proc.charges[0].Currency)
	assert.Equal(t, "cus_1", proc.charges[0].CustomerID)
	assert.Equal(t, "eur", res.Intent.Currency)
}

func TestExecuteRestaurantFallback(t *testing.T) {
	ord := pizzaOrder()
	ord.Restaurant.Name = ""
	proc := &fakeProcessor{}

	_, err := newUseCase(memory.NewOrderRepository(ord), proc, nil).Execute(context.Background(), validInput())
	require.NoError(t, err)
	assert.Equal(t, "Food order from Restaurant - Order #A100", proc.charges[0].Description)
}

func TestExecuteValidation(t *testing.T) {
	cases := map[string]func(*ProcessPaymentInput){
		"missing order id":       func(in *ProcessPaymentInput) { in.OrderID = "" },
		"zero amount":            func(in *ProcessPaymentInput) { in.Amount = decimal.Zero },
		"missing payment method": func(in *ProcessPaymentInput) { in.PaymentMethodID = "" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			repo := &failingUpdates{Repository: memory.NewOrderRepository(pizzaOrder())}
			proc := &fakeProcessor{}
			in := validInput()
			mutate(&in)

			res, err := newUseCase(repo, proc, nil).Execute(context.Background(), in)
			require.Error(t, err)
			assert.Nil(t, res)
			assert.True(t, IsKind(err, KindValidation))
			assert.Equal(t, "Missing required fields: orderId, amount, or paymentMethodId", err.Error())
			assert.Zero(t, repo.gets)
			assert.Empty(t, proc.charges)
		})
	}
}

func TestExecuteOrderNotFound(t *testing.T) {
	proc := &fakeProcessor{}
	in := validInput()
	in.OrderID = "missing"

	_, err := newUseCase(memory.NewOrderRepository(pizzaOrder()), proc, nil).Execute(context.Background(), in)
	require.Error(t, err)
	assert.True(t, IsKind(err, KindOrderNotFound))
	assert.Equal(t, "Order not found", err.Error())
	assert.ErrorIs(t, err, domorder.ErrNotFound)
	assert.Empty(t, proc.charges)
}

func TestExecuteProcessorRejection(t *testing.T) {
	repo := memory.NewOrderRepository(pizzaOrder())
	proc := &fakeProcessor{err: &dompay.ProcessorError{Code: "card_declined", Message: "Your card was declined."}}

	_, err := newUseCase(repo, proc, nil).Execute(context.Background(), validInput())
	require.Error(t, err)
	assert.True(t, IsKind(err, KindProcessor))
	assert.Equal(t, "Your card was declined.", err.Error())

	stored, _ := repo.Get(context.Background(), "o1")
	assert.Empty(t, stored.PaymentIntentID)
}

func TestExecuteProcessorErrorWithoutMessageFallsBack(t *testing.T) {
	proc := &fakeProcessor{err: &dompay.ProcessorError{}}

	_, err := newUseCase(memory.NewOrderRepository(pizzaOrder()), proc, nil).Execute(context.Background(), validInput())
	require.Error(t, err)
	assert.Equal(t, FallbackMessage, err.Error())
}

func TestExecuteReconciliationFailureIsNotFatal(t *testing.T) {
	failures := &countingCounter{}
	tel, err := obsprovider.New(nil, nil,
		map[observability.MetricKey]observability.Counter{
			observability.MPaymentReconcileFailures: failures,
		}, nil)
	require.NoError(t, err)
	repo := &failingUpdates{Repository: memory.NewOrderRepository(pizzaOrder())}

	res, err := newUseCase(repo, &fakeProcessor{}, tel).Execute(context.Background(), validInput())
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, "pi_1", res.Intent.ID)
	assert.True(t, IsKind(res.ReconcileErr, KindReconciliation))
	assert.Equal(t, 1, failures.count())
}

func TestExecuteWithoutCollaboratorsIsConfigurationError(t *testing.T) {
	_, err := NewProcessPaymentUseCase(nil, nil, nil, Settings{}).Execute(context.Background(), validInput())
	require.Error(t, err)
	assert.True(t, IsKind(err, KindConfiguration))
	assert.Equal(t, FallbackMessage, err.Error())
}

func TestExecuteRecordsOutcomeMetrics(t *testing.T) {
	requests := &countingCounter{}
	external := &countingCounter{}
	tel, err := obsprovider.New(nil, nil,
		map[observability.MetricKey]observability.Counter{
			observability.MUsecaseRequests:  requests,
			observability.MExternalRequests: external,
		}, nil)
	require.NoError(t, err)

	uc := newUseCase(memory.NewOrderRepository(pizzaOrder()), &fakeProcessor{}, tel)
	_, err = uc.Execute(context.Background(), validInput())
	require.NoError(t, err)

	in := validInput()
	in.OrderID = ""
	_, err = uc.Execute(context.Background(), in)
	require.Error(t, err)

	require.Equal(t, 2, requests.count())
	assert.Contains(t, requests.calls[0], observability.L("outcome", "success"))
	assert.Contains(t, requests.calls[1], observability.L("outcome", "error"))
	// lookup, charge, reconcile on the first call only
	assert.Equal(t, 3, external.count())
}

func TestExecuteRejectsAmountBeyondMinorUnitRange(t *testing.T) {
	repo := &failingUpdates{Repository: memory.NewOrderRepository(pizzaOrder())}
	proc := &fakeProcessor{}
	in := validInput()
	in.Amount = decimal.RequireFromString("184467440737095516.17")

	res, err := newUseCase(repo, proc, nil).Execute(context.Background(), in)
	require.Error(t, err)
	assert.Nil(t, res)
	assert.True(t, IsKind(err, KindValidation))
	assert.ErrorIs(t, err, dompay.ErrAmountOutOfRange)
	assert.Equal(t, "Amount is out of range", err.Error())
	assert.Zero(t, repo.gets)
	assert.Empty(t, proc.charges)
}

// cancellingProcessor cancels the caller's context once the charge succeeds.
type cancellingProcessor struct {
	fakeProcessor
	cancel context.CancelFunc
}

func (p *cancellingProcessor) CreateAndConfirm(ctx context.Context, charge dompay.Charge) (*dompay.Intent, error) {
	intent, err := p.fakeProcessor.CreateAndConfirm(ctx, charge)
	p.cancel()
	return intent, err
}

// ctxCheckingStore fails updates whose context is already done.
type ctxCheckingStore struct {
	domorder.Repository
}

func (s *ctxCheckingStore) UpdatePayment(ctx context.Context, id string, u domorder.PaymentUpdate) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.Repository.UpdatePayment(ctx, id, u)
}

func TestExecuteReconcilesAfterCallerCancels(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	inner := memory.NewOrderRepository(pizzaOrder())
	proc := &cancellingProcessor{cancel: cancel}

	res, err := newUseCase(&ctxCheckingStore{Repository: inner}, proc, nil).Execute(ctx, validInput())
	require.NoError(t, err)
	require.NoError(t, res.ReconcileErr)

	stored, err := inner.Get(context.Background(), "o1")
	require.NoError(t, err)
	assert.Equal(t, "pi_1", stored.PaymentIntentID)
}

package payment

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	domorder "github.com/Zhima-Mochi/checkout-payment/internal/domain/order"
	dompay "github.com/Zhima-Mochi/checkout-payment/internal/domain/payment"
	"github.com/Zhima-Mochi/checkout-payment/internal/observability"
	"github.com/Zhima-Mochi/checkout-payment/internal/observability/logctx"
	"github.com/shopspring/decimal"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	paymentService        = "payment-service"
	useCasePaymentProcess = "payment.process"
	paymentSpanName       = "ProcessPayment"
	spanPrefix            = "UC."

	peerOrderStore       = "order_store"
	peerPaymentProcessor = "payment_processor"
	endpointOrderGet     = "orders.get"
	endpointOrderUpdate  = "orders.update_payment"
	endpointIntentCreate = "payment_intents.create"

	defaultRestaurantName = "Restaurant"
	returnPath            = "/order-success"
)

type ProcessPaymentInput struct {
	OrderID         string
	Amount          decimal.Decimal
	Currency        string
	PaymentMethodID string
	CustomerID      string
}

type ProcessPaymentResult struct {
	Intent *dompay.Intent
	// Order is the record as read before the payment fields were written.
	Order *domorder.Order
	// ReconcileErr is set when the post-charge order update failed. It never
	// turns a successful charge into a failure.
	ReconcileErr error
}

// Settings carries the non-collaborator configuration of the use case.
type Settings struct {
	// StoreBaseURL prefixes the processor's return URL for extra authentication steps.
	StoreBaseURL string
	Now          func() time.Time
}

// ProcessPaymentUseCase runs checkout: validate, locate the order, charge,
// then write the intent back onto the order.
type ProcessPaymentUseCase struct {
	orders    domorder.Repository
	processor dompay.Processor
	settings  Settings
	tel       observability.Observability

	log               observability.Logger
	reqCounter        observability.Counter   // usecase_requests_total{use_case,outcome}
	durHist           observability.Histogram // usecase_duration_seconds{use_case}
	extCounter        observability.Counter   // external_requests_total{peer,endpoint,outcome}
	extHistogram      observability.Histogram // external_request_duration_seconds{peer,endpoint}
	reconcileFailures observability.Counter   // payment_reconciliation_failed_total{reason}
}

func NewProcessPaymentUseCase(
	orders domorder.Repository,
	processor dompay.Processor,
	tel observability.Observability,
	settings Settings,
) *ProcessPaymentUseCase {
	if tel == nil {
		tel = observability.Nop()
	}
	if settings.Now == nil {
		settings.Now = time.Now
	}
	metrics := tel.Metrics()

	return &ProcessPaymentUseCase{
		orders:    orders,
		processor: processor,
		settings:  settings,
		tel:       tel,
		log: tel.Logger().With(
			observability.F("service", paymentService),
		),
		reqCounter:        metrics.Counter(observability.MUsecaseRequests),
		durHist:           metrics.Histogram(observability.MUsecaseDuration),
		extCounter:        metrics.Counter(observability.MExternalRequests),
		extHistogram:      metrics.Histogram(observability.MExternalRequestDuration),
		reconcileFailures: metrics.Counter(observability.MPaymentReconcileFailures),
	}
}

// Execute runs the pipeline. Every returned error is an *Error.
func (uc *ProcessPaymentUseCase) Execute(ctx context.Context, cmd ProcessPaymentInput) (_ *ProcessPaymentResult, err error) {
	logger := logctx.FromOr(ctx, uc.log).With(
		observability.F("use_case", useCasePaymentProcess),
		observability.F("order_id", cmd.OrderID),
	)

	ctx, span := uc.tel.Tracer().Start(ctx, spanPrefix+paymentSpanName,
		attribute.String("use_case", useCasePaymentProcess),
		attribute.String("order.id", cmd.OrderID),
		attribute.String("payment.amount_requested", cmd.Amount.String()),
	)
	start := time.Now()
	outcome, statusText := "success", "OK"
	var result *ProcessPaymentResult

	defer func() {
		if err != nil {
			outcome = "error"
			if k, ok := KindOf(err); ok {
				statusText = strings.ToUpper(string(k))
			}
		}
		if span != nil {
			if result != nil && result.Intent != nil {
				span.SetAttributes(
					attribute.String("payment.intent_id", result.Intent.ID),
					attribute.String("payment.status", string(result.Intent.Status)),
				)
			}
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, statusText)
			} else {
				span.SetStatus(codes.Ok, statusText)
			}
			span.End()
		}

		latency := time.Since(start).Seconds()
		uc.reqCounter.Add(1,
			observability.L("use_case", useCasePaymentProcess),
			observability.L("outcome", outcome),
		)
		uc.durHist.Observe(latency,
			observability.L("use_case", useCasePaymentProcess),
		)

		fields := []observability.Field{
			observability.F("outcome", outcome),
			observability.F("status", statusText),
			observability.F("latency_seconds", latency),
		}
		if result != nil && result.Intent != nil {
			fields = append(fields,
				observability.F("payment_intent_id", result.Intent.ID),
				observability.F("payment_status", string(result.Intent.Status)),
			)
		}
		if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
			fields = append(fields,
				observability.F("trace_id", sc.TraceID().String()),
				observability.F("span_id", sc.SpanID().String()),
			)
		}
		if err != nil {
			fields = append(fields, observability.F("error", err.Error()))
			var cause *Error
			if errors.As(err, &cause) && cause.Err != nil {
				fields = append(fields, observability.F("cause", cause.Err.Error()))
			}
		}
		logger.Info("use_case_done", fields...)
	}()

	if uc.orders == nil || uc.processor == nil {
		return nil, newError(KindConfiguration, FallbackMessage,
			errors.New("payment: order store or processor not configured"))
	}

	req, err := validate(cmd)
	if err != nil {
		return nil, err
	}

	ord, err := uc.lookup(ctx, req.OrderID)
	if err != nil {
		return nil, err
	}

	intent, err := uc.charge(ctx, req, ord)
	if err != nil {
		return nil, err
	}

	result = &ProcessPaymentResult{Intent: intent, Order: ord}

	// The charge is committed; a failed write-back is reported but not returned.
	// A caller that goes away after the charge must not abort the write-back.
	if rerr := uc.reconcile(context.WithoutCancel(ctx), ord.ID, intent); rerr != nil {
		result.ReconcileErr = rerr
		uc.reconcileFailures.Add(1, observability.L("reason", "store_error"))
		logger.Error("payment_reconciliation_failed",
			observability.F("payment_intent_id", intent.ID),
			observability.F("payment_status", string(intent.Status)),
			observability.F("error", rerr.Error()),
		)
	}

	return result, nil
}

func validate(cmd ProcessPaymentInput) (dompay.ChargeRequest, error) {
	if cmd.OrderID == "" || cmd.Amount.IsZero() || cmd.PaymentMethodID == "" {
		return dompay.ChargeRequest{}, ValidationError(msgMissingFields, nil)
	}
	minor, err := dompay.MinorUnits(cmd.Amount)
	if err != nil {
		return dompay.ChargeRequest{}, ValidationError(msgAmountRange, err)
	}
	currency := cmd.Currency
	if currency == "" {
		currency = dompay.DefaultCurrency
	}
	return dompay.ChargeRequest{
		OrderID:         cmd.OrderID,
		Amount:          cmd.Amount,
		AmountMinor:     minor,
		Currency:        currency,
		PaymentMethodID: cmd.PaymentMethodID,
		CustomerID:      cmd.CustomerID,
	}, nil
}

func (uc *ProcessPaymentUseCase) lookup(ctx context.Context, orderID string) (*domorder.Order, error) {
	start := time.Now()
	ord, err := uc.orders.Get(ctx, orderID)
	if err == nil && ord == nil {
		err = domorder.ErrNotFound
	}
	uc.observeExternal(peerOrderStore, endpointOrderGet, start, err)
	if err != nil {
		return nil, newError(KindOrderNotFound, msgOrderNotFound, err)
	}
	return ord, nil
}

func (uc *ProcessPaymentUseCase) charge(ctx context.Context, req dompay.ChargeRequest, ord *domorder.Order) (*dompay.Intent, error) {
	ch := dompay.Charge{
		Amount:          req.AmountMinor,
		Currency:        req.Currency,
		PaymentMethodID: req.PaymentMethodID,
		CustomerID:      req.CustomerID,
		Description: fmt.Sprintf("Food order from %s - Order #%s",
			ord.RestaurantName(defaultRestaurantName), ord.OrderNumber),
		Metadata: map[string]string{
			"orderId":      req.OrderID,
			"orderNumber":  ord.OrderNumber,
			"restaurantId": ord.Restaurant.ID,
			"userId":       ord.UserID,
		},
		ReturnURL: uc.returnURL(req.OrderID),
	}

	start := time.Now()
	intent, err := uc.processor.CreateAndConfirm(ctx, ch)
	if err == nil && intent == nil {
		err = errors.New("payment: processor returned no intent")
	}
	uc.observeExternal(peerPaymentProcessor, endpointIntentCreate, start, err)
	if err != nil {
		return nil, newError(KindProcessor, PublicMessage(err), err)
	}
	return intent, nil
}

func (uc *ProcessPaymentUseCase) reconcile(ctx context.Context, orderID string, intent *dompay.Intent) error {
	start := time.Now()
	err := uc.orders.UpdatePayment(ctx, orderID, domorder.PaymentUpdate{
		PaymentIntentID: intent.ID,
		PaymentStatus:   string(intent.Status),
		UpdatedAt:       uc.settings.Now().UTC(),
	})
	uc.observeExternal(peerOrderStore, endpointOrderUpdate, start, err)
	if err != nil {
		return newError(KindReconciliation, "", err)
	}
	return nil
}

func (uc *ProcessPaymentUseCase) returnURL(orderID string) string {
	base := strings.TrimRight(uc.settings.StoreBaseURL, "/")
	return base + returnPath + "?order_id=" + url.QueryEscape(orderID)
}

func (uc *ProcessPaymentUseCase) observeExternal(peer, endpoint string, start time.Time, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	uc.extCounter.Add(1,
		observability.L("peer", peer),
		observability.L("endpoint", endpoint),
		observability.L("outcome", outcome),
	)
	uc.extHistogram.Observe(time.Since(start).Seconds(),
		observability.L("peer", peer),
		observability.L("endpoint", endpoint),
	)
}

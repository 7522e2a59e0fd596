package httppresentation

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/Zhima-Mochi/checkout-payment/internal/application"
	appPayment "github.com/Zhima-Mochi/checkout-payment/internal/application/payment"
	"github.com/Zhima-Mochi/checkout-payment/internal/observability"
	"github.com/Zhima-Mochi/checkout-payment/internal/observability/logctx"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"
)

// PaymentUseCase is the checkout workflow the handler drives.
type PaymentUseCase = application.UseCase[appPayment.ProcessPaymentInput, *appPayment.ProcessPaymentResult]

type Handler struct {
	payments PaymentUseCase
	limiter  *rate.Limiter
	metrics  http.Handler
	log      observability.Logger
	tel      observability.Observability
}

// Options tune the transport. A zero RateLimit disables limiting. Metrics,
// when set, is served on GET /metrics.
type Options struct {
	RateLimit rate.Limit
	Burst     int
	Metrics   http.Handler
}

const (
	componentHTTPHandler = "http_server"
	headerRequestID      = "X-Request-ID"
	headerClientInfo     = "X-Client-Info"

	routeHealth   = "/healthz"
	routeMetrics  = "/metrics"
	routeCheckout = "/*"

	msgInvalidBody = "Invalid request body"
)

func NewHandler(payments PaymentUseCase, tel observability.Observability, opts Options) *Handler {
	if tel == nil {
		tel = observability.Nop()
	}
	var limiter *rate.Limiter
	if opts.RateLimit > 0 {
		burst := opts.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(opts.RateLimit, burst)
	}
	return &Handler{
		payments: payments,
		limiter:  limiter,
		metrics:  opts.Metrics,
		log:      tel.Logger().With(observability.F("component", componentHTTPHandler)),
		tel:      tel,
	}
}

// Router serves the checkout endpoint on every path and method, plus a
// liveness probe and the metrics scrape. Preflight requests are answered
// before routing.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(withCORS)

	r.With(h.instrument(routeHealth)...).Get(routeHealth, h.handleHealth)
	if h.metrics != nil {
		r.Method(http.MethodGet, routeMetrics, h.metrics)
	}
	r.With(append(h.instrument(routeCheckout), withRateLimit(h.limiter))...).
		Handle(routeCheckout, http.HandlerFunc(h.handleProcessPayment))

	return r
}

// instrument returns the per-route chain:
// Route → Trace → Request Logger → Access Log → Metrics → Handler
func (h *Handler) instrument(route string) []func(http.Handler) http.Handler {
	return []func(http.Handler) http.Handler{
		withRoute(route),
		h.withTrace,
		ObservabilityMiddleware(
			h.log,
			func(r *http.Request) string { return r.Header.Get(headerRequestID) },
			func(r *http.Request) string { return r.Header.Get(headerClientInfo) },
		),
		h.withAccessLog,
		h.withHTTPMetrics,
	}
}

type paymentIntentView struct {
	ID           string `json:"id"`
	Status       string `json:"status"`
	ClientSecret string `json:"client_secret"`
	Amount       int64  `json:"amount"`
	Currency     string `json:"currency"`
}

type orderView struct {
	ID          string `json:"id"`
	OrderNumber string `json:"order_number"`
	Status      string `json:"status"`
}

type successResponse struct {
	Success       bool              `json:"success"`
	PaymentIntent paymentIntentView `json:"paymentIntent"`
	Order         orderView         `json:"order"`
}

type failureResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

func (h *Handler) handleProcessPayment(w http.ResponseWriter, r *http.Request) {
	var body processPaymentRequest
	if err := decodeJSON(r.Context(), r, &body); err != nil {
		h.writeFailure(w, r, appPayment.ValidationError(msgInvalidBody, err))
		return
	}
	in, err := body.input()
	if err != nil {
		h.writeFailure(w, r, appPayment.ValidationError(msgInvalidBody, err))
		return
	}

	if h.payments == nil {
		h.writeFailure(w, r, &appPayment.Error{Kind: appPayment.KindConfiguration, Message: appPayment.FallbackMessage})
		return
	}

	result, err := h.payments.Execute(r.Context(), in)
	if err != nil {
		h.writeFailure(w, r, err)
		return
	}

	intent, order := result.Intent, result.Order
	writeJSON(w, http.StatusOK, successResponse{
		Success: true,
		PaymentIntent: paymentIntentView{
			ID:           intent.ID,
			Status:       string(intent.Status),
			ClientSecret: intent.ClientSecret,
			Amount:       intent.Amount,
			Currency:     intent.Currency,
		},
		Order: orderView{
			ID:          order.ID,
			OrderNumber: order.OrderNumber,
			Status:      string(order.Status),
		},
	})
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// writeFailure collapses every error kind into the 400 envelope.
func (h *Handler) writeFailure(w http.ResponseWriter, r *http.Request, err error) {
	kind, _ := appPayment.KindOf(err)
	logctx.FromOr(r.Context(), h.log).Warn("payment_request_failed",
		observability.F("kind", string(kind)),
		observability.F("error", err.Error()),
	)
	writeJSON(w, http.StatusBadRequest, failureResponse{
		Success: false,
		Error:   appPayment.PublicMessage(err),
	})
}

// withAccessLog writes a single access log after the handler completes.
// It relies on the request-scoped logger already injected by ObservabilityMiddleware.
func (h *Handler) withAccessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(lrw, r)

		logctx.FromOr(r.Context(), h.log).Info("http_access",
			observability.F("method", r.Method),
			observability.F("route", routeFromContext(r.Context())),
			observability.F("path", r.URL.Path),
			observability.F("status", lrw.status),
			observability.F("latency_ms", time.Since(start).Milliseconds()),
		)
	})
}

// withTrace creates a server span for the request using OTel and W3C propagation.
func (h *Handler) withTrace(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tracer := otel.Tracer("checkout.http")
		parentCtx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))

		route := routeFromContext(parentCtx)
		spanName := r.Method + " " + route
		if route == "unknown" {
			spanName = r.Method + " " + r.URL.Path
		}

		ctxWithSpan, span := tracer.Start(parentCtx,
			spanName,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.method", r.Method),
				attribute.String("http.route", route),
				attribute.String("http.target", r.URL.Path),
				attribute.String("http.user_agent", r.UserAgent()),
			),
		)
		defer span.End()

		next.ServeHTTP(w, r.WithContext(ctxWithSpan))
	})
}

// withHTTPMetrics records RED-ish HTTP metrics using injected instruments.
// DO NOT create metrics inside the middleware.
func (h *Handler) withHTTPMetrics(next http.Handler) http.Handler {
	requests := h.tel.Metrics().Counter(observability.MHTTPRequests)
	durations := h.tel.Metrics().Histogram(observability.MHTTPRequestDuration)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(lrw, r)

		labels := []observability.Label{
			observability.L("method", r.Method),
			observability.L("route", routeFromContext(r.Context())),
			observability.L("status", strconv.Itoa(lrw.status)),
		}
		requests.Add(1, labels...)
		durations.Observe(time.Since(start).Seconds(), labels...)
	})
}

func decodeJSON(ctx context.Context, r *http.Request, dst any) error {
	_ = ctx
	if r.Body == nil {
		return errors.New("empty body")
	}
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(dst); err != nil {
		return err
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

type routeKey struct{}

// withRoute stores the stable route template in the context so downstream
// metrics/logging can rely on low-cardinality values.
func withRoute(route string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(contextWithRoute(r.Context(), route)))
		})
	}
}

func contextWithRoute(ctx context.Context, route string) context.Context {
	if route == "" {
		return ctx
	}
	return context.WithValue(ctx, routeKey{}, route)
}

func routeFromContext(ctx context.Context) string {
	if ctx == nil {
		return "unknown"
	}
	if route, ok := ctx.Value(routeKey{}).(string); ok && route != "" {
		return route
	}
	return "unknown"
}

package observability

const (
	MUsecaseRequests          MetricKey = "usecase_requests_total"
	MUsecaseDuration          MetricKey = "usecase_duration_seconds"
	MHTTPRequests             MetricKey = "http_requests_total"
	MHTTPRequestDuration      MetricKey = "http_request_duration_seconds"
	MExternalRequests         MetricKey = "external_requests_total"
	MExternalRequestDuration  MetricKey = "external_request_duration_seconds"
	MPaymentReconcileFailures MetricKey = "payment_reconciliation_failed_total"
)

// CounterKeys lists every counter the service emits.
var CounterKeys = []MetricKey{
	MUsecaseRequests,
	MHTTPRequests,
	MExternalRequests,
	MPaymentReconcileFailures,
}

// HistogramKeys lists every histogram the service emits.
var HistogramKeys = []MetricKey{
	MUsecaseDuration,
	MHTTPRequestDuration,
	MExternalRequestDuration,
}

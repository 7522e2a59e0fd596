package payment

import "errors"

// Kind tags the step of the checkout pipeline that failed.
type Kind string

const (
	KindValidation     Kind = "validation"
	KindOrderNotFound  Kind = "order_not_found"
	KindProcessor      Kind = "processor"
	KindReconciliation Kind = "reconciliation"
	KindConfiguration  Kind = "configuration"
)

// FallbackMessage is reported when a failure carries no description of its own.
const FallbackMessage = "Payment processing failed"

const (
	msgMissingFields = "Missing required fields: orderId, amount, or paymentMethodId"
	msgOrderNotFound = "Order not found"
	msgAmountRange   = "Amount is out of range"
)

// Error is the failure type returned by ProcessPaymentUseCase. Message is safe
// to hand back to the caller; Err keeps the underlying cause for logs.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return ""
}

func (e *Error) Unwrap() error { return e.Err }

func newError(kind Kind, msg string, cause error) *Error {
	return &Error{Kind: kind, Message: msg, Err: cause}
}

// ValidationError wraps a malformed or incomplete checkout payload.
func ValidationError(msg string, cause error) error {
	if msg == "" {
		msg = msgMissingFields
	}
	return newError(KindValidation, msg, cause)
}

// KindOf reports the tag of err, if it is (or wraps) an *Error.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}

func IsKind(err error, kind Kind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}

// PublicMessage returns the description to show the caller for err.
func PublicMessage(err error) string {
	if err == nil {
		return ""
	}
	if msg := err.Error(); msg != "" {
		return msg
	}
	return FallbackMessage
}

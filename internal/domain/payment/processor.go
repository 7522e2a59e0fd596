package payment

import "context"

// Processor creates a payment intent and confirms it in the same call.
// Rejections by the processor are returned as errors; no retries are made.
type Processor interface {
	CreateAndConfirm(ctx context.Context, charge Charge) (*Intent, error)
}

// Package stripe submits charges to Stripe as confirmed payment intents.
package stripe

import (
	"context"
	"errors"
	"fmt"

	dompay "github.com/Zhima-Mochi/checkout-payment/internal/domain/payment"
	stripego "github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/paymentintent"
)

// Options tune the Stripe backend. Zero values use the live API.
type Options struct {
	// BaseURL overrides the API host, e.g. for stripe-mock.
	BaseURL string
}

type Processor struct {
	intents *paymentintent.Client
}

// NewProcessor returns a processor authenticated with secretKey. Network
// retries are disabled; a failed charge is reported once.
func NewProcessor(secretKey string, opts Options) (*Processor, error) {
	if secretKey == "" {
		return nil, errors.New("stripe: secret key is required")
	}
	cfg := &stripego.BackendConfig{
		MaxNetworkRetries: stripego.Int64(0),
		LeveledLogger:     &stripego.LeveledLogger{Level: stripego.LevelNull},
	}
	if opts.BaseURL != "" {
		cfg.URL = stripego.String(opts.BaseURL)
	}
	backend := stripego.GetBackendWithConfig(stripego.APIBackend, cfg)
	return &Processor{
		intents: &paymentintent.Client{B: backend, Key: secretKey},
	}, nil
}

// CreateAndConfirm creates a payment intent with manual confirmation and
// confirms it in the same request.
func (p *Processor) CreateAndConfirm(ctx context.Context, charge dompay.Charge) (*dompay.Intent, error) {
	params := &stripego.PaymentIntentParams{
		Amount:             stripego.Int64(charge.Amount),
		Currency:           stripego.String(charge.Currency),
		PaymentMethod:      stripego.String(charge.PaymentMethodID),
		ConfirmationMethod: stripego.String(string(stripego.PaymentIntentConfirmationMethodManual)),
		Confirm:            stripego.Bool(true),
		Description:        stripego.String(charge.Description),
		ReturnURL:          stripego.String(charge.ReturnURL),
	}
	if charge.CustomerID != "" {
		params.Customer = stripego.String(charge.CustomerID)
	}
	for k, v := range charge.Metadata {
		params.AddMetadata(k, v)
	}
	params.Context = ctx

	pi, err := p.intents.New(params)
	if err != nil {
		return nil, translateError(err)
	}

	return &dompay.Intent{
		ID:           pi.ID,
		Status:       dompay.Status(pi.Status),
		ClientSecret: pi.ClientSecret,
		Amount:       pi.Amount,
		Currency:     string(pi.Currency),
	}, nil
}

func translateError(err error) error {
	var se *stripego.Error
	if errors.As(err, &se) {
		return &dompay.ProcessorError{
			Code:        string(se.Code),
			DeclineCode: string(se.DeclineCode),
			Message:     se.Msg,
			Err:         err,
		}
	}
	return &dompay.ProcessorError{Err: fmt.Errorf("stripe: create payment intent: %w", err)}
}

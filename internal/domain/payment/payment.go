package payment

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

const DefaultCurrency = "usd"

var hundred = decimal.NewFromInt(100)

// Status mirrors the processor's intent status verbatim (e.g. "succeeded",
// "requires_action"). The set is owned by the processor.
type Status string

// ChargeRequest is the validated checkout input for one invocation.
type ChargeRequest struct {
	OrderID         string
	Amount          decimal.Decimal // major currency units
	AmountMinor     int64
	Currency        string
	PaymentMethodID string
	CustomerID      string
}

// Charge is what gets submitted to the processor.
type Charge struct {
	Amount          int64 // minor currency units
	Currency        string
	PaymentMethodID string
	CustomerID      string
	Description     string
	Metadata        map[string]string
	ReturnURL       string
}

type Intent struct {
	ID           string
	Status       Status
	ClientSecret string
	Amount       int64
	Currency     string
}

// ErrAmountOutOfRange reports an amount whose minor-unit value does not fit in an int64.
var ErrAmountOutOfRange = errors.New("payment: amount out of range")

// MinorUnits converts a major-unit amount to minor units, rounding half away from zero.
func MinorUnits(amount decimal.Decimal) (int64, error) {
	minor := amount.Mul(hundred).Round(0)
	n := minor.BigInt()
	if !n.IsInt64() {
		return 0, fmt.Errorf("%w: %s", ErrAmountOutOfRange, amount.String())
	}
	return n.Int64(), nil
}

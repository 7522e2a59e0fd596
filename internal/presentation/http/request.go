package httppresentation

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	appPayment "github.com/Zhima-Mochi/checkout-payment/internal/application/payment"
	"github.com/shopspring/decimal"
)

// processPaymentRequest keeps each field raw so that null, false, 0 and ""
// read as absent and reach validation instead of failing the decode.
type processPaymentRequest struct {
	OrderID         json.RawMessage `json:"orderId"`
	Amount          json.RawMessage `json:"amount"`
	Currency        json.RawMessage `json:"currency"`
	PaymentMethodID json.RawMessage `json:"paymentMethodId"`
	CustomerID      json.RawMessage `json:"customerId"`
}

func (p processPaymentRequest) input() (appPayment.ProcessPaymentInput, error) {
	var (
		in  appPayment.ProcessPaymentInput
		err error
	)
	if in.OrderID, err = textField("orderId", p.OrderID); err != nil {
		return in, err
	}
	if in.Amount, err = amountField(p.Amount); err != nil {
		return in, err
	}
	if in.Currency, err = textField("currency", p.Currency); err != nil {
		return in, err
	}
	if in.PaymentMethodID, err = textField("paymentMethodId", p.PaymentMethodID); err != nil {
		return in, err
	}
	if in.CustomerID, err = textField("customerId", p.CustomerID); err != nil {
		return in, err
	}
	return in, nil
}

func scalar(raw json.RawMessage) (any, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

// textField reads an identifier. Falsy values give "", other numbers and
// true keep their literal text.
func textField(name string, raw json.RawMessage) (string, error) {
	v, err := scalar(raw)
	if err != nil {
		return "", fmt.Errorf("%s: %w", name, err)
	}
	switch t := v.(type) {
	case nil:
		return "", nil
	case string:
		return t, nil
	case bool:
		if !t {
			return "", nil
		}
		return strconv.FormatBool(t), nil
	case json.Number:
		if d, err := decimal.NewFromString(t.String()); err == nil && d.IsZero() {
			return "", nil
		}
		return t.String(), nil
	default:
		return "", fmt.Errorf("%s: unsupported value of type %T", name, v)
	}
}

// amountField reads the major-unit amount from a number or numeric string.
// Falsy values give zero.
func amountField(raw json.RawMessage) (decimal.Decimal, error) {
	v, err := scalar(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("amount: %w", err)
	}
	switch t := v.(type) {
	case nil:
		return decimal.Zero, nil
	case bool:
		if !t {
			return decimal.Zero, nil
		}
	case json.Number:
		return parseAmount(t.String())
	case string:
		if strings.TrimSpace(t) == "" {
			return decimal.Zero, nil
		}
		return parseAmount(strings.TrimSpace(t))
	}
	return decimal.Zero, fmt.Errorf("amount: unsupported value of type %T", v)
}

func parseAmount(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("amount: %w", err)
	}
	return d, nil
}

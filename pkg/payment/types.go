package payment

import (
	"context"
	"errors"
)

// ErrNotConfigured is returned by the disabled gateway.
var ErrNotConfigured = errors.New("payment gateway is not configured")

// IntentRequest describes a charge the client will complete.
type IntentRequest struct {
	Amount      int64
	Currency    string
	Description string
	Metadata    map[string]string
}

// Intent is a processor-side charge awaiting client confirmation.
type Intent struct {
	ID           string
	ClientSecret string
	Amount       int64
	Currency     string
}

// Confirmation is the processor's view of an intent. Amounts are whole currency units.
type Confirmation struct {
	Reference string
	Succeeded bool
	Status    string
	Amount    int64
	Currency  string
	Metadata  map[string]string
}

// RefundRequest returns money for a confirmed intent. Zero Amount refunds in full.
type RefundRequest struct {
	Reference string
	Amount    int64
	Reason    string
}

// Refund is the processor's refund record.
type Refund struct {
	ID     string
	Status string
}

// Gateway is the payment processor collaborator.
type Gateway interface {
	CreateIntent(ctx context.Context, request IntentRequest) (Intent, error)
	Confirm(ctx context.Context, reference string) (Confirmation, error)
	Refund(ctx context.Context, request RefundRequest) (Refund, error)
}

// Disabled is used when no processor credentials are configured.
type Disabled struct{}

// CreateIntent always fails with ErrNotConfigured.
func (Disabled) CreateIntent(context.Context, IntentRequest) (Intent, error) {
	return Intent{}, ErrNotConfigured
}

// Confirm always fails with ErrNotConfigured.
func (Disabled) Confirm(context.Context, string) (Confirmation, error) {
	return Confirmation{}, ErrNotConfigured
}

// Refund always fails with ErrNotConfigured.
func (Disabled) Refund(context.Context, RefundRequest) (Refund, error) {
	return Refund{}, ErrNotConfigured
}

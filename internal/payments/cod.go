package payments

import (
	"context"
	"strings"
)

const codName = "cod"

// CODGateway is the no-op adapter for pay-on-delivery orders. No remote call
// is made at any step; payment is collected by the courier.
type CODGateway struct{}

// NewCODGateway constructs the pay-on-delivery adapter.
func NewCODGateway() *CODGateway { return &CODGateway{} }

// Name implements Gateway.
func (g *CODGateway) Name() string { return codName }

// CreateIntent returns an empty intent; there are no payment instructions for
// the client to act on.
func (g *CODGateway) CreateIntent(_ context.Context, input CreateIntentInput) (Intent, error) {
	return Intent{
		Gateway:  codName,
		Amount:   input.Amount,
		Currency: strings.ToUpper(input.Currency),
	}, nil
}

// Confirm reports success immediately; the courier settles payment offline.
func (g *CODGateway) Confirm(_ context.Context, input ConfirmInput) (ConfirmResult, error) {
	return ConfirmResult{
		Status:        StatusSucceeded,
		TransactionID: strings.TrimSpace(input.PaymentID),
	}, nil
}

// Status always reports success for pay-on-delivery.
func (g *CODGateway) Status(_ context.Context, _ string) (IntentStatus, error) {
	return IntentStatus{Status: StatusSucceeded}, nil
}

// Refund is a no-op; refunds for pay-on-delivery are settled manually.
func (g *CODGateway) Refund(_ context.Context, _ RefundInput) (RefundResult, error) {
	return RefundResult{Status: StatusRefunded}, nil
}

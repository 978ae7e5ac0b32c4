package payments

import (
	"context"
	"errors"
	"fmt"

	"github.com/ramsey2004/homekraft-api/internal/domain"
)

// Status enumerates the normalised payment states shared across gateways.
type Status string

const (
	// StatusPending indicates the payment is awaiting customer action or gateway confirmation.
	StatusPending Status = "pending"
	// StatusSucceeded indicates the gateway reports the payment as successfully captured.
	StatusSucceeded Status = "succeeded"
	// StatusFailed indicates the gateway reports a failure and no further action is possible.
	StatusFailed Status = "failed"
	// StatusRefunded indicates the payment has been refunded.
	StatusRefunded Status = "refunded"
)

// ErrUnsupportedGateway is returned when the registry cannot locate a gateway
// for the requested payment method.
var ErrUnsupportedGateway = errors.New("payments: unsupported gateway")

// Logger defines the logging contract used by gateway adapters.
type Logger func(ctx context.Context, event string, fields map[string]any)

// GatewayError wraps any failure raised by a gateway adapter so orchestration
// code can report it without inspecting provider-specific error types.
type GatewayError struct {
	Gateway string
	Code    string
	Err     error
}

// Error implements the error interface.
func (e *GatewayError) Error() string {
	if e == nil {
		return ""
	}
	if e.Code != "" {
		return fmt.Sprintf("payments: %s gateway failed (%s): %v", e.Gateway, e.Code, e.Err)
	}
	return fmt.Sprintf("payments: %s gateway failed: %v", e.Gateway, e.Err)
}

// Unwrap exposes the underlying error.
func (e *GatewayError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func newGatewayError(gateway, code string, err error) *GatewayError {
	return &GatewayError{Gateway: gateway, Code: code, Err: err}
}

// CreateIntentInput carries everything a gateway needs to open a payment.
// Amount is expressed in minor currency units.
type CreateIntentInput struct {
	Amount         int64
	Currency       string
	OrderID        string
	OrderNumber    string
	CustomerEmail  string
	Metadata       map[string]string
	IdempotencyKey string
}

// Intent is the gateway-side payment object the buyer's client completes
// payment against. Exactly one of GatewayOrderID or ClientSecret is set
// depending on the gateway's flow.
type Intent struct {
	Gateway        string
	IntentID       string
	GatewayOrderID string
	ClientSecret   string
	Amount         int64
	Currency       string
	Raw            map[string]any
}

// ConfirmInput identifies the completed payment the client reports back.
type ConfirmInput struct {
	IntentID  string
	PaymentID string
	// Signature carries the client-side completion proof for gateways that
	// sign the (order, payment) pair.
	Signature      string
	IdempotencyKey string
}

// ConfirmResult is the normalised confirmation outcome.
type ConfirmResult struct {
	Status        Status
	TransactionID string
	Raw           map[string]any
}

// IntentStatus reports the current gateway-side state of an intent.
type IntentStatus struct {
	Status   Status
	Amount   int64
	Currency string
}

// RefundInput describes a refund attempt, optionally partial.
type RefundInput struct {
	IntentID       string
	PaymentID      string
	Amount         *int64
	Reason         string
	IdempotencyKey string
}

// RefundResult carries the gateway refund reference.
type RefundResult struct {
	RefundID string
	Status   Status
}

// Gateway is the capability interface implemented once per payment gateway.
// Orchestration code never branches on gateway identity; it calls through
// this interface and treats every adapter uniformly.
type Gateway interface {
	Name() string
	CreateIntent(ctx context.Context, input CreateIntentInput) (Intent, error)
	Confirm(ctx context.Context, input ConfirmInput) (ConfirmResult, error)
	Status(ctx context.Context, intentID string) (IntentStatus, error)
	Refund(ctx context.Context, input RefundInput) (RefundResult, error)
}

// Registry maps payment methods to their gateway adapters. Adapters are
// injected explicitly; there are no package-level gateway clients.
type Registry struct {
	gateways map[domain.PaymentMethod]Gateway
}

// NewRegistry constructs a Registry over the supplied adapters.
func NewRegistry(gateways map[domain.PaymentMethod]Gateway) (*Registry, error) {
	if len(gateways) == 0 {
		return nil, errors.New("payments: at least one gateway is required")
	}
	copyMap := make(map[domain.PaymentMethod]Gateway, len(gateways))
	for method, gateway := range gateways {
		if !domain.ValidPaymentMethod(method) || gateway == nil {
			return nil, fmt.Errorf("payments: invalid gateway registration for method %q", method)
		}
		copyMap[method] = gateway
	}
	return &Registry{gateways: copyMap}, nil
}

// Resolve returns the gateway registered for the payment method.
func (r *Registry) Resolve(method domain.PaymentMethod) (Gateway, error) {
	if r == nil || len(r.gateways) == 0 {
		return nil, errors.New("payments: no gateways registered")
	}
	gateway, ok := r.gateways[method]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedGateway, method)
	}
	return gateway, nil
}

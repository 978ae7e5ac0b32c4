package payments

import (
	"context"
	"errors"
	"testing"

	"github.com/stripe/stripe-go/v78"
)

type stubIntentAPI struct {
	newIntent     *stripe.PaymentIntent
	getIntent     *stripe.PaymentIntent
	confirmIntent *stripe.PaymentIntent
	err           error

	lastNewParams *stripe.PaymentIntentParams
	lastGetID     string
}

func (s *stubIntentAPI) New(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
	s.lastNewParams = params
	return s.newIntent, s.err
}

func (s *stubIntentAPI) Get(id string, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
	s.lastGetID = id
	return s.getIntent, s.err
}

func (s *stubIntentAPI) Confirm(id string, params *stripe.PaymentIntentConfirmParams) (*stripe.PaymentIntent, error) {
	return s.confirmIntent, s.err
}

type stubRefundAPI struct {
	refund     *stripe.Refund
	err        error
	lastParams *stripe.RefundParams
}

func (s *stubRefundAPI) New(params *stripe.RefundParams) (*stripe.Refund, error) {
	s.lastParams = params
	return s.refund, s.err
}

func newTestStripe(t *testing.T, intents *stubIntentAPI, refunds *stubRefundAPI) *StripeGateway {
	t.Helper()
	if refunds == nil {
		refunds = &stubRefundAPI{}
	}
	gateway, err := NewStripeGateway(StripeConfig{
		Clients: &stripeClients{intents: intents, refunds: refunds},
	})
	if err != nil {
		t.Fatalf("new stripe gateway: %v", err)
	}
	return gateway
}

func TestStripeCreateIntentReturnsClientSecret(t *testing.T) {
	intents := &stubIntentAPI{
		newIntent: &stripe.PaymentIntent{
			ID:           "pi_123",
			ClientSecret: "pi_123_secret_abc",
			Amount:       20000,
			Currency:     stripe.CurrencyINR,
		},
	}
	gateway := newTestStripe(t, intents, nil)

	intent, err := gateway.CreateIntent(context.Background(), CreateIntentInput{
		Amount:      20000,
		Currency:    "INR",
		OrderID:     "order-1",
		OrderNumber: "ORD-1700000000-123456",
	})
	if err != nil {
		t.Fatalf("create intent: %v", err)
	}

	if intent.ClientSecret != "pi_123_secret_abc" {
		t.Errorf("unexpected client secret: %s", intent.ClientSecret)
	}
	if intent.GatewayOrderID != "" {
		t.Errorf("stripe intents must not carry a gateway order id")
	}
	if intents.lastNewParams == nil {
		t.Fatalf("expected intent params to be captured")
	}
	if got := intents.lastNewParams.Metadata["order_number"]; got != "ORD-1700000000-123456" {
		t.Errorf("expected order number in metadata, got %q", got)
	}
}

func TestStripeCreateIntentWrapsSDKError(t *testing.T) {
	intents := &stubIntentAPI{err: errors.New("api unreachable")}
	gateway := newTestStripe(t, intents, nil)

	_, err := gateway.CreateIntent(context.Background(), CreateIntentInput{Amount: 100, Currency: "INR"})
	var gatewayErr *GatewayError
	if !errors.As(err, &gatewayErr) {
		t.Fatalf("expected GatewayError, got %v", err)
	}
	if gatewayErr.Gateway != "stripe" || gatewayErr.Code != "create_intent" {
		t.Errorf("unexpected error identity: %+v", gatewayErr)
	}
}

func TestStripeConfirmReportsChargeID(t *testing.T) {
	intents := &stubIntentAPI{
		getIntent: &stripe.PaymentIntent{
			ID:          "pi_123",
			Status:      stripe.PaymentIntentStatusSucceeded,
			LatestCharge: &stripe.Charge{ID: "ch_456"},
		},
	}
	gateway := newTestStripe(t, intents, nil)

	result, err := gateway.Confirm(context.Background(), ConfirmInput{IntentID: "pi_123"})
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if result.Status != StatusSucceeded {
		t.Errorf("expected succeeded, got %q", result.Status)
	}
	if result.TransactionID != "ch_456" {
		t.Errorf("expected latest charge id, got %s", result.TransactionID)
	}
	if intents.lastGetID != "pi_123" {
		t.Errorf("unexpected lookup id: %s", intents.lastGetID)
	}
}

func TestStripeConfirmPendingIntent(t *testing.T) {
	intents := &stubIntentAPI{
		getIntent: &stripe.PaymentIntent{
			ID:     "pi_123",
			Status: stripe.PaymentIntentStatusRequiresAction,
		},
	}
	gateway := newTestStripe(t, intents, nil)

	result, err := gateway.Confirm(context.Background(), ConfirmInput{IntentID: "pi_123"})
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if result.Status != StatusPending {
		t.Errorf("expected pending, got %q", result.Status)
	}
}

func TestStripeRefund(t *testing.T) {
	refunds := &stubRefundAPI{refund: &stripe.Refund{ID: "re_123"}}
	gateway := newTestStripe(t, &stubIntentAPI{}, refunds)

	amount := int64(5000)
	result, err := gateway.Refund(context.Background(), RefundInput{IntentID: "pi_123", Amount: &amount})
	if err != nil {
		t.Fatalf("refund: %v", err)
	}
	if result.RefundID != "re_123" {
		t.Errorf("unexpected refund id: %s", result.RefundID)
	}
	if refunds.lastParams == nil || refunds.lastParams.Amount == nil || *refunds.lastParams.Amount != 5000 {
		t.Errorf("expected partial amount on refund params")
	}
}

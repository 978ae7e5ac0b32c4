package payments

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/client"
)

const stripeName = "stripe"

type stripePaymentIntentAPI interface {
	New(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
	Get(id string, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
	Confirm(id string, params *stripe.PaymentIntentConfirmParams) (*stripe.PaymentIntent, error)
}

type stripeRefundAPI interface {
	New(params *stripe.RefundParams) (*stripe.Refund, error)
}

type stripeClients struct {
	intents stripePaymentIntentAPI
	refunds stripeRefundAPI
}

// StripeConfig configures the Stripe gateway adapter.
type StripeConfig struct {
	APIKey   string
	Backends *stripe.Backends
	Logger   Logger
	Clock    func() time.Time
	// Clients overrides the SDK clients, primarily for tests.
	Clients *stripeClients
}

// StripeGateway implements Gateway on Stripe Payment Intents. Stripe returns
// a client secret that the buyer's client uses to complete payment.
type StripeGateway struct {
	api    stripeClients
	clock  func() time.Time
	logger Logger
}

// NewStripeGateway constructs a StripeGateway from the given configuration.
func NewStripeGateway(cfg StripeConfig) (*StripeGateway, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" && cfg.Clients == nil {
		return nil, errors.New("stripe: api key is required")
	}

	var clients stripeClients
	if cfg.Clients != nil {
		clients = *cfg.Clients
	} else {
		sc := client.New(apiKey, cfg.Backends)
		clients = stripeClients{
			intents: sc.PaymentIntents,
			refunds: sc.Refunds,
		}
	}
	if clients.intents == nil || clients.refunds == nil {
		return nil, errors.New("stripe: incomplete client configuration")
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &StripeGateway{
		api:    clients,
		clock:  func() time.Time { return clock().UTC() },
		logger: logger,
	}, nil
}

// Name implements Gateway.
func (g *StripeGateway) Name() string { return stripeName }

// CreateIntent opens a Stripe Payment Intent for the given amount.
func (g *StripeGateway) CreateIntent(ctx context.Context, input CreateIntentInput) (Intent, error) {
	if g == nil {
		return Intent{}, errors.New("stripe: gateway is nil")
	}
	if input.Amount <= 0 {
		return Intent{}, newGatewayError(stripeName, "invalid_amount", errors.New("amount must be positive"))
	}

	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(input.Amount),
		Currency: stripe.String(strings.ToLower(input.Currency)),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.Context = ctx
	if key := strings.TrimSpace(input.IdempotencyKey); key != "" {
		params.SetIdempotencyKey(key)
	}
	if email := strings.TrimSpace(input.CustomerEmail); email != "" {
		params.ReceiptEmail = stripe.String(email)
	}

	metadata := make(map[string]string, len(input.Metadata)+2)
	for k, v := range input.Metadata {
		metadata[k] = v
	}
	if input.OrderID != "" {
		metadata["order_id"] = input.OrderID
	}
	if input.OrderNumber != "" {
		metadata["order_number"] = input.OrderNumber
	}
	if len(metadata) > 0 {
		params.Metadata = metadata
	}

	intent, err := g.api.intents.New(params)
	if err != nil {
		return Intent{}, newGatewayError(stripeName, "create_intent", err)
	}

	g.logger(ctx, "payments.stripe.intent.created", map[string]any{
		"paymentIntent": intent.ID,
		"orderNumber":   input.OrderNumber,
		"amount":        intent.Amount,
	})

	return Intent{
		Gateway:      stripeName,
		IntentID:     intent.ID,
		ClientSecret: intent.ClientSecret,
		Amount:       intent.Amount,
		Currency:     strings.ToUpper(string(intent.Currency)),
		Raw:          stripeRaw(intent),
	}, nil
}

// Confirm retrieves the Payment Intent and reports its settled state. Stripe
// intents are confirmed client-side; the server only validates the outcome.
func (g *StripeGateway) Confirm(ctx context.Context, input ConfirmInput) (ConfirmResult, error) {
	if g == nil {
		return ConfirmResult{}, errors.New("stripe: gateway is nil")
	}
	intentID := strings.TrimSpace(input.IntentID)
	if intentID == "" {
		intentID = strings.TrimSpace(input.PaymentID)
	}
	if intentID == "" {
		return ConfirmResult{}, newGatewayError(stripeName, "invalid_confirm", errors.New("intent id is required"))
	}

	params := &stripe.PaymentIntentParams{}
	params.Context = ctx
	intent, err := g.api.intents.Get(intentID, params)
	if err != nil {
		return ConfirmResult{}, newGatewayError(stripeName, "lookup_intent", err)
	}

	transactionID := intent.ID
	if intent.LatestCharge != nil && intent.LatestCharge.ID != "" {
		transactionID = intent.LatestCharge.ID
	}

	g.logger(ctx, "payments.stripe.intent.confirmed", map[string]any{
		"paymentIntent": intent.ID,
		"status":        intent.Status,
	})

	return ConfirmResult{
		Status:        stripeStatus(intent.Status),
		TransactionID: transactionID,
		Raw:           stripeRaw(intent),
	}, nil
}

// Status fetches the current state of a Payment Intent.
func (g *StripeGateway) Status(ctx context.Context, intentID string) (IntentStatus, error) {
	if g == nil {
		return IntentStatus{}, errors.New("stripe: gateway is nil")
	}
	intentID = strings.TrimSpace(intentID)
	if intentID == "" {
		return IntentStatus{}, newGatewayError(stripeName, "invalid_intent", errors.New("intent id is required"))
	}

	params := &stripe.PaymentIntentParams{}
	params.Context = ctx
	intent, err := g.api.intents.Get(intentID, params)
	if err != nil {
		return IntentStatus{}, newGatewayError(stripeName, "lookup_intent", err)
	}

	return IntentStatus{
		Status:   stripeStatus(intent.Status),
		Amount:   intent.Amount,
		Currency: strings.ToUpper(string(intent.Currency)),
	}, nil
}

// Refund creates a refund against the Payment Intent.
func (g *StripeGateway) Refund(ctx context.Context, input RefundInput) (RefundResult, error) {
	if g == nil {
		return RefundResult{}, errors.New("stripe: gateway is nil")
	}
	intentID := strings.TrimSpace(input.IntentID)
	if intentID == "" {
		return RefundResult{}, newGatewayError(stripeName, "invalid_refund", errors.New("intent id is required"))
	}

	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(intentID),
	}
	params.Context = ctx
	if key := strings.TrimSpace(input.IdempotencyKey); key != "" {
		params.SetIdempotencyKey(key)
	}
	if input.Amount != nil {
		params.Amount = stripe.Int64(*input.Amount)
	}

	refund, err := g.api.refunds.New(params)
	if err != nil {
		return RefundResult{}, newGatewayError(stripeName, "refund", err)
	}

	g.logger(ctx, "payments.stripe.intent.refunded", map[string]any{
		"paymentIntent": intentID,
		"refundId":      refund.ID,
	})

	return RefundResult{RefundID: refund.ID, Status: StatusRefunded}, nil
}

func stripeStatus(status stripe.PaymentIntentStatus) Status {
	switch status {
	case stripe.PaymentIntentStatusSucceeded:
		return StatusSucceeded
	case stripe.PaymentIntentStatusCanceled:
		return StatusFailed
	default:
		return StatusPending
	}
}

func stripeRaw(intent *stripe.PaymentIntent) map[string]any {
	raw := map[string]any{}
	if intent == nil {
		return raw
	}
	if data, err := json.Marshal(intent); err == nil {
		_ = json.Unmarshal(data, &raw)
	} else {
		raw["payment_intent"] = intent
	}
	return raw
}

package payments

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	razorpayName           = "razorpay"
	defaultRazorpayBaseURL = "https://api.razorpay.com/v1"
	defaultRazorpayTimeout = 8 * time.Second
)

// ErrRazorpaySignature is returned when the client-supplied completion
// signature does not match the expected HMAC.
var ErrRazorpaySignature = errors.New("payments: razorpay signature mismatch")

// RazorpayConfig configures the Razorpay gateway adapter.
type RazorpayConfig struct {
	KeyID      string
	KeySecret  string
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     Logger
	Clock      func() time.Time
}

// RazorpayGateway implements Gateway against the Razorpay Orders API.
// Razorpay issues a gateway order id that the buyer's client confirms
// against; confirmation proof is an HMAC signature over the order and
// payment ids.
type RazorpayGateway struct {
	keyID     string
	keySecret string
	baseURL   string
	client    *http.Client
	logger    Logger
	clock     func() time.Time
}

// NewRazorpayGateway constructs a RazorpayGateway from the given configuration.
func NewRazorpayGateway(cfg RazorpayConfig) (*RazorpayGateway, error) {
	keyID := strings.TrimSpace(cfg.KeyID)
	keySecret := strings.TrimSpace(cfg.KeySecret)
	if keyID == "" || keySecret == "" {
		return nil, errors.New("razorpay: key id and key secret are required")
	}

	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultRazorpayBaseURL
	}

	client := cfg.HTTPClient
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultRazorpayTimeout
		}
		client = &http.Client{Timeout: timeout}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	return &RazorpayGateway{
		keyID:     keyID,
		keySecret: keySecret,
		baseURL:   baseURL,
		client:    client,
		logger:    logger,
		clock:     func() time.Time { return clock().UTC() },
	}, nil
}

// Name implements Gateway.
func (g *RazorpayGateway) Name() string { return razorpayName }

type razorpayOrder struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
	Status   string `json:"status"`
}

type razorpayPayment struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	OrderID  string `json:"order_id"`
	Status   string `json:"status"`
}

type razorpayRefund struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// CreateIntent opens a Razorpay order for the given amount.
func (g *RazorpayGateway) CreateIntent(ctx context.Context, input CreateIntentInput) (Intent, error) {
	if g == nil {
		return Intent{}, errors.New("razorpay: gateway is nil")
	}
	if input.Amount <= 0 {
		return Intent{}, newGatewayError(razorpayName, "invalid_amount", fmt.Errorf("amount must be positive, got %d", input.Amount))
	}

	payload := map[string]any{
		"amount":   input.Amount,
		"currency": strings.ToUpper(input.Currency),
		"receipt":  input.OrderNumber,
	}
	if len(input.Metadata) > 0 {
		notes := make(map[string]string, len(input.Metadata))
		for k, v := range input.Metadata {
			notes[k] = v
		}
		payload["notes"] = notes
	}

	var order razorpayOrder
	raw, err := g.do(ctx, http.MethodPost, "/orders", payload, &order)
	if err != nil {
		return Intent{}, err
	}

	g.logger(ctx, "payments.razorpay.order.created", map[string]any{
		"gatewayOrderId": order.ID,
		"orderNumber":    input.OrderNumber,
		"amount":         order.Amount,
	})

	return Intent{
		Gateway:        razorpayName,
		IntentID:       order.ID,
		GatewayOrderID: order.ID,
		Amount:         order.Amount,
		Currency:       strings.ToUpper(order.Currency),
		Raw:            raw,
	}, nil
}

// Confirm verifies the client-supplied completion signature and checks the
// payment state with Razorpay.
func (g *RazorpayGateway) Confirm(ctx context.Context, input ConfirmInput) (ConfirmResult, error) {
	if g == nil {
		return ConfirmResult{}, errors.New("razorpay: gateway is nil")
	}
	intentID := strings.TrimSpace(input.IntentID)
	paymentID := strings.TrimSpace(input.PaymentID)
	if intentID == "" || paymentID == "" {
		return ConfirmResult{}, newGatewayError(razorpayName, "invalid_confirm", errors.New("intent id and payment id are required"))
	}

	if input.Signature != "" && !g.verifySignature(intentID, paymentID, input.Signature) {
		return ConfirmResult{}, newGatewayError(razorpayName, "signature_mismatch", ErrRazorpaySignature)
	}

	var payment razorpayPayment
	raw, err := g.do(ctx, http.MethodGet, "/payments/"+paymentID, nil, &payment)
	if err != nil {
		return ConfirmResult{}, err
	}
	if payment.OrderID != "" && payment.OrderID != intentID {
		return ConfirmResult{}, newGatewayError(razorpayName, "order_mismatch", fmt.Errorf("payment %s belongs to order %s", paymentID, payment.OrderID))
	}

	result := ConfirmResult{
		Status:        razorpayStatus(payment.Status),
		TransactionID: payment.ID,
		Raw:           raw,
	}

	g.logger(ctx, "payments.razorpay.payment.confirmed", map[string]any{
		"gatewayOrderId": intentID,
		"paymentId":      payment.ID,
		"status":         payment.Status,
	})

	return result, nil
}

// Status fetches the current state of a Razorpay order.
func (g *RazorpayGateway) Status(ctx context.Context, intentID string) (IntentStatus, error) {
	if g == nil {
		return IntentStatus{}, errors.New("razorpay: gateway is nil")
	}
	intentID = strings.TrimSpace(intentID)
	if intentID == "" {
		return IntentStatus{}, newGatewayError(razorpayName, "invalid_intent", errors.New("intent id is required"))
	}

	var order razorpayOrder
	if _, err := g.do(ctx, http.MethodGet, "/orders/"+intentID, nil, &order); err != nil {
		return IntentStatus{}, err
	}

	return IntentStatus{
		Status:   razorpayOrderStatus(order.Status),
		Amount:   order.Amount,
		Currency: strings.ToUpper(order.Currency),
	}, nil
}

// Refund issues a refund against the captured payment.
func (g *RazorpayGateway) Refund(ctx context.Context, input RefundInput) (RefundResult, error) {
	if g == nil {
		return RefundResult{}, errors.New("razorpay: gateway is nil")
	}
	paymentID := strings.TrimSpace(input.PaymentID)
	if paymentID == "" {
		return RefundResult{}, newGatewayError(razorpayName, "invalid_refund", errors.New("payment id is required"))
	}

	payload := map[string]any{}
	if input.Amount != nil {
		payload["amount"] = *input.Amount
	}
	if reason := strings.TrimSpace(input.Reason); reason != "" {
		payload["notes"] = map[string]string{"reason": reason}
	}

	var refund razorpayRefund
	if _, err := g.do(ctx, http.MethodPost, "/payments/"+paymentID+"/refund", payload, &refund); err != nil {
		return RefundResult{}, err
	}

	g.logger(ctx, "payments.razorpay.payment.refunded", map[string]any{
		"paymentId": paymentID,
		"refundId":  refund.ID,
	})

	return RefundResult{RefundID: refund.ID, Status: StatusRefunded}, nil
}

// VerifySignature checks the HMAC-SHA256 proof Razorpay's client SDK produces
// over "<orderID>|<paymentID>".
func (g *RazorpayGateway) verifySignature(orderID, paymentID, signature string) bool {
	mac := hmac.New(sha256.New, []byte(g.keySecret))
	mac.Write([]byte(orderID + "|" + paymentID))
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(strings.TrimSpace(signature)))
}

func (g *RazorpayGateway) do(ctx context.Context, method, path string, body any, out any) (map[string]any, error) {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, newGatewayError(razorpayName, "encode_request", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, reader)
	if err != nil {
		return nil, newGatewayError(razorpayName, "build_request", err)
	}
	req.SetBasicAuth(g.keyID, g.keySecret)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, newGatewayError(razorpayName, "request_failed", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, newGatewayError(razorpayName, "read_response", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, newGatewayError(razorpayName, fmt.Sprintf("http_%d", resp.StatusCode), errors.New(razorpayErrorMessage(data)))
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return nil, newGatewayError(razorpayName, "decode_response", err)
		}
	}

	raw := map[string]any{}
	if err := json.Unmarshal(data, &raw); err != nil {
		raw = map[string]any{"body": string(data)}
	}
	return raw, nil
}

func razorpayErrorMessage(data []byte) string {
	var envelope struct {
		Error struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	}
	if err := json.Unmarshal(data, &envelope); err == nil && envelope.Error.Description != "" {
		return fmt.Sprintf("%s: %s", envelope.Error.Code, envelope.Error.Description)
	}
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" {
		return "empty error response"
	}
	if len(trimmed) > 256 {
		trimmed = trimmed[:256]
	}
	return trimmed
}

func razorpayStatus(status string) Status {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "captured", "authorized":
		return StatusSucceeded
	case "refunded":
		return StatusRefunded
	case "failed":
		return StatusFailed
	default:
		return StatusPending
	}
}

func razorpayOrderStatus(status string) Status {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "paid":
		return StatusSucceeded
	case "attempted", "created":
		return StatusPending
	default:
		return StatusPending
	}
}

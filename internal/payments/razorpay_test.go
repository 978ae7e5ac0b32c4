package payments

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestRazorpay(t *testing.T, handler http.HandlerFunc) (*RazorpayGateway, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	gateway, err := NewRazorpayGateway(RazorpayConfig{
		KeyID:     "rzp_test_key",
		KeySecret: "rzp_test_secret",
		BaseURL:   server.URL,
	})
	if err != nil {
		t.Fatalf("new razorpay gateway: %v", err)
	}
	return gateway, server
}

func signRazorpay(secret, orderID, paymentID string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(orderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

func TestRazorpayCreateIntent(t *testing.T) {
	var gotPath, gotAuth string
	gateway, _ := newTestRazorpay(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		user, pass, _ := r.BasicAuth()
		gotAuth = user + ":" + pass

		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if body["receipt"] != "ORD-1700000000-123456" {
			t.Errorf("unexpected receipt: %v", body["receipt"])
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":       "order_abc123",
			"amount":   20000,
			"currency": "INR",
			"status":   "created",
		})
	})

	intent, err := gateway.CreateIntent(context.Background(), CreateIntentInput{
		Amount:      20000,
		Currency:    "inr",
		OrderNumber: "ORD-1700000000-123456",
	})
	if err != nil {
		t.Fatalf("create intent: %v", err)
	}

	if gotPath != "/orders" {
		t.Errorf("unexpected path: %s", gotPath)
	}
	if gotAuth != "rzp_test_key:rzp_test_secret" {
		t.Errorf("unexpected basic auth: %s", gotAuth)
	}
	if intent.GatewayOrderID != "order_abc123" {
		t.Errorf("unexpected gateway order id: %s", intent.GatewayOrderID)
	}
	if intent.ClientSecret != "" {
		t.Errorf("razorpay intents must not carry a client secret")
	}
	if intent.Amount != 20000 || intent.Currency != "INR" {
		t.Errorf("unexpected amount/currency: %d %s", intent.Amount, intent.Currency)
	}
}

func TestRazorpayCreateIntentGatewayFailure(t *testing.T) {
	gateway, _ := newTestRazorpay(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`{"error":{"code":"SERVER_ERROR","description":"upstream down"}}`))
	})

	_, err := gateway.CreateIntent(context.Background(), CreateIntentInput{Amount: 100, Currency: "INR"})
	var gatewayErr *GatewayError
	if !errors.As(err, &gatewayErr) {
		t.Fatalf("expected GatewayError, got %v", err)
	}
	if gatewayErr.Gateway != "razorpay" {
		t.Errorf("unexpected gateway name: %s", gatewayErr.Gateway)
	}
	if gatewayErr.Code != "http_502" {
		t.Errorf("unexpected error code: %s", gatewayErr.Code)
	}
}

func TestRazorpayConfirmVerifiesSignature(t *testing.T) {
	gateway, _ := newTestRazorpay(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":       "pay_xyz789",
			"amount":   20000,
			"currency": "INR",
			"order_id": "order_abc123",
			"status":   "captured",
		})
	})

	signature := signRazorpay("rzp_test_secret", "order_abc123", "pay_xyz789")
	result, err := gateway.Confirm(context.Background(), ConfirmInput{
		IntentID:  "order_abc123",
		PaymentID: "pay_xyz789",
		Signature: signature,
	})
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if result.Status != StatusSucceeded {
		t.Errorf("expected succeeded, got %q", result.Status)
	}
	if result.TransactionID != "pay_xyz789" {
		t.Errorf("unexpected transaction id: %s", result.TransactionID)
	}
}

func TestRazorpayConfirmRejectsBadSignature(t *testing.T) {
	called := false
	gateway, _ := newTestRazorpay(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
	})

	_, err := gateway.Confirm(context.Background(), ConfirmInput{
		IntentID:  "order_abc123",
		PaymentID: "pay_xyz789",
		Signature: "forged",
	})
	if !errors.Is(err, ErrRazorpaySignature) {
		t.Fatalf("expected signature error, got %v", err)
	}
	if called {
		t.Fatalf("gateway must not be called when the signature fails")
	}
}

func TestRazorpayConfirmRejectsOrderMismatch(t *testing.T) {
	gateway, _ := newTestRazorpay(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":       "pay_xyz789",
			"order_id": "order_other",
			"status":   "captured",
		})
	})

	_, err := gateway.Confirm(context.Background(), ConfirmInput{
		IntentID:  "order_abc123",
		PaymentID: "pay_xyz789",
	})
	var gatewayErr *GatewayError
	if !errors.As(err, &gatewayErr) || gatewayErr.Code != "order_mismatch" {
		t.Fatalf("expected order_mismatch error, got %v", err)
	}
}

func TestRazorpayRefund(t *testing.T) {
	var gotPath string
	gateway, _ := newTestRazorpay(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":     "rfnd_123",
			"status": "processed",
		})
	})

	amount := int64(5000)
	result, err := gateway.Refund(context.Background(), RefundInput{
		PaymentID: "pay_xyz789",
		Amount:    &amount,
		Reason:    "customer request",
	})
	if err != nil {
		t.Fatalf("refund: %v", err)
	}
	if gotPath != "/payments/pay_xyz789/refund" {
		t.Errorf("unexpected path: %s", gotPath)
	}
	if result.RefundID != "rfnd_123" {
		t.Errorf("unexpected refund id: %s", result.RefundID)
	}
}

func TestRazorpayStatus(t *testing.T) {
	gateway, _ := newTestRazorpay(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":       "order_abc123",
			"amount":   20000,
			"currency": "INR",
			"status":   "paid",
		})
	})

	status, err := gateway.Status(context.Background(), "order_abc123")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if status.Status != StatusSucceeded {
		t.Errorf("expected succeeded for paid order, got %q", status.Status)
	}
	if status.Amount != 20000 {
		t.Errorf("unexpected amount: %d", status.Amount)
	}
}

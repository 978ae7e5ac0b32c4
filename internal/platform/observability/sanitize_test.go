package observability

import (
	"testing"
)

func TestRedactFieldsDropsPaymentCredentials(t *testing.T) {
	fields := map[string]any{
		"order_id":           "ord_123",
		"key_secret":         "rzp_secret_abc",
		"razorpay_signature": "deadbeef",
		"card_number":        "4111111111111111",
		"CVV":                "123",
		"amount":             259900,
	}

	got := RedactFields(fields)

	if got["order_id"] != "ord_123" {
		t.Fatalf("expected order_id to pass through, got %v", got["order_id"])
	}
	if got["amount"] != 259900 {
		t.Fatalf("expected amount to pass through, got %v", got["amount"])
	}
	for _, key := range []string{"key_secret", "razorpay_signature", "card_number", "CVV"} {
		if got[key] != "[REDACTED]" {
			t.Fatalf("expected %s to be redacted, got %v", key, got[key])
		}
	}
	if fields["key_secret"] != "rzp_secret_abc" {
		t.Fatal("expected input map to stay unmodified")
	}
}

func TestRedactFieldsMasksBuyerContact(t *testing.T) {
	got := RedactFields(map[string]any{
		"email": "asha@example.com",
		"phone": "9876543210",
	})

	if got["email"] != "a***@example.com" {
		t.Fatalf("expected masked email, got %v", got["email"])
	}
	if got["phone"] != "9***" {
		t.Fatalf("expected masked phone, got %v", got["phone"])
	}
}

func TestRedactFieldsHandlesNonStringContact(t *testing.T) {
	got := RedactFields(map[string]any{"email": 42})
	if got["email"] != "[REDACTED]" {
		t.Fatalf("expected non-string contact to be redacted, got %v", got["email"])
	}
}

func TestSanitizeRouteStripsControlCharacters(t *testing.T) {
	if got := SanitizeRoute("/orders/\n{id}"); got != "/orders/{id}" {
		t.Fatalf("expected control characters removed, got %q", got)
	}
	if got := SanitizeRoute(""); got != "/" {
		t.Fatalf("expected empty route to default to /, got %q", got)
	}
}

func TestSanitizeUserIDBoundsLength(t *testing.T) {
	long := make([]byte, 200)
	for i := range long {
		long[i] = 'a'
	}
	if got := SanitizeUserID(string(long)); len(got) != 64 {
		t.Fatalf("expected 64 character cap, got %d", len(got))
	}
}

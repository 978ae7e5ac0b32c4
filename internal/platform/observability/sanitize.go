package observability

import (
	"strings"
	"unicode"
)

const maxFieldLength = 256

const redactedPlaceholder = "[REDACTED]"

// credentialFields are log field names that must never reach a log sink.
// Payment gateway keys and card data dominate this list; leaking any of
// them in a request log is a PCI incident.
var credentialFields = map[string]struct{}{
	"card_number":        {},
	"card":               {},
	"cvv":                {},
	"cvc":                {},
	"key_secret":         {},
	"api_key":            {},
	"webhook_secret":     {},
	"signature":          {},
	"razorpay_signature": {},
	"authorization":      {},
	"password":           {},
	"token":              {},
	"id_token":           {},
}

// contactFields carry buyer PII that is masked rather than dropped, so a
// log line stays correlatable without exposing the full value.
var contactFields = map[string]struct{}{
	"email": {},
	"phone": {},
}

// RedactFields returns a copy of fields safe for structured logging:
// credential fields are replaced with a placeholder and contact fields are
// masked. The input map is not modified.
func RedactFields(fields map[string]any) map[string]any {
	if len(fields) == 0 {
		return fields
	}
	out := make(map[string]any, len(fields))
	for key, value := range fields {
		normalized := strings.ToLower(strings.TrimSpace(key))
		if _, ok := credentialFields[normalized]; ok {
			out[key] = redactedPlaceholder
			continue
		}
		if _, ok := contactFields[normalized]; ok {
			if s, isString := value.(string); isString {
				out[key] = maskContact(s)
				continue
			}
			out[key] = redactedPlaceholder
			continue
		}
		out[key] = value
	}
	return out
}

// maskContact keeps the first character and, for emails, the domain, so
// "asha@example.com" logs as "a***@example.com" and a phone number as
// "9***".
func maskContact(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	if at := strings.LastIndex(value, "@"); at > 0 {
		return value[:1] + "***" + value[at:]
	}
	return value[:1] + "***"
}

// clean strips control characters and caps length to keep log fields
// single-line and bounded.
func clean(value string, limit int) string {
	if limit <= 0 {
		limit = maxFieldLength
	}
	kept := make([]rune, 0, len(value))
	for _, r := range value {
		if unicode.IsControl(r) {
			continue
		}
		kept = append(kept, r)
	}
	if len(kept) > limit {
		kept = kept[:limit]
	}
	return string(kept)
}

// SanitizeRoute bounds a route pattern for log and span attributes.
func SanitizeRoute(route string) string {
	if route == "" {
		return "/"
	}
	return clean(route, 180)
}

// SanitizeMethod bounds an HTTP method string.
func SanitizeMethod(method string) string {
	return clean(method, 10)
}

// SanitizeUserID bounds a user identifier before it is logged.
func SanitizeUserID(uid string) string {
	return clean(uid, 64)
}

// Package textutil holds the small string normalizations shared by checkout
// and discount handling: metadata map cleanup and ASCII case folding for
// coupon codes, order numbers, and email addresses.
package textutil

import "strings"

// NormalizeStringMap trims every key and value and drops entries whose key is
// blank. An input with no surviving entries normalizes to nil.
func NormalizeStringMap(values map[string]string) map[string]string {
	var result map[string]string
	for key, value := range values {
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		if result == nil {
			result = make(map[string]string, len(values))
		}
		result[key] = strings.TrimSpace(value)
	}
	return result
}

// FoldUpper trims and upper-cases a code. Discount codes and order numbers
// are stored in this form.
func FoldUpper(value string) string {
	return strings.ToUpper(strings.TrimSpace(value))
}

// FoldLower trims and lower-cases a value. Email addresses are compared in
// this form.
func FoldLower(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

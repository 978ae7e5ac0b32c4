package domain

import "time"

// DiscountType distinguishes percentage from fixed-amount codes.
type DiscountType string

const (
	// DiscountTypePercentage reduces the subtotal by value percent.
	DiscountTypePercentage DiscountType = "percentage"
	// DiscountTypeFixed reduces the subtotal by a fixed amount.
	DiscountTypeFixed DiscountType = "fixed"
)

// DiscountCode is an opt-in reduction applied to a checkout subtotal.
// Codes are stored uppercase; no stacking is supported.
type DiscountCode struct {
	ID         string
	Code       string
	Type       DiscountType
	Value      float64
	Active     bool
	StartsAt   *time.Time
	ExpiresAt  *time.Time
	UsageCount int
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// ActiveAt reports whether the code may be applied at the given instant.
func (d DiscountCode) ActiveAt(now time.Time) bool {
	if !d.Active {
		return false
	}
	if d.StartsAt != nil && now.Before(*d.StartsAt) {
		return false
	}
	if d.ExpiresAt != nil && now.After(*d.ExpiresAt) {
		return false
	}
	return true
}

// Apply returns the subtotal after the discount, clamped at zero, alongside
// the amount removed.
func (d DiscountCode) Apply(subtotal float64) (adjusted, amount float64) {
	switch d.Type {
	case DiscountTypePercentage:
		amount = subtotal * d.Value / 100
	case DiscountTypeFixed:
		amount = d.Value
	default:
		return subtotal, 0
	}
	if amount > subtotal {
		amount = subtotal
	}
	if amount < 0 {
		amount = 0
	}
	return subtotal - amount, amount
}

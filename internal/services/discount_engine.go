package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/ramsey2004/homekraft-api/internal/platform/textutil"
	"github.com/ramsey2004/homekraft-api/internal/repositories"
)

var (
	// ErrInvalidDiscount indicates the code is unknown, inactive, or outside
	// its validity window. Checkout aborts before any write.
	ErrInvalidDiscount = errors.New("discount: invalid code")
	// ErrDiscountUnavailable indicates the discount backend could not be reached.
	ErrDiscountUnavailable = errors.New("discount: unavailable")
)

// DiscountApplication is the outcome of applying a code to a subtotal.
type DiscountApplication struct {
	Discount DiscountCode
	Amount   float64
	Subtotal float64
}

// DiscountEngineDeps wires the dependencies for the discount engine.
type DiscountEngineDeps struct {
	Discounts repositories.DiscountRepository
	Clock     func() time.Time
	Logger    Logger
}

// DiscountEngine resolves and applies discount codes. Codes never stack; one
// code per checkout.
type DiscountEngine struct {
	discounts repositories.DiscountRepository
	now       func() time.Time
	logger    Logger
}

// NewDiscountEngine constructs a DiscountEngine validating required dependencies.
func NewDiscountEngine(deps DiscountEngineDeps) (*DiscountEngine, error) {
	if deps.Discounts == nil {
		return nil, errors.New("discount engine: discount repository is required")
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &DiscountEngine{
		discounts: deps.Discounts,
		now: func() time.Time {
			return clock().UTC()
		},
		logger: logger,
	}, nil
}

// Apply resolves the code and returns the discounted subtotal. The code is
// normalised to uppercase before lookup.
func (e *DiscountEngine) Apply(ctx context.Context, code string, subtotal float64) (DiscountApplication, error) {
	if e == nil || e.discounts == nil {
		return DiscountApplication{}, ErrDiscountUnavailable
	}
	normalised := textutil.FoldUpper(code)
	if normalised == "" {
		return DiscountApplication{}, ErrInvalidDiscount
	}

	discount, err := e.discounts.FindByCode(ctx, normalised)
	if err != nil {
		var repoErr repositories.RepositoryError
		if errors.As(err, &repoErr) && repoErr.IsNotFound() {
			return DiscountApplication{}, ErrInvalidDiscount
		}
		e.logger(ctx, "discount.lookup_failed", map[string]any{
			"code":  normalised,
			"error": err.Error(),
		})
		return DiscountApplication{}, ErrDiscountUnavailable
	}

	if !discount.ActiveAt(e.now()) {
		return DiscountApplication{}, ErrInvalidDiscount
	}

	adjusted, amount := discount.Apply(subtotal)
	return DiscountApplication{
		Discount: discount,
		Amount:   amount,
		Subtotal: adjusted,
	}, nil
}

// RecordUsage bumps the redemption counter. Best-effort: failures are logged
// and swallowed so a counter hiccup never blocks an order.
func (e *DiscountEngine) RecordUsage(ctx context.Context, discountID string) {
	if e == nil || e.discounts == nil || strings.TrimSpace(discountID) == "" {
		return
	}
	if err := e.discounts.IncrementUsage(ctx, discountID); err != nil {
		e.logger(ctx, "discount.usage_increment_failed", map[string]any{
			"discountId": discountID,
			"error":      err.Error(),
		})
	}
}

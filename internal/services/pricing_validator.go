package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/ramsey2004/homekraft-api/internal/repositories"
)

// priceDriftTolerance is the fraction by which a client-presented price may
// deviate from the authoritative one before checkout is rejected.
const priceDriftTolerance = 0.10

var (
	// ErrPricingInvalidInput indicates the caller supplied malformed line items.
	ErrPricingInvalidInput = errors.New("pricing: invalid input")
	// ErrPricingUnavailable indicates the catalogue backend could not be reached.
	ErrPricingUnavailable = errors.New("pricing: unavailable")
)

// ProductNotFoundError identifies which requested product is missing from the
// catalogue. Checkout aborts before anything is written.
type ProductNotFoundError struct {
	ProductID string
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("pricing: product %s not found", e.ProductID)
}

// PriceDriftError reports a client price too far from the authoritative one.
type PriceDriftError struct {
	ProductID   string
	ClientPrice float64
	ServerPrice float64
}

func (e *PriceDriftError) Error() string {
	return fmt.Sprintf("pricing: price for product %s drifted beyond tolerance (client %.2f, server %.2f)", e.ProductID, e.ClientPrice, e.ServerPrice)
}

// PricingValidatorDeps wires the dependencies for the pricing validator.
type PricingValidatorDeps struct {
	Products repositories.ProductRepository
	Clock    func() time.Time
	Logger   Logger
}

// PricingValidator recomputes line prices from the catalogue and rejects
// requests whose client-presented prices drifted too far. Totals are always
// derived from the server price, never the client one.
type PricingValidator struct {
	products repositories.ProductRepository
	now      func() time.Time
	logger   Logger
}

// NewPricingValidator constructs a PricingValidator validating required dependencies.
func NewPricingValidator(deps PricingValidatorDeps) (*PricingValidator, error) {
	if deps.Products == nil {
		return nil, errors.New("pricing validator: product repository is required")
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &PricingValidator{
		products: deps.Products,
		now: func() time.Time {
			return clock().UTC()
		},
		logger: logger,
	}, nil
}

// ValidateItems resolves every requested line against the catalogue and
// returns priced order lines plus the subtotal.
func (v *PricingValidator) ValidateItems(ctx context.Context, items []CheckoutItemInput) ([]OrderItem, float64, error) {
	if v == nil || v.products == nil {
		return nil, 0, ErrPricingUnavailable
	}
	if len(items) == 0 {
		return nil, 0, ErrPricingInvalidInput
	}

	ids := make([]string, 0, len(items))
	for _, item := range items {
		productID := strings.TrimSpace(item.ProductID)
		if productID == "" || item.Quantity <= 0 {
			return nil, 0, ErrPricingInvalidInput
		}
		ids = append(ids, productID)
	}

	products, err := v.products.FindMany(ctx, ids)
	if err != nil {
		v.logger(ctx, "pricing.lookup_failed", map[string]any{"error": err.Error()})
		return nil, 0, ErrPricingUnavailable
	}

	lines := make([]OrderItem, 0, len(items))
	var subtotal float64
	for _, item := range items {
		productID := strings.TrimSpace(item.ProductID)
		product, ok := products[productID]
		if !ok {
			return nil, 0, &ProductNotFoundError{ProductID: productID}
		}

		variantID := strings.TrimSpace(item.VariantID)
		serverPrice := product.UnitPrice(variantID)
		if err := checkDrift(productID, item.UnitPrice, serverPrice); err != nil {
			v.logger(ctx, "pricing.drift_rejected", map[string]any{
				"productId":   productID,
				"clientPrice": item.UnitPrice,
				"serverPrice": serverPrice,
			})
			return nil, 0, err
		}

		lineTotal := serverPrice * float64(item.Quantity)
		lines = append(lines, OrderItem{
			ProductID: productID,
			VariantID: variantID,
			Name:      product.Name,
			Quantity:  item.Quantity,
			UnitPrice: serverPrice,
			LineTotal: lineTotal,
		})
		subtotal += lineTotal
	}

	return lines, subtotal, nil
}

// checkDrift rejects client prices beyond the tolerance. A non-positive
// client price means the client sent none; the server price is simply used.
func checkDrift(productID string, clientPrice, serverPrice float64) error {
	if clientPrice <= 0 || serverPrice <= 0 {
		return nil
	}
	drift := math.Abs(clientPrice-serverPrice) / serverPrice
	if drift > priceDriftTolerance {
		return &PriceDriftError{
			ProductID:   productID,
			ClientPrice: clientPrice,
			ServerPrice: serverPrice,
		}
	}
	return nil
}

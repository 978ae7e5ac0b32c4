package services

import (
	"context"
	"errors"
	"testing"
	"time"

	domain "github.com/ramsey2004/homekraft-api/internal/domain"
)

func fixedClock() func() time.Time {
	return func() time.Time {
		return time.Date(2025, time.March, 14, 9, 30, 0, 0, time.UTC)
	}
}

func newTestPricingValidator(t *testing.T, products *stubProductRepository) *PricingValidator {
	t.Helper()
	validator, err := NewPricingValidator(PricingValidatorDeps{
		Products: products,
		Clock:    fixedClock(),
	})
	if err != nil {
		t.Fatalf("NewPricingValidator: %v", err)
	}
	return validator
}

func TestValidateItemsPricesFromCatalogue(t *testing.T) {
	products := newStubProductRepository(
		domain.Product{ID: "prod_chair", Name: "Teak Chair", Price: 2500, Inventory: 10},
		domain.Product{
			ID: "prod_table", Name: "Walnut Table", Price: 8000, Inventory: 4,
			Variants: []domain.ProductVariant{{ID: "var_large", Quantity: 2, PriceDelta: 1500}},
		},
	)
	validator := newTestPricingValidator(t, products)

	lines, subtotal, err := validator.ValidateItems(context.Background(), []CheckoutItemInput{
		{ProductID: "prod_chair", Quantity: 2, UnitPrice: 2500},
		{ProductID: "prod_table", VariantID: "var_large", Quantity: 1, UnitPrice: 9500},
	})
	if err != nil {
		t.Fatalf("ValidateItems returned error: %v", err)
	}
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	if lines[0].LineTotal != 5000 {
		t.Fatalf("expected chair line total 5000, got %.2f", lines[0].LineTotal)
	}
	if lines[1].UnitPrice != 9500 {
		t.Fatalf("expected variant price 9500, got %.2f", lines[1].UnitPrice)
	}
	if subtotal != 14500 {
		t.Fatalf("expected subtotal 14500, got %.2f", subtotal)
	}
}

func TestValidateItemsRejectsPriceDrift(t *testing.T) {
	products := newStubProductRepository(
		domain.Product{ID: "prod_chair", Name: "Teak Chair", Price: 2500, Inventory: 10},
	)
	validator := newTestPricingValidator(t, products)

	_, _, err := validator.ValidateItems(context.Background(), []CheckoutItemInput{
		{ProductID: "prod_chair", Quantity: 1, UnitPrice: 2000},
	})
	var driftErr *PriceDriftError
	if !errors.As(err, &driftErr) {
		t.Fatalf("expected PriceDriftError, got %v", err)
	}
	if driftErr.ServerPrice != 2500 || driftErr.ClientPrice != 2000 {
		t.Fatalf("unexpected drift detail: %+v", driftErr)
	}
}

func TestValidateItemsToleratesSmallDrift(t *testing.T) {
	products := newStubProductRepository(
		domain.Product{ID: "prod_chair", Name: "Teak Chair", Price: 2500, Inventory: 10},
	)
	validator := newTestPricingValidator(t, products)

	// 8% off the authoritative price stays within the 10% tolerance, but the
	// line must still be priced from the server value.
	lines, _, err := validator.ValidateItems(context.Background(), []CheckoutItemInput{
		{ProductID: "prod_chair", Quantity: 1, UnitPrice: 2300},
	})
	if err != nil {
		t.Fatalf("ValidateItems returned error: %v", err)
	}
	if lines[0].UnitPrice != 2500 {
		t.Fatalf("expected authoritative price 2500, got %.2f", lines[0].UnitPrice)
	}
}

func TestValidateItemsSkipsDriftCheckWithoutClientPrice(t *testing.T) {
	products := newStubProductRepository(
		domain.Product{ID: "prod_chair", Name: "Teak Chair", Price: 2500, Inventory: 10},
	)
	validator := newTestPricingValidator(t, products)

	lines, _, err := validator.ValidateItems(context.Background(), []CheckoutItemInput{
		{ProductID: "prod_chair", Quantity: 1},
	})
	if err != nil {
		t.Fatalf("ValidateItems returned error: %v", err)
	}
	if lines[0].UnitPrice != 2500 {
		t.Fatalf("expected server price 2500, got %.2f", lines[0].UnitPrice)
	}
}

func TestValidateItemsReportsMissingProduct(t *testing.T) {
	products := newStubProductRepository(
		domain.Product{ID: "prod_chair", Name: "Teak Chair", Price: 2500, Inventory: 10},
	)
	validator := newTestPricingValidator(t, products)

	_, _, err := validator.ValidateItems(context.Background(), []CheckoutItemInput{
		{ProductID: "prod_chair", Quantity: 1},
		{ProductID: "prod_ghost", Quantity: 1},
	})
	var notFound *ProductNotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("expected ProductNotFoundError, got %v", err)
	}
	if notFound.ProductID != "prod_ghost" {
		t.Fatalf("expected prod_ghost, got %s", notFound.ProductID)
	}
}

func TestValidateItemsRejectsInvalidLines(t *testing.T) {
	validator := newTestPricingValidator(t, newStubProductRepository())

	cases := []struct {
		name  string
		items []CheckoutItemInput
	}{
		{name: "empty", items: nil},
		{name: "blank product", items: []CheckoutItemInput{{Quantity: 1}}},
		{name: "zero quantity", items: []CheckoutItemInput{{ProductID: "prod_chair"}}},
		{name: "negative quantity", items: []CheckoutItemInput{{ProductID: "prod_chair", Quantity: -1}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, _, err := validator.ValidateItems(context.Background(), tc.items); !errors.Is(err, ErrPricingInvalidInput) {
				t.Fatalf("expected ErrPricingInvalidInput, got %v", err)
			}
		})
	}
}

func TestValidateItemsWrapsLookupFailure(t *testing.T) {
	products := newStubProductRepository()
	products.findManyErr = errors.New("firestore down")
	validator := newTestPricingValidator(t, products)

	_, _, err := validator.ValidateItems(context.Background(), []CheckoutItemInput{
		{ProductID: "prod_chair", Quantity: 1},
	})
	if !errors.Is(err, ErrPricingUnavailable) {
		t.Fatalf("expected ErrPricingUnavailable, got %v", err)
	}
}

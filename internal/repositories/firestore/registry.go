package firestore

import (
	"context"
	"errors"

	pfirestore "github.com/ramsey2004/homekraft-api/internal/platform/firestore"
	"github.com/ramsey2004/homekraft-api/internal/repositories"
)

// Registry bundles the Firestore-backed repositories behind the
// repositories.Registry contract.
type Registry struct {
	provider *pfirestore.Provider

	orders      *OrderRepository
	products    *ProductRepository
	discounts   *DiscountRepository
	paymentLogs *PaymentLogRepository
	analytics   *AnalyticsRepository
	health      repositories.HealthRepository
}

// NewRegistry constructs every repository against the shared provider. The
// health repository is optional; callers without dependency probes pass nil.
func NewRegistry(provider *pfirestore.Provider, health repositories.HealthRepository) (*Registry, error) {
	if provider == nil {
		return nil, errors.New("registry requires firestore provider")
	}

	orders, err := NewOrderRepository(provider)
	if err != nil {
		return nil, err
	}
	products, err := NewProductRepository(provider)
	if err != nil {
		return nil, err
	}
	discounts, err := NewDiscountRepository(provider)
	if err != nil {
		return nil, err
	}
	paymentLogs, err := NewPaymentLogRepository(provider)
	if err != nil {
		return nil, err
	}
	analytics, err := NewAnalyticsRepository(provider)
	if err != nil {
		return nil, err
	}

	return &Registry{
		provider:    provider,
		orders:      orders,
		products:    products,
		discounts:   discounts,
		paymentLogs: paymentLogs,
		analytics:   analytics,
		health:      health,
	}, nil
}

// Close releases the underlying Firestore client.
func (r *Registry) Close(ctx context.Context) error {
	if r == nil || r.provider == nil {
		return nil
	}
	return r.provider.Close(ctx)
}

func (r *Registry) Orders() repositories.OrderRepository           { return r.orders }
func (r *Registry) Products() repositories.ProductRepository       { return r.products }
func (r *Registry) Discounts() repositories.DiscountRepository     { return r.discounts }
func (r *Registry) PaymentLogs() repositories.PaymentLogRepository { return r.paymentLogs }
func (r *Registry) Analytics() repositories.AnalyticsRepository    { return r.analytics }
func (r *Registry) Health() repositories.HealthRepository          { return r.health }

// Ensure interface compliance.
var _ repositories.Registry = (*Registry)(nil)

package repositories

import (
	"context"

	domain "github.com/ramsey2004/homekraft-api/internal/domain"
)

// Registry exposes typed repository accessors and lifecycle hooks for dependency injection.
type Registry interface {
	Close(ctx context.Context) error

	Orders() OrderRepository
	Products() ProductRepository
	Discounts() DiscountRepository
	PaymentLogs() PaymentLogRepository
	Analytics() AnalyticsRepository
	Health() HealthRepository
}

// RepositoryError wraps low-level persistence failures with categorisation used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// OrderRepository persists order aggregates. The order header and its line
// items live in a single document so Insert is atomic.
type OrderRepository interface {
	Insert(ctx context.Context, order domain.Order) (domain.Order, error)
	FindByID(ctx context.Context, orderID string) (domain.Order, error)
	FindByNumberAndEmail(ctx context.Context, orderNumber string, email string) (domain.Order, error)
	Update(ctx context.Context, order domain.Order) (domain.Order, error)
	ListByUser(ctx context.Context, userID string, pager domain.Pagination) (domain.CursorPage[domain.Order], error)
}

// AdjustmentMode selects how an inventory adjustment is applied.
type AdjustmentMode string

const (
	// AdjustmentSet replaces the current quantity with the requested one.
	AdjustmentSet AdjustmentMode = "set"
	// AdjustmentIncrement adds the requested quantity to the current one.
	AdjustmentIncrement AdjustmentMode = "increment"
	// AdjustmentDecrement subtracts the requested quantity, clamping at zero.
	AdjustmentDecrement AdjustmentMode = "decrement"
)

// InventoryAdjustment describes a single stock mutation. An empty VariantID
// targets the product's base inventory.
type InventoryAdjustment struct {
	ProductID string
	VariantID string
	Mode      AdjustmentMode
	Quantity  int
	Reason    string
}

// InventoryAdjustmentResult reports the outcome of one adjustment. Err is set
// on per-item failures so batch callers can surface partial success.
type InventoryAdjustmentResult struct {
	ProductID        string
	VariantID        string
	PreviousQuantity int
	NewQuantity      int
	Status           domain.StockStatus
	Err              error
}

// ProductListFilter narrows product listings for catalogue and stock views.
type ProductListFilter struct {
	CategoryID string
	LowStock   bool
	Pagination domain.Pagination
}

// ProductRepository manages catalogue products and their stock levels.
type ProductRepository interface {
	FindByID(ctx context.Context, productID string) (domain.Product, error)
	FindMany(ctx context.Context, productIDs []string) (map[string]domain.Product, error)
	List(ctx context.Context, filter ProductListFilter) (domain.CursorPage[domain.Product], error)
	Adjust(ctx context.Context, adjustment InventoryAdjustment) (InventoryAdjustmentResult, error)
	AdjustMany(ctx context.Context, adjustments []InventoryAdjustment) ([]InventoryAdjustmentResult, error)
}

// DiscountRepository resolves discount codes. Codes are stored uppercase and
// lookups are exact-match on the normalised form.
type DiscountRepository interface {
	FindByCode(ctx context.Context, code string) (domain.DiscountCode, error)
	IncrementUsage(ctx context.Context, discountID string) error
}

// PaymentLogRepository records payment attempts and their gateway references.
type PaymentLogRepository interface {
	Insert(ctx context.Context, log domain.PaymentLog) (domain.PaymentLog, error)
	Update(ctx context.Context, log domain.PaymentLog) (domain.PaymentLog, error)
	FindByOrderID(ctx context.Context, orderID string) (domain.PaymentLog, error)
}

// AnalyticsRepository persists analytics events. Writes are best-effort and
// callers are expected to tolerate failures.
type AnalyticsRepository interface {
	Insert(ctx context.Context, event domain.AnalyticsEvent) error
}

// HealthRepository exposes status of downstream dependencies for health checks.
type HealthRepository interface {
	Collect(ctx context.Context) (domain.SystemHealthReport, error)
}

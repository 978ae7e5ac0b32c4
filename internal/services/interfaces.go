package services

import (
	"context"
	"time"

	domain "github.com/ramsey2004/homekraft-api/internal/domain"
	"github.com/ramsey2004/homekraft-api/internal/repositories"
)

// Type aliases expose domain models to the services package without reversing dependency direction.
type (
	Pagination         = domain.Pagination
	Order              = domain.Order
	OrderStatus        = domain.OrderStatus
	OrderItem          = domain.OrderItem
	Address            = domain.Address
	GuestContact       = domain.GuestContact
	Product            = domain.Product
	StockStatus        = domain.StockStatus
	DiscountCode       = domain.DiscountCode
	PaymentLog         = domain.PaymentLog
	AnalyticsEvent     = domain.AnalyticsEvent
	SystemHealthReport = domain.SystemHealthReport
)

// Logger is the minimal structured logging callback services emit through.
type Logger func(ctx context.Context, event string, fields map[string]any)

// CheckoutItemInput is one requested line with the price the client displayed.
// The server recomputes the authoritative price and rejects large drift.
type CheckoutItemInput struct {
	ProductID string
	VariantID string
	Quantity  int
	UnitPrice float64
}

// CheckoutCommand carries everything needed to place an order. Exactly one of
// UserID or Guest identifies the buyer. UserEmail is the registered buyer's
// address for transactional mail; guests carry theirs on the contact.
type CheckoutCommand struct {
	UserID          string
	UserEmail       string
	Guest           *GuestContact
	Items           []CheckoutItemInput
	DiscountCode    string
	PaymentMethod   domain.PaymentMethod
	ShippingAddress Address
	Metadata        map[string]string
}

// PaymentInstructions tells the client how to complete a hosted-gateway
// payment. Amount is in minor currency units.
type PaymentInstructions struct {
	Gateway        string
	GatewayOrderID string
	ClientSecret   string
	Amount         int64
	Currency       string
	KeyID          string
}

// CheckoutResult is the outcome of a successful checkout. Payment is nil for
// pay-on-delivery orders.
type CheckoutResult struct {
	Order   Order
	Payment *PaymentInstructions
}

// ConfirmPaymentCommand finalises a pending order after the client completed
// the gateway flow.
type ConfirmPaymentCommand struct {
	OrderID   string
	PaymentID string
	Signature string
}

// RetryPaymentCommand re-opens the gateway payment for an order left PENDING
// by an earlier gateway failure. UserID, when set, must match the order owner.
type RetryPaymentCommand struct {
	OrderID string
	UserID  string
}

// CheckoutService runs the order placement saga and payment confirmation.
type CheckoutService interface {
	Checkout(ctx context.Context, cmd CheckoutCommand) (CheckoutResult, error)
	ConfirmPayment(ctx context.Context, cmd ConfirmPaymentCommand) (Order, error)
	RetryPayment(ctx context.Context, cmd RetryPaymentCommand) (CheckoutResult, error)
}

// OrderListQuery narrows order listings.
type OrderListQuery struct {
	UserID     string
	Pagination Pagination
}

// OrderStatusTransitionCommand moves an order along the fulfilment lifecycle.
type OrderStatusTransitionCommand struct {
	OrderID        string
	Status         OrderStatus
	TrackingNumber string
	TrackingURL    string
	ActorID        string
}

// CancelOrderCommand cancels an order that has not been delivered.
type CancelOrderCommand struct {
	OrderID string
	Reason  string
	ActorID string
}

// RefundOrderCommand refunds a paid order through its gateway.
type RefundOrderCommand struct {
	OrderID string
	Reason  string
	ActorID string
}

// OrderService encapsulates fulfilment flows after checkout.
type OrderService interface {
	GetOrder(ctx context.Context, orderID string) (Order, error)
	ListOrders(ctx context.Context, query OrderListQuery) (domain.CursorPage[Order], error)
	TransitionStatus(ctx context.Context, cmd OrderStatusTransitionCommand) (Order, error)
	Cancel(ctx context.Context, cmd CancelOrderCommand) (Order, error)
	Refund(ctx context.Context, cmd RefundOrderCommand) (Order, error)
}

// InventoryAdjustCommand mutates one stock counter.
type InventoryAdjustCommand struct {
	ProductID string
	VariantID string
	Mode      repositories.AdjustmentMode
	Quantity  int
	Reason    string
	ActorID   string
}

// InventoryBulkAdjustCommand applies several adjustments with per-item outcomes.
type InventoryBulkAdjustCommand struct {
	Adjustments []InventoryAdjustCommand
	Reason      string
	ActorID     string
}

// InventoryAdjustmentView reports the outcome of one adjustment. Error is a
// human-readable failure description; empty on success.
type InventoryAdjustmentView struct {
	ProductID        string
	VariantID        string
	PreviousQuantity int
	NewQuantity      int
	Status           StockStatus
	Error            string
}

// ProductStockView summarises one product's availability.
type ProductStockView struct {
	ProductID  string
	Name       string
	CategoryID string
	Inventory  int
	Variants   []domain.ProductVariant
	TotalStock int
	Status     StockStatus
}

// StockListQuery narrows stock listings.
type StockListQuery struct {
	CategoryID string
	LowStock   bool
	Pagination Pagination
}

// InventoryService manages stock levels and classification.
type InventoryService interface {
	Adjust(ctx context.Context, cmd InventoryAdjustCommand) (InventoryAdjustmentView, error)
	AdjustMany(ctx context.Context, cmd InventoryBulkAdjustCommand) ([]InventoryAdjustmentView, error)
	GetStock(ctx context.Context, productID string) (ProductStockView, error)
	ListStock(ctx context.Context, query StockListQuery) (domain.CursorPage[ProductStockView], error)
}

// GuestOrderLookupCommand identifies a guest order by its natural key.
type GuestOrderLookupCommand struct {
	OrderNumber string
	Email       string
}

// GuestOrderService places and resolves orders made without an account. Its
// checkout degrades to a synthesized demo order on a store outage when the
// demo fallback is enabled.
type GuestOrderService interface {
	Checkout(ctx context.Context, cmd CheckoutCommand) (CheckoutResult, error)
	Lookup(ctx context.Context, cmd GuestOrderLookupCommand) (Order, error)
}

// SystemService exposes operational metadata and dependency health.
type SystemService interface {
	HealthReport(ctx context.Context) (SystemHealthReport, error)
}

// OrderEmailMessage is the payload handed to the mail worker.
type OrderEmailMessage struct {
	OrderID     string    `json:"orderId"`
	OrderNumber string    `json:"orderNumber"`
	Email       string    `json:"email"`
	Name        string    `json:"name,omitempty"`
	Template    string    `json:"template"`
	Total       float64   `json:"total"`
	Currency    string    `json:"currency"`
	QueuedAt    time.Time `json:"queuedAt"`
}

// OrderEmailPublisher enqueues transactional order emails. Failures are
// logged, never surfaced to buyers.
type OrderEmailPublisher interface {
	PublishOrderEmail(ctx context.Context, message OrderEmailMessage) (string, error)
}

// AnalyticsPublisher mirrors analytics events to the event pipeline.
type AnalyticsPublisher interface {
	PublishAnalyticsEvent(ctx context.Context, event domain.AnalyticsEvent) (string, error)
}

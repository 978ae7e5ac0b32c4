package domain

import (
	"strings"
	"time"
)

// OrderStatus describes the fulfilment lifecycle of an order.
type OrderStatus string

const (
	// OrderStatusPending indicates the order exists but payment has not been confirmed.
	OrderStatusPending OrderStatus = "PENDING"
	// OrderStatusConfirmed indicates payment has been confirmed (or was not required).
	OrderStatusConfirmed OrderStatus = "CONFIRMED"
	// OrderStatusProcessing indicates the order is being prepared for shipment.
	OrderStatusProcessing OrderStatus = "PROCESSING"
	// OrderStatusShipped indicates the order has left the warehouse.
	OrderStatusShipped OrderStatus = "SHIPPED"
	// OrderStatusDelivered indicates the order reached the customer.
	OrderStatusDelivered OrderStatus = "DELIVERED"
	// OrderStatusCancelled indicates the order was cancelled before delivery.
	OrderStatusCancelled OrderStatus = "CANCELLED"
	// OrderStatusRefunded indicates the order was refunded before delivery.
	OrderStatusRefunded OrderStatus = "REFUNDED"
)

// PaymentMethod identifies how the buyer pays for an order.
type PaymentMethod string

const (
	// PaymentMethodRazorpay routes payment through the Razorpay hosted gateway.
	PaymentMethodRazorpay PaymentMethod = "razorpay"
	// PaymentMethodStripe routes payment through the Stripe hosted gateway.
	PaymentMethodStripe PaymentMethod = "stripe"
	// PaymentMethodCOD collects payment on delivery; no gateway round-trip occurs.
	PaymentMethodCOD PaymentMethod = "cod"
)

// PaymentStatus tracks the payment state carried on the order itself.
type PaymentStatus string

const (
	// PaymentStatusPending indicates no successful charge has been recorded yet.
	PaymentStatusPending PaymentStatus = "pending"
	// PaymentStatusCompleted indicates the gateway confirmed the charge.
	PaymentStatusCompleted PaymentStatus = "completed"
	// PaymentStatusFailed indicates the charge attempt failed.
	PaymentStatusFailed PaymentStatus = "failed"
	// PaymentStatusRefunded indicates the charge was refunded.
	PaymentStatusRefunded PaymentStatus = "refunded"
)

// Address captures the shipping destination embedded on an order.
type Address struct {
	Name       string
	Line1      string
	Line2      string
	City       string
	State      string
	PostalCode string
	Country    string
	Phone      string
}

// GuestContact holds the contact fields for orders placed without an account.
type GuestContact struct {
	Name  string
	Email string
	Phone string
}

// OrderItem is a line captured at order time; UnitPrice is never re-read from
// the live product after creation.
type OrderItem struct {
	ProductID string
	VariantID string
	Name      string
	Quantity  int
	UnitPrice float64
	LineTotal float64
}

// Order is the aggregate root for checkout and fulfilment. Items are embedded
// so the aggregate is written atomically.
type Order struct {
	ID          string
	OrderNumber string

	UserID string
	Guest  *GuestContact

	Status        OrderStatus
	PaymentMethod PaymentMethod
	PaymentStatus PaymentStatus

	Items []OrderItem

	Subtotal       float64
	DiscountAmount float64
	DiscountID     string
	ShippingCost   float64
	Total          float64
	Currency       string

	ShippingAddress Address

	TrackingNumber *string
	TrackingURL    *string

	Metadata map[string]string

	CreatedAt   time.Time
	UpdatedAt   time.Time
	ConfirmedAt *time.Time
	ShippedAt   *time.Time
	DeliveredAt *time.Time
	CancelledAt *time.Time
}

// IsGuest reports whether the order was placed without an authenticated buyer.
func (o Order) IsGuest() bool {
	return o.Guest != nil && strings.TrimSpace(o.UserID) == ""
}

var orderStatusTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:    {OrderStatusConfirmed, OrderStatusCancelled, OrderStatusRefunded},
	OrderStatusConfirmed:  {OrderStatusProcessing, OrderStatusCancelled, OrderStatusRefunded},
	OrderStatusProcessing: {OrderStatusShipped, OrderStatusCancelled, OrderStatusRefunded},
	OrderStatusShipped:    {OrderStatusDelivered, OrderStatusCancelled, OrderStatusRefunded},
	OrderStatusDelivered:  {},
	OrderStatusCancelled:  {},
	OrderStatusRefunded:   {},
}

// CanTransition reports whether the order status may move from one state to another.
func CanTransition(from, to OrderStatus) bool {
	allowed, ok := orderStatusTransitions[from]
	if !ok {
		return false
	}
	for _, candidate := range allowed {
		if candidate == to {
			return true
		}
	}
	return false
}

// ValidPaymentMethod reports whether the supplied value is a known payment method.
func ValidPaymentMethod(method PaymentMethod) bool {
	switch method {
	case PaymentMethodRazorpay, PaymentMethodStripe, PaymentMethodCOD:
		return true
	default:
		return false
	}
}

package domain

import "time"

// AnalyticsEventType enumerates the lifecycle transitions worth auditing.
type AnalyticsEventType string

const (
	// AnalyticsEventCheckoutStarted is recorded when an order is created.
	AnalyticsEventCheckoutStarted AnalyticsEventType = "CHECKOUT_STARTED"
	// AnalyticsEventPurchase is recorded when payment is confirmed.
	AnalyticsEventPurchase AnalyticsEventType = "PURCHASE"
	// AnalyticsEventInventoryAdjusted is recorded on manual stock adjustments.
	AnalyticsEventInventoryAdjusted AnalyticsEventType = "INVENTORY_ADJUSTED"
)

// AnalyticsEvent is a best-effort audit record. It is never authoritative and
// failures to record one are swallowed by callers.
type AnalyticsEvent struct {
	ID        string
	Type      AnalyticsEventType
	OrderID   string
	ProductID string
	UserID    string
	Payload   map[string]any
	CreatedAt time.Time
}

package domain

import "time"

// PaymentLogStatus tracks the state of a single payment attempt.
type PaymentLogStatus string

const (
	// PaymentLogStatusPending indicates the intent was created and awaits confirmation.
	PaymentLogStatusPending PaymentLogStatus = "pending"
	// PaymentLogStatusCompleted indicates the gateway confirmed the attempt.
	PaymentLogStatusCompleted PaymentLogStatus = "completed"
	// PaymentLogStatusFailed indicates the attempt failed or was abandoned.
	PaymentLogStatusFailed PaymentLogStatus = "failed"
)

// PaymentLog is the audit record of one payment attempt against an order.
// It is a satellite of the order: losing a log never invalidates the order.
type PaymentLog struct {
	ID      string
	OrderID string
	Gateway string
	Method  PaymentMethod

	Amount   float64
	Currency string

	Status PaymentLogStatus

	GatewayOrderID       string
	ClientSecret         string
	GatewayTransactionID string

	// Raw holds the gateway response blob as returned, for support tooling.
	Raw map[string]any

	CreatedAt time.Time
	UpdatedAt time.Time
}

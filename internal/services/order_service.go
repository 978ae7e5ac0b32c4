package services

import (
	"context"
	"errors"
	"strings"
	"time"

	domain "github.com/ramsey2004/homekraft-api/internal/domain"
	"github.com/ramsey2004/homekraft-api/internal/payments"
	"github.com/ramsey2004/homekraft-api/internal/repositories"
)

const (
	defaultOrderPageSize = 20
	maxOrderPageSize     = 100

	restockReasonCancelled = "order_cancelled"
	restockReasonRefunded  = "order_refunded"
)

var (
	// ErrOrderInvalidInput signals the caller provided invalid data.
	ErrOrderInvalidInput = errors.New("order: invalid input")
	// ErrOrderNotFound indicates the referenced order does not exist.
	ErrOrderNotFound = errors.New("order: not found")
	// ErrOrderInvalidState indicates a status transition the lifecycle does not allow.
	ErrOrderInvalidState = errors.New("order: invalid status transition")
	// ErrOrderUnavailable indicates the order store is currently unreachable.
	ErrOrderUnavailable = errors.New("order: unavailable")
	// ErrRefundFailed indicates the gateway rejected or failed the refund call.
	ErrRefundFailed = errors.New("order: refund failed")
)

// OrderServiceDeps bundles collaborators required to construct the order service.
type OrderServiceDeps struct {
	Orders      repositories.OrderRepository
	PaymentLogs repositories.PaymentLogRepository
	Gateways    *payments.Registry
	Inventory   InventoryService
	Emails      OrderEmailPublisher
	Clock       func() time.Time
	Logger      Logger
}

type orderService struct {
	orders      repositories.OrderRepository
	paymentLogs repositories.PaymentLogRepository
	gateways    *payments.Registry
	inventory   InventoryService
	emails      OrderEmailPublisher
	now         func() time.Time
	logger      Logger
}

// NewOrderService constructs an OrderService validating required dependencies.
func NewOrderService(deps OrderServiceDeps) (OrderService, error) {
	if deps.Orders == nil {
		return nil, errors.New("order service: order repository is required")
	}
	if deps.Inventory == nil {
		return nil, errors.New("order service: inventory service is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &orderService{
		orders:      deps.Orders,
		paymentLogs: deps.PaymentLogs,
		gateways:    deps.Gateways,
		inventory:   deps.Inventory,
		emails:      deps.Emails,
		now: func() time.Time {
			return clock().UTC()
		},
		logger: logger,
	}, nil
}

func (s *orderService) GetOrder(ctx context.Context, orderID string) (Order, error) {
	if s == nil || s.orders == nil {
		return Order{}, ErrOrderUnavailable
	}
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return Order{}, ErrOrderInvalidInput
	}
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return Order{}, s.translate(err)
	}
	return order, nil
}

func (s *orderService) ListOrders(ctx context.Context, query OrderListQuery) (domain.CursorPage[Order], error) {
	if s == nil || s.orders == nil {
		return domain.CursorPage[Order]{}, ErrOrderUnavailable
	}
	userID := strings.TrimSpace(query.UserID)
	if userID == "" {
		return domain.CursorPage[Order]{}, ErrOrderInvalidInput
	}
	page := clampPagination(query.Pagination, defaultOrderPageSize, maxOrderPageSize)
	result, err := s.orders.ListByUser(ctx, userID, page)
	if err != nil {
		return domain.CursorPage[Order]{}, s.translate(err)
	}
	return result, nil
}

// TransitionStatus validates the lifecycle move and stamps the matching
// timestamp. Moving to SHIPPED requires a tracking number and queues the
// shipped notification.
func (s *orderService) TransitionStatus(ctx context.Context, cmd OrderStatusTransitionCommand) (Order, error) {
	if s == nil || s.orders == nil {
		return Order{}, ErrOrderUnavailable
	}
	orderID := strings.TrimSpace(cmd.OrderID)
	if orderID == "" {
		return Order{}, ErrOrderInvalidInput
	}
	switch cmd.Status {
	case domain.OrderStatusCancelled:
		return s.Cancel(ctx, CancelOrderCommand{OrderID: orderID, ActorID: cmd.ActorID})
	case domain.OrderStatusRefunded:
		return s.Refund(ctx, RefundOrderCommand{OrderID: orderID, ActorID: cmd.ActorID})
	case domain.OrderStatusConfirmed, domain.OrderStatusProcessing,
		domain.OrderStatusShipped, domain.OrderStatusDelivered:
		// handled below
	default:
		return Order{}, ErrOrderInvalidInput
	}

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return Order{}, s.translate(err)
	}
	if !domain.CanTransition(order.Status, cmd.Status) {
		s.logger(ctx, "order.transition_rejected", map[string]any{
			"orderId": order.ID,
			"from":    string(order.Status),
			"to":      string(cmd.Status),
		})
		return Order{}, ErrOrderInvalidState
	}

	now := s.now()
	order.Status = cmd.Status
	order.UpdatedAt = now
	switch cmd.Status {
	case domain.OrderStatusConfirmed:
		order.ConfirmedAt = &now
	case domain.OrderStatusShipped:
		tracking := strings.TrimSpace(cmd.TrackingNumber)
		if tracking == "" {
			return Order{}, ErrOrderInvalidInput
		}
		order.TrackingNumber = &tracking
		if url := strings.TrimSpace(cmd.TrackingURL); url != "" {
			order.TrackingURL = &url
		}
		order.ShippedAt = &now
	case domain.OrderStatusDelivered:
		order.DeliveredAt = &now
	}

	updated, err := s.orders.Update(ctx, order)
	if err != nil {
		return Order{}, s.translate(err)
	}
	s.logger(ctx, "order.status_changed", map[string]any{
		"orderId": updated.ID,
		"status":  string(updated.Status),
		"actorId": cmd.ActorID,
	})
	if updated.Status == domain.OrderStatusShipped {
		s.sendShippedEmail(ctx, updated)
	}
	return updated, nil
}

// Cancel moves the order to CANCELLED and returns stock taken by a confirmed
// order. Stock is only decremented on confirmation, so a PENDING cancellation
// restocks nothing.
func (s *orderService) Cancel(ctx context.Context, cmd CancelOrderCommand) (Order, error) {
	if s == nil || s.orders == nil {
		return Order{}, ErrOrderUnavailable
	}
	orderID := strings.TrimSpace(cmd.OrderID)
	if orderID == "" {
		return Order{}, ErrOrderInvalidInput
	}

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return Order{}, s.translate(err)
	}
	if !domain.CanTransition(order.Status, domain.OrderStatusCancelled) {
		return Order{}, ErrOrderInvalidState
	}
	restock := order.Status != domain.OrderStatusPending

	now := s.now()
	order.Status = domain.OrderStatusCancelled
	order.CancelledAt = &now
	order.UpdatedAt = now
	if reason := strings.TrimSpace(cmd.Reason); reason != "" {
		if order.Metadata == nil {
			order.Metadata = map[string]string{}
		}
		order.Metadata["cancelReason"] = reason
	}

	updated, err := s.orders.Update(ctx, order)
	if err != nil {
		return Order{}, s.translate(err)
	}
	s.logger(ctx, "order.cancelled", map[string]any{
		"orderId": updated.ID,
		"actorId": cmd.ActorID,
		"restock": restock,
	})
	if restock {
		s.restock(ctx, updated, restockReasonCancelled)
	}
	return updated, nil
}

// Refund settles the gateway refund before flipping state: a refused refund
// leaves the order untouched. Cash-on-delivery and never-charged orders have
// nothing to return at the gateway and move straight to REFUNDED.
func (s *orderService) Refund(ctx context.Context, cmd RefundOrderCommand) (Order, error) {
	if s == nil || s.orders == nil {
		return Order{}, ErrOrderUnavailable
	}
	orderID := strings.TrimSpace(cmd.OrderID)
	if orderID == "" {
		return Order{}, ErrOrderInvalidInput
	}

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return Order{}, s.translate(err)
	}
	if !domain.CanTransition(order.Status, domain.OrderStatusRefunded) {
		return Order{}, ErrOrderInvalidState
	}
	restock := order.Status != domain.OrderStatusPending

	refundID, err := s.refundAtGateway(ctx, order, cmd.Reason)
	if err != nil {
		return Order{}, err
	}

	now := s.now()
	order.Status = domain.OrderStatusRefunded
	order.PaymentStatus = domain.PaymentStatusRefunded
	order.UpdatedAt = now
	if order.Metadata == nil {
		order.Metadata = map[string]string{}
	}
	if refundID != "" {
		order.Metadata["refundId"] = refundID
	}
	if reason := strings.TrimSpace(cmd.Reason); reason != "" {
		order.Metadata["refundReason"] = reason
	}

	updated, err := s.orders.Update(ctx, order)
	if err != nil {
		return Order{}, s.translate(err)
	}
	s.logger(ctx, "order.refunded", map[string]any{
		"orderId":  updated.ID,
		"actorId":  cmd.ActorID,
		"refundId": refundID,
	})
	if restock {
		s.restock(ctx, updated, restockReasonRefunded)
	}
	return updated, nil
}

// refundAtGateway returns the gateway refund id, or "" when no gateway call
// was needed.
func (s *orderService) refundAtGateway(ctx context.Context, order domain.Order, reason string) (string, error) {
	if order.PaymentMethod == domain.PaymentMethodCOD ||
		order.PaymentStatus != domain.PaymentStatusCompleted {
		return "", nil
	}
	if s.gateways == nil || s.paymentLogs == nil {
		return "", ErrRefundFailed
	}

	gateway, err := s.gateways.Resolve(order.PaymentMethod)
	if err != nil {
		return "", ErrRefundFailed
	}
	log, err := s.paymentLogs.FindByOrderID(ctx, order.ID)
	if err != nil {
		s.logger(ctx, "order.refund_log_missing", map[string]any{
			"orderId": order.ID,
			"error":   err.Error(),
		})
		return "", ErrRefundFailed
	}

	result, err := gateway.Refund(ctx, payments.RefundInput{
		IntentID:       log.GatewayOrderID,
		PaymentID:      log.GatewayTransactionID,
		Reason:         strings.TrimSpace(reason),
		IdempotencyKey: paymentIdempotencyKey(order.ID, gateway.Name()+"|refund"),
	})
	if err != nil {
		s.logger(ctx, "order.refund_rejected", map[string]any{
			"orderId": order.ID,
			"gateway": gateway.Name(),
			"error":   err.Error(),
		})
		return "", errors.Join(ErrRefundFailed, err)
	}
	return result.RefundID, nil
}

// restock returns reserved stock to inventory, best-effort.
func (s *orderService) restock(ctx context.Context, order domain.Order, reason string) {
	adjustments := make([]InventoryAdjustCommand, 0, len(order.Items))
	for _, item := range order.Items {
		adjustments = append(adjustments, InventoryAdjustCommand{
			ProductID: item.ProductID,
			VariantID: item.VariantID,
			Mode:      repositories.AdjustmentIncrement,
			Quantity:  item.Quantity,
			Reason:    reason,
		})
	}
	if len(adjustments) == 0 {
		return
	}
	if _, err := s.inventory.AdjustMany(ctx, InventoryBulkAdjustCommand{
		Adjustments: adjustments,
		Reason:      reason,
	}); err != nil {
		s.logger(ctx, "order.restock_failed", map[string]any{
			"orderId": order.ID,
			"error":   err.Error(),
		})
	}
}

func (s *orderService) sendShippedEmail(ctx context.Context, order domain.Order) {
	if s.emails == nil || order.Guest == nil || order.Guest.Email == "" {
		return
	}
	if _, err := s.emails.PublishOrderEmail(ctx, OrderEmailMessage{
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		Email:       order.Guest.Email,
		Name:        order.Guest.Name,
		Template:    emailTemplateOrderShipped,
		Total:       order.Total,
		Currency:    order.Currency,
		QueuedAt:    s.now(),
	}); err != nil {
		s.logger(ctx, "order.email_publish_failed", map[string]any{
			"orderId": order.ID,
			"error":   err.Error(),
		})
	}
}

func (s *orderService) translate(err error) error {
	if err == nil {
		return nil
	}
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		if repoErr.IsNotFound() {
			return ErrOrderNotFound
		}
		return ErrOrderUnavailable
	}
	return ErrOrderUnavailable
}

// clampPagination bounds the requested page size to sane limits.
func clampPagination(page Pagination, fallback, ceiling int) Pagination {
	if page.PageSize <= 0 {
		page.PageSize = fallback
	}
	if page.PageSize > ceiling {
		page.PageSize = ceiling
	}
	return page
}

package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	domain "github.com/ramsey2004/homekraft-api/internal/domain"
	"github.com/ramsey2004/homekraft-api/internal/platform/auth"
	"github.com/ramsey2004/homekraft-api/internal/services"
)

type stubCheckoutService struct {
	checkoutFn func(ctx context.Context, cmd services.CheckoutCommand) (services.CheckoutResult, error)
	confirmFn  func(ctx context.Context, cmd services.ConfirmPaymentCommand) (services.Order, error)
	retryFn    func(ctx context.Context, cmd services.RetryPaymentCommand) (services.CheckoutResult, error)

	checkoutCalls []services.CheckoutCommand
	confirmCalls  []services.ConfirmPaymentCommand
	retryCalls    []services.RetryPaymentCommand
}

func (s *stubCheckoutService) Checkout(ctx context.Context, cmd services.CheckoutCommand) (services.CheckoutResult, error) {
	s.checkoutCalls = append(s.checkoutCalls, cmd)
	if s.checkoutFn != nil {
		return s.checkoutFn(ctx, cmd)
	}
	return services.CheckoutResult{Order: sampleOrder()}, nil
}

func (s *stubCheckoutService) ConfirmPayment(ctx context.Context, cmd services.ConfirmPaymentCommand) (services.Order, error) {
	s.confirmCalls = append(s.confirmCalls, cmd)
	if s.confirmFn != nil {
		return s.confirmFn(ctx, cmd)
	}
	return sampleOrder(), nil
}

func (s *stubCheckoutService) RetryPayment(ctx context.Context, cmd services.RetryPaymentCommand) (services.CheckoutResult, error) {
	s.retryCalls = append(s.retryCalls, cmd)
	if s.retryFn != nil {
		return s.retryFn(ctx, cmd)
	}
	return services.CheckoutResult{Order: sampleOrder()}, nil
}

type stubOrderService struct {
	getFn        func(ctx context.Context, orderID string) (services.Order, error)
	listFn       func(ctx context.Context, query services.OrderListQuery) (domain.CursorPage[services.Order], error)
	transitionFn func(ctx context.Context, cmd services.OrderStatusTransitionCommand) (services.Order, error)
	cancelFn     func(ctx context.Context, cmd services.CancelOrderCommand) (services.Order, error)
	refundFn     func(ctx context.Context, cmd services.RefundOrderCommand) (services.Order, error)

	transitionCalls []services.OrderStatusTransitionCommand
	cancelCalls     []services.CancelOrderCommand
	refundCalls     []services.RefundOrderCommand
}

func (s *stubOrderService) GetOrder(ctx context.Context, orderID string) (services.Order, error) {
	if s.getFn != nil {
		return s.getFn(ctx, orderID)
	}
	return sampleOrder(), nil
}

func (s *stubOrderService) ListOrders(ctx context.Context, query services.OrderListQuery) (domain.CursorPage[services.Order], error) {
	if s.listFn != nil {
		return s.listFn(ctx, query)
	}
	return domain.CursorPage[services.Order]{Items: []services.Order{sampleOrder()}}, nil
}

func (s *stubOrderService) TransitionStatus(ctx context.Context, cmd services.OrderStatusTransitionCommand) (services.Order, error) {
	s.transitionCalls = append(s.transitionCalls, cmd)
	if s.transitionFn != nil {
		return s.transitionFn(ctx, cmd)
	}
	return sampleOrder(), nil
}

func (s *stubOrderService) Cancel(ctx context.Context, cmd services.CancelOrderCommand) (services.Order, error) {
	s.cancelCalls = append(s.cancelCalls, cmd)
	if s.cancelFn != nil {
		return s.cancelFn(ctx, cmd)
	}
	return sampleOrder(), nil
}

func (s *stubOrderService) Refund(ctx context.Context, cmd services.RefundOrderCommand) (services.Order, error) {
	s.refundCalls = append(s.refundCalls, cmd)
	if s.refundFn != nil {
		return s.refundFn(ctx, cmd)
	}
	return sampleOrder(), nil
}

type stubInventoryService struct {
	adjustFn     func(ctx context.Context, cmd services.InventoryAdjustCommand) (services.InventoryAdjustmentView, error)
	adjustManyFn func(ctx context.Context, cmd services.InventoryBulkAdjustCommand) ([]services.InventoryAdjustmentView, error)
	getStockFn   func(ctx context.Context, productID string) (services.ProductStockView, error)
	listStockFn  func(ctx context.Context, query services.StockListQuery) (domain.CursorPage[services.ProductStockView], error)

	adjustCalls     []services.InventoryAdjustCommand
	adjustManyCalls []services.InventoryBulkAdjustCommand
}

func (s *stubInventoryService) Adjust(ctx context.Context, cmd services.InventoryAdjustCommand) (services.InventoryAdjustmentView, error) {
	s.adjustCalls = append(s.adjustCalls, cmd)
	if s.adjustFn != nil {
		return s.adjustFn(ctx, cmd)
	}
	return services.InventoryAdjustmentView{ProductID: cmd.ProductID, NewQuantity: cmd.Quantity}, nil
}

func (s *stubInventoryService) AdjustMany(ctx context.Context, cmd services.InventoryBulkAdjustCommand) ([]services.InventoryAdjustmentView, error) {
	s.adjustManyCalls = append(s.adjustManyCalls, cmd)
	if s.adjustManyFn != nil {
		return s.adjustManyFn(ctx, cmd)
	}
	views := make([]services.InventoryAdjustmentView, 0, len(cmd.Adjustments))
	for _, adj := range cmd.Adjustments {
		views = append(views, services.InventoryAdjustmentView{ProductID: adj.ProductID, NewQuantity: adj.Quantity})
	}
	return views, nil
}

func (s *stubInventoryService) GetStock(ctx context.Context, productID string) (services.ProductStockView, error) {
	if s.getStockFn != nil {
		return s.getStockFn(ctx, productID)
	}
	return services.ProductStockView{ProductID: productID}, nil
}

func (s *stubInventoryService) ListStock(ctx context.Context, query services.StockListQuery) (domain.CursorPage[services.ProductStockView], error) {
	if s.listStockFn != nil {
		return s.listStockFn(ctx, query)
	}
	return domain.CursorPage[services.ProductStockView]{}, nil
}

type stubGuestOrderService struct {
	checkoutFn func(ctx context.Context, cmd services.CheckoutCommand) (services.CheckoutResult, error)
	lookupFn   func(ctx context.Context, cmd services.GuestOrderLookupCommand) (services.Order, error)

	checkoutCalls []services.CheckoutCommand
	lookupCalls   []services.GuestOrderLookupCommand
}

func (s *stubGuestOrderService) Checkout(ctx context.Context, cmd services.CheckoutCommand) (services.CheckoutResult, error) {
	s.checkoutCalls = append(s.checkoutCalls, cmd)
	if s.checkoutFn != nil {
		return s.checkoutFn(ctx, cmd)
	}
	return services.CheckoutResult{Order: sampleOrder()}, nil
}

func (s *stubGuestOrderService) Lookup(ctx context.Context, cmd services.GuestOrderLookupCommand) (services.Order, error) {
	s.lookupCalls = append(s.lookupCalls, cmd)
	if s.lookupFn != nil {
		return s.lookupFn(ctx, cmd)
	}
	return sampleOrder(), nil
}

var (
	_ services.CheckoutService   = (*stubCheckoutService)(nil)
	_ services.OrderService      = (*stubOrderService)(nil)
	_ services.InventoryService  = (*stubInventoryService)(nil)
	_ services.GuestOrderService = (*stubGuestOrderService)(nil)
)

func sampleOrder() services.Order {
	created := time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)
	return services.Order{
		ID:            "ord_001",
		OrderNumber:   "ORD-1700000000-000042",
		UserID:        "user_1",
		Status:        domain.OrderStatusConfirmed,
		PaymentMethod: domain.PaymentMethodCOD,
		PaymentStatus: domain.PaymentStatusCompleted,
		Items: []services.OrderItem{
			{ProductID: "prod_chair", Name: "Teak Armchair", Quantity: 2, UnitPrice: 2500, LineTotal: 5000},
		},
		Subtotal:     5000,
		ShippingCost: 99,
		Total:        5099,
		Currency:     "INR",
		ShippingAddress: services.Address{
			Line1:      "14 MG Road",
			City:       "Bengaluru",
			PostalCode: "560001",
			Country:    "IN",
		},
		CreatedAt: created,
		UpdatedAt: created,
	}
}

func authedRequest(method, target string, body []byte, uid string) *http.Request {
	var req *http.Request
	if body == nil {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, bytes.NewReader(body))
	}
	if uid != "" {
		req = req.WithContext(auth.WithIdentity(req.Context(), &auth.Identity{UID: uid}))
	}
	return req
}

func mustMarshal(t *testing.T, payload any) []byte {
	t.Helper()
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal request payload: %v", err)
	}
	return data
}

func decodeBody(t *testing.T, body []byte, dst any) {
	t.Helper()
	if err := json.Unmarshal(body, dst); err != nil {
		t.Fatalf("decode response body: %v", err)
	}
}

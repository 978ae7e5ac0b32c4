package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	domain "github.com/ramsey2004/homekraft-api/internal/domain"
	"github.com/ramsey2004/homekraft-api/internal/repositories"
	"github.com/ramsey2004/homekraft-api/internal/services"
)

func newAdminRouter(orders services.OrderService, inventory services.InventoryService) chi.Router {
	r := chi.NewRouter()
	r.Route("/admin", NewAdminHandlers(nil, orders, inventory).Routes)
	return r
}

func TestAdminAdjustStock(t *testing.T) {
	inventory := &stubInventoryService{
		adjustFn: func(_ context.Context, cmd services.InventoryAdjustCommand) (services.InventoryAdjustmentView, error) {
			return services.InventoryAdjustmentView{
				ProductID:        cmd.ProductID,
				PreviousQuantity: 8,
				NewQuantity:      5,
				Status:           domain.StockStatusLow,
			}, nil
		},
	}
	router := newAdminRouter(&stubOrderService{}, inventory)

	payload := map[string]any{"mode": "decrement", "quantity": 3, "reason": "damaged in transit"}
	req := authedRequest(http.MethodPut, "/admin/inventory/prod_chair", mustMarshal(t, payload), "staff_1")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if len(inventory.adjustCalls) != 1 {
		t.Fatalf("expected one adjust call, got %d", len(inventory.adjustCalls))
	}
	cmd := inventory.adjustCalls[0]
	if cmd.ProductID != "prod_chair" || cmd.Mode != repositories.AdjustmentDecrement || cmd.Quantity != 3 {
		t.Fatalf("unexpected adjust command: %+v", cmd)
	}
	if cmd.ActorID != "staff_1" {
		t.Fatalf("expected actor staff_1, got %q", cmd.ActorID)
	}

	var body adjustmentResultView
	decodeBody(t, rr.Body.Bytes(), &body)
	if body.NewQuantity != 5 || body.Status != string(domain.StockStatusLow) {
		t.Fatalf("unexpected adjustment view: %+v", body)
	}
}

func TestAdminBulkAdjustReportsPerItemOutcome(t *testing.T) {
	inventory := &stubInventoryService{
		adjustManyFn: func(_ context.Context, cmd services.InventoryBulkAdjustCommand) ([]services.InventoryAdjustmentView, error) {
			return []services.InventoryAdjustmentView{
				{ProductID: "prod_chair", NewQuantity: 12},
				{ProductID: "prod_gone", Error: "product not found"},
			}, nil
		},
	}
	router := newAdminRouter(&stubOrderService{}, inventory)

	payload := map[string]any{
		"reason": "cycle count",
		"adjustments": []map[string]any{
			{"productId": "prod_chair", "mode": "set", "quantity": 12},
			{"productId": "prod_gone", "mode": "set", "quantity": 4},
		},
	}
	req := authedRequest(http.MethodPost, "/admin/inventory/bulk", mustMarshal(t, payload), "staff_1")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if len(inventory.adjustManyCalls) != 1 {
		t.Fatalf("expected one bulk call, got %d", len(inventory.adjustManyCalls))
	}
	bulk := inventory.adjustManyCalls[0]
	if bulk.Reason != "cycle count" || len(bulk.Adjustments) != 2 {
		t.Fatalf("unexpected bulk command: %+v", bulk)
	}

	var body bulkAdjustResponse
	decodeBody(t, rr.Body.Bytes(), &body)
	if len(body.Results) != 2 {
		t.Fatalf("expected two results, got %d", len(body.Results))
	}
	if body.Results[1].Error == "" {
		t.Fatal("expected failure detail on second result")
	}
}

func TestAdminListStockForwardsFilters(t *testing.T) {
	var captured services.StockListQuery
	inventory := &stubInventoryService{
		listStockFn: func(_ context.Context, query services.StockListQuery) (domain.CursorPage[services.ProductStockView], error) {
			captured = query
			return domain.CursorPage[services.ProductStockView]{
				Items: []services.ProductStockView{
					{ProductID: "prod_chair", Name: "Teak Armchair", TotalStock: 7, Status: domain.StockStatusLow},
				},
			}, nil
		},
	}
	router := newAdminRouter(&stubOrderService{}, inventory)

	req := authedRequest(http.MethodGet, "/admin/inventory?lowStock=true&categoryId=cat_seating&pageSize=25", nil, "staff_1")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if !captured.LowStock || captured.CategoryID != "cat_seating" || captured.Pagination.PageSize != 25 {
		t.Fatalf("unexpected stock query: %+v", captured)
	}

	var body stockListResponse
	decodeBody(t, rr.Body.Bytes(), &body)
	if len(body.Products) != 1 || body.Products[0].Status != string(domain.StockStatusLow) {
		t.Fatalf("unexpected stock payload: %+v", body.Products)
	}
}

func TestAdminGetStockUnknownProduct(t *testing.T) {
	inventory := &stubInventoryService{
		getStockFn: func(_ context.Context, _ string) (services.ProductStockView, error) {
			return services.ProductStockView{}, services.ErrInventoryProductNotFound
		},
	}
	router := newAdminRouter(&stubOrderService{}, inventory)

	req := authedRequest(http.MethodGet, "/admin/inventory/prod_gone", nil, "staff_1")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rr.Code)
	}
}

func TestAdminTransitionOrderStatus(t *testing.T) {
	orders := &stubOrderService{}
	router := newAdminRouter(orders, &stubInventoryService{})

	payload := map[string]any{"status": "shipped", "trackingNumber": "AWB123456", "trackingUrl": "https://track.example.com/AWB123456"}
	req := authedRequest(http.MethodPost, "/admin/orders/ord_001/status", mustMarshal(t, payload), "staff_1")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if len(orders.transitionCalls) != 1 {
		t.Fatalf("expected one transition call, got %d", len(orders.transitionCalls))
	}
	cmd := orders.transitionCalls[0]
	if cmd.OrderID != "ord_001" || cmd.Status != domain.OrderStatusShipped {
		t.Fatalf("unexpected transition command: %+v", cmd)
	}
	if cmd.TrackingNumber != "AWB123456" || cmd.ActorID != "staff_1" {
		t.Fatalf("unexpected transition metadata: %+v", cmd)
	}
}

func TestAdminTransitionRejectsInvalidState(t *testing.T) {
	orders := &stubOrderService{
		transitionFn: func(_ context.Context, _ services.OrderStatusTransitionCommand) (services.Order, error) {
			return services.Order{}, services.ErrOrderInvalidState
		},
	}
	router := newAdminRouter(orders, &stubInventoryService{})

	payload := map[string]any{"status": "delivered"}
	req := authedRequest(http.MethodPost, "/admin/orders/ord_001/status", mustMarshal(t, payload), "staff_1")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusConflict {
		t.Fatalf("expected status 409, got %d", rr.Code)
	}
}

func TestAdminCancelOrder(t *testing.T) {
	orders := &stubOrderService{}
	router := newAdminRouter(orders, &stubInventoryService{})

	payload := map[string]any{"reason": "customer request"}
	req := authedRequest(http.MethodPost, "/admin/orders/ord_001/cancel", mustMarshal(t, payload), "staff_1")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if len(orders.cancelCalls) != 1 || orders.cancelCalls[0].Reason != "customer request" {
		t.Fatalf("unexpected cancel calls: %+v", orders.cancelCalls)
	}
}

func TestAdminRefundFailureMapsToBadGateway(t *testing.T) {
	orders := &stubOrderService{
		refundFn: func(_ context.Context, _ services.RefundOrderCommand) (services.Order, error) {
			return services.Order{}, services.ErrRefundFailed
		},
	}
	router := newAdminRouter(orders, &stubInventoryService{})

	payload := map[string]any{"reason": "defective item"}
	req := authedRequest(http.MethodPost, "/admin/orders/ord_001/refund", mustMarshal(t, payload), "staff_1")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadGateway {
		t.Fatalf("expected status 502, got %d", rr.Code)
	}
}

func TestAdminListOrdersRequiresUserFilter(t *testing.T) {
	router := newAdminRouter(&stubOrderService{}, &stubInventoryService{})

	req := authedRequest(http.MethodGet, "/admin/orders", nil, "staff_1")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400 without userId, got %d", rr.Code)
	}
}

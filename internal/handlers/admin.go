package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/ramsey2004/homekraft-api/internal/platform/auth"
	"github.com/ramsey2004/homekraft-api/internal/platform/httpx"
	"github.com/ramsey2004/homekraft-api/internal/repositories"
	"github.com/ramsey2004/homekraft-api/internal/services"
)

const (
	maxAdminRequestBody      = 64 * 1024
	defaultStockListPageSize = 50
	defaultAdminListPageSize = 20
)

// AdminHandlers exposes the staff-only fulfilment and stock management surface.
type AdminHandlers struct {
	authn     *auth.Authenticator
	orders    services.OrderService
	inventory services.InventoryService
}

// NewAdminHandlers constructs the admin handlers.
func NewAdminHandlers(authn *auth.Authenticator, orders services.OrderService, inventory services.InventoryService) *AdminHandlers {
	return &AdminHandlers{authn: authn, orders: orders, inventory: inventory}
}

// Routes registers the admin endpoints. Every route requires a staff or admin role.
func (h *AdminHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Group(func(group chi.Router) {
		if h.authn != nil {
			group.Use(h.authn.RequireFirebaseAuth(auth.RoleStaff, auth.RoleAdmin))
		}
		group.Get("/inventory", h.listStock)
		group.Get("/inventory/{productID}", h.getStock)
		group.Put("/inventory/{productID}", h.adjustStock)
		group.Post("/inventory/bulk", h.adjustStockBulk)
		group.Get("/orders", h.listOrders)
		group.Get("/orders/{orderID}", h.getOrder)
		group.Post("/orders/{orderID}/status", h.transitionOrder)
		group.Post("/orders/{orderID}/cancel", h.cancelOrder)
		group.Post("/orders/{orderID}/refund", h.refundOrder)
	})
}

type stockVariantView struct {
	ID       string `json:"id"`
	Size     string `json:"size,omitempty"`
	Color    string `json:"color,omitempty"`
	Quantity int    `json:"quantity"`
}

type stockView struct {
	ProductID  string             `json:"productId"`
	Name       string             `json:"name"`
	CategoryID string             `json:"categoryId,omitempty"`
	Inventory  int                `json:"inventory"`
	Variants   []stockVariantView `json:"variants,omitempty"`
	TotalStock int                `json:"totalStock"`
	Status     string             `json:"status"`
}

type stockListResponse struct {
	Products      []stockView `json:"products"`
	NextPageToken string      `json:"nextPageToken,omitempty"`
}

type adjustmentResultView struct {
	ProductID        string `json:"productId"`
	VariantID        string `json:"variantId,omitempty"`
	PreviousQuantity int    `json:"previousQuantity"`
	NewQuantity      int    `json:"newQuantity"`
	Status           string `json:"status,omitempty"`
	Error            string `json:"error,omitempty"`
}

type adjustStockRequest struct {
	VariantID string `json:"variantId"`
	Mode      string `json:"mode"`
	Quantity  int    `json:"quantity"`
	Reason    string `json:"reason"`
}

type bulkAdjustItemRequest struct {
	ProductID string `json:"productId"`
	VariantID string `json:"variantId"`
	Mode      string `json:"mode"`
	Quantity  int    `json:"quantity"`
	Reason    string `json:"reason"`
}

type bulkAdjustRequest struct {
	Adjustments []bulkAdjustItemRequest `json:"adjustments"`
	Reason      string                  `json:"reason"`
}

type bulkAdjustResponse struct {
	Results []adjustmentResultView `json:"results"`
}

func (h *AdminHandlers) listStock(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.inventory == nil {
		writeInventoryError(ctx, w, services.ErrInventoryUnavailable)
		return
	}

	query := r.URL.Query()
	page, err := h.inventory.ListStock(ctx, services.StockListQuery{
		CategoryID: strings.TrimSpace(query.Get("categoryId")),
		LowStock:   query.Get("lowStock") == "true",
		Pagination: paginationFromQuery(r, defaultStockListPageSize),
	})
	if err != nil {
		writeInventoryError(ctx, w, err)
		return
	}

	response := stockListResponse{Products: make([]stockView, 0, len(page.Items)), NextPageToken: page.NextPageToken}
	for _, item := range page.Items {
		response.Products = append(response.Products, encodeStockView(item))
	}
	writeJSONResponse(w, http.StatusOK, response)
}

func (h *AdminHandlers) getStock(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.inventory == nil {
		writeInventoryError(ctx, w, services.ErrInventoryUnavailable)
		return
	}

	stock, err := h.inventory.GetStock(ctx, chi.URLParam(r, "productID"))
	if err != nil {
		writeInventoryError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, encodeStockView(stock))
}

func (h *AdminHandlers) adjustStock(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.inventory == nil {
		writeInventoryError(ctx, w, services.ErrInventoryUnavailable)
		return
	}

	var req adjustStockRequest
	if !decodeAdminRequest(ctx, w, r, &req) {
		return
	}

	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}

	result, err := h.inventory.Adjust(ctx, services.InventoryAdjustCommand{
		ProductID: chi.URLParam(r, "productID"),
		VariantID: strings.TrimSpace(req.VariantID),
		Mode:      repositories.AdjustmentMode(strings.ToLower(strings.TrimSpace(req.Mode))),
		Quantity:  req.Quantity,
		Reason:    strings.TrimSpace(req.Reason),
		ActorID:   identity.UID,
	})
	if err != nil {
		writeInventoryError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, encodeAdjustmentView(result))
}

func (h *AdminHandlers) adjustStockBulk(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.inventory == nil {
		writeInventoryError(ctx, w, services.ErrInventoryUnavailable)
		return
	}

	var req bulkAdjustRequest
	if !decodeAdminRequest(ctx, w, r, &req) {
		return
	}

	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}

	cmd := services.InventoryBulkAdjustCommand{
		Reason:      strings.TrimSpace(req.Reason),
		ActorID:     identity.UID,
		Adjustments: make([]services.InventoryAdjustCommand, 0, len(req.Adjustments)),
	}
	for _, item := range req.Adjustments {
		cmd.Adjustments = append(cmd.Adjustments, services.InventoryAdjustCommand{
			ProductID: strings.TrimSpace(item.ProductID),
			VariantID: strings.TrimSpace(item.VariantID),
			Mode:      repositories.AdjustmentMode(strings.ToLower(strings.TrimSpace(item.Mode))),
			Quantity:  item.Quantity,
			Reason:    strings.TrimSpace(item.Reason),
			ActorID:   identity.UID,
		})
	}

	results, err := h.inventory.AdjustMany(ctx, cmd)
	if err != nil {
		writeInventoryError(ctx, w, err)
		return
	}

	response := bulkAdjustResponse{Results: make([]adjustmentResultView, 0, len(results))}
	for _, result := range results {
		response.Results = append(response.Results, encodeAdjustmentView(result))
	}
	writeJSONResponse(w, http.StatusOK, response)
}

type transitionOrderRequest struct {
	Status         string `json:"status"`
	TrackingNumber string `json:"trackingNumber"`
	TrackingURL    string `json:"trackingUrl"`
}

type cancelOrderRequest struct {
	Reason string `json:"reason"`
}

type refundOrderRequest struct {
	Reason string `json:"reason"`
}

func (h *AdminHandlers) listOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		writeOrderError(ctx, w, services.ErrOrderUnavailable)
		return
	}

	userID := strings.TrimSpace(r.URL.Query().Get("userId"))
	if userID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "userId query parameter is required", http.StatusBadRequest))
		return
	}

	page, err := h.orders.ListOrders(ctx, services.OrderListQuery{
		UserID:     userID,
		Pagination: paginationFromQuery(r, defaultAdminListPageSize),
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	response := orderListResponse{Orders: make([]orderView, 0, len(page.Items)), NextPageToken: page.NextPageToken}
	for _, order := range page.Items {
		response.Orders = append(response.Orders, encodeOrderView(order))
	}
	writeJSONResponse(w, http.StatusOK, response)
}

func (h *AdminHandlers) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		writeOrderError(ctx, w, services.ErrOrderUnavailable)
		return
	}

	order, err := h.orders.GetOrder(ctx, chi.URLParam(r, "orderID"))
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, encodeOrderView(order))
}

func (h *AdminHandlers) transitionOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		writeOrderError(ctx, w, services.ErrOrderUnavailable)
		return
	}

	var req transitionOrderRequest
	if !decodeAdminRequest(ctx, w, r, &req) {
		return
	}

	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}

	order, err := h.orders.TransitionStatus(ctx, services.OrderStatusTransitionCommand{
		OrderID:        chi.URLParam(r, "orderID"),
		Status:         services.OrderStatus(strings.ToUpper(strings.TrimSpace(req.Status))),
		TrackingNumber: strings.TrimSpace(req.TrackingNumber),
		TrackingURL:    strings.TrimSpace(req.TrackingURL),
		ActorID:        identity.UID,
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, encodeOrderView(order))
}

func (h *AdminHandlers) cancelOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		writeOrderError(ctx, w, services.ErrOrderUnavailable)
		return
	}

	var req cancelOrderRequest
	if !decodeAdminRequest(ctx, w, r, &req) {
		return
	}

	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}

	order, err := h.orders.Cancel(ctx, services.CancelOrderCommand{
		OrderID: chi.URLParam(r, "orderID"),
		Reason:  strings.TrimSpace(req.Reason),
		ActorID: identity.UID,
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, encodeOrderView(order))
}

func (h *AdminHandlers) refundOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		writeOrderError(ctx, w, services.ErrOrderUnavailable)
		return
	}

	var req refundOrderRequest
	if !decodeAdminRequest(ctx, w, r, &req) {
		return
	}

	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}

	order, err := h.orders.Refund(ctx, services.RefundOrderCommand{
		OrderID: chi.URLParam(r, "orderID"),
		Reason:  strings.TrimSpace(req.Reason),
		ActorID: identity.UID,
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, encodeOrderView(order))
}

func decodeAdminRequest(ctx context.Context, w http.ResponseWriter, r *http.Request, dst any) bool {
	body, err := readLimitedBody(r, maxAdminRequestBody)
	if err != nil {
		writeBodyError(ctx, w, err)
		return false
	}
	if err := json.Unmarshal(body, dst); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body must be valid JSON", http.StatusBadRequest))
		return false
	}
	return true
}

func encodeStockView(stock services.ProductStockView) stockView {
	view := stockView{
		ProductID:  stock.ProductID,
		Name:       stock.Name,
		CategoryID: stock.CategoryID,
		Inventory:  stock.Inventory,
		TotalStock: stock.TotalStock,
		Status:     string(stock.Status),
	}
	for _, variant := range stock.Variants {
		view.Variants = append(view.Variants, stockVariantView{
			ID:       variant.ID,
			Size:     variant.Size,
			Color:    variant.Color,
			Quantity: variant.Quantity,
		})
	}
	return view
}

func encodeAdjustmentView(result services.InventoryAdjustmentView) adjustmentResultView {
	return adjustmentResultView{
		ProductID:        result.ProductID,
		VariantID:        result.VariantID,
		PreviousQuantity: result.PreviousQuantity,
		NewQuantity:      result.NewQuantity,
		Status:           string(result.Status),
		Error:            result.Error,
	}
}

func writeInventoryError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrInventoryInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid inventory adjustment", http.StatusBadRequest))
	case errors.Is(err, services.ErrInventoryProductNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("product_not_found", "product not found", http.StatusNotFound))
	case errors.Is(err, services.ErrInventoryUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("inventory_unavailable", "inventory service unavailable", http.StatusServiceUnavailable))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("inventory_error", "failed to process inventory request", http.StatusInternalServerError))
	}
}

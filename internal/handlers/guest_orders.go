package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ramsey2004/homekraft-api/internal/platform/httpx"
	"github.com/ramsey2004/homekraft-api/internal/services"
)

const (
	guestRateLimit  = 30
	guestRateWindow = time.Minute
)

// GuestOrderHandlers exposes the unauthenticated checkout and lookup path.
// Requests are rate limited per client IP since there is no identity to bind to.
type GuestOrderHandlers struct {
	guest   services.GuestOrderService
	limiter rateLimiter
}

// NewGuestOrderHandlers constructs the guest order handlers.
func NewGuestOrderHandlers(guest services.GuestOrderService) *GuestOrderHandlers {
	return &GuestOrderHandlers{
		guest:   guest,
		limiter: newSimpleRateLimiter(guestRateLimit, guestRateWindow, nil),
	}
}

// Routes registers guest order endpoints under the provided router.
func (h *GuestOrderHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/guest", h.placeGuestOrder)
	r.Get("/guest", h.lookupGuestOrder)
}

type guestContactRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

type guestCheckoutRequest struct {
	checkoutRequest
	Guest guestContactRequest `json:"guest"`
}

func (h *GuestOrderHandlers) placeGuestOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.guest == nil {
		httpx.WriteError(ctx, w, httpx.NewError("checkout_unavailable", "checkout service unavailable", http.StatusServiceUnavailable))
		return
	}
	if !h.allow(r) {
		httpx.WriteError(ctx, w, httpx.NewError("rate_limited", "too many requests", http.StatusTooManyRequests))
		return
	}

	body, err := readLimitedBody(r, maxCheckoutRequestBody)
	if err != nil {
		writeBodyError(ctx, w, err)
		return
	}
	var req guestCheckoutRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body must be valid JSON", http.StatusBadRequest))
		return
	}
	if len(req.Items) == 0 {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "at least one item is required", http.StatusBadRequest))
		return
	}

	guest := &services.GuestContact{
		Name:  req.Guest.Name,
		Email: req.Guest.Email,
		Phone: req.Guest.Phone,
	}
	result, err := h.guest.Checkout(ctx, checkoutCommandFromRequest(req.checkoutRequest, "", guest))
	if err != nil {
		if errors.Is(err, services.ErrGuestOrderUnavailable) {
			httpx.WriteError(ctx, w, httpx.NewError("checkout_unavailable", "checkout service unavailable", http.StatusServiceUnavailable))
			return
		}
		writeCheckoutError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusCreated, checkoutResponse{
		Order:   encodeOrderView(result.Order),
		Payment: encodePaymentInstructions(result.Payment),
	})
}

func (h *GuestOrderHandlers) lookupGuestOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.guest == nil {
		httpx.WriteError(ctx, w, httpx.NewError("orders_unavailable", "guest order service unavailable", http.StatusServiceUnavailable))
		return
	}
	if !h.allow(r) {
		httpx.WriteError(ctx, w, httpx.NewError("rate_limited", "too many requests", http.StatusTooManyRequests))
		return
	}

	query := r.URL.Query()
	order, err := h.guest.Lookup(ctx, services.GuestOrderLookupCommand{
		OrderNumber: query.Get("orderNumber"),
		Email:       query.Get("email"),
	})
	if err != nil {
		writeGuestOrderError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, encodeOrderView(order))
}

func (h *GuestOrderHandlers) allow(r *http.Request) bool {
	if h.limiter == nil {
		return true
	}
	key := strings.TrimSpace(r.RemoteAddr)
	if host := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); host != "" {
		if first, _, found := strings.Cut(host, ","); found {
			key = strings.TrimSpace(first)
		} else {
			key = host
		}
	}
	return h.limiter.Allow(key)
}

func writeGuestOrderError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrGuestOrderInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "orderNumber and email are required", http.StatusBadRequest))
	case errors.Is(err, services.ErrGuestOrderNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("order_not_found", "order not found", http.StatusNotFound))
	case errors.Is(err, services.ErrGuestOrderUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("orders_unavailable", "guest order service unavailable", http.StatusServiceUnavailable))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("order_error", "failed to process guest order request", http.StatusInternalServerError))
	}
}

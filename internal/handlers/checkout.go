package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	domain "github.com/ramsey2004/homekraft-api/internal/domain"
	"github.com/ramsey2004/homekraft-api/internal/platform/auth"
	"github.com/ramsey2004/homekraft-api/internal/platform/httpx"
	"github.com/ramsey2004/homekraft-api/internal/services"
)

const maxCheckoutRequestBody = 16 * 1024

// CheckoutHandlers exposes order placement and payment confirmation for
// authenticated buyers.
type CheckoutHandlers struct {
	authn    *auth.Authenticator
	checkout services.CheckoutService
}

// NewCheckoutHandlers constructs checkout handlers guarded by Firebase authentication.
func NewCheckoutHandlers(authn *auth.Authenticator, checkout services.CheckoutService) *CheckoutHandlers {
	return &CheckoutHandlers{
		authn:    authn,
		checkout: checkout,
	}
}

// Routes registers checkout endpoints under the provided router.
func (h *CheckoutHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	group := r
	if h.authn != nil {
		group = group.With(h.authn.RequireFirebaseAuth())
	}
	group.Post("/", h.placeOrder)
	// Verification is PUT on the checkout resource; the /confirm alias stays
	// for clients that cannot issue PUT.
	group.Put("/", h.confirmPayment)
	group.Post("/confirm", h.confirmPayment)
	group.Post("/retry", h.retryPayment)
}

type checkoutItemRequest struct {
	ProductID string  `json:"productId"`
	VariantID string  `json:"variantId"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unitPrice"`
}

type checkoutAddressRequest struct {
	Name       string `json:"name"`
	Line1      string `json:"line1"`
	Line2      string `json:"line2"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postalCode"`
	Country    string `json:"country"`
	Phone      string `json:"phone"`
}

type checkoutRequest struct {
	Items           []checkoutItemRequest  `json:"items"`
	DiscountCode    string                 `json:"discountCode"`
	PaymentMethod   string                 `json:"paymentMethod"`
	ShippingAddress checkoutAddressRequest `json:"shippingAddress"`
	Metadata        map[string]string      `json:"metadata"`
}

type checkoutResponse struct {
	Order   orderView                `json:"order"`
	Payment *paymentInstructionsView `json:"payment,omitempty"`
}

type confirmPaymentRequest struct {
	OrderID   string `json:"orderId"`
	PaymentID string `json:"paymentId"`
	Signature string `json:"signature"`
}

type retryPaymentRequest struct {
	OrderID string `json:"orderId"`
}

func (h *CheckoutHandlers) placeOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.checkout == nil {
		httpx.WriteError(ctx, w, httpx.NewError("checkout_unavailable", "checkout service unavailable", http.StatusServiceUnavailable))
		return
	}

	identity, ok := auth.IdentityFromContext(ctx)
	if !ok || identity == nil || strings.TrimSpace(identity.UID) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return
	}

	req, ok := decodeCheckoutRequest(ctx, w, r)
	if !ok {
		return
	}

	cmd := checkoutCommandFromRequest(req, identity.UID, nil)
	cmd.UserEmail = identity.Email
	result, err := h.checkout.Checkout(ctx, cmd)
	if err != nil {
		writeCheckoutError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusCreated, checkoutResponse{
		Order:   encodeOrderView(result.Order),
		Payment: encodePaymentInstructions(result.Payment),
	})
}

func (h *CheckoutHandlers) confirmPayment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.checkout == nil {
		httpx.WriteError(ctx, w, httpx.NewError("checkout_unavailable", "checkout service unavailable", http.StatusServiceUnavailable))
		return
	}

	body, err := readLimitedBody(r, maxCheckoutRequestBody)
	if err != nil {
		writeBodyError(ctx, w, err)
		return
	}
	var req confirmPaymentRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body must be valid JSON", http.StatusBadRequest))
		return
	}
	if strings.TrimSpace(req.OrderID) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "orderId is required", http.StatusBadRequest))
		return
	}

	order, err := h.checkout.ConfirmPayment(ctx, services.ConfirmPaymentCommand{
		OrderID:   req.OrderID,
		PaymentID: req.PaymentID,
		Signature: req.Signature,
	})
	if err != nil {
		writeCheckoutError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, encodeOrderView(order))
}

func (h *CheckoutHandlers) retryPayment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.checkout == nil {
		httpx.WriteError(ctx, w, httpx.NewError("checkout_unavailable", "checkout service unavailable", http.StatusServiceUnavailable))
		return
	}

	identity, ok := auth.IdentityFromContext(ctx)
	if !ok || identity == nil || strings.TrimSpace(identity.UID) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return
	}

	body, err := readLimitedBody(r, maxCheckoutRequestBody)
	if err != nil {
		writeBodyError(ctx, w, err)
		return
	}
	var req retryPaymentRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body must be valid JSON", http.StatusBadRequest))
		return
	}
	if strings.TrimSpace(req.OrderID) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "orderId is required", http.StatusBadRequest))
		return
	}

	result, err := h.checkout.RetryPayment(ctx, services.RetryPaymentCommand{
		OrderID: req.OrderID,
		UserID:  identity.UID,
	})
	if err != nil {
		writeCheckoutError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, checkoutResponse{
		Order:   encodeOrderView(result.Order),
		Payment: encodePaymentInstructions(result.Payment),
	})
}

func decodeCheckoutRequest(ctx context.Context, w http.ResponseWriter, r *http.Request) (checkoutRequest, bool) {
	var req checkoutRequest
	body, err := readLimitedBody(r, maxCheckoutRequestBody)
	if err != nil {
		writeBodyError(ctx, w, err)
		return req, false
	}
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body must be valid JSON", http.StatusBadRequest))
		return req, false
	}
	if len(req.Items) == 0 {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "at least one item is required", http.StatusBadRequest))
		return req, false
	}
	return req, true
}

func checkoutCommandFromRequest(req checkoutRequest, userID string, guest *services.GuestContact) services.CheckoutCommand {
	items := make([]services.CheckoutItemInput, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, services.CheckoutItemInput{
			ProductID: item.ProductID,
			VariantID: item.VariantID,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		})
	}
	return services.CheckoutCommand{
		UserID:        userID,
		Guest:         guest,
		Items:         items,
		DiscountCode:  req.DiscountCode,
		PaymentMethod: domain.PaymentMethod(strings.ToLower(strings.TrimSpace(req.PaymentMethod))),
		ShippingAddress: services.Address{
			Name:       req.ShippingAddress.Name,
			Line1:      req.ShippingAddress.Line1,
			Line2:      req.ShippingAddress.Line2,
			City:       req.ShippingAddress.City,
			State:      req.ShippingAddress.State,
			PostalCode: req.ShippingAddress.PostalCode,
			Country:    req.ShippingAddress.Country,
			Phone:      req.ShippingAddress.Phone,
		},
		Metadata: req.Metadata,
	}
}

func writeBodyError(ctx context.Context, w http.ResponseWriter, err error) {
	status := http.StatusBadRequest
	if errors.Is(err, errBodyTooLarge) {
		status = http.StatusRequestEntityTooLarge
	}
	httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), status))
}

func writeCheckoutError(ctx context.Context, w http.ResponseWriter, err error) {
	var (
		notFound *services.ProductNotFoundError
		drift    *services.PriceDriftError
		initErr  *services.PaymentInitError
	)
	switch {
	case errors.As(err, &notFound):
		httpx.WriteError(ctx, w, httpx.NewError("product_not_found", notFound.Error(), http.StatusBadRequest))
	case errors.As(err, &drift):
		httpx.WriteError(ctx, w, httpx.NewError("price_drift", "item prices have changed; refresh and retry", http.StatusBadRequest))
	case errors.As(err, &initErr):
		httpx.WriteError(ctx, w, httpx.NewError("payment_init_failed", "order was placed but payment could not be started; retry payment", http.StatusBadGateway).
			WithDetails(map[string]any{"orderId": initErr.OrderID}))
	case errors.Is(err, services.ErrInvalidDiscount):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_discount", "discount code is invalid or expired", http.StatusBadRequest))
	case errors.Is(err, services.ErrCheckoutInvalidInput), errors.Is(err, services.ErrPricingInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "checkout request is invalid", http.StatusBadRequest))
	case errors.Is(err, services.ErrOrderNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("order_not_found", "order not found", http.StatusNotFound))
	case errors.Is(err, services.ErrOrderNotConfirmable):
		httpx.WriteError(ctx, w, httpx.NewError("order_not_confirmable", "order is cancelled or refunded", http.StatusConflict))
	case errors.Is(err, services.ErrPaymentVerificationFailed):
		httpx.WriteError(ctx, w, httpx.NewError("payment_verification_failed", "payment could not be verified", http.StatusBadRequest))
	case errors.Is(err, services.ErrCheckoutUnavailable),
		errors.Is(err, services.ErrPricingUnavailable),
		errors.Is(err, services.ErrDiscountUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("checkout_unavailable", "checkout service unavailable", http.StatusServiceUnavailable))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("checkout_error", "failed to process checkout request", http.StatusInternalServerError))
	}
}

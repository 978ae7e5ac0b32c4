package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/ramsey2004/homekraft-api/internal/domain"
	"github.com/ramsey2004/homekraft-api/internal/payments"
	"github.com/ramsey2004/homekraft-api/internal/platform/textutil"
	"github.com/ramsey2004/homekraft-api/internal/repositories"
)

const (
	defaultCurrency = "INR"

	emailTemplateOrderConfirmation = "order_confirmation"
	emailTemplateOrderShipped      = "order_shipped"
)

var (
	// ErrCheckoutInvalidInput indicates the caller supplied invalid checkout parameters.
	ErrCheckoutInvalidInput = errors.New("checkout: invalid input")
	// ErrCheckoutUnavailable indicates checkout dependencies are currently unavailable.
	ErrCheckoutUnavailable = errors.New("checkout: unavailable")
	// ErrPaymentVerificationFailed indicates the gateway rejected the reported payment.
	ErrPaymentVerificationFailed = errors.New("checkout: payment verification failed")
	// ErrOrderNotConfirmable indicates the order is cancelled or refunded and
	// can no longer be confirmed.
	ErrOrderNotConfirmable = errors.New("checkout: order cannot be confirmed")
)

// PaymentInitError reports a gateway failure that happened after the order
// was durably written. The order stays PENDING; it is never rolled back.
type PaymentInitError struct {
	OrderID string
	Err     error
}

func (e *PaymentInitError) Error() string {
	return fmt.Sprintf("checkout: payment initialisation failed for order %s: %v", e.OrderID, e.Err)
}

func (e *PaymentInitError) Unwrap() error {
	return e.Err
}

// ShippingPolicy computes the shipping charge for an order subtotal.
type ShippingPolicy struct {
	FlatRate  float64
	FreeAbove float64
}

// Cost returns the shipping charge for the discounted subtotal.
func (p ShippingPolicy) Cost(subtotal float64) float64 {
	if p.FreeAbove > 0 && subtotal >= p.FreeAbove {
		return 0
	}
	return p.FlatRate
}

// CheckoutServiceDeps wires the dependencies required by the checkout service.
type CheckoutServiceDeps struct {
	Orders      repositories.OrderRepository
	PaymentLogs repositories.PaymentLogRepository
	Analytics   repositories.AnalyticsRepository
	Pricing     *PricingValidator
	Discounts   *DiscountEngine
	Inventory   InventoryService
	Gateways    *payments.Registry

	Emails    OrderEmailPublisher
	Events    AnalyticsPublisher
	Clock     func() time.Time
	Logger    Logger
	NewID     func() string
	RandomInt func(n int) int

	Currency      string
	Shipping      ShippingPolicy
	RazorpayKeyID string
}

type checkoutService struct {
	orders      repositories.OrderRepository
	paymentLogs repositories.PaymentLogRepository
	analytics   repositories.AnalyticsRepository
	pricing     *PricingValidator
	discounts   *DiscountEngine
	inventory   InventoryService
	gateways    *payments.Registry

	emails    OrderEmailPublisher
	events    AnalyticsPublisher
	now       func() time.Time
	logger    Logger
	newID     func() string
	randomInt func(n int) int

	currency      string
	shipping      ShippingPolicy
	razorpayKeyID string
}

// NewCheckoutService constructs a CheckoutService validating required dependencies.
func NewCheckoutService(deps CheckoutServiceDeps) (CheckoutService, error) {
	if deps.Orders == nil {
		return nil, errors.New("checkout service: order repository is required")
	}
	if deps.Pricing == nil {
		return nil, errors.New("checkout service: pricing validator is required")
	}
	if deps.Discounts == nil {
		return nil, errors.New("checkout service: discount engine is required")
	}
	if deps.Inventory == nil {
		return nil, errors.New("checkout service: inventory service is required")
	}
	if deps.Gateways == nil {
		return nil, errors.New("checkout service: gateway registry is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	newID := deps.NewID
	if newID == nil {
		newID = func() string { return ulid.Make().String() }
	}
	randomInt := deps.RandomInt
	if randomInt == nil {
		randomInt = rand.IntN
	}
	currency := strings.ToUpper(strings.TrimSpace(deps.Currency))
	if currency == "" {
		currency = defaultCurrency
	}

	return &checkoutService{
		orders:      deps.Orders,
		paymentLogs: deps.PaymentLogs,
		analytics:   deps.Analytics,
		pricing:     deps.Pricing,
		discounts:   deps.Discounts,
		inventory:   deps.Inventory,
		gateways:    deps.Gateways,
		emails:      deps.Emails,
		events:      deps.Events,
		now: func() time.Time {
			return clock().UTC()
		},
		logger:        logger,
		newID:         newID,
		randomInt:     randomInt,
		currency:      currency,
		shipping:      deps.Shipping,
		razorpayKeyID: strings.TrimSpace(deps.RazorpayKeyID),
	}, nil
}

// Checkout validates pricing and discounts, writes the order atomically, then
// opens the gateway payment. A gateway failure after the write leaves the
// order PENDING for a later retry; it is never rolled back.
func (s *checkoutService) Checkout(ctx context.Context, cmd CheckoutCommand) (CheckoutResult, error) {
	if s == nil || s.orders == nil {
		return CheckoutResult{}, ErrCheckoutUnavailable
	}
	if err := validateCheckoutCommand(cmd); err != nil {
		return CheckoutResult{}, err
	}

	lines, subtotal, err := s.pricing.ValidateItems(ctx, cmd.Items)
	if err != nil {
		return CheckoutResult{}, err
	}

	discounted := subtotal
	var discountAmount float64
	var discountID string
	if code := strings.TrimSpace(cmd.DiscountCode); code != "" {
		application, err := s.discounts.Apply(ctx, code, subtotal)
		if err != nil {
			return CheckoutResult{}, err
		}
		discounted = application.Subtotal
		discountAmount = application.Amount
		discountID = application.Discount.ID
	}

	shippingCost := s.shipping.Cost(discounted)
	total := discounted + shippingCost
	now := s.now()

	metadata := textutil.NormalizeStringMap(cmd.Metadata)
	// Registered buyers carry their address on the identity token, not the
	// body. Persist it so confirmation emails work after a later lookup.
	if email := textutil.FoldLower(cmd.UserEmail); email != "" && metadata["email"] == "" {
		if metadata == nil {
			metadata = map[string]string{}
		}
		metadata["email"] = email
	}

	order := domain.Order{
		ID:              s.newID(),
		OrderNumber:     s.orderNumber(now),
		UserID:          strings.TrimSpace(cmd.UserID),
		Guest:           normaliseGuest(cmd.Guest),
		Status:          domain.OrderStatusPending,
		PaymentMethod:   cmd.PaymentMethod,
		PaymentStatus:   domain.PaymentStatusPending,
		Items:           lines,
		Subtotal:        subtotal,
		DiscountAmount:  discountAmount,
		DiscountID:      discountID,
		ShippingCost:    shippingCost,
		Total:           total,
		Currency:        s.currency,
		ShippingAddress: cmd.ShippingAddress,
		Metadata:        metadata,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if cmd.PaymentMethod == domain.PaymentMethodCOD {
		order.Status = domain.OrderStatusConfirmed
		order.ConfirmedAt = &now
	}

	saved, err := s.insertOrder(ctx, order, now)
	if err != nil {
		return CheckoutResult{}, err
	}

	s.recordEvent(ctx, domain.AnalyticsEvent{
		Type:    domain.AnalyticsEventCheckoutStarted,
		OrderID: saved.ID,
		UserID:  saved.UserID,
		Payload: map[string]any{
			"orderNumber": saved.OrderNumber,
			"total":       saved.Total,
			"method":      string(saved.PaymentMethod),
		},
		CreatedAt: now,
	})

	if saved.PaymentMethod == domain.PaymentMethodCOD {
		s.finaliseConfirmedOrder(ctx, saved)
		return CheckoutResult{Order: saved}, nil
	}

	instructions, err := s.openPayment(ctx, &saved)
	if err != nil {
		return CheckoutResult{}, &PaymentInitError{OrderID: saved.ID, Err: err}
	}
	return CheckoutResult{Order: saved, Payment: instructions}, nil
}

// ConfirmPayment verifies the reported gateway payment and settles the order.
// Confirming an already-confirmed order is a no-op returning the order as-is.
func (s *checkoutService) ConfirmPayment(ctx context.Context, cmd ConfirmPaymentCommand) (Order, error) {
	if s == nil || s.orders == nil {
		return Order{}, ErrCheckoutUnavailable
	}
	orderID := strings.TrimSpace(cmd.OrderID)
	if orderID == "" {
		return Order{}, ErrCheckoutInvalidInput
	}

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return Order{}, s.translateOrderError(err)
	}

	switch order.Status {
	case domain.OrderStatusPending:
		// fall through to verification
	case domain.OrderStatusCancelled, domain.OrderStatusRefunded:
		return Order{}, ErrOrderNotConfirmable
	default:
		return order, nil
	}

	gateway, err := s.gateways.Resolve(order.PaymentMethod)
	if err != nil {
		return Order{}, ErrCheckoutInvalidInput
	}

	intentID := s.intentIDForOrder(ctx, order)
	if intentID == "" {
		s.logger(ctx, "checkout.confirm_missing_intent", map[string]any{"orderId": order.ID})
		return Order{}, ErrPaymentVerificationFailed
	}

	result, err := gateway.Confirm(ctx, payments.ConfirmInput{
		IntentID:  intentID,
		PaymentID: strings.TrimSpace(cmd.PaymentID),
		Signature: strings.TrimSpace(cmd.Signature),
	})
	if err != nil || result.Status != payments.StatusSucceeded {
		s.logger(ctx, "checkout.confirm_rejected", map[string]any{
			"orderId": order.ID,
			"gateway": gateway.Name(),
			"error":   errString(err),
		})
		s.markPaymentLog(ctx, order.ID, domain.PaymentLogStatusFailed, "")
		if err != nil {
			return Order{}, fmt.Errorf("%w: %w", ErrPaymentVerificationFailed, err)
		}
		return Order{}, ErrPaymentVerificationFailed
	}

	now := s.now()
	order.Status = domain.OrderStatusConfirmed
	order.PaymentStatus = domain.PaymentStatusCompleted
	order.ConfirmedAt = &now
	order.UpdatedAt = now

	updated, err := s.orders.Update(ctx, order)
	if err != nil {
		return Order{}, s.translateOrderError(err)
	}

	s.markPaymentLog(ctx, updated.ID, domain.PaymentLogStatusCompleted, result.TransactionID)
	s.finaliseConfirmedOrder(ctx, updated)
	return updated, nil
}

// RetryPayment re-opens the gateway payment for a PENDING order. The gateway
// call carries the same idempotency key as the original attempt, so a retry
// after a transient failure resumes the existing intent instead of charging
// twice.
func (s *checkoutService) RetryPayment(ctx context.Context, cmd RetryPaymentCommand) (CheckoutResult, error) {
	if s == nil || s.orders == nil {
		return CheckoutResult{}, ErrCheckoutUnavailable
	}
	orderID := strings.TrimSpace(cmd.OrderID)
	if orderID == "" {
		return CheckoutResult{}, ErrCheckoutInvalidInput
	}

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return CheckoutResult{}, s.translateOrderError(err)
	}
	if userID := strings.TrimSpace(cmd.UserID); userID != "" && order.UserID != userID {
		return CheckoutResult{}, ErrOrderNotFound
	}
	if order.PaymentMethod == domain.PaymentMethodCOD {
		return CheckoutResult{}, ErrCheckoutInvalidInput
	}
	if order.Status != domain.OrderStatusPending {
		return CheckoutResult{}, ErrOrderNotConfirmable
	}

	instructions, err := s.openPayment(ctx, &order)
	if err != nil {
		return CheckoutResult{}, &PaymentInitError{OrderID: order.ID, Err: err}
	}
	s.logger(ctx, "checkout.payment_retried", map[string]any{"orderId": order.ID})
	return CheckoutResult{Order: order, Payment: instructions}, nil
}

// insertOrder writes the aggregate, retrying once with a fresh order number
// when the random suffix collides.
func (s *checkoutService) insertOrder(ctx context.Context, order domain.Order, now time.Time) (domain.Order, error) {
	saved, err := s.orders.Insert(ctx, order)
	if err == nil {
		return saved, nil
	}
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) && repoErr.IsConflict() {
		order.OrderNumber = s.orderNumber(now)
		if saved, err = s.orders.Insert(ctx, order); err == nil {
			return saved, nil
		}
	}
	s.logger(ctx, "checkout.persist_failed", map[string]any{"error": err.Error()})
	return domain.Order{}, s.translateOrderError(err)
}

// openPayment creates the gateway intent and records the payment log. The
// order is already durable when this runs.
func (s *checkoutService) openPayment(ctx context.Context, order *domain.Order) (*PaymentInstructions, error) {
	gateway, err := s.gateways.Resolve(order.PaymentMethod)
	if err != nil {
		return nil, err
	}

	email := ""
	if order.Guest != nil {
		email = order.Guest.Email
	}
	intent, err := gateway.CreateIntent(ctx, payments.CreateIntentInput{
		Amount:        minorUnits(order.Total),
		Currency:      order.Currency,
		OrderID:       order.ID,
		OrderNumber:   order.OrderNumber,
		CustomerEmail: email,
		Metadata: map[string]string{
			"order_id":     order.ID,
			"order_number": order.OrderNumber,
		},
		IdempotencyKey: paymentIdempotencyKey(order.ID, gateway.Name()),
	})
	if err != nil {
		s.logger(ctx, "checkout.payment_init_failed", map[string]any{
			"orderId": order.ID,
			"gateway": gateway.Name(),
			"error":   err.Error(),
		})
		return nil, err
	}

	gatewayRef := intent.GatewayOrderID
	if gatewayRef == "" {
		gatewayRef = intent.IntentID
	}
	s.insertPaymentLog(ctx, domain.PaymentLog{
		OrderID:        order.ID,
		Gateway:        gateway.Name(),
		Method:         order.PaymentMethod,
		Amount:         order.Total,
		Currency:       order.Currency,
		Status:         domain.PaymentLogStatusPending,
		GatewayOrderID: gatewayRef,
		ClientSecret:   intent.ClientSecret,
		Raw:            intent.Raw,
	})

	// Keep the gateway reference on the order too so confirmation survives a
	// lost payment log.
	if order.Metadata == nil {
		order.Metadata = map[string]string{}
	}
	order.Metadata["gatewayOrderId"] = gatewayRef
	if updated, err := s.orders.Update(ctx, *order); err == nil {
		*order = updated
	} else {
		s.logger(ctx, "checkout.metadata_update_failed", map[string]any{
			"orderId": order.ID,
			"error":   err.Error(),
		})
	}

	instructions := &PaymentInstructions{
		Gateway:        gateway.Name(),
		GatewayOrderID: intent.GatewayOrderID,
		ClientSecret:   intent.ClientSecret,
		Amount:         intent.Amount,
		Currency:       intent.Currency,
	}
	if order.PaymentMethod == domain.PaymentMethodRazorpay {
		instructions.KeyID = s.razorpayKeyID
	}
	return instructions, nil
}

// finaliseConfirmedOrder runs the best-effort side effects of a confirmed
// order: stock decrement, discount usage, email, analytics. Every failure is
// logged and swallowed; the order stays confirmed regardless.
func (s *checkoutService) finaliseConfirmedOrder(ctx context.Context, order domain.Order) {
	adjustments := make([]InventoryAdjustCommand, 0, len(order.Items))
	for _, item := range order.Items {
		adjustments = append(adjustments, InventoryAdjustCommand{
			ProductID: item.ProductID,
			VariantID: item.VariantID,
			Mode:      repositories.AdjustmentDecrement,
			Quantity:  item.Quantity,
			Reason:    "order_confirmed",
		})
	}
	if len(adjustments) > 0 {
		if _, err := s.inventory.AdjustMany(ctx, InventoryBulkAdjustCommand{
			Adjustments: adjustments,
			Reason:      "order_confirmed",
		}); err != nil {
			s.logger(ctx, "checkout.stock_decrement_failed", map[string]any{
				"orderId": order.ID,
				"error":   err.Error(),
			})
		}
	}

	s.discounts.RecordUsage(ctx, order.DiscountID)
	s.sendOrderEmail(ctx, order, emailTemplateOrderConfirmation)
	s.recordEvent(ctx, domain.AnalyticsEvent{
		Type:    domain.AnalyticsEventPurchase,
		OrderID: order.ID,
		UserID:  order.UserID,
		Payload: map[string]any{
			"orderNumber": order.OrderNumber,
			"total":       order.Total,
			"method":      string(order.PaymentMethod),
		},
		CreatedAt: s.now(),
	})
}

func (s *checkoutService) sendOrderEmail(ctx context.Context, order domain.Order, template string) {
	if s.emails == nil {
		return
	}
	email := ""
	name := ""
	if order.Guest != nil {
		email = order.Guest.Email
		name = order.Guest.Name
	}
	if email == "" {
		email = strings.TrimSpace(order.Metadata["email"])
	}
	if email == "" {
		return
	}
	if _, err := s.emails.PublishOrderEmail(ctx, OrderEmailMessage{
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		Email:       email,
		Name:        name,
		Template:    template,
		Total:       order.Total,
		Currency:    order.Currency,
		QueuedAt:    s.now(),
	}); err != nil {
		s.logger(ctx, "checkout.email_publish_failed", map[string]any{
			"orderId":  order.ID,
			"template": template,
			"error":    err.Error(),
		})
	}
}

// recordEvent persists and publishes one analytics event, best-effort.
func (s *checkoutService) recordEvent(ctx context.Context, event domain.AnalyticsEvent) {
	if event.ID == "" {
		event.ID = s.newID()
	}
	if s.analytics != nil {
		if err := s.analytics.Insert(ctx, event); err != nil {
			s.logger(ctx, "checkout.analytics_persist_failed", map[string]any{
				"type":  string(event.Type),
				"error": err.Error(),
			})
		}
	}
	if s.events != nil {
		if _, err := s.events.PublishAnalyticsEvent(ctx, event); err != nil {
			s.logger(ctx, "checkout.analytics_publish_failed", map[string]any{
				"type":  string(event.Type),
				"error": err.Error(),
			})
		}
	}
}

func (s *checkoutService) insertPaymentLog(ctx context.Context, log domain.PaymentLog) {
	if s.paymentLogs == nil {
		return
	}
	if _, err := s.paymentLogs.Insert(ctx, log); err != nil {
		s.logger(ctx, "checkout.payment_log_failed", map[string]any{
			"orderId": log.OrderID,
			"error":   err.Error(),
		})
	}
}

func (s *checkoutService) markPaymentLog(ctx context.Context, orderID string, status domain.PaymentLogStatus, transactionID string) {
	if s.paymentLogs == nil {
		return
	}
	log, err := s.paymentLogs.FindByOrderID(ctx, orderID)
	if err != nil {
		s.logger(ctx, "checkout.payment_log_lookup_failed", map[string]any{
			"orderId": orderID,
			"error":   err.Error(),
		})
		return
	}
	log.Status = status
	if transactionID != "" {
		log.GatewayTransactionID = transactionID
	}
	if _, err := s.paymentLogs.Update(ctx, log); err != nil {
		s.logger(ctx, "checkout.payment_log_update_failed", map[string]any{
			"orderId": orderID,
			"error":   err.Error(),
		})
	}
}

// intentIDForOrder recovers the gateway reference from the payment log,
// falling back to the copy stored on the order.
func (s *checkoutService) intentIDForOrder(ctx context.Context, order domain.Order) string {
	if s.paymentLogs != nil {
		if log, err := s.paymentLogs.FindByOrderID(ctx, order.ID); err == nil {
			if ref := strings.TrimSpace(log.GatewayOrderID); ref != "" {
				return ref
			}
		}
	}
	return strings.TrimSpace(order.Metadata["gatewayOrderId"])
}

func (s *checkoutService) orderNumber(now time.Time) string {
	return fmt.Sprintf("ORD-%d-%06d", now.Unix(), s.randomInt(1_000_000))
}

func (s *checkoutService) translateOrderError(err error) error {
	if err == nil {
		return nil
	}
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return ErrOrderNotFound
		default:
			return ErrCheckoutUnavailable
		}
	}
	return ErrCheckoutUnavailable
}

func validateCheckoutCommand(cmd CheckoutCommand) error {
	if len(cmd.Items) == 0 {
		return ErrCheckoutInvalidInput
	}
	if !domain.ValidPaymentMethod(cmd.PaymentMethod) {
		return ErrCheckoutInvalidInput
	}

	userID := strings.TrimSpace(cmd.UserID)
	if userID == "" {
		if err := validateGuestContact(cmd.Guest); err != nil {
			return err
		}
	}

	addr := cmd.ShippingAddress
	if strings.TrimSpace(addr.Line1) == "" ||
		strings.TrimSpace(addr.City) == "" ||
		strings.TrimSpace(addr.PostalCode) == "" ||
		strings.TrimSpace(addr.Country) == "" {
		return ErrCheckoutInvalidInput
	}
	return nil
}

func validateGuestContact(guest *GuestContact) error {
	if guest == nil {
		return ErrCheckoutInvalidInput
	}
	if strings.TrimSpace(guest.Name) == "" {
		return ErrCheckoutInvalidInput
	}
	email := strings.TrimSpace(guest.Email)
	at := strings.Index(email, "@")
	if at <= 0 || at == len(email)-1 || strings.ContainsAny(email, " \t") {
		return ErrCheckoutInvalidInput
	}
	return nil
}

func normaliseGuest(guest *GuestContact) *domain.GuestContact {
	if guest == nil {
		return nil
	}
	return &domain.GuestContact{
		Name:  strings.TrimSpace(guest.Name),
		Email: textutil.FoldLower(guest.Email),
		Phone: strings.TrimSpace(guest.Phone),
	}
}

// minorUnits converts a major-unit amount to the gateway's integer minor
// units, rounding to the nearest paisa/cent.
func minorUnits(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

func paymentIdempotencyKey(orderID, gateway string) string {
	sum := sha256.Sum256([]byte(orderID + "|" + gateway))
	return hex.EncodeToString(sum[:])
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}


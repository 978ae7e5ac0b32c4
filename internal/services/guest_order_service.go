package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	domain "github.com/ramsey2004/homekraft-api/internal/domain"
	"github.com/ramsey2004/homekraft-api/internal/platform/textutil"
	"github.com/ramsey2004/homekraft-api/internal/repositories"
)

var (
	// ErrGuestOrderInvalidInput signals a missing or malformed lookup key.
	ErrGuestOrderInvalidInput = errors.New("guest order: invalid input")
	// ErrGuestOrderNotFound indicates no order matches the number and email pair.
	ErrGuestOrderNotFound = errors.New("guest order: not found")
	// ErrGuestOrderUnavailable indicates the order store is currently unreachable.
	ErrGuestOrderUnavailable = errors.New("guest order: unavailable")
)

// GuestOrderServiceDeps wires the guest checkout and lookup path.
type GuestOrderServiceDeps struct {
	Orders   repositories.OrderRepository
	Checkout CheckoutService
	Clock    func() time.Time
	Logger   Logger

	// DemoFallback serves a synthesized order when the store is unreachable,
	// keeping demo environments browsable without a live database.
	DemoFallback bool
}

type guestOrderService struct {
	orders       repositories.OrderRepository
	checkout     CheckoutService
	now          func() time.Time
	logger       Logger
	demoFallback bool
}

// NewGuestOrderService constructs a GuestOrderService validating required dependencies.
func NewGuestOrderService(deps GuestOrderServiceDeps) (GuestOrderService, error) {
	if deps.Orders == nil {
		return nil, errors.New("guest order service: order repository is required")
	}
	if deps.Checkout == nil {
		return nil, errors.New("guest order service: checkout service is required")
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &guestOrderService{
		orders:   deps.Orders,
		checkout: deps.Checkout,
		now: func() time.Time {
			return clock().UTC()
		},
		logger:       logger,
		demoFallback: deps.DemoFallback,
	}, nil
}

// Checkout places a guest order through the regular checkout saga. When the
// store cannot be reached and the demo fallback is enabled, it answers with a
// synthesized order marked as demo data instead of a hard failure.
func (s *guestOrderService) Checkout(ctx context.Context, cmd CheckoutCommand) (CheckoutResult, error) {
	if s == nil || s.checkout == nil {
		return CheckoutResult{}, ErrGuestOrderUnavailable
	}
	cmd.UserID = ""
	cmd.UserEmail = ""

	result, err := s.checkout.Checkout(ctx, cmd)
	if err == nil {
		return result, nil
	}
	if s.demoFallback && isStoreOutage(err) {
		s.logger(ctx, "guest_order.demo_checkout", map[string]any{
			"items": len(cmd.Items),
			"error": err.Error(),
		})
		return CheckoutResult{Order: s.demoCheckoutOrder(cmd)}, nil
	}
	return CheckoutResult{}, err
}

func isStoreOutage(err error) bool {
	return errors.Is(err, ErrCheckoutUnavailable) ||
		errors.Is(err, ErrPricingUnavailable) ||
		errors.Is(err, ErrDiscountUnavailable)
}

// demoCheckoutOrder prices the order from the client-sent figures. The real
// saga never trusts those, but here there is no store to consult and the
// result is labelled demo data.
func (s *guestOrderService) demoCheckoutOrder(cmd CheckoutCommand) domain.Order {
	now := s.now()
	items := make([]domain.OrderItem, 0, len(cmd.Items))
	var subtotal float64
	for _, item := range cmd.Items {
		qty := item.Quantity
		if qty < 1 {
			qty = 1
		}
		line := float64(qty) * item.UnitPrice
		subtotal += line
		items = append(items, domain.OrderItem{
			ProductID: item.ProductID,
			VariantID: item.VariantID,
			Name:      "Sample Product",
			Quantity:  qty,
			UnitPrice: item.UnitPrice,
			LineTotal: line,
		})
	}

	orderNumber := fmt.Sprintf("ORD-%d-%06d", now.Unix(), now.Nanosecond()%1_000_000)
	order := domain.Order{
		ID:              "demo_" + strings.ToLower(orderNumber),
		OrderNumber:     orderNumber,
		Status:          domain.OrderStatusConfirmed,
		PaymentMethod:   domain.PaymentMethodCOD,
		PaymentStatus:   domain.PaymentStatusPending,
		Items:           items,
		Subtotal:        subtotal,
		Total:           subtotal,
		Currency:        defaultCurrency,
		ShippingAddress: cmd.ShippingAddress,
		Metadata:        map[string]string{"demo": "true"},
		CreatedAt:       now,
		UpdatedAt:       now,
		ConfirmedAt:     &now,
	}
	if cmd.Guest != nil {
		order.Guest = &domain.GuestContact{
			Name:  strings.TrimSpace(cmd.Guest.Name),
			Email: textutil.FoldLower(cmd.Guest.Email),
			Phone: strings.TrimSpace(cmd.Guest.Phone),
		}
	}
	return order
}

// Lookup resolves a guest order by its natural key. The order number is
// matched uppercase and the email lowercase, mirroring how they are stored.
func (s *guestOrderService) Lookup(ctx context.Context, cmd GuestOrderLookupCommand) (Order, error) {
	if s == nil || s.orders == nil {
		return Order{}, ErrGuestOrderUnavailable
	}
	orderNumber := textutil.FoldUpper(cmd.OrderNumber)
	email := textutil.FoldLower(cmd.Email)
	if orderNumber == "" || email == "" || !strings.Contains(email, "@") {
		return Order{}, ErrGuestOrderInvalidInput
	}

	order, err := s.orders.FindByNumberAndEmail(ctx, orderNumber, email)
	if err == nil {
		return order, nil
	}

	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		if repoErr.IsNotFound() {
			return Order{}, ErrGuestOrderNotFound
		}
		if repoErr.IsUnavailable() && s.demoFallback {
			s.logger(ctx, "guest_order.demo_fallback", map[string]any{
				"orderNumber": orderNumber,
			})
			return s.demoOrder(orderNumber, email), nil
		}
	}
	s.logger(ctx, "guest_order.lookup_failed", map[string]any{
		"orderNumber": orderNumber,
		"error":       err.Error(),
	})
	return Order{}, ErrGuestOrderUnavailable
}

// demoOrder synthesizes a plausible confirmed order for demo environments.
func (s *guestOrderService) demoOrder(orderNumber, email string) domain.Order {
	now := s.now()
	confirmed := now.Add(-24 * time.Hour)
	return domain.Order{
		ID:          "demo_" + strings.ToLower(orderNumber),
		OrderNumber: orderNumber,
		Guest: &domain.GuestContact{
			Name:  "Demo Customer",
			Email: email,
		},
		Status:        domain.OrderStatusConfirmed,
		PaymentMethod: domain.PaymentMethodCOD,
		PaymentStatus: domain.PaymentStatusPending,
		Items: []domain.OrderItem{
			{
				ProductID: "demo_product",
				Name:      "Sample Product",
				Quantity:  1,
				UnitPrice: 499,
				LineTotal: 499,
			},
		},
		Subtotal:     499,
		ShippingCost: 49,
		Total:        548,
		Currency:     defaultCurrency,
		Metadata:     map[string]string{"demo": "true"},
		CreatedAt:    confirmed,
		UpdatedAt:    confirmed,
		ConfirmedAt:  &confirmed,
	}
}

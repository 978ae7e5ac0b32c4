package di

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	domain "github.com/ramsey2004/homekraft-api/internal/domain"
	"github.com/ramsey2004/homekraft-api/internal/payments"
	"github.com/ramsey2004/homekraft-api/internal/platform/config"
	"github.com/ramsey2004/homekraft-api/internal/platform/observability"
	"github.com/ramsey2004/homekraft-api/internal/repositories"
	"github.com/ramsey2004/homekraft-api/internal/services"
)

// Services bundles the service-layer contracts that handlers rely upon.
type Services struct {
	Checkout    services.CheckoutService
	Orders      services.OrderService
	Inventory   services.InventoryService
	GuestOrders services.GuestOrderService
	System      services.SystemService
}

// Deps carries everything NewContainer needs. Registry is mandatory; the
// publishers are optional and their absence downgrades emails and analytics
// mirroring to no-ops inside the services.
type Deps struct {
	Config   config.Config
	Registry repositories.Registry
	Emails   services.OrderEmailPublisher
	Events   services.AnalyticsPublisher
	Logger   *zap.Logger
	Build    services.BuildInfo
	Clock    func() time.Time
}

// Container wires repositories, payment gateways, and services for runtime use.
type Container struct {
	Config       config.Config
	Repositories repositories.Registry
	Gateways     *payments.Registry
	Services     Services
}

// NewContainer constructs the runtime dependency graph.
func NewContainer(ctx context.Context, deps Deps) (*Container, error) {
	if deps.Registry == nil {
		return nil, errors.New("repositories registry is required")
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}

	gateways, err := buildGateways(deps.Config.Payments, deps.Logger, deps.Clock)
	if err != nil {
		return nil, fmt.Errorf("build payment gateways: %w", err)
	}

	svc, err := buildServices(deps, gateways)
	if err != nil {
		return nil, err
	}

	return &Container{
		Config:       deps.Config,
		Repositories: deps.Registry,
		Gateways:     gateways,
		Services:     svc,
	}, nil
}

// Close releases repository clients and any other held resources.
func (c *Container) Close(ctx context.Context) error {
	if c == nil || c.Repositories == nil {
		return nil
	}
	return c.Repositories.Close(ctx)
}

func buildGateways(cfg config.PaymentsConfig, logger *zap.Logger, clock func() time.Time) (*payments.Registry, error) {
	registered := map[domain.PaymentMethod]payments.Gateway{
		domain.PaymentMethodCOD: payments.NewCODGateway(),
	}

	if strings.TrimSpace(cfg.RazorpayKeyID) != "" {
		razorpay, err := payments.NewRazorpayGateway(payments.RazorpayConfig{
			KeyID:     cfg.RazorpayKeyID,
			KeySecret: cfg.RazorpayKeySecret,
			BaseURL:   cfg.RazorpayBaseURL,
			Timeout:   cfg.GatewayTimeout,
			Logger:    gatewayLogger(logger.Named("razorpay")),
			Clock:     clock,
		})
		if err != nil {
			return nil, fmt.Errorf("razorpay: %w", err)
		}
		registered[domain.PaymentMethodRazorpay] = razorpay
	}

	if strings.TrimSpace(cfg.StripeAPIKey) != "" {
		stripe, err := payments.NewStripeGateway(payments.StripeConfig{
			APIKey: cfg.StripeAPIKey,
			Logger: gatewayLogger(logger.Named("stripe")),
			Clock:  clock,
		})
		if err != nil {
			return nil, fmt.Errorf("stripe: %w", err)
		}
		registered[domain.PaymentMethodStripe] = stripe
	}

	return payments.NewRegistry(registered)
}

func buildServices(deps Deps, gateways *payments.Registry) (Services, error) {
	var svc Services
	reg := deps.Registry
	logger := deps.Logger

	pricing, err := services.NewPricingValidator(services.PricingValidatorDeps{
		Products: reg.Products(),
		Clock:    deps.Clock,
		Logger:   serviceLogger(logger.Named("pricing")),
	})
	if err != nil {
		return Services{}, fmt.Errorf("build pricing validator: %w", err)
	}

	discounts, err := services.NewDiscountEngine(services.DiscountEngineDeps{
		Discounts: reg.Discounts(),
		Clock:     deps.Clock,
		Logger:    serviceLogger(logger.Named("discounts")),
	})
	if err != nil {
		return Services{}, fmt.Errorf("build discount engine: %w", err)
	}

	inventory, err := services.NewInventoryService(services.InventoryServiceDeps{
		Products:  reg.Products(),
		Analytics: reg.Analytics(),
		Events:    deps.Events,
		Clock:     deps.Clock,
		Logger:    serviceLogger(logger.Named("inventory")),
	})
	if err != nil {
		return Services{}, fmt.Errorf("build inventory service: %w", err)
	}
	svc.Inventory = inventory

	checkout, err := services.NewCheckoutService(services.CheckoutServiceDeps{
		Orders:      reg.Orders(),
		PaymentLogs: reg.PaymentLogs(),
		Analytics:   reg.Analytics(),
		Pricing:     pricing,
		Discounts:   discounts,
		Inventory:   inventory,
		Gateways:    gateways,
		Emails:      deps.Emails,
		Events:      deps.Events,
		Clock:       deps.Clock,
		Logger:      serviceLogger(logger.Named("checkout")),
		Currency:    deps.Config.Payments.Currency,
		Shipping: services.ShippingPolicy{
			FlatRate:  deps.Config.Shipping.FlatRate,
			FreeAbove: deps.Config.Shipping.FreeAbove,
		},
		RazorpayKeyID: deps.Config.Payments.RazorpayKeyID,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build checkout service: %w", err)
	}
	svc.Checkout = checkout

	orders, err := services.NewOrderService(services.OrderServiceDeps{
		Orders:      reg.Orders(),
		PaymentLogs: reg.PaymentLogs(),
		Gateways:    gateways,
		Inventory:   inventory,
		Emails:      deps.Emails,
		Clock:       deps.Clock,
		Logger:      serviceLogger(logger.Named("orders")),
	})
	if err != nil {
		return Services{}, fmt.Errorf("build order service: %w", err)
	}
	svc.Orders = orders

	guests, err := services.NewGuestOrderService(services.GuestOrderServiceDeps{
		Orders:       reg.Orders(),
		Checkout:     checkout,
		Clock:        deps.Clock,
		Logger:       serviceLogger(logger.Named("guest_orders")),
		DemoFallback: deps.Config.Guest.DemoFallback,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build guest order service: %w", err)
	}
	svc.GuestOrders = guests

	if healthRepo := reg.Health(); healthRepo != nil {
		system, err := services.NewSystemService(services.SystemServiceDeps{
			HealthRepository: healthRepo,
			Clock:            deps.Clock,
			Build:            deps.Build,
		})
		if err != nil {
			return Services{}, fmt.Errorf("build system service: %w", err)
		}
		svc.System = system
	}

	return svc, nil
}

func serviceLogger(logger *zap.Logger) services.Logger {
	return func(_ context.Context, event string, fields map[string]any) {
		logger.Info("service event", eventFields(event, fields)...)
	}
}

func gatewayLogger(logger *zap.Logger) payments.Logger {
	return func(_ context.Context, event string, fields map[string]any) {
		logger.Debug("gateway event", eventFields(event, fields)...)
	}
}

// eventFields converts a service event's field map into zap fields,
// redacting payment credentials and masking buyer contact details first.
func eventFields(event string, fields map[string]any) []zap.Field {
	redacted := observability.RedactFields(fields)
	zFields := make([]zap.Field, 0, len(redacted)+1)
	zFields = append(zFields, zap.String("event", event))
	for k, v := range redacted {
		zFields = append(zFields, zap.Any(k, v))
	}
	return zFields
}

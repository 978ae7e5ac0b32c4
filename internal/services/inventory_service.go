package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/ramsey2004/homekraft-api/internal/domain"
	"github.com/ramsey2004/homekraft-api/internal/repositories"
)

const (
	defaultStockPageSize = 50
	maxStockPageSize     = 200
	maxBulkAdjustments   = 100
)

var (
	// ErrInventoryInvalidInput signals the caller provided invalid arguments.
	ErrInventoryInvalidInput = errors.New("inventory: invalid input")
	// ErrInventoryProductNotFound indicates the product does not exist.
	ErrInventoryProductNotFound = errors.New("inventory: product not found")
	// ErrInventoryUnavailable indicates the product store is currently unreachable.
	ErrInventoryUnavailable = errors.New("inventory: unavailable")
)

// InventoryServiceDeps bundles the collaborators required to construct an inventory service.
type InventoryServiceDeps struct {
	Products  repositories.ProductRepository
	Analytics repositories.AnalyticsRepository
	Events    AnalyticsPublisher
	Clock     func() time.Time
	NewID     func() string
	Logger    Logger
}

type inventoryService struct {
	products  repositories.ProductRepository
	analytics repositories.AnalyticsRepository
	events    AnalyticsPublisher
	now       func() time.Time
	newID     func() string
	logger    Logger
}

// NewInventoryService constructs an InventoryService validating required dependencies.
func NewInventoryService(deps InventoryServiceDeps) (InventoryService, error) {
	if deps.Products == nil {
		return nil, errors.New("inventory service: product repository is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	newID := deps.NewID
	if newID == nil {
		newID = func() string { return ulid.Make().String() }
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &inventoryService{
		products:  deps.Products,
		analytics: deps.Analytics,
		events:    deps.Events,
		now: func() time.Time {
			return clock().UTC()
		},
		newID:  newID,
		logger: logger,
	}, nil
}

// Adjust applies one stock mutation and records the audit event.
func (s *inventoryService) Adjust(ctx context.Context, cmd InventoryAdjustCommand) (InventoryAdjustmentView, error) {
	if s == nil || s.products == nil {
		return InventoryAdjustmentView{}, ErrInventoryUnavailable
	}
	adjustment, err := buildAdjustment(cmd)
	if err != nil {
		return InventoryAdjustmentView{}, err
	}

	result, err := s.products.Adjust(ctx, adjustment)
	if err != nil {
		return InventoryAdjustmentView{}, s.translate(err)
	}

	view := adjustmentView(result)
	s.recordAdjustment(ctx, cmd, result)
	return view, nil
}

// AdjustMany applies each adjustment independently and reports per-item
// outcomes. A failed item never blocks the others.
func (s *inventoryService) AdjustMany(ctx context.Context, cmd InventoryBulkAdjustCommand) ([]InventoryAdjustmentView, error) {
	if s == nil || s.products == nil {
		return nil, ErrInventoryUnavailable
	}
	if len(cmd.Adjustments) == 0 || len(cmd.Adjustments) > maxBulkAdjustments {
		return nil, ErrInventoryInvalidInput
	}

	adjustments := make([]repositories.InventoryAdjustment, 0, len(cmd.Adjustments))
	for _, item := range cmd.Adjustments {
		if item.Reason == "" {
			item.Reason = cmd.Reason
		}
		adjustment, err := buildAdjustment(item)
		if err != nil {
			return nil, err
		}
		adjustments = append(adjustments, adjustment)
	}

	results, err := s.products.AdjustMany(ctx, adjustments)
	if err != nil {
		return nil, s.translate(err)
	}

	views := make([]InventoryAdjustmentView, 0, len(results))
	for i, result := range results {
		views = append(views, adjustmentView(result))
		if result.Err == nil {
			s.recordAdjustment(ctx, cmd.Adjustments[i], result)
		}
	}
	return views, nil
}

func (s *inventoryService) GetStock(ctx context.Context, productID string) (ProductStockView, error) {
	if s == nil || s.products == nil {
		return ProductStockView{}, ErrInventoryUnavailable
	}
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return ProductStockView{}, ErrInventoryInvalidInput
	}
	product, err := s.products.FindByID(ctx, productID)
	if err != nil {
		return ProductStockView{}, s.translate(err)
	}
	return stockView(product), nil
}

func (s *inventoryService) ListStock(ctx context.Context, query StockListQuery) (domain.CursorPage[ProductStockView], error) {
	if s == nil || s.products == nil {
		return domain.CursorPage[ProductStockView]{}, ErrInventoryUnavailable
	}
	filter := repositories.ProductListFilter{
		CategoryID: strings.TrimSpace(query.CategoryID),
		LowStock:   query.LowStock,
		Pagination: clampPagination(query.Pagination, defaultStockPageSize, maxStockPageSize),
	}
	page, err := s.products.List(ctx, filter)
	if err != nil {
		return domain.CursorPage[ProductStockView]{}, s.translate(err)
	}

	views := make([]ProductStockView, 0, len(page.Items))
	for _, product := range page.Items {
		views = append(views, stockView(product))
	}
	return domain.CursorPage[ProductStockView]{
		Items:         views,
		NextPageToken: page.NextPageToken,
	}, nil
}

// recordAdjustment persists and publishes the audit event, best-effort.
func (s *inventoryService) recordAdjustment(ctx context.Context, cmd InventoryAdjustCommand, result repositories.InventoryAdjustmentResult) {
	event := domain.AnalyticsEvent{
		ID:        s.newID(),
		Type:      domain.AnalyticsEventInventoryAdjusted,
		ProductID: result.ProductID,
		UserID:    cmd.ActorID,
		Payload: map[string]any{
			"variantId":        result.VariantID,
			"mode":             string(cmd.Mode),
			"previousQuantity": result.PreviousQuantity,
			"newQuantity":      result.NewQuantity,
			"reason":           cmd.Reason,
		},
		CreatedAt: s.now(),
	}
	if s.analytics != nil {
		if err := s.analytics.Insert(ctx, event); err != nil {
			s.logger(ctx, "inventory.audit_persist_failed", map[string]any{
				"productId": result.ProductID,
				"error":     err.Error(),
			})
		}
	}
	if s.events != nil {
		if _, err := s.events.PublishAnalyticsEvent(ctx, event); err != nil {
			s.logger(ctx, "inventory.audit_publish_failed", map[string]any{
				"productId": result.ProductID,
				"error":     err.Error(),
			})
		}
	}
}

func (s *inventoryService) translate(err error) error {
	if err == nil {
		return nil
	}
	var invErr *repositories.InventoryError
	if errors.As(err, &invErr) {
		switch invErr.Code {
		case repositories.InventoryErrorProductNotFound, repositories.InventoryErrorVariantNotFound:
			return ErrInventoryProductNotFound
		case repositories.InventoryErrorInvalidAdjustment:
			return ErrInventoryInvalidInput
		}
	}
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		if repoErr.IsNotFound() {
			return ErrInventoryProductNotFound
		}
	}
	return ErrInventoryUnavailable
}

func buildAdjustment(cmd InventoryAdjustCommand) (repositories.InventoryAdjustment, error) {
	productID := strings.TrimSpace(cmd.ProductID)
	if productID == "" {
		return repositories.InventoryAdjustment{}, ErrInventoryInvalidInput
	}
	switch cmd.Mode {
	case repositories.AdjustmentSet:
		if cmd.Quantity < 0 {
			return repositories.InventoryAdjustment{}, ErrInventoryInvalidInput
		}
	case repositories.AdjustmentIncrement, repositories.AdjustmentDecrement:
		if cmd.Quantity <= 0 {
			return repositories.InventoryAdjustment{}, ErrInventoryInvalidInput
		}
	default:
		return repositories.InventoryAdjustment{}, ErrInventoryInvalidInput
	}
	return repositories.InventoryAdjustment{
		ProductID: productID,
		VariantID: strings.TrimSpace(cmd.VariantID),
		Mode:      cmd.Mode,
		Quantity:  cmd.Quantity,
		Reason:    strings.TrimSpace(cmd.Reason),
	}, nil
}

func adjustmentView(result repositories.InventoryAdjustmentResult) InventoryAdjustmentView {
	view := InventoryAdjustmentView{
		ProductID:        result.ProductID,
		VariantID:        result.VariantID,
		PreviousQuantity: result.PreviousQuantity,
		NewQuantity:      result.NewQuantity,
		Status:           result.Status,
	}
	if result.Err != nil {
		view.Error = result.Err.Error()
	}
	return view
}

func stockView(product domain.Product) ProductStockView {
	total := product.TotalStock()
	return ProductStockView{
		ProductID:  product.ID,
		Name:       product.Name,
		CategoryID: product.CategoryID,
		Inventory:  product.Inventory,
		Variants:   product.Variants,
		TotalStock: total,
		Status:     domain.ClassifyStock(total),
	}
}

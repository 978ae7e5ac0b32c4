package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	domain "github.com/ramsey2004/homekraft-api/internal/domain"
	pfirestore "github.com/ramsey2004/homekraft-api/internal/platform/firestore"
	"github.com/ramsey2004/homekraft-api/internal/platform/pagination"
	"github.com/ramsey2004/homekraft-api/internal/repositories"
)

const (
	productsCollection = "products"

	lowStockCeiling = 10
)

// ProductRepository manages catalogue products and their stock counters in
// Firestore. Adjustments run inside a transaction so concurrent writers never
// observe torn counters.
type ProductRepository struct {
	provider *pfirestore.Provider
	products *pfirestore.BaseRepository[productDocument]
}

// NewProductRepository constructs a Firestore-backed product repository.
func NewProductRepository(provider *pfirestore.Provider) (*ProductRepository, error) {
	if provider == nil {
		return nil, errors.New("product repository requires firestore provider")
	}
	products := pfirestore.NewBaseRepository[productDocument](provider, productsCollection)
	return &ProductRepository{provider: provider, products: products}, nil
}

// FindByID loads a single product.
func (r *ProductRepository) FindByID(ctx context.Context, productID string) (domain.Product, error) {
	if r == nil || r.products == nil {
		return domain.Product{}, errors.New("product repository not initialised")
	}
	id := strings.TrimSpace(productID)
	if id == "" {
		return domain.Product{}, errors.New("product repository: id is required")
	}
	doc, err := r.products.Get(ctx, id)
	if err != nil {
		return domain.Product{}, err
	}
	return doc.Data.toDomain(doc.ID), nil
}

// FindMany loads the requested products in one round trip. Missing IDs are
// simply absent from the result map; the caller decides whether that is fatal.
func (r *ProductRepository) FindMany(ctx context.Context, productIDs []string) (map[string]domain.Product, error) {
	if r == nil || r.provider == nil {
		return nil, errors.New("product repository not initialised")
	}
	ids := make([]string, 0, len(productIDs))
	seen := make(map[string]struct{}, len(productIDs))
	for _, raw := range productIDs {
		id := strings.TrimSpace(raw)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return map[string]domain.Product{}, nil
	}

	client, err := r.provider.Client(ctx)
	if err != nil {
		return nil, err
	}
	refs := make([]*firestore.DocumentRef, len(ids))
	for i, id := range ids {
		refs[i] = client.Collection(productsCollection).Doc(id)
	}
	snaps, err := client.GetAll(ctx, refs)
	if err != nil {
		return nil, pfirestore.WrapError("products.findMany", err)
	}

	result := make(map[string]domain.Product, len(snaps))
	for _, snap := range snaps {
		if !snap.Exists() {
			continue
		}
		var doc productDocument
		if err := snap.DataTo(&doc); err != nil {
			return nil, fmt.Errorf("decode product %s: %w", snap.Ref.ID, err)
		}
		result[snap.Ref.ID] = doc.toDomain(snap.Ref.ID)
	}
	return result, nil
}

// List pages through the catalogue, optionally narrowed to a category or to
// products at or below the low-stock ceiling.
func (r *ProductRepository) List(ctx context.Context, filter repositories.ProductListFilter) (domain.CursorPage[domain.Product], error) {
	if r == nil || r.provider == nil {
		return domain.CursorPage[domain.Product]{}, errors.New("product repository not initialised")
	}

	pageSize := filter.Pagination.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}
	if pageSize > 200 {
		pageSize = 200
	}

	client, err := r.provider.Client(ctx)
	if err != nil {
		return domain.CursorPage[domain.Product]{}, pfirestore.WrapError("products.list", err)
	}

	query := client.Collection(productsCollection).Query
	if categoryID := strings.TrimSpace(filter.CategoryID); categoryID != "" {
		query = query.Where("categoryId", "==", categoryID)
	}
	if filter.LowStock {
		query = query.Where("totalStock", "<=", lowStockCeiling).OrderBy("totalStock", firestore.Asc)
	}
	query = query.OrderBy(firestore.DocumentID, firestore.Asc).Limit(pageSize + 1)

	if token := strings.TrimSpace(filter.Pagination.PageToken); token != "" {
		decoded, err := pagination.DecodeCursor[productPageToken](token)
		if err != nil {
			return domain.CursorPage[domain.Product]{}, pfirestore.WrapError("products.list", err)
		}
		if filter.LowStock {
			query = query.StartAfter(decoded.TotalStock, decoded.ID)
		} else {
			query = query.StartAfter(decoded.ID)
		}
	}

	iter := query.Documents(ctx)
	defer iter.Stop()

	var products []domain.Product
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return domain.CursorPage[domain.Product]{}, pfirestore.WrapError("products.list", err)
		}
		var doc productDocument
		if err := snap.DataTo(&doc); err != nil {
			return domain.CursorPage[domain.Product]{}, fmt.Errorf("decode product %s: %w", snap.Ref.ID, err)
		}
		products = append(products, doc.toDomain(snap.Ref.ID))
	}

	hasMore := len(products) > pageSize
	if hasMore {
		products = products[:pageSize]
	}
	var nextToken string
	if hasMore && len(products) > 0 {
		last := products[len(products)-1]
		encoded, err := pagination.EncodeCursor(productPageToken{ID: last.ID, TotalStock: last.TotalStock()})
		if err != nil {
			return domain.CursorPage[domain.Product]{}, pfirestore.WrapError("products.list", err)
		}
		nextToken = encoded
	}

	return domain.CursorPage[domain.Product]{Items: products, NextPageToken: nextToken}, nil
}

// Adjust applies one stock mutation transactionally. Decrements clamp at zero
// rather than failing, so oversells surface as out_of_stock instead of errors.
func (r *ProductRepository) Adjust(ctx context.Context, adjustment repositories.InventoryAdjustment) (repositories.InventoryAdjustmentResult, error) {
	if r == nil || r.provider == nil {
		return repositories.InventoryAdjustmentResult{}, errors.New("product repository not initialised")
	}
	productID := strings.TrimSpace(adjustment.ProductID)
	variantID := strings.TrimSpace(adjustment.VariantID)
	if productID == "" {
		return repositories.InventoryAdjustmentResult{}, repositories.NewInventoryError(repositories.InventoryErrorInvalidAdjustment, "inventory adjust: product id is required", nil)
	}
	if err := validateAdjustment(adjustment); err != nil {
		return repositories.InventoryAdjustmentResult{}, err
	}

	now := time.Now().UTC()
	var result repositories.InventoryAdjustmentResult
	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		docRef, err := r.products.DocumentRef(ctx, productID)
		if err != nil {
			return err
		}
		snap, err := tx.Get(docRef)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return repositories.NewInventoryError(repositories.InventoryErrorProductNotFound, fmt.Sprintf("product %s not found", productID), err)
			}
			return err
		}
		var doc productDocument
		if err := snap.DataTo(&doc); err != nil {
			return fmt.Errorf("decode product %s: %w", productID, err)
		}

		current, ok := doc.quantity(variantID)
		if !ok {
			return repositories.NewInventoryError(repositories.InventoryErrorVariantNotFound, fmt.Sprintf("variant %s not found on product %s", variantID, productID), nil)
		}

		next := applyAdjustment(current, adjustment.Mode, adjustment.Quantity)
		doc.setQuantity(variantID, next)
		doc.TotalStock = doc.totalStock()
		doc.UpdatedAt = now

		if err := tx.Set(docRef, doc); err != nil {
			return err
		}
		result = repositories.InventoryAdjustmentResult{
			ProductID:        productID,
			VariantID:        variantID,
			PreviousQuantity: current,
			NewQuantity:      next,
			Status:           domain.ClassifyStock(doc.TotalStock),
		}
		return nil
	})
	if err != nil {
		return repositories.InventoryAdjustmentResult{}, wrapInventoryError("products.adjust", err)
	}
	return result, nil
}

// AdjustMany applies each adjustment independently and reports per-item
// outcomes; one failing item never rolls back its siblings.
func (r *ProductRepository) AdjustMany(ctx context.Context, adjustments []repositories.InventoryAdjustment) ([]repositories.InventoryAdjustmentResult, error) {
	if r == nil || r.provider == nil {
		return nil, errors.New("product repository not initialised")
	}
	results := make([]repositories.InventoryAdjustmentResult, 0, len(adjustments))
	for _, adjustment := range adjustments {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		result, err := r.Adjust(ctx, adjustment)
		if err != nil {
			results = append(results, repositories.InventoryAdjustmentResult{
				ProductID: strings.TrimSpace(adjustment.ProductID),
				VariantID: strings.TrimSpace(adjustment.VariantID),
				Err:       err,
			})
			continue
		}
		results = append(results, result)
	}
	return results, nil
}

func validateAdjustment(adjustment repositories.InventoryAdjustment) error {
	switch adjustment.Mode {
	case repositories.AdjustmentSet:
		if adjustment.Quantity < 0 {
			return repositories.NewInventoryError(repositories.InventoryErrorInvalidAdjustment, "inventory adjust: set quantity must be >= 0", nil)
		}
	case repositories.AdjustmentIncrement, repositories.AdjustmentDecrement:
		if adjustment.Quantity <= 0 {
			return repositories.NewInventoryError(repositories.InventoryErrorInvalidAdjustment, fmt.Sprintf("inventory adjust: %s quantity must be > 0", adjustment.Mode), nil)
		}
	default:
		return repositories.NewInventoryError(repositories.InventoryErrorInvalidAdjustment, fmt.Sprintf("inventory adjust: unknown mode %q", adjustment.Mode), nil)
	}
	return nil
}

func applyAdjustment(current int, mode repositories.AdjustmentMode, quantity int) int {
	switch mode {
	case repositories.AdjustmentSet:
		return quantity
	case repositories.AdjustmentIncrement:
		return current + quantity
	case repositories.AdjustmentDecrement:
		next := current - quantity
		if next < 0 {
			next = 0
		}
		return next
	default:
		return current
	}
}

// Document structures -------------------------------------------------------

type productDocument struct {
	Name       string                   `firestore:"name"`
	CategoryID string                   `firestore:"categoryId,omitempty"`
	Price      float64                  `firestore:"price"`
	Inventory  int                      `firestore:"inventory"`
	Variants   []productVariantDocument `firestore:"variants,omitempty"`
	TotalStock int                      `firestore:"totalStock"`
	CreatedAt  time.Time                `firestore:"createdAt"`
	UpdatedAt  time.Time                `firestore:"updatedAt"`
}

type productVariantDocument struct {
	ID         string  `firestore:"id"`
	Size       string  `firestore:"size,omitempty"`
	Color      string  `firestore:"color,omitempty"`
	Quantity   int     `firestore:"quantity"`
	PriceDelta float64 `firestore:"priceDelta,omitempty"`
}

func (d productDocument) toDomain(id string) domain.Product {
	variants := make([]domain.ProductVariant, len(d.Variants))
	for i, v := range d.Variants {
		variants[i] = domain.ProductVariant{
			ID:         v.ID,
			Size:       v.Size,
			Color:      v.Color,
			Quantity:   v.Quantity,
			PriceDelta: v.PriceDelta,
		}
	}
	return domain.Product{
		ID:         id,
		Name:       d.Name,
		CategoryID: d.CategoryID,
		Price:      d.Price,
		Inventory:  d.Inventory,
		Variants:   variants,
		CreatedAt:  d.CreatedAt,
		UpdatedAt:  d.UpdatedAt,
	}
}

// quantity returns the counter targeted by variantID; an empty ID targets the
// base inventory.
func (d productDocument) quantity(variantID string) (int, bool) {
	if variantID == "" {
		return d.Inventory, true
	}
	for _, v := range d.Variants {
		if v.ID == variantID {
			return v.Quantity, true
		}
	}
	return 0, false
}

func (d *productDocument) setQuantity(variantID string, quantity int) {
	if variantID == "" {
		d.Inventory = quantity
		return
	}
	for i := range d.Variants {
		if d.Variants[i].ID == variantID {
			d.Variants[i].Quantity = quantity
			return
		}
	}
}

func (d productDocument) totalStock() int {
	total := d.Inventory
	for _, v := range d.Variants {
		total += v.Quantity
	}
	return total
}

type productPageToken struct {
	ID         string `json:"id"`
	TotalStock int    `json:"totalStock"`
}

func wrapInventoryError(op string, err error) error {
	if err == nil {
		return nil
	}
	var invErr *repositories.InventoryError
	if errors.As(err, &invErr) {
		if invErr.Op == "" {
			invErr.Op = op
		}
		return invErr
	}
	return pfirestore.WrapError(op, err)
}

// Ensure interface compliance.
var _ repositories.ProductRepository = (*ProductRepository)(nil)

package domain

import "time"

// StockStatus classifies a product's availability from its total stock.
type StockStatus string

const (
	// StockStatusOutOfStock indicates zero units remain.
	StockStatusOutOfStock StockStatus = "out_of_stock"
	// StockStatusCritical indicates five or fewer units remain.
	StockStatusCritical StockStatus = "critical"
	// StockStatusLow indicates ten or fewer units remain.
	StockStatusLow StockStatus = "low"
	// StockStatusInStock indicates healthy availability.
	StockStatusInStock StockStatus = "in_stock"
)

const (
	criticalStockThreshold = 5
	lowStockThreshold      = 10
)

// ProductVariant is a sellable size/colour combination with its own counter
// and an optional price delta over the base product price.
type ProductVariant struct {
	ID         string
	Size       string
	Color      string
	Quantity   int
	PriceDelta float64
}

// Product carries the authoritative price and inventory counters for a
// catalogue item. Catalogue presentation fields live elsewhere.
type Product struct {
	ID         string
	Name       string
	CategoryID string
	Price      float64
	Inventory  int
	Variants   []ProductVariant
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// TotalStock returns the base counter plus every variant quantity.
func (p Product) TotalStock() int {
	total := p.Inventory
	for _, v := range p.Variants {
		total += v.Quantity
	}
	return total
}

// UnitPrice returns the effective price for the given variant, falling back
// to the base price when the variant is unknown or empty.
func (p Product) UnitPrice(variantID string) float64 {
	if variantID == "" {
		return p.Price
	}
	for _, v := range p.Variants {
		if v.ID == variantID {
			return p.Price + v.PriceDelta
		}
	}
	return p.Price
}

// ClassifyStock maps a total stock count onto a StockStatus.
func ClassifyStock(total int) StockStatus {
	switch {
	case total <= 0:
		return StockStatusOutOfStock
	case total <= criticalStockThreshold:
		return StockStatusCritical
	case total <= lowStockThreshold:
		return StockStatusLow
	default:
		return StockStatusInStock
	}
}

// StockStatus classifies the product using its total stock.
func (p Product) StockStatus() StockStatus {
	return ClassifyStock(p.TotalStock())
}

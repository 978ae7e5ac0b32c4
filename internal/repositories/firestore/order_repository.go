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

const ordersCollection = "orders"

// OrderRepository persists order aggregates in Firestore. The order header and
// its line items live in one document, so a single Set is the durability
// boundary for checkout.
type OrderRepository struct {
	provider *pfirestore.Provider
	orders   *pfirestore.BaseRepository[orderDocument]
}

// NewOrderRepository constructs a Firestore-backed order repository.
func NewOrderRepository(provider *pfirestore.Provider) (*OrderRepository, error) {
	if provider == nil {
		return nil, errors.New("order repository requires firestore provider")
	}
	orders := pfirestore.NewBaseRepository[orderDocument](provider, ordersCollection)
	return &OrderRepository{provider: provider, orders: orders}, nil
}

// Insert stores a new order, rejecting duplicate order numbers.
func (r *OrderRepository) Insert(ctx context.Context, order domain.Order) (domain.Order, error) {
	if r == nil || r.provider == nil {
		return domain.Order{}, errors.New("order repository not initialised")
	}
	if strings.TrimSpace(order.OrderNumber) == "" {
		return domain.Order{}, errors.New("order repository: order number is required")
	}

	client, err := r.provider.Client(ctx)
	if err != nil {
		return domain.Order{}, err
	}
	coll := client.Collection(ordersCollection)

	now := time.Now().UTC()
	doc := encodeOrderDocument(order)
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	doc.UpdatedAt = now

	var saved domain.Order
	err = r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		query := coll.Where("orderNumber", "==", doc.OrderNumber).Limit(1)
		snaps, err := tx.Documents(query).GetAll()
		if err != nil && status.Code(err) != codes.NotFound {
			return err
		}
		if len(snaps) > 0 {
			return status.Error(codes.AlreadyExists, "order number already exists")
		}

		docRef := coll.NewDoc()
		if id := strings.TrimSpace(order.ID); id != "" {
			docRef = coll.Doc(id)
		}
		if err := tx.Create(docRef, doc); err != nil {
			return err
		}
		saved = doc.toDomain(docRef.ID)
		return nil
	})
	if err != nil {
		return domain.Order{}, pfirestore.WrapError("orders.insert", err)
	}
	return saved, nil
}

// FindByID loads an order aggregate by document ID.
func (r *OrderRepository) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	if r == nil || r.orders == nil {
		return domain.Order{}, errors.New("order repository not initialised")
	}
	id := strings.TrimSpace(orderID)
	if id == "" {
		return domain.Order{}, errors.New("order repository: id is required")
	}
	doc, err := r.orders.Get(ctx, id)
	if err != nil {
		return domain.Order{}, err
	}
	return doc.Data.toDomain(doc.ID), nil
}

// FindByNumberAndEmail resolves a guest order by its number and contact email.
// The caller is expected to normalise inputs; this matches exactly on the
// stored uppercase order number and lowercase email.
func (r *OrderRepository) FindByNumberAndEmail(ctx context.Context, orderNumber string, email string) (domain.Order, error) {
	if r == nil || r.provider == nil {
		return domain.Order{}, errors.New("order repository not initialised")
	}
	number := strings.TrimSpace(orderNumber)
	address := strings.TrimSpace(email)
	if number == "" || address == "" {
		return domain.Order{}, errors.New("order repository: order number and email are required")
	}

	client, err := r.provider.Client(ctx)
	if err != nil {
		return domain.Order{}, err
	}
	iter := client.Collection(ordersCollection).
		Where("orderNumber", "==", number).
		Where("guestEmail", "==", address).
		Limit(1).
		Documents(ctx)
	defer iter.Stop()

	snap, err := iter.Next()
	if errors.Is(err, iterator.Done) {
		return domain.Order{}, pfirestore.WrapError("orders.findByNumber", status.Error(codes.NotFound, "order not found"))
	}
	if err != nil {
		return domain.Order{}, pfirestore.WrapError("orders.findByNumber", err)
	}
	var doc orderDocument
	if err := snap.DataTo(&doc); err != nil {
		return domain.Order{}, fmt.Errorf("decode order %s: %w", snap.Ref.ID, err)
	}
	return doc.toDomain(snap.Ref.ID), nil
}

// Update replaces the stored aggregate with the provided state.
func (r *OrderRepository) Update(ctx context.Context, order domain.Order) (domain.Order, error) {
	if r == nil || r.orders == nil {
		return domain.Order{}, errors.New("order repository not initialised")
	}
	id := strings.TrimSpace(order.ID)
	if id == "" {
		return domain.Order{}, errors.New("order repository: id is required")
	}

	doc := encodeOrderDocument(order)
	doc.UpdatedAt = time.Now().UTC()
	if err := r.orders.Set(ctx, id, doc); err != nil {
		return domain.Order{}, err
	}
	return doc.toDomain(id), nil
}

// ListByUser pages through a user's orders, newest first.
func (r *OrderRepository) ListByUser(ctx context.Context, userID string, pager domain.Pagination) (domain.CursorPage[domain.Order], error) {
	if r == nil || r.provider == nil {
		return domain.CursorPage[domain.Order]{}, errors.New("order repository not initialised")
	}
	uid := strings.TrimSpace(userID)
	if uid == "" {
		return domain.CursorPage[domain.Order]{}, errors.New("order repository: user id is required")
	}

	pageSize := pager.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}

	client, err := r.provider.Client(ctx)
	if err != nil {
		return domain.CursorPage[domain.Order]{}, pfirestore.WrapError("orders.listByUser", err)
	}

	query := client.Collection(ordersCollection).
		Where("userId", "==", uid).
		OrderBy("createdAt", firestore.Desc).
		OrderBy(firestore.DocumentID, firestore.Asc).
		Limit(pageSize + 1)

	if token := strings.TrimSpace(pager.PageToken); token != "" {
		decoded, err := pagination.DecodeCursor[orderPageToken](token)
		if err != nil {
			return domain.CursorPage[domain.Order]{}, pfirestore.WrapError("orders.listByUser", err)
		}
		query = query.StartAfter(decoded.CreatedAt, decoded.ID)
	}

	iter := query.Documents(ctx)
	defer iter.Stop()

	var orders []domain.Order
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return domain.CursorPage[domain.Order]{}, pfirestore.WrapError("orders.listByUser", err)
		}
		var doc orderDocument
		if err := snap.DataTo(&doc); err != nil {
			return domain.CursorPage[domain.Order]{}, fmt.Errorf("decode order %s: %w", snap.Ref.ID, err)
		}
		orders = append(orders, doc.toDomain(snap.Ref.ID))
	}

	hasMore := len(orders) > pageSize
	if hasMore {
		orders = orders[:pageSize]
	}
	var nextToken string
	if hasMore && len(orders) > 0 {
		last := orders[len(orders)-1]
		encoded, err := pagination.EncodeCursor(orderPageToken{ID: last.ID, CreatedAt: last.CreatedAt})
		if err != nil {
			return domain.CursorPage[domain.Order]{}, pfirestore.WrapError("orders.listByUser", err)
		}
		nextToken = encoded
	}

	return domain.CursorPage[domain.Order]{Items: orders, NextPageToken: nextToken}, nil
}

// Document structures -------------------------------------------------------

type orderDocument struct {
	OrderNumber     string               `firestore:"orderNumber"`
	UserID          string               `firestore:"userId,omitempty"`
	GuestEmail      string               `firestore:"guestEmail,omitempty"`
	Guest           *guestContactDoc     `firestore:"guest,omitempty"`
	Status          string               `firestore:"status"`
	Items           []orderItemDocument  `firestore:"items"`
	Subtotal        float64              `firestore:"subtotal"`
	DiscountAmount  float64              `firestore:"discountAmount"`
	DiscountID      string               `firestore:"discountId,omitempty"`
	ShippingCost    float64              `firestore:"shippingCost"`
	Total           float64              `firestore:"total"`
	Currency        string               `firestore:"currency"`
	PaymentMethod   string               `firestore:"paymentMethod"`
	PaymentStatus   string               `firestore:"paymentStatus"`
	ShippingAddress orderAddressDocument `firestore:"shippingAddress"`
	TrackingNumber  *string              `firestore:"trackingNumber,omitempty"`
	TrackingURL     *string              `firestore:"trackingUrl,omitempty"`
	Metadata        map[string]string    `firestore:"metadata,omitempty"`
	CreatedAt       time.Time            `firestore:"createdAt"`
	UpdatedAt       time.Time            `firestore:"updatedAt"`
	ConfirmedAt     *time.Time           `firestore:"confirmedAt,omitempty"`
	ShippedAt       *time.Time           `firestore:"shippedAt,omitempty"`
	DeliveredAt     *time.Time           `firestore:"deliveredAt,omitempty"`
	CancelledAt     *time.Time           `firestore:"cancelledAt,omitempty"`
}

type guestContactDoc struct {
	Name  string `firestore:"name"`
	Email string `firestore:"email"`
	Phone string `firestore:"phone,omitempty"`
}

type orderItemDocument struct {
	ProductID string  `firestore:"productId"`
	VariantID string  `firestore:"variantId,omitempty"`
	Name      string  `firestore:"name"`
	Quantity  int     `firestore:"quantity"`
	UnitPrice float64 `firestore:"unitPrice"`
	LineTotal float64 `firestore:"lineTotal"`
}

type orderAddressDocument struct {
	Name       string `firestore:"name,omitempty"`
	Line1      string `firestore:"line1"`
	Line2      string `firestore:"line2,omitempty"`
	City       string `firestore:"city"`
	State      string `firestore:"state,omitempty"`
	PostalCode string `firestore:"postalCode"`
	Country    string `firestore:"country"`
	Phone      string `firestore:"phone,omitempty"`
}

func encodeOrderDocument(order domain.Order) orderDocument {
	items := make([]orderItemDocument, len(order.Items))
	for i, item := range order.Items {
		items[i] = orderItemDocument{
			ProductID: strings.TrimSpace(item.ProductID),
			VariantID: strings.TrimSpace(item.VariantID),
			Name:      strings.TrimSpace(item.Name),
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
			LineTotal: item.LineTotal,
		}
	}

	doc := orderDocument{
		OrderNumber:    strings.TrimSpace(order.OrderNumber),
		UserID:         strings.TrimSpace(order.UserID),
		Status:         string(order.Status),
		Items:          items,
		Subtotal:       order.Subtotal,
		DiscountAmount: order.DiscountAmount,
		DiscountID:     strings.TrimSpace(order.DiscountID),
		ShippingCost:   order.ShippingCost,
		Total:          order.Total,
		Currency:       strings.TrimSpace(order.Currency),
		PaymentMethod:  string(order.PaymentMethod),
		PaymentStatus:  string(order.PaymentStatus),
		ShippingAddress: orderAddressDocument{
			Name:       strings.TrimSpace(order.ShippingAddress.Name),
			Line1:      strings.TrimSpace(order.ShippingAddress.Line1),
			Line2:      strings.TrimSpace(order.ShippingAddress.Line2),
			City:       strings.TrimSpace(order.ShippingAddress.City),
			State:      strings.TrimSpace(order.ShippingAddress.State),
			PostalCode: strings.TrimSpace(order.ShippingAddress.PostalCode),
			Country:    strings.TrimSpace(order.ShippingAddress.Country),
			Phone:      strings.TrimSpace(order.ShippingAddress.Phone),
		},
		TrackingNumber: order.TrackingNumber,
		TrackingURL:    order.TrackingURL,
		Metadata:       order.Metadata,
		CreatedAt:      order.CreatedAt.UTC(),
		UpdatedAt:      order.UpdatedAt.UTC(),
		ConfirmedAt:    utcOrNil(order.ConfirmedAt),
		ShippedAt:      utcOrNil(order.ShippedAt),
		DeliveredAt:    utcOrNil(order.DeliveredAt),
		CancelledAt:    utcOrNil(order.CancelledAt),
	}
	if order.Guest != nil {
		doc.Guest = &guestContactDoc{
			Name:  strings.TrimSpace(order.Guest.Name),
			Email: strings.ToLower(strings.TrimSpace(order.Guest.Email)),
			Phone: strings.TrimSpace(order.Guest.Phone),
		}
		doc.GuestEmail = doc.Guest.Email
	}
	return doc
}

func (d orderDocument) toDomain(id string) domain.Order {
	items := make([]domain.OrderItem, len(d.Items))
	for i, item := range d.Items {
		items[i] = domain.OrderItem{
			ProductID: item.ProductID,
			VariantID: item.VariantID,
			Name:      item.Name,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
			LineTotal: item.LineTotal,
		}
	}

	order := domain.Order{
		ID:             id,
		OrderNumber:    d.OrderNumber,
		UserID:         d.UserID,
		Status:         domain.OrderStatus(d.Status),
		Items:          items,
		Subtotal:       d.Subtotal,
		DiscountAmount: d.DiscountAmount,
		DiscountID:     d.DiscountID,
		ShippingCost:   d.ShippingCost,
		Total:          d.Total,
		Currency:       d.Currency,
		PaymentMethod:  domain.PaymentMethod(d.PaymentMethod),
		PaymentStatus:  domain.PaymentStatus(d.PaymentStatus),
		ShippingAddress: domain.Address{
			Name:       d.ShippingAddress.Name,
			Line1:      d.ShippingAddress.Line1,
			Line2:      d.ShippingAddress.Line2,
			City:       d.ShippingAddress.City,
			State:      d.ShippingAddress.State,
			PostalCode: d.ShippingAddress.PostalCode,
			Country:    d.ShippingAddress.Country,
			Phone:      d.ShippingAddress.Phone,
		},
		TrackingNumber: d.TrackingNumber,
		TrackingURL:    d.TrackingURL,
		Metadata:       d.Metadata,
		CreatedAt:      d.CreatedAt,
		UpdatedAt:      d.UpdatedAt,
		ConfirmedAt:    d.ConfirmedAt,
		ShippedAt:      d.ShippedAt,
		DeliveredAt:    d.DeliveredAt,
		CancelledAt:    d.CancelledAt,
	}
	if d.Guest != nil {
		order.Guest = &domain.GuestContact{
			Name:  d.Guest.Name,
			Email: d.Guest.Email,
			Phone: d.Guest.Phone,
		}
	}
	return order
}

func utcOrNil(ts *time.Time) *time.Time {
	if ts == nil || ts.IsZero() {
		return nil
	}
	utc := ts.UTC()
	return &utc
}

type orderPageToken struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
}

// Ensure interface compliance.
var _ repositories.OrderRepository = (*OrderRepository)(nil)

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
	"github.com/ramsey2004/homekraft-api/internal/repositories"
)

const paymentLogsCollection = "paymentLogs"

// PaymentLogRepository records payment attempts in Firestore. Writes are
// satellites of the order; callers treat failures here as non-fatal.
type PaymentLogRepository struct {
	provider *pfirestore.Provider
	logs     *pfirestore.BaseRepository[paymentLogDocument]
}

// NewPaymentLogRepository constructs a Firestore-backed payment log repository.
func NewPaymentLogRepository(provider *pfirestore.Provider) (*PaymentLogRepository, error) {
	if provider == nil {
		return nil, errors.New("payment log repository requires firestore provider")
	}
	logs := pfirestore.NewBaseRepository[paymentLogDocument](provider, paymentLogsCollection)
	return &PaymentLogRepository{provider: provider, logs: logs}, nil
}

// Insert stores a new payment attempt record.
func (r *PaymentLogRepository) Insert(ctx context.Context, log domain.PaymentLog) (domain.PaymentLog, error) {
	if r == nil || r.provider == nil {
		return domain.PaymentLog{}, errors.New("payment log repository not initialised")
	}
	if strings.TrimSpace(log.OrderID) == "" {
		return domain.PaymentLog{}, errors.New("payment log repository: order id is required")
	}

	client, err := r.provider.Client(ctx)
	if err != nil {
		return domain.PaymentLog{}, err
	}
	coll := client.Collection(paymentLogsCollection)
	docRef := coll.NewDoc()
	if id := strings.TrimSpace(log.ID); id != "" {
		docRef = coll.Doc(id)
	}

	now := time.Now().UTC()
	doc := encodePaymentLogDocument(log)
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	doc.UpdatedAt = now

	if _, err := docRef.Create(ctx, doc); err != nil {
		return domain.PaymentLog{}, pfirestore.WrapError("payment_logs.insert", err)
	}
	return doc.toDomain(docRef.ID), nil
}

// Update replaces the stored record with the provided state.
func (r *PaymentLogRepository) Update(ctx context.Context, log domain.PaymentLog) (domain.PaymentLog, error) {
	if r == nil || r.logs == nil {
		return domain.PaymentLog{}, errors.New("payment log repository not initialised")
	}
	id := strings.TrimSpace(log.ID)
	if id == "" {
		return domain.PaymentLog{}, errors.New("payment log repository: id is required")
	}

	doc := encodePaymentLogDocument(log)
	doc.UpdatedAt = time.Now().UTC()
	if err := r.logs.Set(ctx, id, doc); err != nil {
		return domain.PaymentLog{}, err
	}
	return doc.toDomain(id), nil
}

// FindByOrderID returns the most recent payment attempt for an order.
func (r *PaymentLogRepository) FindByOrderID(ctx context.Context, orderID string) (domain.PaymentLog, error) {
	if r == nil || r.provider == nil {
		return domain.PaymentLog{}, errors.New("payment log repository not initialised")
	}
	id := strings.TrimSpace(orderID)
	if id == "" {
		return domain.PaymentLog{}, errors.New("payment log repository: order id is required")
	}

	client, err := r.provider.Client(ctx)
	if err != nil {
		return domain.PaymentLog{}, err
	}
	iter := client.Collection(paymentLogsCollection).
		Where("orderId", "==", id).
		OrderBy("createdAt", firestore.Desc).
		Limit(1).
		Documents(ctx)
	defer iter.Stop()

	snap, err := iter.Next()
	if errors.Is(err, iterator.Done) {
		return domain.PaymentLog{}, pfirestore.WrapError("payment_logs.findByOrder", status.Error(codes.NotFound, "payment log not found"))
	}
	if err != nil {
		return domain.PaymentLog{}, pfirestore.WrapError("payment_logs.findByOrder", err)
	}
	var doc paymentLogDocument
	if err := snap.DataTo(&doc); err != nil {
		return domain.PaymentLog{}, fmt.Errorf("decode payment log %s: %w", snap.Ref.ID, err)
	}
	return doc.toDomain(snap.Ref.ID), nil
}

type paymentLogDocument struct {
	OrderID              string         `firestore:"orderId"`
	Gateway              string         `firestore:"gateway"`
	Method               string         `firestore:"method"`
	Amount               float64        `firestore:"amount"`
	Currency             string         `firestore:"currency"`
	Status               string         `firestore:"status"`
	GatewayOrderID       string         `firestore:"gatewayOrderId,omitempty"`
	ClientSecret         string         `firestore:"clientSecret,omitempty"`
	GatewayTransactionID string         `firestore:"gatewayTransactionId,omitempty"`
	Raw                  map[string]any `firestore:"raw,omitempty"`
	CreatedAt            time.Time      `firestore:"createdAt"`
	UpdatedAt            time.Time      `firestore:"updatedAt"`
}

func encodePaymentLogDocument(log domain.PaymentLog) paymentLogDocument {
	return paymentLogDocument{
		OrderID:              strings.TrimSpace(log.OrderID),
		Gateway:              strings.TrimSpace(log.Gateway),
		Method:               string(log.Method),
		Amount:               log.Amount,
		Currency:             strings.TrimSpace(log.Currency),
		Status:               string(log.Status),
		GatewayOrderID:       strings.TrimSpace(log.GatewayOrderID),
		ClientSecret:         strings.TrimSpace(log.ClientSecret),
		GatewayTransactionID: strings.TrimSpace(log.GatewayTransactionID),
		Raw:                  log.Raw,
		CreatedAt:            log.CreatedAt.UTC(),
		UpdatedAt:            log.UpdatedAt.UTC(),
	}
}

func (d paymentLogDocument) toDomain(id string) domain.PaymentLog {
	return domain.PaymentLog{
		ID:                   id,
		OrderID:              d.OrderID,
		Gateway:              d.Gateway,
		Method:               domain.PaymentMethod(d.Method),
		Amount:               d.Amount,
		Currency:             d.Currency,
		Status:               domain.PaymentLogStatus(d.Status),
		GatewayOrderID:       d.GatewayOrderID,
		ClientSecret:         d.ClientSecret,
		GatewayTransactionID: d.GatewayTransactionID,
		Raw:                  d.Raw,
		CreatedAt:            d.CreatedAt,
		UpdatedAt:            d.UpdatedAt,
	}
}

// Ensure interface compliance.
var _ repositories.PaymentLogRepository = (*PaymentLogRepository)(nil)

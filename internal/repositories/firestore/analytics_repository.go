package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	domain "github.com/ramsey2004/homekraft-api/internal/domain"
	pfirestore "github.com/ramsey2004/homekraft-api/internal/platform/firestore"
	"github.com/ramsey2004/homekraft-api/internal/repositories"
)

const analyticsEventsCollection = "analyticsEvents"

// AnalyticsRepository persists audit events in Firestore. The collection is
// append-only; nothing in the request path reads it back.
type AnalyticsRepository struct {
	provider *pfirestore.Provider
}

// NewAnalyticsRepository constructs a Firestore-backed analytics repository.
func NewAnalyticsRepository(provider *pfirestore.Provider) (*AnalyticsRepository, error) {
	if provider == nil {
		return nil, errors.New("analytics repository requires firestore provider")
	}
	return &AnalyticsRepository{provider: provider}, nil
}

// Insert appends one event.
func (r *AnalyticsRepository) Insert(ctx context.Context, event domain.AnalyticsEvent) error {
	if r == nil || r.provider == nil {
		return errors.New("analytics repository not initialised")
	}
	if strings.TrimSpace(string(event.Type)) == "" {
		return errors.New("analytics repository: event type is required")
	}

	client, err := r.provider.Client(ctx)
	if err != nil {
		return err
	}
	coll := client.Collection(analyticsEventsCollection)
	docRef := coll.NewDoc()
	if id := strings.TrimSpace(event.ID); id != "" {
		docRef = coll.Doc(id)
	}

	doc := analyticsEventDocument{
		Type:      string(event.Type),
		OrderID:   strings.TrimSpace(event.OrderID),
		ProductID: strings.TrimSpace(event.ProductID),
		UserID:    strings.TrimSpace(event.UserID),
		Payload:   event.Payload,
		CreatedAt: event.CreatedAt.UTC(),
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now().UTC()
	}

	if _, err := docRef.Create(ctx, doc); err != nil {
		return pfirestore.WrapError("analytics.insert", err)
	}
	return nil
}

type analyticsEventDocument struct {
	Type      string         `firestore:"type"`
	OrderID   string         `firestore:"orderId,omitempty"`
	ProductID string         `firestore:"productId,omitempty"`
	UserID    string         `firestore:"userId,omitempty"`
	Payload   map[string]any `firestore:"payload,omitempty"`
	CreatedAt time.Time      `firestore:"createdAt"`
}

// Ensure interface compliance.
var _ repositories.AnalyticsRepository = (*AnalyticsRepository)(nil)

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
	"github.com/ramsey2004/homekraft-api/internal/platform/textutil"
	"github.com/ramsey2004/homekraft-api/internal/repositories"
)

const discountCodesCollection = "discountCodes"

// DiscountRepository resolves discount codes stored in Firestore. Codes are
// persisted uppercase and lookups normalise before querying.
type DiscountRepository struct {
	provider  *pfirestore.Provider
	discounts *pfirestore.BaseRepository[discountDocument]
}

// NewDiscountRepository constructs a Firestore-backed discount repository.
func NewDiscountRepository(provider *pfirestore.Provider) (*DiscountRepository, error) {
	if provider == nil {
		return nil, errors.New("discount repository requires firestore provider")
	}
	discounts := pfirestore.NewBaseRepository[discountDocument](provider, discountCodesCollection)
	return &DiscountRepository{provider: provider, discounts: discounts}, nil
}

// FindByCode resolves a discount by its normalised (uppercase) code.
func (r *DiscountRepository) FindByCode(ctx context.Context, code string) (domain.DiscountCode, error) {
	if r == nil || r.provider == nil {
		return domain.DiscountCode{}, errors.New("discount repository not initialised")
	}
	normalised := textutil.FoldUpper(code)
	if normalised == "" {
		return domain.DiscountCode{}, errors.New("discount repository: code is required")
	}

	client, err := r.provider.Client(ctx)
	if err != nil {
		return domain.DiscountCode{}, err
	}
	iter := client.Collection(discountCodesCollection).
		Where("code", "==", normalised).
		Limit(1).
		Documents(ctx)
	defer iter.Stop()

	snap, err := iter.Next()
	if errors.Is(err, iterator.Done) {
		return domain.DiscountCode{}, pfirestore.WrapError("discounts.findByCode", status.Error(codes.NotFound, "discount code not found"))
	}
	if err != nil {
		return domain.DiscountCode{}, pfirestore.WrapError("discounts.findByCode", err)
	}
	var doc discountDocument
	if err := snap.DataTo(&doc); err != nil {
		return domain.DiscountCode{}, fmt.Errorf("decode discount %s: %w", snap.Ref.ID, err)
	}
	return doc.toDomain(snap.Ref.ID), nil
}

// IncrementUsage bumps the redemption counter after a successful checkout.
func (r *DiscountRepository) IncrementUsage(ctx context.Context, discountID string) error {
	if r == nil || r.discounts == nil {
		return errors.New("discount repository not initialised")
	}
	id := strings.TrimSpace(discountID)
	if id == "" {
		return errors.New("discount repository: id is required")
	}
	updates := []firestore.Update{
		{Path: "usageCount", Value: firestore.Increment(1)},
		{Path: "updatedAt", Value: time.Now().UTC()},
	}
	if err := r.discounts.Update(ctx, id, updates); err != nil {
		return err
	}
	return nil
}

type discountDocument struct {
	Code       string     `firestore:"code"`
	Type       string     `firestore:"type"`
	Value      float64    `firestore:"value"`
	Active     bool       `firestore:"active"`
	StartsAt   *time.Time `firestore:"startsAt,omitempty"`
	ExpiresAt  *time.Time `firestore:"expiresAt,omitempty"`
	UsageCount int        `firestore:"usageCount"`
	CreatedAt  time.Time  `firestore:"createdAt"`
	UpdatedAt  time.Time  `firestore:"updatedAt"`
}

func (d discountDocument) toDomain(id string) domain.DiscountCode {
	return domain.DiscountCode{
		ID:         id,
		Code:       textutil.FoldUpper(d.Code),
		Type:       domain.DiscountType(d.Type),
		Value:      d.Value,
		Active:     d.Active,
		StartsAt:   d.StartsAt,
		ExpiresAt:  d.ExpiresAt,
		UsageCount: d.UsageCount,
		CreatedAt:  d.CreatedAt,
		UpdatedAt:  d.UpdatedAt,
	}
}

// Ensure interface compliance.
var _ repositories.DiscountRepository = (*DiscountRepository)(nil)

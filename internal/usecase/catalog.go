package usecase

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/arklim/storefront-iam/internal/core/domain"
	"github.com/arklim/storefront-iam/internal/core/port"
)

const (
	defaultListingPageSize = 20
	maxListingPageSize     = 100
)

// CatalogService is the catalog side of the activation flow: it mirrors owner activation
// onto listings and serves the public read that hides listings of inactive owners.
type CatalogService struct {
	listings port.ListingRepository
	logger   *zap.Logger
}

// NewCatalogService constructs a CatalogService.
func NewCatalogService(listings port.ListingRepository, logger *zap.Logger) *CatalogService {
	return &CatalogService{listings: listings, logger: logger}
}

// ApplyOwnerActivation flips owner_active on every listing of the event's user. Only events
// newer than the last applied change take effect, so replays and late duplicates are no-ops.
func (s *CatalogService) ApplyOwnerActivation(ctx context.Context, event domain.UserActivationChangedEvent) error {
	if event.UserID == "" {
		return validationError("activation event without user id")
	}
	if event.OccurredAt.IsZero() {
		return validationError("activation event without occurrence time")
	}

	touched, err := s.listings.SetOwnerActive(ctx, event.UserID, event.IsActive, event.OccurredAt.UTC())
	if err != nil {
		return fmt.Errorf("apply owner activation: %w", err)
	}

	s.logger.Debug("owner activation applied",
		zap.String("event_id", event.EventID),
		zap.String("user_id", event.UserID),
		zap.Bool("is_active", event.IsActive),
		zap.Int64("listings", touched),
	)
	return nil
}

// ListPublic returns available listings whose owner is active.
func (s *CatalogService) ListPublic(ctx context.Context, filter domain.ListingFilter) ([]domain.Listing, error) {
	switch {
	case filter.Limit == 0:
		filter.Limit = defaultListingPageSize
	case filter.Limit > maxListingPageSize:
		filter.Limit = maxListingPageSize
	}
	if filter.MinPrice != nil && filter.MaxPrice != nil && *filter.MinPrice > *filter.MaxPrice {
		return nil, validationError("min price exceeds max price")
	}

	listings, err := s.listings.ListPublic(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list listings: %w", err)
	}
	return listings, nil
}

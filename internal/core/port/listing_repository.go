package port

import (
	"context"
	"time"

	"github.com/arklim/storefront-iam/internal/core/domain"
)

// ListingRepository is the catalog-side store of product listings.
type ListingRepository interface {
	ListPublic(ctx context.Context, filter domain.ListingFilter) ([]domain.Listing, error)
	// SetOwnerActive updates every listing of the owner whose last change is older than changedAt
	// and returns the number of rows touched.
	SetOwnerActive(ctx context.Context, userID string, active bool, changedAt time.Time) (int64, error)
}

package postgres

import (
	"context"
	"fmt"
	"time"

	squirrel "github.com/Masterminds/squirrel"

	"github.com/arklim/storefront-iam/internal/core/domain"
	"github.com/arklim/storefront-iam/internal/core/port"
)

// ListingRepository serves the catalog's product listings.
type ListingRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewListingRepository constructs a listing repository.
func NewListingRepository(exec pgExecutor) *ListingRepository {
	return &ListingRepository{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// ListPublic returns available listings whose owner is active.
func (r *ListingRepository) ListPublic(ctx context.Context, filter domain.ListingFilter) ([]domain.Listing, error) {
	query := r.builder.Select(
		"id",
		"user_id",
		"name",
		"description",
		"price",
		"is_available",
		"owner_active",
		"owner_active_changed_at",
		"created_at",
	).
		From("catalog.products").
		Where(squirrel.Eq{"owner_active": true, "is_available": true}).
		OrderBy("created_at DESC", "id ASC")

	if filter.Name != "" {
		query = query.Where(squirrel.ILike{"name": "%" + filter.Name + "%"})
	}
	if filter.MinPrice != nil {
		query = query.Where(squirrel.GtOrEq{"price": *filter.MinPrice})
	}
	if filter.MaxPrice != nil {
		query = query.Where(squirrel.LtOrEq{"price": *filter.MaxPrice})
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}

	stmt, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list listings sql: %w", err)
	}

	rows, err := r.exec.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("list listings: %w", err)
	}
	defer rows.Close()

	listings := make([]domain.Listing, 0)
	for rows.Next() {
		var l domain.Listing
		if err := rows.Scan(
			&l.ID,
			&l.UserID,
			&l.Name,
			&l.Description,
			&l.Price,
			&l.IsAvailable,
			&l.OwnerActive,
			&l.OwnerActiveChangedAt,
			&l.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan listing: %w", err)
		}
		listings = append(listings, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate listings: %w", err)
	}

	return listings, nil
}

// SetOwnerActive applies an activation change to the owner's listings. Rows already
// carrying a change at or after changedAt are left untouched, so replays and stale
// deliveries are no-ops.
func (r *ListingRepository) SetOwnerActive(ctx context.Context, userID string, active bool, changedAt time.Time) (int64, error) {
	stmt, args, err := r.builder.Update("catalog.products").
		Set("owner_active", active).
		Set("owner_active_changed_at", changedAt.UTC()).
		Where(squirrel.Eq{"user_id": userID}).
		Where(squirrel.Or{
			squirrel.Eq{"owner_active_changed_at": nil},
			squirrel.Lt{"owner_active_changed_at": changedAt.UTC()},
		}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build set owner active sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return 0, fmt.Errorf("set owner active: %w", err)
	}

	return tag.RowsAffected(), nil
}

var _ port.ListingRepository = (*ListingRepository)(nil)

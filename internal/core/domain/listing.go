package domain

import "time"

// Listing is the catalog read model of a product, with the owner's activation state denormalized.
type Listing struct {
	ID                   string
	UserID               string
	Name                 string
	Description          string
	Price                float64
	IsAvailable          bool
	OwnerActive          bool
	OwnerActiveChangedAt *time.Time
	CreatedAt            time.Time
}

// ListingFilter narrows public listing queries.
type ListingFilter struct {
	Name     string
	MinPrice *float64
	MaxPrice *float64
	Limit    uint64
	Offset   uint64
}

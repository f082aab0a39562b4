// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository helpers for the ListingView
// model used to implement time-windowed view-count dedup, plus the atomic
// counter increment on listings.
package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-market-backend/internal/domain"
)

// GetRecentView returns the most recent view row for (listingID, viewerKey)
// at or after the cutoff, or ErrNotFound when the viewer has not been counted
// inside the window.
func GetRecentView(ctx context.Context, db *gorm.DB, listingID, viewerKey string, cutoff time.Time) (*domain.ListingView, error) {
	if strings.TrimSpace(viewerKey) == "" {
		return nil, ErrNotFound
	}
	var rec domain.ListingView
	err := db.WithContext(ctx).
		Where("listing_id = ? AND viewer_key = ? AND created_at > ?", listingID, viewerKey, cutoff).
		Order("created_at desc").
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// CreateListingView inserts the dedup bookkeeping row for a counted view.
// windowStart is the dedup bucket the view falls into; a second insert for
// the same (listing, viewer key, bucket) hits the unique index and returns
// ErrDuplicate, which lets callers treat a lost race as an already-counted
// view.
func CreateListingView(db *gorm.DB, listingID, viewerKey string, windowStart time.Time) (*domain.ListingView, error) {
	rec := &domain.ListingView{
		ID:          uuid.NewString(),
		ListingID:   listingID,
		ViewerKey:   viewerKey,
		WindowStart: windowStart,
		CreatedAt:   time.Now().UTC(),
	}
	if err := db.Create(rec).Error; err != nil {
		if IsDuplicate(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return rec, nil
}

// IncrementViewCount advances the listing's counter by one as an atomic
// in-database update (view_count = view_count + 1), never read-modify-write
// from application code, so concurrent increments cannot lose updates.
// Returns ErrNotFound if the listing does not exist.
func IncrementViewCount(db *gorm.DB, listingID string) error {
	res := db.Model(&domain.Listing{}).
		Where("id = ?", listingID).
		UpdateColumn("view_count", gorm.Expr("view_count + ?", 1))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// GetListing fetches a listing by ID, ErrNotFound when missing.
func GetListing(ctx context.Context, db *gorm.DB, id string) (*domain.Listing, error) {
	var l domain.Listing
	if err := db.WithContext(ctx).Where("id = ?", id).First(&l).Error; err != nil {
		return nil, err
	}
	return &l, nil
}

// Package services – EngagementService
//
// This file implements the listing view counter: a monotonically increasing
// count with time-windowed dedup per actor. Identified viewers are counted
// at most once per (listing, user) per rolling window; anonymous viewers are
// deduplicated per (listing, client IP) over the same window — a deliberate
// tightening over the source system, which counted anonymous views
// unconditionally.
package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/go-market-backend/internal/domain"
	"github.com/tbourn/go-market-backend/internal/repo"
)

// DefaultViewDedupWindow is the rolling window inside which a repeat view by
// the same actor is not counted again.
const DefaultViewDedupWindow = 24 * time.Hour

// EngagementService owns the idempotent listing view counter.
type EngagementService struct {
	DB *gorm.DB

	// DedupWindow overrides DefaultViewDedupWindow when positive.
	DedupWindow time.Duration
}

// window returns the effective dedup window.
func (s *EngagementService) window() time.Duration {
	if s.DedupWindow > 0 {
		return s.DedupWindow
	}
	return DefaultViewDedupWindow
}

// RecordView counts a view of listingID by the given actor.
//
// The actor key prefers the authenticated user id and falls back to the
// client IP for anonymous requests. When a view row for (listing, key)
// exists inside the rolling window the call is a no-op and counted=false is
// returned ("already counted"). Otherwise the dedup row insert and the
// atomic counter increment commit in one transaction; the unique index on
// (listing, viewer key, window bucket) rejects the insert when a concurrent
// request for the same viewer commits first, which also yields counted=false.
//
// A request with neither a user id nor a client IP cannot be deduplicated
// and is counted unconditionally.
//
// Errors: ErrListingNotFound when the listing does not exist; otherwise the
// underlying DB error.
func (s *EngagementService) RecordView(ctx context.Context, listingID, userID, clientIP string) (counted bool, err error) {
	tr := otel.Tracer("services/EngagementService")
	ctx, span := tr.Start(ctx, "RecordView",
		trace.WithAttributes(attribute.String("listing.id", listingID)),
	)
	defer span.End()

	if _, err := repo.GetListing(ctx, s.DB, listingID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, ErrListingNotFound
		}
		return false, err
	}

	viewerKey := ""
	switch {
	case strings.TrimSpace(userID) != "":
		viewerKey = domain.ViewerKeyUser(userID)
	case strings.TrimSpace(clientIP) != "":
		viewerKey = domain.ViewerKeyIP(clientIP)
	}

	now := time.Now().UTC()
	if viewerKey != "" {
		cutoff := now.Add(-s.window())
		if _, err := repo.GetRecentView(ctx, s.DB, listingID, viewerKey, cutoff); err == nil {
			return false, nil // already counted inside the window
		} else if !errors.Is(err, repo.ErrNotFound) {
			return false, err
		}
	}

	bucket := now.Truncate(s.window())
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if viewerKey != "" {
			if _, err := repo.CreateListingView(tx, listingID, viewerKey, bucket); err != nil {
				return err
			}
		}
		return repo.IncrementViewCount(tx, listingID)
	})
	if errors.Is(err, repo.ErrDuplicate) {
		// A concurrent request for the same viewer won the insert between the
		// window lookup and this transaction. The view is already counted.
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

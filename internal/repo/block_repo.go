// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Block model.
//
// The repository follows a "thin" approach: it performs persistence and simple
// query composition, leaving business rules (self-block rejection, send-time
// enforcement) to the services package.
//
// Error semantics:
//   - CreateBlock relies on the (blocker_id, blocked_id) unique constraint;
//     an existing row is reported as ErrDuplicate so the service layer can
//     treat repeat blocks as idempotent no-ops.
//   - On other DB errors the raw gorm error is propagated.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-market-backend/internal/domain"
)

// CreateBlock inserts a blocker→blocked row. The ordered pair must be unique,
// enforced by the database schema; duplicates are returned as ErrDuplicate.
func CreateBlock(ctx context.Context, db *gorm.DB, blockerID, blockedID string) error {
	b := &domain.Block{
		ID:        uuid.NewString(),
		BlockerID: blockerID,
		BlockedID: blockedID,
		CreatedAt: time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(b).Error; err != nil {
		if IsDuplicate(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

// DeleteBlock removes the blocker→blocked row if present. Deleting an absent
// row is not an error; the returned count reports whether anything changed.
func DeleteBlock(ctx context.Context, db *gorm.DB, blockerID, blockedID string) (int64, error) {
	res := db.WithContext(ctx).
		Where("blocker_id = ? AND blocked_id = ?", blockerID, blockedID).
		Delete(&domain.Block{})
	return res.RowsAffected, res.Error
}

// BlockExists reports whether a block is recorded in either direction
// between the two users. Evaluated fresh on every call — block state is
// never cached across requests.
func BlockExists(ctx context.Context, db *gorm.DB, a, b string) (bool, error) {
	var n int64
	err := db.WithContext(ctx).
		Model(&domain.Block{}).
		Where("(blocker_id = ? AND blocked_id = ?) OR (blocker_id = ? AND blocked_id = ?)", a, b, b, a).
		Count(&n).Error
	return n > 0, err
}

// ListBlocked returns the ids the given user has blocked, newest first.
func ListBlocked(ctx context.Context, db *gorm.DB, blockerID string) ([]domain.Block, error) {
	var out []domain.Block
	err := db.WithContext(ctx).
		Where("blocker_id = ?", blockerID).
		Order("created_at desc").
		Find(&out).Error
	return out, err
}

// Package services – BlockService
//
// This file implements the BlockService, which governs the directional
// blocker→blocked relation gating conversation creation and message sends.
// Repeat blocks are idempotent, unblocking an absent row is a no-op, and
// block state is read fresh from the store on every check — never cached
// across requests, since it can change between a page load and a send.
package services

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/tbourn/go-market-backend/internal/domain"
	"github.com/tbourn/go-market-backend/internal/repo"
)

// BlockService implements the use-cases around user blocks.
type BlockService struct {
	// DB is the database handle used for all block operations.
	DB *gorm.DB
}

// Block records that blockerID blocks blockedID.
//
// Semantics:
//   - Blocking yourself is rejected with ErrSelfBlock.
//   - Blocking an already-blocked user is an idempotent no-op.
//   - The block takes effect immediately: subsequent IsBlocked checks and
//     therefore sends/creates reflect it. Existing transcripts stay visible.
func (s *BlockService) Block(ctx context.Context, blockerID, blockedID string) error {
	if blockerID == blockedID {
		return ErrSelfBlock
	}
	if err := repo.CreateBlock(ctx, s.DB, blockerID, blockedID); err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			return nil // already blocked
		}
		return err
	}
	return nil
}

// Unblock removes the blockerID→blockedID row. Unblocking a user who was
// never blocked is a no-op; symmetric messaging ability is restored once
// neither direction has a row.
func (s *BlockService) Unblock(ctx context.Context, blockerID, blockedID string) error {
	_, err := repo.DeleteBlock(ctx, s.DB, blockerID, blockedID)
	return err
}

// IsBlocked reports whether a block is recorded in either direction between
// the two users.
func (s *BlockService) IsBlocked(ctx context.Context, a, b string) (bool, error) {
	return repo.BlockExists(ctx, s.DB, a, b)
}

// List returns the users blockerID has blocked, newest first.
func (s *BlockService) List(ctx context.Context, blockerID string) ([]domain.Block, error) {
	return repo.ListBlocked(ctx, s.DB, blockerID)
}

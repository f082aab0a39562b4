// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the
// Conversation model.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations.
// They follow the "thin repository" approach: no business logic, only CRUD
// persistence and query composition.
//
// Error semantics:
//   - When a conversation is not found, functions return ErrNotFound
//     (an alias of gorm.ErrRecordNotFound).
//   - CreateConversation surfaces unique-pair collisions as ErrDuplicate so
//     callers can fall back to selecting the winning row (insert-or-fetch).
//   - On other DB errors, the raw gorm error is propagated.
package repo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-market-backend/internal/domain"
)

// GetConversation fetches a single conversation by its ID. If the record
// does not exist, it returns ErrNotFound.
func GetConversation(ctx context.Context, db *gorm.DB, id string) (*domain.Conversation, error) {
	var c domain.Conversation
	err := db.WithContext(ctx).
		Where("id = ?", id).
		First(&c).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// GetConversationByPair fetches the conversation for a participant pair.
// The pair must already be normalized (user1 <= user2, see
// domain.NormalizePair). Returns ErrNotFound when no row exists.
func GetConversationByPair(ctx context.Context, db *gorm.DB, user1, user2 string) (*domain.Conversation, error) {
	var c domain.Conversation
	err := db.WithContext(ctx).
		Where("user1_id = ? AND user2_id = ?", user1, user2).
		First(&c).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// CreateConversation inserts a new conversation row for a normalized pair
// with an optional listing context. The ID is a randomly generated UUID and
// timestamps are set to UTC.
//
// A collision on the pair's unique index is returned as ErrDuplicate; the
// caller is expected to re-select the existing row rather than treat it as
// a failure.
func CreateConversation(ctx context.Context, db *gorm.DB, user1, user2 string, listingID *string) (*domain.Conversation, error) {
	now := time.Now().UTC()
	c := &domain.Conversation{
		ID:        uuid.NewString(),
		User1ID:   user1,
		User2ID:   user2,
		ListingID: listingID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := db.WithContext(ctx).Create(c).Error; err != nil {
		if IsDuplicate(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return c, nil
}

// GetOrCreateConversation resolves the single conversation for an unordered
// participant pair, creating it when absent.
//
// The pair is normalized here, so callers may pass the two ids in any order.
// Concurrency is resolved by the unique index on (user1_id, user2_id): the
// insert attempt that loses the race observes ErrDuplicate and falls back to
// selecting the winner. No application-level lock is held, and a check-then-
// insert race can never produce two rows.
//
// An existing conversation is returned regardless of whether its stored
// listing context matches listingID — first interaction wins.
func GetOrCreateConversation(ctx context.Context, db *gorm.DB, userA, userB string, listingID *string) (*domain.Conversation, error) {
	user1, user2 := domain.NormalizePair(userA, userB)

	// Fast path: the pair already has a conversation.
	if c, err := GetConversationByPair(ctx, db, user1, user2); err == nil {
		return c, nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	c, err := CreateConversation(ctx, db, user1, user2, listingID)
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, ErrDuplicate) {
		return nil, err
	}
	// Lost the insert race: return the row the winner created.
	return GetConversationByPair(ctx, db, user1, user2)
}

// TouchConversation sets the conversation's updated_at to ts. It is called
// in the same transaction as a message insert so the conversation list's
// recency ordering is never observed out of sync with the latest message.
// Returns ErrNotFound if the conversation does not exist.
func TouchConversation(db *gorm.DB, id string, ts time.Time) error {
	res := db.Model(&domain.Conversation{}).
		Where("id = ?", id).
		Update("updated_at", ts)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// CountConversations returns the total number of conversations userID
// participates in.
func CountConversations(ctx context.Context, db *gorm.DB, userID string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.Conversation{}).
		Where("user1_id = ? OR user2_id = ?", userID, userID).
		Count(&total).Error
	return total, err
}

// ListConversationsPage returns a page of userID's conversations ordered by
// updated_at descending (most recently active first). Use CountConversations
// to obtain the total for pagination metadata.
func ListConversationsPage(ctx context.Context, db *gorm.DB, userID string, offset, limit int) ([]domain.Conversation, error) {
	var out []domain.Conversation
	err := db.WithContext(ctx).
		Where("user1_id = ? OR user2_id = ?", userID, userID).
		Order("updated_at desc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// GetUserSummaries loads profile summaries for the given user ids. Missing
// rows yield placeholder summaries carrying only the id, so a participant
// whose profile was never provisioned still appears in fetch payloads.
func GetUserSummaries(ctx context.Context, db *gorm.DB, ids ...string) ([]domain.User, error) {
	var rows []domain.User
	if err := db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	byID := make(map[string]domain.User, len(rows))
	for _, u := range rows {
		byID[u.ID] = u
	}
	out := make([]domain.User, 0, len(ids))
	for _, id := range ids {
		if u, ok := byID[id]; ok {
			out = append(out, u)
			continue
		}
		out = append(out, domain.User{ID: id})
	}
	return out, nil
}

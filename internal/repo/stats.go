// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides small aggregate/statistics queries used
// primarily for conditional responses (e.g., ETag generation) in the HTTP
// layer. Each function is context-aware and safe to call from services or
// handlers.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-market-backend/internal/domain"
)

// ConversationsStats returns aggregate metadata for a user's conversations:
// the total number of rows, the number of messages still unread by the user,
// and the maximum UpdatedAt timestamp among the conversations.
//
// updated_at advances with every committed message and the unread total drops
// when a transcript fetch marks messages read, so the triple (count, unread,
// max updated_at) changes whenever the user's inbox view changes. That makes
// it a cheap weak-ETag input. When the user has no conversations, the
// returned counts are 0 and maxUpdatedAt is nil.
func ConversationsStats(ctx context.Context, db *gorm.DB, userID string) (count, unread int64, maxUpdatedAt *time.Time, err error) {
	q := db.WithContext(ctx).Model(&domain.Conversation{}).
		Where("user1_id = ? OR user2_id = ?", userID, userID)

	// Count
	if err = q.Count(&count).Error; err != nil {
		return 0, 0, nil, err
	}
	if count == 0 {
		return 0, 0, nil, nil
	}

	// Unread messages addressed to the user across all their conversations.
	err = db.WithContext(ctx).Model(&domain.Message{}).
		Joins("JOIN conversations ON conversations.id = messages.conversation_id").
		Where("(conversations.user1_id = ? OR conversations.user2_id = ?) AND messages.sender_id <> ? AND messages.is_read = ?",
			userID, userID, userID, false).
		Count(&unread).Error
	if err != nil {
		return 0, 0, nil, err
	}

	// Get latest updated_at (avoid MAX() -> TEXT in SQLite)
	var row struct {
		UpdatedAt time.Time
	}
	if err = q.Select("updated_at").Order("updated_at DESC").Limit(1).Scan(&row).Error; err != nil {
		return 0, 0, nil, err
	}
	return count, unread, &row.UpdatedAt, nil
}

// MessagesStats returns aggregate metadata for messages within a given
// conversation: the total number of rows and the maximum CreatedAt timestamp
// among those rows. When the conversation has no messages, the returned
// count is 0 and maxCreatedAt is nil.
func MessagesStats(ctx context.Context, db *gorm.DB, conversationID string) (count int64, maxCreatedAt *time.Time, err error) {
	q := db.WithContext(ctx).Model(&domain.Message{}).Where("conversation_id = ?", conversationID)

	// Count
	if err = q.Count(&count).Error; err != nil {
		return 0, nil, err
	}
	if count == 0 {
		return 0, nil, nil
	}

	var row struct {
		CreatedAt time.Time
	}
	if err = q.Select("created_at").Order("created_at DESC").Limit(1).Scan(&row).Error; err != nil {
		return 0, nil, err
	}
	return count, &row.CreatedAt, nil
}

// Package services – MessageService
//
// This file implements MessageService, the application-level component that
// owns the append-only message ledger. It validates content, enforces block
// state at send time, resolves (or lazily creates) the pair's conversation,
// and persists the message together with the conversation recency bump in a
// single transaction.
//
// Sends are deliberately not idempotent: two identical Send calls create two
// messages. Duplicate-submission protection belongs to the client (disable
// the send button while a request is in flight).
package services

import (
	"context"
	"strings"
	"unicode/utf8"

	"gorm.io/gorm"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/go-market-backend/internal/domain"
	"github.com/tbourn/go-market-backend/internal/repo"
)

// DefaultMaxContentRunes caps message bodies when MessageService is not
// configured with an explicit limit.
const DefaultMaxContentRunes = 5000

// MessageService coordinates message validation and persistence.
type MessageService struct {
	DB     *gorm.DB
	Blocks BlockChecker

	// MaxContentRunes caps message bodies by rune length after trimming.
	// Zero means DefaultMaxContentRunes.
	MaxContentRunes int
}

// maxRunes returns the effective content cap.
func (s *MessageService) maxRunes() int {
	if s.MaxContentRunes > 0 {
		return s.MaxContentRunes
	}
	return DefaultMaxContentRunes
}

// Send validates and appends a message from senderID to receiverID,
// resolving the pair's conversation on the way.
//
// Semantics and validation:
//   - ErrSelfMessage when sender and receiver are the same user.
//   - ErrEmptyContent when content trims to nothing; ErrContentTooLong when
//     the trimmed content exceeds the rune cap (a body of exactly the cap
//     is accepted).
//   - ErrBlocked when a block exists in either direction, checked fresh on
//     every call.
//
// Concurrency & atomicity:
//   - Conversation resolution, the message insert, and the conversation's
//     updated_at bump run in one transaction. updated_at is set to the
//     message's created_at, so inbox recency ordering can never be observed
//     out of sync with the latest committed message.
//   - Prior messages are never mutated or reordered.
func (s *MessageService) Send(ctx context.Context, senderID, receiverID, content string, listingID *string) (*domain.Message, error) {
	tr := otel.Tracer("services/MessageService")
	ctx, span := tr.Start(ctx, "Send",
		trace.WithAttributes(
			attribute.String("sender.id", senderID),
			attribute.String("receiver.id", receiverID),
		),
	)
	defer span.End()

	if senderID == receiverID {
		return nil, ErrSelfMessage
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrEmptyContent
	}
	if utf8.RuneCountInString(content) > s.maxRunes() {
		return nil, ErrContentTooLong
	}

	blocked, err := s.Blocks.IsBlocked(ctx, senderID, receiverID)
	if err != nil {
		return nil, err
	}
	if blocked {
		return nil, ErrBlocked
	}

	var msg *domain.Message
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		conv, err := repo.GetOrCreateConversation(ctx, tx, senderID, receiverID, listingID)
		if err != nil {
			return err
		}
		m, err := repo.CreateMessage(tx, conv.ID, senderID, content)
		if err != nil {
			return err
		}
		if err := repo.TouchConversation(tx, conv.ID, m.CreatedAt); err != nil {
			return err
		}
		msg = m
		return nil
	})
	if err != nil {
		return nil, err
	}
	return msg, nil
}

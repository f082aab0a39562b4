// Package services – ConversationService
//
// This file implements the ConversationService, the directory mapping each
// unordered participant pair (plus optional listing context) to exactly one
// conversation. It validates pair targets, enforces block state, and owns the
// fetch path that returns a transcript with participant summaries while
// flipping the requester's unread messages.
//
// Service-level errors (e.g., ErrConversationNotFound, ErrBlocked) are
// returned for predictable cases so handlers can map them to HTTP results
// consistently.
//
// Observability: public methods are OpenTelemetry-instrumented; spans include
// conversation/user identifiers and pagination parameters where applicable.
package services

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/go-market-backend/internal/domain"
	"github.com/tbourn/go-market-backend/internal/repo"
)

// BlockChecker is the contract ConversationService needs from the block
// registry: a fresh either-direction check per call.
type BlockChecker interface {
	IsBlocked(ctx context.Context, a, b string) (bool, error)
}

// ConversationDetail is the fetch payload: the conversation row, both
// participants' profile summaries, and one ascending page of the transcript.
type ConversationDetail struct {
	Conversation domain.Conversation `json:"conversation"`
	Participants []domain.User       `json:"participants"`
	Messages     []domain.Message    `json:"messages"`
}

// ConversationSummary is one inbox entry: the conversation plus the number
// of messages still unread by the inbox owner.
type ConversationSummary struct {
	domain.Conversation
	UnreadCount int64 `json:"unread_count"`
}

// ConversationService provides get-or-create pair resolution, transcript
// fetch with access control, and the recency-ordered inbox.
type ConversationService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Blocks gates conversation creation on current block state.
	Blocks BlockChecker
}

// NewConversationService constructs a ConversationService.
func NewConversationService(db *gorm.DB, blocks BlockChecker) *ConversationService {
	return &ConversationService{DB: db, Blocks: blocks}
}

// GetOrCreate resolves the single conversation between userA and userB,
// creating it lazily on first contact.
//
// Semantics:
//   - ErrSelfConversation when userA == userB.
//   - ErrBlocked when a block exists in either direction, checked fresh.
//   - The pair is looked up order-independently; an existing conversation is
//     returned even when its stored listing context differs from listingID
//     (first interaction wins).
//   - Creation is resolved against the pair's unique constraint, so
//     concurrent calls from both participants converge on one row.
func (s *ConversationService) GetOrCreate(ctx context.Context, userA, userB string, listingID *string) (*domain.Conversation, error) {
	tr := otel.Tracer("services/ConversationService")
	ctx, span := tr.Start(ctx, "GetOrCreate",
		trace.WithAttributes(
			attribute.String("user.a", userA),
			attribute.String("user.b", userB),
		),
	)
	defer span.End()

	if userA == userB {
		return nil, ErrSelfConversation
	}
	blocked, err := s.Blocks.IsBlocked(ctx, userA, userB)
	if err != nil {
		return nil, err
	}
	if blocked {
		return nil, ErrBlocked
	}
	return repo.GetOrCreateConversation(ctx, s.DB, userA, userB, listingID)
}

// Fetch returns the conversation with both participants' summaries and one
// ascending page of messages, and marks the counterpart's unread messages as
// read for the requester.
//
// Semantics:
//   - ErrConversationNotFound when the id does not exist.
//   - ErrNotParticipant when requesterID is neither participant; the HTTP
//     layer reports this as not-found so outsiders cannot probe existence.
//   - Messages are ordered CreatedAt ascending with id tie-break; page and
//     pageSize are defaulted when out of range.
func (s *ConversationService) Fetch(ctx context.Context, conversationID, requesterID string, page, pageSize int) (*ConversationDetail, int64, error) {
	tr := otel.Tracer("services/ConversationService")
	ctx, span := tr.Start(ctx, "Fetch",
		trace.WithAttributes(
			attribute.String("conversation.id", conversationID),
			attribute.String("user.id", requesterID),
			attribute.Int("page", page),
			attribute.Int("page_size", pageSize),
		),
	)
	defer span.End()

	conv, err := repo.GetConversation(ctx, s.DB, conversationID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, 0, ErrConversationNotFound
		}
		return nil, 0, err
	}
	if !conv.HasParticipant(requesterID) {
		return nil, 0, ErrNotParticipant
	}

	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 50
	}
	offset := (page - 1) * pageSize

	var (
		msgs  []domain.Message
		total int64
	)
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Reading the transcript is the recipient's read action.
		if _, err := repo.MarkMessagesRead(tx, conversationID, requesterID); err != nil {
			return err
		}
		var err error
		if total, err = repo.CountMessages(tx, conversationID); err != nil {
			return err
		}
		msgs, err = repo.ListMessagesPage(tx, conversationID, offset, pageSize)
		return err
	})
	if err != nil {
		return nil, 0, err
	}

	participants, err := repo.GetUserSummaries(ctx, s.DB, conv.User1ID, conv.User2ID)
	if err != nil {
		return nil, 0, err
	}

	return &ConversationDetail{
		Conversation: *conv,
		Participants: participants,
		Messages:     msgs,
	}, total, nil
}

// ListPage returns a page of userID's conversations ordered by recency
// (updated_at descending) with per-conversation unread counts, plus the
// total count for pagination metadata.
func (s *ConversationService) ListPage(ctx context.Context, userID string, page, pageSize int) ([]ConversationSummary, int64, error) {
	tr := otel.Tracer("services/ConversationService")
	ctx, span := tr.Start(ctx, "ListPage",
		trace.WithAttributes(
			attribute.String("user.id", userID),
			attribute.Int("page", page),
			attribute.Int("page_size", pageSize),
		),
	)
	defer span.End()

	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	total, err := repo.CountConversations(ctx, s.DB, userID)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []ConversationSummary{}, 0, nil
	}

	convs, err := repo.ListConversationsPage(ctx, s.DB, userID, offset, pageSize)
	if err != nil {
		return nil, 0, err
	}

	out := make([]ConversationSummary, 0, len(convs))
	for _, c := range convs {
		unread, err := repo.CountUnread(s.DB.WithContext(ctx), c.ID, userID)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, ConversationSummary{Conversation: c, UnreadCount: unread})
	}
	return out, total, nil
}

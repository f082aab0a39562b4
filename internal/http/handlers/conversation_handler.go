// Conversation HTTP handlers.
//
// This file exposes REST endpoints for conversation resources:
//   - POST /conversations       (get-or-create the pair's conversation)
//   - GET  /conversations       (inbox, paginated, ETag support)
//   - GET  /conversations/{id}  (transcript + participants; marks unread read)
//
// Handlers are transport-thin: they validate input, call application services,
// and translate results into HTTP responses (including conditional responses).
// The acting user always comes from the verified identity in the Gin context,
// never from the request body.
package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-market-backend/internal/domain"
	"github.com/tbourn/go-market-backend/internal/http/middleware"
	"github.com/tbourn/go-market-backend/internal/repo"
	"github.com/tbourn/go-market-backend/internal/services"
	"github.com/tbourn/go-market-backend/internal/utils"
)

//
// Service contracts (context-aware)
//

// ConversationService defines conversation directory operations consumed by
// HTTP handlers.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type ConversationService interface {
	// GetOrCreate resolves the single conversation between two users,
	// creating it lazily on first contact.
	GetOrCreate(ctx context.Context, userA, userB string, listingID *string) (*domain.Conversation, error)
	// Fetch returns the conversation detail with one ascending transcript
	// page and flips the requester's unread messages.
	Fetch(ctx context.Context, conversationID, requesterID string, page, pageSize int) (*services.ConversationDetail, int64, error)
	// ListPage returns a recency-ordered page of the user's conversations
	// with unread counts, plus the total.
	ListPage(ctx context.Context, userID string, page, pageSize int) ([]services.ConversationSummary, int64, error)
}

// MessageSender defines the message append operation consumed by HTTP handlers.
type MessageSender interface {
	// Send validates and appends a message, resolving the pair's
	// conversation on the way.
	Send(ctx context.Context, senderID, receiverID, content string, listingID *string) (*domain.Message, error)
}

// BlockService defines block registry operations consumed by HTTP handlers.
type BlockService interface {
	// Block records blocker→blocked; repeat blocks are no-ops.
	Block(ctx context.Context, blockerID, blockedID string) error
	// Unblock removes the directional row; absent rows are no-ops.
	Unblock(ctx context.Context, blockerID, blockedID string) error
	// List returns the users blockerID has blocked, newest first.
	List(ctx context.Context, blockerID string) ([]domain.Block, error)
}

// EngagementService defines the listing view counter consumed by HTTP handlers.
type EngagementService interface {
	// RecordView counts a view unless the same actor was already counted
	// inside the dedup window; counted=false reports the skip.
	RecordView(ctx context.Context, listingID, userID, clientIP string) (counted bool, err error)
}

//
// Handler wiring
//

// Handlers groups HTTP endpoints for conversations, messages, blocks, and
// listing engagement. It depends on abstract service interfaces to keep
// transport concerns separate from business logic.
type Handlers struct {
	convSvc  ConversationService
	msgSvc   MessageSender
	blockSvc BlockService
	engSvc   EngagementService
}

// New constructs and returns a Handlers instance bound to the given services.
func New(convSvc ConversationService, msgSvc MessageSender, blockSvc BlockService, engSvc EngagementService) *Handlers {
	return &Handlers{convSvc: convSvc, msgSvc: msgSvc, blockSvc: blockSvc, engSvc: engSvc}
}

// userID returns the authenticated user id established by the auth
// middleware, or "" for anonymous requests. Identity is never read from
// request headers or bodies.
func userID(c *gin.Context) string {
	return middleware.UserIDFrom(c)
}

//
// DTOs
//

// StartConversationRequest is the JSON payload for resolving a conversation
// with another user, optionally anchored to a listing.
type StartConversationRequest struct {
	// SellerID is the counterpart user id. Required.
	SellerID string `json:"seller_id" binding:"required,min=1"`
	// ListingID optionally records the listing that started the contact.
	ListingID *string `json:"listing_id,omitempty"`
}

// StartConversationResponse returns the id of the pair's single conversation.
type StartConversationResponse struct {
	ConversationID string `json:"conversation_id"`
}

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

// ListConversationsResponse wraps a page of inbox entries and pagination
// information.
type ListConversationsResponse struct {
	Conversations []services.ConversationSummary `json:"conversations"`
	Pagination    Pagination                     `json:"pagination"`
}

// ConversationDetailResponse is the transcript payload plus pagination over
// the message ledger.
type ConversationDetailResponse struct {
	Conversation domain.Conversation `json:"conversation"`
	Participants []domain.User       `json:"participants"`
	Messages     []domain.Message    `json:"messages"`
	Pagination   Pagination          `json:"pagination"`
}

//
// Helpers
//

// clampPagination parses and bounds page and page_size query params to sane
// defaults and limits, returning (page, pageSize).
func clampPagination(c *gin.Context) (page, pageSize int) {
	const (
		defaultPageSize = 20
		maxPageSize     = 100
	)
	return utils.PageParams(c.Query("page"), c.Query("page_size"), defaultPageSize, maxPageSize)
}

// paginationMeta assembles the standard pagination block from a page request
// and total row count.
func paginationMeta(page, pageSize int, total int64) Pagination {
	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	return Pagination{
		Page:       page,
		PageSize:   pageSize,
		Total:      total,
		TotalPages: totalPages,
		HasNext:    page < totalPages,
	}
}

//
// Handlers
//

// StartConversation resolves (or lazily creates) the caller's conversation
// with another user.
//
// POST /conversations
// Request: StartConversationRequest. Responses: 201 with the conversation id
// (the same id on repeat calls for the same pair), 400 on self-target or bad
// payload, 403 when a block exists in either direction.
func (h *Handlers) StartConversation(c *gin.Context) {
	var req StartConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "seller_id required")
		return
	}

	conv, err := h.convSvc.GetOrCreate(c.Request.Context(), userID(c), strings.TrimSpace(req.SellerID), req.ListingID)
	if err != nil {
		switch err {
		case services.ErrSelfConversation:
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "cannot start a conversation with yourself")
		case services.ErrBlocked:
			fail(c, http.StatusForbidden, ErrCodeForbidden, "messaging is not available between these users")
		default:
			fail(c, http.StatusInternalServerError, ErrCodeCreateFailed, err.Error())
		}
		return
	}
	ok(c, http.StatusCreated, StartConversationResponse{ConversationID: conv.ID})
}

// GetConversation returns the transcript payload for a conversation the
// caller participates in, marking their unread messages read.
//
// GET /conversations/{id}?page=&page_size=
// Responses: 200 with ConversationDetailResponse, 400 on a malformed id,
// 404 when the conversation does not exist or the caller is not a
// participant (outsiders cannot distinguish the two).
func (h *Handlers) GetConversation(c *gin.Context) {
	convID := c.Param("id")
	if _, err := uuid.Parse(convID); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "conversation id must be a UUID")
		return
	}

	page, pageSize := clampPagination(c)

	detail, total, err := h.convSvc.Fetch(c.Request.Context(), convID, userID(c), page, pageSize)
	if err != nil {
		switch err {
		case services.ErrConversationNotFound, services.ErrNotParticipant:
			fail(c, http.StatusNotFound, ErrCodeNotFound, "conversation not found")
		default:
			fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		}
		return
	}

	ok(c, http.StatusOK, ConversationDetailResponse{
		Conversation: detail.Conversation,
		Participants: detail.Participants,
		Messages:     detail.Messages,
		Pagination:   paginationMeta(page, pageSize, total),
	})
}

// ListConversations returns a page of the caller's inbox, most recently
// active first, with per-conversation unread counts. Supports weak ETags via
// If-None-Match and may return 304.
//
// GET /conversations?page=&page_size=
func (h *Handlers) ListConversations(c *gin.Context) {
	ctx := c.Request.Context()
	uid := userID(c)
	page, pageSize := clampPagination(c)

	// ETag pre-check (best effort).
	var db *gorm.DB
	if svc, okSvc := h.convSvc.(*services.ConversationService); okSvc {
		db = svc.DB
	}
	if db != nil {
		count, unread, maxTS, err := repo.ConversationsStats(ctx, db, uid)
		if err == nil {
			var ts int64
			if maxTS != nil {
				ts = maxTS.Unix()
			}
			etag := fmt.Sprintf(`W/"conversations:%s:%d:%d:%d"`, uid, count, unread, ts)
			c.Header("ETag", etag)
			if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
				c.Status(http.StatusNotModified)
				return
			}
		}
	}

	items, total, err := h.convSvc.ListPage(ctx, uid, page, pageSize)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}

	ok(c, http.StatusOK, ListConversationsResponse{
		Conversations: items,
		Pagination:    paginationMeta(page, pageSize, total),
	})
}

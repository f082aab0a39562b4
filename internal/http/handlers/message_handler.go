// Message HTTP handlers.
//
// This file exposes the message send endpoint:
//   - POST /messages   (append a message to the pair's conversation)
//
// Handlers are transport-thin:
//   - validate & normalize inputs (including newline and length constraints)
//   - delegate to application services (MessageService)
//
// Sends are not idempotent: a retried request creates a second message.
// Clients should disable their send control while a request is in flight.
package handlers

import (
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-market-backend/internal/domain"
	"github.com/tbourn/go-market-backend/internal/services"
)

//
// DTOs
//

// PostMessageRequest is the JSON payload for sending a message.
//
// Content is normalized by the handler (line endings and excessive blank
// lines) before being passed to the service layer. The service also enforces
// the maximum rune count, which can be configured in MessageService.
type PostMessageRequest struct {
	// ReceiverID is the counterpart user id. Required.
	ReceiverID string `json:"receiver_id" binding:"required,min=1"`
	// Content is the message body. It must be non-empty after trimming.
	Content string `json:"content" binding:"required,min=1"`
	// ListingID optionally anchors a newly created conversation to a listing.
	ListingID *string `json:"listing_id,omitempty"`
}

// PostMessageResponse is the JSON envelope for a newly appended message.
type PostMessageResponse struct {
	MessageID string          `json:"message_id"`
	Success   bool            `json:"success"`
	Message   *domain.Message `json:"message"`
}

//
// Helpers
//

// nlCollapseRE collapses runs of 3+ newlines to two, preserving paragraphs.
var nlCollapseRE = regexp.MustCompile(`\n{3,}`)

// sanitizeContent normalizes user text for consistent downstream behavior:
//   - converts CRLF/CR to LF,
//   - collapses runs of 3+ LFs to exactly two (paragraph separation),
//   - trims surrounding whitespace.
func sanitizeContent(raw string) string {
	s := strings.ReplaceAll(raw, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = nlCollapseRE.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

// discoverMaxContentRunes inspects the concrete MessageService for a
// configured body-length limit. If unavailable, it returns the service
// default.
func discoverMaxContentRunes(msgSvc MessageSender) int {
	if ms, ok := msgSvc.(*services.MessageService); ok {
		if ms.MaxContentRunes > 0 {
			return ms.MaxContentRunes
		}
	}
	return services.DefaultMaxContentRunes
}

//
// Handlers
//

// PostMessage appends a message from the caller to another user, resolving
// (or lazily creating) the pair's conversation.
//
// POST /messages
// Request: PostMessageRequest. Responses: 201 with the new message id, 400 on
// self-target, empty, or over-long content, 403 when a block exists in either
// direction, 500 when persistence fails.
func (h *Handlers) PostMessage(c *gin.Context) {
	var req PostMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "receiver_id and content required")
		return
	}

	// Sanitize + early size cap to fail fast at the edge.
	content := sanitizeContent(req.Content)
	maxRunes := discoverMaxContentRunes(h.msgSvc)
	if maxRunes > 0 && utf8.RuneCountInString(content) > maxRunes {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, fmt.Sprintf("content too long: max %d runes", maxRunes))
		return
	}
	if content == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "content required")
		return
	}

	m, err := h.msgSvc.Send(c.Request.Context(), userID(c), strings.TrimSpace(req.ReceiverID), content, req.ListingID)
	if err != nil {
		switch err {
		case services.ErrSelfMessage:
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "cannot message yourself")
		case services.ErrEmptyContent:
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "content required")
		case services.ErrContentTooLong:
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, fmt.Sprintf("content too long: max %d runes", maxRunes))
		case services.ErrBlocked:
			fail(c, http.StatusForbidden, ErrCodeForbidden, "messaging is not available between these users")
		default:
			fail(c, http.StatusInternalServerError, ErrCodeSendFailed, err.Error())
		}
		return
	}

	ok(c, http.StatusCreated, PostMessageResponse{
		MessageID: m.ID,
		Success:   true,
		Message:   m,
	})
}

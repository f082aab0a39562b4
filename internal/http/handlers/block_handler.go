// Block HTTP handlers.
//
// This file exposes REST endpoints for the block registry:
//   - POST   /blocks        (block a user)
//   - DELETE /blocks/{id}   (unblock a user; {id} is the blocked user id)
//   - GET    /blocks        (list users the caller has blocked)
//
// Blocking and unblocking are idempotent at the HTTP level: repeat blocks and
// unblocks of an absent row both return 204.
package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-market-backend/internal/domain"
	"github.com/tbourn/go-market-backend/internal/services"
)

// CreateBlockRequest is the JSON payload for blocking a user.
type CreateBlockRequest struct {
	// BlockedID is the user to block. Required.
	BlockedID string `json:"blocked_id" binding:"required,min=1"`
}

// ListBlocksResponse wraps the caller's block list.
type ListBlocksResponse struct {
	Blocks []domain.Block `json:"blocks"`
}

// CreateBlock records a block from the caller to another user.
//
// POST /blocks
// Responses: 204 (also for repeat blocks), 400 on self-block or bad payload.
func (h *Handlers) CreateBlock(c *gin.Context) {
	var req CreateBlockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "blocked_id required")
		return
	}

	if err := h.blockSvc.Block(c.Request.Context(), userID(c), strings.TrimSpace(req.BlockedID)); err != nil {
		switch err {
		case services.ErrSelfBlock:
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "cannot block yourself")
		default:
			fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		}
		return
	}
	noContent(c)
}

// DeleteBlock removes the caller's block on the given user.
//
// DELETE /blocks/{id}
// Responses: 204 (also when no block existed).
func (h *Handlers) DeleteBlock(c *gin.Context) {
	blockedID := strings.TrimSpace(c.Param("id"))
	if blockedID == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "blocked user id required")
		return
	}

	if err := h.blockSvc.Unblock(c.Request.Context(), userID(c), blockedID); err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	noContent(c)
}

// ListBlocks returns the users the caller has blocked, newest first.
//
// GET /blocks
func (h *Handlers) ListBlocks(c *gin.Context) {
	blocks, err := h.blockSvc.List(c.Request.Context(), userID(c))
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}
	ok(c, http.StatusOK, ListBlocksResponse{Blocks: blocks})
}

// Listing engagement HTTP handlers.
//
// This file exposes the listing view counter:
//   - POST /listings/{id}/view   (count a view; anonymous allowed)
//
// The endpoint sits behind OptionalAuth: identified viewers are deduplicated
// per user, anonymous viewers per client IP, both over a rolling window.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-market-backend/internal/services"
)

// RecordViewResponse reports whether the view advanced the counter. When the
// same actor was already counted inside the dedup window, Ok is false and
// Reason explains the skip.
type RecordViewResponse struct {
	Ok     bool   `json:"ok"`
	Reason string `json:"reason,omitempty"`
}

// RecordView counts a view of the listing by the calling actor.
//
// POST /listings/{id}/view
// Responses: 200 with {ok:true} when counted, {ok:false, reason:"Already
// counted"} when deduplicated, 404 when the listing does not exist.
func (h *Handlers) RecordView(c *gin.Context) {
	listingID := c.Param("id")

	counted, err := h.engSvc.RecordView(c.Request.Context(), listingID, userID(c), c.ClientIP())
	if err != nil {
		switch err {
		case services.ErrListingNotFound:
			fail(c, http.StatusNotFound, ErrCodeNotFound, "listing not found")
		default:
			fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		}
		return
	}

	if !counted {
		ok(c, http.StatusOK, RecordViewResponse{Ok: false, Reason: "Already counted"})
		return
	}
	ok(c, http.StatusOK, RecordViewResponse{Ok: true})
}

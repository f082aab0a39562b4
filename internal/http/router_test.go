package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	sqlite "github.com/glebarez/sqlite"
	"github.com/golang-jwt/jwt/v5"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-market-backend/internal/config"
	"github.com/tbourn/go-market-backend/internal/domain"
	"github.com/tbourn/go-market-backend/internal/repo"
)

const routerTestSecret = "router-test-secret"

// --- test DB helper (pure-Go sqlite, no CGO) ---
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), fmt.Sprintf("router_test_%d.db", time.Now().UnixNano()))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	db.Exec("PRAGMA busy_timeout=5000;")
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func testConfig() config.Config {
	return config.Config{
		APIBasePath:     "/api/v1",
		JWTSecret:       routerTestSecret,
		MaxMessageRunes: 5000,
		ViewDedupWindow: 24 * time.Hour,
		RateRPS:         1000,
		RateBurst:       1000,
		CORS:            config.CORSConfig{AllowedOrigins: nil},
		Security:        config.SecurityConfig{EnableHSTS: false},
		OTEL:            config.OTELConfig{ServiceName: "test-svc"},
	}
}

func newTestServer(t *testing.T) (*gin.Engine, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	db := newTestDB(t)
	RegisterRoutes(r, db, testConfig())
	return r, db
}

func bearer(t *testing.T, sub string) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": sub,
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	s, err := tok.SignedString([]byte(routerTestSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return "Bearer " + s
}

func apiCall(t *testing.T, r *gin.Engine, method, path, auth, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRegisterRoutes_Health_Metrics_Fallbacks(t *testing.T) {
	r, _ := newTestServer(t)

	// /health works
	w := apiCall(t, r, http.MethodGet, "/health", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("GET /health = %d", w.Code)
	}
	// CORS (AllowAllOrigins) → header "*"
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("AllowAllOrigins expected '*', got %q", got)
	}

	// /metrics is wired
	w = apiCall(t, r, http.MethodGet, "/metrics", "", "")
	if w.Code != http.StatusOK || w.Body.Len() == 0 {
		t.Fatalf("GET /metrics bad: code=%d len=%d", w.Code, w.Body.Len())
	}

	// NoRoute → 404
	w = apiCall(t, r, http.MethodGet, "/nope", "", "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("GET /nope expected 404, got %d", w.Code)
	}

	// NoMethod → 405 (POST /health)
	w = apiCall(t, r, http.MethodPost, "/health", "", "")
	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("POST /health expected 405, got %d", w.Code)
	}
}

func TestRegisterRoutes_AuthRequiredOnMessagingAPI(t *testing.T) {
	r, _ := newTestServer(t)

	for _, route := range []struct{ method, path string }{
		{http.MethodPost, "/api/v1/conversations"},
		{http.MethodGet, "/api/v1/conversations"},
		{http.MethodPost, "/api/v1/messages"},
		{http.MethodPost, "/api/v1/blocks"},
		{http.MethodGet, "/api/v1/blocks"},
	} {
		w := apiCall(t, r, route.method, route.path, "", `{}`)
		if w.Code != http.StatusUnauthorized {
			t.Fatalf("%s %s without token: expected 401, got %d", route.method, route.path, w.Code)
		}
	}
}

func TestRegisterRoutes_EndToEndMessagingFlow(t *testing.T) {
	r, db := newTestServer(t)
	alice := bearer(t, "alice")
	bob := bearer(t, "bob")

	// Alice messages Bob; the conversation is created lazily.
	w := apiCall(t, r, http.MethodPost, "/api/v1/messages", alice,
		`{"receiver_id":"bob","content":"is the bike still available?"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("send: expected 201, got %d (%s)", w.Code, w.Body.String())
	}
	var sent struct {
		MessageID string `json:"message_id"`
		Success   bool   `json:"success"`
		Message   struct {
			ConversationID string `json:"conversation_id"`
		} `json:"message"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &sent); err != nil {
		t.Fatalf("unmarshal send: %v", err)
	}
	if !sent.Success || sent.MessageID == "" {
		t.Fatalf("unexpected send response %+v", sent)
	}
	convID := sent.Message.ConversationID

	// Starting the conversation explicitly resolves to the same id.
	w = apiCall(t, r, http.MethodPost, "/api/v1/conversations", bob,
		`{"seller_id":"alice"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("start: expected 201, got %d (%s)", w.Code, w.Body.String())
	}
	var started struct {
		ConversationID string `json:"conversation_id"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &started); err != nil {
		t.Fatalf("unmarshal start: %v", err)
	}
	if started.ConversationID != convID {
		t.Fatalf("pair must resolve to one conversation: %q vs %q", started.ConversationID, convID)
	}

	// Bob's inbox shows the conversation with one unread message.
	w = apiCall(t, r, http.MethodGet, "/api/v1/conversations", bob, "")
	if w.Code != http.StatusOK {
		t.Fatalf("inbox: expected 200, got %d", w.Code)
	}
	var inbox struct {
		Conversations []struct {
			ID          string `json:"id"`
			UnreadCount int64  `json:"unread_count"`
		} `json:"conversations"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &inbox); err != nil {
		t.Fatalf("unmarshal inbox: %v", err)
	}
	if len(inbox.Conversations) != 1 || inbox.Conversations[0].UnreadCount != 1 {
		t.Fatalf("unexpected inbox %+v", inbox)
	}

	// Bob fetches the transcript, which marks the message read.
	w = apiCall(t, r, http.MethodGet, "/api/v1/conversations/"+convID, bob, "")
	if w.Code != http.StatusOK {
		t.Fatalf("fetch: expected 200, got %d (%s)", w.Code, w.Body.String())
	}
	var unread int64
	if err := db.Model(&domain.Message{}).
		Where("conversation_id = ? AND is_read = ?", convID, false).
		Count(&unread).Error; err != nil {
		t.Fatalf("count unread: %v", err)
	}
	if unread != 0 {
		t.Fatalf("fetch should mark messages read, %d left", unread)
	}

	// An outsider cannot see the conversation (indistinguishable from absent).
	w = apiCall(t, r, http.MethodGet, "/api/v1/conversations/"+convID, bearer(t, "mallory"), "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("outsider fetch: expected 404, got %d", w.Code)
	}
}

func TestRegisterRoutes_BlockStopsMessaging(t *testing.T) {
	r, _ := newTestServer(t)
	alice := bearer(t, "alice")
	bob := bearer(t, "bob")

	w := apiCall(t, r, http.MethodPost, "/api/v1/blocks", bob, `{"blocked_id":"alice"}`)
	if w.Code != http.StatusNoContent {
		t.Fatalf("block: expected 204, got %d", w.Code)
	}

	w = apiCall(t, r, http.MethodPost, "/api/v1/messages", alice,
		`{"receiver_id":"bob","content":"hello?"}`)
	if w.Code != http.StatusForbidden {
		t.Fatalf("blocked send: expected 403, got %d", w.Code)
	}

	w = apiCall(t, r, http.MethodDelete, "/api/v1/blocks/alice", bob, "")
	if w.Code != http.StatusNoContent {
		t.Fatalf("unblock: expected 204, got %d", w.Code)
	}

	w = apiCall(t, r, http.MethodPost, "/api/v1/messages", alice,
		`{"receiver_id":"bob","content":"hello again"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("send after unblock: expected 201, got %d (%s)", w.Code, w.Body.String())
	}
}

func TestRegisterRoutes_ListingViewAnonymousAndDeduped(t *testing.T) {
	r, db := newTestServer(t)
	if err := db.Create(&domain.Listing{ID: "listing-1", SellerID: "carol", Title: "Old bike"}).Error; err != nil {
		t.Fatalf("seed listing: %v", err)
	}

	// Anonymous view counts once per IP.
	w := apiCall(t, r, http.MethodPost, "/api/v1/listings/listing-1/view", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("view: expected 200, got %d (%s)", w.Code, w.Body.String())
	}
	var resp struct {
		Ok     bool   `json:"ok"`
		Reason string `json:"reason"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal view: %v", err)
	}
	if !resp.Ok {
		t.Fatalf("first view must count: %+v", resp)
	}

	w = apiCall(t, r, http.MethodPost, "/api/v1/listings/listing-1/view", "", "")
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal repeat view: %v", err)
	}
	if resp.Ok || resp.Reason != "Already counted" {
		t.Fatalf("repeat view must be deduplicated: %+v", resp)
	}

	// Unknown listing → 404.
	w = apiCall(t, r, http.MethodPost, "/api/v1/listings/nope/view", "", "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("missing listing: expected 404, got %d", w.Code)
	}

	var listing domain.Listing
	if err := db.First(&listing, "id = ?", "listing-1").Error; err != nil {
		t.Fatalf("reload listing: %v", err)
	}
	if listing.ViewCount != 1 {
		t.Fatalf("expected view_count 1, got %d", listing.ViewCount)
	}
}

func TestRegisterRoutes_ListingViewIgnoresIdentityHeaders(t *testing.T) {
	r, db := newTestServer(t)
	if err := db.Create(&domain.Listing{ID: "listing-1", SellerID: "carol", Title: "Old bike"}).Error; err != nil {
		t.Fatalf("seed listing: %v", err)
	}

	// Anonymous requests from one address stay one actor no matter what
	// identity headers they carry; only a verified bearer token changes the
	// viewer key.
	for i := 0; i < 5; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/listings/listing-1/view", strings.NewReader(""))
		req.Header.Set("X-User-ID", fmt.Sprintf("visitor-%d", i))
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Fatalf("view %d: expected 200, got %d (%s)", i, w.Code, w.Body.String())
		}
		var resp struct {
			Ok bool `json:"ok"`
		}
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("unmarshal view %d: %v", i, err)
		}
		if i == 0 && !resp.Ok {
			t.Fatalf("first view must count")
		}
		if i > 0 && resp.Ok {
			t.Fatalf("view %d with a forged identity header must be deduplicated by IP", i)
		}
	}

	var listing domain.Listing
	if err := db.First(&listing, "id = ?", "listing-1").Error; err != nil {
		t.Fatalf("reload listing: %v", err)
	}
	if listing.ViewCount != 1 {
		t.Fatalf("expected view_count 1, got %d", listing.ViewCount)
	}
}

func TestRegisterRoutes_InboxETagChangesWhenMessagesRead(t *testing.T) {
	r, _ := newTestServer(t)
	alice := bearer(t, "alice")
	bob := bearer(t, "bob")

	w := apiCall(t, r, http.MethodPost, "/api/v1/messages", bob,
		`{"receiver_id":"alice","content":"ping"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("send: expected 201, got %d (%s)", w.Code, w.Body.String())
	}
	var sent struct {
		Message struct {
			ConversationID string `json:"conversation_id"`
		} `json:"message"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &sent); err != nil {
		t.Fatalf("unmarshal send: %v", err)
	}

	// First inbox read: one unread message, ETag issued.
	w = apiCall(t, r, http.MethodGet, "/api/v1/conversations", alice, "")
	if w.Code != http.StatusOK {
		t.Fatalf("inbox: expected 200, got %d", w.Code)
	}
	etag := w.Header().Get("ETag")
	if etag == "" {
		t.Fatalf("inbox response must carry an ETag")
	}

	// Fetching the transcript marks the message read, so the cached inbox
	// (unread badge included) is stale and a conditional request must not
	// be answered with 304.
	w = apiCall(t, r, http.MethodGet, "/api/v1/conversations/"+sent.Message.ConversationID, alice, "")
	if w.Code != http.StatusOK {
		t.Fatalf("fetch: expected 200, got %d (%s)", w.Code, w.Body.String())
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/conversations", strings.NewReader(""))
	req.Header.Set("Authorization", alice)
	req.Header.Set("If-None-Match", etag)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("conditional inbox after read: expected 200, got %d", rec.Code)
	}
	var inbox struct {
		Conversations []struct {
			UnreadCount int64 `json:"unread_count"`
		} `json:"conversations"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &inbox); err != nil {
		t.Fatalf("unmarshal inbox: %v", err)
	}
	if len(inbox.Conversations) != 1 || inbox.Conversations[0].UnreadCount != 0 {
		t.Fatalf("inbox must reflect the read state: %+v", inbox)
	}
	if newTag := rec.Header().Get("ETag"); newTag == etag {
		t.Fatalf("ETag must change when the unread state changes")
	}

	// The fresh ETag validates until the inbox changes again.
	req = httptest.NewRequest(http.MethodGet, "/api/v1/conversations", strings.NewReader(""))
	req.Header.Set("Authorization", alice)
	req.Header.Set("If-None-Match", rec.Header().Get("ETag"))
	rec2 := httptest.NewRecorder()
	r.ServeHTTP(rec2, req)
	if rec2.Code != http.StatusNotModified {
		t.Fatalf("unchanged inbox: expected 304, got %d", rec2.Code)
	}
}

package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/tbourn/go-market-backend/internal/domain"
	"github.com/tbourn/go-market-backend/internal/services"
)

func TestSanitizeContent(t *testing.T) {
	cases := []struct{ in, want string }{
		{"hello\r\nworld", "hello\nworld"},
		{"a\rb", "a\nb"},
		{"p1\n\n\n\n\np2", "p1\n\np2"},
		{"  padded  ", "padded"},
	}
	for _, tc := range cases {
		if got := sanitizeContent(tc.in); got != tc.want {
			t.Fatalf("sanitizeContent(%q) = %q; want %q", tc.in, got, tc.want)
		}
	}
}

func TestPostMessage_Created(t *testing.T) {
	msg := &domain.Message{ID: "m1", ConversationID: "c1", SenderID: "alice", Content: "hi bob"}
	h := New(nil, &stubMsgSvc{
		send: func(_ context.Context, sender, receiver, content string, listingID *string) (*domain.Message, error) {
			if sender != "alice" || receiver != "bob" || content != "hi bob" {
				t.Errorf("unexpected args %q %q %q", sender, receiver, content)
			}
			return msg, nil
		},
	}, nil, nil)

	w := doJSON(t, newTestRouter(h), http.MethodPost, "/messages", "alice",
		`{"receiver_id":"bob","content":"hi bob"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (%s)", w.Code, w.Body.String())
	}
	var resp PostMessageResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.MessageID != "m1" || !resp.Success || resp.Message == nil {
		t.Fatalf("unexpected response %+v", resp)
	}
}

func TestPostMessage_BadPayload(t *testing.T) {
	h := New(nil, &stubMsgSvc{}, nil, nil)
	for _, body := range []string{`{}`, `{"receiver_id":"bob"}`, `{"content":"hi"}`, `not json`} {
		w := doJSON(t, newTestRouter(h), http.MethodPost, "/messages", "alice", body)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("body %q: expected 400, got %d", body, w.Code)
		}
	}
}

func TestPostMessage_WhitespaceOnlyContent(t *testing.T) {
	h := New(nil, &stubMsgSvc{
		send: func(context.Context, string, string, string, *string) (*domain.Message, error) {
			t.Errorf("service must not be called for whitespace-only content")
			return nil, nil
		},
	}, nil, nil)
	w := doJSON(t, newTestRouter(h), http.MethodPost, "/messages", "alice",
		`{"receiver_id":"bob","content":"   \n\t "}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestPostMessage_TooLongFailsFast(t *testing.T) {
	h := New(nil, &stubMsgSvc{
		send: func(context.Context, string, string, string, *string) (*domain.Message, error) {
			t.Errorf("service must not be called for over-long content")
			return nil, nil
		},
	}, nil, nil)
	long := strings.Repeat("x", services.DefaultMaxContentRunes+1)
	w := doJSON(t, newTestRouter(h), http.MethodPost, "/messages", "alice",
		fmt.Sprintf(`{"receiver_id":"bob","content":%q}`, long))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestPostMessage_ErrorMapping(t *testing.T) {
	cases := []struct {
		name       string
		svcErr     error
		wantStatus int
		wantCode   string
	}{
		{"self", services.ErrSelfMessage, http.StatusBadRequest, ErrCodeBadRequest},
		{"empty", services.ErrEmptyContent, http.StatusBadRequest, ErrCodeBadRequest},
		{"too long", services.ErrContentTooLong, http.StatusBadRequest, ErrCodeBadRequest},
		{"blocked", services.ErrBlocked, http.StatusForbidden, ErrCodeForbidden},
		{"internal", errors.New("boom"), http.StatusInternalServerError, ErrCodeSendFailed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := New(nil, &stubMsgSvc{
				send: func(context.Context, string, string, string, *string) (*domain.Message, error) {
					return nil, tc.svcErr
				},
			}, nil, nil)
			w := doJSON(t, newTestRouter(h), http.MethodPost, "/messages", "alice",
				`{"receiver_id":"bob","content":"hello"}`)
			if w.Code != tc.wantStatus {
				t.Fatalf("expected %d, got %d", tc.wantStatus, w.Code)
			}
			var resp ErrorResponse
			if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if resp.Code != tc.wantCode {
				t.Fatalf("expected code %q, got %q", tc.wantCode, resp.Code)
			}
		})
	}
}

package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func securityTestRouter(opt SecurityOptions) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestID(), SecurityHeaders(opt))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func TestSecurityHeaders_Baseline(t *testing.T) {
	r := securityTestRouter(SecurityOptions{})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	h := w.Header()
	if h.Get("X-Content-Type-Options") != "nosniff" ||
		h.Get("X-Frame-Options") != "DENY" ||
		h.Get("Referrer-Policy") != "no-referrer" {
		t.Fatalf("baseline headers missing: %+v", h)
	}
	if h.Get("Strict-Transport-Security") != "" {
		t.Fatalf("HSTS must not be set by default")
	}
	// Request ID is exposed for browser clients.
	if !strings.Contains(h.Get("Access-Control-Expose-Headers"), "X-Request-ID") {
		t.Fatalf("X-Request-ID should be exposed, got %q", h.Get("Access-Control-Expose-Headers"))
	}
}

func TestSecurityHeaders_OptionalGroups(t *testing.T) {
	r := securityTestRouter(SecurityOptions{
		NoStore:      true,
		EnablePolicy: true,
	})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	h := w.Header()
	if h.Get("Cache-Control") != "no-store" || h.Get("Pragma") != "no-cache" {
		t.Fatalf("no-store headers missing: %+v", h)
	}
	if h.Get("Permissions-Policy") == "" || h.Get("X-Permitted-Cross-Domain-Policies") != "none" {
		t.Fatalf("policy headers missing: %+v", h)
	}
}

func TestSecurityHeaders_HSTSOnlyOverHTTPS(t *testing.T) {
	r := securityTestRouter(SecurityOptions{
		EnableHSTS: true,
		HSTSMaxAge: 24 * time.Hour,
	})

	// Plain HTTP: no HSTS.
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	if w.Header().Get("Strict-Transport-Security") != "" {
		t.Fatalf("HSTS must not be emitted for plain HTTP")
	}

	// Proxied HTTPS: HSTS with the configured max-age.
	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Forwarded-Proto", "https")
	r.ServeHTTP(w, req)
	sts := w.Header().Get("Strict-Transport-Security")
	if !strings.Contains(sts, "max-age=86400") {
		t.Fatalf("unexpected HSTS header: %q", sts)
	}
}

func TestStrconvItoa(t *testing.T) {
	cases := map[int]string{0: "0", 7: "7", 86400: "86400", -42: "-42"}
	for in, want := range cases {
		if got := strconvItoa(in); got != want {
			t.Fatalf("strconvItoa(%d) = %q; want %q", in, got, want)
		}
	}
}

package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
)

func TestMemoryRateLimiterWindow(t *testing.T) {
	limiter := NewRateLimiter(nil, 3, 50*time.Millisecond)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if !limiter.Allow(ctx, "1.2.3.4") {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}
	if limiter.Allow(ctx, "1.2.3.4") {
		t.Fatal("request over the limit should be rejected")
	}

	// A different client has its own budget.
	if !limiter.Allow(ctx, "5.6.7.8") {
		t.Fatal("other client should be allowed")
	}

	// The window resets.
	time.Sleep(60 * time.Millisecond)
	if !limiter.Allow(ctx, "1.2.3.4") {
		t.Fatal("request after the window should be allowed")
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	e := echo.New()
	limiter := NewRateLimiter(nil, 1, time.Minute)
	handler := RateLimit(limiter)(func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	do := func() int {
		req := httptest.NewRequest(http.MethodGet, "/api/search?q=x", nil)
		req.Header.Set("X-Real-IP", "9.9.9.9")
		rec := httptest.NewRecorder()
		if err := handler(e.NewContext(req, rec)); err != nil {
			t.Fatalf("handler: %v", err)
		}
		return rec.Code
	}

	if code := do(); code != http.StatusOK {
		t.Fatalf("first request code = %d, want 200", code)
	}
	if code := do(); code != http.StatusTooManyRequests {
		t.Fatalf("second request code = %d, want 429", code)
	}
}

func TestRateLimitNilLimiterPassesThrough(t *testing.T) {
	e := echo.New()
	handler := RateLimit(nil)(func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	if err := handler(e.NewContext(req, rec)); err != nil {
		t.Fatalf("handler: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("code = %d, want 200", rec.Code)
	}
}

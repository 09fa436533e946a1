package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func TestAPIAuth(t *testing.T) {
	e := echo.New()
	handler := APIAuth("secret")(func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	do := func(key string) int {
		req := httptest.NewRequest(http.MethodGet, "/api/jobs", nil)
		if key != "" {
			req.Header.Set("X-API-Key", key)
		}
		rec := httptest.NewRecorder()
		if err := handler(e.NewContext(req, rec)); err != nil {
			t.Fatalf("handler: %v", err)
		}
		return rec.Code
	}

	if code := do(""); code != http.StatusUnauthorized {
		t.Errorf("missing key code = %d, want 401", code)
	}
	if code := do("wrong"); code != http.StatusUnauthorized {
		t.Errorf("wrong key code = %d, want 401", code)
	}
	if code := do("secret"); code != http.StatusOK {
		t.Errorf("valid key code = %d, want 200", code)
	}
}

func TestAPIAuthOpenWithoutKey(t *testing.T) {
	e := echo.New()
	handler := APIAuth("")(func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	req := httptest.NewRequest(http.MethodGet, "/api/jobs", nil)
	rec := httptest.NewRecorder()
	if err := handler(e.NewContext(req, rec)); err != nil {
		t.Fatalf("handler: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("code = %d, want 200 when no key is configured", rec.Code)
	}
}

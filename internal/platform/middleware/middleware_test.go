package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

func newContext(t *testing.T, method, target string) (echo.Context, *httptest.ResponseRecorder) {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	return echo.New().NewContext(req, rec), rec
}

func okHandler(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

func TestRequestID(t *testing.T) {
	tests := []struct {
		name     string
		incoming string
		want     string // empty means "any non-empty generated id"
	}{
		{"generates when absent", "", ""},
		{"preserves incoming header", "upstream-id-7", "upstream-id-7"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, rec := newContext(t, http.MethodGet, "/api/messages")
			if tt.incoming != "" {
				c.Request().Header.Set(RequestIDHeader, tt.incoming)
			}

			var seen string
			handler := func(c echo.Context) error {
				seen = GetRequestID(c)
				return okHandler(c)
			}
			if err := RequestID()(handler)(c); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if seen == "" {
				t.Fatal("expected an identifier in the handler context")
			}
			if tt.want != "" && seen != tt.want {
				t.Errorf("context id = %q, want %q", seen, tt.want)
			}
			if got := rec.Header().Get(RequestIDHeader); got != seen {
				t.Errorf("response header = %q, want %q", got, seen)
			}
		})
	}
}

func TestGetRequestID_WithoutMiddleware(t *testing.T) {
	c, _ := newContext(t, http.MethodGet, "/")
	if got := GetRequestID(c); got != "" {
		t.Errorf("expected empty id, got %q", got)
	}
}

func TestLogger_IncludesRequestID(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	c, _ := newContext(t, http.MethodGet, "/api/messages")
	c.Set(requestIDKey, "req-42")

	if err := Logger(logger)(okHandler)(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var line map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("log line is not JSON: %v", err)
	}
	if line["request_id"] != "req-42" {
		t.Errorf("request_id = %v, want req-42", line["request_id"])
	}
	if line["component"] != "http" {
		t.Errorf("component = %v, want http", line["component"])
	}
	if line["status"] != float64(http.StatusOK) {
		t.Errorf("status = %v, want 200", line["status"])
	}
}

func TestLogger_DemotesHealthProbes(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf).Level(zerolog.InfoLevel)

	c, _ := newContext(t, http.MethodGet, "/health")
	if err := Logger(logger)(okHandler)(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if buf.Len() != 0 {
		t.Errorf("expected health probe to be filtered at info level, got %q", buf.String())
	}
}

func TestRecovery(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	c, _ := newContext(t, http.MethodGet, "/api/messages")
	c.Set(requestIDKey, "req-42")

	panicking := func(c echo.Context) error {
		panic("boom")
	}

	err := Recovery(logger)(panicking)(c)
	if err == nil {
		t.Fatal("expected error from recovered panic")
	}
	he, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected *echo.HTTPError, got %T", err)
	}
	if he.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", he.Code)
	}

	out := buf.String()
	if !strings.Contains(out, "boom") || !strings.Contains(out, "req-42") {
		t.Errorf("panic log missing value or request id: %q", out)
	}
	if !strings.Contains(out, "stack") {
		t.Errorf("panic log missing stack: %q", out)
	}
}

func TestRecovery_PassesThrough(t *testing.T) {
	c, rec := newContext(t, http.MethodGet, "/")
	if err := Recovery(zerolog.Nop())(okHandler)(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

package trace

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestMiddlewareInjectsRequestID(t *testing.T) {
	var seen string
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestID(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})

	m := NewMiddleware(ExtractClientIP)
	req := httptest.NewRequest(http.MethodGet, "/api/transactions", nil)
	rec := httptest.NewRecorder()
	m.Middleware(handler).ServeHTTP(rec, req)

	if seen == "" {
		t.Fatal("expected request ID in handler context, got empty string")
	}
	if !strings.HasPrefix(seen, "req_") {
		t.Fatalf("expected request ID with req_ prefix, got %q", seen)
	}
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected status %d, got %d", http.StatusNoContent, rec.Code)
	}
}

func TestRequestIDMissing(t *testing.T) {
	if got := RequestID(context.Background()); got != "" {
		t.Fatalf("expected empty request ID for bare context, got %q", got)
	}
}

func TestGenerateRequestIDUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := GenerateRequestID()
		if !strings.HasPrefix(id, "req_") {
			t.Fatalf("expected req_ prefix, got %q", id)
		}
		if seen[id] {
			t.Fatalf("duplicate request ID generated: %q", id)
		}
		seen[id] = true
	}
}

func TestExtractClientIP(t *testing.T) {
	tests := []struct {
		name       string
		forwarded  string
		realIP     string
		remoteAddr string
		want       string
	}{
		{
			name:       "forwarded header wins",
			forwarded:  "203.0.113.9",
			realIP:     "198.51.100.2",
			remoteAddr: "10.0.0.1:1234",
			want:       "203.0.113.9",
		},
		{
			name:       "real ip when no forwarded",
			realIP:     "198.51.100.2",
			remoteAddr: "10.0.0.1:1234",
			want:       "198.51.100.2",
		},
		{
			name:       "remote addr fallback",
			remoteAddr: "10.0.0.1:1234",
			want:       "10.0.0.1:1234",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			if tt.forwarded != "" {
				req.Header.Set("X-Forwarded-For", tt.forwarded)
			}
			if tt.realIP != "" {
				req.Header.Set("X-Real-IP", tt.realIP)
			}
			if got := ExtractClientIP(req); got != tt.want {
				t.Fatalf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/yksoni-monk/poke/internal/log"
)

func captureCorrelation(got *string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*got = log.CorrelationID(r.Context())
	})
}

func TestCorrelationID_UsesHeader(t *testing.T) {
	var got string
	handler := CorrelationID(captureCorrelation(&got))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(CorrelationIDHeader, "abc-123")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if got != "abc-123" {
		t.Errorf("context id = %q, want abc-123", got)
	}
	if h := w.Header().Get(CorrelationIDHeader); h != "abc-123" {
		t.Errorf("response header = %q, want abc-123", h)
	}
}

func TestCorrelationID_FallsBackToRequestID(t *testing.T) {
	var got string
	handler := chimiddleware.RequestID(CorrelationID(captureCorrelation(&got)))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(chimiddleware.RequestIDHeader, "req-7")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if got != "req-7" {
		t.Errorf("context id = %q, want req-7", got)
	}
}

func TestCorrelationID_GeneratesUUID(t *testing.T) {
	var got string
	handler := CorrelationID(captureCorrelation(&got))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if _, err := uuid.Parse(got); err != nil {
		t.Errorf("generated id %q is not a UUID: %v", got, err)
	}
	if w.Header().Get(CorrelationIDHeader) != got {
		t.Error("response header should carry the generated id")
	}
}

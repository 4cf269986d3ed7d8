package health_test

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/playperu/walkquest/internal/handler/health"
)

type mockChecker struct{ err error }

func (m mockChecker) Check(_ context.Context) error { return m.err }

func TestHandler(t *testing.T) {
	tests := []struct {
		name       string
		checks     map[string]health.Checker
		optional   map[string]health.Checker
		wantStatus int
		wantBody   map[string]string
	}{
		{
			name:       "all healthy",
			checks:     map[string]health.Checker{"sqlite": mockChecker{}},
			optional:   map[string]health.Checker{"redis": mockChecker{}},
			wantStatus: http.StatusOK,
			wantBody:   map[string]string{"sqlite": "ok", "redis": "ok"},
		},
		{
			name:       "sqlite down",
			checks:     map[string]health.Checker{"sqlite": mockChecker{err: errors.New("locked")}},
			optional:   map[string]health.Checker{"redis": mockChecker{}},
			wantStatus: http.StatusServiceUnavailable,
			wantBody:   map[string]string{"sqlite": "error", "redis": "ok"},
		},
		{
			name:       "redis down is degraded",
			checks:     map[string]health.Checker{"sqlite": mockChecker{}},
			optional:   map[string]health.Checker{"redis": mockChecker{err: errors.New("refused")}},
			wantStatus: http.StatusOK,
			wantBody:   map[string]string{"sqlite": "ok", "redis": "degraded"},
		},
		{
			name: "both down",
			checks: map[string]health.Checker{
				"sqlite": health.CheckFunc(func(context.Context) error { return errors.New("db") }),
			},
			optional:   map[string]health.Checker{"redis": mockChecker{err: errors.New("cache")}},
			wantStatus: http.StatusServiceUnavailable,
			wantBody:   map[string]string{"sqlite": "error", "redis": "degraded"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := health.NewHandler(slog.Default(), tt.checks)
			for name, c := range tt.optional {
				h.Optional(name, c)
			}

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			rec := httptest.NewRecorder()
			h.Routes().ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}

			var body map[string]struct{ Status string }
			if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
				t.Fatalf("decoding response: %v", err)
			}

			for name, want := range tt.wantBody {
				if got := body[name].Status; got != want {
					t.Errorf("%s status = %q, want %q", name, got, want)
				}
			}
		})
	}
}

package app

import (
	"agenda/pkg/contracts"
	"agenda/pkg/logger"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/julienschmidt/httprouter"
)

type fakePinger struct{ err error }

func (f fakePinger) Ping(ctx context.Context) error { return f.err }

func TestReady(t *testing.T) {
	tests := []struct {
		name       string
		deps       map[string]contracts.Pinger
		wantStatus int
		wantBody   string
	}{
		{"all up", map[string]contracts.Pinger{"mongo": fakePinger{}, "redis": fakePinger{}}, http.StatusOK, "ready"},
		{"redis down", map[string]contracts.Pinger{"mongo": fakePinger{}, "redis": fakePinger{err: errors.New("refused")}}, http.StatusServiceUnavailable, "unavailable"},
		{"no deps", nil, http.StatusOK, "ready"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := httprouter.New()
			NewHealthHandler(tt.deps, logger.Discard()).RegisterRoutes(router)

			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}

			var resp HealthResponse
			if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
				t.Fatal(err)
			}
			if resp.Status != tt.wantBody {
				t.Errorf("status field = %q, want %q", resp.Status, tt.wantBody)
			}
			for name := range tt.deps {
				if resp.Dependencies[name] == "" {
					t.Errorf("missing dependency %q in report", name)
				}
			}
		})
	}
}

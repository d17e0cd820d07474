package http

import (
	apperrors "agenda/pkg/errors"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
)

func TestWriteError_StatusMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{name: "not found", err: apperrors.NotFoundWithID("Booking", "x"), wantStatus: http.StatusNotFound, wantCode: apperrors.CodeNotFound},
		{name: "rejected", err: apperrors.Rejected("Booking rejected", nil, nil), wantStatus: http.StatusConflict, wantCode: apperrors.CodeRejected},
		{name: "wrapped app error", err: fmt.Errorf("tx: %w", apperrors.Conflict("taken")), wantStatus: http.StatusConflict, wantCode: apperrors.CodeConflict},
		{name: "unavailable", err: apperrors.Unavailable("Booking store"), wantStatus: http.StatusServiceUnavailable, wantCode: apperrors.CodeUnavailable},
		{name: "plain error", err: errors.New("secret detail"), wantStatus: http.StatusInternalServerError, wantCode: apperrors.CodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			if err := WriteError(rec, tt.err); err != nil {
				t.Fatalf("unexpected write error: %v", err)
			}
			if rec.Code != tt.wantStatus {
				t.Errorf("expected status %d, got %d", tt.wantStatus, rec.Code)
			}

			var body ErrorResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("invalid JSON: %v", err)
			}
			if body.Code != tt.wantCode {
				t.Errorf("expected code %s, got %s", tt.wantCode, body.Code)
			}
			if tt.wantCode == apperrors.CodeInternal && body.Error != "Internal server error" {
				t.Errorf("internal errors must not leak, got %q", body.Error)
			}
		})
	}
}

func TestExtractDate(t *testing.T) {
	tests := []struct {
		query   string
		want    string
		wantErr bool
	}{
		{query: "date=2024-01-15", want: "2024-01-15"},
		{query: "", wantErr: true},
		{query: "date=15-01-2024", wantErr: true},
	}

	for _, tt := range tests {
		r := &http.Request{URL: &url.URL{RawQuery: tt.query}}
		got, err := ExtractDate(r)
		if (err != nil) != tt.wantErr {
			t.Errorf("%q: expected error=%v, got %v", tt.query, tt.wantErr, err)
		}
		if got != tt.want {
			t.Errorf("%q: expected %q, got %q", tt.query, tt.want, got)
		}
	}
}

package handler

import (
	"agenda/internal/bookings/service"
	"agenda/internal/slots"
	"agenda/internal/validation"
	apperrors "agenda/pkg/errors"
	httputil "agenda/pkg/http"
	"agenda/pkg/logger"
	"agenda/pkg/model"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/julienschmidt/httprouter"
)

// Mock service for testing
type mockBookingService struct {
	createFn     func(ctx context.Context, b *model.Booking) (*service.CreateResult, error)
	transitionFn func(ctx context.Context, id string, req *model.TransitionRequest) (*model.Booking, error)
	listFn       func(ctx context.Context, resourceID, date string) ([]model.Booking, error)
}

func (m *mockBookingService) CreateBooking(ctx context.Context, b *model.Booking) (*service.CreateResult, error) {
	return m.createFn(ctx, b)
}

func (m *mockBookingService) ValidateBooking(ctx context.Context, b *model.Booking) (model.ValidationResult, error) {
	return model.ValidationResult{IsValid: true}, nil
}

func (m *mockBookingService) Transition(ctx context.Context, id string, req *model.TransitionRequest) (*model.Booking, error) {
	return m.transitionFn(ctx, id, req)
}

func (m *mockBookingService) GetByID(ctx context.Context, id string) (*model.Booking, error) {
	return nil, apperrors.NotFoundWithID("Booking", id)
}

func (m *mockBookingService) ListByResourceAndDate(ctx context.Context, resourceID, date string) ([]model.Booking, error) {
	if m.listFn != nil {
		return m.listFn(ctx, resourceID, date)
	}
	return []model.Booking{}, nil
}

func (m *mockBookingService) CompleteDue(ctx context.Context) (int, error) {
	return 0, nil
}

type staticAvailability struct {
	rules []model.AvailabilityRule
}

func (s staticAvailability) ListRules(ctx context.Context, resourceID string) ([]model.AvailabilityRule, error) {
	return s.rules, nil
}

func (s staticAvailability) GetConfig(ctx context.Context, resourceID string) (model.ValidationConfig, error) {
	return model.ValidationConfig{ResourceID: resourceID}, nil
}

func newRouter(svc service.BookingService) *httprouter.Router {
	log := logger.Discard()
	avail := staticAvailability{rules: []model.AvailabilityRule{{
		ResourceID: "dr-a", DayOfWeek: 1, StartTime: 540, EndTime: 600,
		SlotDuration: 30, MaxConcurrent: 1, IsActive: true,
	}}}
	gen := slots.NewGenerator(avail, svc, validation.NewConflictValidator(), log)

	router := httprouter.New()
	NewBookingHandler(svc, gen, log).RegisterRoutes(router)
	return router
}

func TestCreate_Created(t *testing.T) {
	svc := &mockBookingService{
		createFn: func(ctx context.Context, b *model.Booking) (*service.CreateResult, error) {
			b.ID = "new-id"
			b.Status = model.StatusPending
			return &service.CreateResult{Booking: b, Warnings: []model.Warning{}, Suggestions: []model.Suggestion{}}, nil
		},
	}

	body := `{"resource_id":"dr-a","service_id":"consult","date":"2024-01-15","start_time":540,"duration_minutes":30,"client_name":"Alice","client_email":"alice@example.com"}`
	rec := httptest.NewRecorder()
	newRouter(svc).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/bookings", strings.NewReader(body)))

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	if !strings.Contains(rec.Body.String(), `"new-id"`) {
		t.Errorf("body = %s", rec.Body)
	}
}

func TestCreate_RejectionIs409WithConflicts(t *testing.T) {
	svc := &mockBookingService{
		createFn: func(ctx context.Context, b *model.Booking) (*service.CreateResult, error) {
			return nil, apperrors.Rejected("Booking conflicts with the resource's schedule", nil, map[string]any{
				"conflicts": []model.Conflict{{Type: model.ConflictTimeOverlap, Severity: model.SeverityCritical}},
			})
		},
	}

	rec := httptest.NewRecorder()
	newRouter(svc).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/bookings", strings.NewReader(`{"resource_id":"dr-a"}`)))

	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp httputil.ErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Code != apperrors.CodeRejected || resp.Details["conflicts"] == nil {
		t.Errorf("response = %+v", resp)
	}
}

func TestCreate_UnknownFieldIs400(t *testing.T) {
	svc := &mockBookingService{}
	rec := httptest.NewRecorder()
	newRouter(svc).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/bookings", strings.NewReader(`{"capacity":3}`)))

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestTransition_PassesIDAndStatus(t *testing.T) {
	var gotID string
	var gotStatus model.BookingStatus
	svc := &mockBookingService{
		transitionFn: func(ctx context.Context, id string, req *model.TransitionRequest) (*model.Booking, error) {
			gotID, gotStatus = id, req.Status
			return &model.Booking{ID: id, Status: req.Status}, nil
		},
	}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/bookings/id/abc/transition", strings.NewReader(`{"status":"confirmed"}`))
	newRouter(svc).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	if gotID != "abc" || gotStatus != model.StatusConfirmed {
		t.Errorf("service got %q/%q", gotID, gotStatus)
	}
}

func TestSlots(t *testing.T) {
	svc := &mockBookingService{
		listFn: func(ctx context.Context, resourceID, date string) ([]model.Booking, error) {
			b := model.Booking{ID: "x", ResourceID: resourceID, Date: date, StartTime: 540, DurationMinutes: 30, Status: model.StatusConfirmed}
			b.Normalize()
			return []model.Booking{b}, nil
		},
	}
	router := newRouter(svc)

	tests := []struct {
		name       string
		url        string
		wantStatus int
		wantSlots  []bool
	}{
		{"missing date", "/api/v1/resources/dr-a/slots", http.StatusBadRequest, nil},
		{"bad date", "/api/v1/resources/dr-a/slots?date=2024-13-01", http.StatusBadRequest, nil},
		{"monday", "/api/v1/resources/dr-a/slots?date=2024-01-15", http.StatusOK, []bool{false, true}},
		{"tuesday has no rule", "/api/v1/resources/dr-a/slots?date=2024-01-16", http.StatusOK, []bool{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.url, nil))
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
			}
			if tt.wantSlots == nil {
				return
			}

			var resp struct {
				Data []model.TimeSlot `json:"data"`
			}
			if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
				t.Fatal(err)
			}
			if len(resp.Data) != len(tt.wantSlots) {
				t.Fatalf("got %d slots, want %d", len(resp.Data), len(tt.wantSlots))
			}
			for i, want := range tt.wantSlots {
				if resp.Data[i].Available != want {
					t.Errorf("slot %d available = %v, want %v", i, resp.Data[i].Available, want)
				}
			}
		})
	}
}

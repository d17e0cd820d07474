package service

import (
	"agenda/internal/bookings/admission"
	bookingserrors "agenda/internal/bookings/errors"
	"agenda/internal/bookings/validator"
	"agenda/pkg/config"
	mongotx "agenda/pkg/db/mongo"
	apperrors "agenda/pkg/errors"
	"agenda/pkg/logger"
	"agenda/pkg/model"
	"context"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
)

// ────────────────────────────────────────────────
// Mocks
// ────────────────────────────────────────────────

type mockBookingRepository struct {
	mu       sync.Mutex
	bookings map[string]model.Booking

	findByDateErr  error
	updateStatusFn func(ctx context.Context, id string, from, to model.BookingStatus) (*model.Booking, error)
	updates        int
}

func newMockBookingRepo(seed ...model.Booking) *mockBookingRepository {
	m := &mockBookingRepository{bookings: make(map[string]model.Booking)}
	for _, b := range seed {
		m.bookings[b.ID] = b
	}
	return m
}

func (m *mockBookingRepository) Create(ctx context.Context, booking *model.Booking) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bookings[booking.ID] = *booking
	return nil
}

func (m *mockBookingRepository) FindByID(ctx context.Context, id string) (*model.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[id]
	if !ok {
		return nil, bookingserrors.ErrNotFound
	}
	return &b, nil
}

func (m *mockBookingRepository) FindByResourceAndDate(ctx context.Context, resourceID, date string) ([]model.Booking, error) {
	if m.findByDateErr != nil {
		return nil, m.findByDateErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Booking, 0)
	for _, b := range m.bookings {
		if b.ResourceID == resourceID && b.Date == date {
			out = append(out, b)
		}
	}
	return out, nil
}

func (m *mockBookingRepository) CountByClient(ctx context.Context, resourceID, email string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, b := range m.bookings {
		if b.ResourceID == resourceID && b.SameClient(email) {
			n++
		}
	}
	return n, nil
}

func (m *mockBookingRepository) UpdateStatus(ctx context.Context, id string, from, to model.BookingStatus) (*model.Booking, error) {
	if m.updateStatusFn != nil {
		return m.updateStatusFn(ctx, id, from, to)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updates++
	b, ok := m.bookings[id]
	if !ok || b.Status != from {
		return nil, bookingserrors.ErrStaleStatus
	}
	b.Status = to
	m.bookings[id] = b
	return &b, nil
}

func (m *mockBookingRepository) FindDue(ctx context.Context, status model.BookingStatus, onOrBefore string, limit int) ([]model.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Booking
	for _, b := range m.bookings {
		if b.Status == status && b.Date <= onOrBefore {
			out = append(out, b)
		}
	}
	return out, nil
}

func (m *mockBookingRepository) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return fn(mongo.NewSessionContext(ctx, nil))
}

func (m *mockBookingRepository) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.bookings)
}

type mockAvailability struct {
	rules     []model.AvailabilityRule
	config    model.ValidationConfig
	configErr error
}

func (m *mockAvailability) ListRules(ctx context.Context, resourceID string) ([]model.AvailabilityRule, error) {
	return m.rules, nil
}

func (m *mockAvailability) GetConfig(ctx context.Context, resourceID string) (model.ValidationConfig, error) {
	return m.config, m.configErr
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []model.Event
}

func (r *recordingNotifier) Notify(ctx context.Context, event model.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *recordingNotifier) Close() error { return nil }

func (r *recordingNotifier) types() []model.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.EventType
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

// ────────────────────────────────────────────────
// Fixtures
// ────────────────────────────────────────────────

const monday = "2024-01-15"

var fixedNow = time.Date(2024, 1, 10, 8, 0, 0, 0, time.UTC)

type fixture struct {
	svc      BookingService
	repo     *mockBookingRepository
	avail    *mockAvailability
	notifier *recordingNotifier
	gate     *admission.Gate
}

func newFixture(t *testing.T, seed ...model.Booking) *fixture {
	t.Helper()
	log := logger.Discard()
	cfg := &config.Config{Log: log}

	f := &fixture{
		repo: newMockBookingRepo(seed...),
		avail: &mockAvailability{
			rules: []model.AvailabilityRule{{
				ID:            "rule-1",
				ResourceID:    "dr-a",
				DayOfWeek:     1,
				StartTime:     9 * 60,
				EndTime:       12 * 60,
				SlotDuration:  30,
				MaxConcurrent: 1,
				IsActive:      true,
			}},
			config: model.ValidationConfig{ResourceID: "dr-a", MaxBookingsPerSlot: 1},
		},
		notifier: &recordingNotifier{},
		gate:     admission.NewGate(log, time.Second, 8),
	}
	t.Cleanup(f.gate.Close)

	f.svc = NewBookingService(Dependencies{
		Repo:         f.repo,
		Availability: f.avail,
		Validator:    validator.NewBookingValidator(log),
		Gate:         f.gate,
		Locker:       admission.LocalLocker{},
		Notifier:     f.notifier,
		Now:          func() time.Time { return fixedNow },
	}, cfg)
	return f
}

func request(start int, email, service string) *model.Booking {
	return &model.Booking{
		ResourceID:      "dr-a",
		ServiceID:       service,
		Date:            monday,
		StartTime:       start,
		DurationMinutes: 30,
		ClientName:      "Test Client",
		ClientEmail:     email,
	}
}

func rejectionTypes(t *testing.T, err error) []model.ConflictType {
	t.Helper()
	if !apperrors.HasCode(err, apperrors.CodeRejected) {
		t.Fatalf("expected a rejection, got %v", err)
	}
	var rejection *bookingserrors.RejectionError
	if !errors.As(err, &rejection) {
		t.Fatalf("rejection should wrap RejectionError, got %v", err)
	}
	var types []model.ConflictType
	for _, c := range rejection.Conflicts {
		types = append(types, c.Type)
	}
	return types
}

// ────────────────────────────────────────────────
// CreateBooking
// ────────────────────────────────────────────────

func TestCreateBooking_MondayScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a, err := f.svc.CreateBooking(ctx, request(540, "alice@example.com", "consult"))
	if err != nil {
		t.Fatalf("A should be accepted: %v", err)
	}
	if a.Booking.Status != model.StatusPending || a.Booking.ID == "" {
		t.Errorf("A = %+v, want pending with an ID", a.Booking)
	}
	if a.Booking.EndTime != 570 {
		t.Errorf("A end = %d, want 570", a.Booking.EndTime)
	}

	_, err = f.svc.CreateBooking(ctx, request(540, "bob@example.com", "consult"))
	if types := rejectionTypes(t, err); !slices.Contains(types, model.ConflictTimeOverlap) {
		t.Errorf("B conflicts = %v, want time_overlap", types)
	}

	c, err := f.svc.CreateBooking(ctx, request(570, "carol@example.com", "consult"))
	if err != nil {
		t.Fatalf("C should be accepted: %v", err)
	}
	if c.Booking.Status != model.StatusPending {
		t.Errorf("C status = %s", c.Booking.Status)
	}

	_, err = f.svc.CreateBooking(ctx, request(540, "ALICE@example.com", "follow-up"))
	if types := rejectionTypes(t, err); !slices.Contains(types, model.ConflictDuplicateBooking) {
		t.Errorf("D conflicts = %v, want duplicate_booking", types)
	}

	if got := f.repo.count(); got != 2 {
		t.Errorf("stored %d bookings, want 2", got)
	}

	types := f.notifier.types()
	created := 0
	for _, typ := range types {
		if typ == model.EventBookingCreated {
			created++
		}
	}
	if created != 2 || !slices.Contains(types, model.EventValidationConflict) {
		t.Errorf("events = %v", types)
	}
}

func TestCreateBooking_RejectionCarriesAlternatives(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.svc.CreateBooking(ctx, request(600, "a@example.com", "consult")); err != nil {
		t.Fatal(err)
	}
	_, err := f.svc.CreateBooking(ctx, request(600, "b@example.com", "consult"))

	appErr := apperrors.AsAppError(err)
	conflicts, ok := appErr.Details["conflicts"].([]model.Conflict)
	if !ok || len(conflicts) == 0 {
		t.Fatalf("details = %v", appErr.Details)
	}
	want := []int{570, 630, 540}
	if !slices.Equal(conflicts[0].SuggestedAlternatives, want) {
		t.Errorf("alternatives = %v, want %v", conflicts[0].SuggestedAlternatives, want)
	}
}

func TestCreateBooking_ConcurrentRequestsAdmitOne(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	const n = 16
	var wg sync.WaitGroup
	var mu sync.Mutex
	accepted, rejected := 0, 0
	for i := range n {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			email := string(rune('a'+i)) + "@example.com"
			_, err := f.svc.CreateBooking(ctx, request(600, email, "consult"))
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				accepted++
			} else if apperrors.HasCode(err, apperrors.CodeRejected) {
				rejected++
			}
		}(i)
	}
	wg.Wait()

	if accepted != 1 || rejected != n-1 {
		t.Errorf("accepted=%d rejected=%d, want 1/%d", accepted, rejected, n-1)
	}
}

func TestCreateBooking_InputErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(b *model.Booking)
		code   string
	}{
		{"missing email", func(b *model.Booking) { b.ClientEmail = "" }, apperrors.CodeValidation},
		{"bad date", func(b *model.Booking) { b.Date = "15/01/2024" }, apperrors.CodeValidation},
		{"past midnight", func(b *model.Booking) { b.StartTime = 23 * 60; b.DurationMinutes = 90 }, apperrors.CodeValidation},
		{"in the past", func(b *model.Booking) { b.Date = "2024-01-08" }, apperrors.CodeValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			b := request(540, "a@example.com", "consult")
			tt.mutate(b)

			_, err := f.svc.CreateBooking(context.Background(), b)
			if !apperrors.HasCode(err, tt.code) {
				t.Errorf("error = %v, want code %s", err, tt.code)
			}
			if f.repo.count() != 0 {
				t.Error("nothing should be stored")
			}
		})
	}
}

func TestCreateBooking_PastCheckUsesResourceTimezone(t *testing.T) {
	f := newFixture(t)
	// 2024-01-10 08:00 UTC is 10:00 in Jerusalem, so 09:00 that day has passed there.
	f.avail.config.Timezone = "Asia/Jerusalem"
	f.avail.rules[0].DayOfWeek = 3

	b := request(540, "a@example.com", "consult")
	b.Date = "2024-01-10"
	_, err := f.svc.CreateBooking(context.Background(), b)
	if !errors.Is(err, bookingserrors.ErrStartInPast) {
		t.Errorf("error = %v, want ErrStartInPast", err)
	}
}

func TestCreateBooking_FailsClosedOnStoreErrors(t *testing.T) {
	f := newFixture(t)
	f.repo.findByDateErr = bookingserrors.Repository("find_by_resource_and_date", errors.New("server selection timeout"))

	_, err := f.svc.CreateBooking(context.Background(), request(540, "a@example.com", "consult"))
	if !apperrors.HasCode(err, apperrors.CodeUnavailable) {
		t.Errorf("error = %v, want SERVICE_UNAVAILABLE", err)
	}
	if f.repo.count() != 0 {
		t.Error("nothing should be stored")
	}

	f.repo.findByDateErr = nil
	f.avail.configErr = apperrors.Unavailable("Availability store")
	_, err = f.svc.CreateBooking(context.Background(), request(540, "a@example.com", "consult"))
	if !apperrors.HasCode(err, apperrors.CodeUnavailable) {
		t.Errorf("error = %v, want SERVICE_UNAVAILABLE", err)
	}
}

func TestCreateBooking_ReturnsAdvisories(t *testing.T) {
	f := newFixture(t)

	result, err := f.svc.CreateBooking(context.Background(), request(540, "new@example.com", "consult"))
	if err != nil {
		t.Fatal(err)
	}
	var first bool
	for _, w := range result.Warnings {
		if w.Type == model.WarningFirstTimeClient {
			first = true
		}
	}
	if !first {
		t.Errorf("warnings = %v, want first_time_client", result.Warnings)
	}
	if len(result.Suggestions) == 0 || len(result.Suggestions) > 3 {
		t.Errorf("suggestions = %v, want 1..3", result.Suggestions)
	}
}

// ────────────────────────────────────────────────
// ValidateBooking
// ────────────────────────────────────────────────

func TestValidateBooking_DoesNotWrite(t *testing.T) {
	existing := model.Booking{
		ID: "11111111-1111-1111-1111-111111111111", ResourceID: "dr-a", ServiceID: "consult", Date: monday,
		StartTime: 540, DurationMinutes: 30, ClientEmail: "a@example.com", Status: model.StatusConfirmed,
	}
	f := newFixture(t, existing)

	result, err := f.svc.ValidateBooking(context.Background(), request(540, "b@example.com", "consult"))
	if err != nil {
		t.Fatal(err)
	}
	if result.IsValid {
		t.Error("overlapping candidate should be invalid")
	}
	if result.Warnings == nil || result.Suggestions == nil {
		t.Error("warnings and suggestions should be non-nil")
	}
	if f.repo.count() != 1 || len(f.notifier.types()) != 0 {
		t.Error("a dry run must not write or notify")
	}
}

func TestValidateBooking_AdvisoriesOnlyForValidCandidates(t *testing.T) {
	existing := model.Booking{
		ID: "11111111-1111-1111-1111-111111111111", ResourceID: "dr-a", ServiceID: "consult", Date: monday,
		StartTime: 540, DurationMinutes: 30, ClientEmail: "a@example.com", Status: model.StatusConfirmed,
	}
	f := newFixture(t, existing)
	ctx := context.Background()

	// first-time client at a taken slot: rejected, so neither the
	// first_time_client warning nor alternative slots are reported
	rejected, err := f.svc.ValidateBooking(ctx, request(540, "new@example.com", "consult"))
	if err != nil {
		t.Fatal(err)
	}
	if rejected.IsValid {
		t.Fatal("overlapping candidate should be invalid")
	}
	if len(rejected.Conflicts) == 0 {
		t.Error("rejected result should carry its conflicts")
	}
	if len(rejected.Warnings) != 0 || len(rejected.Suggestions) != 0 {
		t.Errorf("rejected result has warnings %v and suggestions %v, want none", rejected.Warnings, rejected.Suggestions)
	}

	accepted, err := f.svc.ValidateBooking(ctx, request(600, "new@example.com", "consult"))
	if err != nil {
		t.Fatal(err)
	}
	if !accepted.IsValid {
		t.Fatalf("free slot should be valid, conflicts = %v", accepted.Conflicts)
	}
	if len(accepted.Warnings) == 0 {
		t.Error("valid first-time booking should carry advisories")
	}
}

// ────────────────────────────────────────────────
// Transition
// ────────────────────────────────────────────────

const bookingID = "22222222-2222-2222-2222-222222222222"

func storedBooking(status model.BookingStatus) model.Booking {
	b := model.Booking{
		ID: bookingID, ResourceID: "dr-a", ServiceID: "consult", Date: monday,
		StartTime: 540, DurationMinutes: 30, ClientEmail: "a@example.com", Status: status,
	}
	b.Normalize()
	return b
}

func TestTransition(t *testing.T) {
	afterEnd := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		from   model.BookingStatus
		to     model.BookingStatus
		now    time.Time
		code   string
		writes int
	}{
		{"confirm pending", model.StatusPending, model.StatusConfirmed, fixedNow, "", 1},
		{"cancel before start", model.StatusConfirmed, model.StatusCancelled, fixedNow, "", 1},
		{"complete after end", model.StatusConfirmed, model.StatusCompleted, afterEnd, "", 1},
		{"repeat confirm", model.StatusConfirmed, model.StatusConfirmed, fixedNow, "", 0},
		{"complete too early", model.StatusConfirmed, model.StatusCompleted, fixedNow, apperrors.CodeValidation, 0},
		{"cancel after start", model.StatusConfirmed, model.StatusCancelled, afterEnd, apperrors.CodeValidation, 0},
		{"terminal is final", model.StatusCompleted, model.StatusCancelled, fixedNow, apperrors.CodeConflict, 0},
		{"pending cannot complete", model.StatusPending, model.StatusCompleted, afterEnd, apperrors.CodeConflict, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, storedBooking(tt.from))
			now := tt.now
			f.svc.(*bookingService).now = func() time.Time { return now }

			got, err := f.svc.Transition(context.Background(), bookingID, &model.TransitionRequest{Status: tt.to})
			if tt.code != "" {
				if !apperrors.HasCode(err, tt.code) {
					t.Fatalf("error = %v, want %s", err, tt.code)
				}
			} else {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if got.Status != tt.to {
					t.Errorf("status = %s, want %s", got.Status, tt.to)
				}
			}
			if f.repo.updates != tt.writes {
				t.Errorf("writes = %d, want %d", f.repo.updates, tt.writes)
			}
		})
	}
}

func TestTransition_LostRaceToSameTarget(t *testing.T) {
	f := newFixture(t, storedBooking(model.StatusPending))
	f.repo.updateStatusFn = func(ctx context.Context, id string, from, to model.BookingStatus) (*model.Booking, error) {
		// another driver confirmed first
		f.repo.mu.Lock()
		b := f.repo.bookings[id]
		b.Status = to
		f.repo.bookings[id] = b
		f.repo.mu.Unlock()
		return nil, bookingserrors.ErrStaleStatus
	}

	got, err := f.svc.Transition(context.Background(), bookingID, &model.TransitionRequest{Status: model.StatusConfirmed})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Status != model.StatusConfirmed {
		t.Errorf("status = %s", got.Status)
	}
}

func TestTransition_LostRaceToOtherTarget(t *testing.T) {
	f := newFixture(t, storedBooking(model.StatusPending))
	f.repo.updateStatusFn = func(ctx context.Context, id string, from, to model.BookingStatus) (*model.Booking, error) {
		f.repo.mu.Lock()
		b := f.repo.bookings[id]
		b.Status = model.StatusCancelled
		f.repo.bookings[id] = b
		f.repo.mu.Unlock()
		return nil, bookingserrors.ErrStaleStatus
	}

	_, err := f.svc.Transition(context.Background(), bookingID, &model.TransitionRequest{Status: model.StatusConfirmed})
	if !apperrors.HasCode(err, apperrors.CodeConflict) {
		t.Errorf("error = %v, want CONFLICT", err)
	}
}

func TestTransition_FreesCapacity(t *testing.T) {
	f := newFixture(t, storedBooking(model.StatusConfirmed))
	ctx := context.Background()

	if _, err := f.svc.CreateBooking(ctx, request(540, "b@example.com", "consult")); err == nil {
		t.Fatal("slot should be taken")
	}
	if _, err := f.svc.Transition(ctx, bookingID, &model.TransitionRequest{Status: model.StatusCancelled}); err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.CreateBooking(ctx, request(540, "b@example.com", "consult")); err != nil {
		t.Errorf("slot should be free after cancellation: %v", err)
	}
}

func TestGetByID_Errors(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.GetByID(context.Background(), "not-a-uuid")
	if !apperrors.HasCode(err, apperrors.CodeInvalidInput) {
		t.Errorf("error = %v, want INVALID_INPUT", err)
	}
	if !errors.Is(err, bookingserrors.ErrInvalidID) {
		t.Errorf("error = %v, want it to wrap ErrInvalidID", err)
	}
	if _, err := f.svc.GetByID(context.Background(), bookingID); !apperrors.HasCode(err, apperrors.CodeNotFound) {
		t.Errorf("error = %v, want NOT_FOUND", err)
	}
}

func TestCompleteDue(t *testing.T) {
	over := storedBooking(model.StatusConfirmed)
	upcoming := storedBooking(model.StatusConfirmed)
	upcoming.ID = "33333333-3333-3333-3333-333333333333"
	upcoming.Date = "2024-01-16"

	f := newFixture(t, over, upcoming)
	f.svc.(*bookingService).now = func() time.Time { return time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC) }

	n, err := f.svc.CompleteDue(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("completed %d, want 1", n)
	}
	got, _ := f.repo.FindByID(context.Background(), upcoming.ID)
	if got.Status != model.StatusConfirmed {
		t.Errorf("upcoming booking status = %s", got.Status)
	}
}

func TestListByResourceAndDate(t *testing.T) {
	f := newFixture(t, storedBooking(model.StatusConfirmed))
	ctx := context.Background()

	got, err := f.svc.ListByResourceAndDate(ctx, " DR-A ", "2024/01/15")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].ID != bookingID {
		t.Errorf("got %+v, want the stored booking", got)
	}

	for _, tt := range []struct{ resource, date string }{
		{"", monday},
		{"dr-a", "15-01-2024"},
	} {
		if _, err := f.svc.ListByResourceAndDate(ctx, tt.resource, tt.date); !apperrors.HasCode(err, apperrors.CodeValidation) {
			t.Errorf("ListByResourceAndDate(%q, %q) error = %v, want VALIDATION_ERROR", tt.resource, tt.date, err)
		}
	}
}

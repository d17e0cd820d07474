// Package supervisor re-validates committed bookings as the booking set of a
// watched resource changes, and reports what the admission path could not
// prevent.
package supervisor

import (
	"agenda/internal/notify"
	"agenda/internal/validation"
	"agenda/pkg/logger"
	"agenda/pkg/model"
	"context"
	"slices"
	"strings"
	"sync"
	"time"
)

const maxBackoff = 30 * time.Second

// BookingReader must read straight from storage; the supervisor never trusts a cache.
type BookingReader interface {
	FindByResourceAndDate(ctx context.Context, resourceID, date string) ([]model.Booking, error)
}

type RuleReader interface {
	FindRulesByResource(ctx context.Context, resourceID string) ([]model.AvailabilityRule, error)
}

type Dependencies struct {
	Bookings  BookingReader
	Rules     RuleReader
	Feed      Feed
	Conflicts *validation.ConflictValidator
	Notifier  notify.Notifier
	Backoff   time.Duration
	Now       func() time.Time
}

type Supervisor struct {
	bookings  BookingReader
	rules     RuleReader
	feed      Feed
	conflicts *validation.ConflictValidator
	analyzer  *validation.AdvisoryAnalyzer
	notifier  notify.Notifier
	backoff   time.Duration
	now       func() time.Time
	log       *logger.Logger

	mu      sync.Mutex
	nextID  int
	watches map[int]func()
}

func NewSupervisor(deps Dependencies, log *logger.Logger) *Supervisor {
	if deps.Conflicts == nil {
		deps.Conflicts = validation.NewConflictValidator()
	}
	if deps.Notifier == nil {
		deps.Notifier = notify.NewLogNotifier(log)
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Backoff <= 0 {
		deps.Backoff = time.Second
	}
	return &Supervisor{
		bookings:  deps.Bookings,
		rules:     deps.Rules,
		feed:      deps.Feed,
		conflicts: deps.Conflicts,
		analyzer:  validation.NewAdvisoryAnalyzer(deps.Conflicts, deps.Now),
		notifier:  deps.Notifier,
		backoff:   deps.Backoff,
		now:       deps.Now,
		log:       log.Component("supervisor"),
		watches:   make(map[int]func()),
	}
}

// Watch supervises resourceID in the background until the returned cancel is
// called. cancel is idempotent and returns once the watch goroutine has exited
// and the feed subscription is released.
func (s *Supervisor) Watch(resourceID string, cfg model.ValidationConfig, onEvent func(model.Event)) (cancel func()) {
	ctx, stop := context.WithCancel(context.Background())
	done := make(chan struct{})

	w := &watch{
		Supervisor:   s,
		resourceID:   resourceID,
		cfg:          cfg,
		onEvent:      onEvent,
		fingerprints: make(map[string]string),
	}
	go func() {
		defer close(done)
		w.run(ctx)
	}()

	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.mu.Unlock()

	cancel = sync.OnceFunc(func() {
		stop()
		<-done
		s.mu.Lock()
		delete(s.watches, id)
		s.mu.Unlock()
	})

	s.mu.Lock()
	s.watches[id] = cancel
	s.mu.Unlock()

	s.log.Info("Watch started", "resource_id", resourceID)
	return cancel
}

// Close cancels every active watch.
func (s *Supervisor) Close() error {
	s.mu.Lock()
	cancels := make([]func(), 0, len(s.watches))
	for _, c := range s.watches {
		cancels = append(cancels, c)
	}
	s.mu.Unlock()

	for _, c := range cancels {
		c()
	}
	return nil
}

type watch struct {
	*Supervisor
	resourceID string
	cfg        model.ValidationConfig
	onEvent    func(model.Event)

	// last reported fingerprint per booking ID
	fingerprints map[string]string
}

func (w *watch) run(ctx context.Context) {
	delay := w.backoff
	for {
		changes, err := w.feed.Subscribe(ctx, w.resourceID)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			w.log.Warn("Feed subscription failed", "resource_id", w.resourceID, "retry_in", delay, "error", err)
		} else {
			delay = w.backoff
			if !w.consume(ctx, changes) {
				return
			}
			w.log.Warn("Feed closed, resubscribing", "resource_id", w.resourceID, "retry_in", delay)
		}

		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return
		case <-t.C:
		}
		delay = min(delay*2, maxBackoff)
	}
}

// consume returns false when ctx ended, true when the feed closed on its own.
// After ctx ends it waits for the feed to close, so the subscription is torn
// down before the watch exits.
func (w *watch) consume(ctx context.Context, changes <-chan model.BookingChange) bool {
	for {
		select {
		case <-ctx.Done():
			for range changes {
			}
			return false
		case change, ok := <-changes:
			if !ok {
				return ctx.Err() == nil
			}
			w.handle(ctx, change)
		}
	}
}

func (w *watch) handle(ctx context.Context, change model.BookingChange) {
	b := change.Booking
	if b.ResourceID != "" && b.ResourceID != w.resourceID {
		return
	}
	if !change.Revalidates() {
		delete(w.fingerprints, b.ID)
		if b.Date == "" {
			return
		}
	}
	w.pass(ctx, b.Date)
}

// pass re-validates every active booking of the date against a fresh snapshot.
func (w *watch) pass(ctx context.Context, date string) {
	existing, err := w.bookings.FindByResourceAndDate(ctx, w.resourceID, date)
	if err != nil {
		w.log.Warn("Skipping validation pass, bookings unavailable", "resource_id", w.resourceID, "date", date, "error", err)
		return
	}
	rules, err := w.rules.FindRulesByResource(ctx, w.resourceID)
	if err != nil {
		w.log.Warn("Skipping validation pass, rules unavailable", "resource_id", w.resourceID, "date", date, "error", err)
		return
	}

	snap := validation.Snapshot{Existing: existing, Rules: rules, ClientHistory: -1}
	for _, b := range existing {
		if !b.Status.IsActive() {
			delete(w.fingerprints, b.ID)
			continue
		}

		result := w.conflicts.Validate(b, snap, w.cfg)
		warnings, suggestions := w.analyzer.Analyze(b, snap, w.cfg)

		fp := fingerprint(result.Conflicts, warnings)
		if w.fingerprints[b.ID] == fp {
			continue
		}
		w.fingerprints[b.ID] = fp

		for _, event := range w.events(b, result, warnings, suggestions) {
			w.emit(ctx, event)
		}
	}
}

func (w *watch) events(b model.Booking, result model.ValidationResult, warnings []model.Warning, suggestions []model.Suggestion) []model.Event {
	now := w.now()
	var events []model.Event

	if critical := result.Critical(); len(critical) > 0 {
		e := notify.NewEvent(model.EventInvariantViolation, model.PriorityHigh, b, now)
		e.Conflicts = result.Conflicts
		e.Warnings = []model.Warning{{
			Type:     model.WarningInvariantViolation,
			Severity: model.SeverityCritical,
			Message:  "Committed booking conflicts with the resource's schedule and needs manual reconciliation",
		}}
		e.Suggestions = suggestions
		events = append(events, e)
	} else if len(result.Conflicts) > 0 {
		e := notify.NewEvent(model.EventValidationConflict, model.PriorityNormal, b, now)
		e.Conflicts = result.Conflicts
		events = append(events, e)
	}

	if len(warnings) > 0 {
		e := notify.NewEvent(model.EventValidationWarning, model.PriorityNormal, b, now)
		e.Warnings = warnings
		e.Suggestions = suggestions
		events = append(events, e)
	}
	return events
}

func (w *watch) emit(ctx context.Context, event model.Event) {
	if w.onEvent != nil {
		w.onEvent(event)
	}
	if err := w.notifier.Notify(ctx, event); err != nil {
		w.log.Warn("Failed to publish supervisor event", "event_id", event.ID, "type", event.Type, "error", err)
	}
}

// fingerprint identifies a finding set independently of message wording order.
func fingerprint(conflicts []model.Conflict, warnings []model.Warning) string {
	parts := make([]string, 0, len(conflicts)+len(warnings))
	for _, c := range conflicts {
		other := ""
		if c.ConflictingBooking != nil {
			other = c.ConflictingBooking.ID
		}
		parts = append(parts, "c:"+string(c.Type)+":"+other)
	}
	for _, wn := range warnings {
		parts = append(parts, "w:"+string(wn.Type))
	}
	slices.Sort(parts)
	return strings.Join(parts, "|")
}

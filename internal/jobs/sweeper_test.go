package jobs

import (
	"agenda/pkg/logger"
	"context"
	"errors"
	"testing"
	"time"
)

type mockCompleter struct {
	completeFn func(ctx context.Context) (int, error)
}

func (m *mockCompleter) CompleteDue(ctx context.Context) (int, error) {
	return m.completeFn(ctx)
}

func TestNewSweeper_Schedule(t *testing.T) {
	completer := &mockCompleter{completeFn: func(ctx context.Context) (int, error) { return 0, nil }}

	tests := []struct {
		name     string
		schedule string
		wantErr  bool
	}{
		{"every five minutes", "*/5 * * * *", false},
		{"descriptor", "@hourly", false},
		{"garbage", "every now and then", true},
		{"seconds field not accepted", "0 */5 * * * *", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewSweeper(tt.schedule, completer, time.Second, logger.Discard())
			if (err != nil) != tt.wantErr {
				t.Errorf("NewSweeper(%q) error = %v, wantErr %v", tt.schedule, err, tt.wantErr)
			}
		})
	}
}

func TestRunOnce(t *testing.T) {
	calls := 0
	completer := &mockCompleter{completeFn: func(ctx context.Context) (int, error) {
		calls++
		if _, ok := ctx.Deadline(); !ok {
			t.Error("sweep context has no deadline")
		}
		if calls == 2 {
			return 1, errors.New("mongo down")
		}
		return 3, nil
	}}

	s, err := NewSweeper("@every 1h", completer, time.Second, logger.Discard())
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if n, err := s.RunOnce(ctx); n != 3 || err != nil {
		t.Errorf("RunOnce() = %d, %v", n, err)
	}
	if _, err := s.RunOnce(ctx); err == nil {
		t.Error("RunOnce() should surface completer errors")
	}
}

func TestStartClose(t *testing.T) {
	done := make(chan struct{}, 1)
	completer := &mockCompleter{completeFn: func(ctx context.Context) (int, error) {
		select {
		case done <- struct{}{}:
		default:
		}
		return 0, nil
	}}

	s, err := NewSweeper("@every 1s", completer, time.Second, logger.Discard())
	if err != nil {
		t.Fatal(err)
	}
	s.Start()

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Error("sweep never ran")
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
}

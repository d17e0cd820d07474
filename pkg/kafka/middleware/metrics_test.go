package kafka_middleware

import (
	"context"
	"errors"
	"testing"

	"agenda/pkg/kafka"
)

func TestMetrics_CountsOutcomes(t *testing.T) {
	var m Metrics
	produce := m.ProducerMiddleware()
	consume := m.ConsumerMiddleware()

	ok := func(context.Context, kafka.Message) error { return nil }
	fail := func(context.Context, kafka.Message) error { return errors.New("boom") }

	_ = produce(context.Background(), kafka.Message{}, ok)
	_ = produce(context.Background(), kafka.Message{}, ok)
	if err := produce(context.Background(), kafka.Message{}, fail); err == nil {
		t.Fatal("expected the handler error to pass through")
	}
	_ = consume(context.Background(), kafka.Message{}, fail)

	s := m.Snapshot()
	if s.Published != 2 || s.PublishFailed != 1 {
		t.Errorf("publish counters = %d/%d, want 2/1", s.Published, s.PublishFailed)
	}
	if s.Consumed != 0 || s.ConsumeFailed != 1 {
		t.Errorf("consume counters = %d/%d, want 0/1", s.Consumed, s.ConsumeFailed)
	}
}

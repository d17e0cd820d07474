package notify

import (
	"context"
	"fmt"

	"agenda/pkg/kafka"
	"agenda/pkg/model"
)

const eventSchemaVersion = "1"

type publisher interface {
	Publish(ctx context.Context, msg kafka.Message) error
	Close() error
}

// KafkaNotifier publishes events keyed by resource so one resource's events stay ordered.
type KafkaNotifier struct {
	producer publisher
	source   string
}

func NewKafkaNotifier(producer *kafka.Producer, source string) *KafkaNotifier {
	return &KafkaNotifier{producer: producer, source: source}
}

func (n *KafkaNotifier) Notify(ctx context.Context, event model.Event) error {
	msg, err := EventMessage(event, n.source)
	if err != nil {
		return err
	}
	if err := n.producer.Publish(ctx, msg); err != nil {
		return fmt.Errorf("publish %s event %s: %w", event.Type, event.ID, err)
	}
	return nil
}

func (n *KafkaNotifier) Close() error {
	return n.producer.Close()
}

func EventMessage(event model.Event, source string) (kafka.Message, error) {
	return kafka.NewMessage().
		WithKey(event.ResourceID).
		WithEventID(event.ID).
		WithEventType(string(event.Type)).
		WithResourceID(event.ResourceID).
		WithSchemaVersion(eventSchemaVersion).
		WithSource(source).
		WithTimestamp(event.OccurredAt).
		WithValue(event).
		Build()
}

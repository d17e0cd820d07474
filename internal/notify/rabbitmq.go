package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"agenda/pkg/logger"
	"agenda/pkg/model"

	amqp "github.com/rabbitmq/amqp091-go"
)

type amqpChannel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// RabbitMQNotifier publishes persistent JSON messages on a durable topic exchange,
// routed by event type.
type RabbitMQNotifier struct {
	exchange string
	log      *logger.Logger

	mu   sync.Mutex
	conn *amqp.Connection
	ch   amqpChannel
}

func NewRabbitMQNotifier(url, exchange string, log *logger.Logger) (*RabbitMQNotifier, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("rabbitmq dial: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("rabbitmq channel: %w", err)
	}

	if err := ch.ExchangeDeclare(exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("rabbitmq exchange declare %s: %w", exchange, err)
	}

	return &RabbitMQNotifier{
		exchange: exchange,
		log:      log.Component("notifier"),
		conn:     conn,
		ch:       ch,
	}, nil
}

func (n *RabbitMQNotifier) Notify(ctx context.Context, event model.Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event %s: %w", event.ID, err)
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    event.ID,
		Type:         string(event.Type),
		Timestamp:    event.OccurredAt,
		Priority:     priorityOf(event),
		Headers:      amqp.Table{"resource_id": event.ResourceID, "date": event.Date},
		Body:         body,
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	if n.ch == nil {
		return ErrNotifierClosed
	}
	if err := n.ch.PublishWithContext(ctx, n.exchange, string(event.Type), false, false, pub); err != nil {
		return fmt.Errorf("rabbitmq publish %s: %w", event.Type, err)
	}
	return nil
}

func (n *RabbitMQNotifier) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.ch == nil {
		return nil
	}

	err := n.ch.Close()
	n.ch = nil
	if n.conn != nil {
		if cerr := n.conn.Close(); err == nil {
			err = cerr
		}
		n.conn = nil
	}
	n.log.Info("RabbitMQ notifier closed")
	return err
}

func priorityOf(event model.Event) uint8 {
	if event.Priority == model.PriorityHigh {
		return 5
	}
	return 0
}

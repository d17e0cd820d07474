package notify

import (
	"fmt"

	"agenda/pkg/config"
	"agenda/pkg/kafka"
	kafka_config "agenda/pkg/kafka/config"
	kafka_middleware "agenda/pkg/kafka/middleware"
)

// FromConfig builds the configured backend wrapped in an Async buffer.
func FromConfig(cfg *config.Config, source string, metrics *kafka_middleware.Metrics) (Notifier, error) {
	var backend Notifier

	switch cfg.NotifierBackend {
	case config.NotifierKafka:
		kcfg, err := kafka_config.Load()
		if err != nil {
			return nil, err
		}
		kcfg.LogConfiguration(cfg.Log)

		producer, err := kafka.NewProducer(kcfg, cfg.Log, cfg.BookingEventsTopic, cfg.BookingEventsDLQ)
		if err != nil {
			return nil, fmt.Errorf("kafka producer: %w", err)
		}
		if kcfg.EnableMiddleware {
			producer.Use(kafka_middleware.LoggingProducerMiddleware(cfg.Log))
			if metrics != nil {
				producer.Use(metrics.ProducerMiddleware())
			}
		}
		backend = NewKafkaNotifier(producer, source)

	case config.NotifierRabbitMQ:
		rabbit, err := NewRabbitMQNotifier(cfg.RabbitMQURL, cfg.RabbitMQExchange, cfg.Log)
		if err != nil {
			return nil, err
		}
		backend = rabbit

	default:
		backend = NewLogNotifier(cfg.Log)
	}

	return NewAsync(backend, cfg.NotifierBuffer, cfg.Log), nil
}

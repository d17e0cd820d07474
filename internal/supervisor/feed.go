package supervisor

import (
	"agenda/internal/bookings/repository"
	"agenda/pkg/config"
	"agenda/pkg/kafka"
	kafka_config "agenda/pkg/kafka/config"
	"agenda/pkg/logger"
	"agenda/pkg/model"
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Feed delivers the booking changes of one resource. The channel closes when
// ctx ends or the underlying subscription breaks, and only once the
// subscription's resources are released.
type Feed interface {
	Subscribe(ctx context.Context, resourceID string) (<-chan model.BookingChange, error)
}

type MongoFeed struct {
	collection *mongo.Collection
	log        *logger.Logger
}

func NewMongoFeed(cfg *config.Config) *MongoFeed {
	db := cfg.Client.Mongo.Client.Database(cfg.MongoDatabaseName)
	return &MongoFeed{
		collection: db.Collection(repository.CollectionName),
		log:        cfg.Log.Component("mongo_feed"),
	}
}

type changeEvent struct {
	OperationType string        `bson:"operationType"`
	FullDocument  model.Booking `bson:"fullDocument"`
	DocumentKey   struct {
		ID string `bson:"_id"`
	} `bson:"documentKey"`
}

// Subscribe opens a change stream on the bookings collection. Deletes carry
// no document, so they pass the resource filter and are matched by ID later.
func (f *MongoFeed) Subscribe(ctx context.Context, resourceID string) (<-chan model.BookingChange, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{
			"$or": bson.A{
				bson.M{"fullDocument.resource_id": resourceID},
				bson.M{"operationType": string(model.OperationDelete)},
			},
		}}},
	}
	opts := options.ChangeStream().SetFullDocument(options.UpdateLookup)

	stream, err := f.collection.Watch(ctx, pipeline, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open change stream: %w", err)
	}

	out := make(chan model.BookingChange)
	go func() {
		defer close(out)
		defer stream.Close(context.Background())

		for stream.Next(ctx) {
			var ev changeEvent
			if err := stream.Decode(&ev); err != nil {
				f.log.Warn("Failed to decode change event", "resource_id", resourceID, "error", err)
				continue
			}

			change := model.BookingChange{
				Operation: model.ChangeOperation(ev.OperationType),
				Booking:   ev.FullDocument,
			}
			if change.Booking.ID == "" {
				change.Booking.ID = ev.DocumentKey.ID
			}

			select {
			case out <- change:
			case <-ctx.Done():
				return
			}
		}
		if err := stream.Err(); err != nil && ctx.Err() == nil {
			f.log.Warn("Change stream ended", "resource_id", resourceID, "error", err)
		}
	}()
	return out, nil
}

// KafkaFeed derives booking changes from the booking event topic the Kafka
// notifier publishes to.
type KafkaFeed struct {
	cfg      *kafka_config.Config
	topic    string
	groupID  string
	dlqTopic string
	use      []kafka.ConsumerMiddleware
	log      *logger.Logger
}

func NewKafkaFeed(cfg *kafka_config.Config, topic, groupID, dlqTopic string, log *logger.Logger, middleware ...kafka.ConsumerMiddleware) *KafkaFeed {
	return &KafkaFeed{
		cfg:      cfg,
		topic:    topic,
		groupID:  groupID,
		dlqTopic: dlqTopic,
		use:      middleware,
		log:      log.Component("kafka_feed"),
	}
}

// Subscribe joins a consumer group of its own per resource so every watch sees
// every partition.
func (f *KafkaFeed) Subscribe(ctx context.Context, resourceID string) (<-chan model.BookingChange, error) {
	out := make(chan model.BookingChange)

	handler := func(ctx context.Context, msg kafka.Message) error {
		if key := msg.Key; key != "" && key != resourceID {
			return nil
		}
		var event model.Event
		if err := msg.DecodeValue(&event); err != nil {
			return kafka.NewPermanentError("failed to decode booking event", err)
		}
		change, ok := ChangeFromEvent(event)
		if !ok || change.Booking.ResourceID != resourceID {
			return nil
		}
		select {
		case out <- change:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	consumer, err := kafka.NewConsumer(f.cfg, f.log, f.topic, f.groupID+"."+resourceID, f.dlqTopic, handler)
	if err != nil {
		return nil, err
	}
	for _, m := range f.use {
		consumer.Use(m)
	}

	go func() {
		defer close(out)
		if err := consumer.Start(ctx); err != nil && ctx.Err() == nil {
			f.log.Warn("Kafka consumer stopped", "resource_id", resourceID, "error", err)
		}
		if err := consumer.Close(); err != nil {
			f.log.Warn("Failed to close Kafka consumer", "resource_id", resourceID, "error", err)
		}
	}()
	return out, nil
}

// ChangeFromEvent maps lifecycle events to feed entries. Validation events are
// the supervisor's own output and never feed back into it.
func ChangeFromEvent(event model.Event) (model.BookingChange, bool) {
	if event.Booking == nil {
		return model.BookingChange{}, false
	}
	switch event.Type {
	case model.EventBookingCreated:
		return model.BookingChange{Operation: model.OperationInsert, Booking: *event.Booking}, true
	case model.EventBookingStatusChanged:
		return model.BookingChange{Operation: model.OperationUpdate, Booking: *event.Booking}, true
	}
	return model.BookingChange{}, false
}

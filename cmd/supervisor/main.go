package main

import (
	availabilityrepo "agenda/internal/availability/repository"
	availabilityservice "agenda/internal/availability/service"
	availabilityvalidator "agenda/internal/availability/validator"
	"agenda/internal/bookings/repository"
	"agenda/internal/notify"
	"agenda/internal/supervisor"
	"agenda/internal/validation"
	"agenda/pkg/config"
	"agenda/pkg/kafka"
	kafka_config "agenda/pkg/kafka/config"
	kafka_middleware "agenda/pkg/kafka/middleware"
	"agenda/pkg/model"
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"
)

const ServiceName = "supervisor"

func main() {
	cfg := config.Load(ServiceName)
	cfg.SetMongo()
	defer cfg.GracefulShutdown()

	if len(cfg.SupervisorResources) == 0 {
		cfg.Log.Fatal("No resources to supervise", "env", config.EnvSupervisorResources)
	}

	metrics := &kafka_middleware.Metrics{}
	notifier, err := notify.FromConfig(cfg, ServiceName, metrics)
	if err != nil {
		cfg.Log.Fatal("Failed to initialize notifier", "backend", cfg.NotifierBackend, "error", err)
	}
	defer func() {
		if err := notifier.Close(); err != nil {
			cfg.Log.Error("Failed to close notifier", "error", err)
		}
	}()

	availabilityRepo := availabilityrepo.NewMongoAvailabilityRepository(cfg)
	availabilityService := availabilityservice.NewAvailabilityService(
		availabilityRepo,
		availabilityvalidator.NewAvailabilityValidator(cfg.Log),
		nil,
		cfg,
	)

	sup := supervisor.NewSupervisor(supervisor.Dependencies{
		Bookings:  repository.NewMongoBookingRepository(cfg),
		Rules:     availabilityRepo,
		Feed:      initFeed(cfg, metrics),
		Conflicts: validation.NewConflictValidator(),
		Notifier:  notifier,
		Backoff:   cfg.SupervisorBackoff,
	}, cfg.Log)
	defer sup.Close()

	for _, resourceID := range cfg.SupervisorResources {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.RequestTimeout)
		vc, err := availabilityService.GetConfig(ctx, resourceID)
		cancel()
		if err != nil {
			cfg.Log.Error("Failed to load validation config, using defaults", "resource_id", resourceID, "error", err)
			vc = cfg.DefaultValidationConfig(resourceID)
		}

		sup.Watch(resourceID, vc, func(e model.Event) {
			if e.Priority == model.PriorityHigh {
				cfg.Log.Warn("Invariant violation detected",
					"resource_id", e.ResourceID,
					"date", e.Date,
					"booking_id", e.BookingID,
					"conflicts", len(e.Conflicts),
				)
			}
		})
	}
	cfg.Log.Info("Supervisor running", "resources", cfg.SupervisorResources, "feed", cfg.ChangeFeed)

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case sig := <-shutdown:
			cfg.Log.Info("Shutdown signal received", "signal", sig)
			return
		case <-ticker.C:
			if cfg.ChangeFeed == config.FeedKafka || cfg.NotifierBackend == config.NotifierKafka {
				snap := metrics.Snapshot()
				cfg.Log.Info("Kafka totals",
					"consumed", snap.Consumed,
					"consume_failed", snap.ConsumeFailed,
					"avg_consume_duration", snap.AvgConsumeDuration,
					"published", snap.Published,
					"publish_failed", snap.PublishFailed,
				)
			}
		}
	}
}

func initFeed(cfg *config.Config, metrics *kafka_middleware.Metrics) supervisor.Feed {
	if cfg.ChangeFeed != config.FeedKafka {
		cfg.Log.Info("Using Mongo change stream feed")
		return supervisor.NewMongoFeed(cfg)
	}

	kcfg, err := kafka_config.Load()
	if err != nil {
		cfg.Log.Fatal("Invalid Kafka configuration", "error", err)
	}
	kcfg.LogConfiguration(cfg.Log)

	var chain []kafka.ConsumerMiddleware
	if kcfg.EnableMiddleware {
		chain = append(chain, kafka_middleware.LoggingConsumerMiddleware(cfg.Log), metrics.ConsumerMiddleware())
	}
	cfg.Log.Info("Using Kafka booking event feed", "topic", cfg.BookingEventsTopic)
	return supervisor.NewKafkaFeed(kcfg, cfg.BookingEventsTopic, cfg.SupervisorGroupID, cfg.BookingEventsDLQ, cfg.Log, chain...)
}

package main

import (
	availabilityhandler "agenda/internal/availability/handler"
	availabilityrepo "agenda/internal/availability/repository"
	availabilityservice "agenda/internal/availability/service"
	availabilityvalidator "agenda/internal/availability/validator"
	"agenda/internal/bookings/admission"
	"agenda/internal/bookings/handler"
	"agenda/internal/bookings/repository"
	"agenda/internal/bookings/service"
	"agenda/internal/bookings/validator"
	"agenda/internal/cache"
	"agenda/internal/jobs"
	"agenda/internal/notify"
	"agenda/internal/slots"
	"agenda/internal/validation"
	"agenda/pkg/app"
	"agenda/pkg/config"
	kafka_middleware "agenda/pkg/kafka/middleware"
)

const ServiceName = "bookings"

func main() {
	cfg := config.Load(ServiceName)
	cfg.SetMongo()
	if cfg.UsesRedis() {
		cfg.SetRedis()
	}
	defer cfg.GracefulShutdown()

	cfg.Log.Info("Starting Bookings service")
	serverApp := app.NewApplication()

	store := initCacheStore(cfg)
	ruleCache := cache.New(store, cfg.CacheTTL, cfg.Log)

	metrics := &kafka_middleware.Metrics{}
	notifier, err := notify.FromConfig(cfg, ServiceName, metrics)
	if err != nil {
		cfg.Log.Fatal("Failed to initialize notifier", "backend", cfg.NotifierBackend, "error", err)
	}

	gate := admission.NewGate(cfg.Log, cfg.AdmissionIdleTimeout, cfg.AdmissionQueueSize)
	conflicts := validation.NewConflictValidator()

	availabilityService := availabilityservice.NewAvailabilityService(
		availabilityrepo.NewMongoAvailabilityRepository(cfg),
		availabilityvalidator.NewAvailabilityValidator(cfg.Log),
		ruleCache,
		cfg,
	)

	bookingService := service.NewBookingService(service.Dependencies{
		Repo:         repository.NewMongoBookingRepository(cfg),
		Availability: availabilityService,
		Validator:    validator.NewBookingValidator(cfg.Log),
		Conflicts:    conflicts,
		Gate:         gate,
		Locker:       initLocker(cfg),
		Notifier:     notifier,
	}, cfg)
	cfg.Log.Info("Booking service initialized", "database", cfg.MongoDatabaseName)

	generator := slots.NewGenerator(availabilityService, bookingService, conflicts, cfg.Log)

	serverApp.OnShutdown("cache", ruleCache)
	serverApp.OnShutdown("notifier", notifier)
	if cfg.NotifierBackend == config.NotifierKafka {
		serverApp.OnShutdown("kafka_metrics", app.CloseFunc(func() error {
			snap := metrics.Snapshot()
			cfg.Log.Info("Kafka producer totals",
				"published", snap.Published,
				"publish_failed", snap.PublishFailed,
				"avg_publish_duration", snap.AvgPublishDuration,
			)
			return nil
		}))
	}

	if cfg.SweeperEnabled {
		sweeper, err := jobs.NewSweeper(cfg.SweeperSchedule, bookingService, cfg.RequestTimeout*10, cfg.Log)
		if err != nil {
			cfg.Log.Fatal("Failed to schedule completion sweeper", "error", err)
		}
		sweeper.Start()
		serverApp.OnShutdown("sweeper", sweeper)
	}

	serverApp.OnShutdown("admission_gate", app.CloseFunc(func() error {
		gate.Close()
		return nil
	}))

	serverApp.SetApp(cfg,
		availabilityhandler.NewAvailabilityHandler(availabilityService, cfg.Log),
		handler.NewBookingHandler(bookingService, generator, cfg.Log),
	)
	serverApp.Run()
}

func initCacheStore(cfg *config.Config) cache.Store {
	if cfg.CacheBackend == config.CacheRedis {
		cfg.Log.Info("Using Redis cache", "addr", cfg.RedisAddr, "ttl", cfg.CacheTTL)
		return cache.NewRedisStore(cfg.Client.Redis.Client)
	}
	cfg.Log.Info("Using in-memory cache", "ttl", cfg.CacheTTL)
	return cache.NewMemoryStore(cfg.CacheTTL)
}

func initLocker(cfg *config.Config) admission.Locker {
	opts := admission.LockOptions{
		TTL:           cfg.LockTTL,
		RetryInterval: cfg.LockRetryInterval,
		MaxWait:       cfg.LockMaxWait,
	}
	if cfg.LockBackend == config.LockRedis {
		cfg.Log.Info("Using Redis admission lock", "ttl", cfg.LockTTL)
		return admission.NewRedisLocker(cfg.Client.Redis.Client, opts, cfg.Log)
	}
	cfg.Log.Info("Using Mongo admission lock", "ttl", cfg.LockTTL)
	return admission.NewMongoLocker(repository.NewAdmissionLockRepository(cfg), opts, cfg.Log)
}

package config

import (
	"agenda/pkg/client"
	"agenda/pkg/logger"
	"agenda/pkg/model"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
)

type Config struct {
	MongoURI          string
	MongoDatabaseName string
	MongoConnTimeout  time.Duration
	MongoMaxPoolSize  int

	Port string

	RateLimitRequests int
	RateLimitWindow   time.Duration

	RequestTimeout time.Duration
	IdempotencyTTL time.Duration
	MaxRequestSize int

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	CacheBackend  string
	CacheTTL      time.Duration
	RedisAddr     string
	RedisUsername string
	RedisPassword string
	RedisDB       int

	LockBackend       string
	LockTTL           time.Duration
	LockRetryInterval time.Duration
	LockMaxWait       time.Duration

	AdmissionIdleTimeout time.Duration
	AdmissionQueueSize   int

	NotifierBackend    string
	NotifierBuffer     int
	RabbitMQURL        string
	RabbitMQExchange   string
	BookingEventsTopic string
	BookingEventsDLQ   string

	ChangeFeed          string
	SupervisorGroupID   string
	SupervisorResources []string
	SupervisorBackoff   time.Duration

	SweeperEnabled  bool
	SweeperSchedule string

	DefaultTimezone           string
	DefaultMaxBookingsPerDay  int
	DefaultMaxBookingsPerSlot int
	DefaultBufferTimeMinutes  int
	DefaultLastMinuteHours    int

	ServiceName string
	Log         *logger.Logger
	Client      *client.Client
}

func Load(serviceName string) *Config {
	envFileErr := godotenv.Load()

	cfg := &Config{
		MongoURI:          getEnvStr(EnvMongoURI, DefaultMongoURI),
		MongoDatabaseName: getEnvStr(EnvMongoDatabaseName, DefaultMongoDatabaseName),
		MongoConnTimeout:  getEnvDuration(EnvMongoConnTimeout, DefaultMongoConnTimeout),
		MongoMaxPoolSize:  getEnvNum(EnvMongoMaxPoolSize, DefaultMongoMaxPoolSize),

		Port: getEnvStr(EnvPort, DefaultPort),

		RateLimitRequests: getEnvNum(EnvRateLimitRequests, DefaultRateLimitRequests),
		RateLimitWindow:   getEnvDuration(EnvRateLimitWindow, DefaultRateLimitWindow),

		RequestTimeout: getEnvDuration(EnvRequestTimeout, DefaultRequestTimeout),
		IdempotencyTTL: getEnvDuration(EnvIdempotencyTTL, DefaultIdempotencyTTL),
		MaxRequestSize: getEnvNum(EnvMaxRequestSize, DefaultMaxRequestSize),

		ReadTimeout:     getEnvDuration(EnvReadTimeout, DefaultReadTimeout),
		WriteTimeout:    getEnvDuration(EnvWriteTimeout, DefaultWriteTimeout),
		IdleTimeout:     getEnvDuration(EnvIdleTimeout, DefaultIdleTimeout),
		ShutdownTimeout: getEnvDuration(EnvShutdownTimeout, DefaultShutdownTimeout),

		CacheBackend:  getEnvStr(EnvCacheBackend, DefaultCacheBackend),
		CacheTTL:      getEnvDuration(EnvCacheTTL, DefaultCacheTTL),
		RedisAddr:     getEnvStr(EnvRedisAddr, DefaultRedisAddr),
		RedisUsername: getEnvStr(EnvRedisUsername, ""),
		RedisPassword: getEnvStr(EnvRedisPassword, ""),
		RedisDB:       getEnvNum(EnvRedisDB, DefaultRedisDB),

		LockBackend:       getEnvStr(EnvLockBackend, DefaultLockBackend),
		LockTTL:           getEnvDuration(EnvLockTTL, DefaultLockTTL),
		LockRetryInterval: getEnvDuration(EnvLockRetryInterval, DefaultLockRetryInterval),
		LockMaxWait:       getEnvDuration(EnvLockMaxWait, DefaultLockMaxWait),

		AdmissionIdleTimeout: getEnvDuration(EnvAdmissionIdleTimeout, DefaultAdmissionIdleTimeout),
		AdmissionQueueSize:   getEnvNum(EnvAdmissionQueueSize, DefaultAdmissionQueueSize),

		NotifierBackend:    getEnvStr(EnvNotifierBackend, DefaultNotifierBackend),
		NotifierBuffer:     getEnvNum(EnvNotifierBuffer, DefaultNotifierBuffer),
		RabbitMQURL:        getEnvStr(EnvRabbitMQURL, DefaultRabbitMQURL),
		RabbitMQExchange:   getEnvStr(EnvRabbitMQExchange, DefaultRabbitMQExchange),
		BookingEventsTopic: getEnvStr(EnvBookingEventsTopic, DefaultBookingEventsTopic),
		BookingEventsDLQ:   getEnvStr(EnvBookingEventsDLQ, DefaultBookingEventsDLQ),

		ChangeFeed:          getEnvStr(EnvChangeFeed, DefaultChangeFeed),
		SupervisorGroupID:   getEnvStr(EnvSupervisorGroupID, DefaultSupervisorGroupID),
		SupervisorResources: getEnvList(EnvSupervisorResources),
		SupervisorBackoff:   getEnvDuration(EnvSupervisorBackoff, DefaultSupervisorBackoff),

		SweeperEnabled:  getEnvBool(EnvSweeperEnabled, DefaultSweeperEnabled),
		SweeperSchedule: getEnvStr(EnvSweeperSchedule, DefaultSweeperSchedule),

		DefaultTimezone:           getEnvStr(EnvDefaultTimezone, DefaultTimezone),
		DefaultMaxBookingsPerDay:  getEnvNum(EnvDefaultMaxBookingsPerDay, DefaultMaxBookingsPerDay),
		DefaultMaxBookingsPerSlot: getEnvNum(EnvDefaultMaxBookingsPerSlot, DefaultMaxBookingsPerSlot),
		DefaultBufferTimeMinutes:  getEnvNum(EnvDefaultBufferTimeMinutes, DefaultBufferTimeMinutes),
		DefaultLastMinuteHours:    getEnvNum(EnvDefaultLastMinuteHours, DefaultLastMinuteHours),

		Log: logger.New(logger.Config{
			Level:     getEnvStr(EnvLogLevel, DefaultLogLevel),
			Format:    getEnvStr(EnvLogFormat, DefaultLogFormat),
			AddSource: true,
			Service:   serviceName,
		}),
		ServiceName: serviceName,
		Client:      client.NewClient(),
	}

	if envFileErr != nil && !errors.Is(envFileErr, fs.ErrNotExist) {
		cfg.Log.Warn("Failed to read .env file", "error", envFileErr)
	}

	err := cfg.Validate()
	if err != nil {
		cfg.Log.Fatal(err.Error())
	}
	cfg.LogConfiguration()
	return cfg
}

func (cfg *Config) SetMongo() {
	cfg.Client.SetMongo(cfg.Log, client.MongoOptions{
		URI:         cfg.MongoURI,
		AppName:     "agenda-" + cfg.ServiceName,
		ConnTimeout: cfg.MongoConnTimeout,
		MaxPoolSize: uint64(cfg.MongoMaxPoolSize),
	})
}

func (cfg *Config) SetRedis() {
	cfg.Client.SetRedis(cfg.Log, cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword, cfg.RedisDB)
}

// UsesRedis reports whether any configured backend needs a Redis connection.
func (cfg *Config) UsesRedis() bool {
	return cfg.CacheBackend == CacheRedis || cfg.LockBackend == LockRedis
}

// DefaultValidationConfig is the policy applied to resources without a stored one.
func (cfg *Config) DefaultValidationConfig(resourceID string) model.ValidationConfig {
	return model.ValidationConfig{
		ResourceID:                resourceID,
		RequireBufferTime:         cfg.DefaultBufferTimeMinutes > 0,
		BufferTimeMinutes:         cfg.DefaultBufferTimeMinutes,
		MaxBookingsPerDay:         cfg.DefaultMaxBookingsPerDay,
		MaxBookingsPerSlot:        cfg.DefaultMaxBookingsPerSlot,
		PreventLastMinuteBookings: cfg.DefaultLastMinuteHours > 0,
		LastMinuteThresholdHours:  cfg.DefaultLastMinuteHours,
		Timezone:                  cfg.DefaultTimezone,
	}
}

func (cfg *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(cfg.Port); err != nil || port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("Port must be between 1 and 65535, got: %s", cfg.Port))
	}

	if cfg.MongoURI == "" {
		errors = append(errors, "MongoURI cannot be empty")
	} else if len(cfg.MongoURI) < 10 || !regexp.MustCompile(`^mongodb(\+srv)?://`).MatchString(cfg.MongoURI) {
		errors = append(errors, fmt.Sprintf("MongoURI must start with 'mongodb://' or 'mongodb+srv://', got: %s", redactMongoURI(cfg.MongoURI)))
	}
	if cfg.MongoDatabaseName == "" {
		errors = append(errors, "MongoDatabaseName cannot be empty")
	}

	positive := []struct {
		name  string
		value time.Duration
	}{
		{"MongoConnTimeout", cfg.MongoConnTimeout},
		{"RateLimitWindow", cfg.RateLimitWindow},
		{"RequestTimeout", cfg.RequestTimeout},
		{"IdempotencyTTL", cfg.IdempotencyTTL},
		{"ReadTimeout", cfg.ReadTimeout},
		{"WriteTimeout", cfg.WriteTimeout},
		{"IdleTimeout", cfg.IdleTimeout},
		{"ShutdownTimeout", cfg.ShutdownTimeout},
		{"CacheTTL", cfg.CacheTTL},
		{"LockTTL", cfg.LockTTL},
		{"LockRetryInterval", cfg.LockRetryInterval},
		{"LockMaxWait", cfg.LockMaxWait},
		{"AdmissionIdleTimeout", cfg.AdmissionIdleTimeout},
		{"SupervisorBackoff", cfg.SupervisorBackoff},
	}
	for _, p := range positive {
		if p.value <= 0 {
			errors = append(errors, fmt.Sprintf("%s must be positive, got: %s", p.name, p.value))
		}
	}

	if cfg.RateLimitRequests <= 0 {
		errors = append(errors, fmt.Sprintf("RateLimitRequests must be positive, got: %d", cfg.RateLimitRequests))
	}
	if cfg.MongoMaxPoolSize <= 0 {
		errors = append(errors, fmt.Sprintf("MongoMaxPoolSize must be positive, got: %d", cfg.MongoMaxPoolSize))
	}
	if cfg.MaxRequestSize <= 0 {
		errors = append(errors, fmt.Sprintf("MaxRequestSize must be positive, got: %d", cfg.MaxRequestSize))
	}
	if cfg.AdmissionQueueSize <= 0 {
		errors = append(errors, fmt.Sprintf("AdmissionQueueSize must be positive, got: %d", cfg.AdmissionQueueSize))
	}
	if cfg.NotifierBuffer <= 0 {
		errors = append(errors, fmt.Sprintf("NotifierBuffer must be positive, got: %d", cfg.NotifierBuffer))
	}
	if cfg.LockMaxWait > cfg.RequestTimeout {
		errors = append(errors, fmt.Sprintf("LockMaxWait (%s) cannot exceed RequestTimeout (%s)", cfg.LockMaxWait, cfg.RequestTimeout))
	}

	if !slices.Contains([]string{CacheMemory, CacheRedis}, cfg.CacheBackend) {
		errors = append(errors, fmt.Sprintf("CacheBackend must be one of [memory, redis], got: %s", cfg.CacheBackend))
	}
	if !slices.Contains([]string{LockMongo, LockRedis}, cfg.LockBackend) {
		errors = append(errors, fmt.Sprintf("LockBackend must be one of [mongo, redis], got: %s", cfg.LockBackend))
	}
	if !slices.Contains([]string{NotifierLog, NotifierKafka, NotifierRabbitMQ}, cfg.NotifierBackend) {
		errors = append(errors, fmt.Sprintf("NotifierBackend must be one of [log, kafka, rabbitmq], got: %s", cfg.NotifierBackend))
	}
	if !slices.Contains([]string{FeedMongo, FeedKafka}, cfg.ChangeFeed) {
		errors = append(errors, fmt.Sprintf("ChangeFeed must be one of [mongo, kafka], got: %s", cfg.ChangeFeed))
	}
	if cfg.UsesRedis() && cfg.RedisAddr == "" {
		errors = append(errors, "RedisAddr cannot be empty when a redis backend is selected")
	}
	if cfg.NotifierBackend == NotifierRabbitMQ && !strings.HasPrefix(cfg.RabbitMQURL, "amqp") {
		errors = append(errors, fmt.Sprintf("RabbitMQURL must start with 'amqp', got: %s", redactURL(cfg.RabbitMQURL)))
	}
	if cfg.BookingEventsTopic == "" {
		errors = append(errors, "BookingEventsTopic cannot be empty")
	}

	if cfg.SweeperEnabled {
		if _, err := cron.ParseStandard(cfg.SweeperSchedule); err != nil {
			errors = append(errors, fmt.Sprintf("SweeperSchedule must be a valid cron expression, got: %s", cfg.SweeperSchedule))
		}
	}

	if _, err := time.LoadLocation(cfg.DefaultTimezone); err != nil {
		errors = append(errors, fmt.Sprintf("DefaultTimezone must be an IANA zone name, got: %s", cfg.DefaultTimezone))
	}
	if cfg.DefaultMaxBookingsPerDay < 0 {
		errors = append(errors, fmt.Sprintf("DefaultMaxBookingsPerDay cannot be negative, got: %d", cfg.DefaultMaxBookingsPerDay))
	}
	if cfg.DefaultMaxBookingsPerSlot < 0 {
		errors = append(errors, fmt.Sprintf("DefaultMaxBookingsPerSlot cannot be negative, got: %d", cfg.DefaultMaxBookingsPerSlot))
	}
	if cfg.DefaultBufferTimeMinutes < 0 {
		errors = append(errors, fmt.Sprintf("DefaultBufferTimeMinutes cannot be negative, got: %d", cfg.DefaultBufferTimeMinutes))
	}
	if cfg.DefaultLastMinuteHours < 0 {
		errors = append(errors, fmt.Sprintf("DefaultLastMinuteHours cannot be negative, got: %d", cfg.DefaultLastMinuteHours))
	}

	if len(errors) > 0 {
		errMsg := "Configuration validation failed:\n"
		for i, err := range errors {
			errMsg += fmt.Sprintf("  %d. %s\n", i+1, err)
		}
		return fmt.Errorf("%s", errMsg)
	}

	return nil
}

func (cfg *Config) LogConfiguration() {
	cfg.Log.Info("Configuration loaded successfully",
		"mongo_uri", redactMongoURI(cfg.MongoURI),
		"mongo_database", cfg.MongoDatabaseName,
		"mongo_conn_timeout", cfg.MongoConnTimeout,
		"mongo_max_pool_size", cfg.MongoMaxPoolSize,
		"port", cfg.Port,
		"rate_limit_requests", cfg.RateLimitRequests,
		"rate_limit_window", cfg.RateLimitWindow,
		"request_timeout", cfg.RequestTimeout,
		"idempotency_ttl", cfg.IdempotencyTTL,
		"max_request_size", cfg.MaxRequestSize,
		"read_timeout", cfg.ReadTimeout,
		"write_timeout", cfg.WriteTimeout,
		"idle_timeout", cfg.IdleTimeout,
		"shutdown_timeout", cfg.ShutdownTimeout,
		"cache_backend", cfg.CacheBackend,
		"cache_ttl", cfg.CacheTTL,
		"redis_addr", cfg.RedisAddr,
		"redis_password_set", cfg.RedisPassword != "",
		"lock_backend", cfg.LockBackend,
		"lock_ttl", cfg.LockTTL,
		"lock_max_wait", cfg.LockMaxWait,
		"admission_idle_timeout", cfg.AdmissionIdleTimeout,
		"admission_queue_size", cfg.AdmissionQueueSize,
		"notifier_backend", cfg.NotifierBackend,
		"rabbitmq_url", redactURL(cfg.RabbitMQURL),
		"booking_events_topic", cfg.BookingEventsTopic,
		"change_feed", cfg.ChangeFeed,
		"supervisor_resources", cfg.SupervisorResources,
		"sweeper_enabled", cfg.SweeperEnabled,
		"sweeper_schedule", cfg.SweeperSchedule,
		"default_timezone", cfg.DefaultTimezone,
		"default_max_bookings_per_day", cfg.DefaultMaxBookingsPerDay,
		"default_max_bookings_per_slot", cfg.DefaultMaxBookingsPerSlot,
		"default_buffer_time_minutes", cfg.DefaultBufferTimeMinutes,
		"default_last_minute_threshold_hours", cfg.DefaultLastMinuteHours,
	)
}

func redactMongoURI(uri string) string {
	credentialRegex := regexp.MustCompile(`(mongodb(\+srv)?://)[^:]+:[^@]+@`)
	return credentialRegex.ReplaceAllString(uri, "${1}***:***@")
}

func redactURL(uri string) string {
	credentialRegex := regexp.MustCompile(`(://)[^:/]+:[^@]+@`)
	return credentialRegex.ReplaceAllString(uri, "${1}***:***@")
}

func getEnvStr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvNum(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

func getEnvList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func (cfg *Config) GracefulShutdown() {
	cfg.Client.GracefulShutdown(cfg.Log)
}


package config

const (
	EnvMongoURI          = "MONGO_URI"
	EnvMongoDatabaseName = "MONGO_DATABASE_NAME"
	EnvMongoConnTimeout  = "MONGO_CONN_TIMEOUT"
	EnvMongoMaxPoolSize  = "MONGO_MAX_POOL_SIZE"

	EnvPort      = "PORT"
	EnvLogLevel  = "LOG_LEVEL"
	EnvLogFormat = "LOG_FORMAT"

	EnvRateLimitRequests = "RATE_LIMIT_REQUESTS"
	EnvRateLimitWindow   = "RATE_LIMIT_WINDOW"

	EnvRequestTimeout = "REQUEST_TIMEOUT"
	EnvIdempotencyTTL = "IDEMPOTENCY_TTL"
	EnvMaxRequestSize = "MAX_REQUEST_SIZE"

	EnvReadTimeout     = "READ_TIMEOUT"
	EnvWriteTimeout    = "WRITE_TIMEOUT"
	EnvIdleTimeout     = "IDLE_TIMEOUT"
	EnvShutdownTimeout = "SHUTDOWN_TIMEOUT"

	EnvCacheBackend  = "CACHE_BACKEND"
	EnvCacheTTL      = "CACHE_TTL"
	EnvRedisAddr     = "REDIS_ADDR"
	EnvRedisUsername = "REDIS_USERNAME"
	EnvRedisPassword = "REDIS_PASSWORD"
	EnvRedisDB       = "REDIS_DB"

	EnvLockBackend       = "LOCK_BACKEND"
	EnvLockTTL           = "LOCK_TTL"
	EnvLockRetryInterval = "LOCK_RETRY_INTERVAL"
	EnvLockMaxWait       = "LOCK_MAX_WAIT"

	EnvAdmissionIdleTimeout = "ADMISSION_IDLE_TIMEOUT"
	EnvAdmissionQueueSize   = "ADMISSION_QUEUE_SIZE"

	EnvNotifierBackend    = "NOTIFIER_BACKEND"
	EnvNotifierBuffer     = "NOTIFIER_BUFFER"
	EnvRabbitMQURL        = "RABBITMQ_URL"
	EnvRabbitMQExchange   = "RABBITMQ_EXCHANGE"
	EnvBookingEventsTopic = "BOOKING_EVENTS_TOPIC"
	EnvBookingEventsDLQ   = "BOOKING_EVENTS_DLQ_TOPIC"

	EnvChangeFeed          = "CHANGE_FEED"
	EnvSupervisorGroupID   = "SUPERVISOR_GROUP_ID"
	EnvSupervisorResources = "SUPERVISOR_RESOURCES"
	EnvSupervisorBackoff   = "SUPERVISOR_RESUBSCRIBE_BACKOFF"

	EnvSweeperEnabled  = "SWEEPER_ENABLED"
	EnvSweeperSchedule = "SWEEPER_SCHEDULE"

	EnvDefaultTimezone           = "DEFAULT_TIMEZONE"
	EnvDefaultMaxBookingsPerDay  = "DEFAULT_MAX_BOOKINGS_PER_DAY"
	EnvDefaultMaxBookingsPerSlot = "DEFAULT_MAX_BOOKINGS_PER_SLOT"
	EnvDefaultBufferTimeMinutes  = "DEFAULT_BUFFER_TIME_MINUTES"
	EnvDefaultLastMinuteHours    = "DEFAULT_LAST_MINUTE_THRESHOLD_HOURS"
)

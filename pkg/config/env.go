package config

const (
	EnvMongoURI          = "MONGO_URI"
	EnvMongoDatabaseName = "MONGO_DATABASE_NAME"
	EnvMongoConnTimeout  = "MONGO_CONN_TIMEOUT"

	EnvRedisAddr     = "REDIS_ADDR"
	EnvRedisPassword = "REDIS_PASSWORD"
	EnvRedisDB       = "REDIS_DB"

	EnvPort     = "PORT"
	EnvLogLevel = "LOG_LEVEL"

	EnvStoreBackend       = "STORE_BACKEND"
	EnvReservationBackend = "RESERVATION_BACKEND"
	EnvNotifierBackend    = "NOTIFIER_BACKEND"

	EnvRateLimitRequests = "RATE_LIMIT_REQUESTS"
	EnvRateLimitWindow   = "RATE_LIMIT_WINDOW"

	EnvRequestTimeout = "REQUEST_TIMEOUT"
	EnvIdempotencyTTL = "IDEMPOTENCY_TTL"
	EnvMaxRequestSize = "MAX_REQUEST_SIZE"

	EnvReadTimeout     = "READ_TIMEOUT"
	EnvWriteTimeout    = "WRITE_TIMEOUT"
	EnvIdleTimeout     = "IDLE_TIMEOUT"
	EnvShutdownTimeout = "SHUTDOWN_TIMEOUT"

	EnvReservationTTL           = "RESERVATION_TTL"
	EnvReservationSweepInterval = "RESERVATION_SWEEP_INTERVAL"
	EnvHoldTokenKey             = "HOLD_TOKEN_KEY"
	EnvActorSigningSecret       = "ACTOR_SIGNING_SECRET"

	EnvCancellationLeadTime = "BOOKING_CANCELLATION_LEAD_TIME"
	EnvAdvanceInterval      = "BOOKING_ADVANCE_INTERVAL"
	EnvAvailabilityMaxRange = "AVAILABILITY_MAX_RANGE"

	EnvBookingEventsTopic    = "BOOKING_EVENTS_TOPIC"
	EnvBookingEventsDLQTopic = "BOOKING_EVENTS_DLQ_TOPIC"
	EnvNotifierGroupID       = "NOTIFIER_GROUP_ID"
	EnvNotifyTimeout         = "NOTIFY_TIMEOUT"
	EnvNotifyConcurrency     = "NOTIFY_CONCURRENCY"
)

package config

import "time"

const (
	BackendMemory = "memory"
	BackendMongo  = "mongo"
	BackendRedis  = "redis"
	BackendKafka  = "kafka"
	BackendLog    = "log"
)

const (
	DefaultMongoURI          = "mongodb://localhost:27017"
	DefaultMongoDatabaseName = "tutorbook"
	DefaultMongoConnTimeout  = 10 * time.Second

	DefaultRedisAddr = "localhost:6379"
	DefaultRedisDB   = 0

	DefaultPort     = "8080"
	DefaultLogLevel = "info"

	DefaultStoreBackend       = BackendMongo
	DefaultReservationBackend = BackendMongo
	DefaultNotifierBackend    = BackendKafka

	DefaultRateLimitRequests = 60
	DefaultRateLimitWindow   = 1 * time.Minute

	DefaultRequestTimeout = 30 * time.Second
	DefaultIdempotencyTTL = 24 * time.Hour
	DefaultMaxRequestSize = 1 * 1024 * 1024 // 1MB

	DefaultReadTimeout     = 15 * time.Second
	DefaultWriteTimeout    = 15 * time.Second
	DefaultIdleTimeout     = 60 * time.Second
	DefaultShutdownTimeout = 30 * time.Second

	DefaultReservationTTL           = 30 * time.Second
	DefaultReservationSweepInterval = 10 * time.Second

	DefaultCancellationLeadTime = 24 * time.Hour
	DefaultAdvanceInterval      = 1 * time.Minute
	DefaultAvailabilityMaxRange = 93 * 24 * time.Hour

	DefaultBookingEventsTopic    = "booking-events"
	DefaultBookingEventsDLQTopic = "booking-events-dlq"
	DefaultNotifierGroupID       = "booking-notifier"
	DefaultNotifyTimeout         = 5 * time.Second
	DefaultNotifyConcurrency     = 32

	DefaultPaginationLimit = 100
)

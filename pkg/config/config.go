package config

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"time"

	"tutorbook/pkg/client"
	"tutorbook/pkg/logger"
)

var (
	mongoURIRegex   = regexp.MustCompile(`^mongodb(\+srv)?://`)
	credentialRegex = regexp.MustCompile(`(mongodb(\+srv)?://)[^:]+:[^@]+@`)
)

type Config struct {
	MongoURI          string
	MongoDatabaseName string
	MongoConnTimeout  time.Duration

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	Port string

	StoreBackend       string
	ReservationBackend string
	NotifierBackend    string

	RateLimitRequests int
	RateLimitWindow   time.Duration

	RequestTimeout time.Duration
	IdempotencyTTL time.Duration
	MaxRequestSize int

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	ReservationTTL           time.Duration
	ReservationSweepInterval time.Duration
	HoldTokenKey             string
	ActorSigningSecret       string

	CancellationLeadTime time.Duration
	AdvanceInterval      time.Duration
	AvailabilityMaxRange time.Duration

	BookingEventsTopic    string
	BookingEventsDLQTopic string
	NotifierGroupID       string
	NotifyTimeout         time.Duration
	NotifyConcurrency     int

	Log    *logger.Logger
	Client *client.Client
}

func Load(serviceName string) *Config {
	cfg := &Config{
		MongoURI:          getEnvStr(EnvMongoURI, DefaultMongoURI),
		MongoDatabaseName: getEnvStr(EnvMongoDatabaseName, DefaultMongoDatabaseName),
		MongoConnTimeout:  getEnvDuration(EnvMongoConnTimeout, DefaultMongoConnTimeout),

		RedisAddr:     getEnvStr(EnvRedisAddr, DefaultRedisAddr),
		RedisPassword: getEnvStr(EnvRedisPassword, ""),
		RedisDB:       getEnvNum(EnvRedisDB, DefaultRedisDB),

		Port: getEnvStr(EnvPort, DefaultPort),

		StoreBackend:       getEnvStr(EnvStoreBackend, DefaultStoreBackend),
		ReservationBackend: getEnvStr(EnvReservationBackend, DefaultReservationBackend),
		NotifierBackend:    getEnvStr(EnvNotifierBackend, DefaultNotifierBackend),

		RateLimitRequests: getEnvNum(EnvRateLimitRequests, DefaultRateLimitRequests),
		RateLimitWindow:   getEnvDuration(EnvRateLimitWindow, DefaultRateLimitWindow),

		RequestTimeout: getEnvDuration(EnvRequestTimeout, DefaultRequestTimeout),
		IdempotencyTTL: getEnvDuration(EnvIdempotencyTTL, DefaultIdempotencyTTL),
		MaxRequestSize: getEnvNum(EnvMaxRequestSize, DefaultMaxRequestSize),

		ReadTimeout:     getEnvDuration(EnvReadTimeout, DefaultReadTimeout),
		WriteTimeout:    getEnvDuration(EnvWriteTimeout, DefaultWriteTimeout),
		IdleTimeout:     getEnvDuration(EnvIdleTimeout, DefaultIdleTimeout),
		ShutdownTimeout: getEnvDuration(EnvShutdownTimeout, DefaultShutdownTimeout),

		ReservationTTL:           getEnvDuration(EnvReservationTTL, DefaultReservationTTL),
		ReservationSweepInterval: getEnvDuration(EnvReservationSweepInterval, DefaultReservationSweepInterval),
		HoldTokenKey:             getEnvStr(EnvHoldTokenKey, ""),
		ActorSigningSecret:       getEnvStr(EnvActorSigningSecret, ""),

		CancellationLeadTime: getEnvDuration(EnvCancellationLeadTime, DefaultCancellationLeadTime),
		AdvanceInterval:      getEnvDuration(EnvAdvanceInterval, DefaultAdvanceInterval),
		AvailabilityMaxRange: getEnvDuration(EnvAvailabilityMaxRange, DefaultAvailabilityMaxRange),

		BookingEventsTopic:    getEnvStr(EnvBookingEventsTopic, DefaultBookingEventsTopic),
		BookingEventsDLQTopic: getEnvStr(EnvBookingEventsDLQTopic, DefaultBookingEventsDLQTopic),
		NotifierGroupID:       getEnvStr(EnvNotifierGroupID, DefaultNotifierGroupID),
		NotifyTimeout:         getEnvDuration(EnvNotifyTimeout, DefaultNotifyTimeout),
		NotifyConcurrency:     getEnvNum(EnvNotifyConcurrency, DefaultNotifyConcurrency),

		Log: logger.New(logger.Config{
			Level:     getEnvStr(EnvLogLevel, DefaultLogLevel),
			Format:    logger.JSON,
			AddSource: true,
			Service:   serviceName,
		}),
		Client: client.NewClient(),
	}

	if err := cfg.Validate(); err != nil {
		cfg.Log.Fatal("Invalid configuration", "error", err)
	}
	cfg.LogConfiguration()
	return cfg
}

func (cfg *Config) SetMongo() {
	cfg.Client.SetMongo(cfg.Log, cfg.MongoURI, cfg.MongoConnTimeout)
}

func (cfg *Config) SetRedis() {
	cfg.Client.SetRedis(cfg.Log, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
}

// NeedsMongo reports whether any configured backend lives in MongoDB.
func (cfg *Config) NeedsMongo() bool {
	return cfg.StoreBackend == BackendMongo || cfg.ReservationBackend == BackendMongo
}

func (cfg *Config) NeedsRedis() bool {
	return cfg.ReservationBackend == BackendRedis
}

func (cfg *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(cfg.Port); err != nil || port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("Port must be between 1 and 65535, got: %s", cfg.Port))
	}

	switch cfg.StoreBackend {
	case BackendMemory, BackendMongo:
	default:
		errors = append(errors, fmt.Sprintf("StoreBackend must be one of [memory, mongo], got: %s", cfg.StoreBackend))
	}
	switch cfg.ReservationBackend {
	case BackendMemory, BackendMongo, BackendRedis:
	default:
		errors = append(errors, fmt.Sprintf("ReservationBackend must be one of [memory, mongo, redis], got: %s", cfg.ReservationBackend))
	}
	switch cfg.NotifierBackend {
	case BackendKafka, BackendLog:
	default:
		errors = append(errors, fmt.Sprintf("NotifierBackend must be one of [kafka, log], got: %s", cfg.NotifierBackend))
	}

	if cfg.NeedsMongo() {
		if cfg.MongoURI == "" {
			errors = append(errors, "MongoURI cannot be empty")
		} else if !mongoURIRegex.MatchString(cfg.MongoURI) {
			errors = append(errors, fmt.Sprintf("MongoURI must start with 'mongodb://' or 'mongodb+srv://', got: %s", redactMongoURI(cfg.MongoURI)))
		}
		if cfg.MongoDatabaseName == "" {
			errors = append(errors, "MongoDatabaseName cannot be empty")
		}
		if cfg.MongoConnTimeout <= 0 {
			errors = append(errors, fmt.Sprintf("MongoConnTimeout must be positive, got: %s", cfg.MongoConnTimeout))
		}
	}
	if cfg.NeedsRedis() && cfg.RedisAddr == "" {
		errors = append(errors, "RedisAddr cannot be empty when ReservationBackend is redis")
	}
	if cfg.RedisDB < 0 {
		errors = append(errors, fmt.Sprintf("RedisDB cannot be negative, got: %d", cfg.RedisDB))
	}

	positive := []struct {
		name  string
		value time.Duration
	}{
		{"RateLimitWindow", cfg.RateLimitWindow},
		{"RequestTimeout", cfg.RequestTimeout},
		{"IdempotencyTTL", cfg.IdempotencyTTL},
		{"ReadTimeout", cfg.ReadTimeout},
		{"WriteTimeout", cfg.WriteTimeout},
		{"IdleTimeout", cfg.IdleTimeout},
		{"ShutdownTimeout", cfg.ShutdownTimeout},
		{"ReservationTTL", cfg.ReservationTTL},
		{"ReservationSweepInterval", cfg.ReservationSweepInterval},
		{"AdvanceInterval", cfg.AdvanceInterval},
		{"AvailabilityMaxRange", cfg.AvailabilityMaxRange},
		{"NotifyTimeout", cfg.NotifyTimeout},
	}
	for _, p := range positive {
		if p.value <= 0 {
			errors = append(errors, fmt.Sprintf("%s must be positive, got: %s", p.name, p.value))
		}
	}

	if cfg.CancellationLeadTime < 0 {
		errors = append(errors, fmt.Sprintf("CancellationLeadTime cannot be negative, got: %s", cfg.CancellationLeadTime))
	}
	if cfg.RateLimitRequests <= 0 {
		errors = append(errors, fmt.Sprintf("RateLimitRequests must be positive, got: %d", cfg.RateLimitRequests))
	}
	if cfg.MaxRequestSize <= 0 {
		errors = append(errors, fmt.Sprintf("MaxRequestSize must be positive, got: %d", cfg.MaxRequestSize))
	}
	if cfg.NotifyConcurrency <= 0 {
		errors = append(errors, fmt.Sprintf("NotifyConcurrency must be positive, got: %d", cfg.NotifyConcurrency))
	}
	if cfg.NotifierBackend == BackendKafka && cfg.BookingEventsTopic == "" {
		errors = append(errors, "BookingEventsTopic cannot be empty when NotifierBackend is kafka")
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
		"redis_addr", cfg.RedisAddr,
		"redis_password_set", cfg.RedisPassword != "",
		"port", cfg.Port,
		"store_backend", cfg.StoreBackend,
		"reservation_backend", cfg.ReservationBackend,
		"notifier_backend", cfg.NotifierBackend,
		"rate_limit_requests", cfg.RateLimitRequests,
		"rate_limit_window", cfg.RateLimitWindow,
		"request_timeout", cfg.RequestTimeout,
		"idempotency_ttl", cfg.IdempotencyTTL,
		"max_request_size", cfg.MaxRequestSize,
		"read_timeout", cfg.ReadTimeout,
		"write_timeout", cfg.WriteTimeout,
		"idle_timeout", cfg.IdleTimeout,
		"shutdown_timeout", cfg.ShutdownTimeout,
		"reservation_ttl", cfg.ReservationTTL,
		"reservation_sweep_interval", cfg.ReservationSweepInterval,
		"hold_token_key_set", cfg.HoldTokenKey != "",
		"actor_signing_enabled", cfg.ActorSigningSecret != "",
		"cancellation_lead_time", cfg.CancellationLeadTime,
		"advance_interval", cfg.AdvanceInterval,
		"availability_max_range", cfg.AvailabilityMaxRange,
		"booking_events_topic", cfg.BookingEventsTopic,
		"booking_events_dlq_topic", cfg.BookingEventsDLQTopic,
		"notifier_group_id", cfg.NotifierGroupID,
		"notify_timeout", cfg.NotifyTimeout,
		"notify_concurrency", cfg.NotifyConcurrency,
	)
}

func redactMongoURI(uri string) string {
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

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

func (cfg *Config) GracefulShutdown() {
	cfg.Client.GracefulShutdown(cfg.Log)
}

func NormalizePaginationLimit(limit int) int {
	if limit <= 0 {
		limit = 10
	} else if limit > DefaultPaginationLimit {
		limit = DefaultPaginationLimit
	}
	return limit
}

func NormalizeOffset(offset int64) int64 {
	return max(0, offset)
}

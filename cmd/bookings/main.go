package main

import (
	"context"

	availabilityhandler "tutorbook/internal/availability/handler"
	availabilityrepo "tutorbook/internal/availability/repository"
	availabilityservice "tutorbook/internal/availability/service"
	availabilityvalidator "tutorbook/internal/availability/validator"
	"tutorbook/internal/bookings/events"
	bookinghandler "tutorbook/internal/bookings/handler"
	bookingrepo "tutorbook/internal/bookings/repository"
	bookingservice "tutorbook/internal/bookings/service"
	bookingvalidator "tutorbook/internal/bookings/validator"
	"tutorbook/internal/reservation"
	"tutorbook/pkg/app"
	"tutorbook/pkg/config"
	"tutorbook/pkg/kafka"
	kafka_config "tutorbook/pkg/kafka/config"
	kafka_middleware "tutorbook/pkg/kafka/middleware"
	"tutorbook/pkg/sealer"
)

const ServiceName = "bookings"

func main() {
	cfg := config.Load(ServiceName)
	if cfg.NeedsMongo() {
		cfg.SetMongo()
	}
	if cfg.NeedsRedis() {
		cfg.SetRedis()
	}

	cfg.Log.Info("Starting Bookings service")
	serverApp := app.NewApplication(cfg)

	availability := initAvailability(cfg)
	lock := initReservationLock(cfg)
	notifier, closeNotifier := initNotifier(cfg)
	dispatcher := events.NewDispatcher(notifier, cfg.NotifyConcurrency, cfg.NotifyTimeout, cfg.Log)

	bookings := bookingservice.NewBookingService(
		initBookingRepository(cfg),
		availability,
		lock,
		initSealer(cfg),
		dispatcher,
		bookingvalidator.NewBookingValidator(cfg.Log),
		cfg,
	)

	serverApp.AddWorker("reservation-sweeper", func(ctx context.Context) {
		reservation.RunSweeper(ctx, lock, cfg.ReservationSweepInterval, cfg.Log)
	})
	serverApp.AddWorker("booking-advancer", func(ctx context.Context) {
		bookingservice.RunAdvancer(ctx, bookings, cfg.AdvanceInterval, cfg.Log)
	})
	// Hooks run in order: drain pending events, then close the producer.
	serverApp.OnShutdown(dispatcher.Shutdown)
	serverApp.OnShutdown(closeNotifier)

	serverApp.SetApp(
		availabilityhandler.NewAvailabilityHandler(availability, cfg.AvailabilityMaxRange, cfg.Log),
		bookinghandler.NewBookingHandler(bookings, cfg.AvailabilityMaxRange, cfg.Log),
	)
	serverApp.Run()
}

func initAvailability(cfg *config.Config) availabilityservice.AvailabilityService {
	var repo availabilityrepo.WindowRepository
	if cfg.StoreBackend == config.BackendMongo {
		repo = availabilityrepo.NewMongoWindowRepository(cfg)
	} else {
		repo = availabilityrepo.NewMemoryWindowRepository()
	}

	cfg.Log.Info("Availability service initialized", "store", cfg.StoreBackend)
	return availabilityservice.NewAvailabilityService(repo, availabilityvalidator.NewWindowValidator(cfg.Log), cfg)
}

func initBookingRepository(cfg *config.Config) bookingrepo.BookingRepository {
	if cfg.StoreBackend == config.BackendMongo {
		cfg.Log.Info("Booking repository initialized", "store", cfg.StoreBackend, "database", cfg.MongoDatabaseName)
		return bookingrepo.NewMongoBookingRepository(cfg)
	}
	cfg.Log.Warn("Bookings are kept in memory and lost on restart")
	return bookingrepo.NewMemoryBookingRepository()
}

func initReservationLock(cfg *config.Config) reservation.Lock {
	// A claim must outlive the conflict check and insert it guards.
	commitTTL := cfg.RequestTimeout

	switch cfg.ReservationBackend {
	case config.BackendMongo:
		cfg.Log.Info("Reservation lock initialized", "backend", cfg.ReservationBackend)
		return reservation.NewMongoLock(cfg.Client.Mongo.Database(cfg.MongoDatabaseName), commitTTL)
	case config.BackendRedis:
		cfg.Log.Info("Reservation lock initialized", "backend", cfg.ReservationBackend, "addr", cfg.RedisAddr)
		return reservation.NewRedisLock(cfg.Client.Redis, commitTTL)
	}
	cfg.Log.Warn("Reservation lock is process local; run a single replica")
	return reservation.NewMemoryLock(commitTTL)
}

func initSealer(cfg *config.Config) *sealer.Sealer {
	if cfg.HoldTokenKey != "" {
		s, err := sealer.New(cfg.HoldTokenKey)
		if err != nil {
			cfg.Log.Fatal("Invalid hold token key", "error", err)
		}
		return s
	}

	s, err := sealer.NewRandom()
	if err != nil {
		cfg.Log.Fatal("Failed to generate hold token key", "error", err)
	}
	cfg.Log.Warn("HOLD_TOKEN_KEY is not set; hold tokens will not survive a restart or work across replicas")
	return s
}

func initNotifier(cfg *config.Config) (events.Notifier, func(context.Context) error) {
	if cfg.NotifierBackend != config.BackendKafka {
		cfg.Log.Info("Booking events are logged only", "backend", cfg.NotifierBackend)
		return events.NewLogNotifier(cfg.Log), func(context.Context) error { return nil }
	}

	kafkaCfg, err := kafka_config.Load()
	if err != nil {
		cfg.Log.Fatal("Invalid Kafka configuration", "error", err)
	}
	kafkaCfg.LogConfiguration(cfg.Log)

	producer, err := kafka.NewProducer(kafkaCfg, cfg.BookingEventsTopic, cfg.BookingEventsDLQTopic, cfg.Log)
	if err != nil {
		cfg.Log.Fatal("Failed to create Kafka producer", "error", err)
	}

	metrics := kafka_middleware.NewMetrics()
	if kafkaCfg.EnableMiddleware {
		producer.Use(kafka_middleware.LoggingProducerMiddleware(cfg.Log))
		producer.Use(kafka_middleware.MetricsProducerMiddleware(metrics))
	}

	cfg.Log.Info("Booking events published to Kafka", "topic", cfg.BookingEventsTopic, "dlq_topic", cfg.BookingEventsDLQTopic)
	return events.NewKafkaNotifier(producer), func(context.Context) error {
		cfg.Log.Info("Booking event producer stats", metrics.Snapshot().LogValues()...)
		return producer.Close()
	}
}

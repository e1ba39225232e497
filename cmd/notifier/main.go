package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"tutorbook/internal/bookings/events"
	"tutorbook/pkg/config"
	"tutorbook/pkg/kafka"
	kafka_config "tutorbook/pkg/kafka/config"
	kafka_middleware "tutorbook/pkg/kafka/middleware"
)

const ServiceName = "notifier"

// The notifier consumes booking events and hands each one to a delivery
// sink. Delivery here is a structured log line per event.
func main() {
	cfg := config.Load(ServiceName)

	kafkaCfg, err := kafka_config.Load()
	if err != nil {
		cfg.Log.Fatal("Invalid Kafka configuration", "error", err)
	}
	kafkaCfg.LogConfiguration(cfg.Log)

	consumer, err := kafka.NewConsumer(
		kafkaCfg,
		cfg.BookingEventsTopic,
		cfg.NotifierGroupID,
		cfg.BookingEventsDLQTopic,
		events.ConsumerHandler(events.NewLogNotifier(cfg.Log)),
		cfg.Log,
	)
	if err != nil {
		cfg.Log.Fatal("Failed to create Kafka consumer", "error", err)
	}

	metrics := kafka_middleware.NewMetrics()
	if kafkaCfg.EnableMiddleware {
		consumer.Use(kafka_middleware.LoggingConsumerMiddleware(cfg.Log))
		consumer.Use(kafka_middleware.MetricsConsumerMiddleware(metrics))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg.Log.Info("Starting notifier",
		"topic", cfg.BookingEventsTopic,
		"group_id", cfg.NotifierGroupID,
	)
	err = consumer.Start(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		cfg.Log.Error("Consumer stopped unexpectedly", "error", err)
	}

	if err := consumer.Close(); err != nil {
		cfg.Log.Error("Failed to close consumer", "error", err)
	}
	cfg.Log.Info("Notifier stopped", metrics.Snapshot().LogValues()...)
}

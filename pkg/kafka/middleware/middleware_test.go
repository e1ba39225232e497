package kafka_middleware

import (
	"context"
	"errors"
	"testing"

	"tutorbook/pkg/kafka"
	"tutorbook/pkg/logger"
)

func TestMetricsMiddleware(t *testing.T) {
	m := NewMetrics()
	publish := MetricsProducerMiddleware(m)
	consume := MetricsConsumerMiddleware(m)
	ctx := context.Background()
	boom := errors.New("boom")

	ok := func(ctx context.Context, msg kafka.Message) error { return nil }
	fail := func(ctx context.Context, msg kafka.Message) error { return boom }

	_ = publish(ctx, kafka.Message{}, ok)
	_ = publish(ctx, kafka.Message{}, ok)
	if err := publish(ctx, kafka.Message{}, fail); !errors.Is(err, boom) {
		t.Errorf("expected the handler error to pass through, got %v", err)
	}
	_ = consume(ctx, kafka.Message{}, ok)
	_ = consume(ctx, kafka.Message{}, fail)

	s := m.Snapshot()
	if s.Published != 2 || s.PublishFailed != 1 || s.Consumed != 1 || s.ConsumeFailed != 1 {
		t.Errorf("unexpected snapshot %+v", s)
	}
	if len(s.LogValues())%2 != 0 {
		t.Error("expected key/value pairs")
	}
}

func TestLoggingMiddlewarePassesThrough(t *testing.T) {
	log := logger.Discard()
	boom := errors.New("boom")

	called := false
	err := LoggingProducerMiddleware(log)(context.Background(), kafka.Message{Key: "k"}, func(ctx context.Context, msg kafka.Message) error {
		called = true
		return boom
	})
	if !called || !errors.Is(err, boom) {
		t.Errorf("expected next to run and its error returned, got %v", err)
	}

	err = LoggingConsumerMiddleware(log)(context.Background(), kafka.Message{Key: "k"}, func(ctx context.Context, msg kafka.Message) error {
		return nil
	})
	if err != nil {
		t.Errorf("unexpected error %v", err)
	}
}

package kafka

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"tutorbook/pkg/logger"

	"github.com/segmentio/kafka-go"
)

type fakeWriter struct {
	mu     sync.Mutex
	err    error
	msgs   []kafka.Message
	closed bool
}

func (w *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func header(m kafka.Message, key string) string {
	for _, h := range m.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func buildMessage(t *testing.T, key string) Message {
	t.Helper()
	msg, err := NewMessage().
		WithKey(key).
		WithValue(map[string]string{"id": key}).
		WithEventType("booking.created").
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return msg
}

func TestMessageBuilder(t *testing.T) {
	msg, err := NewMessage().
		WithKey("b1").
		WithValue(map[string]int{"n": 1}).
		WithSource("bookings").
		WithCorrelationID("").
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if msg.GetEventID() == "" || msg.Headers[HeaderTimestamp] == "" {
		t.Error("expected event id and timestamp headers to be filled in")
	}
	if _, ok := msg.GetHeader(HeaderCorrelationID); ok {
		t.Error("expected an empty correlation id to be omitted")
	}

	var decoded map[string]int
	if err := msg.DecodeValue(&decoded); err != nil || decoded["n"] != 1 {
		t.Errorf("DecodeValue = %v, %v", decoded, err)
	}

	if _, err := NewMessage().WithValue(make(chan int)).Build(); err == nil {
		t.Error("expected an encoding error from Build")
	}
}

func TestMessageRetryCount(t *testing.T) {
	msg := Message{}
	for i := 0; i < 12; i++ {
		msg.IncrementRetryCount()
	}
	if got := msg.GetRetryCount(); got != 12 {
		t.Errorf("expected 12 retries, got %d", got)
	}
}

func TestProducerPublish(t *testing.T) {
	w := &fakeWriter{}
	p := newProducer(w, nil, "booking-events", "", logger.Discard())

	var order []string
	p.Use(func(ctx context.Context, msg Message, next func(context.Context, Message) error) error {
		order = append(order, "outer")
		return next(ctx, msg)
	})
	p.Use(func(ctx context.Context, msg Message, next func(context.Context, Message) error) error {
		order = append(order, "inner")
		if msg.Topic != "booking-events" {
			t.Errorf("expected topic to be filled in, got %q", msg.Topic)
		}
		return next(ctx, msg)
	})

	if err := p.Publish(context.Background(), buildMessage(t, "b1")); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if len(w.msgs) != 1 || string(w.msgs[0].Key) != "b1" {
		t.Fatalf("expected one message keyed b1, got %v", w.msgs)
	}
	if header(w.msgs[0], HeaderEventType) != "booking.created" {
		t.Error("expected headers to be written")
	}
	if fmt.Sprint(order) != "[outer inner]" {
		t.Errorf("unexpected middleware order %v", order)
	}
}

func TestProducerValidation(t *testing.T) {
	p := newProducer(&fakeWriter{}, nil, "t", "", logger.Discard())

	if err := p.Publish(context.Background(), Message{Value: []byte("x")}); !errors.Is(err, ErrEmptyKey) {
		t.Errorf("expected ErrEmptyKey, got %v", err)
	}
	if err := p.Publish(context.Background(), Message{Key: "k"}); !errors.Is(err, ErrEmptyValue) {
		t.Errorf("expected ErrEmptyValue, got %v", err)
	}

	if err := p.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := p.Publish(context.Background(), buildMessage(t, "k")); !errors.Is(err, ErrProducerClosed) {
		t.Errorf("expected ErrProducerClosed, got %v", err)
	}
	if err := p.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}

func TestProducerDeadLetters(t *testing.T) {
	boom := errors.New("broker unavailable")
	w := &fakeWriter{err: boom}
	dlq := &fakeWriter{}
	p := newProducer(w, dlq, "booking-events", "booking-events-dlq", logger.Discard())

	msg := buildMessage(t, "b1")
	err := p.Publish(context.Background(), msg)
	if !errors.Is(err, boom) {
		t.Fatalf("expected the original error, got %v", err)
	}
	if len(dlq.msgs) != 1 {
		t.Fatalf("expected one DLQ message, got %d", len(dlq.msgs))
	}
	if header(dlq.msgs[0], HeaderOriginalTopic) != "booking-events" || header(dlq.msgs[0], HeaderDLQError) != boom.Error() {
		t.Error("expected DLQ metadata headers")
	}
	if _, ok := msg.Headers[HeaderDLQError]; ok {
		t.Error("expected the caller's headers to be left untouched")
	}
}

type fakeReader struct {
	mu        sync.Mutex
	msgs      []kafka.Message
	committed []int64
	cancel    context.CancelFunc
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.msgs) == 0 {
		r.cancel()
		return kafka.Message{}, ctx.Err()
	}
	m := r.msgs[0]
	r.msgs = r.msgs[1:]
	return m, nil
}

func (r *fakeReader) CommitMessages(ctx context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *fakeReader) Close() error { return nil }

func TestConsumerRetriesThenDeadLetters(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reader := &fakeReader{
		cancel: cancel,
		msgs: []kafka.Message{
			{Key: []byte("ok"), Value: []byte(`{}`), Offset: 1},
			{Key: []byte("flaky"), Value: []byte(`{}`), Offset: 2},
			{Key: []byte("bad"), Value: []byte(`{}`), Offset: 3},
		},
	}
	dlq := &fakeWriter{}

	attempts := map[string]int{}
	handler := func(ctx context.Context, msg Message) error {
		attempts[msg.Key]++
		switch msg.Key {
		case "flaky":
			if attempts[msg.Key] < 3 {
				return NewTransientError("try again", errors.New("i/o timeout"))
			}
		case "bad":
			return NewPermanentError("cannot decode", errors.New("bad payload"))
		}
		return nil
	}

	c := newConsumer(reader, dlq, "booking-events", "group", "booking-events-dlq", handler, logger.Discard())
	c.maxRetries = 3

	done := make(chan error, 1)
	go func() { done <- c.Start(ctx) }()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("consumer did not stop")
	}

	if attempts["ok"] != 1 || attempts["flaky"] != 3 || attempts["bad"] != 1 {
		t.Errorf("unexpected attempts %v", attempts)
	}
	if len(dlq.msgs) != 1 || string(dlq.msgs[0].Key) != "bad" {
		t.Fatalf("expected only the permanent failure in the DLQ, got %v", dlq.msgs)
	}
	if header(dlq.msgs[0], HeaderDLQGroup) != "group" {
		t.Error("expected the consumer group header on the DLQ message")
	}
	if fmt.Sprint(reader.committed) != "[1 2 3]" {
		t.Errorf("expected every offset committed, got %v", reader.committed)
	}
	if err := c.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorType
	}{
		{"nil", nil, ErrorTypeUnknown},
		{"transient wrapper", NewTransientError("x", nil), ErrorTypeTransient},
		{"permanent wrapper", NewPermanentError("x", errors.New("timeout")), ErrorTypePermanent},
		{"deadline", fmt.Errorf("write: %w", context.DeadlineExceeded), ErrorTypeTransient},
		{"connection refused", errors.New("dial tcp: Connection Refused"), ErrorTypeTransient},
		{"unknown", errors.New("schema mismatch"), ErrorTypePermanent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClassifyError(tt.err); got != tt.want {
				t.Errorf("ClassifyError() = %v, want %v", got, tt.want)
			}
		})
	}

	if ShouldRetry(errors.New("timeout"), 3, 3) {
		t.Error("expected no retry once the limit is reached")
	}
}

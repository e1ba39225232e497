package events

import (
	"context"
	"fmt"
	"strconv"

	"tutorbook/pkg/kafka"
	"tutorbook/pkg/model"
)

const (
	SchemaVersion = "1"
	Source        = "bookings"
)

// Publisher is the part of kafka.Producer the notifier needs.
type Publisher interface {
	Publish(ctx context.Context, msg kafka.Message) error
}

// KafkaNotifier publishes events keyed by booking id, so every event of one
// booking lands on the same partition in order.
type KafkaNotifier struct {
	publisher Publisher
}

func NewKafkaNotifier(publisher Publisher) *KafkaNotifier {
	return &KafkaNotifier{publisher: publisher}
}

func (n *KafkaNotifier) Notify(ctx context.Context, event model.BookingEvent) error {
	msg, err := kafka.NewMessage().
		WithKey(event.BookingID).
		WithValue(event).
		WithEventID(event.EventID).
		WithEventType(EventType(event)).
		WithSchemaVersion(SchemaVersion).
		WithSource(Source).
		WithHeader("booking-version", strconv.FormatInt(event.Version, 10)).
		WithTimestamp(event.Timestamp).
		Build()
	if err != nil {
		return fmt.Errorf("failed to build booking event message: %w", err)
	}

	if err := n.publisher.Publish(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish booking event: %w", err)
	}
	return nil
}

// Decode reads a booking event from a consumed message.
func Decode(msg kafka.Message) (model.BookingEvent, error) {
	var event model.BookingEvent
	if err := msg.DecodeValue(&event); err != nil {
		return model.BookingEvent{}, kafka.NewPermanentError("invalid booking event payload", err)
	}
	if event.BookingID == "" || event.ToState == "" {
		return model.BookingEvent{}, kafka.NewPermanentError("booking event missing booking_id or to_state", nil)
	}
	return event, nil
}

// ConsumerHandler decodes each message and passes the event to sink. Sink
// failures are retried by the consumer as transient.
func ConsumerHandler(sink Notifier) kafka.MessageHandler {
	return func(ctx context.Context, msg kafka.Message) error {
		event, err := Decode(msg)
		if err != nil {
			return err
		}
		if err := sink.Notify(ctx, event); err != nil {
			return kafka.NewTransientError("booking event delivery failed", err)
		}
		return nil
	}
}

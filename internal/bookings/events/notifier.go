// Package events fans booking state changes out to notification channels.
// Delivery is best effort from the booking's point of view: a failed send is
// logged and never undoes the state change.
package events

import (
	"context"
	"fmt"
	"strings"
	"time"

	"tutorbook/pkg/logger"
	"tutorbook/pkg/model"

	"github.com/google/uuid"
)

type Notifier interface {
	Notify(ctx context.Context, event model.BookingEvent) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, event model.BookingEvent) error

func (f NotifierFunc) Notify(ctx context.Context, event model.BookingEvent) error {
	return f(ctx, event)
}

// NewEvent describes the move of b from `from` to its current status. from
// is empty for a newly created booking.
func NewEvent(b *model.Booking, from model.BookingStatus, actor model.Actor, at time.Time) model.BookingEvent {
	return model.BookingEvent{
		EventID:   uuid.NewString(),
		BookingID: b.ID,
		TutorID:   b.TutorID,
		StudentID: b.StudentID,
		FromState: from,
		ToState:   b.Status,
		ActorID:   actor.ID,
		ActorRole: actor.Role,
		Version:   b.Version,
		Timestamp: at.UTC(),
	}
}

// EventType is the routing name of an event, e.g. "booking.confirmed".
func EventType(event model.BookingEvent) string {
	return fmt.Sprintf("booking.%s", strings.ToLower(string(event.ToState)))
}

// LogNotifier writes events to the service log. It is the fallback when no
// broker is configured and the delivery sink of cmd/notifier.
type LogNotifier struct {
	log *logger.Logger
}

func NewLogNotifier(log *logger.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

func (n *LogNotifier) Notify(ctx context.Context, event model.BookingEvent) error {
	n.log.Info("Booking event",
		"event_id", event.EventID,
		"event_type", EventType(event),
		"booking_id", event.BookingID,
		"tutor_id", event.TutorID,
		"student_id", event.StudentID,
		"from_state", event.FromState,
		"to_state", event.ToState,
		"actor_id", event.ActorID,
		"actor_role", event.ActorRole,
		"version", event.Version,
	)
	return nil
}

package model

import "time"

// BookingEvent is emitted on every booking state change, including creation
// (FromState empty).
type BookingEvent struct {
	EventID   string        `json:"event_id"`
	BookingID string        `json:"booking_id"`
	TutorID   string        `json:"tutor_id"`
	StudentID string        `json:"student_id"`
	FromState BookingStatus `json:"from_state,omitempty"`
	ToState   BookingStatus `json:"to_state"`
	ActorID   string        `json:"actor_id"`
	ActorRole Role          `json:"actor_role"`
	Version   int64         `json:"version"`
	Timestamp time.Time     `json:"timestamp"`
}

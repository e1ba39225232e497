package model

import (
	"strings"
	"time"

	"tutorbook/pkg/calendar"
)

type BookingStatus string

const (
	StatusRequested  BookingStatus = "REQUESTED"
	StatusConfirmed  BookingStatus = "CONFIRMED"
	StatusInProgress BookingStatus = "IN_PROGRESS"
	StatusCompleted  BookingStatus = "COMPLETED"
	StatusRejected   BookingStatus = "REJECTED"
	StatusCancelled  BookingStatus = "CANCELLED"
)

// ActiveStatuses are the states in which a booking occupies the tutor's time.
var ActiveStatuses = []BookingStatus{StatusRequested, StatusConfirmed, StatusInProgress}

func (s BookingStatus) Active() bool {
	for _, a := range ActiveStatuses {
		if s == a {
			return true
		}
	}
	return false
}

// ParseBookingStatus accepts a status name in any case.
func ParseBookingStatus(s string) (BookingStatus, bool) {
	status := BookingStatus(strings.ToUpper(strings.TrimSpace(s)))
	if status.Active() || status.Terminal() {
		return status, true
	}
	return "", false
}

func (s BookingStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusRejected || s == StatusCancelled
}

type Booking struct {
	ID             string        `json:"id" bson:"_id"`
	TutorID        string        `json:"tutor_id" bson:"tutor_id"`
	StudentID      string        `json:"student_id" bson:"student_id"`
	SubjectID      string        `json:"subject_id" bson:"subject_id"`
	ScheduledStart time.Time     `json:"scheduled_start" bson:"scheduled_start"`
	ScheduledEnd   time.Time     `json:"scheduled_end" bson:"scheduled_end"`
	Status         BookingStatus `json:"status" bson:"status"`
	Note           string        `json:"note,omitempty" bson:"note,omitempty"`
	CreatedAt      time.Time     `json:"created_at" bson:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at" bson:"updated_at"`
	Version        int64         `json:"version" bson:"version"`
}

func (b *Booking) Interval() calendar.Interval {
	return calendar.Interval{Start: b.ScheduledStart, End: b.ScheduledEnd}
}

// Participant reports whether actorID is the tutor or the student of the booking.
func (b *Booking) Participant(actorID string) bool {
	return actorID != "" && (actorID == b.TutorID || actorID == b.StudentID)
}

type BookingRequest struct {
	TutorID        string    `json:"tutor_id" validate:"required,max=64,identifier"`
	SubjectID      string    `json:"subject_id" validate:"required,max=64,identifier"`
	ScheduledStart time.Time `json:"scheduled_start" validate:"required"`
	ScheduledEnd   time.Time `json:"scheduled_end" validate:"required,gtfield=ScheduledStart"`
	Note           string    `json:"note,omitempty" validate:"omitempty,max=500"`
}

// StatusChange carries the caller's view of the booking version for
// optimistic concurrency on every transition.
type StatusChange struct {
	Version int64 `json:"version" validate:"required,min=1"`
	Accept  *bool `json:"accept,omitempty"`
}

// Hold is a claimed slot awaiting checkout. Token is opaque to clients and
// is presented back to confirm or release the hold.
type Hold struct {
	Token          string    `json:"token"`
	TutorID        string    `json:"tutor_id"`
	SubjectID      string    `json:"subject_id"`
	ScheduledStart time.Time `json:"scheduled_start"`
	ScheduledEnd   time.Time `json:"scheduled_end"`
	ExpiresAt      time.Time `json:"expires_at"`
}

type HoldConfirmation struct {
	Note string `json:"note,omitempty" validate:"omitempty,max=500"`
}

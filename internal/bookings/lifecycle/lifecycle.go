// Package lifecycle is the booking state machine. It decides whether an
// actor may move a booking from its current status with a given event at a
// given instant, and to which status. It never persists anything.
package lifecycle

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"tutorbook/pkg/model"
)

type Event string

const (
	EventConfirm  Event = "CONFIRM"
	EventReject   Event = "REJECT"
	EventCancel   Event = "CANCEL"
	EventStart    Event = "START"
	EventComplete Event = "COMPLETE"
)

var Events = []Event{EventConfirm, EventReject, EventCancel, EventStart, EventComplete}

var ErrLateCancellation = errors.New("cancellation is inside the lead time")

type Policy struct {
	// CancellationLeadTime is how long before the scheduled start a booking
	// stops being cancellable. Cancelling exactly at the boundary is late.
	CancellationLeadTime time.Duration
}

type InvalidTransitionError struct {
	From  model.BookingStatus
	To    model.BookingStatus
	Event Event
}

func (e *InvalidTransitionError) Error() string {
	if e.To == "" {
		return fmt.Sprintf("%s is not allowed from %s", e.Event, e.From)
	}
	return fmt.Sprintf("cannot move booking from %s to %s", e.From, e.To)
}

type ForbiddenActorError struct {
	Event Event
	Role  model.Role
}

func (e *ForbiddenActorError) Error() string {
	return fmt.Sprintf("%s may not %s this booking", e.Role, e.Event)
}

type TransitionTimingError struct {
	Event  Event
	Reason string
}

func (e *TransitionTimingError) Error() string {
	return fmt.Sprintf("%s not allowed now: %s", e.Event, e.Reason)
}

type rule struct {
	from   []model.BookingStatus
	to     model.BookingStatus
	roles  []model.Role
	timing func(b *model.Booking, actor model.Actor, now time.Time, p Policy) error
}

var rules = map[Event]rule{
	EventConfirm: {
		from:   []model.BookingStatus{model.StatusRequested},
		to:     model.StatusConfirmed,
		roles:  []model.Role{model.RoleTutor},
		timing: beforeStart(EventConfirm),
	},
	EventReject: {
		from:   []model.BookingStatus{model.StatusRequested},
		to:     model.StatusRejected,
		roles:  []model.Role{model.RoleTutor},
		timing: beforeStart(EventReject),
	},
	EventCancel: {
		from:  []model.BookingStatus{model.StatusRequested, model.StatusConfirmed},
		to:    model.StatusCancelled,
		roles: []model.Role{model.RoleTutor, model.RoleStudent},
		timing: func(b *model.Booking, _ model.Actor, now time.Time, p Policy) error {
			if !now.Before(b.ScheduledStart.Add(-p.CancellationLeadTime)) {
				return ErrLateCancellation
			}
			return nil
		},
	},
	EventStart: {
		from:  []model.BookingStatus{model.StatusConfirmed},
		to:    model.StatusInProgress,
		roles: []model.Role{model.RoleSystem, model.RoleTutor, model.RoleStudent},
		timing: func(b *model.Booking, _ model.Actor, now time.Time, _ Policy) error {
			if now.Before(b.ScheduledStart) {
				return &TransitionTimingError{Event: EventStart, Reason: "session has not reached its scheduled start"}
			}
			return nil
		},
	},
	EventComplete: {
		from:  []model.BookingStatus{model.StatusInProgress},
		to:    model.StatusCompleted,
		roles: []model.Role{model.RoleSystem, model.RoleTutor, model.RoleStudent},
		timing: func(b *model.Booking, actor model.Actor, now time.Time, _ Policy) error {
			// Participants may end a session early; the system only at the end.
			if actor.Role == model.RoleSystem && now.Before(b.ScheduledEnd) {
				return &TransitionTimingError{Event: EventComplete, Reason: "session has not reached its scheduled end"}
			}
			return nil
		},
	},
}

func beforeStart(event Event) func(*model.Booking, model.Actor, time.Time, Policy) error {
	return func(b *model.Booking, _ model.Actor, now time.Time, _ Policy) error {
		if !now.Before(b.ScheduledStart) {
			return &TransitionTimingError{Event: event, Reason: "session has already started"}
		}
		return nil
	}
}

// Target returns the status event leads to, regardless of the current one.
func Target(event Event) (model.BookingStatus, bool) {
	r, ok := rules[event]
	return r.to, ok
}

// Transition validates event against b and returns the resulting status.
// Checks run in order: the move must exist from b's status, the actor must
// hold an allowed role and be a participant, then timing must hold.
func Transition(b *model.Booking, event Event, actor model.Actor, now time.Time, p Policy) (model.BookingStatus, error) {
	r, ok := rules[event]
	if !ok {
		return "", &InvalidTransitionError{From: b.Status, Event: event}
	}

	if !slices.Contains(r.from, b.Status) {
		return "", &InvalidTransitionError{From: b.Status, To: r.to, Event: event}
	}

	if !slices.Contains(r.roles, actor.Role) || !participates(b, actor) {
		return "", &ForbiddenActorError{Event: event, Role: actor.Role}
	}

	if err := r.timing(b, actor, now, p); err != nil {
		return "", err
	}

	return r.to, nil
}

func participates(b *model.Booking, actor model.Actor) bool {
	switch actor.Role {
	case model.RoleSystem:
		return actor.ID == model.SystemActorID
	case model.RoleTutor:
		return actor.ID != "" && actor.ID == b.TutorID
	case model.RoleStudent:
		return actor.ID != "" && actor.ID == b.StudentID
	}
	return false
}

// Package conflict decides whether a tutor can take a session over a given
// interval. It reads availability and bookings through narrow interfaces and
// holds no state, so callers control the snapshot it sees.
package conflict

import (
	"context"
	"fmt"
	"time"

	"tutorbook/pkg/calendar"
	"tutorbook/pkg/model"
)

type Verdict string

const (
	Available       Verdict = "AVAILABLE"
	OutsideWindow   Verdict = "OUTSIDE_WINDOW"
	OverlapsBooking Verdict = "OVERLAPS_BOOKING"
)

type AvailabilityReader interface {
	ListEffectiveWindows(ctx context.Context, tutorID string, from, to time.Time) ([]calendar.Interval, error)
}

type BookingReader interface {
	// FindActiveByTutor returns bookings in an active status that overlap
	// [from, to).
	FindActiveByTutor(ctx context.Context, tutorID string, from, to time.Time) ([]*model.Booking, error)
}

type Detector struct {
	availability AvailabilityReader
	bookings     BookingReader
}

func NewDetector(availability AvailabilityReader, bookings BookingReader) *Detector {
	return &Detector{
		availability: availability,
		bookings:     bookings,
	}
}

type Options struct {
	// ExcludeID skips one booking, for checks against a booking's own slot.
	ExcludeID string
}

// Result carries the verdict and, for OverlapsBooking, the booking in the way.
type Result struct {
	Verdict     Verdict
	Conflicting *model.Booking
}

// CheckAvailable runs the two checks in order: [start, end) must lie inside
// the tutor's effective availability, and no active booking may overlap it.
func (d *Detector) CheckAvailable(ctx context.Context, tutorID string, start, end time.Time, opts Options) (Result, error) {
	want, err := calendar.NewInterval(start, end)
	if err != nil {
		return Result{}, err
	}

	// Query whole UTC days around the slot so windows that cross midnight in
	// the tutor's zone are expanded in full before the coverage test.
	from := calendar.StartOfDay(want.Start, time.UTC)
	to := calendar.StartOfDay(want.End, time.UTC).Add(24 * time.Hour)

	windows, err := d.availability.ListEffectiveWindows(ctx, tutorID, from, to)
	if err != nil {
		return Result{}, fmt.Errorf("failed to load availability: %w", err)
	}
	if !calendar.Covered(windows, want) {
		return Result{Verdict: OutsideWindow}, nil
	}

	active, err := d.bookings.FindActiveByTutor(ctx, tutorID, want.Start, want.End)
	if err != nil {
		return Result{}, fmt.Errorf("failed to load bookings: %w", err)
	}
	for _, b := range active {
		if b.ID == opts.ExcludeID && opts.ExcludeID != "" {
			continue
		}
		if b.Status.Active() && b.Interval().Overlaps(want) {
			return Result{Verdict: OverlapsBooking, Conflicting: b}, nil
		}
	}

	return Result{Verdict: Available}, nil
}

package repository

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	bookingserrors "tutorbook/internal/bookings/errors"
	"tutorbook/pkg/model"

	"github.com/google/uuid"
)

// memoryBookingRepository backs single-process deployments and tests.
type memoryBookingRepository struct {
	mu       sync.RWMutex
	bookings map[string]model.Booking
}

func NewMemoryBookingRepository() BookingRepository {
	return &memoryBookingRepository{
		bookings: make(map[string]model.Booking),
	}
}

func (r *memoryBookingRepository) Create(ctx context.Context, booking *model.Booking) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if booking.ID == "" {
		booking.ID = uuid.NewString()
	}
	if _, exists := r.bookings[booking.ID]; exists {
		return fmt.Errorf("failed to create booking: duplicate id %s", booking.ID)
	}
	if booking.CreatedAt.IsZero() {
		booking.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)
	}
	booking.UpdatedAt = booking.CreatedAt
	booking.Version = 1
	r.bookings[booking.ID] = *booking
	return nil
}

func (r *memoryBookingRepository) FindByID(ctx context.Context, id string) (*model.Booking, error) {
	if err := uuid.Validate(id); err != nil {
		return nil, fmt.Errorf("%w: %s", bookingserrors.ErrInvalidID, id)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	b, ok := r.bookings[id]
	if !ok {
		return nil, bookingserrors.ErrNotFound
	}
	return &b, nil
}

func (r *memoryBookingRepository) FindActiveByTutor(ctx context.Context, tutorID string, from, to time.Time) ([]*model.Booking, error) {
	return r.collect(ctx, func(b *model.Booking) bool {
		return b.TutorID == tutorID && b.Status.Active() &&
			b.ScheduledStart.Before(to) && from.Before(b.ScheduledEnd)
	}), nil
}

func (r *memoryBookingRepository) FindByTutor(ctx context.Context, tutorID string, filter Filter, limit int, offset int64) ([]*model.Booking, error) {
	return page(r.collect(ctx, matcher(tutorID, "", filter)), limit, offset), nil
}

func (r *memoryBookingRepository) FindByStudent(ctx context.Context, studentID string, filter Filter, limit int, offset int64) ([]*model.Booking, error) {
	return page(r.collect(ctx, matcher("", studentID, filter)), limit, offset), nil
}

func (r *memoryBookingRepository) CountByTutor(ctx context.Context, tutorID string, filter Filter) (int64, error) {
	return int64(len(r.collect(ctx, matcher(tutorID, "", filter)))), nil
}

func (r *memoryBookingRepository) CountByStudent(ctx context.Context, studentID string, filter Filter) (int64, error) {
	return int64(len(r.collect(ctx, matcher("", studentID, filter)))), nil
}

func (r *memoryBookingRepository) UpdateStatus(ctx context.Context, id string, expectedVersion int64, status model.BookingStatus, now time.Time) (*model.Booking, error) {
	if err := uuid.Validate(id); err != nil {
		return nil, fmt.Errorf("%w: %s", bookingserrors.ErrInvalidID, id)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.bookings[id]
	if !ok {
		return nil, bookingserrors.ErrNotFound
	}
	if b.Version != expectedVersion {
		return nil, fmt.Errorf("%w: expected version %d", bookingserrors.ErrStaleVersion, expectedVersion)
	}

	b.Status = status
	b.UpdatedAt = now.UTC().Truncate(time.Millisecond)
	b.Version++
	r.bookings[id] = b
	return &b, nil
}

func (r *memoryBookingRepository) FindDue(ctx context.Context, status model.BookingStatus, field DueField, before time.Time, limit int) ([]*model.Booking, error) {
	due := r.collect(ctx, func(b *model.Booking) bool {
		return b.Status == status && !dueTime(b, field).After(before)
	})
	sort.SliceStable(due, func(i, j int) bool {
		return dueTime(due[i], field).Before(dueTime(due[j], field))
	})
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

// collect returns copies of matching bookings ordered by start time then id.
func (r *memoryBookingRepository) collect(ctx context.Context, match func(*model.Booking) bool) []*model.Booking {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := []*model.Booking{}
	for _, b := range r.bookings {
		if ctx.Err() != nil {
			break
		}
		b := b
		if match(&b) {
			out = append(out, &b)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ScheduledStart.Equal(out[j].ScheduledStart) {
			return out[i].ID < out[j].ID
		}
		return out[i].ScheduledStart.Before(out[j].ScheduledStart)
	})
	return out
}

func matcher(tutorID, studentID string, f Filter) func(*model.Booking) bool {
	return func(b *model.Booking) bool {
		if tutorID != "" && b.TutorID != tutorID {
			return false
		}
		if studentID != "" && b.StudentID != studentID {
			return false
		}
		if !f.To.IsZero() && !b.ScheduledStart.Before(f.To) {
			return false
		}
		if !f.From.IsZero() && !f.From.Before(b.ScheduledEnd) {
			return false
		}
		if len(f.Statuses) > 0 && !slices.Contains(f.Statuses, b.Status) {
			return false
		}
		return true
	}
}

func page(bookings []*model.Booking, limit int, offset int64) []*model.Booking {
	if offset >= int64(len(bookings)) {
		return []*model.Booking{}
	}
	bookings = bookings[offset:]
	if limit > 0 && len(bookings) > limit {
		bookings = bookings[:limit]
	}
	return bookings
}

func dueTime(b *model.Booking, field DueField) time.Time {
	if field == DueByEnd {
		return b.ScheduledEnd
	}
	return b.ScheduledStart
}

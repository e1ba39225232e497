package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	bookingserrors "tutorbook/internal/bookings/errors"
	"tutorbook/internal/bookings/lifecycle"
	"tutorbook/internal/bookings/repository"
	apperrors "tutorbook/pkg/errors"
	"tutorbook/pkg/model"
)

// advanceBatchSize bounds one FindDue page in AdvanceDue.
const advanceBatchSize = 200

func (s *bookingService) RespondToRequest(ctx context.Context, actor model.Actor, id string, expectedVersion int64, accept bool) (*model.Booking, error) {
	event := lifecycle.EventReject
	if accept {
		event = lifecycle.EventConfirm
	}
	return s.transition(ctx, actor, id, expectedVersion, event)
}

func (s *bookingService) CancelBooking(ctx context.Context, actor model.Actor, id string, expectedVersion int64) (*model.Booking, error) {
	return s.transition(ctx, actor, id, expectedVersion, lifecycle.EventCancel)
}

func (s *bookingService) StartSession(ctx context.Context, actor model.Actor, id string, expectedVersion int64) (*model.Booking, error) {
	return s.transition(ctx, actor, id, expectedVersion, lifecycle.EventStart)
}

func (s *bookingService) CompleteSession(ctx context.Context, actor model.Actor, id string, expectedVersion int64) (*model.Booking, error) {
	return s.transition(ctx, actor, id, expectedVersion, lifecycle.EventComplete)
}

// transition applies event to the booking as seen at expectedVersion. The
// state machine judges the stored booking; the write only lands if nobody
// changed it in between.
func (s *bookingService) transition(ctx context.Context, actor model.Actor, id string, expectedVersion int64, event lifecycle.Event) (*model.Booking, error) {
	if expectedVersion < 1 {
		return nil, apperrors.Validation("version is required", nil)
	}

	booking, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}

	now := s.now()
	to, err := lifecycle.Transition(booking, event, actor, now, s.policy)
	if err != nil {
		return nil, transitionError(err)
	}

	if booking.Version != expectedVersion {
		return nil, apperrors.StaleVersion(
			fmt.Sprintf("Booking is at version %d, not %d; reload and retry", booking.Version, expectedVersion),
			bookingserrors.ErrStaleVersion,
		)
	}

	updated, err := s.repo.UpdateStatus(ctx, id, expectedVersion, to, now)
	if err != nil {
		return nil, s.mapRepoError(err, id, "Failed to update booking status")
	}

	s.cfg.Log.Info("Booking status changed",
		"id", id,
		"event", event,
		"from", booking.Status,
		"to", updated.Status,
		"actor_id", actor.ID,
		"actor_role", actor.Role,
		"version", updated.Version,
	)
	s.emit(updated, booking.Status, actor)
	return updated, nil
}

// AdvanceDue moves sessions along on the clock: CONFIRMED bookings whose
// start has passed go IN_PROGRESS, then IN_PROGRESS bookings whose end has
// passed go COMPLETED. A booking that is entirely in the past moves through
// both in one call. Bookings changed concurrently are skipped.
func (s *bookingService) AdvanceDue(ctx context.Context, now time.Time) (int, error) {
	started, err := s.advance(ctx, now, model.StatusConfirmed, repository.DueByStart, lifecycle.EventStart)
	if err != nil {
		return started, err
	}
	completed, err := s.advance(ctx, now, model.StatusInProgress, repository.DueByEnd, lifecycle.EventComplete)
	return started + completed, err
}

func (s *bookingService) advance(ctx context.Context, now time.Time, status model.BookingStatus, field repository.DueField, event lifecycle.Event) (int, error) {
	system := model.SystemActor()
	advanced := 0

	for {
		due, err := s.repo.FindDue(ctx, status, field, now, advanceBatchSize)
		if err != nil {
			return advanced, fmt.Errorf("failed to find bookings due to %s: %w", event, err)
		}

		progressed := 0
		for _, b := range due {
			if err := ctx.Err(); err != nil {
				return advanced, err
			}

			to, err := lifecycle.Transition(b, event, system, now, s.policy)
			if err != nil {
				s.cfg.Log.Warn("Skipping booking that cannot advance",
					"id", b.ID,
					"event", event,
					"status", b.Status,
					"error", err,
				)
				continue
			}

			updated, err := s.repo.UpdateStatus(ctx, b.ID, b.Version, to, now)
			if err != nil {
				if !errors.Is(err, bookingserrors.ErrStaleVersion) && !errors.Is(err, bookingserrors.ErrNotFound) {
					s.cfg.Log.Error("Failed to advance booking",
						"id", b.ID,
						"event", event,
						"error", err,
					)
				}
				continue
			}

			progressed++
			s.emit(updated, b.Status, system)
		}

		advanced += progressed
		if len(due) < advanceBatchSize || progressed == 0 {
			return advanced, nil
		}
	}
}

// transitionError maps state machine rejections onto API errors.
func transitionError(err error) error {
	var (
		invalid   *lifecycle.InvalidTransitionError
		forbidden *lifecycle.ForbiddenActorError
		timing    *lifecycle.TransitionTimingError
	)
	switch {
	case errors.Is(err, lifecycle.ErrLateCancellation):
		return apperrors.LateCancellation("Booking can no longer be cancelled this close to its start", err)
	case errors.As(err, &forbidden):
		return apperrors.Forbidden(forbidden.Error())
	case errors.As(err, &invalid):
		return apperrors.InvalidTransition(invalid.Error(), err).WithDetails(map[string]any{
			"from":  invalid.From,
			"to":    invalid.To,
			"event": invalid.Event,
		})
	case errors.As(err, &timing):
		return apperrors.InvalidTransition(timing.Error(), err)
	}
	return apperrors.Internal("Unexpected state machine error", err)
}

package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"tutorbook/internal/bookings/conflict"
	bookingserrors "tutorbook/internal/bookings/errors"
	"tutorbook/internal/bookings/events"
	"tutorbook/internal/bookings/lifecycle"
	"tutorbook/internal/bookings/repository"
	"tutorbook/internal/bookings/validator"
	"tutorbook/internal/reservation"
	"tutorbook/pkg/config"
	apperrors "tutorbook/pkg/errors"
	"tutorbook/pkg/model"
	"tutorbook/pkg/sanitizer"
	"tutorbook/pkg/sealer"

	"github.com/google/uuid"
)

type BookingService interface {
	RequestBooking(ctx context.Context, actor model.Actor, req *model.BookingRequest) (*model.Booking, error)
	HoldSlot(ctx context.Context, actor model.Actor, req *model.BookingRequest) (*model.Hold, error)
	ConfirmHold(ctx context.Context, actor model.Actor, token string, req *model.HoldConfirmation) (*model.Booking, error)
	ReleaseHold(ctx context.Context, actor model.Actor, token string) error
	RespondToRequest(ctx context.Context, actor model.Actor, id string, expectedVersion int64, accept bool) (*model.Booking, error)
	CancelBooking(ctx context.Context, actor model.Actor, id string, expectedVersion int64) (*model.Booking, error)
	StartSession(ctx context.Context, actor model.Actor, id string, expectedVersion int64) (*model.Booking, error)
	CompleteSession(ctx context.Context, actor model.Actor, id string, expectedVersion int64) (*model.Booking, error)
	AdvanceDue(ctx context.Context, now time.Time) (int, error)
	GetByID(ctx context.Context, actor model.Actor, id string) (*model.Booking, error)
	ListByTutor(ctx context.Context, actor model.Actor, tutorID string, filter repository.Filter, limit int, offset int64) ([]*model.Booking, int64, error)
	ListByStudent(ctx context.Context, actor model.Actor, studentID string, filter repository.Filter, limit int, offset int64) ([]*model.Booking, int64, error)
}

// EventSink receives every state change after it is persisted.
type EventSink interface {
	Dispatch(event model.BookingEvent)
}

type bookingService struct {
	repo      repository.BookingRepository
	detector  *conflict.Detector
	lock      reservation.Lock
	sealer    *sealer.Sealer
	events    EventSink
	validator *validator.BookingValidator
	policy    lifecycle.Policy
	cfg       *config.Config
	now       func() time.Time
}

func NewBookingService(
	repo repository.BookingRepository,
	availability conflict.AvailabilityReader,
	lock reservation.Lock,
	sealer *sealer.Sealer,
	events EventSink,
	validator *validator.BookingValidator,
	cfg *config.Config,
) BookingService {
	return &bookingService{
		repo:      repo,
		detector:  conflict.NewDetector(availability, repo),
		lock:      lock,
		sealer:    sealer,
		events:    events,
		validator: validator,
		policy:    lifecycle.Policy{CancellationLeadTime: cfg.CancellationLeadTime},
		cfg:       cfg,
		now:       time.Now,
	}
}

// RequestBooking claims the slot, checks it against availability and
// committed bookings while the claim is held, and stores the booking as
// REQUESTED. The claim is always released before returning.
func (s *bookingService) RequestBooking(ctx context.Context, actor model.Actor, req *model.BookingRequest) (*model.Booking, error) {
	if err := s.checkRequest(actor, req); err != nil {
		return nil, err
	}

	token, err := s.claim(ctx, req, uuid.NewString(), s.cfg.ReservationTTL)
	if err != nil {
		return nil, err
	}

	booking := &model.Booking{
		TutorID:        req.TutorID,
		StudentID:      actor.ID,
		SubjectID:      req.SubjectID,
		ScheduledStart: req.ScheduledStart,
		ScheduledEnd:   req.ScheduledEnd,
		Note:           req.Note,
	}
	if err := s.commit(ctx, token, booking); err != nil {
		return nil, err
	}

	s.cfg.Log.Info("Booking requested",
		"id", booking.ID,
		"tutor_id", booking.TutorID,
		"student_id", booking.StudentID,
		"scheduled_start", booking.ScheduledStart,
		"scheduled_end", booking.ScheduledEnd,
	)
	s.emit(booking, "", actor)
	return booking, nil
}

// checkRequest normalizes req in place and applies the rules every new
// booking must satisfy before a claim is attempted.
func (s *bookingService) checkRequest(actor model.Actor, req *model.BookingRequest) error {
	if actor.Role != model.RoleStudent || actor.ID == "" {
		return apperrors.Forbidden("Only students can request bookings")
	}

	s.sanitize(req)
	if err := s.validator.ValidateRequest(req); err != nil {
		s.cfg.Log.Warn("Booking validation failed",
			"tutor_id", req.TutorID,
			"student_id", actor.ID,
			"error", err,
		)
		return apperrors.Validation("Booking validation failed", map[string]any{
			"error": err.Error(),
		})
	}

	if req.TutorID == actor.ID {
		return apperrors.Validation("A tutor cannot book a session with themselves", nil)
	}
	if !req.ScheduledStart.After(s.now()) {
		return apperrors.Validation("scheduled_start must be in the future", nil)
	}
	return nil
}

func (s *bookingService) claim(ctx context.Context, req *model.BookingRequest, holderID string, ttl time.Duration) (*reservation.Token, error) {
	token, err := s.lock.TryClaim(ctx, req.TutorID, req.ScheduledStart, req.ScheduledEnd, holderID, ttl)
	if err != nil {
		if errors.Is(err, reservation.ErrAlreadyClaimed) {
			return nil, apperrors.AlreadyClaimed("The requested time is being booked by someone else", err)
		}
		if errors.Is(err, reservation.ErrInvalidClaim) {
			return nil, apperrors.Validation(err.Error(), nil)
		}
		s.cfg.Log.Error("Failed to claim booking slot",
			"tutor_id", req.TutorID,
			"error", err,
		)
		return nil, apperrors.Internal("Failed to reserve the requested time", err)
	}
	return token, nil
}

// commit runs the conflict check and the insert under the claim in token.
func (s *bookingService) commit(ctx context.Context, token *reservation.Token, booking *model.Booking) error {
	err := s.lock.Commit(ctx, token, func(ctx context.Context) error {
		result, err := s.detector.CheckAvailable(ctx, booking.TutorID, booking.ScheduledStart, booking.ScheduledEnd, conflict.Options{})
		if err != nil {
			if apperrors.IsAppError(err) {
				return err
			}
			return apperrors.Internal("Failed to check tutor availability", err)
		}

		if result.Verdict != conflict.Available {
			return verdictError(result)
		}

		booking.Status = model.StatusRequested
		booking.CreatedAt = s.now().UTC().Truncate(time.Millisecond)
		if err := s.repo.Create(ctx, booking); err != nil {
			return apperrors.Internal("Failed to create booking", err)
		}
		return nil
	})
	if err == nil {
		return nil
	}

	if errors.Is(err, reservation.ErrClaimExpired) {
		return apperrors.ClaimExpired("The reservation expired before the booking was saved", err)
	}
	if apperrors.IsAppError(err) && !apperrors.HasCode(err, apperrors.CodeInternal) {
		return err
	}

	s.cfg.Log.Error("Failed to commit booking",
		"slot", describe(booking.TutorID, booking.ScheduledStart, booking.ScheduledEnd),
		"student_id", booking.StudentID,
		"error", err,
	)
	if apperrors.IsAppError(err) {
		return err
	}
	return apperrors.Internal("Failed to commit booking", err)
}

func (s *bookingService) GetByID(ctx context.Context, actor model.Actor, id string) (*model.Booking, error) {
	booking, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor.Role != model.RoleSystem && !booking.Participant(actor.ID) {
		return nil, apperrors.Forbidden("Only the tutor or the student of a booking can view it")
	}
	return booking, nil
}

func (s *bookingService) ListByTutor(ctx context.Context, actor model.Actor, tutorID string, filter repository.Filter, limit int, offset int64) ([]*model.Booking, int64, error) {
	if tutorID == "" {
		return nil, 0, apperrors.InvalidInput("Tutor ID cannot be empty")
	}
	if actor.Role != model.RoleTutor || actor.ID != tutorID {
		return nil, 0, apperrors.Forbidden("Tutors can only list their own bookings")
	}
	return s.list(ctx, "tutor_id", tutorID, filter,
		func(ctx context.Context) ([]*model.Booking, error) {
			return s.repo.FindByTutor(ctx, tutorID, filter, limit, offset)
		},
		func(ctx context.Context) (int64, error) {
			return s.repo.CountByTutor(ctx, tutorID, filter)
		},
	)
}

func (s *bookingService) ListByStudent(ctx context.Context, actor model.Actor, studentID string, filter repository.Filter, limit int, offset int64) ([]*model.Booking, int64, error) {
	if studentID == "" {
		return nil, 0, apperrors.InvalidInput("Student ID cannot be empty")
	}
	if actor.Role != model.RoleStudent || actor.ID != studentID {
		return nil, 0, apperrors.Forbidden("Students can only list their own bookings")
	}
	return s.list(ctx, "student_id", studentID, filter,
		func(ctx context.Context) ([]*model.Booking, error) {
			return s.repo.FindByStudent(ctx, studentID, filter, limit, offset)
		},
		func(ctx context.Context) (int64, error) {
			return s.repo.CountByStudent(ctx, studentID, filter)
		},
	)
}

// list runs the page query and the count concurrently.
func (s *bookingService) list(
	ctx context.Context,
	ownerField, ownerID string,
	filter repository.Filter,
	find func(ctx context.Context) ([]*model.Booking, error),
	count func(ctx context.Context) (int64, error),
) ([]*model.Booking, int64, error) {
	if !filter.From.IsZero() && !filter.To.IsZero() && !filter.From.Before(filter.To) {
		return nil, 0, apperrors.Validation("from must be before to", nil)
	}

	var (
		bookings          []*model.Booking
		total             int64
		errFind, errCount error
		wg                sync.WaitGroup
	)
	wg.Add(2)

	go func() {
		defer wg.Done()
		bookings, errFind = find(ctx)
	}()

	go func() {
		defer wg.Done()
		total, errCount = count(ctx)
	}()

	wg.Wait()
	if err := errors.Join(errFind, errCount); err != nil {
		s.cfg.Log.Error("Failed to list bookings",
			ownerField, ownerID,
			"error", err,
		)
		return nil, 0, apperrors.Internal("Failed to retrieve bookings", err)
	}
	return bookings, total, nil
}

func (s *bookingService) find(ctx context.Context, id string) (*model.Booking, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Booking ID cannot be empty")
	}

	booking, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, s.mapRepoError(err, id, "Failed to retrieve booking")
	}
	return booking, nil
}

func (s *bookingService) mapRepoError(err error, id, msg string) error {
	switch {
	case errors.Is(err, bookingserrors.ErrNotFound):
		return apperrors.NotFoundWithID("Booking", id)
	case errors.Is(err, bookingserrors.ErrInvalidID):
		return apperrors.InvalidInput("Invalid booking ID format")
	case errors.Is(err, bookingserrors.ErrStaleVersion):
		return apperrors.StaleVersion("Booking was modified by someone else; reload and retry", err)
	}
	s.cfg.Log.Error(msg, "id", id, "error", err)
	return apperrors.Internal(msg, err)
}

func (s *bookingService) emit(b *model.Booking, from model.BookingStatus, actor model.Actor) {
	if s.events == nil {
		return
	}
	s.events.Dispatch(events.NewEvent(b, from, actor, s.now()))
}

func (s *bookingService) sanitize(req *model.BookingRequest) {
	req.TutorID = sanitizer.NormalizeIdentifier(req.TutorID)
	req.SubjectID = sanitizer.NormalizeIdentifier(req.SubjectID)
	req.Note = sanitizer.TrimAndNormalize(req.Note)
	req.ScheduledStart = req.ScheduledStart.UTC()
	req.ScheduledEnd = req.ScheduledEnd.UTC()
}

// describe is used in log lines and error details for a slot.
func describe(tutorID string, start, end time.Time) string {
	return fmt.Sprintf("%s [%s, %s)", tutorID, start.Format(time.RFC3339), end.Format(time.RFC3339))
}

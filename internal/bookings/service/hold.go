package service

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"tutorbook/internal/bookings/conflict"
	bookingserrors "tutorbook/internal/bookings/errors"
	"tutorbook/internal/reservation"
	apperrors "tutorbook/pkg/errors"
	"tutorbook/pkg/model"
	"tutorbook/pkg/sanitizer"

	"github.com/google/uuid"
)

// Sealed hold token fields, in order.
const (
	holdTutor = iota
	holdSubject
	holdStart
	holdEnd
	holdHolder
	holdStudent
	holdExpires
	holdFields
)

// holdClaim is the decoded content of a hold token.
type holdClaim struct {
	token     reservation.Token
	subjectID string
	studentID string
}

// HoldSlot claims the slot for the reservation TTL and hands back a sealed
// token for checkout. Availability is checked up front so a client is not
// left holding a slot it could never book; ConfirmHold checks again.
func (s *bookingService) HoldSlot(ctx context.Context, actor model.Actor, req *model.BookingRequest) (*model.Hold, error) {
	if err := s.checkRequest(actor, req); err != nil {
		return nil, err
	}

	token, err := s.claim(ctx, req, uuid.NewString(), s.cfg.ReservationTTL)
	if err != nil {
		return nil, err
	}

	result, err := s.detector.CheckAvailable(ctx, req.TutorID, req.ScheduledStart, req.ScheduledEnd, conflict.Options{})
	if err == nil && result.Verdict != conflict.Available {
		err = verdictError(result)
	}
	if err != nil {
		s.release(ctx, token)
		if apperrors.IsAppError(err) {
			return nil, err
		}
		return nil, apperrors.Internal("Failed to check tutor availability", err)
	}

	sealed, err := s.sealer.Seal(
		token.TutorID,
		req.SubjectID,
		strconv.FormatInt(token.Start.UnixNano(), 10),
		strconv.FormatInt(token.End.UnixNano(), 10),
		token.HolderID,
		actor.ID,
		strconv.FormatInt(token.ExpiresAt.UnixNano(), 10),
	)
	if err != nil {
		s.release(ctx, token)
		return nil, apperrors.Internal("Failed to issue hold token", err)
	}

	s.cfg.Log.Info("Slot held",
		"slot", describe(token.TutorID, token.Start, token.End),
		"student_id", actor.ID,
		"expires_at", token.ExpiresAt,
	)
	return &model.Hold{
		Token:          sealed,
		TutorID:        token.TutorID,
		SubjectID:      req.SubjectID,
		ScheduledStart: token.Start,
		ScheduledEnd:   token.End,
		ExpiresAt:      token.ExpiresAt,
	}, nil
}

// ConfirmHold turns a live hold into a REQUESTED booking.
func (s *bookingService) ConfirmHold(ctx context.Context, actor model.Actor, sealed string, req *model.HoldConfirmation) (*model.Booking, error) {
	hold, err := s.openHold(actor, sealed)
	if err != nil {
		return nil, err
	}
	if !s.now().Before(hold.token.ExpiresAt) {
		return nil, apperrors.ClaimExpired("The hold has expired", reservation.ErrClaimExpired)
	}
	if !hold.token.Start.After(s.now()) {
		s.release(ctx, &hold.token)
		return nil, apperrors.Validation("scheduled_start must be in the future", nil)
	}

	note := ""
	if req != nil {
		note = sanitizer.TrimAndNormalize(req.Note)
		if len([]rune(note)) > 500 {
			return nil, apperrors.Validation("note must be at most 500 characters", nil)
		}
	}

	booking := &model.Booking{
		TutorID:        hold.token.TutorID,
		StudentID:      hold.studentID,
		SubjectID:      hold.subjectID,
		ScheduledStart: hold.token.Start,
		ScheduledEnd:   hold.token.End,
		Note:           note,
	}
	if err := s.commit(ctx, &hold.token, booking); err != nil {
		return nil, err
	}

	s.cfg.Log.Info("Hold confirmed",
		"id", booking.ID,
		"tutor_id", booking.TutorID,
		"student_id", booking.StudentID,
	)
	s.emit(booking, "", actor)
	return booking, nil
}

// ReleaseHold drops a hold early. Releasing an expired or already released
// hold succeeds.
func (s *bookingService) ReleaseHold(ctx context.Context, actor model.Actor, sealed string) error {
	hold, err := s.openHold(actor, sealed)
	if err != nil {
		return err
	}
	if err := s.lock.Release(ctx, &hold.token); err != nil {
		s.cfg.Log.Error("Failed to release hold",
			"slot", describe(hold.token.TutorID, hold.token.Start, hold.token.End),
			"error", err,
		)
		return apperrors.Internal("Failed to release hold", err)
	}

	s.cfg.Log.Info("Hold released",
		"slot", describe(hold.token.TutorID, hold.token.Start, hold.token.End),
		"student_id", hold.studentID,
	)
	return nil
}

func (s *bookingService) openHold(actor model.Actor, sealed string) (*holdClaim, error) {
	if sealed == "" {
		return nil, apperrors.InvalidInput("Hold token cannot be empty")
	}

	fields, err := s.sealer.Open(sealed, holdFields)
	if err != nil {
		return nil, invalidHold()
	}

	start, errStart := parseUnixNano(fields[holdStart])
	end, errEnd := parseUnixNano(fields[holdEnd])
	expires, errExpires := parseUnixNano(fields[holdExpires])
	if err := errors.Join(errStart, errEnd, errExpires); err != nil {
		return nil, invalidHold()
	}

	if actor.Role != model.RoleStudent || actor.ID != fields[holdStudent] {
		return nil, apperrors.Forbidden("Only the student who placed the hold can use it")
	}

	return &holdClaim{
		token: reservation.Token{
			TutorID:   fields[holdTutor],
			SlotKey:   reservation.SlotKey(fields[holdTutor], start, end),
			HolderID:  fields[holdHolder],
			Start:     start,
			End:       end,
			ExpiresAt: expires,
		},
		subjectID: fields[holdSubject],
		studentID: fields[holdStudent],
	}, nil
}

// release drops a claim on an error path. It outlives ctx so a cancelled
// request still frees the slot.
func (s *bookingService) release(ctx context.Context, token *reservation.Token) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	if err := s.lock.Release(ctx, token); err != nil {
		s.cfg.Log.Warn("Failed to release claim",
			"slot", describe(token.TutorID, token.Start, token.End),
			"error", err,
		)
	}
}

func verdictError(result conflict.Result) error {
	switch result.Verdict {
	case conflict.OutsideWindow:
		return apperrors.OutsideWindow("The requested time is outside the tutor's availability", nil)
	case conflict.OverlapsBooking:
		return apperrors.Overlap("The requested time overlaps an existing booking", bookingserrors.ErrTimeConflict).
			WithDetails(map[string]any{"conflicting_booking_id": result.Conflicting.ID})
	}
	return nil
}

func invalidHold() error {
	return apperrors.Wrap(bookingserrors.ErrInvalidHold, apperrors.CodeInvalidInput, "Invalid hold token", http.StatusBadRequest)
}

func parseUnixNano(s string) (time.Time, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(0, n).UTC(), nil
}

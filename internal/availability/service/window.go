package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	availabilityerrors "tutorbook/internal/availability/errors"
	"tutorbook/internal/availability/repository"
	"tutorbook/internal/availability/validator"
	"tutorbook/pkg/calendar"
	"tutorbook/pkg/config"
	apperrors "tutorbook/pkg/errors"
	"tutorbook/pkg/model"
	"tutorbook/pkg/sanitizer"
)

type AvailabilityService interface {
	AddWindow(ctx context.Context, window *model.AvailabilityWindow) (*model.AvailabilityWindow, error)
	RemoveWindow(ctx context.Context, tutorID, id string) error
	ListWindows(ctx context.Context, tutorID string) ([]*model.AvailabilityWindow, error)
	ListEffectiveWindows(ctx context.Context, tutorID string, from, to time.Time) ([]calendar.Interval, error)
}

type availabilityService struct {
	repo      repository.WindowRepository
	validator *validator.WindowValidator
	cfg       *config.Config
	now       func() time.Time
}

func NewAvailabilityService(
	repo repository.WindowRepository,
	validator *validator.WindowValidator,
	cfg *config.Config,
) AvailabilityService {
	return &availabilityService{
		repo:      repo,
		validator: validator,
		cfg:       cfg,
		now:       time.Now,
	}
}

func (s *availabilityService) AddWindow(ctx context.Context, window *model.AvailabilityWindow) (*model.AvailabilityWindow, error) {
	s.sanitize(window)

	if err := s.validator.Validate(window); err != nil {
		s.cfg.Log.Warn("Availability window validation failed",
			"tutor_id", window.TutorID,
			"error", err,
		)
		return nil, apperrors.Validation("Availability window validation failed", map[string]any{
			"error": err.Error(),
		})
	}

	rule, err := window.Rule()
	if err != nil {
		return nil, apperrors.Validation(err.Error(), nil)
	}

	err = s.repo.ExecuteTransaction(ctx, func(txCtx context.Context) error {
		if err := s.repo.LockTutor(txCtx, window.TutorID); err != nil {
			return err
		}
		existing, err := s.repo.FindByTutor(txCtx, window.TutorID)
		if err != nil {
			return apperrors.Internal("Failed to load existing availability windows", err)
		}

		anchor := s.now()
		for _, e := range existing {
			other, err := e.Rule()
			if err != nil {
				s.cfg.Log.Warn("Skipping unreadable availability window",
					"id", e.ID,
					"tutor_id", e.TutorID,
					"error", err,
				)
				continue
			}
			if calendar.Conflicts(rule, other, anchor) {
				return apperrors.Overlap(
					fmt.Sprintf("Availability window overlaps existing window %s", e.ID), nil,
				).WithDetails(map[string]any{"conflicting_window_id": e.ID})
			}
		}
		return s.repo.Create(txCtx, window)
	})
	if err != nil {
		if !apperrors.HasCode(err, apperrors.CodeOverlap) {
			s.cfg.Log.Error("Failed to add availability window",
				"tutor_id", window.TutorID,
				"error", err,
			)
		}
		if apperrors.IsAppError(err) {
			return nil, err
		}
		return nil, apperrors.Internal("Failed to add availability window", err)
	}

	s.cfg.Log.Info("Availability window added",
		"id", window.ID,
		"tutor_id", window.TutorID,
		"recurrence", window.Recurrence,
	)
	return window, nil
}

func (s *availabilityService) RemoveWindow(ctx context.Context, tutorID, id string) error {
	if id == "" {
		return apperrors.InvalidInput("Availability window ID cannot be empty")
	}

	existing, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return s.mapRepoError(err, id, "Failed to check availability window existence")
	}
	// Another tutor's window is reported as missing, not forbidden.
	if existing.TutorID != tutorID {
		return apperrors.NotFoundWithID("Availability window", id)
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return s.mapRepoError(err, id, "Failed to remove availability window")
	}

	s.cfg.Log.Info("Availability window removed",
		"id", id,
		"tutor_id", tutorID,
	)
	return nil
}

func (s *availabilityService) ListWindows(ctx context.Context, tutorID string) ([]*model.AvailabilityWindow, error) {
	if tutorID == "" {
		return nil, apperrors.InvalidInput("Tutor ID cannot be empty")
	}

	windows, err := s.repo.FindByTutor(ctx, tutorID)
	if err != nil {
		s.cfg.Log.Error("Failed to list availability windows",
			"tutor_id", tutorID,
			"error", err,
		)
		return nil, apperrors.Internal("Failed to retrieve availability windows", err)
	}
	return windows, nil
}

// ListEffectiveWindows materializes every window of the tutor over
// [from, to) and returns the merged, sorted union.
func (s *availabilityService) ListEffectiveWindows(ctx context.Context, tutorID string, from, to time.Time) ([]calendar.Interval, error) {
	if tutorID == "" {
		return nil, apperrors.InvalidInput("Tutor ID cannot be empty")
	}
	if !from.Before(to) {
		return nil, apperrors.Validation("from must be before to", nil)
	}
	if to.Sub(from) > s.cfg.AvailabilityMaxRange {
		return nil, apperrors.Validation(
			fmt.Sprintf("Requested range exceeds the maximum of %s", s.cfg.AvailabilityMaxRange), nil,
		)
	}

	windows, err := s.ListWindows(ctx, tutorID)
	if err != nil {
		return nil, err
	}

	rules := make([]calendar.Rule, 0, len(windows))
	for _, w := range windows {
		rule, err := w.Rule()
		if err != nil {
			s.cfg.Log.Warn("Skipping unreadable availability window",
				"id", w.ID,
				"tutor_id", w.TutorID,
				"error", err,
			)
			continue
		}
		rules = append(rules, rule)
	}

	return calendar.ExpandAll(rules, from, to), nil
}

func (s *availabilityService) mapRepoError(err error, id, msg string) error {
	if errors.Is(err, availabilityerrors.ErrNotFound) {
		return apperrors.NotFoundWithID("Availability window", id)
	}
	if errors.Is(err, availabilityerrors.ErrInvalidID) {
		return apperrors.InvalidInput("Invalid availability window ID format")
	}
	s.cfg.Log.Error(msg, "id", id, "error", err)
	return apperrors.Internal(msg, err)
}

func (s *availabilityService) sanitize(w *model.AvailabilityWindow) {
	w.ID = ""
	w.TutorID = sanitizer.NormalizeIdentifier(w.TutorID)
	w.Recurrence = model.Recurrence(sanitizer.NormalizeEnum(string(w.Recurrence)))
	w.DayOfWeek = sanitizer.NormalizeWeekday(w.DayOfWeek)
	w.Date = strings.TrimSpace(w.Date)
	w.StartTime = strings.TrimSpace(w.StartTime)
	w.EndTime = strings.TrimSpace(w.EndTime)
	w.TimeZone = sanitizer.NormalizeTimeZone(w.TimeZone)
	if w.TimeZone == "" {
		w.TimeZone = "UTC"
	}
	if w.Recurrence == model.RecurrenceWeekly {
		w.Date = ""
	} else {
		w.DayOfWeek = ""
	}
}

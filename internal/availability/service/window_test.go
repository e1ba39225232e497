package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"tutorbook/internal/availability/repository"
	"tutorbook/internal/availability/validator"
	"tutorbook/pkg/calendar"
	"tutorbook/pkg/config"
	apperrors "tutorbook/pkg/errors"
	"tutorbook/pkg/logger"
	"tutorbook/pkg/model"
)

func newTestService(t *testing.T) *availabilityService {
	t.Helper()
	cfg := &config.Config{
		Log:                  logger.Discard(),
		AvailabilityMaxRange: config.DefaultAvailabilityMaxRange,
	}
	svc := NewAvailabilityService(
		repository.NewMemoryWindowRepository(),
		validator.NewWindowValidator(cfg.Log),
		cfg,
	).(*availabilityService)
	svc.now = func() time.Time { return time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC) }
	return svc
}

func weekly(tutor, day, start, end string) *model.AvailabilityWindow {
	return &model.AvailabilityWindow{
		TutorID:    tutor,
		Recurrence: model.RecurrenceWeekly,
		DayOfWeek:  day,
		StartTime:  start,
		EndTime:    end,
	}
}

func once(tutor, date, start, end string) *model.AvailabilityWindow {
	return &model.AvailabilityWindow{
		TutorID:    tutor,
		Recurrence: model.RecurrenceNone,
		Date:       date,
		StartTime:  start,
		EndTime:    end,
	}
}

func TestAddWindow(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	created, err := svc.AddWindow(ctx, weekly("tutor-1", "monday", "09:00", "12:00"))
	if err != nil {
		t.Fatalf("AddWindow: %v", err)
	}
	if created.ID == "" {
		t.Error("expected an ID to be assigned")
	}
	if created.DayOfWeek != "Monday" || created.TimeZone != "UTC" {
		t.Errorf("expected normalized fields, got day=%q tz=%q", created.DayOfWeek, created.TimeZone)
	}

	tests := []struct {
		name     string
		window   *model.AvailabilityWindow
		wantCode string
	}{
		{"overlapping weekly", weekly("tutor-1", "Monday", "11:00", "13:00"), apperrors.CodeOverlap},
		{"contained weekly", weekly("tutor-1", "Monday", "10:00", "11:00"), apperrors.CodeOverlap},
		{"adjacent weekly", weekly("tutor-1", "Monday", "12:00", "14:00"), ""},
		{"other weekday", weekly("tutor-1", "Tuesday", "09:00", "12:00"), ""},
		{"other tutor", weekly("tutor-2", "Monday", "09:00", "12:00"), ""},
		{"one-time on a covered monday", once("tutor-1", "2026-03-09", "08:00", "09:30"), apperrors.CodeOverlap},
		{"one-time on a wednesday", once("tutor-1", "2026-03-11", "08:00", "09:30"), ""},
		{"bad clock", weekly("tutor-1", "Friday", "9am", "12:00"), apperrors.CodeValidation},
		{"end before start", weekly("tutor-1", "Friday", "12:00", "09:00"), apperrors.CodeValidation},
		{"empty range", weekly("tutor-1", "Friday", "12:00", "12:00"), apperrors.CodeValidation},
		{"missing weekday", weekly("tutor-1", "", "09:00", "12:00"), apperrors.CodeValidation},
		{"unknown weekday", weekly("tutor-1", "Funday", "09:00", "12:00"), apperrors.CodeValidation},
		{"missing date", once("tutor-1", "", "09:00", "12:00"), apperrors.CodeValidation},
		{"bad date", once("tutor-1", "2026-13-01", "09:00", "12:00"), apperrors.CodeValidation},
		{"missing tutor", weekly("", "Friday", "09:00", "12:00"), apperrors.CodeValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.AddWindow(ctx, tt.window)
			if tt.wantCode == "" {
				if err != nil {
					t.Fatalf("expected success, got %v", err)
				}
				return
			}
			if !apperrors.HasCode(err, tt.wantCode) {
				t.Fatalf("expected %s, got %v", tt.wantCode, err)
			}
		})
	}
}

func TestAddWindow_BadTimeZone(t *testing.T) {
	svc := newTestService(t)
	w := weekly("tutor-1", "Monday", "09:00", "12:00")
	w.TimeZone = "Mars/Olympus_Mons"

	if _, err := svc.AddWindow(context.Background(), w); !apperrors.HasCode(err, apperrors.CodeValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestAddWindow_ValidityRangesSeparateWindows(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	march := time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC)
	april := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)

	first := weekly("tutor-1", "Monday", "09:00", "12:00")
	first.ValidUntil = &march
	if _, err := svc.AddWindow(ctx, first); err != nil {
		t.Fatalf("first: %v", err)
	}

	second := weekly("tutor-1", "Monday", "10:00", "13:00")
	second.ValidFrom = &april
	if _, err := svc.AddWindow(ctx, second); err != nil {
		t.Errorf("non-overlapping validity should be accepted, got %v", err)
	}

	inverted := weekly("tutor-1", "Friday", "09:00", "10:00")
	inverted.ValidFrom = &april
	inverted.ValidUntil = &march
	if _, err := svc.AddWindow(ctx, inverted); !apperrors.HasCode(err, apperrors.CodeValidation) {
		t.Errorf("expected validation error for inverted validity, got %v", err)
	}
}

func TestAddWindow_ConcurrentOverlapsHaveOneWinner(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	const n = 10
	var wg sync.WaitGroup
	results := make(chan error, n)
	for i := range n {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			start := []string{"09:00", "09:30", "10:00", "10:30", "11:00"}[i%5]
			_, err := svc.AddWindow(ctx, weekly("tutor-1", "Monday", start, "12:00"))
			results <- err
		}(i)
	}
	wg.Wait()
	close(results)

	ok := 0
	for err := range results {
		if err == nil {
			ok++
		} else if !apperrors.HasCode(err, apperrors.CodeOverlap) {
			t.Errorf("unexpected error: %v", err)
		}
	}
	if ok != 1 {
		t.Errorf("expected exactly one window stored, got %d", ok)
	}
}

func TestRemoveWindow(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	w, err := svc.AddWindow(ctx, weekly("tutor-1", "Monday", "09:00", "12:00"))
	if err != nil {
		t.Fatalf("AddWindow: %v", err)
	}

	if err := svc.RemoveWindow(ctx, "tutor-2", w.ID); !apperrors.HasCode(err, apperrors.CodeNotFound) {
		t.Errorf("removing another tutor's window: expected NOT_FOUND, got %v", err)
	}
	if err := svc.RemoveWindow(ctx, "tutor-1", "not-a-uuid"); !apperrors.HasCode(err, apperrors.CodeInvalidInput) {
		t.Errorf("expected INVALID_INPUT, got %v", err)
	}
	if err := svc.RemoveWindow(ctx, "tutor-1", w.ID); err != nil {
		t.Fatalf("RemoveWindow: %v", err)
	}
	if err := svc.RemoveWindow(ctx, "tutor-1", w.ID); !apperrors.HasCode(err, apperrors.CodeNotFound) {
		t.Errorf("second remove: expected NOT_FOUND, got %v", err)
	}

	windows, _ := svc.ListWindows(ctx, "tutor-1")
	if len(windows) != 0 {
		t.Errorf("expected no windows left, got %d", len(windows))
	}
}

func TestListEffectiveWindows(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	for _, w := range []*model.AvailabilityWindow{
		weekly("tutor-1", "Monday", "09:00", "12:00"),
		weekly("tutor-1", "Monday", "12:00", "14:00"),
		weekly("tutor-1", "Wednesday", "16:00", "18:00"),
		once("tutor-1", "2026-03-07", "10:00", "11:00"),
	} {
		if _, err := svc.AddWindow(ctx, w); err != nil {
			t.Fatalf("AddWindow: %v", err)
		}
	}

	from := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	to := from.Add(7 * 24 * time.Hour)

	got, err := svc.ListEffectiveWindows(ctx, "tutor-1", from, to)
	if err != nil {
		t.Fatalf("ListEffectiveWindows: %v", err)
	}

	utc := func(d, h int) time.Time { return time.Date(2026, 3, d, h, 0, 0, 0, time.UTC) }
	want := []calendar.Interval{
		{Start: utc(2, 9), End: utc(2, 14)},
		{Start: utc(4, 16), End: utc(4, 18)},
		{Start: utc(7, 10), End: utc(7, 11)},
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d intervals, got %d: %v", len(want), len(got), got)
	}
	for i := range want {
		if !got[i].Start.Equal(want[i].Start) || !got[i].End.Equal(want[i].End) {
			t.Errorf("interval %d: expected %v, got %v", i, want[i], got[i])
		}
	}

	again, _ := svc.ListEffectiveWindows(ctx, "tutor-1", from, to)
	if len(again) != len(got) {
		t.Error("expansion should be deterministic")
	}
}

func TestListEffectiveWindows_RangeChecks(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	from := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

	if _, err := svc.ListEffectiveWindows(ctx, "tutor-1", from, from); !apperrors.HasCode(err, apperrors.CodeValidation) {
		t.Errorf("empty range: expected validation error, got %v", err)
	}
	if _, err := svc.ListEffectiveWindows(ctx, "tutor-1", from, from.Add(config.DefaultAvailabilityMaxRange+time.Hour)); !apperrors.HasCode(err, apperrors.CodeValidation) {
		t.Errorf("oversized range: expected validation error, got %v", err)
	}
	if _, err := svc.ListEffectiveWindows(ctx, "", from, from.Add(time.Hour)); !apperrors.HasCode(err, apperrors.CodeInvalidInput) {
		t.Errorf("missing tutor: expected invalid input, got %v", err)
	}

	got, err := svc.ListEffectiveWindows(ctx, "tutor-without-windows", from, from.Add(time.Hour))
	if err != nil || len(got) != 0 {
		t.Errorf("expected empty result, got %v %v", got, err)
	}
}

// lockRecordingRepository notes the order of guard and read calls.
type lockRecordingRepository struct {
	repository.WindowRepository
	mu    sync.Mutex
	calls []string
}

func (r *lockRecordingRepository) record(call string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, call)
}

func (r *lockRecordingRepository) LockTutor(ctx context.Context, tutorID string) error {
	r.record("lock:" + tutorID)
	return r.WindowRepository.LockTutor(ctx, tutorID)
}

func (r *lockRecordingRepository) FindByTutor(ctx context.Context, tutorID string) ([]*model.AvailabilityWindow, error) {
	r.record("find:" + tutorID)
	return r.WindowRepository.FindByTutor(ctx, tutorID)
}

func TestAddWindow_GuardsTutorBeforeReading(t *testing.T) {
	cfg := &config.Config{Log: logger.Discard(), AvailabilityMaxRange: config.DefaultAvailabilityMaxRange}
	repo := &lockRecordingRepository{WindowRepository: repository.NewMemoryWindowRepository()}
	svc := NewAvailabilityService(repo, validator.NewWindowValidator(cfg.Log), cfg)

	if _, err := svc.AddWindow(context.Background(), weekly("tutor-1", "Monday", "09:00", "12:00")); err != nil {
		t.Fatalf("AddWindow: %v", err)
	}

	want := []string{"lock:tutor-1", "find:tutor-1"}
	if len(repo.calls) != len(want) {
		t.Fatalf("expected calls %v, got %v", want, repo.calls)
	}
	for i := range want {
		if repo.calls[i] != want[i] {
			t.Errorf("call %d: expected %s, got %s", i, want[i], repo.calls[i])
		}
	}
}

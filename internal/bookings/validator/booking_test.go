package validator

import (
	"errors"
	"testing"
	"time"

	"tutorbook/pkg/logger"
	"tutorbook/pkg/model"
)

func TestValidateRequest(t *testing.T) {
	v := NewBookingValidator(logger.Discard())
	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	valid := func() *model.BookingRequest {
		return &model.BookingRequest{
			TutorID:        "tutor-1",
			SubjectID:      "math",
			ScheduledStart: start,
			ScheduledEnd:   start.Add(time.Hour),
		}
	}

	tests := []struct {
		name    string
		mutate  func(r *model.BookingRequest)
		wantErr bool
		field   string
	}{
		{"valid", func(r *model.BookingRequest) {}, false, ""},
		{"missing tutor", func(r *model.BookingRequest) { r.TutorID = "" }, true, "TutorID"},
		{"missing subject", func(r *model.BookingRequest) { r.SubjectID = "" }, true, "SubjectID"},
		{"tutor with separator", func(r *model.BookingRequest) { r.TutorID = "a|b" }, true, "TutorID"},
		{"tutor with colon", func(r *model.BookingRequest) { r.TutorID = "a:b" }, true, "TutorID"},
		{"end before start", func(r *model.BookingRequest) { r.ScheduledEnd = start.Add(-time.Hour) }, true, "ScheduledEnd"},
		{"end equals start", func(r *model.BookingRequest) { r.ScheduledEnd = start }, true, "ScheduledEnd"},
		{"too long", func(r *model.BookingRequest) { r.ScheduledEnd = start.Add(MaxSessionDuration + time.Minute) }, true, "ScheduledEnd"},
		{"note too long", func(r *model.BookingRequest) { r.Note = string(make([]byte, 501)) }, true, "Note"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := valid()
			tt.mutate(req)

			err := v.ValidateRequest(req)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidateRequest() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr {
				return
			}
			var verrs ValidationErrors
			if !errors.As(err, &verrs) {
				t.Fatalf("expected ValidationErrors, got %T", err)
			}
			if verrs[0].Field != tt.field {
				t.Errorf("expected field %s, got %s", tt.field, verrs[0].Field)
			}
		})
	}
}

func TestValidateStatusChange(t *testing.T) {
	v := NewBookingValidator(logger.Discard())

	if err := v.ValidateStatusChange(&model.StatusChange{Version: 3}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := v.ValidateStatusChange(&model.StatusChange{}); err == nil {
		t.Error("expected an error for a missing version")
	}
}

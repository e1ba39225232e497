package service

import (
	"context"
	"strings"
	"testing"
	"time"

	apperrors "tutorbook/pkg/errors"
	"tutorbook/pkg/model"
)

func TestHoldSlot_ConfirmFlow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	hold, err := f.svc.HoldSlot(ctx, student, request(mon(10, 0), mon(11, 0)))
	if err != nil {
		t.Fatalf("HoldSlot: %v", err)
	}
	if hold.Token == "" || !hold.ExpiresAt.Equal(f.clock.Now().Add(30*time.Second)) {
		t.Fatalf("unexpected hold %+v", hold)
	}
	if strings.Contains(hold.Token, tutorID) {
		t.Error("hold token should be opaque")
	}
	if hold.TutorID != tutorID || hold.SubjectID != "math" ||
		!hold.ScheduledStart.Equal(mon(10, 0)) || !hold.ScheduledEnd.Equal(mon(11, 0)) {
		t.Errorf("hold does not describe the claimed slot: %+v", hold)
	}

	// The held slot blocks everyone else until checkout.
	_, err = f.svc.RequestBooking(ctx, stranger, request(mon(10, 30), mon(11, 30)))
	assertCode(t, err, apperrors.CodeAlreadyClaimed)
	if f.sink.count() != 0 {
		t.Errorf("a hold should not emit events, got %d", f.sink.count())
	}

	booking, err := f.svc.ConfirmHold(ctx, student, hold.Token, &model.HoldConfirmation{Note: "  algebra  "})
	if err != nil {
		t.Fatalf("ConfirmHold: %v", err)
	}
	if booking.Status != model.StatusRequested || booking.SubjectID != "math" || booking.Note != "algebra" {
		t.Errorf("unexpected booking %+v", booking)
	}
	if !booking.ScheduledStart.Equal(mon(10, 0)) || !booking.ScheduledEnd.Equal(mon(11, 0)) {
		t.Errorf("unexpected interval [%v, %v)", booking.ScheduledStart, booking.ScheduledEnd)
	}
	if f.sink.count() != 1 {
		t.Errorf("expected a creation event, got %d", f.sink.count())
	}

	// A token cannot be redeemed twice.
	_, err = f.svc.ConfirmHold(ctx, student, hold.Token, nil)
	assertCode(t, err, apperrors.CodeClaimExpired)
}

func TestHoldSlot_Rejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.book(t, mon(9, 0), mon(10, 0))

	_, err := f.svc.HoldSlot(ctx, student, request(mon(9, 30), mon(10, 30)))
	assertCode(t, err, apperrors.CodeOverlap)

	_, err = f.svc.HoldSlot(ctx, student, request(mon(12, 0), mon(13, 0)))
	assertCode(t, err, apperrors.CodeOutsideWindow)

	_, err = f.svc.HoldSlot(ctx, tutor, request(mon(10, 0), mon(11, 0)))
	assertCode(t, err, apperrors.CodeForbidden)

	// Failed holds leave no claim behind.
	if _, err := f.lock.TryClaim(ctx, tutorID, mon(9, 0), mon(13, 0), "checker", time.Second); err != nil {
		t.Errorf("expected no leftover claims, got %v", err)
	}
}

func TestReleaseHold(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	hold, err := f.svc.HoldSlot(ctx, student, request(mon(10, 0), mon(11, 0)))
	if err != nil {
		t.Fatalf("HoldSlot: %v", err)
	}

	err = f.svc.ReleaseHold(ctx, stranger, hold.Token)
	assertCode(t, err, apperrors.CodeForbidden)

	if err := f.svc.ReleaseHold(ctx, student, hold.Token); err != nil {
		t.Fatalf("ReleaseHold: %v", err)
	}
	if err := f.svc.ReleaseHold(ctx, student, hold.Token); err != nil {
		t.Errorf("releasing twice should succeed, got %v", err)
	}

	if _, err := f.svc.RequestBooking(ctx, stranger, request(mon(10, 0), mon(11, 0))); err != nil {
		t.Errorf("expected the released slot to be bookable, got %v", err)
	}

	_, err = f.svc.ConfirmHold(ctx, student, hold.Token, nil)
	assertCode(t, err, apperrors.CodeClaimExpired)
}

func TestConfirmHold_Expired(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	hold, err := f.svc.HoldSlot(ctx, student, request(mon(10, 0), mon(11, 0)))
	if err != nil {
		t.Fatalf("HoldSlot: %v", err)
	}

	f.clock.Set(hold.ExpiresAt)
	_, err = f.svc.ConfirmHold(ctx, student, hold.Token, nil)
	assertCode(t, err, apperrors.CodeClaimExpired)

	// Someone else may now take the slot.
	if _, err := f.svc.RequestBooking(ctx, stranger, request(mon(10, 0), mon(11, 0))); err != nil {
		t.Errorf("expected the expired hold not to block, got %v", err)
	}
}

func TestConfirmHold_BadTokens(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	hold, err := f.svc.HoldSlot(ctx, student, request(mon(10, 0), mon(11, 0)))
	if err != nil {
		t.Fatalf("HoldSlot: %v", err)
	}

	tampered := []byte(hold.Token)
	if tampered[10] == 'A' {
		tampered[10] = 'B'
	} else {
		tampered[10] = 'A'
	}

	tests := []struct {
		name  string
		actor model.Actor
		token string
		code  string
	}{
		{"empty", student, "", apperrors.CodeInvalidInput},
		{"garbage", student, "not-a-token", apperrors.CodeInvalidInput},
		{"tampered", student, string(tampered), apperrors.CodeInvalidInput},
		{"other student", stranger, hold.Token, apperrors.CodeForbidden},
		{"tutor", tutor, hold.Token, apperrors.CodeForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.ConfirmHold(ctx, tt.actor, tt.token, nil)
			assertCode(t, err, tt.code)
		})
	}

	// The real holder can still check out.
	if _, err := f.svc.ConfirmHold(ctx, student, hold.Token, nil); err != nil {
		t.Errorf("ConfirmHold: %v", err)
	}
}

// Package reservation provides short-lived exclusive claims on a tutor's
// time. A claim is taken before the availability check and dropped once the
// booking is persisted, so two requests for overlapping time on the same
// tutor can never both pass the check.
package reservation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tutorbook/pkg/calendar"
	"tutorbook/pkg/model"
)

var (
	ErrAlreadyClaimed = errors.New("overlapping time is already claimed")
	ErrClaimExpired   = errors.New("claim expired or no longer held")
	ErrInvalidClaim   = errors.New("invalid claim")
)

type Lock interface {
	// TryClaim fails with ErrAlreadyClaimed when any live claim on tutorID
	// overlaps [start, end). Expired claims never block.
	TryClaim(ctx context.Context, tutorID string, start, end time.Time, holderID string, ttl time.Duration) (*Token, error)
	// Commit runs persist while the claim is guaranteed live and releases
	// the claim afterwards, whatever persist returns.
	Commit(ctx context.Context, token *Token, persist func(ctx context.Context) error) error
	Release(ctx context.Context, token *Token) error
	Sweep(ctx context.Context, now time.Time) (int, error)
}

type Token struct {
	TutorID   string
	SlotKey   string
	HolderID  string
	Start     time.Time
	End       time.Time
	ExpiresAt time.Time
}

func (t *Token) Interval() calendar.Interval {
	return calendar.Interval{Start: t.Start, End: t.End}
}

func (t *Token) record(now time.Time) model.LockRecord {
	return model.LockRecord{
		TutorID:   t.TutorID,
		SlotKey:   t.SlotKey,
		HolderID:  t.HolderID,
		Start:     t.Start,
		End:       t.End,
		ExpiresAt: t.ExpiresAt,
		CreatedAt: now,
	}
}

// SlotKey is the stable identity of a claimed interval on one tutor. Bounds
// are kept to the millisecond, the precision every backend stores.
func SlotKey(tutorID string, start, end time.Time) string {
	return fmt.Sprintf("%s:%d-%d", tutorID, start.UnixMilli(), end.UnixMilli())
}

func newToken(tutorID string, start, end time.Time, holderID string, ttl time.Duration, now time.Time) (*Token, error) {
	if tutorID == "" || holderID == "" {
		return nil, fmt.Errorf("%w: tutor and holder are required", ErrInvalidClaim)
	}
	start, end = start.UTC().Truncate(time.Millisecond), end.UTC().Truncate(time.Millisecond)
	if !start.Before(end) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidClaim, calendar.ErrEmptyInterval)
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("%w: ttl must be positive", ErrInvalidClaim)
	}
	return &Token{
		TutorID:   tutorID,
		SlotKey:   SlotKey(tutorID, start, end),
		HolderID:  holderID,
		Start:     start,
		End:       end,
		ExpiresAt: now.Add(ttl).UTC(),
	}, nil
}

// commitWith is the shared Commit flow: refresh proves the claim is still
// held and pushes its expiry out far enough to cover persist.
func commitWith(ctx context.Context, l Lock, token *Token, refresh func(ctx context.Context, token *Token) error, persist func(ctx context.Context) error) error {
	if token == nil {
		return ErrInvalidClaim
	}
	if err := refresh(ctx, token); err != nil {
		return err
	}
	defer func() {
		// Release must run even if the request context is already done.
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
		defer cancel()
		_ = l.Release(releaseCtx, token)
	}()
	return persist(ctx)
}

const releaseTimeout = 5 * time.Second

package reservation

import (
	"context"
	"sync"
	"time"

	"tutorbook/pkg/model"
)

// MemoryLock keeps every claim in process memory. It only serializes
// requests within one process.
type MemoryLock struct {
	mu     sync.Mutex
	arenas map[string]map[string]model.LockRecord
	commit time.Duration
	now    func() time.Time
}

func NewMemoryLock(commitTTL time.Duration) *MemoryLock {
	return &MemoryLock{
		arenas: make(map[string]map[string]model.LockRecord),
		commit: commitTTL,
		now:    time.Now,
	}
}

// WithClock replaces the time source used for expiry decisions.
func (m *MemoryLock) WithClock(now func() time.Time) *MemoryLock {
	m.now = now
	return m
}

func (m *MemoryLock) TryClaim(ctx context.Context, tutorID string, start, end time.Time, holderID string, ttl time.Duration) (*Token, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	now := m.now()
	token, err := newToken(tutorID, start, end, holderID, ttl, now)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	arena := m.arenas[tutorID]
	if arena == nil {
		arena = make(map[string]model.LockRecord)
		m.arenas[tutorID] = arena
	}

	want := token.Interval()
	for key, rec := range arena {
		if rec.IsExpired(now) {
			delete(arena, key)
			continue
		}
		if rec.Interval().Overlaps(want) {
			return nil, ErrAlreadyClaimed
		}
	}

	arena[token.SlotKey] = token.record(now)
	return token, nil
}

func (m *MemoryLock) Commit(ctx context.Context, token *Token, persist func(ctx context.Context) error) error {
	return commitWith(ctx, m, token, m.refresh, persist)
}

func (m *MemoryLock) refresh(_ context.Context, token *Token) error {
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.arenas[token.TutorID][token.SlotKey]
	if !ok || rec.HolderID != token.HolderID || rec.IsExpired(now) {
		return ErrClaimExpired
	}
	rec.ExpiresAt = now.Add(m.commit)
	m.arenas[token.TutorID][token.SlotKey] = rec
	token.ExpiresAt = rec.ExpiresAt
	return nil
}

func (m *MemoryLock) Release(_ context.Context, token *Token) error {
	if token == nil {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	arena := m.arenas[token.TutorID]
	if rec, ok := arena[token.SlotKey]; ok && rec.HolderID == token.HolderID {
		delete(arena, token.SlotKey)
	}
	if len(arena) == 0 {
		delete(m.arenas, token.TutorID)
	}
	return nil
}

func (m *MemoryLock) Sweep(_ context.Context, now time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for tutorID, arena := range m.arenas {
		for key, rec := range arena {
			if rec.IsExpired(now) {
				delete(arena, key)
				removed++
			}
		}
		if len(arena) == 0 {
			delete(m.arenas, tutorID)
		}
	}
	return removed, nil
}

package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	availabilityerrors "tutorbook/internal/availability/errors"
	mongotx "tutorbook/pkg/db/mongo"
	"tutorbook/pkg/model"

	"github.com/google/uuid"
)

// memoryWindowRepository backs single-process deployments and tests.
// Transactions are serialized by txMu; individual operations by mu.
type memoryWindowRepository struct {
	txMu    sync.Mutex
	mu      sync.RWMutex
	windows map[string]model.AvailabilityWindow
}

func NewMemoryWindowRepository() WindowRepository {
	return &memoryWindowRepository{
		windows: make(map[string]model.AvailabilityWindow),
	}
}

func (r *memoryWindowRepository) Create(ctx context.Context, window *model.AvailabilityWindow) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	window.ID = uuid.NewString()
	window.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)
	r.windows[window.ID] = *window
	return nil
}

func (r *memoryWindowRepository) FindByID(ctx context.Context, id string) (*model.AvailabilityWindow, error) {
	if err := uuid.Validate(id); err != nil {
		return nil, fmt.Errorf("%w: %s", availabilityerrors.ErrInvalidID, id)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	window, ok := r.windows[id]
	if !ok {
		return nil, availabilityerrors.ErrNotFound
	}
	return &window, nil
}

func (r *memoryWindowRepository) FindByTutor(ctx context.Context, tutorID string) ([]*model.AvailabilityWindow, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	windows := []*model.AvailabilityWindow{}
	for _, w := range r.windows {
		if w.TutorID == tutorID {
			w := w
			windows = append(windows, &w)
		}
	}
	sort.Slice(windows, func(i, j int) bool {
		if windows[i].CreatedAt.Equal(windows[j].CreatedAt) {
			return windows[i].ID < windows[j].ID
		}
		return windows[i].CreatedAt.Before(windows[j].CreatedAt)
	})
	return windows, nil
}

func (r *memoryWindowRepository) Delete(ctx context.Context, id string) error {
	if err := uuid.Validate(id); err != nil {
		return fmt.Errorf("%w: %s", availabilityerrors.ErrInvalidID, id)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.windows[id]; !ok {
		return availabilityerrors.ErrNotFound
	}
	delete(r.windows, id)
	return nil
}

// LockTutor is a no-op; txMu already serializes transactions.
func (r *memoryWindowRepository) LockTutor(ctx context.Context, _ string) error {
	return ctx.Err()
}

func (r *memoryWindowRepository) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	r.txMu.Lock()
	defer r.txMu.Unlock()
	return fn(ctx)
}

package events

import (
	"context"
	"sync"
	"time"

	"tutorbook/pkg/logger"
	"tutorbook/pkg/model"
)

// Dispatcher sends events on background goroutines so callers never wait on
// a notification channel. At most `concurrency` sends run at once; each is
// bounded by `timeout`.
type Dispatcher struct {
	notifier Notifier
	timeout  time.Duration
	slots    chan struct{}
	log      *logger.Logger

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

func NewDispatcher(notifier Notifier, concurrency int, timeout time.Duration, log *logger.Logger) *Dispatcher {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Dispatcher{
		notifier: notifier,
		timeout:  timeout,
		slots:    make(chan struct{}, concurrency),
		log:      log,
	}
}

// Dispatch queues event for delivery and returns immediately. Events
// dispatched after Shutdown are dropped with a warning.
func (d *Dispatcher) Dispatch(event model.BookingEvent) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		d.log.Warn("Dropping booking event after shutdown",
			"event_id", event.EventID,
			"booking_id", event.BookingID,
		)
		return
	}

	d.wg.Add(1)
	go d.send(event)
}

func (d *Dispatcher) send(event model.BookingEvent) {
	defer d.wg.Done()

	d.slots <- struct{}{}
	defer func() { <-d.slots }()

	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	if err := d.notifier.Notify(ctx, event); err != nil {
		d.log.Error("Failed to deliver booking event",
			"event_id", event.EventID,
			"event_type", EventType(event),
			"booking_id", event.BookingID,
			"error", err,
		)
	}
}

// Shutdown stops accepting events and waits for in-flight sends or ctx.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

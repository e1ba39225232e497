package events

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"tutorbook/pkg/kafka"
	"tutorbook/pkg/logger"
	"tutorbook/pkg/model"
)

func sampleEvent() model.BookingEvent {
	b := &model.Booking{
		ID:        "6f1f0c1e-3a8a-4a55-9d8c-0f5b6c1d2e3f",
		TutorID:   "tutor-1",
		StudentID: "student-1",
		Status:    model.StatusConfirmed,
		Version:   2,
	}
	return NewEvent(b, model.StatusRequested, model.Actor{ID: "tutor-1", Role: model.RoleTutor}, time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
}

func TestNewEvent(t *testing.T) {
	e := sampleEvent()
	if e.EventID == "" || e.FromState != model.StatusRequested || e.ToState != model.StatusConfirmed || e.Version != 2 {
		t.Errorf("unexpected event %+v", e)
	}
	if got := EventType(e); got != "booking.confirmed" {
		t.Errorf("expected booking.confirmed, got %s", got)
	}
}

func TestDispatcherDeliversAll(t *testing.T) {
	var (
		mu       sync.Mutex
		received []string
		inFlight atomic.Int32
		peak     atomic.Int32
	)
	notifier := NotifierFunc(func(ctx context.Context, e model.BookingEvent) error {
		n := inFlight.Add(1)
		defer inFlight.Add(-1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		mu.Lock()
		received = append(received, e.EventID)
		mu.Unlock()
		return nil
	})

	d := NewDispatcher(notifier, 2, time.Second, logger.Discard())
	for i := 0; i < 10; i++ {
		d.Dispatch(sampleEvent())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := d.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}

	if len(received) != 10 {
		t.Errorf("expected 10 deliveries, got %d", len(received))
	}
	if peak.Load() > 2 {
		t.Errorf("expected at most 2 concurrent sends, saw %d", peak.Load())
	}
}

func TestDispatcherSwallowsFailuresAndTimesOut(t *testing.T) {
	var sawDeadline atomic.Bool
	notifier := NotifierFunc(func(ctx context.Context, e model.BookingEvent) error {
		<-ctx.Done()
		sawDeadline.Store(errors.Is(ctx.Err(), context.DeadlineExceeded))
		return ctx.Err()
	})

	d := NewDispatcher(notifier, 1, 10*time.Millisecond, logger.Discard())
	d.Dispatch(sampleEvent())

	if err := d.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if !sawDeadline.Load() {
		t.Error("expected the send to be cut off by the per-send timeout")
	}

	// After shutdown events are dropped, not delivered.
	d.Dispatch(sampleEvent())
}

type fakePublisher struct {
	msgs []kafka.Message
	err  error
}

func (p *fakePublisher) Publish(ctx context.Context, msg kafka.Message) error {
	if p.err != nil {
		return p.err
	}
	p.msgs = append(p.msgs, msg)
	return nil
}

func TestKafkaNotifier(t *testing.T) {
	pub := &fakePublisher{}
	n := NewKafkaNotifier(pub)
	e := sampleEvent()

	if err := n.Notify(context.Background(), e); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if len(pub.msgs) != 1 {
		t.Fatalf("expected one message, got %d", len(pub.msgs))
	}
	msg := pub.msgs[0]
	if msg.Key != e.BookingID {
		t.Errorf("expected key %s, got %s", e.BookingID, msg.Key)
	}
	if msg.GetEventID() != e.EventID || msg.GetEventType() != "booking.confirmed" {
		t.Errorf("unexpected headers %v", msg.Headers)
	}

	decoded, err := Decode(msg)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if decoded.BookingID != e.BookingID || decoded.ToState != e.ToState || decoded.Version != e.Version {
		t.Errorf("decoded %+v, want %+v", decoded, e)
	}

	pub.err = errors.New("broker down")
	if err := n.Notify(context.Background(), e); !errors.Is(err, pub.err) {
		t.Errorf("expected publish error, got %v", err)
	}
}

func TestConsumerHandler(t *testing.T) {
	var got []model.BookingEvent
	sink := NotifierFunc(func(ctx context.Context, e model.BookingEvent) error {
		got = append(got, e)
		return nil
	})
	handler := ConsumerHandler(sink)

	pub := &fakePublisher{}
	_ = NewKafkaNotifier(pub).Notify(context.Background(), sampleEvent())

	if err := handler(context.Background(), pub.msgs[0]); err != nil {
		t.Fatalf("handler: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected the sink to receive one event, got %d", len(got))
	}

	err := handler(context.Background(), kafka.Message{Value: []byte("not json")})
	if kafka.ClassifyError(err) != kafka.ErrorTypePermanent {
		t.Errorf("expected a permanent error for a bad payload, got %v", err)
	}
	err = handler(context.Background(), kafka.Message{Value: []byte(`{"event_id":"x"}`)})
	if kafka.ClassifyError(err) != kafka.ErrorTypePermanent {
		t.Errorf("expected a permanent error for a missing booking id, got %v", err)
	}

	failing := ConsumerHandler(NotifierFunc(func(ctx context.Context, e model.BookingEvent) error {
		return errors.New("smtp down")
	}))
	if err := failing(context.Background(), pub.msgs[0]); kafka.ClassifyError(err) != kafka.ErrorTypeTransient {
		t.Errorf("expected a transient error for a sink failure, got %v", err)
	}
}

func TestLogNotifier(t *testing.T) {
	if err := NewLogNotifier(logger.Discard()).Notify(context.Background(), sampleEvent()); err != nil {
		t.Errorf("unexpected error %v", err)
	}
}

package observer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marlonbarreto-git/nimbus-checkout/internal/model"
	"github.com/marlonbarreto-git/nimbus-checkout/internal/stream"
)

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) callback(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) kinds(kind EventKind) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Event
	for _, e := range r.events {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

func paymentStreams() PaymentStreams {
	return PaymentStreams{
		States:  stream.NewState(model.ComponentState{}),
		Submits: stream.NewQueue[model.ComponentState](4),
		Errors:  stream.NewQueue[error](4),
	}
}

func TestAddPaymentObservers_RelaysEveryStream(t *testing.T) {
	repo := NewRepository()
	s := paymentStreams()
	rec := &recorder{}

	h := repo.AddPaymentObservers(context.Background(), s, rec.callback)
	defer h.Cancel()

	valid := model.ComponentState{IsInputValid: true, IsReady: true}
	s.States.Set(valid)
	s.Submits.Send(valid)
	s.Errors.Send(errors.New("boom"))

	require.Eventually(t, func() bool {
		return len(rec.kinds(EventSubmit)) == 1 && len(rec.kinds(EventError)) == 1
	}, time.Second, time.Millisecond)
	require.Eventually(t, func() bool {
		states := rec.kinds(EventStateChanged)
		return len(states) > 0 && states[len(states)-1].State.IsValid()
	}, time.Second, time.Millisecond)
	assert.EqualError(t, rec.kinds(EventError)[0].Err, "boom")
}

func TestAddPaymentObservers_EventsBeforeAttachAreKept(t *testing.T) {
	repo := NewRepository()
	s := paymentStreams()
	s.Errors.Send(errors.New("early"))

	rec := &recorder{}
	h := repo.AddPaymentObservers(context.Background(), s, rec.callback)
	defer h.Cancel()

	require.Eventually(t, func() bool { return len(rec.kinds(EventError)) == 1 }, time.Second, time.Millisecond)
}

func TestReattachCancelsPreviousHandle(t *testing.T) {
	repo := NewRepository()
	s := paymentStreams()
	first, second := &recorder{}, &recorder{}

	repo.AddPaymentObservers(context.Background(), s, first.callback)
	h := repo.AddPaymentObservers(context.Background(), s, second.callback)
	defer h.Cancel()

	s.Errors.Send(errors.New("after reattach"))

	require.Eventually(t, func() bool { return len(second.kinds(EventError)) == 1 }, time.Second, time.Millisecond)
	time.Sleep(10 * time.Millisecond)
	assert.Empty(t, first.kinds(EventError))
}

func TestRemoveObservers(t *testing.T) {
	repo := NewRepository()
	s := ActionStreams{
		Details: stream.NewQueue[model.ActionComponentData](4),
		Errors:  stream.NewQueue[error](4),
	}
	rec := &recorder{}
	repo.AddActionObservers(context.Background(), s, rec.callback)

	s.Details.Send(model.ActionComponentData{PaymentData: "pd"})
	require.Eventually(t, func() bool { return len(rec.kinds(EventActionDetails)) == 1 }, time.Second, time.Millisecond)

	repo.RemoveObservers()
	repo.RemoveObservers()
	s.Details.Send(model.ActionComponentData{PaymentData: "later"})
	time.Sleep(10 * time.Millisecond)

	assert.Len(t, rec.kinds(EventActionDetails), 1)
	assert.Equal(t, 1, s.Details.Len(), "undelivered events stay queued for the next observer")
}

func TestHandleCancelIsIdempotent(t *testing.T) {
	repo := NewRepository()
	h := repo.AddActionObservers(context.Background(), ActionStreams{Errors: stream.NewQueue[error](1)}, func(Event) {})

	assert.NotPanics(t, func() {
		h.Cancel()
		h.Cancel()
	})
	var nilHandle *Handle
	assert.NotPanics(t, nilHandle.Cancel)
}

func TestDrain_RefusedEventGoesBackToTheHead(t *testing.T) {
	q := stream.NewQueue[string](4)
	q.Send("first")
	q.Send("second")

	var seen []string
	drain(context.Background(), q, func(v string) bool {
		seen = append(seen, v)
		return false
	})

	assert.Equal(t, []string{"first"}, seen)
	require.Equal(t, 2, q.Len())
	v, _ := q.TryReceive()
	assert.Equal(t, "first", v)
}

func TestRelayErrors_ClosedHandleKeepsTheError(t *testing.T) {
	q := stream.NewQueue[error](1)
	q.Send(errors.New("late"))
	h := &Handle{cancel: func() {}, closed: true}
	rec := &recorder{}

	relayErrors(context.Background(), h, q, rec.callback)

	assert.Empty(t, rec.kinds(EventError))
	assert.Equal(t, 1, q.Len())

	next := NewRepository().AddPaymentObservers(context.Background(), PaymentStreams{Errors: q}, rec.callback)
	defer next.Cancel()
	require.Eventually(t, func() bool { return len(rec.kinds(EventError)) == 1 }, time.Second, time.Millisecond)
	assert.EqualError(t, rec.kinds(EventError)[0].Err, "late")
}

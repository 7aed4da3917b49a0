// Package observer relays a delegate's streams to a single host callback. Each
// registration returns a Handle; registering again cancels the previous Handle
// first, so a host that re-attaches never receives events twice.
package observer

import (
	"context"
	"sync"

	"github.com/marlonbarreto-git/nimbus-checkout/internal/model"
	"github.com/marlonbarreto-git/nimbus-checkout/internal/stream"
)

// EventKind tags an Event.
type EventKind string

const (
	EventStateChanged  EventKind = "state_changed"
	EventSubmit        EventKind = "submit"
	EventError         EventKind = "error"
	EventActionDetails EventKind = "action_details"
)

// Event is one relayed emission. Only the field matching Kind is set.
type Event struct {
	Kind    EventKind
	State   model.ComponentState
	Details model.ActionComponentData
	Err     error
}

// Callback receives relayed events one at a time.
type Callback func(Event)

// PaymentStreams are the streams of a payment component.
type PaymentStreams struct {
	States  *stream.State[model.ComponentState]
	Submits *stream.Queue[model.ComponentState]
	Errors  *stream.Queue[error]
}

// ActionStreams are the streams of an action delegate.
type ActionStreams struct {
	Details *stream.Queue[model.ActionComponentData]
	Errors  *stream.Queue[error]
}

// Handle owns one registration.
type Handle struct {
	cancel context.CancelFunc
	wg     sync.WaitGroup

	callMu sync.Mutex
	closed bool
}

// Cancel stops relaying and waits for the relays to exit. After it returns the
// callback is not invoked again. It must not be called from inside the callback.
func (h *Handle) Cancel() {
	if h == nil {
		return
	}
	h.cancel()
	h.callMu.Lock()
	h.closed = true
	h.callMu.Unlock()
	h.wg.Wait()
}

// deliver invokes cb unless h is closed and reports whether it did.
func (h *Handle) deliver(cb Callback, e Event) bool {
	h.callMu.Lock()
	defer h.callMu.Unlock()
	if h.closed {
		return false
	}
	cb(e)
	return true
}

func (h *Handle) relay(fn func()) {
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		fn()
	}()
}

// Repository keeps the current registration of one delegate.
type Repository struct {
	mu      sync.Mutex
	current *Handle
}

func NewRepository() *Repository {
	return &Repository{}
}

func (r *Repository) replace(ctx context.Context) (*Handle, context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.current.Cancel()
	ctx, cancel := context.WithCancel(ctx)
	h := &Handle{cancel: cancel}
	r.current = h
	return h, ctx
}

// AddPaymentObservers relays component state changes, submits and errors to cb
// until ctx is done or the returned Handle is cancelled.
func (r *Repository) AddPaymentObservers(ctx context.Context, s PaymentStreams, cb Callback) *Handle {
	h, ctx := r.replace(ctx)
	if s.States != nil {
		states := s.States.Subscribe(ctx)
		h.relay(func() {
			for state := range states {
				h.deliver(cb, Event{Kind: EventStateChanged, State: state})
			}
		})
	}
	if s.Submits != nil {
		h.relay(func() {
			drain(ctx, s.Submits, func(state model.ComponentState) bool {
				return h.deliver(cb, Event{Kind: EventSubmit, State: state})
			})
		})
	}
	if s.Errors != nil {
		h.relay(func() { relayErrors(ctx, h, s.Errors, cb) })
	}
	return h
}

// AddActionObservers relays action details and errors to cb until ctx is done or
// the returned Handle is cancelled.
func (r *Repository) AddActionObservers(ctx context.Context, s ActionStreams, cb Callback) *Handle {
	h, ctx := r.replace(ctx)
	if s.Details != nil {
		h.relay(func() {
			drain(ctx, s.Details, func(d model.ActionComponentData) bool {
				return h.deliver(cb, Event{Kind: EventActionDetails, Details: d})
			})
		})
	}
	if s.Errors != nil {
		h.relay(func() { relayErrors(ctx, h, s.Errors, cb) })
	}
	return h
}

// RemoveObservers cancels the current registration, if any.
func (r *Repository) RemoveObservers() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.current.Cancel()
	r.current = nil
}

func relayErrors(ctx context.Context, h *Handle, q *stream.Queue[error], cb Callback) {
	drain(ctx, q, func(err error) bool {
		return h.deliver(cb, Event{Kind: EventError, Err: err})
	})
}

// drain hands queued events to deliver until ctx is done. An event deliver
// refuses goes back to the head of q for the next registration.
func drain[T any](ctx context.Context, q *stream.Queue[T], deliver func(T) bool) {
	for {
		v, ok := q.Receive(ctx)
		if !ok {
			return
		}
		if !deliver(v) {
			q.Requeue(v)
			return
		}
	}
}

package action

import (
	"context"
	"log/slog"
	"net/url"
	"sync"

	"github.com/marlonbarreto-git/nimbus-checkout/internal/apperr"
	"github.com/marlonbarreto-git/nimbus-checkout/internal/model"
	"github.com/marlonbarreto-git/nimbus-checkout/internal/redirect"
	"github.com/marlonbarreto-git/nimbus-checkout/internal/savedstate"
	"github.com/marlonbarreto-git/nimbus-checkout/internal/scope"
)

// Dependencies are the collaborators an action delegate may need.
type Dependencies struct {
	Handle    *savedstate.Handle
	Poller    StatusPoller
	Launcher  redirect.Launcher
	Exchanger NativeRedirectExchanger
}

// Factory builds the delegate for one action type.
type Factory func(deps Dependencies) Delegate

// Registry maps action types to their delegate factories. It is built once and not
// modified afterwards.
type Registry struct {
	factories map[model.ActionType]Factory
}

// NewRegistry returns a Registry over a copy of factories.
func NewRegistry(factories map[model.ActionType]Factory) *Registry {
	r := &Registry{factories: make(map[model.ActionType]Factory, len(factories))}
	for t, f := range factories {
		r.factories[t] = f
	}
	return r
}

// DefaultRegistry handles redirect, native redirect, await and QR code actions.
func DefaultRegistry() *Registry {
	redirectFactory := func(deps Dependencies) Delegate {
		return NewRedirectDelegate(deps.Handle, deps.Launcher, deps.Exchanger)
	}
	return NewRegistry(map[model.ActionType]Factory{
		model.ActionRedirect:       redirectFactory,
		model.ActionNativeRedirect: redirectFactory,
		model.ActionAwait: func(deps Dependencies) Delegate {
			return NewAwaitDelegate(deps.Handle, deps.Poller, deps.Launcher)
		},
		model.ActionQRCode: func(deps Dependencies) Delegate {
			return NewQRCodeDelegate(deps.Handle, deps.Poller, deps.Launcher)
		},
	})
}

// Lookup returns the factory for t. An unknown type is a configuration error.
func (r *Registry) Lookup(t model.ActionType) (Factory, error) {
	f, ok := r.factories[t]
	if !ok {
		return nil, apperr.Wrap(apperr.ErrConfiguration, "dispatch action", "no handler registered for action type "+string(t), apperr.ErrUnsupportedAction)
	}
	return f, nil
}

// Dispatcher routes each action to a delegate built from the registry and relays
// that delegate's outcome. Only one child delegate is alive at a time.
type Dispatcher struct {
	*core
	registry *Registry
	deps     Dependencies

	childMu    sync.Mutex
	child      Delegate
	childScope *scope.Scope
}

func NewDispatcher(registry *Registry, deps Dependencies) *Dispatcher {
	return &Dispatcher{
		core:     newCore("generic", deps.Handle),
		registry: registry,
		deps:     deps,
	}
}

// Initialize binds the dispatcher to s and restores the child for a saved action.
func (d *Dispatcher) Initialize(s *scope.Scope) {
	if !d.bind(s) {
		return
	}
	a, ok := d.savedAction()
	if !ok {
		return
	}
	f, err := d.registry.Lookup(a.Type)
	if err != nil {
		d.fail(err)
		return
	}
	slog.Debug("action_restored", "delegate", d.name, "type", a.Type)
	d.attach(s, f)
}

// HandleAction builds the delegate for a and hands the action to it.
func (d *Dispatcher) HandleAction(a model.Action) {
	s, ok := d.active("dispatch action")
	if !ok {
		return
	}
	f, err := d.registry.Lookup(a.Type)
	if err != nil {
		d.errs.Send(err)
		return
	}
	child := d.attach(s, f)
	child.HandleAction(a)
}

// attach replaces the current child with one built by f and relays its queues.
func (d *Dispatcher) attach(s *scope.Scope, f Factory) Delegate {
	d.childMu.Lock()
	defer d.childMu.Unlock()
	if d.child != nil {
		d.child.OnCleared()
	}

	child := f(d.deps)
	childScope := scope.New(s.Context())
	child.Initialize(childScope)
	d.child, d.childScope = child, childScope

	childScope.Launch(func(ctx context.Context) {
		for {
			v, ok := child.Details().Receive(ctx)
			if !ok {
				return
			}
			d.details.Send(v)
		}
	})
	childScope.Launch(func(ctx context.Context) {
		for {
			err, ok := child.Errors().Receive(ctx)
			if !ok {
				return
			}
			d.errs.Send(err)
		}
	})
	return child
}

func (d *Dispatcher) current() Delegate {
	d.childMu.Lock()
	defer d.childMu.Unlock()
	return d.child
}

// HandleIntent forwards a redirect return to the active delegate.
func (d *Dispatcher) HandleIntent(u *url.URL) {
	if _, ok := d.active("dispatch intent"); !ok {
		return
	}
	child := d.current()
	if child == nil {
		d.errs.Send(apperr.New(apperr.ErrConfiguration, "dispatch intent", "handleIntent called before handleAction"))
		return
	}
	h, ok := child.(IntentHandler)
	if !ok {
		d.errs.Send(apperr.New(apperr.ErrConfiguration, "dispatch intent", "active action does not handle intents"))
		return
	}
	h.HandleIntent(u)
}

// RefreshStatus forwards to the active delegate when it polls.
func (d *Dispatcher) RefreshStatus() {
	if r, ok := d.current().(StatusRefresher); ok {
		r.RefreshStatus()
	}
}

// OnCleared clears the active delegate and cancels the scope. Safe to call repeatedly.
func (d *Dispatcher) OnCleared() {
	if !d.clear() {
		return
	}
	if child := d.current(); child != nil {
		child.OnCleared()
	}
}

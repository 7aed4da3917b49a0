package component

import (
	"context"
	"log/slog"

	"github.com/marlonbarreto-git/nimbus-checkout/internal/config"
	"github.com/marlonbarreto-git/nimbus-checkout/internal/model"
	"github.com/marlonbarreto-git/nimbus-checkout/internal/scope"
	"github.com/marlonbarreto-git/nimbus-checkout/internal/stream"
)

// UIState is the interaction state of a component.
type UIState string

const (
	UIStateIdle    UIState = "idle"
	UIStateBlocked UIState = "blocked"
)

// UIEvent asks the host to react to a submission attempt.
type UIEvent string

// UIEventInvalid asks the host to highlight the invalid fields.
const UIEventInvalid UIEvent = "highlight_validation_errors"

// SubmitHandler turns component states into Submit events, either automatically
// once the state is valid or when the shopper confirms.
type SubmitHandler struct {
	confirmationRequired bool
	submits              *stream.Queue[model.ComponentState]
	uiState              *stream.State[UIState]
	uiEvents             *stream.Queue[UIEvent]
}

func NewSubmitHandler(confirmationRequired bool) *SubmitHandler {
	return &SubmitHandler{
		confirmationRequired: confirmationRequired,
		submits:              stream.NewQueue[model.ComponentState](config.QueueBuffer),
		uiState:              stream.NewState(UIStateIdle),
		uiEvents:             stream.NewQueue[UIEvent](config.QueueBuffer),
	}
}

// Initialize starts auto-submission when no confirmation is required. A state is
// submitted each time the component becomes valid.
func (h *SubmitHandler) Initialize(s *scope.Scope, states *stream.State[model.ComponentState]) {
	if h.confirmationRequired {
		return
	}
	s.Launch(func(ctx context.Context) {
		wasValid := false
		for state := range states.Subscribe(ctx) {
			valid := state.IsValid()
			if valid && !wasValid && h.uiState.Value() != UIStateBlocked {
				slog.Debug("component_auto_submitted")
				h.submits.Send(state)
			}
			wasValid = valid
		}
	})
}

// OnSubmit submits state, or asks the host to highlight errors when it is invalid.
func (h *SubmitHandler) OnSubmit(state model.ComponentState) {
	if h.uiState.Value() == UIStateBlocked {
		slog.Debug("component_submit_ignored", "reason", "interaction_blocked")
		return
	}
	if !state.IsValid() {
		h.uiEvents.Send(UIEventInvalid)
		return
	}
	h.submits.Send(state)
}

// SetInteractionBlocked blocks or unblocks submissions while a payment is in flight.
func (h *SubmitHandler) SetInteractionBlocked(blocked bool) {
	if blocked {
		h.uiState.Set(UIStateBlocked)
		return
	}
	h.uiState.Set(UIStateIdle)
}

func (h *SubmitHandler) Submits() *stream.Queue[model.ComponentState] { return h.submits }

func (h *SubmitHandler) UIState() *stream.State[UIState] { return h.uiState }

func (h *SubmitHandler) UIEvents() *stream.Queue[UIEvent] { return h.uiEvents }

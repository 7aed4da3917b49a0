package orchestrator

import (
	"sync"
	"time"

	"github.com/marlonbarreto-git/nimbus-checkout/internal/model"
	"github.com/marlonbarreto-git/nimbus-checkout/internal/session"
)

// Status is the lifecycle state of an Attempt.
type Status string

const (
	StatusInProgress Status = "in_progress"
	StatusFinished   Status = "finished"
	StatusTakenOver  Status = "taken_over"
	StatusFailed     Status = "failed"
)

// Step is one session call made for an attempt.
type Step struct {
	Call       string           `json:"call"`
	Kind       session.Kind     `json:"kind"`
	ResultCode model.ResultCode `json:"result_code,omitempty"`
	ActionType model.ActionType `json:"action_type,omitempty"`
	Error      string           `json:"error,omitempty"`
	Timestamp  time.Time        `json:"timestamp"`
}

// Attempt is the history of one submitted payment.
type Attempt struct {
	ID                string           `json:"id"`
	PaymentMethodType string           `json:"payment_method_type"`
	Status            Status           `json:"status"`
	ResultCode        model.ResultCode `json:"result_code,omitempty"`
	Steps             []Step           `json:"steps"`
	StartedAt         time.Time        `json:"started_at"`
}

// AttemptStore provides thread-safe storage for payment attempts.
type AttemptStore struct {
	mu       sync.RWMutex
	attempts map[string]Attempt
}

// NewAttemptStore creates a new empty attempt store.
func NewAttemptStore() *AttemptStore {
	return &AttemptStore{
		attempts: make(map[string]Attempt),
	}
}

// Save stores an attempt, replacing any attempt with the same ID.
func (s *AttemptStore) Save(a Attempt) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts[a.ID] = a
}

// Get retrieves an attempt by ID.
func (s *AttemptStore) Get(id string) (Attempt, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.attempts[id]
	return a, ok
}

// Record appends step to the attempt with id and applies status when non-empty.
// It returns false if the attempt is unknown.
func (s *AttemptStore) Record(id string, step Step, status Status) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.attempts[id]
	if !ok {
		return false
	}
	a.Steps = append(append([]Step(nil), a.Steps...), step)
	if step.ResultCode != "" {
		a.ResultCode = step.ResultCode
	}
	if status != "" {
		a.Status = status
	}
	s.attempts[id] = a
	return true
}

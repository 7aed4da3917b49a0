// Package savedstate persists the small amount of checkout state that must survive
// process recreation: the pending action, payment data tokens and the session model.
package savedstate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// Keys used by the checkout packages inside a Handle.
const (
	KeyAction             = "action"
	KeyIsPolling          = "is_polling"
	KeyPaymentData        = "payment_data"
	KeyNativeRedirectData = "native_redirect_data"
	KeySessionModel       = "session_model"
	KeyFlowTakenOver      = "is_flow_taken_over"
)

// ErrClosed is returned by stores used after Close.
var ErrClosed = errors.New("saved state store closed")

// Store is a durable key-value store that survives process recreation.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// Handle scopes a Store to one payment attempt.
type Handle struct {
	store  Store
	prefix string
}

// NewHandle returns a Handle whose keys are namespaced by attemptID.
func NewHandle(store Store, attemptID string) *Handle {
	return &Handle{store: store, prefix: "checkout:" + attemptID + ":"}
}

func (h *Handle) key(k string) string {
	return h.prefix + k
}

// Remove deletes key from the handle's namespace.
func (h *Handle) Remove(ctx context.Context, key string) error {
	return h.store.Delete(ctx, h.key(key))
}

// Load decodes the JSON value stored under key. The boolean is false if nothing is stored.
func Load[T any](ctx context.Context, h *Handle, key string) (T, bool, error) {
	var v T
	raw, ok, err := h.store.Get(ctx, h.key(key))
	if err != nil || !ok {
		return v, false, err
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return v, false, fmt.Errorf("decode %s: %w", key, err)
	}
	return v, true, nil
}

// Save JSON-encodes v under key.
func Save[T any](ctx context.Context, h *Handle, key string, v T) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return h.store.Put(ctx, h.key(key), raw)
}

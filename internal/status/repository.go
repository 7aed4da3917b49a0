// Package status polls the payment status endpoint on a fixed cadence until a
// terminal result, the polling ceiling, or cancellation.
package status

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/marlonbarreto-git/nimbus-checkout/internal/apperr"
	"github.com/marlonbarreto-git/nimbus-checkout/internal/config"
	"github.com/marlonbarreto-git/nimbus-checkout/internal/model"
)

// Fetcher performs one status call.
type Fetcher interface {
	Status(ctx context.Context, paymentData string) (model.StatusResponse, error)
}

// Result is one emission of a poll: either a response or an error.
type Result struct {
	Response model.StatusResponse
	Err      error
}

// Option customizes a Repository.
type Option func(*Repository)

// WithInterval overrides the polling cadence.
func WithInterval(d time.Duration) Option {
	return func(r *Repository) { r.interval = d }
}

// WithRefreshLimit overrides the minimum spacing of RefreshStatus calls.
func WithRefreshLimit(every time.Duration) Option {
	return func(r *Repository) { r.limiter = rate.NewLimiter(rate.Every(every), 1) }
}

// Repository runs status polls against a Fetcher.
type Repository struct {
	fetcher  Fetcher
	interval time.Duration
	limiter  *rate.Limiter

	mu        sync.Mutex
	refreshes map[string]chan struct{}
}

// NewRepository returns a Repository polling every config.StatusPollingInterval.
func NewRepository(fetcher Fetcher, opts ...Option) *Repository {
	r := &Repository{
		fetcher:   fetcher,
		interval:  config.StatusPollingInterval,
		limiter:   rate.NewLimiter(rate.Every(config.RefreshStatusMinInterval), 1),
		refreshes: make(map[string]chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Interval returns the polling cadence.
func (r *Repository) Interval() time.Duration {
	return r.interval
}

// Poll fetches the status of paymentData immediately and then on every interval.
// The returned channel is closed after a final result, after the timeout error once
// maxDuration has elapsed, or when ctx is done; nothing is sent after cancellation.
// Failed calls are emitted as errors and polling continues.
func (r *Repository) Poll(ctx context.Context, paymentData string, maxDuration time.Duration) <-chan Result {
	out := make(chan Result)
	refresh := r.register(paymentData)

	go func() {
		defer close(out)
		defer r.unregister(paymentData, refresh)

		deadline := time.NewTimer(maxDuration)
		defer deadline.Stop()
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()

		emit := func(res Result) bool {
			if ctx.Err() != nil {
				return false
			}
			select {
			case out <- res:
				return true
			case <-ctx.Done():
				return false
			}
		}

		for {
			resp, err := r.fetcher.Status(ctx, paymentData)
			if ctx.Err() != nil {
				return
			}
			if err != nil {
				slog.Warn("status_poll_failed", "error", err, "kind", apperr.Kind(err))
				if !emit(Result{Err: err}) {
					return
				}
			} else {
				if !emit(Result{Response: resp}) {
					return
				}
				if resp.IsFinal() {
					return
				}
			}

			select {
			case <-ctx.Done():
				return
			case <-deadline.C:
				emit(Result{Err: apperr.New(apperr.ErrTimeout, "status poll", "max polling time has been exceeded")})
				return
			case <-ticker.C:
			case <-refresh:
			}
		}
	}()
	return out
}

// RefreshStatus asks an active poll for paymentData to fetch immediately. Calls
// closer together than the refresh limit are dropped.
func (r *Repository) RefreshStatus(paymentData string) bool {
	if !r.limiter.Allow() {
		return false
	}
	r.mu.Lock()
	ch, ok := r.refreshes[paymentData]
	r.mu.Unlock()
	if !ok {
		return false
	}
	select {
	case ch <- struct{}{}:
	default:
	}
	return true
}

func (r *Repository) register(paymentData string) chan struct{} {
	ch := make(chan struct{}, 1)
	r.mu.Lock()
	r.refreshes[paymentData] = ch
	r.mu.Unlock()
	return ch
}

func (r *Repository) unregister(paymentData string, ch chan struct{}) {
	r.mu.Lock()
	if r.refreshes[paymentData] == ch {
		delete(r.refreshes, paymentData)
	}
	r.mu.Unlock()
}

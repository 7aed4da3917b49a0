package status

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marlonbarreto-git/nimbus-checkout/internal/apperr"
	"github.com/marlonbarreto-git/nimbus-checkout/internal/model"
)

// sequenceFetcher returns scripted results on successive calls, repeating the last one.
type sequenceFetcher struct {
	mu      sync.Mutex
	results []Result
	calls   int
}

func newSequenceFetcher(results ...Result) *sequenceFetcher {
	return &sequenceFetcher{results: results}
}

func (f *sequenceFetcher) Status(ctx context.Context, paymentData string) (model.StatusResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.calls
	if i >= len(f.results) {
		i = len(f.results) - 1
	}
	f.calls++
	return f.results[i].Response, f.results[i].Err
}

func (f *sequenceFetcher) CallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func pending() Result {
	return Result{Response: model.StatusResponse{ResultCode: model.ResultPending}}
}

func collect(t *testing.T, ch <-chan Result) []Result {
	t.Helper()
	var out []Result
	timeout := time.After(5 * time.Second)
	for {
		select {
		case r, ok := <-ch:
			if !ok {
				return out
			}
			out = append(out, r)
		case <-timeout:
			t.Fatal("poll did not complete")
			return out
		}
	}
}

func TestPoll_StopsOnFinalResult(t *testing.T) {
	f := newSequenceFetcher(
		pending(),
		pending(),
		Result{Response: model.StatusResponse{ResultCode: model.ResultAuthorised, Payload: "p"}},
		pending(),
	)
	r := NewRepository(f, WithInterval(5*time.Millisecond))

	results := collect(t, r.Poll(context.Background(), "pd", time.Minute))

	require.Len(t, results, 3)
	last := results[2]
	assert.NoError(t, last.Err)
	assert.Equal(t, "p", last.Response.Payload)
	assert.Equal(t, 3, f.CallCount(), "no call after the final result")
}

func TestPoll_TransientFailureKeepsPolling(t *testing.T) {
	netErr := apperr.Wrap(apperr.ErrTransport, "status", "failed", errors.New("reset"))
	f := newSequenceFetcher(
		Result{Err: netErr},
		Result{Response: model.StatusResponse{ResultCode: model.ResultRefused, Payload: "p"}},
	)
	r := NewRepository(f, WithInterval(5*time.Millisecond))

	results := collect(t, r.Poll(context.Background(), "pd", time.Minute))

	require.Len(t, results, 2)
	assert.ErrorIs(t, results[0].Err, apperr.ErrTransport)
	assert.Equal(t, model.ResultRefused, results[1].Response.ResultCode)
}

func TestPoll_TimeoutIsTerminalError(t *testing.T) {
	f := newSequenceFetcher(pending())
	r := NewRepository(f, WithInterval(10*time.Millisecond))

	results := collect(t, r.Poll(context.Background(), "pd", 35*time.Millisecond))

	require.NotEmpty(t, results)
	last := results[len(results)-1]
	assert.ErrorIs(t, last.Err, apperr.ErrTimeout)
	for _, res := range results[:len(results)-1] {
		assert.NoError(t, res.Err)
	}
}

func TestPoll_CancelClosesWithoutStaleResults(t *testing.T) {
	f := newSequenceFetcher(pending())
	r := NewRepository(f, WithInterval(5*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())

	ch := r.Poll(ctx, "pd", time.Minute)
	<-ch
	cancel()

	// Drain: at most one in-flight result may already have been handed over.
	got := 0
	for range ch {
		got++
	}
	assert.LessOrEqual(t, got, 1)
}

func TestRefreshStatus_TriggersImmediateFetch(t *testing.T) {
	f := newSequenceFetcher(pending())
	r := NewRepository(f, WithInterval(time.Hour), WithRefreshLimit(time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := r.Poll(ctx, "pd", time.Hour)
	<-ch
	require.Equal(t, 1, f.CallCount())

	require.Eventually(t, func() bool { return r.RefreshStatus("pd") }, time.Second, 5*time.Millisecond)
	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("refresh did not trigger a fetch")
	}
	assert.Equal(t, 2, f.CallCount())
}

func TestRefreshStatus_UnknownPaymentData(t *testing.T) {
	r := NewRepository(newSequenceFetcher(pending()))
	assert.False(t, r.RefreshStatus("nothing-polling"))
}

func TestRefreshStatus_Throttled(t *testing.T) {
	f := newSequenceFetcher(pending())
	r := NewRepository(f, WithInterval(time.Hour), WithRefreshLimit(time.Hour))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := r.Poll(ctx, "pd", time.Hour)
	<-ch

	assert.True(t, r.RefreshStatus("pd"))
	assert.False(t, r.RefreshStatus("pd"))
}

package processor

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

// OutcomeDistribution defines the probability of each outcome. Whatever the rates leave
// uncovered is an error.
type OutcomeDistribution struct {
	AuthoriseRate float64
	RefuseRate    float64
	RedirectRate  float64
	AwaitRate     float64
	QRCodeRate    float64
}

// MethodOverride allows per-method outcome overrides.
type MethodOverride struct {
	Method       string
	Distribution OutcomeDistribution
}

// MockConfig holds configuration for creating a mock processor.
type MockConfig struct {
	ProcessorName   string
	Methods         []string
	DefaultOutcomes OutcomeDistribution
	MethodOverrides []MethodOverride
	// SettleOutcomes drives Settle. Action rates are ignored. A zero value always authorises.
	SettleOutcomes OutcomeDistribution
	MinLatency     time.Duration
	MaxLatency     time.Duration
	// Seed makes the outcome sequence reproducible when non-zero.
	Seed int64
}

// MockProcessor simulates a payment provider with configurable behavior.
type MockProcessor struct {
	config   MockConfig
	rng      *rand.Rand
	mu       sync.Mutex
	degraded bool
}

// NewMockProcessor creates a new mock processor from the given config.
func NewMockProcessor(cfg MockConfig) *MockProcessor {
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	if cfg.SettleOutcomes == (OutcomeDistribution{}) {
		cfg.SettleOutcomes = OutcomeDistribution{AuthoriseRate: 1.0}
	}
	return &MockProcessor{
		config: cfg,
		rng:    rand.New(rand.NewSource(seed)),
	}
}

func (p *MockProcessor) Name() string {
	return p.config.ProcessorName
}

func (p *MockProcessor) SupportedMethods() []string {
	return p.config.Methods
}

// SetDegraded toggles degraded mode (80% error rate) for simulation.
func (p *MockProcessor) SetDegraded(degraded bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.degraded = degraded
}

// IsDegraded returns the current degraded state.
func (p *MockProcessor) IsDegraded() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.degraded
}

func (p *MockProcessor) Process(ctx context.Context, req Request) Response {
	return p.respond(ctx, p.distribution(req.PaymentMethod))
}

func (p *MockProcessor) Settle(ctx context.Context, req Request) Response {
	final := p.config.SettleOutcomes
	final.RedirectRate, final.AwaitRate, final.QRCodeRate = 0, 0, 0
	return p.respond(ctx, final)
}

func (p *MockProcessor) respond(ctx context.Context, dist OutcomeDistribution) Response {
	start := time.Now()

	latency := p.simulateLatency()
	select {
	case <-time.After(latency):
	case <-ctx.Done():
		return Response{
			ProcessorName: p.config.ProcessorName,
			Outcome:       OutcomeError,
			Message:       "context cancelled",
			Timestamp:     time.Now(),
			Latency:       time.Since(start),
		}
	}

	outcome := p.determineOutcome(dist)
	return Response{
		ProcessorName: p.config.ProcessorName,
		Outcome:       outcome,
		Message:       responseMessage(outcome),
		Timestamp:     time.Now(),
		Latency:       time.Since(start),
	}
}

func (p *MockProcessor) distribution(method string) OutcomeDistribution {
	for _, override := range p.config.MethodOverrides {
		if override.Method == method {
			return override.Distribution
		}
	}
	return p.config.DefaultOutcomes
}

func (p *MockProcessor) determineOutcome(dist OutcomeDistribution) Outcome {
	p.mu.Lock()
	roll := p.rng.Float64()
	degraded := p.degraded
	p.mu.Unlock()

	if degraded {
		// In degraded mode: 80% provider error, 20% authorised
		if roll < 0.80 {
			return OutcomeError
		}
		return OutcomeAuthorised
	}

	// Roll against cumulative distribution
	steps := []struct {
		rate    float64
		outcome Outcome
	}{
		{dist.AuthoriseRate, OutcomeAuthorised},
		{dist.RefuseRate, OutcomeRefused},
		{dist.RedirectRate, OutcomeRedirect},
		{dist.AwaitRate, OutcomeAwait},
		{dist.QRCodeRate, OutcomeQRCode},
	}
	for _, s := range steps {
		if roll < s.rate {
			return s.outcome
		}
		roll -= s.rate
	}
	return OutcomeError
}

func (p *MockProcessor) simulateLatency() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	min := p.config.MinLatency
	max := p.config.MaxLatency
	if max <= min {
		return min
	}
	return min + time.Duration(p.rng.Int63n(int64(max-min)))
}

func responseMessage(outcome Outcome) string {
	switch outcome {
	case OutcomeAuthorised:
		return "payment authorised"
	case OutcomeRefused:
		return "payment refused"
	case OutcomeRedirect:
		return "shopper redirect required"
	case OutcomeAwait:
		return "awaiting shopper confirmation"
	case OutcomeQRCode:
		return "present qr code to shopper"
	case OutcomeError:
		return "internal provider error"
	default:
		return "unknown response"
	}
}

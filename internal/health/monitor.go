package health

import (
	"sort"
	"sync"
	"time"

	"github.com/marlonbarreto-git/nimbus-checkout/internal/config"
	"github.com/marlonbarreto-git/nimbus-checkout/internal/processor"
)

// Status is the routing state of a sandbox provider.
type Status string

const (
	StatusHealthy  Status = "healthy"
	StatusDegraded Status = "degraded"
	StatusOpen     Status = "circuit_open"
)

// ProviderHealth summarizes the recent responses of one provider.
type ProviderHealth struct {
	ProcessorName string    `json:"processor"`
	HealthScore   float64   `json:"healthScore"`
	Status        Status    `json:"status"`
	TotalRecent   int       `json:"totalRecent"`
	ErrorCount    int       `json:"errorCount"`
	LastUpdated   time.Time `json:"lastUpdated"`
}

type sample struct {
	ok        bool
	timestamp time.Time
}

// Monitor scores providers over a sliding window of their responses. A refusal is
// a healthy response; only provider errors lower the score.
type Monitor struct {
	mu             sync.RWMutex
	windows        map[string][]sample
	windowSize     int
	windowDuration time.Duration
	now            func() time.Time
}

// NewMonitor creates a Monitor with the configured window.
func NewMonitor() *Monitor {
	return NewMonitorWithWindow(config.HealthWindowSize, config.HealthWindowDuration)
}

// NewMonitorWithWindow creates a Monitor keeping at most size responses no older
// than d.
func NewMonitorWithWindow(size int, d time.Duration) *Monitor {
	return &Monitor{
		windows:        make(map[string][]sample),
		windowSize:     size,
		windowDuration: d,
		now:            time.Now,
	}
}

// Record adds resp to its provider's window.
func (m *Monitor) Record(resp processor.Response) {
	m.mu.Lock()
	defer m.mu.Unlock()

	name := resp.ProcessorName
	m.windows[name] = m.prune(append(m.windows[name], sample{
		ok:        resp.Outcome != processor.OutcomeError,
		timestamp: m.now(),
	}))
}

// Health returns the current health of provider name. Unknown providers are healthy.
func (m *Monitor) Health(name string) ProviderHealth {
	m.mu.RLock()
	window := m.prune(m.windows[name])
	m.mu.RUnlock()

	h := ProviderHealth{ProcessorName: name, HealthScore: 1, Status: StatusHealthy, LastUpdated: m.now()}
	if len(window) == 0 {
		return h
	}
	for _, s := range window {
		if !s.ok {
			h.ErrorCount++
		}
	}
	h.TotalRecent = len(window)
	h.HealthScore = float64(h.TotalRecent-h.ErrorCount) / float64(h.TotalRecent)

	switch {
	case h.HealthScore < config.CircuitBreakerThreshold:
		h.Status = StatusOpen
	case h.HealthScore < config.DegradedThreshold:
		h.Status = StatusDegraded
	}
	return h
}

// All returns the health of every provider that has responded, sorted by name.
func (m *Monitor) All() []ProviderHealth {
	m.mu.RLock()
	names := make([]string, 0, len(m.windows))
	for name := range m.windows {
		names = append(names, name)
	}
	m.mu.RUnlock()

	sort.Strings(names)
	out := make([]ProviderHealth, 0, len(names))
	for _, name := range names {
		out = append(out, m.Health(name))
	}
	return out
}

// IsCircuitOpen reports whether provider name should be skipped.
func (m *Monitor) IsCircuitOpen(name string) bool {
	return m.Health(name).Status == StatusOpen
}

// Rank returns the providers of procs supporting method, healthiest first, leaving
// out open circuits. Ties keep the order of procs.
func (m *Monitor) Rank(procs []processor.Processor, method string) []processor.Processor {
	type scored struct {
		p     processor.Processor
		score float64
	}
	var eligible []scored
	for _, p := range procs {
		if !processor.SupportsMethod(p, method) {
			continue
		}
		h := m.Health(p.Name())
		if h.Status == StatusOpen {
			continue
		}
		eligible = append(eligible, scored{p: p, score: h.HealthScore})
	}
	sort.SliceStable(eligible, func(i, j int) bool { return eligible[i].score > eligible[j].score })

	out := make([]processor.Processor, 0, len(eligible))
	for _, e := range eligible {
		out = append(out, e.p)
	}
	return out
}

// prune drops samples older than the window and keeps the newest windowSize.
func (m *Monitor) prune(window []sample) []sample {
	cutoff := m.now().Add(-m.windowDuration)
	kept := make([]sample, 0, len(window))
	for _, s := range window {
		if s.timestamp.After(cutoff) {
			kept = append(kept, s)
		}
	}
	if len(kept) > m.windowSize {
		kept = kept[len(kept)-m.windowSize:]
	}
	return kept
}

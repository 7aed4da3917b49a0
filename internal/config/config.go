package config

import "time"

const (
	// StatusPollingInterval is the fixed cadence of status polling.
	StatusPollingInterval = 1 * time.Second

	// DefaultMaxPollingDuration is the polling ceiling for await and QR actions.
	DefaultMaxPollingDuration = 15 * time.Minute

	// PayNowMaxPollingDuration is the polling ceiling for PayNow QR codes.
	PayNowMaxPollingDuration = 3 * time.Minute

	// UPIMaxPollingDuration is the polling ceiling for UPI QR codes.
	UPIMaxPollingDuration = 5 * time.Minute

	// RefreshStatusMinInterval throttles out-of-cadence status refreshes.
	RefreshStatusMinInterval = 1 * time.Second

	// HTTPTimeout bounds every backend call.
	HTTPTimeout = 30 * time.Second

	// StoreTimeout bounds every saved-state read or write.
	StoreTimeout = 5 * time.Second

	// QueueBuffer is the initial capacity of event queues.
	QueueBuffer = 64

	// SandboxAddr is the default listen address of the sandbox backend.
	SandboxAddr = ":8080"

	// HealthWindowSize is the number of recent provider responses a health score covers.
	HealthWindowSize = 50

	// HealthWindowDuration is how long a provider response counts toward its health.
	HealthWindowDuration = 10 * time.Minute

	// DegradedThreshold is the health score below which a provider is reported degraded.
	DegradedThreshold = 0.5

	// CircuitBreakerThreshold is the health score below which a provider stops
	// receiving sandbox payments.
	CircuitBreakerThreshold = 0.2
)

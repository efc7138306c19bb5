package resilience

import "time"

// Circuit breaker configuration constants
const (
	DefaultThreshold         = 5
	DefaultResetTimeout      = 30 * time.Second
	DefaultHalfOpenSuccesses = 3

	// Provider calls run once per capture cycle, so a handful of failures
	// already spans most of a minute.
	ProviderThreshold         = 3
	ProviderResetTimeout      = 15 * time.Second
	ProviderHalfOpenSuccesses = 1
)

// Config holds circuit breaker settings.
type Config struct {
	Name              string
	Threshold         int              // failures before opening
	ResetTimeout      time.Duration    // wait before half-open attempt
	HalfOpenSuccesses int              // successes needed to close
	Trips             func(error) bool // nil: every error counts as a failure
}

// DefaultConfig returns production-ready defaults.
func DefaultConfig() Config {
	return Config{
		Name:              "default",
		Threshold:         DefaultThreshold,
		ResetTimeout:      DefaultResetTimeout,
		HalfOpenSuccesses: DefaultHalfOpenSuccesses,
	}
}

// ProviderConfig returns settings for an inference collaborator. Only
// transport-level failures trip the breaker; a rejected request does not.
func ProviderConfig(name string) Config {
	return Config{
		Name:              name,
		Threshold:         ProviderThreshold,
		ResetTimeout:      ProviderResetTimeout,
		HalfOpenSuccesses: ProviderHalfOpenSuccesses,
		Trips:             IsRetryableGRPC,
	}
}

func (c Config) withDefaults() Config {
	if c.Name == "" {
		c.Name = "default"
	}
	if c.Threshold <= 0 {
		c.Threshold = DefaultThreshold
	}
	if c.ResetTimeout <= 0 {
		c.ResetTimeout = DefaultResetTimeout
	}
	if c.HalfOpenSuccesses <= 0 {
		c.HalfOpenSuccesses = DefaultHalfOpenSuccesses
	}
	return c
}

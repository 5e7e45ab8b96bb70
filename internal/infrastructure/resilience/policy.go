package resilience

import "time"

// Config tunes retry and circuit breaker behavior for outbound calls to
// Ollama, Qdrant and NATS. Zero values fall back to DefaultConfig so
// callers can set only the knobs they care about.
type Config struct {
	RetryMaxAttempts    int
	RetryInitialBackoff time.Duration
	RetryMaxBackoff     time.Duration
	RetryMultiplier     float64

	BreakerEnabled          bool
	BreakerMinRequests      uint32
	BreakerFailureRatio     float64
	BreakerOpenTimeout      time.Duration
	BreakerHalfOpenMaxCalls uint32
}

// DefaultConfig keeps retries short relative to query latency budgets:
// three attempts with a capped exponential backoff add at most ~700ms
// before the caller sees the failure.
func DefaultConfig() Config {
	return Config{
		RetryMaxAttempts:    3,
		RetryInitialBackoff: 100 * time.Millisecond,
		RetryMaxBackoff:     400 * time.Millisecond,
		RetryMultiplier:     2.0,

		BreakerEnabled:          true,
		BreakerMinRequests:      10,
		BreakerFailureRatio:     0.5,
		BreakerOpenTimeout:      30 * time.Second,
		BreakerHalfOpenMaxCalls: 2,
	}
}

// withDefaults fills unset or out-of-range fields from DefaultConfig.
// BreakerEnabled is left alone so partial configs stay retry-only.
func (c Config) withDefaults() Config {
	def := DefaultConfig()

	if c.RetryMaxAttempts <= 0 {
		c.RetryMaxAttempts = def.RetryMaxAttempts
	}
	if c.RetryInitialBackoff <= 0 {
		c.RetryInitialBackoff = def.RetryInitialBackoff
	}
	if c.RetryMaxBackoff <= 0 {
		c.RetryMaxBackoff = def.RetryMaxBackoff
	}
	if c.RetryMaxBackoff < c.RetryInitialBackoff {
		c.RetryMaxBackoff = c.RetryInitialBackoff
	}
	if c.RetryMultiplier < 1.0 {
		c.RetryMultiplier = def.RetryMultiplier
	}

	if c.BreakerMinRequests == 0 {
		c.BreakerMinRequests = def.BreakerMinRequests
	}
	if c.BreakerFailureRatio <= 0 || c.BreakerFailureRatio > 1 {
		c.BreakerFailureRatio = def.BreakerFailureRatio
	}
	if c.BreakerOpenTimeout <= 0 {
		c.BreakerOpenTimeout = def.BreakerOpenTimeout
	}
	if c.BreakerHalfOpenMaxCalls == 0 {
		c.BreakerHalfOpenMaxCalls = def.BreakerHalfOpenMaxCalls
	}

	return c
}

// nextDelay bounds the current backoff and advances it by the
// multiplier for the following attempt.
func (c Config) nextDelay(current time.Duration) (wait, next time.Duration) {
	wait = current
	if wait > c.RetryMaxBackoff {
		wait = c.RetryMaxBackoff
	}
	next = time.Duration(float64(current) * c.RetryMultiplier)
	if next > c.RetryMaxBackoff {
		next = c.RetryMaxBackoff
	}
	return wait, next
}

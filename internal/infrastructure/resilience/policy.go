package resilience

import (
	"strings"
	"time"
)

// Operation families, the prefix of an operation name before the first dot.
const (
	FamilyGateway = "razorpay"
	FamilyBackend = "backend"
	FamilyMedia   = "cloudinary"
	FamilyEvents  = "nats"
)

// Policy overrides the retry budget and attempt timeout of one operation family.
// Zero fields fall back to the executor-wide values.
type Policy struct {
	MaxAttempts    int
	AttemptTimeout time.Duration
}

// Config tunes retries and the per-operation circuit breaker.
type Config struct {
	RetryMaxAttempts    int
	RetryInitialBackoff time.Duration
	RetryMaxBackoff     time.Duration
	RetryMultiplier     float64
	// AttemptTimeout bounds a single attempt; zero leaves only the caller's deadline.
	AttemptTimeout time.Duration

	BreakerEnabled          bool
	BreakerMinRequests      uint32
	BreakerFailureRatio     float64
	BreakerOpenTimeout      time.Duration
	BreakerHalfOpenMaxCalls uint32

	Policies map[string]Policy
}

func DefaultConfig() Config {
	return Config{
		RetryMaxAttempts:    3,
		RetryInitialBackoff: 200 * time.Millisecond,
		RetryMaxBackoff:     2 * time.Second,
		RetryMultiplier:     2.0,

		BreakerEnabled:          true,
		BreakerMinRequests:      10,
		BreakerFailureRatio:     0.5,
		BreakerOpenTimeout:      30 * time.Second,
		BreakerHalfOpenMaxCalls: 2,

		Policies: map[string]Policy{
			// A student is waiting on the checkout widget.
			FamilyGateway: {MaxAttempts: 2, AttemptTimeout: 10 * time.Second},
			FamilyBackend: {AttemptTimeout: 15 * time.Second},
			// Documents are up to 5MB.
			FamilyMedia:  {MaxAttempts: 2, AttemptTimeout: time.Minute},
			FamilyEvents: {AttemptTimeout: 2 * time.Second},
		},
	}
}

func (c Config) normalize() Config {
	out := c
	def := DefaultConfig()

	if out.RetryMaxAttempts <= 0 {
		out.RetryMaxAttempts = def.RetryMaxAttempts
	}
	if out.RetryInitialBackoff <= 0 {
		out.RetryInitialBackoff = def.RetryInitialBackoff
	}
	if out.RetryMaxBackoff <= 0 {
		out.RetryMaxBackoff = def.RetryMaxBackoff
	}
	out.RetryMaxBackoff = max(out.RetryMaxBackoff, out.RetryInitialBackoff)
	if out.RetryMultiplier < 1.0 {
		out.RetryMultiplier = def.RetryMultiplier
	}
	if out.AttemptTimeout < 0 {
		out.AttemptTimeout = 0
	}

	if out.BreakerMinRequests == 0 {
		out.BreakerMinRequests = def.BreakerMinRequests
	}
	if out.BreakerFailureRatio <= 0 || out.BreakerFailureRatio > 1 {
		out.BreakerFailureRatio = def.BreakerFailureRatio
	}
	if out.BreakerOpenTimeout <= 0 {
		out.BreakerOpenTimeout = def.BreakerOpenTimeout
	}
	if out.BreakerHalfOpenMaxCalls == 0 {
		out.BreakerHalfOpenMaxCalls = def.BreakerHalfOpenMaxCalls
	}

	policies := make(map[string]Policy, len(c.Policies))
	for family, p := range c.Policies {
		p.MaxAttempts = max(p.MaxAttempts, 0)
		p.AttemptTimeout = max(p.AttemptTimeout, 0)
		policies[family] = p
	}
	out.Policies = policies
	return out
}

// policyFor resolves the attempt budget and per-attempt timeout of operation.
func (c Config) policyFor(operation string) (int, time.Duration) {
	attempts, timeout := c.RetryMaxAttempts, c.AttemptTimeout
	family, _, _ := strings.Cut(operation, ".")
	if p, ok := c.Policies[family]; ok {
		if p.MaxAttempts > 0 {
			attempts = p.MaxAttempts
		}
		if p.AttemptTimeout > 0 {
			timeout = p.AttemptTimeout
		}
	}
	return attempts, timeout
}

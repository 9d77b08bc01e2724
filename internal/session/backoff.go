package session

import (
	"math"
	"math/rand/v2"
	"time"
)

// Backoff computes retry delays: Base × Factor^attempt, capped at Max, plus a
// random jitter in [0, min(JitterMax, attempt × JitterStep)).
type Backoff struct {
	Base       time.Duration
	Factor     float64
	Max        time.Duration
	JitterStep time.Duration
	JitterMax  time.Duration

	// Rand returns a value in [0, 1). Nil uses math/rand/v2.
	Rand func() float64
}

// Delay returns the wait before retry number attempt (0-based).
func (b Backoff) Delay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	factor := b.Factor
	if factor < 1 {
		factor = 1
	}
	d := float64(b.Base) * math.Pow(factor, float64(attempt))
	if b.Max > 0 && d > float64(b.Max) {
		d = float64(b.Max)
	}
	jitter := min(b.JitterMax, time.Duration(attempt)*b.JitterStep)
	if jitter > 0 {
		r := b.Rand
		if r == nil {
			r = rand.Float64
		}
		d += r() * float64(jitter)
	}
	return time.Duration(d)
}

// ReconnectBackoff is the channel reconnect policy: 1s × 1.5^n plus up to
// min(10s, n × 1s) of jitter.
func ReconnectBackoff() Backoff {
	return Backoff{Base: time.Second, Factor: 1.5, JitterStep: time.Second, JitterMax: 10 * time.Second}
}

// SubmitBackoff is the fallback retry policy for transient failures.
func SubmitBackoff() Backoff {
	return Backoff{Base: time.Second, Factor: 2, Max: 30 * time.Second}
}

// AuthBackoff is the authorization polling policy.
func AuthBackoff() Backoff {
	return Backoff{Base: 2 * time.Second, Factor: 1.5, Max: time.Minute}
}

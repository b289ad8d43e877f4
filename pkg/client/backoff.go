package client

import (
	"time"

	"github.com/cenkalti/backoff/v5"
)

// RetryPolicy decides how long to wait before reconnect attempts.
// A server "retry" field is routed to SetReconnectionTime and becomes
// the new delay baseline.
type RetryPolicy interface {
	// NextDelay returns the wait before reconnect attempt n (1-based,
	// counted per disconnection). ok == false abandons the source.
	NextDelay(attempt int) (delay time.Duration, ok bool)

	// SetReconnectionTime applies a server retry override.
	SetReconnectionTime(d time.Duration)

	// Reset restores the baseline after a successful connection.
	Reset()
}

// Backoff is an exponential RetryPolicy with jitter.
type Backoff struct {
	exp         *backoff.ExponentialBackOff
	maxAttempts int
}

// NewBackoff returns a Backoff growing from initial to at most max by
// the given multiplier. maxAttempts caps consecutive failed attempts;
// 0 never gives up.
func NewBackoff(initial, max time.Duration, multiplier float64, maxAttempts int) *Backoff {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = initial
	exp.MaxInterval = max
	exp.Multiplier = multiplier
	exp.Reset()
	return &Backoff{exp: exp, maxAttempts: maxAttempts}
}

func (b *Backoff) NextDelay(attempt int) (time.Duration, bool) {
	if b.maxAttempts > 0 && attempt > b.maxAttempts {
		return 0, false
	}
	return b.exp.NextBackOff(), true
}

func (b *Backoff) SetReconnectionTime(d time.Duration) {
	b.exp.InitialInterval = d
	if d > b.exp.MaxInterval {
		b.exp.MaxInterval = d
	}
	b.exp.Reset()
}

func (b *Backoff) Reset() { b.exp.Reset() }

// ConstantDelay retries forever with a fixed wait.
type ConstantDelay struct {
	d time.Duration
}

func NewConstantDelay(d time.Duration) *ConstantDelay { return &ConstantDelay{d: d} }

func (c *ConstantDelay) NextDelay(int) (time.Duration, bool) { return c.d, true }

func (c *ConstantDelay) SetReconnectionTime(d time.Duration) { c.d = d }

func (c *ConstantDelay) Reset() {}

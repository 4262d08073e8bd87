package circuit

import (
	"fmt"
	"sync"
	"time"
)

// BreakerState represents the circuit breaker state
type BreakerState string

const (
	StateClosed   BreakerState = "closed"    // Normal delivery
	StateOpen     BreakerState = "open"      // Endpoint shunned
	StateHalfOpen BreakerState = "half_open" // Probing recovery
)

// BreakerConfig holds circuit breaker configuration
type BreakerConfig struct {
	Enabled         bool `json:"enabled"`
	MaxFailures     int  `json:"max_failures"`     // Consecutive failures before opening
	CooldownSeconds int  `json:"cooldown_seconds"` // Open duration before probing
}

// DefaultBreakerConfig returns safe defaults for an HTTP delivery target.
func DefaultBreakerConfig() *BreakerConfig {
	return &BreakerConfig{
		Enabled:         true,
		MaxFailures:     5,
		CooldownSeconds: 30,
	}
}

// Breaker guards a delivery endpoint. Consecutive failures open it; after
// the cooldown one probe is allowed through, and a success closes it again.
type Breaker struct {
	config              *BreakerConfig
	state               BreakerState
	consecutiveFailures int
	lastTripTime        time.Time
	tripReason          string
	mu                  sync.RWMutex
	onTrip              func(reason string)
	onReset             func()

	now func() time.Time
}

// NewBreaker creates a new circuit breaker
func NewBreaker(config *BreakerConfig) *Breaker {
	if config == nil {
		config = DefaultBreakerConfig()
	}
	return &Breaker{
		config: config,
		state:  StateClosed,
		now:    time.Now,
	}
}

// OnTrip sets callback for when the breaker trips
func (b *Breaker) OnTrip(handler func(reason string)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onTrip = handler
}

// OnReset sets callback for when the breaker closes again
func (b *Breaker) OnReset(handler func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onReset = handler
}

// Allow reports whether a delivery attempt may proceed right now.
func (b *Breaker) Allow() (bool, string) {
	if !b.config.Enabled {
		return true, ""
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateOpen {
		elapsed := b.now().Sub(b.lastTripTime)
		cooldown := time.Duration(b.config.CooldownSeconds) * time.Second
		if elapsed < cooldown {
			remaining := cooldown - elapsed
			return false, fmt.Sprintf("circuit open, cooldown remaining: %v (reason: %s)",
				remaining.Round(time.Second), b.tripReason)
		}
		// Cooldown passed, let one probe through.
		b.state = StateHalfOpen
	}
	return true, ""
}

// RecordSuccess notes a successful delivery and closes the breaker.
func (b *Breaker) RecordSuccess() {
	if !b.config.Enabled {
		return
	}

	b.mu.Lock()
	wasOpen := b.state != StateClosed
	b.state = StateClosed
	b.consecutiveFailures = 0
	b.tripReason = ""
	onReset := b.onReset
	b.mu.Unlock()

	if wasOpen && onReset != nil {
		go onReset()
	}
}

// RecordFailure notes a failed delivery; enough in a row trip the breaker.
// A failed half-open probe reopens it immediately.
func (b *Breaker) RecordFailure(err error) {
	if !b.config.Enabled {
		return
	}

	b.mu.Lock()
	b.consecutiveFailures++
	shouldTrip := b.state == StateHalfOpen || b.consecutiveFailures >= b.config.MaxFailures
	var onTrip func(string)
	var reason string
	if shouldTrip && b.state != StateOpen {
		b.state = StateOpen
		b.lastTripTime = b.now()
		reason = fmt.Sprintf("%d consecutive failures, last: %v", b.consecutiveFailures, err)
		b.tripReason = reason
		onTrip = b.onTrip
	}
	b.mu.Unlock()

	if onTrip != nil {
		go onTrip(reason)
	}
}

// ForceReset manually closes the breaker
func (b *Breaker) ForceReset() {
	b.mu.Lock()
	b.state = StateClosed
	b.consecutiveFailures = 0
	b.tripReason = ""
	onReset := b.onReset
	b.mu.Unlock()

	if onReset != nil {
		go onReset()
	}
}

// GetState returns the current breaker state
func (b *Breaker) GetState() BreakerState {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.state
}

// GetStats returns current statistics
func (b *Breaker) GetStats() map[string]interface{} {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return map[string]interface{}{
		"state":                string(b.state),
		"consecutive_failures": b.consecutiveFailures,
		"trip_reason":          b.tripReason,
		"last_trip_time":       b.lastTripTime,
	}
}

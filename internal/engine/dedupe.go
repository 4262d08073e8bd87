package engine

import (
	"sync"
	"time"

	"ta-signal-bot/internal/market"
)

// dedupeMemory suppresses repeats of the same call. A strategy that keeps
// seeing its setup on consecutive candles only gets one signal per candle
// period for a given (strategy, symbol, timeframe, action).
type dedupeMemory struct {
	mu   sync.Mutex
	last map[string]time.Time

	now func() time.Time
}

func newDedupeMemory() *dedupeMemory {
	return &dedupeMemory{
		last: make(map[string]time.Time),
		now:  time.Now,
	}
}

func dedupeKey(strategyID, symbol string, tf market.Timeframe, action string) string {
	return strategyID + "|" + symbol + "|" + string(tf) + "|" + action
}

// allow reports whether this signal may go out, and records it if so.
func (d *dedupeMemory) allow(strategyID, symbol string, tf market.Timeframe, action string) bool {
	key := dedupeKey(strategyID, symbol, tf, action)
	cooldown := tf.Duration()

	d.mu.Lock()
	defer d.mu.Unlock()

	if at, ok := d.last[key]; ok && d.now().Sub(at) < cooldown {
		return false
	}
	d.last[key] = d.now()

	// Opportunistic cleanup keeps the map from growing unbounded across
	// symbol churn.
	if len(d.last) > 4096 {
		cutoff := d.now().Add(-24 * time.Hour)
		for k, v := range d.last {
			if v.Before(cutoff) {
				delete(d.last, k)
			}
		}
	}
	return true
}

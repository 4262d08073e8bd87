package engine

import (
	"sync"

	"ta-signal-bot/internal/events"
	"ta-signal-bot/internal/logging"
	"ta-signal-bot/internal/metrics"
)

// strategyGuard tracks per-strategy panics and pulls a strategy out of
// rotation once it crosses the threshold. A disabled strategy stays off
// until the process restarts or an operator re-enables it.
type strategyGuard struct {
	mu        sync.Mutex
	panics    map[string]int
	disabled  map[string]bool
	threshold int
	bus       *events.EventBus
	log       *logging.Logger
}

func newStrategyGuard(threshold int, bus *events.EventBus, log *logging.Logger) *strategyGuard {
	if threshold <= 0 {
		threshold = 3
	}
	return &strategyGuard{
		panics:    make(map[string]int),
		disabled:  make(map[string]bool),
		threshold: threshold,
		bus:       bus,
		log:       log,
	}
}

func (g *strategyGuard) isDisabled(strategyID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.disabled[strategyID]
}

// recordPanic counts one panic and disables the strategy at the threshold.
func (g *strategyGuard) recordPanic(strategyID string, reason interface{}) {
	metrics.StrategyErrors.WithLabelValues(strategyID, "panic").Inc()

	g.mu.Lock()
	g.panics[strategyID]++
	count := g.panics[strategyID]
	trip := count >= g.threshold && !g.disabled[strategyID]
	if trip {
		g.disabled[strategyID] = true
	}
	g.mu.Unlock()

	g.log.Error("strategy panicked",
		"strategy_id", strategyID, "panic", reason, "count", count)

	if trip {
		g.log.Error("strategy disabled after repeated panics",
			"strategy_id", strategyID, "panics", count)
		g.bus.Publish(events.EventStrategyDisabled, map[string]interface{}{
			"strategy_id": strategyID,
			"panics":      count,
		})
	}
}

// reenable clears the disabled flag and panic count for a strategy.
func (g *strategyGuard) reenable(strategyID string) {
	g.mu.Lock()
	delete(g.disabled, strategyID)
	delete(g.panics, strategyID)
	g.mu.Unlock()
}

// disabledIDs returns the currently disabled strategies.
func (g *strategyGuard) disabledIDs() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]string, 0, len(g.disabled))
	for id := range g.disabled {
		out = append(out, id)
	}
	return out
}

// Package engine runs the per-candle analysis pipeline: load the window,
// compute indicators once, fan the strategies out, then filter, enrich and
// deduplicate whatever they produce before handing it to the publisher.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"ta-signal-bot/internal/configstore"
	"ta-signal-bot/internal/events"
	"ta-signal-bot/internal/history"
	"ta-signal-bot/internal/indicators"
	"ta-signal-bot/internal/logging"
	"ta-signal-bot/internal/market"
	"ta-signal-bot/internal/metrics"
	"ta-signal-bot/internal/strategy"
)

// processTimeout bounds one candle's trip through the pipeline.
const processTimeout = 10 * time.Second

// Publisher delivers an enriched signal to the outbound sinks.
type Publisher interface {
	Publish(ctx context.Context, sig *strategy.Signal) error
}

// Options tune the engine beyond what the live application config carries.
type Options struct {
	Risk               RiskParams
	DisableAfterPanics int
}

// Engine is the candle-to-signal pipeline.
type Engine struct {
	registry  *strategy.Registry
	calc      *indicators.Calculator
	loader    *history.Loader
	configs   *configstore.Manager
	publisher Publisher
	bus       *events.EventBus
	log       *logging.Logger

	guard  *strategyGuard
	dedupe *dedupeMemory
	risk   RiskParams

	mu    sync.Mutex
	holds map[string]int64 // suppressed hold signals per strategy
}

// New wires the pipeline together.
func New(reg *strategy.Registry, loader *history.Loader, configs *configstore.Manager,
	publisher Publisher, bus *events.EventBus, log *logging.Logger, opts Options) *Engine {
	if opts.Risk == (RiskParams{}) {
		opts.Risk = DefaultRiskParams()
	}
	return &Engine{
		registry:  reg,
		calc:      indicators.NewCalculator(),
		loader:    loader,
		configs:   configs,
		publisher: publisher,
		bus:       bus,
		log:       log.WithComponent("engine"),
		guard:     newStrategyGuard(opts.DisableAfterPanics, bus, log.WithComponent("engine")),
		dedupe:    newDedupeMemory(),
		risk:      opts.Risk,
		holds:     make(map[string]int64),
	}
}

// ProcessCandle runs one closed candle through the pipeline. Bar-close
// triggers carry no OHLCV; their window comes entirely from storage.
// Errors are returned for the caller to log; a candle outside the
// configured universe is a silent skip.
func (e *Engine) ProcessCandle(parent context.Context, c market.Candle) error {
	ctx, cancel := context.WithTimeout(parent, processTimeout)
	defer cancel()

	start := time.Now()
	metrics.CandlesReceived.WithLabelValues(c.Symbol, string(c.Timeframe)).Inc()

	cfg, cached, err := e.configs.AppConfig(ctx)
	if err != nil {
		return fmt.Errorf("load application config: %w", err)
	}
	if cached {
		metrics.ConfigCacheHits.Inc()
	} else {
		metrics.ConfigCacheMisses.Inc()
	}
	if !cfg.Covers(c.Symbol, string(c.Timeframe)) {
		metrics.CandlesRejected.WithLabelValues("out_of_universe").Inc()
		return nil
	}

	if c.Trigger {
		// Close notification without the bar: the cached window cannot
		// contain the candle that just closed, so force a refetch.
		e.loader.Invalidate(c.Symbol, c.Timeframe)
	} else {
		e.loader.Advance(c)
	}
	w, err := e.loader.Window(ctx, c.Symbol, c.Timeframe, c.OpenTime)
	if err != nil {
		if errors.Is(err, history.ErrInsufficientData) {
			metrics.CandlesRejected.WithLabelValues("insufficient_history").Inc()
			e.log.Warn("skipping candle, not enough history",
				"symbol", c.Symbol, "timeframe", string(c.Timeframe), "error", err.Error())
			return nil
		}
		metrics.CandlesRejected.WithLabelValues("storage").Inc()
		return fmt.Errorf("load window: %w", err)
	}

	active := e.activeStrategies(cfg)
	if len(active) == 0 {
		return nil
	}

	bundle := e.calc.Compute(w, strategy.RequiredUnion(active))
	signals := e.runStrategies(ctx, active, w, bundle)

	published := 0
	for _, sig := range signals {
		if !e.acceptSignal(sig, cfg) {
			continue
		}
		enrichRisk(sig, bundle, e.risk)
		if !e.dedupe.allow(sig.StrategyID, sig.Symbol, c.Timeframe, string(sig.Action)) {
			metrics.SignalsDropped.WithLabelValues("duplicate").Inc()
			continue
		}

		if err := e.publisher.Publish(ctx, sig); err != nil {
			e.log.Error("signal publish failed",
				"strategy_id", sig.StrategyID, "symbol", sig.Symbol, "error", err.Error())
			continue
		}
		published++
		e.bus.Publish(events.EventSignalGenerated, map[string]interface{}{
			"strategy_id": sig.StrategyID,
			"symbol":      sig.Symbol,
			"timeframe":   sig.Timeframe,
			"action":      string(sig.Action),
			"confidence":  sig.Confidence,
		})
		logging.SignalContext(sig.StrategyID, sig.Symbol, string(sig.Action), sig.Confidence).
			Info("signal published", "strength", string(sig.Strength))
	}

	metrics.ProcessingSeconds.WithLabelValues(string(c.Timeframe)).Observe(time.Since(start).Seconds())
	if published > 0 {
		e.log.Info("candle processed",
			"symbol", c.Symbol, "timeframe", string(c.Timeframe),
			"strategies", len(active), "signals", published)
	}
	return nil
}

// activeStrategies resolves the enabled set minus anything the panic guard
// has pulled.
func (e *Engine) activeStrategies(cfg *configstore.AppConfig) []strategy.Strategy {
	selected := e.registry.Select(cfg.EnabledStrategies)
	out := selected[:0]
	for _, s := range selected {
		if !e.guard.isDisabled(s.ID()) {
			out = append(out, s)
		}
	}
	return out
}

// runStrategies fans the strategy set out in parallel. Each run is fenced:
// a panic is counted against the strategy, never propagated.
func (e *Engine) runStrategies(ctx context.Context, active []strategy.Strategy,
	w *market.Window, bundle *indicators.Bundle) []*strategy.Signal {

	results := make([]*strategy.Signal, len(active))
	var wg sync.WaitGroup
	for i, s := range active {
		wg.Add(1)
		go func(i int, s strategy.Strategy) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					e.guard.recordPanic(s.ID(), r)
				}
			}()

			params := e.configs.EffectiveParams(ctx, s.ID(), w.Symbol)
			sig, err := s.Analyze(w, bundle, params)
			if err != nil {
				metrics.StrategyErrors.WithLabelValues(s.ID(), "error").Inc()
				e.log.Warn("strategy returned error",
					"strategy_id", s.ID(), "symbol", w.Symbol, "error", err.Error())
				return
			}
			results[i] = sig
		}(i, s)
	}
	wg.Wait()

	out := results[:0]
	for _, sig := range results {
		if sig != nil {
			out = append(out, sig)
		}
	}
	return out
}

// acceptSignal applies the hold filter and the confidence window.
func (e *Engine) acceptSignal(sig *strategy.Signal, cfg *configstore.AppConfig) bool {
	metrics.SignalsGenerated.WithLabelValues(sig.StrategyID, string(sig.Action)).Inc()

	if sig.Action == strategy.ActionHold {
		metrics.HoldSignals.WithLabelValues(sig.StrategyID).Inc()
		e.mu.Lock()
		e.holds[sig.StrategyID]++
		e.mu.Unlock()
		return false
	}

	if sig.Confidence < cfg.MinConfidence || sig.Confidence > cfg.MaxConfidence {
		metrics.SignalsDropped.WithLabelValues("confidence").Inc()
		return false
	}
	return true
}

// HoldCounts returns the suppressed hold tallies per strategy.
func (e *Engine) HoldCounts() map[string]int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make(map[string]int64, len(e.holds))
	for k, v := range e.holds {
		out[k] = v
	}
	return out
}

// DisabledStrategies returns the strategies pulled by the panic guard.
func (e *Engine) DisabledStrategies() []string {
	return e.guard.disabledIDs()
}

// ReenableStrategy clears the panic guard for a strategy.
func (e *Engine) ReenableStrategy(strategyID string) {
	e.guard.reenable(strategyID)
}

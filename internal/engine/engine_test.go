package engine

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"ta-signal-bot/internal/configstore"
	"ta-signal-bot/internal/events"
	"ta-signal-bot/internal/history"
	"ta-signal-bot/internal/logging"
	"ta-signal-bot/internal/market"
	"ta-signal-bot/internal/strategy"
)

// ============================================================
// Fakes
// ============================================================

type fakeCandleSource struct {
	candles []market.Candle
	err     error
	calls   int
}

func (s *fakeCandleSource) Candles(ctx context.Context, symbol string, tf market.Timeframe, before time.Time, limit int) ([]market.Candle, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	if len(s.candles) > limit {
		return s.candles[len(s.candles)-limit:], nil
	}
	return s.candles, nil
}

type capturingPublisher struct {
	mu      sync.Mutex
	signals []*strategy.Signal
}

func (p *capturingPublisher) Publish(ctx context.Context, sig *strategy.Signal) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.signals = append(p.signals, sig)
	return nil
}

func (p *capturingPublisher) published() []*strategy.Signal {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*strategy.Signal(nil), p.signals...)
}

// ============================================================
// Fixtures
// ============================================================

func marketCandles(symbol string, tf market.Timeframe, n int) []market.Candle {
	start := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	out := make([]market.Candle, n)
	for i := range out {
		base := 100 + 0.2*float64(i) + 3*math.Sin(float64(i)/7)
		out[i] = market.Candle{
			Symbol:    symbol,
			Timeframe: tf,
			OpenTime:  start.Add(time.Duration(i) * tf.Duration()),
			Open:      base,
			High:      base + 2,
			Low:       base - 2,
			Close:     base + 0.8,
			Volume:    1000 + 50*float64(i%9),
		}
	}
	return out
}

func engineAppConfig(reg *strategy.Registry) *configstore.AppConfig {
	return &configstore.AppConfig{
		EnabledStrategies: reg.IDs(),
		Symbols:           []string{"BTCUSDT"},
		CandlePeriods:     []string{"1h"},
		MinConfidence:     0.6,
		MaxConfidence:     0.95,
		MaxPositions:      5,
		PositionSizes:     []float64{0.1},
		Version:           1,
	}
}

func newTestEngine(t *testing.T, src *fakeCandleSource, pub Publisher) (*Engine, *configstore.AppConfig) {
	t.Helper()
	log := logging.New(&logging.Config{Level: "FATAL", JSONFormat: true})
	bus := events.NewEventBus()
	reg := strategy.NewRegistry()
	cfg := engineAppConfig(reg)

	// An empty store chain serves the boot defaults; the engine only reads.
	configs := configstore.NewManager(nil, cfg, reg, bus, log)
	loader := history.NewLoader(src, strategy.MinWindow, log)

	return New(reg, loader, configs, pub, bus, log, Options{}), cfg
}

func lastCandle(candles []market.Candle) market.Candle {
	return candles[len(candles)-1]
}

// ============================================================
// Pipeline
// ============================================================

func TestProcessCandlePublishedSignalsRespectBounds(t *testing.T) {
	candles := marketCandles("BTCUSDT", market.TF1h, 400)
	src := &fakeCandleSource{candles: candles}
	pub := &capturingPublisher{}
	e, cfg := newTestEngine(t, src, pub)

	if err := e.ProcessCandle(context.Background(), lastCandle(candles)); err != nil {
		t.Fatalf("ProcessCandle: %v", err)
	}

	// Whether anything fires depends on the shape of the series; whatever
	// does fire must satisfy the outbound contract.
	for _, sig := range pub.published() {
		if sig.Action != strategy.ActionBuy && sig.Action != strategy.ActionSell {
			t.Errorf("published %s signal from %s", sig.Action, sig.StrategyID)
		}
		if sig.Confidence < cfg.MinConfidence || sig.Confidence > cfg.MaxConfidence {
			t.Errorf("confidence %v outside [%v, %v]", sig.Confidence, cfg.MinConfidence, cfg.MaxConfidence)
		}
		if sig.StopLoss == 0 || sig.TakeProfit == 0 {
			t.Errorf("%s published without risk levels", sig.StrategyID)
		}
		switch sig.Action {
		case strategy.ActionBuy:
			if !(sig.StopLoss < sig.Price && sig.Price < sig.TakeProfit) {
				t.Errorf("buy levels disordered: sl=%v price=%v tp=%v", sig.StopLoss, sig.Price, sig.TakeProfit)
			}
		case strategy.ActionSell:
			if !(sig.TakeProfit < sig.Price && sig.Price < sig.StopLoss) {
				t.Errorf("sell levels disordered: sl=%v price=%v tp=%v", sig.StopLoss, sig.Price, sig.TakeProfit)
			}
		}
		if _, ok := sig.Metadata["stop_loss_calculated"]; !ok {
			t.Errorf("%s missing stop_loss_calculated metadata", sig.StrategyID)
		}
	}
}

func TestProcessCandleOutOfUniverse(t *testing.T) {
	candles := marketCandles("BTCUSDT", market.TF1h, 400)
	src := &fakeCandleSource{candles: candles}
	pub := &capturingPublisher{}
	e, _ := newTestEngine(t, src, pub)

	// DOGEUSDT is not in the configured symbol set.
	other := lastCandle(marketCandles("DOGEUSDT", market.TF1h, 400))
	if err := e.ProcessCandle(context.Background(), other); err != nil {
		t.Fatalf("out-of-universe candle errored: %v", err)
	}
	if src.calls != 0 {
		t.Error("out-of-universe candle reached storage")
	}
	if len(pub.published()) != 0 {
		t.Error("out-of-universe candle produced signals")
	}
}

func TestProcessCandleInsufficientHistoryIsSilent(t *testing.T) {
	src := &fakeCandleSource{candles: marketCandles("BTCUSDT", market.TF1h, 50)}
	pub := &capturingPublisher{}
	e, _ := newTestEngine(t, src, pub)

	c := lastCandle(marketCandles("BTCUSDT", market.TF1h, 400))
	if err := e.ProcessCandle(context.Background(), c); err != nil {
		t.Fatalf("thin history should be a silent skip, got %v", err)
	}
	if len(pub.published()) != 0 {
		t.Error("thin history produced signals")
	}
}

func TestProcessCandleStorageFailureErrors(t *testing.T) {
	src := &fakeCandleSource{err: errors.New("connection refused")}
	pub := &capturingPublisher{}
	e, _ := newTestEngine(t, src, pub)

	c := lastCandle(marketCandles("BTCUSDT", market.TF1h, 400))
	if err := e.ProcessCandle(context.Background(), c); err == nil {
		t.Fatal("storage failure swallowed")
	}
}

func TestProcessCandleCloseTriggerRefetchesWindow(t *testing.T) {
	candles := marketCandles("BTCUSDT", market.TF1h, 400)
	src := &fakeCandleSource{candles: candles[:399]}
	pub := &capturingPublisher{}
	e, _ := newTestEngine(t, src, pub)

	// Warm the window cache with a full candle event.
	if err := e.ProcessCandle(context.Background(), candles[398]); err != nil {
		t.Fatalf("ProcessCandle: %v", err)
	}
	fetches := src.calls
	if fetches == 0 {
		t.Fatal("warming candle never hit storage")
	}

	// The next bar closes, but the bus only delivered a close
	// notification. The bar itself is already in storage.
	src.candles = candles
	last := lastCandle(candles)
	trigger := market.Candle{
		Symbol:    last.Symbol,
		Timeframe: last.Timeframe,
		OpenTime:  last.OpenTime,
		Trigger:   true,
	}
	if err := e.ProcessCandle(context.Background(), trigger); err != nil {
		t.Fatalf("trigger processing: %v", err)
	}

	// The cached window predates the closed bar, so the trigger must
	// force a refetch rather than reuse it.
	if src.calls != fetches+1 {
		t.Errorf("storage fetches after trigger = %d, want %d", src.calls, fetches+1)
	}
}

func TestAcceptSignalHoldAndConfidence(t *testing.T) {
	pub := &capturingPublisher{}
	e, cfg := newTestEngine(t, &fakeCandleSource{}, pub)

	hold := testSignal(strategy.ActionHold, 100)
	if e.acceptSignal(hold, cfg) {
		t.Error("hold signal accepted")
	}
	if e.HoldCounts()["momentum_pulse"] != 1 {
		t.Errorf("hold counts = %v", e.HoldCounts())
	}

	weak := testSignal(strategy.ActionBuy, 100)
	weak.Confidence = 0.55
	if e.acceptSignal(weak, cfg) {
		t.Error("below-window confidence accepted")
	}

	suspicious := testSignal(strategy.ActionBuy, 100)
	suspicious.Confidence = 0.99
	if e.acceptSignal(suspicious, cfg) {
		t.Error("above-window confidence accepted")
	}

	ok := testSignal(strategy.ActionBuy, 100)
	ok.Confidence = 0.72
	if !e.acceptSignal(ok, cfg) {
		t.Error("in-window signal rejected")
	}
}

func TestDisabledStrategySkipped(t *testing.T) {
	pub := &capturingPublisher{}
	e, cfg := newTestEngine(t, &fakeCandleSource{}, pub)

	for i := 0; i < 3; i++ {
		e.guard.recordPanic("momentum_pulse", "boom")
	}
	active := e.activeStrategies(cfg)
	for _, s := range active {
		if s.ID() == "momentum_pulse" {
			t.Fatal("disabled strategy still active")
		}
	}
	if len(active) != len(cfg.EnabledStrategies)-1 {
		t.Errorf("active = %d, want %d", len(active), len(cfg.EnabledStrategies)-1)
	}

	e.ReenableStrategy("momentum_pulse")
	if got := e.DisabledStrategies(); len(got) != 0 {
		t.Errorf("DisabledStrategies after reenable = %v", got)
	}
}

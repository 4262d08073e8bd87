package engine

import (
	"testing"

	"ta-signal-bot/internal/indicators"
	"ta-signal-bot/internal/strategy"
)

func testSignal(action strategy.Action, price float64) *strategy.Signal {
	return &strategy.Signal{
		StrategyID: "momentum_pulse",
		Symbol:     "BTCUSDT",
		Timeframe:  "1h",
		Action:     action,
		Confidence: 0.7,
		Price:      price,
		Metadata:   make(map[string]interface{}),
	}
}

func bundleWithATR(atr float64) *indicators.Bundle {
	b := indicators.NewBundle(1)
	b.Put(indicators.ATR, []float64{atr})
	return b
}

func TestEnrichRiskATRBasis(t *testing.T) {
	p := DefaultRiskParams()
	sig := testSignal(strategy.ActionBuy, 100)
	enrichRisk(sig, bundleWithATR(1.5), p)

	if sig.StopLoss != 100-1.5*p.ATRStopMult {
		t.Errorf("stop loss = %v", sig.StopLoss)
	}
	if sig.TakeProfit != 100+1.5*p.ATRTakeMult {
		t.Errorf("take profit = %v", sig.TakeProfit)
	}
	if sig.Metadata["stop_loss_calculated"] != true || sig.Metadata["risk_basis"] != "atr" {
		t.Errorf("metadata = %v", sig.Metadata)
	}
}

func TestEnrichRiskPercentFallback(t *testing.T) {
	p := DefaultRiskParams()
	sig := testSignal(strategy.ActionSell, 200)
	enrichRisk(sig, indicators.NewBundle(1), p) // no ATR in the bundle

	// Sell side inverts: stop above, target below.
	if sig.StopLoss != 200*(1+p.StopLossPct) {
		t.Errorf("stop loss = %v", sig.StopLoss)
	}
	if sig.TakeProfit != 200*(1-p.TakeProfitPct) {
		t.Errorf("take profit = %v", sig.TakeProfit)
	}
	if sig.Metadata["risk_basis"] != "percent" {
		t.Errorf("risk_basis = %v", sig.Metadata["risk_basis"])
	}
}

func TestEnrichRiskRespectsStrategyLevels(t *testing.T) {
	sig := testSignal(strategy.ActionBuy, 100)
	sig.StopLoss = 97
	sig.TakeProfit = 108
	enrichRisk(sig, bundleWithATR(1.5), DefaultRiskParams())

	if sig.StopLoss != 97 || sig.TakeProfit != 108 {
		t.Errorf("strategy levels overwritten: sl=%v tp=%v", sig.StopLoss, sig.TakeProfit)
	}
	if sig.Metadata["stop_loss_calculated"] != false {
		t.Errorf("stop_loss_calculated = %v, want false", sig.Metadata["stop_loss_calculated"])
	}
}

func TestEnrichRiskFillsPartialLevels(t *testing.T) {
	sig := testSignal(strategy.ActionBuy, 100)
	sig.StopLoss = 96 // only the stop came from the strategy
	enrichRisk(sig, bundleWithATR(2), DefaultRiskParams())

	if sig.StopLoss != 96 {
		t.Errorf("strategy stop overwritten: %v", sig.StopLoss)
	}
	if sig.TakeProfit != 106 { // 100 + 2*3.0
		t.Errorf("take profit = %v, want 106", sig.TakeProfit)
	}
	if sig.Metadata["stop_loss_calculated"] != true {
		t.Error("partial enrichment not flagged as calculated")
	}
}

func TestEnrichRiskSkipsHolds(t *testing.T) {
	sig := testSignal(strategy.ActionHold, 100)
	enrichRisk(sig, bundleWithATR(2), DefaultRiskParams())

	if sig.StopLoss != 0 || sig.TakeProfit != 0 {
		t.Errorf("hold signal was enriched: sl=%v tp=%v", sig.StopLoss, sig.TakeProfit)
	}
	if _, ok := sig.Metadata["stop_loss_calculated"]; ok {
		t.Error("hold signal got risk metadata")
	}
}

func TestEnrichRiskClampsNegativeStop(t *testing.T) {
	sig := testSignal(strategy.ActionBuy, 1)
	enrichRisk(sig, bundleWithATR(5), DefaultRiskParams()) // 5*2 > price

	if sig.StopLoss != 0 {
		t.Errorf("negative stop not clamped: %v", sig.StopLoss)
	}
}

package engine

import (
	"ta-signal-bot/internal/indicators"
	"ta-signal-bot/internal/strategy"
)

// RiskParams controls stop loss and take profit enrichment.
type RiskParams struct {
	StopLossPct   float64 // fallback stop distance as a fraction of price
	TakeProfitPct float64 // fallback target distance as a fraction of price
	ATRStopMult   float64 // stop distance in ATRs when ATR is available
	ATRTakeMult   float64 // target distance in ATRs when ATR is available
}

// DefaultRiskParams mirrors the boot defaults.
func DefaultRiskParams() RiskParams {
	return RiskParams{
		StopLossPct:   0.02,
		TakeProfitPct: 0.05,
		ATRStopMult:   2.0,
		ATRTakeMult:   3.0,
	}
}

// enrichRisk fills stop loss and take profit on directional signals that
// do not carry their own. ATR distances are preferred; percentage
// fallbacks apply when ATR is not computed for this window. The
// stop_loss_calculated flag records whether the levels came from here or
// from the strategy itself.
func enrichRisk(sig *strategy.Signal, b *indicators.Bundle, p RiskParams) {
	if sig.Action == strategy.ActionHold {
		return
	}
	if sig.StopLoss != 0 && sig.TakeProfit != 0 {
		sig.WithMeta("stop_loss_calculated", false)
		return
	}

	price := sig.Price
	if price <= 0 {
		return
	}

	stopDist := price * p.StopLossPct
	takeDist := price * p.TakeProfitPct
	basis := "percent"
	if atr, ok := b.Latest(indicators.ATR); ok && atr > 0 {
		stopDist = atr * p.ATRStopMult
		takeDist = atr * p.ATRTakeMult
		basis = "atr"
	}

	switch sig.Action {
	case strategy.ActionBuy:
		if sig.StopLoss == 0 {
			sig.StopLoss = price - stopDist
		}
		if sig.TakeProfit == 0 {
			sig.TakeProfit = price + takeDist
		}
	case strategy.ActionSell:
		if sig.StopLoss == 0 {
			sig.StopLoss = price + stopDist
		}
		if sig.TakeProfit == 0 {
			sig.TakeProfit = price - takeDist
		}
	}

	if sig.StopLoss < 0 {
		sig.StopLoss = 0
	}
	if sig.TakeProfit < 0 {
		sig.TakeProfit = 0
	}

	sig.WithMeta("stop_loss_calculated", true).WithMeta("risk_basis", basis)
}

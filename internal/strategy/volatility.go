package strategy

import (
	"ta-signal-bot/internal/indicators"
	"ta-signal-bot/internal/market"
)

// Volatility-regime family. The squeeze alert is diagnostic only: it emits
// hold signals that the engine counts and discards before publication.

// bollingerSqueezeAlert flags a band-width compression below a fraction of
// the middle band. Downstream strategies read the regime; nothing trades it.
type bollingerSqueezeAlert struct{}

func (bollingerSqueezeAlert) ID() string { return "bollinger_squeeze_alert" }

func (bollingerSqueezeAlert) RequiredIndicators() []string {
	return []string{indicators.BBUpper, indicators.BBMiddle, indicators.BBLower}
}

func (s bollingerSqueezeAlert) Analyze(w *market.Window, b *indicators.Bundle, p Params) (*Signal, error) {
	upper, ok1 := b.Latest(indicators.BBUpper)
	middle, ok2 := b.Latest(indicators.BBMiddle)
	lower, ok3 := b.Latest(indicators.BBLower)
	if !(ok1 && ok2 && ok3) || w.Len() == 0 || middle <= 0 {
		return nil, nil
	}
	width := (upper - lower) / middle
	if width > p.Float("squeeze_width", 0.03) {
		return nil, nil
	}

	sig := NewSignal(s.ID(), w, ActionHold, 0.65)
	sig.WithMeta("bb_width", width).WithMeta("regime", "squeeze")
	return sig, nil
}

// volatilityExpansion trades the first directional bar of an ATR expansion
// out of a quiet stretch.
type volatilityExpansion struct{}

func (volatilityExpansion) ID() string { return "volatility_expansion" }

func (volatilityExpansion) RequiredIndicators() []string {
	return []string{indicators.ATR, indicators.EMA21}
}

func (s volatilityExpansion) Analyze(w *market.Window, b *indicators.Bundle, p Params) (*Signal, error) {
	atrNow, ok1 := b.Latest(indicators.ATR)
	atrBase, ok2 := b.At(indicators.ATR, 10)
	ema21, ok3 := b.Latest(indicators.EMA21)
	if !(ok1 && ok2 && ok3) || w.Len() < 12 || atrBase <= 0 {
		return nil, nil
	}
	expandMult := p.Float("expansion_mult", 1.4)
	if atrNow < atrBase*expandMult {
		return nil, nil
	}
	cur := w.Last()
	// The expansion bar itself must be decisive.
	if bodySize(cur) < atrNow {
		return nil, nil
	}

	var action Action
	switch {
	case isBullish(cur) && cur.Close > ema21:
		action = ActionBuy
	case isBearish(cur) && cur.Close < ema21:
		action = ActionSell
	default:
		return nil, nil
	}

	sig := NewSignal(s.ID(), w, action, 0.63)
	sig.WithMeta("atr", atrNow).WithMeta("atr_base", atrBase).WithMeta("regime", "expansion")
	return sig, nil
}

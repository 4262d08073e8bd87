package strategy

import (
	"ta-signal-bot/internal/indicators"
	"ta-signal-bot/internal/market"
)

// Mean-reversion family. Counter-trend entries on stretched prices;
// confidence scales with the magnitude of the excursion.

// bollingerRebound waits for a close outside a Bollinger Band followed by a
// re-entry close back inside the band.
type bollingerRebound struct{}

func (bollingerRebound) ID() string { return "bollinger_rebound" }

func (bollingerRebound) RequiredIndicators() []string {
	return []string{indicators.BBUpper, indicators.BBMiddle, indicators.BBLower, indicators.ATR}
}

func (s bollingerRebound) Analyze(w *market.Window, b *indicators.Bundle, p Params) (*Signal, error) {
	if w.Len() < 2 {
		return nil, nil
	}
	lowerPrev, ok1 := b.At(indicators.BBLower, 1)
	upperPrev, ok2 := b.At(indicators.BBUpper, 1)
	lower, ok3 := b.Latest(indicators.BBLower)
	upper, ok4 := b.Latest(indicators.BBUpper)
	if !(ok1 && ok2 && ok3 && ok4) {
		return nil, nil
	}
	prev, _ := candleAt(w, 1)
	cur := w.Last()

	var action Action
	var excursion float64
	switch {
	case prev.Close < lowerPrev && cur.Close > lower:
		action = ActionBuy
		excursion = lowerPrev - prev.Close
	case prev.Close > upperPrev && cur.Close < upper:
		action = ActionSell
		excursion = prev.Close - upperPrev
	default:
		return nil, nil
	}

	confidence := 0.6
	if atr, ok := b.Latest(indicators.ATR); ok && atr > 0 {
		// Deeper excursions revert harder.
		ratio := excursion / atr
		if ratio > 1 {
			confidence += 0.1
		} else if ratio > 0.5 {
			confidence += 0.05
		}
	}

	sig := NewSignal(s.ID(), w, action, confidence)
	sig.WithMeta("bb_upper", upper).WithMeta("bb_lower", lower).WithMeta("excursion", excursion)
	return sig, nil
}

// rsi2ExtremeReversal uses the ultra-short RSI(2) for washed-out extremes.
type rsi2ExtremeReversal struct{}

func (rsi2ExtremeReversal) ID() string { return "rsi2_extreme_reversal" }

func (rsi2ExtremeReversal) RequiredIndicators() []string {
	return []string{indicators.RSI2, indicators.EMA200}
}

func (s rsi2ExtremeReversal) Analyze(w *market.Window, b *indicators.Bundle, p Params) (*Signal, error) {
	rsi2, ok := b.Latest(indicators.RSI2)
	if !ok || w.Len() == 0 {
		return nil, nil
	}
	buyMax := p.Float("rsi2_buy_max", 25)
	sellMin := p.Float("rsi2_sell_min", 75)

	var action Action
	switch {
	case rsi2 <= buyMax:
		action = ActionBuy
	case rsi2 >= sellMin:
		action = ActionSell
	default:
		return nil, nil
	}

	confidence := 0.6
	// The closer to the rail, the better the edge.
	if rsi2 <= 2 || rsi2 >= 98 {
		confidence = 0.78
	} else if rsi2 <= 10 || rsi2 >= 90 {
		confidence = 0.68
	}
	// Extra confirmation when reverting toward the long-term mean.
	if ema200, ok := b.Latest(indicators.EMA200); ok {
		price := w.LastClose()
		if (action == ActionBuy && price > ema200) || (action == ActionSell && price < ema200) {
			confidence += 0.05
		}
	}

	sig := NewSignal(s.ID(), w, action, confidence)
	sig.WithMeta("rsi2", rsi2)
	return sig, nil
}

// bandSnapback takes a stretched close far outside a band without waiting
// for the re-entry bar.
type bandSnapback struct{}

func (bandSnapback) ID() string { return "band_snapback" }

func (bandSnapback) RequiredIndicators() []string {
	return []string{indicators.BBUpper, indicators.BBLower, indicators.ATR}
}

func (s bandSnapback) Analyze(w *market.Window, b *indicators.Bundle, p Params) (*Signal, error) {
	lower, ok1 := b.Latest(indicators.BBLower)
	upper, ok2 := b.Latest(indicators.BBUpper)
	atr, ok3 := b.Latest(indicators.ATR)
	if !(ok1 && ok2 && ok3) || w.Len() == 0 || atr <= 0 {
		return nil, nil
	}
	minStretch := p.Float("min_stretch_atr", 0.75)
	price := w.LastClose()

	var action Action
	var stretch float64
	switch {
	case price < lower && (lower-price)/atr >= minStretch:
		action = ActionBuy
		stretch = (lower - price) / atr
	case price > upper && (price-upper)/atr >= minStretch:
		action = ActionSell
		stretch = (price - upper) / atr
	default:
		return nil, nil
	}

	capped := stretch
	if capped > 2 {
		capped = 2
	}
	confidence := 0.6 + 0.08*capped/2

	sig := NewSignal(s.ID(), w, action, confidence)
	sig.WithMeta("stretch_atr", stretch).WithMeta("atr", atr)
	return sig, nil
}

// rsiOversoldBounce buys the RSI(14) recovery out of the oversold zone.
type rsiOversoldBounce struct{}

func (rsiOversoldBounce) ID() string { return "rsi_oversold_bounce" }

func (rsiOversoldBounce) RequiredIndicators() []string {
	return []string{indicators.RSI}
}

func (s rsiOversoldBounce) Analyze(w *market.Window, b *indicators.Bundle, p Params) (*Signal, error) {
	rsi, ok1 := b.Latest(indicators.RSI)
	rsiPrev, ok2 := b.At(indicators.RSI, 1)
	if !(ok1 && ok2) || w.Len() == 0 {
		return nil, nil
	}
	oversold := p.Float("rsi_oversold", 30)
	if !(rsiPrev < oversold && rsi >= oversold) {
		return nil, nil
	}

	confidence := 0.6
	if rsiPrev < oversold-8 {
		confidence += 0.07
	}

	sig := NewSignal(s.ID(), w, ActionBuy, confidence)
	sig.WithMeta("rsi", rsi).WithMeta("rsi_prev", rsiPrev)
	return sig, nil
}

// rsiOverboughtFade sells the RSI(14) rollover out of the overbought zone.
type rsiOverboughtFade struct{}

func (rsiOverboughtFade) ID() string { return "rsi_overbought_fade" }

func (rsiOverboughtFade) RequiredIndicators() []string {
	return []string{indicators.RSI}
}

func (s rsiOverboughtFade) Analyze(w *market.Window, b *indicators.Bundle, p Params) (*Signal, error) {
	rsi, ok1 := b.Latest(indicators.RSI)
	rsiPrev, ok2 := b.At(indicators.RSI, 1)
	if !(ok1 && ok2) || w.Len() == 0 {
		return nil, nil
	}
	overbought := p.Float("rsi_overbought", 70)
	if !(rsiPrev > overbought && rsi <= overbought) {
		return nil, nil
	}

	confidence := 0.6
	if rsiPrev > overbought+8 {
		confidence += 0.07
	}

	sig := NewSignal(s.ID(), w, ActionSell, confidence)
	sig.WithMeta("rsi", rsi).WithMeta("rsi_prev", rsiPrev)
	return sig, nil
}

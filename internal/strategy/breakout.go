package strategy

import (
	"ta-signal-bot/internal/indicators"
	"ta-signal-bot/internal/market"
)

// Breakout family. A compressed range plus a decisive close beyond it,
// optionally confirmed by volume.

// rangeBreakout fires when a tight N-bar range (height below a fraction of
// price) breaks on a close, with contracting ATR and a neutral RSI going in.
type rangeBreakout struct{}

func (rangeBreakout) ID() string { return "range_breakout" }

func (rangeBreakout) RequiredIndicators() []string {
	return []string{indicators.ATR, indicators.RSI}
}

func (s rangeBreakout) Analyze(w *market.Window, b *indicators.Bundle, p Params) (*Signal, error) {
	bars := p.Int("range_bars", 10)
	maxHeightPct := p.Float("max_range_pct", 0.025)
	hi, lo, ok := rangeHighLow(w, bars, true)
	if !ok || w.Len() < bars+2 {
		return nil, nil
	}
	price := w.LastClose()
	if price <= 0 || (hi-lo)/price > maxHeightPct {
		return nil, nil
	}

	// Volatility should have been contracting into the break.
	atrNow, ok1 := b.Latest(indicators.ATR)
	atrThen, ok2 := b.At(indicators.ATR, bars)
	if ok1 && ok2 && atrNow > atrThen {
		return nil, nil
	}
	// RSI neutral before the break keeps us out of exhausted moves.
	if rsiPrev, ok := b.At(indicators.RSI, 1); ok && (rsiPrev < 40 || rsiPrev > 60) {
		return nil, nil
	}

	var action Action
	switch {
	case price > hi:
		action = ActionBuy
	case price < lo:
		action = ActionSell
	default:
		return nil, nil
	}

	confidence := 0.62
	breakMargin := 0.0
	if action == ActionBuy {
		breakMargin = (price - hi) / price
	} else {
		breakMargin = (lo - price) / price
	}
	if breakMargin > 0.003 {
		confidence += 0.05
	}

	sig := NewSignal(s.ID(), w, action, confidence)
	sig.WithMeta("range_high", hi).WithMeta("range_low", lo).WithMeta("break_margin", breakMargin)
	return sig, nil
}

// squeezeBreakout waits for the Bollinger squeeze to resolve: band width
// was compressed and price now closes beyond a band.
type squeezeBreakout struct{}

func (squeezeBreakout) ID() string { return "squeeze_breakout" }

func (squeezeBreakout) RequiredIndicators() []string {
	return []string{indicators.BBUpper, indicators.BBMiddle, indicators.BBLower}
}

func (s squeezeBreakout) Analyze(w *market.Window, b *indicators.Bundle, p Params) (*Signal, error) {
	upper, ok1 := b.Latest(indicators.BBUpper)
	middle, ok2 := b.Latest(indicators.BBMiddle)
	lower, ok3 := b.Latest(indicators.BBLower)
	upperPrev, ok4 := b.At(indicators.BBUpper, 1)
	middlePrev, ok5 := b.At(indicators.BBMiddle, 1)
	lowerPrev, ok6 := b.At(indicators.BBLower, 1)
	if !(ok1 && ok2 && ok3 && ok4 && ok5 && ok6) || w.Len() == 0 || middle <= 0 || middlePrev <= 0 {
		return nil, nil
	}
	squeezeMax := p.Float("squeeze_width", 0.04)
	widthPrev := (upperPrev - lowerPrev) / middlePrev
	if widthPrev > squeezeMax {
		return nil, nil
	}
	price := w.LastClose()

	var action Action
	switch {
	case price > upper:
		action = ActionBuy
	case price < lower:
		action = ActionSell
	default:
		return nil, nil
	}

	confidence := 0.64
	width := (upper - lower) / middle
	if width > widthPrev*1.2 {
		// Bands already expanding in the break direction.
		confidence += 0.05
	}

	sig := NewSignal(s.ID(), w, action, confidence)
	sig.WithMeta("bb_width", width).WithMeta("bb_width_prev", widthPrev)
	return sig, nil
}

// volumeSurgeBreakout requires the breakout bar to carry a volume surge
// over the rolling mean.
type volumeSurgeBreakout struct{}

func (volumeSurgeBreakout) ID() string { return "volume_surge_breakout" }

func (volumeSurgeBreakout) RequiredIndicators() []string {
	return []string{indicators.VolumeSMA}
}

func (s volumeSurgeBreakout) Analyze(w *market.Window, b *indicators.Bundle, p Params) (*Signal, error) {
	bars := p.Int("range_bars", 20)
	surgeMult := p.Float("volume_surge", 1.5)
	hi, lo, ok := rangeHighLow(w, bars, true)
	if !ok || w.Len() < bars+2 {
		return nil, nil
	}
	volSMA, okV := b.Latest(indicators.VolumeSMA)
	if !okV || volSMA <= 0 {
		return nil, nil
	}
	cur := w.Last()
	if cur.Volume < volSMA*surgeMult {
		return nil, nil
	}

	var action Action
	switch {
	case cur.Close > hi:
		action = ActionBuy
	case cur.Close < lo:
		action = ActionSell
	default:
		return nil, nil
	}

	volRatio := cur.Volume / volSMA
	confidence := 0.65
	if volRatio >= 2*surgeMult {
		confidence += 0.08
	}

	sig := NewSignal(s.ID(), w, action, confidence)
	sig.WithMeta("volume_ratio", volRatio).WithMeta("range_high", hi).WithMeta("range_low", lo)
	return sig, nil
}

// donchianBreakout is the classic channel break: a close beyond the N-bar
// extreme, trend-gated by EMA50.
type donchianBreakout struct{}

func (donchianBreakout) ID() string { return "donchian_breakout" }

func (donchianBreakout) RequiredIndicators() []string {
	return []string{indicators.EMA50}
}

func (s donchianBreakout) Analyze(w *market.Window, b *indicators.Bundle, p Params) (*Signal, error) {
	bars := p.Int("channel_bars", 20)
	hi, lo, ok := rangeHighLow(w, bars, true)
	if !ok || w.Len() < bars+2 {
		return nil, nil
	}
	ema50, okE := b.Latest(indicators.EMA50)
	if !okE {
		return nil, nil
	}
	price := w.LastClose()

	var action Action
	switch {
	case price > hi && price > ema50:
		action = ActionBuy
	case price < lo && price < ema50:
		action = ActionSell
	default:
		return nil, nil
	}

	confidence := 0.61
	if emaRising(b, indicators.EMA50, 5) == (action == ActionBuy) {
		confidence += 0.05
	}

	sig := NewSignal(s.ID(), w, action, confidence)
	sig.WithMeta("channel_high", hi).WithMeta("channel_low", lo).WithMeta("ema50", ema50)
	return sig, nil
}

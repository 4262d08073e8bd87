package strategy

import (
	"ta-signal-bot/internal/indicators"
	"ta-signal-bot/internal/market"
)

// Candlestick-pattern family. Two-to-five bar shapes gated by trend
// filters so patterns only count where they mean something.

// insideBarContinuation trades the break of an inside bar in trend
// direction: bar N-1 fully inside bar N-2, bar N closing beyond the mother
// bar's extreme.
type insideBarContinuation struct{}

func (insideBarContinuation) ID() string { return "inside_bar_continuation" }

func (insideBarContinuation) RequiredIndicators() []string {
	return []string{indicators.EMA21, indicators.EMA50}
}

func (s insideBarContinuation) Analyze(w *market.Window, b *indicators.Bundle, p Params) (*Signal, error) {
	if w.Len() < 3 {
		return nil, nil
	}
	mother, _ := candleAt(w, 2)
	inside, _ := candleAt(w, 1)
	cur := w.Last()
	if !(inside.High < mother.High && inside.Low > mother.Low) {
		return nil, nil
	}
	ema21, ok1 := b.Latest(indicators.EMA21)
	ema50, ok2 := b.Latest(indicators.EMA50)
	if !(ok1 && ok2) {
		return nil, nil
	}

	var action Action
	switch {
	case cur.Close > mother.High && ema21 > ema50:
		action = ActionBuy
	case cur.Close < mother.Low && ema21 < ema50:
		action = ActionSell
	default:
		return nil, nil
	}

	sig := NewSignal(s.ID(), w, action, 0.62)
	sig.WithMeta("mother_high", mother.High).WithMeta("mother_low", mother.Low)
	return sig, nil
}

// hammerReversal buys a hammer at the bottom of a dip: long lower wick,
// small body near the top, after a falling stretch.
type hammerReversal struct{}

func (hammerReversal) ID() string { return "hammer_reversal" }

func (hammerReversal) RequiredIndicators() []string {
	return []string{indicators.EMA21}
}

func (s hammerReversal) Analyze(w *market.Window, b *indicators.Bundle, p Params) (*Signal, error) {
	if w.Len() < 4 {
		return nil, nil
	}
	cur := w.Last()
	body := bodySize(cur)
	rangeH := cur.High - cur.Low
	if rangeH <= 0 || body <= 0 {
		return nil, nil
	}
	wickRatio := p.Float("wick_body_ratio", 2)
	if lowerWick(cur) < body*wickRatio || upperWick(cur) > body {
		return nil, nil
	}
	// Needs something to reverse: the two preceding bars closed lower.
	p1, _ := candleAt(w, 1)
	p2, _ := candleAt(w, 2)
	if !(isBearish(p1) && isBearish(p2)) {
		return nil, nil
	}

	confidence := 0.62
	if ema21, ok := b.Latest(indicators.EMA21); ok && cur.Close < ema21 {
		// Hammer into a stretched dip below the mid EMA reverts better.
		confidence += 0.05
	}

	sig := NewSignal(s.ID(), w, ActionBuy, confidence)
	sig.WithMeta("lower_wick", lowerWick(cur)).WithMeta("body", body)
	return sig, nil
}

// foxTrap fades a false break: price pierces the recent low intra-bar and
// closes back above it, trapping the breakdown sellers.
type foxTrap struct{}

func (foxTrap) ID() string { return "fox_trap" }

func (foxTrap) RequiredIndicators() []string {
	return []string{indicators.EMA50}
}

func (s foxTrap) Analyze(w *market.Window, b *indicators.Bundle, p Params) (*Signal, error) {
	bars := p.Int("trap_bars", 10)
	hi, lo, ok := rangeHighLow(w, bars, true)
	if !ok || w.Len() < bars+2 {
		return nil, nil
	}
	cur := w.Last()
	ema50, okE := b.Latest(indicators.EMA50)
	if !okE {
		return nil, nil
	}

	var action Action
	switch {
	case cur.Low < lo && cur.Close > lo && isBullish(cur) && cur.Close > ema50:
		action = ActionBuy
	case cur.High > hi && cur.Close < hi && isBearish(cur) && cur.Close < ema50:
		action = ActionSell
	default:
		return nil, nil
	}

	sig := NewSignal(s.ID(), w, action, 0.66)
	sig.WithMeta("trap_level", map[Action]float64{ActionBuy: lo, ActionSell: hi}[action])
	return sig, nil
}

// engulfingShift trades a full-body engulfing bar against the prior bar,
// in the direction of the mid-term trend.
type engulfingShift struct{}

func (engulfingShift) ID() string { return "engulfing_shift" }

func (engulfingShift) RequiredIndicators() []string {
	return []string{indicators.EMA50}
}

func (s engulfingShift) Analyze(w *market.Window, b *indicators.Bundle, p Params) (*Signal, error) {
	if w.Len() < 2 {
		return nil, nil
	}
	prev, _ := candleAt(w, 1)
	cur := w.Last()
	ema50, okE := b.Latest(indicators.EMA50)
	if !okE {
		return nil, nil
	}

	var action Action
	switch {
	case isBearish(prev) && isBullish(cur) && cur.Open <= prev.Close && cur.Close > prev.Open && cur.Close > ema50:
		action = ActionBuy
	case isBullish(prev) && isBearish(cur) && cur.Open >= prev.Close && cur.Close < prev.Open && cur.Close < ema50:
		action = ActionSell
	default:
		return nil, nil
	}

	confidence := 0.61
	if bodySize(cur) > bodySize(prev)*1.5 {
		confidence += 0.05
	}

	sig := NewSignal(s.ID(), w, action, confidence)
	sig.WithMeta("body", bodySize(cur)).WithMeta("prev_body", bodySize(prev))
	return sig, nil
}

// shootingStarFade sells a shooting star after a run-up: long upper wick,
// small body near the low.
type shootingStarFade struct{}

func (shootingStarFade) ID() string { return "shooting_star_fade" }

func (shootingStarFade) RequiredIndicators() []string {
	return []string{indicators.EMA21}
}

func (s shootingStarFade) Analyze(w *market.Window, b *indicators.Bundle, p Params) (*Signal, error) {
	if w.Len() < 4 {
		return nil, nil
	}
	cur := w.Last()
	body := bodySize(cur)
	if body <= 0 {
		return nil, nil
	}
	wickRatio := p.Float("wick_body_ratio", 2)
	if upperWick(cur) < body*wickRatio || lowerWick(cur) > body {
		return nil, nil
	}
	p1, _ := candleAt(w, 1)
	p2, _ := candleAt(w, 2)
	if !(isBullish(p1) && isBullish(p2)) {
		return nil, nil
	}

	confidence := 0.62
	if ema21, ok := b.Latest(indicators.EMA21); ok && cur.Close > ema21 {
		confidence += 0.05
	}

	sig := NewSignal(s.ID(), w, ActionSell, confidence)
	sig.WithMeta("upper_wick", upperWick(cur)).WithMeta("body", body)
	return sig, nil
}

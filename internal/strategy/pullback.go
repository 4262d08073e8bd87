package strategy

import (
	"math"

	"ta-signal-bot/internal/indicators"
	"ta-signal-bot/internal/market"
)

// Pullback-to-trend family. An established trend plus a controlled dip into
// a moving average; confidence scales with trend quality.

// goldenTrendSync trades the first pullback after a golden cross: EMA50
// recently crossed above EMA200 and price dips to EMA21.
type goldenTrendSync struct{}

func (goldenTrendSync) ID() string { return "golden_trend_sync" }

func (goldenTrendSync) RequiredIndicators() []string {
	return []string{indicators.EMA21, indicators.EMA50, indicators.EMA200, indicators.ADX}
}

func (s goldenTrendSync) Analyze(w *market.Window, b *indicators.Bundle, p Params) (*Signal, error) {
	ema21, ok1 := b.Latest(indicators.EMA21)
	ema50, ok2 := b.Latest(indicators.EMA50)
	ema200, ok3 := b.Latest(indicators.EMA200)
	if !(ok1 && ok2 && ok3) || w.Len() == 0 {
		return nil, nil
	}

	lookback := p.Int("cross_lookback", 10)
	crossedRecently := false
	for i := 1; i <= lookback; i++ {
		e50, okA := b.At(indicators.EMA50, i)
		e200, okB := b.At(indicators.EMA200, i)
		if okA && okB && e50 <= e200 {
			crossedRecently = true
			break
		}
	}
	if !crossedRecently || ema50 <= ema200 {
		return nil, nil
	}

	cur := w.Last()
	touched := cur.Low <= ema21 && cur.Close > ema21
	if !touched {
		return nil, nil
	}

	confidence := 0.65
	if adx, ok := b.Latest(indicators.ADX); ok && adx >= 25 {
		confidence += 0.06
	}

	sig := NewSignal(s.ID(), w, ActionBuy, confidence)
	sig.WithMeta("ema21", ema21).WithMeta("ema50", ema50).WithMeta("ema200", ema200)
	return sig, nil
}

// ema21Pullback is the plain mid-EMA touch inside an aligned trend, both
// directions.
type ema21Pullback struct{}

func (ema21Pullback) ID() string { return "ema21_pullback" }

func (ema21Pullback) RequiredIndicators() []string {
	return []string{indicators.EMA21, indicators.EMA50, indicators.ADX}
}

func (s ema21Pullback) Analyze(w *market.Window, b *indicators.Bundle, p Params) (*Signal, error) {
	ema21, ok1 := b.Latest(indicators.EMA21)
	ema50, ok2 := b.Latest(indicators.EMA50)
	adx, ok3 := b.Latest(indicators.ADX)
	if !(ok1 && ok2 && ok3) || w.Len() == 0 {
		return nil, nil
	}
	if adx < p.Float("adx_min", 22) {
		return nil, nil
	}
	cur := w.Last()

	var action Action
	switch {
	case ema21 > ema50 && cur.Low <= ema21 && cur.Close > ema21 && isBullish(cur):
		action = ActionBuy
	case ema21 < ema50 && cur.High >= ema21 && cur.Close < ema21 && isBearish(cur):
		action = ActionSell
	default:
		return nil, nil
	}

	// Trend quality: EMA spread relative to price plus ADX.
	spread := math.Abs(ema21-ema50) / cur.Close
	confidence := 0.6
	if spread > 0.005 {
		confidence += 0.05
	}
	if adx >= 30 {
		confidence += 0.05
	}

	sig := NewSignal(s.ID(), w, action, confidence)
	sig.WithMeta("ema21", ema21).WithMeta("ema50", ema50).WithMeta("adx", adx).WithMeta("ema_spread", spread)
	return sig, nil
}

// trendSurfer requires a long-aligned EMA stack with a rising slope and a
// shallow dip that holds above EMA50.
type trendSurfer struct{}

func (trendSurfer) ID() string { return "trend_surfer" }

func (trendSurfer) RequiredIndicators() []string {
	return []string{indicators.EMA21, indicators.EMA50, indicators.EMA80, indicators.ADX}
}

func (s trendSurfer) Analyze(w *market.Window, b *indicators.Bundle, p Params) (*Signal, error) {
	ema21, ok1 := b.Latest(indicators.EMA21)
	ema50, ok2 := b.Latest(indicators.EMA50)
	ema80, ok3 := b.Latest(indicators.EMA80)
	if !(ok1 && ok2 && ok3) || w.Len() < 2 {
		return nil, nil
	}
	cur := w.Last()
	prev, _ := candleAt(w, 1)

	var action Action
	switch {
	case ema21 > ema50 && ema50 > ema80 && emaRising(b, indicators.EMA50, 5) &&
		prev.Close < ema21 && cur.Close > ema21 && cur.Low > ema50:
		action = ActionBuy
	case ema21 < ema50 && ema50 < ema80 && emaFalling(b, indicators.EMA50, 5) &&
		prev.Close > ema21 && cur.Close < ema21 && cur.High < ema50:
		action = ActionSell
	default:
		return nil, nil
	}

	confidence := 0.64
	if adx, ok := b.Latest(indicators.ADX); ok && adx >= 28 {
		confidence += 0.06
	}

	sig := NewSignal(s.ID(), w, action, confidence)
	sig.WithMeta("ema21", ema21).WithMeta("ema50", ema50).WithMeta("ema80", ema80)
	return sig, nil
}

// kijunBounce trades the Ichimoku base-line touch while price holds the
// cloud side of the trend.
type kijunBounce struct{}

func (kijunBounce) ID() string { return "kijun_bounce" }

func (kijunBounce) RequiredIndicators() []string {
	return []string{indicators.IchimokuTenkan, indicators.IchimokuKijun, indicators.IchimokuSenkouA, indicators.IchimokuSenkouB}
}

func (s kijunBounce) Analyze(w *market.Window, b *indicators.Bundle, p Params) (*Signal, error) {
	tenkan, ok1 := b.Latest(indicators.IchimokuTenkan)
	kijun, ok2 := b.Latest(indicators.IchimokuKijun)
	spanA, ok3 := b.Latest(indicators.IchimokuSenkouA)
	spanB, ok4 := b.Latest(indicators.IchimokuSenkouB)
	if !(ok1 && ok2 && ok3 && ok4) || w.Len() == 0 {
		return nil, nil
	}
	cloudTop := math.Max(spanA, spanB)
	cloudBottom := math.Min(spanA, spanB)
	cur := w.Last()

	var action Action
	switch {
	case cur.Close > cloudTop && tenkan > kijun && cur.Low <= kijun && cur.Close > kijun:
		action = ActionBuy
	case cur.Close < cloudBottom && tenkan < kijun && cur.High >= kijun && cur.Close < kijun:
		action = ActionSell
	default:
		return nil, nil
	}

	confidence := 0.63
	if (action == ActionBuy && spanA > spanB) || (action == ActionSell && spanA < spanB) {
		confidence += 0.05
	}

	sig := NewSignal(s.ID(), w, action, confidence)
	sig.WithMeta("tenkan", tenkan).WithMeta("kijun", kijun).WithMeta("senkou_a", spanA).WithMeta("senkou_b", spanB)
	return sig, nil
}

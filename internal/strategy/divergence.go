package strategy

import (
	"ta-signal-bot/internal/indicators"
	"ta-signal-bot/internal/market"
)

// Divergence family. Price swings disagreeing with the RSI oscillator,
// gated by a trend-side filter.

// divergencePoints finds the last two price swing lows (or highs) within
// span bars and reports their indexes, oldest first. The newer swing must
// be recent for the setup to still be live.
func divergencePoints(series []float64, span, maxAge int, lows bool) (older, newer int, ok bool) {
	var idx []int
	if lows {
		idx = localMinima(series, span)
	} else {
		idx = localMaxima(series, span)
	}
	if len(idx) < 2 {
		return 0, 0, false
	}
	older, newer = idx[len(idx)-2], idx[len(idx)-1]
	if len(series)-1-newer > maxAge {
		return 0, 0, false
	}
	return older, newer, true
}

// rsiBullDivergence: price prints a lower low while RSI prints a higher
// low. Counter-move long, requiring price above EMA200 to avoid catching
// knives in full downtrends.
type rsiBullDivergence struct{}

func (rsiBullDivergence) ID() string { return "rsi_bull_divergence" }

func (rsiBullDivergence) RequiredIndicators() []string {
	return []string{indicators.RSI, indicators.EMA200}
}

func (s rsiBullDivergence) Analyze(w *market.Window, b *indicators.Bundle, p Params) (*Signal, error) {
	rsi, okR := b.Series(indicators.RSI)
	if !okR || w.Len() < 40 {
		return nil, nil
	}
	span := p.Int("swing_span", 30)
	closes := w.Closes()
	older, newer, ok := divergencePoints(closes, span, 3, true)
	if !ok {
		return nil, nil
	}
	if !(closes[newer] < closes[older] && rsi[newer] > rsi[older]) {
		return nil, nil
	}
	if ema200, ok := b.Latest(indicators.EMA200); ok && w.LastClose() < ema200 {
		return nil, nil
	}

	confidence := 0.62
	if rsi[newer]-rsi[older] > 5 {
		confidence += 0.06
	}

	sig := NewSignal(s.ID(), w, ActionBuy, confidence)
	sig.WithMeta("rsi_low_old", rsi[older]).WithMeta("rsi_low_new", rsi[newer]).
		WithMeta("price_low_old", closes[older]).WithMeta("price_low_new", closes[newer])
	return sig, nil
}

// rsiBearDivergence is the mirror: higher price high, lower RSI high.
type rsiBearDivergence struct{}

func (rsiBearDivergence) ID() string { return "rsi_bear_divergence" }

func (rsiBearDivergence) RequiredIndicators() []string {
	return []string{indicators.RSI, indicators.EMA200}
}

func (s rsiBearDivergence) Analyze(w *market.Window, b *indicators.Bundle, p Params) (*Signal, error) {
	rsi, okR := b.Series(indicators.RSI)
	if !okR || w.Len() < 40 {
		return nil, nil
	}
	span := p.Int("swing_span", 30)
	closes := w.Closes()
	older, newer, ok := divergencePoints(closes, span, 3, false)
	if !ok {
		return nil, nil
	}
	if !(closes[newer] > closes[older] && rsi[newer] < rsi[older]) {
		return nil, nil
	}
	if ema200, ok := b.Latest(indicators.EMA200); ok && w.LastClose() > ema200 {
		return nil, nil
	}

	confidence := 0.62
	if rsi[older]-rsi[newer] > 5 {
		confidence += 0.06
	}

	sig := NewSignal(s.ID(), w, ActionSell, confidence)
	sig.WithMeta("rsi_high_old", rsi[older]).WithMeta("rsi_high_new", rsi[newer]).
		WithMeta("price_high_old", closes[older]).WithMeta("price_high_new", closes[newer])
	return sig, nil
}

// hiddenDivergenceTrend is the continuation variant: in an uptrend, price
// prints a higher low while RSI prints a lower low (and mirrored for
// downtrends). Fires with, not against, the trend.
type hiddenDivergenceTrend struct{}

func (hiddenDivergenceTrend) ID() string { return "hidden_divergence_trend" }

func (hiddenDivergenceTrend) RequiredIndicators() []string {
	return []string{indicators.RSI, indicators.EMA50, indicators.EMA200}
}

func (s hiddenDivergenceTrend) Analyze(w *market.Window, b *indicators.Bundle, p Params) (*Signal, error) {
	rsi, okR := b.Series(indicators.RSI)
	ema50, ok1 := b.Latest(indicators.EMA50)
	ema200, ok2 := b.Latest(indicators.EMA200)
	if !okR || !ok1 || !ok2 || w.Len() < 40 {
		return nil, nil
	}
	span := p.Int("swing_span", 30)
	closes := w.Closes()
	price := w.LastClose()

	if ema50 > ema200 && price > ema50 {
		older, newer, ok := divergencePoints(closes, span, 3, true)
		if ok && closes[newer] > closes[older] && rsi[newer] < rsi[older] {
			sig := NewSignal(s.ID(), w, ActionBuy, 0.64)
			sig.WithMeta("rsi_low_old", rsi[older]).WithMeta("rsi_low_new", rsi[newer])
			return sig, nil
		}
		return nil, nil
	}
	if ema50 < ema200 && price < ema50 {
		older, newer, ok := divergencePoints(closes, span, 3, false)
		if ok && closes[newer] < closes[older] && rsi[newer] > rsi[older] {
			sig := NewSignal(s.ID(), w, ActionSell, 0.64)
			sig.WithMeta("rsi_high_old", rsi[older]).WithMeta("rsi_high_new", rsi[newer])
			return sig, nil
		}
	}
	return nil, nil
}

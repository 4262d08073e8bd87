package strategy

import (
	"ta-signal-bot/internal/indicators"
	"ta-signal-bot/internal/market"
)

// Momentum / trend-following family. All five trigger on a fresh momentum
// event confirmed by trend alignment; confidence starts near 0.6 and grows
// with each extra confirmation.

// momentumPulse fires on a MACD histogram sign flip with RSI in a warm band,
// ADX above threshold and price stacked above the short and long EMAs.
type momentumPulse struct{}

func (momentumPulse) ID() string { return "momentum_pulse" }

func (momentumPulse) RequiredIndicators() []string {
	return []string{indicators.MACDHist, indicators.MACD, indicators.RSI, indicators.ADX, indicators.EMA21, indicators.EMA50}
}

func (s momentumPulse) Analyze(w *market.Window, b *indicators.Bundle, p Params) (*Signal, error) {
	rsi, ok1 := b.Latest(indicators.RSI)
	adx, ok2 := b.Latest(indicators.ADX)
	ema21, ok3 := b.Latest(indicators.EMA21)
	ema50, ok4 := b.Latest(indicators.EMA50)
	hist, ok5 := b.Latest(indicators.MACDHist)
	if !(ok1 && ok2 && ok3 && ok4 && ok5) || w.Len() == 0 {
		return nil, nil
	}

	adxMin := p.Float("adx_min", 25)
	price := w.LastClose()

	buyBand := rsi >= p.Float("rsi_buy_min", 50) && rsi <= p.Float("rsi_buy_max", 65)
	sellBand := rsi >= p.Float("rsi_sell_min", 35) && rsi <= p.Float("rsi_sell_max", 50)

	var action Action
	switch {
	case signFlippedUp(b, indicators.MACDHist) && buyBand && adx >= adxMin && price > ema21 && ema21 > ema50:
		action = ActionBuy
	case signFlippedDown(b, indicators.MACDHist) && sellBand && adx >= adxMin && price < ema21 && ema21 < ema50:
		action = ActionSell
	default:
		return nil, nil
	}

	confidence := 0.6
	if adx >= adxMin+5 {
		confidence += 0.05
	}
	if macd, ok := b.Latest(indicators.MACD); ok && ((action == ActionBuy && macd > 0) || (action == ActionSell && macd < 0)) {
		confidence += 0.05
	}
	if emaRising(b, indicators.EMA50, 3) == (action == ActionBuy) {
		confidence += 0.04
	}

	sig := NewSignal(s.ID(), w, action, confidence)
	sig.WithMeta("rsi", rsi).WithMeta("macd_hist", hist).WithMeta("adx", adx)
	return sig, nil
}

// macdRider enters on a MACD line / signal line cross in the direction of
// the EMA50 trend.
type macdRider struct{}

func (macdRider) ID() string { return "macd_rider" }

func (macdRider) RequiredIndicators() []string {
	return []string{indicators.MACD, indicators.MACDSignal, indicators.MACDHist, indicators.EMA50}
}

func (s macdRider) Analyze(w *market.Window, b *indicators.Bundle, p Params) (*Signal, error) {
	ema50, ok := b.Latest(indicators.EMA50)
	if !ok || w.Len() == 0 {
		return nil, nil
	}
	price := w.LastClose()

	var action Action
	switch {
	case crossedAbove(b, indicators.MACD, indicators.MACDSignal) && price > ema50:
		action = ActionBuy
	case crossedBelow(b, indicators.MACD, indicators.MACDSignal) && price < ema50:
		action = ActionSell
	default:
		return nil, nil
	}

	confidence := 0.62
	macd, _ := b.Latest(indicators.MACD)
	// A cross happening below (buy) or above (sell) the zero line catches
	// the move earlier; reward it.
	if (action == ActionBuy && macd < 0) || (action == ActionSell && macd > 0) {
		confidence += 0.05
	}
	hist, _ := b.Latest(indicators.MACDHist)

	sig := NewSignal(s.ID(), w, action, confidence)
	sig.WithMeta("macd", macd).WithMeta("macd_hist", hist).WithMeta("ema50", ema50)
	return sig, nil
}

// adxPowerTrend joins an established strong trend: ADX rising through a high
// threshold with the full EMA stack aligned.
type adxPowerTrend struct{}

func (adxPowerTrend) ID() string { return "adx_power_trend" }

func (adxPowerTrend) RequiredIndicators() []string {
	return []string{indicators.ADX, indicators.EMA21, indicators.EMA50, indicators.EMA200}
}

func (s adxPowerTrend) Analyze(w *market.Window, b *indicators.Bundle, p Params) (*Signal, error) {
	adx, ok1 := b.Latest(indicators.ADX)
	adxPrev, ok2 := b.At(indicators.ADX, 2)
	ema21, ok3 := b.Latest(indicators.EMA21)
	ema50, ok4 := b.Latest(indicators.EMA50)
	ema200, ok5 := b.Latest(indicators.EMA200)
	if !(ok1 && ok2 && ok3 && ok4 && ok5) || w.Len() == 0 {
		return nil, nil
	}

	adxStrong := p.Float("adx_strong", 30)
	if adx < adxStrong || adx <= adxPrev {
		return nil, nil
	}
	price := w.LastClose()

	var action Action
	switch {
	case price > ema21 && ema21 > ema50 && ema50 > ema200:
		action = ActionBuy
	case price < ema21 && ema21 < ema50 && ema50 < ema200:
		action = ActionSell
	default:
		return nil, nil
	}

	confidence := 0.65
	if adx >= adxStrong+10 {
		confidence += 0.08
	}

	sig := NewSignal(s.ID(), w, action, confidence)
	sig.WithMeta("adx", adx).WithMeta("ema21", ema21).WithMeta("ema50", ema50).WithMeta("ema200", ema200)
	return sig, nil
}

// tripleEMAStack fires when the fast EMA crosses the mid EMA while the mid
// is already above (or below) the slow one, i.e. the stack just completed.
type tripleEMAStack struct{}

func (tripleEMAStack) ID() string { return "triple_ema_stack" }

func (tripleEMAStack) RequiredIndicators() []string {
	return []string{indicators.EMA8, indicators.EMA13, indicators.EMA21, indicators.ADX}
}

func (s tripleEMAStack) Analyze(w *market.Window, b *indicators.Bundle, p Params) (*Signal, error) {
	ema13, ok1 := b.Latest(indicators.EMA13)
	ema21, ok2 := b.Latest(indicators.EMA21)
	adx, ok3 := b.Latest(indicators.ADX)
	if !(ok1 && ok2 && ok3) || w.Len() == 0 {
		return nil, nil
	}
	if adx < p.Float("adx_min", 20) {
		return nil, nil
	}

	var action Action
	switch {
	case crossedAbove(b, indicators.EMA8, indicators.EMA13) && ema13 > ema21:
		action = ActionBuy
	case crossedBelow(b, indicators.EMA8, indicators.EMA13) && ema13 < ema21:
		action = ActionSell
	default:
		return nil, nil
	}

	confidence := 0.6
	if adx >= 28 {
		confidence += 0.06
	}
	ema8, _ := b.Latest(indicators.EMA8)

	sig := NewSignal(s.ID(), w, action, confidence)
	sig.WithMeta("ema8", ema8).WithMeta("ema13", ema13).WithMeta("ema21", ema21).WithMeta("adx", adx)
	return sig, nil
}

// rsiMomentumShift fires when RSI crosses the 50 midline in the direction of
// the EMA50 trend, an early momentum-resumption tell.
type rsiMomentumShift struct{}

func (rsiMomentumShift) ID() string { return "rsi_momentum_shift" }

func (rsiMomentumShift) RequiredIndicators() []string {
	return []string{indicators.RSI, indicators.EMA50}
}

func (s rsiMomentumShift) Analyze(w *market.Window, b *indicators.Bundle, p Params) (*Signal, error) {
	rsi, ok1 := b.Latest(indicators.RSI)
	rsiPrev, ok2 := b.At(indicators.RSI, 1)
	ema50, ok3 := b.Latest(indicators.EMA50)
	if !(ok1 && ok2 && ok3) || w.Len() == 0 {
		return nil, nil
	}
	mid := p.Float("rsi_midline", 50)
	price := w.LastClose()

	var action Action
	switch {
	case rsiPrev < mid && rsi >= mid && price > ema50:
		action = ActionBuy
	case rsiPrev > mid && rsi <= mid && price < ema50:
		action = ActionSell
	default:
		return nil, nil
	}

	confidence := 0.6
	// The further RSI pushed through the midline, the cleaner the shift.
	if (action == ActionBuy && rsi >= mid+5) || (action == ActionSell && rsi <= mid-5) {
		confidence += 0.05
	}

	sig := NewSignal(s.ID(), w, action, confidence)
	sig.WithMeta("rsi", rsi).WithMeta("rsi_prev", rsiPrev).WithMeta("ema50", ema50)
	return sig, nil
}

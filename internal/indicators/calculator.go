// Package indicators computes the technical indicator bundle for one candle
// window. Each indicator is computed at most once per message, over the
// union of what the enabled strategies declare they need.
package indicators

import (
	"math"

	talib "github.com/markcheno/go-talib"

	"ta-signal-bot/internal/market"
)

// Catalog periods. Strategy thresholds are configurable per strategy; the
// series themselves use the catalog periods so one bundle serves all
// strategies on a message.
const (
	rsiPeriod      = 14
	rsi2Period     = 2
	macdFast       = 12
	macdSlow       = 26
	macdSignalLen  = 9
	adxPeriod      = 14
	atrPeriod      = 14
	bbPeriod       = 20
	bbStdDev       = 2.0
	volumeSMALen   = 20
	tenkanPeriod   = 9
	kijunPeriod    = 26
	senkouBPeriod  = 52
	senkouDisplace = 26
)

var emaPeriods = map[string]int{
	EMA8:   8,
	EMA13:  13,
	EMA21:  21,
	EMA50:  50,
	EMA80:  80,
	EMA200: 200,
}

// Calculator is stateless; Compute is a pure function of its inputs.
type Calculator struct{}

func NewCalculator() *Calculator { return &Calculator{} }

// Compute builds the bundle for the requested indicator names. An indicator
// the window is too short for is simply absent from the bundle; strategies
// must tolerate absence.
func (c *Calculator) Compute(w *market.Window, required []string) *Bundle {
	b := newBundle(w.Len())
	if w.Len() == 0 {
		return b
	}

	closes := w.Closes()
	highs := w.Highs()
	lows := w.Lows()

	want := make(map[string]bool, len(required))
	for _, name := range required {
		want[name] = true
	}

	for name, period := range emaPeriods {
		if want[name] && w.Len() >= period {
			b.put(name, talib.Ema(closes, period))
		}
	}

	if want[RSI] && w.Len() > rsiPeriod {
		b.put(RSI, talib.Rsi(closes, rsiPeriod))
	}
	if want[RSI2] && w.Len() > rsi2Period {
		b.put(RSI2, talib.Rsi(closes, rsi2Period))
	}

	if (want[MACD] || want[MACDSignal] || want[MACDHist]) && w.Len() >= macdSlow+macdSignalLen {
		macd, signal, hist := talib.Macd(closes, macdFast, macdSlow, macdSignalLen)
		b.put(MACD, macd)
		b.put(MACDSignal, signal)
		b.put(MACDHist, hist)
	}

	if want[ADX] && w.Len() >= 2*adxPeriod {
		b.put(ADX, talib.Adx(highs, lows, closes, adxPeriod))
	}
	if want[ATR] && w.Len() > atrPeriod {
		b.put(ATR, talib.Atr(highs, lows, closes, atrPeriod))
	}

	if (want[BBUpper] || want[BBMiddle] || want[BBLower]) && w.Len() >= bbPeriod {
		upper, middle, lower := talib.BBands(closes, bbPeriod, bbStdDev, bbStdDev, talib.SMA)
		b.put(BBUpper, upper)
		b.put(BBMiddle, middle)
		b.put(BBLower, lower)
	}

	if want[VolumeSMA] && w.Len() >= volumeSMALen {
		b.put(VolumeSMA, talib.Sma(w.Volumes(), volumeSMALen))
	}

	c.computeIchimoku(b, w, highs, lows, want)

	return b
}

// Ichimoku is not in talib; midpoint lines are computed directly. Senkou
// spans are displaced forward, so the value aligned at bar i was computed
// from data ending senkouDisplace bars earlier.
func (c *Calculator) computeIchimoku(b *Bundle, w *market.Window, highs, lows []float64, want map[string]bool) {
	needSpans := want[IchimokuSenkouA] || want[IchimokuSenkouB]
	needLines := want[IchimokuTenkan] || want[IchimokuKijun] || needSpans
	if !needLines {
		return
	}
	minLen := kijunPeriod
	if needSpans {
		minLen = senkouBPeriod + senkouDisplace
	}
	if w.Len() < minLen {
		return
	}

	tenkan := midpointSeries(highs, lows, tenkanPeriod)
	kijun := midpointSeries(highs, lows, kijunPeriod)
	if want[IchimokuTenkan] {
		b.put(IchimokuTenkan, tenkan)
	}
	if want[IchimokuKijun] {
		b.put(IchimokuKijun, kijun)
	}
	if !needSpans {
		return
	}

	n := len(highs)
	senkouA := nanSeries(n)
	senkouB := nanSeries(n)
	spanB := midpointSeries(highs, lows, senkouBPeriod)
	for i := senkouDisplace; i < n; i++ {
		src := i - senkouDisplace
		if !math.IsNaN(tenkan[src]) && !math.IsNaN(kijun[src]) {
			senkouA[i] = (tenkan[src] + kijun[src]) / 2
		}
		senkouB[i] = spanB[src]
	}
	if want[IchimokuSenkouA] {
		b.put(IchimokuSenkouA, senkouA)
	}
	if want[IchimokuSenkouB] {
		b.put(IchimokuSenkouB, senkouB)
	}
}

// midpointSeries is (highest high + lowest low) / 2 over a trailing period.
func midpointSeries(highs, lows []float64, period int) []float64 {
	out := nanSeries(len(highs))
	for i := period - 1; i < len(highs); i++ {
		hh := highs[i]
		ll := lows[i]
		for j := i - period + 1; j < i; j++ {
			if highs[j] > hh {
				hh = highs[j]
			}
			if lows[j] < ll {
				ll = lows[j]
			}
		}
		out[i] = (hh + ll) / 2
	}
	return out
}

func nanSeries(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

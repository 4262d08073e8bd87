package indicators

import (
	"math"
	"testing"
	"time"

	"ta-signal-bot/internal/market"
)

// trendWindow builds a contiguous uptrending window with mild oscillation
// so momentum indicators have something to chew on.
func trendWindow(t *testing.T, n int) *market.Window {
	t.Helper()
	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	candles := make([]market.Candle, n)
	for i := range candles {
		base := 100 + 0.3*float64(i) + 2*math.Sin(float64(i)/5)
		candles[i] = market.Candle{
			Symbol:    "BTCUSDT",
			Timeframe: market.TF1h,
			OpenTime:  start.Add(time.Duration(i) * time.Hour),
			Open:      base,
			High:      base + 1.5,
			Low:       base - 1.5,
			Close:     base + 0.5,
			Volume:    1000 + 10*float64(i%7),
		}
	}
	w, err := market.NewWindow("BTCUSDT", market.TF1h, candles)
	if err != nil {
		t.Fatalf("building window: %v", err)
	}
	return w
}

func TestComputeRequestedUnionOnly(t *testing.T) {
	w := trendWindow(t, 300)
	b := NewCalculator().Compute(w, []string{RSI, EMA21, ATR})

	for _, name := range []string{RSI, EMA21, ATR} {
		if !b.Has(name) {
			t.Errorf("requested indicator %s missing", name)
		}
	}
	for _, name := range []string{MACD, ADX, BBUpper, EMA200, VolumeSMA} {
		if b.Has(name) {
			t.Errorf("unrequested indicator %s present", name)
		}
	}
}

func TestComputeSeriesAlignment(t *testing.T) {
	w := trendWindow(t, 300)
	b := NewCalculator().Compute(w, []string{RSI, MACD, MACDSignal, MACDHist, ADX, BBUpper, BBMiddle, BBLower, EMA200, VolumeSMA, ATR})

	for _, name := range b.Names() {
		s, _ := b.Series(name)
		if len(s) != w.Len() {
			t.Errorf("series %s length %d, want %d", name, len(s), w.Len())
		}
	}

	// Latest values of a long window must be warmed up.
	for _, name := range []string{RSI, MACDHist, ADX, BBMiddle, EMA200, ATR} {
		if _, ok := b.Latest(name); !ok {
			t.Errorf("Latest(%s) not available on a 300-bar window", name)
		}
	}

	// RSI stays in [0, 100].
	rsi, _ := b.Series(RSI)
	for i, v := range rsi {
		if !math.IsNaN(v) && (v < 0 || v > 100) {
			t.Fatalf("rsi[%d] = %v out of range", i, v)
		}
	}

	// Bollinger ordering: lower <= middle <= upper wherever defined.
	up, _ := b.Series(BBUpper)
	mid, _ := b.Series(BBMiddle)
	lo, _ := b.Series(BBLower)
	for i := range mid {
		if math.IsNaN(mid[i]) {
			continue
		}
		if !(lo[i] <= mid[i] && mid[i] <= up[i]) {
			t.Fatalf("bollinger disorder at %d: %v %v %v", i, lo[i], mid[i], up[i])
		}
	}
}

func TestComputeShortWindowOmitsLongIndicators(t *testing.T) {
	w := trendWindow(t, 60)
	b := NewCalculator().Compute(w, []string{RSI, EMA21, EMA200, MACD, IchimokuSenkouB})

	if !b.Has(RSI) || !b.Has(EMA21) {
		t.Error("short indicators should still compute on 60 bars")
	}
	if b.Has(EMA200) {
		t.Error("EMA200 computed on a 60-bar window")
	}
	if b.Has(IchimokuSenkouB) {
		t.Error("displaced senkou B computed without enough history")
	}
}

func TestIchimokuDisplacement(t *testing.T) {
	w := trendWindow(t, 300)
	b := NewCalculator().Compute(w, []string{IchimokuTenkan, IchimokuKijun, IchimokuSenkouA, IchimokuSenkouB})

	tenkan, _ := b.Series(IchimokuTenkan)
	kijun, _ := b.Series(IchimokuKijun)
	senkouA, _ := b.Series(IchimokuSenkouA)

	// Senkou A at bar i is the tenkan/kijun midpoint from 26 bars back.
	i := 200
	want := (tenkan[i-senkouDisplace] + kijun[i-senkouDisplace]) / 2
	if math.Abs(senkouA[i]-want) > 1e-9 {
		t.Errorf("senkouA[%d] = %v, want %v", i, senkouA[i], want)
	}

	// The first displaced bars are NaN.
	for j := 0; j < senkouDisplace; j++ {
		if !math.IsNaN(senkouA[j]) {
			t.Fatalf("senkouA[%d] should be NaN during warm-up", j)
		}
	}
}

func TestBundleNaNIsAbsent(t *testing.T) {
	b := NewBundle(3)
	b.Put("x", []float64{math.NaN(), 1, math.NaN()})

	if _, ok := b.Latest("x"); ok {
		t.Error("Latest returned a NaN value as present")
	}
	if v, ok := b.At("x", 1); !ok || v != 1 {
		t.Errorf("At(x, 1) = %v, %v; want 1, true", v, ok)
	}

	// Misaligned series are rejected.
	b.Put("y", []float64{1, 2})
	if b.Has("y") {
		t.Error("misaligned series accepted into bundle")
	}
}

package strategy

import (
	"testing"
	"time"

	"ta-signal-bot/internal/indicators"
	"ta-signal-bot/internal/market"
)

// testWindow builds a contiguous 1h window climbing by step per bar.
func testWindow(t *testing.T, n int, base, step float64) *market.Window {
	t.Helper()
	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	candles := make([]market.Candle, n)
	for i := range candles {
		price := base + step*float64(i)
		candles[i] = market.Candle{
			Symbol:    "BTCUSDT",
			Timeframe: market.TF1h,
			OpenTime:  start.Add(time.Duration(i) * time.Hour),
			Open:      price,
			High:      price + 1,
			Low:       price - 1,
			Close:     price + 0.5,
			Volume:    1000,
		}
	}
	w, err := market.NewWindow("BTCUSDT", market.TF1h, candles)
	if err != nil {
		t.Fatalf("building window: %v", err)
	}
	return w
}

// flatSeries fills a constant series of length n.
func flatSeries(n int, v float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

// withLast returns a copy of s with the last values replaced, newest last.
func withLast(s []float64, tail ...float64) []float64 {
	out := make([]float64, len(s))
	copy(out, s)
	copy(out[len(out)-len(tail):], tail)
	return out
}

func TestMomentumPulseBuy(t *testing.T) {
	w := testWindow(t, 30, 100, 0.5)
	n := w.Len()
	price := w.LastClose()

	b := indicators.NewBundle(n)
	b.Put(indicators.MACDHist, withLast(flatSeries(n, -0.2), -0.1, 0.3)) // sign flip up
	b.Put(indicators.MACD, flatSeries(n, 1.2))                          // positive: +0.05
	b.Put(indicators.RSI, flatSeries(n, 58))                            // inside buy band
	b.Put(indicators.ADX, flatSeries(n, 27))                            // above 25, below 30
	b.Put(indicators.EMA21, flatSeries(n, price-2))
	b.Put(indicators.EMA50, withLast(flatSeries(n, price-4), price-4.2, price-4.1, price-4.0, price-3.9)) // rising: +0.04

	sig, err := momentumPulse{}.Analyze(w, b, nil)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if sig == nil {
		t.Fatal("expected a buy signal, got nil")
	}
	if sig.Action != ActionBuy {
		t.Errorf("action = %s, want buy", sig.Action)
	}
	// 0.6 base + 0.05 macd>0 + 0.04 ema50 rising; adx bonus needs >= 30.
	if want := 0.69; !almostEqual(sig.Confidence, want) {
		t.Errorf("confidence = %v, want %v", sig.Confidence, want)
	}
	if sig.StrategyID != "momentum_pulse" || sig.Symbol != "BTCUSDT" {
		t.Errorf("identity = %s/%s", sig.StrategyID, sig.Symbol)
	}
	if _, ok := sig.Metadata["rsi"]; !ok {
		t.Error("metadata missing rsi")
	}
}

func TestMomentumPulseNoFlipNoSignal(t *testing.T) {
	w := testWindow(t, 30, 100, 0.5)
	n := w.Len()
	price := w.LastClose()

	b := indicators.NewBundle(n)
	b.Put(indicators.MACDHist, flatSeries(n, 0.3)) // already positive, no flip
	b.Put(indicators.MACD, flatSeries(n, 1.2))
	b.Put(indicators.RSI, flatSeries(n, 58))
	b.Put(indicators.ADX, flatSeries(n, 27))
	b.Put(indicators.EMA21, flatSeries(n, price-2))
	b.Put(indicators.EMA50, flatSeries(n, price-4))

	sig, err := momentumPulse{}.Analyze(w, b, nil)
	if err != nil || sig != nil {
		t.Errorf("want (nil, nil), got (%v, %v)", sig, err)
	}
}

func TestMomentumPulseMissingIndicatorIsSilent(t *testing.T) {
	w := testWindow(t, 30, 100, 0.5)
	b := indicators.NewBundle(w.Len())
	b.Put(indicators.RSI, flatSeries(w.Len(), 58))

	sig, err := momentumPulse{}.Analyze(w, b, nil)
	if err != nil || sig != nil {
		t.Errorf("absent indicators must yield (nil, nil), got (%v, %v)", sig, err)
	}
}

func TestMomentumPulseParamsOverrideBand(t *testing.T) {
	w := testWindow(t, 30, 100, 0.5)
	n := w.Len()
	price := w.LastClose()

	b := indicators.NewBundle(n)
	b.Put(indicators.MACDHist, withLast(flatSeries(n, -0.2), -0.1, 0.3))
	b.Put(indicators.MACD, flatSeries(n, 1.2))
	b.Put(indicators.RSI, flatSeries(n, 58))
	b.Put(indicators.ADX, flatSeries(n, 27))
	b.Put(indicators.EMA21, flatSeries(n, price-2))
	b.Put(indicators.EMA50, flatSeries(n, price-4))

	// Same window, tighter band from config: RSI 58 is now outside it.
	p := Params{"rsi_buy_max": 55.0}
	sig, err := momentumPulse{}.Analyze(w, b, p)
	if err != nil || sig != nil {
		t.Errorf("override band should suppress the signal, got (%v, %v)", sig, err)
	}
}

func TestMACDRiderCross(t *testing.T) {
	w := testWindow(t, 30, 100, 0.5)
	n := w.Len()
	price := w.LastClose()

	b := indicators.NewBundle(n)
	b.Put(indicators.MACD, withLast(flatSeries(n, -1), -0.5, 0.2))       // crosses signal
	b.Put(indicators.MACDSignal, withLast(flatSeries(n, -0.3), -0.3, 0)) // from below
	b.Put(indicators.MACDHist, flatSeries(n, 0.2))
	b.Put(indicators.EMA50, flatSeries(n, price-3))

	sig, err := macdRider{}.Analyze(w, b, nil)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if sig == nil || sig.Action != ActionBuy {
		t.Fatalf("expected buy, got %+v", sig)
	}
	// Cross above the zero line: base 0.62, no early-entry bonus.
	if want := 0.62; !almostEqual(sig.Confidence, want) {
		t.Errorf("confidence = %v, want %v", sig.Confidence, want)
	}
}

func TestBollingerSqueezeHoldsOnly(t *testing.T) {
	w := testWindow(t, 30, 100, 0)
	n := w.Len()

	b := indicators.NewBundle(n)
	b.Put(indicators.BBMiddle, flatSeries(n, 100))
	b.Put(indicators.BBUpper, flatSeries(n, 101)) // width 2/100 = 0.02
	b.Put(indicators.BBLower, flatSeries(n, 99))

	sig, err := bollingerSqueezeAlert{}.Analyze(w, b, nil)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if sig == nil || sig.Action != ActionHold {
		t.Fatalf("expected hold, got %+v", sig)
	}
	if sig.Metadata["regime"] != "squeeze" {
		t.Errorf("regime metadata = %v", sig.Metadata["regime"])
	}

	// Wide bands: no alert.
	b.Put(indicators.BBUpper, flatSeries(n, 105))
	b.Put(indicators.BBLower, flatSeries(n, 95))
	if sig, _ := (bollingerSqueezeAlert{}).Analyze(w, b, nil); sig != nil {
		t.Errorf("wide bands produced %+v", sig)
	}
}

func TestParamsAccessorsAndMerge(t *testing.T) {
	p := Params{"f": 1.5, "i": float64(7), "b": true}

	if got := p.Float("f", 0); got != 1.5 {
		t.Errorf("Float = %v", got)
	}
	if got := p.Float("missing", 2.5); got != 2.5 {
		t.Errorf("Float default = %v", got)
	}
	if got := p.Int("i", 0); got != 7 {
		t.Errorf("Int from json float = %v", got)
	}
	if got := p.Bool("b", false); !got {
		t.Error("Bool = false")
	}
	if got := p.Bool("f", false); got {
		t.Error("mistyped Bool should fall back to default")
	}
	var nilParams Params
	if got := nilParams.Float("f", 9); got != 9 {
		t.Errorf("nil Params Float = %v", got)
	}

	merged := p.Merge(Params{"f": 3.0, "extra": "x"})
	if merged.Float("f", 0) != 3.0 || merged["extra"] != "x" || merged.Int("i", 0) != 7 {
		t.Errorf("Merge result: %v", merged)
	}
	if p.Float("f", 0) != 1.5 {
		t.Error("Merge mutated the receiver")
	}
}

func almostEqual(a, b float64) bool {
	d := a - b
	if d < 0 {
		d = -d
	}
	return d < 1e-9
}

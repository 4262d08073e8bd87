package indicators

import "math"

// Indicator names form a closed set. Strategies declare dependencies with
// these constants and the calculator computes the union once per message.
const (
	RSI             = "rsi"
	RSI2            = "rsi2"
	MACD            = "macd"
	MACDSignal      = "macd_signal"
	MACDHist        = "macd_hist"
	ADX             = "adx"
	EMA8            = "ema8"
	EMA13           = "ema13"
	EMA21           = "ema21"
	EMA50           = "ema50"
	EMA80           = "ema80"
	EMA200          = "ema200"
	BBUpper         = "bb_upper"
	BBMiddle        = "bb_middle"
	BBLower         = "bb_lower"
	ATR             = "atr"
	IchimokuTenkan  = "ichimoku_tenkan"
	IchimokuKijun   = "ichimoku_kijun"
	IchimokuSenkouA = "ichimoku_senkou_a"
	IchimokuSenkouB = "ichimoku_senkou_b"
	VolumeSMA       = "volume_sma"
)

// Bundle holds indicator series computed over one candle window. Every
// present series is aligned index-for-index with the window. A bundle is
// built once per message and discarded afterwards.
//
// Scalar vs series access is explicit: Latest for the newest value, Series
// for the aligned vector. There is no boolean view of a series.
type Bundle struct {
	series map[string][]float64
	n      int // window length, for alignment checks
}

func newBundle(n int) *Bundle {
	return &Bundle{series: make(map[string][]float64), n: n}
}

// NewBundle creates an empty bundle for a window of n bars. Callers that
// already hold computed series (replays, fixtures) add them with Put.
func NewBundle(n int) *Bundle { return newBundle(n) }

// Put stores a series aligned with the window. Series of the wrong length
// are silently ignored; the bundle never holds misaligned data.
func (b *Bundle) Put(name string, values []float64) { b.put(name, values) }

func (b *Bundle) put(name string, values []float64) {
	if len(values) != b.n {
		return
	}
	b.series[name] = values
}

// Has reports whether the named indicator was computable for this window.
func (b *Bundle) Has(name string) bool {
	_, ok := b.series[name]
	return ok
}

// Series returns the full aligned series for name.
func (b *Bundle) Series(name string) ([]float64, bool) {
	s, ok := b.series[name]
	return s, ok
}

// Latest returns the newest value of name. NaN counts as absent.
func (b *Bundle) Latest(name string) (float64, bool) {
	s, ok := b.series[name]
	if !ok || len(s) == 0 {
		return 0, false
	}
	v := s[len(s)-1]
	if math.IsNaN(v) {
		return 0, false
	}
	return v, true
}

// At returns the value of name at offset bars back from the end (0 = latest).
func (b *Bundle) At(name string, offset int) (float64, bool) {
	s, ok := b.series[name]
	if !ok || offset < 0 || offset >= len(s) {
		return 0, false
	}
	v := s[len(s)-1-offset]
	if math.IsNaN(v) {
		return 0, false
	}
	return v, true
}

// Tail returns the last n values of name, oldest first.
func (b *Bundle) Tail(name string, n int) ([]float64, bool) {
	s, ok := b.series[name]
	if !ok || len(s) < n {
		return nil, false
	}
	return s[len(s)-n:], true
}

// Names returns the names present in the bundle.
func (b *Bundle) Names() []string {
	out := make([]string, 0, len(b.series))
	for name := range b.series {
		out = append(out, name)
	}
	return out
}

package market

import (
	"errors"
	"fmt"
)

// ErrGappedWindow is returned when a window has a hole in its open_time
// sequence. Gaps are a data-quality problem upstream, not a reason to crash.
var ErrGappedWindow = errors.New("candle window has gaps")

// Window is an ordered run of candles for one (symbol, timeframe),
// strictly increasing open_time.
type Window struct {
	Symbol    string
	Timeframe Timeframe
	Candles   []Candle
}

// NewWindow validates ordering and contiguity and returns the window.
// Gap detection tolerates the 1M timeframe's irregular length.
func NewWindow(symbol string, tf Timeframe, candles []Candle) (*Window, error) {
	w := &Window{Symbol: symbol, Timeframe: tf, Candles: candles}
	period := tf.Duration()
	for i, c := range candles {
		if c.Symbol != symbol || c.Timeframe != tf {
			return nil, fmt.Errorf("window %s/%s: candle %d belongs to %s/%s", symbol, tf, i, c.Symbol, c.Timeframe)
		}
		if i == 0 {
			continue
		}
		prev := candles[i-1]
		if !c.OpenTime.After(prev.OpenTime) {
			return nil, fmt.Errorf("window %s/%s: open_time not strictly increasing at index %d", symbol, tf, i)
		}
		if tf != TF1M && c.OpenTime.Sub(prev.OpenTime) != period {
			return nil, fmt.Errorf("%w: %s/%s between %s and %s", ErrGappedWindow,
				symbol, tf, prev.OpenTime.UTC(), c.OpenTime.UTC())
		}
	}
	return w, nil
}

// Len returns the number of candles in the window.
func (w *Window) Len() int { return len(w.Candles) }

// Last returns the most recent candle. Callers must check Len first.
func (w *Window) Last() Candle { return w.Candles[len(w.Candles)-1] }

// LastClose is the close of the most recent candle, or 0 on an empty window.
func (w *Window) LastClose() float64 {
	if len(w.Candles) == 0 {
		return 0
	}
	return w.Candles[len(w.Candles)-1].Close
}

// Closes returns the close series aligned with Candles.
func (w *Window) Closes() []float64 {
	out := make([]float64, len(w.Candles))
	for i, c := range w.Candles {
		out[i] = c.Close
	}
	return out
}

// Highs returns the high series aligned with Candles.
func (w *Window) Highs() []float64 {
	out := make([]float64, len(w.Candles))
	for i, c := range w.Candles {
		out[i] = c.High
	}
	return out
}

// Lows returns the low series aligned with Candles.
func (w *Window) Lows() []float64 {
	out := make([]float64, len(w.Candles))
	for i, c := range w.Candles {
		out[i] = c.Low
	}
	return out
}

// Volumes returns the volume series aligned with Candles.
func (w *Window) Volumes() []float64 {
	out := make([]float64, len(w.Candles))
	for i, c := range w.Candles {
		out[i] = c.Volume
	}
	return out
}

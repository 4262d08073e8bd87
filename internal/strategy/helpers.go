package strategy

import (
	"ta-signal-bot/internal/indicators"
	"ta-signal-bot/internal/market"
)

// signFlippedUp reports a negative-to-positive transition of the named
// series on the latest bar.
func signFlippedUp(b *indicators.Bundle, name string) bool {
	prev, ok1 := b.At(name, 1)
	cur, ok2 := b.At(name, 0)
	return ok1 && ok2 && prev <= 0 && cur > 0
}

// signFlippedDown reports a positive-to-negative transition of the named
// series on the latest bar.
func signFlippedDown(b *indicators.Bundle, name string) bool {
	prev, ok1 := b.At(name, 1)
	cur, ok2 := b.At(name, 0)
	return ok1 && ok2 && prev >= 0 && cur < 0
}

// crossedAbove reports that series a closed above series b on the latest
// bar after being at or below it on the previous bar.
func crossedAbove(b *indicators.Bundle, a, other string) bool {
	aPrev, ok1 := b.At(a, 1)
	oPrev, ok2 := b.At(other, 1)
	aCur, ok3 := b.At(a, 0)
	oCur, ok4 := b.At(other, 0)
	return ok1 && ok2 && ok3 && ok4 && aPrev <= oPrev && aCur > oCur
}

// crossedBelow is the mirror of crossedAbove.
func crossedBelow(b *indicators.Bundle, a, other string) bool {
	aPrev, ok1 := b.At(a, 1)
	oPrev, ok2 := b.At(other, 1)
	aCur, ok3 := b.At(a, 0)
	oCur, ok4 := b.At(other, 0)
	return ok1 && ok2 && ok3 && ok4 && aPrev >= oPrev && aCur < oCur
}

// emasRising reports that the named EMA increased over the last bars.
func emaRising(b *indicators.Bundle, name string, bars int) bool {
	old, ok1 := b.At(name, bars)
	cur, ok2 := b.At(name, 0)
	return ok1 && ok2 && cur > old
}

func emaFalling(b *indicators.Bundle, name string, bars int) bool {
	old, ok1 := b.At(name, bars)
	cur, ok2 := b.At(name, 0)
	return ok1 && ok2 && cur < old
}

// rangeHighLow returns the highest high and lowest low over the last bars
// candles, excluding the latest one when excludeLast is set (breakouts
// compare the current close against the prior range).
func rangeHighLow(w *market.Window, bars int, excludeLast bool) (hi, lo float64, ok bool) {
	n := w.Len()
	end := n
	if excludeLast {
		end = n - 1
	}
	start := end - bars
	if start < 0 || end <= start {
		return 0, 0, false
	}
	hi = w.Candles[start].High
	lo = w.Candles[start].Low
	for i := start + 1; i < end; i++ {
		if w.Candles[i].High > hi {
			hi = w.Candles[i].High
		}
		if w.Candles[i].Low < lo {
			lo = w.Candles[i].Low
		}
	}
	return hi, lo, true
}

// candleAt returns the candle offset bars back from the end (0 = latest).
func candleAt(w *market.Window, offset int) (market.Candle, bool) {
	idx := w.Len() - 1 - offset
	if idx < 0 {
		return market.Candle{}, false
	}
	return w.Candles[idx], true
}

// bodySize returns the absolute body height of a candle.
func bodySize(c market.Candle) float64 {
	if c.Close >= c.Open {
		return c.Close - c.Open
	}
	return c.Open - c.Close
}

func isBullish(c market.Candle) bool { return c.Close > c.Open }
func isBearish(c market.Candle) bool { return c.Close < c.Open }

// lowerWick is the distance from the body bottom to the low.
func lowerWick(c market.Candle) float64 {
	bodyLow := c.Open
	if c.Close < c.Open {
		bodyLow = c.Close
	}
	return bodyLow - c.Low
}

// upperWick is the distance from the high to the body top.
func upperWick(c market.Candle) float64 {
	bodyHigh := c.Close
	if c.Open > c.Close {
		bodyHigh = c.Open
	}
	return c.High - bodyHigh
}

// localMinima returns indexes of bars that are strict lows against their
// neighbours within the last span bars of the series, oldest first.
func localMinima(series []float64, span int) []int {
	var out []int
	start := len(series) - span
	if start < 1 {
		start = 1
	}
	for i := start; i < len(series)-1; i++ {
		if series[i] < series[i-1] && series[i] < series[i+1] {
			out = append(out, i)
		}
	}
	return out
}

// localMaxima is the mirror of localMinima.
func localMaxima(series []float64, span int) []int {
	var out []int
	start := len(series) - span
	if start < 1 {
		start = 1
	}
	for i := start; i < len(series)-1; i++ {
		if series[i] > series[i-1] && series[i] > series[i+1] {
			out = append(out, i)
		}
	}
	return out
}

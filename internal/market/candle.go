package market

import (
	"fmt"
	"time"
)

// Candle is one completed OHLCV bar. Values are immutable once decoded.
type Candle struct {
	Symbol    string    `json:"symbol"`
	Timeframe Timeframe `json:"timeframe"`
	OpenTime  time.Time `json:"open_time"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`

	// Trigger marks a close notification that carries no OHLCV of its
	// own: only routing plus the open time of the bar that just closed.
	// The bar itself is read back from storage.
	Trigger bool `json:"-"`
}

// Validate checks the OHLCV invariants: low <= open,close <= high, volume >= 0.
func (c Candle) Validate() error {
	if c.Symbol == "" {
		return fmt.Errorf("candle: empty symbol")
	}
	if !c.Timeframe.Valid() {
		return fmt.Errorf("candle: invalid timeframe %q", c.Timeframe)
	}
	if c.Open < 0 || c.High < 0 || c.Low < 0 || c.Close < 0 {
		return fmt.Errorf("candle %s %s: negative price", c.Symbol, c.OpenTime.Format(time.RFC3339))
	}
	if c.Volume < 0 {
		return fmt.Errorf("candle %s %s: negative volume", c.Symbol, c.OpenTime.Format(time.RFC3339))
	}
	if c.Low > c.Open || c.Low > c.Close || c.High < c.Open || c.High < c.Close {
		return fmt.Errorf("candle %s %s: OHLC out of range (o=%v h=%v l=%v c=%v)",
			c.Symbol, c.OpenTime.Format(time.RFC3339), c.Open, c.High, c.Low, c.Close)
	}
	return nil
}

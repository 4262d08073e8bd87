// Package bus defines the Redis stream layout and wire payloads shared by
// the candle listener and the signal publisher.
package bus

import (
	"encoding/json"
	"fmt"
	"time"

	"ta-signal-bot/internal/market"
)

// Stream names and the consumer group the bot reads with. Multiple bot
// replicas in the same group split the candle stream between them.
const (
	CandleStream  = "ta:candles"
	SignalStream  = "ta:signals"
	ConsumerGroup = "ta-bot"

	// PayloadField is the stream entry field carrying the JSON document.
	PayloadField = "payload"
)

// candleEnvelope is the nested inbound shape: candle fields under a
// "candle" key next to the routing fields.
type candleEnvelope struct {
	Symbol    string          `json:"symbol"`
	Timeframe string          `json:"timeframe"`
	Candle    json.RawMessage `json:"candle"`
}

// flatCandle is the flat inbound shape, with a few producer dialects for
// the timeframe and timestamp keys. A payload carrying close_time but no
// open_time is a bar-close trigger without OHLCV.
type flatCandle struct {
	Symbol    string  `json:"symbol"`
	Timeframe string  `json:"timeframe"`
	Period    string  `json:"period"`
	Interval  string  `json:"interval"`
	OpenTime  int64   `json:"open_time"`
	Timestamp int64   `json:"timestamp"`
	CloseTime int64   `json:"close_time"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    float64 `json:"volume"`
}

func (f *flatCandle) timeframe() string {
	switch {
	case f.Timeframe != "":
		return f.Timeframe
	case f.Period != "":
		return f.Period
	default:
		return f.Interval
	}
}

func (f *flatCandle) openTime() int64 {
	if f.OpenTime != 0 {
		return f.OpenTime
	}
	return f.Timestamp
}

// DecodeCandleEvent parses an inbound candle message. Producers publish
// two shapes: the candle nested under a "candle" key, or all fields flat
// at the top level. A third form is the bar-close trigger, routing fields
// plus close_time only, which decodes to a Candle with Trigger set.
// Millisecond epoch timestamps are the wire format for all timestamps.
func DecodeCandleEvent(raw []byte) (market.Candle, error) {
	var c market.Candle

	var env candleEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return c, fmt.Errorf("malformed candle event: %w", err)
	}

	if len(env.Candle) > 0 {
		var flat flatCandle
		if err := json.Unmarshal(env.Candle, &flat); err != nil {
			return c, fmt.Errorf("malformed nested candle: %w", err)
		}
		flat.Symbol = env.Symbol
		if flat.timeframe() == "" {
			flat.Timeframe = env.Timeframe
		}
		return flat.toCandle()
	}

	var flat flatCandle
	if err := json.Unmarshal(raw, &flat); err != nil {
		return c, fmt.Errorf("malformed candle event: %w", err)
	}
	return flat.toCandle()
}

func (f *flatCandle) toCandle() (market.Candle, error) {
	tf := market.Timeframe(f.timeframe())
	if f.Symbol == "" {
		return market.Candle{}, fmt.Errorf("candle event missing symbol")
	}
	if !tf.Valid() {
		return market.Candle{}, fmt.Errorf("candle event has invalid timeframe %q", f.timeframe())
	}

	if f.openTime() == 0 {
		if f.CloseTime > 0 {
			// Bar-close trigger: derive the closed bar's open time and
			// leave the OHLCV to the history fetch.
			return market.Candle{
				Symbol:    f.Symbol,
				Timeframe: tf,
				OpenTime:  time.UnixMilli(f.CloseTime).UTC().Add(-tf.Duration()),
				Trigger:   true,
			}, nil
		}
		return market.Candle{}, fmt.Errorf("candle event missing open_time")
	}

	c := market.Candle{
		Symbol:    f.Symbol,
		Timeframe: tf,
		OpenTime:  time.UnixMilli(f.openTime()).UTC(),
		Open:      f.Open,
		High:      f.High,
		Low:       f.Low,
		Close:     f.Close,
		Volume:    f.Volume,
	}
	if err := c.Validate(); err != nil {
		return c, fmt.Errorf("candle event rejected: %w", err)
	}
	return c, nil
}

// EncodeCandleEvent renders a candle in the flat wire shape, used by tests
// and the replay tooling.
func EncodeCandleEvent(c market.Candle) ([]byte, error) {
	return json.Marshal(flatCandle{
		Symbol:    c.Symbol,
		Timeframe: string(c.Timeframe),
		OpenTime:  c.OpenTime.UnixMilli(),
		Open:      c.Open,
		High:      c.High,
		Low:       c.Low,
		Close:     c.Close,
		Volume:    c.Volume,
	})
}

package bus

import (
	"testing"
	"time"

	"ta-signal-bot/internal/market"
)

func TestDecodeCandleEventFlat(t *testing.T) {
	raw := []byte(`{
		"symbol": "BTCUSDT",
		"timeframe": "1h",
		"open_time": 1748736000000,
		"open": 104000.5,
		"high": 104500,
		"low": 103800,
		"close": 104250.25,
		"volume": 321.5
	}`)

	c, err := DecodeCandleEvent(raw)
	if err != nil {
		t.Fatalf("DecodeCandleEvent: %v", err)
	}
	if c.Symbol != "BTCUSDT" || c.Timeframe != market.TF1h {
		t.Errorf("routing = %s/%s, want BTCUSDT/1h", c.Symbol, c.Timeframe)
	}
	if want := time.UnixMilli(1748736000000).UTC(); !c.OpenTime.Equal(want) {
		t.Errorf("OpenTime = %v, want %v", c.OpenTime, want)
	}
	if c.Close != 104250.25 {
		t.Errorf("Close = %v, want 104250.25", c.Close)
	}
}

func TestDecodeCandleEventNested(t *testing.T) {
	raw := []byte(`{
		"symbol": "ETHUSDT",
		"timeframe": "15m",
		"candle": {
			"timestamp": 1748736000000,
			"open": 2500, "high": 2520, "low": 2490, "close": 2510, "volume": 88
		}
	}`)

	c, err := DecodeCandleEvent(raw)
	if err != nil {
		t.Fatalf("DecodeCandleEvent: %v", err)
	}
	if c.Symbol != "ETHUSDT" || c.Timeframe != market.TF15m {
		t.Errorf("routing = %s/%s, want ETHUSDT/15m", c.Symbol, c.Timeframe)
	}
	if c.Open != 2500 || c.Volume != 88 {
		t.Errorf("candle fields not taken from nested document: %+v", c)
	}
}

func TestDecodeCandleEventDialects(t *testing.T) {
	// "period" and "interval" are accepted as timeframe keys.
	for _, key := range []string{"timeframe", "period", "interval"} {
		raw := []byte(`{"symbol":"BTCUSDT","` + key + `":"1h","open_time":1748736000000,` +
			`"open":1,"high":2,"low":1,"close":2,"volume":1}`)
		c, err := DecodeCandleEvent(raw)
		if err != nil {
			t.Errorf("key %q: %v", key, err)
			continue
		}
		if c.Timeframe != market.TF1h {
			t.Errorf("key %q: timeframe = %q", key, c.Timeframe)
		}
	}
}

func TestDecodeCandleEventCloseTrigger(t *testing.T) {
	raw := []byte(`{"symbol":"BTCUSDT","timeframe":"1h","close_time":1756000800000}`)

	c, err := DecodeCandleEvent(raw)
	if err != nil {
		t.Fatalf("DecodeCandleEvent: %v", err)
	}
	if !c.Trigger {
		t.Error("close-only notification not marked as trigger")
	}
	if c.Symbol != "BTCUSDT" || c.Timeframe != market.TF1h {
		t.Errorf("routing = %s/%s, want BTCUSDT/1h", c.Symbol, c.Timeframe)
	}
	// The closed bar opened one period before it closed.
	if want := time.UnixMilli(1756000800000).UTC().Add(-time.Hour); !c.OpenTime.Equal(want) {
		t.Errorf("OpenTime = %v, want %v", c.OpenTime, want)
	}
	if c.Open != 0 || c.High != 0 || c.Low != 0 || c.Close != 0 || c.Volume != 0 {
		t.Errorf("trigger carried OHLCV values: %+v", c)
	}
}

func TestDecodeCandleEventOpenTimeWinsOverCloseTime(t *testing.T) {
	// A full candle that also carries close_time is still a full candle.
	raw := []byte(`{"symbol":"BTCUSDT","timeframe":"1h","open_time":1748736000000,` +
		`"close_time":1748739600000,"open":1,"high":2,"low":1,"close":2,"volume":1}`)

	c, err := DecodeCandleEvent(raw)
	if err != nil {
		t.Fatalf("DecodeCandleEvent: %v", err)
	}
	if c.Trigger {
		t.Error("full candle marked as trigger")
	}
	if want := time.UnixMilli(1748736000000).UTC(); !c.OpenTime.Equal(want) {
		t.Errorf("OpenTime = %v, want %v", c.OpenTime, want)
	}
}

func TestDecodeCandleEventRejects(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"not json", `{{{`},
		{"missing symbol", `{"timeframe":"1h","open_time":1,"open":1,"high":2,"low":1,"close":2,"volume":1}`},
		{"bad timeframe", `{"symbol":"BTCUSDT","timeframe":"7m","open_time":1,"open":1,"high":2,"low":1,"close":2,"volume":1}`},
		{"missing open_time", `{"symbol":"BTCUSDT","timeframe":"1h","open":1,"high":2,"low":1,"close":2,"volume":1}`},
		{"trigger missing symbol", `{"timeframe":"1h","close_time":1756000800000}`},
		{"trigger bad timeframe", `{"symbol":"BTCUSDT","timeframe":"7m","close_time":1756000800000}`},
		{"inverted ohlc", `{"symbol":"BTCUSDT","timeframe":"1h","open_time":1,"open":5,"high":2,"low":1,"close":2,"volume":1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := DecodeCandleEvent([]byte(tt.raw)); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	in := market.Candle{
		Symbol:    "ADAUSDT",
		Timeframe: market.TF15m,
		OpenTime:  time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		Open:      0.45, High: 0.47, Low: 0.44, Close: 0.46, Volume: 120000,
	}
	raw, err := EncodeCandleEvent(in)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	out, err := DecodeCandleEvent(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out != in {
		t.Errorf("round trip changed candle:\n in %+v\nout %+v", in, out)
	}
}

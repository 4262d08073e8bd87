package strategy

import (
	"testing"

	"ta-signal-bot/internal/indicators"
)

func TestRegistryCatalog(t *testing.T) {
	reg := NewRegistry()
	ids := reg.IDs()

	if len(ids) != 28 {
		t.Errorf("catalog size = %d, want 28", len(ids))
	}

	seen := make(map[string]bool)
	for _, id := range ids {
		if seen[id] {
			t.Errorf("duplicate strategy id %q", id)
		}
		seen[id] = true

		s, ok := reg.Get(id)
		if !ok {
			t.Fatalf("Get(%q) missing", id)
		}
		if s.ID() != id {
			t.Errorf("Get(%q).ID() = %q", id, s.ID())
		}
	}

	if reg.Known("no_such_strategy") {
		t.Error("Known accepted an unregistered id")
	}
}

func TestRegistrySelectSkipsUnknown(t *testing.T) {
	reg := NewRegistry()
	got := reg.Select([]string{"momentum_pulse", "bogus", "rsi2_extreme_reversal"})
	if len(got) != 2 {
		t.Fatalf("Select returned %d strategies, want 2", len(got))
	}
}

func TestRequiredUnionDeduplicates(t *testing.T) {
	reg := NewRegistry()
	strategies := reg.Select([]string{"momentum_pulse", "macd_rider", "adx_power_trend"})
	union := RequiredUnion(strategies)

	seen := make(map[string]bool)
	for _, name := range union {
		if seen[name] {
			t.Errorf("union contains %q twice", name)
		}
		seen[name] = true
	}
	// MACD appears in several momentum strategies but once in the union.
	if !seen[indicators.MACD] {
		t.Error("union missing macd")
	}
}

func TestStrengthBands(t *testing.T) {
	tests := []struct {
		confidence float64
		want       Strength
	}{
		{0.95, StrengthStrong},
		{0.85, StrengthStrong},
		{0.84, StrengthMedium},
		{0.70, StrengthMedium},
		{0.69, StrengthWeak},
		{0.0, StrengthWeak},
	}
	for _, tt := range tests {
		if got := StrengthFor(tt.confidence); got != tt.want {
			t.Errorf("StrengthFor(%v) = %s, want %s", tt.confidence, got, tt.want)
		}
	}
}

func TestNewSignalDefaults(t *testing.T) {
	w := testWindow(t, 30, 100, 0.5)
	sig := NewSignal("momentum_pulse", w, ActionBuy, 1.4)

	if sig.SignalID == "" {
		t.Error("signal id not assigned")
	}
	if sig.Confidence != 1 {
		t.Errorf("confidence not clamped: %v", sig.Confidence)
	}
	if sig.Source != SourceName || sig.StrategyMode != ModeDeterministic {
		t.Errorf("source/mode = %q/%q", sig.Source, sig.StrategyMode)
	}
	if sig.CurrentPrice != sig.Price || sig.Price != w.LastClose() {
		t.Errorf("price fields: current=%v price=%v lastClose=%v", sig.CurrentPrice, sig.Price, w.LastClose())
	}
	if sig.OrderType != "market" || sig.TimeInForce != "GTC" {
		t.Errorf("order defaults: %q/%q", sig.OrderType, sig.TimeInForce)
	}
	if sig.Strength != StrengthStrong {
		t.Errorf("strength = %s, want strong for clamped 1.0", sig.Strength)
	}
}

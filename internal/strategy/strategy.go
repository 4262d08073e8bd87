// Package strategy holds the deterministic rule strategies. A strategy is a
// pure function from (window, indicator bundle, params) to at most one
// signal; it performs no I/O and keeps no state between calls.
package strategy

import (
	"time"

	"github.com/google/uuid"

	"ta-signal-bot/internal/indicators"
	"ta-signal-bot/internal/market"
)

// Action is the trade direction carried by a signal. Hold signals are
// diagnostic only and are dropped by the engine before publication.
type Action string

const (
	ActionBuy  Action = "buy"
	ActionSell Action = "sell"
	ActionHold Action = "hold"
)

// Strength is the discretization of confidence.
type Strength string

const (
	StrengthWeak   Strength = "weak"
	StrengthMedium Strength = "medium"
	StrengthStrong Strength = "strong"
)

// StrengthFor maps a confidence value onto its strength band.
func StrengthFor(confidence float64) Strength {
	switch {
	case confidence >= 0.85:
		return StrengthStrong
	case confidence >= 0.7:
		return StrengthMedium
	default:
		return StrengthWeak
	}
}

const (
	// SourceName identifies this service in every published signal.
	SourceName = "ta_bot"
	// ModeDeterministic is the strategy_mode for all rule strategies.
	ModeDeterministic = "deterministic"
)

// Signal is the structured output of a strategy run. StopLoss/TakeProfit of
// zero mean "unset"; the engine computes defaults in that case and flags it
// in metadata.
type Signal struct {
	SignalID        string                 `json:"signal_id"`
	StrategyID      string                 `json:"strategy_id"`
	Symbol          string                 `json:"symbol"`
	Timeframe       string                 `json:"timeframe"`
	Action          Action                 `json:"action"`
	Confidence      float64                `json:"confidence"`
	CurrentPrice    float64                `json:"current_price"`
	Price           float64                `json:"price"`
	StopLoss        float64                `json:"stop_loss,omitempty"`
	TakeProfit      float64                `json:"take_profit,omitempty"`
	StrategyMode    string                 `json:"strategy_mode"`
	Strength        Strength               `json:"strength"`
	Quantity        float64                `json:"quantity"`
	OrderType       string                 `json:"order_type"`
	TimeInForce     string                 `json:"time_in_force"`
	PositionSizePct float64                `json:"position_size_pct"`
	Source          string                 `json:"source"`
	Metadata        map[string]interface{} `json:"metadata"`
	Timestamp       time.Time              `json:"timestamp"`
}

// NewSignal builds a signal with the standard defaults filled in. Strategies
// decide action, confidence and metadata; risk bounds are optional.
func NewSignal(strategyID string, w *market.Window, action Action, confidence float64) *Signal {
	price := w.LastClose()
	return &Signal{
		SignalID:        uuid.New().String(),
		StrategyID:      strategyID,
		Symbol:          w.Symbol,
		Timeframe:       string(w.Timeframe),
		Action:          action,
		Confidence:      clamp01(confidence),
		CurrentPrice:    price,
		Price:           price,
		StrategyMode:    ModeDeterministic,
		Strength:        StrengthFor(clamp01(confidence)),
		OrderType:       "market",
		TimeInForce:     "GTC",
		PositionSizePct: 0.1,
		Source:          SourceName,
		Metadata:        make(map[string]interface{}),
		Timestamp:       time.Now().UTC(),
	}
}

// WithMeta attaches a metadata entry and returns the signal for chaining.
func (s *Signal) WithMeta(key string, value interface{}) *Signal {
	s.Metadata[key] = value
	return s
}

// Strategy is the contract every rule strategy implements.
type Strategy interface {
	// ID returns the stable strategy identifier, e.g. "momentum_pulse".
	ID() string

	// RequiredIndicators declares which bundle entries Analyze reads.
	RequiredIndicators() []string

	// Analyze inspects the window and bundle and returns at most one
	// signal. Returning (nil, nil) is the norm. Analyze must tolerate
	// missing indicators and short windows.
	Analyze(w *market.Window, b *indicators.Bundle, p Params) (*Signal, error)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Package configstore is the canonical source of runtime configuration:
// the versioned application config, per-strategy parameter bundles with
// per-symbol overrides, and the append-only audit trail. Reads fall back
// through a store chain; writes go to the first store that takes them.
package configstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"ta-signal-bot/internal/strategy"
)

// ErrNotFound is returned by stores when a config document does not exist.
var ErrNotFound = errors.New("config not found")

// ScopeGlobal is the scope of a strategy's default parameter bundle; any
// other scope is a symbol override.
const ScopeGlobal = "global"

// Audit actions.
const (
	AuditCreate = "CREATE"
	AuditUpdate = "UPDATE"
	AuditDelete = "DELETE"
)

// TargetApplication is the audit target for the application config.
const TargetApplication = "application"

// StrategyTarget builds the audit target for a strategy config scope.
func StrategyTarget(strategyID, scope string) string {
	if scope == "" || scope == ScopeGlobal {
		return fmt.Sprintf("strategy:%s", strategyID)
	}
	return fmt.Sprintf("strategy:%s:%s", strategyID, scope)
}

// AppConfig is the singleton application configuration document. Every
// update produces a new version and an audit record.
type AppConfig struct {
	EnabledStrategies []string  `json:"enabled_strategies"`
	Symbols           []string  `json:"symbols"`
	CandlePeriods     []string  `json:"candle_periods"`
	MinConfidence     float64   `json:"min_confidence"`
	MaxConfidence     float64   `json:"max_confidence"`
	MaxPositions      int       `json:"max_positions"`
	PositionSizes     []float64 `json:"position_sizes"`
	Version           int64     `json:"version"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// Clone returns a deep copy; readers get snapshots, never shared state.
func (c *AppConfig) Clone() *AppConfig {
	out := *c
	out.EnabledStrategies = append([]string(nil), c.EnabledStrategies...)
	out.Symbols = append([]string(nil), c.Symbols...)
	out.CandlePeriods = append([]string(nil), c.CandlePeriods...)
	out.PositionSizes = append([]float64(nil), c.PositionSizes...)
	return &out
}

// HasStrategy reports whether id is in the enabled set.
func (c *AppConfig) HasStrategy(id string) bool {
	for _, s := range c.EnabledStrategies {
		if s == id {
			return true
		}
	}
	return false
}

// Covers reports whether (symbol, timeframe) is inside the configured
// symbols x candle_periods grid.
func (c *AppConfig) Covers(symbol, timeframe string) bool {
	okSym := false
	for _, s := range c.Symbols {
		if s == symbol {
			okSym = true
			break
		}
	}
	if !okSym {
		return false
	}
	for _, tf := range c.CandlePeriods {
		if tf == timeframe {
			return true
		}
	}
	return false
}

// ContentEquals compares everything except version and timestamps. Used to
// detect no-op updates.
func (c *AppConfig) ContentEquals(other *AppConfig) bool {
	a, b := c.Clone(), other.Clone()
	a.Version, b.Version = 0, 0
	a.CreatedAt, b.CreatedAt = time.Time{}, time.Time{}
	a.UpdatedAt, b.UpdatedAt = time.Time{}, time.Time{}
	aj, _ := json.Marshal(a)
	bj, _ := json.Marshal(b)
	return string(aj) == string(bj)
}

// AppConfigPatch is a partial update; nil fields are left untouched.
type AppConfigPatch struct {
	EnabledStrategies *[]string  `json:"enabled_strategies,omitempty"`
	Symbols           *[]string  `json:"symbols,omitempty"`
	CandlePeriods     *[]string  `json:"candle_periods,omitempty"`
	MinConfidence     *float64   `json:"min_confidence,omitempty"`
	MaxConfidence     *float64   `json:"max_confidence,omitempty"`
	MaxPositions      *int       `json:"max_positions,omitempty"`
	PositionSizes     *[]float64 `json:"position_sizes,omitempty"`
}

// Apply overlays the patch on a copy of base and returns it.
func (p *AppConfigPatch) Apply(base *AppConfig) *AppConfig {
	out := base.Clone()
	if p.EnabledStrategies != nil {
		out.EnabledStrategies = append([]string(nil), (*p.EnabledStrategies)...)
	}
	if p.Symbols != nil {
		out.Symbols = append([]string(nil), (*p.Symbols)...)
	}
	if p.CandlePeriods != nil {
		out.CandlePeriods = append([]string(nil), (*p.CandlePeriods)...)
	}
	if p.MinConfidence != nil {
		out.MinConfidence = *p.MinConfidence
	}
	if p.MaxConfidence != nil {
		out.MaxConfidence = *p.MaxConfidence
	}
	if p.MaxPositions != nil {
		out.MaxPositions = *p.MaxPositions
	}
	if p.PositionSizes != nil {
		out.PositionSizes = append([]float64(nil), (*p.PositionSizes)...)
	}
	return out
}

// StrategyConfig is one parameter bundle for (strategy_id, scope).
type StrategyConfig struct {
	StrategyID string          `json:"strategy_id"`
	Scope      string          `json:"scope"`
	Params     strategy.Params `json:"params"`
	Version    int64           `json:"version"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// Clone returns a deep copy of the config.
func (c *StrategyConfig) Clone() *StrategyConfig {
	out := *c
	out.Params = make(strategy.Params, len(c.Params))
	for k, v := range c.Params {
		out.Params[k] = v
	}
	return &out
}

// AuditRecord is one append-only configuration change entry.
type AuditRecord struct {
	ID        string          `json:"id"`
	Target    string          `json:"target"`
	Action    string          `json:"action"`
	OldConfig json.RawMessage `json:"old_config,omitempty"`
	NewConfig json.RawMessage `json:"new_config,omitempty"`
	ChangedBy string          `json:"changed_by"`
	Reason    string          `json:"reason"`
	ChangedAt time.Time       `json:"changed_at"`
}

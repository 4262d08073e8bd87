package configstore

import (
	"fmt"
	"regexp"
	"strings"

	"ta-signal-bot/internal/market"
	"ta-signal-bot/internal/strategy"
)

// ValidationError carries field-level details for the admin error envelope.
type ValidationError struct {
	Details map[string]string
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Details))
	for field, msg := range e.Details {
		parts = append(parts, field+": "+msg)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

var symbolPattern = regexp.MustCompile(`^[A-Z0-9]{6,12}$`)

// Recognized quote currencies; a symbol must end in one of them.
var quoteCurrencies = []string{"USDT", "USDC", "BUSD", "BTC", "ETH"}

func validSymbol(sym string) bool {
	if !symbolPattern.MatchString(sym) {
		return false
	}
	for _, q := range quoteCurrencies {
		if strings.HasSuffix(sym, q) && len(sym) > len(q) {
			return true
		}
	}
	return false
}

// ValidateAppConfig checks a full application config before persisting.
// knownStrategy tells whether an id belongs to the registered catalog.
func ValidateAppConfig(cfg *AppConfig, knownStrategy func(string) bool) error {
	details := make(map[string]string)

	if len(cfg.EnabledStrategies) == 0 {
		details["enabled_strategies"] = "must not be empty"
	}
	for _, id := range cfg.EnabledStrategies {
		if !knownStrategy(id) {
			details["enabled_strategies"] = fmt.Sprintf("unknown strategy %q", id)
			break
		}
	}

	if len(cfg.Symbols) == 0 {
		details["symbols"] = "must not be empty"
	}
	for _, sym := range cfg.Symbols {
		if !validSymbol(sym) {
			details["symbols"] = fmt.Sprintf("invalid symbol %q", sym)
			break
		}
	}

	if len(cfg.CandlePeriods) == 0 {
		details["candle_periods"] = "must not be empty"
	}
	for _, tf := range cfg.CandlePeriods {
		if !market.Timeframe(tf).Valid() {
			details["candle_periods"] = fmt.Sprintf("invalid timeframe %q", tf)
			break
		}
	}

	if cfg.MinConfidence < 0 || cfg.MaxConfidence > 1 || cfg.MinConfidence >= cfg.MaxConfidence {
		details["confidence"] = fmt.Sprintf("require 0 <= min < max <= 1, got [%v, %v]",
			cfg.MinConfidence, cfg.MaxConfidence)
	}

	if cfg.MaxPositions < 1 {
		details["max_positions"] = "must be >= 1"
	}

	if len(cfg.PositionSizes) == 0 {
		details["position_sizes"] = "must not be empty"
	}
	for _, size := range cfg.PositionSizes {
		if size <= 0 {
			details["position_sizes"] = fmt.Sprintf("sizes must be positive, got %v", size)
			break
		}
	}

	if len(details) > 0 {
		return &ValidationError{Details: details}
	}
	return nil
}

// ValidateStrategyConfig checks a strategy parameter bundle. Period-like
// keys must be positive integers, everything else must be numeric or bool.
func ValidateStrategyConfig(cfg *StrategyConfig, knownStrategy func(string) bool) error {
	details := make(map[string]string)

	if !knownStrategy(cfg.StrategyID) {
		details["strategy_id"] = fmt.Sprintf("unknown strategy %q", cfg.StrategyID)
	}
	if cfg.Scope != ScopeGlobal && !validSymbol(cfg.Scope) {
		details["scope"] = fmt.Sprintf("scope must be %q or a valid symbol, got %q", ScopeGlobal, cfg.Scope)
	}
	if len(cfg.Params) == 0 {
		details["params"] = "must not be empty"
	}
	for key, value := range cfg.Params {
		switch v := value.(type) {
		case bool:
			// fine
		case float64:
			if isPeriodKey(key) && (v != float64(int(v)) || v < 1) {
				details["params."+key] = fmt.Sprintf("period must be a positive integer, got %v", v)
			}
		case int:
			if isPeriodKey(key) && v < 1 {
				details["params."+key] = fmt.Sprintf("period must be a positive integer, got %v", v)
			}
		default:
			details["params."+key] = fmt.Sprintf("unsupported type %T", value)
		}
	}

	if len(details) > 0 {
		return &ValidationError{Details: details}
	}
	return nil
}

func isPeriodKey(key string) bool {
	for _, suffix := range []string{"_period", "_bars", "_lookback", "_span"} {
		if strings.HasSuffix(key, suffix) {
			return true
		}
	}
	return false
}

// knownFromRegistry adapts the strategy registry to the validator's
// callback shape.
func knownFromRegistry(reg *strategy.Registry) func(string) bool {
	return reg.Known
}

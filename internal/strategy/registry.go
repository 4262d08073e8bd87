package strategy

import (
	"fmt"
	"sort"
)

// Registry is the closed catalog of strategies, built once at startup.
type Registry struct {
	strategies map[string]Strategy
	order      []string
}

// NewRegistry registers the full strategy catalog.
func NewRegistry() *Registry {
	r := &Registry{strategies: make(map[string]Strategy)}
	for _, s := range []Strategy{
		// momentum / trend-following
		momentumPulse{},
		macdRider{},
		adxPowerTrend{},
		tripleEMAStack{},
		rsiMomentumShift{},
		// mean reversion
		bollingerRebound{},
		rsi2ExtremeReversal{},
		bandSnapback{},
		rsiOversoldBounce{},
		rsiOverboughtFade{},
		// pullback to trend
		goldenTrendSync{},
		ema21Pullback{},
		trendSurfer{},
		kijunBounce{},
		// breakout
		rangeBreakout{},
		squeezeBreakout{},
		volumeSurgeBreakout{},
		donchianBreakout{},
		// divergence
		rsiBullDivergence{},
		rsiBearDivergence{},
		hiddenDivergenceTrend{},
		// candlestick patterns
		insideBarContinuation{},
		hammerReversal{},
		foxTrap{},
		engulfingShift{},
		shootingStarFade{},
		// volatility regime
		bollingerSqueezeAlert{},
		volatilityExpansion{},
	} {
		r.register(s)
	}
	return r
}

func (r *Registry) register(s Strategy) {
	if _, dup := r.strategies[s.ID()]; dup {
		panic(fmt.Sprintf("strategy %q registered twice", s.ID()))
	}
	r.strategies[s.ID()] = s
	r.order = append(r.order, s.ID())
}

// Get returns the strategy for id.
func (r *Registry) Get(id string) (Strategy, bool) {
	s, ok := r.strategies[id]
	return s, ok
}

// Known reports whether id is a registered strategy.
func (r *Registry) Known(id string) bool {
	_, ok := r.strategies[id]
	return ok
}

// IDs returns all registered strategy ids, sorted.
func (r *Registry) IDs() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	sort.Strings(out)
	return out
}

// Select returns the strategies for the given ids, skipping unknown ones.
func (r *Registry) Select(ids []string) []Strategy {
	out := make([]Strategy, 0, len(ids))
	for _, id := range ids {
		if s, ok := r.strategies[id]; ok {
			out = append(out, s)
		}
	}
	return out
}

// RequiredUnion returns the union of indicator names needed by the given
// strategies, so the calculator computes each series exactly once.
func RequiredUnion(strategies []Strategy) []string {
	seen := make(map[string]bool)
	var out []string
	for _, s := range strategies {
		for _, name := range s.RequiredIndicators() {
			if !seen[name] {
				seen[name] = true
				out = append(out, name)
			}
		}
	}
	return out
}

// MinWindow is the smallest window length that lets every strategy see its
// slowest indicator warmed up. EMA200 plus MACD signal warm-up dominates.
const MinWindow = 210

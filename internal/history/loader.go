// Package history loads the candle windows that indicator computation
// runs on. Windows come from persistent storage, pass contiguity checks
// and sit in a small LRU cache so one burst of candle events does not turn
// into a storm of identical queries.
package history

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ta-signal-bot/internal/logging"
	"ta-signal-bot/internal/market"
	"ta-signal-bot/internal/metrics"
)

// Errors returned by the loader. Callers skip the event on insufficient
// data and alert on storage failure.
var (
	ErrInsufficientData   = errors.New("not enough candles for analysis")
	ErrStorageUnavailable = errors.New("candle storage unavailable")
)

const (
	// WindowSize is how many candles a full analysis window holds.
	WindowSize = 500

	// fetchAttempts is how many times a failed storage fetch is retried
	// before the event is given up on.
	fetchAttempts = 3

	// fetchTimeout bounds a single storage fetch.
	fetchTimeout = 2 * time.Second

	// defaultCacheSize bounds the LRU to the usual symbols x timeframes
	// working set with headroom.
	defaultCacheSize = 64
)

// Source fetches raw candles from storage, newest candles last.
type Source interface {
	Candles(ctx context.Context, symbol string, tf market.Timeframe, before time.Time, limit int) ([]market.Candle, error)
}

// Loader assembles analysis windows with caching and retries.
type Loader struct {
	source   Source
	cache    *windowCache
	log      *logging.Logger
	minBars  int
	backoff  func(attempt int) time.Duration
}

// NewLoader creates a loader over the given candle source. minBars is the
// smallest window that is still analyzable; shorter results return
// ErrInsufficientData.
func NewLoader(source Source, minBars int, log *logging.Logger) *Loader {
	return &Loader{
		source:  source,
		cache:   newWindowCache(defaultCacheSize),
		log:     log.WithComponent("history"),
		minBars: minBars,
		backoff: func(attempt int) time.Duration {
			return time.Duration(attempt) * 200 * time.Millisecond
		},
	}
}

// Window returns the analysis window for (symbol, timeframe) ending at or
// before 'before'. Cache hits are returned as-is; misses hit storage with
// retries. The cached window expires after half a candle period.
func (l *Loader) Window(ctx context.Context, symbol string, tf market.Timeframe, before time.Time) (*market.Window, error) {
	if w, ok := l.cache.get(symbol, tf); ok {
		metrics.HistoryCacheHits.Inc()
		return w, nil
	}
	metrics.HistoryCacheMisses.Inc()

	candles, err := l.fetch(ctx, symbol, tf, before)
	if err != nil {
		return nil, err
	}
	if len(candles) < l.minBars {
		return nil, fmt.Errorf("%w: have %d candles, need %d", ErrInsufficientData, len(candles), l.minBars)
	}

	w, err := market.NewWindow(symbol, tf, candles)
	if err != nil {
		// A gapped series from storage is unusable for indicators.
		return nil, fmt.Errorf("%w: %s", ErrInsufficientData, err)
	}

	l.cache.put(symbol, tf, w, cacheTTL(tf))
	return w, nil
}

// Advance folds a newly closed candle into the cached window so the next
// read does not refetch. A candle that does not extend the cached window
// invalidates it instead.
func (l *Loader) Advance(c market.Candle) {
	w, ok := l.cache.get(c.Symbol, c.Timeframe)
	if !ok {
		return
	}

	last := w.Last()
	switch {
	case c.OpenTime.Equal(last.OpenTime):
		// Same bar revised; replace in place.
		candles := append(append([]market.Candle(nil), w.Candles[:w.Len()-1]...), c)
		if nw, err := market.NewWindow(c.Symbol, c.Timeframe, candles); err == nil {
			l.cache.put(c.Symbol, c.Timeframe, nw, cacheTTL(c.Timeframe))
			return
		}
	case c.OpenTime.Equal(last.OpenTime.Add(c.Timeframe.Duration())):
		candles := append(append([]market.Candle(nil), w.Candles...), c)
		if len(candles) > WindowSize {
			candles = candles[len(candles)-WindowSize:]
		}
		if nw, err := market.NewWindow(c.Symbol, c.Timeframe, candles); err == nil {
			l.cache.put(c.Symbol, c.Timeframe, nw, cacheTTL(c.Timeframe))
			return
		}
	}

	// Out-of-sequence candle; drop the cached window and refetch next time.
	l.cache.invalidate(c.Symbol, c.Timeframe)
}

// Invalidate drops the cached window for (symbol, timeframe).
func (l *Loader) Invalidate(symbol string, tf market.Timeframe) {
	l.cache.invalidate(symbol, tf)
}

// CachedWindows reports how many windows are currently cached.
func (l *Loader) CachedWindows() int { return l.cache.len() }

func (l *Loader) fetch(parent context.Context, symbol string, tf market.Timeframe, before time.Time) ([]market.Candle, error) {
	var lastErr error
	for attempt := 1; attempt <= fetchAttempts; attempt++ {
		ctx, cancel := context.WithTimeout(parent, fetchTimeout)
		candles, err := l.source.Candles(ctx, symbol, tf, before, WindowSize)
		cancel()
		if err == nil {
			return candles, nil
		}
		lastErr = err
		l.log.Warn("candle fetch failed",
			"symbol", symbol, "timeframe", string(tf), "attempt", attempt, "error", err.Error())

		if attempt < fetchAttempts {
			select {
			case <-time.After(l.backoff(attempt)):
			case <-parent.Done():
				return nil, parent.Err()
			}
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrStorageUnavailable, lastErr)
}

// cacheTTL is half the candle period, so a window never outlives the bar
// after the one it ends on.
func cacheTTL(tf market.Timeframe) time.Duration {
	return tf.Duration() / 2
}

// Package metrics exposes the Prometheus instrumentation for the signal
// pipeline. Everything is registered on the default registry and served
// from the admin API's /metrics endpoint.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CandlesReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ta_candles_received_total",
		Help: "Candle events consumed from the message bus",
	}, []string{"symbol", "timeframe"})

	CandlesRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ta_candles_rejected_total",
		Help: "Candle events dropped before analysis",
	}, []string{"reason"})

	SignalsGenerated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ta_signals_generated_total",
		Help: "Signals produced by strategies, pre-filter",
	}, []string{"strategy_id", "action"})

	SignalsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ta_signals_published_total",
		Help: "Signals delivered per sink",
	}, []string{"sink"})

	SignalsDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ta_signals_dropped_total",
		Help: "Signals discarded before delivery",
	}, []string{"reason"})

	HoldSignals = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ta_hold_signals_total",
		Help: "Hold signals counted and suppressed",
	}, []string{"strategy_id"})

	StrategyErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ta_strategy_errors_total",
		Help: "Strategy evaluation errors, panics included",
	}, []string{"strategy_id", "kind"})

	PublishRetries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ta_publish_retries_total",
		Help: "Delivery retries per sink",
	}, []string{"sink"})

	ConfigCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ta_config_cache_hits_total",
		Help: "Config reads served from the TTL cache",
	})

	ConfigCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ta_config_cache_misses_total",
		Help: "Config reads that consulted the store chain",
	})

	HistoryCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ta_history_cache_hits_total",
		Help: "Candle windows served from the LRU cache",
	})

	HistoryCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ta_history_cache_misses_total",
		Help: "Candle windows fetched from storage",
	})

	ProcessingSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ta_candle_processing_seconds",
		Help:    "End-to-end latency from candle receipt to publish decision",
		Buckets: prometheus.DefBuckets,
	}, []string{"timeframe"})

	QueueDepth = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "ta_worker_queue_depth",
		Help: "Pending candle events per worker shard",
	}, []string{"shard"})
)

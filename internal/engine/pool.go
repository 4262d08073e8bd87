package engine

import (
	"context"
	"hash/fnv"
	"strconv"
	"sync"

	"ta-signal-bot/internal/logging"
	"ta-signal-bot/internal/market"
	"ta-signal-bot/internal/metrics"
)

const (
	defaultShards     = 4
	defaultQueueDepth = 256
)

// Pool shards candle events by symbol and timeframe so each series is
// processed in arrival order while distinct series run in parallel. Shard
// queues are bounded; under sustained backlog the oldest pending event is
// dropped to admit the new one, since a fresher candle supersedes a stale
// one.
type Pool struct {
	engine *Engine
	log    *logging.Logger
	shards []chan market.Candle
	mu     []sync.Mutex
	wg     sync.WaitGroup
}

// NewPool creates the worker pool. shards and depth fall back to defaults
// when non-positive.
func NewPool(engine *Engine, shards, depth int, log *logging.Logger) *Pool {
	if shards <= 0 {
		shards = defaultShards
	}
	if depth <= 0 {
		depth = defaultQueueDepth
	}
	p := &Pool{
		engine: engine,
		log:    log.WithComponent("worker-pool"),
		shards: make([]chan market.Candle, shards),
		mu:     make([]sync.Mutex, shards),
	}
	for i := range p.shards {
		p.shards[i] = make(chan market.Candle, depth)
	}
	return p
}

// Start launches one worker per shard. Workers exit when ctx is cancelled
// and their queue is drained.
func (p *Pool) Start(ctx context.Context) {
	for i := range p.shards {
		p.wg.Add(1)
		go p.worker(ctx, i)
	}
}

// Wait blocks until every worker has exited.
func (p *Pool) Wait() { p.wg.Wait() }

// Submit enqueues a candle on its (symbol, timeframe) shard, evicting the
// oldest pending event if the queue is full.
func (p *Pool) Submit(c market.Candle) {
	shard := p.shardFor(c.Symbol, c.Timeframe)
	ch := p.shards[shard]

	p.mu[shard].Lock()
	defer p.mu[shard].Unlock()

	for {
		select {
		case ch <- c:
			metrics.QueueDepth.WithLabelValues(strconv.Itoa(shard)).Set(float64(len(ch)))
			return
		default:
		}
		select {
		case dropped := <-ch:
			metrics.CandlesRejected.WithLabelValues("queue_full").Inc()
			p.log.Warn("shard queue full, dropped oldest candle",
				"shard", shard, "symbol", dropped.Symbol, "timeframe", string(dropped.Timeframe))
		default:
		}
	}
}

func (p *Pool) worker(ctx context.Context, shard int) {
	defer p.wg.Done()
	ch := p.shards[shard]
	for {
		select {
		case <-ctx.Done():
			// Drain what is already queued, then exit.
			for {
				select {
				case c := <-ch:
					p.process(context.Background(), c)
				default:
					return
				}
			}
		case c := <-ch:
			metrics.QueueDepth.WithLabelValues(strconv.Itoa(shard)).Set(float64(len(ch)))
			p.process(ctx, c)
		}
	}
}

func (p *Pool) process(ctx context.Context, c market.Candle) {
	if err := p.engine.ProcessCandle(ctx, c); err != nil {
		p.log.Error("candle processing failed",
			"symbol", c.Symbol, "timeframe", string(c.Timeframe), "error", err.Error())
	}
}

func (p *Pool) shardFor(symbol string, tf market.Timeframe) int {
	h := fnv.New32a()
	h.Write([]byte(symbol))
	h.Write([]byte("|"))
	h.Write([]byte(tf))
	return int(h.Sum32() % uint32(len(p.shards)))
}

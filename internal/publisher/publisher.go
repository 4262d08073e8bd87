// Package publisher fans generated signals out to the delivery sinks: the
// outbound stream, the trading HTTP endpoint, and the Postgres audit
// table. Each sink runs behind its own bounded queue so one slow target
// never blocks the others or the engine.
package publisher

import (
	"context"
	"sync"

	"ta-signal-bot/internal/events"
	"ta-signal-bot/internal/logging"
	"ta-signal-bot/internal/metrics"
	"ta-signal-bot/internal/strategy"
)

// queueDepth bounds each sink's pending signals. Under backlog the oldest
// queued signal is dropped for the new one; a stale signal executed late
// is worse than no signal.
const queueDepth = 128

type sinkWorker struct {
	sink  Sink
	queue chan *strategy.Signal
	mu    sync.Mutex
}

// Publisher is the fan-out stage.
type Publisher struct {
	workers []*sinkWorker
	bus     *events.EventBus
	log     *logging.Logger
	wg      sync.WaitGroup
}

// New creates a publisher over the given sinks.
func New(sinks []Sink, evbus *events.EventBus, log *logging.Logger) *Publisher {
	p := &Publisher{
		bus: evbus,
		log: log.WithComponent("publisher"),
	}
	for _, s := range sinks {
		p.workers = append(p.workers, &sinkWorker{
			sink:  s,
			queue: make(chan *strategy.Signal, queueDepth),
		})
	}
	return p
}

// Start launches one delivery goroutine per sink. Workers exit when ctx is
// cancelled and their queue is drained.
func (p *Publisher) Start(ctx context.Context) {
	for _, w := range p.workers {
		p.wg.Add(1)
		go p.run(ctx, w)
	}
}

// Wait blocks until all delivery workers have exited.
func (p *Publisher) Wait() { p.wg.Wait() }

// Publish enqueues the signal on every sink. It never blocks: a full sink
// queue evicts its oldest entry instead.
func (p *Publisher) Publish(_ context.Context, sig *strategy.Signal) error {
	for _, w := range p.workers {
		p.enqueue(w, sig)
	}
	return nil
}

func (p *Publisher) enqueue(w *sinkWorker, sig *strategy.Signal) {
	w.mu.Lock()
	defer w.mu.Unlock()

	for {
		select {
		case w.queue <- sig:
			return
		default:
		}
		select {
		case dropped := <-w.queue:
			metrics.SignalsDropped.WithLabelValues("queue_full").Inc()
			p.log.Warn("sink queue full, dropped oldest signal",
				"sink", w.sink.Name(), "signal_id", dropped.SignalID, "symbol", dropped.Symbol)
			p.bus.Publish(events.EventSignalDropped, map[string]interface{}{
				"sink":      w.sink.Name(),
				"signal_id": dropped.SignalID,
				"reason":    "queue_full",
			})
		default:
		}
	}
}

func (p *Publisher) run(ctx context.Context, w *sinkWorker) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			// Drain the backlog with a fresh context so shutdown flushes
			// pending signals instead of discarding them.
			for {
				select {
				case sig := <-w.queue:
					p.deliver(context.Background(), w, sig)
				default:
					return
				}
			}
		case sig := <-w.queue:
			p.deliver(ctx, w, sig)
		}
	}
}

func (p *Publisher) deliver(ctx context.Context, w *sinkWorker, sig *strategy.Signal) {
	if err := w.sink.Deliver(ctx, sig); err != nil {
		metrics.SignalsDropped.WithLabelValues("delivery_failed").Inc()
		p.log.Error("signal delivery failed",
			"sink", w.sink.Name(), "signal_id", sig.SignalID,
			"symbol", sig.Symbol, "error", err.Error())
		p.bus.Publish(events.EventSignalDropped, map[string]interface{}{
			"sink":      w.sink.Name(),
			"signal_id": sig.SignalID,
			"reason":    "delivery_failed",
		})
		return
	}
	metrics.SignalsPublished.WithLabelValues(w.sink.Name()).Inc()
	p.bus.Publish(events.EventSignalPublished, map[string]interface{}{
		"sink":      w.sink.Name(),
		"signal_id": sig.SignalID,
	})
}

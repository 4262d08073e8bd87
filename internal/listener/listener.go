// Package listener consumes candle events from the Redis stream and feeds
// them into the worker pool. Bot replicas share a consumer group, so each
// candle is processed by exactly one of them.
package listener

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"ta-signal-bot/internal/bus"
	"ta-signal-bot/internal/events"
	"ta-signal-bot/internal/logging"
	"ta-signal-bot/internal/market"
	"ta-signal-bot/internal/metrics"
)

const (
	// readBlock is how long one XREADGROUP call waits for new entries.
	readBlock = 5 * time.Second

	// readBatch caps how many entries one read returns.
	readBatch = 64

	// maxBackoff caps the reconnect delay after repeated failures.
	maxBackoff = 30 * time.Second
)

// Sink receives decoded, validated candles.
type Sink interface {
	Submit(c market.Candle)
}

// Listener is the candle stream consumer.
type Listener struct {
	client   *redis.Client
	sink     Sink
	bus      *events.EventBus
	log      *logging.Logger
	consumer string
}

// New creates a listener. The consumer name defaults to the hostname so
// replicas are distinguishable in XINFO output.
func New(client *redis.Client, sink Sink, evbus *events.EventBus, log *logging.Logger) *Listener {
	consumer, err := os.Hostname()
	if err != nil || consumer == "" {
		consumer = fmt.Sprintf("ta-bot-%d", time.Now().UnixNano()%10000)
	}
	return &Listener{
		client:   client,
		sink:     sink,
		bus:      evbus,
		log:      log.WithComponent("listener"),
		consumer: consumer,
	}
}

// Run consumes until ctx is cancelled. Connection failures back off
// exponentially up to 30 seconds and never give up.
func (l *Listener) Run(ctx context.Context) error {
	backoff := time.Second
	connected := false

	for {
		if err := l.ensureGroup(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			l.log.Error("consumer group setup failed", "error", err.Error(), "retry_in", backoff.String())
			if connected {
				connected = false
				l.bus.Publish(events.EventListenerLost, map[string]interface{}{"error": err.Error()})
			}
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			backoff = nextBackoff(backoff)
			continue
		}

		if !connected {
			connected = true
			backoff = time.Second
			l.log.Info("candle stream connected",
				"stream", bus.CandleStream, "group", bus.ConsumerGroup, "consumer", l.consumer)
			l.bus.Publish(events.EventListenerConnected, map[string]interface{}{
				"stream": bus.CandleStream, "consumer": l.consumer,
			})
		}

		if err := l.consume(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			connected = false
			l.log.Error("candle stream read failed", "error", err.Error(), "retry_in", backoff.String())
			l.bus.Publish(events.EventListenerLost, map[string]interface{}{"error": err.Error()})
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			backoff = nextBackoff(backoff)
		}
	}
}

// ensureGroup creates the consumer group, tolerating it already existing.
func (l *Listener) ensureGroup(ctx context.Context) error {
	err := l.client.XGroupCreateMkStream(ctx, bus.CandleStream, bus.ConsumerGroup, "0").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return err
	}
	return nil
}

// consume loops on XREADGROUP until an error or cancellation.
func (l *Listener) consume(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		streams, err := l.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    bus.ConsumerGroup,
			Consumer: l.consumer,
			Streams:  []string{bus.CandleStream, ">"},
			Count:    readBatch,
			Block:    readBlock,
		}).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return err
		}

		for _, stream := range streams {
			for _, msg := range stream.Messages {
				l.handle(ctx, msg)
			}
		}
	}
}

// handle decodes one entry and acks it. Malformed payloads are acked too;
// redelivering garbage helps nobody.
func (l *Listener) handle(ctx context.Context, msg redis.XMessage) {
	defer l.ack(ctx, msg.ID)

	raw, ok := msg.Values[bus.PayloadField].(string)
	if !ok {
		metrics.CandlesRejected.WithLabelValues("malformed").Inc()
		l.log.Warn("candle entry missing payload field", "id", msg.ID)
		return
	}

	candle, err := bus.DecodeCandleEvent([]byte(raw))
	if err != nil {
		metrics.CandlesRejected.WithLabelValues("malformed").Inc()
		l.log.Warn("dropping malformed candle event", "id", msg.ID, "error", err.Error())
		return
	}

	l.sink.Submit(candle)
}

func (l *Listener) ack(ctx context.Context, id string) {
	if err := l.client.XAck(ctx, bus.CandleStream, bus.ConsumerGroup, id).Err(); err != nil && ctx.Err() == nil {
		l.log.Warn("ack failed", "id", id, "error", err.Error())
	}
}

func nextBackoff(cur time.Duration) time.Duration {
	next := cur * 2
	if next > maxBackoff {
		next = maxBackoff
	}
	return next
}

func sleep(ctx context.Context, d time.Duration) bool {
	select {
	case <-time.After(d):
		return true
	case <-ctx.Done():
		return false
	}
}

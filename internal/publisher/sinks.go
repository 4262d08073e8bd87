package publisher

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"ta-signal-bot/internal/bus"
	"ta-signal-bot/internal/circuit"
	"ta-signal-bot/internal/database"
	"ta-signal-bot/internal/metrics"
	"ta-signal-bot/internal/strategy"
)

// Sink is one delivery target for published signals.
type Sink interface {
	Name() string
	Deliver(ctx context.Context, sig *strategy.Signal) error
}

// terminalError marks a delivery failure that retrying cannot fix.
type terminalError struct{ err error }

func (e *terminalError) Error() string { return e.err.Error() }
func (e *terminalError) Unwrap() error { return e.err }

func isTerminal(err error) bool {
	var te *terminalError
	return errors.As(err, &te)
}

// ============================================================================
// STREAM SINK
// ============================================================================

// StreamSink appends signals to the outbound Redis stream for downstream
// consumers (order executors, dashboards).
type StreamSink struct {
	client *redis.Client
}

// NewStreamSink creates the bus sink.
func NewStreamSink(client *redis.Client) *StreamSink {
	return &StreamSink{client: client}
}

func (s *StreamSink) Name() string { return "stream" }

func (s *StreamSink) Deliver(ctx context.Context, sig *strategy.Signal) error {
	payload, err := json.Marshal(sig)
	if err != nil {
		return &terminalError{fmt.Errorf("encode signal: %w", err)}
	}
	return s.client.XAdd(ctx, &redis.XAddArgs{
		Stream: bus.SignalStream,
		MaxLen: 10000,
		Approx: true,
		Values: map[string]interface{}{bus.PayloadField: string(payload)},
	}).Err()
}

// ============================================================================
// HTTP SINK
// ============================================================================

// httpAttemptTimeout bounds one POST attempt.
const httpAttemptTimeout = 5 * time.Second

// httpBackoffs are the waits between HTTP delivery attempts.
var httpBackoffs = []time.Duration{100 * time.Millisecond, 400 * time.Millisecond, 1600 * time.Millisecond}

// HTTPSink POSTs each signal to the downstream trading endpoint. A 4xx
// response is terminal: the payload will not get better by resending it.
// The breaker shuns the endpoint after repeated failures.
type HTTPSink struct {
	endpoint string
	client   *http.Client
	breaker  *circuit.Breaker
	zlog     zerolog.Logger
}

// NewHTTPSink creates the HTTP delivery sink.
func NewHTTPSink(endpoint string, breaker *circuit.Breaker, zlog zerolog.Logger) *HTTPSink {
	return &HTTPSink{
		endpoint: endpoint,
		client:   &http.Client{Timeout: httpAttemptTimeout},
		breaker:  breaker,
		zlog:     zlog.With().Str("sink", "http").Logger(),
	}
}

func (s *HTTPSink) Name() string { return "http" }

func (s *HTTPSink) Deliver(ctx context.Context, sig *strategy.Signal) error {
	if ok, reason := s.breaker.Allow(); !ok {
		metrics.SignalsDropped.WithLabelValues("circuit_open").Inc()
		return &terminalError{fmt.Errorf("http sink: %s", reason)}
	}

	payload, err := json.Marshal(sig)
	if err != nil {
		return &terminalError{fmt.Errorf("encode signal: %w", err)}
	}

	var lastErr error
	for attempt := 0; attempt <= len(httpBackoffs); attempt++ {
		if attempt > 0 {
			metrics.PublishRetries.WithLabelValues(s.Name()).Inc()
			select {
			case <-time.After(httpBackoffs[attempt-1]):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		err := s.post(ctx, payload)
		if err == nil {
			s.breaker.RecordSuccess()
			s.zlog.Debug().
				Str("strategy_id", sig.StrategyID).
				Str("symbol", sig.Symbol).
				Int("attempt", attempt+1).
				Msg("signal delivered")
			return nil
		}
		if isTerminal(err) {
			s.breaker.RecordFailure(err)
			s.zlog.Warn().Err(err).Str("symbol", sig.Symbol).Msg("signal rejected by endpoint")
			return err
		}
		lastErr = err
	}

	s.breaker.RecordFailure(lastErr)
	s.zlog.Error().Err(lastErr).Str("symbol", sig.Symbol).Msg("signal delivery exhausted retries")
	return fmt.Errorf("http sink: %w", lastErr)
}

func (s *HTTPSink) post(ctx context.Context, payload []byte) error {
	ctx, cancel := context.WithTimeout(ctx, httpAttemptTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(payload))
	if err != nil {
		return &terminalError{err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return &terminalError{fmt.Errorf("endpoint rejected signal: status %d", resp.StatusCode)}
	default:
		return fmt.Errorf("endpoint returned status %d", resp.StatusCode)
	}
}

// ============================================================================
// AUDIT SINK
// ============================================================================

// AuditSink persists every published signal to Postgres. One retry; the
// audit trail matters but must not hold up delivery.
type AuditSink struct {
	repo *database.Repository
}

// NewAuditSink creates the persistence sink.
func NewAuditSink(repo *database.Repository) *AuditSink {
	return &AuditSink{repo: repo}
}

func (s *AuditSink) Name() string { return "audit" }

func (s *AuditSink) Deliver(ctx context.Context, sig *strategy.Signal) error {
	payload, err := json.Marshal(sig)
	if err != nil {
		return &terminalError{fmt.Errorf("encode signal: %w", err)}
	}
	rec := &database.SignalRecord{
		ID:         sig.SignalID,
		StrategyID: sig.StrategyID,
		Symbol:     sig.Symbol,
		Timeframe:  sig.Timeframe,
		Action:     string(sig.Action),
		Confidence: sig.Confidence,
		Price:      sig.Price,
		StopLoss:   sig.StopLoss,
		TakeProfit: sig.TakeProfit,
		Strength:   string(sig.Strength),
		Payload:    payload,
	}

	if err := s.repo.InsertSignal(ctx, rec); err != nil {
		metrics.PublishRetries.WithLabelValues(s.Name()).Inc()
		if err2 := s.repo.InsertSignal(ctx, rec); err2 != nil {
			return fmt.Errorf("audit insert: %w", err2)
		}
	}
	return nil
}

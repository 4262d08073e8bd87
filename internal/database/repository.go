package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"ta-signal-bot/internal/market"
)

// Repository provides data access methods
type Repository struct {
	db *DB
}

// NewRepository creates a new repository
func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

// HealthCheck performs a database health check
func (r *Repository) HealthCheck(ctx context.Context) error {
	return r.db.Pool.Ping(ctx)
}

// ============================================================================
// CANDLES
// ============================================================================

// UpsertCandle inserts or replaces one candle row.
func (r *Repository) UpsertCandle(ctx context.Context, c *market.Candle) error {
	query := `
		INSERT INTO candles (symbol, timeframe, open_time, open, high, low, close, volume)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (symbol, timeframe, open_time)
		DO UPDATE SET open = $4, high = $5, low = $6, close = $7, volume = $8
	`
	_, err := r.db.Pool.Exec(ctx, query,
		c.Symbol, string(c.Timeframe), c.OpenTime, c.Open, c.High, c.Low, c.Close, c.Volume,
	)
	return err
}

// RecentCandles returns up to limit candles ending at or before 'before',
// oldest first.
func (r *Repository) RecentCandles(ctx context.Context, symbol string, tf market.Timeframe, before time.Time, limit int) ([]market.Candle, error) {
	query := `
		SELECT symbol, timeframe, open_time, open, high, low, close, volume
		FROM candles
		WHERE symbol = $1 AND timeframe = $2 AND open_time <= $3
		ORDER BY open_time DESC
		LIMIT $4
	`
	rows, err := r.db.Pool.Query(ctx, query, symbol, string(tf), before, limit)
	if err != nil {
		return nil, fmt.Errorf("query candles: %w", err)
	}
	defer rows.Close()

	var out []market.Candle
	for rows.Next() {
		var c market.Candle
		var tfs string
		if err := rows.Scan(&c.Symbol, &tfs, &c.OpenTime, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume); err != nil {
			return nil, fmt.Errorf("scan candle: %w", err)
		}
		c.Timeframe = market.Timeframe(tfs)
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	// Reverse into chronological order.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// ============================================================================
// SIGNALS
// ============================================================================

// SignalRecord is one persisted signal row.
type SignalRecord struct {
	ID         string
	StrategyID string
	Symbol     string
	Timeframe  string
	Action     string
	Confidence float64
	Price      float64
	StopLoss   float64
	TakeProfit float64
	Strength   string
	Payload    json.RawMessage
	CreatedAt  time.Time
}

// InsertSignal appends a published signal to the audit table.
func (r *Repository) InsertSignal(ctx context.Context, rec *SignalRecord) error {
	query := `
		INSERT INTO signals (id, strategy_id, symbol, timeframe, action, confidence,
			price, stop_loss, take_profit, strength, payload)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := r.db.Pool.Exec(ctx, query,
		rec.ID, rec.StrategyID, rec.Symbol, rec.Timeframe, rec.Action, rec.Confidence,
		rec.Price, rec.StopLoss, rec.TakeProfit, rec.Strength, rec.Payload,
	)
	return err
}

// RecentSignals lists the newest signals, optionally filtered by symbol.
func (r *Repository) RecentSignals(ctx context.Context, symbol string, limit int) ([]SignalRecord, error) {
	query := `
		SELECT id, strategy_id, symbol, timeframe, action, confidence,
		       price, COALESCE(stop_loss, 0), COALESCE(take_profit, 0), strength, payload, created_at
		FROM signals
		WHERE ($1 = '' OR symbol = $1)
		ORDER BY created_at DESC
		LIMIT $2
	`
	rows, err := r.db.Pool.Query(ctx, query, symbol, limit)
	if err != nil {
		return nil, fmt.Errorf("query signals: %w", err)
	}
	defer rows.Close()

	var out []SignalRecord
	for rows.Next() {
		var rec SignalRecord
		if err := rows.Scan(&rec.ID, &rec.StrategyID, &rec.Symbol, &rec.Timeframe, &rec.Action,
			&rec.Confidence, &rec.Price, &rec.StopLoss, &rec.TakeProfit, &rec.Strength,
			&rec.Payload, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan signal: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// ============================================================================
// APPLICATION CONFIG
// ============================================================================

// ErrNoRows mirrors pgx.ErrNoRows for callers that do not import pgx.
var ErrNoRows = pgx.ErrNoRows

// LatestAppConfig returns the highest-version application config document.
func (r *Repository) LatestAppConfig(ctx context.Context) (json.RawMessage, error) {
	query := `SELECT config FROM application_config ORDER BY version DESC LIMIT 1`
	var doc json.RawMessage
	if err := r.db.Pool.QueryRow(ctx, query).Scan(&doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// SaveAppConfig stores a new application config version.
func (r *Repository) SaveAppConfig(ctx context.Context, version int64, doc json.RawMessage, createdAt, updatedAt time.Time) error {
	query := `
		INSERT INTO application_config (version, config, created_at, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (version) DO UPDATE SET config = $2, updated_at = $4
	`
	_, err := r.db.Pool.Exec(ctx, query, version, doc, createdAt, updatedAt)
	return err
}

// ============================================================================
// STRATEGY CONFIGS
// ============================================================================

// GetStrategyConfig loads one parameter bundle document.
func (r *Repository) GetStrategyConfig(ctx context.Context, strategyID, scope string) (json.RawMessage, error) {
	query := `SELECT params FROM strategy_configs WHERE strategy_id = $1 AND scope = $2`
	var doc json.RawMessage
	if err := r.db.Pool.QueryRow(ctx, query, strategyID, scope).Scan(&doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// SaveStrategyConfig upserts one parameter bundle.
func (r *Repository) SaveStrategyConfig(ctx context.Context, strategyID, scope string, params json.RawMessage, version int64, createdAt, updatedAt time.Time) error {
	query := `
		INSERT INTO strategy_configs (strategy_id, scope, params, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (strategy_id, scope)
		DO UPDATE SET params = $3, version = $4, updated_at = $6
	`
	_, err := r.db.Pool.Exec(ctx, query, strategyID, scope, params, version, createdAt, updatedAt)
	return err
}

// DeleteStrategyConfig removes one parameter bundle.
func (r *Repository) DeleteStrategyConfig(ctx context.Context, strategyID, scope string) error {
	tag, err := r.db.Pool.Exec(ctx,
		`DELETE FROM strategy_configs WHERE strategy_id = $1 AND scope = $2`, strategyID, scope)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// ============================================================================
// CONFIG AUDIT
// ============================================================================

// AuditRow is one configuration change entry.
type AuditRow struct {
	ID        string
	Target    string
	Action    string
	OldConfig json.RawMessage
	NewConfig json.RawMessage
	ChangedBy string
	Reason    string
	ChangedAt time.Time
}

// AppendAudit writes one audit entry.
func (r *Repository) AppendAudit(ctx context.Context, row *AuditRow) error {
	query := `
		INSERT INTO config_audit (id, target, action, old_config, new_config, changed_by, reason, changed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.db.Pool.Exec(ctx, query,
		row.ID, row.Target, row.Action, row.OldConfig, row.NewConfig,
		row.ChangedBy, row.Reason, row.ChangedAt,
	)
	return err
}

// ListAudit returns the newest audit entries for a target, empty target
// meaning all targets.
func (r *Repository) ListAudit(ctx context.Context, target string, limit int) ([]AuditRow, error) {
	query := `
		SELECT id, target, action, old_config, new_config, changed_by, reason, changed_at
		FROM config_audit
		WHERE ($1 = '' OR target = $1)
		ORDER BY changed_at DESC
		LIMIT $2
	`
	rows, err := r.db.Pool.Query(ctx, query, target, limit)
	if err != nil {
		return nil, fmt.Errorf("query audit: %w", err)
	}
	defer rows.Close()

	var out []AuditRow
	for rows.Next() {
		var row AuditRow
		if err := rows.Scan(&row.ID, &row.Target, &row.Action, &row.OldConfig, &row.NewConfig,
			&row.ChangedBy, &row.Reason, &row.ChangedAt); err != nil {
			return nil, fmt.Errorf("scan audit: %w", err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// IsNotFound reports whether err means the row does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

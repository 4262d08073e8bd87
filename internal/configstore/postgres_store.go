package configstore

import (
	"context"
	"encoding/json"
	"fmt"

	"ta-signal-bot/internal/database"
)

// PostgresStore is the system of record at the bottom of the chain. It
// keeps every application config version, while the upper rungs only hold
// the current document.
type PostgresStore struct {
	repo *database.Repository
}

// NewPostgresStore creates a Postgres-backed config store.
func NewPostgresStore(repo *database.Repository) *PostgresStore {
	return &PostgresStore{repo: repo}
}

// Name identifies the store in logs.
func (s *PostgresStore) Name() string { return "postgres" }

func (s *PostgresStore) GetAppConfig(ctx context.Context) (*AppConfig, error) {
	doc, err := s.repo.LatestAppConfig(ctx)
	if err != nil {
		if database.IsNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load application config: %w", err)
	}
	var cfg AppConfig
	if err := json.Unmarshal(doc, &cfg); err != nil {
		return nil, fmt.Errorf("decode application config: %w", err)
	}
	return &cfg, nil
}

func (s *PostgresStore) PutAppConfig(ctx context.Context, cfg *AppConfig) error {
	doc, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode application config: %w", err)
	}
	return s.repo.SaveAppConfig(ctx, cfg.Version, doc, cfg.CreatedAt, cfg.UpdatedAt)
}

func (s *PostgresStore) GetStrategyConfig(ctx context.Context, strategyID, scope string) (*StrategyConfig, error) {
	doc, err := s.repo.GetStrategyConfig(ctx, strategyID, scope)
	if err != nil {
		if database.IsNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load strategy config: %w", err)
	}
	var cfg StrategyConfig
	if err := json.Unmarshal(doc, &cfg); err != nil {
		return nil, fmt.Errorf("decode strategy config: %w", err)
	}
	// Older rows may predate the full-document format.
	if cfg.StrategyID == "" {
		cfg.StrategyID = strategyID
		cfg.Scope = scope
	}
	return &cfg, nil
}

func (s *PostgresStore) PutStrategyConfig(ctx context.Context, cfg *StrategyConfig) error {
	doc, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode strategy config: %w", err)
	}
	return s.repo.SaveStrategyConfig(ctx, cfg.StrategyID, cfg.Scope, doc, cfg.Version, cfg.CreatedAt, cfg.UpdatedAt)
}

func (s *PostgresStore) DeleteStrategyConfig(ctx context.Context, strategyID, scope string) error {
	err := s.repo.DeleteStrategyConfig(ctx, strategyID, scope)
	if database.IsNotFound(err) {
		return ErrNotFound
	}
	return err
}

func (s *PostgresStore) AppendAudit(ctx context.Context, rec *AuditRecord) error {
	return s.repo.AppendAudit(ctx, &database.AuditRow{
		ID:        rec.ID,
		Target:    rec.Target,
		Action:    rec.Action,
		OldConfig: rec.OldConfig,
		NewConfig: rec.NewConfig,
		ChangedBy: rec.ChangedBy,
		Reason:    rec.Reason,
		ChangedAt: rec.ChangedAt,
	})
}

func (s *PostgresStore) ListAudit(ctx context.Context, target string, limit int) ([]AuditRecord, error) {
	rows, err := s.repo.ListAudit(ctx, target, limit)
	if err != nil {
		return nil, err
	}
	out := make([]AuditRecord, 0, len(rows))
	for _, row := range rows {
		out = append(out, AuditRecord{
			ID:        row.ID,
			Target:    row.Target,
			Action:    row.Action,
			OldConfig: row.OldConfig,
			NewConfig: row.NewConfig,
			ChangedBy: row.ChangedBy,
			Reason:    row.Reason,
			ChangedAt: row.ChangedAt,
		})
	}
	return out, nil
}

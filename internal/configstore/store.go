package configstore

import "context"

// Store is one rung of the persistence chain. All three backends (the
// data-manager service, Redis documents, Postgres rows) expose the same
// logical operations; the manager decides ordering and fallback.
type Store interface {
	// Name identifies the store in logs and fallback counters.
	Name() string

	GetAppConfig(ctx context.Context) (*AppConfig, error)
	PutAppConfig(ctx context.Context, cfg *AppConfig) error

	GetStrategyConfig(ctx context.Context, strategyID, scope string) (*StrategyConfig, error)
	PutStrategyConfig(ctx context.Context, cfg *StrategyConfig) error
	DeleteStrategyConfig(ctx context.Context, strategyID, scope string) error

	AppendAudit(ctx context.Context, rec *AuditRecord) error
	ListAudit(ctx context.Context, target string, limit int) ([]AuditRecord, error)
}

package history

import (
	"context"
	"time"

	"ta-signal-bot/internal/database"
	"ta-signal-bot/internal/market"
)

// RepositorySource serves candles from the Postgres candle table.
type RepositorySource struct {
	repo *database.Repository
}

// NewRepositorySource wraps the database repository as a candle source.
func NewRepositorySource(repo *database.Repository) *RepositorySource {
	return &RepositorySource{repo: repo}
}

func (s *RepositorySource) Candles(ctx context.Context, symbol string, tf market.Timeframe, before time.Time, limit int) ([]market.Candle, error) {
	return s.repo.RecentCandles(ctx, symbol, tf, before, limit)
}

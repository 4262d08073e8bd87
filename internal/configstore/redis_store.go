package configstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis key layout for configuration documents
const (
	// appConfigKey holds the current application config as a JSON document
	appConfigKey = "ta:config:application"

	// strategyConfigKeyPrefix prefixes strategy bundles.
	// Format: ta:config:strategy:{strategyID}:{scope}
	strategyConfigKeyPrefix = "ta:config:strategy"

	// auditListKey is the audit trail, newest entries pushed to the head
	auditListKey = "ta:config:audit"

	// auditListMax caps the retained audit entries in Redis; Postgres keeps
	// the full history
	auditListMax = 1000
)

// RedisStore keeps configuration as JSON documents in Redis. It is the
// second rung of the chain: faster than Postgres, survives process
// restarts, but not the system of record.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a Redis-backed config store.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// Name identifies the store in logs.
func (s *RedisStore) Name() string { return "redis" }

func strategyConfigKey(strategyID, scope string) string {
	return fmt.Sprintf("%s:%s:%s", strategyConfigKeyPrefix, strategyID, scope)
}

func (s *RedisStore) getDoc(ctx context.Context, key string, out interface{}) error {
	raw, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("redis get %s: %w", key, err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}

func (s *RedisStore) putDoc(ctx context.Context, key string, doc interface{}) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := s.client.Set(ctx, key, raw, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

func (s *RedisStore) GetAppConfig(ctx context.Context) (*AppConfig, error) {
	var cfg AppConfig
	if err := s.getDoc(ctx, appConfigKey, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (s *RedisStore) PutAppConfig(ctx context.Context, cfg *AppConfig) error {
	return s.putDoc(ctx, appConfigKey, cfg)
}

func (s *RedisStore) GetStrategyConfig(ctx context.Context, strategyID, scope string) (*StrategyConfig, error) {
	var cfg StrategyConfig
	if err := s.getDoc(ctx, strategyConfigKey(strategyID, scope), &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (s *RedisStore) PutStrategyConfig(ctx context.Context, cfg *StrategyConfig) error {
	return s.putDoc(ctx, strategyConfigKey(cfg.StrategyID, cfg.Scope), cfg)
}

func (s *RedisStore) DeleteStrategyConfig(ctx context.Context, strategyID, scope string) error {
	n, err := s.client.Del(ctx, strategyConfigKey(strategyID, scope)).Result()
	if err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *RedisStore) AppendAudit(ctx context.Context, rec *AuditRecord) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode audit: %w", err)
	}
	pipe := s.client.TxPipeline()
	pipe.LPush(ctx, auditListKey, raw)
	pipe.LTrim(ctx, auditListKey, 0, auditListMax-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis audit append: %w", err)
	}
	return nil
}

func (s *RedisStore) ListAudit(ctx context.Context, target string, limit int) ([]AuditRecord, error) {
	raws, err := s.client.LRange(ctx, auditListKey, 0, auditListMax-1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis audit list: %w", err)
	}
	out := make([]AuditRecord, 0, limit)
	for _, raw := range raws {
		var rec AuditRecord
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			continue
		}
		if target != "" && rec.Target != target {
			continue
		}
		out = append(out, rec)
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

// Ping verifies the Redis connection with a short deadline.
func (s *RedisStore) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return s.client.Ping(ctx).Err()
}

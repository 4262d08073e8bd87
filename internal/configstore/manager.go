package configstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"ta-signal-bot/internal/events"
	"ta-signal-bot/internal/logging"
	"ta-signal-bot/internal/strategy"
)

// DefaultCacheTTL is how long a config read stays cached before the chain
// is consulted again.
const DefaultCacheTTL = 60 * time.Second

// ErrNoStores is returned when the chain is empty and no boot default
// exists for the request.
var ErrNoStores = errors.New("no config store available")

type cacheEntry struct {
	appConfig      *AppConfig
	strategyConfig *StrategyConfig
	loadedAt       time.Time
}

// Manager resolves configuration through the store chain and caches reads.
// Reads try each store in order; the first hit wins and the result is
// cached for the TTL. Writes go to every store, starting with the primary,
// and succeed when at least one store accepts. Every successful write
// purges the cache and appends an audit record.
type Manager struct {
	stores   []Store
	defaults *AppConfig
	known    func(string) bool
	bus      *events.EventBus
	log      *logging.Logger
	ttl      time.Duration

	mu    sync.RWMutex
	cache map[string]*cacheEntry

	now func() time.Time
}

// NewManager builds a config manager over an ordered store chain. defaults
// is the boot fallback served when every store misses the application
// config; it is never written back to the stores.
func NewManager(stores []Store, defaults *AppConfig, reg *strategy.Registry, bus *events.EventBus, log *logging.Logger) *Manager {
	return &Manager{
		stores:   stores,
		defaults: defaults,
		known:    knownFromRegistry(reg),
		bus:      bus,
		log:      log,
		ttl:      DefaultCacheTTL,
		cache:    make(map[string]*cacheEntry),
		now:      time.Now,
	}
}

// SetCacheTTL overrides the read cache TTL.
func (m *Manager) SetCacheTTL(ttl time.Duration) {
	if ttl > 0 {
		m.ttl = ttl
	}
}

func appCacheKey() string { return "application" }

func strategyCacheKey(id, scope string) string { return "strategy:" + id + ":" + scope }

func (m *Manager) cached(key string) *cacheEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	entry, ok := m.cache[key]
	if !ok || m.now().Sub(entry.loadedAt) > m.ttl {
		return nil
	}
	return entry
}

func (m *Manager) store(key string, entry *cacheEntry) {
	entry.loadedAt = m.now()
	m.mu.Lock()
	m.cache[key] = entry
	m.mu.Unlock()
}

func (m *Manager) purge(keys ...string) {
	m.mu.Lock()
	for _, key := range keys {
		delete(m.cache, key)
	}
	m.mu.Unlock()
}

// PurgeAll drops every cached entry.
func (m *Manager) PurgeAll() {
	m.mu.Lock()
	m.cache = make(map[string]*cacheEntry)
	m.mu.Unlock()
}

// chainGet walks the stores until one returns a document. Store errors are
// logged and treated as misses so a dead primary degrades, not fails.
func (m *Manager) chainGet(ctx context.Context, what string, get func(Store) (interface{}, error)) (interface{}, error) {
	for _, st := range m.stores {
		doc, err := get(st)
		if err == nil {
			return doc, nil
		}
		if errors.Is(err, ErrNotFound) {
			continue
		}
		m.log.Warn("config store read failed, falling back",
			"store", st.Name(), "what", what, "error", err.Error())
	}
	return nil, ErrNotFound
}

// chainPut writes to every store, primary first. The write succeeds when
// the first store in the chain that is reachable accepts it; failures on
// lower rungs are logged only.
func (m *Manager) chainPut(ctx context.Context, what string, put func(Store) error) error {
	var firstErr error
	accepted := false
	for _, st := range m.stores {
		if err := put(st); err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("%s: %s: %w", st.Name(), what, err)
			}
			m.log.Warn("config store write failed", "store", st.Name(), "what", what, "error", err.Error())
			continue
		}
		accepted = true
	}
	if !accepted {
		if firstErr != nil {
			return firstErr
		}
		return ErrNoStores
	}
	return nil
}

// AppConfig returns the live application config, served from cache inside
// the TTL. When every store misses, the boot defaults are returned.
func (m *Manager) AppConfig(ctx context.Context) (*AppConfig, bool, error) {
	key := appCacheKey()
	if entry := m.cached(key); entry != nil {
		return entry.appConfig.Clone(), true, nil
	}

	doc, err := m.chainGet(ctx, "application config", func(st Store) (interface{}, error) {
		return st.GetAppConfig(ctx)
	})
	if err != nil {
		if m.defaults == nil {
			return nil, false, ErrNoStores
		}
		m.log.Warn("application config missing everywhere, serving boot defaults")
		return m.defaults.Clone(), false, nil
	}

	cfg := doc.(*AppConfig)
	m.store(key, &cacheEntry{appConfig: cfg})
	return cfg.Clone(), false, nil
}

// UpdateAppConfig applies a partial update, bumps the version, persists,
// audits and purges the cache. A patch that changes nothing is a no-op:
// the current config is returned unchanged with no version bump and no
// audit entry. With dryRun set, validation runs but nothing persists.
func (m *Manager) UpdateAppConfig(ctx context.Context, patch *AppConfigPatch, changedBy, reason string, dryRun bool) (*AppConfig, error) {
	current, _, err := m.AppConfig(ctx)
	if err != nil {
		return nil, err
	}

	next := patch.Apply(current)
	if err := ValidateAppConfig(next, m.known); err != nil {
		return nil, err
	}
	if dryRun {
		return next, nil
	}
	if next.ContentEquals(current) {
		return current, nil
	}

	now := m.now().UTC()
	next.Version = current.Version + 1
	next.UpdatedAt = now
	if next.CreatedAt.IsZero() {
		next.CreatedAt = now
	}

	if err := m.chainPut(ctx, "application config", func(st Store) error {
		return st.PutAppConfig(ctx, next)
	}); err != nil {
		return nil, err
	}

	m.audit(ctx, TargetApplication, AuditUpdate, current, next, changedBy, reason)
	m.purge(appCacheKey())
	m.bus.Publish(events.EventConfigUpdated, map[string]interface{}{
		"target":  TargetApplication,
		"version": next.Version,
	})
	return next.Clone(), nil
}

// StrategyConfig returns one parameter bundle, cache first.
func (m *Manager) StrategyConfig(ctx context.Context, strategyID, scope string) (*StrategyConfig, bool, error) {
	if scope == "" {
		scope = ScopeGlobal
	}
	key := strategyCacheKey(strategyID, scope)
	if entry := m.cached(key); entry != nil {
		return entry.strategyConfig.Clone(), true, nil
	}

	doc, err := m.chainGet(ctx, "strategy config", func(st Store) (interface{}, error) {
		return st.GetStrategyConfig(ctx, strategyID, scope)
	})
	if err != nil {
		return nil, false, err
	}

	cfg := doc.(*StrategyConfig)
	m.store(key, &cacheEntry{strategyConfig: cfg})
	return cfg.Clone(), false, nil
}

// PutStrategyConfig creates or replaces a parameter bundle. Identical
// content is a no-op. With dryRun set, validation runs but nothing
// persists.
func (m *Manager) PutStrategyConfig(ctx context.Context, cfg *StrategyConfig, changedBy, reason string, dryRun bool) (*StrategyConfig, error) {
	if cfg.Scope == "" {
		cfg.Scope = ScopeGlobal
	}
	if err := ValidateStrategyConfig(cfg, m.known); err != nil {
		return nil, err
	}
	if dryRun {
		return cfg, nil
	}

	existing, _, err := m.StrategyConfig(ctx, cfg.StrategyID, cfg.Scope)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	now := m.now().UTC()
	next := cfg.Clone()
	action := AuditCreate
	if existing != nil {
		if paramsEqual(existing.Params, next.Params) {
			return existing, nil
		}
		action = AuditUpdate
		next.Version = existing.Version + 1
		next.CreatedAt = existing.CreatedAt
	} else {
		next.Version = 1
		next.CreatedAt = now
	}
	next.UpdatedAt = now

	if err := m.chainPut(ctx, "strategy config", func(st Store) error {
		return st.PutStrategyConfig(ctx, next)
	}); err != nil {
		return nil, err
	}

	target := StrategyTarget(next.StrategyID, next.Scope)
	m.audit(ctx, target, action, existing, next, changedBy, reason)
	m.purge(strategyCacheKey(next.StrategyID, next.Scope))
	m.bus.Publish(events.EventConfigUpdated, map[string]interface{}{
		"target":  target,
		"version": next.Version,
	})
	return next.Clone(), nil
}

// DeleteStrategyConfig removes a parameter bundle and audits the removal.
func (m *Manager) DeleteStrategyConfig(ctx context.Context, strategyID, scope, changedBy, reason string) error {
	if scope == "" {
		scope = ScopeGlobal
	}
	existing, _, err := m.StrategyConfig(ctx, strategyID, scope)
	if err != nil {
		return err
	}

	if err := m.chainPut(ctx, "strategy config delete", func(st Store) error {
		err := st.DeleteStrategyConfig(ctx, strategyID, scope)
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return err
	}); err != nil {
		return err
	}

	target := StrategyTarget(strategyID, scope)
	m.audit(ctx, target, AuditDelete, existing, nil, changedBy, reason)
	m.purge(strategyCacheKey(strategyID, scope))
	m.bus.Publish(events.EventConfigUpdated, map[string]interface{}{
		"target": target,
	})
	return nil
}

// EffectiveParams resolves the parameters a strategy should run with for a
// symbol: the symbol override layered on top of the global bundle. Missing
// layers are skipped; with nothing stored the result is empty and the
// strategy falls back to its built-in defaults.
func (m *Manager) EffectiveParams(ctx context.Context, strategyID, symbol string) strategy.Params {
	params := strategy.Params{}
	if global, _, err := m.StrategyConfig(ctx, strategyID, ScopeGlobal); err == nil {
		params = params.Merge(global.Params)
	}
	if symbol != "" {
		if override, _, err := m.StrategyConfig(ctx, strategyID, symbol); err == nil {
			params = params.Merge(override.Params)
		}
	}
	return params
}

// ListAudit returns the newest audit entries, chain order.
func (m *Manager) ListAudit(ctx context.Context, target string, limit int) ([]AuditRecord, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	doc, err := m.chainGet(ctx, "audit trail", func(st Store) (interface{}, error) {
		recs, err := st.ListAudit(ctx, target, limit)
		if err != nil {
			return nil, err
		}
		if len(recs) == 0 {
			return nil, ErrNotFound
		}
		return recs, nil
	})
	if errors.Is(err, ErrNotFound) {
		return []AuditRecord{}, nil
	}
	if err != nil {
		return nil, err
	}
	return doc.([]AuditRecord), nil
}

// audit appends a change record to every store that will take it. Audit
// failures never fail the write itself.
func (m *Manager) audit(ctx context.Context, target, action string, old, new interface{}, changedBy, reason string) {
	rec := &AuditRecord{
		ID:        uuid.New().String(),
		Target:    target,
		Action:    action,
		ChangedBy: changedBy,
		Reason:    reason,
		ChangedAt: m.now().UTC(),
	}
	if old != nil {
		rec.OldConfig, _ = json.Marshal(old)
	}
	if new != nil {
		rec.NewConfig, _ = json.Marshal(new)
	}
	if err := m.chainPut(ctx, "audit record", func(st Store) error {
		return st.AppendAudit(ctx, rec)
	}); err != nil {
		m.log.Error("audit record lost", "target", target, "action", action, "error", err.Error())
	}
}

func paramsEqual(a, b strategy.Params) bool {
	aj, _ := json.Marshal(a)
	bj, _ := json.Marshal(b)
	return string(aj) == string(bj)
}

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"ta-signal-bot/internal/configstore"
	"ta-signal-bot/internal/events"
	"ta-signal-bot/internal/logging"
	"ta-signal-bot/internal/strategy"
)

// ============================================================
// Fakes
// ============================================================

// apiStore is a single in-memory rung for the config chain.
type apiStore struct {
	appCfg    *configstore.AppConfig
	stratCfgs map[string]*configstore.StrategyConfig
	audits    []configstore.AuditRecord
}

func newAPIStore() *apiStore {
	return &apiStore{stratCfgs: make(map[string]*configstore.StrategyConfig)}
}

func (s *apiStore) Name() string { return "memory" }

func (s *apiStore) GetAppConfig(ctx context.Context) (*configstore.AppConfig, error) {
	if s.appCfg == nil {
		return nil, configstore.ErrNotFound
	}
	return s.appCfg.Clone(), nil
}

func (s *apiStore) PutAppConfig(ctx context.Context, cfg *configstore.AppConfig) error {
	s.appCfg = cfg.Clone()
	return nil
}

func (s *apiStore) GetStrategyConfig(ctx context.Context, strategyID, scope string) (*configstore.StrategyConfig, error) {
	cfg, ok := s.stratCfgs[strategyID+":"+scope]
	if !ok {
		return nil, configstore.ErrNotFound
	}
	return cfg.Clone(), nil
}

func (s *apiStore) PutStrategyConfig(ctx context.Context, cfg *configstore.StrategyConfig) error {
	s.stratCfgs[cfg.StrategyID+":"+cfg.Scope] = cfg.Clone()
	return nil
}

func (s *apiStore) DeleteStrategyConfig(ctx context.Context, strategyID, scope string) error {
	key := strategyID + ":" + scope
	if _, ok := s.stratCfgs[key]; !ok {
		return configstore.ErrNotFound
	}
	delete(s.stratCfgs, key)
	return nil
}

func (s *apiStore) AppendAudit(ctx context.Context, rec *configstore.AuditRecord) error {
	s.audits = append(s.audits, *rec)
	return nil
}

func (s *apiStore) ListAudit(ctx context.Context, target string, limit int) ([]configstore.AuditRecord, error) {
	var out []configstore.AuditRecord
	for i := len(s.audits) - 1; i >= 0 && len(out) < limit; i-- {
		if target == "" || s.audits[i].Target == target {
			out = append(out, s.audits[i])
		}
	}
	return out, nil
}

type fakeEngine struct {
	reenabled []string
}

func (e *fakeEngine) HoldCounts() map[string]int64 { return map[string]int64{"momentum_pulse": 4} }
func (e *fakeEngine) DisabledStrategies() []string { return []string{"fox_trap"} }
func (e *fakeEngine) ReenableStrategy(id string)   { e.reenabled = append(e.reenabled, id) }

// ============================================================
// Fixtures
// ============================================================

func storedAppConfig() *configstore.AppConfig {
	return &configstore.AppConfig{
		EnabledStrategies: []string{"momentum_pulse", "macd_rider"},
		Symbols:           []string{"BTCUSDT", "ETHUSDT"},
		CandlePeriods:     []string{"15m", "1h"},
		MinConfidence:     0.6,
		MaxConfidence:     0.95,
		MaxPositions:      5,
		PositionSizes:     []float64{0.1},
		Version:           3,
	}
}

func newTestServer(t *testing.T) (*Server, *apiStore, *fakeEngine) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	st := newAPIStore()
	st.appCfg = storedAppConfig()

	log := logging.New(&logging.Config{Level: "FATAL", JSONFormat: true})
	reg := strategy.NewRegistry()
	bus := events.NewEventBus()
	configs := configstore.NewManager([]configstore.Store{st}, nil, reg, bus, log)
	engine := &fakeEngine{}

	srv := NewServer(ServerConfig{Port: 0, Host: "127.0.0.1"}, configs, reg, nil, engine, bus)
	return srv, st, engine
}

type envelope struct {
	Success  bool                   `json:"success"`
	Data     json.RawMessage        `json:"data"`
	Metadata map[string]interface{} `json:"metadata"`
	Error    *struct {
		Code    string                 `json:"code"`
		Message string                 `json:"message"`
		Details map[string]interface{} `json:"details"`
	} `json:"error"`
}

func doRequest(t *testing.T, srv *Server, method, path string, body interface{}) (int, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)

	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("%s %s: bad envelope %q: %v", method, path, rec.Body.String(), err)
	}
	return rec.Code, env
}

// ============================================================
// Application config
// ============================================================

func TestGetAppConfigEnvelope(t *testing.T) {
	srv, _, _ := newTestServer(t)

	code, env := doRequest(t, srv, http.MethodGet, "/api/v1/config/application", nil)
	if code != http.StatusOK || !env.Success {
		t.Fatalf("status %d, success %v", code, env.Success)
	}
	if env.Metadata["cache_hit"] != false {
		t.Errorf("first read cache_hit = %v, want false", env.Metadata["cache_hit"])
	}

	var cfg configstore.AppConfig
	if err := json.Unmarshal(env.Data, &cfg); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	if cfg.Version != 3 || len(cfg.Symbols) != 2 {
		t.Errorf("served config = %+v", cfg)
	}

	// Second read is served from cache.
	_, env = doRequest(t, srv, http.MethodGet, "/api/v1/config/application", nil)
	if env.Metadata["cache_hit"] != true {
		t.Errorf("warm read cache_hit = %v, want true", env.Metadata["cache_hit"])
	}
}

func TestUpdateAppConfig(t *testing.T) {
	srv, st, _ := newTestServer(t)

	body := map[string]interface{}{
		"max_positions": 8,
		"changed_by":    "ops",
		"reason":        "scale up",
	}
	code, env := doRequest(t, srv, http.MethodPost, "/api/v1/config/application", body)
	if code != http.StatusOK || !env.Success {
		t.Fatalf("status %d, body %+v", code, env)
	}

	var cfg configstore.AppConfig
	json.Unmarshal(env.Data, &cfg)
	if cfg.Version != 4 || cfg.MaxPositions != 8 {
		t.Errorf("updated = v%d max=%d", cfg.Version, cfg.MaxPositions)
	}
	if len(st.audits) != 1 || st.audits[0].ChangedBy != "ops" {
		t.Errorf("audit trail = %+v", st.audits)
	}

	// The audit endpoint exposes the entry.
	code, env = doRequest(t, srv, http.MethodGet, "/api/v1/config/application/audit?limit=5", nil)
	if code != http.StatusOK {
		t.Fatalf("audit status %d", code)
	}
	var recs []configstore.AuditRecord
	json.Unmarshal(env.Data, &recs)
	if len(recs) != 1 || recs[0].Action != configstore.AuditUpdate {
		t.Errorf("audit records = %+v", recs)
	}
}

func TestUpdateAppConfigValidationEnvelope(t *testing.T) {
	srv, st, _ := newTestServer(t)

	body := map[string]interface{}{
		"symbols":    []string{"not-a-symbol"},
		"changed_by": "ops",
	}
	code, env := doRequest(t, srv, http.MethodPost, "/api/v1/config/application", body)
	if code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", code)
	}
	if env.Success || env.Error == nil {
		t.Fatalf("envelope = %+v", env)
	}
	if env.Error.Code != "VALIDATION_ERROR" {
		t.Errorf("error code = %q", env.Error.Code)
	}
	if _, ok := env.Error.Details["symbols"]; !ok {
		t.Errorf("details = %v, want symbols entry", env.Error.Details)
	}
	if st.appCfg.Version != 3 {
		t.Error("invalid update persisted")
	}
}

func TestUpdateAppConfigValidateOnly(t *testing.T) {
	srv, st, _ := newTestServer(t)

	body := map[string]interface{}{
		"max_positions": 8,
		"validate_only": true,
	}
	code, env := doRequest(t, srv, http.MethodPost, "/api/v1/config/application", body)
	if code != http.StatusOK || !env.Success {
		t.Fatalf("status %d, body %+v", code, env)
	}
	if env.Metadata["validate_only"] != true {
		t.Errorf("metadata = %v", env.Metadata)
	}
	if st.appCfg.Version != 3 || st.appCfg.MaxPositions != 5 {
		t.Error("dry run persisted the change")
	}
	if len(st.audits) != 0 {
		t.Error("dry run wrote an audit entry")
	}
}

func TestCacheRefresh(t *testing.T) {
	srv, st, _ := newTestServer(t)

	// Warm the cache, mutate the store behind it, refresh, read again.
	doRequest(t, srv, http.MethodGet, "/api/v1/config/application", nil)
	st.appCfg.MaxPositions = 11

	code, _ := doRequest(t, srv, http.MethodPost, "/api/v1/config/application/cache/refresh", nil)
	if code != http.StatusOK {
		t.Fatalf("refresh status %d", code)
	}

	_, env := doRequest(t, srv, http.MethodGet, "/api/v1/config/application", nil)
	var cfg configstore.AppConfig
	json.Unmarshal(env.Data, &cfg)
	if cfg.MaxPositions != 11 {
		t.Errorf("read after refresh = %d, want 11", cfg.MaxPositions)
	}
}

// ============================================================
// Strategy configs
// ============================================================

func TestStrategyConfigLifecycle(t *testing.T) {
	srv, _, _ := newTestServer(t)

	// Unknown id -> validation error.
	code, env := doRequest(t, srv, http.MethodPost, "/api/v1/strategies/nope/config",
		map[string]interface{}{"params": map[string]interface{}{"adx_min": 25}})
	if code != http.StatusBadRequest || env.Error.Code != "VALIDATION_ERROR" {
		t.Fatalf("unknown strategy: status %d, %+v", code, env.Error)
	}

	// Create global config.
	code, env = doRequest(t, srv, http.MethodPost, "/api/v1/strategies/momentum_pulse/config",
		map[string]interface{}{"params": map[string]interface{}{"adx_min": 25}, "changed_by": "ops"})
	if code != http.StatusOK {
		t.Fatalf("create: status %d, %+v", code, env)
	}
	var cfg configstore.StrategyConfig
	json.Unmarshal(env.Data, &cfg)
	if cfg.Version != 1 || cfg.Scope != configstore.ScopeGlobal {
		t.Errorf("created = %+v", cfg)
	}

	// Symbol override via the scoped route.
	code, env = doRequest(t, srv, http.MethodPost, "/api/v1/strategies/momentum_pulse/config/BTCUSDT",
		map[string]interface{}{"params": map[string]interface{}{"adx_min": 30}})
	if code != http.StatusOK {
		t.Fatalf("override: status %d, %+v", code, env)
	}
	json.Unmarshal(env.Data, &cfg)
	if cfg.Scope != "BTCUSDT" {
		t.Errorf("override scope = %q", cfg.Scope)
	}

	// Read both back.
	code, env = doRequest(t, srv, http.MethodGet, "/api/v1/strategies/momentum_pulse/config", nil)
	if code != http.StatusOK {
		t.Fatalf("get global: status %d", code)
	}
	code, env = doRequest(t, srv, http.MethodGet, "/api/v1/strategies/momentum_pulse/config/BTCUSDT", nil)
	if code != http.StatusOK {
		t.Fatalf("get override: status %d", code)
	}

	// Delete the override; reading it again is a 404.
	code, _ = doRequest(t, srv, http.MethodDelete, "/api/v1/strategies/momentum_pulse/config/BTCUSDT", nil)
	if code != http.StatusOK {
		t.Fatalf("delete: status %d", code)
	}
	code, env = doRequest(t, srv, http.MethodGet, "/api/v1/strategies/momentum_pulse/config/BTCUSDT", nil)
	if code != http.StatusNotFound || env.Error.Code != "NOT_FOUND" {
		t.Errorf("get after delete: status %d, %+v", code, env.Error)
	}
}

func TestListStrategies(t *testing.T) {
	srv, _, _ := newTestServer(t)

	code, env := doRequest(t, srv, http.MethodGet, "/api/v1/strategies", nil)
	if code != http.StatusOK {
		t.Fatalf("status %d", code)
	}
	var ids []string
	json.Unmarshal(env.Data, &ids)
	if len(ids) != 28 {
		t.Errorf("listed %d strategies, want 28", len(ids))
	}
}

// ============================================================
// Engine surface
// ============================================================

func TestEngineStatusAndReenable(t *testing.T) {
	srv, _, engine := newTestServer(t)

	code, env := doRequest(t, srv, http.MethodGet, "/api/v1/engine/status", nil)
	if code != http.StatusOK {
		t.Fatalf("status endpoint: %d", code)
	}
	var status map[string]interface{}
	json.Unmarshal(env.Data, &status)
	if status["known_strategies"] != float64(28) {
		t.Errorf("known_strategies = %v", status["known_strategies"])
	}

	code, _ = doRequest(t, srv, http.MethodPost, "/api/v1/strategies/fox_trap/reenable", nil)
	if code != http.StatusOK {
		t.Fatalf("reenable: status %d", code)
	}
	if len(engine.reenabled) != 1 || engine.reenabled[0] != "fox_trap" {
		t.Errorf("reenabled = %v", engine.reenabled)
	}

	code, env = doRequest(t, srv, http.MethodPost, "/api/v1/strategies/not_real/reenable", nil)
	if code != http.StatusNotFound || env.Error.Code != "NOT_FOUND" {
		t.Errorf("unknown reenable: status %d, %+v", code, env.Error)
	}
}

package configstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// DataManagerStore talks to the central data-manager service. It is the
// primary rung of the chain; every call carries a short deadline so an
// unhealthy service degrades into fallback instead of stalling reads.
type DataManagerStore struct {
	baseURL string
	client  *http.Client
}

// NewDataManagerStore creates a store against the data-manager base URL,
// e.g. "http://data-manager:8080".
func NewDataManagerStore(baseURL string) *DataManagerStore {
	return &DataManagerStore{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 1 * time.Second},
	}
}

// Name identifies the store in logs.
func (s *DataManagerStore) Name() string { return "data-manager" }

func (s *DataManagerStore) do(ctx context.Context, method, path string, body, out interface{}) error {
	var rd io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		rd = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, rd)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("data-manager %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("data-manager %s %s: status %d", method, path, resp.StatusCode)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

func (s *DataManagerStore) GetAppConfig(ctx context.Context) (*AppConfig, error) {
	var cfg AppConfig
	if err := s.do(ctx, http.MethodGet, "/api/v1/configs/application", nil, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (s *DataManagerStore) PutAppConfig(ctx context.Context, cfg *AppConfig) error {
	return s.do(ctx, http.MethodPut, "/api/v1/configs/application", cfg, nil)
}

func (s *DataManagerStore) GetStrategyConfig(ctx context.Context, strategyID, scope string) (*StrategyConfig, error) {
	var cfg StrategyConfig
	path := "/api/v1/configs/strategies/" + url.PathEscape(strategyID) + "?scope=" + url.QueryEscape(scope)
	if err := s.do(ctx, http.MethodGet, path, nil, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (s *DataManagerStore) PutStrategyConfig(ctx context.Context, cfg *StrategyConfig) error {
	path := "/api/v1/configs/strategies/" + url.PathEscape(cfg.StrategyID)
	return s.do(ctx, http.MethodPut, path, cfg, nil)
}

func (s *DataManagerStore) DeleteStrategyConfig(ctx context.Context, strategyID, scope string) error {
	path := "/api/v1/configs/strategies/" + url.PathEscape(strategyID) + "?scope=" + url.QueryEscape(scope)
	return s.do(ctx, http.MethodDelete, path, nil, nil)
}

func (s *DataManagerStore) AppendAudit(ctx context.Context, rec *AuditRecord) error {
	return s.do(ctx, http.MethodPost, "/api/v1/configs/audit", rec, nil)
}

func (s *DataManagerStore) ListAudit(ctx context.Context, target string, limit int) ([]AuditRecord, error) {
	var recs []AuditRecord
	path := "/api/v1/configs/audit?target=" + url.QueryEscape(target) + "&limit=" + strconv.Itoa(limit)
	if err := s.do(ctx, http.MethodGet, path, nil, &recs); err != nil {
		return nil, err
	}
	return recs, nil
}

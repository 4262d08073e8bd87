package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"ta-signal-bot/internal/configstore"
	"ta-signal-bot/internal/strategy"
)

// appConfigUpdateRequest is the POST body for application config updates.
type appConfigUpdateRequest struct {
	configstore.AppConfigPatch
	ChangedBy    string `json:"changed_by"`
	Reason       string `json:"reason"`
	ValidateOnly bool   `json:"validate_only"`
}

// strategyConfigRequest is the POST body for strategy config writes.
type strategyConfigRequest struct {
	Params       strategy.Params `json:"params"`
	ChangedBy    string          `json:"changed_by"`
	Reason       string          `json:"reason"`
	ValidateOnly bool            `json:"validate_only"`
}

func (s *Server) handleGetAppConfig(c *gin.Context) {
	cfg, cacheHit, err := s.configs.AppConfig(c.Request.Context())
	if err != nil {
		respondFromErr(c, err)
		return
	}
	respond(c, http.StatusOK, cfg, gin.H{"cache_hit": cacheHit})
}

func (s *Server) handleUpdateAppConfig(c *gin.Context) {
	var req appConfigUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, codeBadRequest, "malformed request body", err.Error())
		return
	}
	if req.ChangedBy == "" {
		req.ChangedBy = "admin-api"
	}

	cfg, err := s.configs.UpdateAppConfig(c.Request.Context(), &req.AppConfigPatch,
		req.ChangedBy, req.Reason, req.ValidateOnly)
	if err != nil {
		respondFromErr(c, err)
		return
	}
	respond(c, http.StatusOK, cfg, gin.H{"validate_only": req.ValidateOnly})
}

func (s *Server) handleAppConfigAudit(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	recs, err := s.configs.ListAudit(c.Request.Context(), configstore.TargetApplication, limit)
	if err != nil {
		respondFromErr(c, err)
		return
	}
	respond(c, http.StatusOK, recs, nil)
}

func (s *Server) handleCacheRefresh(c *gin.Context) {
	s.configs.PurgeAll()
	respond(c, http.StatusOK, gin.H{"purged": true}, nil)
}

func (s *Server) handleListStrategies(c *gin.Context) {
	respond(c, http.StatusOK, s.registry.IDs(), nil)
}

// scopeFrom maps the optional :symbol path segment onto a config scope.
func scopeFrom(c *gin.Context) string {
	if symbol := c.Param("symbol"); symbol != "" {
		return symbol
	}
	return configstore.ScopeGlobal
}

func (s *Server) handleGetStrategyConfig(c *gin.Context) {
	cfg, cacheHit, err := s.configs.StrategyConfig(c.Request.Context(), c.Param("id"), scopeFrom(c))
	if err != nil {
		respondFromErr(c, err)
		return
	}
	respond(c, http.StatusOK, cfg, gin.H{"cache_hit": cacheHit})
}

func (s *Server) handlePutStrategyConfig(c *gin.Context) {
	var req strategyConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, codeBadRequest, "malformed request body", err.Error())
		return
	}
	if req.ChangedBy == "" {
		req.ChangedBy = "admin-api"
	}

	cfg := &configstore.StrategyConfig{
		StrategyID: c.Param("id"),
		Scope:      scopeFrom(c),
		Params:     req.Params,
	}
	saved, err := s.configs.PutStrategyConfig(c.Request.Context(), cfg,
		req.ChangedBy, req.Reason, req.ValidateOnly)
	if err != nil {
		respondFromErr(c, err)
		return
	}
	respond(c, http.StatusOK, saved, gin.H{"validate_only": req.ValidateOnly})
}

func (s *Server) handleDeleteStrategyConfig(c *gin.Context) {
	changedBy := c.DefaultQuery("changed_by", "admin-api")
	reason := c.Query("reason")

	err := s.configs.DeleteStrategyConfig(c.Request.Context(), c.Param("id"), scopeFrom(c), changedBy, reason)
	if err != nil {
		respondFromErr(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"deleted": true}, nil)
}

func (s *Server) handleStrategyAudit(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	scope := c.DefaultQuery("scope", configstore.ScopeGlobal)
	target := configstore.StrategyTarget(c.Param("id"), scope)

	recs, err := s.configs.ListAudit(c.Request.Context(), target, limit)
	if err != nil {
		respondFromErr(c, err)
		return
	}
	respond(c, http.StatusOK, recs, nil)
}

func (s *Server) handleReenableStrategy(c *gin.Context) {
	id := c.Param("id")
	if !s.registry.Known(id) {
		respondError(c, http.StatusNotFound, codeNotFound, "unknown strategy", nil)
		return
	}
	s.engine.ReenableStrategy(id)
	respond(c, http.StatusOK, gin.H{"strategy_id": id, "reenabled": true}, nil)
}

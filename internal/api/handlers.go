package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

func (s *Server) handleHealth(c *gin.Context) {
	status := "ok"
	dbStatus := "ok"
	if s.repo != nil {
		if err := s.repo.HealthCheck(c.Request.Context()); err != nil {
			status = "degraded"
			dbStatus = err.Error()
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"status":    status,
		"database":  dbStatus,
		"timestamp": time.Now().UTC(),
	})
}

func (s *Server) handleRecentSignals(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	symbol := c.Query("symbol")

	recs, err := s.repo.RecentSignals(c.Request.Context(), symbol, limit)
	if err != nil {
		respondError(c, http.StatusInternalServerError, codeInternal, err.Error(), nil)
		return
	}
	respond(c, http.StatusOK, recs, gin.H{"count": len(recs)})
}

func (s *Server) handleEngineStatus(c *gin.Context) {
	respond(c, http.StatusOK, gin.H{
		"hold_counts":         s.engine.HoldCounts(),
		"disabled_strategies": s.engine.DisabledStrategies(),
		"known_strategies":    len(s.registry.IDs()),
		"ws_clients":          s.hub.GetClientCount(),
	}, nil)
}

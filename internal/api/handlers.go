package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// handleHealth reports server liveness and scan freshness
func (s *Server) handleHealth(c *gin.Context) {
	resp := gin.H{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	}
	if last := s.scanner.LastScan(); !last.IsZero() {
		resp["lastScan"] = last.UTC().Format(time.RFC3339)
	}
	c.JSON(http.StatusOK, resp)
}

// handleListSnapshots returns the latest snapshot for every scanned symbol
func (s *Server) handleListSnapshots(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"snapshots": s.scanner.Snapshots()})
}

// handleGetSnapshot returns the latest snapshot for one symbol
func (s *Server) handleGetSnapshot(c *gin.Context) {
	symbol := strings.ToUpper(c.Param("symbol"))

	snap, ok := s.scanner.Snapshot(symbol)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no snapshot for symbol", "symbol": symbol})
		return
	}
	c.JSON(http.StatusOK, snap)
}

// handleGetZones returns active and confluence zones for one symbol
func (s *Server) handleGetZones(c *gin.Context) {
	symbol := strings.ToUpper(c.Param("symbol"))

	snap, ok := s.scanner.Snapshot(symbol)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no snapshot for symbol", "symbol": symbol})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"symbol":          symbol,
		"trend":           snap.Trend,
		"activeZones":     snap.ActiveZones,
		"confluenceZones": snap.ConfluenceZones,
	})
}

// handleListPlans returns recently persisted trade plans
func (s *Server) handleListPlans(c *gin.Context) {
	if s.repo == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "plan storage not configured"})
		return
	}

	limit := 50
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}

	recent, err := s.repo.GetRecentPlans(c.Request.Context(), limit)
	if err != nil {
		s.logger.Error("failed to load plans", "error", err.Error())
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load plans"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"plans": recent, "count": len(recent)})
}

// handleActivePlans returns plans currently under lifecycle tracking
func (s *Server) handleActivePlans(c *gin.Context) {
	if s.tracker == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "plan tracking not configured"})
		return
	}

	active := s.tracker.Active()
	c.JSON(http.StatusOK, gin.H{"plans": active, "count": len(active)})
}

// handleTriggerScan starts a scan cycle outside the regular interval
func (s *Server) handleTriggerScan(c *gin.Context) {
	go s.scanner.Scan()
	c.JSON(http.StatusAccepted, gin.H{"status": "scan triggered"})
}

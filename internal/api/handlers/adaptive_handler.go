package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/aegis-waf/aegis/internal/api/middleware"
	"github.com/aegis-waf/aegis/internal/services"
	"github.com/aegis-waf/aegis/internal/waf"
)

type AdaptiveHandler struct {
	Adaptive  *services.AdaptiveService
	Snapshots *waf.SnapshotStore
}

func NewAdaptiveHandler(adaptive *services.AdaptiveService, snapshots *waf.SnapshotStore) *AdaptiveHandler {
	return &AdaptiveHandler{Adaptive: adaptive, Snapshots: snapshots}
}

// Observe ingests one anomaly-scorer observation. High-confidence
// observations synthesize a candidate rule and enter shadow deployment.
func (h *AdaptiveHandler) Observe(c *gin.Context) {
	var obs services.AnomalyObservation
	if err := c.ShouldBindJSON(&obs); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	rule, err := h.Adaptive.Observe(obs)
	if err != nil {
		if errors.Is(err, services.ErrInvalidObservation) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to process observation"})
		return
	}

	if rule == nil {
		c.JSON(http.StatusOK, gin.H{"status": "ignored", "reason": "below confidence threshold"})
		return
	}

	if err := h.Snapshots.Refresh(); err != nil {
		middleware.GetRequestLogger(c).WithError(err).Warn("snapshot refresh after adaptive rule failed")
	}
	c.JSON(http.StatusCreated, rule)
}

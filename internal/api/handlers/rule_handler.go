package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/aegis-waf/aegis/internal/api/middleware"
	"github.com/aegis-waf/aegis/internal/models"
	"github.com/aegis-waf/aegis/internal/services"
	"github.com/aegis-waf/aegis/internal/waf"
)

type RuleHandler struct {
	Rules     *services.RuleService
	Snapshots *waf.SnapshotStore
}

func NewRuleHandler(rules *services.RuleService, snapshots *waf.SnapshotStore) *RuleHandler {
	return &RuleHandler{Rules: rules, Snapshots: snapshots}
}

type CreateRuleRequest struct {
	Name       string          `json:"name" binding:"required"`
	Category   string          `json:"category" binding:"required"`
	Severity   string          `json:"severity"`
	Action     string          `json:"action" binding:"required"`
	Priority   int             `json:"priority"`
	Enabled    bool            `json:"enabled"`
	Conditions json.RawMessage `json:"conditions" binding:"required"`
}

// Create registers a new security rule.
func (h *RuleHandler) Create(c *gin.Context) {
	var req CreateRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	severity := req.Severity
	if severity == "" {
		severity = "medium"
	}

	rule := &models.SecurityRule{
		Name:       req.Name,
		Category:   req.Category,
		Severity:   severity,
		Action:     req.Action,
		Priority:   req.Priority,
		Enabled:    req.Enabled,
		Conditions: string(req.Conditions),
	}

	if err := h.Rules.Create(rule); err != nil {
		if errors.Is(err, services.ErrInvalidRuleAction) || errors.Is(err, waf.ErrInvalidCondition) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create rule"})
		return
	}

	h.refreshSnapshot(c)
	c.JSON(http.StatusCreated, rule)
}

// List returns all rules ordered by priority.
func (h *RuleHandler) List(c *gin.Context) {
	rules, err := h.Rules.List()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch rules"})
		return
	}
	c.JSON(http.StatusOK, rules)
}

// Get returns one rule by UUID.
func (h *RuleHandler) Get(c *gin.Context) {
	rule, err := h.Rules.GetByUUID(c.Param("uuid"))
	if err != nil {
		if errors.Is(err, services.ErrRuleNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Rule not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch rule"})
		return
	}
	c.JSON(http.StatusOK, rule)
}

// Enable turns a rule on for enforcement.
func (h *RuleHandler) Enable(c *gin.Context) {
	h.setEnabled(c, true)
}

// Disable turns a rule off. Rules are never deleted.
func (h *RuleHandler) Disable(c *gin.Context) {
	h.setEnabled(c, false)
}

func (h *RuleHandler) setEnabled(c *gin.Context, enabled bool) {
	rule, err := h.Rules.SetEnabled(c.Param("uuid"), enabled)
	if err != nil {
		if errors.Is(err, services.ErrRuleNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Rule not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update rule"})
		return
	}

	h.refreshSnapshot(c)
	c.JSON(http.StatusOK, rule)
}

// refreshSnapshot makes the mutation visible to request evaluation
// without waiting for the periodic refresh.
func (h *RuleHandler) refreshSnapshot(c *gin.Context) {
	if err := h.Snapshots.Refresh(); err != nil {
		middleware.GetRequestLogger(c).WithError(err).Warn("snapshot refresh after rule mutation failed")
	}
}

package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/aegis-waf/aegis/internal/api/middleware"
	"github.com/aegis-waf/aegis/internal/models"
	"github.com/aegis-waf/aegis/internal/services"
	"github.com/aegis-waf/aegis/internal/waf"
)

type DeploymentHandler struct {
	Deployments *services.DeploymentService
	Snapshots   *waf.SnapshotStore
}

func NewDeploymentHandler(deployments *services.DeploymentService, snapshots *waf.SnapshotStore) *DeploymentHandler {
	return &DeploymentHandler{Deployments: deployments, Snapshots: snapshots}
}

// DeployShadow enters a rule into shadow observation.
func (h *DeploymentHandler) DeployShadow(c *gin.Context) {
	h.transition(c, h.Deployments.DeployShadow)
}

// PromoteCanary moves a shadow deployment into canary enforcement.
func (h *DeploymentHandler) PromoteCanary(c *gin.Context) {
	h.transition(c, h.Deployments.PromoteToCanary)
}

// PromoteProduction fully enforces a canary deployment when its measured
// rates clear the gates.
func (h *DeploymentHandler) PromoteProduction(c *gin.Context) {
	h.transition(c, h.Deployments.PromoteToProduction)
}

// Demote is the operator rollback path.
func (h *DeploymentHandler) Demote(c *gin.Context) {
	h.transition(c, h.Deployments.Demote)
}

// Disable deactivates a rule's deployment, preserving history.
func (h *DeploymentHandler) Disable(c *gin.Context) {
	h.transition(c, h.Deployments.Disable)
}

// List returns all deployments.
func (h *DeploymentHandler) List(c *gin.Context) {
	deployments, err := h.Deployments.List()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch deployments"})
		return
	}
	c.JSON(http.StatusOK, deployments)
}

// Evaluate triggers the promotion sweep on demand.
func (h *DeploymentHandler) Evaluate(c *gin.Context) {
	if err := h.Deployments.EvaluatePromotions(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Promotion sweep failed"})
		return
	}

	h.refreshSnapshot(c)
	c.JSON(http.StatusOK, gin.H{"status": "evaluated"})
}

func (h *DeploymentHandler) transition(c *gin.Context, fn func(string) (*models.RuleDeployment, error)) {
	deployment, err := fn(c.Param("uuid"))
	if err != nil {
		switch {
		case errors.Is(err, services.ErrRuleNotFound), errors.Is(err, services.ErrDeploymentNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		case errors.Is(err, services.ErrAlreadyDeployed),
			errors.Is(err, services.ErrNotInShadow),
			errors.Is(err, services.ErrNotInCanary):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		case errors.Is(err, services.ErrThresholdsNotMet):
			// The deployment holds its phase; report the measured rates.
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error(), "deployment": deployment})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Deployment transition failed"})
		}
		return
	}

	h.refreshSnapshot(c)
	c.JSON(http.StatusOK, deployment)
}

func (h *DeploymentHandler) refreshSnapshot(c *gin.Context) {
	if err := h.Snapshots.Refresh(); err != nil {
		middleware.GetRequestLogger(c).WithError(err).Warn("snapshot refresh after deployment transition failed")
	}
}

package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/aegis-waf/aegis/internal/api/middleware"
	"github.com/aegis-waf/aegis/internal/waf"
)

type EvaluateHandler struct {
	Engine *waf.Engine
}

func NewEvaluateHandler(engine *waf.Engine) *EvaluateHandler {
	return &EvaluateHandler{Engine: engine}
}

// Evaluate runs the inspection pipeline for one request. The caller
// always receives HTTP 200 with a decision object: internal WAF faults
// resolve to allow and must never be misread as a block by the upstream
// proxy.
func (h *EvaluateHandler) Evaluate(c *gin.Context) {
	var raw waf.RawRequest
	if err := c.ShouldBindJSON(&raw); err != nil {
		middleware.GetRequestLogger(c).WithError(err).Debug("undecodable evaluate payload, failing open")
		c.JSON(http.StatusOK, &waf.Decision{
			Action:      waf.ActionAllow,
			StatusCode:  http.StatusOK,
			Reason:      "malformed_request",
			RuleMatches: []string{},
		})
		return
	}

	dec := h.Engine.Evaluate(c.Request.Context(), raw)
	c.JSON(http.StatusOK, dec)
}

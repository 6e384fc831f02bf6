package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/aegis-waf/aegis/internal/models"
	"github.com/aegis-waf/aegis/internal/services"
	"github.com/aegis-waf/aegis/internal/waf"
)

func newDeploymentRouter(t *testing.T, db *gorm.DB) (*gin.Engine, *services.RuleService) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := waf.NewSnapshotStore(db)
	require.NoError(t, store.Refresh())
	ruleService := services.NewRuleService(db)
	deploymentService := services.NewDeploymentService(db, handlerTestConfig(), ruleService, services.NewNotificationService(db))
	h := NewDeploymentHandler(deploymentService, store)

	r := gin.New()
	r.POST("/rules/:uuid/deploy", h.DeployShadow)
	r.POST("/rules/:uuid/promote/canary", h.PromoteCanary)
	r.POST("/rules/:uuid/promote/production", h.PromoteProduction)
	r.POST("/rules/:uuid/demote", h.Demote)
	r.GET("/deployments", h.List)
	r.POST("/deployments/evaluate", h.Evaluate)
	return r, ruleService
}

func post(t *testing.T, r *gin.Engine, path string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, nil)
	r.ServeHTTP(w, req)
	return w
}

func TestDeploymentHandler_Lifecycle(t *testing.T) {
	db := setupHandlerTestDB(t)
	r, ruleService := newDeploymentRouter(t, db)

	rule := &models.SecurityRule{
		Name: "sqli", Category: "sql_injection", Action: models.RuleActionBlock,
		Conditions: `[{"kind":"pattern","patterns":["union\\s+select"]}]`,
	}
	require.NoError(t, ruleService.Create(rule))

	w := post(t, r, "/rules/"+rule.UUID+"/deploy")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), models.PhaseShadow)

	// Double deploy conflicts.
	w = post(t, r, "/rules/"+rule.UUID+"/deploy")
	assert.Equal(t, http.StatusConflict, w.Code)

	w = post(t, r, "/rules/"+rule.UUID+"/promote/canary")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), models.PhaseCanary)

	// Gates not met: unprocessable, deployment holds its phase.
	w = post(t, r, "/rules/"+rule.UUID+"/promote/production")
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), models.PhaseCanary)

	// With enough favorable evidence the promotion goes through.
	for i := 0; i < 25; i++ {
		require.NoError(t, db.Create(&models.SecurityEvent{
			UUID:        uuid.NewString(),
			Action:      "block",
			RuleMatches: `["` + rule.UUID + `"]`,
			Feedback:    models.FeedbackConfirmedThreat,
		}).Error)
	}
	w = post(t, r, "/rules/"+rule.UUID+"/promote/production")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), models.PhaseProduction)

	w = post(t, r, "/rules/"+rule.UUID+"/demote")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), models.PhaseShadow)
}

func TestDeploymentHandler_NotFound(t *testing.T) {
	db := setupHandlerTestDB(t)
	r, _ := newDeploymentRouter(t, db)

	w := post(t, r, "/rules/missing/deploy")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = post(t, r, "/rules/missing/promote/canary")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDeploymentHandler_PhaseConflicts(t *testing.T) {
	db := setupHandlerTestDB(t)
	r, ruleService := newDeploymentRouter(t, db)

	rule := &models.SecurityRule{
		Name: "sqli", Category: "sql_injection", Action: models.RuleActionBlock,
		Conditions: `[{"kind":"pattern","patterns":["union\\s+select"]}]`,
	}
	require.NoError(t, ruleService.Create(rule))

	require.Equal(t, http.StatusOK, post(t, r, "/rules/"+rule.UUID+"/deploy").Code)

	// Production promotion straight from shadow is a phase conflict.
	w := post(t, r, "/rules/"+rule.UUID+"/promote/production")
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestDeploymentHandler_ListAndEvaluate(t *testing.T) {
	db := setupHandlerTestDB(t)
	r, ruleService := newDeploymentRouter(t, db)

	rule := &models.SecurityRule{
		Name: "sqli", Category: "sql_injection", Action: models.RuleActionBlock,
		Conditions: `[{"kind":"pattern","patterns":["union\\s+select"]}]`,
	}
	require.NoError(t, ruleService.Create(rule))
	require.Equal(t, http.StatusOK, post(t, r, "/rules/"+rule.UUID+"/deploy").Code)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/deployments", nil)
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), rule.UUID)

	w = post(t, r, "/deployments/evaluate")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "evaluated")
}

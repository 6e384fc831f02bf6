package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/aegis-waf/aegis/internal/models"
	"github.com/aegis-waf/aegis/internal/services"
	"github.com/aegis-waf/aegis/internal/waf"
)

func newRuleRouter(t *testing.T, db *gorm.DB) (*gin.Engine, *services.RuleService) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := waf.NewSnapshotStore(db)
	require.NoError(t, store.Refresh())
	ruleService := services.NewRuleService(db)
	h := NewRuleHandler(ruleService, store)

	r := gin.New()
	r.POST("/rules", h.Create)
	r.GET("/rules", h.List)
	r.GET("/rules/:uuid", h.Get)
	r.PUT("/rules/:uuid/enable", h.Enable)
	r.PUT("/rules/:uuid/disable", h.Disable)
	return r, ruleService
}

func TestRuleHandler_Create(t *testing.T) {
	db := setupHandlerTestDB(t)
	r, _ := newRuleRouter(t, db)

	w := postJSON(t, r, "/rules", CreateRuleRequest{
		Name:       "sqli",
		Category:   "sql_injection",
		Severity:   "critical",
		Action:     models.RuleActionBlock,
		Priority:   1,
		Enabled:    true,
		Conditions: json.RawMessage(`[{"kind":"pattern","patterns":["union\\s+select"],"targets":["query"]}]`),
	})

	require.Equal(t, http.StatusCreated, w.Code)

	var rule models.SecurityRule
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rule))
	assert.NotEmpty(t, rule.UUID)
	assert.Equal(t, "sqli", rule.Name)
}

func TestRuleHandler_CreateInvalid(t *testing.T) {
	db := setupHandlerTestDB(t)
	r, _ := newRuleRouter(t, db)

	// Unknown action.
	w := postJSON(t, r, "/rules", CreateRuleRequest{
		Name:       "bad",
		Category:   "x",
		Action:     "obliterate",
		Conditions: json.RawMessage(`[{"kind":"pattern","patterns":["x"]}]`),
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Broken condition set.
	w = postJSON(t, r, "/rules", CreateRuleRequest{
		Name:       "bad",
		Category:   "x",
		Action:     models.RuleActionBlock,
		Conditions: json.RawMessage(`[{"kind":"quantum"}]`),
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Missing required fields.
	w = postJSON(t, r, "/rules", gin.H{"name": "incomplete"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRuleHandler_GetAndList(t *testing.T) {
	db := setupHandlerTestDB(t)
	r, ruleService := newRuleRouter(t, db)

	rule := &models.SecurityRule{
		Name: "sqli", Category: "sql_injection", Action: models.RuleActionBlock,
		Conditions: `[{"kind":"pattern","patterns":["union\\s+select"]}]`,
	}
	require.NoError(t, ruleService.Create(rule))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/rules/"+rule.UUID, nil)
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), rule.UUID)

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/rules/does-not-exist", nil)
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/rules", nil)
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "sqli")
}

func TestRuleHandler_EnableDisable(t *testing.T) {
	db := setupHandlerTestDB(t)
	r, ruleService := newRuleRouter(t, db)

	rule := &models.SecurityRule{
		Name: "sqli", Category: "sql_injection", Action: models.RuleActionBlock,
		Conditions: `[{"kind":"pattern","patterns":["union\\s+select"]}]`,
	}
	require.NoError(t, ruleService.Create(rule))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPut, "/rules/"+rule.UUID+"/enable", nil)
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	fetched, err := ruleService.GetByUUID(rule.UUID)
	require.NoError(t, err)
	assert.True(t, fetched.Enabled)

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPut, "/rules/"+rule.UUID+"/disable", nil)
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	fetched, err = ruleService.GetByUUID(rule.UUID)
	require.NoError(t, err)
	assert.False(t, fetched.Enabled)
}

package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"

	"github.com/aegis-waf/aegis/internal/config"
	"github.com/aegis-waf/aegis/internal/logger"
	"github.com/aegis-waf/aegis/internal/models"
	"github.com/aegis-waf/aegis/internal/waf"
)

var ErrInvalidObservation = errors.New("invalid anomaly observation")

// AnomalyObservation is the output of an opaque anomaly scorer: a
// distilled pattern with a confidence estimate. The scorer itself is an
// external collaborator; this service only consumes its output.
type AnomalyObservation struct {
	Confidence  float64 `json:"confidence"`
	Category    string  `json:"category"`
	Pattern     string  `json:"pattern"`
	Target      string  `json:"target,omitempty"`
	Description string  `json:"description,omitempty"`
	SourceIP    string  `json:"source_ip,omitempty"`
}

// AdaptiveService synthesizes candidate rules from high-confidence
// anomaly observations and enters them into shadow deployment. Candidate
// rules start disabled and only become enforced through the pipeline.
type AdaptiveService struct {
	cfg         config.Config
	rules       *RuleService
	deployments *DeploymentService
}

func NewAdaptiveService(cfg config.Config, rules *RuleService, deployments *DeploymentService) *AdaptiveService {
	return &AdaptiveService{cfg: cfg, rules: rules, deployments: deployments}
}

// Observe consumes one anomaly observation. Below the confidence
// threshold it is a no-op; above it a candidate rule is created and
// shadow-deployed. Returns the created rule, or nil when none was made.
func (s *AdaptiveService) Observe(obs AnomalyObservation) (*models.SecurityRule, error) {
	if obs.Pattern == "" {
		return nil, fmt.Errorf("%w: missing pattern", ErrInvalidObservation)
	}
	if _, err := regexp.Compile(obs.Pattern); err != nil {
		return nil, fmt.Errorf("%w: pattern does not compile: %v", ErrInvalidObservation, err)
	}

	if obs.Confidence < s.cfg.AdaptiveConfidence {
		logger.WithFields(map[string]interface{}{
			"confidence": obs.Confidence,
			"category":   obs.Category,
		}).Debug("anomaly observation below confidence threshold, ignored")
		return nil, nil
	}

	category := obs.Category
	if category == "" {
		category = "anomaly"
	}
	target := obs.Target
	if target == "" {
		target = waf.TargetQuery
	}

	conditions, err := json.Marshal([]map[string]interface{}{{
		"kind":     waf.KindPattern,
		"patterns": []string{obs.Pattern},
		"targets":  []string{target},
	}})
	if err != nil {
		return nil, err
	}

	name := obs.Description
	if name == "" {
		name = fmt.Sprintf("adaptive %s candidate", category)
	}

	rule := &models.SecurityRule{
		Name:       name,
		Category:   category,
		Severity:   "high",
		Action:     models.RuleActionBlock,
		Priority:   100,
		Conditions: string(conditions),
		Confidence: obs.Confidence,
	}
	if err := s.rules.CreateAdaptive(rule); err != nil {
		return nil, err
	}

	if _, err := s.deployments.DeployShadow(rule.UUID); err != nil {
		return nil, err
	}

	logger.WithFields(map[string]interface{}{
		"rule":       rule.UUID,
		"category":   category,
		"confidence": obs.Confidence,
	}).Info("adaptive rule candidate entered shadow deployment")
	return rule, nil
}

package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/aegis-waf/aegis/internal/config"
	"github.com/aegis-waf/aegis/internal/logger"
	"github.com/aegis-waf/aegis/internal/metrics"
	"github.com/aegis-waf/aegis/internal/models"
)

var (
	ErrDeploymentNotFound = errors.New("rule deployment not found")
	ErrAlreadyDeployed    = errors.New("rule already has an active deployment")
	ErrNotInShadow        = errors.New("deployment is not in shadow phase")
	ErrNotInCanary        = errors.New("deployment is not in canary phase")
	ErrThresholdsNotMet   = errors.New("promotion thresholds not met")
)

// DeploymentService drives the shadow -> canary -> production state
// machine. Promotion gates are computed from accumulated SecurityEvent
// feedback, never invented. A failed promotion leaves the deployment in
// its current phase; rollback is an explicit operator action.
type DeploymentService struct {
	db       *gorm.DB
	cfg      config.Config
	rules    *RuleService
	notifier *NotificationService
}

func NewDeploymentService(db *gorm.DB, cfg config.Config, rules *RuleService, notifier *NotificationService) *DeploymentService {
	return &DeploymentService{db: db, cfg: cfg, rules: rules, notifier: notifier}
}

// DeployShadow creates a shadow deployment for the rule: evaluated and
// observed, never enforced. Entry point for every new or adaptive rule.
func (s *DeploymentService) DeployShadow(ruleUUID string) (*models.RuleDeployment, error) {
	if _, err := s.rules.GetByUUID(ruleUUID); err != nil {
		return nil, err
	}

	if existing, err := s.activeDeployment(ruleUUID); err == nil && existing != nil {
		return nil, ErrAlreadyDeployed
	} else if err != nil && !errors.Is(err, ErrDeploymentNotFound) {
		return nil, err
	}

	now := time.Now()
	deployment := &models.RuleDeployment{
		UUID:       uuid.NewString(),
		RuleUUID:   ruleUUID,
		Phase:      models.PhaseShadow,
		Status:     models.DeploymentActive,
		StartTime:  now,
		PhaseStart: now,
	}
	if err := s.db.Create(deployment).Error; err != nil {
		return nil, err
	}

	metrics.IncPromotion(models.PhaseShadow)
	return deployment, nil
}

// PromoteToCanary moves a shadow deployment into canary enforcement for
// the configured traffic percentage. Success and false-positive rates
// are computed from the shadow-phase observation window.
func (s *DeploymentService) PromoteToCanary(ruleUUID string) (*models.RuleDeployment, error) {
	deployment, err := s.activeDeployment(ruleUUID)
	if err != nil {
		return nil, err
	}
	if deployment.Phase != models.PhaseShadow {
		return nil, ErrNotInShadow
	}

	success, fpr, samples, err := s.computeRates(ruleUUID, deployment.PhaseStart)
	if err != nil {
		return nil, err
	}

	deployment.Phase = models.PhaseCanary
	deployment.TrafficPercentage = s.cfg.CanaryPercent
	deployment.SuccessRate = success
	deployment.FalsePositiveRate = fpr
	deployment.Status = models.DeploymentActive
	deployment.PhaseStart = time.Now()
	if err := s.db.Save(deployment).Error; err != nil {
		return nil, err
	}

	metrics.IncPromotion(models.PhaseCanary)
	s.notifyPromotion(deployment, samples)
	return deployment, nil
}

// PromoteToProduction fully enforces the rule. Requires a canary phase
// whose measured rates clear the configured gates; otherwise the
// deployment stays in canary.
func (s *DeploymentService) PromoteToProduction(ruleUUID string) (*models.RuleDeployment, error) {
	deployment, err := s.activeDeployment(ruleUUID)
	if err != nil {
		return nil, err
	}
	if deployment.Phase != models.PhaseCanary {
		return nil, ErrNotInCanary
	}

	success, fpr, samples, err := s.computeRates(ruleUUID, deployment.PhaseStart)
	if err != nil {
		return nil, err
	}

	deployment.SuccessRate = success
	deployment.FalsePositiveRate = fpr
	if !s.gatesPass(success, fpr, samples) {
		// Persist the measured rates but hold the phase.
		if err := s.db.Save(deployment).Error; err != nil {
			return nil, err
		}
		return deployment, fmt.Errorf("%w: success=%.3f fpr=%.3f samples=%d", ErrThresholdsNotMet, success, fpr, samples)
	}

	now := time.Now()
	deployment.Phase = models.PhaseProduction
	deployment.TrafficPercentage = 100
	deployment.Status = models.DeploymentActive
	deployment.PhaseStart = now
	deployment.EndTime = &now
	if err := s.db.Save(deployment).Error; err != nil {
		return nil, err
	}

	// Activate the rule for full enforcement.
	if _, err := s.rules.SetEnabled(ruleUUID, true); err != nil {
		return nil, err
	}

	metrics.IncPromotion(models.PhaseProduction)
	s.notifyPromotion(deployment, samples)
	return deployment, nil
}

// Demote is the operator-invoked exception path for a rule whose false
// positives spiked after promotion: enforcement stops and the deployment
// returns to shadow observation.
func (s *DeploymentService) Demote(ruleUUID string) (*models.RuleDeployment, error) {
	deployment, err := s.activeDeployment(ruleUUID)
	if err != nil {
		return nil, err
	}

	deployment.Phase = models.PhaseShadow
	deployment.TrafficPercentage = 0
	deployment.Status = models.DeploymentActive
	deployment.PhaseStart = time.Now()
	deployment.EndTime = nil
	if err := s.db.Save(deployment).Error; err != nil {
		return nil, err
	}
	if _, err := s.rules.SetEnabled(ruleUUID, false); err != nil {
		return nil, err
	}

	s.notifier.SendExternal(EventDemotion, "Rule demoted",
		fmt.Sprintf("Rule %s was demoted to shadow observation", ruleUUID))
	return deployment, nil
}

// Disable deactivates a rule's deployment without deleting its history.
func (s *DeploymentService) Disable(ruleUUID string) (*models.RuleDeployment, error) {
	deployment, err := s.activeDeployment(ruleUUID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	deployment.Status = models.DeploymentDisabled
	deployment.EndTime = &now
	if err := s.db.Save(deployment).Error; err != nil {
		return nil, err
	}
	if _, err := s.rules.SetEnabled(ruleUUID, false); err != nil {
		return nil, err
	}
	return deployment, nil
}

// List returns all deployments, newest first.
func (s *DeploymentService) List() ([]models.RuleDeployment, error) {
	var deployments []models.RuleDeployment
	if err := s.db.Order("created_at desc").Find(&deployments).Error; err != nil {
		return nil, err
	}
	return deployments, nil
}

// EvaluatePromotions sweeps all active shadow and canary deployments,
// recomputes their rates from accumulated event feedback, and promotes
// the ones that clear the gates. Deployments still inconclusive after
// the review timeout are flagged for manual review.
func (s *DeploymentService) EvaluatePromotions() error {
	var deployments []models.RuleDeployment
	if err := s.db.Where("status = ? AND phase IN ?", models.DeploymentActive,
		[]string{models.PhaseShadow, models.PhaseCanary}).Find(&deployments).Error; err != nil {
		return fmt.Errorf("list active deployments: %w", err)
	}

	for i := range deployments {
		if err := s.evaluateOne(&deployments[i]); err != nil {
			logger.WithFields(map[string]interface{}{
				"deployment": deployments[i].UUID,
				"rule":       deployments[i].RuleUUID,
			}).WithError(err).Warn("promotion sweep: deployment evaluation failed")
		}
	}
	return nil
}

func (s *DeploymentService) evaluateOne(deployment *models.RuleDeployment) error {
	success, fpr, samples, err := s.computeRates(deployment.RuleUUID, deployment.PhaseStart)
	if err != nil {
		return err
	}

	deployment.SuccessRate = success
	deployment.FalsePositiveRate = fpr
	if err := s.db.Save(deployment).Error; err != nil {
		return err
	}

	if s.gatesPass(success, fpr, samples) {
		switch deployment.Phase {
		case models.PhaseShadow:
			_, err = s.PromoteToCanary(deployment.RuleUUID)
		case models.PhaseCanary:
			_, err = s.PromoteToProduction(deployment.RuleUUID)
		}
		return err
	}

	if samples < s.cfg.PromoteMinSamples && time.Since(deployment.PhaseStart) > s.cfg.ReviewTimeout {
		deployment.Status = models.DeploymentNeedsReview
		if err := s.db.Save(deployment).Error; err != nil {
			return err
		}
		s.notifier.SendExternal(EventReview, "Rule deployment needs review",
			fmt.Sprintf("Deployment for rule %s has inconclusive metrics after %s (samples=%d)",
				deployment.RuleUUID, s.cfg.ReviewTimeout, samples))
	}
	return nil
}

func (s *DeploymentService) gatesPass(success, fpr float64, samples int) bool {
	return samples >= s.cfg.PromoteMinSamples &&
		success >= s.cfg.PromoteSuccessRate &&
		fpr <= s.cfg.PromoteMaxFPR
}

// computeRates derives success and false-positive rates for a rule from
// operator feedback on events recorded since the phase began. Success is
// the fraction of the rule's matches correlated with confirmed threats;
// false positives are matches confirmed benign.
func (s *DeploymentService) computeRates(ruleUUID string, since time.Time) (success, fpr float64, samples int, err error) {
	needle := "%\"" + ruleUUID + "\"%"

	var confirmed, benign int64
	base := func() *gorm.DB {
		return s.db.Model(&models.SecurityEvent{}).
			Where("created_at >= ?", since).
			Where("rule_matches LIKE ? OR shadow_matches LIKE ?", needle, needle)
	}

	if err = base().Where("feedback = ?", models.FeedbackConfirmedThreat).Count(&confirmed).Error; err != nil {
		return 0, 0, 0, fmt.Errorf("count confirmed threats: %w", err)
	}
	if err = base().Where("feedback = ?", models.FeedbackBenign).Count(&benign).Error; err != nil {
		return 0, 0, 0, fmt.Errorf("count benign matches: %w", err)
	}

	samples = int(confirmed + benign)
	if samples == 0 {
		return 0, 0, 0, nil
	}
	success = float64(confirmed) / float64(samples)
	fpr = float64(benign) / float64(samples)
	return success, fpr, samples, nil
}

func (s *DeploymentService) activeDeployment(ruleUUID string) (*models.RuleDeployment, error) {
	var deployment models.RuleDeployment
	err := s.db.Where("rule_uuid = ? AND status IN ?", ruleUUID,
		[]string{models.DeploymentActive, models.DeploymentNeedsReview}).
		Order("created_at desc").First(&deployment).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDeploymentNotFound
		}
		return nil, err
	}
	return &deployment, nil
}

func (s *DeploymentService) notifyPromotion(deployment *models.RuleDeployment, samples int) {
	s.notifier.SendExternal(EventPromotion, "Rule promoted to "+deployment.Phase,
		fmt.Sprintf("Rule %s promoted to %s (success=%.2f fpr=%.2f samples=%d traffic=%d%%)",
			deployment.RuleUUID, deployment.Phase, deployment.SuccessRate,
			deployment.FalsePositiveRate, samples, deployment.TrafficPercentage))
}

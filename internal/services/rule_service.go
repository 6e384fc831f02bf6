package services

import (
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/aegis-waf/aegis/internal/models"
	"github.com/aegis-waf/aegis/internal/waf"
)

var (
	ErrRuleNotFound      = errors.New("security rule not found")
	ErrInvalidRuleAction = errors.New("invalid rule action")
)

// ValidRuleActions defines allowed rule actions.
var ValidRuleActions = []string{models.RuleActionBlock, models.RuleActionMonitor, models.RuleActionChallenge}

type RuleService struct {
	db *gorm.DB
}

func NewRuleService(db *gorm.DB) *RuleService {
	return &RuleService{db: db}
}

// Create validates and stores a new security rule.
func (s *RuleService) Create(rule *models.SecurityRule) error {
	if err := s.validate(rule); err != nil {
		return err
	}

	rule.UUID = uuid.NewString()
	return s.db.Create(rule).Error
}

// CreateAdaptive stores a candidate rule synthesized by the adaptive
// generator. Adaptive rules start disabled and become enforced only
// through the deployment pipeline.
func (s *RuleService) CreateAdaptive(rule *models.SecurityRule) error {
	rule.AutoGenerated = true
	rule.Enabled = false
	return s.Create(rule)
}

// GetByUUID retrieves a rule by UUID.
func (s *RuleService) GetByUUID(ruleUUID string) (*models.SecurityRule, error) {
	var rule models.SecurityRule
	if err := s.db.Where("uuid = ?", ruleUUID).First(&rule).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRuleNotFound
		}
		return nil, err
	}
	return &rule, nil
}

// List retrieves all rules ordered by priority.
func (s *RuleService) List() ([]models.SecurityRule, error) {
	var rules []models.SecurityRule
	if err := s.db.Order("priority asc, id asc").Find(&rules).Error; err != nil {
		return nil, err
	}
	return rules, nil
}

// ListEnabled retrieves enabled rules ordered by priority.
func (s *RuleService) ListEnabled() ([]models.SecurityRule, error) {
	var rules []models.SecurityRule
	if err := s.db.Where("enabled = ?", true).Order("priority asc, id asc").Find(&rules).Error; err != nil {
		return nil, err
	}
	return rules, nil
}

// SetEnabled flips a rule's enabled flag. Rules are never deleted, only
// disabled, to preserve audit history.
func (s *RuleService) SetEnabled(ruleUUID string, enabled bool) (*models.SecurityRule, error) {
	rule, err := s.GetByUUID(ruleUUID)
	if err != nil {
		return nil, err
	}

	rule.Enabled = enabled
	if err := s.db.Save(rule).Error; err != nil {
		return nil, err
	}
	return rule, nil
}

func (s *RuleService) validate(rule *models.SecurityRule) error {
	valid := false
	for _, a := range ValidRuleActions {
		if rule.Action == a {
			valid = true
			break
		}
	}
	if !valid {
		return ErrInvalidRuleAction
	}

	if _, err := waf.ParseConditions(rule.Conditions); err != nil {
		return err
	}
	return nil
}

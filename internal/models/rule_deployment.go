package models

import (
	"time"
)

// Deployment phases. A rule moves shadow -> canary -> production, with
// traffic percentage non-decreasing across the lifecycle.
const (
	PhaseShadow     = "shadow"
	PhaseCanary     = "canary"
	PhaseProduction = "production"
)

// Deployment statuses.
const (
	DeploymentActive      = "active"
	DeploymentNeedsReview = "needs_review"
	DeploymentDisabled    = "disabled"
)

// RuleDeployment tracks a rule's progression through the promotion pipeline.
// At most one active deployment exists per rule at a time.
type RuleDeployment struct {
	ID                uint       `json:"id" gorm:"primaryKey"`
	UUID              string     `json:"uuid" gorm:"uniqueIndex"`
	RuleUUID          string     `json:"rule_uuid" gorm:"index"`
	Phase             string     `json:"phase"` // shadow, canary, production
	TrafficPercentage int        `json:"traffic_percentage"` // 0-100
	SuccessRate       float64    `json:"success_rate"`
	FalsePositiveRate float64    `json:"false_positive_rate"`
	Status            string     `json:"status"` // active, needs_review, disabled
	StartTime         time.Time  `json:"start_time"`
	PhaseStart        time.Time  `json:"phase_start"` // start of the current phase's observation window
	EndTime           *time.Time `json:"end_time,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// Active reports whether this deployment still governs its rule.
func (d *RuleDeployment) Active() bool {
	return d.Status == DeploymentActive || d.Status == DeploymentNeedsReview
}

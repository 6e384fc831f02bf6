package models

import (
	"time"
)

// Rule actions decide what happens when a rule's conditions match a request.
const (
	RuleActionBlock     = "block"
	RuleActionMonitor   = "monitor"
	RuleActionChallenge = "challenge"
)

// SecurityRule stores a detection rule evaluated against incoming requests.
// Rules are never deleted, only disabled, so audit history stays intact.
// Auto-generated rules carry a learning confidence and must pass the
// deployment pipeline before they are enabled for enforcement.
type SecurityRule struct {
	ID            uint      `json:"id" gorm:"primaryKey"`
	UUID          string    `json:"uuid" gorm:"uniqueIndex"`
	Name          string    `json:"name" gorm:"index"`
	Category      string    `json:"category"` // e.g., injection, xss, traversal, automation, rate_limit, geo
	Enabled       bool      `json:"enabled" gorm:"index"`
	Severity      string    `json:"severity"` // low, medium, high, critical
	Action        string    `json:"action"`   // block, monitor, challenge
	Priority      int       `json:"priority" gorm:"index"` // lower value evaluated first
	Conditions    string    `json:"conditions" gorm:"type:text"` // JSON condition set, decoded by the waf package
	AutoGenerated bool      `json:"auto_generated"`
	Confidence    float64   `json:"confidence"` // learning confidence for auto-generated rules
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

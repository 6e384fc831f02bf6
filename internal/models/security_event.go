package models

import (
	"time"
)

// Feedback values operators attach to events. They are the ground truth
// feeding deployment promotion metrics.
const (
	FeedbackConfirmedThreat = "confirmed_threat"
	FeedbackBenign          = "benign"
)

// SecurityEvent is the denormalized, append-only record of a WAF decision
// plus request metadata, written off the hot path for audit and analytics.
type SecurityEvent struct {
	ID               uint      `json:"id" gorm:"primaryKey"`
	UUID             string    `json:"uuid" gorm:"uniqueIndex"`
	Action           string    `json:"action"` // allow, block, challenge
	ThreatScore      int       `json:"threat_score"`
	Reason           string    `json:"reason"`
	RuleMatches      string    `json:"rule_matches" gorm:"type:text"`   // JSON array of enforced rule UUIDs
	ShadowMatches    string    `json:"shadow_matches" gorm:"type:text"` // JSON array of observed-only rule UUIDs
	Method           string    `json:"method"`
	Path             string    `json:"path"`
	Query            string    `json:"query" gorm:"type:text"`
	SourceIP         string    `json:"source_ip" gorm:"index"`
	UserAgent        string    `json:"user_agent"`
	Country          string    `json:"country"`
	ProcessingTimeMs int64     `json:"processing_time_ms"`
	Feedback         string    `json:"feedback" gorm:"index"` // "", confirmed_threat, benign
	CreatedAt        time.Time `json:"created_at" gorm:"index"`
}

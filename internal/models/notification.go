package models

import "time"

// Notification severities shown in the operator inbox.
type NotificationType string

const (
	NotificationTypeInfo    NotificationType = "info"
	NotificationTypeSuccess NotificationType = "success"
	NotificationTypeWarning NotificationType = "warning"
	NotificationTypeError   NotificationType = "error"
)

// Notification is an operator inbox entry. The deployment pipeline raises
// them for promotions, demotions, and stalled canaries; degraded-mode
// alerts land here as well.
type Notification struct {
	ID        uint             `json:"id" gorm:"primaryKey"`
	UUID      string           `json:"uuid" gorm:"uniqueIndex"`
	Type      NotificationType `json:"type"`
	Title     string           `json:"title"`
	Message   string           `json:"message"`
	Read      bool             `json:"read" gorm:"index"`
	CreatedAt time.Time        `json:"created_at"`
}

package services

import (
	"time"

	"github.com/containrrr/shoutrrr"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/aegis-waf/aegis/internal/logger"
	"github.com/aegis-waf/aegis/internal/models"
)

// Notification event types routed by provider preferences.
const (
	EventPromotion = "promotion"
	EventDemotion  = "demotion"
	EventReview    = "review"
	EventDegraded  = "degraded"
)

type NotificationService struct {
	DB *gorm.DB
}

func NewNotificationService(db *gorm.DB) *NotificationService {
	return &NotificationService{DB: db}
}

// Internal Notifications (DB)

func (s *NotificationService) Create(nType models.NotificationType, title, message string) (*models.Notification, error) {
	notification := &models.Notification{
		UUID:    uuid.NewString(),
		Type:    nType,
		Title:   title,
		Message: message,
		Read:    false,
	}
	result := s.DB.Create(notification)
	return notification, result.Error
}

func (s *NotificationService) List(unreadOnly bool) ([]models.Notification, error) {
	var notifications []models.Notification
	query := s.DB.Order("created_at desc")
	if unreadOnly {
		query = query.Where("read = ?", false)
	}
	result := query.Find(&notifications)
	return notifications, result.Error
}

func (s *NotificationService) MarkAsRead(notificationUUID string) error {
	return s.DB.Model(&models.Notification{}).Where("uuid = ?", notificationUUID).Update("read", true).Error
}

// External Notifications (Shoutrrr)

// SendExternal fans an event out to all enabled providers whose
// preferences include it. Send failures are logged and swallowed; a
// broken provider must never surface to callers.
func (s *NotificationService) SendExternal(eventType, title, message string) {
	nType := models.NotificationTypeInfo
	if eventType == EventDegraded || eventType == EventReview {
		nType = models.NotificationTypeWarning
	}
	if _, err := s.Create(nType, title, message); err != nil {
		logger.Log().WithError(err).Warn("failed to store notification")
	}

	var providers []models.NotificationProvider
	if err := s.DB.Where("enabled = ?", true).Find(&providers).Error; err != nil {
		logger.Log().WithError(err).Warn("failed to fetch notification providers")
		return
	}

	body := title + "\n" + message + "\n" + time.Now().Format(time.RFC3339)

	for _, provider := range providers {
		shouldSend := false
		switch eventType {
		case EventPromotion, EventDemotion:
			shouldSend = provider.NotifyPromotions
		case EventReview:
			shouldSend = provider.NotifyReviews
		case EventDegraded:
			shouldSend = provider.NotifyDegraded
		default:
			shouldSend = true
		}

		if !shouldSend {
			continue
		}

		go func(p models.NotificationProvider) {
			if err := shoutrrr.Send(p.URL, body); err != nil {
				logger.WithFields(map[string]interface{}{"provider": p.Name}).
					WithError(err).Warn("failed to send external notification")
			}
		}(provider)
	}
}

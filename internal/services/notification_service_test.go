package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/aegis-waf/aegis/internal/models"
)

func setupNotificationTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Notification{}, &models.NotificationProvider{}))
	return db
}

func TestNotificationService_CreateAndList(t *testing.T) {
	service := NewNotificationService(setupNotificationTestDB(t))

	created, err := service.Create(models.NotificationTypeInfo, "Rule promoted", "Rule x promoted to canary")
	require.NoError(t, err)
	assert.NotEmpty(t, created.UUID)
	assert.False(t, created.Read)

	all, err := service.List(false)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "Rule promoted", all[0].Title)
}

func TestNotificationService_MarkAsRead(t *testing.T) {
	service := NewNotificationService(setupNotificationTestDB(t))

	created, err := service.Create(models.NotificationTypeWarning, "Needs review", "Deployment stalled")
	require.NoError(t, err)

	require.NoError(t, service.MarkAsRead(created.UUID))

	unread, err := service.List(true)
	require.NoError(t, err)
	assert.Empty(t, unread)

	all, err := service.List(false)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.True(t, all[0].Read)
}

func TestNotificationService_SendExternalStoresRecord(t *testing.T) {
	db := setupNotificationTestDB(t)
	service := NewNotificationService(db)

	// No providers configured; the internal record is still written.
	service.SendExternal(EventPromotion, "Rule promoted", "Rule x promoted to production")

	var notifications []models.Notification
	require.NoError(t, db.Find(&notifications).Error)
	require.Len(t, notifications, 1)
	assert.Equal(t, models.NotificationTypeInfo, notifications[0].Type)
}

func TestNotificationService_SendExternalSeverity(t *testing.T) {
	db := setupNotificationTestDB(t)
	service := NewNotificationService(db)

	service.SendExternal(EventReview, "Needs review", "Deployment stalled")
	service.SendExternal(EventDegraded, "Degraded", "Rule store unreachable")

	var warnings []models.Notification
	require.NoError(t, db.Where("type = ?", models.NotificationTypeWarning).Find(&warnings).Error)
	assert.Len(t, warnings, 2)
}

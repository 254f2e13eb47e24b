package handlers

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"messaging-service/internal/mocks"
	"messaging-service/internal/models"
	"messaging-service/internal/repositories"
	"messaging-service/internal/services"
)

func setupNotificationRouter(notifRepo *mocks.NotificationRepositoryMock, userRepo *mocks.UserRepositoryMock, b *mocks.BrokerMock) *gin.Engine {
	gin.SetMode(gin.TestMode)
	notifications := services.NewNotificationService(notifRepo, userRepo, b, true)
	handler := NewNotificationHandler(notifications)
	events := NewEventsHandler(notifications)

	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("userID", 1)
		c.Next()
	})
	r.GET("/notifications", handler.List)
	r.GET("/notifications/unread-count", handler.UnreadCount)
	r.POST("/notifications/read-all", handler.MarkAllRead)
	r.POST("/notifications/read/:notification_id", handler.MarkRead)
	r.PUT("/notification-preferences/:category", handler.UpdatePreference)
	r.POST("/events/connection-request", events.ConnectionRequest)
	return r
}

func TestListNotifications(t *testing.T) {
	notifRepo := new(mocks.NotificationRepositoryMock)
	router := setupNotificationRouter(notifRepo, new(mocks.UserRepositoryMock), new(mocks.BrokerMock))

	notifRepo.On("List", mock.Anything, 1, true, 20).Return([]models.Notification{{ID: 7}}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/notifications?unread=true&limit=20", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	notifRepo.AssertExpectations(t)
}

func TestNotificationUnreadCountByCategory(t *testing.T) {
	notifRepo := new(mocks.NotificationRepositoryMock)
	router := setupNotificationRouter(notifRepo, new(mocks.UserRepositoryMock), new(mocks.BrokerMock))

	notifRepo.On("UnreadCount", mock.Anything, 1, mock.MatchedBy(func(cat *models.NotificationCategory) bool {
		return cat != nil && *cat == models.CategoryMessage
	})).Return(3, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/notifications/unread-count?category=MESSAGE", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"unread":3`)
}

func TestMarkNotificationReadNotFound(t *testing.T) {
	notifRepo := new(mocks.NotificationRepositoryMock)
	router := setupNotificationRouter(notifRepo, new(mocks.UserRepositoryMock), new(mocks.BrokerMock))

	notifRepo.On("MarkRead", mock.Anything, 7, 1).Return(false, nil).Once()
	notifRepo.On("Get", mock.Anything, 7).Return(models.Notification{}, repositories.ErrNotificationNotFound).Once()

	req := httptest.NewRequest(http.MethodPost, "/notifications/read/7", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMarkAllNotificationsRead(t *testing.T) {
	notifRepo := new(mocks.NotificationRepositoryMock)
	b := new(mocks.BrokerMock)
	router := setupNotificationRouter(notifRepo, new(mocks.UserRepositoryMock), b)

	notifRepo.On("MarkAllRead", mock.Anything, 1).Return(5, nil).Once()
	b.On("Publish", mock.Anything, "user:1", models.EventNotificationRead, mock.Anything).Once()

	req := httptest.NewRequest(http.MethodPost, "/notifications/read-all", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"marked":5`)
}

func TestUpdatePreference(t *testing.T) {
	notifRepo := new(mocks.NotificationRepositoryMock)
	router := setupNotificationRouter(notifRepo, new(mocks.UserRepositoryMock), new(mocks.BrokerMock))

	notifRepo.On("UpsertPreference", mock.Anything, mock.MatchedBy(func(pref models.NotificationPreference) bool {
		return pref.UserID == 1 &&
			pref.Category == models.CategoryMessage &&
			!pref.InAppEnabled &&
			pref.QuietHoursStart != nil && *pref.QuietHoursStart == "22:00"
	})).Return(nil).Once()

	body := bytes.NewBufferString(`{"in_app_enabled":false,"quiet_hours_start":"22:00","quiet_hours_end":"07:00","timezone":"America/New_York"}`)
	req := httptest.NewRequest(http.MethodPut, "/notification-preferences/MESSAGE", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	notifRepo.AssertExpectations(t)
}

func TestConnectionRequestEvent(t *testing.T) {
	notifRepo := new(mocks.NotificationRepositoryMock)
	userRepo := new(mocks.UserRepositoryMock)
	b := new(mocks.BrokerMock)
	router := setupNotificationRouter(notifRepo, userRepo, b)

	userRepo.On("Get", mock.Anything, 1).Return(models.User{ID: 1, DisplayName: "alice"}, nil).Once()
	notifRepo.On("GetTemplate", mock.Anything, services.TypeConnectionRequest).Return(models.NotificationTemplate{
		Type:     services.TypeConnectionRequest,
		Title:    "Connection request",
		Message:  "{{actorName}} wants to connect",
		Priority: models.PriorityNormal,
		Category: models.CategoryConnection,
	}, nil).Once()
	notifRepo.On("GetPreference", mock.Anything, 2, models.CategoryConnection).Return(models.DefaultPreference(2, models.CategoryConnection), nil).Once()
	notifRepo.On("Create", mock.Anything, mock.Anything).Return(models.Notification{ID: 12, UserID: 2}, nil).Once()
	b.On("Publish", mock.Anything, "user:2", models.EventNotificationReceived, mock.Anything).Once()

	body := bytes.NewBufferString(`{"target_id":2}`)
	req := httptest.NewRequest(http.MethodPost, "/events/connection-request", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	notifRepo.AssertExpectations(t)
}

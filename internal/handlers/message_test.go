package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"messaging-service/internal/mocks"
	"messaging-service/internal/models"
	"messaging-service/internal/services"
)

type messageTestEnv struct {
	convRepo  *mocks.ConversationRepositoryMock
	msgRepo   *mocks.MessageRepositoryMock
	userRepo  *mocks.UserRepositoryMock
	notifRepo *mocks.NotificationRepositoryMock
	broker    *mocks.BrokerMock
	fanout    *services.FanoutWorker
	router    *gin.Engine
}

func setupMessageRouter(t *testing.T) *messageTestEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	env := &messageTestEnv{
		convRepo:  new(mocks.ConversationRepositoryMock),
		msgRepo:   new(mocks.MessageRepositoryMock),
		userRepo:  new(mocks.UserRepositoryMock),
		notifRepo: new(mocks.NotificationRepositoryMock),
		broker:    new(mocks.BrokerMock),
	}

	notifications := services.NewNotificationService(env.notifRepo, env.userRepo, env.broker, true)
	env.fanout = services.NewFanoutWorker(notifications, 1)
	t.Cleanup(env.fanout.Close)
	messages := services.NewMessageService(env.convRepo, env.msgRepo, env.userRepo, env.broker, env.fanout)
	handler := NewMessageHandler(messages, nil)

	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("userID", 1)
		c.Next()
	})
	r.POST("/conversations/:conversation_id/messages", handler.Send)
	r.GET("/conversations/:conversation_id/messages", handler.History)
	r.POST("/conversations/:conversation_id/read", handler.MarkConversationRead)
	r.GET("/conversations/:conversation_id/unread-count", handler.UnreadCount)
	r.PATCH("/messages/:message_id", handler.Edit)
	r.DELETE("/messages/:message_id", handler.Delete)
	r.PUT("/messages/:message_id/reactions/:emoji", handler.AddReaction)
	r.DELETE("/messages/:message_id/reactions/:emoji", handler.RemoveReaction)
	r.GET("/messages/:message_id/receipts", handler.Receipts)
	env.router = r
	return env
}

func TestSendMessageSuccess(t *testing.T) {
	env := setupMessageRouter(t)

	stored := models.Message{ID: 100, ConversationID: 5, SenderID: 1, Content: "hi"}
	env.convRepo.On("IsActiveParticipant", mock.Anything, 5, 1).Return(true, nil).Once()
	env.msgRepo.On("Create", mock.Anything, 5, 1, "hi", models.MessageText, mock.Anything, mock.Anything).Return(stored, nil).Once()
	env.msgRepo.On("UpsertReadMarker", mock.Anything, 100, 1).Return(nil).Once()
	env.broker.On("Publish", mock.Anything, "chat:5", models.EventMessageReceived, mock.Anything).Once()
	env.convRepo.On("GetSettings", mock.Anything, 5).Return(models.ConversationSettings{ConversationID: 5, NotificationsEnabled: true}, nil).Once()
	env.convRepo.On("ActiveParticipantIDs", mock.Anything, 5).Return([]int{1}, nil).Once()
	env.userRepo.On("Get", mock.Anything, 1).Return(models.User{ID: 1, DisplayName: "alice"}, nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/conversations/5/messages", bytes.NewBufferString(`{"content":"hi"}`))
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	var resp models.Message
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Equal(t, 100, resp.ID)
	env.msgRepo.AssertExpectations(t)
}

func TestSendMessageNotParticipant(t *testing.T) {
	env := setupMessageRouter(t)

	env.convRepo.On("IsActiveParticipant", mock.Anything, 5, 1).Return(false, nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/conversations/5/messages", bytes.NewBufferString(`{"content":"hi"}`))
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestSendMessageMissingContent(t *testing.T) {
	env := setupMessageRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/conversations/5/messages", bytes.NewBufferString(`{}`))
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestEditMessageNotOwner(t *testing.T) {
	env := setupMessageRouter(t)

	env.msgRepo.On("Get", mock.Anything, 100).Return(models.Message{ID: 100, ConversationID: 5, SenderID: 2}, nil).Once()

	req := httptest.NewRequest(http.MethodPatch, "/messages/100", bytes.NewBufferString(`{"content":"mine now"}`))
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestEditTombstonedMessageConflicts(t *testing.T) {
	env := setupMessageRouter(t)

	env.msgRepo.On("Get", mock.Anything, 100).Return(models.Message{ID: 100, ConversationID: 5, SenderID: 1, IsDeleted: true}, nil).Once()

	req := httptest.NewRequest(http.MethodPatch, "/messages/100", bytes.NewBufferString(`{"content":"too late"}`))
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestDeleteMessageTwiceIsNoContent(t *testing.T) {
	env := setupMessageRouter(t)

	env.msgRepo.On("Get", mock.Anything, 100).Return(models.Message{ID: 100, ConversationID: 5, SenderID: 1, IsDeleted: true}, nil).Once()

	req := httptest.NewRequest(http.MethodDelete, "/messages/100", nil)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
}

func TestAddReactionNoContent(t *testing.T) {
	env := setupMessageRouter(t)

	env.msgRepo.On("Get", mock.Anything, 100).Return(models.Message{ID: 100, ConversationID: 5, SenderID: 2}, nil).Once()
	env.convRepo.On("IsActiveParticipant", mock.Anything, 5, 1).Return(true, nil).Once()
	env.msgRepo.On("UpsertReaction", mock.Anything, 100, 1, "🔥").Return(nil).Once()
	env.broker.On("Publish", mock.Anything, "chat:5", models.EventMessageReaction, mock.Anything).Once()

	req := httptest.NewRequest(http.MethodPut, "/messages/100/reactions/🔥", nil)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	env.msgRepo.AssertExpectations(t)
}

func TestMarkConversationRead(t *testing.T) {
	env := setupMessageRouter(t)

	env.convRepo.On("IsActiveParticipant", mock.Anything, 5, 1).Return(true, nil).Once()
	env.msgRepo.On("MarkConversationRead", mock.Anything, 5, 1).Return(2, nil).Once()
	env.broker.On("Publish", mock.Anything, "user:1", models.EventConversationRead, mock.Anything).Once()

	req := httptest.NewRequest(http.MethodPost, "/conversations/5/read", nil)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"marked":2`)
}

func TestUnreadCount(t *testing.T) {
	env := setupMessageRouter(t)

	env.msgRepo.On("UnreadCount", mock.Anything, 5, 1).Return(4, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/conversations/5/unread-count", nil)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"unread":4`)
}

func TestReceipts(t *testing.T) {
	env := setupMessageRouter(t)

	env.msgRepo.On("Get", mock.Anything, 100).Return(models.Message{ID: 100, ConversationID: 5, SenderID: 1}, nil).Once()
	env.convRepo.On("IsActiveParticipant", mock.Anything, 5, 1).Return(true, nil).Once()
	env.msgRepo.On("ReadMarkers", mock.Anything, 100).Return([]models.ReadMarker{
		{MessageID: 100, UserID: 2},
	}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/messages/100/receipts", nil)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"user_id":2`)
	env.msgRepo.AssertExpectations(t)
}

func TestHistoryInvalidBeforeTimestamp(t *testing.T) {
	env := setupMessageRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/conversations/5/messages?before=yesterday", nil)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

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

func setupConversationRouter(convRepo *mocks.ConversationRepositoryMock) *gin.Engine {
	gin.SetMode(gin.TestMode)
	handler := NewConversationHandler(services.NewConversationService(convRepo, nil), nil)

	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("userID", 1)
		c.Next()
	})
	r.POST("/conversations", handler.Create)
	r.GET("/conversations", handler.List)
	r.DELETE("/conversations/:conversation_id", handler.Delete)
	r.PATCH("/conversations/:conversation_id/settings", handler.UpdateSettings)
	r.POST("/conversations/:conversation_id/participants", handler.AddParticipant)
	r.DELETE("/conversations/:conversation_id/participants/:user_id", handler.RemoveParticipant)
	return r
}

func TestCreateDirectConversation(t *testing.T) {
	convRepo := new(mocks.ConversationRepositoryMock)
	router := setupConversationRouter(convRepo)

	conv := models.Conversation{ID: 10, Kind: models.ConversationDirect}
	convRepo.On("CreateDirect", mock.Anything, 1, 2).Return(conv, true, nil).Once()

	body := bytes.NewBufferString(`{"kind":"DIRECT","participant_ids":[2]}`)
	req := httptest.NewRequest(http.MethodPost, "/conversations", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	var resp models.Conversation
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Equal(t, 10, resp.ID)
	convRepo.AssertExpectations(t)
}

func TestCreateDirectWithSelfBadRequest(t *testing.T) {
	convRepo := new(mocks.ConversationRepositoryMock)
	router := setupConversationRouter(convRepo)

	body := bytes.NewBufferString(`{"kind":"DIRECT","participant_ids":[1]}`)
	req := httptest.NewRequest(http.MethodPost, "/conversations", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateGroupConversation(t *testing.T) {
	convRepo := new(mocks.ConversationRepositoryMock)
	router := setupConversationRouter(convRepo)

	meta := models.ConversationMeta{Name: "launch crew"}
	convRepo.On("CreateGroup", mock.Anything, models.ConversationGroup, 1, []int{2, 3}, meta).
		Return(models.Conversation{ID: 11, Kind: models.ConversationGroup}, nil).Once()

	body := bytes.NewBufferString(`{"kind":"GROUP","participant_ids":[2,3],"name":"launch crew"}`)
	req := httptest.NewRequest(http.MethodPost, "/conversations", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	convRepo.AssertExpectations(t)
}

func TestCreateConversationMissingKind(t *testing.T) {
	router := setupConversationRouter(new(mocks.ConversationRepositoryMock))

	body := bytes.NewBufferString(`{"participant_ids":[2]}`)
	req := httptest.NewRequest(http.MethodPost, "/conversations", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListConversations(t *testing.T) {
	convRepo := new(mocks.ConversationRepositoryMock)
	router := setupConversationRouter(convRepo)

	convRepo.On("ListForUser", mock.Anything, 1).Return([]models.ConversationSummary{
		{Conversation: models.Conversation{ID: 10}, UnreadCount: 3},
	}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/conversations", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"unread_count":3`)
	convRepo.AssertExpectations(t)
}

func TestDeleteConversationAsAdmin(t *testing.T) {
	convRepo := new(mocks.ConversationRepositoryMock)
	router := setupConversationRouter(convRepo)

	convRepo.On("GetParticipant", mock.Anything, 5, 1).
		Return(models.Participant{ConversationID: 5, UserID: 1, IsActive: true, IsAdmin: true}, nil).Once()
	convRepo.On("Deactivate", mock.Anything, 5).Return(nil).Once()

	req := httptest.NewRequest(http.MethodDelete, "/conversations/5", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	convRepo.AssertExpectations(t)
}

func TestDeleteConversationForbiddenForNonAdmin(t *testing.T) {
	convRepo := new(mocks.ConversationRepositoryMock)
	router := setupConversationRouter(convRepo)

	convRepo.On("GetParticipant", mock.Anything, 5, 1).
		Return(models.Participant{ConversationID: 5, UserID: 1, IsActive: true, IsAdmin: false}, nil).Once()

	req := httptest.NewRequest(http.MethodDelete, "/conversations/5", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
	convRepo.AssertNotCalled(t, "Deactivate", mock.Anything, mock.Anything)
}

func TestUpdateConversationSettings(t *testing.T) {
	convRepo := new(mocks.ConversationRepositoryMock)
	router := setupConversationRouter(convRepo)

	convRepo.On("GetParticipant", mock.Anything, 5, 1).
		Return(models.Participant{ConversationID: 5, UserID: 1, IsActive: true, IsAdmin: true}, nil).Once()
	convRepo.On("SetNotificationsEnabled", mock.Anything, 5, false).
		Return(models.ConversationSettings{ConversationID: 5, NotificationsEnabled: false}, nil).Once()

	body := bytes.NewBufferString(`{"notifications_enabled":false}`)
	req := httptest.NewRequest(http.MethodPatch, "/conversations/5/settings", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"notifications_enabled":false`)
	convRepo.AssertExpectations(t)
}

func TestUpdateConversationSettingsMissingField(t *testing.T) {
	router := setupConversationRouter(new(mocks.ConversationRepositoryMock))

	body := bytes.NewBufferString(`{}`)
	req := httptest.NewRequest(http.MethodPatch, "/conversations/5/settings", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAddParticipantForbiddenForNonAdmin(t *testing.T) {
	convRepo := new(mocks.ConversationRepositoryMock)
	router := setupConversationRouter(convRepo)

	convRepo.On("GetParticipant", mock.Anything, 5, 1).
		Return(models.Participant{ConversationID: 5, UserID: 1, IsActive: true, IsAdmin: false}, nil).Once()

	body := bytes.NewBufferString(`{"user_id":3}`)
	req := httptest.NewRequest(http.MethodPost, "/conversations/5/participants", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRemoveParticipantSelf(t *testing.T) {
	convRepo := new(mocks.ConversationRepositoryMock)
	router := setupConversationRouter(convRepo)

	convRepo.On("DeactivateParticipant", mock.Anything, 5, 1).Return(nil).Once()

	req := httptest.NewRequest(http.MethodDelete, "/conversations/5/participants/1", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	convRepo.AssertExpectations(t)
}

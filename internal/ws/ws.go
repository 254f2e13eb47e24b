package ws

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"

	"messaging-service/internal/broker"
	"messaging-service/internal/middleware"
	"messaging-service/internal/observability"
	"messaging-service/internal/repositories"
)

// Handler upgrades authenticated connections, subscribes them to their
// personal channel and, on demand, to conversation channels they are active
// participants of.
type Handler struct {
	hub       *broker.Hub
	convRepo  repositories.ConversationRepository
	validator middleware.TokenValidator
}

// NewHandler constructs a websocket Handler.
func NewHandler(hub *broker.Hub, convRepo repositories.ConversationRepository, validator middleware.TokenValidator) *Handler {
	return &Handler{hub: hub, convRepo: convRepo, validator: validator}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// clientFrame is what connected clients send to manage their conversation
// subscriptions.
type clientFrame struct {
	Action         string `json:"action"` // "subscribe" or "unsubscribe"
	ConversationID int    `json:"conversation_id"`
}

// Handle upgrades the connection and runs its read loop.
func (h *Handler) Handle(c *gin.Context) {
	ctx, span := otel.Tracer("messaging-service/ws").Start(c.Request.Context(), "ws.handshake")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	token := c.GetHeader("Authorization")
	if token != "" {
		if len(token) > 7 && (token[:7] == "Bearer " || token[:7] == "bearer ") {
			token = token[7:]
		}
	} else {
		token = c.Query("token")
	}

	userID, err := h.validator.Validate(token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	traceID := span.SpanContext().TraceID().String()
	requestID := observability.RequestIDFromRequest(c.Request)
	info := broker.ConnInfo{
		ConnID:      newConnID(),
		UserID:      userID,
		DeviceID:    observability.DeviceIDFromRequest(c.Request),
		IP:          observability.IPFromRequest(c.Request),
		RequestID:   requestID,
		TraceID:     traceID,
		ConnectedAt: time.Now(),
	}

	// Every connection gets the user's personal channel.
	h.hub.Subscribe(broker.UserChannel(userID), conn, info)

	observability.IncWSActive()
	observability.IncWSEvent("ws_connect")
	h.publishLifecycle(ctx, "ws_connect", info, "")

	go h.readLoop(ctx, conn, info)
}

func (h *Handler) readLoop(ctx context.Context, conn *websocket.Conn, info broker.ConnInfo) {
	var closeReason string
	defer func() {
		h.hub.Drop(conn)
		conn.Close()
		observability.DecWSActive()
		observability.IncWSEvent("ws_disconnect")
		h.publishLifecycle(ctx, "ws_disconnect", info, closeReason)
	}()

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			closeReason = err.Error()
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				observability.IncWSEvent("ws_error")
				h.publishLifecycle(ctx, "ws_error", info, closeReason)
			}
			return
		}

		var frame clientFrame
		if err := json.Unmarshal(payload, &frame); err != nil {
			continue
		}
		h.handleFrame(ctx, conn, info, frame)
	}
}

func (h *Handler) handleFrame(ctx context.Context, conn *websocket.Conn, info broker.ConnInfo, frame clientFrame) {
	if frame.ConversationID <= 0 {
		return
	}
	channel := broker.ConversationChannel(frame.ConversationID)

	switch frame.Action {
	case "subscribe":
		member, err := h.convRepo.IsActiveParticipant(ctx, frame.ConversationID, info.UserID)
		if err != nil {
			log.Printf("ws membership check failed conversation=%d user=%d: %v", frame.ConversationID, info.UserID, err)
			return
		}
		if !member {
			return
		}
		h.hub.Subscribe(channel, conn, info)
		observability.IncWSEvent("ws_subscribe")
	case "unsubscribe":
		h.hub.Unsubscribe(channel, conn)
		observability.IncWSEvent("ws_unsubscribe")
	}
}

func (h *Handler) publishLifecycle(ctx context.Context, event string, info broker.ConnInfo, reason string) {
	payload := map[string]interface{}{
		"ws": map[string]interface{}{
			"event":       event,
			"conn_id":     info.ConnID,
			"duration_ms": time.Since(info.ConnectedAt).Milliseconds(),
			"reason":      reason,
		},
		"identity": map[string]interface{}{
			"user_id":   info.UserID,
			"device_id": info.DeviceID,
			"ip":        info.IP,
		},
	}

	headers := observability.BuildHeaders(info.RequestID, info.TraceID)
	_ = observability.PublishEvent(ctx, "ws_events.messaging", observability.NewEnvelope("ws_events", event, payload), headers)
}

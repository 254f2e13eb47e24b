package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Broker is the single pub/sub abstraction every live event goes through.
// Publishing is fire-and-forget: the durable row is the record of truth, so
// implementations log and count failures instead of surfacing them.
type Broker interface {
	Publish(ctx context.Context, channel, event string, payload any)
	Close() error
}

// UserChannel names a user's personal channel. The naming convention is part
// of the external contract clients subscribe with.
func UserChannel(userID int) string {
	return fmt.Sprintf("user:%d", userID)
}

// ConversationChannel names a conversation channel.
func ConversationChannel(conversationID int) string {
	return fmt.Sprintf("chat:%d", conversationID)
}

// Envelope is the wire frame delivered to subscribed connections.
type Envelope struct {
	Channel    string          `json:"channel"`
	Event      string          `json:"event"`
	Payload    json.RawMessage `json:"payload"`
	Origin     string          `json:"origin,omitempty"`
	OccurredAt time.Time       `json:"occurred_at"`
}

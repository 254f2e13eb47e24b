package ws

import "github.com/google/uuid"

// newConnID tags one websocket connection for lifecycle events and hub
// bookkeeping.
func newConnID() string {
	return uuid.NewString()
}

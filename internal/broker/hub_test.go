package broker

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func TestHubSubscribeAndUnsubscribe(t *testing.T) {
	hub := NewHub()

	hub.Subscribe("chat:1", nil, ConnInfo{UserID: 1})
	if hub.Subscribers("chat:1") != 1 {
		t.Fatalf("expected one subscriber")
	}

	hub.Unsubscribe("chat:1", nil)
	if hub.Subscribers("chat:1") != 0 {
		t.Fatalf("expected channel to be removed")
	}
	if len(hub.channels) != 0 {
		t.Fatalf("expected empty channel map")
	}
}

func TestHubDropRemovesFromAllChannels(t *testing.T) {
	hub := NewHub()

	hub.Subscribe("user:1", nil, ConnInfo{UserID: 1})
	hub.Subscribe("chat:5", nil, ConnInfo{UserID: 1})

	hub.Drop(nil)
	if hub.Subscribers("user:1") != 0 || hub.Subscribers("chat:5") != 0 {
		t.Fatalf("expected connection dropped from every channel")
	}
	if len(hub.writers) != 0 {
		t.Fatalf("expected writer lock released on drop")
	}
}

func TestWriterLockSharedAcrossChannels(t *testing.T) {
	hub := NewHub()

	hub.Subscribe("user:1", nil, ConnInfo{UserID: 1})
	hub.Subscribe("chat:5", nil, ConnInfo{UserID: 1})
	if len(hub.writers) != 1 {
		t.Fatalf("expected one writer lock per connection, got %d", len(hub.writers))
	}

	hub.Unsubscribe("chat:5", nil)
	if len(hub.writers) != 1 {
		t.Fatalf("writer lock must survive while still subscribed elsewhere")
	}

	hub.Unsubscribe("user:1", nil)
	if len(hub.writers) != 0 {
		t.Fatalf("writer lock must be released with the last subscription")
	}
}

// Deliveries reach a connection from HTTP handlers, the fan-out pool and the
// redis relay at the same time; the hub has to serialize them because
// gorilla/websocket supports only one concurrent writer per connection.
func TestDeliverSerializesConcurrentWrites(t *testing.T) {
	hub := NewHub()
	upgrader := websocket.Upgrader{}

	hold := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		hub.Subscribe("user:1", conn, ConnInfo{UserID: 1})
		<-hold
	}))
	defer srv.Close()
	defer close(hold)

	client, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer client.Close()

	deadline := time.Now().Add(5 * time.Second)
	for hub.Subscribers("user:1") == 0 {
		if time.Now().After(deadline) {
			t.Fatal("connection never subscribed")
		}
		time.Sleep(5 * time.Millisecond)
	}

	const publishers = 8
	const perPublisher = 25

	var wg sync.WaitGroup
	for i := 0; i < publishers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perPublisher; j++ {
				hub.Publish(context.Background(), "user:1", "ping", map[string]int{"seq": j})
			}
		}()
	}

	readDone := make(chan error, 1)
	go func() {
		client.SetReadDeadline(time.Now().Add(5 * time.Second))
		for i := 0; i < publishers*perPublisher; i++ {
			if _, _, err := client.ReadMessage(); err != nil {
				readDone <- err
				return
			}
		}
		readDone <- nil
	}()

	wg.Wait()
	if err := <-readDone; err != nil {
		t.Fatalf("client read failed: %v", err)
	}
}

func TestChannelNames(t *testing.T) {
	if UserChannel(7) != "user:7" {
		t.Fatalf("unexpected user channel name")
	}
	if ConversationChannel(12) != "chat:12" {
		t.Fatalf("unexpected conversation channel name")
	}
}

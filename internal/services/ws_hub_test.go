package services_test

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"pairsense-backend/internal/services"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// dialHub spins up a server that registers every upgraded connection with
// the hub under uid, and returns a connected client.
func dialHub(t *testing.T, hub *services.WSHub, uid string) *websocket.Conn {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		hub.Register(uid, conn)
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	client, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	require.Eventually(t, func() bool { return hub.IsOnline(uid) }, time.Second, 10*time.Millisecond)
	return client
}

func TestWSHub_SendToUser(t *testing.T) {
	hub := services.NewWSHub()
	client := dialHub(t, hub, "alice")

	require.NoError(t, hub.SendToUser("alice", services.WSMessage{Type: "pong"}))

	require.NoError(t, client.SetReadDeadline(time.Now().Add(time.Second)))
	_, data, err := client.ReadMessage()
	require.NoError(t, err)
	assert.Contains(t, string(data), `"type":"pong"`)
}

func TestWSHub_SendToOfflineUserFails(t *testing.T) {
	hub := services.NewWSHub()
	assert.Error(t, hub.SendToUser("nobody", services.WSMessage{Type: "pong"}))
	assert.False(t, hub.IsOnline("nobody"))
}

func TestWSHub_ConcurrentSendsToOneConnection(t *testing.T) {
	// Presence snapshots fan in from arbitrary publisher goroutines while
	// the read loop answers pings; all of them write to the same conn, so
	// the hub must serialize or the conn panics.
	hub := services.NewWSHub()
	client := dialHub(t, hub, "alice")

	const sends = 50
	var wg sync.WaitGroup
	for i := 0; i < sends; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = hub.SendToUser("alice", services.WSMessage{
				Type:    "presence_state",
				Message: fmt.Sprintf("msg-%d", i),
			})
		}(i)
	}
	wg.Wait()

	for i := 0; i < sends; i++ {
		require.NoError(t, client.SetReadDeadline(time.Now().Add(time.Second)))
		_, _, err := client.ReadMessage()
		require.NoError(t, err)
	}
	assert.True(t, hub.IsOnline("alice"))
}

func TestWSHub_Unregister(t *testing.T) {
	hub := services.NewWSHub()
	dialHub(t, hub, "alice")

	hub.Unregister("alice")
	assert.False(t, hub.IsOnline("alice"))
	assert.Error(t, hub.SendToUser("alice", services.WSMessage{Type: "pong"}))
}

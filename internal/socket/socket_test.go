package socket

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "socket-secret"

func signedToken(t *testing.T, secret, userID string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": userID,
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	s, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

func newTestServer(t *testing.T) (*Hub, *httptest.Server) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	hub := NewHub()
	go hub.Run()

	r := gin.New()
	r.GET("/ws", NewHandler(hub, testSecret, nil).HandleWebSocket)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return hub, srv
}

func dial(t *testing.T, srv *httptest.Server, token string) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?token=" + token
	return websocket.DefaultDialer.Dial(url, nil)
}

// readUntil returns the first message of the wanted type. Queued messages
// may share one frame, separated by newlines.
func readUntil(t *testing.T, conn *websocket.Conn, want MessageType) Message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	for {
		_, data, err := conn.ReadMessage()
		require.NoError(t, err)
		for _, line := range bytes.Split(data, []byte{'\n'}) {
			var msg Message
			require.NoError(t, json.Unmarshal(line, &msg))
			if msg.Type == want {
				return msg
			}
		}
	}
}

func TestHandshake_RequiresValidToken(t *testing.T) {
	_, srv := newTestServer(t)

	_, resp, err := dial(t, srv, "")
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	_, resp, err = dial(t, srv, signedToken(t, "wrong-secret", "user-1"))
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestNotificationReachesUser(t *testing.T) {
	hub, srv := newTestServer(t)

	conn, _, err := dial(t, srv, signedToken(t, testSecret, "user-1"))
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.IsUserOnline("user-1") }, 2*time.Second, 10*time.Millisecond)

	NewBroadcaster(hub).SendNotificationCount("user-1", 3, 1)
	msg := readUntil(t, conn, MessageNotificationCount)
	assert.EqualValues(t, 3, msg.Payload["total"])
	assert.EqualValues(t, 1, msg.Payload["unread"])
}

func TestEventRoomReceivesSeatCounts(t *testing.T) {
	hub, srv := newTestServer(t)

	conn, _, err := dial(t, srv, signedToken(t, testSecret, "user-1"))
	require.NoError(t, err)
	defer conn.Close()

	// Personal rooms cannot be joined from the client.
	require.NoError(t, conn.WriteJSON(ClientMessage{Action: "join", Room: "user:user-2"}))
	require.NoError(t, conn.WriteJSON(ClientMessage{Action: "join", Room: "event:ev-1"}))
	ack := readUntil(t, conn, MessageAck)
	assert.Equal(t, "event:ev-1", ack.Payload["room"])

	NewBroadcaster(hub).BroadcastRegistrations("ev-1", 8, 8)
	msg := readUntil(t, conn, MessageEventRegistrations)
	assert.Equal(t, "ev-1", msg.Payload["eventId"])
	assert.Equal(t, true, msg.Payload["isFull"])
}

func TestDisconnectMarksOffline(t *testing.T) {
	hub, srv := newTestServer(t)

	conn, _, err := dial(t, srv, signedToken(t, testSecret, "user-1"))
	require.NoError(t, err)
	require.Eventually(t, func() bool { return hub.IsUserOnline("user-1") }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 1, hub.GetConnectedClientsCount())

	conn.Close()
	require.Eventually(t, func() bool { return !hub.IsUserOnline("user-1") }, 2*time.Second, 10*time.Millisecond)
	assert.Empty(t, hub.GetOnlineUsers())
}

func TestCheckOrigin(t *testing.T) {
	h := NewHandler(NewHub(), testSecret, []string{"https://app.example"})

	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	assert.True(t, h.checkOrigin(req))

	req.Header.Set("Origin", "https://APP.example")
	assert.True(t, h.checkOrigin(req))

	req.Header.Set("Origin", "https://evil.example")
	assert.False(t, h.checkOrigin(req))
}

func TestUserIDFromToken(t *testing.T) {
	h := NewHandler(NewHub(), testSecret, nil)

	id, ok := h.UserIDFromToken(signedToken(t, testSecret, "user-9"))
	assert.True(t, ok)
	assert.Equal(t, "user-9", id)

	_, ok = h.UserIDFromToken("garbage")
	assert.False(t, ok)
}

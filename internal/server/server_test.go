package server

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/go-logr/logr"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tyrowin/roomhub/internal/config"
	"github.com/Tyrowin/roomhub/internal/hub"
)

func TestHealthHandler(t *testing.T) {
	_, ts := newTestServer(t, nil)

	resp := get(t, ts.URL+"/")
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/plain", resp.Header.Get("Content-Type"))
	assert.Equal(t, "roomhub server is running!", string(body))
	assert.NotEmpty(t, resp.Header.Get(RequestIDHeader))
}

func TestListRoomsHandler(t *testing.T) {
	s, ts := newTestServer(t, nil)
	s.Hub().Join(hub.SessionID(1), "lobby")

	resp := get(t, ts.URL+"/rooms")
	var body RoomsResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []string{hub.DefaultRoom, "lobby"}, body.Rooms)
}

func TestRoomHandler(t *testing.T) {
	s, ts := newTestServer(t, nil)
	s.Hub().Join(hub.SessionID(7), "lobby")

	resp := get(t, ts.URL+"/rooms/lobby")
	var body RoomResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, RoomResponse{Room: "lobby", Members: []string{"7"}}, body)

	resp = get(t, ts.URL+"/rooms/nowhere")
	var errBody ErrorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&errBody))
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, http.StatusNotFound, errBody.Code)
}

func TestStatsHandler(t *testing.T) {
	s, ts := newTestServer(t, nil)
	dial(t, s, ts)

	resp := get(t, ts.URL+"/stats")
	var body hub.Stats
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))

	assert.Equal(t, 1, body.Sessions)
	assert.Equal(t, map[string]int{hub.DefaultRoom: 1}, body.Rooms)
}

func TestMetricsHandler(t *testing.T) {
	_, ts := newTestServer(t, nil)
	get(t, ts.URL+"/rooms")

	resp := get(t, ts.URL+"/metrics")
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "roomhub_http_requests_total")
	assert.Contains(t, string(body), `route="/rooms"`)
}

func TestWebSocketRejectsNonGet(t *testing.T) {
	_, ts := newTestServer(t, nil)

	resp, err := http.Post(ts.URL+"/ws", "text/plain", strings.NewReader("x"))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestWebSocketOriginPolicy(t *testing.T) {
	s, ts := newTestServer(t, nil)

	header := http.Header{"Origin": []string{"http://evil.test"}}
	_, resp, err := websocket.DefaultDialer.Dial(wsURL(ts.URL), header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	header = http.Header{"Origin": []string{"HTTP://LOCALHOST:8080"}}
	conn, _, err := websocket.DefaultDialer.Dial(wsURL(ts.URL), header)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return s.Hub().Stats().Sessions == 1 }, readTimeout, 5*time.Millisecond)
}

func TestWebSocketTrailingSlashPath(t *testing.T) {
	_, ts := newTestServer(t, nil)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(ts.URL)+"/", nil)
	require.NoError(t, err)
	defer conn.Close()
}

func TestChatBetweenSessions(t *testing.T) {
	s, ts := newTestServer(t, nil)

	a := dial(t, s, ts)
	b := dial(t, s, ts)
	expectText(t, a, hub.JoinedNotice)

	send(t, b, "hello")
	expectText(t, a, "hello")

	send(t, a, "  hi back  ")
	expectText(t, b, "hi back")

	expectNoMessage(t, a, 150*time.Millisecond)
}

func TestJoinAndListCommands(t *testing.T) {
	s, ts := newTestServer(t, nil)

	a := dial(t, s, ts)
	b := dial(t, s, ts)
	expectText(t, a, hub.JoinedNotice)

	send(t, a, "/join lobby")
	expectText(t, a, replyJoined)

	send(t, b, "/join lobby")
	expectText(t, b, replyJoined)
	expectText(t, a, hub.ConnectedNotice)

	send(t, b, "/list")
	expectText(t, b, hub.DefaultRoom)
	expectText(t, b, "lobby")

	send(t, b, "/name bob")
	send(t, b, "in the lobby")
	expectText(t, a, "bob: in the lobby")

	send(t, a, "/shout")
	expectText(t, a, replyUnknownCommand+"/shout")

	send(t, a, "/join")
	expectText(t, a, replyRoomRequired)
}

func TestSessionsInDifferentRoomsAreIsolated(t *testing.T) {
	s, ts := newTestServer(t, nil)

	a := dial(t, s, ts)
	b := dial(t, s, ts)
	expectText(t, a, hub.JoinedNotice)

	send(t, b, "/join lobby")
	expectText(t, b, replyJoined)

	send(t, a, "only main")
	expectNoMessage(t, b, 200*time.Millisecond)
}

func TestDisconnectNotifiesRoom(t *testing.T) {
	s, ts := newTestServer(t, nil)

	a := dial(t, s, ts)
	b := dial(t, s, ts)
	expectText(t, a, hub.JoinedNotice)

	require.NoError(t, b.Close())
	expectText(t, a, hub.DisconnectedNotice)

	require.Eventually(t, func() bool { return s.Hub().Stats().Sessions == 1 }, readTimeout, 5*time.Millisecond)
}

func TestRateLimitDropsExcessFrames(t *testing.T) {
	s, ts := newTestServer(t, func(cfg *config.Config) {
		cfg.RateLimit.Burst = 1
		cfg.RateLimit.RefillInterval = time.Minute
	})

	a := dial(t, s, ts)
	b := dial(t, s, ts)
	expectText(t, a, hub.JoinedNotice)

	send(t, b, "first")
	send(t, b, "second")

	expectText(t, a, "first")
	expectNoMessage(t, a, 200*time.Millisecond)
}

func TestOversizedMessageClosesSession(t *testing.T) {
	s, ts := newTestServer(t, func(cfg *config.Config) {
		cfg.MaxMessageSize = 16
	})

	a := dial(t, s, ts)
	send(t, a, strings.Repeat("x", 64))

	require.NoError(t, a.SetReadDeadline(time.Now().Add(readTimeout)))
	_, _, err := a.ReadMessage()
	require.Error(t, err)
	require.Eventually(t, func() bool { return s.Hub().Stats().Sessions == 0 }, readTimeout, 5*time.Millisecond)
}

func TestServeShutsDownSessions(t *testing.T) {
	cfg := testConfig(func(cfg *config.Config) {
		cfg.ShutdownTimeout = 2 * time.Second
	})
	s := New(cfg, hub.New(), logr.Discard())

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	served := make(chan error, 1)
	go func() { served <- s.Serve(ctx, l) }()

	conn, _, err := websocket.DefaultDialer.Dial("ws://"+l.Addr().String()+"/ws", nil)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return s.Hub().Stats().Sessions == 1 }, readTimeout, 5*time.Millisecond)

	cancel()

	select {
	case err := <-served:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(readTimeout)))
	_, _, err = conn.ReadMessage()
	assert.Error(t, err)
	assert.Equal(t, 0, s.Hub().Stats().Sessions)
}

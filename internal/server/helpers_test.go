package server

import (
	"context"
	"net/http"
	"net/http/httptest"
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

const readTimeout = 2 * time.Second

func testConfig(mutate func(*config.Config)) config.Config {
	cfg := config.Default()
	cfg.AllowedOrigins = []string{"http://localhost:8080"}
	cfg.RateLimit.Burst = 100
	if mutate != nil {
		mutate(&cfg)
	}
	return config.Sanitize(cfg)
}

// newTestServer starts an httptest server in front of a fresh hub. Sessions
// are closed when the test ends.
func newTestServer(t *testing.T, mutate func(*config.Config)) (*Server, *httptest.Server) {
	t.Helper()

	s := New(testConfig(mutate), hub.New(), logr.Discard())
	ts := httptest.NewServer(s.Routes())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		assert.NoError(t, s.CloseSessions(ctx))
		ts.Close()
	})
	return s, ts
}

func wsURL(httpURL string) string {
	return "ws" + strings.TrimPrefix(httpURL, "http") + "/ws"
}

// dial connects a websocket client and waits until the hub has registered it.
func dial(t *testing.T, s *Server, ts *httptest.Server) *websocket.Conn {
	t.Helper()

	before := s.Hub().Stats().Sessions
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL(ts.URL), nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	t.Cleanup(func() { _ = conn.Close() })

	require.Eventually(t, func() bool {
		return s.Hub().Stats().Sessions == before+1
	}, readTimeout, 5*time.Millisecond, "session was not registered")
	return conn
}

func send(t *testing.T, conn *websocket.Conn, text string) {
	t.Helper()
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(text)))
}

func expectText(t *testing.T, conn *websocket.Conn, want string) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(readTimeout)))
	messageType, data, err := conn.ReadMessage()
	require.NoError(t, err, "waiting for %q", want)
	assert.Equal(t, websocket.TextMessage, messageType)
	assert.Equal(t, want, string(data))
}

func expectNoMessage(t *testing.T, conn *websocket.Conn, wait time.Duration) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(wait)))
	_, data, err := conn.ReadMessage()
	if err == nil {
		t.Fatalf("expected no message, got %q", string(data))
	}
}

func get(t *testing.T, url string) *http.Response {
	t.Helper()
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(url)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

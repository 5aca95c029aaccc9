package relay

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"keytrack/internal/keytrack"
	"keytrack/internal/listener"
	"keytrack/internal/logging"
)

func waitForCondition(t *testing.T, timeout time.Duration, fn func() bool) bool {
	t.Helper()
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	for {
		select {
		case <-ticker.C:
			if fn() {
				return true
			}
		case <-deadline.C:
			return false
		}
	}
}

func newTestRelay(t *testing.T) (*Relay, string) {
	t.Helper()
	r := New(logging.Discard())
	srv := httptest.NewServer(r.Handler())
	t.Cleanup(func() {
		r.Close()
		srv.Close()
	})
	return r, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, r *Relay, url string, wantClients int) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.True(t, waitForCondition(t, 2*time.Second, func() bool {
		return r.ClientCount() == wantClients
	}), "client was not registered")
	return conn
}

func readNotification(t *testing.T, conn *websocket.Conn) listener.Notification {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var n listener.Notification
	require.NoError(t, json.Unmarshal(data, &n))
	return n
}

func onlyClient(r *Relay) *client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for c := range r.clients {
		return c
	}
	return nil
}

func TestBroadcastReachesAllClients(t *testing.T) {
	r, url := newTestRelay(t)
	a := dial(t, r, url, 1)
	b := dial(t, r, url, 2)

	r.Broadcast(listener.Notification{
		Kind:        listener.KindHotkey,
		SessionID:   "s",
		Combination: "ctrl+c",
		Keys:        []string{"ctrl", "c"},
		Action:      "copy",
	})

	for _, conn := range []*websocket.Conn{a, b} {
		n := readNotification(t, conn)
		assert.Equal(t, listener.KindHotkey, n.Kind)
		assert.Equal(t, "ctrl+c", n.Combination)
		assert.Equal(t, "copy", n.Action)
		assert.Equal(t, []string{"ctrl", "c"}, n.Keys)
	}
}

func TestSubscribeFiltersKinds(t *testing.T) {
	r, url := newTestRelay(t)
	conn := dial(t, r, url, 1)

	require.NoError(t, conn.WriteJSON(controlMsg{Action: subscribeAction, Kinds: []listener.Kind{listener.KindTyping}}))
	require.True(t, waitForCondition(t, 2*time.Second, func() bool {
		c := onlyClient(r)
		return c != nil && !c.wants(listener.KindHotkey)
	}))

	r.Broadcast(listener.Notification{Kind: listener.KindHotkey, Combination: "esc"})
	r.Broadcast(listener.Notification{Kind: listener.KindTyping, Text: "hello"})

	n := readNotification(t, conn)
	assert.Equal(t, listener.KindTyping, n.Kind)
	assert.Equal(t, "hello", n.Text)

	require.NoError(t, conn.WriteJSON(controlMsg{Action: unsubscribeAction, Kinds: []listener.Kind{listener.KindTyping}}))
	require.True(t, waitForCondition(t, 2*time.Second, func() bool {
		c := onlyClient(r)
		return c != nil && !c.wants(listener.KindTyping)
	}))
	c := onlyClient(r)
	assert.False(t, c.wants(listener.KindHotkey), "dropping the last kind must not reopen the stream")
}

func TestUnsubscribeFromDefault(t *testing.T) {
	r, url := newTestRelay(t)
	conn := dial(t, r, url, 1)

	c := onlyClient(r)
	require.NotNil(t, c)
	assert.True(t, c.wants(listener.KindHotkey))
	assert.True(t, c.wants(listener.KindTyping))

	require.NoError(t, conn.WriteJSON(controlMsg{Action: unsubscribeAction, Kinds: []listener.Kind{listener.KindTyping}}))
	require.True(t, waitForCondition(t, 2*time.Second, func() bool {
		return !c.wants(listener.KindTyping)
	}))
	assert.True(t, c.wants(listener.KindHotkey))

	r.Broadcast(listener.Notification{Kind: listener.KindTyping, Text: "secret"})
	r.Broadcast(listener.Notification{Kind: listener.KindHotkey, Combination: "ctrl+c"})

	n := readNotification(t, conn)
	assert.Equal(t, listener.KindHotkey, n.Kind)
	assert.Equal(t, "ctrl+c", n.Combination)
}

func TestInvalidControlMessage(t *testing.T) {
	r, url := newTestRelay(t)
	conn := dial(t, r, url, 1)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{not json")))
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var msg errorMsg
	require.NoError(t, json.Unmarshal(data, &msg))
	assert.Equal(t, "error", msg.Type)
	assert.Contains(t, msg.Message, "invalid JSON")
}

func TestClientDisconnectIsRemoved(t *testing.T) {
	r, url := newTestRelay(t)
	conn := dial(t, r, url, 1)

	conn.Close()
	assert.True(t, waitForCondition(t, 2*time.Second, func() bool {
		return r.ClientCount() == 0
	}))
}

func TestCloseDisconnectsClients(t *testing.T) {
	r, url := newTestRelay(t)
	conn := dial(t, r, url, 1)

	require.NoError(t, r.Close())
	assert.Equal(t, 0, r.ClientCount())

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "expected normal close, got %v", err)

	late, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer late.Close()
	require.NoError(t, late.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err = late.ReadMessage()
	assert.Error(t, err, "a closed relay refuses new clients")
	assert.Equal(t, 0, r.ClientCount())
}

func TestStartAndAttach(t *testing.T) {
	r := New(logging.Discard())
	r.Mount("/ping", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("pong"))
	}))
	require.NoError(t, r.Start(context.Background(), "127.0.0.1:0", "/events"))
	t.Cleanup(func() { r.Close() })
	assert.Error(t, r.Start(context.Background(), "127.0.0.1:0", "/events"))

	resp, err := http.Get("http://" + r.Addr() + "/ping")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, "pong", string(body))

	conn := dial(t, r, "ws://"+r.Addr()+"/events", 1)

	opts := listener.DefaultOptions()
	opts.Logger = logging.Discard()
	l := listener.New(opts)
	r.Attach(l)

	l.Press(keytrack.NamedKey("ctrl_l"))
	l.Press(keytrack.CharKey('z'))

	n := readNotification(t, conn)
	assert.Equal(t, "ctrl+z", n.Combination)
	assert.Equal(t, l.SessionID(), n.SessionID)
}

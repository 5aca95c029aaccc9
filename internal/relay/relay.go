// Package relay streams listener notifications to WebSocket clients.
//
// Every notification is sent as one JSON text frame. A client starts out
// receiving every kind. Its first subscribe message narrows the stream to
// the kinds it names and later ones add to it. Unsubscribe removes kinds,
// so a client that unsubscribes from everything receives nothing:
//
//	{"action": "subscribe", "kinds": ["hotkey"]}
//	{"action": "unsubscribe", "kinds": ["typing"]}
package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"keytrack/internal/listener"
	"keytrack/internal/logging"
)

const (
	writeDeadline      = 5 * time.Second
	readDeadline       = 90 * time.Second
	pingInterval       = 30 * time.Second
	maxReadMessageSize = 4 * 1024
	sendBuffer         = 64
)

var upgrader = websocket.Upgrader{
	// The relay binds to loopback by default.
	CheckOrigin:     func(r *http.Request) bool { return true },
	ReadBufferSize:  1024,
	WriteBufferSize: 4 * 1024,
}

const (
	subscribeAction   = "subscribe"
	unsubscribeAction = "unsubscribe"
)

type controlMsg struct {
	Action string          `json:"action"`
	Kinds  []listener.Kind `json:"kinds"`
}

type errorMsg struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// Relay fans notifications out to connected WebSocket clients.
type Relay struct {
	log *logging.Logger

	mu      sync.RWMutex
	clients map[*client]struct{}
	closed  bool

	server *http.Server
	addr   string
	extra  map[string]http.Handler

	closeOnce sync.Once
}

type client struct {
	conn *websocket.Conn
	send chan []byte

	mu       sync.Mutex
	kinds    map[listener.Kind]bool
	narrowed bool
	closed   bool
}

var allKinds = []listener.Kind{listener.KindHotkey, listener.KindTyping}

func newKindSet() map[listener.Kind]bool {
	kinds := make(map[listener.Kind]bool, len(allKinds))
	for _, k := range allKinds {
		kinds[k] = true
	}
	return kinds
}

func (c *client) wants(kind listener.Kind) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.kinds[kind]
}

// trySend queues payload without blocking. It reports false when the
// buffer is full or the client is closed.
func (c *client) trySend(payload []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- payload:
		return true
	default:
		return false
	}
}

func (c *client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// New creates a Relay.
func New(logger *logging.Logger) *Relay {
	if logger == nil {
		logger = logging.Default()
	}
	return &Relay{
		log:     logger.WithComponent("relay"),
		clients: make(map[*client]struct{}),
	}
}

// Handler returns the WebSocket endpoint.
func (r *Relay) Handler() http.Handler {
	return http.HandlerFunc(r.serveWS)
}

// Mount registers an additional HTTP handler served next to the
// WebSocket endpoint by Start.
func (r *Relay) Mount(pattern string, h http.Handler) {
	if r.extra == nil {
		r.extra = make(map[string]http.Handler)
	}
	r.extra[pattern] = h
}

// Start serves the relay on addr at path until Close. When addr has port 0
// the chosen address is available from Addr.
func (r *Relay) Start(ctx context.Context, addr, path string) error {
	if r.server != nil {
		return errors.New("relay: already started")
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("relay: listen: %w", err)
	}
	r.addr = ln.Addr().String()

	mux := http.NewServeMux()
	mux.Handle(path, r.Handler())
	for pattern, h := range r.extra {
		mux.Handle(pattern, h)
	}
	r.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	go func() {
		if err := r.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			r.log.Error("relay server failed", "error", err)
		}
	}()

	r.log.Info("relay started", "addr", r.addr, "path", path)
	return nil
}

// Addr returns the listening address after Start.
func (r *Relay) Addr() string {
	return r.addr
}

// ClientCount returns the number of connected clients.
func (r *Relay) ClientCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}

// Attach broadcasts every notification l emits.
func (r *Relay) Attach(l *listener.Listener) {
	l.Handle(r.Broadcast)
}

// Broadcast sends n to every client subscribed to its kind. A client whose
// send buffer is full is disconnected.
func (r *Relay) Broadcast(n listener.Notification) {
	payload, err := json.Marshal(n)
	if err != nil {
		r.log.Warn("encode notification", "error", err)
		return
	}

	var slow []*client
	r.mu.RLock()
	for c := range r.clients {
		if c.wants(n.Kind) && !c.trySend(payload) {
			slow = append(slow, c)
		}
	}
	r.mu.RUnlock()

	for _, c := range slow {
		r.log.Warn("client too slow, disconnecting", "remote", c.conn.RemoteAddr().String())
		r.remove(c)
	}
}

// Close disconnects every client and stops the server if Start was used.
func (r *Relay) Close() error {
	var closeErr error
	r.closeOnce.Do(func() {
		r.mu.Lock()
		r.closed = true
		clients := r.clients
		r.clients = make(map[*client]struct{})
		r.mu.Unlock()

		for c := range clients {
			c.close()
		}

		if r.server != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := r.server.Shutdown(ctx); err != nil {
				closeErr = fmt.Errorf("relay: shutdown: %w", err)
			}
		}
		r.log.Info("relay stopped")
	})
	return closeErr
}

func (r *Relay) add(c *client) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return false
	}
	r.clients[c] = struct{}{}
	return true
}

func (r *Relay) remove(c *client) {
	r.mu.Lock()
	delete(r.clients, c)
	r.mu.Unlock()
	c.close()
}

func (r *Relay) serveWS(w http.ResponseWriter, req *http.Request) {
	conn, err := upgrader.Upgrade(w, req, nil)
	if err != nil {
		r.log.Warn("upgrade failed", "error", err)
		return
	}

	conn.SetReadLimit(maxReadMessageSize)
	if err := conn.SetReadDeadline(time.Now().Add(readDeadline)); err != nil {
		conn.Close()
		return
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readDeadline))
	})

	c := &client{
		conn:  conn,
		send:  make(chan []byte, sendBuffer),
		kinds: newKindSet(),
	}
	if !r.add(c) {
		conn.Close()
		return
	}

	remote := conn.RemoteAddr().String()
	r.log.Info("client connected", "remote", remote)

	go r.writePump(c)
	r.readPump(c)

	r.remove(c)
	r.log.Info("client disconnected", "remote", remote)
}

func (r *Relay) readPump(c *client) {
	for {
		msgType, msg, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				r.log.Warn("read error", "error", err)
			}
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}

		var ctl controlMsg
		if err := json.Unmarshal(msg, &ctl); err != nil {
			r.sendError(c, fmt.Sprintf("invalid JSON: %s", err))
			continue
		}
		r.applyControl(c, ctl)
	}
}

func (r *Relay) applyControl(c *client, ctl controlMsg) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch ctl.Action {
	case subscribeAction:
		if !c.narrowed {
			clear(c.kinds)
			c.narrowed = true
		}
		for _, k := range ctl.Kinds {
			if k == listener.KindHotkey || k == listener.KindTyping {
				c.kinds[k] = true
			}
		}
	case unsubscribeAction:
		c.narrowed = true
		for _, k := range ctl.Kinds {
			delete(c.kinds, k)
		}
	default:
		r.log.Debug("unknown action", "action", ctl.Action)
	}
}

func (r *Relay) sendError(c *client, message string) {
	payload, err := json.Marshal(errorMsg{Type: "error", Message: message})
	if err != nil {
		return
	}
	c.trySend(payload)
}

// writePump is the only writer on c.conn.
func (r *Relay) writePump(c *client) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeDeadline)); err != nil {
				return
			}
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				r.log.Debug("write failed", "error", err)
				return
			}
		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeDeadline)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

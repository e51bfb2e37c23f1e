package devtools

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/vango-dev/dux/pkg/registry"
)

// Frame types sent on the stream.
const (
	FrameSnapshot = "snapshot"
	FrameChange   = "change"
)

// Frame is one WebSocket text message.
type Frame struct {
	Type   string               `json:"type"`
	Stores []registry.StoreInfo `json:"stores,omitempty"`
	Change *registry.Change     `json:"change,omitempty"`
}

const writeWait = 5 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // local tooling
	},
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	c := s.hub.add(conn)
	defer s.hub.remove(c)

	// The snapshot is taken after the client is registered, so no change
	// falls between the two.
	if err := c.write(Frame{Type: FrameSnapshot, Stores: s.reg.Stores()}); err != nil {
		return
	}

	go c.writeLoop()

	// Keep connection alive until client disconnects.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// hub tracks stream clients.
type hub struct {
	logger *slog.Logger
	limit  rate.Limit
	burst  int

	mu      sync.RWMutex
	clients map[*client]struct{}
}

func newHub(logger *slog.Logger, limit rate.Limit, burst int) *hub {
	return &hub{
		logger:  logger,
		limit:   limit,
		burst:   burst,
		clients: make(map[*client]struct{}),
	}
}

func (h *hub) add(conn *websocket.Conn) *client {
	ctx, cancel := context.WithCancel(context.Background())
	c := &client{
		conn:    conn,
		logger:  h.logger,
		limiter: rate.NewLimiter(h.limit, h.burst),
		pending: make(map[string]registry.Change),
		wake:    make(chan struct{}, 1),
		ctx:     ctx,
		cancel:  cancel,
	}

	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	return c
}

func (h *hub) remove(c *client) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
	c.close()
}

func (h *hub) broadcast(change registry.Change) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		c.offer(change)
	}
}

func (h *hub) count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *hub) close() {
	h.mu.Lock()
	clients := h.clients
	h.clients = make(map[*client]struct{})
	h.mu.Unlock()

	for c := range clients {
		c.close()
	}
}

// client is one stream connection. Changes wait in pending, keyed by
// store, until the limiter admits the next frame.
type client struct {
	conn    *websocket.Conn
	logger  *slog.Logger
	limiter *rate.Limiter

	mu      sync.Mutex
	pending map[string]registry.Change
	order   []string
	wake    chan struct{}

	writeMu sync.Mutex

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
}

func (c *client) offer(change registry.Change) {
	c.mu.Lock()
	if _, ok := c.pending[change.Store]; !ok {
		c.order = append(c.order, change.Store)
	}
	c.pending[change.Store] = change
	c.mu.Unlock()

	select {
	case c.wake <- struct{}{}:
	default:
	}
}

func (c *client) hasPending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.order) > 0
}

// next removes and returns the oldest pending change.
func (c *client) next() (registry.Change, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.order) == 0 {
		return registry.Change{}, false
	}
	name := c.order[0]
	c.order = c.order[1:]
	change := c.pending[name]
	delete(c.pending, name)
	return change, true
}

func (c *client) writeLoop() {
	for {
		select {
		case <-c.ctx.Done():
			return
		case <-c.wake:
		}

		for c.hasPending() {
			if err := c.limiter.Wait(c.ctx); err != nil {
				return
			}
			change, ok := c.next()
			if !ok {
				break
			}
			if err := c.write(Frame{Type: FrameChange, Change: &change}); err != nil {
				c.logger.Debug("devtools client dropped", "error", err)
				c.close()
				return
			}
		}
	}
}

func (c *client) write(f Frame) error {
	data, err := json.Marshal(f)
	if err != nil {
		c.logger.Warn("devtools frame not encodable", "type", f.Type, "error", err)
		return nil
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func (c *client) close() {
	c.closeOnce.Do(func() {
		c.cancel()
		_ = c.conn.Close()
	})
}

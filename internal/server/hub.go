package server

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/conneroisu/sitecycle/internal/logging"
	"github.com/conneroisu/sitecycle/internal/metrics"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Send pings to peer with this period.
	pingPeriod = 30 * time.Second

	// Messages queued per client before it is considered slow and dropped.
	sendBuffer = 16

	// ReloadMessage is the only message the reload channel carries.
	ReloadMessage = "reload"
)

type client struct {
	id   string
	conn *websocket.Conn
	send chan []byte
}

// Hub fans reload notifications out to every connected reload client. The
// client set is owned by the Run goroutine.
type Hub struct {
	register   chan *client
	unregister chan *client
	broadcast  chan []byte
	done       chan struct{}

	clients   map[*client]struct{}
	count     atomic.Int64
	running   atomic.Bool
	pingEvery time.Duration

	// Guards closed and the connection WaitGroup so no handler starts after
	// Run has exited.
	mu     sync.Mutex
	closed bool
	conns  sync.WaitGroup

	logger   logging.Logger
	recorder metrics.Recorder
	origins  []string
}

// NewHub creates a hub accepting connections from the given origins. An
// empty list or one containing "*" accepts any origin.
func NewHub(allowedOrigins []string, logger logging.Logger, recorder metrics.Recorder) *Hub {
	if logger == nil {
		logger = logging.Nop()
	}
	if recorder == nil {
		recorder = metrics.NoopRecorder{}
	}
	return &Hub{
		register:   make(chan *client),
		unregister: make(chan *client),
		broadcast:  make(chan []byte),
		done:       make(chan struct{}),
		clients:    make(map[*client]struct{}),
		pingEvery:  pingPeriod,
		logger:     logger.WithComponent("reload"),
		recorder:   recorder,
		origins:    originPatterns(allowedOrigins),
	}
}

func originPatterns(allowed []string) []string {
	var patterns []string
	for _, origin := range allowed {
		if origin == "*" {
			return nil
		}
		origin = strings.TrimPrefix(origin, "https://")
		origin = strings.TrimPrefix(origin, "http://")
		patterns = append(patterns, strings.TrimRight(origin, "/"))
	}
	return patterns
}

// Run owns the client set until ctx is done, then closes every client.
func (h *Hub) Run(ctx context.Context) {
	h.running.Store(true)
	defer h.closeAll()

	for {
		select {
		case <-ctx.Done():
			return

		case c := <-h.register:
			h.clients[c] = struct{}{}
			h.count.Store(int64(len(h.clients)))
			h.recorder.SetReloadClients(len(h.clients))
			h.logger.Debug(ctx, "reload client connected", "client", c.id, "total", len(h.clients))

		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				h.drop(c)
				h.logger.Debug(ctx, "reload client disconnected", "client", c.id, "total", len(h.clients))
			}

		case message := <-h.broadcast:
			for c := range h.clients {
				select {
				case c.send <- message:
				default:
					// Send buffer full: the client is not keeping up.
					h.drop(c)
					h.logger.Warn(ctx, nil, "dropping slow reload client", "client", c.id)
				}
			}
			h.recorder.IncReloadBroadcast()
		}
	}
}

func (h *Hub) drop(c *client) {
	delete(h.clients, c)
	close(c.send)
	h.count.Store(int64(len(h.clients)))
	h.recorder.SetReloadClients(len(h.clients))
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	h.closed = true
	close(h.done)
	h.mu.Unlock()

	for c := range h.clients {
		h.drop(c)
	}
}

// Broadcast queues message for every connected client. It reports false
// when the hub is not running.
func (h *Hub) Broadcast(message string) bool {
	if !h.running.Load() {
		return false
	}
	select {
	case h.broadcast <- []byte(message):
		return true
	case <-h.done:
		return false
	}
}

// Clients returns the number of connected reload clients.
func (h *Hub) Clients() int {
	return int(h.count.Load())
}

// Wait blocks until every client connection handler has returned.
func (h *Hub) Wait() {
	h.conns.Wait()
}

func (h *Hub) acquire() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.conns.Add(1)
	return true
}

// ServeHTTP upgrades the request to a reload websocket and serves it until
// either side goes away.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !h.acquire() {
		http.Error(w, "server shutting down", http.StatusServiceUnavailable)
		return
	}
	defer h.conns.Done()

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns:     h.origins,
		InsecureSkipVerify: len(h.origins) == 0,
	})
	if err != nil {
		h.logger.Warn(r.Context(), err, "reload upgrade failed", "remote", r.RemoteAddr)
		return
	}
	conn.SetReadLimit(512)

	c := &client{
		id:   uuid.NewString(),
		conn: conn,
		send: make(chan []byte, sendBuffer),
	}

	select {
	case h.register <- c:
	case <-h.done:
		conn.Close(websocket.StatusGoingAway, "server shutting down")
		return
	}

	// The client never sends anything; CloseRead handles control frames and
	// cancels ctx once the peer is gone.
	ctx := conn.CloseRead(context.Background())
	h.writePump(ctx, c)

	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

func (h *Hub) writePump(ctx context.Context, c *client) {
	ticker := time.NewTicker(h.pingEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.conn.Close(websocket.StatusNormalClosure, "")
			return

		case message, ok := <-c.send:
			if !ok {
				c.conn.Close(websocket.StatusGoingAway, "")
				return
			}
			writeCtx, cancel := context.WithTimeout(ctx, writeWait)
			err := c.conn.Write(writeCtx, websocket.MessageText, message)
			cancel()
			if err != nil {
				h.logger.Debug(ctx, "reload write failed", "client", c.id, "error", err.Error())
				c.conn.Close(websocket.StatusInternalError, "")
				return
			}

		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, writeWait)
			err := c.conn.Ping(pingCtx)
			cancel()
			if err != nil {
				c.conn.Close(websocket.StatusGoingAway, "")
				return
			}
		}
	}
}

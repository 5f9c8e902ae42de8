// Package telemetry streams pipeline events and periodic stats to
// WebSocket subscribers. The hub is broadcast-only: inbound traffic is
// read and discarded to keep the connection's control frames flowing.
package telemetry

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/NV7150/ImOTAR-sub000/errors"
	"github.com/NV7150/ImOTAR-sub000/logger"
)

const (
	// Pending broadcasts held while the fan-out loop catches up.
	broadcastBacklog = 64

	// Per-client send buffer. A client that falls this far behind
	// starts skipping frames instead of stalling the hub.
	clientSendBuffer = 32
)

// Hub accepts WebSocket subscribers and fans published messages out to
// them. Slow clients skip messages; they are never allowed to block the
// publisher or the other clients.
type Hub struct {
	addr           string
	allowedOrigins []string
	log            *zap.SugaredLogger

	clients    map[*client]bool
	register   chan *client
	unregister chan *client
	broadcast  chan []byte

	httpServer *http.Server
	listener   net.Listener

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	clientCount atomic.Int32
	drops       atomic.Int64
}

// NewHub configures a hub listening on addr. allowedOrigins is matched
// by prefix against the Origin header; requests with no Origin header
// are always accepted.
func NewHub(addr string, allowedOrigins []string, log *zap.SugaredLogger) (*Hub, error) {
	if addr == "" {
		return nil, errors.NewInvalidConfigError("telemetry hub requires a listen address")
	}
	if log == nil {
		log = logger.ComponentLogger("telemetry")
	}

	ctx, cancel := context.WithCancel(context.Background())
	h := &Hub{
		addr:           addr,
		allowedOrigins: allowedOrigins,
		log:            log,
		clients:        make(map[*client]bool),
		register:       make(chan *client),
		unregister:     make(chan *client),
		broadcast:      make(chan []byte, broadcastBacklog),
		ctx:            ctx,
		cancel:         cancel,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", h.handleWS)
	mux.HandleFunc("/health", h.handleHealth)
	h.httpServer = &http.Server{Addr: addr, Handler: mux}

	return h, nil
}

// Start binds the listen address and serves in the background. A bind
// failure is returned synchronously so the caller can refuse to start.
func (h *Hub) Start() error {
	ln, err := net.Listen("tcp", h.addr)
	if err != nil {
		return errors.Wrapf(err, "telemetry hub failed to bind %s", h.addr)
	}
	h.listener = ln

	h.wg.Add(1)
	go h.run()

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		if err := h.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			h.log.Errorw("telemetry server stopped",
				logger.FieldAddress, h.addr,
				logger.FieldError, err,
			)
		}
	}()

	h.log.Infow("telemetry hub listening", logger.FieldAddress, ln.Addr().String())
	return nil
}

// Addr returns the bound listen address, or the configured one before
// Start.
func (h *Hub) Addr() string {
	if h.listener != nil {
		return h.listener.Addr().String()
	}
	return h.addr
}

// Shutdown stops accepting connections, closes every client and waits
// for the fan-out loop to drain.
func (h *Hub) Shutdown(ctx context.Context) error {
	err := h.httpServer.Shutdown(ctx)
	h.cancel()
	h.wg.Wait()
	return err
}

// Publish marshals v and queues it for broadcast. When the backlog is
// full the message is dropped and counted; Publish never blocks.
func (h *Hub) Publish(v any) {
	b, err := json.Marshal(v)
	if err != nil {
		h.log.Warnw("telemetry marshal failed", logger.FieldError, err)
		return
	}
	select {
	case h.broadcast <- b:
	default:
		h.drops.Add(1)
	}
}

// ClientCount returns the number of connected subscribers.
func (h *Hub) ClientCount() int {
	return int(h.clientCount.Load())
}

// Drops returns how many messages were skipped, hub backlog and slow
// clients combined.
func (h *Hub) Drops() int64 {
	return h.drops.Load()
}

// run owns the clients map. Register, unregister and fan-out all happen
// here so channel closes have a single writer.
func (h *Hub) run() {
	defer h.wg.Done()
	for {
		select {
		case <-h.ctx.Done():
			for c := range h.clients {
				delete(h.clients, c)
				close(c.send)
			}
			h.clientCount.Store(0)
			return

		case c := <-h.register:
			h.clients[c] = true
			h.clientCount.Store(int32(len(h.clients)))
			h.log.Debugw("telemetry client connected",
				"client_id", c.id,
				logger.FieldCount, len(h.clients),
			)

		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
				h.clientCount.Store(int32(len(h.clients)))
				h.log.Debugw("telemetry client disconnected",
					"client_id", c.id,
					logger.FieldCount, len(h.clients),
				)
			}

		case msg := <-h.broadcast:
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					// Client is behind; skip this frame for it.
					h.drops.Add(1)
				}
			}
		}
	}
}

func (h *Hub) handleWS(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warnw("websocket upgrade failed", logger.FieldError, err)
		return
	}

	c := newClient(h, conn)
	select {
	case h.register <- c:
	case <-h.ctx.Done():
		conn.Close()
		return
	}

	go c.writePump()
	go c.readPump()
}

func (h *Hub) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":  "ok",
		"clients": h.ClientCount(),
	})
}

// checkOrigin matches the Origin header against the configured allow
// list by prefix, so any port on an allowed host passes. No Origin
// header (CLI clients, tests) is accepted.
func (h *Hub) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range h.allowedOrigins {
		if strings.HasPrefix(origin, allowed) {
			return true
		}
	}
	return false
}

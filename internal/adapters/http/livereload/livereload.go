// Package livereload pushes a reload signal to browsers over a websocket
// whenever the served templates change. It is only mounted in dev mode.
package livereload

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/okian/homeview/pkg/logger"
	"github.com/okian/homeview/pkg/metrics"
)

// Path is where the reload endpoint is mounted.
const Path = "/__livereload"

// reloadMessage is what the injected client script listens for.
const reloadMessage = "reload"

const writeWait = time.Second

// Reloader tracks connected browsers.
type Reloader struct {
	mu       sync.Mutex
	clients  map[*websocket.Conn]struct{}
	upgrader websocket.Upgrader
	logger   logger.Logger
}

// New returns a Reloader. A nil logger discards output.
func New(l logger.Logger) *Reloader {
	if l == nil {
		l = logger.Nop()
	}
	return &Reloader{
		clients: make(map[*websocket.Conn]struct{}),
		upgrader: websocket.Upgrader{
			// Dev-only endpoint; pages may be opened from any local origin.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		logger: l,
	}
}

// Handler upgrades the request and keeps the connection until the browser leaves.
func (lr *Reloader) Handler(w http.ResponseWriter, r *http.Request) {
	conn, err := lr.upgrader.Upgrade(w, r, nil)
	if err != nil {
		lr.logger.Debug(r.Context(), "livereload upgrade failed", logger.Error(err))
		return
	}
	// The server's read/write timeouts survive the hijack and would cut idle
	// clients off; writes get their own deadline in Broadcast.
	_ = conn.SetReadDeadline(time.Time{})

	lr.mu.Lock()
	lr.clients[conn] = struct{}{}
	metrics.UpdateLiveReloadClients(len(lr.clients))
	lr.mu.Unlock()

	go func() {
		defer lr.drop(conn)
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()
}

// Broadcast sends a reload to every client, dropping those that fail.
func (lr *Reloader) Broadcast() {
	lr.mu.Lock()
	defer lr.mu.Unlock()

	for conn := range lr.clients {
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteMessage(websocket.TextMessage, []byte(reloadMessage)); err != nil {
			_ = conn.Close()
			delete(lr.clients, conn)
		}
	}
	metrics.UpdateLiveReloadClients(len(lr.clients))
}

// Clients returns the number of connected browsers.
func (lr *Reloader) Clients() int {
	lr.mu.Lock()
	defer lr.mu.Unlock()
	return len(lr.clients)
}

// Close disconnects every client.
func (lr *Reloader) Close() {
	lr.mu.Lock()
	defer lr.mu.Unlock()
	for conn := range lr.clients {
		_ = conn.Close()
		delete(lr.clients, conn)
	}
	metrics.UpdateLiveReloadClients(0)
}

func (lr *Reloader) drop(conn *websocket.Conn) {
	lr.mu.Lock()
	delete(lr.clients, conn)
	metrics.UpdateLiveReloadClients(len(lr.clients))
	lr.mu.Unlock()
	_ = conn.Close()
}

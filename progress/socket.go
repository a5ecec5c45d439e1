package progress

import (
	"fmt"
	"log"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const writeTimeout = 2 * time.Second

// SocketBroadcaster pushes status strings over a local WebSocket endpoint
// so a status window running in another process can display them. Clients
// may connect and disconnect at any time; when nobody is connected the
// notifications simply go nowhere.
type SocketBroadcaster struct {
	upgrader websocket.Upgrader
	server   *http.Server
	listener net.Listener

	mu    sync.Mutex
	conns map[*websocket.Conn]struct{}
}

// NewSocketBroadcaster creates a broadcaster that will listen on addr
// (typically 127.0.0.1:0). Nothing is bound until Start.
func NewSocketBroadcaster() *SocketBroadcaster {
	return &SocketBroadcaster{
		upgrader: websocket.Upgrader{
			HandshakeTimeout: 10 * time.Second,
		},
		conns: make(map[*websocket.Conn]struct{}),
	}
}

// Start binds addr and begins accepting subscribers on /progress.
func (b *SocketBroadcaster) Start(addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}

	b.listener = listener

	mux := http.NewServeMux()
	mux.HandleFunc("/progress", b.handleSubscribe)
	b.server = &http.Server{Handler: mux}

	go func() {
		if err := b.server.Serve(listener); err != nil && err != http.ErrServerClosed {
			log.Printf("[progress] WebSocket server stopped: %v", err)
		}
	}()

	log.Printf("[progress] Status endpoint listening on ws://%s/progress", b.Addr())

	return nil
}

// Addr returns the bound address, useful when Start was given port 0.
func (b *SocketBroadcaster) Addr() string {
	if b.listener == nil {
		return ""
	}
	return b.listener.Addr().String()
}

// Notify sends status as a text frame to every connected subscriber.
// A subscriber that cannot be written to is dropped.
func (b *SocketBroadcaster) Notify(status string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for conn := range b.conns {
		conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := conn.WriteMessage(websocket.TextMessage, []byte(status)); err != nil {
			log.Printf("[progress] Dropping subscriber %s: %v", conn.RemoteAddr(), err)
			conn.Close()
			delete(b.conns, conn)
		}
	}
}

// Close disconnects all subscribers and stops the server.
func (b *SocketBroadcaster) Close() error {
	b.mu.Lock()
	for conn := range b.conns {
		conn.Close()
	}
	b.conns = make(map[*websocket.Conn]struct{})
	b.mu.Unlock()

	if b.server != nil {
		return b.server.Close()
	}
	return nil
}

func (b *SocketBroadcaster) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	conn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[progress] Failed to upgrade subscriber: %v", err)
		return
	}

	b.mu.Lock()
	b.conns[conn] = struct{}{}
	b.mu.Unlock()

	log.Printf("[progress] Subscriber connected from %s", conn.RemoteAddr())

	// Read loop exists only to observe the close; subscribers never send
	// anything meaningful.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				b.mu.Lock()
				delete(b.conns, conn)
				b.mu.Unlock()
				conn.Close()
				return
			}
		}
	}()
}

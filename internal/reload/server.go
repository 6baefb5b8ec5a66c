// Package reload notifies running extension contexts after a rebuild. The
// default strategy runs a local WebSocket session that injected clients
// connect to; the poll strategy needs no server and works through the dev
// timestamp the build writes into the manifest.
package reload

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/extkit/cli/internal/output"
)

// Messages sent to injected clients. Each client acts only on the message
// for its own context.
const (
	MessageReloadBackground = "reload-background"
	MessageReloadContent    = "reload-content"
	MessageReloadPage       = "reload-page"
)

const (
	// DefaultPort is the first port tried for the reload session.
	DefaultPort = 9012

	// portScanRange is how many consecutive ports are tried before
	// giving up.
	portScanRange = 10

	// contentReloadDelay separates the background reload from the content
	// reload so the new service worker is up before tabs refresh.
	contentReloadDelay = 500 * time.Millisecond

	writeWait    = 10 * time.Second
	closeTimeout = 5 * time.Second
)

// State is the session lifecycle phase.
type State int32

const (
	StateInit State = iota
	StateActive
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateActive:
		return "active"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Session is a WebSocket reload server. Zero or more injected clients
// connect to ws://127.0.0.1:<port>/reload and receive plaintext reload
// messages after rebuilds.
type Session struct {
	out      *output.Writer
	upgrader websocket.Upgrader

	state    atomic.Int32
	port     int
	listener net.Listener
	server   *http.Server

	mu      sync.Mutex
	clients map[string]*websocket.Conn

	// delay between the background and content messages, shortened in
	// tests.
	delay time.Duration
}

// NewSession creates a session in StateInit. Call Start to bind a port.
func NewSession(out *output.Writer) *Session {
	return &Session{
		out:     out,
		clients: make(map[string]*websocket.Conn),
		delay:   contentReloadDelay,
	}
}

// Start binds the first free port in [preferred, preferred+9] on loopback
// and begins accepting clients. Preferred defaults to DefaultPort when 0.
func (s *Session) Start(preferred int) error {
	if State(s.state.Load()) != StateInit {
		return fmt.Errorf("reload session already started")
	}
	if preferred == 0 {
		preferred = DefaultPort
	}

	listener, port, err := listenScan(preferred)
	if err != nil {
		return err
	}
	s.listener = listener
	s.port = port

	mux := http.NewServeMux()
	mux.HandleFunc("/reload", s.handleClient)
	s.server = &http.Server{Handler: mux}

	s.state.Store(int32(StateActive))
	go func() {
		if err := s.server.Serve(listener); err != nil && err != http.ErrServerClosed {
			s.out.Warning("reload server stopped: %v", err)
		}
	}()

	s.out.Info("reload server listening on ws://127.0.0.1:%d/reload", port)
	return nil
}

func listenScan(preferred int) (net.Listener, int, error) {
	for port := preferred; port < preferred+portScanRange; port++ {
		listener, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
		if err == nil {
			return listener, port, nil
		}
	}
	return nil, 0, fmt.Errorf("no free port in %d-%d; pass --port to pick another range", preferred, preferred+portScanRange-1)
}

// Port returns the bound port, valid after Start.
func (s *Session) Port() int {
	return s.port
}

// State returns the current lifecycle phase.
func (s *Session) State() State {
	return State(s.state.Load())
}

// ClientCount returns the number of connected clients.
func (s *Session) ClientCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

func (s *Session) handleClient(w http.ResponseWriter, r *http.Request) {
	if State(s.state.Load()) != StateActive {
		http.Error(w, "session closing", http.StatusServiceUnavailable)
		return
	}
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.out.Debug("reload client rejected: %v", err)
		return
	}

	id := uuid.NewString()
	s.mu.Lock()
	s.clients[id] = conn
	s.mu.Unlock()
	s.out.Debug("reload client %s connected (%d total)", id[:8], s.ClientCount())

	// Clients never send payloads; the read loop only notices disconnects.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				s.drop(id)
				return
			}
		}
	}()
}

func (s *Session) drop(id string) {
	s.mu.Lock()
	conn, ok := s.clients[id]
	if ok {
		delete(s.clients, id)
	}
	s.mu.Unlock()
	if ok {
		conn.Close()
		s.out.Debug("reload client %s disconnected", id[:8])
	}
}

// broadcast sends msg to every connected client. A client that cannot be
// written to within the deadline is dropped; a slow client never blocks
// the others beyond its own write.
func (s *Session) broadcast(msg string) {
	s.mu.Lock()
	conns := make(map[string]*websocket.Conn, len(s.clients))
	for id, conn := range s.clients {
		conns[id] = conn
	}
	s.mu.Unlock()

	for id, conn := range conns {
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
			s.drop(id)
		}
	}
}

// Close ends the session: every client receives a close frame, the
// listener stops, and the state moves to StateClosed. Bounded by
// closeTimeout so shutdown never hangs on a stuck peer.
func (s *Session) Close() error {
	if !s.state.CompareAndSwap(int32(StateActive), int32(StateClosing)) {
		s.state.Store(int32(StateClosed))
		return nil
	}

	s.mu.Lock()
	for id, conn := range s.clients {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "dev session ended"),
			time.Now().Add(time.Second))
		conn.Close()
		delete(s.clients, id)
	}
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()
	err := s.server.Shutdown(ctx)
	s.state.Store(int32(StateClosed))
	if err != nil && err != context.DeadlineExceeded {
		return fmt.Errorf("stopping reload server: %w", err)
	}
	return nil
}

package protocol

import (
	"context"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/cors"
	"nhooyr.io/websocket"

	"github.com/cemot/soccervision/logging"
)

// Dispatcher is the active controller's command surface, matching §4.7's
// dispatch order: handleCommand, then handleRequest, then set-controller,
// then an unsupported-command log.
type Dispatcher interface {
	HandleCommand(cmd Command) bool
	HandleRequest(text string) bool
	SetController(name string) bool
}

// OperatorServer accepts operator connections over HTTP-upgraded
// WebSocket, parses each inbound line as a Command, and pushes it onto a
// mutex-protected FIFO drained once per tick by the main loop. Each
// connection is assigned a session id so causal order of its messages can
// be reasoned about independently of other connections.
type OperatorServer struct {
	logger logging.Logger

	Inbound Queue

	mu          sync.Mutex
	connections map[string]*websocket.Conn

	httpServer *http.Server
}

// NewOperatorServer builds an OperatorServer listening at addr. CORS is
// permissive by default, matching a LAN-local operator dashboard's needs.
func NewOperatorServer(logger logging.Logger, addr string) *OperatorServer {
	s := &OperatorServer{
		logger:      logger,
		connections: make(map[string]*websocket.Conn),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWS)

	handler := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet},
	}).Handler(mux)

	s.httpServer = &http.Server{Addr: addr, Handler: handler}
	return s
}

// Start begins serving in a background goroutine. Errors after a clean
// shutdown (via Close) are suppressed; any other listen error is logged.
func (s *OperatorServer) Start() {
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Warnw("operator server: listen error", "error", err)
		}
	}()
}

// Close shuts down the HTTP server and all open connections.
func (s *OperatorServer) Close(ctx context.Context) error {
	s.mu.Lock()
	for id, conn := range s.connections {
		conn.Close(websocket.StatusNormalClosure, "shutting down")
		delete(s.connections, id)
	}
	s.mu.Unlock()
	return s.httpServer.Shutdown(ctx)
}

// Broadcast writes text to every connected operator session, used for
// introspection pushes (e.g. a controller's DebugJSON).
func (s *OperatorServer) Broadcast(ctx context.Context, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, conn := range s.connections {
		if err := conn.Write(ctx, websocket.MessageText, []byte(text)); err != nil {
			s.logger.Warnw("operator server: broadcast write failed", "session", id, "error", err)
		}
	}
}

func (s *OperatorServer) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		s.logger.Warnw("operator server: accept failed", "error", err)
		return
	}

	sessionID := uuid.New().String()
	s.mu.Lock()
	s.connections[sessionID] = conn
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.connections, sessionID)
		s.mu.Unlock()
	}()

	ctx := r.Context()
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return
		}
		text := string(data)
		if !IsValid(text) {
			s.logger.Warnf("operator server: malformed command %q from session %s", text, sessionID)
			continue
		}
		s.Inbound.Push(Parse(text))
	}
}

// Dispatch applies the §4.7 dispatch order for one command against the
// active controller's surface: handleCommand, then handleRequest, then
// set-controller, else log as unsupported.
func Dispatch(logger logging.Logger, dispatcher Dispatcher, cmd Command) {
	if dispatcher.HandleCommand(cmd) {
		return
	}
	if dispatcher.HandleRequest(cmd.String()) {
		return
	}
	if cmd.Name == "set-controller" && len(cmd.Parameters) >= 1 {
		if dispatcher.SetController(cmd.Parameters[0]) {
			return
		}
	}
	logger.Warnf("unsupported command: %s", cmd.String())
}

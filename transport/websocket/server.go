package websocket

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/rocketscienceinc/tictactoe-chain/internal/usecase"
)

const (
	writeWait       = 10 * time.Second
	shutdownTimeout = 5 * time.Second
)

type gameManager interface {
	Load(ctx context.Context) error
	Snapshot() usecase.Snapshot
	StartGame(ctx context.Context, opponent string) error
	MakeTurn(ctx context.Context, row, col int) error
}

type client struct {
	id   string
	conn *websocket.Conn

	writeMutex sync.Mutex
}

func (that *client) send(message *Message) error {
	that.writeMutex.Lock()
	defer that.writeMutex.Unlock()

	if err := that.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return fmt.Errorf("failed to set write deadline: %w", err)
	}

	if err := that.conn.WriteJSON(message); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}

	return nil
}

// Server pushes every game change to all connected clients and forwards
// their requests to the game manager.
type Server struct {
	logger   *slog.Logger
	manager  gameManager
	upgrader websocket.Upgrader

	connectionsMutex sync.RWMutex
	connections      map[string]*client

	handlers map[string]func(ctx context.Context, client *client, message *Message) error
}

func New(logger *slog.Logger, manager gameManager) *Server {
	server := &Server{
		logger:  logger.With("component", "websocket"),
		manager: manager,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		connections: make(map[string]*client),
		handlers:    make(map[string]func(context.Context, *client, *Message) error),
	}

	server.handlers[ActionGameState] = server.handleGameState
	server.handlers[ActionGameStart] = server.handleGameStart
	server.handlers[ActionGameTurn] = server.handleGameTurn

	return server
}

func (that *Server) Handler(ctx context.Context) http.Handler {
	router := mux.NewRouter()
	router.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		that.serveWebSocket(ctx, w, r)
	})

	return router
}

// Start - starts WebSocket server.
func (that *Server) Start(ctx context.Context, port string) error {
	srv := &http.Server{
		Addr:        ":" + port,
		Handler:     that.Handler(ctx),
		ReadTimeout: 10 * time.Second,
		IdleTimeout: 30 * time.Second,
	}

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		that.closeAll()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			that.logger.Error("failed to shut down server", "error", err)
		}
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

// OnStateChange broadcasts the new game state.
func (that *Server) OnStateChange(snapshot usecase.Snapshot) {
	that.broadcast(newMessage(ActionGameState, Payload{Game: &snapshot}))
}

// OnNotice broadcasts a notice.
func (that *Server) OnNotice(notice usecase.Notice) {
	that.broadcast(newMessage(ActionGameNotice, Payload{Notice: &notice}))
}

func (that *Server) serveWebSocket(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	log := that.logger.With("method", "serveWebSocket")

	conn, err := that.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error("failed to upgrade connection", "error", err)
		return
	}

	c := &client{id: uuid.NewString(), conn: conn}
	log = log.With("clientID", c.id)

	// refreshed before registering, so a changed game reaches the others by
	// broadcast and this client once below
	that.refresh(ctx)

	that.register(c)
	defer that.deregister(c)

	log.Info("WebSocket connection established")

	snapshot := that.manager.Snapshot()
	if err = c.send(newMessage(ActionGameState, Payload{Game: &snapshot})); err != nil {
		log.Error("failed to send game state", "error", err)
		return
	}

	that.handleMessages(ctx, c)
}

// handleMessages - processes messages from the client until it goes away.
func (that *Server) handleMessages(ctx context.Context, c *client) {
	log := that.logger.With("method", "handleMessages", "clientID", c.id)

	for {
		var message Message
		if err := c.conn.ReadJSON(&message); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Error("error reading message", "error", err)
			}
			return
		}

		handler, ok := that.handlers[message.Action]
		if !ok {
			log.Warn("unknown action", "action", message.Action)
			that.replyError(c, message.Action, fmt.Errorf("%w: %q", ErrUnknownAction, message.Action))
			continue
		}

		if err := handler(ctx, c, &message); err != nil {
			log.Warn("error processing message", "action", message.Action, "error", err)
			that.replyError(c, message.Action, err)
		}
	}
}

// refresh pulls the remote game into the manager. Failures leave the cached
// game, flagged stale by the manager.
func (that *Server) refresh(ctx context.Context) {
	if err := that.manager.Load(ctx); err != nil {
		that.logger.Debug("serving cached game", "error", err)
	}
}

func (that *Server) replyError(c *client, action string, cause error) {
	if err := c.send(newMessage(ActionError, Payload{Action: action, Error: cause.Error()})); err != nil {
		that.logger.Error("failed to send error", "clientID", c.id, "error", err)
	}
}

func (that *Server) broadcast(message *Message) {
	that.connectionsMutex.RLock()
	clients := make([]*client, 0, len(that.connections))
	for _, c := range that.connections {
		clients = append(clients, c)
	}
	that.connectionsMutex.RUnlock()

	for _, c := range clients {
		if err := c.send(message); err != nil {
			that.logger.Warn("failed to broadcast", "clientID", c.id, "action", message.Action, "error", err)
		}
	}
}

func (that *Server) register(c *client) {
	that.connectionsMutex.Lock()
	defer that.connectionsMutex.Unlock()

	that.connections[c.id] = c
}

func (that *Server) deregister(c *client) {
	that.connectionsMutex.Lock()
	delete(that.connections, c.id)
	that.connectionsMutex.Unlock()

	if err := c.conn.Close(); err != nil {
		that.logger.Debug("failed to close connection", "clientID", c.id, "error", err)
	}
}

func (that *Server) closeAll() {
	that.connectionsMutex.RLock()
	defer that.connectionsMutex.RUnlock()

	for _, c := range that.connections {
		c.writeMutex.Lock()
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(writeWait))
		c.writeMutex.Unlock()
	}
}

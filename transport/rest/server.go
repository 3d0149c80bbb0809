package rest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/rocketscienceinc/tictactoe-chain/internal/usecase"
)

const (
	shutdownTimeout = 5 * time.Second
	// writeMargin covers encoding the response once the remote has answered.
	writeMargin         = 10 * time.Second
	defaultWriteTimeout = 60 * time.Second
)

type gameManager interface {
	Load(ctx context.Context) error
	Snapshot() usecase.Snapshot
	StartGame(ctx context.Context, opponent string) error
	MakeTurn(ctx context.Context, row, col int) error
}

type Server struct {
	logger       *slog.Logger
	manager      gameManager
	router       *mux.Router
	writeTimeout time.Duration
}

// New builds the API. remoteTimeout is the bound on a single remote call and
// sizes how long a response may take to write.
func New(logger *slog.Logger, manager gameManager, remoteTimeout time.Duration) *Server {
	server := &Server{
		logger:       logger.With("component", "rest"),
		manager:      manager,
		router:       mux.NewRouter(),
		writeTimeout: writeTimeoutFor(remoteTimeout),
	}

	server.router.HandleFunc("/ping", pingHandler).Methods(http.MethodGet)
	server.router.HandleFunc("/game", server.handleGetGame).Methods(http.MethodGet)
	server.router.HandleFunc("/game/start", server.handleStartGame).Methods(http.MethodPost)
	server.router.HandleFunc("/game/turn", server.handleMakeTurn).Methods(http.MethodPost)

	return server
}

func (that *Server) Handler() http.Handler {
	return that.router
}

// Start serves HTTP until ctx is cancelled, then shuts down gracefully.
func (that *Server) Start(ctx context.Context, port string) error {
	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      that.router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: that.writeTimeout,
		IdleTimeout:  30 * time.Second,
	}

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			that.logger.Error("failed to shut down server", "error", err)
		}
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

// writeTimeoutFor leaves room for a write and the read-back that follows it,
// each bounded by remoteTimeout.
func writeTimeoutFor(remoteTimeout time.Duration) time.Duration {
	if remoteTimeout <= 0 {
		return defaultWriteTimeout
	}
	return 2*remoteTimeout + writeMargin
}

package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/muesli/termenv"

	"github.com/rocketscienceinc/tictactoe-chain/internal/config"
	"github.com/rocketscienceinc/tictactoe-chain/internal/contract"
	"github.com/rocketscienceinc/tictactoe-chain/internal/repository"
	"github.com/rocketscienceinc/tictactoe-chain/internal/repository/storage"
	"github.com/rocketscienceinc/tictactoe-chain/internal/service"
	"github.com/rocketscienceinc/tictactoe-chain/internal/usecase"
	"github.com/rocketscienceinc/tictactoe-chain/transport/rest"
	"github.com/rocketscienceinc/tictactoe-chain/transport/terminal"
	"github.com/rocketscienceinc/tictactoe-chain/transport/websocket"
)

var (
	ErrAddrNotFound   = errors.New("redis address string is empty")
	ErrUnknownBackend = errors.New("unknown remote backend")
	ErrUnknownUI      = errors.New("unknown ui")
)

// RunApp - runs the application.
func RunApp(logger *slog.Logger, conf *config.Config) error {
	log := logger.With("component", "app")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigs
		log.Info("Received signal, shutting down", "signal", sig)
		cancel()
	}()

	remote, closeRemote, err := newRemote(ctx, logger, conf)
	if err != nil {
		return fmt.Errorf("could not set up remote: %w", err)
	}
	defer closeRemote()

	manager := usecase.NewGameManager(logger, remote, usecase.Options{
		Timeout:     conf.Remote.Timeout,
		Optimistic:  conf.Remote.Optimistic,
		NoticeDelay: conf.NotifyDelay,
	})

	if err = manager.Load(ctx); err != nil {
		log.Warn("starting with a stale game", "error", err)
	}

	switch conf.UI {
	case config.UIWeb:
		return runWeb(ctx, logger, conf, manager)
	case config.UITerminal:
		console := terminal.New(logger, manager, remote.Identity(), os.Stdin, termenv.NewOutput(os.Stdout))
		manager.AddListener(console)

		return console.Run(ctx)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownUI, conf.UI)
	}
}

func runWeb(ctx context.Context, logger *slog.Logger, conf *config.Config, manager *usecase.GameManager) error {
	log := logger.With("component", "app")

	wsServer := websocket.New(logger, manager)
	manager.AddListener(wsServer)

	// run HTTP server
	httpErrCh := make(chan error, 1)
	go func() {
		log.Info("Starting HTTP server", "port", conf.HTTPPort)
		if httpErr := rest.New(logger, manager, conf.Remote.Timeout).Start(ctx, conf.HTTPPort); httpErr != nil {
			log.Error("HTTP server error", "error", httpErr)
			httpErrCh <- httpErr
		}
	}()

	// run Websocket server
	wsErrCh := make(chan error, 1)
	go func() {
		log.Info("Starting WebSocket server", "port", conf.SocketPort)
		if wsErr := wsServer.Start(ctx, conf.SocketPort); wsErr != nil {
			log.Error("WebSocket server error", "error", wsErr)
			wsErrCh <- wsErr
		}
	}()

	select {
	case err := <-httpErrCh:
		return fmt.Errorf("HTTP server error: %w", err)
	case err := <-wsErrCh:
		return fmt.Errorf("WebSocket server error: %w", err)
	case <-ctx.Done():
		log.Info("Application context canceled, shutting down")
		return nil
	}
}

// newRemote builds the contract backend named in the config, with a func
// releasing whatever it holds.
func newRemote(ctx context.Context, logger *slog.Logger, conf *config.Config) (contract.Contract, func(), error) {
	log := logger.With("component", "app")

	switch conf.Remote.Backend {
	case config.BackendMemory:
		ledger := contract.NewLedger(logger, repository.NewMemoryGameRepository(), conf.Remote.GameID, conf.Remote.Identity)
		return ledger.WithBot(service.NewBotService()), func() {}, nil

	case config.BackendRedis:
		redisAddrString := conf.Redis.GetRedisAddr()
		if redisAddrString == "" {
			return nil, nil, ErrAddrNotFound
		}

		redisStorage, err := storage.New(ctx, redisAddrString, conf.Redis.Password, conf.Redis.DB)
		if err != nil {
			return nil, nil, fmt.Errorf("could not connect to redis storage: %w", err)
		}

		closeStorage := func() {
			if err := redisStorage.Close(); err != nil {
				log.Error("could not close redis storage", "error", err)
			}
		}

		gameRepo := repository.NewGameRepository(redisStorage)
		ledger := contract.NewLedger(logger, gameRepo, conf.Remote.GameID, conf.Remote.Identity)
		return ledger.WithBot(service.NewBotService()), closeStorage, nil

	case config.BackendEthereum:
		codec, err := contract.CodecByName(conf.Remote.StatusEncoding)
		if err != nil {
			return nil, nil, err
		}

		eth, err := contract.DialEthereum(ctx, logger, contract.EthereumConfig{
			RPCURL:          conf.Ethereum.RPCURL,
			ContractAddress: conf.Ethereum.ContractAddress,
			PrivateKey:      conf.Ethereum.PrivateKey,
			GasLimit:        conf.Ethereum.GasLimit,
		}, codec)
		if err != nil {
			return nil, nil, fmt.Errorf("could not bind game contract: %w", err)
		}

		return eth, eth.Close, nil

	default:
		return nil, nil, fmt.Errorf("%w: %q", ErrUnknownBackend, conf.Remote.Backend)
	}
}

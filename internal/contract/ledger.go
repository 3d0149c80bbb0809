package contract

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/rocketscienceinc/tictactoe-chain/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-chain/internal/entity"
	"github.com/rocketscienceinc/tictactoe-chain/internal/repository"
	"github.com/rocketscienceinc/tictactoe-chain/internal/service"
	"github.com/rocketscienceinc/tictactoe-chain/internal/tictactoe"
)

type botPlayer interface {
	PickCell(board entity.Board) (int, error)
}

// Ledger emulates the game contract on top of a game repository. Every
// Ledger acts for one caller identity, like a wallet-bound contract handle.
type Ledger struct {
	logger *slog.Logger

	gameRepo repository.GameRepository
	gameID   string
	caller   string

	bot botPlayer
}

func NewLedger(logger *slog.Logger, gameRepo repository.GameRepository, gameID, caller string) *Ledger {
	return &Ledger{
		logger:   logger.With("component", "ledger", "gameID", gameID, "caller", caller),
		gameRepo: gameRepo,
		gameID:   gameID,
		caller:   caller,
	}
}

// WithBot lets games started against service.BotIdentity answer every move
// with one from bot, inside the same update.
func (that *Ledger) WithBot(bot botPlayer) *Ledger {
	ledger := *that
	ledger.bot = bot
	return &ledger
}

func (that *Ledger) Identity() string {
	return that.caller
}

func (that *Ledger) StartGame(ctx context.Context, opponent string) error {
	if opponent == "" {
		return fmt.Errorf("%w: %w", apperror.ErrCallRejected, apperror.ErrInvalidOpponent)
	}

	_, err := that.gameRepo.Update(ctx, that.gameID, func(game *entity.Game) error {
		if game.State.IsOngoing() {
			return apperror.ErrGameAlreadyExists
		}

		state, err := tictactoe.Start(tictactoe.Reset(game.State))
		if err != nil {
			return err
		}

		game.State = state
		game.PlayerX = that.caller
		game.PlayerO = opponent

		return nil
	})
	if err != nil {
		return classify("startGame", err)
	}

	that.logger.Info("game started", "opponent", opponent)

	return nil
}

func (that *Ledger) MakeMove(ctx context.Context, row, col int) error {
	game, err := that.gameRepo.Update(ctx, that.gameID, func(game *entity.Game) error {
		if !game.HasPlayer(that.caller) && game.State.IsOngoing() {
			return apperror.ErrNotAPlayer
		}

		if game.State.IsOngoing() && game.PlayerFor(game.State.Turn) != that.caller {
			return apperror.ErrNotYourTurn
		}

		state, err := tictactoe.MakeTurn(game.State, row, col)
		if err != nil {
			return err
		}

		game.State = state
		return that.answerWithBot(game)
	})
	if err != nil {
		return classify("makeMove", err)
	}

	that.logger.Debug("move accepted", "row", row, "col", col, "status", game.State.Status.String())

	return nil
}

func (that *Ledger) answerWithBot(game *entity.Game) error {
	if that.bot == nil || !game.State.IsOngoing() || game.PlayerFor(game.State.Turn) != service.BotIdentity {
		return nil
	}

	cell, err := that.bot.PickCell(game.State.Board)
	if err != nil {
		return fmt.Errorf("bot failed to pick a cell: %w", err)
	}

	state, err := tictactoe.MakeTurn(game.State, cell/entity.BoardSide, cell%entity.BoardSide)
	if err != nil {
		return fmt.Errorf("bot failed to make turn: %w", err)
	}

	game.State = state
	return nil
}

func (that *Ledger) GetGame(ctx context.Context) (Canonical, error) {
	game, err := that.gameRepo.GetByID(ctx, that.gameID)
	if errors.Is(err, repository.ErrGameNotFound) {
		return Canonical{Status: entity.StatusNotStarted}, nil
	}

	if err != nil {
		return Canonical{}, fmt.Errorf("%w: getGame: %w", apperror.ErrRead, err)
	}

	return Canonical{Board: game.State.Board, Status: game.State.Status}, nil
}

// classify sorts a failed state-changing call into rule rejections and
// transport failures.
func classify(method string, err error) error {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%s: %w", method, err)
	case isRuleViolation(err):
		return fmt.Errorf("%w: %s: %w", apperror.ErrCallRejected, method, err)
	default:
		return fmt.Errorf("%w: %s: %w", apperror.ErrConnection, method, err)
	}
}

func isRuleViolation(err error) bool {
	for _, rule := range []error{
		apperror.ErrGameAlreadyExists,
		apperror.ErrGameFinished,
		apperror.ErrGameIsNotStarted,
		apperror.ErrNotAPlayer,
		apperror.ErrNotYourTurn,
		apperror.ErrCellOccupied,
		entity.ErrInvalidCell,
	} {
		if errors.Is(err, rule) {
			return true
		}
	}
	return false
}

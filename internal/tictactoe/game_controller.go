package tictactoe

import (
	"fmt"

	"github.com/rocketscienceinc/tictactoe-chain/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-chain/internal/entity"
)

// NewGame returns a game that has not been started yet.
func NewGame() entity.GameState {
	return entity.GameState{
		Board:  entity.Board{},
		Turn:   entity.PlayerX,
		Status: entity.StatusNotStarted,
	}
}

// Start moves a fresh game into play.
func Start(state entity.GameState) (entity.GameState, error) {
	if err := confirmStartable(state); err != nil {
		return state, err
	}

	state.Status = entity.StatusInProgress
	state.Turn = entity.PlayerX

	return state, nil
}

// Reset discards the game, whatever its status.
func Reset(_ entity.GameState) entity.GameState {
	return NewGame()
}

// MakeTurn places the mark of the player to move at (row, col).
// A rejected move returns the input state untouched.
func MakeTurn(state entity.GameState, row, col int) (entity.GameState, error) {
	if err := confirmOngoingState(state); err != nil {
		return state, err
	}

	cell, err := validateMove(state, row, col)
	if err != nil {
		return state, fmt.Errorf("invalid turn: %w", err)
	}

	next := state
	next.Board[cell] = state.Turn
	next.Turn = state.Turn.Opponent()
	updateGameStatus(&next)

	return next, nil
}

// FromCanonical rebuilds a local state from the remote board and status.
func FromCanonical(board entity.Board, status entity.Status) entity.GameState {
	state := entity.GameState{
		Board:  board,
		Status: status,
		Turn:   board.NextTurn(),
	}

	if status.IsTerminal() {
		state.Turn = entity.EmptyCell
	}

	return state
}

func confirmStartable(state entity.GameState) error {
	switch {
	case state.IsNotStarted():
		return nil
	case state.IsOngoing():
		return apperror.ErrGameAlreadyExists
	case state.IsFinished():
		return apperror.ErrGameFinished
	default:
		return fmt.Errorf("%w: %d", entity.ErrUnknownGameStatus, state.Status)
	}
}

func confirmOngoingState(state entity.GameState) error {
	switch {
	case state.IsNotStarted():
		return apperror.ErrGameIsNotStarted
	case state.IsFinished():
		return apperror.ErrGameFinished
	case state.IsOngoing():
		return nil
	default:
		return fmt.Errorf("%w: %d", entity.ErrUnknownGameStatus, state.Status)
	}
}

// validateMove - checks if the move is valid.
func validateMove(state entity.GameState, row, col int) (int, error) {
	cell, err := entity.Index(row, col)
	if err != nil {
		return 0, err
	}

	if state.Board[cell] != entity.EmptyCell {
		return 0, apperror.ErrCellOccupied
	}

	return cell, nil
}

// updateGameStatus - checks the game status after a move.
func updateGameStatus(state *entity.GameState) {
	outcome := state.Board.Evaluate()

	state.Status = outcome.Status
	if outcome.Status.IsTerminal() {
		state.Turn = entity.EmptyCell
	}
}

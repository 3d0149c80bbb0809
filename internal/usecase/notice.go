package usecase

import (
	"errors"

	"github.com/rocketscienceinc/tictactoe-chain/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-chain/internal/entity"
)

type NoticeKind string

const (
	NoticeWin      NoticeKind = "win"
	NoticeTie      NoticeKind = "tie"
	NoticeGameOver NoticeKind = "game_over"
	NoticeError    NoticeKind = "error"
)

// Notice is a one-off message for the player, shown after the state it refers to.
type Notice struct {
	Kind    NoticeKind  `json:"kind"`
	Message string      `json:"message"`
	Winner  entity.Cell `json:"winner,omitempty"`
}

// describe turns a remote failure into a message fit for the player.
func describe(err error) string {
	switch {
	case errors.Is(err, apperror.ErrRemoteTimeout):
		return "the remote did not answer in time, try again"
	case errors.Is(err, apperror.ErrNotYourTurn):
		return "it's not your turn"
	case errors.Is(err, apperror.ErrCellOccupied):
		return "that cell is already taken"
	case errors.Is(err, apperror.ErrGameAlreadyExists):
		return "a game is already in progress"
	case errors.Is(err, apperror.ErrCallRejected):
		return "the move was rejected: " + err.Error()
	case errors.Is(err, apperror.ErrConnection):
		return "could not reach the game contract"
	default:
		return err.Error()
	}
}

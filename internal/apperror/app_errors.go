package apperror

import "errors"

var (
	ErrGameFinished      = errors.New("game is already finished")
	ErrGameIsNotStarted  = errors.New("game is not started")
	ErrNotYourTurn       = errors.New("it's not your turn")
	ErrNotAPlayer        = errors.New("caller is not a player of this game")
	ErrCellOccupied      = errors.New("cell is already occupied")
	ErrGameAlreadyExists = errors.New("game already exists")
	ErrInvalidOpponent   = errors.New("invalid opponent identity")

	// remote failures
	ErrConnection    = errors.New("remote connection failed")
	ErrCallRejected  = errors.New("remote call rejected")
	ErrRead          = errors.New("remote read failed")
	ErrRemoteTimeout = errors.New("remote call timed out")
	ErrMovePending   = errors.New("another remote operation is pending")
)

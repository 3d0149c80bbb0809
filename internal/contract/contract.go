// Package contract is the remote side of the game: the holder of canonical
// state that local play is reconciled against.
package contract

import (
	"context"

	"github.com/rocketscienceinc/tictactoe-chain/internal/entity"
)

// Contract is the remote game interface. State-changing calls return once the
// change is confirmed; GetGame returns the authoritative view.
type Contract interface {
	// Identity is the caller the remote acts for; starting a game against it
	// gives a hot-seat game.
	Identity() string

	StartGame(ctx context.Context, opponent string) error
	MakeMove(ctx context.Context, row, col int) error
	GetGame(ctx context.Context) (Canonical, error)
}

// Canonical is the remote view of a game.
type Canonical struct {
	Board  entity.Board
	Status entity.Status
}

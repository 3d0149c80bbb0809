package entity

import (
	"errors"
	"fmt"
)

type Status uint8

const (
	StatusNotStarted Status = iota
	StatusInProgress
	StatusTie
	StatusXWins
	StatusOWins
)

var ErrUnknownGameStatus = errors.New("unknown game status")

var statusNames = map[Status]string{
	StatusNotStarted: "not_started",
	StatusInProgress: "in_progress",
	StatusTie:        "tie",
	StatusXWins:      "x_wins",
	StatusOWins:      "o_wins",
}

func (that Status) String() string {
	if name, ok := statusNames[that]; ok {
		return name
	}
	return fmt.Sprintf("status(%d)", uint8(that))
}

func ParseStatus(name string) (Status, error) {
	for status, statusName := range statusNames {
		if statusName == name {
			return status, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownGameStatus, name)
}

// MarshalText writes statuses by name, so stored games and API responses stay readable.
func (that Status) MarshalText() ([]byte, error) {
	if _, ok := statusNames[that]; !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownGameStatus, uint8(that))
	}
	return []byte(that.String()), nil
}

func (that *Status) UnmarshalText(text []byte) error {
	status, err := ParseStatus(string(text))
	if err != nil {
		return err
	}
	*that = status
	return nil
}

func (that Status) IsTerminal() bool {
	return that == StatusTie || that == StatusXWins || that == StatusOWins
}

// Winner returns the winning mark of a terminal status, EmptyCell otherwise.
func (that Status) Winner() Cell {
	switch that {
	case StatusXWins:
		return PlayerX
	case StatusOWins:
		return PlayerO
	default:
		return EmptyCell
	}
}

// WinStatus maps a winning mark to its status.
func WinStatus(mark Cell) Status {
	if mark == PlayerO {
		return StatusOWins
	}
	return StatusXWins
}

// GameState is the local view of a game: what the board shows and who moves next.
type GameState struct {
	Board  Board  `json:"board"`
	Turn   Cell   `json:"turn"`
	Status Status `json:"status"`
}

func (that GameState) IsNotStarted() bool {
	return that.Status == StatusNotStarted
}

func (that GameState) IsOngoing() bool {
	return that.Status == StatusInProgress
}

func (that GameState) IsFinished() bool {
	return that.Status.IsTerminal()
}

// Game is the canonical record kept by the ledger backend.
type Game struct {
	ID      string    `json:"id"`
	State   GameState `json:"state"`
	PlayerX string    `json:"player_x,omitempty"`
	PlayerO string    `json:"player_o,omitempty"`
}

func NewGame(id string) *Game {
	return &Game{
		ID:    id,
		State: GameState{Turn: PlayerX, Status: StatusNotStarted},
	}
}

// PlayerFor returns the identity bound to the given mark.
func (that *Game) PlayerFor(mark Cell) string {
	switch mark {
	case PlayerX:
		return that.PlayerX
	case PlayerO:
		return that.PlayerO
	default:
		return ""
	}
}

func (that *Game) HasPlayer(identity string) bool {
	return identity != "" && (that.PlayerX == identity || that.PlayerO == identity)
}

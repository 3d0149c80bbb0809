package websocket

import (
	"encoding/json"
	"errors"

	"github.com/rocketscienceinc/tictactoe-chain/internal/usecase"
)

const (
	ActionGameState  = "game:state"
	ActionGameStart  = "game:start"
	ActionGameTurn   = "game:turn"
	ActionGameNotice = "game:notice"
	ActionError      = "error"
)

var (
	ErrUnknownAction   = errors.New("unknown action")
	ErrMissingPosition = errors.New("row and col are required")
)

// Message represents a WebSocket message with an action type and a payload.
type Message struct {
	Action  string          `json:"action"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type Payload struct {
	Game   *usecase.Snapshot `json:"game,omitempty"`
	Notice *usecase.Notice   `json:"notice,omitempty"`

	Opponent string `json:"opponent,omitempty"`
	Row      *int   `json:"row,omitempty"`
	Col      *int   `json:"col,omitempty"`

	Action string `json:"action,omitempty"`
	Error  string `json:"error,omitempty"`
}

func newMessage(action string, payload Payload) *Message {
	return &Message{
		Action:  action,
		Payload: mustMarshal(payload),
	}
}

func mustMarshal(v interface{}) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}

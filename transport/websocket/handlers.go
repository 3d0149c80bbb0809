package websocket

import (
	"context"
	"encoding/json"
	"fmt"
)

func (that *Server) handleGameState(ctx context.Context, c *client, _ *Message) error {
	that.refresh(ctx)

	snapshot := that.manager.Snapshot()

	return c.send(newMessage(ActionGameState, Payload{Game: &snapshot}))
}

// handleGameStart - starts a game; the resulting state reaches every client by broadcast.
func (that *Server) handleGameStart(ctx context.Context, _ *client, msg *Message) error {
	payload, err := decodePayload(msg)
	if err != nil {
		return err
	}

	if err = that.manager.StartGame(ctx, payload.Opponent); err != nil {
		return fmt.Errorf("failed to start game: %w", err)
	}

	that.logger.Info("game started", "opponent", payload.Opponent)

	return nil
}

func (that *Server) handleGameTurn(ctx context.Context, _ *client, msg *Message) error {
	payload, err := decodePayload(msg)
	if err != nil {
		return err
	}

	if payload.Row == nil || payload.Col == nil {
		return ErrMissingPosition
	}

	if err = that.manager.MakeTurn(ctx, *payload.Row, *payload.Col); err != nil {
		return fmt.Errorf("failed to make turn: %w", err)
	}

	return nil
}

func decodePayload(msg *Message) (Payload, error) {
	var payload Payload

	if len(msg.Payload) == 0 {
		return payload, nil
	}

	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		return payload, fmt.Errorf("failed to unmarshal payload: %w", err)
	}

	return payload, nil
}

package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/rocketscienceinc/tictactoe-chain/internal/entity"
)

const maxUpdateRetries = 10

var (
	ErrGameNotFound   = errors.New("game not found")
	ErrUpdateConflict = errors.New("game was modified concurrently")
)

// GameRepository keeps canonical games for the ledger backend.
type GameRepository interface {
	GetByID(ctx context.Context, id string) (*entity.Game, error)

	// Update loads the game (a fresh one when missing), applies fn and stores
	// the result atomically. Nothing is stored when fn fails.
	Update(ctx context.Context, id string, fn func(game *entity.Game) error) (*entity.Game, error)
}

type dbGame struct {
	client *redis.Client
}

func NewGameRepository(client *redis.Client) GameRepository {
	return &dbGame{
		client: client,
	}
}

func gameKey(id string) string {
	return "game:" + id
}

func (that *dbGame) GetByID(ctx context.Context, id string) (*entity.Game, error) {
	return getGame(ctx, that.client, id)
}

func (that *dbGame) Update(ctx context.Context, id string, fn func(game *entity.Game) error) (*entity.Game, error) {
	key := gameKey(id)

	var updated *entity.Game
	txf := func(tx *redis.Tx) error {
		game, err := getGame(ctx, tx, id)
		if errors.Is(err, ErrGameNotFound) {
			game = entity.NewGame(id)
		} else if err != nil {
			return err
		}

		if err = fn(game); err != nil {
			return err
		}

		gameJSON, err := json.Marshal(game)
		if err != nil {
			return fmt.Errorf("could not marshal game: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, gameJSON, 0)
			return nil
		})
		if err != nil {
			return err
		}

		updated = game
		return nil
	}

	for range maxUpdateRetries {
		err := that.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return nil, err
		}

		return updated, nil
	}

	return nil, fmt.Errorf("%w: %s", ErrUpdateConflict, id)
}

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func getGame(ctx context.Context, cmd getter, id string) (*entity.Game, error) {
	response, err := cmd.Get(ctx, gameKey(id)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrGameNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get game by id: %w", err)
	}

	var existingGame entity.Game
	if err = json.Unmarshal([]byte(response), &existingGame); err != nil {
		return nil, fmt.Errorf("failed to unmarshal game: %w", err)
	}

	return &existingGame, nil
}

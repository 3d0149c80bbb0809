package repository

import (
	"context"
	"sync"

	"github.com/rocketscienceinc/tictactoe-chain/internal/entity"
)

type memoryGame struct {
	mu    sync.Mutex
	games map[string]entity.Game
}

// NewMemoryGameRepository keeps games in process; used when no redis is configured.
func NewMemoryGameRepository() GameRepository {
	return &memoryGame{
		games: make(map[string]entity.Game),
	}
}

func (that *memoryGame) GetByID(_ context.Context, id string) (*entity.Game, error) {
	that.mu.Lock()
	defer that.mu.Unlock()

	game, ok := that.games[id]
	if !ok {
		return nil, ErrGameNotFound
	}

	return &game, nil
}

func (that *memoryGame) Update(ctx context.Context, id string, fn func(game *entity.Game) error) (*entity.Game, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	that.mu.Lock()
	defer that.mu.Unlock()

	game, ok := that.games[id]
	if !ok {
		game = *entity.NewGame(id)
	}

	if err := fn(&game); err != nil {
		return nil, err
	}

	that.games[id] = game

	result := game
	return &result, nil
}

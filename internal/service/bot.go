package service

import (
	"errors"
	"math/rand"

	"github.com/rocketscienceinc/tictactoe-chain/internal/entity"
)

// BotIdentity is the opponent name that hands the second seat to the bot.
const BotIdentity = "bot"

var ErrNoAvailableMoves = errors.New("no available moves")

type BotService interface {
	PickCell(board entity.Board) (int, error)
}

type botService struct {
	intn func(n int) int
}

func NewBotService() BotService {
	return &botService{intn: rand.Intn}
}

// PickCell chooses a random empty cell.
func (that *botService) PickCell(board entity.Board) (int, error) {
	availableCells := make([]int, 0, len(board))
	for i, cell := range board {
		if cell == entity.EmptyCell {
			availableCells = append(availableCells, i)
		}
	}

	if len(availableCells) == 0 {
		return 0, ErrNoAvailableMoves
	}

	return availableCells[that.intn(len(availableCells))], nil //nolint: gosec // it's ok
}

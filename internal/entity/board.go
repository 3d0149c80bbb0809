package entity

import (
	"errors"
	"fmt"
)

type Cell uint8

const (
	EmptyCell Cell = 0
	PlayerX   Cell = 1
	PlayerO   Cell = 2
)

const (
	BoardSide = 3
	BoardSize = BoardSide * BoardSide
)

var (
	ErrInvalidCell = errors.New("invalid cell index")
	ErrInvalidMark = errors.New("invalid cell mark")
)

// Triple is an index set that wins the game when all three cells hold the same mark.
type Triple [3]int

// WinCombos are the winning lines in evaluation order: rows, columns, diagonals.
var WinCombos = [8]Triple{
	{0, 1, 2},
	{3, 4, 5},
	{6, 7, 8},
	{0, 3, 6},
	{1, 4, 7},
	{2, 5, 8},
	{0, 4, 8},
	{2, 4, 6},
}

func (that Cell) String() string {
	switch that {
	case PlayerX:
		return "X"
	case PlayerO:
		return "O"
	default:
		return ""
	}
}

// Opponent returns the other mark; EmptyCell has no opponent.
func (that Cell) Opponent() Cell {
	switch that {
	case PlayerX:
		return PlayerO
	case PlayerO:
		return PlayerX
	default:
		return EmptyCell
	}
}

func (that Cell) Valid() bool {
	return that == EmptyCell || that == PlayerX || that == PlayerO
}

// Board is the 3x3 grid in row-major order.
type Board [BoardSize]Cell

// Index converts a (row, col) pair into a board index.
func Index(row, col int) (int, error) {
	if row < 0 || row >= BoardSide || col < 0 || col >= BoardSide {
		return 0, fmt.Errorf("%w: row %d col %d", ErrInvalidCell, row, col)
	}

	return row*BoardSide + col, nil
}

// BoardFromGrid builds a board from a [row][col] grid.
func BoardFromGrid(grid [BoardSide][BoardSide]Cell) (Board, error) {
	var board Board

	for row := range grid {
		for col, cell := range grid[row] {
			if !cell.Valid() {
				return Board{}, fmt.Errorf("%w: %d at row %d col %d", ErrInvalidMark, cell, row, col)
			}
			board[row*BoardSide+col] = cell
		}
	}

	return board, nil
}

func (that Board) Grid() [BoardSide][BoardSide]Cell {
	var grid [BoardSide][BoardSide]Cell
	for i, cell := range that {
		grid[i/BoardSide][i%BoardSide] = cell
	}
	return grid
}

func (that Board) Count(mark Cell) int {
	count := 0
	for _, cell := range that {
		if cell == mark {
			count++
		}
	}
	return count
}

func (that Board) IsFull() bool {
	return that.Count(EmptyCell) == 0
}

// NextTurn derives whose turn it is from mark parity; X always moves first.
func (that Board) NextTurn() Cell {
	if that.Count(PlayerX) > that.Count(PlayerO) {
		return PlayerO
	}
	return PlayerX
}

// WinningLines returns every triple holding three equal non-empty marks.
func (that Board) WinningLines() []Triple {
	var lines []Triple
	for _, combo := range WinCombos {
		if that.lineOwner(combo) != EmptyCell {
			lines = append(lines, combo)
		}
	}
	return lines
}

// Outcome is the evaluator verdict for a board.
type Outcome struct {
	Status Status
	Winner Cell
	Line   *Triple
}

// Evaluate scans the winning lines in declared order; the first match wins.
func (that Board) Evaluate() Outcome {
	for _, combo := range WinCombos {
		if owner := that.lineOwner(combo); owner != EmptyCell {
			line := combo
			return Outcome{Status: WinStatus(owner), Winner: owner, Line: &line}
		}
	}

	// the game will continue until all the squares are full
	if that.IsFull() {
		return Outcome{Status: StatusTie}
	}

	return Outcome{Status: StatusInProgress}
}

func (that Board) lineOwner(combo Triple) Cell {
	a, b, c := that[combo[0]], that[combo[1]], that[combo[2]]
	if a != EmptyCell && a == b && b == c {
		return a
	}
	return EmptyCell
}

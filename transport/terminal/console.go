// Package terminal plays the game from a text console.
package terminal

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"github.com/muesli/termenv"

	"github.com/rocketscienceinc/tictactoe-chain/internal/entity"
	"github.com/rocketscienceinc/tictactoe-chain/internal/usecase"
)

const helpText = `commands:
  start [opponent]  start a game (defaults to playing yourself)
  move <row> <col>  place your mark, rows and columns are 0-2
  state             show the board
  reset             clear the local board
  quit              leave`

var ErrUsage = errors.New("usage")

type gameManager interface {
	Snapshot() usecase.Snapshot
	StartGame(ctx context.Context, opponent string) error
	MakeTurn(ctx context.Context, row, col int) error
	Reset() error
}

type Console struct {
	logger   *slog.Logger
	manager  gameManager
	identity string

	in io.Reader

	outMutex sync.Mutex
	out      *termenv.Output
}

// New returns a console reading commands from in. identity is the default
// opponent for "start", which gives a hot-seat game.
func New(logger *slog.Logger, manager gameManager, identity string, in io.Reader, out *termenv.Output) *Console {
	return &Console{
		logger:   logger.With("component", "terminal"),
		manager:  manager,
		identity: identity,
		in:       in,
		out:      out,
	}
}

// Run reads commands until quit, end of input or ctx cancellation.
func (that *Console) Run(ctx context.Context) error {
	lines := make(chan string)
	readErr := make(chan error, 1)

	go func() {
		scanner := bufio.NewScanner(that.in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		readErr <- scanner.Err()
	}()

	that.render(that.manager.Snapshot())
	that.println(helpText)

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-readErr:
			if err != nil {
				return fmt.Errorf("failed to read input: %w", err)
			}
			return nil
		case line := <-lines:
			if quit := that.execute(ctx, line); quit {
				return nil
			}
		}
	}
}

// execute runs one command line and reports whether the console should exit.
func (that *Console) execute(ctx context.Context, line string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}

	var err error

	switch fields[0] {
	case "quit", "exit":
		return true
	case "help":
		that.println(helpText)
	case "state":
		that.render(that.manager.Snapshot())
	case "reset":
		err = that.manager.Reset()
	case "start":
		opponent := that.identity
		if len(fields) > 1 {
			opponent = fields[1]
		}
		err = that.manager.StartGame(ctx, opponent)
	case "move":
		err = that.move(ctx, fields[1:])
	default:
		err = fmt.Errorf("%w: unknown command %q, try help", ErrUsage, fields[0])
	}

	if err != nil {
		that.logger.Debug("command failed", "command", fields[0], "error", err)
		that.println(that.out.String("! " + err.Error()).Foreground(termenv.ANSIRed).String())
	}

	return false
}

func (that *Console) move(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("%w: move <row> <col>", ErrUsage)
	}

	row, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("%w: row must be a number", ErrUsage)
	}

	col, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("%w: col must be a number", ErrUsage)
	}

	return that.manager.MakeTurn(ctx, row, col)
}

func (that *Console) OnStateChange(snapshot usecase.Snapshot) {
	that.render(snapshot)
}

func (that *Console) OnNotice(notice usecase.Notice) {
	style := that.out.String("* " + notice.Message).Bold()

	switch notice.Kind {
	case usecase.NoticeWin, usecase.NoticeTie:
		style = style.Foreground(termenv.ANSIGreen)
	case usecase.NoticeError, usecase.NoticeGameOver:
		style = style.Foreground(termenv.ANSIYellow)
	}

	that.println(style.String())
}

func (that *Console) render(snapshot usecase.Snapshot) {
	that.println(that.board(snapshot) + "\n" + that.status(snapshot))
}

func (that *Console) board(snapshot usecase.Snapshot) string {
	winning := map[int]bool{}
	if snapshot.Line != nil {
		for _, cell := range snapshot.Line {
			winning[cell] = true
		}
	}

	var b strings.Builder
	b.WriteString("    0   1   2\n")

	for row := 0; row < entity.BoardSide; row++ {
		b.WriteString(strconv.Itoa(row) + " ")

		for col := 0; col < entity.BoardSide; col++ {
			index := row*entity.BoardSide + col
			b.WriteString(that.cell(snapshot.State.Board[index], winning[index]))

			if col < entity.BoardSide-1 {
				b.WriteString("|")
			}
		}

		b.WriteString("\n")
		if row < entity.BoardSide-1 {
			b.WriteString("  ---+---+---\n")
		}
	}

	return b.String()
}

func (that *Console) cell(mark entity.Cell, highlighted bool) string {
	text := " " + mark.String() + " "
	if mark == entity.EmptyCell {
		text = "   "
	}

	style := that.out.String(text)

	switch {
	case highlighted:
		style = style.Reverse()
	case mark == entity.PlayerX:
		style = style.Foreground(termenv.ANSIBrightRed)
	case mark == entity.PlayerO:
		style = style.Foreground(termenv.ANSIBrightBlue)
	}

	return style.String()
}

func (that *Console) status(snapshot usecase.Snapshot) string {
	var line string

	switch state := snapshot.State; {
	case state.Status == entity.StatusNotStarted:
		line = "no game, type start"
	case state.Status == entity.StatusTie:
		line = "draw"
	case state.Status.Winner() != entity.EmptyCell:
		line = state.Status.Winner().String() + " won"
	default:
		line = state.Turn.String() + " to move"
	}

	if snapshot.Pending {
		line += " (waiting for the remote)"
	}

	if snapshot.Stale {
		line += " (may be out of date)"
	}

	return line
}

func (that *Console) println(text string) {
	that.outMutex.Lock()
	defer that.outMutex.Unlock()

	if _, err := fmt.Fprintln(that.out, text); err != nil {
		that.logger.Error("failed to write output", "error", err)
	}
}

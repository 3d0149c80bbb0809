package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rocketscienceinc/tictactoe-chain/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-chain/internal/contract"
	"github.com/rocketscienceinc/tictactoe-chain/internal/entity"
	"github.com/rocketscienceinc/tictactoe-chain/internal/tictactoe"
)

type Options struct {
	// Timeout bounds every remote call; zero disables it.
	Timeout time.Duration
	// Optimistic applies a locally validated move before the remote confirms it.
	Optimistic bool
	// NoticeDelay postpones notices after the state change they describe.
	NoticeDelay time.Duration
}

// Snapshot is what observers see of the game.
type Snapshot struct {
	State   entity.GameState `json:"state"`
	Line    *entity.Triple   `json:"line,omitempty"`
	Pending bool             `json:"pending"`
	Stale   bool             `json:"stale"`
}

func (that Snapshot) equal(other Snapshot) bool {
	if that.State != other.State || that.Pending != other.Pending || that.Stale != other.Stale {
		return false
	}
	if that.Line == nil || other.Line == nil {
		return that.Line == other.Line
	}
	return *that.Line == *other.Line
}

type Listener interface {
	OnStateChange(snapshot Snapshot)
	OnNotice(notice Notice)
}

// GameManager keeps the local game in step with the remote contract. The
// remote view always wins; a failed write puts the local game back as it was.
type GameManager struct {
	logger  *slog.Logger
	remote  contract.Contract
	options Options

	mu        sync.Mutex
	state     entity.GameState
	line      *entity.Triple
	pending   bool
	stale     bool
	listeners []Listener
}

// attempt holds the local view captured before a state-changing call.
type attempt struct {
	state entity.GameState
	line  *entity.Triple
	stale bool
}

func NewGameManager(logger *slog.Logger, remote contract.Contract, options Options) *GameManager {
	return &GameManager{
		logger:  logger.With("component", "game_manager"),
		remote:  remote,
		options: options,
		state:   tictactoe.NewGame(),
	}
}

func (that *GameManager) AddListener(listener Listener) {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.listeners = append(that.listeners, listener)
}

func (that *GameManager) Snapshot() Snapshot {
	that.mu.Lock()
	defer that.mu.Unlock()

	return that.snapshotLocked()
}

// Load replaces the local game with the remote one. It holds the pending slot
// while reading, so no write can land between the read and its overwrite.
// Listeners hear about it only when the snapshot changed.
func (that *GameManager) Load(ctx context.Context) error {
	log := that.logger.With("method", "Load")

	that.mu.Lock()
	if that.pending {
		that.mu.Unlock()
		return apperror.ErrMovePending
	}
	that.pending = true
	before := that.snapshotLocked()
	that.mu.Unlock()

	canonical, err := that.fetch(ctx)

	that.mu.Lock()
	that.pending = false
	if err != nil {
		that.stale = true
	} else {
		that.applyLocked(canonical)
	}
	snapshot := that.snapshotLocked()
	that.mu.Unlock()

	before.Pending = false
	if !snapshot.equal(before) {
		that.publishState(snapshot)
	}

	if err != nil {
		log.Error("failed to load game", "error", err)
		return fmt.Errorf("failed to load game: %w", err)
	}

	log.Debug("game loaded", "status", snapshot.State.Status.String())

	return nil
}

func (that *GameManager) StartGame(ctx context.Context, opponent string) error {
	log := that.logger.With("method", "StartGame", "opponent", opponent)

	if opponent == "" {
		return apperror.ErrInvalidOpponent
	}

	that.mu.Lock()
	if that.pending {
		that.mu.Unlock()
		return apperror.ErrMovePending
	}
	prev := that.captureLocked()
	that.pending = true
	snapshot := that.snapshotLocked()
	that.mu.Unlock()

	that.publishState(snapshot)

	err := that.call(ctx, "startGame", func(ctx context.Context) error {
		return that.remote.StartGame(ctx, opponent)
	})
	if err != nil {
		that.rollback(log, prev, err)
		return fmt.Errorf("failed to start game: %w", err)
	}

	that.reconcile(ctx, log)

	return nil
}

// MakeTurn validates the move against the local game, sends it and then
// takes whatever the remote reports.
func (that *GameManager) MakeTurn(ctx context.Context, row, col int) error {
	log := that.logger.With("method", "MakeTurn", "row", row, "col", col)

	that.mu.Lock()
	if that.pending {
		that.mu.Unlock()
		return apperror.ErrMovePending
	}

	if that.state.IsFinished() {
		that.mu.Unlock()
		that.publishNotice(Notice{Kind: NoticeGameOver, Message: "the game is over, start a new one"})
		return apperror.ErrGameFinished
	}

	next, err := tictactoe.MakeTurn(that.state, row, col)
	if err != nil {
		that.mu.Unlock()
		return err
	}

	prev := that.captureLocked()
	if that.options.Optimistic {
		that.state = next
		that.line = winningLine(next)
	}
	that.pending = true
	snapshot := that.snapshotLocked()
	that.mu.Unlock()

	that.publishState(snapshot)

	err = that.call(ctx, "makeMove", func(ctx context.Context) error {
		return that.remote.MakeMove(ctx, row, col)
	})
	if err != nil {
		that.rollback(log, prev, err)
		return fmt.Errorf("failed to make turn: %w", err)
	}

	that.reconcile(ctx, log)

	return nil
}

// Reset clears the local board. The remote game is untouched until the next start.
func (that *GameManager) Reset() error {
	that.mu.Lock()
	if that.pending {
		that.mu.Unlock()
		return apperror.ErrMovePending
	}
	that.state = tictactoe.Reset(that.state)
	that.line = nil
	that.stale = false
	snapshot := that.snapshotLocked()
	that.mu.Unlock()

	that.publishState(snapshot)

	return nil
}

// reconcile ends a successful write by reading the remote game back.
func (that *GameManager) reconcile(ctx context.Context, log *slog.Logger) {
	canonical, err := that.fetch(ctx)

	that.mu.Lock()
	that.pending = false
	if err != nil {
		that.stale = true
	} else {
		that.applyLocked(canonical)
	}
	snapshot := that.snapshotLocked()
	that.mu.Unlock()

	if err != nil {
		log.Warn("write confirmed but game could not be read back", "error", err)
	}

	that.publishState(snapshot)

	if err == nil {
		that.announce(snapshot.State)
	}
}

func (that *GameManager) rollback(log *slog.Logger, prev attempt, cause error) {
	that.mu.Lock()
	that.state = prev.state
	that.line = prev.line
	that.stale = prev.stale
	that.pending = false
	snapshot := that.snapshotLocked()
	that.mu.Unlock()

	log.Error("remote call failed", "error", cause)

	that.publishState(snapshot)
	that.publishNotice(Notice{Kind: NoticeError, Message: describe(cause)})
}

func (that *GameManager) fetch(ctx context.Context) (contract.Canonical, error) {
	var canonical contract.Canonical

	err := that.call(ctx, "getGame", func(ctx context.Context) error {
		var err error
		canonical, err = that.remote.GetGame(ctx)
		return err
	})

	return canonical, err
}

// call runs fn under the configured timeout. It returns once the deadline
// passes even if fn does not honour its context.
func (that *GameManager) call(ctx context.Context, method string, fn func(ctx context.Context) error) error {
	if that.options.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, that.options.Timeout)
		defer cancel()
	}

	done := make(chan error, 1)
	go func() {
		done <- fn(ctx)
	}()

	select {
	case err := <-done:
		if err == nil {
			return nil
		}
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("%w: %s: %w", apperror.ErrRemoteTimeout, method, err)
		}
		return fmt.Errorf("%s: %w", method, err)
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("%w: %s", apperror.ErrRemoteTimeout, method)
		}
		return fmt.Errorf("%s: %w", method, ctx.Err())
	}
}

func (that *GameManager) applyLocked(canonical contract.Canonical) {
	that.state = tictactoe.FromCanonical(canonical.Board, canonical.Status)
	that.line = winningLine(that.state)
	that.stale = false
}

func (that *GameManager) captureLocked() attempt {
	return attempt{state: that.state, line: that.line, stale: that.stale}
}

func (that *GameManager) snapshotLocked() Snapshot {
	snapshot := Snapshot{
		State:   that.state,
		Pending: that.pending,
		Stale:   that.stale,
	}

	if that.line != nil {
		line := *that.line
		snapshot.Line = &line
	}

	return snapshot
}

func (that *GameManager) listenersCopy() []Listener {
	that.mu.Lock()
	defer that.mu.Unlock()

	return append([]Listener(nil), that.listeners...)
}

func (that *GameManager) publishState(snapshot Snapshot) {
	for _, listener := range that.listenersCopy() {
		listener.OnStateChange(snapshot)
	}
}

func (that *GameManager) publishNotice(notice Notice) {
	listeners := that.listenersCopy()

	dispatch := func() {
		for _, listener := range listeners {
			listener.OnNotice(notice)
		}
	}

	if that.options.NoticeDelay <= 0 {
		dispatch()
		return
	}

	time.AfterFunc(that.options.NoticeDelay, dispatch)
}

func (that *GameManager) announce(state entity.GameState) {
	switch {
	case state.Status.Winner() != entity.EmptyCell:
		winner := state.Status.Winner()
		that.publishNotice(Notice{Kind: NoticeWin, Winner: winner, Message: winner.String() + " wins!"})
	case state.Status == entity.StatusTie:
		that.publishNotice(Notice{Kind: NoticeTie, Message: "It's a draw!"})
	}
}

// winningLine is the triple to highlight, if the game was won.
func winningLine(state entity.GameState) *entity.Triple {
	if state.Status.Winner() == entity.EmptyCell {
		return nil
	}
	return state.Board.Evaluate().Line
}

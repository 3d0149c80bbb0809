package websocket

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rocketscienceinc/tictactoe-chain/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-chain/internal/entity"
	"github.com/rocketscienceinc/tictactoe-chain/internal/usecase"
)

// fakeManager answers like the game manager and notifies the server as its listener.
type fakeManager struct {
	mu       sync.Mutex
	snapshot usecase.Snapshot
	turnErr  error
	listener usecase.Listener

	opponent string
	loads    int
	remote   *usecase.Snapshot
}

// Load takes the remote snapshot when one is set, announcing it like the manager does.
func (that *fakeManager) Load(context.Context) error {
	that.mu.Lock()
	that.loads++
	if that.remote == nil {
		that.mu.Unlock()
		return nil
	}
	that.snapshot = *that.remote
	that.remote = nil
	snapshot := that.snapshot
	that.mu.Unlock()

	that.listener.OnStateChange(snapshot)
	return nil
}

func (that *fakeManager) Loads() int {
	that.mu.Lock()
	defer that.mu.Unlock()
	return that.loads
}

// opponentMoves stages a change that only the remote knows about.
func (that *fakeManager) opponentMoves(cell int) {
	that.mu.Lock()
	defer that.mu.Unlock()

	remote := that.snapshot
	remote.State.Board[cell] = entity.PlayerO
	that.remote = &remote
}

func (that *fakeManager) Snapshot() usecase.Snapshot {
	that.mu.Lock()
	defer that.mu.Unlock()
	return that.snapshot
}

func (that *fakeManager) StartGame(_ context.Context, opponent string) error {
	that.mu.Lock()
	that.opponent = opponent
	that.snapshot.State.Status = entity.StatusInProgress
	snapshot := that.snapshot
	that.mu.Unlock()

	that.listener.OnStateChange(snapshot)
	return nil
}

func (that *fakeManager) MakeTurn(_ context.Context, row, col int) error {
	if that.turnErr != nil {
		return that.turnErr
	}

	that.mu.Lock()
	that.snapshot.State.Board[row*entity.BoardSide+col] = entity.PlayerX
	snapshot := that.snapshot
	that.mu.Unlock()

	that.listener.OnStateChange(snapshot)
	that.listener.OnNotice(usecase.Notice{Kind: usecase.NoticeWin, Winner: entity.PlayerX, Message: "X wins!"})
	return nil
}

func newTestServer(t *testing.T, manager *fakeManager) (*Server, string) {
	t.Helper()

	server := New(slog.New(slog.NewTextHandler(io.Discard, nil)), manager)
	manager.listener = server

	httpServer := httptest.NewServer(server.Handler(context.Background()))
	t.Cleanup(httpServer.Close)

	return server, "ws" + strings.TrimPrefix(httpServer.URL, "http") + "/ws"
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) (string, Payload) {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))

	var message Message
	require.NoError(t, conn.ReadJSON(&message))

	var payload Payload
	require.NoError(t, json.Unmarshal(message.Payload, &payload))

	return message.Action, payload
}

func send(t *testing.T, conn *websocket.Conn, action string, payload string) {
	t.Helper()

	require.NoError(t, conn.WriteJSON(Message{Action: action, Payload: json.RawMessage(payload)}))
}

func TestServer_Connect(t *testing.T) {
	// Given: a game in progress
	manager := &fakeManager{snapshot: usecase.Snapshot{State: entity.GameState{Status: entity.StatusInProgress, Turn: entity.PlayerX}}}
	_, url := newTestServer(t, manager)

	// When: a client connects
	conn := dial(t, url)

	// Then: it receives the current state right away
	action, payload := readMessage(t, conn)
	assert.Equal(t, ActionGameState, action)
	require.NotNil(t, payload.Game)
	assert.Equal(t, manager.Snapshot(), *payload.Game)

	// And: can ask for it again
	send(t, conn, ActionGameState, "")
	action, _ = readMessage(t, conn)
	assert.Equal(t, ActionGameState, action)
}

func TestServer_Refresh(t *testing.T) {
	t.Run("A connecting client sees the remote game", func(t *testing.T) {
		// Given: a client watching a game in progress
		manager := &fakeManager{snapshot: usecase.Snapshot{State: entity.GameState{Status: entity.StatusInProgress}}}
		_, url := newTestServer(t, manager)
		watcher := dial(t, url)
		readMessage(t, watcher)

		// When: the opponent moves remotely and a second client connects
		manager.opponentMoves(0)
		newcomer := dial(t, url)

		// Then: both see the move
		for _, conn := range []*websocket.Conn{watcher, newcomer} {
			action, payload := readMessage(t, conn)
			assert.Equal(t, ActionGameState, action)
			require.NotNil(t, payload.Game)
			assert.Equal(t, entity.PlayerO, payload.Game.State.Board[0])
		}
		assert.Equal(t, 2, manager.Loads())
	})

	t.Run("Asking for the state reads the remote game", func(t *testing.T) {
		manager := &fakeManager{}
		_, url := newTestServer(t, manager)
		conn := dial(t, url)
		readMessage(t, conn)

		send(t, conn, ActionGameState, "")
		readMessage(t, conn)

		assert.Equal(t, 2, manager.Loads())
	})
}

func TestServer_Broadcast(t *testing.T) {
	manager := &fakeManager{}
	_, url := newTestServer(t, manager)

	first := dial(t, url)
	second := dial(t, url)
	readMessage(t, first)
	readMessage(t, second)

	// When: the first client plays
	send(t, first, ActionGameTurn, `{"row":1,"col":1}`)

	// Then: both clients see the move and the notice
	for _, conn := range []*websocket.Conn{first, second} {
		action, payload := readMessage(t, conn)
		assert.Equal(t, ActionGameState, action)
		require.NotNil(t, payload.Game)
		assert.Equal(t, entity.PlayerX, payload.Game.State.Board[4])

		action, payload = readMessage(t, conn)
		assert.Equal(t, ActionGameNotice, action)
		require.NotNil(t, payload.Notice)
		assert.Equal(t, usecase.NoticeWin, payload.Notice.Kind)
	}
}

func TestServer_StartGame(t *testing.T) {
	manager := &fakeManager{}
	_, url := newTestServer(t, manager)

	conn := dial(t, url)
	readMessage(t, conn)

	send(t, conn, ActionGameStart, `{"opponent":"bob"}`)

	action, payload := readMessage(t, conn)
	assert.Equal(t, ActionGameState, action)
	assert.Equal(t, entity.StatusInProgress, payload.Game.State.Status)

	manager.mu.Lock()
	defer manager.mu.Unlock()
	assert.Equal(t, "bob", manager.opponent)
}

func TestServer_Errors(t *testing.T) {
	t.Run("Rejected turns are answered to the sender", func(t *testing.T) {
		manager := &fakeManager{turnErr: apperror.ErrMovePending}
		_, url := newTestServer(t, manager)

		conn := dial(t, url)
		readMessage(t, conn)

		send(t, conn, ActionGameTurn, `{"row":0,"col":0}`)

		action, payload := readMessage(t, conn)
		assert.Equal(t, ActionError, action)
		assert.Equal(t, ActionGameTurn, payload.Action)
		assert.Contains(t, payload.Error, apperror.ErrMovePending.Error())
	})

	t.Run("A turn needs a position", func(t *testing.T) {
		_, url := newTestServer(t, &fakeManager{})

		conn := dial(t, url)
		readMessage(t, conn)

		send(t, conn, ActionGameTurn, `{"row":0}`)

		action, payload := readMessage(t, conn)
		assert.Equal(t, ActionError, action)
		assert.Equal(t, ErrMissingPosition.Error(), payload.Error)
	})

	t.Run("Unknown actions are reported", func(t *testing.T) {
		_, url := newTestServer(t, &fakeManager{})

		conn := dial(t, url)
		readMessage(t, conn)

		send(t, conn, "game:leave", "")

		action, payload := readMessage(t, conn)
		assert.Equal(t, ActionError, action)
		assert.Contains(t, payload.Error, ErrUnknownAction.Error())
	})
}

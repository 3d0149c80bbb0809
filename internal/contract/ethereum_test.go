package contract

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rocketscienceinc/tictactoe-chain/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-chain/internal/entity"
)

var (
	errExecutionReverted = errors.New("execution reverted: not your turn")
	errNodeGone          = errors.New("connection refused")
)

const opponentAddress = "0x00000000000000000000000000000000000000bb"

type transaction struct {
	method string
	params []interface{}
}

// fakeBinding records transactions and serves a fixed getGame result.
type fakeBinding struct {
	sent        []transaction
	transactErr error
	callErr     error
	grid        [3][3]uint8
	status      uint8
}

func (that *fakeBinding) Transact(opts *bind.TransactOpts, method string, params ...interface{}) (*types.Transaction, error) {
	if that.transactErr != nil {
		return nil, that.transactErr
	}
	that.sent = append(that.sent, transaction{method: method, params: params})
	return types.NewTx(&types.LegacyTx{Nonce: uint64(len(that.sent))}), nil
}

func (that *fakeBinding) Call(_ *bind.CallOpts, results *[]interface{}, method string, _ ...interface{}) error {
	if that.callErr != nil {
		return that.callErr
	}
	if method != "getGame" {
		return errors.New("unexpected method " + method)
	}
	*results = []interface{}{that.grid, that.status}
	return nil
}

func minedWith(status uint64, err error) receiptWaiter {
	return func(context.Context, *types.Transaction) (*types.Receipt, error) {
		if err != nil {
			return nil, err
		}
		return &types.Receipt{Status: status, BlockNumber: big.NewInt(7)}, nil
	}
}

func newTestEthereum(fake *fakeBinding, wait receiptWaiter, codec StatusCodec) *Ethereum {
	auth := &bind.TransactOpts{From: common.HexToAddress("0x00000000000000000000000000000000000000aa")}
	return newEthereum(discardLogger(), fake, wait, auth, codec)
}

func TestEthereum_GetGame(t *testing.T) {
	t.Run("Decodes board and ordinal status", func(t *testing.T) {
		// Given: the contract reports X on the diagonal and XWins
		fake := &fakeBinding{
			grid:   [3][3]uint8{{1, 2, 2}, {0, 1, 0}, {0, 0, 1}},
			status: 3,
		}
		eth := newTestEthereum(fake, minedWith(types.ReceiptStatusSuccessful, nil), OrdinalCodec)

		// When: reading the game
		canonical, err := eth.GetGame(context.Background())

		// Then: the board is row-major and the status is XWins
		require.NoError(t, err)
		assert.Equal(t, entity.StatusXWins, canonical.Status)
		assert.Equal(t, entity.Board{
			entity.PlayerX, entity.PlayerO, entity.PlayerO,
			entity.EmptyCell, entity.PlayerX, entity.EmptyCell,
			entity.EmptyCell, entity.EmptyCell, entity.PlayerX,
		}, canonical.Board)
	})

	t.Run("Uses the configured encoding", func(t *testing.T) {
		fake := &fakeBinding{status: 10}
		eth := newTestEthereum(fake, nil, WinCodesCodec)

		canonical, err := eth.GetGame(context.Background())

		require.NoError(t, err)
		assert.Equal(t, entity.StatusTie, canonical.Status)
	})

	t.Run("Unknown status is a read error", func(t *testing.T) {
		fake := &fakeBinding{status: 10}
		eth := newTestEthereum(fake, nil, OrdinalCodec)

		_, err := eth.GetGame(context.Background())

		assert.ErrorIs(t, err, apperror.ErrRead)
		assert.ErrorIs(t, err, ErrUnknownStatus)
	})

	t.Run("Unknown cell value is a read error", func(t *testing.T) {
		fake := &fakeBinding{grid: [3][3]uint8{{9}}, status: 1}
		eth := newTestEthereum(fake, nil, OrdinalCodec)

		_, err := eth.GetGame(context.Background())

		assert.ErrorIs(t, err, entity.ErrInvalidMark)
	})

	t.Run("Call failures are read errors", func(t *testing.T) {
		fake := &fakeBinding{callErr: errNodeGone}
		eth := newTestEthereum(fake, nil, OrdinalCodec)

		_, err := eth.GetGame(context.Background())

		assert.ErrorIs(t, err, apperror.ErrRead)
	})
}

func TestEthereum_MakeMove(t *testing.T) {
	ctx := context.Background()

	t.Run("Sends makeMove and waits for the receipt", func(t *testing.T) {
		fake := &fakeBinding{}
		eth := newTestEthereum(fake, minedWith(types.ReceiptStatusSuccessful, nil), OrdinalCodec)

		err := eth.MakeMove(ctx, 2, 1)

		require.NoError(t, err)
		require.Len(t, fake.sent, 1)
		assert.Equal(t, "makeMove", fake.sent[0].method)
		assert.Equal(t, []interface{}{uint8(2), uint8(1)}, fake.sent[0].params)
	})

	t.Run("Revert during estimation is a rejection", func(t *testing.T) {
		fake := &fakeBinding{transactErr: errExecutionReverted}
		eth := newTestEthereum(fake, minedWith(types.ReceiptStatusSuccessful, nil), OrdinalCodec)

		err := eth.MakeMove(ctx, 0, 0)

		assert.ErrorIs(t, err, apperror.ErrCallRejected)
	})

	t.Run("Failed receipt is a rejection", func(t *testing.T) {
		fake := &fakeBinding{}
		eth := newTestEthereum(fake, minedWith(types.ReceiptStatusFailed, nil), OrdinalCodec)

		err := eth.MakeMove(ctx, 0, 0)

		assert.ErrorIs(t, err, apperror.ErrCallRejected)
		assert.ErrorIs(t, err, ErrTxReverted)
	})

	t.Run("Lost node while waiting is a connection error", func(t *testing.T) {
		fake := &fakeBinding{}
		eth := newTestEthereum(fake, minedWith(0, errNodeGone), OrdinalCodec)

		err := eth.MakeMove(ctx, 0, 0)

		assert.ErrorIs(t, err, apperror.ErrConnection)
	})

	t.Run("Expired context surfaces as deadline", func(t *testing.T) {
		fake := &fakeBinding{}
		eth := newTestEthereum(fake, func(ctx context.Context, _ *types.Transaction) (*types.Receipt, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		}, OrdinalCodec)

		expired, cancel := context.WithTimeout(ctx, 0)
		defer cancel()

		err := eth.MakeMove(expired, 0, 0)

		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})

	t.Run("Out of range cells never reach the chain", func(t *testing.T) {
		fake := &fakeBinding{}
		eth := newTestEthereum(fake, nil, OrdinalCodec)

		err := eth.MakeMove(ctx, 0, 5)

		assert.ErrorIs(t, err, entity.ErrInvalidCell)
		assert.Empty(t, fake.sent)
	})
}

func TestEthereum_StartGame(t *testing.T) {
	ctx := context.Background()

	t.Run("Sends startGame with the opponent address", func(t *testing.T) {
		fake := &fakeBinding{}
		eth := newTestEthereum(fake, minedWith(types.ReceiptStatusSuccessful, nil), OrdinalCodec)

		err := eth.StartGame(ctx, opponentAddress)

		require.NoError(t, err)
		require.Len(t, fake.sent, 1)
		assert.Equal(t, "startGame", fake.sent[0].method)
		assert.Equal(t, []interface{}{common.HexToAddress(opponentAddress)}, fake.sent[0].params)
	})

	t.Run("Rejects malformed opponents", func(t *testing.T) {
		fake := &fakeBinding{}
		eth := newTestEthereum(fake, nil, OrdinalCodec)

		err := eth.StartGame(ctx, "player-1")

		assert.ErrorIs(t, err, apperror.ErrInvalidOpponent)
		assert.Contains(t, err.Error(), `invalid opponent identity: "player-1"`)
		assert.Empty(t, fake.sent)
	})

	t.Run("Identity is the signing address", func(t *testing.T) {
		eth := newTestEthereum(&fakeBinding{}, nil, OrdinalCodec)

		assert.Equal(t, common.HexToAddress("0x00000000000000000000000000000000000000aa").Hex(), eth.Identity())
	})

	t.Run("Starting against its own identity is a hot-seat game", func(t *testing.T) {
		fake := &fakeBinding{}
		eth := newTestEthereum(fake, minedWith(types.ReceiptStatusSuccessful, nil), OrdinalCodec)

		err := eth.StartGame(ctx, eth.Identity())

		require.NoError(t, err)
		require.Len(t, fake.sent, 1)
		assert.Equal(t, []interface{}{eth.auth.From}, fake.sent[0].params)
	})
}

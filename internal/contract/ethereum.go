package contract

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/rocketscienceinc/tictactoe-chain/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-chain/internal/entity"
)

// GameABI is the interface of the deployed tic-tac-toe contract.
const GameABI = `[
  {"type":"function","name":"startGame","stateMutability":"nonpayable",
   "inputs":[{"name":"opponent","type":"address"}],"outputs":[]},
  {"type":"function","name":"makeMove","stateMutability":"nonpayable",
   "inputs":[{"name":"row","type":"uint8"},{"name":"col","type":"uint8"}],"outputs":[]},
  {"type":"function","name":"getGame","stateMutability":"view",
   "inputs":[],"outputs":[{"name":"board","type":"uint8[3][3]"},{"name":"state","type":"uint8"}]}
]`

var (
	ErrInvalidAddress    = errors.New("invalid contract address")
	ErrInvalidPrivateKey = errors.New("invalid private key")
	ErrTxReverted        = errors.New("transaction reverted")
)

type EthereumConfig struct {
	RPCURL          string
	ContractAddress string
	PrivateKey      string
	GasLimit        uint64
}

// binding is the part of bind.BoundContract the adapter needs.
type binding interface {
	Transact(opts *bind.TransactOpts, method string, params ...interface{}) (*types.Transaction, error)
	Call(opts *bind.CallOpts, results *[]interface{}, method string, params ...interface{}) error
}

type receiptWaiter func(ctx context.Context, tx *types.Transaction) (*types.Receipt, error)

// Ethereum drives the game contract through a JSON-RPC node, signing with a
// single account.
type Ethereum struct {
	logger *slog.Logger

	contract binding
	wait     receiptWaiter
	auth     *bind.TransactOpts
	codec    StatusCodec
	close    func()
}

// DialEthereum connects to the node and binds the game contract.
func DialEthereum(ctx context.Context, logger *slog.Logger, conf EthereumConfig, codec StatusCodec) (*Ethereum, error) {
	if !common.IsHexAddress(conf.ContractAddress) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAddress, conf.ContractAddress)
	}

	key, err := crypto.HexToECDSA(strings.TrimPrefix(conf.PrivateKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPrivateKey, err)
	}

	parsedABI, err := abi.JSON(strings.NewReader(GameABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse game ABI: %w", err)
	}

	client, err := ethclient.DialContext(ctx, conf.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %w", apperror.ErrConnection, conf.RPCURL, err)
	}

	chainID, err := client.ChainID(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: chain id: %w", apperror.ErrConnection, err)
	}

	auth, err := bind.NewKeyedTransactorWithChainID(key, chainID)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to create transactor: %w", err)
	}
	auth.GasLimit = conf.GasLimit

	address := common.HexToAddress(conf.ContractAddress)
	bound := bind.NewBoundContract(address, parsedABI, client, client, client)

	eth := newEthereum(logger, bound, func(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
		return bind.WaitMined(ctx, client, tx)
	}, auth, codec)
	eth.close = client.Close

	eth.logger.Info("bound game contract", "address", address.Hex(), "chainID", chainID.String(), "from", auth.From.Hex())

	return eth, nil
}

func newEthereum(logger *slog.Logger, contract binding, wait receiptWaiter, auth *bind.TransactOpts, codec StatusCodec) *Ethereum {
	return &Ethereum{
		logger:   logger.With("component", "ethereum", "encoding", codec.Name()),
		contract: contract,
		wait:     wait,
		auth:     auth,
		codec:    codec,
		close:    func() {},
	}
}

func (that *Ethereum) Close() {
	that.close()
}

// Identity is the address transactions are sent from.
func (that *Ethereum) Identity() string {
	return that.auth.From.Hex()
}

func (that *Ethereum) StartGame(ctx context.Context, opponent string) error {
	if !common.IsHexAddress(opponent) {
		return fmt.Errorf("%w: %w: %q", apperror.ErrCallRejected, apperror.ErrInvalidOpponent, opponent)
	}

	return that.transact(ctx, "startGame", common.HexToAddress(opponent))
}

func (that *Ethereum) MakeMove(ctx context.Context, row, col int) error {
	if _, err := entity.Index(row, col); err != nil {
		return fmt.Errorf("%w: %w", apperror.ErrCallRejected, err)
	}

	return that.transact(ctx, "makeMove", uint8(row), uint8(col))
}

func (that *Ethereum) GetGame(ctx context.Context) (Canonical, error) {
	var out []interface{}
	if err := that.contract.Call(&bind.CallOpts{Context: ctx}, &out, "getGame"); err != nil {
		return Canonical{}, fmt.Errorf("%w: getGame: %w", apperror.ErrRead, err)
	}

	if len(out) != 2 {
		return Canonical{}, fmt.Errorf("%w: getGame returned %d values", apperror.ErrRead, len(out))
	}

	grid := *abi.ConvertType(out[0], new([3][3]uint8)).(*[3][3]uint8)
	code := *abi.ConvertType(out[1], new(uint8)).(*uint8)

	var cells [entity.BoardSide][entity.BoardSide]entity.Cell
	for row := range grid {
		for col, value := range grid[row] {
			cells[row][col] = entity.Cell(value)
		}
	}

	board, err := entity.BoardFromGrid(cells)
	if err != nil {
		return Canonical{}, fmt.Errorf("%w: %w", apperror.ErrRead, err)
	}

	status, err := that.codec.Decode(code)
	if err != nil {
		return Canonical{}, fmt.Errorf("%w: %w", apperror.ErrRead, err)
	}

	return Canonical{Board: board, Status: status}, nil
}

// transact sends the call and waits until it is mined.
func (that *Ethereum) transact(ctx context.Context, method string, params ...interface{}) error {
	log := that.logger.With("method", method)

	opts := *that.auth
	opts.Context = ctx

	// gas estimation runs the call, so contract reverts surface here
	tx, err := that.contract.Transact(&opts, method, params...)
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("%s: %w", method, ctx.Err())
		}
		return fmt.Errorf("%w: %s: %w", apperror.ErrCallRejected, method, err)
	}

	log.Info("transaction sent", "tx", tx.Hash().Hex())

	receipt, err := that.wait(ctx, tx)
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("%s: %w", method, ctx.Err())
		}
		return fmt.Errorf("%w: %s: waiting for %s: %w", apperror.ErrConnection, method, tx.Hash().Hex(), err)
	}

	if receipt.Status != types.ReceiptStatusSuccessful {
		return fmt.Errorf("%w: %s: %w in block %s", apperror.ErrCallRejected, method, ErrTxReverted, receipt.BlockNumber)
	}

	log.Info("transaction mined", "tx", tx.Hash().Hex(), "block", receipt.BlockNumber)

	return nil
}

package contract

import (
	"errors"
	"fmt"

	"github.com/rocketscienceinc/tictactoe-chain/internal/entity"
)

const (
	EncodingOrdinal  = "ordinal"
	EncodingWinCodes = "win-codes"
)

var (
	ErrUnknownStatus   = errors.New("unknown status code")
	ErrUnknownEncoding = errors.New("unknown status encoding")
)

// StatusCodec maps the contract's status byte to a game status.
// Deployed contract versions disagree on the numbering.
type StatusCodec struct {
	name   string
	decode map[uint8]entity.Status
}

func newStatusCodec(name string, codes map[entity.Status]uint8) StatusCodec {
	codec := StatusCodec{
		name:   name,
		decode: make(map[uint8]entity.Status, len(codes)),
	}
	for status, code := range codes {
		codec.decode[code] = status
	}
	return codec
}

var (
	// OrdinalCodec numbers statuses 0..4 in declaration order.
	OrdinalCodec = newStatusCodec(EncodingOrdinal, map[entity.Status]uint8{
		entity.StatusNotStarted: 0,
		entity.StatusInProgress: 1,
		entity.StatusTie:        2,
		entity.StatusXWins:      3,
		entity.StatusOWins:      4,
	})

	// WinCodesCodec gives terminal statuses distinct codes: 10 plus the winning cell value.
	WinCodesCodec = newStatusCodec(EncodingWinCodes, map[entity.Status]uint8{
		entity.StatusNotStarted: 0,
		entity.StatusInProgress: 1,
		entity.StatusTie:        10,
		entity.StatusXWins:      10 + uint8(entity.PlayerX),
		entity.StatusOWins:      10 + uint8(entity.PlayerO),
	})
)

func CodecByName(name string) (StatusCodec, error) {
	switch name {
	case EncodingOrdinal, "":
		return OrdinalCodec, nil
	case EncodingWinCodes:
		return WinCodesCodec, nil
	default:
		return StatusCodec{}, fmt.Errorf("%w: %q", ErrUnknownEncoding, name)
	}
}

func (that StatusCodec) Name() string {
	return that.name
}

func (that StatusCodec) Decode(code uint8) (entity.Status, error) {
	status, ok := that.decode[code]
	if !ok {
		return 0, fmt.Errorf("%w: %d (%s)", ErrUnknownStatus, code, that.name)
	}
	return status, nil
}

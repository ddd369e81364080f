package token

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// ErrInvalidAddress marks malformed addresses caught before submission.
var ErrInvalidAddress = errors.New("invalid address")

var erc20ABI abi.ABI

func init() {
	const erc20 = `[{"inputs":[{"internalType":"address","name":"to","type":"address"},{"internalType":"uint256","name":"amount","type":"uint256"}],"name":"transfer","outputs":[{"internalType":"bool","name":"","type":"bool"}],"stateMutability":"nonpayable","type":"function"}]`
	ab, err := abi.JSON(strings.NewReader(erc20))
	if err != nil {
		panic(err)
	}
	erc20ABI = ab
}

// ParseAddress validates a 0x-prefixed hex address.
func ParseAddress(s string) (common.Address, error) {
	s = strings.TrimSpace(s)
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("%w: %q", ErrInvalidAddress, s)
	}
	return common.HexToAddress(s), nil
}

// EncodeTransfer packs transfer(recipient, units) calldata. Pure and
// deterministic; callers must have validated the amount already, the encoder
// only guards the invariant.
func EncodeTransfer(recipient string, units *big.Int) ([]byte, error) {
	to, err := ParseAddress(recipient)
	if err != nil {
		return nil, err
	}
	if units == nil || units.Sign() <= 0 {
		return nil, fmt.Errorf("%w: transfer amount must be positive", ErrInvalidAmount)
	}
	return erc20ABI.Pack("transfer", to, units)
}

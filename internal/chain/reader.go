package chain

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/rs/zerolog"
)

// Selectors of the read-only ERC-20 calls the reader issues.
var (
	selectorDecimals  = common.FromHex("0x313ce567") // decimals()
	selectorBalanceOf = common.FromHex("0x70a08231") // balanceOf(address)
	selectorSymbol    = common.FromHex("0x95d89b41") // symbol()
)

// Reader answers token questions straight from a chain RPC node, independent
// of the wallet provider. Used for the pre-flight balance display on the
// delegated and primary accounts.
type Reader struct {
	ec  *ethclient.Client
	log zerolog.Logger
}

// Dial connects to the chain RPC endpoint.
func Dial(rpcURL string, log zerolog.Logger) (*Reader, error) {
	ec, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dial chain rpc: %w", err)
	}
	return &Reader{ec: ec, log: log}, nil
}

func (r *Reader) Close() {
	r.ec.Close()
}

// callWithRetry wraps eth_call with a short backoff to survive provider rate
// limits (429 / -32005). Attempts stay small so a dead node fails fast.
func (r *Reader) callWithRetry(ctx context.Context, msg ethereum.CallMsg) ([]byte, error) {
	const maxAttempts = 3
	wait := 200 * time.Millisecond
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		out, err := r.ec.CallContract(ctx, msg, nil)
		if err == nil {
			return out, nil
		}
		lastErr = err
		if attempt < maxAttempts {
			if s := err.Error(); strings.Contains(s, "Too Many Requests") || strings.Contains(s, "-32005") {
				wait *= 2
			}
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(wait):
			}
		}
	}
	return nil, lastErr
}

// TokenDecimals reads decimals() from the token contract. Callers may default
// to 6 for the USDC contract when the read fails.
func (r *Reader) TokenDecimals(ctx context.Context, token common.Address) (int, error) {
	res, err := r.callWithRetry(ctx, ethereum.CallMsg{To: &token, Data: selectorDecimals})
	if err != nil {
		return 0, fmt.Errorf("decimals(): %w", err)
	}
	if len(res) == 0 {
		return 0, fmt.Errorf("decimals(): empty return from %s", token.Hex())
	}
	return int(res[len(res)-1]), nil
}

// TokenBalance reads balanceOf(owner) in smallest units.
func (r *Reader) TokenBalance(ctx context.Context, token, owner common.Address) (*big.Int, error) {
	data := append(append([]byte{}, selectorBalanceOf...), common.LeftPadBytes(owner.Bytes(), 32)...)
	res, err := r.callWithRetry(ctx, ethereum.CallMsg{To: &token, Data: data})
	if err != nil {
		return nil, fmt.Errorf("balanceOf(%s): %w", owner.Hex(), err)
	}
	if len(res) == 0 {
		return big.NewInt(0), nil
	}
	return new(big.Int).SetBytes(res), nil
}

// TokenSymbol reads symbol(); handles both the dynamic-string and legacy
// bytes32 encodings.
func (r *Reader) TokenSymbol(ctx context.Context, token common.Address) (string, error) {
	out, err := r.callWithRetry(ctx, ethereum.CallMsg{To: &token, Data: selectorSymbol})
	if err != nil {
		return "", fmt.Errorf("symbol(): %w", err)
	}
	if len(out) >= 64 {
		l := new(big.Int).SetBytes(out[32:64]).Int64()
		if l > 0 && 64+l <= int64(len(out)) {
			return string(out[64 : 64+l]), nil
		}
	}
	return strings.TrimRight(string(out), "\x00"), nil
}

// NativeBalance reads the account's ETH balance in wei, for diagnosing gas
// problems on the delegated account.
func (r *Reader) NativeBalance(ctx context.Context, owner common.Address) (*big.Int, error) {
	bal, err := r.ec.BalanceAt(ctx, owner, nil)
	if err != nil {
		return nil, fmt.Errorf("eth balance of %s: %w", owner.Hex(), err)
	}
	return bal, nil
}

package donate

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/givebase/quickgive/internal/wallet"
)

// ErrOnChainFailure is returned when the wallet reports a terminal FAILED
// status for a batch.
var ErrOnChainFailure = errors.New("transaction failed on-chain")

// PollOutcome is the terminal result of waiting on a batch.
type PollOutcome struct {
	// TxHash is the receipt's transaction hash when the batch confirmed, or
	// the batch id as a stand-in otherwise.
	TxHash string
	// Confirmed reports whether a definitive on-chain confirmation was
	// observed. A timed-out poll leaves it false even though the flow
	// proceeds optimistically.
	Confirmed bool
	TimedOut  bool
	Attempts  int
}

// Poller repeatedly queries a submitted batch until it reaches a terminal
// status or the attempt budget runs out. Polling is strictly sequential:
// query, sleep, retry.
type Poller struct {
	Provider wallet.Provider
	// Interval between attempts; defaults to 2s.
	Interval time.Duration
	// MaxAttempts bounds the loop; defaults to 15 (~30s). The ceiling is the
	// only cancellation mechanism besides ctx.
	MaxAttempts int
	Log         zerolog.Logger
}

// Wait blocks until the batch confirms, fails, or the attempt budget is
// exhausted. Errors from individual status queries are absorbed and counted
// as a normal attempt; only a FAILED status or ctx cancellation is terminal
// before the ceiling.
func (p *Poller) Wait(ctx context.Context, batchID string) (PollOutcome, error) {
	interval := p.Interval
	if interval <= 0 {
		interval = 2 * time.Second
	}
	maxAttempts := p.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 15
	}

	out := PollOutcome{TxHash: batchID}
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		out.Attempts = attempt

		st, err := p.Provider.GetCallsStatus(ctx, batchID)
		if err != nil {
			p.Log.Debug().Err(err).Int("attempt", attempt).Str("batch", batchID).
				Msg("status query failed, counting as a missed attempt")
		} else {
			switch strings.ToUpper(st.Status) {
			case wallet.StatusConfirmed:
				if len(st.Receipts) > 0 && st.Receipts[0].TransactionHash != "" {
					out.TxHash = st.Receipts[0].TransactionHash
				}
				out.Confirmed = true
				p.Log.Info().Str("tx", out.TxHash).Int("attempts", attempt).Msg("batch confirmed")
				return out, nil
			case wallet.StatusFailed:
				return out, ErrOnChainFailure
			default:
				p.Log.Debug().Str("status", st.Status).Int("attempt", attempt).Msg("batch still pending")
			}
		}

		if attempt < maxAttempts {
			select {
			case <-ctx.Done():
				return out, ctx.Err()
			case <-time.After(interval):
			}
		}
	}

	// Deliberate trade-off: stop waiting and let the caller proceed with the
	// batch id as the hash rather than blocking the flow indefinitely.
	out.TimedOut = true
	p.Log.Warn().Str("batch", batchID).Int("attempts", out.Attempts).
		Msg("status polling exhausted, proceeding without confirmation")
	return out, nil
}

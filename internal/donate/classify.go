package donate

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/givebase/quickgive/internal/givebase"
	"github.com/givebase/quickgive/internal/token"
	"github.com/givebase/quickgive/internal/wallet"
)

// FailureKind is one of the fixed user-facing donation failure categories.
type FailureKind string

const (
	FailureUserCancelled       FailureKind = "user_cancelled"
	FailureDailyLimitExceeded  FailureKind = "daily_limit_exceeded"
	FailurePermissionOrBalance FailureKind = "permission_or_balance"
	FailureInsufficientBalance FailureKind = "insufficient_balance"
	FailureOnChain             FailureKind = "on_chain_failure"
	FailureUnknown             FailureKind = "unknown"
)

// Failure is a classified donation error with a message fit for display.
type Failure struct {
	Kind    FailureKind
	Message string
	Err     error
}

func (f *Failure) Error() string { return f.Message }
func (f *Failure) Unwrap() error { return f.Err }

// Heuristics holds the error codes and substrings used to triage wallet
// errors. The upstream vocabulary is not versioned, so the matching rules
// are configuration rather than literals.
type Heuristics struct {
	// RejectedCodes are provider error codes meaning the user declined.
	RejectedCodes []int
	// RejectedTexts are message fragments meaning the user declined.
	RejectedTexts []string
	// ExecutionTexts are fragments of gas-estimation/revert failures.
	ExecutionTexts []string
	// InsufficientTexts are fragments of explicit balance failures.
	InsufficientTexts []string
}

// DefaultHeuristics matches the error vocabulary observed from the wallet
// provider in the wild.
func DefaultHeuristics() Heuristics {
	return Heuristics{
		RejectedCodes:     []int{wallet.CodeUserRejected},
		RejectedTexts:     []string{"user rejected", "action_rejected", "user cancelled"},
		ExecutionTexts:    []string{"execution reverted", "gas"},
		InsufficientTexts: []string{"insufficient"},
	}
}

// SpendContext carries the local accounting the classifier needs to explain
// a rejection: the donor's recorded history, the amount being attempted, and
// the session's delegated address for the message text.
type SpendContext struct {
	History          []givebase.Donation
	AttemptedUnits   *big.Int
	DelegatedAddress string
	Now              time.Time
}

// Classifier turns raw submission/poll errors into exactly one Failure.
type Classifier struct {
	Heuristics Heuristics
	// DailyCapUnits is the wallet permission's per-day spend cap in smallest
	// units. The wallet enforces it on-chain; this local estimate exists to
	// produce a precise message before the wallet's opaque revert does.
	DailyCapUnits *big.Int
}

// NewClassifier builds a classifier for a cap expressed in whole USDC.
func NewClassifier(dailyCapUSDC int64) *Classifier {
	cap := new(big.Int).Mul(big.NewInt(dailyCapUSDC), big.NewInt(1_000_000))
	return &Classifier{Heuristics: DefaultHeuristics(), DailyCapUnits: cap}
}

// Classify inspects err and produces one failure category. The code-based
// cancellation check runs first and never consults the donation history.
func (c *Classifier) Classify(err error, sctx SpendContext) *Failure {
	if err == nil {
		return nil
	}

	var rpcErr *wallet.RPCError
	if errors.As(err, &rpcErr) {
		for _, code := range c.Heuristics.RejectedCodes {
			if rpcErr.Code == code {
				return &Failure{
					Kind:    FailureUserCancelled,
					Message: "Transaction cancelled by user.",
					Err:     err,
				}
			}
		}
	}

	text := strings.ToLower(err.Error())
	if containsAny(text, c.Heuristics.RejectedTexts) {
		return &Failure{
			Kind:    FailureUserCancelled,
			Message: "Transaction cancelled by user.",
			Err:     err,
		}
	}

	if errors.Is(err, ErrOnChainFailure) {
		return &Failure{
			Kind:    FailureOnChain,
			Message: "Transaction failed on-chain.",
			Err:     err,
		}
	}

	if containsAny(text, c.Heuristics.ExecutionTexts) {
		total := TodaysTotalUnits(sctx.History, sctx.Now)
		attempted := sctx.AttemptedUnits
		if attempted == nil {
			attempted = big.NewInt(0)
		}
		newTotal := new(big.Int).Add(total, attempted)
		if c.DailyCapUnits != nil && newTotal.Cmp(c.DailyCapUnits) > 0 {
			return &Failure{
				Kind: FailureDailyLimitExceeded,
				Message: fmt.Sprintf(
					"Daily spend limit reached: you have donated %s USDC today and donating %s USDC more would exceed the %s USDC per-day cap. Wait until tomorrow or donate a smaller amount.",
					token.FormatUSD(total), token.FormatUSD(attempted), token.FromUnits(c.DailyCapUnits, token.USDCDecimals)),
				Err: err,
			}
		}
		return &Failure{
			Kind: FailurePermissionOrBalance,
			Message: fmt.Sprintf(
				"Transaction failed during gas estimation. This usually means: the primary account is out of USDC or ETH, the spend permission expired or was revoked, or the delegated account (%s) needs a small USDC balance for gas estimation.",
				sctx.DelegatedAddress),
			Err: err,
		}
	}

	if containsAny(text, c.Heuristics.InsufficientTexts) {
		return &Failure{
			Kind:    FailureInsufficientBalance,
			Message: "Insufficient balance in the primary account.",
			Err:     err,
		}
	}

	msg := "Donation failed."
	if t := strings.TrimSpace(err.Error()); t != "" {
		msg = "Donation failed: " + t
	}
	return &Failure{Kind: FailureUnknown, Message: msg, Err: err}
}

func containsAny(text string, fragments []string) bool {
	for _, f := range fragments {
		if f != "" && strings.Contains(text, strings.ToLower(f)) {
			return true
		}
	}
	return false
}

// TodaysTotalUnits sums the donations recorded on the same local calendar
// day as now, in smallest units. Records with unparseable amounts are
// skipped; the estimate is best-effort.
func TodaysTotalUnits(history []givebase.Donation, now time.Time) *big.Int {
	total := big.NewInt(0)
	ny, nm, nd := now.Local().Date()
	for _, d := range history {
		y, m, day := d.CreatedAt.Local().Date()
		if y != ny || m != nm || day != nd {
			continue
		}
		units, err := token.ToUnits(d.Amount, token.USDCDecimals)
		if err != nil {
			continue
		}
		total.Add(total, units)
	}
	return total
}

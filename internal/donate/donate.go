package donate

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/givebase/quickgive/internal/givebase"
	"github.com/givebase/quickgive/internal/ledger"
	"github.com/givebase/quickgive/internal/token"
	"github.com/givebase/quickgive/internal/wallet"
)

// Session is the connected account pair: the primary (funding/approving)
// account and the delegated spender empowered by the standing permission.
// Set once per connection, read-only afterward.
type Session struct {
	PrimaryAddress   string
	DelegatedAddress string
}

// Result is a completed donation.
type Result struct {
	TxHash string
	// Confirmed is false when polling timed out and the flow proceeded
	// optimistically with the batch id standing in for the hash.
	Confirmed     bool
	FirstDonation bool
	Message       string
	AmountUnits   *big.Int
	// Recorded reports whether the ledger accepted the post-success record.
	// A confirmed donation with Recorded=false succeeded on-chain but could
	// not be written to the external ledger.
	Recorded bool
}

// Service sequences a donation: encode amount, encode call, submit batch,
// poll, classify failures, emit the success record.
type Service struct {
	Provider     wallet.Provider
	Backend      givebase.Client
	Mirror       ledger.Store // optional local history mirror
	Poller       *Poller
	Classifier   *Classifier
	TokenAddress string
	ChainID      uint64
	Log          zerolog.Logger

	now    func() time.Time
	newRef func() string
}

// NewService wires a donation service with production defaults.
func NewService(provider wallet.Provider, backend givebase.Client, mirror ledger.Store, poller *Poller, classifier *Classifier, tokenAddress string, chainID uint64, log zerolog.Logger) *Service {
	return &Service{
		Provider:     provider,
		Backend:      backend,
		Mirror:       mirror,
		Poller:       poller,
		Classifier:   classifier,
		TokenAddress: tokenAddress,
		ChainID:      chainID,
		Log:          log,
		now:          time.Now,
		newRef:       uuid.NewString,
	}
}

// Connect establishes the wallet session and registers the delegated
// account with the backend.
func (s *Service) Connect(ctx context.Context) (Session, error) {
	if err := s.Provider.Connect(ctx); err != nil {
		return Session{}, fmt.Errorf("wallet connect: %w", err)
	}
	pair, err := s.Provider.RequestAccounts(ctx)
	if err != nil {
		return Session{}, fmt.Errorf("request accounts: %w", err)
	}
	session := Session{PrimaryAddress: pair.Primary, DelegatedAddress: pair.Delegated}

	if err := s.Backend.LinkDelegatedAccount(ctx, session.PrimaryAddress, session.DelegatedAddress); err != nil {
		// The session still works; the registry link is best-effort.
		s.Log.Warn().Err(err).Msg("failed to register delegated account")
	}
	s.Log.Info().Str("primary", session.PrimaryAddress).Str("delegated", session.DelegatedAddress).Msg("wallet connected")
	return session, nil
}

// Donate runs one donation attempt end to end. Local validation failures
// return the token package's sentinel errors; everything after submission is
// classified into a *Failure.
func (s *Service) Donate(ctx context.Context, session Session, campaign givebase.Campaign, amount string) (*Result, error) {
	units, err := token.ToUnits(amount, token.USDCDecimals)
	if err != nil {
		return nil, err
	}

	// History read up front: it decides first-donation messaging and feeds
	// the classifier's local spend estimate.
	history := s.loadHistory(ctx, session.PrimaryAddress)
	isFirst := len(history) == 0

	batchID, err := s.submitTransfer(ctx, session.DelegatedAddress, campaign.RecipientAddress, units)
	if err != nil {
		// Local validation failures surface as sentinels, like a bad amount;
		// only provider errors go through the classifier. Nothing was
		// submitted either way, so no record is written.
		if errors.Is(err, token.ErrInvalidAddress) || errors.Is(err, token.ErrInvalidAmount) {
			return nil, err
		}
		return nil, s.Classifier.Classify(err, s.spendContext(session, history, units))
	}
	s.Log.Info().Str("batch", batchID).Int64("campaign", campaign.ID).Str("amount", amount).Msg("batch submitted")

	outcome, err := s.Poller.Wait(ctx, batchID)
	if err != nil {
		// The atomic batch is already in flight and cannot be rolled back;
		// all that is left is to report what happened.
		return nil, s.Classifier.Classify(err, s.spendContext(session, history, units))
	}

	canonical := token.FromUnits(units, token.USDCDecimals)
	result := &Result{
		TxHash:        outcome.TxHash,
		Confirmed:     outcome.Confirmed,
		FirstDonation: isFirst,
		AmountUnits:   units,
	}
	if isFirst {
		result.Message = fmt.Sprintf("First donation of $%s completed! Future donations will be instant if you enabled auto-spend.", canonical)
	} else {
		result.Message = fmt.Sprintf("Instant donation of $%s completed! No wallet pop-ups needed!", canonical)
	}

	record := givebase.DonationRecord{
		ClientReference:      s.newRef(),
		DonorAddress:         session.PrimaryAddress,
		DelegatedAddress:     session.DelegatedAddress,
		CampaignID:           campaign.ID,
		Amount:               canonical,
		TxHash:               outcome.TxHash,
		UsedDelegatedAccount: !isFirst,
	}
	if err := s.Backend.RecordDonation(ctx, record); err != nil {
		// The donation itself succeeded; losing the record is reported, not
		// fatal.
		s.Log.Error().Err(err).Str("tx", outcome.TxHash).Msg("failed to record donation")
	} else {
		result.Recorded = true
	}

	if s.Mirror != nil {
		mirrored := givebase.Donation{
			CampaignID:           campaign.ID,
			CampaignTitle:        campaign.Title,
			CampaignEmoji:        campaign.Emoji,
			Amount:               canonical,
			TxHash:               outcome.TxHash,
			UsedDelegatedAccount: !isFirst,
			CreatedAt:            s.now(),
		}
		if err := s.Mirror.Append(ctx, session.PrimaryAddress, mirrored); err != nil {
			s.Log.Warn().Err(err).Msg("failed to mirror donation locally")
		}
	}

	return result, nil
}

// FundDelegated tops up the delegated account from the primary account so
// gas estimation has a float to work with. Same pipeline as a donation, but
// submitted from the primary account and never recorded in the ledger.
func (s *Service) FundDelegated(ctx context.Context, session Session, amount string) (*Result, error) {
	units, err := token.ToUnits(amount, token.USDCDecimals)
	if err != nil {
		return nil, err
	}

	batchID, err := s.submitTransfer(ctx, session.PrimaryAddress, session.DelegatedAddress, units)
	if err != nil {
		if errors.Is(err, token.ErrInvalidAddress) || errors.Is(err, token.ErrInvalidAmount) {
			return nil, err
		}
		return nil, s.Classifier.Classify(err, s.spendContext(session, nil, units))
	}
	s.Log.Info().Str("batch", batchID).Str("amount", amount).Msg("funding batch submitted")

	outcome, err := s.Poller.Wait(ctx, batchID)
	if err != nil {
		return nil, s.Classifier.Classify(err, s.spendContext(session, nil, units))
	}

	return &Result{
		TxHash:      outcome.TxHash,
		Confirmed:   outcome.Confirmed,
		AmountUnits: units,
		Message:     fmt.Sprintf("Delegated account funded with $%s.", token.FromUnits(units, token.USDCDecimals)),
	}, nil
}

func (s *Service) submitTransfer(ctx context.Context, from, recipient string, units *big.Int) (string, error) {
	tokenAddr, err := token.ParseAddress(s.TokenAddress)
	if err != nil {
		return "", err
	}
	calldata, err := token.EncodeTransfer(recipient, units)
	if err != nil {
		return "", err
	}
	call := wallet.Call{
		To:    tokenAddr.Hex(),
		Data:  hexutil.Encode(calldata),
		Value: wallet.ZeroValue,
	}
	return s.Provider.SendCalls(ctx, wallet.NewSendCalls(s.ChainID, from, call))
}

// loadHistory prefers the backend; when it is unreachable the local mirror
// keeps the spend estimate and first-donation flag working.
func (s *Service) loadHistory(ctx context.Context, donorAddress string) []givebase.Donation {
	history, err := s.Backend.ListDonations(ctx, donorAddress)
	if err == nil {
		return history
	}
	s.Log.Warn().Err(err).Msg("failed to load donation history from backend")
	if s.Mirror == nil {
		return nil
	}
	mirrored, merr := s.Mirror.ListByDonor(ctx, donorAddress)
	if merr != nil {
		s.Log.Warn().Err(merr).Msg("failed to load donation history from mirror")
		return nil
	}
	return mirrored
}

func (s *Service) spendContext(session Session, history []givebase.Donation, units *big.Int) SpendContext {
	return SpendContext{
		History:          history,
		AttemptedUnits:   units,
		DelegatedAddress: session.DelegatedAddress,
		Now:              s.now(),
	}
}

// Package cli wires the donation tool's commands to the backend, the wallet
// provider, and the local history mirror.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"strings"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/rs/zerolog"

	"github.com/givebase/quickgive/internal/chain"
	"github.com/givebase/quickgive/internal/config"
	"github.com/givebase/quickgive/internal/donate"
	"github.com/givebase/quickgive/internal/givebase"
	"github.com/givebase/quickgive/internal/ledger"
	"github.com/givebase/quickgive/internal/refresh"
	"github.com/givebase/quickgive/internal/token"
	"github.com/givebase/quickgive/internal/wallet"
)

// Environment provides an abstraction around the execution environment.
type Environment struct {
	Stderr io.Writer
	Stdout io.Writer
	Stdin  io.Reader
}

type CampaignsCmd struct{}

func (cmd *CampaignsCmd) Run(env *Environment, backend givebase.Client) error {
	campaigns, err := backend.ListCampaigns(context.Background())
	if err != nil {
		return err
	}
	for _, c := range campaigns {
		fmt.Fprintf(env.Stdout, "%3d  %s %s\n", c.ID, c.Emoji, c.Title)
		if c.Description != "" {
			fmt.Fprintf(env.Stdout, "     %s\n", c.Description)
		}
		fmt.Fprintf(env.Stdout, "     $%s of $%s raised (%.1f%%)\n", c.RaisedAmount, c.GoalAmount, c.ProgressPercent())
	}
	return nil
}

type StatsCmd struct{}

func (cmd *StatsCmd) Run(env *Environment, backend givebase.Client) error {
	stats, err := backend.GetStats(context.Background())
	if err != nil {
		return err
	}
	fmt.Fprintf(env.Stdout, "Total donated:        $%s\n", stats.TotalDonated)
	fmt.Fprintf(env.Stdout, "Total donors:         %d\n", stats.TotalDonors)
	fmt.Fprintf(env.Stdout, "Delegated donations:  %d (%.1f%%)\n", stats.DelegatedDonationCount, stats.DelegatedPercentage)
	return nil
}

type HistoryCmd struct {
	Address string `required:"" help:"Donor address whose history to show."`
	Local   bool   `help:"Read from the local mirror instead of the backend."`
}

func (cmd *HistoryCmd) Run(env *Environment, backend givebase.Client, store ledger.Store) error {
	ctx := context.Background()
	var donations []givebase.Donation
	var err error
	if cmd.Local {
		donations, err = store.ListByDonor(ctx, cmd.Address)
	} else {
		donations, err = backend.ListDonations(ctx, cmd.Address)
	}
	if err != nil {
		return err
	}
	if len(donations) == 0 {
		fmt.Fprintln(env.Stdout, "No donations yet.")
		return nil
	}
	for _, d := range donations {
		mode := "approved"
		if d.UsedDelegatedAccount {
			mode = "instant"
		}
		fmt.Fprintf(env.Stdout, "%s  $%-8s %s %s (%s)\n",
			d.CreatedAt.Local().Format("2006-01-02 15:04"), d.Amount, d.CampaignEmoji, d.CampaignTitle, mode)
	}
	return nil
}

type ConnectCmd struct{}

func (cmd *ConnectCmd) Run(env *Environment, svc *donate.Service) error {
	session, err := svc.Connect(context.Background())
	if err != nil {
		return err
	}
	fmt.Fprintf(env.Stdout, "Primary account:   %s\n", session.PrimaryAddress)
	fmt.Fprintf(env.Stdout, "Delegated account: %s\n", session.DelegatedAddress)
	return nil
}

type DonateCmd struct {
	Campaign int64  `required:"" help:"Campaign id to donate to."`
	Amount   string `required:"" help:"Donation amount in USDC, e.g. 5 or 2.50."`
}

func (cmd *DonateCmd) Run(env *Environment, svc *donate.Service, backend givebase.Client) error {
	ctx := context.Background()

	session, err := svc.Connect(ctx)
	if err != nil {
		return err
	}

	campaigns, err := backend.ListCampaigns(ctx)
	if err != nil {
		return err
	}
	var campaign givebase.Campaign
	found := false
	for _, c := range campaigns {
		if c.ID == cmd.Campaign {
			campaign = c
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("campaign %d not found", cmd.Campaign)
	}

	res, err := svc.Donate(ctx, session, campaign, cmd.Amount)
	if err != nil {
		var f *donate.Failure
		if errors.As(err, &f) {
			fmt.Fprintln(env.Stderr, f.Message)
		}
		return err
	}

	fmt.Fprintln(env.Stdout, res.Message)
	fmt.Fprintf(env.Stdout, "Transaction: %s\n", res.TxHash)
	if !res.Confirmed {
		fmt.Fprintln(env.Stdout, "Confirmation is still pending; check the history later.")
	}
	return nil
}

type FundCmd struct {
	Amount string `default:"1" help:"USDC to move from the primary to the delegated account."`
}

func (cmd *FundCmd) Run(env *Environment, svc *donate.Service) error {
	ctx := context.Background()
	session, err := svc.Connect(ctx)
	if err != nil {
		return err
	}
	res, err := svc.FundDelegated(ctx, session, cmd.Amount)
	if err != nil {
		var f *donate.Failure
		if errors.As(err, &f) {
			fmt.Fprintln(env.Stderr, f.Message)
		}
		return err
	}
	fmt.Fprintln(env.Stdout, res.Message)
	fmt.Fprintf(env.Stdout, "Transaction: %s\n", res.TxHash)
	return nil
}

type BalancesCmd struct {
	Address string `required:"" help:"Account whose balances to read."`
}

func (cmd *BalancesCmd) Run(env *Environment, settings config.Settings, log zerolog.Logger) error {
	ctx := context.Background()

	reader, err := chain.Dial(settings.ChainRPCURL, log)
	if err != nil {
		return err
	}
	defer reader.Close()

	tokenAddr, err := token.ParseAddress(settings.TokenAddress)
	if err != nil {
		return err
	}
	owner, err := token.ParseAddress(cmd.Address)
	if err != nil {
		return err
	}

	decimals, err := reader.TokenDecimals(ctx, tokenAddr)
	if err != nil {
		log.Warn().Err(err).Msg("decimals lookup failed, assuming 6")
		decimals = token.USDCDecimals
	}
	symbol, err := reader.TokenSymbol(ctx, tokenAddr)
	if err != nil || strings.TrimSpace(symbol) == "" {
		symbol = "USDC"
	}

	balance, err := reader.TokenBalance(ctx, tokenAddr, owner)
	if err != nil {
		return err
	}
	fmt.Fprintf(env.Stdout, "%s: %s %s\n", owner.Hex(), token.FromUnits(balance, decimals), symbol)

	native, err := reader.NativeBalance(ctx, owner)
	if err != nil {
		return err
	}
	fmt.Fprintf(env.Stdout, "%s: %s ETH\n", owner.Hex(), token.FromUnits(native, 18))
	return nil
}

type SyncCmd struct {
	Address string `required:"" help:"Donor address whose history to mirror locally."`
}

func (cmd *SyncCmd) Run(env *Environment, backend givebase.Client, store ledger.Store) error {
	ctx := context.Background()
	donations, err := backend.ListDonations(ctx, cmd.Address)
	if err != nil {
		return err
	}
	if err := store.ReplaceAll(ctx, cmd.Address, donations); err != nil {
		return err
	}
	fmt.Fprintf(env.Stdout, "Mirrored %d donations for %s\n", len(donations), cmd.Address)
	return nil
}

type WatchCmd struct{}

func (cmd *WatchCmd) Run(env *Environment, backend givebase.Client, settings config.Settings, log zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	r := &refresh.Refresher{
		Backend:  backend,
		Interval: settings.StatsRefreshInterval,
		Log:      log,
		OnStats: func(s givebase.Stats) {
			fmt.Fprintf(env.Stdout, "$%s donated by %d donors, %d instant donations (%.1f%%)\n",
				s.TotalDonated, s.TotalDonors, s.DelegatedDonationCount, s.DelegatedPercentage)
		},
	}
	r.Run(ctx)
	return nil
}

type CLI struct {
	Campaigns CampaignsCmd `cmd:"" help:"List active campaigns with their progress."`
	Stats     StatsCmd     `cmd:"" help:"Show the aggregate donation stats."`
	History   HistoryCmd   `cmd:"" help:"Show a donor's donation history."`
	Connect   ConnectCmd   `cmd:"" help:"Connect the wallet and register the delegated account."`
	Donate    DonateCmd    `cmd:"" help:"Donate USDC to a campaign."`
	Fund      FundCmd      `cmd:"" help:"Top up the delegated account from the primary account."`
	Balances  BalancesCmd  `cmd:"" help:"Read token and ETH balances from the chain."`
	Sync      SyncCmd      `cmd:"" help:"Mirror a donor's remote history into the local database."`
	Watch     WatchCmd     `cmd:"" help:"Stream stats updates until interrupted."`
}

// Run parses the command line and executes the selected command.
func Run(env Environment) int {
	app := CLI{}

	settings := config.Load()
	log := config.NewLogger(settings.AppEnv)

	backend := givebase.NewClient(settings.BackendURL, log)
	provider := wallet.NewClient(settings.WalletRPCURL, log)

	store, err := ledger.Open(settings.DatabaseURL)
	if err != nil {
		fmt.Fprintln(env.Stderr, "open local mirror:", err)
		return 1
	}
	defer store.Close()

	poller := &donate.Poller{
		Provider:    provider,
		Interval:    settings.PollInterval,
		MaxAttempts: settings.PollAttempts,
		Log:         log,
	}
	svc := donate.NewService(provider, backend, store, poller,
		donate.NewClassifier(settings.DailyCapUSDC), settings.TokenAddress, settings.ChainID, log)

	cntx := kong.Parse(&app,
		kong.Description("Frictionless USDC donations with delegated spending."),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
	)

	cntx.Bind(settings)
	cntx.Bind(log)
	cntx.Bind(svc)
	cntx.BindTo(backend, (*givebase.Client)(nil))
	cntx.BindTo(store, (*ledger.Store)(nil))

	err = cntx.Run(&env)
	cntx.FatalIfErrorf(err)

	return 0
}

// Package refresh keeps the campaign list and aggregate stats current while
// the app is open, mirroring the periodic re-fetch the hosted frontend does.
package refresh

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/givebase/quickgive/internal/givebase"
)

// Refresher periodically re-fetches campaigns and stats and hands them to the
// registered callbacks. A failed fetch is logged and the tick skipped; the
// next tick retries from scratch.
type Refresher struct {
	Backend givebase.Client
	// Interval between refreshes; defaults to 10s.
	Interval time.Duration
	Log      zerolog.Logger

	// OnCampaigns and OnStats receive each successful fetch. Nil callbacks
	// skip the corresponding fetch entirely.
	OnCampaigns func([]givebase.Campaign)
	OnStats     func(givebase.Stats)
}

// Run refreshes once immediately, then on every tick until ctx is done.
func (r *Refresher) Run(ctx context.Context) {
	interval := r.Interval
	if interval <= 0 {
		interval = 10 * time.Second
	}

	r.refreshOnce(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.refreshOnce(ctx)
		}
	}
}

func (r *Refresher) refreshOnce(ctx context.Context) {
	if r.OnCampaigns != nil {
		campaigns, err := r.Backend.ListCampaigns(ctx)
		if err != nil {
			r.Log.Warn().Err(err).Msg("campaign refresh failed")
		} else {
			r.OnCampaigns(campaigns)
		}
	}
	if r.OnStats != nil {
		stats, err := r.Backend.GetStats(ctx)
		if err != nil {
			r.Log.Warn().Err(err).Msg("stats refresh failed")
		} else {
			r.OnStats(stats)
		}
	}
}

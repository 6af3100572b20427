package service

import (
	"context"
	"time"

	"splatchain-ledger/internal/core/ports"

	"github.com/rs/zerolog"
)

// SyncController reconciles the ledger with durable storage on a schedule and
// whenever a trigger arrives (SIGHUP, admin endpoint). Passes never overlap:
// each one runs to completion before the next trigger is read.
type SyncController struct {
	ledger   ports.LedgerService
	interval time.Duration
	triggers chan chan result
	log      zerolog.Logger
}

type result struct {
	res *ports.ReloadResult
	err error
}

// NewSyncController creates a controller. An interval of zero disables the
// schedule; triggers still work.
func NewSyncController(ledger ports.LedgerService, interval time.Duration, log zerolog.Logger) *SyncController {
	return &SyncController{
		ledger:   ledger,
		interval: interval,
		triggers: make(chan chan result),
		log:      log.With().Str("component", "sync").Logger(),
	}
}

// Trigger requests a reconciliation and waits for its outcome. It fails with
// ctx's error if the controller is not running or ctx ends first.
func (c *SyncController) Trigger(ctx context.Context) (*ports.ReloadResult, error) {
	reply := make(chan result, 1)
	select {
	case c.triggers <- reply:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case r := <-reply:
		return r.res, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Run serves the schedule and triggers until ctx is cancelled. signals, when
// non-nil, is an additional fire-and-forget trigger source.
func (c *SyncController) Run(ctx context.Context, signals <-chan struct{}) {
	var tick <-chan time.Time
	if c.interval > 0 {
		ticker := time.NewTicker(c.interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	c.log.Info().Dur("interval", c.interval).Msg("sync controller started")

	for {
		select {
		case <-ctx.Done():
			c.log.Info().Msg("sync controller stopped")
			return
		case <-tick:
			c.reconcile(ctx, "schedule")
		case <-signals:
			c.reconcile(ctx, "signal")
		case reply := <-c.triggers:
			res, err := c.reconcile(ctx, "request")
			reply <- result{res: res, err: err}
		}
	}
}

func (c *SyncController) reconcile(ctx context.Context, source string) (*ports.ReloadResult, error) {
	res, err := c.ledger.Reload(ctx)
	if err != nil {
		c.log.Error().Err(err).Str("source", source).Msg("reconciliation failed, keeping current wallets")
		return nil, err
	}
	c.log.Debug().Str("source", source).Int("wallets", res.Wallets).Msg("reconciliation complete")
	return res, nil
}

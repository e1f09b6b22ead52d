package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/aristath/poefixer/internal/maintenance"
	"github.com/aristath/poefixer/internal/modules/currency"
	"github.com/aristath/poefixer/internal/modules/ingest"
	"github.com/aristath/poefixer/internal/server"
	"github.com/aristath/poefixer/internal/stashapi"
)

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

// CurrencyCmd runs the currency post-processor over stored items.
type CurrencyCmd struct {
	StartTime  *int64 `help:"Unix timestamp to start processing from (overrides the resume point)."`
	Continuous bool   `help:"Keep re-processing as new data arrives."`
	Limit      int    `help:"Stop each pass after this many rows (0 = unlimited)."`
	BlockSize  int    `help:"Rows per transaction." default:"1000"`
	Recent     int64  `help:"Skip recomputing summaries updated within this many seconds."`
}

// Run executes the currency command.
func (cmd *CurrencyCmd) Run(globals *Globals) error {
	e, err := globals.setup()
	if err != nil {
		return err
	}
	defer e.close()

	ctx, cancel := signalContext()
	defer cancel()

	processor := currency.NewProcessor(e.db, currency.ProcessorConfig{
		StartTime:  cmd.StartTime,
		Continuous: cmd.Continuous,
		Limit:      cmd.Limit,
		BlockSize:  cmd.BlockSize,
		Recent:     cmd.Recent,
	}, e.log)

	if err := processor.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// IngestCmd pulls the public stash feed into the database until interrupted.
type IngestCmd struct {
	FeedURL string  `help:"Override the feed root URL."`
	Rate    float64 `help:"Minimum seconds between feed requests (overrides POEFIXER_FEED_RATE)."`
}

// Run executes the ingest command.
func (cmd *IngestCmd) Run(globals *Globals) error {
	e, err := globals.setup()
	if err != nil {
		return err
	}
	defer e.close()

	ctx, cancel := signalContext()
	defer cancel()

	feedURL := e.cfg.FeedURL
	if cmd.FeedURL != "" {
		feedURL = cmd.FeedURL
	}
	rate := e.cfg.FeedRate
	if cmd.Rate > 0 {
		rate = cmd.Rate
	}

	client := stashapi.NewClient(feedURL, rate, e.log)
	cursors := stashapi.NewCursorStore(e.cfg.CursorPath(), e.log)
	service := ingest.NewService(e.db, client, cursors, e.log)

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// ServeCmd serves the economy API and runs the maintenance schedule.
type ServeCmd struct {
	Port int `help:"HTTP port (overrides POEFIXER_PORT)."`
}

// Run executes the serve command.
func (cmd *ServeCmd) Run(globals *Globals) error {
	e, err := globals.setup()
	if err != nil {
		return err
	}
	defer e.close()

	ctx, cancel := signalContext()
	defer cancel()

	port := e.cfg.Port
	if cmd.Port != 0 {
		port = cmd.Port
	}

	sales := currency.NewSaleRepository(e.db, e.log)
	summaries := currency.NewSummaryRepository(e.db, e.log)
	updater := currency.NewSummaryUpdater(sales, summaries, 0, e.log)

	scheduler := maintenance.NewScheduler(e.log)
	if err := scheduler.AddJob("@hourly", maintenance.NewWALCheckpointJob(e.db, e.log)); err != nil {
		return err
	}
	if err := scheduler.AddJob("@daily", maintenance.NewSummaryRefreshJob(summaries, updater, e.log)); err != nil {
		return err
	}
	scheduler.Start()
	defer scheduler.Stop()

	srv := server.New(server.Config{
		Log:  e.log,
		DB:   e.db,
		Port: port,
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
	}

	return nil
}

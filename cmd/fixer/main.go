// Package main is the entry point for poefixer: an ingester and
// post-processor for the public stash tab feed. It stores the raw stash and
// item stream, derives sales from price notes, and maintains the weighted
// currency exchange summaries the valuation API serves.
package main

import (
	"fmt"
	"os"
	"runtime/pprof"

	"github.com/alecthomas/kong"
	"github.com/rs/zerolog"

	"github.com/aristath/poefixer/internal/config"
	"github.com/aristath/poefixer/internal/database"
	"github.com/aristath/poefixer/pkg/logger"
)

// Globals are the flags shared by every subcommand.
type Globals struct {
	Database string `help:"Path of the SQLite database file." short:"d" aliases:"database-dsn"`
	Verbose  bool   `help:"Info-level logging." short:"v"`
	Debug    bool   `help:"Debug-level logging, including statement echo."`
	Trace    string `help:"Write a CPU profile to this file." type:"path"`
}

var cli struct {
	Globals

	Currency CurrencyCmd `cmd:"" help:"Process new sale data into currency summaries."`
	Ingest   IngestCmd   `cmd:"" help:"Pull the public stash feed into the database."`
	Serve    ServeCmd    `cmd:"" help:"Serve the economy API over HTTP."`
}

// env is the shared runtime every command builds before doing work.
type env struct {
	cfg *config.Config
	db  *database.DB
	log zerolog.Logger

	stopProfile func()
}

func (g *Globals) logLevel(fallback string) string {
	switch {
	case g.Debug:
		return "debug"
	case g.Verbose:
		return "info"
	default:
		return fallback
	}
}

// setup loads configuration, opens the database, applies migrations and
// starts the CPU profile when requested.
func (g *Globals) setup() (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if g.Database != "" {
		cfg.DatabasePath = g.Database
	}

	log := logger.New(logger.Config{
		Level:  g.logLevel(cfg.LogLevel),
		Pretty: true,
	})

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	db, err := database.New(database.Config{
		Path: cfg.DatabasePath,
		Name: "poefixer",
		Echo: g.Debug,
		Log:  log,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	e := &env{cfg: cfg, db: db, log: log, stopProfile: func() {}}

	if g.Trace != "" {
		f, err := os.Create(g.Trace)
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to create profile file: %w", err)
		}
		if err := pprof.StartCPUProfile(f); err != nil {
			_ = f.Close()
			_ = db.Close()
			return nil, fmt.Errorf("failed to start CPU profile: %w", err)
		}
		e.stopProfile = func() {
			pprof.StopCPUProfile()
			_ = f.Close()
		}
	}

	return e, nil
}

func (e *env) close() {
	e.stopProfile()
	if err := e.db.Close(); err != nil {
		e.log.Error().Err(err).Msg("Failed to close database")
	}
}

func main() {
	ctx := kong.Parse(&cli,
		kong.Name("fixer"),
		kong.Description("Ingest the public stash feed and derive the currency economy from it."),
		kong.UsageOnError(),
		kong.Bind(&cli.Globals),
	)

	err := ctx.Run()
	ctx.FatalIfErrorf(err)
}

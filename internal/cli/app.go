package cli

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"backtest-core/internal/backtest"
	"backtest-core/internal/instrument"
	"backtest-core/internal/market"
	"backtest-core/internal/monitor"
	"backtest-core/internal/report"
	"backtest-core/pkg/config"
	"backtest-core/pkg/db"
)

const candleCacheTTL = 30 * time.Minute

// app is the set of long-lived collaborators shared by the commands.
type app struct {
	sim     *backtest.Simulator
	db      *db.Database
	metrics *monitor.Metrics
	source  *market.CachedSource
	batched *report.Batched
}

func newSource(cfg *config.Config) (market.Source, error) {
	switch cfg.MarketSource {
	case "", "generated":
		return &market.GeneratedSource{StartPrice: 100}, nil
	case "binance":
		return market.NewBinanceSource(cfg.BinanceBaseURL, cfg.BinanceRPS), nil
	default:
		return nil, fmt.Errorf("unknown MARKET_SOURCE %q", cfg.MarketSource)
	}
}

// buildApp opens storage when results are to be kept and assembles the
// simulator. A server keeps the database open for the history endpoints and
// appends to the CSV report in batches.
func buildApp(cfg *config.Config, server bool) (*app, error) {
	src, err := newSource(cfg)
	if err != nil {
		return nil, err
	}
	cached := market.NewCachedSource(src, candleCacheTTL)

	registry, err := instrument.LoadRegistry(cfg.InstrumentsFile)
	if err != nil {
		return nil, fmt.Errorf("load instruments: %w", err)
	}

	interval, err := market.ParseInterval(cfg.CandleInterval)
	if err != nil {
		return nil, err
	}

	a := &app{metrics: monitor.NewMetrics(), source: cached}
	var exporters report.Multi
	if server || cfg.PersistResults {
		database, err := db.Open(cfg.DBPath)
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		a.db = database
		exporters = append(exporters, report.NewSQLiteExporter(database))
	}
	if cfg.ReportCSVPath != "" {
		csv := report.NewCSVExporter(cfg.ReportCSVPath)
		if server {
			a.batched = report.NewBatched(csv, 200, 10*time.Second)
			exporters = append(exporters, a.batched)
		} else {
			exporters = append(exporters, csv)
		}
	}

	opts := []backtest.Option{backtest.WithMetrics(a.metrics), backtest.WithLogger(log.Logger)}
	if len(exporters) > 0 {
		opts = append(opts, backtest.WithExporter(exporters))
	}
	a.sim, err = backtest.NewSimulator(backtest.Config{
		Workers:      cfg.Workers,
		CandleWindow: cfg.CandleWindow,
		Interval:     interval,
	}, cached, registry, opts...)
	if err != nil {
		a.Close()
		return nil, err
	}

	log.Info().
		Str("source", cfg.MarketSource).
		Str("interval", string(interval)).
		Int("workers", cfg.Workers).
		Strs("tickers", registry.Tickers()).
		Bool("storage", a.db != nil).
		Msg("🔧 simulator ready")
	return a, nil
}

func (a *app) Close() {
	if a.batched != nil {
		a.batched.Close()
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			log.Warn().Err(err).Msg("close database")
		}
	}
}

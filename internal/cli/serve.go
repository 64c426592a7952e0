package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"backtest-core/internal/api"
	"backtest-core/pkg/config"
)

func newServeCmd(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the backtest HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			if port, _ := cmd.Flags().GetString("port"); port != "" {
				cfg.Port = port
			}
			return runServe(cfg)
		},
	}
	cmd.Flags().String("port", "", "Listen port (default PORT)")
	return cmd
}

func runServe(cfg *config.Config) error {
	a, err := buildApp(cfg, true)
	if err != nil {
		return err
	}
	defer a.Close()

	if cfg.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	server := api.NewServer(a.sim, a.db, a.metrics, api.SystemMeta{
		Version:      version,
		MarketSource: cfg.MarketSource,
		Interval:     cfg.CandleInterval,
		Workers:      cfg.Workers,
	}, api.Limits{
		MaxSpan:  time.Duration(cfg.MaxSpanDays) * 24 * time.Hour,
		MaxTicks: int64(cfg.MaxTicks),
	})
	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           server.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go pruneCandles(ctx, a)

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", httpServer.Addr).Msg("🌐 API server listening")
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

// pruneCandles evicts stale cached candle series until ctx ends.
func pruneCandles(ctx context.Context, a *app) {
	ticker := time.NewTicker(candleCacheTTL / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := a.source.Prune(); n > 0 {
				log.Debug().Int("removed", n).Int("remaining", a.source.Stats().TotalItems).Msg("candle cache pruned")
			}
		}
	}
}

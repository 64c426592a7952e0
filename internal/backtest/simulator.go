package backtest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"backtest-core/internal/instrument"
	"backtest-core/internal/market"
	"backtest-core/internal/monitor"
	"backtest-core/internal/order"
	"backtest-core/internal/schedule"
	"backtest-core/internal/strategy"
	"backtest-core/pkg/fixed"
)

// ErrInvalidArgument marks pre-flight validation failures.
var ErrInvalidArgument = strategy.ErrInvalidArgument

// Exporter receives finished results when a request asks for persistence.
type Exporter interface {
	Export(ctx context.Context, results []Result) error
}

// Config tunes a Simulator.
type Config struct {
	Workers      int             // parallel runs, must be > 1
	CandleWindow int             // closed candles visible to a strategy
	Interval     market.Interval // candle resolution
}

const (
	DefaultCandleWindow = 200
	DefaultInterval     = market.Interval1m
)

// Simulator runs strategy configurations against historical candles, one
// virtual broker per configuration.
type Simulator struct {
	cfg      Config
	source   market.Source
	resolver instrument.Resolver
	exporter Exporter
	metrics  *monitor.Metrics
	logger   zerolog.Logger
	now      func() time.Time
}

type Option func(*Simulator)

func WithExporter(e Exporter) Option { return func(s *Simulator) { s.exporter = e } }

func WithMetrics(m *monitor.Metrics) Option { return func(s *Simulator) { s.metrics = m } }

func WithLogger(l zerolog.Logger) Option { return func(s *Simulator) { s.logger = l } }

// WithClock replaces the wall clock used for the "not in the future" check.
func WithClock(now func() time.Time) Option { return func(s *Simulator) { s.now = now } }

func NewSimulator(cfg Config, source market.Source, resolver instrument.Resolver, opts ...Option) (*Simulator, error) {
	if cfg.Workers <= 1 {
		return nil, fmt.Errorf("%w: workers must be > 1, got %d", ErrInvalidArgument, cfg.Workers)
	}
	if source == nil || resolver == nil {
		return nil, fmt.Errorf("%w: candle source and instrument resolver are required", ErrInvalidArgument)
	}
	if cfg.CandleWindow <= 0 {
		cfg.CandleWindow = DefaultCandleWindow
	}
	if cfg.Interval == "" {
		cfg.Interval = DefaultInterval
	}
	if _, err := market.ParseInterval(string(cfg.Interval)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}

	s := &Simulator{
		cfg:      cfg,
		source:   source,
		resolver: resolver,
		metrics:  monitor.NewMetrics(),
		logger:   log.Logger,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Metrics exposes the simulator counters.
func (s *Simulator) Metrics() *monitor.Metrics { return s.metrics }

// Request describes one batch: one instrument, many strategy configurations.
type Request struct {
	Ticker           string
	InitialBalance   fixed.Price
	BalanceIncrement *fixed.Price       // credited whenever Schedule matches
	Schedule         schedule.Predicate // nil means never
	Strategies       []strategy.Config
	From, To         time.Time
	Persist          bool
}

func (s *Simulator) validate(req Request) error {
	if strings.TrimSpace(req.Ticker) == "" {
		return fmt.Errorf("%w: empty ticker", ErrInvalidArgument)
	}
	now := s.now()
	if req.From.After(now) {
		return fmt.Errorf("%w: from %s is after now %s", ErrInvalidArgument, req.From.Format(time.RFC3339), now.Format(time.RFC3339))
	}
	if req.To.After(now) {
		return fmt.Errorf("%w: to %s is after now %s", ErrInvalidArgument, req.To.Format(time.RFC3339), now.Format(time.RFC3339))
	}
	if !req.From.Before(req.To) {
		return fmt.Errorf("%w: from %s must be before to %s", ErrInvalidArgument, req.From.Format(time.RFC3339), req.To.Format(time.RFC3339))
	}
	if req.InitialBalance.IsNegative() {
		return fmt.Errorf("%w: negative initial balance %v", ErrInvalidArgument, req.InitialBalance)
	}
	if req.BalanceIncrement != nil && req.BalanceIncrement.IsNegative() {
		return fmt.Errorf("%w: negative balance increment %v", ErrInvalidArgument, *req.BalanceIncrement)
	}
	for i, cfg := range req.Strategies {
		if cfg == nil {
			return fmt.Errorf("%w: strategy #%d is nil", ErrInvalidArgument, i)
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("strategy #%d: %w", i, err)
		}
		if err := strategy.CheckInstruments(cfg, []string{req.Ticker}); err != nil {
			return fmt.Errorf("strategy #%d: %w", i, err)
		}
	}
	return nil
}

// Simulate runs every configuration of req and returns one Result per
// configuration, in the same order. Only pre-flight validation fails the
// call; per-run problems end up in Result.Error.
func (s *Simulator) Simulate(ctx context.Context, req Request) ([]Result, error) {
	if err := s.validate(req); err != nil {
		return nil, err
	}
	batchID := uuid.NewString()
	logger := s.logger.With().Str("batch_id", batchID).Str("ticker", req.Ticker).Logger()
	s.metrics.IncrementBatches()

	step := s.cfg.Interval.Duration()
	warmup := time.Duration(s.cfg.CandleWindow) * step
	candles, loadErr := s.source.Candles(ctx, req.Ticker, s.cfg.Interval, req.From.Add(-warmup), req.To)
	if loadErr != nil {
		logger.Warn().Err(loadErr).Msg("candle load failed")
		loadErr = fmt.Errorf("load candles: %w", loadErr)
	}

	logger.Info().
		Int("strategies", len(req.Strategies)).
		Int("candles", len(candles)).
		Int("workers", s.cfg.Workers).
		Msg("🚀 backtest batch started")

	results := make([]Result, len(req.Strategies))
	var g errgroup.Group
	g.SetLimit(s.cfg.Workers)
	for i, cfg := range req.Strategies {
		g.Go(func() error {
			results[i] = s.run(ctx, batchID, req, cfg, candles, loadErr)
			return nil
		})
	}
	_ = g.Wait()

	failed := 0
	for _, r := range results {
		if r.Failed() {
			failed++
		}
	}
	logger.Info().Int("runs", len(results)).Int("failed", failed).Msg("✅ backtest batch finished")

	if req.Persist && s.exporter != nil {
		timer := monitor.NewTimer(s.metrics.ExportLatency)
		if err := s.exporter.Export(ctx, results); err != nil {
			s.metrics.IncrementExportFailures()
			logger.Error().Err(err).Msg("❌ result export failed")
		}
		timer.Stop()
	}
	return results, nil
}

type runStats struct {
	ticks     int
	decisions int
}

func (s *Simulator) run(ctx context.Context, batchID string, req Request, cfg strategy.Config, candles []market.Candle, loadErr error) (res Result) {
	started := time.Now()
	res = Result{
		ID:             uuid.NewString(),
		BatchID:        batchID,
		Strategy:       cfg.Name(),
		Spec:           strategy.SpecOf(cfg),
		Ticker:         req.Ticker,
		From:           req.From,
		To:             req.To,
		InitialBalance: req.InitialBalance,
	}
	logger := s.logger.With().Str("run_id", res.ID).Str("strategy", res.Strategy).Str("ticker", req.Ticker).Logger()
	s.metrics.IncrementRunsStarted()

	var stats runStats
	defer func() {
		if r := recover(); r != nil {
			res = res.failed(fmt.Errorf("run panicked: %v", r))
		}
		res.Elapsed = time.Since(started)
		s.metrics.RecordRun(res.Elapsed, stats.ticks, stats.decisions, len(res.Operations), res.Failed())
		if res.Failed() {
			logger.Warn().Str("err", res.Error).Msg("run failed")
		} else {
			logger.Debug().
				Str("absolute_profit", res.AbsoluteProfit.String()).
				Str("relative_year_profit", res.RelativeYearProfit.String()).
				Int("operations", len(res.Operations)).
				Msg("run finished")
		}
	}()

	inst, err := s.resolver.Resolve(ctx, req.Ticker)
	if err != nil {
		return res.failed(fmt.Errorf("resolve %s: %w", req.Ticker, err))
	}
	res.Currency = inst.Currency
	if loadErr != nil {
		return res.failed(loadErr)
	}

	broker, err := order.NewVirtualBroker(order.VirtualConfig{
		Ticker:         inst.Ticker,
		Currency:       inst.Currency,
		LotSize:        inst.LotSize,
		Commission:     inst.Commission,
		InitialBalance: req.InitialBalance,
		From:           req.From,
		To:             req.To,
	})
	if err != nil {
		return res.failed(err)
	}

	visible, err := s.loop(broker, req, cfg, candles, &stats)
	if err != nil {
		return res.failed(err)
	}
	res.Candles = inInterval(candles, req.From, req.To, s.cfg.Interval)
	res.reduce(broker, market.LatestClose(visible))
	return res
}

// loop walks the virtual clock to the end of the interval and returns the
// candles visible at the last tick.
func (s *Simulator) loop(broker *order.VirtualBroker, req Request, cfg strategy.Config, candles []market.Candle, stats *runStats) ([]market.Candle, error) {
	increment := fixed.Zero
	if req.BalanceIncrement != nil {
		increment = *req.BalanceIncrement
	}
	sched := req.Schedule
	if sched == nil {
		sched = schedule.Never
	}

	var (
		cache   strategy.Cache
		next    int
		visible []market.Candle
		dirty   = true
	)
	for {
		if err := broker.Advance(); errors.Is(err, order.ErrClockExhausted) {
			return visible, nil
		} else if err != nil {
			return nil, err
		}
		stats.ticks++
		now := broker.Now()

		if broker.ApplyScheduledIncrement(sched, increment) {
			dirty = true
		}
		seen := next
		for next < len(candles) && candles[next].ClosedBy(now, s.cfg.Interval) {
			next++
		}
		if next != seen {
			visible = candles[max(0, next-s.cfg.CandleWindow):next]
			dirty = true
		}
		if !dirty || len(visible) == 0 {
			continue
		}

		snap := strategy.Snapshot{
			Time:       now,
			Price:      market.LatestClose(visible),
			Candles:    visible,
			Position:   broker.Position(),
			Balance:    broker.Cash(),
			Commission: broker.Commission(),
			LotSize:    broker.LotSize(),
			Pending:    broker.Pending(),
		}
		decision, err := strategy.Decide(cfg, snap, cache)
		if err != nil {
			return nil, fmt.Errorf("decide at %s: %w", now.Format(time.RFC3339), err)
		}
		stats.decisions++
		cache = decision.Cache

		if err := apply(broker, decision, snap.Price); err != nil {
			return nil, fmt.Errorf("apply %v at %s: %w", decision, now.Format(time.RFC3339), err)
		}
		dirty = decision.Action != strategy.ActionWait
	}
}

// apply executes a decision against the broker. WAIT is a no-op.
func apply(broker *order.VirtualBroker, d strategy.Decision, price fixed.Price) error {
	var err error
	switch d.Action {
	case strategy.ActionBuy:
		_, err = broker.Buy(d.Lots, price)
	case strategy.ActionSell:
		_, err = broker.Sell(d.Lots, price)
	}
	return err
}

// inInterval returns the candles that open at or after from and close by to.
func inInterval(candles []market.Candle, from, to time.Time, interval market.Interval) []market.Candle {
	first, last := len(candles), len(candles)
	for i, c := range candles {
		if !c.Time.Before(from) {
			first = i
			break
		}
	}
	for last > first && !candles[last-1].ClosedBy(to, interval) {
		last--
	}
	return candles[first:last]
}

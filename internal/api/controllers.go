package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"backtest-core/internal/backtest"
	"backtest-core/internal/schedule"
	"backtest-core/internal/strategy"
	"backtest-core/pkg/db"
	"backtest-core/pkg/fixed"

	"github.com/gin-gonic/gin"
)

func respondError(c *gin.Context, status int, code, msg string) {
	c.JSON(status, gin.H{
		"code":  code,
		"error": msg,
	})
}

type backtestRequest struct {
	Ticker           string          `json:"ticker"`
	From             time.Time       `json:"from"`
	To               time.Time       `json:"to"`
	InitialBalance   fixed.Price     `json:"initial_balance"`
	BalanceIncrement *fixed.Price    `json:"balance_increment"`
	Cron             string          `json:"cron"`
	Persist          bool            `json:"persist"`
	IncludeCandles   bool            `json:"include_candles"`
	Strategies       []strategy.Spec `json:"strategies"`
}

type backtestResponse struct {
	Results []backtest.Result `json:"results"`
	Summary backtest.Summary  `json:"summary"`
}

func (s *Server) runBacktest(c *gin.Context) {
	var req backtestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}
	configs, err := strategy.Configs(req.Strategies)
	if err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_STRATEGY", err.Error())
		return
	}
	if err := s.checkLimits(req.From, req.To, len(configs)); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_ARGUMENT", err.Error())
		return
	}
	sched, err := schedule.Parse(req.Cron)
	if err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_SCHEDULE", err.Error())
		return
	}

	results, err := s.Sim.Simulate(c.Request.Context(), backtest.Request{
		Ticker:           req.Ticker,
		InitialBalance:   req.InitialBalance,
		BalanceIncrement: req.BalanceIncrement,
		Schedule:         sched,
		Strategies:       configs,
		From:             req.From,
		To:               req.To,
		Persist:          req.Persist,
	})
	if errors.Is(err, backtest.ErrInvalidArgument) {
		respondError(c, http.StatusBadRequest, "INVALID_ARGUMENT", err.Error())
		return
	}
	if err != nil {
		respondError(c, http.StatusInternalServerError, "SIMULATION_FAILED", err.Error())
		return
	}
	if !req.IncludeCandles {
		for i := range results {
			results[i].Candles = nil
		}
	}
	c.JSON(http.StatusOK, backtestResponse{Results: results, Summary: backtest.Summarize(results)})
}

// checkLimits rejects requests whose tick count would tie up the server.
// Ordering and future bounds are left to the simulator.
func (s *Server) checkLimits(from, to time.Time, strategies int) error {
	span := to.Sub(from)
	if span <= 0 {
		return nil
	}
	if span > s.Limits.MaxSpan {
		return fmt.Errorf("interval %s exceeds the maximum of %s", span, s.Limits.MaxSpan)
	}
	ticks := int64(span/time.Minute) * int64(max(strategies, 1))
	if ticks > s.Limits.MaxTicks {
		return fmt.Errorf("%d strategies over %s need %d ticks, the maximum is %d", strategies, span, ticks, s.Limits.MaxTicks)
	}
	return nil
}

type runView struct {
	ID                        string          `json:"id"`
	BatchID                   string          `json:"batch_id"`
	Strategy                  string          `json:"strategy"`
	Spec                      json.RawMessage `json:"spec,omitempty"`
	Ticker                    string          `json:"ticker"`
	Currency                  string          `json:"currency,omitempty"`
	From                      time.Time       `json:"from"`
	To                        time.Time       `json:"to"`
	InitialBalance            fixed.Price     `json:"initial_balance"`
	TotalInvestment           fixed.Price     `json:"total_investment"`
	FinalBalance              fixed.Price     `json:"final_balance"`
	FinalTotalBalance         fixed.Price     `json:"final_total_balance"`
	WeightedAverageInvestment fixed.Price     `json:"weighted_average_investment"`
	AbsoluteProfit            fixed.Price     `json:"absolute_profit"`
	RelativeProfit            fixed.Price     `json:"relative_profit"`
	RelativeYearProfit        fixed.Price     `json:"relative_year_profit"`
	OperationsCount           int             `json:"operations_count"`
	ElapsedMs                 int64           `json:"elapsed_ms"`
	Error                     string          `json:"error,omitempty"`
	CreatedAt                 time.Time       `json:"created_at"`
}

func newRunView(r db.Run) runView {
	v := runView{
		ID:                        r.ID,
		BatchID:                   r.BatchID,
		Strategy:                  r.Strategy,
		Ticker:                    r.Ticker,
		Currency:                  r.Currency,
		From:                      r.From,
		To:                        r.To,
		InitialBalance:            r.InitialBalance,
		TotalInvestment:           r.TotalInvestment,
		FinalBalance:              r.FinalBalance,
		FinalTotalBalance:         r.FinalTotalBalance,
		WeightedAverageInvestment: r.WeightedAverageInvestment,
		AbsoluteProfit:            r.AbsoluteProfit,
		RelativeProfit:            r.RelativeProfit,
		RelativeYearProfit:        r.RelativeYearProfit,
		OperationsCount:           r.OperationsCount,
		ElapsedMs:                 r.Elapsed.Milliseconds(),
		Error:                     r.Error,
		CreatedAt:                 r.CreatedAt,
	}
	if json.Valid([]byte(r.Spec)) {
		v.Spec = json.RawMessage(r.Spec)
	}
	return v
}

type operationView struct {
	ID         string      `json:"id"`
	Time       time.Time   `json:"time"`
	Side       string      `json:"side"`
	Price      fixed.Price `json:"price"`
	Lots       int64       `json:"lots"`
	Quantity   int64       `json:"quantity"`
	Commission fixed.Price `json:"commission"`
	Total      fixed.Price `json:"total"`
}

type listQuery struct {
	Ticker  string `form:"ticker"`
	BatchID string `form:"batch_id"`
	Limit   int    `form:"limit"`
}

func (s *Server) listBacktests(c *gin.Context) {
	if s.DB == nil {
		respondError(c, http.StatusServiceUnavailable, "STORAGE_DISABLED", "result storage not configured")
		return
	}
	var q listQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_QUERY", err.Error())
		return
	}
	if q.Limit <= 0 || q.Limit > 500 {
		q.Limit = 100
	}
	runs, err := s.DB.Queries().ListRuns(c.Request.Context(), db.RunFilter{Ticker: q.Ticker, BatchID: q.BatchID, Limit: q.Limit})
	if err != nil {
		respondError(c, http.StatusInternalServerError, "QUERY_FAILED", err.Error())
		return
	}
	out := make([]runView, 0, len(runs))
	for _, r := range runs {
		out = append(out, newRunView(r))
	}
	c.JSON(http.StatusOK, gin.H{"runs": out})
}

func (s *Server) getBacktest(c *gin.Context) {
	if s.DB == nil {
		respondError(c, http.StatusServiceUnavailable, "STORAGE_DISABLED", "result storage not configured")
		return
	}
	id := c.Param("id")
	q := s.DB.Queries()
	run, err := q.GetRun(c.Request.Context(), id)
	if errors.Is(err, db.ErrNotFound) {
		respondError(c, http.StatusNotFound, "NOT_FOUND", "backtest run not found")
		return
	}
	if err != nil {
		respondError(c, http.StatusInternalServerError, "QUERY_FAILED", err.Error())
		return
	}
	ops, err := q.ListOperations(c.Request.Context(), id)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "QUERY_FAILED", err.Error())
		return
	}
	views := make([]operationView, 0, len(ops))
	for _, op := range ops {
		views = append(views, operationView{
			ID:         op.ID,
			Time:       op.Time,
			Side:       op.Side,
			Price:      op.Price,
			Lots:       op.Lots,
			Quantity:   op.Quantity,
			Commission: op.Commission,
			Total:      op.Total,
		})
	}
	c.JSON(http.StatusOK, gin.H{"run": newRunView(run), "operations": views})
}

func (s *Server) getMetrics(c *gin.Context) {
	if s.Metrics == nil {
		respondError(c, http.StatusServiceUnavailable, "METRICS_UNAVAILABLE", "metrics not available")
		return
	}
	c.JSON(http.StatusOK, s.Metrics.GetSnapshot())
}

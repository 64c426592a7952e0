package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"backtest-core/internal/backtest"
	"backtest-core/internal/instrument"
	"backtest-core/internal/market"
	"backtest-core/internal/monitor"
	"backtest-core/internal/report"
	"backtest-core/pkg/db"
	"backtest-core/pkg/fixed"
)

var fakeNow = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

func newTestServer(t *testing.T, withDB bool) *Server {
	return newLimitedServer(t, withDB, Limits{})
}

func newLimitedServer(t *testing.T, withDB bool, limits Limits) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	reg, err := instrument.NewRegistry(instrument.Instrument{
		Ticker: "BTCUSDT", Currency: "USDT", LotSize: 1, Commission: fixed.MustParse("0.001"),
	})
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	metrics := monitor.NewMetrics()
	opts := []backtest.Option{
		backtest.WithClock(func() time.Time { return fakeNow }),
		backtest.WithLogger(zerolog.Nop()),
		backtest.WithMetrics(metrics),
	}
	var database *db.Database
	if withDB {
		database, err = db.Open(":memory:")
		if err != nil {
			t.Fatalf("db.Open: %v", err)
		}
		t.Cleanup(func() { database.Close() })
		opts = append(opts, backtest.WithExporter(report.NewSQLiteExporter(database)))
	}
	sim, err := backtest.NewSimulator(backtest.Config{Workers: 2, CandleWindow: 30},
		&market.GeneratedSource{StartPrice: 100, Seed: 7}, reg, opts...)
	if err != nil {
		t.Fatalf("NewSimulator: %v", err)
	}
	return NewServer(sim, database, metrics, SystemMeta{Version: "test", MarketSource: "generated", Interval: "1m", Workers: 2}, limits)
}

func do(t *testing.T, s *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Router.ServeHTTP(rec, req)
	return rec
}

func validBody() map[string]any {
	return map[string]any{
		"ticker":          "BTCUSDT",
		"from":            "2024-06-03T09:00:00Z",
		"to":              "2024-06-03T12:00:00Z",
		"initial_balance": "1000",
		"strategies": []map[string]any{
			{"type": "conservative", "minimum_profit": "0"},
			{"type": "cross", "averager": "ema", "small_window": 3, "big_window": 12, "minimum_profit": "0.001", "greedy": true},
		},
	}
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, false)
	rec := do(t, s, http.MethodGet, "/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d, expected 200", rec.Code)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Fatalf("missing X-Request-ID header")
	}
}

func TestRunBacktest(t *testing.T) {
	s := newTestServer(t, false)
	rec := do(t, s, http.MethodPost, "/api/backtests", validBody())
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
	var resp backtestResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Results) != 2 || resp.Summary.Runs != 2 {
		t.Fatalf("results=%d runs=%d, expected 2/2", len(resp.Results), resp.Summary.Runs)
	}
	for _, r := range resp.Results {
		if r.Failed() {
			t.Fatalf("run %s failed: %s", r.Strategy, r.Error)
		}
		if len(r.Candles) != 0 {
			t.Fatalf("candles returned without include_candles")
		}
	}
}

func TestRunBacktestRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(map[string]any)
		code   string
	}{
		{"future bound", func(b map[string]any) { b["to"] = "2025-01-02T00:00:00Z" }, "INVALID_ARGUMENT"},
		{"from after to", func(b map[string]any) { b["from"] = "2024-06-04T00:00:00Z" }, "INVALID_ARGUMENT"},
		{"negative balance", func(b map[string]any) { b["initial_balance"] = "-1" }, "INVALID_ARGUMENT"},
		{"unknown strategy", func(b map[string]any) {
			b["strategies"] = []map[string]any{{"type": "martingale"}}
		}, "INVALID_STRATEGY"},
		{"bad cron", func(b map[string]any) { b["cron"] = "every tuesday" }, "INVALID_SCHEDULE"},
		{"bad price", func(b map[string]any) { b["initial_balance"] = "lots" }, "INVALID_REQUEST"},
	}
	s := newTestServer(t, false)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := validBody()
			tt.mutate(body)
			rec := do(t, s, http.MethodPost, "/api/backtests", body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status=%d, expected 400 (%s)", rec.Code, rec.Body.String())
			}
			var e map[string]string
			_ = json.Unmarshal(rec.Body.Bytes(), &e)
			if e["code"] != tt.code {
				t.Fatalf("code=%q, expected %q", e["code"], tt.code)
			}
		})
	}
}

func TestPersistedBacktestHistory(t *testing.T) {
	s := newTestServer(t, true)
	body := validBody()
	body["persist"] = true
	body["balance_increment"] = "50"
	body["cron"] = "0 * * * *"
	rec := do(t, s, http.MethodPost, "/api/backtests", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
	var resp backtestResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}

	rec = do(t, s, http.MethodGet, "/api/backtests?ticker=BTCUSDT", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
	var list struct {
		Runs []runView `json:"runs"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(list.Runs) != 2 {
		t.Fatalf("runs=%d, expected 2", len(list.Runs))
	}

	want := resp.Results[1]
	rec = do(t, s, http.MethodGet, "/api/backtests/"+want.ID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
	var detail struct {
		Run        runView         `json:"run"`
		Operations []operationView `json:"operations"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &detail); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !detail.Run.TotalInvestment.Equal(want.TotalInvestment) {
		t.Fatalf("TotalInvestment=%v, expected %v", detail.Run.TotalInvestment, want.TotalInvestment)
	}
	if len(detail.Operations) != len(want.Operations) {
		t.Fatalf("operations=%d, expected %d", len(detail.Operations), len(want.Operations))
	}

	if rec := do(t, s, http.MethodGet, "/api/backtests/missing", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("status=%d, expected 404", rec.Code)
	}
}

func TestHistoryWithoutStorage(t *testing.T) {
	s := newTestServer(t, false)
	for _, path := range []string{"/api/backtests", "/api/backtests/x"} {
		if rec := do(t, s, http.MethodGet, path, nil); rec.Code != http.StatusServiceUnavailable {
			t.Fatalf("%s status=%d, expected 503", path, rec.Code)
		}
	}
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t, false)
	do(t, s, http.MethodPost, "/api/backtests", validBody())
	rec := do(t, s, http.MethodGet, "/api/metrics", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d, expected 200", rec.Code)
	}
	var snap monitor.MetricsSnapshot
	if err := json.Unmarshal(rec.Body.Bytes(), &snap); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if snap.Batches != 1 || snap.RunsCompleted != 2 || snap.APIRequests < 1 {
		t.Fatalf("snapshot=%+v", snap)
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RateLimitMiddleware(newIPLimiters(0.001, 2)))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	codes := make([]int, 3)
	for i := range codes {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		codes[i] = rec.Code
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusOK || codes[2] != http.StatusTooManyRequests {
		t.Fatalf("codes=%v, expected [200 200 429]", codes)
	}
}

func TestRunBacktestWorkLimits(t *testing.T) {
	tests := []struct {
		name   string
		limits Limits
		status int
	}{
		// validBody spans three hours with two strategies: 360 ticks.
		{"within limits", Limits{MaxSpan: 3 * time.Hour, MaxTicks: 360}, http.StatusOK},
		{"span too long", Limits{MaxSpan: 2 * time.Hour, MaxTicks: 1000}, http.StatusBadRequest},
		{"too many ticks", Limits{MaxSpan: 24 * time.Hour, MaxTicks: 359}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newLimitedServer(t, false, tt.limits)
			rec := do(t, s, http.MethodPost, "/api/backtests", validBody())
			if rec.Code != tt.status {
				t.Fatalf("status=%d, expected %d (%s)", rec.Code, tt.status, rec.Body.String())
			}
			if tt.status == http.StatusBadRequest {
				var e map[string]string
				_ = json.Unmarshal(rec.Body.Bytes(), &e)
				if e["code"] != "INVALID_ARGUMENT" {
					t.Fatalf("code=%q, expected INVALID_ARGUMENT", e["code"])
				}
			}
		})
	}
}

func TestDefaultLimitsRejectDecadeRequest(t *testing.T) {
	s := newTestServer(t, false)
	body := validBody()
	body["from"] = "2014-06-03T09:00:00Z"
	rec := do(t, s, http.MethodPost, "/api/backtests", body)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status=%d, expected 400", rec.Code)
	}
	if s.Metrics.GetSnapshot().Batches != 0 {
		t.Fatalf("simulator ran a rejected request")
	}
}

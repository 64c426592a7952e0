package api

import (
	"net/http"
	"time"

	"backtest-core/internal/backtest"
	"backtest-core/internal/monitor"
	"backtest-core/pkg/db"

	"github.com/gin-gonic/gin"
)

// Server exposes the simulator and stored results over HTTP.
type Server struct {
	Router  *gin.Engine
	Sim     *backtest.Simulator
	DB      *db.Database // nil disables the history endpoints
	Metrics *monitor.Metrics
	Meta    SystemMeta
	Limits  Limits
}

// Limits bounds the work a single POST /api/backtests may request. The
// simulator ticks once per minute for every strategy.
type Limits struct {
	MaxSpan  time.Duration // longest From..To interval
	MaxTicks int64         // span minutes summed over all strategies
}

// DefaultLimits allows a year for one strategy, or proportionally less
// for larger batches.
var DefaultLimits = Limits{
	MaxSpan:  366 * 24 * time.Hour,
	MaxTicks: 366 * 24 * 60 * 4,
}

// SystemMeta describes runtime settings reported by /health.
type SystemMeta struct {
	Version      string `json:"version"`
	MarketSource string `json:"market_source"`
	Interval     string `json:"interval"`
	Workers      int    `json:"workers"`
}

func NewServer(sim *backtest.Simulator, database *db.Database, metrics *monitor.Metrics, meta SystemMeta, limits Limits) *Server {
	if limits.MaxSpan <= 0 {
		limits.MaxSpan = DefaultLimits.MaxSpan
	}
	if limits.MaxTicks <= 0 {
		limits.MaxTicks = DefaultLimits.MaxTicks
	}

	r := gin.New()

	// Middleware stack (order matters!)
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(RequestLogger(metrics))
	r.Use(RateLimitMiddleware(newIPLimiters(20, 50)))
	r.Use(CORSMiddleware())

	s := &Server{
		Router:  r,
		Sim:     sim,
		DB:      database,
		Metrics: metrics,
		Meta:    meta,
		Limits:  limits,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.Router.GET("/health", s.health)

	api := s.Router.Group("/api")
	{
		api.GET("/metrics", s.getMetrics)
		api.POST("/backtests", s.runBacktest)
		api.GET("/backtests", s.listBacktests)
		api.GET("/backtests/:id", s.getBacktest)
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "meta": s.Meta})
}

func (s *Server) Start(addr string) error {
	return s.Router.Run(addr)
}

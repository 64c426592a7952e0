package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds environment-driven settings for the backtesting service.
type Config struct {
	Port string

	// Logging
	LogLevel  string
	LogPretty bool

	// Database
	DBPath string

	// Simulation
	Workers        int
	CandleWindow   int
	CandleInterval string

	// API request limits; zero keeps the server defaults
	MaxSpanDays int
	MaxTicks    int

	// Market data
	MarketSource   string // "generated" (default) or "binance"
	BinanceBaseURL string
	BinanceRPS     float64

	// Input files
	InstrumentsFile string
	StrategiesFile  string

	// Export
	ReportCSVPath  string
	PersistResults bool
}

// Load reads environment variables (optionally via .env) into Config.
func Load() (*Config, error) {
	// Ignore error so the app still starts when .env is missing.
	_ = godotenv.Load()

	return &Config{
		Port:            getEnv("PORT", "8080"),
		LogLevel:        strings.ToLower(getEnv("LOG_LEVEL", "info")),
		LogPretty:       getEnvBool("LOG_PRETTY", true),
		DBPath:          getEnv("DB_PATH", "./data/backtest.db"),
		Workers:         getEnvInt("SIM_WORKERS", 4),
		CandleWindow:    getEnvInt("SIM_CANDLE_WINDOW", 200),
		CandleInterval:  getEnv("SIM_CANDLE_INTERVAL", "1m"),
		MaxSpanDays:     getEnvInt("API_MAX_SPAN_DAYS", 0),
		MaxTicks:        getEnvInt("API_MAX_TICKS", 0),
		MarketSource:    strings.ToLower(getEnv("MARKET_SOURCE", "generated")),
		BinanceBaseURL:  getEnv("BINANCE_BASE_URL", "https://api.binance.com"),
		BinanceRPS:      getEnvFloat("BINANCE_RPS", 10),
		InstrumentsFile: getEnv("INSTRUMENTS_FILE", "./configs/instruments.yaml"),
		StrategiesFile:  getEnv("STRATEGIES_FILE", "./configs/strategies.yaml"),
		ReportCSVPath:   getEnv("REPORT_CSV_PATH", ""),
		PersistResults:  getEnvBool("PERSIST_RESULTS", false),
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

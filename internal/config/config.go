// Package config loads runtime configuration from the environment, with
// an optional .env file for local development. Binaries overlay these
// values with command-line flags.
package config

import (
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"orderflow-lab/internal/evaluator"
	"orderflow-lab/internal/orderflow"
	"orderflow-lab/internal/replay"
	"orderflow-lab/internal/sandbox"
	"orderflow-lab/internal/signal"
)

// Config is the full runtime configuration.
type Config struct {
	// Market
	Symbol     string `envconfig:"SYMBOL" default:"BTCUSDT"`
	WSEndpoint string `envconfig:"WS_ENDPOINT" default:"wss://stream.bybit.com/v5/public/linear"`
	BookDepth  int    `envconfig:"BOOK_DEPTH" default:"50"`

	// Storage
	PostgresDSN   string `envconfig:"POSTGRES_DSN"`
	ClickhouseDSN string `envconfig:"CLICKHOUSE_DSN"`

	// Observability
	MetricsAddr string `envconfig:"METRICS_ADDR" default:":9090"`

	// Evaluation loop
	EvalIntervalSec float64 `envconfig:"EVAL_INTERVAL_SEC" default:"1"`
	StaleAfterSec   float64 `envconfig:"STALE_AFTER_SEC" default:"5"`

	// Analytics
	WindowSec      float64 `envconfig:"WINDOW_SEC" default:"60"`
	DepthLevels    int     `envconfig:"DEPTH_LEVELS" default:"20"`
	WallPercentile float64 `envconfig:"WALL_PERCENTILE" default:"90"`
	WallMinMult    float64 `envconfig:"WALL_MIN_MULT" default:"2"`
	SpikeMult      float64 `envconfig:"SPIKE_MULT" default:"2"`

	// Signal
	MinScore        float64 `envconfig:"MIN_SCORE" default:"0.25"`
	SweepDecaySec   float64 `envconfig:"SWEEP_DECAY_SEC" default:"120"`
	DegradedPenalty float64 `envconfig:"DEGRADED_PENALTY" default:"0.2"`

	// Sandbox
	InitialBalance      float64 `envconfig:"INITIAL_BALANCE" default:"100"`
	MinConfidenceToOpen float64 `envconfig:"MIN_CONFIDENCE_TO_OPEN" default:"0.3"`
	TakerFeeRate        float64 `envconfig:"TAKER_FEE_RATE" default:"0.00055"`

	// Replay
	HistoryDir    string  `envconfig:"HISTORY_DIR" default:"data/ticks"`
	ReplayTickSec float64 `envconfig:"REPLAY_TICK_SEC" default:"1"`
	TickSize      float64 `envconfig:"TICK_SIZE" default:"0.1"`
}

// Load reads configuration from the environment. A .env file, when
// present, seeds the environment first; its absence is not an error.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// FlowOptions maps the config onto the analytics options.
func (c *Config) FlowOptions() orderflow.Options {
	return orderflow.Options{
		DepthLevels:    c.DepthLevels,
		WallPercentile: c.WallPercentile,
		WallMinMult:    c.WallMinMult,
		WindowSec:      c.WindowSec,
		SpikeMult:      c.SpikeMult,
	}
}

// SignalOptions maps the config onto the signal options.
func (c *Config) SignalOptions() signal.Options {
	return signal.Options{
		MinScore:        c.MinScore,
		SweepDecaySec:   c.SweepDecaySec,
		DegradedPenalty: c.DegradedPenalty,
	}
}

// SandboxConfig maps the config onto the sandbox configuration.
func (c *Config) SandboxConfig() sandbox.Config {
	return sandbox.Config{
		InitialBalance:      c.InitialBalance,
		MinConfidenceToOpen: c.MinConfidenceToOpen,
		TakerFeeRate:        c.TakerFeeRate,
	}
}

// EvaluatorConfig maps the config onto the live evaluation loop.
func (c *Config) EvaluatorConfig(runID string) evaluator.Config {
	return evaluator.Config{
		Symbol:     c.Symbol,
		RunID:      runID,
		Interval:   time.Duration(c.EvalIntervalSec * float64(time.Second)),
		StaleAfter: time.Duration(c.StaleAfterSec * float64(time.Second)),
		Flow:       c.FlowOptions(),
		Signal:     c.SignalOptions(),
	}
}

// ReplayOptions maps the config onto the replay engine.
func (c *Config) ReplayOptions() replay.Options {
	return replay.Options{
		TickSec:   c.ReplayTickSec,
		WindowSec: c.WindowSec,
		TickSize:  c.TickSize,
		Flow:      c.FlowOptions(),
		Signal:    c.SignalOptions(),
	}
}

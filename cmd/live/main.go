package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"orderflow-lab/internal/config"
	"orderflow-lab/internal/evaluator"
	"orderflow-lab/internal/idhash"
	"orderflow-lab/internal/observability"
	"orderflow-lab/internal/sandbox"
	"orderflow-lab/internal/storage"
	chstore "orderflow-lab/internal/storage/clickhouse"
	"orderflow-lab/internal/storage/memory"
	pgstore "orderflow-lab/internal/storage/postgres"
	"orderflow-lab/internal/stream"
	"orderflow-lab/internal/tickbuffer"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	// Flags overlay the environment configuration.
	symbol := flag.String("symbol", cfg.Symbol, "Derivatives symbol to evaluate")
	wsEndpoint := flag.String("ws-endpoint", cfg.WSEndpoint, "Public WebSocket endpoint")
	bookDepth := flag.Int("book-depth", cfg.BookDepth, "Order book depth (1, 50, 200 or 1000)")
	postgresDSN := flag.String("postgres-dsn", cfg.PostgresDSN, "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", cfg.ClickhouseDSN, "ClickHouse connection string")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of databases")
	metricsAddr := flag.String("metrics-addr", cfg.MetricsAddr, "Prometheus metrics HTTP address (empty to disable)")

	flag.Parse()

	logger := log.New(os.Stdout, "[live] ", log.LstdFlags|log.Lshortfile)

	metrics := observability.NewMetrics("")

	// Start metrics server if enabled
	if *metricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", observability.Handler())
			mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
				w.Write([]byte("ok"))
			})
			logger.Printf("Starting metrics server on %s", *metricsAddr)
			if err := http.ListenAndServe(*metricsAddr, mux); err != nil && err != http.ErrServerClosed {
				logger.Printf("Metrics server error: %v", err)
			}
		}()
	}

	ctx, cancel := context.WithCancel(context.Background())

	// Handle shutdown signals with graceful timeout
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	done := make(chan error, 1)

	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, initiating graceful shutdown...", sig)
		cancel()

		select {
		case sig := <-sigCh:
			logger.Printf("Received second signal %v, forcing immediate shutdown", sig)
			os.Exit(1)
		case <-time.After(30 * time.Second):
			logger.Println("Graceful shutdown timed out after 30s, forcing exit")
			os.Exit(1)
		case <-done:
			// Normal shutdown completed
		}
	}()

	err = runLive(ctx, logger, metrics, cfg, *symbol, *wsEndpoint, *bookDepth, *postgresDSN, *clickhouseDSN, *useMemory)

	done <- err
	cancel()

	if err != nil && err != context.Canceled {
		logger.Fatalf("Error: %v", err)
	}

	logger.Println("Shutdown complete")
}

// runLive wires the streams, stores and the evaluation loop, and blocks
// until the context is cancelled.
func runLive(ctx context.Context, logger *log.Logger, metrics *observability.Metrics, cfg *config.Config, symbol, wsEndpoint string, bookDepth int, postgresDSN, clickhouseDSN string, useMemory bool) error {
	if wsEndpoint == "" {
		return fmt.Errorf("--ws-endpoint is required")
	}
	if !useMemory && postgresDSN == "" {
		return fmt.Errorf("--postgres-dsn is required (use --use-memory for in-memory storage)")
	}

	// Create stores (use interfaces)
	var transitionStore storage.PositionTransitionStore = memory.NewPositionTransitionStore()
	var snapshotStore storage.FlowSnapshotStore = memory.NewFlowSnapshotStore()

	if !useMemory {
		pool, err := pgstore.NewPool(ctx, postgresDSN)
		if err != nil {
			return fmt.Errorf("connect to postgres: %w", err)
		}
		defer pool.Close()
		transitionStore = pgstore.NewPositionTransitionStore(pool)

		if clickhouseDSN != "" {
			conn, err := chstore.NewConn(ctx, clickhouseDSN)
			if err != nil {
				return fmt.Errorf("connect to clickhouse: %w", err)
			}
			defer conn.Close()
			snapshotStore = chstore.NewFlowSnapshotStore(conn)
		} else {
			logger.Println("No ClickHouse DSN, keeping flow snapshots in memory")
		}
	}

	// Connect the public feed
	client, err := stream.NewWSClient(ctx, wsEndpoint, nil, logger)
	if err != nil {
		return fmt.Errorf("connect websocket: %w", err)
	}
	defer client.Close()
	client.OnReconnect(func() {
		metrics.WSReconnects.Inc()
		logger.Println("WebSocket reconnected, topics resubscribed")
	})

	books, err := stream.NewOrderBookStream(ctx, client, symbol, bookDepth, logger, metrics)
	if err != nil {
		return fmt.Errorf("start order book stream: %w", err)
	}

	retentionMs := int64(2 * cfg.WindowSec * 1000)
	buffer := tickbuffer.New(0, retentionMs)
	if _, err := stream.NewTradeStream(ctx, client, symbol, buffer, logger, metrics); err != nil {
		return fmt.Errorf("start trade stream: %w", err)
	}

	runID := idhash.ComputeRunID("live", symbol, time.Now().UTC().Format("2006-01-02"), "")
	box := sandbox.New(runID, symbol, cfg.SandboxConfig())

	ev := evaluator.New(cfg.EvaluatorConfig(runID), books, buffer, box, snapshotStore, transitionStore, logger, metrics)

	logger.Printf("Starting live evaluation for %s (run %s)...", symbol, runID)
	if err := ev.Run(ctx); err != nil {
		return err
	}

	pos := box.Position()
	logger.Printf("Final position: side=%s realized_pnl=%.6f equity=%.6f transitions=%d",
		pos.Side, pos.RealizedPnL, box.Equity(), len(box.Transitions()))
	return nil
}

package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"orderflow-lab/internal/config"
	"orderflow-lab/internal/replay"
	"orderflow-lab/internal/storage"
	chstore "orderflow-lab/internal/storage/clickhouse"
	"orderflow-lab/internal/storage/memory"
	pgstore "orderflow-lab/internal/storage/postgres"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	// Parse flags
	symbol := flag.String("symbol", cfg.Symbol, "Derivatives symbol to replay")
	fromDate := flag.String("from-date", "", "First day of the range (YYYY-MM-DD, required)")
	toDate := flag.String("to-date", "", "Last day of the range (YYYY-MM-DD, required)")
	historyDir := flag.String("history-dir", cfg.HistoryDir, "Directory holding per-symbol tick files")
	tickSec := flag.Float64("tick-sec", cfg.ReplayTickSec, "Synthetic evaluation step in seconds")
	windowSec := flag.Float64("window-sec", cfg.WindowSec, "Trade window in seconds")
	force := flag.Bool("force", false, "Replay even when the ledger already covers the range")
	postgresDSN := flag.String("postgres-dsn", cfg.PostgresDSN, "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", cfg.ClickhouseDSN, "ClickHouse connection string")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage")
	outputJSON := flag.Bool("json", false, "Output result as JSON")

	flag.Parse()

	// Setup structured logger
	logger := log.New(os.Stderr, "[replay] ", log.LstdFlags)

	// Validate required flags
	if *fromDate == "" || *toDate == "" {
		logger.Fatal("--from-date and --to-date are required")
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, shutting down...", sig)
		cancel()
	}()

	// Create stores
	var ledger storage.CompletionLedgerStore = memory.NewCompletionLedgerStore()
	var transitionStore storage.PositionTransitionStore = memory.NewPositionTransitionStore()
	var snapshotStore storage.FlowSnapshotStore = memory.NewFlowSnapshotStore()

	if !*useMemory {
		if *postgresDSN == "" {
			logger.Fatal("--postgres-dsn is required (use --use-memory for in-memory storage)")
		}
		pool, err := pgstore.NewPool(ctx, *postgresDSN)
		if err != nil {
			logger.Fatalf("connect to postgres: %v", err)
		}
		defer pool.Close()

		ledger = pgstore.NewCompletionLedgerStore(pool)
		transitionStore = pgstore.NewPositionTransitionStore(pool)

		if *clickhouseDSN != "" {
			conn, err := chstore.NewConn(ctx, *clickhouseDSN)
			if err != nil {
				logger.Fatalf("connect to clickhouse: %v", err)
			}
			defer conn.Close()
			snapshotStore = chstore.NewFlowSnapshotStore(conn)
		} else {
			snapshotStore = nil
			logger.Println("No ClickHouse DSN, flow snapshots will not be persisted")
		}
	}

	cfg.ReplayTickSec = *tickSec
	cfg.WindowSec = *windowSec

	runner := replay.NewRunner(*historyDir, ledger, snapshotStore, transitionStore, logger, nil)

	logger.Printf("Replaying %s %s..%s (force=%v)", *symbol, *fromDate, *toDate, *force)
	result, err := runner.Run(ctx, replay.RunConfig{
		Symbol:   *symbol,
		FromDate: *fromDate,
		ToDate:   *toDate,
		Force:    *force,
		Sandbox:  cfg.SandboxConfig(),
		Engine:   cfg.ReplayOptions(),
	})
	if err != nil {
		logger.Fatalf("replay failed: %v", err)
	}

	if *outputJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(result); err != nil {
			logger.Fatalf("encode result: %v", err)
		}
		return
	}

	if result.Skipped {
		fmt.Println("Range already completed, nothing to replay")
		return
	}
	fmt.Printf("Run %s complete: ticks=%d transitions=%d realized_pnl=%.6f final_equity=%.6f\n",
		result.RunID, result.Ticks, result.Transitions, result.Position.RealizedPnL, result.FinalEquity)
}

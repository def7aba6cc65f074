package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"

	"orderflow-lab/internal/config"
	"orderflow-lab/internal/report"
	pgstore "orderflow-lab/internal/storage/postgres"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	runID := flag.String("run-id", "", "Run identifier to summarize (required)")
	postgresDSN := flag.String("postgres-dsn", cfg.PostgresDSN, "PostgreSQL connection string")
	outputJSON := flag.Bool("json", false, "Output summary as JSON instead of Markdown")

	flag.Parse()

	logger := log.New(os.Stderr, "[report] ", log.LstdFlags)

	if *runID == "" {
		logger.Fatal("--run-id is required")
	}
	if *postgresDSN == "" {
		logger.Fatal("--postgres-dsn is required")
	}

	ctx := context.Background()

	pool, err := pgstore.NewPool(ctx, *postgresDSN)
	if err != nil {
		logger.Fatalf("connect to postgres: %v", err)
	}
	defer pool.Close()

	summarizer := report.NewSummarizer(pgstore.NewPositionTransitionStore(pool))
	summary, err := summarizer.SummarizeRun(ctx, *runID)
	if err != nil {
		if errors.Is(err, report.ErrNoTransitions) {
			logger.Fatalf("run %s has no recorded transitions", *runID)
		}
		logger.Fatalf("summarize run: %v", err)
	}

	if *outputJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(summary); err != nil {
			logger.Fatalf("encode summary: %v", err)
		}
		return
	}

	fmt.Print(report.RenderMarkdown(summary))
}

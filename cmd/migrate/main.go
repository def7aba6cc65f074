package main

import (
	"context"
	"flag"
	"log"
	"os"

	"orderflow-lab/internal/config"
	"orderflow-lab/internal/storage/migrations"
	pgstore "orderflow-lab/internal/storage/postgres"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	postgresDSN := flag.String("postgres-dsn", cfg.PostgresDSN, "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", cfg.ClickhouseDSN, "ClickHouse connection string")

	flag.Parse()

	logger := log.New(os.Stderr, "[migrate] ", log.LstdFlags)
	ctx := context.Background()

	if *postgresDSN == "" && *clickhouseDSN == "" {
		logger.Fatal("at least one of --postgres-dsn or --clickhouse-dsn is required")
	}

	if *postgresDSN != "" {
		pool, err := pgstore.NewPool(ctx, *postgresDSN)
		if err != nil {
			logger.Fatalf("connect to postgres: %v", err)
		}
		defer pool.Close()

		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			logger.Fatalf("postgres migrations: %v", err)
		}
		logger.Println("PostgreSQL migrations applied")
	}

	if *clickhouseDSN != "" {
		conn, err := migrations.RunClickhouseMigrations(ctx, *clickhouseDSN)
		if err != nil {
			logger.Fatalf("clickhouse migrations: %v", err)
		}
		conn.Close()
		logger.Println("ClickHouse migrations applied")
	}
}

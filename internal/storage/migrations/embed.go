package migrations

import "embed"

// PostgresFS embeds the transition and ledger table migrations.
//
//go:embed postgres/*.sql
var PostgresFS embed.FS

// ClickhouseFS embeds the flow_snapshots timeseries migrations.
//
//go:embed clickhouse/*.sql
var ClickhouseFS embed.FS

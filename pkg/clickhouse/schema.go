package clickhouse

import "fmt"

// Table names, unqualified.
const (
	TableArchive     = "regime_archive"
	TableDecisions   = "agent_decisions"
	TablePerformance = "agent_performance_daily"
	TableCandles     = "daily_candles"
)

// Schema returns the DDL for every corexia table in database.
// Archive, performance and candle rows are versioned so re-writes for the same key
// collapse on merge; readers use FINAL.
func Schema(database string) []string {
	return []string{
		fmt.Sprintf(`CREATE DATABASE IF NOT EXISTS %s`, database),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.%s (
    symbol             LowCardinality(String),
    date               Date,
    market_state       LowCardinality(String),
    market_friction    LowCardinality(String),
    confluence_band    LowCardinality(String),
    balance_state      LowCardinality(String),
    touch_rank         String,
    volatility_state   LowCardinality(String),
    htf_alignment      LowCardinality(String),
    confluence_score   UInt8,
    close              Float64,
    forward_5d_return  Nullable(Float64),
    forward_10d_return Nullable(Float64),
    resolution_type    Nullable(String),
    created_at         DateTime64(3, 'UTC'),
    version            UInt64
) ENGINE = ReplacingMergeTree(version)
ORDER BY (symbol, date)`, database, TableArchive),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.%s (
    id              String,
    run_id          String,
    agent_id        LowCardinality(String),
    symbol          LowCardinality(String),
    ts              DateTime64(3, 'UTC'),
    branch          LowCardinality(String),
    market_state    LowCardinality(String),
    friction        LowCardinality(String),
    drift           LowCardinality(String),
    market_spine    String,
    interpretation  String,
    intent          String,
    proposed_action String,
    blocked_reason  String,
    confidence      Float64,
    size_pct        Float64
) ENGINE = MergeTree
PARTITION BY toYYYYMM(ts)
ORDER BY (agent_id, ts, id)`, database, TableDecisions),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.%s (
    agent_id     LowCardinality(String),
    date         Date,
    equity       Float64,
    peak_equity  Float64,
    daily_pnl    Float64,
    drawdown     Float64,
    exposure_pct Float64,
    updated_at   DateTime64(3, 'UTC')
) ENGINE = ReplacingMergeTree(updated_at)
ORDER BY (agent_id, date)`, database, TablePerformance),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.%s (
    symbol     LowCardinality(String),
    day        Date,
    open       Float64,
    high       Float64,
    low        Float64,
    close      Float64,
    volume     Float64,
    updated_at DateTime64(3, 'UTC')
) ENGINE = ReplacingMergeTree(updated_at)
ORDER BY (symbol, day)`, database, TableCandles),
	}
}

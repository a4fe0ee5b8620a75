package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"Corexia/internal/domain/models"
	domrepo "Corexia/internal/domain/repository"
	pkgch "Corexia/pkg/clickhouse"
)

// CHDecisionLog is the append-only audit table for agent cycles.
type CHDecisionLog struct {
	db    *sql.DB
	table string
}

var _ domrepo.DecisionLogStore = (*CHDecisionLog)(nil)

func NewCHDecisionLog(ch *pkgch.Client) *CHDecisionLog {
	return &CHDecisionLog{db: ch.DB(), table: ch.Database() + "." + pkgch.TableDecisions}
}

const decisionColumns = `id, run_id, agent_id, symbol, ts, branch, market_state, friction, drift,
        market_spine, interpretation, intent, proposed_action, blocked_reason, confidence, size_pct`

const decisionPlaceholders = "(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)"

func decisionArgs(r models.DecisionLog) []interface{} {
	return []interface{}{
		r.ID, r.RunID, r.AgentID, r.Symbol, r.Timestamp, string(r.Branch),
		r.MarketState, r.Friction, r.Drift, r.MarketSpine, r.Interpretation,
		r.Intent, r.ProposedAction, r.BlockedReason, r.Confidence, r.SizePct,
	}
}

func (s *CHDecisionLog) Insert(ctx context.Context, rec models.DecisionLog) error {
	q := fmt.Sprintf("INSERT INTO %s (%s) VALUES %s", s.table, decisionColumns, decisionPlaceholders)
	if _, err := s.db.ExecContext(ctx, q, decisionArgs(rec)...); err != nil {
		return fmt.Errorf("insert decision: %w", err)
	}
	return nil
}

// InsertBatch writes records with multi-row VALUES, chunked to bound statement size.
func (s *CHDecisionLog) InsertBatch(ctx context.Context, recs []models.DecisionLog) error {
	const chunkSize = 500
	for start := 0; start < len(recs); start += chunkSize {
		end := start + chunkSize
		if end > len(recs) {
			end = len(recs)
		}
		values := make([]string, 0, end-start)
		args := make([]interface{}, 0, (end-start)*16)
		for _, r := range recs[start:end] {
			values = append(values, decisionPlaceholders)
			args = append(args, decisionArgs(r)...)
		}
		q := fmt.Sprintf("INSERT INTO %s (%s) VALUES %s", s.table, decisionColumns, strings.Join(values, ","))
		if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
			return fmt.Errorf("insert decisions: %w", err)
		}
	}
	return nil
}

func (s *CHDecisionLog) Recent(ctx context.Context, limit int) ([]models.DecisionLog, error) {
	q := fmt.Sprintf("SELECT %s FROM %s ORDER BY ts DESC LIMIT ?", decisionColumns, s.table)
	rows, err := s.db.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("recent decisions: %w", err)
	}
	defer rows.Close()

	out := make([]models.DecisionLog, 0, limit)
	for rows.Next() {
		var (
			r      models.DecisionLog
			branch string
		)
		if err := rows.Scan(&r.ID, &r.RunID, &r.AgentID, &r.Symbol, &r.Timestamp, &branch,
			&r.MarketState, &r.Friction, &r.Drift, &r.MarketSpine, &r.Interpretation,
			&r.Intent, &r.ProposedAction, &r.BlockedReason, &r.Confidence, &r.SizePct); err != nil {
			return nil, fmt.Errorf("scan decision: %w", err)
		}
		r.Branch = models.Branch(branch)
		out = append(out, r)
	}
	return out, rows.Err()
}

// CHPerformanceHistory mirrors daily performance rows for long-range reporting.
type CHPerformanceHistory struct {
	db    *sql.DB
	table string
}

var _ domrepo.PerformanceHistory = (*CHPerformanceHistory)(nil)

func NewCHPerformanceHistory(ch *pkgch.Client) *CHPerformanceHistory {
	return &CHPerformanceHistory{db: ch.DB(), table: ch.Database() + "." + pkgch.TablePerformance}
}

func (s *CHPerformanceHistory) Upsert(ctx context.Context, p models.DailyPerformance) error {
	q := fmt.Sprintf(`INSERT INTO %s (agent_id, date, equity, peak_equity, daily_pnl, drawdown, exposure_pct, updated_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?)`, s.table)
	if _, err := s.db.ExecContext(ctx, q, p.AgentID, models.DateKey(p.Date), p.Equity, p.PeakEquity,
		p.DailyPnL, p.Drawdown, p.Exposure, p.UpdatedAt); err != nil {
		return fmt.Errorf("upsert performance: %w", err)
	}
	return nil
}

func (s *CHPerformanceHistory) History(ctx context.Context, agentID string, from time.Time) ([]models.DailyPerformance, error) {
	q := fmt.Sprintf(`SELECT agent_id, date, equity, peak_equity, daily_pnl, drawdown, exposure_pct, updated_at
        FROM %s FINAL
        WHERE agent_id = ? AND date >= ?
        ORDER BY date ASC`, s.table)
	rows, err := s.db.QueryContext(ctx, q, agentID, models.DateKey(from))
	if err != nil {
		return nil, fmt.Errorf("performance history: %w", err)
	}
	defer rows.Close()

	var out []models.DailyPerformance
	for rows.Next() {
		var p models.DailyPerformance
		if err := rows.Scan(&p.AgentID, &p.Date, &p.Equity, &p.PeakEquity, &p.DailyPnL,
			&p.Drawdown, &p.Exposure, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan performance: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

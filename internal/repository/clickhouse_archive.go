package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"Corexia/internal/domain/models"
	domrepo "Corexia/internal/domain/repository"
	pkgch "Corexia/pkg/clickhouse"
	applogger "Corexia/pkg/logger"
)

// CHArchive implements ArchiveStore on a ReplacingMergeTree keyed by
// (symbol, date). Outcome updates insert a newer version of the row.
type CHArchive struct {
	db    *sql.DB
	table string
	l     *applogger.Logger
	now   func() time.Time
}

var _ domrepo.ArchiveStore = (*CHArchive)(nil)

func NewCHArchive(ch *pkgch.Client, l *applogger.Logger) *CHArchive {
	if l == nil {
		l = applogger.Nop()
	}
	return &CHArchive{
		db:    ch.DB(),
		table: ch.Database() + "." + pkgch.TableArchive,
		l:     l,
		now:   time.Now,
	}
}

const archiveColumns = `symbol, date, market_state, market_friction, confluence_band, balance_state,
        touch_rank, volatility_state, htf_alignment, confluence_score, close,
        forward_5d_return, forward_10d_return, resolution_type, created_at`

func (s *CHArchive) Append(ctx context.Context, rec models.ArchiveRecord) (bool, error) {
	date := models.DateKey(rec.Date)

	var n uint64
	q := fmt.Sprintf(`SELECT count() FROM %s FINAL WHERE symbol = ? AND date = ?`, s.table)
	if err := s.db.QueryRowContext(ctx, q, rec.Symbol, date).Scan(&n); err != nil {
		return false, fmt.Errorf("check archive: %w", err)
	}
	if n > 0 {
		s.l.Debug("archive record exists", applogger.String("symbol", rec.Symbol), applogger.Time("date", date))
		return false, nil
	}

	rec.Date = date
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = s.now().UTC()
	}
	if err := s.insert(ctx, rec); err != nil {
		return false, fmt.Errorf("append archive: %w", err)
	}
	return true, nil
}

func (s *CHArchive) UpdateOutcome(ctx context.Context, rec models.ArchiveRecord) error {
	rec.Date = models.DateKey(rec.Date)
	if err := s.insert(ctx, rec); err != nil {
		return fmt.Errorf("update outcome: %w", err)
	}
	return nil
}

func (s *CHArchive) insert(ctx context.Context, r models.ArchiveRecord) error {
	q := fmt.Sprintf(`INSERT INTO %s (%s, version) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, s.table, archiveColumns)
	fp := r.Fingerprint
	_, err := s.db.ExecContext(ctx, q,
		r.Symbol, r.Date,
		string(fp.MarketState), string(fp.MarketFriction), string(fp.ConfluenceBand), string(fp.BalanceState),
		fp.TouchRank, string(fp.VolatilityState), string(fp.HTFAlignment),
		uint8(r.ConfluenceScore), r.Close,
		nullFloat(r.Forward5dReturn), nullFloat(r.Forward10dReturn), nullResolution(r.ResolutionType),
		r.CreatedAt, uint64(s.now().UnixNano()),
	)
	return err
}

func (s *CHArchive) LoadFingerprint(ctx context.Context, symbol string, date time.Time) (*models.RegimeFingerprint, error) {
	q := fmt.Sprintf(`SELECT %s FROM %s FINAL WHERE symbol = ? AND date = ? LIMIT 1`, archiveColumns, s.table)
	rec, err := scanArchive(s.db.QueryRowContext(ctx, q, symbol, models.DateKey(date)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domrepo.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load fingerprint: %w", err)
	}
	return &rec.Fingerprint, nil
}

func (s *CHArchive) QuerySimilar(ctx context.Context, symbol string, state models.MarketState, friction models.Friction, limit int) ([]models.ArchiveRecord, error) {
	start := time.Now()
	q := fmt.Sprintf(`SELECT %s FROM %s FINAL
        WHERE symbol = ? AND market_state = ? AND market_friction = ? AND forward_10d_return IS NOT NULL
        ORDER BY date DESC
        LIMIT ?`, archiveColumns, s.table)
	out, err := s.query(ctx, q, symbol, string(state), string(friction), limit)
	if err != nil {
		s.l.Error("clickhouse query_similar error",
			applogger.String("symbol", symbol),
			applogger.String("state", string(state)),
			applogger.Error(err),
		)
		return nil, fmt.Errorf("query similar: %w", err)
	}
	// newest first from the query; callers expect oldest first
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	s.l.Debug("clickhouse query_similar ok",
		applogger.String("symbol", symbol),
		applogger.Int("rows", len(out)),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return out, nil
}

func (s *CHArchive) Pending(ctx context.Context, symbol string, cutoff time.Time) ([]models.ArchiveRecord, error) {
	q := fmt.Sprintf(`SELECT %s FROM %s FINAL
        WHERE symbol = ? AND forward_10d_return IS NULL AND date <= ?
        ORDER BY date ASC`, archiveColumns, s.table)
	out, err := s.query(ctx, q, symbol, models.DateKey(cutoff))
	if err != nil {
		return nil, fmt.Errorf("pending archive: %w", err)
	}
	return out, nil
}

func (s *CHArchive) query(ctx context.Context, q string, args ...interface{}) ([]models.ArchiveRecord, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.ArchiveRecord
	for rows.Next() {
		rec, err := scanArchive(rows)
		if err != nil {
			return nil, fmt.Errorf("scan archive: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanArchive(row scanner) (models.ArchiveRecord, error) {
	var (
		r                                       models.ArchiveRecord
		state, friction, band, balance, vol, al string
		score                                   uint8
		f5, f10                                 sql.NullFloat64
		res                                     sql.NullString
	)
	err := row.Scan(&r.Symbol, &r.Date, &state, &friction, &band, &balance,
		&r.Fingerprint.TouchRank, &vol, &al, &score, &r.Close,
		&f5, &f10, &res, &r.CreatedAt)
	if err != nil {
		return r, err
	}
	r.Fingerprint.MarketState = models.MarketState(state)
	r.Fingerprint.MarketFriction = models.Friction(friction)
	r.Fingerprint.ConfluenceBand = models.ConfluenceBand(band)
	r.Fingerprint.BalanceState = models.BalanceState(balance)
	r.Fingerprint.VolatilityState = models.VolatilityState(vol)
	r.Fingerprint.HTFAlignment = models.HTFAlignment(al)
	r.ConfluenceScore = int(score)
	if f5.Valid {
		r.Forward5dReturn = &f5.Float64
	}
	if f10.Valid {
		r.Forward10dReturn = &f10.Float64
	}
	if res.Valid {
		rt := models.Resolution(res.String)
		r.ResolutionType = &rt
	}
	return r, nil
}

func nullFloat(p *float64) sql.NullFloat64 {
	if p == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *p, Valid: true}
}

func nullResolution(p *models.Resolution) sql.NullString {
	if p == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: string(*p), Valid: true}
}

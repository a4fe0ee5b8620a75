package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"Corexia/internal/domain/models"
	domrepo "Corexia/internal/domain/repository"
)

// MemoryArchive is an in-process ArchiveStore for tests and the memory backend.
type MemoryArchive struct {
	mu   sync.RWMutex
	recs map[string]map[string]models.ArchiveRecord // symbol -> date -> record
}

var _ domrepo.ArchiveStore = (*MemoryArchive)(nil)

func NewMemoryArchive() *MemoryArchive {
	return &MemoryArchive{recs: make(map[string]map[string]models.ArchiveRecord)}
}

func dayKey(t time.Time) string { return models.DateKey(t).Format("2006-01-02") }

func (m *MemoryArchive) Append(_ context.Context, rec models.ArchiveRecord) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	bySym, ok := m.recs[rec.Symbol]
	if !ok {
		bySym = make(map[string]models.ArchiveRecord)
		m.recs[rec.Symbol] = bySym
	}
	k := dayKey(rec.Date)
	if _, exists := bySym[k]; exists {
		return false, nil
	}
	rec.Date = models.DateKey(rec.Date)
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	bySym[k] = rec
	return true, nil
}

func (m *MemoryArchive) LoadFingerprint(_ context.Context, symbol string, date time.Time) (*models.RegimeFingerprint, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.recs[symbol][dayKey(date)]
	if !ok {
		return nil, domrepo.ErrNotFound
	}
	fp := rec.Fingerprint
	return &fp, nil
}

func (m *MemoryArchive) QuerySimilar(_ context.Context, symbol string, state models.MarketState, friction models.Friction, limit int) ([]models.ArchiveRecord, error) {
	out := m.sorted(symbol, func(r models.ArchiveRecord) bool {
		return r.Backfilled() && r.Fingerprint.MarketState == state && r.Fingerprint.MarketFriction == friction
	})
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (m *MemoryArchive) Pending(_ context.Context, symbol string, cutoff time.Time) ([]models.ArchiveRecord, error) {
	cut := models.DateKey(cutoff)
	return m.sorted(symbol, func(r models.ArchiveRecord) bool {
		return !r.Backfilled() && !r.Date.After(cut)
	}), nil
}

func (m *MemoryArchive) UpdateOutcome(_ context.Context, rec models.ArchiveRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := dayKey(rec.Date)
	if _, ok := m.recs[rec.Symbol][k]; !ok {
		return fmt.Errorf("update outcome %s %s: %w", rec.Symbol, k, domrepo.ErrNotFound)
	}
	rec.Date = models.DateKey(rec.Date)
	m.recs[rec.Symbol][k] = rec
	return nil
}

// sorted returns matching records oldest first.
func (m *MemoryArchive) sorted(symbol string, keep func(models.ArchiveRecord) bool) []models.ArchiveRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.ArchiveRecord
	for _, r := range m.recs[symbol] {
		if keep(r) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

// MemoryAgentState keeps each agent's positions and performance under its own key.
type MemoryAgentState struct {
	mu     sync.RWMutex
	agents map[string]*agentBook
}

type agentBook struct {
	positions []models.Position // insertion order
	closed    []string          // position IDs, most recent first
	perf      map[string]models.DailyPerformance
}

var _ domrepo.AgentStateStore = (*MemoryAgentState)(nil)

func NewMemoryAgentState() *MemoryAgentState {
	return &MemoryAgentState{agents: make(map[string]*agentBook)}
}

func (m *MemoryAgentState) book(agentID string) *agentBook {
	b, ok := m.agents[agentID]
	if !ok {
		b = &agentBook{perf: make(map[string]models.DailyPerformance)}
		m.agents[agentID] = b
	}
	return b
}

func (m *MemoryAgentState) RuntimeState(_ context.Context, agentID string, today time.Time, recentClosed int) (*models.RuntimeState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	st := &models.RuntimeState{}
	b, ok := m.agents[agentID]
	if !ok {
		return st, nil
	}
	byID := make(map[string]models.Position, len(b.positions))
	for _, p := range b.positions {
		byID[p.ID] = p
		if p.Open() {
			st.OpenPositions = append(st.OpenPositions, p)
		}
	}
	for i, id := range b.closed {
		if i == recentClosed {
			break
		}
		st.RecentClosed = append(st.RecentClosed, byID[id])
	}
	st.Today, st.Previous = splitPerformance(b.perf, today)
	return st, nil
}

// splitPerformance picks today's row and the latest row before today from rows keyed by date.
func splitPerformance(rows map[string]models.DailyPerformance, today time.Time) (*models.DailyPerformance, *models.DailyPerformance) {
	tk := dayKey(today)
	var cur, prev *models.DailyPerformance
	prevKey := ""
	for k, p := range rows {
		p := p
		switch {
		case k == tk:
			cur = &p
		case k < tk && k > prevKey:
			prevKey = k
			prev = &p
		}
	}
	return cur, prev
}

func (m *MemoryAgentState) OpenPosition(_ context.Context, pos models.Position) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b := m.book(pos.AgentID)
	for _, p := range b.positions {
		if p.ID == pos.ID {
			return fmt.Errorf("position %s already exists", pos.ID)
		}
	}
	b.positions = append(b.positions, pos)
	return nil
}

func (m *MemoryAgentState) ClosePosition(_ context.Context, agentID, positionID string, exitPrice float64, closedAt time.Time) (*models.Position, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b := m.book(agentID)
	for i, p := range b.positions {
		if p.ID != positionID {
			continue
		}
		if !p.Open() {
			return nil, fmt.Errorf("close position %s: %w", positionID, models.ErrPositionClosed)
		}
		closed := p.Closed(exitPrice, closedAt)
		b.positions[i] = closed
		b.closed = append([]string{positionID}, b.closed...)
		return &closed, nil
	}
	return nil, fmt.Errorf("close position %s: %w", positionID, domrepo.ErrNotFound)
}

func (m *MemoryAgentState) Positions(_ context.Context, agentID string) ([]models.Position, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.agents[agentID]
	if !ok {
		return nil, nil
	}
	return append([]models.Position(nil), b.positions...), nil
}

func (m *MemoryAgentState) UpsertPerformance(_ context.Context, perf models.DailyPerformance) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.book(perf.AgentID).perf[dayKey(perf.Date)] = perf
	return nil
}

func sortByOpened(ps []models.Position) {
	sort.SliceStable(ps, func(i, j int) bool {
		if ps[i].OpenedAt.Equal(ps[j].OpenedAt) {
			return ps[i].ID < ps[j].ID
		}
		return ps[i].OpenedAt.Before(ps[j].OpenedAt)
	})
}

// MemoryDecisionLog keeps decision records in insertion order.
type MemoryDecisionLog struct {
	mu   sync.RWMutex
	recs []models.DecisionLog
}

var _ domrepo.DecisionLogStore = (*MemoryDecisionLog)(nil)

func NewMemoryDecisionLog() *MemoryDecisionLog { return &MemoryDecisionLog{} }

func (m *MemoryDecisionLog) Insert(_ context.Context, rec models.DecisionLog) error {
	m.mu.Lock()
	m.recs = append(m.recs, rec)
	m.mu.Unlock()
	return nil
}

func (m *MemoryDecisionLog) InsertBatch(ctx context.Context, recs []models.DecisionLog) error {
	m.mu.Lock()
	m.recs = append(m.recs, recs...)
	m.mu.Unlock()
	return nil
}

// Recent returns up to limit records, newest first.
func (m *MemoryDecisionLog) Recent(_ context.Context, limit int) ([]models.DecisionLog, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.DecisionLog, 0, limit)
	for i := len(m.recs) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.recs[i])
	}
	return out, nil
}

// MemoryCandleStore keeps daily bars in process, for tests and the memory backend.
type MemoryCandleStore struct {
	mu      sync.RWMutex
	candles map[string][]models.Candle
}

var _ domrepo.CandleRepository = (*MemoryCandleStore)(nil)

func NewMemoryCandleStore() *MemoryCandleStore {
	return &MemoryCandleStore{candles: make(map[string][]models.Candle)}
}

// UpsertDailyCandles stores bars keyed by (symbol, day), replacing any bar
// already held for that day, and keeps each series in time order.
func (m *MemoryCandleStore) UpsertDailyCandles(_ context.Context, cs []models.Candle) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	touched := make(map[string]bool)
	for _, c := range cs {
		c.Bucket = models.DateKey(c.Bucket)
		series := m.candles[c.Symbol]
		replaced := false
		for i := range series {
			if series[i].Bucket.Equal(c.Bucket) {
				series[i] = c
				replaced = true
				break
			}
		}
		if !replaced {
			series = append(series, c)
		}
		m.candles[c.Symbol] = series
		touched[c.Symbol] = true
	}
	for sym := range touched {
		series := m.candles[sym]
		sort.Slice(series, func(i, j int) bool { return series[i].Bucket.Before(series[j].Bucket) })
	}
	return nil
}

func (m *MemoryCandleStore) GetDailyCandles(_ context.Context, symbol string, from, to time.Time) ([]models.Candle, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	lo, hi := models.DateKey(from), models.DateKey(to)
	var out []models.Candle
	for _, c := range m.candles[symbol] {
		d := models.DateKey(c.Bucket)
		if !d.Before(lo) && !d.After(hi) {
			out = append(out, c)
		}
	}
	return out, nil
}

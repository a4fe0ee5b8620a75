package usecase

import (
	"context"
	"fmt"
	"time"

	"Corexia/internal/domain/models"
	domrepo "Corexia/internal/domain/repository"
	"Corexia/internal/services/regime"
	applogger "Corexia/pkg/logger"
)

// SnapshotResult is the outcome of archiving one symbol.
type SnapshotResult struct {
	Symbol   string                `json:"symbol"`
	State    models.MarketState    `json:"state,omitempty"`
	Bias     models.Bias           `json:"bias,omitempty"`
	Friction models.Friction       `json:"friction,omitempty"`
	Band     models.ConfluenceBand `json:"confluence_band,omitempty"`
	Stored   bool                  `json:"stored"`
	Error    string                `json:"error,omitempty"`
}

type SnapshotReport struct {
	Date                time.Time        `json:"date"`
	Results             []SnapshotResult `json:"results"`
	Narrative           string           `json:"narrative"`
	NarrativeConfidence string           `json:"narrative_confidence"`
}

// SnapshotJob archives the daily fingerprint for a fixed symbol set and
// summarizes how the set agrees.
type SnapshotJob struct {
	builder   *MarketContextBuilder
	archive   domrepo.ArchiveStore
	symbols   []string
	volSymbol string
	log       *applogger.Logger
	now       func() time.Time
}

func NewSnapshotJob(builder *MarketContextBuilder, archive domrepo.ArchiveStore, symbols []string, volSymbol string, l *applogger.Logger) *SnapshotJob {
	return &SnapshotJob{
		builder:   builder,
		archive:   archive,
		symbols:   symbols,
		volSymbol: volSymbol,
		log:       l,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Run snapshots every symbol. One symbol failing does not stop the others;
// Run only returns an error when no symbol could be classified.
func (j *SnapshotJob) Run(ctx context.Context) (SnapshotReport, error) {
	report := SnapshotReport{Date: models.DateKey(j.now())}
	snaps := make(map[string]models.RegimeSnapshot, len(j.symbols))

	for _, sym := range j.symbols {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		res, snap, err := j.one(ctx, sym)
		if err != nil {
			res.Error = err.Error()
			j.log.Warn("snapshot failed", applogger.String("symbol", sym), applogger.Error(err))
		} else {
			snaps[sym] = snap
		}
		report.Results = append(report.Results, res)
	}

	if len(snaps) == 0 && len(j.symbols) > 0 {
		return report, fmt.Errorf("snapshot: no symbol classified")
	}
	report.Narrative, report.NarrativeConfidence = regime.CrossAssetNarrative(snaps, j.volSymbol)
	j.log.Info("daily snapshot",
		applogger.Time("date", report.Date),
		applogger.Int("symbols", len(snaps)),
		applogger.String("narrative_confidence", report.NarrativeConfidence),
		applogger.String("narrative", report.Narrative),
	)
	return report, nil
}

func (j *SnapshotJob) one(ctx context.Context, symbol string) (SnapshotResult, models.RegimeSnapshot, error) {
	res := SnapshotResult{Symbol: symbol}
	snap, err := j.builder.Classify(ctx, symbol)
	if err != nil {
		return res, snap, err
	}
	fp := regime.Fingerprint(snap)
	res.State, res.Bias, res.Friction, res.Band = snap.State, snap.Bias, snap.Friction, fp.ConfluenceBand

	stored, err := j.archive.Append(ctx, models.ArchiveRecord{
		Symbol:          symbol,
		Date:            models.DateKey(snap.Timestamp),
		Fingerprint:     fp,
		ConfluenceScore: snap.Confluence.NormalizedScore,
		Close:           snap.CurrentPrice,
		CreatedAt:       j.now(),
	})
	if err != nil {
		return res, snap, fmt.Errorf("append archive %s: %w", symbol, err)
	}
	res.Stored = stored
	return res, snap, nil
}

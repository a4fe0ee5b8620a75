package usecase

import (
	"context"
	"errors"
	"fmt"

	"Corexia/internal/domain/models"
	domrepo "Corexia/internal/domain/repository"
	"Corexia/internal/services/regime"
	"Corexia/internal/services/similarity"
	applogger "Corexia/pkg/logger"
	"Corexia/pkg/util"
)

// MarketContextBuilder turns one indicator fetch into everything an agent
// reads: snapshot, fingerprint, drift against the previous session and the
// outcome history of matching regimes.
type MarketContextBuilder struct {
	source     domrepo.IndicatorSource
	archive    domrepo.ArchiveStore
	timeframes []models.Timeframe
	metrics    domrepo.Metrics
	log        *applogger.Logger
}

func NewMarketContextBuilder(
	source domrepo.IndicatorSource,
	archive domrepo.ArchiveStore,
	timeframes []models.Timeframe,
	metrics domrepo.Metrics,
	l *applogger.Logger,
) *MarketContextBuilder {
	if len(timeframes) == 0 {
		timeframes = models.DefaultTimeframes()
	}
	return &MarketContextBuilder{
		source:     source,
		archive:    archive,
		timeframes: timeframes,
		metrics:    metrics,
		log:        l,
	}
}

// Classify fetches the bundle for symbol and classifies it. Only a failed
// main bundle fetch is an error; missing timeframes degrade the snapshot.
func (b *MarketContextBuilder) Classify(ctx context.Context, symbol string) (models.RegimeSnapshot, error) {
	bundle, err := b.source.FetchBundle(ctx, symbol, b.timeframes)
	if err != nil {
		return models.RegimeSnapshot{}, fmt.Errorf("classify %s: %w", symbol, err)
	}
	snap := regime.Classify(bundle)
	snap.Symbol = symbol
	return snap, nil
}

// Build classifies symbol and attaches drift, similarity and narrative.
// Archive read failures are logged and treated as missing history.
func (b *MarketContextBuilder) Build(ctx context.Context, symbol string) (models.MarketContext, error) {
	snap, err := b.Classify(ctx, symbol)
	if err != nil {
		return models.MarketContext{}, err
	}
	fp := regime.Fingerprint(snap)

	prior, err := b.archive.LoadFingerprint(ctx, symbol, util.PreviousSession(models.DateKey(snap.Timestamp)))
	if err != nil {
		if !errors.Is(err, domrepo.ErrNotFound) {
			b.warn("load_fingerprint", symbol, err)
		}
		prior = nil
	}
	drift := regime.DetectDrift(fp, prior)

	var stats models.SimilarityStats
	records, err := b.archive.QuerySimilar(ctx, symbol, snap.State, snap.Friction, similarity.MaxMatches)
	if err != nil {
		b.warn("query_similar", symbol, err)
	} else {
		stats = similarity.Summarize(records)
	}

	b.metrics.RecordSnapshot(symbol, snap.State, snap.Friction, drift.Level)
	return models.MarketContext{
		Snapshot:    snap,
		Fingerprint: fp,
		Drift:       drift,
		Similarity:  stats,
		Spine:       regime.Spine(snap),
		Headline:    regime.HeadlineContext(snap),
	}, nil
}

func (b *MarketContextBuilder) warn(op, symbol string, err error) {
	b.metrics.RecordPersistenceWarning(op)
	b.log.Warn("archive read failed",
		applogger.String("op", op),
		applogger.String("symbol", symbol),
		applogger.Error(err),
	)
}

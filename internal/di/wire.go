//go:build wireinject
// +build wireinject

package di

import (
	"github.com/google/wire"

	"Corexia/pkg/config"
	"Corexia/pkg/server"
)

// InitializeApp wires up all dependencies and returns the application.
// The returned cleanup closes infrastructure clients.
func InitializeApp(cfg *config.Config) (*server.App, func(), error) {
	wire.Build(
		// Infrastructure
		ProvideKafkaProducer,
		ProvideLogger,
		ProvideMetrics,
		ProvideClickHouseClient,
		ProvideRedisClient,
		ProvideCache,

		// Repositories
		ProvideHTTPIndicatorSource,
		ProvideIndicatorSource,
		ProvideArchive,
		ProvideCandleStore,
		ProvideDecisionStore,
		ProvidePerformanceHistory,
		ProvideAgentState,
		ProvideDecisionPublisher,

		// Domain services
		ProvideTimeframes,
		ProvideAgents,
		ProvideBroker,
		ProvideFinnhubFeed,

		// Use cases
		ProvideMarketContextBuilder,
		ProvideDecisionRecorder,
		ProvideDecisionPipeline,
		ProvidePerformanceUpdater,
		ProvideOrchestrator,
		ProvideRunGuard,
		ProvideQueryService,
		ProvidePositionCloser,
		ProvideCandlesUseCase,
		ProvideSnapshotJob,
		ProvideCandleIngestJob,
		ProvideBackfillJob,
		ProvideDecisionLogHandler,

		// Workers and transport
		ProvideJobs,
		ProvideQueue,
		ProvideScheduler,
		ProvideKafkaConsumer,
		ProvideHTTPServer,

		// Application server
		ProvideApp,
	)
	return nil, nil, nil
}

package di

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"Corexia/internal/domain/models"
	domrepo "Corexia/internal/domain/repository"
	"Corexia/internal/domain/service"
	"Corexia/internal/handler/api"
	mid "Corexia/internal/middleware"
	internalrepo "Corexia/internal/repository"
	jobmetrics "Corexia/internal/service/metrics"
	"Corexia/internal/service/pricefeed"
	"Corexia/internal/service/ratelimit"
	"Corexia/internal/service/scheduler"
	"Corexia/internal/services/agents"
	"Corexia/internal/services/analytics"
	"Corexia/internal/services/broker"
	"Corexia/internal/usecase"
	"Corexia/pkg/cache"
	pkgch "Corexia/pkg/clickhouse"
	"Corexia/pkg/config"
	xhttp "Corexia/pkg/http"
	pkgkafka "Corexia/pkg/kafka"
	applogger "Corexia/pkg/logger"
	"Corexia/pkg/metrics"
	"Corexia/pkg/queue"
	"Corexia/pkg/server"
)

func memoryBackend(cfg *config.Config) bool { return cfg.Backend.Type == usecase.BackendMemory }
func redisState(cfg *config.Config) bool    { return cfg.Backend.State == "redis" }

// ProvideKafkaProducer creates a Kafka producer, or nil when no brokers are configured.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, func(), error) {
	if len(cfg.Kafka.Brokers) == 0 {
		return nil, func() {}, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatching(cfg.Kafka.Producer.BatchSize, cfg.Kafka.Producer.Linger),
		pkgkafka.WithWriteTimeout(cfg.Kafka.Producer.WriteTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, func() { _ = producer.Close() }, nil
}

// ProvideLogger builds the app logger. With Kafka available, repeated
// error records are aggregated and shipped to the log topic.
func ProvideLogger(cfg *config.Config, producer *pkgkafka.Producer) (*applogger.Logger, func(), error) {
	l, err := applogger.New(&applogger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("logger: %w", err)
	}
	if producer == nil || cfg.Kafka.LogTopic == "" {
		return l, func() {}, nil
	}
	l.AddCollector(&applogger.CollectionConfig{
		TimeInterval:   30 * time.Second,
		CountThreshold: 100,
		Topic:          cfg.Kafka.LogTopic,
		Source:         "corexia",
		IncludeWarn:    true,
		Publisher:      producer,
	})
	return l, l.RemoveCollector, nil
}

// ProvideMetrics registers the Prometheus collectors on the default registry.
func ProvideMetrics() domrepo.Metrics {
	jobmetrics.Register()
	return metrics.New(prometheus.DefaultRegisterer)
}

// ProvideClickHouseClient opens ClickHouse and applies the schema. The
// memory backend runs without it.
func ProvideClickHouseClient(cfg *config.Config, l *applogger.Logger) (*pkgch.Client, func(), error) {
	if memoryBackend(cfg) {
		return nil, func() {}, nil
	}
	client, err := pkgch.NewClient(
		pkgch.WithAddr(cfg.ClickHouse.Host, cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, false),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("clickhouse client: %w", err)
	}

	if cfg.ClickHouse.Migrate {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := client.InitSchema(ctx, pkgch.Schema(cfg.ClickHouse.Database)); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("clickhouse schema: %w", err)
		}
	}
	l.Info("clickhouse ready", applogger.String("database", cfg.ClickHouse.Database))
	return client, func() { _ = client.Close() }, nil
}

// ProvideRedisClient creates the Redis client used for state, locks, cache and the job queue.
func ProvideRedisClient(cfg *config.Config) (redis.UniversalClient, func()) {
	if !redisState(cfg) && cfg.Queue.Mode != "redis" {
		return nil, func() {}
	}
	cli := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:    []string{cfg.Redis.Addr},
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	return cli, func() { _ = cli.Close() }
}

// ProvideCache layers an in-process cache over Redis; locks always go to Redis.
func ProvideCache(cfg *config.Config, cli redis.UniversalClient) (cache.Service, func()) {
	var c interface {
		cache.Service
		Close() error
	}
	if cli == nil {
		c = cache.NewMemoryCache()
	} else {
		c = cache.NewLayeredCache(cache.NewRedisCache(cli, cache.WithRedisPrefix(cfg.Redis.KeyPrefix)))
	}
	return c, func() { _ = c.Close() }
}

func ProvideTimeframes(cfg *config.Config) ([]models.Timeframe, error) {
	return domrepo.ParseTimeframes(cfg.Indicators.Timeframes)
}

// ProvideHTTPIndicatorSource builds the indicator service client. It serves
// indicator bundles and daily candles.
func ProvideHTTPIndicatorSource(cfg *config.Config, m domrepo.Metrics, l *applogger.Logger) *analytics.HTTPIndicatorSource {
	base := analytics.NewHTTPServiceBase(analytics.BaseConfig{
		BaseURL:       cfg.Indicators.BaseURL,
		Timeout:       cfg.Indicators.Timeout,
		MaxRetries:    cfg.Indicators.MaxRetries,
		RetryBackoff:  cfg.Indicators.RetryBackoff,
		RatePerSecond: cfg.Indicators.RatePerSecond,
		Burst:         cfg.Indicators.Burst,
		BreakerTrips:  cfg.Indicators.BreakerTrips,
		BreakerOpen:   cfg.Indicators.BreakerOpen,
	}, l)
	return analytics.NewHTTPIndicatorSource(base, m, l)
}

// ProvideIndicatorSource puts the daily bundle cache in front of the indicator client.
func ProvideIndicatorSource(cfg *config.Config, src *analytics.HTTPIndicatorSource, c cache.Service) domrepo.IndicatorSource {
	return analytics.NewCachedIndicatorSource(src, c, cfg.Indicators.CacheTTL)
}

func ProvideArchive(ch *pkgch.Client, l *applogger.Logger) domrepo.ArchiveStore {
	if ch == nil {
		return internalrepo.NewMemoryArchive()
	}
	return internalrepo.NewCHArchive(ch, l)
}

func ProvideCandleStore(ch *pkgch.Client, l *applogger.Logger) domrepo.CandleRepository {
	if ch == nil {
		return internalrepo.NewMemoryCandleStore()
	}
	return internalrepo.NewCHCandleStore(ch, l)
}

func ProvideDecisionStore(ch *pkgch.Client) domrepo.DecisionLogStore {
	if ch == nil {
		return internalrepo.NewMemoryDecisionLog()
	}
	return internalrepo.NewCHDecisionLog(ch)
}

func ProvidePerformanceHistory(ch *pkgch.Client) domrepo.PerformanceHistory {
	if ch == nil {
		return nil
	}
	return internalrepo.NewCHPerformanceHistory(ch)
}

func ProvideAgentState(cfg *config.Config, cli redis.UniversalClient) domrepo.AgentStateStore {
	if cli == nil || !redisState(cfg) {
		return internalrepo.NewMemoryAgentState()
	}
	return internalrepo.NewRedisAgentState(cli, cfg.Redis.KeyPrefix)
}

// ProvideDecisionPublisher is only set for the kafka backend.
func ProvideDecisionPublisher(cfg *config.Config, producer *pkgkafka.Producer) domrepo.DecisionPublisher {
	if cfg.Backend.Type != usecase.BackendKafka || producer == nil {
		return nil
	}
	return internalrepo.NewKafkaDecisionPublisher(producer, cfg.Kafka.DecisionTopic)
}

func ProvideMarketContextBuilder(src domrepo.IndicatorSource, archive domrepo.ArchiveStore, tfs []models.Timeframe, m domrepo.Metrics, l *applogger.Logger) *usecase.MarketContextBuilder {
	return usecase.NewMarketContextBuilder(src, archive, tfs, m, l)
}

// ProvideAgents builds the enabled agents in configured order.
func ProvideAgents(cfg *config.Config) ([]service.Agent, error) {
	profiles, err := agents.LoadAgents(cfg)
	if err != nil {
		return nil, err
	}
	out := make([]service.Agent, 0, len(profiles))
	for _, p := range profiles {
		a, err := agents.New(p.Kind, p)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

func ProvideBroker(state domrepo.AgentStateStore) service.Broker {
	return broker.NewPaperBroker(state)
}

func ProvideDecisionRecorder(cfg *config.Config, pub domrepo.DecisionPublisher, store domrepo.DecisionLogStore, m domrepo.Metrics, l *applogger.Logger) *usecase.DecisionRecorder {
	return usecase.NewDecisionRecorder(pub, store, m, cfg.Backend.Type, l)
}

// ProvideDecisionPipeline buffers decision logs while the backend is unavailable.
func ProvideDecisionPipeline(rec *usecase.DecisionRecorder, m domrepo.Metrics, l *applogger.Logger) *mid.DecisionPipeline {
	return mid.NewDecisionPipeline(rec, m, l,
		mid.WithBufferSize(1000),
		mid.WithBackoff(100*time.Millisecond, 5*time.Second),
	)
}

func ProvidePerformanceUpdater(cfg *config.Config, state domrepo.AgentStateStore, history domrepo.PerformanceHistory, m domrepo.Metrics) *usecase.PerformanceUpdater {
	return usecase.NewPerformanceUpdater(state, history, m, cfg.Agents.StartingCapital)
}

func ProvideOrchestrator(
	builder *usecase.MarketContextBuilder,
	registry []service.Agent,
	state domrepo.AgentStateStore,
	b service.Broker,
	pipe *mid.DecisionPipeline,
	perf *usecase.PerformanceUpdater,
	m domrepo.Metrics,
	l *applogger.Logger,
) *usecase.CycleOrchestrator {
	return usecase.NewCycleOrchestrator(builder, registry, state, b, pipe, perf, m, l)
}

func ProvideRunGuard(orch *usecase.CycleOrchestrator, c cache.Service) *usecase.RunGuard {
	return usecase.NewRunGuard(orch, c, 10*time.Minute)
}

// ProvideFinnhubFeed returns nil unless the live price feed is enabled.
func ProvideFinnhubFeed(cfg *config.Config, l *applogger.Logger) *pricefeed.FinnhubFeed {
	if !cfg.PriceFeed.Enabled {
		return nil
	}
	return pricefeed.NewFinnhubFeed(
		cfg.PriceFeed.APIKey,
		cfg.PriceFeed.URL,
		cfg.Agents.Symbols,
		cfg.PriceFeed.ReconnectDelay,
		cfg.PriceFeed.PingInterval,
		l,
		pricefeed.WithSessionLocation(sessionLocation(cfg)),
	)
}

// sessionLocation is the scheduler zone, or UTC when it does not load.
func sessionLocation(cfg *config.Config) *time.Location {
	loc, err := time.LoadLocation(cfg.Scheduler.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func ProvideQueryService(
	registry []service.Agent,
	state domrepo.AgentStateStore,
	archive domrepo.ArchiveStore,
	decisions domrepo.DecisionLogStore,
	feed *pricefeed.FinnhubFeed,
) *usecase.QueryService {
	var pf service.PriceFeed
	if feed != nil {
		pf = feed
	}
	return usecase.NewQueryService(registry, state, archive, decisions, pf)
}

func ProvidePositionCloser(b service.Broker, state domrepo.AgentStateStore, perf *usecase.PerformanceUpdater, feed *pricefeed.FinnhubFeed, l *applogger.Logger) *usecase.PositionCloser {
	var pf service.PriceFeed
	if feed != nil {
		pf = feed
	}
	return usecase.NewPositionCloser(b, state, perf, pf, l)
}

func ProvideCandlesUseCase(store domrepo.CandleRepository) *usecase.CandlesUseCase {
	return usecase.NewCandlesUseCase(store)
}

func ProvideSnapshotJob(cfg *config.Config, builder *usecase.MarketContextBuilder, archive domrepo.ArchiveStore, l *applogger.Logger) *usecase.SnapshotJob {
	return usecase.NewSnapshotJob(builder, archive, cfg.Scheduler.SnapshotSymbols, cfg.Scheduler.VolSymbol, l)
}

func ProvideBackfillJob(cfg *config.Config, archive domrepo.ArchiveStore, candles domrepo.CandleRepository, l *applogger.Logger) *usecase.BackfillJob {
	return usecase.NewBackfillJob(archive, candles, cfg.Scheduler.SnapshotSymbols, l)
}

// ProvideCandleIngestJob reads daily bars from the indicator service, then
// from the live feed's trade-built bars for days the service lacks.
func ProvideCandleIngestJob(cfg *config.Config, src *analytics.HTTPIndicatorSource, feed *pricefeed.FinnhubFeed, store domrepo.CandleRepository, l *applogger.Logger) *usecase.CandleIngestJob {
	sources := []domrepo.CandleSource{src}
	if feed != nil {
		sources = append(sources, feed)
	}
	return usecase.NewCandleIngestJob(store, cfg.Scheduler.SnapshotSymbols, cfg.Scheduler.IngestDays, l, sources...)
}

// ProvideJobs lists every queue job the service runs.
func ProvideJobs(cfg *config.Config, guard *usecase.RunGuard, snap *usecase.SnapshotJob, ingest *usecase.CandleIngestJob, backfill *usecase.BackfillJob, l *applogger.Logger) []queue.Job {
	return []queue.Job{
		usecase.NewAgentRunJob(guard, cfg.Agents.Symbols[0], l),
		usecase.NewSnapshotQueueJob(snap, l),
		usecase.NewCandleIngestQueueJob(ingest, l),
		usecase.NewBackfillQueueJob(backfill, l),
	}
}

func ProvideQueue(cfg *config.Config, cli redis.UniversalClient, jobs []queue.Job, l *applogger.Logger) queue.Worker {
	qc := &queue.QueueConfig{
		Workers:      cfg.Queue.Workers,
		RetryLimit:   cfg.Queue.RetryLimit,
		RetryDelay:   cfg.Queue.RetryDelay,
		PollInterval: cfg.Queue.PollInterval,
		KeyPrefix:    cfg.Redis.KeyPrefix + ":queue",
	}
	if cfg.Queue.Mode == "redis" && cli != nil {
		return queue.NewRedisConsumer(l, qc, cli, jobs)
	}
	return queue.NewInlineQueue(l, qc, jobs)
}

// ProvideScheduler fires the close-of-day run per symbol, then the
// snapshot, the candle ingest and the backfill. It returns nil when scheduling is disabled.
func ProvideScheduler(cfg *config.Config, q queue.Worker, c cache.Service, l *applogger.Logger) (*scheduler.Scheduler, error) {
	if !cfg.Scheduler.Enabled {
		return nil, nil
	}
	loc, err := time.LoadLocation(cfg.Scheduler.Timezone)
	if err != nil {
		return nil, fmt.Errorf("scheduler timezone: %w", err)
	}

	var entries []scheduler.Entry
	for _, sym := range cfg.Agents.Symbols {
		e, err := scheduler.EntryAt("agent_run:"+sym, cfg.Scheduler.RunAt, usecase.JobAgentRun, usecase.RunPayload{Symbol: sym})
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	snap, err := scheduler.EntryAt(usecase.JobSnapshot, cfg.Scheduler.SnapshotAt, usecase.JobSnapshot, nil)
	if err != nil {
		return nil, err
	}
	ingest, err := scheduler.EntryAt(usecase.JobCandleIngest, cfg.Scheduler.IngestAt, usecase.JobCandleIngest, nil)
	if err != nil {
		return nil, err
	}
	backfill, err := scheduler.EntryAt(usecase.JobBackfill, cfg.Scheduler.BackfillAt, usecase.JobBackfill, nil)
	if err != nil {
		return nil, err
	}
	entries = append(entries, snap, ingest, backfill)
	return scheduler.New(q, c, loc, entries, l), nil
}

func ProvideHTTPServer(cfg *config.Config, l *applogger.Logger, guard *usecase.RunGuard, query *usecase.QueryService, candles *usecase.CandlesUseCase, closer *usecase.PositionCloser) *xhttp.Server {
	limiter := ratelimit.New(cfg.RateLimit.RunCapacity, cfg.RateLimit.RunRefillPerSec)
	h := api.NewAgentsEchoHandler(l, guard, query, candles, closer, limiter)

	metricsPath := ""
	if cfg.Metrics.Enabled {
		metricsPath = cfg.Metrics.Path
	}
	return xhttp.NewServer(l, []xhttp.Handler{h},
		xhttp.WithAddr("0.0.0.0", cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithMetricsPath(metricsPath),
	)
}

// ProvideKafkaConsumer is only set for the kafka backend, where it drains
// the decision topic into ClickHouse.
func ProvideKafkaConsumer(cfg *config.Config, l *applogger.Logger) (*pkgkafka.Consumer, error) {
	if cfg.Backend.Type != usecase.BackendKafka {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(l,
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	consumer.WithHook(pkgkafka.LoggingHook{L: l, Slow: time.Second})
	return consumer, nil
}

func ProvideDecisionLogHandler(cfg *config.Config, store domrepo.DecisionLogStore, m domrepo.Metrics) *usecase.DecisionLogHandler {
	return usecase.NewDecisionLogHandler(cfg.Kafka.DecisionTopic, store, m)
}

func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	srv *xhttp.Server,
	q queue.Worker,
	jobs []queue.Job,
	sched *scheduler.Scheduler,
	consumer *pkgkafka.Consumer,
	handler *usecase.DecisionLogHandler,
	feed *pricefeed.FinnhubFeed,
	pipe *mid.DecisionPipeline,
) *server.App {
	return server.New(cfg, l, server.Components{
		HTTP:      srv,
		Queue:     q,
		Jobs:      jobs,
		Scheduler: sched,
		Consumer:  consumer,
		Handler:   handler,
		Feed:      feed,
		Pipeline:  pipe,
	})
}

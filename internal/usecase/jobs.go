package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"Corexia/internal/domain/models"
	jobmetrics "Corexia/internal/service/metrics"
	applogger "Corexia/pkg/logger"
	"Corexia/pkg/queue"
)

// Queue message types.
const (
	JobAgentRun     = "agent_run"
	JobSnapshot     = "snapshot"
	JobCandleIngest = "candle_ingest"
	JobBackfill     = "backfill"
)

// RunPayload is the agent_run message body.
type RunPayload struct {
	Symbol string `json:"symbol"`
}

// AgentRunner runs every agent for one symbol.
type AgentRunner interface {
	RunAll(ctx context.Context, symbol string) ([]models.CycleResult, error)
}

type agentRunJob struct {
	runner        AgentRunner
	defaultSymbol string
	log           *applogger.Logger
}

// NewAgentRunJob runs all agents for the payload symbol. A run already in
// progress for that symbol is skipped, not retried. A run that fails after
// some agent reached a decision is not retried either.
func NewAgentRunJob(runner AgentRunner, defaultSymbol string, l *applogger.Logger) queue.Job {
	return &agentRunJob{runner: runner, defaultSymbol: defaultSymbol, log: l}
}

func (j *agentRunJob) Name() string { return "agent run" }
func (j *agentRunJob) Type() string { return JobAgentRun }

func (j *agentRunJob) Handle(ctx context.Context, payload json.RawMessage) error {
	began := time.Now()
	p, err := queue.Decode[RunPayload](payload)
	if err != nil {
		jobmetrics.ObserveJob(JobAgentRun, "error", time.Since(began))
		return queue.Permanent(err)
	}
	if p.Symbol == "" {
		p.Symbol = j.defaultSymbol
	}

	results, err := j.runner.RunAll(ctx, p.Symbol)
	switch {
	case errors.Is(err, ErrRunInProgress):
		jobmetrics.ObserveJob(JobAgentRun, "skipped", time.Since(began))
		j.log.Info("agent run skipped", applogger.String("symbol", p.Symbol))
		return nil
	case err != nil:
		jobmetrics.ObserveJob(JobAgentRun, "error", time.Since(began))
		err = fmt.Errorf("agent run %s: %w", p.Symbol, err)
		if decided(results) {
			// a retry would run agents that already have a decision for this session
			j.log.Error("agent run interrupted",
				applogger.String("symbol", p.Symbol),
				applogger.Int("cycles", len(results)),
				applogger.Error(err),
			)
			return queue.Permanent(err)
		}
		return err
	}
	jobmetrics.ObserveJob(JobAgentRun, "ok", time.Since(began))

	counts := map[models.Branch]int{}
	for _, r := range results {
		counts[r.Log.Branch]++
	}
	j.log.Info("agent run finished",
		applogger.String("symbol", p.Symbol),
		applogger.Int("cycles", len(results)),
		applogger.Int("executed", counts[models.BranchExecuted]),
		applogger.Int("failed", counts[models.BranchFailed]),
		applogger.Duration("took", time.Since(began)),
	)
	return nil
}

// decided reports whether any agent reached a terminal decision branch.
func decided(results []models.CycleResult) bool {
	for _, r := range results {
		if r.Log.Branch != models.BranchFailed {
			return true
		}
	}
	return false
}

type snapshotJob struct {
	job *SnapshotJob
	log *applogger.Logger
}

func NewSnapshotQueueJob(job *SnapshotJob, l *applogger.Logger) queue.Job {
	return &snapshotJob{job: job, log: l}
}

func (j *snapshotJob) Name() string { return "daily snapshot" }
func (j *snapshotJob) Type() string { return JobSnapshot }

func (j *snapshotJob) Handle(ctx context.Context, _ json.RawMessage) error {
	began := time.Now()
	report, err := j.job.Run(ctx)
	if err != nil {
		jobmetrics.ObserveJob(JobSnapshot, "error", time.Since(began))
		return err
	}
	jobmetrics.ObserveJob(JobSnapshot, "ok", time.Since(began))

	stored := 0
	for _, r := range report.Results {
		if r.Stored {
			stored++
		}
	}
	j.log.Info("snapshot finished",
		applogger.Time("date", report.Date),
		applogger.Int("symbols", len(report.Results)),
		applogger.Int("stored", stored),
		applogger.String("narrative", report.Narrative),
	)
	return nil
}

type backfillJob struct {
	job *BackfillJob
	log *applogger.Logger
}

func NewBackfillQueueJob(job *BackfillJob, l *applogger.Logger) queue.Job {
	return &backfillJob{job: job, log: l}
}

func (j *backfillJob) Name() string { return "outcome backfill" }
func (j *backfillJob) Type() string { return JobBackfill }

func (j *backfillJob) Handle(ctx context.Context, _ json.RawMessage) error {
	began := time.Now()
	reports, err := j.job.Run(ctx)
	if err != nil {
		jobmetrics.ObserveJob(JobBackfill, "error", time.Since(began))
		return err
	}
	jobmetrics.ObserveJob(JobBackfill, "ok", time.Since(began))

	updated := 0
	for _, r := range reports {
		updated += r.Updated
	}
	j.log.Info("backfill finished",
		applogger.Int("symbols", len(reports)),
		applogger.Int("updated", updated),
	)
	return nil
}

type candleIngestJob struct {
	job *CandleIngestJob
	log *applogger.Logger
}

func NewCandleIngestQueueJob(job *CandleIngestJob, l *applogger.Logger) queue.Job {
	return &candleIngestJob{job: job, log: l}
}

func (j *candleIngestJob) Name() string { return "candle ingest" }
func (j *candleIngestJob) Type() string { return JobCandleIngest }

func (j *candleIngestJob) Handle(ctx context.Context, _ json.RawMessage) error {
	began := time.Now()
	reports, err := j.job.Run(ctx)
	if err != nil {
		jobmetrics.ObserveJob(JobCandleIngest, "error", time.Since(began))
		return err
	}
	jobmetrics.ObserveJob(JobCandleIngest, "ok", time.Since(began))

	stored, failed := 0, 0
	for _, r := range reports {
		stored += r.Stored
		if r.Error != "" {
			failed++
		}
	}
	j.log.Info("candle ingest finished",
		applogger.Int("symbols", len(reports)),
		applogger.Int("bars", stored),
		applogger.Int("failed", failed),
	)
	return nil
}

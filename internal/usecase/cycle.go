package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"Corexia/internal/domain/models"
	domrepo "Corexia/internal/domain/repository"
	"Corexia/internal/domain/service"
	"Corexia/internal/services/agents"
	"Corexia/internal/services/risk"
	applogger "Corexia/pkg/logger"
)

// CycleOrchestrator runs agents against a market context. Every cycle ends on
// exactly one branch and writes exactly one decision log, including cycles
// that fail or panic.
type CycleOrchestrator struct {
	builder  *MarketContextBuilder
	agents   []service.Agent
	state    domrepo.AgentStateStore
	broker   service.Broker
	recorder DecisionSink
	perf     *PerformanceUpdater
	metrics  domrepo.Metrics
	log      *applogger.Logger

	now   func() time.Time
	newID func() string
}

type CycleOption func(*CycleOrchestrator)

// WithCycleClock overrides the timestamp source for logs and positions.
func WithCycleClock(now func() time.Time) CycleOption {
	return func(o *CycleOrchestrator) { o.now = now }
}

// WithCycleIDs overrides run and decision ID generation.
func WithCycleIDs(newID func() string) CycleOption {
	return func(o *CycleOrchestrator) { o.newID = newID }
}

func NewCycleOrchestrator(
	builder *MarketContextBuilder,
	registry []service.Agent,
	state domrepo.AgentStateStore,
	broker service.Broker,
	recorder DecisionSink,
	perf *PerformanceUpdater,
	metrics domrepo.Metrics,
	l *applogger.Logger,
	opts ...CycleOption,
) *CycleOrchestrator {
	o := &CycleOrchestrator{
		builder:  builder,
		agents:   registry,
		state:    state,
		broker:   broker,
		recorder: recorder,
		perf:     perf,
		metrics:  metrics,
		log:      l,
		now:      func() time.Time { return time.Now().UTC() },
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Agents returns the registered agents in run order.
func (o *CycleOrchestrator) Agents() []service.Agent { return o.agents }

// Classify is the read-only regime query. It runs no agent and writes nothing.
func (o *CycleOrchestrator) Classify(ctx context.Context, symbol string) (models.RegimeSnapshot, error) {
	return o.builder.Classify(ctx, symbol)
}

// MarketContext builds the full context agents would see for symbol.
func (o *CycleOrchestrator) MarketContext(ctx context.Context, symbol string) (models.MarketContext, error) {
	return o.builder.Build(ctx, symbol)
}

// RunAgentCycle builds the market context for symbol and runs one agent on it.
func (o *CycleOrchestrator) RunAgentCycle(ctx context.Context, a service.Agent, symbol string) models.CycleResult {
	runID := o.newID()
	mc, err := o.builder.Build(ctx, symbol)
	if err != nil {
		return o.failUnbuilt(ctx, runID, a, symbol, err)
	}
	return o.runCycle(ctx, runID, a, mc)
}

// RunAll builds the context once and runs every agent on it in sequence.
// When the context cannot be built, or ctx ends partway through, every
// agent that did not run still gets a failed log and the error is returned
// alongside the results.
func (o *CycleOrchestrator) RunAll(ctx context.Context, symbol string) ([]models.CycleResult, error) {
	runID := o.newID()
	results := make([]models.CycleResult, 0, len(o.agents))

	mc, err := o.builder.Build(ctx, symbol)
	if err != nil {
		for _, a := range o.agents {
			results = append(results, o.failUnbuilt(ctx, runID, a, symbol, err))
		}
		return results, fmt.Errorf("build market context %s: %w", symbol, err)
	}

	o.log.Info("agent run started",
		applogger.String("run_id", runID),
		applogger.String("symbol", symbol),
		applogger.String("state", string(mc.Snapshot.State)),
		applogger.String("drift", string(mc.Drift.Level)),
		applogger.Int("agents", len(o.agents)),
	)
	for i, a := range o.agents {
		if err := ctx.Err(); err != nil {
			// the remaining logs are written even though the caller is gone
			wctx := context.WithoutCancel(ctx)
			aborted := fmt.Errorf("run aborted: %w", err)
			for _, rest := range o.agents[i:] {
				results = append(results, o.fail(wctx, o.contextEntry(runID, rest.Profile().ID, mc), aborted))
			}
			return results, fmt.Errorf("run %s: %w", runID, err)
		}
		results = append(results, o.runCycle(ctx, runID, a, mc))
	}
	return results, nil
}

func (o *CycleOrchestrator) runCycle(ctx context.Context, runID string, a service.Agent, mc models.MarketContext) (res models.CycleResult) {
	began := time.Now()
	p := a.Profile()
	entry := o.contextEntry(runID, p.ID, mc)

	// logged is set before the log write so a panic inside it is not recorded twice
	logged := false
	finish := func(d *models.Decision, pos *models.Position) models.CycleResult {
		logged = true
		return o.finish(ctx, entry, d, pos)
	}
	fail := func(err error) models.CycleResult {
		logged = true
		return o.fail(ctx, entry, err)
	}

	defer func() {
		if r := recover(); r != nil {
			if logged {
				o.log.Error("agent cycle panicked after logging",
					applogger.String("agent", p.ID),
					applogger.String("branch", string(entry.Branch)),
					applogger.Any("panic", r),
				)
				if res.Log.ID == "" {
					res = models.CycleResult{Log: entry, Err: fmt.Sprintf("panic: %v", r)}
				}
			} else {
				res = fail(fmt.Errorf("panic: %v", r))
			}
		}
		o.metrics.RecordCycleDuration(p.ID, time.Since(began).Seconds())
	}()

	entry.Interpretation = a.Interpret(mc)

	if ok, reason := agents.Allowed(p, mc); !ok {
		entry.Branch = models.BranchGateBlocked
		entry.Intent = models.IntentGateBlocked
		entry.BlockedReason = reason
		return finish(nil, nil)
	}

	out := a.Decide(mc)
	switch {
	case out.Blocked():
		entry.Branch = models.BranchDecisionBlocked
		entry.Intent = models.IntentDecisionBlocked
		entry.BlockedReason = out.BlockReason
		entry.Confidence = mc.Similarity.Confidence
		return finish(nil, nil)
	case out.Abstained():
		entry.Branch = models.BranchAbstained
		entry.Intent = models.IntentAbstained
		entry.ProposedAction = string(models.ActionFlat)
		entry.Confidence = mc.Similarity.Confidence
		return finish(nil, nil)
	}

	d := *out.Decision
	entry.Intent = d.Rationale
	entry.ProposedAction = fmt.Sprintf("%s %s", d.Action, d.Symbol)
	entry.SizePct = d.SizePct
	entry.Confidence = d.Confidence

	st, err := o.state.RuntimeState(ctx, p.ID, entry.Timestamp, max(p.CooldownAfterLosses, 1))
	if err != nil {
		return fail(fmt.Errorf("load runtime state: %w", err))
	}
	if verdict := risk.Check(p, st, d); !verdict.Allowed {
		entry.Branch = models.BranchRiskBlocked
		entry.BlockedReason = verdict.Reason
		return finish(&d, nil)
	}

	pos, err := o.broker.Execute(ctx, p.ID, d, mc.Snapshot.CurrentPrice, entry.Timestamp)
	if err != nil {
		return fail(fmt.Errorf("execute %s: %w", d.Action, err))
	}
	entry.Branch = models.BranchExecuted
	res = finish(&d, &pos)

	if _, err := o.perf.Update(ctx, p.ID, entry.Timestamp); err != nil {
		o.metrics.RecordPersistenceWarning("update_performance")
		o.log.Warn("performance update failed",
			applogger.String("agent", p.ID),
			applogger.Error(err),
		)
	}
	return res
}

// contextEntry starts a log carrying the market context every agent saw.
func (o *CycleOrchestrator) contextEntry(runID, agentID string, mc models.MarketContext) models.DecisionLog {
	entry := o.entry(runID, agentID, mc.Snapshot.Symbol)
	entry.MarketState = string(mc.Snapshot.State)
	entry.Friction = string(mc.Snapshot.Friction)
	entry.Drift = string(mc.Drift.Level)
	entry.MarketSpine = mc.Spine
	return entry
}

func (o *CycleOrchestrator) entry(runID, agentID, symbol string) models.DecisionLog {
	return models.DecisionLog{
		ID:        o.newID(),
		RunID:     runID,
		AgentID:   agentID,
		Symbol:    symbol,
		Timestamp: o.now(),
	}
}

func (o *CycleOrchestrator) failUnbuilt(ctx context.Context, runID string, a service.Agent, symbol string, err error) models.CycleResult {
	began := time.Now()
	id := a.Profile().ID
	res := o.fail(ctx, o.entry(runID, id, symbol), err)
	o.metrics.RecordCycleDuration(id, time.Since(began).Seconds())
	return res
}

func (o *CycleOrchestrator) fail(ctx context.Context, entry models.DecisionLog, err error) models.CycleResult {
	entry.Branch = models.BranchFailed
	entry.Intent = models.IntentFailed
	entry.ProposedAction = ""
	entry.BlockedReason = err.Error()
	entry.SizePct = 0
	o.log.Error("agent cycle failed",
		applogger.String("agent", entry.AgentID),
		applogger.String("symbol", entry.Symbol),
		applogger.String("run_id", entry.RunID),
		applogger.Error(err),
	)
	res := o.finish(ctx, entry, nil, nil)
	res.Err = err.Error()
	return res
}

// finish records the log for the branch already set on entry.
func (o *CycleOrchestrator) finish(ctx context.Context, entry models.DecisionLog, d *models.Decision, pos *models.Position) models.CycleResult {
	if err := o.recorder.Record(ctx, entry); err != nil {
		o.log.Warn("decision log not persisted",
			applogger.String("agent", entry.AgentID),
			applogger.String("branch", string(entry.Branch)),
			applogger.Error(err),
		)
	}
	o.metrics.RecordCycle(entry.AgentID, entry.Branch)
	if entry.Branch != models.BranchFailed {
		o.log.Info("agent cycle",
			applogger.String("agent", entry.AgentID),
			applogger.String("symbol", entry.Symbol),
			applogger.String("branch", string(entry.Branch)),
			applogger.String("intent", entry.Intent),
			applogger.String("blocked_reason", entry.BlockedReason),
			applogger.Float64("confidence", entry.Confidence),
		)
	}
	return models.CycleResult{Log: entry, Decision: d, Position: pos}
}

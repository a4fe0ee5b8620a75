package middleware

import (
	"context"
	"fmt"
	"sync"
	"time"

	"Corexia/internal/domain/models"
	domrepo "Corexia/internal/domain/repository"
	applogger "Corexia/pkg/logger"
)

// Sink is the downstream writer the pipeline protects.
type Sink interface {
	Record(ctx context.Context, rec models.DecisionLog) error
}

// DecisionPipeline sits between the orchestrator and the decision store.
// It validates each log, forwards it, and buffers it for background retry
// when the downstream write fails.
type DecisionPipeline struct {
	sink    Sink
	metrics domrepo.Metrics
	log     *applogger.Logger
	bufCh   chan models.DecisionLog
	stopCh  chan struct{}
	done    chan struct{}
	started bool
	mu      sync.Mutex

	backoffMin time.Duration
	backoffMax time.Duration
}

type PipelineOption func(*DecisionPipeline)

// WithBufferSize sets how many logs are held while downstream is unavailable.
func WithBufferSize(n int) PipelineOption {
	return func(p *DecisionPipeline) {
		if n > 0 {
			p.bufCh = make(chan models.DecisionLog, n)
		}
	}
}

// WithBackoff sets the retry delay bounds for buffered logs.
func WithBackoff(min, max time.Duration) PipelineOption {
	return func(p *DecisionPipeline) {
		if min > 0 && max >= min {
			p.backoffMin, p.backoffMax = min, max
		}
	}
}

func NewDecisionPipeline(sink Sink, metrics domrepo.Metrics, l *applogger.Logger, opts ...PipelineOption) *DecisionPipeline {
	p := &DecisionPipeline{
		sink:       sink,
		metrics:    metrics,
		log:        l,
		bufCh:      make(chan models.DecisionLog, 1000),
		stopCh:     make(chan struct{}),
		done:       make(chan struct{}),
		backoffMin: 50 * time.Millisecond,
		backoffMax: 2 * time.Second,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start launches background flushing of buffered logs.
func (p *DecisionPipeline) Start(ctx context.Context) {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.mu.Unlock()

	go func() {
		defer close(p.done)
		backoff := p.backoffMin
		for {
			select {
			case <-p.stopCh:
				return
			case <-ctx.Done():
				return
			case rec := <-p.bufCh:
				if err := p.sink.Record(ctx, rec); err != nil {
					p.metrics.RecordPersistenceWarning("pipeline_flush")
					backoff = min(backoff*2, p.backoffMax)
					select {
					case <-time.After(backoff):
					case <-p.stopCh:
						p.requeue(rec)
						return
					}
					p.requeue(rec)
					continue
				}
				backoff = p.backoffMin
			}
		}
	}()
}

// Stop halts background flushing and makes one last attempt at every buffered log.
func (p *DecisionPipeline) Stop(ctx context.Context) {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}
	p.started = false
	p.mu.Unlock()
	close(p.stopCh)
	<-p.done

	for {
		select {
		case rec := <-p.bufCh:
			if err := p.sink.Record(ctx, rec); err != nil {
				p.metrics.RecordPersistenceWarning("pipeline_drop")
				p.log.Error("decision log dropped on shutdown",
					applogger.String("id", rec.ID),
					applogger.String("agent", rec.AgentID),
					applogger.Error(err),
				)
			}
		default:
			return
		}
	}
}

// Record validates and forwards rec. A failed write that fits in the buffer
// is retried in the background and reported as success.
func (p *DecisionPipeline) Record(ctx context.Context, rec models.DecisionLog) error {
	if err := validateLog(rec); err != nil {
		p.metrics.RecordPersistenceWarning("pipeline_validate")
		return err
	}
	err := p.sink.Record(ctx, rec)
	if err == nil {
		return nil
	}

	select {
	case p.bufCh <- rec:
		p.metrics.RecordPersistenceWarning("pipeline_buffered")
		p.log.Warn("decision log buffered",
			applogger.String("id", rec.ID),
			applogger.Int("depth", len(p.bufCh)),
			applogger.Error(err),
		)
		return nil
	default:
		p.metrics.RecordPersistenceWarning("pipeline_buffer_full")
		return fmt.Errorf("pipeline downstream: %w", err)
	}
}

// Depth is the number of logs waiting for retry.
func (p *DecisionPipeline) Depth() int { return len(p.bufCh) }

func (p *DecisionPipeline) requeue(rec models.DecisionLog) {
	select {
	case p.bufCh <- rec:
	default:
		p.metrics.RecordPersistenceWarning("pipeline_buffer_drop")
	}
}

func validateLog(rec models.DecisionLog) error {
	if rec.ID == "" {
		return fmt.Errorf("decision log id empty")
	}
	if rec.AgentID == "" {
		return fmt.Errorf("decision log agent empty")
	}
	if rec.Branch == "" {
		return fmt.Errorf("decision log branch empty")
	}
	if rec.Timestamp.IsZero() {
		return fmt.Errorf("decision log timestamp missing")
	}
	return nil
}

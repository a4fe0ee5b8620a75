package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"Corexia/pkg/logger"
)

// InlineQueue runs jobs in a goroutine per message without external storage.
// Failed messages are retried in process up to RetryLimit times.
type InlineQueue struct {
	logger *logger.Logger
	config *QueueConfig
	jobs   map[string]Job
	mu     sync.RWMutex
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

func NewInlineQueue(lgr *logger.Logger, config *QueueConfig, jobs []Job) *InlineQueue {
	if config == nil {
		config = &QueueConfig{}
	}
	ctx, cancel := context.WithCancel(context.Background())
	q := &InlineQueue{
		logger: lgr,
		config: config,
		jobs:   make(map[string]Job),
		ctx:    ctx,
		cancel: cancel,
	}
	for _, j := range jobs {
		q.jobs[j.Type()] = j
	}
	return q
}

func (q *InlineQueue) PublishMessage(ctx context.Context, msgType string, payload interface{}) error {
	q.mu.RLock()
	job, ok := q.jobs[msgType]
	q.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoJob, msgType)
	}
	raw, err := encodePayload(payload)
	if err != nil {
		return err
	}

	msg := Message{ID: uuid.NewString(), Type: msgType, Payload: raw, Timestamp: time.Now()}
	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		for {
			err := job.Handle(q.ctx, msg.Payload)
			if err == nil || q.ctx.Err() != nil {
				return
			}
			q.logger.Error("inline job failed",
				logger.String("id", msg.ID),
				logger.String("job", job.Name()),
				logger.Int("attempt", msg.Attempts+1),
				logger.Error(err))
			if msg.Attempts >= q.config.RetryLimit || IsPermanent(err) {
				return
			}
			msg.Attempts++
			select {
			case <-time.After(q.config.RetryDelay):
			case <-q.ctx.Done():
				return
			}
		}
	}()
	return nil
}

// Start is a no-op; messages run as soon as they are published.
func (q *InlineQueue) Start() error { return nil }

// Stop cancels pending retries and waits for running jobs.
func (q *InlineQueue) Stop(ctx context.Context) error {
	q.cancel()
	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()
	select {
	case <-ctx.Done():
		return fmt.Errorf("timeout: %w", ctx.Err())
	case <-done:
		return nil
	}
}

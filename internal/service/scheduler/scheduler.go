package scheduler

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"Corexia/pkg/cache"
	applogger "Corexia/pkg/logger"
	"Corexia/pkg/queue"
	"Corexia/pkg/util"
)

// Entry is one weekday job fired at a fixed local wall-clock time.
type Entry struct {
	Name    string
	Hour    int
	Minute  int
	MsgType string
	Payload interface{}
}

// Scheduler enqueues entries on the job queue once per trading day. Every
// replica runs one, and a per-day cache lock keeps a job from firing twice.
type Scheduler struct {
	queue   queue.QueueService
	locks   cache.Service
	loc     *time.Location
	entries []Entry
	log     *applogger.Logger
	now     func() time.Time
	after   func(d time.Duration) <-chan time.Time
}

type Option func(*Scheduler)

// WithClock overrides the time source and timer, for tests.
func WithClock(now func() time.Time, after func(time.Duration) <-chan time.Time) Option {
	return func(s *Scheduler) {
		s.now = now
		s.after = after
	}
}

func New(q queue.QueueService, locks cache.Service, loc *time.Location, entries []Entry, l *applogger.Logger, opts ...Option) *Scheduler {
	if loc == nil {
		loc = time.UTC
	}
	s := &Scheduler{
		queue:   q,
		locks:   locks,
		loc:     loc,
		entries: entries,
		log:     l,
		now:     time.Now,
		after:   time.After,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// EntryAt builds an entry from an "HH:MM" clock string.
func EntryAt(name, clock, msgType string, payload interface{}) (Entry, error) {
	h, m, err := util.ParseClock(clock)
	if err != nil {
		return Entry{}, err
	}
	return Entry{Name: name, Hour: h, Minute: m, MsgType: msgType, Payload: payload}, nil
}

// Next returns the next fire time for e after now.
func (s *Scheduler) Next(e Entry) time.Time {
	return util.NextWeekdayAt(s.now(), s.loc, e.Hour, e.Minute)
}

// Run blocks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, e := range s.entries {
		e := e
		g.Go(func() error {
			s.loop(ctx, e)
			return nil
		})
	}
	s.log.Info("scheduler started",
		applogger.Int("entries", len(s.entries)),
		applogger.String("timezone", s.loc.String()),
	)
	return g.Wait()
}

func (s *Scheduler) loop(ctx context.Context, e Entry) {
	for {
		at := s.Next(e)
		s.log.Debug("job scheduled",
			applogger.String("job", e.Name),
			applogger.Time("at", at),
		)
		select {
		case <-ctx.Done():
			return
		case <-s.after(at.Sub(s.now())):
		}
		if _, err := s.Fire(ctx, e, at); err != nil {
			s.log.Error("scheduled job not enqueued",
				applogger.String("job", e.Name),
				applogger.Error(err),
			)
		}
	}
}

// Fire enqueues e for the session at. It reports false when another
// replica already fired e for that date.
func (s *Scheduler) Fire(ctx context.Context, e Entry, at time.Time) (bool, error) {
	key := cache.Key("lock", "sched", e.Name, at.In(s.loc).Format("2006-01-02"))
	ok, err := s.locks.TryLock(ctx, key, 20*time.Hour)
	if err != nil {
		return false, fmt.Errorf("lock %s: %w", e.Name, err)
	}
	if !ok {
		s.log.Debug("job already fired", applogger.String("job", e.Name))
		return false, nil
	}
	if err := s.queue.PublishMessage(ctx, e.MsgType, e.Payload); err != nil {
		_ = s.locks.Unlock(ctx, key)
		return false, fmt.Errorf("enqueue %s: %w", e.Name, err)
	}
	s.log.Info("job enqueued",
		applogger.String("job", e.Name),
		applogger.String("type", e.MsgType),
	)
	return true, nil
}

package kafka

import (
	"context"
	"time"

	"github.com/segmentio/kafka-go"

	applogger "Corexia/pkg/logger"
)

// ConsumerHook observes message handling. BeforeHandle may replace the
// context or payload; an error from it skips the handler and counts as a
// failed attempt.
type ConsumerHook interface {
	BeforeHandle(ctx context.Context, topic string, km kafka.Message, data []byte) (context.Context, []byte, error)
	AfterHandle(ctx context.Context, topic string, km kafka.Message, err error)
	OnError(ctx context.Context, topic string, km kafka.Message, err error)
}

type NoopHook struct{}

func (NoopHook) BeforeHandle(ctx context.Context, _ string, _ kafka.Message, data []byte) (context.Context, []byte, error) {
	return ctx, data, nil
}

func (NoopHook) AfterHandle(context.Context, string, kafka.Message, error) {}

func (NoopHook) OnError(context.Context, string, kafka.Message, error) {}

type ctxKey string

const ctxStartTime ctxKey = "kafka_hook_start_time"

// LoggingHook logs slow and failed handles at debug and warn level.
type LoggingHook struct {
	L    *applogger.Logger
	Slow time.Duration
}

func (h LoggingHook) BeforeHandle(ctx context.Context, _ string, _ kafka.Message, data []byte) (context.Context, []byte, error) {
	return context.WithValue(ctx, ctxStartTime, time.Now()), data, nil
}

func (h LoggingHook) AfterHandle(ctx context.Context, topic string, km kafka.Message, err error) {
	start, ok := ctx.Value(ctxStartTime).(time.Time)
	if !ok || h.L == nil {
		return
	}
	took := time.Since(start)
	if err != nil {
		h.L.Warn("handle attempt failed",
			applogger.String("topic", topic),
			applogger.Int64("offset", km.Offset),
			applogger.Duration("duration_ms", took),
			applogger.Error(err),
		)
		return
	}
	if h.Slow > 0 && took > h.Slow {
		h.L.Debug("slow handle",
			applogger.String("topic", topic),
			applogger.Int64("offset", km.Offset),
			applogger.Duration("duration_ms", took),
		)
	}
}

func (h LoggingHook) OnError(context.Context, string, kafka.Message, error) {}

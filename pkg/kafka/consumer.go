package kafka

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/segmentio/kafka-go"

	applogger "Corexia/pkg/logger"
)

// MessageHandler handles messages from one topic.
type MessageHandler interface {
	Topic() string
	Handle(context.Context, []byte) error
}

// Consumer fans messages from one reader per topic into a worker pool.
// Offsets are committed after a successful handle, or after the message
// was parked in the DLQ, so a poison message never blocks its partition.
type Consumer struct {
	cfg      ConsumerConfig
	handlers map[string]MessageHandler
	readers  map[string]*kafka.Reader
	msgs     chan fetched
	dlq      *kafka.Writer
	hook     ConsumerHook
	l        *applogger.Logger

	cancel   context.CancelFunc
	wg       sync.WaitGroup
	stopOnce sync.Once
}

type fetched struct {
	reader *kafka.Reader
	km     kafka.Message
}

func NewConsumer(l *applogger.Logger, opts ...ConsumerOption) (*Consumer, error) {
	cfg := ConsumerConfig{
		GroupID:     "corexia",
		WorkerCount: 1,
		BufferSize:  64,
		RetryMax:    3,
		BackoffMin:  50 * time.Millisecond,
		BackoffMax:  2 * time.Second,
		MinBytes:    1,
		MaxBytes:    10e6,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("brokers are required")
	}
	if l == nil {
		l = applogger.Nop()
	}

	c := &Consumer{
		cfg:      cfg,
		handlers: make(map[string]MessageHandler),
		readers:  make(map[string]*kafka.Reader),
		msgs:     make(chan fetched, cfg.BufferSize),
		hook:     NoopHook{},
		l:        l.With(applogger.String("component", "kafka_consumer")),
	}
	if cfg.DLQTopic != "" {
		c.dlq = &kafka.Writer{Addr: kafka.TCP(cfg.Brokers...), Topic: cfg.DLQTopic, Balancer: &kafka.Hash{}}
	}
	initConsumerMetricsOnce()
	return c, nil
}

// RegisterHandler must be called before Start. A second handler for the same topic is ignored.
func (c *Consumer) RegisterHandler(h MessageHandler) {
	if _, ok := c.handlers[h.Topic()]; ok {
		c.l.Warn("handler already registered", applogger.String("topic", h.Topic()))
		return
	}
	c.handlers[h.Topic()] = h
}

// WithHook replaces the lifecycle hook.
func (c *Consumer) WithHook(h ConsumerHook) {
	if h != nil {
		c.hook = h
	}
}

func (c *Consumer) Start(ctx context.Context) error {
	if len(c.handlers) == 0 {
		return fmt.Errorf("no handlers registered")
	}
	ctx, c.cancel = context.WithCancel(ctx)

	for topic := range c.handlers {
		r := kafka.NewReader(kafka.ReaderConfig{
			Brokers:  c.cfg.Brokers,
			Topic:    topic,
			GroupID:  c.cfg.GroupID,
			MinBytes: c.cfg.MinBytes,
			MaxBytes: c.cfg.MaxBytes,
		})
		c.readers[topic] = r
		c.wg.Add(1)
		go c.fetch(ctx, topic, r)
	}

	var workers sync.WaitGroup
	for i := 0; i < c.cfg.WorkerCount; i++ {
		workers.Add(1)
		go func() {
			defer workers.Done()
			c.work(ctx)
		}()
	}
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		workers.Wait()
	}()

	c.l.Info("consumer started",
		applogger.Int("topics", len(c.readers)),
		applogger.Int("workers", c.cfg.WorkerCount),
		applogger.String("group", c.cfg.GroupID),
	)
	return nil
}

// Stop cancels fetching, waits for in-flight messages and closes readers.
func (c *Consumer) Stop(ctx context.Context) error {
	var err error
	c.stopOnce.Do(func() {
		if c.cancel != nil {
			c.cancel()
		}
		done := make(chan struct{})
		go func() {
			c.wg.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-ctx.Done():
			err = fmt.Errorf("wait for consumer: %w", ctx.Err())
		}
		for topic, r := range c.readers {
			if cerr := r.Close(); cerr != nil {
				c.l.Error("close reader", applogger.String("topic", topic), applogger.Error(cerr))
			}
		}
		if c.dlq != nil {
			_ = c.dlq.Close()
		}
	})
	return err
}

func (c *Consumer) fetch(ctx context.Context, topic string, r *kafka.Reader) {
	defer c.wg.Done()
	for {
		km, err := r.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return
			}
			c.l.Error("fetch message", applogger.String("topic", topic), applogger.Error(err))
			continue
		}
		select {
		case c.msgs <- fetched{reader: r, km: km}:
			consumerQueueDepth.WithLabelValues(topic).Set(float64(len(c.msgs)))
		case <-ctx.Done():
			return
		}
	}
}

func (c *Consumer) work(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case m := <-c.msgs:
			c.process(ctx, m)
		}
	}
}

func (c *Consumer) process(ctx context.Context, m fetched) {
	topic := m.km.Topic
	h, ok := c.handlers[topic]
	if !ok {
		return
	}
	start := time.Now()

	err := c.handleWithRetry(ctx, h, m.km)
	if err != nil {
		c.hook.OnError(ctx, topic, m.km, err)
		c.l.Error("handle message",
			applogger.String("topic", topic),
			applogger.Int("partition", m.km.Partition),
			applogger.Int64("offset", m.km.Offset),
			applogger.Error(err),
		)
		if c.dlq == nil {
			consumerHandled.WithLabelValues(topic, "failed").Inc()
			return
		}
		if derr := c.dlq.WriteMessages(ctx, kafka.Message{
			Key:     m.km.Key,
			Value:   m.km.Value,
			Headers: []kafka.Header{{Key: "source_topic", Value: []byte(topic)}, {Key: "error", Value: []byte(err.Error())}},
		}); derr != nil {
			c.l.Error("write dlq", applogger.String("topic", c.cfg.DLQTopic), applogger.Error(derr))
			consumerHandled.WithLabelValues(topic, "failed").Inc()
			return
		}
		consumerHandled.WithLabelValues(topic, "dlq").Inc()
	} else {
		consumerHandled.WithLabelValues(topic, "ok").Inc()
	}

	if cerr := m.reader.CommitMessages(ctx, m.km); cerr != nil && ctx.Err() == nil {
		c.l.Error("commit offset", applogger.String("topic", topic), applogger.Error(cerr))
	}
	consumerHandleLatency.WithLabelValues(topic).Observe(time.Since(start).Seconds())
}

func (c *Consumer) handleWithRetry(ctx context.Context, h MessageHandler, km kafka.Message) (err error) {
	for attempt := 1; ; attempt++ {
		hctx, data, berr := c.hook.BeforeHandle(ctx, km.Topic, km, km.Value)
		if berr != nil {
			return berr
		}
		err = safeHandle(hctx, h, data)
		c.hook.AfterHandle(hctx, km.Topic, km, err)
		if err == nil || attempt > c.cfg.RetryMax {
			return err
		}
		select {
		case <-time.After(backoffWithJitter(c.cfg.BackoffMin, c.cfg.BackoffMax, attempt)):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func safeHandle(ctx context.Context, h MessageHandler, data []byte) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return h.Handle(ctx, data)
}

// backoffWithJitter doubles from min per attempt, caps at max and removes up to half as jitter.
func backoffWithJitter(min, max time.Duration, attempt int) time.Duration {
	if min <= 0 {
		min = 50 * time.Millisecond
	}
	if max < min {
		max = min
	}
	if attempt < 1 {
		attempt = 1
	}
	exp := max
	if attempt < 32 {
		if d := min << uint(attempt-1); d > 0 && d < max {
			exp = d
		}
	}
	half := int64(exp) / 2
	if half <= 0 {
		return exp
	}
	return exp - time.Duration(rand.Int63n(half))
}

var (
	consumerQueueDepth    *prometheus.GaugeVec
	consumerHandled       *prometheus.CounterVec
	consumerHandleLatency *prometheus.HistogramVec
	consumerOnce          sync.Once
)

func initConsumerMetricsOnce() {
	consumerOnce.Do(func() {
		consumerQueueDepth = promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "corexia_kafka_consumer_queue_depth",
			Help: "Messages waiting for a worker",
		}, []string{"topic"})
		consumerHandled = promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "corexia_kafka_consumer_messages_total",
			Help: "Messages handled by result",
		}, []string{"topic", "result"})
		consumerHandleLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name: "corexia_kafka_consumer_handle_seconds",
			Help: "Handling time per message including retries",
		}, []string{"topic"})
	})
}

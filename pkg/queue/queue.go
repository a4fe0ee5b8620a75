package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrNoJob is returned when a message type has no registered job.
var ErrNoJob = errors.New("no job registered")

// PermanentError wraps a handler failure that must not be retried.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return "permanent: " + e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

// Permanent marks err so the queue dead-letters the message instead of retrying it.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

// IsPermanent reports whether err carries a PermanentError.
func IsPermanent(err error) bool {
	var pe *PermanentError
	return errors.As(err, &pe)
}

type QueueService interface {
	PublishMessage(ctx context.Context, msgType string, payload interface{}) error
}

// Worker is a queue that runs registered jobs in the background.
type Worker interface {
	QueueService
	Start() error
	Stop(ctx context.Context) error
}

// Exec runs the job registered for msgType once, in the caller's goroutine.
func Exec(ctx context.Context, jobs []Job, msgType string, payload interface{}) error {
	raw, err := encodePayload(payload)
	if err != nil {
		return err
	}
	for _, j := range jobs {
		if j.Type() == msgType {
			return j.Handle(ctx, raw)
		}
	}
	return fmt.Errorf("%w: %s", ErrNoJob, msgType)
}

// QueueConfig contains the configuration for the queue
type QueueConfig struct {
	Workers      int           // number of workers
	RetryLimit   int           // number of maximum retries
	RetryDelay   time.Duration // delay before a failed message is retried
	PollInterval time.Duration // how often due retries are promoted
	KeyPrefix    string
}

// Message is the envelope stored on the queue.
type Message struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Attempts  int             `json:"attempts"`
	Timestamp time.Time       `json:"timestamp"`
}

var (
	_ Worker = (*RedisQueue)(nil)
	_ Worker = (*InlineQueue)(nil)
)

// Decode unmarshals a job payload. An empty payload yields the zero value.
func Decode[T any](payload json.RawMessage) (T, error) {
	var result T
	if len(payload) == 0 {
		return result, nil
	}
	if err := json.Unmarshal(payload, &result); err != nil {
		return result, fmt.Errorf("decode payload: %w", err)
	}
	return result, nil
}

func encodePayload(payload interface{}) (json.RawMessage, error) {
	switch p := payload.(type) {
	case nil:
		return nil, nil
	case json.RawMessage:
		return p, nil
	case []byte:
		return json.RawMessage(p), nil
	default:
		b, err := json.Marshal(p)
		if err != nil {
			return nil, fmt.Errorf("marshal payload: %w", err)
		}
		return b, nil
	}
}

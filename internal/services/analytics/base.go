package analytics

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	xhttp "Corexia/pkg/http"
	applogger "Corexia/pkg/logger"
)

// HTTPServiceBase is the shared transport for calls to the indicator service:
// a client-side rate limit, a circuit breaker and bounded retries on
// transient failures.
type HTTPServiceBase struct {
	baseURL  string
	client   *xhttp.Client
	limiter  *rate.Limiter
	breaker  *gobreaker.CircuitBreaker
	attempts int
	backoff  time.Duration
	log      *applogger.Logger
}

// BaseConfig holds the transport settings.
type BaseConfig struct {
	BaseURL       string
	Timeout       time.Duration
	MaxRetries    int
	RetryBackoff  time.Duration
	RatePerSecond float64
	Burst         int
	BreakerTrips  uint32
	BreakerOpen   time.Duration
}

// NewHTTPServiceBase builds the transport. A non-positive rate disables the limiter.
func NewHTTPServiceBase(cfg BaseConfig, l *applogger.Logger) *HTTPServiceBase {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.BreakerTrips == 0 {
		cfg.BreakerTrips = 3
	}
	limit := rate.Inf
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}

	trips := cfg.BreakerTrips
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "indicators",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     cfg.BreakerOpen,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= trips
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !xhttp.IsTemporary(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			l.Warn("circuit breaker state changed",
				applogger.String("breaker", name),
				applogger.String("from", from.String()),
				applogger.String("to", to.String()),
			)
		},
	})

	return &HTTPServiceBase{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		client:   xhttp.NewClient(xhttp.WithTimeout(cfg.Timeout), xhttp.WithHeader("User-Agent", "corexia")),
		limiter:  rate.NewLimiter(limit, burst),
		breaker:  breaker,
		attempts: cfg.MaxRetries + 1,
		backoff:  cfg.RetryBackoff,
		log:      l,
	}
}

// GetJSON issues GET path?query and decodes into dest, retrying transient
// failures with linear backoff. An open breaker fails fast.
func (b *HTTPServiceBase) GetJSON(ctx context.Context, path string, query url.Values, dest interface{}) error {
	if b.baseURL == "" {
		return fmt.Errorf("indicator service url not configured")
	}
	opts := &xhttp.RequestOptions{
		Method:      xhttp.MethodGet,
		URL:         b.baseURL + path,
		QueryParams: query,
	}

	var err error
	for i := 1; i <= b.attempts; i++ {
		if err = b.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("get %s: %w", path, err)
		}
		_, err = b.breaker.Execute(func() (interface{}, error) {
			return nil, b.client.SendAndParse(ctx, opts, dest)
		})
		if err == nil {
			return nil
		}
		if !retryable(err) || i == b.attempts {
			break
		}
		b.log.Debug("indicator request retry",
			applogger.String("path", path),
			applogger.Int("attempt", i),
			applogger.Error(err),
		)
		select {
		case <-time.After(time.Duration(i) * b.backoff):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return fmt.Errorf("get %s: %w", path, err)
}

func retryable(err error) bool {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return false
	}
	return xhttp.IsTemporary(err)
}

// BreakerState reports the breaker state for health output.
func (b *HTTPServiceBase) BreakerState() string {
	return b.breaker.State().String()
}

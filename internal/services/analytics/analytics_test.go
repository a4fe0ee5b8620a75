package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Corexia/internal/domain/models"
	"Corexia/pkg/cache"
	applogger "Corexia/pkg/logger"
)

type fetchMetrics struct {
	mu  sync.Mutex
	oks []bool
}

func (m *fetchMetrics) RecordCycle(string, models.Branch)                                        {}
func (m *fetchMetrics) RecordCycleDuration(string, float64)                                      {}
func (m *fetchMetrics) RecordPersistenceWarning(string)                                          {}
func (m *fetchMetrics) RecordSnapshot(string, models.MarketState, models.Friction, models.Drift) {}
func (m *fetchMetrics) RecordEquity(string, float64, float64)                                    {}
func (m *fetchMetrics) RecordFetch(_ string, ok bool, _ float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.oks = append(m.oks, ok)
}

type indicatorServer struct {
	bundleCalls int32
	failBundle  int32 // number of leading bundle calls that return 503
	status      int   // status for bundle failures
}

func (s *indicatorServer) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/bundle/SPY", func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&s.bundleCalls, 1)
		if n <= atomic.LoadInt32(&s.failBundle) {
			w.WriteHeader(s.status)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"symbol":        "SPY",
			"current_price": 512.3,
			"ma_system":     map[string]string{"regime": "Bull", "signal": "Long"},
			"technical":     map[string]interface{}{"bollinger_squeeze": true, "structure": map[string]string{"balance_state": "breakout_up"}},
		})
	})
	mux.HandleFunc("/v1/timeframe/SPY", func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("tf") {
		case "4H":
			w.WriteHeader(http.StatusBadGateway)
		default:
			_ = json.NewEncoder(w).Encode(map[string]string{"ma_regime": "Bull"})
		}
	})
	return mux
}

func newSource(t *testing.T, srv *httptest.Server, retries int) (*HTTPIndicatorSource, *fetchMetrics) {
	t.Helper()
	base := NewHTTPServiceBase(BaseConfig{
		BaseURL:      srv.URL,
		Timeout:      2 * time.Second,
		MaxRetries:   retries,
		RetryBackoff: time.Millisecond,
		BreakerTrips: 50,
		BreakerOpen:  time.Second,
	}, applogger.Nop())
	m := &fetchMetrics{}
	return NewHTTPIndicatorSource(base, m, applogger.Nop()), m
}

func TestHTTPIndicatorSource_FetchBundle(t *testing.T) {
	is := &indicatorServer{}
	srv := httptest.NewServer(is.handler(t))
	defer srv.Close()
	src, m := newSource(t, srv, 0)

	b, err := src.FetchBundle(context.Background(), "SPY", models.DefaultTimeframes())
	require.NoError(t, err)
	assert.Equal(t, 512.3, b.CurrentPrice)
	assert.Equal(t, models.MARegimeBull, b.MASystem.RegimeOr(""))
	assert.True(t, b.Technical.Squeeze())
	assert.Equal(t, models.BalanceBreakout, b.Technical.Balance())

	require.Len(t, b.Timeframes, 4)
	r, ok := b.Reading(models.TF1W)
	require.True(t, ok)
	assert.Equal(t, "Bull", models.StringOr(r.MARegime, ""))
	_, ok = b.Reading(models.TF4H)
	assert.False(t, ok, "a failed timeframe is kept but unusable")
	assert.Contains(t, b.Timeframes[models.TF4H].Error, "502")

	assert.Equal(t, []bool{true}, m.oks)
}

func TestHTTPIndicatorSource_RetriesTransientBundleFailures(t *testing.T) {
	is := &indicatorServer{failBundle: 2, status: http.StatusServiceUnavailable}
	srv := httptest.NewServer(is.handler(t))
	defer srv.Close()
	src, _ := newSource(t, srv, 2)

	_, err := src.FetchBundle(context.Background(), "SPY", []models.Timeframe{models.TF1D})
	require.NoError(t, err)
	assert.Equal(t, int32(3), atomic.LoadInt32(&is.bundleCalls))
}

func TestHTTPIndicatorSource_BundleFailureIsDataUnavailable(t *testing.T) {
	is := &indicatorServer{failBundle: 100, status: http.StatusNotFound}
	srv := httptest.NewServer(is.handler(t))
	defer srv.Close()
	src, m := newSource(t, srv, 3)

	_, err := src.FetchBundle(context.Background(), "SPY", models.DefaultTimeframes())
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrDataUnavailable))
	assert.Equal(t, int32(1), atomic.LoadInt32(&is.bundleCalls), "4xx is not retried")
	assert.Equal(t, []bool{false}, m.oks)
}

func TestHTTPServiceBase_BreakerOpens(t *testing.T) {
	is := &indicatorServer{failBundle: 100, status: http.StatusInternalServerError}
	srv := httptest.NewServer(is.handler(t))
	defer srv.Close()
	base := NewHTTPServiceBase(BaseConfig{
		BaseURL:      srv.URL,
		MaxRetries:   0,
		BreakerTrips: 2,
		BreakerOpen:  time.Minute,
	}, applogger.Nop())

	ctx := context.Background()
	var out map[string]interface{}
	for i := 0; i < 4; i++ {
		assert.Error(t, base.GetJSON(ctx, "/v1/bundle/SPY", nil, &out))
	}
	assert.Equal(t, int32(2), atomic.LoadInt32(&is.bundleCalls), "open breaker fails fast")
	assert.Equal(t, "open", base.BreakerState())
}

type countingSource struct{ calls int }

func (c *countingSource) FetchBundle(_ context.Context, symbol string, _ []models.Timeframe) (*models.IndicatorBundle, error) {
	c.calls++
	return &models.IndicatorBundle{Symbol: symbol, CurrentPrice: float64(100 + c.calls)}, nil
}

func TestCachedIndicatorSource(t *testing.T) {
	mc := cache.NewMemoryCache()
	defer mc.Close()
	next := &countingSource{}
	src := NewCachedIndicatorSource(next, mc, time.Hour)
	day := time.Date(2026, 6, 1, 20, 0, 0, 0, time.UTC)
	src.now = func() time.Time { return day }
	ctx := context.Background()

	a, err := src.FetchBundle(ctx, "SPY", []models.Timeframe{models.TF1D, models.TF1W})
	require.NoError(t, err)
	b, err := src.FetchBundle(ctx, "SPY", []models.Timeframe{models.TF1W, models.TF1D})
	require.NoError(t, err)
	assert.Equal(t, a.CurrentPrice, b.CurrentPrice)
	assert.Equal(t, 1, next.calls)

	day = day.AddDate(0, 0, 1)
	c, err := src.FetchBundle(ctx, "SPY", []models.Timeframe{models.TF1D, models.TF1W})
	require.NoError(t, err)
	assert.NotEqual(t, a.CurrentPrice, c.CurrentPrice, "new day, new bundle")
	assert.Equal(t, 2, next.calls)
}

func TestHTTPIndicatorSource_DailyCandles(t *testing.T) {
	var gotQuery string
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/candles/SPY", func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		_, _ = w.Write([]byte(`{"symbol":"SPY","candles":[
			{"bucket":"2026-05-04T13:30:00Z","open":510,"high":515,"low":508,"close":512.5,"volume":1000000},
			{"bucket":"2026-05-05T13:30:00Z","open":512,"high":514,"low":509,"close":0},
			{"bucket":"2026-05-05T13:30:00Z","open":512,"high":514,"low":509,"close":513}
		]}`))
	})
	mux.HandleFunc("/v1/candles/QQQ", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()
	src, _ := newSource(t, srv, 1)

	from := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 5, 5, 0, 0, 0, 0, time.UTC)
	cs, err := src.DailyCandles(context.Background(), "SPY", from, to)
	require.NoError(t, err)
	assert.Equal(t, "from=2026-05-01&tf=1D&to=2026-05-05", gotQuery)
	require.Len(t, cs, 2, "bars without a close are dropped")
	assert.Equal(t, "SPY", cs[0].Symbol)
	assert.Equal(t, time.Date(2026, 5, 4, 0, 0, 0, 0, time.UTC), cs[0].Bucket)
	assert.Equal(t, 513.0, cs[1].Close)

	_, err = src.DailyCandles(context.Background(), "QQQ", from, to)
	assert.ErrorIs(t, err, models.ErrDataUnavailable)
}

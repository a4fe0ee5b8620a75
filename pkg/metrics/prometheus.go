package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"Corexia/internal/domain/models"
	domrepo "Corexia/internal/domain/repository"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	cycles       *prometheus.CounterVec
	cycleLatency *prometheus.HistogramVec
	warnings     *prometheus.CounterVec
	fetches      *prometheus.CounterVec
	fetchLatency *prometheus.HistogramVec
	snapshots    *prometheus.CounterVec
	equity       *prometheus.GaugeVec
	drawdown     *prometheus.GaugeVec
}

var _ domrepo.Metrics = (*Recorder)(nil)

// New creates a recorder whose collectors are registered on reg.
func New(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		cycles: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "corexia_agent_cycles_total",
				Help: "Agent cycles by terminal branch",
			},
			[]string{"agent", "branch"},
		),
		cycleLatency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "corexia_agent_cycle_duration_seconds",
				Help:    "Duration of one agent cycle in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"agent"},
		),
		warnings: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "corexia_persistence_warnings_total",
				Help: "Persistence failures that did not fail the cycle",
			},
			[]string{"op"},
		),
		fetches: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "corexia_indicator_fetches_total",
				Help: "Indicator bundle fetches by outcome",
			},
			[]string{"symbol", "result"},
		),
		fetchLatency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "corexia_indicator_fetch_duration_seconds",
				Help:    "Duration of indicator bundle fetches in seconds",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"symbol"},
		),
		snapshots: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "corexia_regime_snapshots_total",
				Help: "Classified snapshots by state, friction and drift",
			},
			[]string{"symbol", "state", "friction", "drift"},
		),
		equity: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "corexia_agent_equity",
				Help: "Latest simulated equity per agent",
			},
			[]string{"agent"},
		),
		drawdown: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "corexia_agent_drawdown_ratio",
				Help: "Latest drawdown from peak equity per agent",
			},
			[]string{"agent"},
		),
	}
}

func (r *Recorder) RecordCycle(agentID string, branch models.Branch) {
	r.cycles.WithLabelValues(agentID, string(branch)).Inc()
}

func (r *Recorder) RecordCycleDuration(agentID string, seconds float64) {
	r.cycleLatency.WithLabelValues(agentID).Observe(seconds)
}

func (r *Recorder) RecordPersistenceWarning(op string) {
	r.warnings.WithLabelValues(op).Inc()
}

func (r *Recorder) RecordFetch(symbol string, ok bool, seconds float64) {
	result := "ok"
	if !ok {
		result = "error"
	}
	r.fetches.WithLabelValues(symbol, result).Inc()
	r.fetchLatency.WithLabelValues(symbol).Observe(seconds)
}

func (r *Recorder) RecordSnapshot(symbol string, state models.MarketState, friction models.Friction, drift models.Drift) {
	r.snapshots.WithLabelValues(symbol, string(state), string(friction), string(drift)).Inc()
}

func (r *Recorder) RecordEquity(agentID string, equity, drawdown float64) {
	r.equity.WithLabelValues(agentID).Set(equity)
	r.drawdown.WithLabelValues(agentID).Set(drawdown)
}

// Nop discards every measurement.
type Nop struct{}

var _ domrepo.Metrics = Nop{}

func (Nop) RecordCycle(string, models.Branch)                                        {}
func (Nop) RecordCycleDuration(string, float64)                                      {}
func (Nop) RecordPersistenceWarning(string)                                          {}
func (Nop) RecordFetch(string, bool, float64)                                        {}
func (Nop) RecordSnapshot(string, models.MarketState, models.Friction, models.Drift) {}
func (Nop) RecordEquity(string, float64, float64)                                    {}

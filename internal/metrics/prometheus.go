package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder implements ports.Metrics using Prometheus. Every recorder owns its
// registry so several engines (or tests) can coexist in one process.
type Recorder struct {
	registry *prometheus.Registry

	tickDuration   *prometheus.HistogramVec
	tickErrors     *prometheus.CounterVec
	ticksSkipped   *prometheus.CounterVec
	marketsSkipped *prometheus.CounterVec
	upstreamErrors *prometheus.CounterVec
	balance        prometheus.Gauge
	openTrades     prometheus.Gauge
	opportunities  prometheus.Gauge
	httpDuration   *prometheus.HistogramVec
}

// New creates a Prometheus recorder with its own registry.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Recorder{
		registry: reg,
		tickDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "betgpt_tick_duration_seconds",
				Help:    "Duration of subsystem ticks in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"subsystem"},
		),
		tickErrors: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "betgpt_tick_errors_total",
				Help: "Ticks that ended with an error",
			},
			[]string{"subsystem"},
		),
		ticksSkipped: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "betgpt_ticks_skipped_total",
				Help: "Ticks skipped because the previous one was still running",
			},
			[]string{"subsystem"},
		),
		marketsSkipped: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "betgpt_markets_skipped_total",
				Help: "Markets left out of a pass",
			},
			[]string{"subsystem", "reason"},
		),
		upstreamErrors: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "betgpt_upstream_errors_total",
				Help: "Failed provider, oracle or resolution calls",
			},
			[]string{"source"},
		),
		balance: f.NewGauge(prometheus.GaugeOpts{
			Name: "betgpt_portfolio_balance",
			Help: "Current paper portfolio balance",
		}),
		openTrades: f.NewGauge(prometheus.GaugeOpts{
			Name: "betgpt_portfolio_open_trades",
			Help: "Live trades currently OPEN",
		}),
		opportunities: f.NewGauge(prometheus.GaugeOpts{
			Name: "betgpt_arbitrage_opportunities",
			Help: "Opportunities found by the last arbitrage pass",
		}),
		httpDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "betgpt_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
			},
			[]string{"route", "method", "status"},
		),
	}
}

// ObserveTick records a subsystem tick.
func (r *Recorder) ObserveTick(subsystem string, d time.Duration, err error) {
	r.tickDuration.WithLabelValues(subsystem).Observe(d.Seconds())
	if err != nil {
		r.tickErrors.WithLabelValues(subsystem).Inc()
	}
}

// TickSkipped records a tick dropped by the reentrancy guard.
func (r *Recorder) TickSkipped(subsystem string) {
	r.ticksSkipped.WithLabelValues(subsystem).Inc()
}

// MarketsSkipped records markets excluded from a pass.
func (r *Recorder) MarketsSkipped(subsystem, reason string, n int) {
	if n <= 0 {
		return
	}
	r.marketsSkipped.WithLabelValues(subsystem, reason).Add(float64(n))
}

// UpstreamError records a failed collaborator call.
func (r *Recorder) UpstreamError(source string) {
	r.upstreamErrors.WithLabelValues(source).Inc()
}

// SetLedger publishes the ledger gauges.
func (r *Recorder) SetLedger(balance float64, open int) {
	r.balance.Set(balance)
	r.openTrades.Set(float64(open))
}

// SetOpportunities publishes the size of the last arbitrage pass.
func (r *Recorder) SetOpportunities(n int) {
	r.opportunities.Set(float64(n))
}

// ObserveHTTP records one served request.
func (r *Recorder) ObserveHTTP(route, method string, status int, d time.Duration) {
	r.httpDuration.WithLabelValues(route, method, strconv.Itoa(status)).Observe(d.Seconds())
}

// Handler exposes the registry in the Prometheus text format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Nop discards every metric.
type Nop struct{}

func (Nop) ObserveTick(string, time.Duration, error) {}
func (Nop) TickSkipped(string)                       {}
func (Nop) MarketsSkipped(string, string, int)       {}
func (Nop) UpstreamError(string)                     {}
func (Nop) SetLedger(float64, int)                   {}
func (Nop) SetOpportunities(int)                     {}

// Package metrics exposes ledger and HTTP metrics in the Prometheus format.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"splatchain-ledger/internal/core/ports"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "splatchain"

// Prometheus implements ports.LedgerMetrics on a private registry.
type Prometheus struct {
	registry *prometheus.Registry

	operations    *prometheus.CounterVec
	opDurations   *prometheus.HistogramVec
	reloads       *prometheus.CounterVec
	dropped       prometheus.Counter
	repaired      prometheus.Counter
	wallets       prometheus.Gauge
	supply        prometheus.Gauge
	notifications *prometheus.CounterVec
	requests      *prometheus.CounterVec
	reqDurations  *prometheus.HistogramVec
}

var _ ports.LedgerMetrics = (*Prometheus)(nil)

// NewPrometheus creates and registers every collector.
func NewPrometheus() *Prometheus {
	p := &Prometheus{
		registry: prometheus.NewRegistry(),
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "operations_total",
			Help:      "Ledger operations by name and result code.",
		}, []string{"op", "code"}),
		opDurations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "operation_duration_seconds",
			Help:      "Time spent in a ledger operation, including persistence.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op"}),
		reloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "reloads_total",
			Help:      "Reconciliation passes against durable storage.",
		}, []string{"result"}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "reload_dropped_records_total",
			Help:      "Duplicate records removed while reloading.",
		}),
		repaired: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "reload_repaired_records_total",
			Help:      "Records the normalizer had to repair while reloading.",
		}),
		wallets: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "wallets",
			Help:      "Number of wallets in the ledger.",
		}),
		supply: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "total_supply",
			Help:      "Sum of all wallet balances in SPLC.",
		}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notify",
			Name:      "notifications_total",
			Help:      "Owner notifications by outcome.",
		}, []string{"outcome"}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route, method and status.",
		}, []string{"route", "method", "status"}),
		reqDurations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
	}

	p.registry.MustRegister(
		p.operations, p.opDurations,
		p.reloads, p.dropped, p.repaired,
		p.wallets, p.supply,
		p.notifications,
		p.requests, p.reqDurations,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return p
}

func (p *Prometheus) ObserveOperation(op string, code string, d time.Duration) {
	p.operations.WithLabelValues(op, code).Inc()
	p.opDurations.WithLabelValues(op).Observe(d.Seconds())
}

func (p *Prometheus) ObserveReload(ok bool, dropped int, repaired int) {
	result := "ok"
	if !ok {
		result = "failed"
	}
	p.reloads.WithLabelValues(result).Inc()
	p.dropped.Add(float64(dropped))
	p.repaired.Add(float64(repaired))
}

func (p *Prometheus) SetStats(stats ports.LedgerStats) {
	p.wallets.Set(float64(stats.Wallets))
	p.supply.Set(float64(stats.TotalSupply))
}

func (p *Prometheus) ObserveNotification(outcome string) {
	p.notifications.WithLabelValues(outcome).Inc()
}

// ObserveRequest records one served HTTP request. route is the matched
// pattern, not the raw path, to keep label cardinality bounded.
func (p *Prometheus) ObserveRequest(route, method string, status int, d time.Duration) {
	p.requests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	p.reqDurations.WithLabelValues(route, method).Observe(d.Seconds())
}

// Handler serves the registry.
func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}

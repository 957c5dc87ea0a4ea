package gacha

import (
	"github.com/prometheus/client_golang/prometheus"
)

// MetricsCollector exposes a SessionMonitor as prometheus metrics
type MetricsCollector struct {
	monitor *SessionMonitor

	draws      *prometheus.Desc
	noTickets  *prometheus.Desc
	batches    *prometheus.Desc
	batchTime  *prometheus.Desc
	claims     *prometheus.Desc
	syncs      *prometheus.Desc
	balance    *prometheus.Desc
	transports *prometheus.Desc
}

var _ prometheus.Collector = (*MetricsCollector)(nil)

// NewMetricsCollector creates a collector under namespace
func NewMetricsCollector(monitor *SessionMonitor, namespace string) *MetricsCollector {
	if namespace == "" {
		namespace = DefaultMetricsNamespace
	}
	return &MetricsCollector{
		monitor: monitor,
		draws: prometheus.NewDesc(prometheus.BuildFQName(namespace, "draws", "total"),
			"Resolved draws by rank", []string{"rank"}, nil),
		noTickets: prometheus.NewDesc(prometheus.BuildFQName(namespace, "draws", "no_tickets_total"),
			"Draw requests answered with NoTickets", nil, nil),
		batches: prometheus.NewDesc(prometheus.BuildFQName(namespace, "batches", "total"),
			"Draw batches by result", []string{"result"}, nil),
		batchTime: prometheus.NewDesc(prometheus.BuildFQName(namespace, "batches", "duration_seconds_total"),
			"Total time spent in completed batches", nil, nil),
		claims: prometheus.NewDesc(prometheus.BuildFQName(namespace, "claims", "total"),
			"Quest claims by result", []string{"result"}, nil),
		syncs: prometheus.NewDesc(prometheus.BuildFQName(namespace, "syncs", "total"),
			"Quest refreshes by result", []string{"result"}, nil),
		balance: prometheus.NewDesc(prometheus.BuildFQName(namespace, "balance", "refreshes_total"),
			"Balance refreshes by result", []string{"result"}, nil),
		transports: prometheus.NewDesc(prometheus.BuildFQName(namespace, "transport", "errors_total"),
			"Remote calls that could not complete", nil, nil),
	}
}

// Describe implements prometheus.Collector
func (c *MetricsCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.draws
	ch <- c.noTickets
	ch <- c.batches
	ch <- c.batchTime
	ch <- c.claims
	ch <- c.syncs
	ch <- c.balance
	ch <- c.transports
}

// Collect implements prometheus.Collector
func (c *MetricsCollector) Collect(ch chan<- prometheus.Metric) {
	m := c.monitor.GetMetrics()

	for _, r := range Ranks {
		ch <- prometheus.MustNewConstMetric(c.draws, prometheus.CounterValue, float64(m.DrawsByRank[r]), r.String())
	}
	ch <- prometheus.MustNewConstMetric(c.noTickets, prometheus.CounterValue, float64(m.OutOfTicket))

	ch <- prometheus.MustNewConstMetric(c.batches, prometheus.CounterValue, float64(m.Batches), "completed")
	ch <- prometheus.MustNewConstMetric(c.batches, prometheus.CounterValue, float64(m.AbortedBatches), "aborted")
	ch <- prometheus.MustNewConstMetric(c.batchTime, prometheus.CounterValue, float64(m.BatchTimeNanos)/1e9)

	ch <- prometheus.MustNewConstMetric(c.claims, prometheus.CounterValue, float64(m.ClaimsGranted), "granted")
	ch <- prometheus.MustNewConstMetric(c.claims, prometheus.CounterValue, float64(m.ClaimsRefused), "refused")
	ch <- prometheus.MustNewConstMetric(c.claims, prometheus.CounterValue, float64(m.ClaimsFailed), "failed")

	ch <- prometheus.MustNewConstMetric(c.syncs, prometheus.CounterValue, float64(m.SyncsOK), "ok")
	ch <- prometheus.MustNewConstMetric(c.syncs, prometheus.CounterValue, float64(m.SyncsFailed), "failed")
	ch <- prometheus.MustNewConstMetric(c.syncs, prometheus.CounterValue, float64(m.SyncsCoalesced), "coalesced")

	ch <- prometheus.MustNewConstMetric(c.balance, prometheus.CounterValue,
		float64(m.BalanceRefreshes-m.BalanceFailures), "ok")
	ch <- prometheus.MustNewConstMetric(c.balance, prometheus.CounterValue, float64(m.BalanceFailures), "failed")

	ch <- prometheus.MustNewConstMetric(c.transports, prometheus.CounterValue, float64(m.TransportFailures))
}

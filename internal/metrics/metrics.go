// Package metrics exposes Prometheus counters for reconciliation and ingestion.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"discuit_search/internal/domain"
)

const namespace = "discuit_search"

// Collector implements the recorder interfaces used by the reconciler, the
// executor and the ingester.
type Collector struct {
	batches           *prometheus.CounterVec
	itemsApplied      *prometheus.CounterVec
	eventsReceived    prometheus.Counter
	duplicatesSkipped prometheus.Counter
	flushes           *prometheus.CounterVec
	postsIndexed      prometheus.Counter
	reconcileDuration prometheus.Histogram
	backfilled        prometheus.Counter
}

func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		batches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batches_total",
			Help:      "Index batches applied, by operation and outcome.",
		}, []string{"operation", "outcome"}),
		itemsApplied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "items_applied_total",
			Help:      "Documents in successfully applied batches, by operation.",
		}, []string{"operation"}),
		eventsReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_received_total",
			Help:      "Posts received from the live feed.",
		}),
		duplicatesSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "duplicates_skipped_total",
			Help:      "Buffered posts already present in the store.",
		}),
		flushes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "flushes_total",
			Help:      "Ingestion buffer flushes, by outcome.",
		}, []string{"outcome"}),
		postsIndexed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingested_posts_indexed_total",
			Help:      "Posts forwarded to the index by the ingestion path.",
		}),
		reconcileDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "reconcile_duration_seconds",
			Help:      "Duration of reconciliation passes.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200},
		}),
		backfilled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backfilled_posts_total",
			Help:      "Posts inserted by backfill runs.",
		}),
	}

	reg.MustRegister(
		c.batches,
		c.itemsApplied,
		c.eventsReceived,
		c.duplicatesSkipped,
		c.flushes,
		c.postsIndexed,
		c.reconcileDuration,
		c.backfilled,
	)

	return c
}

func outcome(err error) string {
	if err != nil {
		return "failed"
	}
	return "ok"
}

// RecordBatch counts one executor batch.
func (c *Collector) RecordBatch(operation string, items int, err error) {
	c.batches.WithLabelValues(operation, outcome(err)).Inc()
	if err == nil {
		c.itemsApplied.WithLabelValues(operation).Add(float64(items))
	}
}

func (c *Collector) RecordEvent() {
	c.eventsReceived.Inc()
}

// RecordFlush counts a flush and, when it succeeded, the duplicates it
// dropped.
func (c *Collector) RecordFlush(stats domain.FlushStats, err error) {
	c.flushes.WithLabelValues(outcome(err)).Inc()
	if dups := stats.Drained - stats.Inserted; err == nil && dups > 0 {
		c.duplicatesSkipped.Add(float64(dups))
	}
	c.postsIndexed.Add(float64(stats.Indexed))
}

func (c *Collector) ObserveReconcile(d time.Duration) {
	c.reconcileDuration.Observe(d.Seconds())
}

func (c *Collector) RecordBackfill(inserted int) {
	c.backfilled.Add(float64(inserted))
}

// Handler serves the registry in the Prometheus text format.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(bulkItemsTotal, bulkBatchSize) }

var bulkItemsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "curation_bulk_items_total",
		Help: "Per-item outcomes of bulk operations, labeled by operation.",
	},
	[]string{"operation", "outcome"}, // outcome: 'ok', 'failed'
)

var bulkBatchSize = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "curation_bulk_batch_size",
		Help:    "Distribution of bulk operation batch sizes.",
		Buckets: []float64{1, 2, 5, 10, 25, 50, 100, 250},
	},
	[]string{"operation"},
)

func ObserveBulk(operation string, successful, failed int) {
	op := norm(operation)
	bulkItemsTotal.WithLabelValues(op, "ok").Add(float64(successful))
	bulkItemsTotal.WithLabelValues(op, "failed").Add(float64(failed))
	bulkBatchSize.WithLabelValues(op).Observe(float64(successful + failed))
}

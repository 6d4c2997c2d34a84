package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(queueDepth) }

var queueDepth = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "curation_queue_depth",
		Help: "Point-in-time job count per queue and delivery state.",
	},
	[]string{"queue", "state"},
)

func SetQueueDepth(queue, state string, n int) {
	queueDepth.WithLabelValues(norm(queue), norm(state)).Set(float64(n))
}

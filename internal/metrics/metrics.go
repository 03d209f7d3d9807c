package metrics

import "github.com/prometheus/client_golang/prometheus"

const namespace = "queuesync"

var (
	TriggersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "triggers_total",
			Help:      "Queue messages received per input.",
		},
		[]string{"input"},
	)
	RecordsProduced = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_produced_total",
			Help:      "Records produced per processor.",
		},
		[]string{"processor"},
	)
	RowsUpserted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_upserted_total",
			Help:      "Rows written per destination table.",
		},
		[]string{"table"},
	)
	WriteLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "write_latency_seconds",
			Help:      "Upsert latency per destination table.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"table"},
	)
	ErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "errors_total",
			Help:      "Errors by component.",
		},
		[]string{"component"},
	)
	BufferedBatches = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "buffered_batches",
			Help:      "Batches waiting in each output buffer.",
		},
		[]string{"output"},
	)
)

func init() {
	prometheus.MustRegister(
		TriggersTotal,
		RecordsProduced,
		RowsUpserted,
		WriteLatency,
		ErrorsTotal,
		BufferedBatches,
	)
}

// Package metrics holds the Prometheus counters shared by the reduction tools.
// Batch tools export them with WriteTextfile for a node-exporter textfile
// collector rather than serving HTTP.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all Prometheus metrics for one run.
type Metrics struct {
	RowsRead    *prometheus.CounterVec
	RowsPadded  prometheus.Counter
	RowsWritten prometheus.Counter
	ReadRounds  prometheus.Counter
	ReadSeconds prometheus.Histogram
}

// New creates and registers all metrics with the provided registry.
func New(reg prometheus.Registerer) *Metrics {
	rowsRead := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "psrfits_rows_read_total",
		Help: "Subintegration rows read from input files",
	}, []string{"input"})

	rowsPadded := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "psrfits_rows_padded_total",
		Help: "Rows synthesised from channel statistics for missing or trailing data",
	})

	rowsWritten := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "psrfits_rows_written_total",
		Help: "Subintegration rows written to the output file set",
	})

	readRounds := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "psrfits_merge_read_rounds_total",
		Help: "Parallel read rounds completed by the merge engine",
	})

	readSeconds := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "psrfits_row_read_seconds",
		Help:    "Time spent inside a single guarded row read",
		Buckets: prometheus.ExponentialBuckets(1e-4, 4, 8),
	})

	reg.MustRegister(rowsRead, rowsPadded, rowsWritten, readRounds, readSeconds)

	return &Metrics{
		RowsRead:    rowsRead,
		RowsPadded:  rowsPadded,
		RowsWritten: rowsWritten,
		ReadRounds:  readRounds,
		ReadSeconds: readSeconds,
	}
}

// Discard returns metrics registered on a private registry, for callers that
// do not export them.
func Discard() *Metrics {
	return New(prometheus.NewRegistry())
}

// WriteTextfile writes every metric gathered by g to path in the text
// exposition format. An empty path is a no-op.
func WriteTextfile(path string, g prometheus.Gatherer) error {
	if path == "" {
		return nil
	}
	return prometheus.WriteToTextfile(path, g)
}

package merge

import (
	"github.com/rs/zerolog"

	"github.com/scottransom/psrfits-utils/internal/metrics"
	"github.com/scottransom/psrfits-utils/internal/progress"
)

// DefaultMaxFileBytes caps the size of one output file.
const DefaultMaxFileBytes int64 = 1 << 30

type options struct {
	log          zerolog.Logger
	metrics      *metrics.Metrics
	workers      int
	progress     *progress.Meter
	maxFileBytes int64
	gate         *ReadGate
}

// Option configures a Session.
type Option func(*options)

func defaultOptions() options {
	return options{
		log:          zerolog.Nop(),
		maxFileBytes: DefaultMaxFileBytes,
	}
}

// WithLogger sets the session logger.
func WithLogger(l zerolog.Logger) Option {
	return func(o *options) { o.log = l }
}

// WithMetrics records reads, rounds and written rows into m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) {
		if m != nil {
			o.metrics = m
		}
	}
}

// WithWorkers bounds the number of concurrent readers per round. Zero or
// less means one worker per input.
func WithWorkers(n int) Option {
	return func(o *options) { o.workers = n }
}

// WithProgress reports percent complete of the first input to m.
func WithProgress(m *progress.Meter) Option {
	return func(o *options) { o.progress = m }
}

// WithMaxFileBytes sets the output file size used to derive rows per file.
func WithMaxFileBytes(n int64) Option {
	return func(o *options) {
		if n > 0 {
			o.maxFileBytes = n
		}
	}
}

// WithReadGate shares g with other sessions of the process.
func WithReadGate(g *ReadGate) Option {
	return func(o *options) {
		if g != nil {
			o.gate = g
		}
	}
}

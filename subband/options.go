package subband

import (
	"github.com/rs/zerolog"

	"github.com/scottransom/psrfits-utils/dsp/dispersion"
	"github.com/scottransom/psrfits-utils/internal/metrics"
	"github.com/scottransom/psrfits-utils/internal/progress"
)

// Config selects the output channelisation.
type Config struct {
	NSub int     // output subbands; must divide the input channel count
	DM   float64 // dispersion measure (pc cm^-3)
}

type options struct {
	log           zerolog.Logger
	metrics       *metrics.Metrics
	delay         dispersion.DelayFunc
	statsFraction int
	progress      *progress.Meter
	label         string
}

// Option configures an Engine.
type Option func(*options)

func defaultOptions() options {
	return options{
		log:           zerolog.Nop(),
		delay:         dispersion.Delay,
		statsFraction: 8,
		label:         "input",
	}
}

// WithLogger sets the logger for gap and progress events.
func WithLogger(l zerolog.Logger) Option {
	return func(o *options) { o.log = l }
}

// WithMetrics records rows read, padded and written into m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) {
		if m != nil {
			o.metrics = m
		}
	}
}

// WithDelay replaces the cold-plasma delay model.
func WithDelay(fn dispersion.DelayFunc) Option {
	return func(o *options) {
		if fn != nil {
			o.delay = fn
		}
	}
}

// WithStatsFraction computes channel statistics from 1/n of each row.
func WithStatsFraction(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.statsFraction = n
		}
	}
}

// WithProgress reports percent complete of the input to m.
func WithProgress(m *progress.Meter) Option {
	return func(o *options) { o.progress = m }
}

// WithInputLabel sets the metrics label of the input file set.
func WithInputLabel(label string) Option {
	return func(o *options) {
		if label != "" {
			o.label = label
		}
	}
}

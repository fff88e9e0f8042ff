// Package extract copies a contiguous fraction of a PSRFITS file set into a
// new one.
//
// The fraction [start, end] of a set with nrows rows selects the 1-based
// rows lo = 1 + floor(start*nrows) through hi = floor(end*nrows) inclusive,
// so [0, 1] copies everything and [0.5, 1] the second half.
package extract

import (
	"context"
	"errors"
	"io"

	"github.com/rs/zerolog"

	perr "github.com/scottransom/psrfits-utils/internal/errors"
	"github.com/scottransom/psrfits-utils/internal/metrics"
	"github.com/scottransom/psrfits-utils/internal/progress"
	"github.com/scottransom/psrfits-utils/psrfits"
)

type options struct {
	log      zerolog.Logger
	metrics  *metrics.Metrics
	progress *progress.Meter
	label    string
}

// Option configures Rows.
type Option func(*options)

// WithLogger sets the logger for the row range and summary.
func WithLogger(l zerolog.Logger) Option {
	return func(o *options) { o.log = l }
}

// WithMetrics records rows read and written into m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) {
		if m != nil {
			o.metrics = m
		}
	}
}

// WithProgress reports the position in the input to m.
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

// Range returns the 1-based inclusive row range selected by [start, end].
// hi < lo means the fraction selects no rows.
func Range(start, end float64, nrows int) (lo, hi int) {
	return 1 + int(start*float64(nrows)), int(end * float64(nrows))
}

// Rows copies the rows of r selected by [start, end] to w and returns how
// many it wrote. Rows before the range are read and discarded. r must know
// its total row count.
func Rows(ctx context.Context, r psrfits.Reader, w psrfits.Writer, start, end float64, opts ...Option) (int, error) {
	o := options{log: zerolog.Nop(), label: "input"}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	if o.metrics == nil {
		o.metrics = metrics.Discard()
	}

	switch {
	case start < 0 || start > 1 || end < 0 || end > 1:
		return 0, perr.Configf("extract: start %g and end %g must lie in [0, 1]", start, end)
	case start > end:
		return 0, perr.Configf("extract: start %g is after end %g", start, end)
	}
	nrows := r.Cursor().Total
	if nrows <= 0 {
		return 0, perr.Configf("extract: input row count is unknown")
	}
	lo, hi := Range(start, end, nrows)
	if hi < lo {
		return 0, perr.Configf("extract: [%g, %g] of %d rows selects no rows", start, end, nrows)
	}
	o.log.Info().Int("rows", nrows).Int("lo_row", lo).Int("hi_row", hi).Msg("extracting")

	if o.progress != nil {
		o.progress.Reset()
	}
	row := psrfits.NewRow(r.Header())
	written := 0
	for i := 1; i <= hi; i++ {
		if err := ctx.Err(); err != nil {
			return written, perr.Wrap(err, perr.ErrorCodeCanceled, "extract: interrupted")
		}
		if err := r.ReadRow(row); err != nil {
			if errors.Is(err, io.EOF) {
				err = io.ErrUnexpectedEOF
			}
			return written, perr.WrapIO(err, "extract: read row %d of %d", i, nrows)
		}
		o.metrics.RowsRead.WithLabelValues(o.label).Inc()
		if o.progress != nil {
			o.progress.Update(i, nrows)
		}
		if i < lo {
			continue
		}
		if err := w.WriteRow(row); err != nil {
			return written, perr.WrapIO(err, "extract: write row %d", written+1)
		}
		written++
		o.metrics.RowsWritten.Inc()
	}
	o.log.Info().Int("rows_written", written).Msg("extract complete")
	return written, nil
}

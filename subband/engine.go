package subband

import (
	"context"
	"errors"
	"io"
	"math"
	"math/bits"

	"github.com/rs/zerolog"

	"github.com/scottransom/psrfits-utils/dsp/buffer"
	"github.com/scottransom/psrfits-utils/dsp/dispersion"
	perr "github.com/scottransom/psrfits-utils/internal/errors"
	"github.com/scottransom/psrfits-utils/internal/metrics"
	"github.com/scottransom/psrfits-utils/psrfits"
	"github.com/scottransom/psrfits-utils/stats/channel"
)

// offsetTolerance is the slack, in seconds, allowed between consecutive row
// offsets before a row counts as missing.
const offsetTolerance = 1e-7

// Phase says what the live window currently holds.
type Phase int

const (
	PhaseReading  Phase = iota // a row read from the input
	PhasePadding               // filler standing in for a missing row
	PhaseDraining              // the filler row that flushes the window after end of input
)

func (p Phase) String() string {
	switch p {
	case PhaseReading:
		return "reading"
	case PhasePadding:
		return "padding"
	case PhaseDraining:
		return "draining"
	default:
		return "unknown"
	}
}

// state is the row-advance state machine.
type state struct {
	phase        Phase
	padRemaining int
	exhausted    bool
	lastOffset   float64
	rowDuration  float64
	pos          psrfits.Cursor // counts padded rows as if they existed
	padded       int
	dropped      int
	written      int
}

// Engine dedisperses and averages groups of adjacent channels of a
// search-mode row stream into subbands. It is not safe for concurrent use.
type Engine struct {
	r   psrfits.Reader
	in  psrfits.Header
	out psrfits.Header
	cfg Config
	opt options
	log zerolog.Logger
	met *metrics.Metrics

	cps      int // input channels per subband
	shift    uint
	width    int // input columns, nchan*npol
	outWidth int // output columns, nsub*npol

	table *dispersion.Table
	win   *buffer.Window
	stats *channel.Running
	nstat int

	live    *psrfits.Row // Data aliases the live window
	peek    *psrfits.Row // metadata only
	trail   *psrfits.Row // Data aliases the trail pad
	discard *psrfits.Row
	outRow  *psrfits.Row

	st state
}

// New validates cfg against the input layout, builds the delay table from
// the first row's channel frequencies and reads that row into the window.
func New(r psrfits.Reader, cfg Config, opts ...Option) (*Engine, error) {
	o := defaultOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	if o.metrics == nil {
		o.metrics = metrics.Discard()
	}

	h := r.Header()
	if err := h.Validate(); err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeConfiguration, "subband: input header")
	}
	switch {
	case cfg.NSub <= 0:
		return nil, perr.Configf("subband: number of subbands must be > 0: %d", cfg.NSub)
	case h.NChan%cfg.NSub != 0:
		return nil, perr.Configf("subband: %d channels is not evenly divisible by %d subbands", h.NChan, cfg.NSub)
	case h.NBits != 8:
		return nil, perr.Configf("subband: only 8-bit data can be subbanded, input has %d bits", h.NBits)
	}
	cps := h.NChan / cfg.NSub
	if cps&(cps-1) != 0 {
		return nil, perr.Configf("subband: %d channels per subband is not a power of two", cps)
	}

	e := &Engine{
		r:        r,
		in:       h,
		cfg:      cfg,
		opt:      o,
		log:      o.log,
		met:      o.metrics,
		cps:      cps,
		shift:    uint(bits.TrailingZeros(uint(cps))),
		width:    h.Width(),
		outWidth: cfg.NSub * h.NPol,
		nstat:    max(1, h.NSblk/o.statsFraction),
		peek:     &psrfits.Row{},
		discard:  &psrfits.Row{},
	}
	if err := e.init(); err != nil {
		return nil, err
	}
	return e, nil
}

func (e *Engine) init() error {
	h := e.in
	first := &psrfits.Row{Freqs: make([]float32, h.NChan)}
	if err := e.r.PeekRow(first); err != nil {
		if errors.Is(err, io.EOF) {
			return perr.Configf("subband: input has no rows")
		}
		return perr.WrapIO(err, "subband: peek first row")
	}

	freqs := make([]float64, h.NChan)
	for c, f := range first.Freqs {
		freqs[c] = float64(f)
	}
	table, err := dispersion.NewTable(dispersion.Params{
		ChanFreqs:  freqs,
		ChanWidth:  h.OrigDF,
		ChanPerSub: e.cps,
		NPol:       h.NPol,
		DM:         e.cfg.DM,
		DT:         h.DT,
		Delay:      e.opt.delay,
	})
	if err != nil {
		return perr.Wrap(err, perr.ErrorCodeConfiguration, "subband: delay table")
	}
	if err := table.Validate(); err != nil {
		return perr.Wrap(err, perr.ErrorCodeConfiguration, "subband: delay table")
	}
	e.table = table

	win, err := buffer.NewWindow(h.NSblk, e.width, table.MaxOverlap)
	if err != nil {
		return perr.Wrapf(err, perr.ErrorCodeConfiguration,
			"subband: dispersion smear of %d samples exceeds a row of %d", table.MaxOverlap, h.NSblk)
	}
	e.win = win
	e.stats = channel.NewRunning(e.width)

	e.live = psrfits.NewRow(h)
	e.live.Data = win.Live()
	e.trail = &psrfits.Row{Data: win.Trail()}

	e.st.rowDuration = first.TSubint
	if e.st.rowDuration <= 0 {
		e.st.rowDuration = h.RowDuration()
	}
	e.st.lastOffset = first.Offset - e.st.rowDuration

	e.out = e.outputHeader()
	e.outRow = e.newOutputRow()

	e.log.Debug().
		Int("nsub", e.cfg.NSub).
		Int("chan_per_sub", e.cps).
		Float64("dm", e.cfg.DM).
		Int("max_early", table.MaxEarly).
		Int("max_late", table.MaxLate).
		Int("max_overlap", table.MaxOverlap).
		Msg("initialised")

	if _, err := e.Advance(); err != nil {
		return err
	}
	e.win.FillLead(e.stats.Filler())
	return nil
}

func (e *Engine) outputHeader() psrfits.Header {
	out := e.in
	out.NChan = e.cfg.NSub
	out.OrigDF = e.in.OrigDF * float64(e.cps)
	out.DSFreqFact = e.cps
	out.ChanDM = e.cfg.DM
	return out
}

func (e *Engine) newOutputRow() *psrfits.Row {
	row := psrfits.NewRow(e.out)
	for s, f := range e.table.SubFreqs {
		row.Freqs[s] = float32(f)
		row.Weights[s] = 1
	}
	for i := range row.Scales {
		row.Scales[i] = 1
	}
	return row
}

// OutputHeader returns the header of the subbanded file set.
func (e *Engine) OutputHeader() psrfits.Header { return e.out }

// Table returns the per-column delay table.
func (e *Engine) Table() *dispersion.Table { return e.table }

// Window returns the sliding sample window.
func (e *Engine) Window() *buffer.Window { return e.win }

// Phase reports what the live window holds.
func (e *Engine) Phase() Phase { return e.st.phase }

// Position returns the engine's row, sample and time counters. Padded rows
// are counted, so after a gap they match an input without one.
func (e *Engine) Position() psrfits.Cursor { return e.st.pos }

// Padded returns the number of synthesised rows so far.
func (e *Engine) Padded() int { return e.st.padded }

// Advance moves the live window to the next row: either filler owed from
// an earlier gap or the next input row. A row whose offset is not one row
// duration after the previous one is treated as missing; the live window is
// filled from the channel statistics and the number of padded rows still
// owed after this one is returned. End of input yields one filler row that
// flushes the window; calling Advance again after that returns io.EOF.
func (e *Engine) Advance() (int, error) {
	s := &e.st
	if s.exhausted {
		return 0, io.EOF
	}
	if s.padRemaining > 0 {
		// the live window still holds the filler written at the gap
		s.padRemaining--
		e.padded()
		return s.padRemaining, nil
	}
	if e.opt.progress != nil {
		c := e.r.Cursor()
		e.opt.progress.Update(c.Row, c.Total)
	}

	for {
		err := e.r.PeekRow(e.peek)
		if errors.Is(err, io.EOF) {
			e.log.Info().Int("row", s.pos.Row+1).Msg("end of input, flushing window")
			e.win.FillLive(e.stats.Filler())
			s.exhausted = true
			s.phase = PhaseDraining
			e.padded()
			return 0, nil
		}
		if err != nil {
			return 0, perr.WrapIO(err, "subband: read row %d", e.r.Cursor().Row+1)
		}

		diff := e.peek.Offset - s.lastOffset
		if math.Abs(diff-s.rowDuration) <= offsetTolerance {
			break
		}
		if diff < s.rowDuration {
			// out of order or repeated; it cannot be placed on the cadence
			if err := e.r.ReadRow(e.discard); err != nil {
				return 0, perr.WrapIO(err, "subband: skip row %d", e.r.Cursor().Row+1)
			}
			s.dropped++
			e.log.Warn().
				Float64("offset", e.peek.Offset).
				Float64("expected", s.lastOffset+s.rowDuration).
				Msg("dropping row behind the expected cadence")
			continue
		}

		n := max(1, int(math.Round(diff/s.rowDuration))-1)
		e.log.Info().
			Int("row", s.pos.Row+1).
			Int("dropped", n).
			Msg("found dropped rows")
		e.win.FillLive(e.stats.Filler())
		s.padRemaining = n - 1
		s.phase = PhasePadding
		e.padded()
		return s.padRemaining, nil
	}

	if err := e.r.ReadRow(e.live); err != nil {
		return 0, perr.WrapIO(err, "subband: read row %d", e.r.Cursor().Row+1)
	}
	e.stats.Update(e.win.Live(), e.nstat)
	s.lastOffset = e.live.Offset
	s.phase = PhaseReading
	s.pos.Advance(e.in)
	e.met.RowsRead.WithLabelValues(e.opt.label).Inc()
	return 0, nil
}

// padded advances the counters past a synthesised row.
func (e *Engine) padded() {
	s := &e.st
	s.lastOffset += s.rowDuration
	s.pos.Advance(e.in)
	s.padded++
	e.met.RowsPadded.Inc()
}

// MakeSubbands averages each group of channels at their delays into the
// output row and returns its DATA, laid out [time][pol][subband]. Samples
// are unsigned 8-bit values, so 0xff averages as 255 rather than -1.
func (e *Engine) MakeSubbands() []byte {
	out := e.outRow.Data
	delays := e.table.Delays
	half := e.cps >> 1
	n := e.win.Len()
	for t := 0; t < n; t++ {
		o := out[t*e.outWidth : (t+1)*e.outWidth]
		col := 0
		for j := range o {
			sum := half
			for k := 0; k < e.cps; k++ {
				sum += int(e.win.At(t+delays[col], col))
				col++
			}
			o[j] = byte(sum >> e.shift)
		}
	}
	return out
}

// fillTrailing loads the head of the next row into the trail pad, or filler
// when the next row is synthesised. It reports whether the current row is
// the last one.
func (e *Engine) fillTrailing() (bool, error) {
	s := &e.st
	if s.exhausted {
		e.win.FillTrail(e.stats.Filler())
		return true, nil
	}
	if s.padRemaining > 0 {
		e.win.FillTrail(e.stats.Filler())
		return false, nil
	}
	err := e.r.PeekRow(e.trail)
	switch {
	case errors.Is(err, io.EOF):
		e.log.Debug().Msg("adding next-block padding")
		e.win.FillTrail(e.stats.Filler())
	case err != nil:
		return false, perr.WrapIO(err, "subband: read head of row %d", e.r.Cursor().Row+1)
	case math.Abs(e.trail.Offset-s.lastOffset-s.rowDuration) > offsetTolerance:
		e.win.FillTrail(e.stats.Filler())
	}
	return false, nil
}

func (e *Engine) writeRow(w psrfits.Writer) error {
	row := e.outRow
	row.Pointing = e.live.Pointing
	row.TSubint = e.st.rowDuration
	row.Offset = (float64(e.st.written) + 0.5) * e.st.rowDuration
	if err := w.WriteRow(row); err != nil {
		return perr.WrapIO(err, "subband: write row %d", e.st.written+1)
	}
	e.st.written++
	e.met.RowsWritten.Inc()
	return nil
}

// Run writes one output row per input row, plus padding for gaps and the
// final flush row, to w. The context is checked between rows.
func (e *Engine) Run(ctx context.Context, w psrfits.Writer) error {
	if e.st.exhausted && e.st.written > 0 {
		return perr.New(perr.ErrorCodeUnknown, "subband: engine already ran")
	}
	for {
		if err := ctx.Err(); err != nil {
			return perr.Wrap(err, perr.ErrorCodeCanceled, "subband: interrupted")
		}
		final, err := e.fillTrailing()
		if err != nil {
			return err
		}
		e.MakeSubbands()
		if err := e.writeRow(w); err != nil {
			return err
		}
		if final {
			break
		}
		e.win.ShiftTail()
		if _, err := e.Advance(); err != nil {
			return err
		}
	}
	if e.opt.progress != nil {
		e.opt.progress.Update(1, 1)
	}
	e.log.Info().
		Int("rows_read", e.r.Cursor().Row).
		Int("rows_padded", e.st.padded).
		Int("rows_dropped", e.st.dropped).
		Int("rows_written", e.st.written).
		Msg("subbanding complete")
	return nil
}

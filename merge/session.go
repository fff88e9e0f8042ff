package merge

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	perr "github.com/scottransom/psrfits-utils/internal/errors"
	"github.com/scottransom/psrfits-utils/internal/metrics"
	"github.com/scottransom/psrfits-utils/psrfits"
)

// Input is one band recording to merge.
type Input struct {
	Name   string
	Reader psrfits.Reader
}

// BandFile is one input within a session. Row's slices are disjoint regions
// of the session's scratch space, owned by the band's worker during a read
// round and read by the session only after every worker has returned.
type BandFile struct {
	Name   string
	ChanID int // position in ascending band order of the output
	Reader psrfits.Reader
	Row    *psrfits.Row
	Status error // result of the last read round
}

// Session merges a fixed set of band files. It is not safe for concurrent
// use; concurrency happens inside ReadRound.
type Session struct {
	bands []*BandFile
	gate  *ReadGate
	opt   options
	log   zerolog.Logger
	met   *metrics.Metrics

	in     psrfits.Header // first input
	out    psrfits.Header
	nbands int
	flow   float64
	fhigh  float64
	fctr   float64

	data    []byte    // [band][time][pol][chan]
	offsets []float32 // [band][pol][chan]
	scales  []float32 // [band][pol][chan]
	row     *psrfits.Row

	rounds  int
	written int
}

// New checks that the inputs belong together and assigns each its band
// position. Every check happens before any row is read.
func New(inputs []Input, opts ...Option) (*Session, error) {
	o := defaultOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	if o.metrics == nil {
		o.metrics = metrics.Discard()
	}
	if o.gate == nil {
		o.gate = &ReadGate{}
	}
	if len(inputs) == 0 {
		return nil, perr.Configf("merge: no input files")
	}

	s := &Session{gate: o.gate, opt: o, log: o.log, met: o.metrics}
	if err := s.validate(inputs); err != nil {
		return nil, err
	}
	ids, err := s.assignBands(inputs)
	if err != nil {
		return nil, err
	}
	s.out = s.outputHeader()
	s.allocate(inputs, ids)
	return s, nil
}

func (s *Session) validate(inputs []Input) error {
	first := inputs[0]
	h0 := first.Reader.Header()
	if err := h0.Validate(); err != nil {
		return perr.Wrapf(err, perr.ErrorCodeConfiguration, "merge: %s", first.Name)
	}
	s.in = h0
	s.log.Debug().Str("source", h0.Source).Int("nchan", h0.NChan).Msg("first input")

	for _, in := range inputs[1:] {
		h := in.Reader.Header()
		switch {
		case h.Source != h0.Source:
			return perr.Configf("merge: file %s has not the same source as file %s (%s and %s)",
				in.Name, first.Name, h.Source, h0.Source)
		case h.NChan != h0.NChan:
			return perr.Configf("merge: file %s has not the same number of channels as file %s (%d and %d)",
				in.Name, first.Name, h.NChan, h0.NChan)
		case !h.SameLayout(h0):
			return perr.Configf("merge: file %s has a different row layout than file %s (%+v and %+v)",
				in.Name, first.Name, h.Layout(), h0.Layout())
		}
	}
	return nil
}

// assignBands derives each input's band position from its centre frequency.
func (s *Session) assignBands(inputs []Input) ([]int, error) {
	s.flow = inputs[0].Reader.Header().FCtr
	s.fhigh = s.flow
	for _, in := range inputs[1:] {
		f := in.Reader.Header().FCtr
		s.flow = min(s.flow, f)
		s.fhigh = max(s.fhigh, f)
	}
	s.fctr = s.flow + (s.fhigh-s.flow)/2
	s.log.Debug().Float64("f_ctr_low", s.flow).Float64("f_ctr_high", s.fhigh).Float64("fctr", s.fctr).Msg("band centres")

	bw0 := math.Abs(s.in.BW)
	if bw0 == 0 {
		return nil, perr.Configf("merge: file %s has zero bandwidth", inputs[0].Name)
	}
	s.nbands = int(math.Round((s.fhigh-s.flow)/bw0)) + 1
	if s.nbands != len(inputs) {
		s.log.Warn().
			Int("subbands", s.nbands).
			Int("files", len(inputs)).
			Msg("are we missing one or more subband files?")
	}

	ids := make([]int, len(inputs))
	owner := make(map[int]string, len(inputs))
	for i, in := range inputs {
		h := in.Reader.Header()
		bw := math.Abs(h.BW)
		if bw == 0 {
			return nil, perr.Configf("merge: file %s has zero bandwidth", in.Name)
		}
		id := int(math.Round((h.FCtr - s.flow) / bw))
		if s.in.BW < 0 {
			// lower sideband: channels descend in frequency, so bands must too
			id = s.nbands - 1 - id
		}
		if id < 0 || id >= s.nbands {
			return nil, perr.Configf("merge: file %s maps to band %d outside [0, %d)", in.Name, id, s.nbands)
		}
		if prev, dup := owner[id]; dup {
			return nil, perr.Configf("merge: files %s and %s both map to band %d", prev, in.Name, id)
		}
		owner[id] = in.Name
		ids[i] = id
		s.log.Debug().Str("file", in.Name).Int("chan_id", id).Msg("band assigned")
	}
	return ids, nil
}

func (s *Session) outputHeader() psrfits.Header {
	out := s.in
	out.ObsMode = "SEARCH"
	out.NChan = s.in.NChan * s.nbands
	out.OrigNChan = out.NChan
	out.FCtr = s.fctr
	out.BW = s.in.BW * float64(s.nbands)
	out.RowsPerFile = max(1, int(s.opt.maxFileBytes/int64(out.BytesPerRow())))
	return out
}

// allocate hands every band its own disjoint region of the scratch space
// and of the output row's frequency and weight vectors.
func (s *Session) allocate(inputs []Input, ids []int) {
	nchan, npol := s.in.NChan, s.in.NPol
	bpr := s.in.BytesPerRow()
	meta := npol * nchan

	s.data = make([]byte, s.nbands*bpr)
	s.offsets = make([]float32, s.nbands*meta)
	s.scales = make([]float32, s.nbands*meta)
	s.row = psrfits.NewRow(s.out)

	s.bands = make([]*BandFile, len(inputs))
	for i, in := range inputs {
		id := ids[i]
		c0, c1 := id*nchan, (id+1)*nchan
		m0, m1 := id*meta, (id+1)*meta
		d0, d1 := id*bpr, (id+1)*bpr
		s.bands[i] = &BandFile{
			Name:   in.Name,
			ChanID: id,
			Reader: in.Reader,
			Row: &psrfits.Row{
				Freqs:   s.row.Freqs[c0:c1:c1],
				Weights: s.row.Weights[c0:c1:c1],
				Offsets: s.offsets[m0:m1:m1],
				Scales:  s.scales[m0:m1:m1],
				Data:    s.data[d0:d1:d1],
			},
		}
	}
}

// Bands returns the band files in input order.
func (s *Session) Bands() []*BandFile { return s.bands }

// Gate returns the read gate shared by the session's workers.
func (s *Session) Gate() *ReadGate { return s.gate }

// NBands returns the number of band slots in the output, including any
// with no input file.
func (s *Session) NBands() int { return s.nbands }

// Frequencies returns the lowest and highest input centre frequencies and
// the output centre frequency.
func (s *Session) Frequencies() (flow, fhigh, fctr float64) { return s.flow, s.fhigh, s.fctr }

// OutputHeader returns the header of the merged file set.
func (s *Session) OutputHeader() psrfits.Header { return s.out }

// Row returns the merged output row. It is valid after Assemble.
func (s *Session) Row() *psrfits.Row { return s.row }

// ReadRound reads one row from every input in parallel and waits for all of
// them. A failing read does not cancel its peers; the statuses are combined
// afterwards. It returns io.EOF if any input is exhausted and an I/O error
// if any read failed, the error taking precedence.
func (s *Session) ReadRound(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return perr.Wrap(err, perr.ErrorCodeCanceled, "merge: interrupted")
	}
	workers := s.opt.workers
	if workers <= 0 {
		workers = len(s.bands)
	}

	var g errgroup.Group
	g.SetLimit(workers)
	for _, b := range s.bands {
		g.Go(func() error {
			b.Status = s.gate.Do(func() error {
				start := time.Now()
				defer func() { s.met.ReadSeconds.Observe(time.Since(start).Seconds()) }()
				return b.Reader.ReadRow(b.Row)
			})
			if b.Status == nil {
				s.met.RowsRead.WithLabelValues(b.Name).Inc()
			}
			return nil
		})
	}
	_ = g.Wait()
	s.rounds++
	s.met.ReadRounds.Inc()

	var (
		errs []error
		eof  bool
	)
	for _, b := range s.bands {
		switch {
		case b.Status == nil:
		case errors.Is(b.Status, io.EOF):
			eof = true
		default:
			errs = append(errs, fmt.Errorf("%s: %w", b.Name, b.Status))
		}
	}
	if len(errs) > 0 {
		return perr.Wrapf(errors.Join(errs...), perr.ErrorCodeIO, "merge: read round %d", s.rounds)
	}
	if eof {
		return io.EOF
	}
	if s.rounds == 1 {
		s.dumpFrequencies()
	}
	return nil
}

func (s *Session) dumpFrequencies() {
	if s.log.GetLevel() > zerolog.DebugLevel {
		return
	}
	for i, b := range s.bands {
		for c, f := range b.Row.Freqs {
			s.log.Debug().Int("file", i).Int("chan", c).Float32("freq", f).Msg("channel frequency")
		}
	}
}

// Assemble builds the output row from the rows of the last read round.
// Pointing and timing come from the first input only; the other inputs are
// assumed to agree.
func (s *Session) Assemble() *psrfits.Row {
	s.row.CopyMeta(s.bands[0].Row)
	h := s.in
	Reorder(s.row.Data, s.data, s.nbands, h.NSblk, h.NPol, h.NChan, h.NBits)
	transpose(s.row.Offsets, s.offsets, s.nbands, 1, h.NPol, h.NChan)
	transpose(s.row.Scales, s.scales, s.nbands, 1, h.NPol, h.NChan)
	return s.row
}

// Run merges rows until any input runs out, writing each to w. A read
// error in any input stops the merge at the end of its round. The context
// is checked between rounds.
func (s *Session) Run(ctx context.Context, w psrfits.Writer) error {
	if s.opt.progress != nil {
		s.opt.progress.Reset()
	}
	for {
		err := s.ReadRound(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}
		if err := w.WriteRow(s.Assemble()); err != nil {
			return perr.WrapIO(err, "merge: write row %d", s.written+1)
		}
		s.written++
		s.met.RowsWritten.Inc()
		if s.opt.progress != nil {
			c := s.bands[0].Reader.Cursor()
			s.opt.progress.Update(c.Row, c.Total)
		}
	}
	s.log.Info().
		Int("rounds", s.rounds).
		Int("rows_written", s.written).
		Int("bands", s.nbands).
		Int("files", len(s.bands)).
		Msg("merge complete")
	return nil
}

// Written returns the number of merged rows written by Run.
func (s *Session) Written() int { return s.written }

// Close closes every input reader.
func (s *Session) Close() error {
	var errs []error
	for _, b := range s.bands {
		if err := b.Reader.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", b.Name, err))
		}
	}
	return errors.Join(errs...)
}

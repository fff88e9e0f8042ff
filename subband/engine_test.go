package subband

import (
	"context"
	"errors"
	"io"
	"math"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"

	perr "github.com/scottransom/psrfits-utils/internal/errors"
	"github.com/scottransom/psrfits-utils/internal/metrics"
	"github.com/scottransom/psrfits-utils/internal/testutil"
	"github.com/scottransom/psrfits-utils/psrfits"
)

func run(t *testing.T, h psrfits.Header, rows []*psrfits.Row, cfg Config, opts ...Option) (*Engine, []*psrfits.Row) {
	t.Helper()
	e, err := New(psrfits.NewMemoryReader(h, rows), cfg, opts...)
	if err != nil {
		t.Fatalf("New() = %v", err)
	}
	w := psrfits.NewMemoryWriter(e.OutputHeader())
	if err := e.Run(context.Background(), w); err != nil {
		t.Fatalf("Run() = %v", err)
	}
	return e, w.Rows()
}

func TestConstantInputGivesConstantOutput(t *testing.T) {
	h := testutil.Header(16, 2, 32)
	e, out := run(t, h, testutil.ConstRows(h, 5, 77), Config{NSub: 4, DM: 2000})

	if e.Table().MaxOverlap == 0 {
		t.Fatal("MaxOverlap = 0, want a dispersive test case")
	}
	if len(out) != 6 {
		t.Fatalf("wrote %d rows, want 5 + 1 flush row", len(out))
	}
	for i, r := range out {
		if len(r.Data) != 32*4*2 {
			t.Fatalf("row %d len(Data) = %d, want %d", i, len(r.Data), 32*4*2)
		}
		testutil.RequireAll(t, r.Data, 77)
	}
}

func TestMakeSubbandsRounding(t *testing.T) {
	h := testutil.Header(8, 1, 2)
	rows := testutil.RowStream(h, 1, func(_ int, data []byte) {
		copy(data, []byte{
			1, 1, 1, 2, 1, 1, 2, 2,
			0, 0, 0, 1, 255, 255, 255, 255,
		})
	})
	e, err := New(psrfits.NewMemoryReader(h, rows), Config{NSub: 2})
	if err != nil {
		t.Fatalf("New() = %v", err)
	}
	got := e.MakeSubbands()
	testutil.RequireBytesEqual(t, got, []byte{1, 2, 0, 255}, 2)
}

func TestMakeSubbandsMatchesRoundedMean(t *testing.T) {
	for _, nsub := range []int{1, 2, 4, 8, 16} {
		h := testutil.Header(16, 2, 16)
		rows := testutil.NoiseRows(h, 1, int64(nsub))
		e, err := New(psrfits.NewMemoryReader(h, rows), Config{NSub: nsub})
		if err != nil {
			t.Fatalf("New(nsub=%d) = %v", nsub, err)
		}
		cps := 16 / nsub
		got := e.MakeSubbands()
		in := rows[0].Data
		for t0 := 0; t0 < h.NSblk; t0++ {
			for j := 0; j < nsub*h.NPol; j++ {
				sum := 0
				for k := 0; k < cps; k++ {
					sum += int(in[t0*h.Width()+j*cps+k])
				}
				want := byte(math.Floor(float64(sum)/float64(cps) + 0.5))
				if g := got[t0*nsub*h.NPol+j]; g != want {
					t.Fatalf("nsub=%d sample %d col %d = %d, want %d", nsub, t0, j, g, want)
				}
			}
		}
	}
}

func TestSingleMissingRowIsPadded(t *testing.T) {
	h := testutil.Header(4, 1, 8)
	rows := testutil.ColumnRows(h, 4, func(i, col int) byte { return byte(10*(i+1) + col) })
	m := metrics.New(prometheus.NewRegistry())
	r := psrfits.NewMemoryReader(h, testutil.Drop(rows, 2))

	e, err := New(r, Config{NSub: 4}, WithMetrics(m))
	if err != nil {
		t.Fatalf("New() = %v", err)
	}
	if e.Phase() != PhaseReading || e.Position().Row != 1 {
		t.Fatalf("after New: phase %v row %d", e.Phase(), e.Position().Row)
	}

	if n, err := e.Advance(); err != nil || n != 0 {
		t.Fatalf("Advance() = (%d, %v), want (0, nil)", n, err)
	}

	n, err := e.Advance()
	if err != nil || n != 0 {
		t.Fatalf("Advance() over gap = (%d, %v), want (0, nil)", n, err)
	}
	if e.Phase() != PhasePadding {
		t.Fatalf("Phase() = %v, want padding", e.Phase())
	}
	pos := e.Position()
	if pos.Row != 3 || pos.N != 24 || pos.T != float64(24)*h.DT {
		t.Fatalf("Position() = %+v, want row 3 at 24 samples", pos)
	}
	if r.Cursor().Row != 2 {
		t.Fatalf("input Cursor().Row = %d, want 2 real rows", r.Cursor().Row)
	}
	live := e.Window().Live()
	for j, b := range live {
		if want := byte(20 + j%4); b != want {
			t.Fatalf("padded sample %d = %d, want %d from the preceding row", j, b, want)
		}
	}

	if _, err := e.Advance(); err != nil || e.Phase() != PhaseReading || e.Window().At(0, 1) != 41 {
		t.Fatalf("Advance() after gap: err %v phase %v", err, e.Phase())
	}
	if _, err := e.Advance(); err != nil || e.Phase() != PhaseDraining || e.Position().Row != 5 {
		t.Fatalf("Advance() at end: err %v phase %v row %d", err, e.Phase(), e.Position().Row)
	}
	if _, err := e.Advance(); !errors.Is(err, io.EOF) {
		t.Fatalf("Advance() after flush = %v, want io.EOF", err)
	}

	if got := promtest.ToFloat64(m.RowsRead.WithLabelValues("input")); got != 3 {
		t.Fatalf("rows read = %v, want 3", got)
	}
	if got := promtest.ToFloat64(m.RowsPadded); got != 2 {
		t.Fatalf("rows padded = %v, want 2 (gap + flush)", got)
	}
}

func TestRunPadsGapAndFlushes(t *testing.T) {
	h := testutil.Header(4, 1, 8)
	rows := testutil.ColumnRows(h, 4, func(i, col int) byte { return byte(10*(i+1) + col) })
	m := metrics.New(prometheus.NewRegistry())
	e, out := run(t, h, testutil.Drop(rows, 2), Config{NSub: 4}, WithMetrics(m))

	want := []byte{10, 20, 20, 40, 40}
	if len(out) != len(want) {
		t.Fatalf("wrote %d rows, want %d", len(out), len(want))
	}
	for k, r := range out {
		for j, b := range r.Data {
			if b != want[k]+byte(j%4) {
				t.Fatalf("row %d sample %d = %d, want %d", k, j, b, want[k]+byte(j%4))
			}
		}
		if off := (float64(k) + 0.5) * h.RowDuration(); math.Abs(r.Offset-off) > 1e-12 {
			t.Fatalf("row %d Offset = %v, want %v", k, r.Offset, off)
		}
	}
	if e.Padded() != 2 {
		t.Fatalf("Padded() = %d, want 2", e.Padded())
	}
	if got := promtest.ToFloat64(m.RowsWritten); got != 5 {
		t.Fatalf("rows written = %v, want 5", got)
	}
}

func TestMultiRowGap(t *testing.T) {
	h := testutil.Header(4, 1, 8)
	rows := testutil.Drop(testutil.ConstRows(h, 7, 9), 2, 3, 4)
	e, err := New(psrfits.NewMemoryReader(h, rows), Config{NSub: 2})
	if err != nil {
		t.Fatalf("New() = %v", err)
	}
	e.Advance()
	for _, want := range []int{2, 1, 0} {
		n, err := e.Advance()
		if err != nil || n != want {
			t.Fatalf("Advance() = (%d, %v), want (%d, nil)", n, err, want)
		}
		if e.Phase() != PhasePadding {
			t.Fatalf("Phase() = %v, want padding", e.Phase())
		}
	}
	if _, err := e.Advance(); err != nil || e.Position().Row != 6 {
		t.Fatalf("Advance() = %v at row %d, want row 6", err, e.Position().Row)
	}
}

func TestDuplicateRowIsDropped(t *testing.T) {
	h := testutil.Header(4, 1, 8)
	rows := testutil.ColumnRows(h, 3, func(i, _ int) byte { return byte(i + 1) })
	stream := []*psrfits.Row{rows[0], rows[1], rows[1].Clone(), rows[2]}
	_, out := run(t, h, stream, Config{NSub: 4})
	if len(out) != 4 {
		t.Fatalf("wrote %d rows, want 3 + flush", len(out))
	}
	if out[2].Data[0] != 3 {
		t.Fatalf("row 2 = %d, want the row after the duplicate", out[2].Data[0])
	}
}

// Channel 0 is delayed by +1 sample and channel 1 by -1, so samples from
// the neighbouring rows must come through the pads.
func TestDedispersionAcrossRowBoundaries(t *testing.T) {
	h := testutil.Header(2, 1, 4)
	h.DT = 0.5
	rows := testutil.RowStream(h, 3, func(i int, data []byte) {
		for s := 0; s < 4; s++ {
			g := byte(4*i + s)
			data[2*s] = g
			data[2*s+1] = g + 2
		}
	})
	for _, r := range rows {
		r.Freqs[0], r.Freqs[1] = 0, 1
	}
	linear := func(dm, f float64) float64 { return -dm * f }

	e, out := run(t, h, rows, Config{NSub: 1, DM: 1}, WithDelay(linear))
	if d := e.Table().Delays; d[0] != 1 || d[1] != -1 {
		t.Fatalf("Delays = %v, want [1 -1]", d)
	}
	if len(out) != 4 {
		t.Fatalf("wrote %d rows, want 4", len(out))
	}
	for g := 1; g <= 10; g++ {
		if got := out[g/4].Data[g%4]; got != byte(g+1) {
			t.Fatalf("output sample %d = %d, want %d", g, got, g+1)
		}
	}
}

func TestOutputHeaderAndRow(t *testing.T) {
	h := testutil.Header(8, 2, 4)
	e, out := run(t, h, testutil.ConstRows(h, 1, 3), Config{NSub: 2, DM: 12.5})
	oh := e.OutputHeader()
	if oh.NChan != 2 || oh.OrigDF != 4 || oh.DSFreqFact != 4 || oh.ChanDM != 12.5 || oh.Source != h.Source {
		t.Fatalf("OutputHeader() = %+v", oh)
	}
	r := out[0]
	if r.Freqs[0] != 1398 || r.Freqs[1] != 1402 {
		t.Fatalf("Freqs = %v, want [1398 1402]", r.Freqs)
	}
	if len(r.Scales) != 4 || r.Scales[3] != 1 || r.Offsets[3] != 0 || r.Weights[1] != 1 {
		t.Fatalf("calibration vectors = %v %v %v", r.Weights, r.Offsets, r.Scales)
	}
	if r.RA != 268.4 {
		t.Fatalf("RA = %v, want the input pointing", r.RA)
	}
}

func TestNewConfigurationErrors(t *testing.T) {
	tests := []struct {
		name  string
		h     func() psrfits.Header
		cfg   Config
		nrows int
	}{
		{"zero subbands", func() psrfits.Header { return testutil.Header(4, 1, 8) }, Config{NSub: 0}, 2},
		{"not divisible", func() psrfits.Header { return testutil.Header(4, 1, 8) }, Config{NSub: 3}, 2},
		{"not a power of two", func() psrfits.Header { return testutil.Header(6, 1, 8) }, Config{NSub: 2}, 2},
		{"4-bit data", func() psrfits.Header {
			h := testutil.Header(4, 1, 8)
			h.NBits = 4
			return h
		}, Config{NSub: 2}, 2},
		{"empty input", func() psrfits.Header { return testutil.Header(4, 1, 8) }, Config{NSub: 2}, 0},
		{"smear longer than a row", func() psrfits.Header { return testutil.Header(16, 1, 8) }, Config{NSub: 4, DM: 2000}, 2},
	}
	for _, tt := range tests {
		h := tt.h()
		_, err := New(psrfits.NewMemoryReader(h, testutil.ConstRows(h, tt.nrows, 1)), tt.cfg)
		if !perr.IsCode(err, perr.ErrorCodeConfiguration) {
			t.Fatalf("%s: New() = %v, want configuration error", tt.name, err)
		}
	}
}

func TestCorruptDelayTableIsCaught(t *testing.T) {
	h := testutil.Header(16, 2, 32)
	e, err := New(psrfits.NewMemoryReader(h, testutil.ConstRows(h, 2, 1)), Config{NSub: 4, DM: 2000})
	if err != nil {
		t.Fatalf("New() = %v", err)
	}
	tab := e.Table()
	if err := tab.Validate(); err != nil {
		t.Fatalf("Validate() = %v", err)
	}
	for i, d := range tab.Delays {
		if d < -tab.MaxOverlap || d > tab.MaxOverlap {
			t.Fatalf("Delays[%d] = %d exceeds MaxOverlap %d", i, d, tab.MaxOverlap)
		}
	}

	tab.Delays[5] = tab.MaxLate + tab.MaxOverlap + 1
	if tab.Validate() == nil {
		t.Fatal("Validate() = nil for a corrupted table")
	}
	defer func() {
		if recover() == nil {
			t.Fatal("MakeSubbands() read outside the window without panicking")
		}
	}()
	e.MakeSubbands()
}

func TestReadErrorStopsRun(t *testing.T) {
	h := testutil.Header(4, 1, 8)
	r := psrfits.NewMemoryReader(h, testutil.ConstRows(h, 4, 1))
	r.FailAt = 2
	r.Err = errors.New("checksum mismatch")
	e, err := New(r, Config{NSub: 2})
	if err != nil {
		t.Fatalf("New() = %v", err)
	}
	err = e.Run(context.Background(), psrfits.NewMemoryWriter(e.OutputHeader()))
	if !perr.IsCode(err, perr.ErrorCodeIO) || !errors.Is(err, r.Err) {
		t.Fatalf("Run() = %v, want wrapped I/O error", err)
	}
}

func TestRunCanceled(t *testing.T) {
	h := testutil.Header(4, 1, 8)
	e, err := New(psrfits.NewMemoryReader(h, testutil.ConstRows(h, 3, 1)), Config{NSub: 2})
	if err != nil {
		t.Fatalf("New() = %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	w := psrfits.NewMemoryWriter(e.OutputHeader())
	if err := e.Run(ctx, w); !perr.IsCode(err, perr.ErrorCodeCanceled) {
		t.Fatalf("Run() = %v, want canceled", err)
	}
	if len(w.Rows()) != 0 {
		t.Fatalf("wrote %d rows after cancel", len(w.Rows()))
	}
}

func TestPhaseString(t *testing.T) {
	for p, want := range map[Phase]string{PhaseReading: "reading", PhasePadding: "padding", PhaseDraining: "draining", Phase(9): "unknown"} {
		if p.String() != want {
			t.Fatalf("Phase(%d).String() = %q, want %q", p, p.String(), want)
		}
	}
}

package extract

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"

	perr "github.com/scottransom/psrfits-utils/internal/errors"
	"github.com/scottransom/psrfits-utils/internal/metrics"
	"github.com/scottransom/psrfits-utils/internal/progress"
	"github.com/scottransom/psrfits-utils/internal/testutil"
	"github.com/scottransom/psrfits-utils/psrfits"
)

func TestRange(t *testing.T) {
	tests := []struct {
		start, end float64
		nrows      int
		lo, hi     int
	}{
		{0, 1, 10, 1, 10},
		{0.5, 1, 10, 6, 10},
		{0, 0.5, 10, 1, 5},
		{0.25, 0.75, 10, 3, 7},
		{0, 0.05, 10, 1, 0},
		{0.5, 0.5, 8, 5, 4},
	}
	for _, tt := range tests {
		lo, hi := Range(tt.start, tt.end, tt.nrows)
		if lo != tt.lo || hi != tt.hi {
			t.Fatalf("Range(%v, %v, %d) = (%d, %d), want (%d, %d)", tt.start, tt.end, tt.nrows, lo, hi, tt.lo, tt.hi)
		}
	}
}

func TestRowsCopiesSelectedRange(t *testing.T) {
	h := testutil.Header(4, 1, 2)
	rows := testutil.ColumnRows(h, 10, func(i, _ int) byte { return byte(i) })
	m := metrics.New(prometheus.NewRegistry())
	meter := progress.New(nil)

	w := psrfits.NewMemoryWriter(h)
	n, err := Rows(context.Background(), psrfits.NewMemoryReader(h, rows), w, 0.25, 0.75,
		WithMetrics(m), WithProgress(meter))
	if err != nil {
		t.Fatalf("Rows() = %v", err)
	}
	if n != 5 {
		t.Fatalf("Rows() wrote %d, want 5", n)
	}
	out := w.Rows()
	for i, r := range out {
		want := byte(i + 2)
		testutil.RequireAll(t, r.Data, want)
		if r.Offset != rows[i+2].Offset {
			t.Fatalf("row %d Offset = %v, want %v", i, r.Offset, rows[i+2].Offset)
		}
	}
	if got := promtest.ToFloat64(m.RowsRead.WithLabelValues("input")); got != 7 {
		t.Fatalf("rows read = %v, want 7", got)
	}
	if got := promtest.ToFloat64(m.RowsWritten); got != 5 {
		t.Fatalf("rows written = %v, want 5", got)
	}
	if meter.Last() != 70 {
		t.Fatalf("progress = %d, want 70", meter.Last())
	}
}

func TestRowsWholeFile(t *testing.T) {
	h := testutil.Header(4, 2, 3)
	rows := testutil.NoiseRows(h, 6, 3)
	w := psrfits.NewMemoryWriter(h)
	n, err := Rows(context.Background(), psrfits.NewMemoryReader(h, rows), w, 0, 1)
	if err != nil || n != 6 {
		t.Fatalf("Rows() = (%d, %v), want (6, nil)", n, err)
	}
	for i, r := range w.Rows() {
		testutil.RequireBytesEqual(t, r.Data, rows[i].Data, h.Width())
	}
}

func TestRowsRejectsBadFractions(t *testing.T) {
	h := testutil.Header(4, 1, 2)
	tests := []struct {
		name       string
		start, end float64
	}{
		{"negative start", -0.1, 1},
		{"end past one", 0, 1.5},
		{"reversed", 0.8, 0.2},
		{"empty", 0, 0.05},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := psrfits.NewMemoryReader(h, testutil.ConstRows(h, 10, 1))
			w := psrfits.NewMemoryWriter(h)
			_, err := Rows(context.Background(), r, w, tt.start, tt.end)
			if !perr.IsCode(err, perr.ErrorCodeConfiguration) {
				t.Fatalf("Rows() = %v, want a configuration error", err)
			}
			if len(w.Rows()) != 0 || r.Cursor().Row != 0 {
				t.Fatal("rows were moved despite the configuration error")
			}
		})
	}
}

func TestRowsUnknownRowCount(t *testing.T) {
	h := testutil.Header(4, 1, 2)
	_, err := Rows(context.Background(), psrfits.NewMemoryReader(h, nil), psrfits.NewMemoryWriter(h), 0, 1)
	if !perr.IsCode(err, perr.ErrorCodeConfiguration) {
		t.Fatalf("Rows() = %v, want a configuration error", err)
	}
}

func TestRowsTruncatedInput(t *testing.T) {
	h := testutil.Header(4, 1, 2)
	r := psrfits.NewMemoryReader(h, testutil.ConstRows(h, 10, 1))
	r.FailAt, r.Err = 4, io.EOF

	w := psrfits.NewMemoryWriter(h)
	n, err := Rows(context.Background(), r, w, 0, 1)
	if !perr.IsCode(err, perr.ErrorCodeIO) || !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Fatalf("Rows() = %v, want an unexpected EOF I/O error", err)
	}
	if n != 4 || len(w.Rows()) != 4 {
		t.Fatalf("wrote %d rows (%d stored), want 4", n, len(w.Rows()))
	}
}

func TestRowsCanceled(t *testing.T) {
	h := testutil.Header(4, 1, 2)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Rows(ctx, psrfits.NewMemoryReader(h, testutil.ConstRows(h, 3, 1)), psrfits.NewMemoryWriter(h), 0, 1)
	if !perr.IsCode(err, perr.ErrorCodeCanceled) {
		t.Fatalf("Rows() = %v, want canceled", err)
	}
}

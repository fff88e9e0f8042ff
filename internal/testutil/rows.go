package testutil

import (
	"math/rand"

	"github.com/scottransom/psrfits-utils/psrfits"
)

// Header returns an 8-bit search-mode header with channels spaced 1 MHz
// apart around 1400 MHz.
func Header(nchan, npol, nsblk int) psrfits.Header {
	return psrfits.Header{
		Source:      "J1713+0747",
		ObsMode:     "SEARCH",
		Telescope:   "GBT",
		FCtr:        1400,
		BW:          float64(nchan),
		OrigNChan:   nchan,
		NChan:       nchan,
		NPol:        npol,
		NBits:       8,
		NSblk:       nsblk,
		OrigDF:      1,
		DT:          1e-3,
		DSFreqFact:  1,
		DSTimeFact:  1,
		IMJD:        56000,
		RowsPerFile: 0,
	}
}

// ChanFreqs returns the channel centre frequencies implied by h.
func ChanFreqs(h psrfits.Header) []float32 {
	f := make([]float32, h.NChan)
	lo := h.FCtr - 0.5*float64(h.NChan)*h.OrigDF
	for c := range f {
		f[c] = float32(lo + (float64(c)+0.5)*h.OrigDF)
	}
	return f
}

// RowStream returns n rows of h at the nominal cadence. fill, if not nil,
// sets the DATA of row i.
func RowStream(h psrfits.Header, n int, fill func(i int, data []byte)) []*psrfits.Row {
	freqs := ChanFreqs(h)
	rows := make([]*psrfits.Row, n)
	for i := range rows {
		r := psrfits.NewRow(h)
		r.Offset = (float64(i) + 0.5) * h.RowDuration()
		r.RA = 268.4
		r.Dec = 7.8
		copy(r.Freqs, freqs)
		for c := range r.Weights {
			r.Weights[c] = 1
		}
		for c := range r.Scales {
			r.Scales[c] = 1
		}
		if fill != nil {
			fill(i, r.Data)
		}
		rows[i] = r
	}
	return rows
}

// ConstRows returns n rows whose every sample is v.
func ConstRows(h psrfits.Header, n int, v byte) []*psrfits.Row {
	return RowStream(h, n, func(_ int, data []byte) {
		for j := range data {
			data[j] = v
		}
	})
}

// ColumnRows returns n rows where column col of row i holds value(i, col)
// at every time sample.
func ColumnRows(h psrfits.Header, n int, value func(i, col int) byte) []*psrfits.Row {
	width := h.Width()
	return RowStream(h, n, func(i int, data []byte) {
		for j := range data {
			data[j] = value(i, j%width)
		}
	})
}

// NoiseRows returns n rows of reproducible random samples.
func NoiseRows(h psrfits.Header, n int, seed int64) []*psrfits.Row {
	rng := rand.New(rand.NewSource(seed))
	return RowStream(h, n, func(_ int, data []byte) {
		rng.Read(data)
	})
}

// Drop returns rows without the given indices, leaving a gap in the
// offsets of the rows that remain.
func Drop(rows []*psrfits.Row, idx ...int) []*psrfits.Row {
	skip := make(map[int]bool, len(idx))
	for _, i := range idx {
		skip[i] = true
	}
	var out []*psrfits.Row
	for i, r := range rows {
		if !skip[i] {
			out = append(out, r)
		}
	}
	return out
}

package channel

import (
	"math"

	"github.com/cwbudde/algo-vecmath"
)

// Strided returns the mean and population standard deviation of n samples
// of x read every stride bytes starting at offset. Samples past the end of x
// are not read; with no samples both results are 0. Samples are unsigned
// 8-bit values.
func Strided(x []byte, offset, n, stride int) (mean, std float64) {
	return strided(x, offset, n, stride, nil)
}

func strided(x []byte, offset, n, stride int, scratch []float64) (mean, std float64) {
	if stride <= 0 || offset < 0 || offset >= len(x) {
		return 0, 0
	}
	if avail := (len(x)-offset-1)/stride + 1; n > avail {
		n = avail
	}
	if n <= 0 {
		return 0, 0
	}
	if cap(scratch) < n {
		scratch = make([]float64, n)
	}
	v := scratch[:n]
	for i := range v {
		v[i] = float64(x[offset+i*stride])
	}

	nf := float64(n)
	mean = vecmath.Sum(v) / nf
	variance := vecmath.DotProduct(v, v)/nf - mean*mean
	if variance > 0 {
		std = math.Sqrt(variance)
	}
	return mean, std
}

// Running holds the latest per-column mean and standard deviation of a
// sample block of fixed width. It is refreshed only from real data, so its
// filler stays representative across gaps.
type Running struct {
	width   int
	means   []float64
	stds    []float64
	filler  []byte
	scratch []float64
	updates int
}

// NewRunning returns statistics for blocks of width columns. Until the first
// Update every mean is 0.
func NewRunning(width int) *Running {
	return &Running{
		width:  width,
		means:  make([]float64, width),
		stds:   make([]float64, width),
		filler: make([]byte, width),
	}
}

// Update recomputes the statistics from the first samples rows of block,
// which is laid out sample-major with the configured width.
func (r *Running) Update(block []byte, samples int) {
	if cap(r.scratch) < samples {
		r.scratch = make([]float64, samples)
	}
	for col := 0; col < r.width; col++ {
		r.means[col], r.stds[col] = strided(block, col, samples, r.width, r.scratch)
		r.filler[col] = quantise(r.means[col])
	}
	r.updates++
}

// quantise rounds half to even and clamps to the byte range.
func quantise(v float64) byte {
	v = math.RoundToEven(v)
	switch {
	case v < 0:
		return 0
	case v > math.MaxUint8:
		return math.MaxUint8
	}
	return byte(v)
}

// Means returns the per-column means. The slice is owned by r.
func (r *Running) Means() []float64 { return r.means }

// Stds returns the per-column standard deviations. The slice is owned by r.
func (r *Running) Stds() []float64 { return r.stds }

// Filler returns the means rounded to sample values, one byte per column.
// The slice is owned by r and changes on the next Update.
func (r *Running) Filler() []byte { return r.filler }

// Updates returns how many blocks have been folded in.
func (r *Running) Updates() int { return r.updates }

package dispersion

import (
	"fmt"
	"math"
)

// Table holds the integer sample offset of every input (pol, channel) column
// relative to the reference delay of the subband it belongs to. It is
// immutable after construction.
type Table struct {
	Delays []int // indexed pol*nchan + chan

	SubFreqs  []float64 // subband centre frequencies (MHz)
	SubDelays []float64 // reference delay per subband (s)

	MaxEarly   int // min(Delays), <= 0
	MaxLate    int // max(Delays), >= 0
	MaxOverlap int // |MaxEarly| + MaxLate
}

// Params describes the channelisation a Table is built for.
type Params struct {
	ChanFreqs  []float64 // centre frequency of every input channel (MHz)
	ChanWidth  float64   // input channel width (MHz), may be negative
	ChanPerSub int
	NPol       int
	DM         float64
	DT         float64 // sample period (s)
	Delay      DelayFunc
}

// NewTable computes the per-channel delays for p. Subband s is centred at
// lo + (s+0.5)*ChanWidth*ChanPerSub where lo = ChanFreqs[0] - ChanWidth/2.
func NewTable(p Params) (*Table, error) {
	nchan := len(p.ChanFreqs)
	switch {
	case nchan == 0:
		return nil, fmt.Errorf("dispersion: no channel frequencies")
	case p.ChanPerSub <= 0 || nchan%p.ChanPerSub != 0:
		return nil, fmt.Errorf("dispersion: %d channels not divisible into groups of %d", nchan, p.ChanPerSub)
	case p.NPol <= 0:
		return nil, fmt.Errorf("dispersion: npol must be > 0: %d", p.NPol)
	case p.DT <= 0:
		return nil, fmt.Errorf("dispersion: sample period must be > 0: %v", p.DT)
	}
	delay := p.Delay
	if delay == nil {
		delay = Delay
	}

	nsub := nchan / p.ChanPerSub
	subDF := p.ChanWidth * float64(p.ChanPerSub)
	lo := p.ChanFreqs[0] - 0.5*p.ChanWidth

	t := &Table{
		Delays:    make([]int, nchan*p.NPol),
		SubFreqs:  make([]float64, nsub),
		SubDelays: make([]float64, nsub),
	}
	for s := 0; s < nsub; s++ {
		f := lo + (float64(s)+0.5)*subDF
		t.SubFreqs[s] = f
		t.SubDelays[s] = delay(p.DM, f)
		for c := s * p.ChanPerSub; c < (s+1)*p.ChanPerSub; c++ {
			d := (delay(p.DM, p.ChanFreqs[c]) - t.SubDelays[s]) / p.DT
			if math.IsNaN(d) || math.IsInf(d, 0) {
				return nil, fmt.Errorf("dispersion: non-finite delay for channel %d", c)
			}
			id := int(math.RoundToEven(d))
			for pol := 0; pol < p.NPol; pol++ {
				t.Delays[pol*nchan+c] = id
			}
		}
	}
	for _, d := range t.Delays[:nchan] {
		t.MaxEarly = min(t.MaxEarly, d)
		t.MaxLate = max(t.MaxLate, d)
	}
	t.MaxOverlap = -t.MaxEarly + t.MaxLate
	return t, nil
}

// Validate checks the invariants the sliding window relies on: every delay
// lies in [MaxEarly, MaxLate], MaxEarly <= 0 <= MaxLate and MaxOverlap is
// their span. A table that passes never indexes outside a window padded by
// MaxOverlap on both sides.
func (t *Table) Validate() error {
	if t.MaxEarly > 0 || t.MaxLate < 0 {
		return fmt.Errorf("dispersion: bounds [%d, %d] do not bracket zero", t.MaxEarly, t.MaxLate)
	}
	if t.MaxOverlap != -t.MaxEarly+t.MaxLate {
		return fmt.Errorf("dispersion: overlap %d != |%d| + %d", t.MaxOverlap, t.MaxEarly, t.MaxLate)
	}
	for i, d := range t.Delays {
		if d < t.MaxEarly || d > t.MaxLate {
			return fmt.Errorf("dispersion: delay %d of column %d outside [%d, %d]", d, i, t.MaxEarly, t.MaxLate)
		}
	}
	return nil
}

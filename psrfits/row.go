package psrfits

// Pointing is the per-row antenna and timing record.
type Pointing struct {
	LST     float64
	RA      float64
	Dec     float64
	GLon    float64
	GLat    float64
	FeedAng float64
	PosAng  float64
	ParAng  float64
	TelAz   float64
	TelZen  float64
}

// Row is one subintegration: NSblk time samples of NChan*NPol quantised
// values, laid out [time][pol][chan], plus per-channel calibration vectors.
type Row struct {
	TSubint float64 // row duration (s)
	Offset  float64 // OFFS_SUB: row centre from observation start (s)
	Pointing

	Freqs   []float32 // NChan
	Weights []float32 // NChan
	Offsets []float32 // NChan*NPol
	Scales  []float32 // NChan*NPol
	Data    []byte    // BytesPerRow
}

// NewRow allocates a row sized for h.
func NewRow(h Header) *Row {
	return &Row{
		TSubint: h.RowDuration(),
		Freqs:   make([]float32, h.NChan),
		Weights: make([]float32, h.NChan),
		Offsets: make([]float32, h.NChan*h.NPol),
		Scales:  make([]float32, h.NChan*h.NPol),
		Data:    make([]byte, h.BytesPerRow()),
	}
}

// CopyMeta copies the scalar fields of src into r.
func (r *Row) CopyMeta(src *Row) {
	r.TSubint = src.TSubint
	r.Offset = src.Offset
	r.Pointing = src.Pointing
}

// CopyRow copies src into dst. Nil destination slices are skipped and a short
// destination copies only its own length, so a dst whose Data is the first
// few samples of a buffer performs a partial DATA read.
func CopyRow(dst, src *Row) {
	dst.CopyMeta(src)
	if dst.Freqs != nil {
		copy(dst.Freqs, src.Freqs)
	}
	if dst.Weights != nil {
		copy(dst.Weights, src.Weights)
	}
	if dst.Offsets != nil {
		copy(dst.Offsets, src.Offsets)
	}
	if dst.Scales != nil {
		copy(dst.Scales, src.Scales)
	}
	if dst.Data != nil {
		copy(dst.Data, src.Data)
	}
}

// Clone returns a deep copy of r.
func (r *Row) Clone() *Row {
	c := &Row{
		Freqs:   append([]float32(nil), r.Freqs...),
		Weights: append([]float32(nil), r.Weights...),
		Offsets: append([]float32(nil), r.Offsets...),
		Scales:  append([]float32(nil), r.Scales...),
		Data:    append([]byte(nil), r.Data...),
	}
	c.CopyMeta(r)
	return c
}

package buffer

import "fmt"

// Window is a byte buffer of (buflen + 2*overlap) samples of width columns,
// laid out sample-major. Sample t of the live region is addressed with
// t in [0, buflen); the lead pad covers [-overlap, 0) and the trail pad
// [buflen, buflen+overlap).
type Window struct {
	buf     []byte
	buflen  int
	width   int
	overlap int
}

// NewWindow returns a zero-filled window.
func NewWindow(buflen, width, overlap int) (*Window, error) {
	if buflen <= 0 {
		return nil, fmt.Errorf("buffer: length must be > 0: %d", buflen)
	}
	if width <= 0 {
		return nil, fmt.Errorf("buffer: width must be > 0: %d", width)
	}
	if overlap < 0 || overlap > buflen {
		return nil, fmt.Errorf("buffer: overlap must be in [0, %d]: %d", buflen, overlap)
	}
	return &Window{
		buf:     make([]byte, (buflen+2*overlap)*width),
		buflen:  buflen,
		width:   width,
		overlap: overlap,
	}, nil
}

// Len returns the number of live samples.
func (w *Window) Len() int { return w.buflen }

// Width returns the number of columns per sample.
func (w *Window) Width() int { return w.width }

// Overlap returns the pad length in samples.
func (w *Window) Overlap() int { return w.overlap }

// Bytes returns the whole allocation, lead pad first.
func (w *Window) Bytes() []byte { return w.buf }

// Lead returns the pad preceding the live region.
func (w *Window) Lead() []byte {
	return w.buf[:w.overlap*w.width]
}

// Live returns the live region. Rows are read directly into it.
func (w *Window) Live() []byte {
	return w.buf[w.overlap*w.width : (w.overlap+w.buflen)*w.width]
}

// Trail returns the pad following the live region.
func (w *Window) Trail() []byte {
	return w.buf[(w.overlap+w.buflen)*w.width:]
}

// At returns column col of sample t. It panics if t lies outside
// [-overlap, buflen+overlap) or col outside [0, width).
func (w *Window) At(t, col int) byte {
	if t < -w.overlap || t >= w.buflen+w.overlap {
		panic(fmt.Sprintf("buffer: sample %d outside [%d, %d)", t, -w.overlap, w.buflen+w.overlap))
	}
	if col < 0 || col >= w.width {
		panic(fmt.Sprintf("buffer: column %d outside [0, %d)", col, w.width))
	}
	return w.buf[(t+w.overlap)*w.width+col]
}

// FillLead writes filler into every sample of the lead pad.
func (w *Window) FillLead(filler []byte) { w.fill(w.Lead(), filler) }

// FillLive writes filler into every sample of the live region.
func (w *Window) FillLive(filler []byte) { w.fill(w.Live(), filler) }

// FillTrail writes filler into every sample of the trail pad.
func (w *Window) FillTrail(filler []byte) { w.fill(w.Trail(), filler) }

func (w *Window) fill(dst, filler []byte) {
	if len(filler) != w.width {
		panic(fmt.Sprintf("buffer: filler has %d columns, want %d", len(filler), w.width))
	}
	for off := 0; off < len(dst); off += w.width {
		copy(dst[off:off+w.width], filler)
	}
}

// ShiftTail copies the last overlap live samples into the lead pad, making
// them the history of the next block.
func (w *Window) ShiftTail() {
	n := w.overlap * w.width
	if n == 0 {
		return
	}
	start := w.buflen * w.width
	copy(w.buf[:n], w.buf[start:start+n])
}

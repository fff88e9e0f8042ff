// Package progress prints a monotone percent-complete indicator.
package progress

import (
	"fmt"
	"io"
)

// Meter writes "\r NN%" to w whenever the integer percentage increases.
type Meter struct {
	w    io.Writer
	last int
}

// New returns a Meter writing to w. A nil writer disables output.
func New(w io.Writer) *Meter {
	return &Meter{w: w, last: -1}
}

// Reset forgets the last printed value.
func (m *Meter) Reset() {
	m.last = -1
}

// Update records current out of total and prints if the percentage grew.
// It returns the clamped percentage.
func (m *Meter) Update(current, total int) int {
	pct := 0
	if total > 0 {
		pct = int(float64(current) / float64(total) * 100)
	}
	pct = max(0, min(pct, 100))
	if pct > m.last {
		m.last = pct
		if m.w != nil {
			fmt.Fprintf(m.w, "\r%3d%%", pct)
			if pct == 100 {
				fmt.Fprintln(m.w)
			}
		}
	}
	return pct
}

// Last returns the highest percentage printed so far, or -1.
func (m *Meter) Last() int {
	return m.last
}

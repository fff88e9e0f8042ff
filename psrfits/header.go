package psrfits

import "fmt"

// Header describes one search-mode recording: the channel layout every row
// shares plus the observation metadata copied between files.
type Header struct {
	Source    string // SRC_NAME
	ObsMode   string // OBS_MODE
	Telescope string // TELESCOP

	FCtr      float64 // centre frequency (MHz)
	BW        float64 // total bandwidth (MHz)
	OrigNChan int     // channels before any downsampling
	NChan     int
	NPol      int
	NBits     int
	NSblk     int     // time samples per row
	OrigDF    float64 // channel width before downsampling (MHz)
	DT        float64 // sample period (s)

	DSFreqFact int
	DSTimeFact int
	ChanDM     float64

	IMJD        int     // STT_IMJD
	SMJD        int     // STT_SMJD
	StartOffset float64 // STT_OFFS
	NSubOffs    int
	ZeroOffset  float64

	// RowsPerFile caps the rows written to one physical file; 0 means no limit.
	RowsPerFile int
}

// Layout is the part of a Header that fixes the shape of a row.
type Layout struct {
	NChan, NPol, NBits, NSblk int
	DT                        float64
}

// Layout returns the row shape.
func (h Header) Layout() Layout {
	return Layout{NChan: h.NChan, NPol: h.NPol, NBits: h.NBits, NSblk: h.NSblk, DT: h.DT}
}

// Width returns the number of (channel, polarisation) columns per sample.
func (h Header) Width() int {
	return h.NChan * h.NPol
}

// BytesPerRow returns the size of a row's DATA column.
func (h Header) BytesPerRow() int {
	return h.NSblk * h.NChan * h.NPol * h.NBits / 8
}

// RowDuration returns the time spanned by one row in seconds.
func (h Header) RowDuration() float64 {
	return float64(h.NSblk) * h.DT
}

// Validate checks that the header describes a usable row layout.
func (h Header) Validate() error {
	switch {
	case h.NChan <= 0:
		return fmt.Errorf("psrfits: nchan must be > 0: %d", h.NChan)
	case h.NPol <= 0:
		return fmt.Errorf("psrfits: npol must be > 0: %d", h.NPol)
	case h.NSblk <= 0:
		return fmt.Errorf("psrfits: nsblk must be > 0: %d", h.NSblk)
	case h.DT <= 0:
		return fmt.Errorf("psrfits: tbin must be > 0: %v", h.DT)
	}
	switch h.NBits {
	case 1, 2, 4, 8, 16, 32:
	default:
		return fmt.Errorf("psrfits: unsupported nbits: %d", h.NBits)
	}
	if (h.NChan*h.NBits)%8 != 0 {
		return fmt.Errorf("psrfits: %d channels of %d bits do not fill whole bytes", h.NChan, h.NBits)
	}
	return nil
}

// SameLayout reports whether h and o describe rows of identical shape.
func (h Header) SameLayout(o Header) bool {
	return h.Layout() == o.Layout()
}

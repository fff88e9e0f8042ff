package fitsfile

import (
	"errors"
	"fmt"
	"os"

	"github.com/astrogo/fitsio"

	"github.com/scottransom/psrfits-utils/psrfits"
)

// Writer writes rows to "<base>_NNNN.fits", starting at 0001 and rolling over
// to the next number after hdr.RowsPerFile rows. Files are created lazily, so
// a writer that never receives a row leaves nothing on disk.
type Writer struct {
	base string
	hdr  psrfits.Header

	fh      *os.File
	f       *fitsio.File
	tbl     *fitsio.Table
	inFile  int
	cursor  psrfits.Cursor
	written []string
}

// Create returns a writer for base using hdr as the template header.
func Create(base string, hdr psrfits.Header) (*Writer, error) {
	if err := hdr.Validate(); err != nil {
		return nil, fmt.Errorf("fitsfile: %w", err)
	}
	return &Writer{base: base, hdr: hdr}, nil
}

// Files returns the names of the physical files created so far.
func (w *Writer) Files() []string { return w.written }

// Cursor implements psrfits.Writer.
func (w *Writer) Cursor() psrfits.Cursor { return w.cursor }

// WriteRow implements psrfits.Writer.
func (w *Writer) WriteRow(row *psrfits.Row) error {
	if len(row.Data) != w.hdr.BytesPerRow() {
		return fmt.Errorf("fitsfile: row has %d data bytes, want %d", len(row.Data), w.hdr.BytesPerRow())
	}
	if w.tbl == nil || (w.hdr.RowsPerFile > 0 && w.inFile >= w.hdr.RowsPerFile) {
		if err := w.rollover(); err != nil {
			return err
		}
	}
	if err := w.tbl.Write(encodeRow(w.hdr, row)...); err != nil {
		return fmt.Errorf("fitsfile: write row %d: %w", w.cursor.Row+1, err)
	}
	w.inFile++
	w.cursor.Advance(w.hdr)
	w.cursor.Total = w.cursor.Row
	return nil
}

func (w *Writer) rollover() error {
	if err := w.finish(); err != nil {
		return err
	}
	name := psrfits.FileName(w.base, w.cursor.File+1)
	fh, err := os.Create(name)
	if err != nil {
		return err
	}
	f, err := fitsio.Create(fh)
	if err != nil {
		fh.Close()
		return fmt.Errorf("fitsfile: create %s: %w", name, err)
	}
	phdu, err := fitsio.NewPrimaryHDU(fitsio.NewHeader(primaryCards(w.hdr), fitsio.IMAGE_HDU, 8, []int{}))
	if err == nil {
		err = f.Write(phdu)
	}
	if err != nil {
		f.Close()
		fh.Close()
		return fmt.Errorf("fitsfile: %s: primary header: %w", name, err)
	}
	tbl, err := fitsio.NewTable(subintHDU, subintColumns(w.hdr), fitsio.BINARY_TBL)
	if err == nil {
		err = tbl.Header().Append(subintCards(w.hdr)...)
	}
	if err != nil {
		f.Close()
		fh.Close()
		return fmt.Errorf("fitsfile: %s: subint table: %w", name, err)
	}
	w.fh, w.f, w.tbl = fh, f, tbl
	w.inFile = 0
	w.cursor.File++
	w.written = append(w.written, name)
	return nil
}

// finish flushes the current table and closes its file.
func (w *Writer) finish() error {
	if w.tbl == nil {
		return nil
	}
	err := errors.Join(w.f.Write(w.tbl), w.tbl.Close(), w.f.Close(), w.fh.Close())
	w.fh, w.f, w.tbl = nil, nil, nil
	if err != nil {
		return fmt.Errorf("fitsfile: finish %s: %w", w.written[len(w.written)-1], err)
	}
	return nil
}

// Close implements psrfits.Writer.
func (w *Writer) Close() error {
	return w.finish()
}

func primaryCards(h psrfits.Header) []fitsio.Card {
	return []fitsio.Card{
		{Name: "FITSTYPE", Value: "PSRFITS"},
		{Name: "OBS_MODE", Value: h.ObsMode},
		{Name: "TELESCOP", Value: h.Telescope},
		{Name: "SRC_NAME", Value: h.Source},
		{Name: "OBSFREQ", Value: h.FCtr, Comment: "MHz"},
		{Name: "OBSBW", Value: h.BW, Comment: "MHz"},
		{Name: "OBSNCHAN", Value: h.OrigNChan},
		{Name: "STT_IMJD", Value: h.IMJD},
		{Name: "STT_SMJD", Value: h.SMJD},
		{Name: "STT_OFFS", Value: h.StartOffset},
	}
}

func subintCards(h psrfits.Header) []fitsio.Card {
	return []fitsio.Card{
		{Name: "TBIN", Value: h.DT, Comment: "s"},
		{Name: "NCHAN", Value: h.NChan},
		{Name: "NPOL", Value: h.NPol},
		{Name: "NBITS", Value: h.NBits},
		{Name: "NSBLK", Value: h.NSblk},
		{Name: "CHAN_BW", Value: h.OrigDF, Comment: "MHz"},
		{Name: "CHAN_DM", Value: h.ChanDM},
		{Name: "NSUBOFFS", Value: h.NSubOffs},
		{Name: "ZERO_OFF", Value: h.ZeroOffset},
	}
}

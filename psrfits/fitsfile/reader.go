package fitsfile

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/astrogo/fitsio"

	"github.com/scottransom/psrfits-utils/psrfits"
)

// subintHDU is the name of the binary table holding the rows.
const subintHDU = "SUBINT"

// physical is one open file of a set.
type physical struct {
	fh   *os.File
	f    *fitsio.File
	tbl  *fitsio.Table
	rows *fitsio.Rows
}

func openPhysical(name string) (*physical, error) {
	fh, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	f, err := fitsio.Open(fh)
	if err != nil {
		fh.Close()
		return nil, fmt.Errorf("fitsfile: decode %s: %w", name, err)
	}
	p := &physical{fh: fh, f: f}
	if !f.Has(subintHDU) {
		p.close()
		return nil, fmt.Errorf("fitsfile: %s has no %s table", name, subintHDU)
	}
	tbl, ok := f.Get(subintHDU).(*fitsio.Table)
	if !ok {
		p.close()
		return nil, fmt.Errorf("fitsfile: %s: %s is not a table", name, subintHDU)
	}
	p.tbl = tbl
	p.rows, err = tbl.Read(0, tbl.NumRows())
	if err != nil {
		p.close()
		return nil, fmt.Errorf("fitsfile: %s: read rows: %w", name, err)
	}
	return p, nil
}

func (p *physical) close() error {
	var errs []error
	if p.rows != nil {
		errs = append(errs, p.rows.Close())
	}
	errs = append(errs, p.f.Close(), p.fh.Close())
	return errors.Join(errs...)
}

// Reader reads the rows of a PSRFITS file set "<base>_NNNN.fits", moving to
// the next sequence number when a file is exhausted. A bare base name opens
// the set from "<base>_0001.fits"; any other name without a sequence number
// is read as a single file.
type Reader struct {
	base   string
	num    int
	single bool

	cur    *physical
	hdr    psrfits.Header
	cursor psrfits.Cursor

	scan    map[string]any
	next    *psrfits.Row
	pending bool
	nextErr error
}

// Open opens path, parses the headers of its first file and counts the rows
// of the whole set.
func Open(path string) (*Reader, error) {
	base, num := psrfits.SplitBase(path)
	if num == 0 && base == path {
		if _, err := os.Stat(psrfits.FileName(base, 1)); err == nil {
			num = 1
		}
	}
	r := &Reader{base: base, num: num, single: num == 0}
	name := path
	if !r.single {
		name = psrfits.FileName(base, num)
	}
	p, err := openPhysical(name)
	if err != nil {
		return nil, err
	}
	r.cur = p
	r.hdr = parseHeader(p)
	if err := r.hdr.Validate(); err != nil {
		p.close()
		return nil, fmt.Errorf("fitsfile: %s: %w", name, err)
	}
	total, err := r.countRows(p)
	if err != nil {
		p.close()
		return nil, err
	}
	r.next = psrfits.NewRow(r.hdr)
	r.scan = make(map[string]any, len(scalarColumns)+5)
	r.cursor.File = 1
	r.cursor.Total = total
	return r, nil
}

// countRows sums NAXIS2 over first and every later file of the set. The last
// file of a rolled-over set is usually shorter than the others.
func (r *Reader) countRows(first *physical) (int, error) {
	total := int(first.tbl.NumRows())
	if r.single {
		return total, nil
	}
	for n := r.num + 1; ; n++ {
		name := psrfits.FileName(r.base, n)
		if _, err := os.Stat(name); errors.Is(err, os.ErrNotExist) {
			return total, nil
		}
		p, err := openPhysical(name)
		if err != nil {
			return 0, err
		}
		total += int(p.tbl.NumRows())
		if err := p.close(); err != nil {
			return 0, fmt.Errorf("fitsfile: close %s: %w", name, err)
		}
	}
}

func parseHeader(p *physical) psrfits.Header {
	prim := p.f.HDU(0).Header()
	sub := p.tbl.Header()
	h := psrfits.Header{
		Source:      cardString(prim, "SRC_NAME"),
		ObsMode:     cardString(prim, "OBS_MODE"),
		Telescope:   cardString(prim, "TELESCOP"),
		FCtr:        cardFloat(prim, "OBSFREQ"),
		BW:          cardFloat(prim, "OBSBW"),
		OrigNChan:   cardInt(prim, "OBSNCHAN"),
		IMJD:        cardInt(prim, "STT_IMJD"),
		SMJD:        cardInt(prim, "STT_SMJD"),
		StartOffset: cardFloat(prim, "STT_OFFS"),
		NChan:       cardInt(sub, "NCHAN"),
		NPol:        cardInt(sub, "NPOL"),
		NBits:       cardInt(sub, "NBITS"),
		NSblk:       cardInt(sub, "NSBLK"),
		DT:          cardFloat(sub, "TBIN"),
		OrigDF:      cardFloat(sub, "CHAN_BW"),
		ChanDM:      cardFloat(sub, "CHAN_DM"),
		NSubOffs:    cardInt(sub, "NSUBOFFS"),
		ZeroOffset:  cardFloat(sub, "ZERO_OFF"),
		RowsPerFile: int(p.tbl.NumRows()),
	}
	if h.OrigNChan == 0 {
		h.OrigNChan = h.NChan
	}
	h.DSFreqFact = 1
	if h.NChan > 0 && h.OrigNChan > h.NChan {
		h.DSFreqFact = h.OrigNChan / h.NChan
	}
	h.DSTimeFact = 1
	return h
}

// Header implements psrfits.Reader.
func (r *Reader) Header() psrfits.Header { return r.hdr }

// Cursor implements psrfits.Reader.
func (r *Reader) Cursor() psrfits.Cursor { return r.cursor }

// fill decodes the next row into the lookahead buffer, crossing file
// boundaries as needed.
func (r *Reader) fill() error {
	if r.pending || r.nextErr != nil {
		return r.nextErr
	}
	for {
		if r.cur == nil {
			r.nextErr = io.EOF
			return r.nextErr
		}
		if r.cur.rows.Next() {
			clear(r.scan)
			for _, c := range r.cur.tbl.Cols() {
				r.scan[c.Name] = nil
			}
			if err := r.cur.rows.Scan(&r.scan); err != nil {
				r.nextErr = fmt.Errorf("fitsfile: scan row %d: %w", r.cursor.Row+1, err)
				return r.nextErr
			}
			decodeRow(r.scan, r.next)
			r.pending = true
			return nil
		}
		if err := r.cur.rows.Err(); err != nil {
			r.nextErr = fmt.Errorf("fitsfile: iterate rows: %w", err)
			return r.nextErr
		}
		if err := r.advanceFile(); err != nil {
			r.nextErr = err
			return err
		}
	}
}

func (r *Reader) advanceFile() error {
	err := r.cur.close()
	r.cur = nil
	if err != nil {
		return fmt.Errorf("fitsfile: close: %w", err)
	}
	if r.single {
		return io.EOF
	}
	name := psrfits.FileName(r.base, r.num+r.cursor.File)
	if _, err := os.Stat(name); errors.Is(err, os.ErrNotExist) {
		return io.EOF
	}
	p, err := openPhysical(name)
	if err != nil {
		return err
	}
	r.cur = p
	r.cursor.File++
	return nil
}

// PeekRow implements psrfits.Reader.
func (r *Reader) PeekRow(row *psrfits.Row) error {
	if err := r.fill(); err != nil {
		return err
	}
	psrfits.CopyRow(row, r.next)
	return nil
}

// ReadRow implements psrfits.Reader.
func (r *Reader) ReadRow(row *psrfits.Row) error {
	if err := r.fill(); err != nil {
		return err
	}
	psrfits.CopyRow(row, r.next)
	r.pending = false
	r.cursor.Advance(r.hdr)
	return nil
}

// Close implements psrfits.Reader.
func (r *Reader) Close() error {
	if r.cur == nil {
		return nil
	}
	err := r.cur.close()
	r.cur = nil
	return err
}

package psrfits

import (
	"errors"
	"io"
)

// ErrClosed is returned by operations on a closed in-memory store.
var ErrClosed = errors.New("psrfits: store is closed")

// MemoryReader serves rows held in memory. It is the reference Reader used by
// tests and by tools that stage data before reduction.
type MemoryReader struct {
	hdr    Header
	rows   []*Row
	next   int
	cur    Cursor
	closed bool

	// FailAt makes ReadRow return Err when the cursor reaches this row index;
	// negative disables it.
	FailAt int
	Err    error
}

// NewMemoryReader returns a reader over rows. The rows are not copied.
func NewMemoryReader(h Header, rows []*Row) *MemoryReader {
	return &MemoryReader{
		hdr:    h,
		rows:   rows,
		cur:    Cursor{File: 1, Total: len(rows)},
		FailAt: -1,
	}
}

// Header implements Reader.
func (m *MemoryReader) Header() Header { return m.hdr }

// Cursor implements Reader.
func (m *MemoryReader) Cursor() Cursor { return m.cur }

// PeekRow implements Reader.
func (m *MemoryReader) PeekRow(row *Row) error {
	if err := m.check(); err != nil {
		return err
	}
	CopyRow(row, m.rows[m.next])
	return nil
}

// ReadRow implements Reader.
func (m *MemoryReader) ReadRow(row *Row) error {
	if err := m.check(); err != nil {
		return err
	}
	CopyRow(row, m.rows[m.next])
	m.next++
	m.cur.Advance(m.hdr)
	return nil
}

func (m *MemoryReader) check() error {
	if m.closed {
		return ErrClosed
	}
	if m.FailAt >= 0 && m.next >= m.FailAt {
		return m.Err
	}
	if m.next >= len(m.rows) {
		return io.EOF
	}
	return nil
}

// Close implements Reader.
func (m *MemoryReader) Close() error {
	m.closed = true
	return nil
}

// MemoryWriter collects deep copies of written rows, split into files of at
// most RowsPerFile rows.
type MemoryWriter struct {
	hdr    Header
	files  [][]*Row
	cur    Cursor
	closed bool
}

// NewMemoryWriter returns an empty writer for h.
func NewMemoryWriter(h Header) *MemoryWriter {
	return &MemoryWriter{hdr: h}
}

// Header returns the header the writer was created with.
func (m *MemoryWriter) Header() Header { return m.hdr }

// WriteRow implements Writer.
func (m *MemoryWriter) WriteRow(row *Row) error {
	if m.closed {
		return ErrClosed
	}
	if len(m.files) == 0 || (m.hdr.RowsPerFile > 0 && len(m.files[len(m.files)-1]) >= m.hdr.RowsPerFile) {
		m.files = append(m.files, nil)
		m.cur.File = len(m.files)
	}
	last := len(m.files) - 1
	m.files[last] = append(m.files[last], row.Clone())
	m.cur.Advance(m.hdr)
	m.cur.Total = m.cur.Row
	return nil
}

// Cursor implements Writer.
func (m *MemoryWriter) Cursor() Cursor { return m.cur }

// Close implements Writer.
func (m *MemoryWriter) Close() error {
	m.closed = true
	return nil
}

// Files returns the rows grouped by physical file.
func (m *MemoryWriter) Files() [][]*Row { return m.files }

// Rows returns every written row in order.
func (m *MemoryWriter) Rows() []*Row {
	var out []*Row
	for _, f := range m.files {
		out = append(out, f...)
	}
	return out
}

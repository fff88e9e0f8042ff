package psrfits

// Cursor reports how far a store has advanced. Only rows that physically
// exist are counted; callers that synthesise rows keep their own counters.
type Cursor struct {
	Row   int     // rows consumed or written
	N     int64   // time samples consumed or written
	T     float64 // seconds consumed or written (N * DT)
	File  int     // current physical file number, 1-based; 0 before the first
	Total int     // rows known to the store, for progress only; 0 if unknown
}

// Advance moves c forward by one row of h.
func (c *Cursor) Advance(h Header) {
	c.Row++
	c.N += int64(h.NSblk)
	c.T = float64(c.N) * h.DT
}

// Reader yields subintegration rows in file order. ReadRow and PeekRow return
// io.EOF once every file in the set is exhausted.
type Reader interface {
	Header() Header

	// ReadRow copies the next row into row and advances the cursor.
	ReadRow(row *Row) error

	// PeekRow copies the next row into row without advancing. Nil slices in
	// row are skipped and a short row.Data receives only its own length, so a
	// metadata-only or partial-DATA peek costs no more than it needs.
	PeekRow(row *Row) error

	Cursor() Cursor
	Close() error
}

// Writer appends subintegration rows, starting a new physical file when the
// header's RowsPerFile limit is reached.
type Writer interface {
	WriteRow(row *Row) error
	Cursor() Cursor
	Close() error
}

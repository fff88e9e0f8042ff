package testutil

import (
	"errors"
	"io"
	"testing"

	"github.com/scottransom/psrfits-utils/psrfits"
	"github.com/scottransom/psrfits-utils/psrfits/fitsfile"
)

// WriteFileSet writes rows to base as a PSRFITS file set and returns the
// physical file names.
func WriteFileSet(t *testing.T, base string, h psrfits.Header, rows []*psrfits.Row) []string {
	t.Helper()
	w, err := fitsfile.Create(base, h)
	if err != nil {
		t.Fatalf("fitsfile.Create(%q) = %v", base, err)
	}
	for i, r := range rows {
		if err := w.WriteRow(r); err != nil {
			t.Fatalf("WriteRow(%d) = %v", i, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close() = %v", err)
	}
	return w.Files()
}

// ReadAll reads every remaining row of r.
func ReadAll(t *testing.T, r psrfits.Reader) []*psrfits.Row {
	t.Helper()
	var rows []*psrfits.Row
	for {
		row := psrfits.NewRow(r.Header())
		err := r.ReadRow(row)
		if errors.Is(err, io.EOF) {
			return rows
		}
		if err != nil {
			t.Fatalf("ReadRow(%d) = %v", len(rows), err)
		}
		rows = append(rows, row)
	}
}

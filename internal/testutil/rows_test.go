package testutil

import (
	"math"
	"testing"
)

func TestRowStreamCadence(t *testing.T) {
	h := Header(4, 1, 8)
	rows := RowStream(h, 3, nil)
	for i, r := range rows {
		want := (float64(i) + 0.5) * h.RowDuration()
		if math.Abs(r.Offset-want) > 1e-15 {
			t.Fatalf("row %d Offset = %v, want %v", i, r.Offset, want)
		}
		if len(r.Data) != h.BytesPerRow() {
			t.Fatalf("row %d len(Data) = %d, want %d", i, len(r.Data), h.BytesPerRow())
		}
	}
}

func TestChanFreqs(t *testing.T) {
	f := ChanFreqs(Header(4, 1, 8))
	want := []float32{1398.5, 1399.5, 1400.5, 1401.5}
	for i := range want {
		if f[i] != want[i] {
			t.Fatalf("ChanFreqs()[%d] = %v, want %v", i, f[i], want[i])
		}
	}
}

func TestColumnRows(t *testing.T) {
	h := Header(3, 2, 2)
	rows := ColumnRows(h, 2, func(i, col int) byte { return byte(10*i + col) })
	if got := rows[1].Data[h.Width()+4]; got != 14 {
		t.Fatalf("Data = %d, want 14", got)
	}
}

func TestNoiseRowsReproducible(t *testing.T) {
	h := Header(4, 1, 4)
	a := NoiseRows(h, 2, 7)
	b := NoiseRows(h, 2, 7)
	for i := range a {
		for j := range a[i].Data {
			if a[i].Data[j] != b[i].Data[j] {
				t.Fatalf("row %d byte %d differs", i, j)
			}
		}
	}
}

func TestDrop(t *testing.T) {
	rows := ConstRows(Header(2, 1, 2), 4, 1)
	got := Drop(rows, 1, 2)
	if len(got) != 2 || got[0] != rows[0] || got[1] != rows[3] {
		t.Fatalf("Drop() kept %d rows", len(got))
	}
}

package progress

import (
	"bytes"
	"testing"
)

func TestMeterMonotone(t *testing.T) {
	var buf bytes.Buffer
	m := New(&buf)

	if got := m.Update(1, 4); got != 25 {
		t.Fatalf("Update(1, 4) = %d, want 25", got)
	}
	m.Update(1, 4)
	m.Update(0, 4)
	if got, want := buf.String(), "\r 25%"; got != want {
		t.Fatalf("output = %q, want %q", got, want)
	}
	if m.Last() != 25 {
		t.Fatalf("Last() = %d, want 25", m.Last())
	}

	m.Update(9, 4)
	if got, want := buf.String(), "\r 25%\r100%\n"; got != want {
		t.Fatalf("output = %q, want %q", got, want)
	}
}

func TestMeterResetAndZeroTotal(t *testing.T) {
	m := New(nil)
	m.Update(3, 3)
	m.Reset()
	if m.Last() != -1 {
		t.Fatalf("Last() after Reset = %d, want -1", m.Last())
	}
	if got := m.Update(5, 0); got != 0 {
		t.Fatalf("Update with zero total = %d, want 0", got)
	}
}

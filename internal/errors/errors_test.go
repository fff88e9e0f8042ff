package errors

import (
	stderrs "errors"
	"fmt"
	"io"
	"testing"
)

func TestCodeOfAndExitCode(t *testing.T) {
	cases := []struct {
		name string
		err  error
		code ErrorCode
		exit int
	}{
		{"nil", nil, ErrorCodeUnknown, 0},
		{"foreign", io.ErrUnexpectedEOF, ErrorCodeUnknown, 1},
		{"config", Configf("bad nsub %d", 3), ErrorCodeConfiguration, 2},
		{"io", IOf("short read"), ErrorCodeIO, 1},
		{"canceled", New(ErrorCodeCanceled, "interrupted"), ErrorCodeCanceled, 130},
		{"wrapped twice", fmt.Errorf("outer: %w", Configf("inner")), ErrorCodeConfiguration, 2},
	}
	for _, tc := range cases {
		if got := CodeOf(tc.err); got != tc.code {
			t.Fatalf("%s: CodeOf() = %v, want %v", tc.name, got, tc.code)
		}
		if got := ExitCode(tc.err); got != tc.exit {
			t.Fatalf("%s: ExitCode() = %d, want %d", tc.name, got, tc.exit)
		}
	}
}

func TestWrapKeepsCause(t *testing.T) {
	err := WrapIO(io.ErrClosedPipe, "read %s", "band_0001.fits")
	if !stderrs.Is(err, io.ErrClosedPipe) {
		t.Fatal("WrapIO should keep the cause reachable via errors.Is")
	}
	if got, want := err.Error(), "read band_0001.fits: io: read/write on closed pipe"; got != want {
		t.Fatalf("Error() = %q, want %q", got, want)
	}
	if WrapIO(nil, "unused") != nil {
		t.Fatal("WrapIO(nil) should be nil")
	}
}

func TestWithOpCopyOnWrite(t *testing.T) {
	base := Configf("nchan mismatch")
	tagged := WithOp(base, "merge.validate")
	e, ok := As(tagged)
	if !ok || e.Op() != "merge.validate" {
		t.Fatalf("WithOp() op = %q, want merge.validate", e.Op())
	}
	orig, _ := As(base)
	if orig.Op() != "" {
		t.Fatal("WithOp should not mutate the original error")
	}
	if WithOp(io.EOF, "x") != io.EOF {
		t.Fatal("WithOp should leave foreign errors unchanged")
	}
}

func TestErrorCodeString(t *testing.T) {
	if ErrorCodeIO.String() != "io" || ErrorCode(99).String() != "unknown" {
		t.Fatal("unexpected ErrorCode labels")
	}
}

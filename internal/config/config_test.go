package config

import "testing"

func TestPrefixAndDefaults(t *testing.T) {
	t.Setenv("PSRFITS_OUTDIR", "  /data/out ")
	t.Setenv("PSRFITS_WORKERS", "4")
	t.Setenv("PSRFITS_MAXFILELEN_GB", "0.5")
	t.Setenv("PSRFITS_VERBOSE", "YES")
	t.Setenv("PSRFITS_BROKEN", "four")

	c := New().Prefix("PSRFITS_")
	if got := c.Key("OUTDIR"); got != "PSRFITS_OUTDIR" {
		t.Fatalf("Key() = %q, want PSRFITS_OUTDIR", got)
	}
	if got := c.Get("OUTDIR", "."); got != "/data/out" {
		t.Fatalf("Get() = %q, want /data/out", got)
	}
	if got := c.Get("MISSING", "."); got != "." {
		t.Fatalf("Get() default = %q, want .", got)
	}
	if got := c.GetInt("WORKERS", 1); got != 4 {
		t.Fatalf("GetInt() = %d, want 4", got)
	}
	if got := c.GetInt("BROKEN", 7); got != 7 {
		t.Fatalf("GetInt() on garbage = %d, want default 7", got)
	}
	if got := c.GetFloat("MAXFILELEN_GB", 1); got != 0.5 {
		t.Fatalf("GetFloat() = %v, want 0.5", got)
	}
	if got := c.GetFloat("BROKEN", 1.5); got != 1.5 {
		t.Fatalf("GetFloat() on garbage = %v, want 1.5", got)
	}
	if !c.GetBool("VERBOSE", false) {
		t.Fatal("GetBool() = false, want true for YES")
	}
	if c.GetBool("MISSING", false) {
		t.Fatal("GetBool() default should be false")
	}
}

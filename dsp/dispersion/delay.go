package dispersion

// kDM is the inverse dispersion constant in MHz^2 pc^-1 cm^3 s^-1.
const kDM = 0.000241

// Delay returns the dispersive delay in seconds of a signal at freqMHz
// relative to infinite frequency. Non-positive frequencies give 0.
func Delay(dm, freqMHz float64) float64 {
	if freqMHz <= 0 {
		return 0
	}
	return dm / (kDM * freqMHz * freqMHz)
}

// DelayFunc computes a delay in seconds for a dispersion measure and a
// frequency in MHz. It must be monotonically non-increasing in frequency.
type DelayFunc func(dm, freqMHz float64) float64

package merge

import "fmt"

// Reorder transposes nband blocks laid out [band][time][pol][chan] in src
// into dst laid out [time][pol][band][chan]. nchan channels of nbits each
// form one contiguous run; nchan*nbits must be a multiple of 8. Sample
// values are copied unchanged.
func Reorder(dst, src []byte, nband, nsamp, npol, nchan, nbits int) {
	if nchan*nbits%8 != 0 {
		panic(fmt.Sprintf("merge: %d channels of %d bits do not fill whole bytes", nchan, nbits))
	}
	transpose(dst, src, nband, nsamp, npol, nchan*nbits/8)
}

// transpose moves runs of run elements from [band][samp][pol] order to
// [samp][pol][band] order.
func transpose[T any](dst, src []T, nband, nsamp, npol, run int) {
	need := nband * nsamp * npol * run
	if len(src) < need || len(dst) < need {
		panic(fmt.Sprintf("merge: reorder needs %d elements, have src %d dst %d", need, len(src), len(dst)))
	}
	perPol := run
	perSamp := npol * run
	perBand := nsamp * perSamp
	out := 0
	for samp := 0; samp < nsamp; samp++ {
		for pol := 0; pol < npol; pol++ {
			for band := 0; band < nband; band++ {
				in := band*perBand + samp*perSamp + pol*perPol
				copy(dst[out:out+run], src[in:in+run])
				out += run
			}
		}
	}
}

// Package psrfits models search-mode PSRFITS data as a stream of fixed-size
// subintegration rows. It defines the Header and Row types, the Reader and
// Writer contracts every row store satisfies, an in-memory store, and the
// "<base>_NNNN.fits" file naming used for multi-file recordings.
//
// The on-disk encoding lives in the fitsfile subpackage.
package psrfits

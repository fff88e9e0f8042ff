// Package dispersion computes cold-plasma dispersive delays and the integer
// per-channel sample shifts that align channels within a subband.
package dispersion

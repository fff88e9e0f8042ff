// Package channel computes per-column statistics of interleaved quantised
// samples, such as the channels of a search-mode data block.
package channel

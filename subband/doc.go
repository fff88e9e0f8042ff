// Package subband reduces a search-mode row stream to fewer, coarser
// channels. Each group of adjacent channels is shifted by its integer
// dispersive delay relative to the group centre and averaged, using a
// sliding window that carries the tail of the previous row and the head of
// the next. Missing rows are replaced by filler built from the most recent
// real channel means.
package subband

// Package buffer provides the sliding sample window used by the
// dedispersion engine. A Window holds a live block of samples with a
// lead pad before it and a trail pad after it, so that a column delayed by
// up to the pad length can still be read without leaving the allocation.
package buffer

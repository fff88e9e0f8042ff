// Package merge combines search-mode recordings of adjacent frequency bands,
// made by separate receiver chains at the same time, into one wide-band
// recording. Each output row is assembled from one row of every input, read
// in parallel and interleaved into band order.
package merge

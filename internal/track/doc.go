// Package track owns the smoothing pipeline's track-level plumbing:
// the dense per-frame track representation, CSV ingestion and output,
// and the batch processor that fans tracks out to the motion filter
// under a worker pool.
//
// A Track holds one measurement slot per frame across its whole span,
// missing frames included, so downstream estimation never has to
// reason about sparse frame numbering. Batch processing isolates
// per-track failures: one bad track yields a Failure record, never a
// lost batch.
package track

// Package upload implements the batch upload pipeline.
//
// A batch flows through descriptor building, one metadata negotiation for all
// files, optional sample challenges, bounded-retry session negotiation,
// optional transcoding, and a single transfer per granted session. Coordinator
// owns the result partition and brackets the upload phase with start/stop
// state signals. Per-file failures never abort the batch; they land in
// BatchResult.NotUploaded with a reason.
package upload

// Package locker talks to the remote media locker.
//
// Transport is the set of logical calls the upload pipeline depends on;
// HTTPClient implements it with protobuf-encoded bodies for device
// registration, metadata, samples, and upload state, and JSON for session
// negotiation and the final file transfer.
package locker

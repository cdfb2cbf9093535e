// Package track builds the metadata descriptors the locker negotiates on.
//
// A Descriptor carries the tag fields, encoding, size, and a content id
// derived from the file bytes. Builder reads tags through dhowden/tag and
// optionally probes duration and bitrate with an external Prober.
package track

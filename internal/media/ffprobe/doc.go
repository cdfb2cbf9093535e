// Package ffprobe provides a typed wrapper around ffprobe JSON output for
// audio read from memory.
//
// Inspect pipes bytes through ffprobe; Prober converts the result into the
// duration and bitrate the track descriptor builder records.
package ffprobe

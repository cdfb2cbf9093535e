// Package transcode wraps ffmpeg for the two conversions an upload needs:
// full-file MP3 transcodes for encodings the locker does not store, and short
// fixed-bitrate slices answering match sample challenges.
//
// Audio is streamed through stdin and stdout; nothing is written to disk.
package transcode

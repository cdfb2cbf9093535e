package upload

import (
	"lockersync/internal/track"
	"lockersync/internal/transcode"
)

type transcodePlan int

const (
	planPassThrough transcodePlan = iota
	planTranscode
	planReject
)

const reasonTranscodingDisabled = "transcoding disabled"

// planTranscodeFor decides, before any session is requested, what happens to
// a file's bytes.
func planTranscodeFor(enc track.Encoding, opts Options) transcodePlan {
	if !transcode.NeedsTranscode(enc) {
		return planPassThrough
	}
	if opts.EnableTranscoding {
		return planTranscode
	}
	return planReject
}

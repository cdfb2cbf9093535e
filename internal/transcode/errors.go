package transcode

import "fmt"

// Error reports a failed ffmpeg invocation.
type Error struct {
	Op     string
	Err    error
	Stderr string
}

func (e *Error) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("ffmpeg %s: %v: %s", e.Op, e.Err, e.Stderr)
	}
	return fmt.Sprintf("ffmpeg %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

package testsupport

import (
	"context"
	"sync"

	"lockersync/internal/track"
	"lockersync/internal/transcode"
)

// FakeTranscoder prefixes input bytes instead of running ffmpeg.
type FakeTranscoder struct {
	TranscodeErr error
	SliceErr     error
	// OnTranscode runs at the start of every Transcode call.
	OnTranscode func()

	mu             sync.Mutex
	transcodeCalls int
	sliceCalls     int
}

func (f *FakeTranscoder) Transcode(_ context.Context, data []byte, q transcode.Quality) ([]byte, error) {
	f.mu.Lock()
	f.transcodeCalls++
	f.mu.Unlock()
	if f.OnTranscode != nil {
		f.OnTranscode()
	}
	if f.TranscodeErr != nil {
		return nil, f.TranscodeErr
	}
	return append([]byte("mp3@"+q.String()+":"), data...), nil
}

func (f *FakeTranscoder) Slice(_ context.Context, data []byte, _, _ int64, _ int) ([]byte, error) {
	f.mu.Lock()
	f.sliceCalls++
	f.mu.Unlock()
	if f.SliceErr != nil {
		return nil, f.SliceErr
	}
	n := len(data)
	if n > 16 {
		n = 16
	}
	return append([]byte("slice:"), data[:n]...), nil
}

// TranscodeCalls returns how many full transcodes ran.
func (f *FakeTranscoder) TranscodeCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.transcodeCalls
}

// SliceCalls returns how many samples were cut.
func (f *FakeTranscoder) SliceCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sliceCalls
}

// StaticBuilder returns fixed descriptors per path; unknown paths fail as unsupported.
type StaticBuilder map[string]track.Descriptor

func (b StaticBuilder) Build(_ context.Context, path string, _ []byte) (track.Descriptor, error) {
	desc, ok := b[path]
	if !ok {
		return track.Descriptor{}, &track.BuildError{Path: path, Err: track.ErrUnsupportedFormat}
	}
	return desc, nil
}

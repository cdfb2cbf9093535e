package testsupport

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

// WriteFile fills the target path with the requested number of bytes using a
// simple repeating pattern. A size <= 0 writes a single byte.
func WriteFile(t testing.TB, path string, size int64) {
	t.Helper()
	if size <= 0 {
		size = 1
	}
	writeBytes(t, path, bytes.Repeat([]byte{0x42}, int(size)))
}

// MPEGBytes returns a short untagged MPEG-1 layer III stream. salt changes the
// payload so distinct calls produce distinct content ids.
func MPEGBytes(frames int, salt byte) []byte {
	if frames <= 0 {
		frames = 1
	}
	frame := make([]byte, 417)
	copy(frame, []byte{0xFF, 0xFB, 0x90, 0x64})
	for i := 4; i < len(frame); i++ {
		frame[i] = salt
	}
	return bytes.Repeat(frame, frames)
}

// WriteMPEG writes MPEGBytes to path.
func WriteMPEG(t testing.TB, path string, salt byte) {
	t.Helper()
	writeBytes(t, path, MPEGBytes(3, salt))
}

func writeBytes(t testing.TB, path string, data []byte) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// MemoryFiles serves file contents from memory.
type MemoryFiles map[string][]byte

// Read implements the upload pipeline's file reader contract.
func (m MemoryFiles) Read(path string) ([]byte, error) {
	data, ok := m[path]
	if !ok {
		return nil, &os.PathError{Op: "open", Path: path, Err: os.ErrNotExist}
	}
	return append([]byte(nil), data...), nil
}

package transcode

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"lockersync/internal/track"
)

// DefaultSampleBitrateKbps is the bitrate used for match samples.
const DefaultSampleBitrateKbps = 128

// NeedsTranscode reports whether enc must be converted before the locker accepts it.
func NeedsTranscode(enc track.Encoding) bool {
	return enc != track.MP3
}

// FFmpeg converts audio through an ffmpeg binary, streaming stdin to stdout.
// MP4-family input is spilled to a temporary file first because its index
// may follow the audio data, which a pipe cannot seek back to.
type FFmpeg struct {
	Binary string
	// TempDir holds spilled input; empty uses os.TempDir.
	TempDir string
}

// Transcode converts data to MP3 at quality q with metadata stripped.
// Output is deterministic for identical input and quality.
func (f FFmpeg) Transcode(ctx context.Context, data []byte, q Quality) ([]byte, error) {
	output := []string{
		"-map", "0:a:0",
		"-map_metadata", "-1",
		"-vn",
		"-c:a", "libmp3lame",
	}
	output = append(output, q.encoderArgs()...)
	output = append(output, bitexactArgs()...)
	return f.run(ctx, "transcode", nil, output, data)
}

// Slice re-encodes [startMillis, startMillis+durationMillis) of data to MP3
// at a fixed bitrate.
func (f FFmpeg) Slice(ctx context.Context, data []byte, startMillis, durationMillis int64, bitrateKbps int) ([]byte, error) {
	if startMillis < 0 {
		return nil, &Error{Op: "slice", Err: fmt.Errorf("invalid start %dms", startMillis)}
	}
	if durationMillis <= 0 {
		return nil, &Error{Op: "slice", Err: fmt.Errorf("invalid duration %dms", durationMillis)}
	}
	if bitrateKbps <= 0 {
		bitrateKbps = DefaultSampleBitrateKbps
	}
	window := []string{
		"-ss", millisToSeconds(startMillis),
		"-t", millisToSeconds(durationMillis),
	}
	output := []string{
		"-map", "0:a:0",
		"-map_metadata", "-1",
		"-vn",
		"-c:a", "libmp3lame",
		"-b:a", strconv.Itoa(bitrateKbps) + "k",
	}
	output = append(output, bitexactArgs()...)
	return f.run(ctx, "slice", window, output, data)
}

func (f FFmpeg) run(ctx context.Context, op string, inputArgs, outputArgs []string, data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, &Error{Op: op, Err: errors.New("empty input")}
	}
	binary := strings.TrimSpace(f.Binary)
	if binary == "" {
		binary = "ffmpeg"
	}

	input := "pipe:0"
	if needsSeekableInput(data) {
		path, err := f.spill(data)
		if err != nil {
			return nil, &Error{Op: op, Err: err}
		}
		defer os.Remove(path)
		input = path
	}

	args := []string{"-hide_banner", "-loglevel", "error"}
	args = append(args, inputArgs...)
	args = append(args, "-i", input)
	args = append(args, outputArgs...)

	cmd := exec.CommandContext(ctx, binary, args...) //nolint:gosec
	if input == "pipe:0" {
		cmd.Stdin = bytes.NewReader(data)
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, &Error{Op: op, Err: err, Stderr: strings.TrimSpace(stderr.String())}
	}
	if stdout.Len() == 0 {
		return nil, &Error{Op: op, Err: errors.New("no output produced"), Stderr: strings.TrimSpace(stderr.String())}
	}
	return stdout.Bytes(), nil
}

// needsSeekableInput reports whether data is an ISO base media (MP4/M4A) file.
func needsSeekableInput(data []byte) bool {
	return len(data) >= 12 && string(data[4:8]) == "ftyp"
}

func (f FFmpeg) spill(data []byte) (string, error) {
	file, err := os.CreateTemp(f.TempDir, "lockersync-*.m4a")
	if err != nil {
		return "", fmt.Errorf("spill input: %w", err)
	}
	if _, err := file.Write(data); err != nil {
		_ = file.Close()
		_ = os.Remove(file.Name())
		return "", fmt.Errorf("spill input: %w", err)
	}
	if err := file.Close(); err != nil {
		_ = os.Remove(file.Name())
		return "", fmt.Errorf("spill input: %w", err)
	}
	return file.Name(), nil
}

func bitexactArgs() []string {
	return []string{
		"-fflags", "+bitexact",
		"-flags:a", "+bitexact",
		"-id3v2_version", "0",
		"-write_xing", "0",
		"-f", "mp3",
		"pipe:1",
	}
}

func millisToSeconds(ms int64) string {
	return strconv.FormatFloat(float64(ms)/1000, 'f', 3, 64)
}

package track

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"testing"
)

type stubProber struct {
	millis int64
	kbps   int
	err    error
	calls  int
}

func (s *stubProber) Probe(context.Context, []byte) (int64, int, error) {
	s.calls++
	return s.millis, s.kbps, s.err
}

func mpegFrames(n int) []byte {
	frame := make([]byte, 417)
	copy(frame, []byte{0xFF, 0xFB, 0x90, 0x64})
	return bytes.Repeat(frame, n)
}

func id3Frame(id, text string) []byte {
	payload := append([]byte{0x00}, text...)
	header := make([]byte, 10)
	copy(header, id)
	binary.BigEndian.PutUint32(header[4:8], uint32(len(payload)))
	return append(header, payload...)
}

func taggedMP3(title, artist string) []byte {
	var frames []byte
	frames = append(frames, id3Frame("TIT2", title)...)
	frames = append(frames, id3Frame("TPE1", artist)...)
	size := len(frames)
	header := []byte{'I', 'D', '3', 0x03, 0x00, 0x00,
		byte(size >> 21 & 0x7F), byte(size >> 14 & 0x7F), byte(size >> 7 & 0x7F), byte(size & 0x7F)}
	out := append(header, frames...)
	return append(out, mpegFrames(4)...)
}

func flacWithComments(comments ...string) []byte {
	var block bytes.Buffer
	vendor := "lockersync-test"
	_ = binary.Write(&block, binary.LittleEndian, uint32(len(vendor)))
	block.WriteString(vendor)
	_ = binary.Write(&block, binary.LittleEndian, uint32(len(comments)))
	for _, c := range comments {
		_ = binary.Write(&block, binary.LittleEndian, uint32(len(c)))
		block.WriteString(c)
	}
	n := block.Len()
	out := []byte("fLaC")
	out = append(out, 0x84, byte(n>>16), byte(n>>8), byte(n))
	out = append(out, block.Bytes()...)
	return append(out, make([]byte, 64)...)
}

func TestContentIDStableAndDistinct(t *testing.T) {
	a := ContentID([]byte("same bytes"))
	b := ContentID([]byte("same bytes"))
	c := ContentID([]byte("other bytes"))
	if a != b {
		t.Fatalf("identical bytes produced %q and %q", a, b)
	}
	if a == c {
		t.Fatal("different bytes produced the same id")
	}
	if len(a) != 22 {
		t.Fatalf("expected 22 character unpadded id, got %q", a)
	}
}

func TestBuildUntaggedMPEGFallsBackToFileName(t *testing.T) {
	prober := &stubProber{millis: 215000, kbps: 192}
	builder := NewBuilder(prober, nil)

	data := mpegFrames(3)
	desc, err := builder.Build(context.Background(), "/music/Some Song.mp3", data)
	if err != nil {
		t.Fatalf("Build returned error: %v", err)
	}
	if desc.Encoding != MP3 {
		t.Fatalf("expected MP3, got %s", desc.Encoding)
	}
	if desc.Title != "Some Song" {
		t.Fatalf("expected file name title, got %q", desc.Title)
	}
	if desc.DurationMillis != 215000 || desc.BitrateKbps != 192 {
		t.Fatalf("expected probed values, got %d ms %d kbps", desc.DurationMillis, desc.BitrateKbps)
	}
	if desc.SizeBytes != int64(len(data)) || desc.ContentID != ContentID(data) {
		t.Fatalf("unexpected size/id: %+v", desc)
	}
}

func TestBuildReadsID3Tags(t *testing.T) {
	desc, err := NewBuilder(nil, nil).Build(context.Background(), "/x/track01.mp3", taggedMP3("Song", "Band"))
	if err != nil {
		t.Fatalf("Build returned error: %v", err)
	}
	if desc.Title != "Song" || desc.Artist != "Band" {
		t.Fatalf("unexpected tags: %+v", desc)
	}
	if desc.Encoding != MP3 {
		t.Fatalf("expected MP3, got %s", desc.Encoding)
	}
}

func TestBuildReadsFLACVorbisComments(t *testing.T) {
	data := flacWithComments("TITLE=Café", "ARTIST=Quartet", "ALBUM=Live", "TRACKNUMBER=3")
	desc, err := NewBuilder(nil, nil).Build(context.Background(), "/x/03.flac", data)
	if err != nil {
		t.Fatalf("Build returned error: %v", err)
	}
	if desc.Encoding != FLAC {
		t.Fatalf("expected FLAC, got %s", desc.Encoding)
	}
	if desc.Title != "Café" {
		t.Fatalf("expected NFC-normalised title, got %q", desc.Title)
	}
	if desc.Artist != "Quartet" || desc.Album != "Live" || desc.TrackNumber != 3 {
		t.Fatalf("unexpected tags: %+v", desc)
	}
}

func TestBuildRejectsUnsupportedData(t *testing.T) {
	_, err := NewBuilder(nil, nil).Build(context.Background(), "/x/notes.txt", []byte("just some text, not audio at all"))
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}
	var buildErr *BuildError
	if !errors.As(err, &buildErr) || buildErr.Path != "/x/notes.txt" {
		t.Fatalf("expected BuildError with path, got %v", err)
	}
}

func TestBuildIgnoresProberFailure(t *testing.T) {
	prober := &stubProber{err: errors.New("ffprobe missing")}
	desc, err := NewBuilder(prober, nil).Build(context.Background(), "/x/a.mp3", mpegFrames(2))
	if err != nil {
		t.Fatalf("Build returned error: %v", err)
	}
	if prober.calls != 1 {
		t.Fatalf("expected one probe, got %d", prober.calls)
	}
	if desc.DurationMillis != 0 || desc.BitrateKbps != 0 {
		t.Fatalf("expected zero duration/bitrate, got %+v", desc)
	}
}

func TestEncodingNames(t *testing.T) {
	cases := map[Encoding]string{MP3: "MP3", AAC: "AAC", ALAC: "ALAC", FLAC: "FLAC", OGG: "OGG", Unknown: "UNKNOWN"}
	for enc, want := range cases {
		if enc.String() != want {
			t.Fatalf("expected %s, got %s", want, enc.String())
		}
	}
}

package ffprobe

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestResultHelpers(t *testing.T) {
	result := Result{
		Streams: []Stream{
			{CodecType: "video"},
			{CodecType: "audio", Duration: "200.5", BitRate: "256000"},
		},
		Format: Format{Duration: "123.45", BitRate: "320000"},
	}
	if result.DurationSeconds() != 123.45 {
		t.Fatalf("unexpected duration: %v", result.DurationSeconds())
	}
	if result.BitRate() != 320000 {
		t.Fatalf("unexpected bitrate: %d", result.BitRate())
	}
}

func TestResultHelpersFallBackToAudioStream(t *testing.T) {
	result := Result{
		Streams: []Stream{{CodecType: "audio", Duration: "61.2", BitRate: "128000"}},
		Format:  Format{Duration: "N/A", BitRate: "bad"},
	}
	if result.DurationSeconds() != 61.2 {
		t.Fatalf("unexpected duration: %v", result.DurationSeconds())
	}
	if result.BitRate() != 128000 {
		t.Fatalf("unexpected bitrate: %d", result.BitRate())
	}
}

func TestProberUsesStdinPipe(t *testing.T) {
	dir := t.TempDir()
	stub := filepath.Join(dir, "ffprobe")
	script := `#!/bin/sh
cat >/dev/null
echo '{"streams":[{"codec_type":"audio","codec_name":"flac"}],"format":{"duration":"3.2506","bit_rate":"901234"}}'
`
	if err := os.WriteFile(stub, []byte(script), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}

	millis, kbps, err := Prober{Binary: stub}.Probe(context.Background(), []byte("audio"))
	if err != nil {
		t.Fatalf("Probe returned error: %v", err)
	}
	if millis != 3251 {
		t.Fatalf("expected 3251ms, got %d", millis)
	}
	if kbps != 901 {
		t.Fatalf("expected 901 kbps, got %d", kbps)
	}
}

func TestInspectReportsToolFailure(t *testing.T) {
	dir := t.TempDir()
	stub := filepath.Join(dir, "ffprobe")
	script := "#!/bin/sh\ncat >/dev/null\necho 'pipe:0: Invalid data found' >&2\nexit 1\n"
	if err := os.WriteFile(stub, []byte(script), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	if _, err := Inspect(context.Background(), stub, []byte("junk")); err == nil {
		t.Fatal("expected error from failing ffprobe")
	}
	if _, err := Inspect(context.Background(), stub, nil); err == nil {
		t.Fatal("expected error for empty input")
	}
}

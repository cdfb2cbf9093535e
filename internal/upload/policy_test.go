package upload

import (
	"testing"

	"lockersync/internal/track"
)

func TestClassify(t *testing.T) {
	policy := DefaultRetryPolicy()
	cases := []struct {
		code  int
		force bool
		want  Classification
	}{
		{503, false, Retryable},
		{503, true, Retryable},
		{200, false, AlreadyUploaded},
		{200, true, Retryable},
		{404, false, Fatal},
		{404, true, Fatal},
		{418, false, Retryable},
	}
	for _, tc := range cases {
		if got := policy.Classify(tc.code, tc.force); got != tc.want {
			t.Errorf("Classify(%d, force=%v) = %s, want %s", tc.code, tc.force, got, tc.want)
		}
	}
}

func TestPlanTranscodeFor(t *testing.T) {
	on := Options{EnableTranscoding: true}
	off := Options{}
	if planTranscodeFor(track.MP3, off) != planPassThrough {
		t.Fatal("mp3 should pass through regardless of settings")
	}
	if planTranscodeFor(track.FLAC, on) != planTranscode {
		t.Fatal("flac should be transcoded when enabled")
	}
	if planTranscodeFor(track.AAC, off) != planReject {
		t.Fatal("aac should be rejected when transcoding is off")
	}
}

func TestAccumulatorFirstResolutionWins(t *testing.T) {
	var calls int
	acc := newAccumulator(2, func(done, total int) { calls++ })
	acc.uploaded("a", "srv-a")
	acc.notUploaded("a", "late failure")
	acc.matched("b", "srv-b")

	got := acc.snapshot()
	if got.Uploaded["a"] != "srv-a" || len(got.NotUploaded) != 0 {
		t.Fatalf("later resolution overwrote the first: %+v", got)
	}
	if calls != 2 {
		t.Fatalf("expected progress per newly resolved path, got %d", calls)
	}
	got.Uploaded["x"] = "mutated"
	if _, ok := acc.snapshot().Uploaded["x"]; ok {
		t.Fatal("snapshot must not share maps")
	}
}

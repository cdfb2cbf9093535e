package transcode

import (
	"fmt"
	"strconv"
	"strings"
)

// Quality selects the MP3 encoder setting. Exactly one field is meaningful:
// VBR >= 0 selects a LAME variable bitrate preset, otherwise BitrateKbps is a
// constant bitrate.
type Quality struct {
	VBR         int
	BitrateKbps int
}

// DefaultQuality is 320 kbps constant bitrate.
var DefaultQuality = Quality{VBR: -1, BitrateKbps: 320}

// ParseQuality accepts "V0".."V9" or a bitrate such as "320k" or "192".
func ParseQuality(value string) (Quality, error) {
	lower := strings.ToLower(strings.TrimSpace(value))
	if lower == "" {
		return DefaultQuality, nil
	}
	if rest, ok := strings.CutPrefix(lower, "v"); ok {
		n, err := strconv.Atoi(rest)
		if err != nil || n < 0 || n > 9 {
			return Quality{}, fmt.Errorf("vbr quality %q must be V0 through V9", value)
		}
		return Quality{VBR: n}, nil
	}
	n, err := strconv.Atoi(strings.TrimSuffix(lower, "k"))
	if err != nil || n < 8 || n > 320 {
		return Quality{}, fmt.Errorf("bitrate %q must be between 8k and 320k", value)
	}
	return Quality{VBR: -1, BitrateKbps: n}, nil
}

func (q Quality) String() string {
	if q.VBR >= 0 {
		return "V" + strconv.Itoa(q.VBR)
	}
	return strconv.Itoa(q.BitrateKbps) + "k"
}

func (q Quality) encoderArgs() []string {
	if q.VBR >= 0 {
		return []string{"-q:a", strconv.Itoa(q.VBR)}
	}
	kbps := q.BitrateKbps
	if kbps <= 0 {
		kbps = DefaultQuality.BitrateKbps
	}
	return []string{"-b:a", strconv.Itoa(kbps) + "k"}
}

package track

import "github.com/dhowden/tag"

// Encoding is the audio codec of a local file as far as the locker cares.
type Encoding int

const (
	Unknown Encoding = iota
	MP3
	AAC
	ALAC
	FLAC
	OGG
)

func (e Encoding) String() string {
	switch e {
	case MP3:
		return "MP3"
	case AAC:
		return "AAC"
	case ALAC:
		return "ALAC"
	case FLAC:
		return "FLAC"
	case OGG:
		return "OGG"
	default:
		return "UNKNOWN"
	}
}

// FromFileType maps a container detected by the tag reader to an encoding.
func FromFileType(format tag.Format, fileType tag.FileType) Encoding {
	switch fileType {
	case tag.MP3:
		return MP3
	case tag.M4A, tag.M4B, tag.M4P:
		return AAC
	case tag.ALAC:
		return ALAC
	case tag.FLAC:
		return FLAC
	case tag.OGG:
		return OGG
	}
	if format == tag.MP4 {
		return AAC
	}
	return Unknown
}

package track

import (
	"crypto/md5"
	"encoding/base64"
)

// Descriptor is the immutable metadata record sent to the locker for one file.
type Descriptor struct {
	ContentID      string
	Title          string
	Album          string
	AlbumArtist    string
	Artist         string
	Composer       string
	Genre          string
	Year           int
	TrackNumber    int
	TotalTracks    int
	DiscNumber     int
	TotalDiscs     int
	DurationMillis int64
	BitrateKbps    int
	Encoding       Encoding
	SizeBytes      int64
	// Rating is 0 when unset.
	Rating    int
	PlayCount int
}

// ContentID derives the stable client id for a file from its raw bytes.
func ContentID(data []byte) string {
	sum := md5.Sum(data)
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

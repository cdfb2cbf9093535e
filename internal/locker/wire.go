package locker

import (
	"google.golang.org/protobuf/encoding/protowire"

	"lockersync/internal/track"
)

// Field numbers for the protobuf-encoded locker messages.
const (
	trackClientID       protowire.Number = 1
	trackTitle          protowire.Number = 2
	trackAlbum          protowire.Number = 3
	trackArtist         protowire.Number = 4
	trackComposer       protowire.Number = 5
	trackGenre          protowire.Number = 6
	trackNumber         protowire.Number = 7
	trackTotalTracks    protowire.Number = 8
	trackDiscNumber     protowire.Number = 9
	trackTotalDiscs     protowire.Number = 10
	trackDurationMillis protowire.Number = 11
	trackBitrate        protowire.Number = 12
	trackEncoding       protowire.Number = 13
	trackEstimatedSize  protowire.Number = 14
	trackRating         protowire.Number = 15
	trackPlayCount      protowire.Number = 16
	trackAlbumArtist    protowire.Number = 17
	trackYear           protowire.Number = 18
)

type authRequest struct {
	UploaderID   string
	FriendlyName string
}

type authResponse struct {
	OK          bool
	DeviceLimit bool
}

type metadataRequest struct {
	UploaderID string
	Tracks     []track.Descriptor
}

type uploadStateRequest struct {
	UploaderID string
	State      UploadState
}

func appendString(b []byte, num protowire.Number, v string) []byte {
	if v == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, v)
}

func appendBytes(b []byte, num protowire.Number, v []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, v)
}

func appendInt(b []byte, num protowire.Number, v int64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, uint64(v))
}

func appendBool(b []byte, num protowire.Number, v bool) []byte {
	if !v {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, protowire.EncodeBool(v))
}

func appendMessage(b []byte, num protowire.Number, msg []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, msg)
}

// fieldReader walks the top-level fields of one encoded message.
type fieldReader struct {
	b   []byte
	num protowire.Number
	typ protowire.Type
	err error
}

func newFieldReader(b []byte) *fieldReader { return &fieldReader{b: b} }

func (r *fieldReader) next() bool {
	if r.err != nil || len(r.b) == 0 {
		return false
	}
	num, typ, n := protowire.ConsumeTag(r.b)
	if n < 0 {
		r.err = protowire.ParseError(n)
		return false
	}
	r.b = r.b[n:]
	r.num, r.typ = num, typ
	return true
}

func (r *fieldReader) advance(n int) {
	if n < 0 {
		r.err = protowire.ParseError(n)
		r.b = nil
		return
	}
	r.b = r.b[n:]
}

func (r *fieldReader) skip() {
	r.advance(protowire.ConsumeFieldValue(r.num, r.typ, r.b))
}

func (r *fieldReader) varint() uint64 {
	if r.typ != protowire.VarintType {
		r.skip()
		return 0
	}
	v, n := protowire.ConsumeVarint(r.b)
	r.advance(n)
	return v
}

func (r *fieldReader) int() int64 { return int64(r.varint()) }

func (r *fieldReader) bool() bool { return protowire.DecodeBool(r.varint()) }

func (r *fieldReader) bytes() []byte {
	if r.typ != protowire.BytesType {
		r.skip()
		return nil
	}
	v, n := protowire.ConsumeBytes(r.b)
	r.advance(n)
	return append([]byte(nil), v...)
}

func (r *fieldReader) string() string { return string(r.bytes()) }

func encodeTrack(d track.Descriptor) []byte {
	var b []byte
	b = appendString(b, trackClientID, d.ContentID)
	b = appendString(b, trackTitle, d.Title)
	b = appendString(b, trackAlbum, d.Album)
	b = appendString(b, trackArtist, d.Artist)
	b = appendString(b, trackComposer, d.Composer)
	b = appendString(b, trackGenre, d.Genre)
	b = appendInt(b, trackNumber, int64(d.TrackNumber))
	b = appendInt(b, trackTotalTracks, int64(d.TotalTracks))
	b = appendInt(b, trackDiscNumber, int64(d.DiscNumber))
	b = appendInt(b, trackTotalDiscs, int64(d.TotalDiscs))
	b = appendInt(b, trackDurationMillis, d.DurationMillis)
	b = appendInt(b, trackBitrate, int64(d.BitrateKbps))
	b = appendInt(b, trackEncoding, int64(d.Encoding))
	b = appendInt(b, trackEstimatedSize, d.SizeBytes)
	b = appendInt(b, trackRating, int64(d.Rating))
	b = appendInt(b, trackPlayCount, int64(d.PlayCount))
	b = appendString(b, trackAlbumArtist, d.AlbumArtist)
	b = appendInt(b, trackYear, int64(d.Year))
	return b
}

func decodeTrack(b []byte) (track.Descriptor, error) {
	var d track.Descriptor
	r := newFieldReader(b)
	for r.next() {
		switch r.num {
		case trackClientID:
			d.ContentID = r.string()
		case trackTitle:
			d.Title = r.string()
		case trackAlbum:
			d.Album = r.string()
		case trackArtist:
			d.Artist = r.string()
		case trackComposer:
			d.Composer = r.string()
		case trackGenre:
			d.Genre = r.string()
		case trackNumber:
			d.TrackNumber = int(r.int())
		case trackTotalTracks:
			d.TotalTracks = int(r.int())
		case trackDiscNumber:
			d.DiscNumber = int(r.int())
		case trackTotalDiscs:
			d.TotalDiscs = int(r.int())
		case trackDurationMillis:
			d.DurationMillis = r.int()
		case trackBitrate:
			d.BitrateKbps = int(r.int())
		case trackEncoding:
			d.Encoding = track.Encoding(r.int())
		case trackEstimatedSize:
			d.SizeBytes = r.int()
		case trackRating:
			d.Rating = int(r.int())
		case trackPlayCount:
			d.PlayCount = int(r.int())
		case trackAlbumArtist:
			d.AlbumArtist = r.string()
		case trackYear:
			d.Year = int(r.int())
		default:
			r.skip()
		}
	}
	return d, r.err
}

func encodeAuthRequest(m authRequest) []byte {
	var b []byte
	b = appendString(b, 1, m.UploaderID)
	return appendString(b, 2, m.FriendlyName)
}

func decodeAuthRequest(b []byte) (authRequest, error) {
	var m authRequest
	r := newFieldReader(b)
	for r.next() {
		switch r.num {
		case 1:
			m.UploaderID = r.string()
		case 2:
			m.FriendlyName = r.string()
		default:
			r.skip()
		}
	}
	return m, r.err
}

func encodeAuthResponse(m authResponse) []byte {
	var b []byte
	b = appendBool(b, 1, m.OK)
	return appendBool(b, 2, m.DeviceLimit)
}

func decodeAuthResponse(b []byte) (authResponse, error) {
	var m authResponse
	r := newFieldReader(b)
	for r.next() {
		switch r.num {
		case 1:
			m.OK = r.bool()
		case 2:
			m.DeviceLimit = r.bool()
		default:
			r.skip()
		}
	}
	return m, r.err
}

func encodeMetadataRequest(m metadataRequest) []byte {
	var b []byte
	b = appendString(b, 1, m.UploaderID)
	for _, t := range m.Tracks {
		b = appendMessage(b, 2, encodeTrack(t))
	}
	return b
}

func decodeMetadataRequest(b []byte) (metadataRequest, error) {
	var m metadataRequest
	r := newFieldReader(b)
	for r.next() {
		switch r.num {
		case 1:
			m.UploaderID = r.string()
		case 2:
			t, err := decodeTrack(r.bytes())
			if err != nil {
				return m, err
			}
			m.Tracks = append(m.Tracks, t)
		default:
			r.skip()
		}
	}
	return m, r.err
}

func encodeTrackResponse(t TrackResponse) []byte {
	var b []byte
	b = appendString(b, 1, t.ContentID)
	b = appendInt(b, 2, int64(t.Code))
	return appendString(b, 3, t.ServerID)
}

func decodeTrackResponse(b []byte) (TrackResponse, error) {
	var t TrackResponse
	r := newFieldReader(b)
	for r.next() {
		switch r.num {
		case 1:
			t.ContentID = r.string()
		case 2:
			t.Code = ResponseCode(r.int())
		case 3:
			t.ServerID = r.string()
		default:
			r.skip()
		}
	}
	return t, r.err
}

func encodeChallenge(c SampleChallenge) []byte {
	var b []byte
	b = appendString(b, 1, c.ContentID)
	b = appendBytes(b, 2, c.Token)
	b = appendInt(b, 3, c.StartMillis)
	return appendInt(b, 4, c.DurationMillis)
}

func decodeChallenge(b []byte) (SampleChallenge, error) {
	var c SampleChallenge
	r := newFieldReader(b)
	for r.next() {
		switch r.num {
		case 1:
			c.ContentID = r.string()
		case 2:
			c.Token = r.bytes()
		case 3:
			c.StartMillis = r.int()
		case 4:
			c.DurationMillis = r.int()
		default:
			r.skip()
		}
	}
	return c, r.err
}

func encodeMetadataResponse(m MetadataResponse) []byte {
	var b []byte
	for _, t := range m.Tracks {
		b = appendMessage(b, 1, encodeTrackResponse(t))
	}
	for _, c := range m.Samples {
		b = appendMessage(b, 2, encodeChallenge(c))
	}
	return b
}

func decodeMetadataResponse(b []byte) (MetadataResponse, error) {
	var m MetadataResponse
	r := newFieldReader(b)
	for r.next() {
		switch r.num {
		case 1:
			t, err := decodeTrackResponse(r.bytes())
			if err != nil {
				return m, err
			}
			m.Tracks = append(m.Tracks, t)
		case 2:
			c, err := decodeChallenge(r.bytes())
			if err != nil {
				return m, err
			}
			m.Samples = append(m.Samples, c)
		default:
			r.skip()
		}
	}
	return m, r.err
}

func encodeSampleRequest(m SampleRequest) []byte {
	var b []byte
	b = appendString(b, 1, m.UploaderID)
	b = appendMessage(b, 2, encodeTrack(m.Track))
	b = appendMessage(b, 3, encodeChallenge(m.Challenge))
	b = appendBytes(b, 4, m.Sample)
	return appendBool(b, 5, m.Placeholder)
}

func decodeSampleRequest(b []byte) (SampleRequest, error) {
	var m SampleRequest
	r := newFieldReader(b)
	for r.next() {
		switch r.num {
		case 1:
			m.UploaderID = r.string()
		case 2:
			t, err := decodeTrack(r.bytes())
			if err != nil {
				return m, err
			}
			m.Track = t
		case 3:
			c, err := decodeChallenge(r.bytes())
			if err != nil {
				return m, err
			}
			m.Challenge = c
		case 4:
			m.Sample = r.bytes()
		case 5:
			m.Placeholder = r.bool()
		default:
			r.skip()
		}
	}
	return m, r.err
}

func encodeSampleResponse(t TrackResponse) []byte {
	return appendMessage(nil, 1, encodeTrackResponse(t))
}

func decodeSampleResponse(b []byte) (TrackResponse, error) {
	var t TrackResponse
	r := newFieldReader(b)
	for r.next() {
		if r.num != 1 {
			r.skip()
			continue
		}
		decoded, err := decodeTrackResponse(r.bytes())
		if err != nil {
			return t, err
		}
		t = decoded
	}
	return t, r.err
}

func encodeUploadStateRequest(m uploadStateRequest) []byte {
	var b []byte
	b = appendString(b, 1, m.UploaderID)
	return appendInt(b, 2, int64(m.State))
}

func decodeUploadStateRequest(b []byte) (uploadStateRequest, error) {
	var m uploadStateRequest
	r := newFieldReader(b)
	for r.next() {
		switch r.num {
		case 1:
			m.UploaderID = r.string()
		case 2:
			m.State = UploadState(r.int())
		default:
			r.skip()
		}
	}
	return m, r.err
}

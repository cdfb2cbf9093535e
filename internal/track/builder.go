package track

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/dhowden/tag"
	"golang.org/x/text/unicode/norm"

	"lockersync/internal/logging"
)

// Prober reports duration (milliseconds) and bitrate (kbps) for encoded audio.
type Prober interface {
	Probe(ctx context.Context, data []byte) (int64, int, error)
}

// Builder turns file bytes into Descriptors.
type Builder struct {
	prober Prober
	logger *slog.Logger
}

// NewBuilder constructs a Builder. A nil prober leaves duration and bitrate at zero.
func NewBuilder(prober Prober, logger *slog.Logger) *Builder {
	return &Builder{prober: prober, logger: logging.NewComponentLogger(logger, "track.builder")}
}

// Build identifies the container, reads its tags, and returns a Descriptor.
// Failures are *BuildError wrapping ErrUnsupportedFormat or ErrMetadataRead.
func (b *Builder) Build(ctx context.Context, path string, data []byte) (Descriptor, error) {
	encoding, tagged, err := identify(data)
	if err != nil {
		return Descriptor{}, &BuildError{Path: path, Err: err}
	}

	desc := Descriptor{
		ContentID: ContentID(data),
		Encoding:  encoding,
		SizeBytes: int64(len(data)),
	}

	if tagged {
		meta, err := tag.ReadFrom(bytes.NewReader(data))
		if err != nil {
			return Descriptor{}, &BuildError{Path: path, Err: fmt.Errorf("%w: %v", ErrMetadataRead, err)}
		}
		applyTags(&desc, meta)
		if refined := FromFileType(meta.Format(), meta.FileType()); refined != Unknown {
			desc.Encoding = refined
		}
	}

	if desc.Title == "" {
		desc.Title = titleFromPath(path)
	}

	if b.prober != nil {
		millis, kbps, err := b.prober.Probe(ctx, data)
		if err != nil {
			b.logger.Debug("probe failed; duration and bitrate left unset",
				logging.String(logging.FieldFile, path),
				logging.Error(err),
			)
		} else {
			desc.DurationMillis = millis
			desc.BitrateKbps = kbps
		}
	}
	return desc, nil
}

// identify reports the encoding and whether a tag reader can parse the data.
// Bare MPEG audio streams carry no tag header and are recognised by frame sync.
func identify(data []byte) (Encoding, bool, error) {
	format, fileType, err := tag.Identify(bytes.NewReader(data))
	if err == nil {
		if enc := FromFileType(format, fileType); enc != Unknown {
			return enc, true, nil
		}
		return Unknown, false, fmt.Errorf("%w: %s", ErrUnsupportedFormat, fileType)
	}
	if isMPEGFrame(data) {
		return MP3, false, nil
	}
	return Unknown, false, ErrUnsupportedFormat
}

// isMPEGFrame reports whether data starts with an MPEG audio layer III frame header.
func isMPEGFrame(data []byte) bool {
	if len(data) < 4 {
		return false
	}
	if data[0] != 0xFF || data[1]&0xE0 != 0xE0 {
		return false
	}
	version := (data[1] >> 3) & 0x03
	layer := (data[1] >> 1) & 0x03
	bitrateIndex := data[2] >> 4
	sampleRateIndex := (data[2] >> 2) & 0x03
	return version != 0x01 && layer == 0x01 && bitrateIndex != 0x0F && sampleRateIndex != 0x03
}

func applyTags(desc *Descriptor, meta tag.Metadata) {
	desc.Title = clean(meta.Title())
	desc.Album = clean(meta.Album())
	desc.Artist = clean(meta.Artist())
	desc.AlbumArtist = clean(meta.AlbumArtist())
	desc.Composer = clean(meta.Composer())
	desc.Genre = clean(meta.Genre())
	desc.Year = meta.Year()
	desc.TrackNumber, desc.TotalTracks = meta.Track()
	desc.DiscNumber, desc.TotalDiscs = meta.Disc()
}

func clean(value string) string {
	value = strings.TrimSpace(strings.TrimRight(value, "\x00"))
	return norm.NFC.String(value)
}

func titleFromPath(path string) string {
	base := filepath.Base(path)
	return norm.NFC.String(strings.TrimSuffix(base, filepath.Ext(base)))
}

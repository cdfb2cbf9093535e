package upload

import (
	"context"
	"errors"
	"log/slog"

	"lockersync/internal/locker"
	"lockersync/internal/logging"
	"lockersync/internal/services"
	"lockersync/internal/track"
)

// DirectiveKind is the server's instruction for one track after metadata negotiation.
type DirectiveKind int

const (
	DirectiveNotUploaded DirectiveKind = iota
	DirectiveAlreadyMatched
	DirectiveNeedsSample
	DirectiveNeedsUpload
)

func (k DirectiveKind) String() string {
	switch k {
	case DirectiveAlreadyMatched:
		return "already_matched"
	case DirectiveNeedsSample:
		return "needs_sample"
	case DirectiveNeedsUpload:
		return "needs_upload"
	default:
		return "not_uploaded"
	}
}

// Directive carries the fields relevant to its Kind.
type Directive struct {
	Kind      DirectiveKind
	ServerID  string
	Challenge locker.SampleChallenge
	Reason    string
}

const reasonNoDirective = "no directive from server"

// MetadataNegotiator performs the single batched metadata round-trip.
type MetadataNegotiator struct {
	transport locker.Transport
	logger    *slog.Logger
}

// NewMetadataNegotiator constructs a negotiator over transport.
func NewMetadataNegotiator(transport locker.Transport, logger *slog.Logger) *MetadataNegotiator {
	return &MetadataNegotiator{transport: transport, logger: logging.NewComponentLogger(logger, "upload.metadata")}
}

// Negotiate submits every descriptor in one call and returns exactly one
// directive per content id. A transport failure is returned as an error
// because no per-track directive exists to fall back on.
func (n *MetadataNegotiator) Negotiate(ctx context.Context, descriptors []track.Descriptor, id locker.Identity) (map[string]Directive, error) {
	ctx = services.WithStage(ctx, "metadata")
	resp, err := n.transport.UploadMetadata(ctx, descriptors, id.ID)
	if err != nil {
		marker := services.ErrTransient
		if errors.Is(err, locker.ErrNotAuthenticated) {
			marker = services.ErrConfiguration
		}
		return nil, services.Wrap(marker, "metadata", "UploadMetadata", "metadata negotiation failed", err)
	}

	tracks := make(map[string]locker.TrackResponse, len(resp.Tracks))
	for _, tr := range resp.Tracks {
		tracks[tr.ContentID] = tr
	}
	challenges := make(map[string]locker.SampleChallenge, len(resp.Samples))
	for _, ch := range resp.Samples {
		challenges[ch.ContentID] = ch
	}

	directives := make(map[string]Directive, len(descriptors))
	for _, desc := range descriptors {
		directives[desc.ContentID] = directiveFor(desc.ContentID, tracks, challenges)
	}

	logger := logging.WithContext(ctx, n.logger)
	logger.Info("metadata negotiated",
		logging.Int("tracks", len(descriptors)),
		logging.Int("responses", len(resp.Tracks)),
		logging.Int("challenges", len(resp.Samples)),
	)
	return directives, nil
}

func directiveFor(contentID string, tracks map[string]locker.TrackResponse, challenges map[string]locker.SampleChallenge) Directive {
	tr, hasTrack := tracks[contentID]
	if ch, ok := challenges[contentID]; ok {
		return Directive{Kind: DirectiveNeedsSample, Challenge: ch, ServerID: tr.ServerID}
	}
	if !hasTrack {
		return Directive{Kind: DirectiveNotUploaded, Reason: reasonNoDirective}
	}
	switch tr.Code {
	case locker.ResponseMatched, locker.ResponseAlreadyExists:
		return Directive{Kind: DirectiveAlreadyMatched, ServerID: tr.ServerID}
	case locker.ResponseUploadRequested:
		return Directive{Kind: DirectiveNeedsUpload, ServerID: tr.ServerID}
	default:
		return Directive{Kind: DirectiveNotUploaded, Reason: "server responded " + tr.Code.String()}
	}
}

package upload

import (
	"context"
	"fmt"
	"log/slog"

	"lockersync/internal/locker"
	"lockersync/internal/logging"
	"lockersync/internal/services"
	"lockersync/internal/track"
)

// SampleOutcomeKind narrows a sample challenge answer.
type SampleOutcomeKind int

const (
	SampleFailed SampleOutcomeKind = iota
	SampleMatched
	SampleNeedsUpload
	SampleRejected
)

// SampleOutcome is the result of answering one challenge.
type SampleOutcome struct {
	Kind     SampleOutcomeKind
	ServerID string
	Code     locker.ResponseCode
	Reason   string
}

// SampleProvider answers server sample challenges.
type SampleProvider struct {
	transport   locker.Transport
	transcoder  Transcoder
	read        FileReader
	matching    bool
	bitrateKbps int
	logger      *slog.Logger
}

// NewSampleProvider constructs a provider. With matching disabled it submits
// an empty placeholder instead of real audio.
func NewSampleProvider(transport locker.Transport, transcoder Transcoder, read FileReader, matching bool, bitrateKbps int, logger *slog.Logger) *SampleProvider {
	if read == nil {
		read = defaultReader
	}
	return &SampleProvider{
		transport:   transport,
		transcoder:  transcoder,
		read:        read,
		matching:    matching,
		bitrateKbps: bitrateKbps,
		logger:      logging.NewComponentLogger(logger, "upload.sample"),
	}
}

// Provide submits exactly one sample for challenge. Each challenge is used once.
func (p *SampleProvider) Provide(ctx context.Context, path string, desc track.Descriptor, challenge locker.SampleChallenge, id locker.Identity) SampleOutcome {
	ctx = services.WithStage(ctx, "sample")
	logger := logging.WithContext(ctx, p.logger)

	req := locker.SampleRequest{
		UploaderID: id.ID,
		Track:      desc,
		Challenge:  challenge,
	}
	if p.matching {
		data, err := p.read(path)
		if err != nil {
			return SampleOutcome{Kind: SampleFailed, Reason: fmt.Sprintf("read file: %v", err)}
		}
		sample, err := p.transcoder.Slice(ctx, data, challenge.StartMillis, challenge.DurationMillis, p.bitrateKbps)
		if err != nil {
			return SampleOutcome{Kind: SampleFailed, Reason: err.Error()}
		}
		req.Sample = sample
	} else {
		req.Sample = []byte{}
		req.Placeholder = true
	}

	resp, err := p.transport.ProvideSample(ctx, req)
	if err != nil {
		logging.WarnWithContext(logger, "sample submission failed", "sample_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "the file is reported as not uploaded; rerun to retry"),
		)
		return SampleOutcome{Kind: SampleFailed, Reason: fmt.Sprintf("sample submission failed: %v", err)}
	}

	switch resp.Code {
	case locker.ResponseMatched, locker.ResponseAlreadyExists:
		if req.Placeholder {
			// Matching was disabled; a match against an empty sample is not trusted.
			logger.Info("server matched placeholder sample; uploading instead",
				logging.String("server_id", resp.ServerID),
			)
			return SampleOutcome{Kind: SampleNeedsUpload, ServerID: resp.ServerID, Code: resp.Code}
		}
		return SampleOutcome{Kind: SampleMatched, ServerID: resp.ServerID, Code: resp.Code}
	case locker.ResponseUploadRequested:
		return SampleOutcome{Kind: SampleNeedsUpload, ServerID: resp.ServerID, Code: resp.Code}
	default:
		return SampleOutcome{Kind: SampleRejected, Code: resp.Code, Reason: "sample rejected: " + resp.Code.String()}
	}
}

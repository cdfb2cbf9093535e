package locker

import (
	"context"

	"lockersync/internal/track"
)

// Transport performs the logical locker calls. Implementations return
// *CallFailure for transport-level problems and *SessionError when the
// session endpoint answers with a refusal code.
type Transport interface {
	Authenticate(ctx context.Context, id Identity) error
	UploadMetadata(ctx context.Context, tracks []track.Descriptor, uploaderID string) (MetadataResponse, error)
	ProvideSample(ctx context.Context, req SampleRequest) (TrackResponse, error)
	GetUploadSession(ctx context.Context, req SessionRequest) (Session, error)
	UploadFile(ctx context.Context, session Session, data []byte) (TransferStatus, error)
	UpdateUploadState(ctx context.Context, state UploadState, uploaderID string) error
}

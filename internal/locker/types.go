package locker

import "lockersync/internal/track"

// Identity is the uploader device the locker attributes uploads to.
type Identity struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ResponseCode is the server's verdict on one track.
type ResponseCode int

const (
	ResponseUnspecified ResponseCode = iota
	ResponseMatched
	ResponseUploadRequested
	ResponseAlreadyExists
	ResponseInvalidSignature
	ResponseRejected
	ResponseError
)

func (c ResponseCode) String() string {
	switch c {
	case ResponseMatched:
		return "MATCHED"
	case ResponseUploadRequested:
		return "UPLOAD_REQUESTED"
	case ResponseAlreadyExists:
		return "ALREADY_EXISTS"
	case ResponseInvalidSignature:
		return "INVALID_SIGNATURE"
	case ResponseRejected:
		return "REJECTED"
	case ResponseError:
		return "ERROR"
	default:
		return "UNSPECIFIED"
	}
}

// TrackResponse is the per-track answer to a metadata or sample call.
type TrackResponse struct {
	ContentID string
	Code      ResponseCode
	ServerID  string
}

// SampleChallenge asks the client for a slice of a track's audio.
type SampleChallenge struct {
	ContentID      string
	Token          []byte
	StartMillis    int64
	DurationMillis int64
}

// MetadataResponse answers an UploadMetadata call.
type MetadataResponse struct {
	Tracks  []TrackResponse
	Samples []SampleChallenge
}

// SampleRequest submits the audio slice answering a challenge.
type SampleRequest struct {
	UploaderID string
	Track      track.Descriptor
	Challenge  SampleChallenge
	Sample     []byte
	// Placeholder marks an empty sample sent when matching is disabled.
	Placeholder bool
}

// SessionRequest asks for an upload slot for one track.
type SessionRequest struct {
	UploaderID      string
	AlreadyUploaded int
	Track           track.Descriptor
	Path            string
	ServerID        string
	DoNotRematch    bool
}

// Session is a granted upload slot.
type Session struct {
	URL         string
	ContentType string
}

// StateFinalized is the only transfer state that counts as a completed upload.
const StateFinalized = "FINALIZED"

// TransferStatus is the server's report after receiving file bytes.
type TransferStatus struct {
	State string
}

// UploadState brackets the upload phase of a batch.
type UploadState int

const (
	UploadStart UploadState = iota + 1
	UploadStopped
)

func (s UploadState) String() string {
	switch s {
	case UploadStart:
		return "START"
	case UploadStopped:
		return "STOPPED"
	default:
		return "UNKNOWN"
	}
}

package testsupport

import (
	"context"
	"sync"

	"lockersync/internal/locker"
	"lockersync/internal/track"
)

// FakeTransport is a scriptable in-memory locker.Transport. Nil hooks fall
// back to granting sessions and finalizing every upload.
type FakeTransport struct {
	AuthErr  error
	StateErr error

	Metadata func(tracks []track.Descriptor) (locker.MetadataResponse, error)
	Sample   func(req locker.SampleRequest) (locker.TrackResponse, error)
	// Session receives the attempt's context and the 1-based attempt count
	// for the request's content id.
	Session func(ctx context.Context, req locker.SessionRequest, attempt int) (locker.Session, error)
	Upload  func(ctx context.Context, session locker.Session, data []byte) (locker.TransferStatus, error)

	mu              sync.Mutex
	metadataCalls   int
	sampleRequests  []locker.SampleRequest
	sessionRequests []locker.SessionRequest
	sessionCalls    map[string]int
	uploads         map[string][]byte
	uploadCalls     int
	states          []locker.UploadState
	events          []string
}

func (f *FakeTransport) Authenticate(context.Context, locker.Identity) error {
	return f.AuthErr
}

func (f *FakeTransport) UploadMetadata(_ context.Context, tracks []track.Descriptor, _ string) (locker.MetadataResponse, error) {
	f.mu.Lock()
	f.metadataCalls++
	f.events = append(f.events, "metadata")
	f.mu.Unlock()
	if f.Metadata == nil {
		resp := locker.MetadataResponse{}
		for _, tr := range tracks {
			resp.Tracks = append(resp.Tracks, locker.TrackResponse{ContentID: tr.ContentID, Code: locker.ResponseUploadRequested, ServerID: "srv-" + tr.ContentID})
		}
		return resp, nil
	}
	return f.Metadata(tracks)
}

func (f *FakeTransport) ProvideSample(_ context.Context, req locker.SampleRequest) (locker.TrackResponse, error) {
	f.mu.Lock()
	f.sampleRequests = append(f.sampleRequests, req)
	f.events = append(f.events, "sample")
	f.mu.Unlock()
	if f.Sample == nil {
		return locker.TrackResponse{ContentID: req.Track.ContentID, Code: locker.ResponseUploadRequested}, nil
	}
	return f.Sample(req)
}

func (f *FakeTransport) GetUploadSession(ctx context.Context, req locker.SessionRequest) (locker.Session, error) {
	f.mu.Lock()
	if f.sessionCalls == nil {
		f.sessionCalls = map[string]int{}
	}
	f.sessionCalls[req.Track.ContentID]++
	attempt := f.sessionCalls[req.Track.ContentID]
	f.sessionRequests = append(f.sessionRequests, req)
	f.events = append(f.events, "session")
	f.mu.Unlock()
	if f.Session == nil {
		return locker.Session{URL: "session://" + req.Track.ContentID, ContentType: "audio/mpeg"}, nil
	}
	return f.Session(ctx, req, attempt)
}

func (f *FakeTransport) UploadFile(ctx context.Context, session locker.Session, data []byte) (locker.TransferStatus, error) {
	f.mu.Lock()
	if f.uploads == nil {
		f.uploads = map[string][]byte{}
	}
	f.uploads[session.URL] = append([]byte(nil), data...)
	f.uploadCalls++
	f.events = append(f.events, "upload")
	f.mu.Unlock()
	if f.Upload == nil {
		return locker.TransferStatus{State: locker.StateFinalized}, nil
	}
	return f.Upload(ctx, session, data)
}

func (f *FakeTransport) UpdateUploadState(_ context.Context, state locker.UploadState, _ string) error {
	f.mu.Lock()
	f.states = append(f.states, state)
	f.events = append(f.events, "state:"+state.String())
	f.mu.Unlock()
	return f.StateErr
}

// MetadataCalls returns how many UploadMetadata calls were made.
func (f *FakeTransport) MetadataCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.metadataCalls
}

// SessionCalls returns the GetUploadSession count for a content id.
func (f *FakeTransport) SessionCalls(contentID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sessionCalls[contentID]
}

// SessionRequests returns a copy of every session request in call order.
func (f *FakeTransport) SessionRequests() []locker.SessionRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]locker.SessionRequest(nil), f.sessionRequests...)
}

// SampleRequests returns a copy of every sample submission.
func (f *FakeTransport) SampleRequests() []locker.SampleRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]locker.SampleRequest(nil), f.sampleRequests...)
}

// UploadCount returns how many UploadFile calls were made.
func (f *FakeTransport) UploadCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.uploadCalls
}

// Uploaded returns the bytes sent to a session URL.
func (f *FakeTransport) Uploaded(url string) []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.uploads[url]
}

// States returns the upload state signals in order.
func (f *FakeTransport) States() []locker.UploadState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]locker.UploadState(nil), f.states...)
}

// Events returns every call in order, for sequencing assertions.
func (f *FakeTransport) Events() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.events...)
}

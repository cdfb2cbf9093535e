package locker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"lockersync/internal/services"
	"lockersync/internal/track"
)

type fakeLocker struct {
	t *testing.T

	mu           sync.Mutex
	metadata     []metadataRequest
	samples      []SampleRequest
	sessions     []sessionRequestBody
	states       []UploadState
	uploaded     []byte
	authHeader   string
	sessionReply string
	authReply    authResponse
}

func newFakeLocker(t *testing.T) (*fakeLocker, *httptest.Server) {
	f := &fakeLocker{t: t, authReply: authResponse{OK: true}}
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	return f, srv
}

func (f *fakeLocker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		f.t.Errorf("read body: %v", err)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.authHeader = r.Header.Get("Authorization")

	switch r.URL.Path {
	case pathAuthenticate:
		if _, err := decodeAuthRequest(body); err != nil {
			f.t.Errorf("decode auth: %v", err)
		}
		_, _ = w.Write(encodeAuthResponse(f.authReply))
	case pathMetadata:
		req, err := decodeMetadataRequest(body)
		if err != nil {
			f.t.Errorf("decode metadata: %v", err)
		}
		f.metadata = append(f.metadata, req)
		var resp MetadataResponse
		for _, tr := range req.Tracks {
			resp.Tracks = append(resp.Tracks, TrackResponse{ContentID: tr.ContentID, Code: ResponseUploadRequested, ServerID: "srv-" + tr.ContentID})
		}
		resp.Samples = []SampleChallenge{{ContentID: "sampled", Token: []byte{0x01, 0x02}, StartMillis: 15000, DurationMillis: 15000}}
		_, _ = w.Write(encodeMetadataResponse(resp))
	case pathSample:
		req, err := decodeSampleRequest(body)
		if err != nil {
			f.t.Errorf("decode sample: %v", err)
		}
		f.samples = append(f.samples, req)
		_, _ = w.Write(encodeSampleResponse(TrackResponse{ContentID: req.Track.ContentID, Code: ResponseMatched, ServerID: "matched-1"}))
	case pathUploadSession:
		var req sessionRequestBody
		if err := json.Unmarshal(body, &req); err != nil {
			f.t.Errorf("decode session: %v", err)
		}
		f.sessions = append(f.sessions, req)
		_, _ = io.WriteString(w, f.sessionReply)
	case pathUploadState:
		req, err := decodeUploadStateRequest(body)
		if err != nil {
			f.t.Errorf("decode state: %v", err)
		}
		f.states = append(f.states, req.State)
	case "/upload/slot-1":
		if r.Method != http.MethodPut {
			f.t.Errorf("expected PUT, got %s", r.Method)
		}
		f.uploaded = body
		_, _ = io.WriteString(w, `{"sessionStatus":{"state":"FINALIZED"}}`)
	default:
		http.NotFound(w, r)
	}
}

func sampleDescriptor(id string) track.Descriptor {
	return track.Descriptor{
		ContentID:      id,
		Title:          "Song " + id,
		Artist:         "Artist",
		Album:          "Album",
		AlbumArtist:    "Various",
		TrackNumber:    4,
		TotalTracks:    12,
		DurationMillis: 201000,
		BitrateKbps:    320,
		Encoding:       track.FLAC,
		SizeBytes:      1 << 20,
		Year:           1999,
	}
}

func TestAuthenticateMapsDeviceLimit(t *testing.T) {
	fake, srv := newFakeLocker(t)
	client := NewHTTPClient(srv.URL, "tok")

	if err := client.Authenticate(context.Background(), Identity{ID: "AA:BB:CC:DD:EE:FF", Name: "den"}); err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if fake.authHeader != "Bearer tok" {
		t.Fatalf("expected bearer header, got %q", fake.authHeader)
	}

	fake.authReply = authResponse{DeviceLimit: true}
	if err := client.Authenticate(context.Background(), Identity{ID: "AA:BB:CC:DD:EE:FF"}); !errors.Is(err, ErrDeviceLimit) {
		t.Fatalf("expected ErrDeviceLimit, got %v", err)
	}
}

func TestUnauthorizedMapsToErrNotAuthenticated(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	t.Cleanup(srv.Close)

	_, err := NewHTTPClient(srv.URL, "bad").UploadMetadata(context.Background(), []track.Descriptor{sampleDescriptor("a")}, "AA:BB:CC:DD:EE:FF")
	if !errors.Is(err, ErrNotAuthenticated) {
		t.Fatalf("expected ErrNotAuthenticated, got %v", err)
	}
	var failure *CallFailure
	if !errors.As(err, &failure) || failure.Call != "UploadMetadata" {
		t.Fatalf("expected CallFailure for UploadMetadata, got %v", err)
	}
}

func TestUploadMetadataRoundTrip(t *testing.T) {
	fake, srv := newFakeLocker(t)
	client := NewHTTPClient(srv.URL, "tok", WithRequestsPerSecond(100))

	tracks := []track.Descriptor{sampleDescriptor("a"), sampleDescriptor("b")}
	resp, err := client.UploadMetadata(context.Background(), tracks, "AA:BB:CC:DD:EE:FF")
	if err != nil {
		t.Fatalf("UploadMetadata: %v", err)
	}
	if len(fake.metadata) != 1 {
		t.Fatalf("expected one metadata call, got %d", len(fake.metadata))
	}
	got := fake.metadata[0]
	if got.UploaderID != "AA:BB:CC:DD:EE:FF" || len(got.Tracks) != 2 {
		t.Fatalf("unexpected request %+v", got)
	}
	if got.Tracks[0] != tracks[0] {
		t.Fatalf("descriptor did not survive the wire:\n got %+v\nwant %+v", got.Tracks[0], tracks[0])
	}
	if len(resp.Tracks) != 2 || resp.Tracks[1].ServerID != "srv-b" || resp.Tracks[1].Code != ResponseUploadRequested {
		t.Fatalf("unexpected response tracks %+v", resp.Tracks)
	}
	if len(resp.Samples) != 1 || !bytes.Equal(resp.Samples[0].Token, []byte{0x01, 0x02}) || resp.Samples[0].StartMillis != 15000 {
		t.Fatalf("unexpected challenges %+v", resp.Samples)
	}
}

func TestProvideSampleSendsChallengeAndBytes(t *testing.T) {
	fake, srv := newFakeLocker(t)
	client := NewHTTPClient(srv.URL, "tok")

	req := SampleRequest{
		UploaderID: "AA:BB:CC:DD:EE:FF",
		Track:      sampleDescriptor("a"),
		Challenge:  SampleChallenge{ContentID: "a", Token: []byte("tok"), StartMillis: 1000, DurationMillis: 2000},
		Sample:     []byte("mp3-slice"),
	}
	resp, err := client.ProvideSample(context.Background(), req)
	if err != nil {
		t.Fatalf("ProvideSample: %v", err)
	}
	if resp.Code != ResponseMatched || resp.ServerID != "matched-1" {
		t.Fatalf("unexpected response %+v", resp)
	}
	got := fake.samples[0]
	if string(got.Sample) != "mp3-slice" || string(got.Challenge.Token) != "tok" || got.Placeholder {
		t.Fatalf("unexpected sample request %+v", got)
	}
}

func TestGetUploadSessionGrantedAndRefused(t *testing.T) {
	fake, srv := newFakeLocker(t)
	client := NewHTTPClient(srv.URL, "tok")
	req := SessionRequest{UploaderID: "AA:BB:CC:DD:EE:FF", AlreadyUploaded: 2, Track: sampleDescriptor("a"), Path: "/music/a.flac", ServerID: "srv-a"}

	fake.sessionReply = `{"sessionStatus":{"uploadUrl":"/upload/slot-1","contentType":"audio/mpeg"}}`
	session, err := client.GetUploadSession(context.Background(), req)
	if err != nil {
		t.Fatalf("GetUploadSession: %v", err)
	}
	if session.URL != "/upload/slot-1" || session.ContentType != "audio/mpeg" {
		t.Fatalf("unexpected session %+v", session)
	}
	sent := fake.sessions[0]
	if sent.ClientID != "a" || sent.AlreadyUploaded != 2 || sent.FileName != "a.flac" || sent.Track.Encoding != "FLAC" {
		t.Fatalf("unexpected session request %+v", sent)
	}

	fake.sessionReply = `{"errorMessage":{"code":503,"reason":"busy"}}`
	_, err = client.GetUploadSession(context.Background(), req)
	var sessionErr *SessionError
	if !errors.As(err, &sessionErr) || sessionErr.Code != 503 || sessionErr.Reason != "busy" {
		t.Fatalf("expected SessionError 503, got %v", err)
	}
}

func TestUploadFileResolvesRelativeSessionURL(t *testing.T) {
	fake, srv := newFakeLocker(t)
	client := NewHTTPClient(srv.URL, "tok")

	status, err := client.UploadFile(context.Background(), Session{URL: "/upload/slot-1"}, []byte("payload"))
	if err != nil {
		t.Fatalf("UploadFile: %v", err)
	}
	if status.State != StateFinalized {
		t.Fatalf("expected FINALIZED, got %q", status.State)
	}
	if string(fake.uploaded) != "payload" {
		t.Fatalf("unexpected uploaded bytes %q", fake.uploaded)
	}
}

func TestUpdateUploadStateSendsState(t *testing.T) {
	fake, srv := newFakeLocker(t)
	client := NewHTTPClient(srv.URL, "tok")
	for _, state := range []UploadState{UploadStart, UploadStopped} {
		if err := client.UpdateUploadState(context.Background(), state, "AA:BB:CC:DD:EE:FF"); err != nil {
			t.Fatalf("UpdateUploadState(%s): %v", state, err)
		}
	}
	if len(fake.states) != 2 || fake.states[0] != UploadStart || fake.states[1] != UploadStopped {
		t.Fatalf("unexpected states %v", fake.states)
	}
}

func TestServerErrorIsCallFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusBadGateway)
	}))
	t.Cleanup(srv.Close)

	err := NewHTTPClient(srv.URL, "tok").UpdateUploadState(context.Background(), UploadStart, "x")
	var failure *CallFailure
	if !errors.As(err, &failure) {
		t.Fatalf("expected CallFailure, got %v", err)
	}
	if !bytes.Contains([]byte(failure.Message), []byte("502")) {
		t.Fatalf("expected status in message, got %q", failure.Message)
	}
}

func TestSessionHTTPStatusIsSessionError(t *testing.T) {
	status := http.StatusNotFound
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no such track", status)
	}))
	t.Cleanup(srv.Close)
	client := NewHTTPClient(srv.URL, "tok")
	req := SessionRequest{UploaderID: "AA:BB:CC:DD:EE:FF", Track: sampleDescriptor("a"), Path: "/music/a.mp3"}

	_, err := client.GetUploadSession(context.Background(), req)
	var sessionErr *SessionError
	if !errors.As(err, &sessionErr) || sessionErr.Code != http.StatusNotFound {
		t.Fatalf("expected SessionError 404, got %v", err)
	}
	if !strings.Contains(sessionErr.Reason, "no such track") {
		t.Fatalf("expected body in reason, got %q", sessionErr.Reason)
	}

	status = http.StatusUnauthorized
	_, err = client.GetUploadSession(context.Background(), req)
	if !errors.Is(err, ErrNotAuthenticated) {
		t.Fatalf("expected ErrNotAuthenticated for 401, got %v", err)
	}
}

func TestCallTimeoutSparesFileTransfers(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.ReadAll(r.Body)
		switch {
		case r.URL.Path == pathUploadState:
			select {
			case <-r.Context().Done():
			case <-time.After(2 * time.Second):
			}
		case strings.HasPrefix(r.URL.Path, "/upload/"):
			time.Sleep(100 * time.Millisecond)
			_, _ = w.Write([]byte(`{"sessionStatus":{"state":"FINALIZED"}}`))
		}
	}))
	t.Cleanup(srv.Close)
	client := NewHTTPClient(srv.URL, "tok", WithCallTimeout(20*time.Millisecond), WithMinTransferRate(0))

	err := client.UpdateUploadState(context.Background(), UploadStart, "x")
	if !errors.Is(err, services.ErrTimeout) {
		t.Fatalf("expected timeout for a stalled state call, got %v", err)
	}

	status, err := client.UploadFile(context.Background(), Session{URL: "/upload/slot-1"}, []byte("payload"))
	if err != nil {
		t.Fatalf("UploadFile: %v", err)
	}
	if status.State != StateFinalized {
		t.Fatalf("expected FINALIZED, got %q", status.State)
	}
}

func TestTransferTimeoutScalesWithSize(t *testing.T) {
	client := NewHTTPClient("http://locker", "tok", WithCallTimeout(time.Second), WithMinTransferRate(1000))
	if got := client.transferTimeout(5000); got != 6*time.Second {
		t.Fatalf("expected 6s for 5000 bytes at 1000 B/s, got %v", got)
	}
	if got := NewHTTPClient("http://locker", "tok", WithMinTransferRate(0)).transferTimeout(1 << 30); got != 0 {
		t.Fatalf("expected no deadline when the rate is zero, got %v", got)
	}
}

func TestDecodeRejectsTruncatedMessage(t *testing.T) {
	encoded := encodeMetadataResponse(MetadataResponse{Tracks: []TrackResponse{{ContentID: "abc", Code: ResponseMatched}}})
	if _, err := decodeMetadataResponse(encoded[:len(encoded)-2]); err == nil {
		t.Fatal("expected error for truncated payload")
	}
}

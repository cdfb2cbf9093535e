package locker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"lockersync/internal/logging"
	"lockersync/internal/services"
	"lockersync/internal/track"
)

const (
	protobufContentType = "application/x-google-protobuf"
	defaultCallTimeout  = 60 * time.Second
	// defaultMinTransferRate is the slowest upload link, in bytes per second,
	// a transfer deadline still accommodates.
	defaultMinTransferRate = 16 << 10
	maxErrorBody           = 4096
)

// Endpoint paths relative to the configured base URL.
const (
	pathAuthenticate  = "/upauth"
	pathMetadata      = "/metadata"
	pathSample        = "/sample"
	pathUploadSession = "/uploadsession"
	pathUploadState   = "/uploadstate"
)

// HTTPDoer abstracts http.Client.Do for testing.
type HTTPDoer interface {
	Do(*http.Request) (*http.Response, error)
}

// HTTPClient implements Transport against the locker HTTP API.
type HTTPClient struct {
	baseURL         string
	token           string
	client          HTTPDoer
	limiter         *rate.Limiter
	callTimeout     time.Duration
	minTransferRate int64
	logger          *slog.Logger
}

// Option customizes the client.
type Option func(*HTTPClient)

// WithHTTPDoer overrides the default HTTP client.
func WithHTTPDoer(doer HTTPDoer) Option {
	return func(c *HTTPClient) {
		if doer != nil {
			c.client = doer
		}
	}
}

// WithCallTimeout bounds each API call except file transfers, which get a
// deadline scaled to their size. Zero leaves calls bound only by the caller's context.
func WithCallTimeout(timeout time.Duration) Option {
	return func(c *HTTPClient) {
		if timeout >= 0 {
			c.callTimeout = timeout
		}
	}
}

// WithMinTransferRate sets the slowest link speed, in bytes per second, that
// an UploadFile deadline allows for. Zero removes the transfer deadline.
func WithMinTransferRate(bytesPerSecond int64) Option {
	return func(c *HTTPClient) {
		if bytesPerSecond >= 0 {
			c.minTransferRate = bytesPerSecond
		}
	}
}

// WithRequestsPerSecond paces outgoing calls; zero disables pacing.
func WithRequestsPerSecond(rps float64) Option {
	return func(c *HTTPClient) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
}

// WithLogger sets the logger used for request tracing.
func WithLogger(logger *slog.Logger) Option {
	return func(c *HTTPClient) {
		c.logger = logging.NewComponentLogger(logger, "locker")
	}
}

// NewHTTPClient constructs a locker client for baseURL authenticated with token.
func NewHTTPClient(baseURL, token string, opts ...Option) *HTTPClient {
	c := &HTTPClient{
		baseURL:         strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		token:           strings.TrimSpace(token),
		client:          &http.Client{},
		callTimeout:     defaultCallTimeout,
		minTransferRate: defaultMinTransferRate,
		logger:          logging.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Authenticate registers the uploader device.
func (c *HTTPClient) Authenticate(ctx context.Context, id Identity) error {
	body := encodeAuthRequest(authRequest{UploaderID: id.ID, FriendlyName: id.Name})
	payload, err := c.doProto(ctx, "Authenticate", pathAuthenticate, body)
	if err != nil {
		return err
	}
	resp, err := decodeAuthResponse(payload)
	if err != nil {
		return &CallFailure{Call: "Authenticate", Message: "decode response", Err: err}
	}
	switch {
	case resp.DeviceLimit:
		return ErrDeviceLimit
	case !resp.OK:
		return ErrNotAuthenticated
	}
	return nil
}

// UploadMetadata sends descriptors for every track in the batch in one call.
func (c *HTTPClient) UploadMetadata(ctx context.Context, tracks []track.Descriptor, uploaderID string) (MetadataResponse, error) {
	body := encodeMetadataRequest(metadataRequest{UploaderID: uploaderID, Tracks: tracks})
	payload, err := c.doProto(ctx, "UploadMetadata", pathMetadata+"?version=1", body)
	if err != nil {
		return MetadataResponse{}, err
	}
	resp, err := decodeMetadataResponse(payload)
	if err != nil {
		return MetadataResponse{}, &CallFailure{Call: "UploadMetadata", Message: "decode response", Err: err}
	}
	return resp, nil
}

// ProvideSample answers one sample challenge.
func (c *HTTPClient) ProvideSample(ctx context.Context, req SampleRequest) (TrackResponse, error) {
	payload, err := c.doProto(ctx, "ProvideSample", pathSample+"?version=1", encodeSampleRequest(req))
	if err != nil {
		return TrackResponse{}, err
	}
	resp, err := decodeSampleResponse(payload)
	if err != nil {
		return TrackResponse{}, &CallFailure{Call: "ProvideSample", Message: "decode response", Err: err}
	}
	return resp, nil
}

// UpdateUploadState signals the start or end of the upload phase.
func (c *HTTPClient) UpdateUploadState(ctx context.Context, state UploadState, uploaderID string) error {
	body := encodeUploadStateRequest(uploadStateRequest{UploaderID: uploaderID, State: state})
	_, err := c.doProto(ctx, "UpdateUploadState", pathUploadState, body)
	return err
}

type sessionTrack struct {
	Title       string `json:"title,omitempty"`
	Album       string `json:"album,omitempty"`
	Artist      string `json:"artist,omitempty"`
	AlbumArtist string `json:"albumArtist,omitempty"`
	Composer    string `json:"composer,omitempty"`
	Genre       string `json:"genre,omitempty"`
	Year        int    `json:"year,omitempty"`
	TrackNumber int    `json:"trackNumber,omitempty"`
	DiscNumber  int    `json:"discNumber,omitempty"`
	Duration    int64  `json:"durationMillis,omitempty"`
	Encoding    string `json:"encoding"`
	Size        int64  `json:"sizeBytes"`
}

type sessionRequestBody struct {
	ClientID        string       `json:"clientId"`
	UploaderID      string       `json:"uploaderId"`
	AlreadyUploaded int          `json:"alreadyUploaded"`
	ServerID        string       `json:"serverId,omitempty"`
	DoNotRematch    bool         `json:"doNotRematch,omitempty"`
	FileName        string       `json:"fileName"`
	Track           sessionTrack `json:"track"`
}

type sessionResponseBody struct {
	SessionStatus *struct {
		UploadURL   string `json:"uploadUrl"`
		ContentType string `json:"contentType"`
		State       string `json:"state"`
	} `json:"sessionStatus"`
	ErrorMessage *struct {
		Code   int    `json:"code"`
		Reason string `json:"reason"`
	} `json:"errorMessage"`
}

// GetUploadSession requests an upload slot. A refusal from the server is
// returned as *SessionError.
func (c *HTTPClient) GetUploadSession(ctx context.Context, req SessionRequest) (Session, error) {
	body := sessionRequestBody{
		ClientID:        req.Track.ContentID,
		UploaderID:      req.UploaderID,
		AlreadyUploaded: req.AlreadyUploaded,
		ServerID:        req.ServerID,
		DoNotRematch:    req.DoNotRematch,
		FileName:        filepath.Base(req.Path),
		Track: sessionTrack{
			Title:       req.Track.Title,
			Album:       req.Track.Album,
			Artist:      req.Track.Artist,
			AlbumArtist: req.Track.AlbumArtist,
			Composer:    req.Track.Composer,
			Genre:       req.Track.Genre,
			Year:        req.Track.Year,
			TrackNumber: req.Track.TrackNumber,
			DiscNumber:  req.Track.DiscNumber,
			Duration:    req.Track.DurationMillis,
			Encoding:    req.Track.Encoding.String(),
			Size:        req.Track.SizeBytes,
		},
	}
	encoded, err := json.Marshal(body)
	if err != nil {
		return Session{}, &CallFailure{Call: "GetUploadSession", Message: "encode request", Err: err}
	}

	var resp sessionResponseBody
	err = c.doJSON(ctx, "GetUploadSession", http.MethodPost, c.baseURL+pathUploadSession, "application/json", encoded, &resp, c.callTimeout)
	var failure *CallFailure
	if errors.As(err, &failure) && failure.Status >= http.StatusMultipleChoices && !errors.Is(err, ErrNotAuthenticated) {
		// A refusal sent as an HTTP status is classified like one in the body.
		return Session{}, &SessionError{Code: failure.Status, Reason: failure.Message}
	}
	if err != nil {
		return Session{}, err
	}
	if resp.ErrorMessage != nil {
		return Session{}, &SessionError{Code: resp.ErrorMessage.Code, Reason: strings.TrimSpace(resp.ErrorMessage.Reason)}
	}
	if resp.SessionStatus == nil || strings.TrimSpace(resp.SessionStatus.UploadURL) == "" {
		return Session{}, &CallFailure{Call: "GetUploadSession", Message: "response carries neither session nor error"}
	}
	return Session{URL: resp.SessionStatus.UploadURL, ContentType: resp.SessionStatus.ContentType}, nil
}

// UploadFile transfers data to a granted session.
func (c *HTTPClient) UploadFile(ctx context.Context, session Session, data []byte) (TransferStatus, error) {
	target, err := c.resolve(session.URL)
	if err != nil {
		return TransferStatus{}, &CallFailure{Call: "UploadFile", Message: "invalid session url", Err: err}
	}
	contentType := session.ContentType
	if contentType == "" {
		contentType = "audio/mpeg"
	}
	var resp sessionResponseBody
	if err := c.doJSON(ctx, "UploadFile", http.MethodPut, target, contentType, data, &resp, c.transferTimeout(len(data))); err != nil {
		return TransferStatus{}, err
	}
	if resp.SessionStatus == nil {
		return TransferStatus{}, nil
	}
	return TransferStatus{State: resp.SessionStatus.State}, nil
}

// transferTimeout allows the call timeout plus the time the body needs at the
// minimum transfer rate. Zero means no deadline.
func (c *HTTPClient) transferTimeout(size int) time.Duration {
	if c.minTransferRate <= 0 {
		return 0
	}
	return c.callTimeout + time.Duration(int64(size)*int64(time.Second)/c.minTransferRate)
}

func (c *HTTPClient) resolve(raw string) (string, error) {
	ref, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", err
	}
	if ref.IsAbs() {
		return ref.String(), nil
	}
	base, err := url.Parse(c.baseURL + "/")
	if err != nil {
		return "", err
	}
	return base.ResolveReference(ref).String(), nil
}

func (c *HTTPClient) doProto(ctx context.Context, call, path string, body []byte) ([]byte, error) {
	return c.do(ctx, call, http.MethodPost, c.baseURL+path, protobufContentType, body, c.callTimeout)
}

func (c *HTTPClient) doJSON(ctx context.Context, call, method, target, contentType string, body []byte, out any, timeout time.Duration) error {
	payload, err := c.do(ctx, call, method, target, contentType, body, timeout)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return &CallFailure{Call: call, Message: "decode response", Err: err}
	}
	return nil
}

func (c *HTTPClient) do(ctx context.Context, call, method, target, contentType string, body []byte, timeout time.Duration) ([]byte, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, &CallFailure{Call: call, Message: "rate limit wait", Err: err}
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, target, bytes.NewReader(body))
	if err != nil {
		return nil, &CallFailure{Call: call, Message: "build request", Err: err}
	}
	requestID, ok := services.RequestIDFromContext(ctx)
	if !ok {
		requestID = uuid.NewString()
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("X-Request-Id", requestID)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	started := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, &CallFailure{Call: call, Message: "request timed out", Err: fmt.Errorf("%w: %w", services.ErrTimeout, err)}
		}
		return nil, &CallFailure{Call: call, Message: "request failed", Err: err}
	}
	defer resp.Body.Close()

	c.logger.Debug("locker call",
		logging.String("call", call),
		logging.Int("status", resp.StatusCode),
		logging.Duration("elapsed", time.Since(started)),
		logging.String(logging.FieldCorrelationID, requestID),
	)

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &CallFailure{Call: call, Message: fmt.Sprintf("http %d", resp.StatusCode), Status: resp.StatusCode, Err: ErrNotAuthenticated}
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &CallFailure{Call: call, Message: fmt.Sprintf("http %d: %s", resp.StatusCode, strings.TrimSpace(string(errBody))), Status: resp.StatusCode}
	}
	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &CallFailure{Call: call, Message: "read response", Err: err}
	}
	return payload, nil
}

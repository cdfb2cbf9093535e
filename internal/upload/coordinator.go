package upload

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"lockersync/internal/locker"
	"lockersync/internal/logging"
	"lockersync/internal/services"
	"lockersync/internal/track"
)

const (
	reasonCancelled        = "cancelled"
	uploadStateStopTimeout = 30 * time.Second
)

// Coordinator drives a batch of files through the upload pipeline.
type Coordinator struct {
	transport  locker.Transport
	builder    DescriptorBuilder
	transcoder Transcoder
	opts       Options
	read       FileReader
	sleep      Sleeper
	progress   func(done, total int)
	logger     *slog.Logger
}

// CoordinatorOption customizes a Coordinator.
type CoordinatorOption func(*Coordinator)

// WithFileReader overrides how file bytes are read (defaults to os.ReadFile).
func WithFileReader(read FileReader) CoordinatorOption {
	return func(c *Coordinator) {
		if read != nil {
			c.read = read
		}
	}
}

// WithSleeper overrides how retry delays are performed (useful for tests).
func WithSleeper(sleep Sleeper) CoordinatorOption {
	return func(c *Coordinator) {
		if sleep != nil {
			c.sleep = sleep
		}
	}
}

// WithProgress registers a callback invoked each time a file is resolved.
func WithProgress(fn func(done, total int)) CoordinatorOption {
	return func(c *Coordinator) {
		c.progress = fn
	}
}

// WithLogger sets the base logger.
func WithLogger(logger *slog.Logger) CoordinatorOption {
	return func(c *Coordinator) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewCoordinator wires the pipeline components.
func NewCoordinator(transport locker.Transport, builder DescriptorBuilder, transcoder Transcoder, opts Options, options ...CoordinatorOption) *Coordinator {
	c := &Coordinator{
		transport:  transport,
		builder:    builder,
		transcoder: transcoder,
		opts:       opts,
		read:       defaultReader,
		sleep:      SleepWithContext,
		logger:     logging.NewNop(),
	}
	for _, opt := range options {
		opt(c)
	}
	return c
}

// item is one file that survived descriptor building.
type item struct {
	index     int
	path      string
	desc      track.Descriptor
	serverID  string
	challenge locker.SampleChallenge
}

// Run uploads paths under identity and returns the partition of every path.
// It only returns an error for pre-batch setup problems and for a failed
// metadata negotiation; all other failures are recorded per file.
func (c *Coordinator) Run(ctx context.Context, identity locker.Identity, paths []string) (BatchResult, error) {
	if c.transport == nil || c.builder == nil {
		return BatchResult{}, services.Wrap(services.ErrConfiguration, "upload", "setup", "transport and descriptor builder are required", nil)
	}
	if strings.TrimSpace(identity.ID) == "" {
		return BatchResult{}, services.Wrap(services.ErrValidation, "upload", "setup", "uploader identity is missing", nil)
	}
	if c.transcoder == nil && (c.opts.EnableMatching || c.opts.EnableTranscoding) {
		return BatchResult{}, services.Wrap(services.ErrConfiguration, "upload", "setup", "a transcoder is required when matching or transcoding is enabled", nil)
	}

	paths = uniquePaths(paths)
	logger := logging.NewComponentLogger(logging.WithContext(ctx, c.logger), "upload.batch")
	acc := newAccumulator(len(paths), c.progress)
	started := time.Now()

	items := c.describe(ctx, paths, acc)
	if len(items) > 0 && ctx.Err() == nil {
		negotiator := NewMetadataNegotiator(c.transport, c.logger)
		descs := make([]track.Descriptor, len(items))
		for i, it := range items {
			descs[i] = it.desc
		}
		directives, err := negotiator.Negotiate(ctx, descs, identity)
		if err != nil {
			return BatchResult{}, err
		}

		var samples, uploads []*item
		for _, it := range items {
			d := directives[it.desc.ContentID]
			switch d.Kind {
			case DirectiveAlreadyMatched:
				acc.matched(it.path, d.ServerID)
			case DirectiveNeedsSample:
				it.challenge = d.Challenge
				it.serverID = d.ServerID
				samples = append(samples, it)
			case DirectiveNeedsUpload:
				it.serverID = d.ServerID
				uploads = append(uploads, it)
			default:
				acc.notUploaded(it.path, d.Reason)
			}
		}

		uploads = append(uploads, c.sampleAll(ctx, samples, identity, acc)...)
		sort.Slice(uploads, func(i, j int) bool { return uploads[i].index < uploads[j].index })
		uploads = c.rejectUntranscodable(uploads, acc)
		c.uploadAll(ctx, uploads, identity, acc, logger)
	}

	for _, path := range paths {
		if !acc.isResolved(path) {
			acc.notUploaded(path, reasonCancelled)
		}
	}

	result := acc.snapshot()
	logger.Info("batch finished",
		logging.Int("files", len(paths)),
		logging.Int("uploaded", len(result.Uploaded)),
		logging.Int("matched", len(result.Matched)),
		logging.Int("not_uploaded", len(result.NotUploaded)),
		logging.Duration("elapsed", time.Since(started)),
	)
	return result, nil
}

// describe reads and builds descriptors; failures and in-batch duplicates are
// resolved immediately.
func (c *Coordinator) describe(ctx context.Context, paths []string, acc *accumulator) []*item {
	items := make([]*item, 0, len(paths))
	seen := make(map[string]string, len(paths))
	for idx, path := range paths {
		if ctx.Err() != nil {
			break
		}
		fileCtx := services.WithPath(ctx, path)
		data, err := c.read(path)
		if err != nil {
			acc.notUploaded(path, fmt.Sprintf("read file: %v", err))
			continue
		}
		desc, err := c.builder.Build(fileCtx, path, data)
		if err != nil {
			acc.notUploaded(path, describeBuildError(err))
			continue
		}
		if first, dup := seen[desc.ContentID]; dup {
			acc.notUploaded(path, "duplicate content in batch (same as "+first+")")
			continue
		}
		seen[desc.ContentID] = path
		items = append(items, &item{index: idx, path: path, desc: desc})
	}
	return items
}

func describeBuildError(err error) string {
	var buildErr *track.BuildError
	if errors.As(err, &buildErr) {
		return buildErr.Err.Error()
	}
	return err.Error()
}

// sampleAll answers every challenge and returns the items that still need upload.
func (c *Coordinator) sampleAll(ctx context.Context, samples []*item, identity locker.Identity, acc *accumulator) []*item {
	if len(samples) == 0 {
		return nil
	}
	provider := NewSampleProvider(c.transport, c.transcoder, c.read, c.opts.EnableMatching, c.opts.SampleBitrateKbps, c.logger)

	var mu sync.Mutex
	var needsUpload []*item
	c.forEach(ctx, samples, func(ctx context.Context, it *item) {
		outcome := provider.Provide(services.WithPath(ctx, it.path), it.path, it.desc, it.challenge, identity)
		switch outcome.Kind {
		case SampleMatched:
			acc.matched(it.path, outcome.ServerID)
		case SampleNeedsUpload:
			if outcome.ServerID != "" {
				it.serverID = outcome.ServerID
			}
			mu.Lock()
			needsUpload = append(needsUpload, it)
			mu.Unlock()
		default:
			failFile(ctx, acc, it.path, outcome.Reason)
		}
	})
	return needsUpload
}

// rejectUntranscodable resolves files whose bytes cannot be sent as-is while
// transcoding is off, so they never consume a session.
func (c *Coordinator) rejectUntranscodable(uploads []*item, acc *accumulator) []*item {
	kept := uploads[:0]
	for _, it := range uploads {
		if planTranscodeFor(it.desc.Encoding, c.opts) == planReject {
			acc.notUploaded(it.path, reasonTranscodingDisabled)
			continue
		}
		kept = append(kept, it)
	}
	return kept
}

// uploadAll brackets the upload phase with start/stop signals, sent only when
// at least one file needs an upload.
func (c *Coordinator) uploadAll(ctx context.Context, uploads []*item, identity locker.Identity, acc *accumulator, logger *slog.Logger) {
	if len(uploads) == 0 || ctx.Err() != nil {
		return
	}

	if err := c.transport.UpdateUploadState(ctx, locker.UploadStart, identity.ID); err != nil {
		logging.WarnWithContext(logger, "upload state start signal failed", "upload_state_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "uploads continue; the locker may show stale progress"),
		)
	}

	sessions := NewSessionNegotiator(c.transport, c.opts.Retry, c.opts.ForceReupload, c.sleep, c.logger)
	transferrer := NewTransferrer(c.transport)
	c.forEach(ctx, uploads, func(ctx context.Context, it *item) {
		c.uploadOne(services.WithPath(ctx, it.path), it, identity, acc, sessions, transferrer)
	})

	stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), uploadStateStopTimeout)
	defer cancel()
	if err := c.transport.UpdateUploadState(stopCtx, locker.UploadStopped, identity.ID); err != nil {
		logging.WarnWithContext(logger, "upload state stop signal failed", "upload_state_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "the locker may keep this device marked as uploading until it times out"),
		)
	}
}

func (c *Coordinator) uploadOne(ctx context.Context, it *item, identity locker.Identity, acc *accumulator, sessions *SessionNegotiator, transferrer *Transferrer) {
	logger := logging.NewComponentLogger(logging.WithContext(ctx, c.logger), "upload.file")

	plan := planTranscodeFor(it.desc.Encoding, c.opts)

	outcome := sessions.Negotiate(ctx, locker.SessionRequest{
		UploaderID:      identity.ID,
		AlreadyUploaded: acc.uploadedCount(),
		Track:           it.desc,
		Path:            it.path,
		ServerID:        it.serverID,
		DoNotRematch:    !c.opts.EnableMatching,
	})
	switch outcome.Kind {
	case SessionMatched:
		acc.matched(it.path, outcome.ServerID)
		return
	case SessionCancelled:
		acc.notUploaded(it.path, reasonCancelled)
		return
	case SessionFailed:
		failFile(ctx, acc, it.path, outcome.Reason)
		return
	}

	data, err := c.read(it.path)
	if err != nil {
		failFile(ctx, acc, it.path, fmt.Sprintf("read file: %v", err))
		return
	}
	if plan == planTranscode {
		data, err = c.transcoder.Transcode(ctx, data, c.opts.Quality)
		if err != nil {
			failFile(ctx, acc, it.path, err.Error())
			return
		}
	}

	if err := transferrer.Transfer(ctx, outcome.Session, data); err != nil {
		failFile(ctx, acc, it.path, err.Error())
		return
	}

	serverID := serverIDFor(it.serverID, it.desc)
	acc.uploaded(it.path, serverID)
	logger.Info("file uploaded",
		logging.String("server_id", serverID),
		logging.Int("session_attempts", outcome.Attempts),
		logging.Bool("transcoded", plan == planTranscode),
	)
}

// failFile records a per-file failure, or "cancelled" when the batch context
// ended, since the underlying error then only reflects the cancellation.
func failFile(ctx context.Context, acc *accumulator, path, reason string) {
	if ctx.Err() != nil {
		reason = reasonCancelled
	}
	acc.notUploaded(path, reason)
}

// serverIDFor falls back to the content id when the server assigned none.
func serverIDFor(serverID string, desc track.Descriptor) string {
	if serverID == "" {
		return desc.ContentID
	}
	return serverID
}

// forEach runs fn over items with at most Options.Workers in flight. Items not
// started before cancellation are left unresolved.
func (c *Coordinator) forEach(ctx context.Context, items []*item, fn func(context.Context, *item)) {
	workers := c.opts.Workers
	if workers <= 0 {
		workers = 1
	}
	sem := semaphore.NewWeighted(int64(workers))
	var wg sync.WaitGroup
	for _, it := range items {
		if ctx.Err() != nil {
			break
		}
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}
		wg.Add(1)
		go func(it *item) {
			defer wg.Done()
			defer sem.Release(1)
			fn(ctx, it)
		}(it)
	}
	wg.Wait()
}

func uniquePaths(paths []string) []string {
	seen := make(map[string]struct{}, len(paths))
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out
}

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"

	"lockersync/internal/config"
	"lockersync/internal/history"
	"lockersync/internal/identity"
	"lockersync/internal/locker"
	"lockersync/internal/logging"
	"lockersync/internal/media/ffprobe"
	"lockersync/internal/preflight"
	"lockersync/internal/scan"
	"lockersync/internal/services"
	"lockersync/internal/track"
	"lockersync/internal/transcode"
	"lockersync/internal/upload"
)

type uploadFlags struct {
	noMatch       bool
	noTranscode   bool
	forceReupload bool
	quality       string
	workers       int
	noRecursive   bool
	jsonOut       bool
}

// uploadReport is the --json output of an upload run.
type uploadReport struct {
	BatchID  string          `json:"batch_id"`
	Uploader locker.Identity `json:"uploader"`
	upload.BatchResult
}

func newUploadCommand(ctx *commandContext) *cobra.Command {
	var flags uploadFlags

	cmd := &cobra.Command{
		Use:   "upload <path>...",
		Short: "Upload audio files or directories to the locker",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			base, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			cfg, err := flags.apply(base)
			if err != nil {
				return err
			}
			return runUpload(cmd, ctx, cfg, flags, args)
		},
	}

	cmd.Flags().BoolVar(&flags.noMatch, "no-match", false, "Skip server-side matching and upload every file")
	cmd.Flags().BoolVar(&flags.noTranscode, "no-transcode", false, "Refuse non-MP3 files instead of transcoding them")
	cmd.Flags().BoolVar(&flags.forceReupload, "force-reupload", false, "Upload even when the locker reports the file as already uploaded")
	cmd.Flags().StringVar(&flags.quality, "quality", "", "Transcode quality: V0-V9 or a bitrate such as 320k")
	cmd.Flags().IntVar(&flags.workers, "workers", 0, "Concurrent files per phase (default from config)")
	cmd.Flags().BoolVar(&flags.noRecursive, "no-recursive", false, "Do not descend into subdirectories")
	cmd.Flags().BoolVar(&flags.jsonOut, "json", false, "Print the batch result as JSON")
	return cmd
}

// apply returns a validated copy of base with command-line overrides.
func (f uploadFlags) apply(base *config.Config) (*config.Config, error) {
	cfg := *base
	if f.noMatch {
		cfg.Upload.EnableMatching = false
	}
	if f.noTranscode {
		cfg.Upload.EnableTranscoding = false
	}
	if f.forceReupload {
		cfg.Upload.ForceReupload = true
	}
	if q := strings.TrimSpace(f.quality); q != "" {
		cfg.Upload.TranscodeQuality = q
	}
	if f.workers > 0 {
		cfg.Upload.Workers = f.workers
	}
	if err := cfg.Validate(); err != nil {
		return nil, services.Wrap(services.ErrValidation, "upload", "flags", "invalid option", err)
	}
	return &cfg, nil
}

func runUpload(cmd *cobra.Command, ctx *commandContext, cfg *config.Config, flags uploadFlags, args []string) error {
	scanOpts := scan.DefaultOptions()
	scanOpts.Recursive = !flags.noRecursive
	found, err := scan.Collect(args, scanOpts)
	if err != nil {
		return services.Wrap(services.ErrNotFound, "upload", "scan", "expand input paths", err)
	}
	if len(found.Files) == 0 {
		return services.Wrap(services.ErrNotFound, "upload", "scan", "no audio files found in the given paths", nil)
	}

	if err := preflight.RequireUploadTools(cfg); err != nil {
		return err
	}
	opts, err := upload.OptionsFromConfig(cfg)
	if err != nil {
		return services.Wrap(services.ErrValidation, "upload", "options", "invalid transcode quality", err)
	}

	lock := flock.New(cfg.BatchLockPath())
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire batch lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("another upload batch is already running for %s", cfg.Paths.StateDir)
	}
	defer func() { _ = lock.Unlock() }()

	logger, err := ctx.logger(cmd, cfg)
	if err != nil {
		return err
	}
	id, source, err := identity.Resolve(cfg)
	if err != nil {
		return err
	}

	batchID := uuid.NewString()
	runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	runCtx = services.WithBatchID(runCtx, batchID)
	logger = logging.NewComponentLogger(logging.WithContext(runCtx, logger), "cli.upload")
	for _, skipped := range found.Skipped {
		logger.Warn("path skipped while scanning",
			logging.String(logging.FieldFile, skipped.Path),
			logging.String("reason", skipped.Reason),
			logging.String(logging.FieldEventType, "scan_skipped"),
			logging.String(logging.FieldErrorHint, "check permissions on the directory"),
		)
	}
	logger.Info("upload batch starting",
		logging.Int("files", len(found.Files)),
		logging.String("uploader_id", id.ID),
		logging.String("identity_source", string(source)),
		logging.Bool("matching", opts.EnableMatching),
		logging.Bool("transcoding", opts.EnableTranscoding),
	)

	transport := ctx.newTransport(cfg, logger)
	if err := authenticate(runCtx, transport, id); err != nil {
		return err
	}

	var prober track.Prober
	if cfg.FFmpeg.ProbeEnabled {
		prober = ffprobe.Prober{Binary: cfg.FFprobeBinary()}
	}
	coordOpts := []upload.CoordinatorOption{upload.WithLogger(logger)}
	var bar *progressBar
	if !flags.jsonOut && isTerminal(cmd.ErrOrStderr()) {
		bar = newProgressBar(cmd.ErrOrStderr(), len(found.Files))
		coordOpts = append(coordOpts, upload.WithProgress(bar.update))
	}
	coordinator := upload.NewCoordinator(
		transport,
		track.NewBuilder(prober, logger),
		transcode.FFmpeg{Binary: cfg.FFmpegBinary()},
		opts,
		coordOpts...,
	)

	started := time.Now()
	result, runErr := coordinator.Run(runCtx, id, found.Files)
	bar.finish()
	if runErr != nil {
		logging.ErrorWithContext(logger, "upload batch failed", "batch_failed",
			logging.Error(runErr),
			logging.String(logging.FieldErrorHint, services.Hint(runErr)),
		)
		return runErr
	}

	recordHistory(runCtx, cfg, logger, batchID, id, started, result)

	if flags.jsonOut {
		return writeJSON(cmd, uploadReport{BatchID: batchID, Uploader: id, BatchResult: result})
	}
	printBatchResult(cmd.OutOrStdout(), batchID, result)
	return nil
}

func authenticate(ctx context.Context, transport locker.Transport, id locker.Identity) error {
	err := transport.Authenticate(ctx, id)
	switch {
	case err == nil:
		return nil
	case ctx.Err() != nil:
		return ctx.Err()
	case errors.Is(err, locker.ErrDeviceLimit):
		return services.Wrap(services.ErrConfiguration, "upload", "authenticate",
			"the locker refuses new uploader devices; reuse an existing uploader.id", err)
	case errors.Is(err, locker.ErrNotAuthenticated):
		return services.Wrap(services.ErrConfiguration, "upload", "authenticate", "oauth token rejected", err)
	default:
		return services.Wrap(services.ErrTransient, "upload", "authenticate", "could not register uploader", err)
	}
}

func recordHistory(ctx context.Context, cfg *config.Config, logger *slog.Logger, batchID string, id locker.Identity, started time.Time, result upload.BatchResult) {
	store, err := history.Open(cfg)
	if err == nil {
		defer store.Close()
		err = store.RecordBatch(context.WithoutCancel(ctx), batchID, id, started, result)
	}
	if err != nil {
		logging.WarnWithContext(logger, "upload history not recorded", "history_write_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "the batch result is still printed; delete the history database if the schema changed"),
		)
	}
}

func printBatchResult(out io.Writer, batchID string, result upload.BatchResult) {
	rows := make([][]string, 0, result.Len())
	for _, path := range result.Paths() {
		bucket, detail, _ := result.Bucket(path)
		rows = append(rows, []string{path, bucketLabel(bucket), detail})
	}
	fmt.Fprintln(out, renderTable([]column{
		{Header: "File", MaxWidth: 60},
		{Header: "Status"},
		{Header: "Server ID / Reason", MaxWidth: 60},
	}, rows))
	fmt.Fprintf(out, "Batch %s: %d uploaded, %d matched, %d not uploaded\n",
		shortID(batchID), len(result.Uploaded), len(result.Matched), len(result.NotUploaded))
}

func bucketLabel(b upload.Bucket) string {
	switch b {
	case upload.BucketUploaded:
		return "uploaded"
	case upload.BucketMatched:
		return "matched"
	default:
		return "not uploaded"
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

type progressBar struct {
	progress *mpb.Progress
	bar      *mpb.Bar
	total    int
}

func newProgressBar(w io.Writer, total int) *progressBar {
	p := mpb.New(mpb.WithOutput(w), mpb.WithWidth(48))
	bar := p.AddBar(int64(total),
		mpb.PrependDecorators(
			decor.Name("Syncing "),
			decor.CountersNoUnit("%d / %d"),
		),
		mpb.AppendDecorators(
			decor.Percentage(),
			decor.Elapsed(decor.ET_STYLE_GO),
		),
	)
	return &progressBar{progress: p, bar: bar, total: total}
}

func (b *progressBar) update(done, _ int) {
	b.bar.SetCurrent(int64(done))
}

func (b *progressBar) finish() {
	if b == nil {
		return
	}
	if !b.bar.Completed() {
		b.bar.Abort(false)
	}
	b.progress.Wait()
}

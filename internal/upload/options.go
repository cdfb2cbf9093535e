package upload

import (
	"context"
	"os"
	"time"

	"lockersync/internal/config"
	"lockersync/internal/track"
	"lockersync/internal/transcode"
)

// Options controls batch behaviour.
type Options struct {
	EnableMatching    bool
	EnableTranscoding bool
	ForceReupload     bool
	Quality           transcode.Quality
	SampleBitrateKbps int
	Workers           int
	Retry             RetryPolicy
}

// DefaultOptions mirrors the configuration defaults.
func DefaultOptions() Options {
	return Options{
		EnableMatching:    true,
		EnableTranscoding: true,
		Quality:           transcode.DefaultQuality,
		SampleBitrateKbps: transcode.DefaultSampleBitrateKbps,
		Workers:           1,
		Retry:             DefaultRetryPolicy(),
	}
}

// OptionsFromConfig derives batch options from the loaded configuration.
func OptionsFromConfig(cfg *config.Config) (Options, error) {
	opts := DefaultOptions()
	if cfg == nil {
		return opts, nil
	}
	quality, err := transcode.ParseQuality(cfg.Upload.TranscodeQuality)
	if err != nil {
		return Options{}, err
	}
	opts.EnableMatching = cfg.Upload.EnableMatching
	opts.EnableTranscoding = cfg.Upload.EnableTranscoding
	opts.ForceReupload = cfg.Upload.ForceReupload
	opts.Quality = quality
	opts.SampleBitrateKbps = cfg.Upload.SampleBitrateKbps
	opts.Workers = cfg.Upload.Workers
	opts.Retry = RetryPolicy{
		MaxAttempts:    cfg.Upload.SessionMaxAttempts,
		Delay:          cfg.SessionRetryDelay(),
		AttemptTimeout: cfg.SessionAttemptTimeout(),
	}
	return opts, nil
}

// FileReader returns the full contents of a local file.
type FileReader func(path string) ([]byte, error)

// Sleeper blocks for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// DescriptorBuilder builds track descriptors from file bytes.
type DescriptorBuilder interface {
	Build(ctx context.Context, path string, data []byte) (track.Descriptor, error)
}

// Transcoder converts audio for uploads and match samples.
type Transcoder interface {
	Transcode(ctx context.Context, data []byte, q transcode.Quality) ([]byte, error)
	Slice(ctx context.Context, data []byte, startMillis, durationMillis int64, bitrateKbps int) ([]byte, error)
}

// SleepWithContext blocks for the given duration, returning early if the
// context is cancelled.
func SleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func defaultReader(path string) ([]byte, error) {
	return os.ReadFile(path)
}

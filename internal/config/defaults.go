package config

const (
	defaultConfigPath            = "~/.config/lockersync/config.toml"
	defaultStateDir              = "~/.local/share/lockersync"
	defaultLogDir                = "~/.local/share/lockersync/logs"
	defaultLockerBaseURL         = "https://android.clients.google.com/upsj"
	defaultLockerTimeout         = 60
	defaultRequestsPerSecond     = 5
	defaultTranscodeQuality      = "320k"
	defaultSampleBitrateKbps     = 128
	defaultWorkers               = 1
	defaultSessionMaxAttempts    = 10
	defaultSessionRetryDelay     = 3
	defaultSessionAttemptTimeout = 30
	defaultFFmpegBinary          = "ffmpeg"
	defaultFFprobeBinary         = "ffprobe"
	defaultLogFormat             = "console"
	defaultLogLevel              = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StateDir: defaultStateDir,
			LogDir:   defaultLogDir,
		},
		Locker: Locker{
			BaseURL:           defaultLockerBaseURL,
			TimeoutSeconds:    defaultLockerTimeout,
			RequestsPerSecond: defaultRequestsPerSecond,
		},
		Upload: Upload{
			EnableMatching:        true,
			EnableTranscoding:     true,
			TranscodeQuality:      defaultTranscodeQuality,
			SampleBitrateKbps:     defaultSampleBitrateKbps,
			Workers:               defaultWorkers,
			SessionMaxAttempts:    defaultSessionMaxAttempts,
			SessionRetryDelay:     defaultSessionRetryDelay,
			SessionAttemptTimeout: defaultSessionAttemptTimeout,
		},
		FFmpeg: FFmpeg{
			Binary:       defaultFFmpegBinary,
			ProbeBinary:  defaultFFprobeBinary,
			ProbeEnabled: true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}

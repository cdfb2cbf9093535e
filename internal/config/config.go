package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	StateDir string `toml:"state_dir"`
	LogDir   string `toml:"log_dir"`
}

// Locker contains connection settings for the remote media locker.
type Locker struct {
	BaseURL           string  `toml:"base_url"`
	OAuthToken        string  `toml:"oauth_token"`
	TimeoutSeconds    int     `toml:"timeout_seconds"`
	RequestsPerSecond float64 `toml:"requests_per_second"`
}

// Uploader contains the device identity uploads are attributed to.
type Uploader struct {
	// ID is a MAC-like device identifier. When empty, an identifier is
	// derived once and persisted under the state directory.
	ID   string `toml:"id"`
	Name string `toml:"name"`
}

// Upload contains batch behaviour knobs.
type Upload struct {
	EnableMatching        bool   `toml:"enable_matching"`
	EnableTranscoding     bool   `toml:"enable_transcoding"`
	TranscodeQuality      string `toml:"transcode_quality"`
	SampleBitrateKbps     int    `toml:"sample_bitrate_kbps"`
	ForceReupload         bool   `toml:"force_reupload"`
	Workers               int    `toml:"workers"`
	SessionMaxAttempts    int    `toml:"session_max_attempts"`
	SessionRetryDelay     int    `toml:"session_retry_delay_seconds"`
	SessionAttemptTimeout int    `toml:"session_attempt_timeout_seconds"`
}

// FFmpeg contains external tool locations.
type FFmpeg struct {
	Binary       string `toml:"binary"`
	ProbeBinary  string `toml:"probe_binary"`
	ProbeEnabled bool   `toml:"probe_enabled"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for lockersync.
//
// Configuration sections by subsystem:
//   - Paths: state (identity, history database, locks) and log directories
//   - Locker: remote endpoint, credentials, timeouts and pacing
//   - Uploader: device identity override
//   - Upload: matching, transcoding, retry policy and worker count
//   - FFmpeg: transcoder and prober binaries
//   - Logging: log format and level
type Config struct {
	Paths    Paths    `toml:"paths"`
	Locker   Locker   `toml:"locker"`
	Uploader Uploader `toml:"uploader"`
	Upload   Upload   `toml:"upload"`
	FFmpeg   FFmpeg   `toml:"ffmpeg"`
	Logging  Logging  `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("lockersync.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the state and log directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.StateDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// IdentityPath returns the file holding the persisted uploader identity.
func (c *Config) IdentityPath() string {
	return filepath.Join(c.Paths.StateDir, "uploader.json")
}

// HistoryPath returns the upload history database location.
func (c *Config) HistoryPath() string {
	return filepath.Join(c.Paths.StateDir, "history.db")
}

// BatchLockPath returns the lock file that serialises batches per state directory.
func (c *Config) BatchLockPath() string {
	return filepath.Join(c.Paths.StateDir, "upload.lock")
}

// FFmpegBinary returns the ffmpeg executable used for transcoding and sampling.
func (c *Config) FFmpegBinary() string {
	if bin := strings.TrimSpace(c.FFmpeg.Binary); bin != "" {
		return bin
	}
	return defaultFFmpegBinary
}

// FFprobeBinary returns the ffprobe executable used for duration/bitrate probing.
func (c *Config) FFprobeBinary() string {
	if bin := strings.TrimSpace(c.FFmpeg.ProbeBinary); bin != "" {
		return bin
	}
	return defaultFFprobeBinary
}

// RequestTimeout returns the per-call deadline for locker API calls. File
// transfers add time proportional to their size on top of it.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.Locker.TimeoutSeconds) * time.Second
}

// SessionRetryDelay returns the fixed delay between session negotiation attempts.
func (c *Config) SessionRetryDelay() time.Duration {
	return time.Duration(c.Upload.SessionRetryDelay) * time.Second
}

// SessionAttemptTimeout returns the network timeout applied to each session attempt.
func (c *Config) SessionAttemptTimeout() time.Duration {
	return time.Duration(c.Upload.SessionAttemptTimeout) * time.Second
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

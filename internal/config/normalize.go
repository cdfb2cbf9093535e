package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeLocker()
	c.normalizeUploader()
	c.normalizeUpload()
	c.normalizeFFmpeg()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeLocker() {
	if c.Locker.OAuthToken == "" {
		if value, ok := os.LookupEnv("LOCKER_OAUTH_TOKEN"); ok {
			c.Locker.OAuthToken = value
		}
	}
	c.Locker.OAuthToken = strings.TrimSpace(c.Locker.OAuthToken)
	if value, ok := os.LookupEnv("LOCKER_BASE_URL"); ok && strings.TrimSpace(value) != "" {
		c.Locker.BaseURL = value
	}
	c.Locker.BaseURL = strings.TrimRight(strings.TrimSpace(c.Locker.BaseURL), "/")
	if c.Locker.BaseURL == "" {
		c.Locker.BaseURL = defaultLockerBaseURL
	}
	if c.Locker.TimeoutSeconds <= 0 {
		c.Locker.TimeoutSeconds = defaultLockerTimeout
	}
}

func (c *Config) normalizeUploader() {
	if c.Uploader.ID == "" {
		if value, ok := os.LookupEnv("LOCKER_UPLOADER_ID"); ok {
			c.Uploader.ID = value
		}
	}
	c.Uploader.ID = strings.ToUpper(strings.TrimSpace(c.Uploader.ID))
	c.Uploader.Name = strings.TrimSpace(c.Uploader.Name)
}

func (c *Config) normalizeUpload() {
	c.Upload.TranscodeQuality = strings.TrimSpace(c.Upload.TranscodeQuality)
	if c.Upload.TranscodeQuality == "" {
		c.Upload.TranscodeQuality = defaultTranscodeQuality
	}
	if c.Upload.SampleBitrateKbps <= 0 {
		c.Upload.SampleBitrateKbps = defaultSampleBitrateKbps
	}
	if c.Upload.Workers <= 0 {
		c.Upload.Workers = defaultWorkers
	}
	if c.Upload.SessionMaxAttempts <= 0 {
		c.Upload.SessionMaxAttempts = defaultSessionMaxAttempts
	}
	if c.Upload.SessionAttemptTimeout <= 0 {
		c.Upload.SessionAttemptTimeout = defaultSessionAttemptTimeout
	}
}

func (c *Config) normalizeFFmpeg() {
	c.FFmpeg.Binary = strings.TrimSpace(c.FFmpeg.Binary)
	if c.FFmpeg.Binary == "" {
		c.FFmpeg.Binary = defaultFFmpegBinary
	}
	c.FFmpeg.ProbeBinary = strings.TrimSpace(c.FFmpeg.ProbeBinary)
	if c.FFmpeg.ProbeBinary == "" {
		c.FFmpeg.ProbeBinary = defaultFFprobeBinary
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

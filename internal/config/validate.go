package config

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

var uploaderIDPattern = regexp.MustCompile(`^([0-9A-F]{2}:){5}[0-9A-F]{2}$`)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateLocker(); err != nil {
		return err
	}
	if err := c.validateUploader(); err != nil {
		return err
	}
	if err := c.validateUpload(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateLocker() error {
	parsed, err := url.Parse(c.Locker.BaseURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("locker.base_url %q is not an absolute URL", c.Locker.BaseURL)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("locker.base_url must use http or https, got %q", parsed.Scheme)
	}
	if c.Locker.RequestsPerSecond < 0 {
		return errors.New("locker.requests_per_second must be >= 0 (0 disables pacing)")
	}
	return nil
}

func (c *Config) validateUploader() error {
	if c.Uploader.ID == "" {
		return nil
	}
	if !uploaderIDPattern.MatchString(c.Uploader.ID) {
		return fmt.Errorf("uploader.id %q must look like a MAC address (AA:BB:CC:DD:EE:FF)", c.Uploader.ID)
	}
	return nil
}

func (c *Config) validateUpload() error {
	if err := validateQuality(c.Upload.TranscodeQuality); err != nil {
		return fmt.Errorf("upload.transcode_quality: %w", err)
	}
	if c.Upload.SampleBitrateKbps < 8 || c.Upload.SampleBitrateKbps > 320 {
		return fmt.Errorf("upload.sample_bitrate_kbps must be between 8 and 320, got %d", c.Upload.SampleBitrateKbps)
	}
	if c.Upload.Workers > 16 {
		return fmt.Errorf("upload.workers must be <= 16, got %d", c.Upload.Workers)
	}
	if c.Upload.SessionRetryDelay < 0 {
		return errors.New("upload.session_retry_delay_seconds must be >= 0")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error, got %q", c.Logging.Level)
	}
	return nil
}

// validateQuality accepts "V0".."V9" or a bitrate such as "320k".
func validateQuality(value string) error {
	lower := strings.ToLower(value)
	if strings.HasPrefix(lower, "v") {
		n, err := strconv.Atoi(lower[1:])
		if err != nil || n < 0 || n > 9 {
			return fmt.Errorf("vbr quality %q must be V0 through V9", value)
		}
		return nil
	}
	n, err := strconv.Atoi(strings.TrimSuffix(lower, "k"))
	if err != nil || n < 8 || n > 320 {
		return fmt.Errorf("bitrate %q must be between 8k and 320k", value)
	}
	return nil
}

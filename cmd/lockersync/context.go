package main

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"lockersync/internal/config"
	"lockersync/internal/locker"
	"lockersync/internal/logging"
)

// transportFactory builds the locker transport for a command run.
type transportFactory func(cfg *config.Config, logger *slog.Logger) locker.Transport

type commandContext struct {
	configFlag  *string
	verboseFlag *bool

	newTransport transportFactory

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag *string, verboseFlag *bool) *commandContext {
	return &commandContext{
		configFlag:   configFlag,
		verboseFlag:  verboseFlag,
		newTransport: httpTransport,
	}
}

// withTransport replaces the locker transport, used by tests.
func withTransport(factory transportFactory) rootOption {
	return func(c *commandContext) {
		c.newTransport = factory
	}
}

func httpTransport(cfg *config.Config, logger *slog.Logger) locker.Transport {
	return locker.NewHTTPClient(cfg.Locker.BaseURL, cfg.Locker.OAuthToken,
		locker.WithCallTimeout(cfg.RequestTimeout()),
		locker.WithRequestsPerSecond(cfg.Locker.RequestsPerSecond),
		locker.WithLogger(logger),
	)
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// logger builds a logger writing to the command's stderr and the log file.
func (c *commandContext) logger(cmd *cobra.Command, cfg *config.Config) (*slog.Logger, error) {
	verbose := c.verboseFlag != nil && *c.verboseFlag
	return logging.NewFromConfig(cfg, cmd.ErrOrStderr(), verbose)
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func isTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}

package main

import (
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"m4bsweep/internal/config"
	"m4bsweep/internal/logging"
)

type commandContext struct {
	configFlag *string
	logLevel   *string
	logFormat  *string

	configOnce sync.Once
	config     *config.Config
	configPath string
	configErr  error
}

func newCommandContext(configFlag, logLevel, logFormat *string) *commandContext {
	return &commandContext{
		configFlag: configFlag,
		logLevel:   logLevel,
		logFormat:  logFormat,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, resolved, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
		c.configPath = resolved
	})
	return c.config, c.configErr
}

// resolve applies command-line overrides on top of the loaded config.
// Global logging flags are folded in here so every command honors them.
func (c *commandContext) resolve(o config.Overrides) (config.Config, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return config.Config{}, err
	}
	if c.logLevel != nil && strings.TrimSpace(*c.logLevel) != "" {
		o.LogLevel = c.logLevel
	}
	if c.logFormat != nil && strings.TrimSpace(*c.logFormat) != "" {
		o.LogFormat = c.logFormat
	}
	return cfg.WithOverrides(o)
}

// logger writes to the command's stderr so stdout stays free for tables.
// A configured log file receives a copy of every line.
func (c *commandContext) logger(cmd *cobra.Command, cfg *config.Config) (*slog.Logger, error) {
	opts := logging.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	}
	if file := strings.TrimSpace(cfg.Logging.File); file != "" {
		opts.OutputPaths = []string{"stderr", file}
	} else {
		opts.Writer = cmd.ErrOrStderr()
	}
	return logging.New(opts)
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

// rootArg lets a positional directory stand in for --root.
func rootArg(args []string, flag string) *string {
	if len(args) > 0 && strings.TrimSpace(args[0]) != "" {
		root := args[0]
		return &root
	}
	if strings.TrimSpace(flag) != "" {
		return &flag
	}
	return nil
}

package main

import (
	"github.com/openrport/devhost/caddy"
	"github.com/openrport/devhost/share/files"
	"github.com/openrport/devhost/share/logger"
)

type Config struct {
	caddy.Config `mapstructure:",squash"`

	LogLevel  logger.LogLevel  `mapstructure:"log_level"`
	LogOutput logger.LogOutput `mapstructure:"log_file"`
	Verbose   bool             `mapstructure:"verbose"`
}

func (c *Config) ParseAndValidate(mLog *logger.MemLogger, filesAPI files.FileAPI) error {
	if c.Verbose {
		c.LogLevel = logger.LogLevelDebug
	}
	return c.Config.ParseAndValidate(mLog, filesAPI)
}

// NewLogger starts the configured log output. Callers must shut the output
// down when done.
func (c *Config) NewLogger() (*logger.Logger, error) {
	if err := c.LogOutput.Start(); err != nil {
		return nil, err
	}
	return logger.NewLogger("devhost", c.LogOutput, c.LogLevel), nil
}

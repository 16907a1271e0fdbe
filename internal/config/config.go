// Package config handles configuration loading and validation for the
// aetherime front-ends.
package config

import (
	"fmt"
	"strconv"
	"strings"
)

// Version is the current configuration schema version.
const Version = 1

// Config holds the complete front-end configuration.
type Config struct {
	// Version is the configuration schema version.
	Version int `toml:"version" json:"version" yaml:"version"`

	// Daemon locates the prediction daemon.
	Daemon DaemonConfig `toml:"daemon" json:"daemon" yaml:"daemon"`

	// Predict controls ghost prediction.
	Predict PredictConfig `toml:"predict" json:"predict" yaml:"predict"`

	// Lexicon configures the pinyin dictionary backend.
	Lexicon LexiconConfig `toml:"lexicon" json:"lexicon" yaml:"lexicon"`

	// Logging configuration.
	Logging LoggingConfig `toml:"logging" json:"logging" yaml:"logging"`
}

// DaemonConfig holds the daemon endpoint. Socket wins over Host/Port when
// both are set.
type DaemonConfig struct {
	// Socket is the Unix socket path.
	Socket string `toml:"socket" json:"socket" yaml:"socket"`

	// Host and Port form the TCP endpoint.
	Host string `toml:"host" json:"host" yaml:"host"`
	Port int    `toml:"port" json:"port" yaml:"port"`
}

// PredictConfig controls ghost prediction behavior.
type PredictConfig struct {
	// Enabled is loaded and validated but not read by the front-ends: every
	// input context starts with prediction on, and the user toggles it per
	// context.
	Enabled bool `toml:"enabled" json:"enabled" yaml:"enabled"`
}

// LexiconConfig configures the pinyin dictionary backend.
type LexiconConfig struct {
	// DictPath overrides the pinyin dictionary location.
	DictPath string `toml:"dict_path" json:"dict_path" yaml:"dict_path"`

	// ModelPath overrides the language model location.
	ModelPath string `toml:"model_path" json:"model_path" yaml:"model_path"`

	// Watch reloads the dictionary when the files change on disk.
	Watch bool `toml:"watch" json:"watch" yaml:"watch"`
}

// LoggingConfig configures the logging package.
type LoggingConfig struct {
	// Level is debug, info, warn, or error.
	Level string `toml:"level" json:"level" yaml:"level"`

	// Format is text or json.
	Format string `toml:"format" json:"format" yaml:"format"`

	// Output is stderr, file, both, or discard.
	Output string `toml:"output" json:"output" yaml:"output"`

	// FilePath is the log file path when Output includes file.
	FilePath string `toml:"file_path" json:"file_path" yaml:"file_path"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Version: Version,
		Daemon: DaemonConfig{
			Socket: "/tmp/aetherime.sock",
			Host:   "127.0.0.1",
			Port:   48080,
		},
		Predict: PredictConfig{
			Enabled: true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "file",
		},
	}
}

// ApplyEnv applies environment overrides on top of the loaded values.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if socket := getenv("AETHERIME_SOCKET"); socket != "" {
		c.Daemon.Socket = socket
	}
	if host := getenv("SHURUFA_ENGINE_HOST"); host != "" {
		c.Daemon.Host = host
		c.Daemon.Socket = ""
	}
	if portVar := getenv("SHURUFA_ENGINE_PORT"); portVar != "" {
		if port, err := strconv.Atoi(strings.TrimSpace(portVar)); err == nil && port > 0 && port <= 65535 {
			c.Daemon.Port = port
			c.Daemon.Socket = ""
		}
	}
	if dict := getenv("AETHERIME_LIBIME_DICT"); dict != "" {
		c.Lexicon.DictPath = dict
	}
	if model := getenv("AETHERIME_LIBIME_LM"); model != "" {
		c.Lexicon.ModelPath = model
	}
}

// Validate checks the configuration against the embedded schema plus the
// invariants the schema cannot express.
func (c *Config) Validate() error {
	if err := c.validateSchema(); err != nil {
		return err
	}
	if c.Daemon.Socket == "" && c.Daemon.Host == "" {
		return fmt.Errorf("config: daemon endpoint is empty")
	}
	if c.Daemon.Socket == "" && (c.Daemon.Port <= 0 || c.Daemon.Port > 65535) {
		return fmt.Errorf("config: daemon port %d out of range", c.Daemon.Port)
	}
	return nil
}

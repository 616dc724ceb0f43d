package platform

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ConfigFile is the name of the configuration file looked up from the
// working directory upwards.
const ConfigFile = "cpm.yaml"

// Environment variables overriding the configuration file.
const (
	EnvConfig       = "CPM_CONFIG"
	EnvWorkers      = "CPM_WORKERS"
	EnvLogLevel     = "CPM_LOG_LEVEL"
	EnvReferenceDir = "CPM_REFERENCE_DIR"
	EnvOutputFormat = "CPM_OUTPUT_FORMAT"
)

// Config holds the settings shared by the command line tools.
type Config struct {
	// Workers bounds concurrent predictions. Zero uses every CPU.
	Workers int `yaml:"workers"`
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`
	// ReferenceDir holds coefficient overrides, one directory per model.
	ReferenceDir string `yaml:"reference_dir"`
	// Calibration maps a model to calibration factors by facility type.
	// The "*" key applies to every facility type.
	Calibration map[string]map[string]float64 `yaml:"calibration"`
	// OutputFormat is the extension of result files, e.g. ".csv". Empty
	// keeps the input format.
	OutputFormat string `yaml:"output_format"`

	// Path is the file the configuration was read from, if any.
	Path string `yaml:"-"`
}

// DefaultConfig returns the configuration used without a file.
func DefaultConfig() *Config {
	return &Config{LogLevel: "info"}
}

// LoadConfig reads the configuration. A .env file in the working directory
// is loaded first. The file is path, else $CPM_CONFIG, else the cpm.yaml
// found by FindRoot. Environment variables override file values.
func LoadConfig(path string) (*Config, error) {
	_ = godotenv.Load()

	if path == "" {
		path = os.Getenv(EnvConfig)
	}
	discovered := false
	if path == "" {
		if root, err := FindRoot("."); err == nil {
			path, discovered = filepath.Join(root, ConfigFile), true
		}
	}

	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist) && discovered:
			// a root marked by .cpm may have no config file
		case err != nil:
			return nil, fmt.Errorf("failed to read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("invalid config %s: %w", path, err)
			}
			cfg.Path = path
			if cfg.ReferenceDir != "" && !filepath.IsAbs(cfg.ReferenceDir) {
				cfg.ReferenceDir = filepath.Join(filepath.Dir(path), cfg.ReferenceDir)
			}
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, cfg.Validate()
}

func (c *Config) applyEnv() error {
	if v := strings.TrimSpace(os.Getenv(EnvWorkers)); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvWorkers, err)
		}
		c.Workers = n
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogLevel)); v != "" {
		c.LogLevel = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvReferenceDir)); v != "" {
		c.ReferenceDir = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvOutputFormat)); v != "" {
		c.OutputFormat = v
	}
	return nil
}

// Validate checks the configuration values.
func (c *Config) Validate() error {
	if c.Workers < 0 {
		return fmt.Errorf("workers must not be negative, got %d", c.Workers)
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	if c.OutputFormat != "" && !strings.HasPrefix(c.OutputFormat, ".") {
		c.OutputFormat = "." + c.OutputFormat
	}
	return nil
}

// Level returns the configured log level.
func (c *Config) Level() slog.Level {
	l, _ := ParseLevel(c.LogLevel)
	return l
}

// ParseLevel converts a level name to a slog.Level. Empty means info.
func ParseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if s == "" {
		return slog.LevelInfo, nil
	}
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("invalid log level %q: %w", s, err)
	}
	return l, nil
}

package platform

import (
	"log/slog"
)

// options holds the configuration of platform operations.
type options struct {
	logger *slog.Logger
	config *Config
}

// Option defines a functional option for platform operations.
type Option func(*options)

func defaultOptions() *options {
	return &options{
		logger: slog.Default(),
		config: DefaultConfig(),
	}
}

func newOptions(opts []Option) *options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithConfig sets the configuration.
func WithConfig(cfg *Config) Option {
	return func(o *options) {
		if cfg != nil {
			o.config = cfg
		}
	}
}

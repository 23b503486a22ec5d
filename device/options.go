package device

import (
	"time"

	"go.uber.org/zap"
)

// Config holds the bootloader configuration.
type Config struct {
	// Logger receives structured debug output (default: no-op)
	Logger *zap.Logger

	// Observer receives diagnostic events (default: no-op)
	Observer Observer

	// ResetHold is how long the device stays detached before RESET_DEVICE
	// resets the processor
	ResetHold time.Duration
}

func defaultConfig() Config {
	return Config{
		Logger:    zap.NewNop(),
		Observer:  nopObserver{},
		ResetHold: 100 * time.Millisecond,
	}
}

// Option is a functional option for configuring the Bootloader.
type Option func(*Config)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Config) {
		if logger != nil {
			c.Logger = logger
		}
	}
}

// WithObserver installs a diagnostic observer.
func WithObserver(obs Observer) Option {
	return func(c *Config) {
		if obs != nil {
			c.Observer = obs
		}
	}
}

// WithResetHold sets the detach time used by RESET_DEVICE.
// USB hosts need roughly 100ms to notice a detach reliably.
func WithResetHold(hold time.Duration) Option {
	return func(c *Config) {
		if hold >= 0 {
			c.ResetHold = hold
		}
	}
}

package remoteresource

import (
	"errors"
	"log/slog"
	"time"
)

// resourceConfig holds mutable state during Resource construction.
type resourceConfig struct {
	pollOnMount bool
	interval    time.Duration
	headers     map[string]string
	timeout     time.Duration
	transport   Transport
	logger      *slog.Logger
}

// Option is a function that configures a [Resource] during construction.
//
// Option implements the functional options pattern for [New] and
// [NewWithDecoder]. Options return an error if validation fails.
type Option func(*resourceConfig) error

// WithPollOnMount controls whether [Resource.Activate] issues one poll
// immediately. Defaults to true.
func WithPollOnMount(enabled bool) Option {
	return func(cfg *resourceConfig) error {
		cfg.pollOnMount = enabled
		return nil
	}
}

// WithAutoPollInterval arms a recurring poll every d, starting one interval
// after activation. The immediate poll on activation is controlled solely by
// [WithPollOnMount].
//
// Example:
//
//	r, err := remoteresource.New[Status](url,
//	    remoteresource.WithAutoPollInterval(5*time.Second),
//	)
//
// Returns an error if the duration is zero or negative.
func WithAutoPollInterval(d time.Duration) Option {
	return func(cfg *resourceConfig) error {
		if d <= 0 {
			return errors.New("auto poll interval must be positive")
		}
		cfg.interval = d
		return nil
	}
}

// WithHeaders adds HTTP headers sent verbatim with every poll, including
// the recurring ones.
//
// Accepts variadic key-value pairs. The number of arguments must be even.
//
// Example:
//
//	r, err := remoteresource.New[Config](url,
//	    remoteresource.WithHeaders("Authorization", "Bearer token123"),
//	)
//
// Returns an error if an odd number of arguments is provided.
func WithHeaders(keyValues ...string) Option {
	return func(cfg *resourceConfig) error {
		if len(keyValues)%2 != 0 {
			return errors.New("WithHeaders requires an even number of arguments (key-value pairs)")
		}
		for i := 0; i < len(keyValues); i += 2 {
			cfg.headers[keyValues[i]] = keyValues[i+1]
		}
		return nil
	}
}

// WithTimeout bounds each request made by the default HTTP transport.
// Defaults to 10 seconds. Ignored when [WithTransport] is used.
//
// Returns an error if the duration is zero or negative.
func WithTimeout(d time.Duration) Option {
	return func(cfg *resourceConfig) error {
		if d <= 0 {
			return errors.New("timeout must be positive")
		}
		cfg.timeout = d
		return nil
	}
}

// WithTransport replaces the default HTTP transport.
//
// The resource does not close a transport it did not create.
// Returns an error if t is nil.
func WithTransport(t Transport) Option {
	return func(cfg *resourceConfig) error {
		if t == nil {
			return errors.New("transport cannot be nil")
		}
		cfg.transport = t
		return nil
	}
}

// WithLogger sets a custom [slog.Logger]. Defaults to [slog.Default].
//
// Returns an error if the logger is nil.
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *resourceConfig) error {
		if logger == nil {
			return errors.New("logger cannot be nil")
		}
		cfg.logger = logger
		return nil
	}
}

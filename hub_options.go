package remoteresource

import (
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
)

// hubConfig holds mutable state during Hub construction.
type hubConfig struct {
	title     string
	port      int
	logger    *slog.Logger
	resources []namedResource
	callbacks []func(name string, snap Snapshot[json.RawMessage])
}

// HubOption is a function that configures a [Hub] during construction.
//
// Options return an error if validation fails.
type HubOption func(*hubConfig) error

// WithResource adds a named resource to the hub.
//
// The hub takes over the resource's lifecycle: [Hub.Start] activates it and
// deactivates it on shutdown. Names must be unique within a hub.
//
// Example:
//
//	hub, err := remoteresource.NewHub(
//	    remoteresource.WithResource("users", users),
//	    remoteresource.WithResource("orders", orders),
//	)
//
// Returns an error if the name is empty or the resource is nil.
func WithResource(name string, r *HubResource) HubOption {
	return func(cfg *hubConfig) error {
		if strings.TrimSpace(name) == "" {
			return errors.New("resource name cannot be empty")
		}
		if r == nil {
			return errors.New("resource cannot be nil")
		}
		cfg.resources = append(cfg.resources, namedResource{name: name, resource: r})
		return nil
	}
}

// WithPort sets the HTTP port for the API and dashboard. Defaults to 8080.
//
// Returns an error if the port is outside the valid range (1-65535).
func WithPort(port int) HubOption {
	return func(cfg *hubConfig) error {
		if port < 1 || port > 65535 {
			return errors.New("port must be between 1 and 65535")
		}
		cfg.port = port
		return nil
	}
}

// WithTitle sets the dashboard title. Defaults to "Remote Resources".
func WithTitle(title string) HubOption {
	return func(cfg *hubConfig) error {
		cfg.title = title
		return nil
	}
}

// WithHubLogger sets a custom [slog.Logger] for the hub. Defaults to
// [slog.Default]. Resources keep the logger they were built with.
//
// Returns an error if the logger is nil.
func WithHubLogger(logger *slog.Logger) HubOption {
	return func(cfg *hubConfig) error {
		if logger == nil {
			return errors.New("logger cannot be nil")
		}
		cfg.logger = logger
		return nil
	}
}

// WithHubChangeCallback registers a function called with every state change
// of every resource, after the change is visible through the API.
//
// Callbacks run on the goroutine that drains that resource's updates and
// must not block. Panics are recovered and logged. Nil callbacks are ignored.
//
// Example:
//
//	remoteresource.WithHubChangeCallback(func(name string, s remoteresource.Snapshot[json.RawMessage]) {
//	    if s.Status == remoteresource.StatusFailed {
//	        log.Printf("ALERT: %s failed: %v", name, s.Err)
//	    }
//	})
func WithHubChangeCallback(cb func(name string, snap Snapshot[json.RawMessage])) HubOption {
	return func(cfg *hubConfig) error {
		if cb == nil {
			return nil
		}
		cfg.callbacks = append(cfg.callbacks, cb)
		return nil
	}
}

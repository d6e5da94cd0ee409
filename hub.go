package remoteresource

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/jpalmerr/remoteresource/dashboard"
	"github.com/jpalmerr/remoteresource/internal/server"
	"github.com/jpalmerr/remoteresource/internal/store"
)

const defaultPort = 8080

// ErrUnknownResource is returned by [Hub.Poll] for a name the hub does not own.
var ErrUnknownResource = server.ErrNotFound

// HubResource is the resource type a [Hub] owns: payloads are kept as raw
// JSON so that every resource can be served from one API.
type HubResource = Resource[json.RawMessage]

type namedResource struct {
	name     string
	resource *HubResource
}

// Hub owns a set of named resources, activates them together, and serves
// their state over HTTP.
//
// A Hub is the host side of the resource lifecycle: [Hub.Start] activates
// every resource, mirrors each state change into a store that backs the
// REST, SSE and WebSocket API, and deactivates every resource when its
// context is cancelled.
//
//	users, _ := remoteresource.NewWithDecoder("https://api.example.com/users",
//	    remoteresource.JSONOrTextDecoder,
//	    remoteresource.WithAutoPollInterval(30*time.Second),
//	)
//	hub, err := remoteresource.NewHub(remoteresource.WithResource("users", users))
//	if err != nil {
//	    return err
//	}
//
//	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
//	defer cancel()
//	return hub.Start(ctx) // blocks until ctx is cancelled
type Hub struct {
	title     string
	port      int
	logger    *slog.Logger
	resources []namedResource
	byName    map[string]*HubResource
	callbacks []func(name string, snap Snapshot[json.RawMessage])
	store     *store.MemoryStore
}

// NewHub creates a [Hub] from the given options.
//
// At least one resource must be configured via [WithResource]. Defaults:
// port 8080, [slog.Default] logger.
//
// Returns an error if no resources are configured, a name is empty or
// duplicated, or any option is invalid.
func NewHub(opts ...HubOption) (*Hub, error) {
	cfg := &hubConfig{
		port: defaultPort,
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	if len(cfg.resources) == 0 {
		return nil, errors.New("at least one resource is required")
	}

	byName := make(map[string]*HubResource, len(cfg.resources))
	for _, nr := range cfg.resources {
		if _, dup := byName[nr.name]; dup {
			return nil, fmt.Errorf("duplicate resource name: %q", nr.name)
		}
		byName[nr.name] = nr.resource
	}

	logger := cfg.logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Hub{
		title:     cfg.title,
		port:      cfg.port,
		logger:    logger,
		resources: cfg.resources,
		byName:    byName,
		callbacks: cfg.callbacks,
		store:     store.NewMemoryStore(),
	}, nil
}

// Start activates every resource and serves the API until ctx is cancelled.
//
// Start blocks. On cancellation it deactivates all resources, waits for
// their in-flight polls, and returns nil. Returns an error if the HTTP
// server cannot bind its port; resources are deactivated in that case too.
func (h *Hub) Start(ctx context.Context) error {
	h.logger.Info("hub starting", "resource_count", len(h.resources))

	if ctx.Err() != nil {
		return nil
	}

	for _, nr := range h.resources {
		nr := nr // per-iteration copy for the closure below (go < 1.22 loop semantics)
		// seed the store so every resource is listed before its first poll settles
		h.store.Update(toStoreSnapshot(nr.name, nr.resource.URL(), nr.resource.Snapshot()))

		nr.resource.OnChange(func(snap Snapshot[json.RawMessage]) {
			h.handleChange(nr, snap)
		})
	}

	for _, nr := range h.resources {
		nr.resource.Activate(ctx)
	}

	cleanup := func() {
		for _, nr := range h.resources {
			nr.resource.Deactivate()
		}
	}

	httpServer := server.NewServer(h.store, server.TriggerFunc(h.Poll), h.port, dashboard.Assets, h.title, h.logger)
	if err := httpServer.Start(ctx); err != nil {
		cleanup()
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}
	h.logger.Info("dashboard available", "url", fmt.Sprintf("http://localhost:%d", h.port))

	<-ctx.Done()
	cleanup()
	h.logger.Info("hub stopped")
	return nil
}

func (h *Hub) handleChange(nr namedResource, snap Snapshot[json.RawMessage]) {
	h.store.Update(toStoreSnapshot(nr.name, nr.resource.URL(), snap))

	for _, cb := range h.callbacks {
		invokeHubCallbackSafe(cb, nr.name, snap, h.logger)
	}

	if snap.Status.Settled() {
		h.logger.Info("resource updated",
			"resource", nr.name,
			"status", snap.Status,
			"generation", snap.Generation,
		)
	}
}

// Poll triggers a manual poll of the named resource.
// Returns [ErrUnknownResource] if the hub has no such resource.
func (h *Hub) Poll(name string) error {
	r, ok := h.byName[name]
	if !ok {
		return fmt.Errorf("poll %q: %w", name, ErrUnknownResource)
	}
	r.Poll()
	return nil
}

// Resource returns the named resource.
func (h *Hub) Resource(name string) (*HubResource, bool) {
	r, ok := h.byName[name]
	return r, ok
}

// Names returns the resource names in sorted order.
func (h *Hub) Names() []string {
	names := make([]string, 0, len(h.byName))
	for name := range h.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Port returns the configured HTTP port.
func (h *Hub) Port() int {
	return h.port
}

// Title returns the configured dashboard title.
func (h *Hub) Title() string {
	return h.title
}

// toStoreSnapshot converts a resource snapshot to its storage form.
func toStoreSnapshot(name, url string, snap Snapshot[json.RawMessage]) store.Snapshot {
	var errStr *string
	if snap.Err != nil {
		s := snap.Err.Error()
		errStr = &s
	}

	var data json.RawMessage
	if snap.HasData {
		data = snap.Data
	}

	return store.Snapshot{
		Name:       name,
		URL:        url,
		Status:     snap.Status.String(),
		Data:       data,
		Generation: snap.Generation,
		StatusCode: snap.StatusCode,
		UpdatedAt:  snap.UpdatedAt,
		Error:      errStr,
	}
}

// invokeHubCallbackSafe calls a hub change callback with panic recovery.
func invokeHubCallbackSafe(cb func(string, Snapshot[json.RawMessage]), name string, snap Snapshot[json.RawMessage], logger *slog.Logger) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("change callback panicked",
				"panic", r,
				"resource", name,
			)
		}
	}()
	cb(name, snap)
}

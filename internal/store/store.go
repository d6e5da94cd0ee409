package store

import (
	"encoding/json"
	"time"
)

// Snapshot is the stored state of one named resource.
//
// Snapshot is the storage representation, optimised for JSON serialisation
// (used by the REST API, SSE and WebSocket streams). It is decoupled from the
// generic remoteresource.Snapshot so that one store can hold every resource.
type Snapshot struct {
	// Name is the resource's unique name within its hub.
	Name string `json:"name"`

	// URL is the polled URL.
	URL string `json:"url"`

	// Status is "loading", "success" or "failed".
	Status string `json:"status"`

	// Data is the latest accepted payload, or nil when absent.
	Data json.RawMessage `json:"data"`

	// Generation is the poll generation that produced this state.
	Generation uint64 `json:"generation"`

	// StatusCode is the HTTP status code of the accepted response.
	StatusCode int `json:"status_code,omitempty"`

	// UpdatedAt is when the resource state last changed.
	UpdatedAt time.Time `json:"updated_at"`

	// Error describes the last accepted failure. nil unless Status is "failed".
	Error *string `json:"error"`
}

// Store defines storage and subscription of resource snapshots.
//
// Store implementations must be safe for concurrent access.
type Store interface {
	// Update stores a snapshot and notifies all subscribers.
	// Snapshots are keyed by Name; later updates replace earlier ones.
	Update(snap Snapshot)

	// Get returns the snapshot stored under name.
	Get(name string) (Snapshot, bool)

	// GetAll returns all stored snapshots ordered by name.
	GetAll() []Snapshot

	// Subscribe returns a buffered channel receiving every update.
	// Slow consumers may miss updates. Callers must Unsubscribe when done.
	Subscribe() <-chan Snapshot

	// Unsubscribe removes a subscription and closes the channel.
	// Safe to call with a channel that was already unsubscribed.
	Unsubscribe(ch <-chan Snapshot)
}

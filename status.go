package remoteresource

import "time"

// Status represents the coarse state of a [Resource].
//
// Status is a string type holding one of three predefined values:
// [StatusLoading], [StatusSuccess] or [StatusFailed]. Using a string type
// keeps JSON output and log lines human-readable.
type Status string

const (
	// StatusLoading indicates a poll has been issued and its response has not
	// been accepted yet. A resource that has never polled also reports loading.
	StatusLoading Status = "loading"

	// StatusSuccess indicates the most recently issued poll returned a 2xx
	// response whose body decoded successfully.
	StatusSuccess Status = "success"

	// StatusFailed indicates the most recently issued poll failed: transport
	// error, non-2xx response, or a body that could not be decoded.
	StatusFailed Status = "failed"
)

// String returns the string representation of the status.
// This implements the fmt.Stringer interface.
func (s Status) String() string {
	return string(s)
}

// Settled reports whether the status is terminal for its poll.
func (s Status) Settled() bool {
	return s == StatusSuccess || s == StatusFailed
}

// Snapshot is an immutable copy of a [Resource]'s visible state.
//
// Snapshots are handed to change callbacks and subscribers so that readers
// never observe a half-applied poll.
type Snapshot[T any] struct {
	// Status is the resource status at the time of the snapshot.
	Status Status

	// Data is the latest accepted payload. Meaningful only if HasData is true.
	Data T

	// HasData reports whether a payload is present.
	HasData bool

	// Generation is the poll generation that produced this state.
	// Zero means no poll has been issued.
	Generation uint64

	// StatusCode is the HTTP status code of the accepted response.
	// Zero while loading or if the request failed before a response arrived.
	StatusCode int

	// Err is the reason of the last accepted failure, for diagnostics only.
	Err error

	// UpdatedAt is when the state last changed.
	UpdatedAt time.Time

	// version increases with every state change, including loading
	version uint64
}

// Package poller provides the HTTP and timing plumbing behind remote resources.
//
// The main components are:
//
//   - [Client]: GET-only HTTP client wrapper with timeout and size limits
//   - [Response]: outcome of a single fetch
//   - [Scheduler]: recurring task armed on activation and disarmed on deactivation
//
// Users of the remoteresource library should not need to interact with this
// package directly.
package poller

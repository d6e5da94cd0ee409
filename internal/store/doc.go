// Package store keeps the latest snapshot of every resource in a hub and
// fans updates out to subscribers.
//
// The main components are:
//
//   - [Store]: interface for storage and subscription
//   - [MemoryStore]: in-memory implementation with pub/sub
//   - [Snapshot]: JSON-friendly state of one named resource
//
// Subscribers receive updates via channels with non-blocking sends; a slow
// subscriber misses updates rather than stalling the hub.
package store

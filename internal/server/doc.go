// Package server provides the HTTP API and live streams for a resource hub.
//
// It serves the embedded dashboard, JSON snapshots of every resource, a
// manual poll trigger, and Server-Sent Events and WebSocket streams of
// snapshot updates. Routing uses gorilla/mux.
package server

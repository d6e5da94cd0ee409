// Package remoteresource keeps the latest value of a remote HTTP resource
// in step with a host lifecycle.
//
// A [Resource] wraps one URL. It fetches on activation, optionally on a
// fixed interval, and whenever [Resource.Poll] is called, and exposes the
// latest accepted payload together with a coarse [Status]. Polls may
// overlap; the most recently issued poll always determines the visible
// state, however the responses arrive.
//
// # Quick Start
//
// Create a resource and bind it to a context:
//
//	users, _ := remoteresource.New[[]User]("https://api.example.com/users",
//	    remoteresource.WithAutoPollInterval(30*time.Second),
//	)
//
//	users.Activate(ctx) // polls once, then every 30s
//	defer users.Deactivate()
//
//	if data, ok := users.Data(); ok {
//	    render(data)
//	}
//
// # Lifecycle
//
// [Resource.Activate] issues the poll-on-mount fetch (see [WithPollOnMount])
// and arms the recurring poll (see [WithAutoPollInterval]). The first
// recurring poll fires one interval after activation. [Resource.Deactivate]
// disarms the timer, abandons in-flight fetches and guarantees that no state
// changes afterwards. Cancelling the activation context has the same effect.
//
// # Status
//
// The status switches to [StatusLoading] as soon as a poll is issued. When
// the latest poll settles it becomes [StatusSuccess] for a 2xx response whose
// body decoded, and [StatusFailed] for anything else: transport errors,
// non-2xx responses and decode errors alike. A failure clears the data.
//
// # Observing Changes
//
// Readers can either query state directly, register a callback with
// [Resource.OnChange], receive [Snapshot] values from [Resource.Subscribe],
// or block on [Resource.Await] for the latest poll to settle.
//
// # Decoders
//
// [New] decodes bodies as JSON into T. [NewWithDecoder] accepts any
// [Decoder]; built-in ones are [JSONDecoder], [RawDecoder], [StringDecoder],
// [JSONOrTextDecoder] and [JSONFieldDecoder].
//
// # Hub
//
// A [Hub] owns a set of named resources, activates them together and serves
// their state over a REST API, Server-Sent Events, a WebSocket stream and
// an embedded dashboard. The config package builds a hub from YAML.
//
// # Architecture
//
// The module consists of several packages:
//
//   - internal/poller: HTTP client and interval scheduler
//   - internal/store: In-memory snapshot storage with pub/sub
//   - internal/server: HTTP server with REST, SSE and WebSocket endpoints
//   - dashboard: Embedded web UI assets
//   - config: YAML configuration for the CLI
//
// The internal packages are not part of the public API and may change
// without notice.
package remoteresource

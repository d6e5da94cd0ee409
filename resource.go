package remoteresource

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jpalmerr/remoteresource/internal/poller"
)

// subscriberBuffer is the channel buffer handed out by [Resource.Subscribe].
const subscriberBuffer = 16

// ErrDeactivated is returned by [Resource.Await] once the resource has been
// deactivated.
var ErrDeactivated = errors.New("resource deactivated")

// Resource binds a remote HTTP resource to a host lifecycle.
//
// A Resource exposes the latest fetched value through [Resource.Data], a
// coarse [Status] through [Resource.Status], and a manual trigger through
// [Resource.Poll]. On [Resource.Activate] it optionally polls once and
// optionally arms a recurring poll; [Resource.Deactivate] tears all of that
// down.
//
// Polls may overlap. Every poll captures a generation number when it is
// issued, and its outcome is applied only if no newer poll has been issued
// in the meantime. Visible state is therefore ordered by issuance, not by
// completion: a slow early poll can never overwrite a fast later one.
//
// All methods are safe for concurrent use.
type Resource[T any] struct {
	url           string
	headers       map[string]string
	pollOnMount   bool
	interval      time.Duration
	transport     Transport
	ownsTransport bool
	decode        Decoder[T]
	logger        *slog.Logger

	// ctx is cancelled on deactivation; in-flight fetches run under it
	ctx    context.Context
	cancel context.CancelFunc

	mu         sync.Mutex
	generation uint64
	data       T
	hasData    bool
	status     Status
	statusCode int
	lastErr    error
	updatedAt  time.Time
	version    uint64
	activated  bool
	scheduler  *poller.Scheduler
	stopParent func() bool
	inflight   sync.WaitGroup

	subMu       sync.Mutex
	subscribers map[chan Snapshot[T]]struct{}
	callbacks   []func(Snapshot[T])
	closed      bool

	pubMu      sync.Mutex
	publishing bool
	dirty      bool
	delivered  uint64

	closeOnce sync.Once
}

// New creates a [Resource] for rawURL whose accepted bodies are decoded as
// JSON into T.
//
// Options default to: poll on activation, no recurring poll, no extra
// headers, the default HTTP transport with a 10 second request timeout.
//
// Returns an error if the URL is invalid or any option is invalid.
//
// Example:
//
//	users, err := remoteresource.New[[]User]("https://api.example.com/users",
//	    remoteresource.WithAutoPollInterval(30*time.Second),
//	    remoteresource.WithHeaders("Authorization", "Bearer token"),
//	)
func New[T any](rawURL string, opts ...Option) (*Resource[T], error) {
	return NewWithDecoder(rawURL, JSONDecoder[T](), opts...)
}

// NewWithDecoder is like [New] but decodes accepted bodies with decode.
func NewWithDecoder[T any](rawURL string, decode Decoder[T], opts ...Option) (*Resource[T], error) {
	if decode == nil {
		return nil, errors.New("decoder cannot be nil")
	}
	if err := validateURL(rawURL); err != nil {
		return nil, err
	}

	cfg := &resourceConfig{
		pollOnMount: true,
		headers:     make(map[string]string),
		timeout:     poller.DefaultTimeout,
	}
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	logger := cfg.logger
	if logger == nil {
		logger = slog.Default()
	}

	transport := cfg.transport
	ownsTransport := false
	if transport == nil {
		transport = NewHTTPTransport(cfg.timeout)
		ownsTransport = true
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Resource[T]{
		url:           rawURL,
		headers:       cfg.headers,
		pollOnMount:   cfg.pollOnMount,
		interval:      cfg.interval,
		transport:     transport,
		ownsTransport: ownsTransport,
		decode:        decode,
		logger:        logger.With("url", rawURL),
		ctx:           ctx,
		cancel:        cancel,
		status:        StatusLoading,
		subscribers:   make(map[chan Snapshot[T]]struct{}),
	}, nil
}

func validateURL(rawURL string) error {
	if rawURL == "" {
		return errors.New("url cannot be empty")
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("URL scheme must be http or https, got %q", parsed.Scheme)
	}
	return nil
}

// URL returns the polled URL.
func (r *Resource[T]) URL() string {
	return r.url
}

// Headers returns a copy of the headers sent with every poll.
func (r *Resource[T]) Headers() map[string]string {
	return copyMap(r.headers)
}

// PollOnMount reports whether [Resource.Activate] issues an immediate poll.
func (r *Resource[T]) PollOnMount() bool {
	return r.pollOnMount
}

// AutoPollInterval returns the recurring poll interval, or 0 if disabled.
func (r *Resource[T]) AutoPollInterval() time.Duration {
	return r.interval
}

// Data returns the latest accepted payload and whether one is present.
//
// Reference-typed payloads are shared between readers and must be treated
// as read-only.
func (r *Resource[T]) Data() (T, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.data, r.hasData
}

// Status returns the current [Status].
func (r *Resource[T]) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// Generation returns the generation of the most recently issued poll.
func (r *Resource[T]) Generation() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.generation
}

// Snapshot returns a consistent copy of the visible state.
func (r *Resource[T]) Snapshot() Snapshot[T] {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked()
}

func (r *Resource[T]) snapshotLocked() Snapshot[T] {
	return Snapshot[T]{
		Status:     r.status,
		Data:       r.data,
		HasData:    r.hasData,
		Generation: r.generation,
		StatusCode: r.statusCode,
		Err:        r.lastErr,
		UpdatedAt:  r.updatedAt,
		version:    r.version,
	}
}

// Poll issues one fetch in the background and returns immediately.
//
// The status switches to [StatusLoading] before Poll returns. When the fetch
// settles its outcome is applied only if no later poll has been issued;
// otherwise it is discarded silently. Failures never surface as errors, only
// through [Resource.Status] and [Resource.Data].
//
// Poll is a no-op after [Resource.Deactivate].
func (r *Resource[T]) Poll() {
	r.mu.Lock()
	if r.ctx.Err() != nil {
		r.mu.Unlock()
		return
	}
	r.generation++
	gen := r.generation
	r.status = StatusLoading
	r.statusCode = 0
	r.updatedAt = time.Now()
	r.version++
	// counted before publishing so Deactivate also waits for the notification
	r.inflight.Add(1)
	r.mu.Unlock()

	r.publish()

	go func() {
		defer r.inflight.Done()
		resp := r.transport.Get(r.ctx, r.url, r.headers)
		r.settle(gen, resp)
	}()
}

// settle applies the outcome of poll gen if it is still the latest one.
func (r *Resource[T]) settle(gen uint64, resp Response) {
	var (
		value T
		err   = resp.Err
	)
	if err == nil && !succeeded(resp) {
		err = fmt.Errorf("unexpected status code %d", resp.StatusCode)
	}
	if err == nil {
		value, err = r.safeDecode(resp.Body)
	}

	r.mu.Lock()
	if r.ctx.Err() != nil || gen != r.generation {
		current := r.generation
		r.mu.Unlock()
		r.logger.Debug("poll result discarded",
			"generation", gen,
			"current_generation", current,
		)
		return
	}

	if err != nil {
		var zero T
		r.data = zero
		r.hasData = false
		r.status = StatusFailed
		r.lastErr = err
	} else {
		r.data = value
		r.hasData = true
		r.status = StatusSuccess
		r.lastErr = nil
	}
	r.statusCode = resp.StatusCode
	r.updatedAt = time.Now()
	r.version++
	r.mu.Unlock()

	logAttrs := []any{
		"generation", gen,
		"status_code", resp.StatusCode,
		"latency_ms", resp.Latency.Milliseconds(),
	}
	if err != nil {
		r.logger.Warn("poll failed", append(logAttrs, "error", err.Error())...)
	} else {
		r.logger.Debug("poll succeeded", logAttrs...)
	}

	r.publish()
}

// safeDecode calls the decoder with panic recovery.
// A panicking decoder is logged with a correlation ID and fails the poll.
func (r *Resource[T]) safeDecode(body []byte) (value T, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			correlationID := uuid.NewString()
			r.logger.Error("decoder panic",
				"correlation_id", correlationID,
				"panic", fmt.Sprintf("%v", rec),
				"stack", string(debug.Stack()),
			)
			var zero T
			value = zero
			err = fmt.Errorf("decoder panic (correlation_id: %s)", correlationID)
		}
	}()

	value, err = r.decode(body)
	if err != nil {
		err = fmt.Errorf("failed to decode response body: %w", err)
	}
	return value, err
}

// Activate starts the resource: it polls once if poll-on-mount is enabled
// and arms the recurring poll if an interval is configured. The first
// recurring poll fires one interval after activation.
//
// Cancelling ctx deactivates the resource; [Resource.Deactivate] should
// still be called to wait for in-flight polls. Activate is idempotent and
// a no-op after deactivation.
func (r *Resource[T]) Activate(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}

	r.mu.Lock()
	if r.activated || r.ctx.Err() != nil {
		r.mu.Unlock()
		return
	}
	r.activated = true
	r.stopParent = context.AfterFunc(ctx, r.cancel)
	if r.interval > 0 {
		r.scheduler = poller.NewScheduler(r.interval, r.Poll, r.logger)
		r.scheduler.Start(r.ctx)
	}
	r.mu.Unlock()

	r.logger.Debug("resource activated",
		"poll_on_mount", r.pollOnMount,
		"auto_poll_interval", r.interval.String(),
	)

	if r.pollOnMount {
		r.Poll()
	}
}

// Deactivate disarms the recurring poll, abandons in-flight fetches and
// waits for them to return. No state changes and no change callbacks run
// after Deactivate returns, and subscriber channels are closed.
//
// Fetches are abandoned by cancelling their context, so Deactivate blocks
// until the [Transport] returns. A Transport that ignores ctx delays it.
//
// Deactivate is idempotent. It must not be called from a change callback.
func (r *Resource[T]) Deactivate() {
	r.mu.Lock()
	r.cancel()
	scheduler := r.scheduler
	stopParent := r.stopParent
	r.mu.Unlock()

	if stopParent != nil {
		stopParent()
	}
	if scheduler != nil {
		scheduler.Stop()
	}
	r.inflight.Wait()

	r.closeOnce.Do(func() {
		if r.ownsTransport {
			closeTransport(r.transport)
		}

		r.subMu.Lock()
		r.closed = true
		for ch := range r.subscribers {
			delete(r.subscribers, ch)
			close(ch)
		}
		r.subMu.Unlock()

		r.logger.Debug("resource deactivated")
	})
}

// Active reports whether the resource has been activated and not yet
// deactivated.
func (r *Resource[T]) Active() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.activated && r.ctx.Err() == nil
}

// OnChange registers fn to be called with a [Snapshot] after each state
// change. Calls are serialised and never run concurrently with each other;
// when changes happen faster than fn returns, intermediate states may be
// skipped but the latest state is always delivered.
//
// Panics in fn are recovered and logged. Nil callbacks are ignored.
func (r *Resource[T]) OnChange(fn func(Snapshot[T])) {
	if fn == nil {
		return
	}
	r.subMu.Lock()
	r.callbacks = append(r.callbacks, fn)
	r.subMu.Unlock()
}

// Subscribe returns a channel receiving a [Snapshot] after each state change.
//
// Sends are non-blocking: a subscriber whose buffer is full misses updates.
// The channel is closed by [Resource.Deactivate] or [Resource.Unsubscribe].
func (r *Resource[T]) Subscribe() <-chan Snapshot[T] {
	ch := make(chan Snapshot[T], subscriberBuffer)

	r.subMu.Lock()
	defer r.subMu.Unlock()
	if r.closed {
		close(ch)
		return ch
	}
	r.subscribers[ch] = struct{}{}
	return ch
}

// Unsubscribe removes a subscription and closes its channel.
// Safe to call multiple times or with an unknown channel.
func (r *Resource[T]) Unsubscribe(ch <-chan Snapshot[T]) {
	r.subMu.Lock()
	defer r.subMu.Unlock()

	for subCh := range r.subscribers {
		if subCh == ch {
			delete(r.subscribers, subCh)
			close(subCh)
			return
		}
	}
}

// Await blocks until the most recently issued poll has settled and returns
// the resulting snapshot. If nothing has been polled yet, Await waits for the
// first poll to be issued and settle.
//
// Returns ctx.Err() if ctx is done first, or [ErrDeactivated] if the
// resource is deactivated while waiting.
func (r *Resource[T]) Await(ctx context.Context) (Snapshot[T], error) {
	ch := r.Subscribe()
	defer r.Unsubscribe(ch)

	for {
		snap := r.Snapshot()
		if snap.Generation > 0 && snap.Status.Settled() {
			return snap, nil
		}

		select {
		case _, ok := <-ch:
			if !ok {
				return r.Snapshot(), ErrDeactivated
			}
		case <-ctx.Done():
			return r.Snapshot(), ctx.Err()
		}
	}
}

// publish delivers the current state to callbacks and subscribers.
//
// Only one goroutine delivers at a time. A publish that arrives while another
// is delivering marks the state dirty and returns; the active deliverer loops
// until nothing new is pending. Delivered snapshots are therefore monotonic
// and the final one always matches the current state.
func (r *Resource[T]) publish() {
	r.pubMu.Lock()
	if r.publishing {
		r.dirty = true
		r.pubMu.Unlock()
		return
	}
	r.publishing = true
	r.pubMu.Unlock()

	for {
		snap := r.Snapshot()
		if snap.version > r.delivered {
			r.delivered = snap.version
			r.deliver(snap)
		}

		r.pubMu.Lock()
		if !r.dirty {
			r.publishing = false
			r.pubMu.Unlock()
			return
		}
		r.dirty = false
		r.pubMu.Unlock()
	}
}

func (r *Resource[T]) deliver(snap Snapshot[T]) {
	r.subMu.Lock()
	callbacks := r.callbacks
	for ch := range r.subscribers {
		select {
		case ch <- snap:
		default:
			// subscriber is slow, drop the update
		}
	}
	r.subMu.Unlock()

	for _, cb := range callbacks {
		invokeCallbackSafe(cb, snap, r.logger)
	}
}

// invokeCallbackSafe calls a change callback with panic recovery.
// Panics are logged but do not propagate.
func invokeCallbackSafe[T any](cb func(Snapshot[T]), snap Snapshot[T], logger *slog.Logger) {
	defer func() {
		if rec := recover(); rec != nil {
			logger.Error("change callback panicked",
				"panic", rec,
				"generation", snap.Generation,
			)
		}
	}()
	cb(snap)
}

// copyMap returns a shallow copy of the map.
func copyMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	cp := make(map[string]string, len(m))
	for k, v := range m {
		cp[k] = v
	}
	return cp
}

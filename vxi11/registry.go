package vxi11

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/arloliu/go-vxi11/logger"
	"github.com/arloliu/go-vxi11/transport"
)

// entry is the registry record of one endpoint: its session and the handles
// opened on it. linkCount is never below len(handles).
type entry struct {
	endpoint  string
	session   transport.Session
	linkCount int
	handles   map[*Handle]struct{}
}

// Registry multiplexes caller links onto transport sessions, one session per
// distinct endpoint.
//
// All operations, including I/O, run under a single registry-wide lock. The
// transport materializes only one link at a time, so I/O to different
// endpoints cannot proceed in parallel without breaking the current-link
// switch performed before each write.
type Registry struct {
	ctx    context.Context
	cfg    *Config
	tr     transport.Transport
	logger logger.Logger

	mu      sync.Mutex
	entries *xsync.MapOf[string, *entry]
	slot    currentLinkSlot
	closed  bool

	// firstEndpoint is the first endpoint ever registered; a session for any
	// other endpoint turns on multiEndpoint, which never turns off.
	firstEndpoint string
	multiEndpoint atomic.Bool

	metrics Metrics
}

// NewRegistry creates a Registry that issues transport calls with ctx.
//
// ctx is passed to every transport call; cancelling it aborts calls in flight
// at the transport's discretion.
func NewRegistry(ctx context.Context, tr transport.Transport, cfg *Config) (*Registry, error) {
	if tr == nil {
		return nil, ErrTransportNil
	}
	if cfg == nil {
		return nil, ErrConfigNil
	}
	if ctx == nil {
		ctx = context.Background()
	}

	return &Registry{
		ctx:     ctx,
		cfg:     cfg,
		tr:      tr,
		logger:  cfg.logger,
		entries: xsync.NewMapOf[string, *entry](),
	}, nil
}

// Config returns the configuration of the registry.
func (r *Registry) Config() *Config { return r.cfg }

// GetLogger returns the logger of the registry.
func (r *Registry) GetLogger() logger.Logger { return r.logger }

// GetMetrics returns the metrics of the registry.
func (r *Registry) GetMetrics() *Metrics { return &r.metrics }

// MultiEndpoint reports whether more than one distinct endpoint has ever been
// registered. Once set it stays set for the lifetime of the registry.
func (r *Registry) MultiEndpoint() bool { return r.multiEndpoint.Load() }

// Len returns the number of endpoints with a live session.
func (r *Registry) Len() int { return r.entries.Size() }

// LinkCount returns the live link count of endpoint, 0 if it has no session.
func (r *Registry) LinkCount(endpoint string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.entries.Load(endpoint); ok {
		return e.linkCount
	}

	return 0
}

// Endpoints returns the endpoints with a live session in sorted order.
func (r *Registry) Endpoints() []string {
	endpoints := make([]string, 0, r.entries.Size())
	r.entries.Range(func(endpoint string, _ *entry) bool {
		endpoints = append(endpoints, endpoint)
		return true
	})
	sort.Strings(endpoints)

	return endpoints
}

// Open opens a link to endpoint and returns its handle.
//
// The first open of an endpoint creates its transport session; later opens
// reuse it. Opening a new endpoint when the registry is at capacity fails with
// ErrCapacityExceeded and leaves no trace in the registry.
func (r *Registry) Open(endpoint string) (*Handle, error) {
	h, _, err := r.OpenMulti(endpoint)
	return h, err
}

// OpenMulti is Open that also reports whether the registry is in
// multi-endpoint mode after the open.
func (r *Registry) OpenMulti(endpoint string) (*Handle, bool, error) {
	if endpoint == "" {
		return nil, r.MultiEndpoint(), ErrInvalidEndpoint
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, r.MultiEndpoint(), ErrRegistryClosed
	}

	e, ok := r.entries.Load(endpoint)
	if !ok {
		e, link, err := r.createEntry(endpoint)
		if err != nil {
			return nil, r.MultiEndpoint(), err
		}

		h := newHandle(r, endpoint, e.session, link)
		r.attach(e, h)

		return h, r.MultiEndpoint(), nil
	}

	link, err := r.openLink(e.session)
	if err != nil {
		return nil, r.MultiEndpoint(), err
	}

	e.linkCount++
	h := newHandle(r, endpoint, e.session, link)
	r.attach(e, h)

	return h, r.MultiEndpoint(), nil
}

// createEntry creates the session and first link for a new endpoint.
// On any failure nothing is left registered.
func (r *Registry) createEntry(endpoint string) (*entry, *transport.Link, error) {
	if r.entries.Size() >= r.cfg.capacity {
		return nil, nil, fmt.Errorf("%w: %d endpoints in use, cannot add %s", ErrCapacityExceeded, r.cfg.capacity, endpoint)
	}

	session, err := r.tr.CreateSession(r.ctx, endpoint)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %s: %w", ErrCreateSessionFailed, endpoint, err)
	}
	if session == nil {
		return nil, nil, fmt.Errorf("%w: %s: no session returned", ErrCreateSessionFailed, endpoint)
	}

	link, err := r.openLink(session)
	if err != nil {
		r.tr.DestroySession(session)
		return nil, nil, err
	}

	e := &entry{
		endpoint:  endpoint,
		session:   session,
		linkCount: 1,
		handles:   make(map[*Handle]struct{}),
	}
	r.entries.Store(endpoint, e)
	r.metrics.incSessionCreate()

	switch {
	case r.firstEndpoint == "":
		r.firstEndpoint = endpoint
	case r.firstEndpoint != endpoint && !r.multiEndpoint.Load():
		r.multiEndpoint.Store(true)
		r.logger.Info("second endpoint registered, enabling current link switching", "endpoint", endpoint)
	}

	r.logger.Debug("session created", "endpoint", endpoint)

	return e, link, nil
}

// attach registers h on e and makes its link current.
func (r *Registry) attach(e *entry, h *Handle) {
	e.handles[h] = struct{}{}
	r.slot.set(h)
	r.metrics.incLinkOpen()
	r.logger.Debug("link opened", "endpoint", e.endpoint, "handle", h.id, "link", h.link.ID, "linkCount", e.linkCount)
}

// openLink creates a link on session with the configured parameters.
func (r *Registry) openLink(session transport.Session) (*transport.Link, error) {
	link, err := r.tr.OpenLink(r.ctx, session, r.cfg.linkParams())
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrOpenLinkFailed, session.Endpoint(), err)
	}
	if link == nil {
		return nil, fmt.Errorf("%w: %s: no link returned", ErrOpenLinkFailed, session.Endpoint())
	}

	return link, nil
}

// Close closes the link of h, which must have been opened for endpoint.
//
// The session of endpoint is destroyed when h is its last link. A failure to
// destroy the link on the instrument is reported, but the handle is closed and
// counted as released regardless.
func (r *Registry) Close(endpoint string, h *Handle) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries.Load(endpoint)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownEndpoint, endpoint)
	}

	if h == nil {
		return ErrHandleNil
	}
	if h.registry != r || h.endpoint != endpoint {
		return fmt.Errorf("%w: %s is not a handle of %s", ErrHandleMismatch, h, endpoint)
	}
	if h.closed {
		return ErrHandleClosed
	}

	return r.closeHandle(e, h)
}

// CloseHandle closes h against the endpoint it was opened for.
func (r *Registry) CloseHandle(h *Handle) error {
	if h == nil {
		return ErrHandleNil
	}

	return r.Close(h.endpoint, h)
}

// closeHandle closes the link of h and, if it was the last one, the session of e.
func (r *Registry) closeHandle(e *entry, h *Handle) error {
	var errs []error

	if err := r.tr.CloseLink(r.ctx, e.session, h.link); err != nil {
		r.logger.Error("failed to close link", "endpoint", e.endpoint, "link", h.link.ID, "error", err)
		errs = append(errs, fmt.Errorf("%w: %s link %d: %w", ErrCloseLinkFailed, e.endpoint, h.link.ID, err))
	}

	h.closed = true
	r.slot.release(h)
	delete(e.handles, h)
	e.linkCount--
	r.metrics.incLinkClose()
	r.logger.Debug("link closed", "endpoint", e.endpoint, "handle", h.id, "linkCount", e.linkCount)

	if e.linkCount <= 0 {
		r.tr.DestroySession(e.session)
		r.entries.Delete(e.endpoint)
		r.metrics.incSessionDestroy()
		r.logger.Debug("session destroyed", "endpoint", e.endpoint)
	}

	return errors.Join(errs...)
}

// Shutdown closes every outstanding handle and session. The registry rejects
// further opens afterwards; closing handles that were already released by
// Shutdown reports ErrUnknownEndpoint.
func (r *Registry) Shutdown() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true

	var errs []error
	r.entries.Range(func(_ string, e *entry) bool {
		for h := range e.handles {
			if err := r.closeHandle(e, h); err != nil {
				errs = append(errs, err)
			}
		}

		return true
	})

	return errors.Join(errs...)
}

// checkHandle validates h for I/O. It must be called with r.mu held.
func (r *Registry) checkHandle(h *Handle) error {
	switch {
	case h == nil:
		return ErrHandleNil
	case h.registry != r:
		return fmt.Errorf("%w: %s belongs to another registry", ErrHandleMismatch, h)
	case h.closed:
		return ErrHandleClosed
	case r.closed:
		return ErrRegistryClosed
	}

	return nil
}

// frameLimit returns the fragment size limit of h. It must be called with r.mu held.
func (r *Registry) frameLimit(h *Handle) int {
	limit := int(h.link.MaxRecvSize)
	if limit <= 0 {
		limit = r.cfg.defaultFrameLimit
	}
	if r.cfg.maxFrameSize > 0 && limit > r.cfg.maxFrameSize {
		limit = r.cfg.maxFrameSize
	}

	return limit
}

// reassert re-creates the link of h so it becomes the transport's current
// link. The superseded link is closed on a best-effort basis.
// It must be called with r.mu held.
func (r *Registry) reassert(h *Handle) error {
	link, err := r.openLink(h.session)
	if err != nil {
		return err
	}

	old := h.link
	h.link = link
	r.slot.set(h)
	r.metrics.incLinkReassert()
	r.logger.Debug("current link reasserted", "endpoint", h.endpoint, "handle", h.id, "link", link.ID)

	if old != nil && old.ID != link.ID {
		if err := r.tr.CloseLink(r.ctx, h.session, old); err != nil {
			r.logger.Debug("failed to close superseded link", "endpoint", h.endpoint, "link", old.ID, "error", err)
		}
	}

	return nil
}

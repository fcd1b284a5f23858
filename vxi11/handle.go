package vxi11

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/arloliu/go-vxi11/transport"
)

// Handle is a caller-owned reference to one link on an instrument.
//
// A Handle is obtained from Registry.Open and must be released with
// Registry.Close. It does not own the underlying session; the registry
// destroys the session when the last handle for its endpoint is closed.
//
// A Handle is meant to be used by one caller at a time. All mutable state is
// guarded by the owning registry.
type Handle struct {
	id       uuid.UUID
	endpoint string
	registry *Registry
	session  transport.Session
	link     *transport.Link
	closed   bool
}

func newHandle(r *Registry, endpoint string, session transport.Session, link *transport.Link) *Handle {
	return &Handle{
		id:       uuid.New(),
		endpoint: endpoint,
		registry: r,
		session:  session,
		link:     link,
	}
}

// ID returns the identity of the handle, unique within the process.
func (h *Handle) ID() uuid.UUID { return h.id }

// Endpoint returns the endpoint the handle was opened for.
func (h *Handle) Endpoint() string { return h.endpoint }

// LinkID returns the identifier of the link currently backing the handle.
//
// The identifier changes when the registry re-creates the link to make it current.
func (h *Handle) LinkID() int32 {
	h.registry.mu.Lock()
	defer h.registry.mu.Unlock()

	return h.link.ID
}

// FrameLimit returns the largest fragment the registry writes on this handle.
func (h *Handle) FrameLimit() int {
	h.registry.mu.Lock()
	defer h.registry.mu.Unlock()

	return h.registry.frameLimit(h)
}

// Closed reports whether the handle has been closed.
func (h *Handle) Closed() bool {
	h.registry.mu.Lock()
	defer h.registry.mu.Unlock()

	return h.closed
}

func (h *Handle) String() string {
	return fmt.Sprintf("vxi11.Handle{endpoint=%s id=%s}", h.endpoint, h.id)
}

// currentLinkSlot records which handle's link the transport has materialized last.
//
// The transport keeps a single implicit current link, so with more than one
// endpoint in use a link must be re-created before it can be written to again.
// The slot is only accessed with the registry lock held.
type currentLinkSlot struct {
	handle *Handle
}

func (s *currentLinkSlot) holds(h *Handle) bool { return s.handle == h }

func (s *currentLinkSlot) set(h *Handle) { s.handle = h }

func (s *currentLinkSlot) release(h *Handle) {
	if s.handle == h {
		s.handle = nil
	}
}

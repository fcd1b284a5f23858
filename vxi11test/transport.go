// Package vxi11test provides an in-memory transport.Transport backed by
// simulated instruments, for testing code built on the vxi11 package.
//
// The simulated transport reproduces the behaviors the session layer has to
// cope with: a per-link write size limit, responses split into several read
// chunks, calls dropped without reply, explicit device error codes, and a
// single process-wide current link.
package vxi11test

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/arloliu/go-vxi11/transport"
)

var (
	// ErrNoInstrument is returned by CreateSession for an endpoint without an instrument.
	ErrNoInstrument = errors.New("vxi11test: no instrument at endpoint")

	// ErrSessionInvalid is returned for calls on a destroyed or superseded session.
	ErrSessionInvalid = errors.New("vxi11test: session is not valid")

	// ErrUnknownLink is returned by CloseLink for a link that is not open.
	ErrUnknownLink = errors.New("vxi11test: link is not open")
)

// Op names a transport call in the call log.
type Op string

const (
	OpCreateSession  Op = "create_session"
	OpOpenLink       Op = "open_link"
	OpCloseLink      Op = "close_link"
	OpDestroySession Op = "destroy_session"
	OpWrite          Op = "write"
	OpRead           Op = "read"
)

// Call is one entry of the call log.
type Call struct {
	Op       Op
	Endpoint string
	LinkID   int32
	// Data is a copy of the written fragment for OpWrite.
	Data []byte
	// End is the END flag of an OpWrite.
	End bool
}

type session struct {
	id       int
	endpoint string
	valid    bool
}

func (s *session) Endpoint() string { return s.endpoint }

type linkState struct {
	session *session
	open    bool
}

// Transport is an in-memory transport.Transport.
//
// With the current link rule enabled (the default), a write or read on a link
// belonging to another session than the most recently created link fails with
// the invalid link identifier device error, like a transport that keeps a
// single static link.
type Transport struct {
	mu sync.Mutex

	instruments *xsync.MapOf[string, *Instrument]
	sessions    map[string]*session
	links       map[int32]*linkState

	nextSessionID int
	nextLinkID    int32
	current       *linkState

	singleCurrentLink bool
	createErrs        map[string]error
	openLinkErrs      map[string]error
	closeLinkErrs     map[string]error

	calls []Call
}

var _ transport.Transport = (*Transport)(nil)

// NewTransport creates an empty simulated transport.
func NewTransport() *Transport {
	return &Transport{
		instruments:       xsync.NewMapOf[string, *Instrument](),
		sessions:          make(map[string]*session),
		links:             make(map[int32]*linkState),
		nextLinkID:        1,
		singleCurrentLink: true,
		createErrs:        make(map[string]error),
		openLinkErrs:      make(map[string]error),
		closeLinkErrs:     make(map[string]error),
	}
}

// AddInstrument attaches a simulated instrument at endpoint and returns it.
func (t *Transport) AddInstrument(endpoint string, opts ...InstrumentOption) *Instrument {
	inst := newInstrument(endpoint, opts...)
	t.instruments.Store(endpoint, inst)

	return inst
}

// Instrument returns the instrument at endpoint, nil if there is none.
func (t *Transport) Instrument(endpoint string) *Instrument {
	inst, _ := t.instruments.Load(endpoint)
	return inst
}

// SetSingleCurrentLink enables or disables the current link rule.
func (t *Transport) SetSingleCurrentLink(enabled bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.singleCurrentLink = enabled
}

// FailCreateSession makes every CreateSession for endpoint fail with err. A nil err clears it.
func (t *Transport) FailCreateSession(endpoint string, err error) {
	t.setFault(t.createErrs, endpoint, err)
}

// FailOpenLink makes every OpenLink for endpoint fail with err. A nil err clears it.
func (t *Transport) FailOpenLink(endpoint string, err error) {
	t.setFault(t.openLinkErrs, endpoint, err)
}

// FailCloseLink makes every CloseLink for endpoint fail with err. A nil err clears it.
func (t *Transport) FailCloseLink(endpoint string, err error) {
	t.setFault(t.closeLinkErrs, endpoint, err)
}

func (t *Transport) setFault(faults map[string]error, endpoint string, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err == nil {
		delete(faults, endpoint)
		return
	}
	faults[endpoint] = err
}

// Calls returns a copy of the call log.
func (t *Transport) Calls() []Call {
	t.mu.Lock()
	defer t.mu.Unlock()

	return append([]Call(nil), t.calls...)
}

// CountCalls returns the number of logged calls of op, for any endpoint if endpoint is empty.
func (t *Transport) CountCalls(op Op, endpoint string) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	n := 0
	for _, c := range t.calls {
		if c.Op == op && (endpoint == "" || c.Endpoint == endpoint) {
			n++
		}
	}

	return n
}

// ResetCalls clears the call log.
func (t *Transport) ResetCalls() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.calls = nil
}

// LiveSessions returns the number of valid sessions.
func (t *Transport) LiveSessions() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	return len(t.sessions)
}

// LiveLinks returns the number of open links on the session of endpoint.
func (t *Transport) LiveLinks(endpoint string) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	n := 0
	for _, l := range t.links {
		if l.open && l.session.valid && l.session.endpoint == endpoint {
			n++
		}
	}

	return n
}

// CurrentLink returns the ID of the most recently created link, 0 if none.
func (t *Transport) CurrentLink() int32 {
	t.mu.Lock()
	defer t.mu.Unlock()

	for id, l := range t.links {
		if l == t.current {
			return id
		}
	}

	return 0
}

// CreateSession creates a session for endpoint. An existing session for the
// same endpoint is invalidated.
func (t *Transport) CreateSession(_ context.Context, endpoint string) (transport.Session, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.calls = append(t.calls, Call{Op: OpCreateSession, Endpoint: endpoint})

	if err := t.createErrs[endpoint]; err != nil {
		return nil, err
	}
	if _, ok := t.instruments.Load(endpoint); !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoInstrument, endpoint)
	}

	if old, ok := t.sessions[endpoint]; ok {
		old.valid = false
	}

	t.nextSessionID++
	s := &session{id: t.nextSessionID, endpoint: endpoint, valid: true}
	t.sessions[endpoint] = s

	return s, nil
}

// OpenLink creates a link on s and makes it the current link.
func (t *Transport) OpenLink(_ context.Context, s transport.Session, params transport.LinkParams) (*transport.Link, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	sess, err := t.validSession(s)
	t.calls = append(t.calls, Call{Op: OpOpenLink, Endpoint: s.Endpoint()})
	if err != nil {
		return nil, err
	}
	if err := t.openLinkErrs[sess.endpoint]; err != nil {
		return nil, err
	}

	inst, _ := t.instruments.Load(sess.endpoint)
	if params.Device != inst.device {
		return nil, fmt.Errorf("vxi11test: create_link: device error %d (%s)", transport.InvalidAddress, transport.InvalidAddress)
	}

	id := t.nextLinkID
	t.nextLinkID++

	state := &linkState{session: sess, open: true}
	t.links[id] = state
	t.current = state

	return &transport.Link{ID: id, MaxRecvSize: inst.maxRecvSize}, nil
}

// CloseLink destroys link.
func (t *Transport) CloseLink(_ context.Context, s transport.Session, link *transport.Link) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.calls = append(t.calls, Call{Op: OpCloseLink, Endpoint: s.Endpoint(), LinkID: link.ID})

	state, ok := t.links[link.ID]
	if !ok || !state.open {
		return fmt.Errorf("%w: %d", ErrUnknownLink, link.ID)
	}
	state.open = false

	if err := t.closeLinkErrs[s.Endpoint()]; err != nil {
		return err
	}

	return nil
}

// DestroySession releases s and every link on it.
func (t *Transport) DestroySession(s transport.Session) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.calls = append(t.calls, Call{Op: OpDestroySession, Endpoint: s.Endpoint()})

	sess, ok := s.(*session)
	if !ok {
		return
	}
	sess.valid = false
	if cur, ok := t.sessions[sess.endpoint]; ok && cur == sess {
		delete(t.sessions, sess.endpoint)
	}
	for _, l := range t.links {
		if l.session == sess {
			l.open = false
		}
	}
}

// Write delivers one fragment to the instrument of s.
func (t *Transport) Write(_ context.Context, s transport.Session, link *transport.Link, params transport.WriteParams) (*transport.WriteResponse, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.calls = append(t.calls, Call{
		Op:       OpWrite,
		Endpoint: s.Endpoint(),
		LinkID:   link.ID,
		Data:     append([]byte(nil), params.Data...),
		End:      params.End,
	})

	inst, code, err := t.linkCheck(s, link)
	if err != nil {
		return nil, err
	}
	if code != transport.NoError {
		return &transport.WriteResponse{Error: code}, nil
	}

	return inst.write(params), nil
}

// Read takes one response chunk from the instrument of s.
func (t *Transport) Read(_ context.Context, s transport.Session, link *transport.Link, params transport.ReadParams) (*transport.ReadResponse, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.calls = append(t.calls, Call{Op: OpRead, Endpoint: s.Endpoint(), LinkID: link.ID})

	inst, code, err := t.linkCheck(s, link)
	if err != nil {
		return nil, err
	}
	if code != transport.NoError {
		return &transport.ReadResponse{Error: code}, nil
	}

	return inst.read(params), nil
}

func (t *Transport) validSession(s transport.Session) (*session, error) {
	sess, ok := s.(*session)
	if !ok || !sess.valid {
		return nil, fmt.Errorf("%w: %s", ErrSessionInvalid, s.Endpoint())
	}

	return sess, nil
}

// linkCheck validates the session and link of an I/O call. It reports a device
// error code for links that are closed, unknown or not current.
func (t *Transport) linkCheck(s transport.Session, link *transport.Link) (*Instrument, transport.ErrorCode, error) {
	sess, err := t.validSession(s)
	if err != nil {
		return nil, transport.NoError, err
	}

	inst, _ := t.instruments.Load(sess.endpoint)

	state, ok := t.links[link.ID]
	if !ok || !state.open || state.session != sess {
		return inst, transport.InvalidLinkIdentifier, nil
	}
	if t.singleCurrentLink && t.current != nil && t.current.session != sess {
		return inst, transport.InvalidLinkIdentifier, nil
	}

	return inst, transport.NoError, nil
}

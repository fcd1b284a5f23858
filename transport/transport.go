package transport

import (
	"context"
	"time"
)

// DefaultDevice is the logical sub-device name addressed by create_link.
const DefaultDevice = "inst0"

// Read termination reasons reported by device_read. Several bits may be set at once.
const (
	// ReasonRequestCount is set when the requested number of bytes was transferred.
	ReasonRequestCount uint32 = 1 << 0
	// ReasonTermChar is set when the termination character was seen.
	ReasonTermChar uint32 = 1 << 1
	// ReasonEnd is set when the instrument marked the end of the response message.
	ReasonEnd uint32 = 1 << 2
)

// Session is one transport-level client context bound to a single endpoint.
//
// Implementations are opaque to the session layer; only the endpoint is inspected.
type Session interface {
	// Endpoint returns the network identity the session was created for.
	Endpoint() string
}

// Link is a logical link to a sub-device, as returned by create_link.
type Link struct {
	// ID is the link identifier assigned by the instrument.
	ID int32
	// MaxRecvSize is the largest data size the instrument accepts in one device_write.
	MaxRecvSize uint32
	// AbortPort is the port of the abort channel, zero if unused.
	AbortPort uint16
}

// LinkParams are the arguments to create_link.
type LinkParams struct {
	Device      string
	Lock        bool
	LockTimeout time.Duration
}

// WriteParams are the arguments to device_write.
type WriteParams struct {
	Data []byte
	// End marks the last fragment of a message (the END flag).
	End         bool
	IOTimeout   time.Duration
	LockTimeout time.Duration
}

// WriteResponse is the reply to device_write.
type WriteResponse struct {
	// Size is the number of bytes the instrument accepted.
	Size  uint32
	Error ErrorCode
}

// ReadParams are the arguments to device_read.
type ReadParams struct {
	RequestSize uint32
	IOTimeout   time.Duration
	LockTimeout time.Duration
	// TermChar terminates the read when TermCharSet is true.
	TermChar    byte
	TermCharSet bool
}

// ReadResponse is the reply to device_read.
type ReadResponse struct {
	Data   []byte
	Reason uint32
	Error  ErrorCode
}

// Ended reports whether the response carries the final chunk of a message.
func (r *ReadResponse) Ended() bool {
	return r.Reason >= ReasonEnd
}

// Transport exposes the VXI-11 core-channel primitives the session layer is built on.
//
// Write and Read return (nil, nil) when the instrument dropped the call without replying.
type Transport interface {
	// CreateSession creates a client context for endpoint.
	CreateSession(ctx context.Context, endpoint string) (Session, error)
	// OpenLink creates a link on session and returns it with the negotiated frame limit.
	OpenLink(ctx context.Context, session Session, params LinkParams) (*Link, error)
	// CloseLink destroys link.
	CloseLink(ctx context.Context, session Session, link *Link) error
	// DestroySession releases session. It never fails.
	DestroySession(session Session)
	// Write sends one fragment on link.
	Write(ctx context.Context, session Session, link *Link, params WriteParams) (*WriteResponse, error)
	// Read receives one chunk on link.
	Read(ctx context.Context, session Session, link *Link, params ReadParams) (*ReadResponse, error)
}

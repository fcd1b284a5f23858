package vxi11

import (
	"errors"
	"fmt"

	"github.com/arloliu/go-vxi11/block"
	"github.com/arloliu/go-vxi11/transport"
)

var (
	// ErrConfigNil indicates that a nil Config was provided.
	ErrConfigNil = errors.New("vxi11: config is nil")

	// ErrTransportNil indicates that a nil Transport was provided.
	ErrTransportNil = errors.New("vxi11: transport is nil")

	// ErrRegistryClosed indicates that the registry has been shut down.
	ErrRegistryClosed = errors.New("vxi11: registry closed")
)

// Registry errors.
var (
	// ErrCapacityExceeded indicates that the registry already holds a session for the
	// configured maximum number of distinct endpoints.
	ErrCapacityExceeded = errors.New("vxi11: endpoint capacity exceeded")

	// ErrUnknownEndpoint indicates a close for an endpoint that has no open session.
	ErrUnknownEndpoint = errors.New("vxi11: no session for endpoint")

	// ErrInvalidEndpoint indicates an empty endpoint.
	ErrInvalidEndpoint = errors.New("vxi11: invalid endpoint")

	// ErrHandleNil indicates that a nil Handle was provided.
	ErrHandleNil = errors.New("vxi11: handle is nil")

	// ErrHandleClosed indicates use of a handle after it was closed.
	ErrHandleClosed = errors.New("vxi11: handle closed")

	// ErrHandleMismatch indicates a handle that belongs to another endpoint or registry.
	ErrHandleMismatch = errors.New("vxi11: handle does not belong to endpoint")

	// ErrCreateSessionFailed indicates the transport could not create a session.
	ErrCreateSessionFailed = errors.New("vxi11: create session failed")

	// ErrOpenLinkFailed indicates the transport could not create a link.
	ErrOpenLinkFailed = errors.New("vxi11: open link failed")

	// ErrCloseLinkFailed indicates the transport failed to destroy a link.
	// The link is considered closed regardless.
	ErrCloseLinkFailed = errors.New("vxi11: close link failed")
)

// I/O errors.
var (
	// ErrWriteFailed matches every *WriteError.
	ErrWriteFailed = errors.New("vxi11: write failed")

	// ErrReadFailed matches every *ReadError.
	ErrReadFailed = errors.New("vxi11: read failed")

	// ErrNullWriteResponse indicates the instrument dropped a write without replying.
	// It is transient; the write may or may not have been accepted.
	ErrNullWriteResponse = errors.New("vxi11: null write response")

	// ErrNullReadResponse indicates the instrument dropped a read without replying,
	// usually because it was too busy to register the preceding query.
	ErrNullReadResponse = errors.New("vxi11: null read response")

	// ErrWriteStalled indicates the instrument acknowledged a fragment without accepting any byte of it.
	ErrWriteStalled = errors.New("vxi11: write accepted no data")

	// ErrBufferTooSmall indicates the response does not fit the receive buffer.
	ErrBufferTooSmall = errors.New("vxi11: receive buffer too small")

	// ErrTransportFailed wraps an RPC-level failure reported by the transport.
	ErrTransportFailed = errors.New("vxi11: transport failure")

	// ErrMalformedBlock indicates an invalid definite-length block.
	ErrMalformedBlock = block.ErrMalformedBlock
)

// Query errors.
var (
	// ErrQuerySendFailed indicates the command of a query could not be sent.
	ErrQuerySendFailed = errors.New("vxi11: query send failed")

	// ErrQueryReceiveFailed indicates the response of a query could not be received.
	ErrQueryReceiveFailed = errors.New("vxi11: query receive failed")

	// ErrQueryRetryExhausted indicates every query attempt ended with a null read response.
	ErrQueryRetryExhausted = errors.New("vxi11: query retries exhausted")

	// ErrInvalidNumber indicates a numeric query response that could not be parsed.
	ErrInvalidNumber = errors.New("vxi11: response is not a number")
)

// WriteError is an explicit error code returned by the instrument for a write.
type WriteError struct {
	Code transport.ErrorCode
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("vxi11: write failed: device error %d (%s)", int32(e.Code), e.Code)
}

func (e *WriteError) Is(target error) bool { return target == ErrWriteFailed }

// Timeout reports whether the instrument timed out.
func (e *WriteError) Timeout() bool { return e.Code.IsTimeout() }

// ReadError is an explicit error code returned by the instrument for a read.
type ReadError struct {
	Code transport.ErrorCode
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("vxi11: read failed: device error %d (%s)", int32(e.Code), e.Code)
}

func (e *ReadError) Is(target error) bool { return target == ErrReadFailed }

// Timeout reports whether the read timed out on the instrument.
func (e *ReadError) Timeout() bool { return e.Code.IsTimeout() }

// IsTimeout reports whether err carries an instrument I/O timeout.
func IsTimeout(err error) bool {
	var t interface{ Timeout() bool }
	return errors.As(err, &t) && t.Timeout()
}

// IsTransient reports whether err is one of the null response conditions,
// which a caller may legitimately retry.
func IsTransient(err error) bool {
	return errors.Is(err, ErrNullWriteResponse) || errors.Is(err, ErrNullReadResponse)
}

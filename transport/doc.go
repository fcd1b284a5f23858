// Package transport defines the boundary between the vxi11 session layer and the
// RPC stubs that carry VXI-11 core-channel calls (create_link, destroy_link,
// device_write, device_read) to an instrument.
//
// The RPC wire protocol itself is not implemented here. A Transport
// implementation wraps whatever ONC RPC client the application uses; the
// [github.com/arloliu/go-vxi11/vxi11test] package provides an in-memory one.
//
// # Null Responses
//
// An instrument that is busy may drop a call without replying. A Transport reports
// that by returning a nil response together with a nil error from Write or Read.
// A non-nil error means the RPC itself failed and is never treated as a null response.
package transport

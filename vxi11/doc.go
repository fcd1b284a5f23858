// Package vxi11 implements the client session layer of the VXI-11 instrument
// control protocol on top of a [transport.Transport].
//
// # Registry
//
// A [Registry] maps each instrument endpoint to a single transport session and
// hands out one [Handle] per Open. Several handles may share a session; the
// session is destroyed when the last of them is closed. A registry holds at most
// a configured number of distinct endpoints.
//
//	cfg, _ := vxi11.NewConfig(vxi11.WithCapacity(16))
//	reg, _ := vxi11.NewRegistry(ctx, rpcTransport, cfg)
//
//	h, err := reg.Open("10.0.0.5")
//	if err != nil {
//		return err
//	}
//	defer reg.Close("10.0.0.5", h)
//
//	idn, err := reg.QueryString(h, "*IDN?\n", 256, 0)
//
// # Current Link
//
// The transport materializes one link at a time. As soon as a second distinct
// endpoint is registered, every Send re-creates the link of its handle before
// the first fragment, and every Receive does so when another handle's link is
// current. Because of this all I/O of a registry is serialized under one lock.
//
// # Fragmentation
//
// Send splits a message into fragments no larger than the frame limit the
// instrument negotiated for the link. Receive collects response chunks until
// the instrument signals the end of the message.
//
// # Transient Errors
//
// An instrument may drop a call without replying. Such writes and reads fail
// with [ErrNullWriteResponse] and [ErrNullReadResponse]; they are distinct from
// explicit device errors ([WriteError], [ReadError]) and are the only conditions
// [Registry.Query] recovers from by itself.
package vxi11

package vxi11

import (
	"fmt"
	"time"

	"github.com/arloliu/go-vxi11/block"
	"github.com/arloliu/go-vxi11/internal/pool"
	"github.com/arloliu/go-vxi11/transport"
)

// Send writes data to the instrument of h as one message.
//
// data is split into fragments no larger than the frame limit of the link; the
// last fragment carries the END flag. An empty data issues no write at all.
//
// A dropped write is reported as ErrNullWriteResponse, an explicit device
// error as a *WriteError. Either way the remaining fragments are not sent.
func (r *Registry) Send(h *Handle, data []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.checkHandle(h); err != nil {
		return err
	}

	return r.send(h, data)
}

// SendString writes cmd to the instrument of h. See Send.
func (r *Registry) SendString(h *Handle, cmd string) error {
	return r.Send(h, []byte(cmd))
}

// SendBlock writes header followed by payload framed as a definite-length block,
// e.g. SendBlock(h, ":WLIST:WAV:DATA ", samples).
func (r *Registry) SendBlock(h *Handle, header string, payload []byte) error {
	data, err := block.Encode([]byte(header), payload)
	if err != nil {
		return err
	}

	return r.Send(h, data)
}

// send is Send with r.mu held.
func (r *Registry) send(h *Handle, data []byte) error {
	if len(data) == 0 {
		return nil
	}

	if r.multiEndpoint.Load() {
		if err := r.reassert(h); err != nil {
			return err
		}
	}

	limit := r.frameLimit(h)
	params := transport.WriteParams{
		IOTimeout:   r.cfg.ioTimeout,
		LockTimeout: r.cfg.lockTimeout,
	}

	for remaining := data; len(remaining) > 0; {
		n := min(limit, len(remaining))
		params.Data = remaining[:n]
		params.End = len(remaining) <= limit

		resp, err := r.tr.Write(r.ctx, h.session, h.link, params)
		if err != nil {
			return fmt.Errorf("%w: write to %s: %w", ErrTransportFailed, h.endpoint, err)
		}
		if resp == nil {
			r.metrics.incNullWriteResp()
			return fmt.Errorf("%w: %s, %d of %d bytes sent", ErrNullWriteResponse, h.endpoint, len(data)-len(remaining), len(data))
		}
		if resp.Error != transport.NoError {
			r.metrics.incDeviceErr()
			r.logger.Error("write error", "endpoint", h.endpoint, "link", h.link.ID, "code", int32(resp.Error), "reason", resp.Error.String())

			return &WriteError{Code: resp.Error}
		}

		accepted := min(int(resp.Size), n)
		if accepted == 0 {
			return fmt.Errorf("%w: %s, %d of %d bytes sent", ErrWriteStalled, h.endpoint, len(data)-len(remaining), len(data))
		}

		remaining = remaining[accepted:]
		r.metrics.addFragmentSend(accepted)
	}

	return nil
}

// Receive reads one response message from the instrument of h into buf and
// returns its length.
//
// len(buf) is the maximum response size. The response may arrive in several
// chunks; they are collected until the instrument marks the end of the message.
// If the response does not fit, Receive fails with ErrBufferTooSmall and buf is
// left untouched. A timeout of zero selects the configured read timeout.
func (r *Registry) Receive(h *Handle, buf []byte, timeout time.Duration) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.checkHandle(h); err != nil {
		return 0, err
	}

	return r.receive(h, buf, timeout)
}

// ReceiveBytes reads one response message of at most maxLen bytes. See Receive.
func (r *Registry) ReceiveBytes(h *Handle, maxLen int, timeout time.Duration) ([]byte, error) {
	buf := make([]byte, maxLen)

	n, err := r.Receive(h, buf, timeout)
	if err != nil {
		return nil, err
	}

	return buf[:n], nil
}

// ReceiveBlock reads a response holding a definite-length block of at most
// maxPayload bytes and returns its payload.
func (r *Registry) ReceiveBlock(h *Handle, maxPayload int, timeout time.Duration) ([]byte, error) {
	// room for the largest header and a trailing terminator
	raw, err := r.ReceiveBytes(h, maxPayload+block.MaxHeaderSize+1, timeout)
	if err != nil {
		return nil, err
	}

	return block.Decode(raw)
}

// receive is Receive with r.mu held.
func (r *Registry) receive(h *Handle, buf []byte, timeout time.Duration) (int, error) {
	if timeout <= 0 {
		timeout = r.cfg.readTimeout
	}

	if r.multiEndpoint.Load() && !r.slot.holds(h) {
		if err := r.reassert(h); err != nil {
			return 0, err
		}
	}

	maxLen := len(buf)
	params := transport.ReadParams{
		RequestSize: uint32(maxLen), //nolint:gosec
		IOTimeout:   timeout,
		LockTimeout: timeout,
	}

	// collect into a staging buffer so a failed receive never touches buf
	staging := pool.GetBuffer(maxLen)
	defer pool.PutBuffer(staging)

	for {
		resp, err := r.tr.Read(r.ctx, h.session, h.link, params)
		if err != nil {
			return 0, fmt.Errorf("%w: read from %s: %w", ErrTransportFailed, h.endpoint, err)
		}
		if resp == nil {
			r.metrics.incNullReadResp()
			return 0, fmt.Errorf("%w: %s", ErrNullReadResponse, h.endpoint)
		}
		if resp.Error != transport.NoError {
			r.metrics.incDeviceErr()
			r.logger.Error("read error", "endpoint", h.endpoint, "link", h.link.ID, "code", int32(resp.Error), "reason", resp.Error.String())

			return 0, &ReadError{Code: resp.Error}
		}

		r.metrics.incFragmentRecv()

		if need := len(*staging) + len(resp.Data); need > maxLen {
			r.logger.Error("receive buffer too small", "endpoint", h.endpoint, "need", need, "have", maxLen)
			return 0, fmt.Errorf("%w: need at least %d bytes, have %d", ErrBufferTooSmall, need, maxLen)
		}
		*staging = append(*staging, resp.Data...)

		if resp.Ended() {
			break
		}
	}

	n := copy(buf, *staging)
	r.metrics.addByteRecv(n)

	return n, nil
}

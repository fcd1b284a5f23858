package vxi11

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/arloliu/go-vxi11/internal/pool"
)

// ScratchSize is the response buffer size of QueryInt and QueryFloat.
const ScratchSize = 50

// Query sends cmd to the instrument of h and returns its response of at most maxLen bytes.
//
// The write and the read run as one unit: no other I/O on the registry can
// come between them.
//
// A dropped write is not fatal: the instrument may have accepted the command,
// so the response is read anyway. A dropped read means the instrument was too
// busy to register the command, and the whole write and read cycle is repeated,
// up to the configured query retry limit. Every other failure is returned
// wrapped in ErrQuerySendFailed or ErrQueryReceiveFailed.
func (r *Registry) Query(h *Handle, cmd []byte, maxLen int, timeout time.Duration) ([]byte, error) {
	buf := make([]byte, maxLen)

	n, err := r.QueryInto(h, cmd, buf, timeout)
	if err != nil {
		return nil, err
	}

	return buf[:n], nil
}

// QueryString is Query for text commands and responses.
func (r *Registry) QueryString(h *Handle, cmd string, maxLen int, timeout time.Duration) (string, error) {
	resp, err := r.Query(h, []byte(cmd), maxLen, timeout)
	if err != nil {
		return "", err
	}

	return string(resp), nil
}

// QueryInto is Query reading the response into buf. It returns the response length.
func (r *Registry) QueryInto(h *Handle, cmd []byte, buf []byte, timeout time.Duration) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.checkHandle(h); err != nil {
		return 0, err
	}

	r.metrics.incQuery()

	for attempt := 1; ; attempt++ {
		err := r.send(h, cmd)
		if err != nil {
			if !errors.Is(err, ErrNullWriteResponse) {
				return 0, fmt.Errorf("%w: %w", ErrQuerySendFailed, err)
			}
			r.logger.Info("null write response in query, reading reply anyway", "endpoint", h.endpoint, "attempt", attempt)
		}

		n, err := r.receive(h, buf, timeout)
		if err == nil {
			return n, nil
		}
		if !errors.Is(err, ErrNullReadResponse) {
			return 0, fmt.Errorf("%w: %w", ErrQueryReceiveFailed, err)
		}

		limit := r.cfg.queryRetryLimit
		if limit >= 0 && attempt > limit {
			return 0, fmt.Errorf("%w: %d attempts: %w", ErrQueryRetryExhausted, attempt, err)
		}

		r.metrics.incQueryRetry()
		r.logger.Info("null read response in query, resending", "endpoint", h.endpoint, "attempt", attempt)

		if !pool.Sleep(r.ctx, r.cfg.queryRetryBackoff) {
			return 0, fmt.Errorf("%w: %w", ErrQueryReceiveFailed, r.ctx.Err())
		}
	}
}

// QueryInt sends cmd and parses the response as an integer.
//
// The response must fit ScratchSize bytes. Only the leading value of the
// response is parsed, so "+5\n" and "12,OK" both succeed. A floating-point
// response is truncated toward zero. On any failure QueryInt logs a warning and
// returns 0 with the error.
func (r *Registry) QueryInt(h *Handle, cmd string, timeout time.Duration) (int64, error) {
	resp, err := r.queryScratch(h, cmd, timeout)
	if err != nil {
		return 0, err
	}

	token := numericToken(resp)
	if v, err := strconv.ParseInt(token, 10, 64); err == nil {
		return v, nil
	}

	f, err := strconv.ParseFloat(token, 64)
	if err != nil {
		r.logger.Warn("integer query returned no number, returning 0", "endpoint", h.endpoint, "cmd", cmd, "response", resp)
		return 0, fmt.Errorf("%w: %q", ErrInvalidNumber, resp)
	}

	return int64(f), nil
}

// QueryFloat sends cmd and parses the response as a floating-point number.
// See QueryInt.
func (r *Registry) QueryFloat(h *Handle, cmd string, timeout time.Duration) (float64, error) {
	resp, err := r.queryScratch(h, cmd, timeout)
	if err != nil {
		return 0, err
	}

	f, err := strconv.ParseFloat(numericToken(resp), 64)
	if err != nil {
		r.logger.Warn("float query returned no number, returning 0", "endpoint", h.endpoint, "cmd", cmd, "response", resp)
		return 0, fmt.Errorf("%w: %q", ErrInvalidNumber, resp)
	}

	return f, nil
}

// queryScratch runs a query into a ScratchSize buffer and returns the response text.
func (r *Registry) queryScratch(h *Handle, cmd string, timeout time.Duration) (string, error) {
	var scratch [ScratchSize]byte

	n, err := r.QueryInto(h, []byte(cmd), scratch[:], timeout)
	if err != nil {
		endpoint := ""
		if h != nil {
			endpoint = h.endpoint
		}
		r.logger.Warn("numeric query failed, returning 0", "endpoint", endpoint, "cmd", cmd, "error", err)

		return "", err
	}

	return string(scratch[:n]), nil
}

// numericToken returns the leading value of a response, stopping at whitespace
// or a ',' or ';' separator.
func numericToken(resp string) string {
	resp = strings.TrimSpace(resp)
	if i := strings.IndexAny(resp, ",; \t\r\n"); i >= 0 {
		resp = resp[:i]
	}

	return resp
}

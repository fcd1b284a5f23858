package vxi11

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/arloliu/go-vxi11/logger"
	"github.com/arloliu/go-vxi11/transport"
	"github.com/arloliu/go-vxi11/vxi11test"
)

func TestQuery_Success(t *testing.T) {
	require := require.New(t)

	r, tr := newTestRegistry(t)
	inst := tr.AddInstrument("10.0.0.5")
	inst.QueueResponse([]byte("ACME,"), []byte("MODEL1\n"))

	h, err := r.Open("10.0.0.5")
	require.NoError(err)

	buf := make([]byte, 64)
	n, err := r.QueryInto(h, []byte("*IDN?\n"), buf, 0)
	require.NoError(err)
	require.Equal(12, n)
	require.Equal("ACME,MODEL1\n", string(buf[:n]))
	require.Equal([][]byte{[]byte("*IDN?\n")}, inst.Messages())

	inst.Respond("*IDN?\n", "ACME,MODEL1\n")
	resp, err := r.QueryString(h, "*IDN?\n", 64, time.Second)
	require.NoError(err)
	require.Equal("ACME,MODEL1\n", resp)
	require.Equal(uint64(2), r.GetMetrics().QueryCount.Load())
	require.Equal(uint64(0), r.GetMetrics().QueryRetryCount.Load())
}

func TestQuery_NullWriteResponse(t *testing.T) {
	require := require.New(t)

	r, tr := newTestRegistry(t)
	inst := tr.AddInstrument("10.0.0.5")
	inst.Respond("MEAS?\n", "1.5\n")

	h, err := r.Open("10.0.0.5")
	require.NoError(err)

	// the command reached the instrument, only the reply was lost
	inst.DropWriteAcks(1)
	resp, err := r.QueryString(h, "MEAS?\n", 64, 0)
	require.NoError(err)
	require.Equal("1.5\n", resp)
	require.Len(inst.Messages(), 1)
	require.Equal(uint64(1), r.GetMetrics().NullWriteRespCount.Load())

	// the command never arrived, so the read times out
	inst.DropWrites(1)
	_, err = r.QueryString(h, "MEAS?\n", 64, 0)
	require.ErrorIs(err, ErrQueryReceiveFailed)
	require.ErrorIs(err, ErrReadFailed)
	require.True(IsTimeout(err))
}

func TestQuery_NullReadResponseRetry(t *testing.T) {
	require := require.New(t)

	r, tr := newTestRegistry(t)
	inst := tr.AddInstrument("10.0.0.5")
	inst.Respond("MEAS?\n", "1.5\n")

	h, err := r.Open("10.0.0.5")
	require.NoError(err)

	inst.DropWriteAcks(1)
	inst.DropReads(1)

	resp, err := r.QueryString(h, "MEAS?\n", 64, 0)
	require.NoError(err)
	require.Equal("1.5\n", resp)
	require.Len(inst.Messages(), 2)
	require.Equal(uint64(1), r.GetMetrics().QueryRetryCount.Load())
	require.Equal(0, inst.PendingResponses())
}

func TestQuery_RetryExhausted(t *testing.T) {
	tests := []struct {
		name     string
		limit    int
		attempts int
	}{
		{"no retry", 0, 1},
		{"two retries", 2, 3},
		{"default", DefaultQueryRetryLimit, DefaultQueryRetryLimit + 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require := require.New(t)

			r, tr := newTestRegistry(t, WithQueryRetryLimit(tt.limit))
			inst := tr.AddInstrument("10.0.0.5")
			inst.Respond("MEAS?\n", "1.5\n")
			inst.DropReads(100)

			h, err := r.Open("10.0.0.5")
			require.NoError(err)

			_, err = r.QueryString(h, "MEAS?\n", 64, 0)
			require.ErrorIs(err, ErrQueryRetryExhausted)
			require.ErrorIs(err, ErrNullReadResponse)
			require.ErrorContains(err, fmt.Sprintf("%d attempts", tt.attempts))
			require.Len(inst.Messages(), tt.attempts)
			require.Equal(tt.attempts, tr.CountCalls(vxi11test.OpRead, "10.0.0.5"))
		})
	}
}

func TestQuery_UnboundedRetries(t *testing.T) {
	require := require.New(t)

	r, tr := newTestRegistry(t, WithQueryRetryLimit(UnboundedRetries))
	inst := tr.AddInstrument("10.0.0.5")
	inst.Respond("MEAS?\n", "1.5\n")
	inst.DropReads(20)

	h, err := r.Open("10.0.0.5")
	require.NoError(err)

	resp, err := r.QueryString(h, "MEAS?\n", 64, 0)
	require.NoError(err)
	require.Equal("1.5\n", resp)
	require.Len(inst.Messages(), 21)
	require.Equal(uint64(20), r.GetMetrics().QueryRetryCount.Load())
}

func TestQuery_RetryBackoffCancelled(t *testing.T) {
	require := require.New(t)

	cfg, err := NewConfig(WithQueryRetryBackoff(time.Hour))
	require.NoError(err)

	ctx, cancel := context.WithCancel(context.Background())
	tr := vxi11test.NewTransport()
	inst := tr.AddInstrument("10.0.0.5")
	inst.Respond("MEAS?\n", "1.5\n")
	inst.DropReads(1)

	r, err := NewRegistry(ctx, tr, cfg)
	require.NoError(err)
	defer func() { _ = r.Shutdown() }()

	h, err := r.Open("10.0.0.5")
	require.NoError(err)

	cancel()
	_, err = r.QueryString(h, "MEAS?\n", 64, 0)
	require.ErrorIs(err, ErrQueryReceiveFailed)
	require.ErrorIs(err, context.Canceled)
	require.Len(inst.Messages(), 1)
}

func TestQuery_SendFailed(t *testing.T) {
	require := require.New(t)

	r, tr := newTestRegistry(t)
	inst := tr.AddInstrument("10.0.0.5")
	inst.FailWrites(transport.DeviceLockedByAnotherLink)

	h, err := r.Open("10.0.0.5")
	require.NoError(err)

	_, err = r.QueryString(h, "MEAS?\n", 64, 0)
	require.ErrorIs(err, ErrQuerySendFailed)
	require.ErrorIs(err, ErrWriteFailed)
	require.Equal(0, tr.CountCalls(vxi11test.OpRead, ""))
}

func TestQuery_ResponseTooLarge(t *testing.T) {
	require := require.New(t)

	r, tr := newTestRegistry(t)
	inst := tr.AddInstrument("10.0.0.5", vxi11test.WithChunkSize(4))
	inst.Respond("DATA?\n", "0123456789")

	h, err := r.Open("10.0.0.5")
	require.NoError(err)

	_, err = r.Query(h, []byte("DATA?\n"), 8, 0)
	require.ErrorIs(err, ErrQueryReceiveFailed)
	require.ErrorIs(err, ErrBufferTooSmall)
}

func TestQuery_HandleErrors(t *testing.T) {
	require := require.New(t)

	r, _ := newTestRegistry(t)

	_, err := r.QueryString(nil, "*IDN?\n", 64, 0)
	require.ErrorIs(err, ErrHandleNil)
	require.Equal(uint64(0), r.GetMetrics().QueryCount.Load())
}

func TestQuery_ConcurrentEndpoints(t *testing.T) {
	require := require.New(t)

	r, tr := newTestRegistry(t)
	endpoints := []string{"10.0.0.5", "10.0.0.6", "10.0.0.7"}
	handles := make([]*Handle, len(endpoints))
	for i, endpoint := range endpoints {
		tr.AddInstrument(endpoint, vxi11test.WithMaxRecvSize(4), vxi11test.WithChunkSize(3),
			vxi11test.WithHandler(func(msg []byte) []byte {
				return []byte(endpoint + ":" + string(msg))
			}))

		h, err := r.Open(endpoint)
		require.NoError(err)
		handles[i] = h
	}
	require.True(r.MultiEndpoint())

	var wg sync.WaitGroup
	errCh := make(chan error, 64)
	for i := 0; i < 30; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()

			h := handles[i%len(handles)]
			cmd := fmt.Sprintf("READ%d?", i)
			resp, err := r.QueryString(h, cmd, 64, 0)
			if err != nil {
				errCh <- err
				return
			}
			if want := h.Endpoint() + ":" + cmd; resp != want {
				errCh <- fmt.Errorf("got %q, want %q", resp, want)
			}
		}(i)
	}
	wg.Wait()
	close(errCh)

	for err := range errCh {
		require.NoError(err)
	}
	require.Equal(uint64(30), r.GetMetrics().QueryCount.Load())
}

func TestQueryInt(t *testing.T) {
	tests := []struct {
		resp string
		want int64
	}{
		{"42\n", 42},
		{"+42\n", 42},
		{"  -7\r\n", -7},
		{"12,OK\n", 12},
		{"3;\n", 3},
		{"3.9E+0\n", 3},
		{"-2.5\n", -2},
	}

	for _, tt := range tests {
		t.Run(strings.TrimSpace(tt.resp), func(t *testing.T) {
			require := require.New(t)

			r, tr := newTestRegistry(t)
			tr.AddInstrument("10.0.0.5").Respond("COUNT?\n", tt.resp)

			h, err := r.Open("10.0.0.5")
			require.NoError(err)

			v, err := r.QueryInt(h, "COUNT?\n", 0)
			require.NoError(err)
			require.Equal(tt.want, v)
		})
	}
}

func TestQueryFloat(t *testing.T) {
	tests := []struct {
		resp string
		want float64
	}{
		{"1.5\n", 1.5},
		{"+1.5E-3\n", 0.0015},
		{"-9.91E+37\n", -9.91e37},
		{"7\n", 7},
		{"2.5,V\n", 2.5},
	}

	for _, tt := range tests {
		t.Run(strings.TrimSpace(tt.resp), func(t *testing.T) {
			require := require.New(t)

			r, tr := newTestRegistry(t)
			tr.AddInstrument("10.0.0.5").Respond("MEAS?\n", tt.resp)

			h, err := r.Open("10.0.0.5")
			require.NoError(err)

			v, err := r.QueryFloat(h, "MEAS?\n", 0)
			require.NoError(err)
			require.InDelta(tt.want, v, 1e-12*max(1, abs(tt.want)))
		})
	}
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}

	return f
}

// newMockLoggerRegistry returns a registry logging to a MockLogger that
// accepts every message except warnings, which the caller must expect.
func newMockLoggerRegistry(t *testing.T) (*Registry, *vxi11test.Transport, *logger.MockLogger) {
	t.Helper()

	ml := logger.NewMockLogger()
	for _, method := range []string{"Debug", "Info", "Error"} {
		ml.On(method, mock.Anything, mock.Anything).Maybe()
	}

	r, tr := newTestRegistry(t, WithLogger(ml))

	return r, tr, ml
}

func TestQueryNumeric_InvalidResponse(t *testing.T) {
	require := require.New(t)

	r, tr, ml := newMockLoggerRegistry(t)
	inst := tr.AddInstrument("10.0.0.5")
	inst.Respond("COUNT?\n", "OVERLOAD\n")

	h, err := r.Open("10.0.0.5")
	require.NoError(err)

	ml.On("Warn", "integer query returned no number, returning 0", mock.Anything).Once()
	v, err := r.QueryInt(h, "COUNT?\n", 0)
	require.ErrorIs(err, ErrInvalidNumber)
	require.Equal(int64(0), v)

	ml.On("Warn", "float query returned no number, returning 0", mock.Anything).Once()
	f, err := r.QueryFloat(h, "COUNT?\n", 0)
	require.ErrorIs(err, ErrInvalidNumber)
	require.Zero(f)

	ml.AssertExpectations(t)
}

func TestQueryNumeric_ScratchOverflow(t *testing.T) {
	require := require.New(t)

	r, tr, ml := newMockLoggerRegistry(t)
	inst := tr.AddInstrument("10.0.0.5")
	inst.Respond("CURV?\n", strings.Repeat("1,", ScratchSize))

	h, err := r.Open("10.0.0.5")
	require.NoError(err)

	ml.On("Warn", "numeric query failed, returning 0", mock.Anything).Twice()

	v, err := r.QueryInt(h, "CURV?\n", 0)
	require.ErrorIs(err, ErrBufferTooSmall)
	require.Equal(int64(0), v)

	f, err := r.QueryFloat(h, "CURV?\n", 0)
	require.ErrorIs(err, ErrBufferTooSmall)
	require.Zero(f)

	ml.AssertExpectations(t)
}

func TestNumericToken(t *testing.T) {
	require := require.New(t)

	require.Equal("42", numericToken(" 42\n"))
	require.Equal("1.5", numericToken("1.5,V"))
	require.Equal("3", numericToken("3;4"))
	require.Equal("", numericToken("\r\n"))
}

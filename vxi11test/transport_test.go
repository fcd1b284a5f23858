package vxi11test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arloliu/go-vxi11/transport"
)

func openLink(t *testing.T, tr *Transport, endpoint string) (transport.Session, *transport.Link) {
	t.Helper()

	s, err := tr.CreateSession(context.Background(), endpoint)
	require.NoError(t, err)

	link, err := tr.OpenLink(context.Background(), s, transport.LinkParams{Device: transport.DefaultDevice})
	require.NoError(t, err)

	return s, link
}

func TestTransport_CreateSession(t *testing.T) {
	require := require.New(t)

	tr := NewTransport()
	_, err := tr.CreateSession(context.Background(), "10.0.0.9")
	require.ErrorIs(err, ErrNoInstrument)

	tr.AddInstrument("10.0.0.5")
	tr.FailCreateSession("10.0.0.5", assert.AnError)
	_, err = tr.CreateSession(context.Background(), "10.0.0.5")
	require.ErrorIs(err, assert.AnError)

	tr.FailCreateSession("10.0.0.5", nil)
	s, err := tr.CreateSession(context.Background(), "10.0.0.5")
	require.NoError(err)
	require.Equal("10.0.0.5", s.Endpoint())
	require.Equal(1, tr.LiveSessions())
	require.Equal(3, tr.CountCalls(OpCreateSession, ""))
}

func TestTransport_OpenLink(t *testing.T) {
	require := require.New(t)

	tr := NewTransport()
	tr.AddInstrument("10.0.0.5", WithMaxRecvSize(4096))

	s, link := openLink(t, tr, "10.0.0.5")
	require.Equal(uint32(4096), link.MaxRecvSize)
	require.Equal(link.ID, tr.CurrentLink())
	require.Equal(1, tr.LiveLinks("10.0.0.5"))

	_, err := tr.OpenLink(context.Background(), s, transport.LinkParams{Device: "gpib0,5"})
	require.Error(err)

	tr.FailOpenLink("10.0.0.5", assert.AnError)
	_, err = tr.OpenLink(context.Background(), s, transport.LinkParams{Device: transport.DefaultDevice})
	require.ErrorIs(err, assert.AnError)

	require.NoError(tr.CloseLink(context.Background(), s, link))
	require.ErrorIs(tr.CloseLink(context.Background(), s, link), ErrUnknownLink)
	require.Equal(0, tr.LiveLinks("10.0.0.5"))

	tr.DestroySession(s)
	require.Equal(0, tr.LiveSessions())

	_, err = tr.OpenLink(context.Background(), s, transport.LinkParams{Device: transport.DefaultDevice})
	require.ErrorIs(err, ErrSessionInvalid)
}

func TestTransport_SecondSessionSupersedesFirst(t *testing.T) {
	require := require.New(t)

	tr := NewTransport()
	tr.AddInstrument("10.0.0.5")

	s1, link1 := openLink(t, tr, "10.0.0.5")
	_, _ = openLink(t, tr, "10.0.0.5")

	_, err := tr.Write(context.Background(), s1, link1, transport.WriteParams{Data: []byte("x"), End: true})
	require.ErrorIs(err, ErrSessionInvalid)
}

func TestTransport_WriteAndRead(t *testing.T) {
	require := require.New(t)

	tr := NewTransport()
	inst := tr.AddInstrument("10.0.0.5")
	inst.Respond("*IDN?\n", "ACME,MODEL1\n")

	s, link := openLink(t, tr, "10.0.0.5")

	wresp, err := tr.Write(context.Background(), s, link, transport.WriteParams{Data: []byte("*IDN"), End: false})
	require.NoError(err)
	require.Equal(uint32(4), wresp.Size)
	require.Equal(0, inst.PendingResponses())

	wresp, err = tr.Write(context.Background(), s, link, transport.WriteParams{Data: []byte("?\n"), End: true})
	require.NoError(err)
	require.Equal(uint32(2), wresp.Size)
	require.Equal([][]byte{[]byte("*IDN?\n")}, inst.Messages())
	require.Equal(1, inst.PendingResponses())

	rresp, err := tr.Read(context.Background(), s, link, transport.ReadParams{RequestSize: 5})
	require.NoError(err)
	require.Equal("ACME,", string(rresp.Data))
	require.Equal(transport.ReasonRequestCount, rresp.Reason)
	require.False(rresp.Ended())

	rresp, err = tr.Read(context.Background(), s, link, transport.ReadParams{RequestSize: 100})
	require.NoError(err)
	require.Equal("MODEL1\n", string(rresp.Data))
	require.True(rresp.Ended())

	rresp, err = tr.Read(context.Background(), s, link, transport.ReadParams{RequestSize: 100})
	require.NoError(err)
	require.Equal(transport.IOTimeout, rresp.Error)
}

func TestTransport_ChunkedResponse(t *testing.T) {
	require := require.New(t)

	tr := NewTransport()
	inst := tr.AddInstrument("10.0.0.5", WithChunkSize(4), WithHandler(func(msg []byte) []byte {
		return append([]byte("echo:"), msg...)
	}))

	s, link := openLink(t, tr, "10.0.0.5")

	_, err := tr.Write(context.Background(), s, link, transport.WriteParams{Data: []byte("abc"), End: true})
	require.NoError(err)

	var got []byte
	reads := 0
	for {
		resp, err := tr.Read(context.Background(), s, link, transport.ReadParams{RequestSize: 100})
		require.NoError(err)
		require.Equal(transport.NoError, resp.Error)
		got = append(got, resp.Data...)
		reads++
		if resp.Ended() {
			break
		}
	}
	require.Equal("echo:abc", string(got))
	require.Equal(2, reads)
	require.Equal(0, inst.PendingResponses())
}

func TestTransport_Faults(t *testing.T) {
	require := require.New(t)

	tr := NewTransport()
	inst := tr.AddInstrument("10.0.0.5")
	inst.Respond("A", "1")

	s, link := openLink(t, tr, "10.0.0.5")
	write := func(data string) *transport.WriteResponse {
		resp, err := tr.Write(context.Background(), s, link, transport.WriteParams{Data: []byte(data), End: true})
		require.NoError(err)
		return resp
	}

	inst.DropWrites(1)
	require.Nil(write("A"))
	require.Empty(inst.Messages())

	inst.DropWriteAcks(1)
	require.Nil(write("A"))
	require.Len(inst.Messages(), 1)
	require.Equal(1, inst.PendingResponses())

	inst.DropReads(1)
	resp, err := tr.Read(context.Background(), s, link, transport.ReadParams{RequestSize: 10})
	require.NoError(err)
	require.Nil(resp)
	require.Equal(0, inst.PendingResponses())

	inst.FailWrites(transport.IOError)
	require.Equal(transport.IOError, write("A").Error)

	inst.FailReads(transport.IOTimeout)
	resp, err = tr.Read(context.Background(), s, link, transport.ReadParams{RequestSize: 10})
	require.NoError(err)
	require.Equal(transport.IOTimeout, resp.Error)

	inst.AcceptAtMost(2)
	require.Equal(uint32(2), write("ABCD").Size)
	require.Len(inst.Messages(), 1)
}

func TestTransport_SingleCurrentLink(t *testing.T) {
	require := require.New(t)

	tr := NewTransport()
	tr.AddInstrument("10.0.0.5")
	tr.AddInstrument("10.0.0.6")

	s1, link1 := openLink(t, tr, "10.0.0.5")
	_, _ = openLink(t, tr, "10.0.0.6")

	resp, err := tr.Write(context.Background(), s1, link1, transport.WriteParams{Data: []byte("x"), End: true})
	require.NoError(err)
	require.Equal(transport.InvalidLinkIdentifier, resp.Error)

	tr.SetSingleCurrentLink(false)
	resp, err = tr.Write(context.Background(), s1, link1, transport.WriteParams{Data: []byte("x"), End: true})
	require.NoError(err)
	require.Equal(transport.NoError, resp.Error)

	tr.SetSingleCurrentLink(true)
	link3, err := tr.OpenLink(context.Background(), s1, transport.LinkParams{Device: transport.DefaultDevice})
	require.NoError(err)
	resp, err = tr.Write(context.Background(), s1, link3, transport.WriteParams{Data: []byte("y"), End: true})
	require.NoError(err)
	require.Equal(transport.NoError, resp.Error)
}

func TestTransport_QueueResponse(t *testing.T) {
	require := require.New(t)

	tr := NewTransport()
	inst := tr.AddInstrument("10.0.0.5")
	inst.QueueResponse([]byte("ACME,"), []byte("MODEL1\n"))

	s, link := openLink(t, tr, "10.0.0.5")

	resp, err := tr.Read(context.Background(), s, link, transport.ReadParams{RequestSize: 100})
	require.NoError(err)
	require.Equal("ACME,", string(resp.Data))
	require.False(resp.Ended())

	resp, err = tr.Read(context.Background(), s, link, transport.ReadParams{RequestSize: 100})
	require.NoError(err)
	require.Equal("MODEL1\n", string(resp.Data))
	require.True(resp.Ended())

	calls := tr.Calls()
	require.Equal(OpRead, calls[len(calls)-1].Op)
	tr.ResetCalls()
	require.Empty(tr.Calls())
}

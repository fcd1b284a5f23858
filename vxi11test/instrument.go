package vxi11test

import (
	"sync"

	"github.com/arloliu/go-vxi11/transport"
)

// DefaultMaxRecvSize is the write size limit advertised by an instrument
// created without WithMaxRecvSize.
const DefaultMaxRecvSize = 1024

// Handler computes the response to a complete message. A nil result queues no response.
type Handler func(msg []byte) []byte

// InstrumentOption configures an Instrument.
type InstrumentOption func(*Instrument)

// WithMaxRecvSize sets the write size limit advertised on every link. Zero
// advertises no limit.
func WithMaxRecvSize(n uint32) InstrumentOption {
	return func(inst *Instrument) { inst.maxRecvSize = n }
}

// WithChunkSize splits every response into read chunks of at most n bytes.
func WithChunkSize(n int) InstrumentOption {
	return func(inst *Instrument) { inst.chunkSize = n }
}

// WithDevice sets the device name the instrument accepts links for.
func WithDevice(name string) InstrumentOption {
	return func(inst *Instrument) { inst.device = name }
}

// WithHandler sets the handler for messages that have no canned response.
func WithHandler(fn Handler) InstrumentOption {
	return func(inst *Instrument) { inst.handler = fn }
}

// Instrument is a simulated message-based instrument.
//
// Written fragments are assembled until one carries the END flag; the complete
// message is then answered by a canned response or the handler, and the
// response is queued for reading. A read on an instrument with nothing queued
// fails with the I/O timeout device error.
type Instrument struct {
	mu sync.Mutex

	endpoint    string
	device      string
	maxRecvSize uint32
	chunkSize   int
	handler     Handler
	canned      map[string][]byte

	pending  []byte
	messages [][]byte
	output   [][][]byte

	dropWrites    int
	dropWriteAcks int
	dropReads     int
	writeFaults   []transport.ErrorCode
	readFaults    []transport.ErrorCode
	acceptAtMost  int
}

func newInstrument(endpoint string, opts ...InstrumentOption) *Instrument {
	inst := &Instrument{
		endpoint:    endpoint,
		device:      transport.DefaultDevice,
		maxRecvSize: DefaultMaxRecvSize,
		canned:      make(map[string][]byte),
	}
	for _, opt := range opts {
		opt(inst)
	}

	return inst
}

// Endpoint returns the endpoint of the instrument.
func (inst *Instrument) Endpoint() string { return inst.endpoint }

// Respond sets the response to the exact message cmd.
func (inst *Instrument) Respond(cmd string, resp string) {
	inst.mu.Lock()
	defer inst.mu.Unlock()

	inst.canned[cmd] = []byte(resp)
}

// QueueResponse queues a response delivered in exactly the given chunks; the
// last chunk carries the end indicator.
func (inst *Instrument) QueueResponse(chunks ...[]byte) {
	inst.mu.Lock()
	defer inst.mu.Unlock()

	resp := make([][]byte, 0, len(chunks))
	for _, c := range chunks {
		resp = append(resp, append([]byte(nil), c...))
	}
	inst.output = append(inst.output, resp)
}

// DropWrites makes the next n writes vanish: no reply, and the data is not received.
func (inst *Instrument) DropWrites(n int) {
	inst.mu.Lock()
	defer inst.mu.Unlock()

	inst.dropWrites = n
}

// DropWriteAcks makes the next n writes reach the instrument without a reply.
func (inst *Instrument) DropWriteAcks(n int) {
	inst.mu.Lock()
	defer inst.mu.Unlock()

	inst.dropWriteAcks = n
}

// DropReads makes the next n reads return no reply. Each dropped read also
// discards the oldest queued response, as a busy instrument forgets the
// command it did not register.
func (inst *Instrument) DropReads(n int) {
	inst.mu.Lock()
	defer inst.mu.Unlock()

	inst.dropReads = n
}

// FailWrites makes the next writes fail with the given device error codes, one per write.
func (inst *Instrument) FailWrites(codes ...transport.ErrorCode) {
	inst.mu.Lock()
	defer inst.mu.Unlock()

	inst.writeFaults = append(inst.writeFaults, codes...)
}

// FailReads makes the next reads fail with the given device error codes, one per read.
func (inst *Instrument) FailReads(codes ...transport.ErrorCode) {
	inst.mu.Lock()
	defer inst.mu.Unlock()

	inst.readFaults = append(inst.readFaults, codes...)
}

// AcceptAtMost limits the bytes accepted per write to n. Zero removes the limit.
func (inst *Instrument) AcceptAtMost(n int) {
	inst.mu.Lock()
	defer inst.mu.Unlock()

	inst.acceptAtMost = n
}

// Messages returns the complete messages received so far.
func (inst *Instrument) Messages() [][]byte {
	inst.mu.Lock()
	defer inst.mu.Unlock()

	msgs := make([][]byte, len(inst.messages))
	copy(msgs, inst.messages)

	return msgs
}

// PendingResponses returns the number of queued responses.
func (inst *Instrument) PendingResponses() int {
	inst.mu.Lock()
	defer inst.mu.Unlock()

	return len(inst.output)
}

func (inst *Instrument) write(params transport.WriteParams) *transport.WriteResponse {
	inst.mu.Lock()
	defer inst.mu.Unlock()

	if inst.dropWrites > 0 {
		inst.dropWrites--
		return nil
	}

	if len(inst.writeFaults) > 0 {
		code := inst.writeFaults[0]
		inst.writeFaults = inst.writeFaults[1:]

		return &transport.WriteResponse{Error: code}
	}

	n := len(params.Data)
	if inst.acceptAtMost > 0 && n > inst.acceptAtMost {
		n = inst.acceptAtMost
	}
	inst.pending = append(inst.pending, params.Data[:n]...)

	if params.End && n == len(params.Data) {
		inst.complete()
	}

	if inst.dropWriteAcks > 0 {
		inst.dropWriteAcks--
		return nil
	}

	return &transport.WriteResponse{Size: uint32(n)} //nolint:gosec
}

// complete finishes the pending message and queues its response.
func (inst *Instrument) complete() {
	msg := inst.pending
	inst.pending = nil
	inst.messages = append(inst.messages, msg)

	resp, ok := inst.canned[string(msg)]
	if !ok && inst.handler != nil {
		resp = inst.handler(msg)
		ok = resp != nil
	}
	if !ok {
		return
	}

	inst.output = append(inst.output, inst.split(resp))
}

func (inst *Instrument) split(resp []byte) [][]byte {
	if inst.chunkSize <= 0 || len(resp) <= inst.chunkSize {
		return [][]byte{append([]byte(nil), resp...)}
	}

	chunks := make([][]byte, 0, (len(resp)+inst.chunkSize-1)/inst.chunkSize)
	for len(resp) > 0 {
		n := min(inst.chunkSize, len(resp))
		chunks = append(chunks, append([]byte(nil), resp[:n]...))
		resp = resp[n:]
	}

	return chunks
}

func (inst *Instrument) read(params transport.ReadParams) *transport.ReadResponse {
	inst.mu.Lock()
	defer inst.mu.Unlock()

	if inst.dropReads > 0 {
		inst.dropReads--
		if len(inst.output) > 0 {
			inst.output = inst.output[1:]
		}

		return nil
	}

	if len(inst.readFaults) > 0 {
		code := inst.readFaults[0]
		inst.readFaults = inst.readFaults[1:]

		return &transport.ReadResponse{Error: code}
	}

	if len(inst.output) == 0 {
		return &transport.ReadResponse{Error: transport.IOTimeout}
	}

	resp := inst.output[0]
	chunk := resp[0]

	if params.RequestSize > 0 && uint32(len(chunk)) > params.RequestSize { //nolint:gosec
		resp[0] = chunk[params.RequestSize:]
		return &transport.ReadResponse{Data: chunk[:params.RequestSize], Reason: transport.ReasonRequestCount}
	}

	if len(resp) > 1 {
		inst.output[0] = resp[1:]
		return &transport.ReadResponse{Data: chunk}
	}

	inst.output = inst.output[1:]

	return &transport.ReadResponse{Data: chunk, Reason: transport.ReasonEnd}
}

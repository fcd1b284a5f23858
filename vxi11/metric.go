package vxi11

import (
	"sync/atomic"
)

// Metrics contains atomic metrics for a registry.
// Metrics can be used as the value of a prometheus CounterFunc or GaugeFunc,
// see the prommetrics package.
type Metrics struct {
	// SessionCreateCount indicates the number of transport sessions created.
	SessionCreateCount atomic.Uint64
	// SessionDestroyCount indicates the number of transport sessions destroyed.
	SessionDestroyCount atomic.Uint64
	// ActiveSessionGauge indicates the number of live sessions.
	ActiveSessionGauge atomic.Int64

	// LinkOpenCount indicates the number of links created for callers.
	LinkOpenCount atomic.Uint64
	// LinkCloseCount indicates the number of links closed by callers.
	LinkCloseCount atomic.Uint64
	// ActiveLinkGauge indicates the number of outstanding handles.
	ActiveLinkGauge atomic.Int64
	// LinkReassertCount indicates the number of links re-created to switch the current link.
	LinkReassertCount atomic.Uint64

	// FragmentSendCount indicates the number of write fragments acknowledged.
	FragmentSendCount atomic.Uint64
	// FragmentRecvCount indicates the number of read chunks received.
	FragmentRecvCount atomic.Uint64
	// ByteSendCount indicates the number of bytes accepted by instruments.
	ByteSendCount atomic.Uint64
	// ByteRecvCount indicates the number of bytes delivered to callers.
	ByteRecvCount atomic.Uint64

	// NullWriteRespCount indicates the number of writes dropped without reply.
	NullWriteRespCount atomic.Uint64
	// NullReadRespCount indicates the number of reads dropped without reply.
	NullReadRespCount atomic.Uint64
	// DeviceErrCount indicates the number of explicit device error codes received.
	DeviceErrCount atomic.Uint64

	// QueryCount indicates the number of queries issued.
	QueryCount atomic.Uint64
	// QueryRetryCount indicates the number of query resends after a null read response.
	QueryRetryCount atomic.Uint64
}

func (m *Metrics) incSessionCreate() {
	m.SessionCreateCount.Add(1)
	m.ActiveSessionGauge.Add(1)
}

func (m *Metrics) incSessionDestroy() {
	m.SessionDestroyCount.Add(1)
	m.ActiveSessionGauge.Add(-1)
}

func (m *Metrics) incLinkOpen() {
	m.LinkOpenCount.Add(1)
	m.ActiveLinkGauge.Add(1)
}

func (m *Metrics) incLinkClose() {
	m.LinkCloseCount.Add(1)
	m.ActiveLinkGauge.Add(-1)
}

func (m *Metrics) incLinkReassert() {
	m.LinkReassertCount.Add(1)
}

func (m *Metrics) addFragmentSend(n int) {
	m.FragmentSendCount.Add(1)
	m.ByteSendCount.Add(uint64(n))
}

func (m *Metrics) incFragmentRecv() {
	m.FragmentRecvCount.Add(1)
}

func (m *Metrics) addByteRecv(n int) {
	m.ByteRecvCount.Add(uint64(n))
}

func (m *Metrics) incNullWriteResp() {
	m.NullWriteRespCount.Add(1)
}

func (m *Metrics) incNullReadResp() {
	m.NullReadRespCount.Add(1)
}

func (m *Metrics) incDeviceErr() {
	m.DeviceErrCount.Add(1)
}

func (m *Metrics) incQuery() {
	m.QueryCount.Add(1)
}

func (m *Metrics) incQueryRetry() {
	m.QueryRetryCount.Add(1)
}

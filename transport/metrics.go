package transport

import "sync/atomic"

// Metrics contains atomic counters for a transport.
// Metrics can be used as the value of a prometheus CounterFunc or GaugeFunc.
type Metrics struct {
	// CommandSendCount indicates the number of lines written to the link.
	CommandSendCount atomic.Uint64
	// ResponseRecvCount indicates the number of messages delivered to an armed expectation.
	ResponseRecvCount atomic.Uint64
	// UnsolicitedCount indicates the number of messages handed to the unsolicited handler.
	UnsolicitedCount atomic.Uint64
	// DroppedCount indicates the number of messages discarded for lack of any receiver.
	DroppedCount atomic.Uint64
	// WriteErrCount indicates the number of failed or timed out writes.
	WriteErrCount atomic.Uint64
	// OverflowCount indicates the number of times the framer discarded an oversized partial message.
	OverflowCount atomic.Uint64
}

func (m *Metrics) incCommandSendCount() {
	m.CommandSendCount.Add(1)
}

func (m *Metrics) incResponseRecvCount() {
	m.ResponseRecvCount.Add(1)
}

func (m *Metrics) incUnsolicitedCount() {
	m.UnsolicitedCount.Add(1)
}

func (m *Metrics) incDroppedCount() {
	m.DroppedCount.Add(1)
}

func (m *Metrics) incWriteErrCount() {
	m.WriteErrCount.Add(1)
}

func (m *Metrics) incOverflowCount() {
	m.OverflowCount.Add(1)
}

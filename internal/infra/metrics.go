package infra

import (
	"sync/atomic"
)

// Metrics provides lightweight observability without external dependencies.
// Uses atomic operations for thread-safety. One instance is created by the
// bootstrap and handed to components explicitly; there is no package-level
// singleton.
type Metrics struct {
	// Counters
	pollsTotal    atomic.Uint64
	pollErrors    atomic.Uint64
	barsEmitted   atomic.Uint64
	rollovers     atomic.Uint64
	chatRequests  atomic.Uint64
	chatFallbacks atomic.Uint64

	// Gauges
	activeChannels atomic.Int32
	wsClients      atomic.Int32
}

// NewMetrics creates an empty metrics instance.
func NewMetrics() *Metrics {
	return &Metrics{}
}

// RecordPoll records one poll tick against the provider.
func (m *Metrics) RecordPoll() { m.pollsTotal.Add(1) }

// RecordPollError records a failed poll tick.
func (m *Metrics) RecordPollError() { m.pollErrors.Add(1) }

// RecordBarEmitted records a bar fanned out to subscribers.
func (m *Metrics) RecordBarEmitted() { m.barsEmitted.Add(1) }

// RecordRollover records a working bar crossing its resolution boundary.
func (m *Metrics) RecordRollover() { m.rollovers.Add(1) }

// RecordChatRequest records one chat round trip.
func (m *Metrics) RecordChatRequest() { m.chatRequests.Add(1) }

// RecordChatFallback records a chat reply served from the canned table.
func (m *Metrics) RecordChatFallback() { m.chatFallbacks.Add(1) }

// SetActiveChannels sets the current poll-channel count.
func (m *Metrics) SetActiveChannels(n int32) { m.activeChannels.Store(n) }

// IncrementWSClients increments connected websocket clients by 1.
func (m *Metrics) IncrementWSClients() { m.wsClients.Add(1) }

// DecrementWSClients decrements connected websocket clients by 1.
func (m *Metrics) DecrementWSClients() { m.wsClients.Add(-1) }

// Snapshot is a point-in-time copy of all metrics, shaped for JSON.
type Snapshot struct {
	PollsTotal     uint64 `json:"polls_total"`
	PollErrors     uint64 `json:"poll_errors"`
	BarsEmitted    uint64 `json:"bars_emitted"`
	Rollovers      uint64 `json:"rollovers"`
	ChatRequests   uint64 `json:"chat_requests"`
	ChatFallbacks  uint64 `json:"chat_fallbacks"`
	ActiveChannels int32  `json:"active_channels"`
	WSClients      int32  `json:"ws_clients"`
}

// GetSnapshot returns a consistent-enough view for health reporting.
func (m *Metrics) GetSnapshot() Snapshot {
	return Snapshot{
		PollsTotal:     m.pollsTotal.Load(),
		PollErrors:     m.pollErrors.Load(),
		BarsEmitted:    m.barsEmitted.Load(),
		Rollovers:      m.rollovers.Load(),
		ChatRequests:   m.chatRequests.Load(),
		ChatFallbacks:  m.chatFallbacks.Load(),
		ActiveChannels: m.activeChannels.Load(),
		WSClients:      m.wsClients.Load(),
	}
}

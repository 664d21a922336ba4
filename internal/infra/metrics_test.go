package infra

import (
	"testing"
)

func TestMetrics_Counters(t *testing.T) {
	m := NewMetrics()

	m.RecordPoll()
	m.RecordPoll()
	m.RecordPoll()
	m.RecordPollError()
	m.RecordBarEmitted()
	m.RecordBarEmitted()
	m.RecordRollover()

	snap := m.GetSnapshot()
	if snap.PollsTotal != 3 {
		t.Errorf("Expected 3 polls, got %d", snap.PollsTotal)
	}
	if snap.PollErrors != 1 {
		t.Errorf("Expected 1 poll error, got %d", snap.PollErrors)
	}
	if snap.BarsEmitted != 2 {
		t.Errorf("Expected 2 bars, got %d", snap.BarsEmitted)
	}
	if snap.Rollovers != 1 {
		t.Errorf("Expected 1 rollover, got %d", snap.Rollovers)
	}
}

func TestMetrics_ChatCounters(t *testing.T) {
	m := NewMetrics()

	m.RecordChatRequest()
	m.RecordChatRequest()
	m.RecordChatFallback()

	snap := m.GetSnapshot()
	if snap.ChatRequests != 2 {
		t.Errorf("Expected 2 chat requests, got %d", snap.ChatRequests)
	}
	if snap.ChatFallbacks != 1 {
		t.Errorf("Expected 1 fallback, got %d", snap.ChatFallbacks)
	}
}

func TestMetrics_Gauges(t *testing.T) {
	m := NewMetrics()

	m.IncrementWSClients()
	m.IncrementWSClients()
	m.IncrementWSClients()

	snap := m.GetSnapshot()
	if snap.WSClients != 3 {
		t.Errorf("Expected 3 ws clients, got %d", snap.WSClients)
	}

	m.DecrementWSClients()
	snap = m.GetSnapshot()
	if snap.WSClients != 2 {
		t.Errorf("Expected 2 ws clients, got %d", snap.WSClients)
	}

	m.SetActiveChannels(5)
	snap = m.GetSnapshot()
	if snap.ActiveChannels != 5 {
		t.Errorf("Expected 5 channels, got %d", snap.ActiveChannels)
	}
}

package events

import (
	"context"
	"sync"
)

// MemoryLog is a bounded in-memory event ring. When full, the oldest events
// are dropped. Used by tests and by the read API.
type MemoryLog struct {
	mu     sync.Mutex
	buf    []Event
	limit  int
	dropped uint64
}

// NewMemoryLog creates a ring holding at most limit events (0 means an
// unbounded log).
func NewMemoryLog(limit int) *MemoryLog {
	return &MemoryLog{limit: limit}
}

func (m *MemoryLog) Append(_ context.Context, e Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.buf = append(m.buf, e)
	if m.limit > 0 && len(m.buf) > m.limit {
		over := len(m.buf) - m.limit
		m.buf = m.buf[over:]
		m.dropped += uint64(over)
	}
}

// Events returns a copy of the retained events, oldest first.
func (m *MemoryLog) Events() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Event, len(m.buf))
	copy(out, m.buf)
	return out
}

// OfType returns the retained events of one type, oldest first.
func (m *MemoryLog) OfType(t Type) []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Event
	for _, e := range m.buf {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

// Dropped reports how many events were evicted by the ring limit.
func (m *MemoryLog) Dropped() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dropped
}

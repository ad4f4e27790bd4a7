package provider

import (
	"context"
	"sync"
)

// MockSend records the arguments of one Send call.
type MockSend struct {
	From string
	To   string
	Body string
}

// Mock is a Provider for tests: it records sends and returns scripted
// ids or a scripted error.
type Mock struct {
	mu    sync.Mutex
	sends []MockSend

	IDs []string // returned from every Send
	Err error    // returned instead, when set
}

func (m *Mock) Send(ctx context.Context, from, to, body string) ([]string, error) {
	m.mu.Lock()
	m.sends = append(m.sends, MockSend{From: from, To: to, Body: body})
	m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	return m.IDs, nil
}

// Sends returns a copy of all recorded sends.
func (m *Mock) Sends() []MockSend {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]MockSend, len(m.sends))
	copy(out, m.sends)
	return out
}

package bridge

import "sync"

// FakePublisher records published payloads for test assertions.
type FakePublisher struct {
	mu sync.Mutex

	// States contains every state payload published, in order.
	States [][]byte

	// Availability contains every availability marker published, in order.
	Availability []bool

	// PublishError, if set, is returned by PublishState.
	PublishError error

	// Closed tracks whether Close was called.
	Closed bool
}

// NewFakePublisher creates an empty FakePublisher.
func NewFakePublisher() *FakePublisher {
	return &FakePublisher{}
}

// PublishState records the payload.
func (f *FakePublisher) PublishState(payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.PublishError != nil {
		return f.PublishError
	}
	cp := make([]byte, len(payload))
	copy(cp, payload)
	f.States = append(f.States, cp)
	return nil
}

// PublishAvailability records the marker.
func (f *FakePublisher) PublishAvailability(online bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Availability = append(f.Availability, online)
	return nil
}

// Close marks the publisher as closed.
func (f *FakePublisher) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Closed = true
	return nil
}

// StateCount returns how many state payloads were published.
func (f *FakePublisher) StateCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.States)
}

// LastState returns the most recent state payload, or nil.
func (f *FakePublisher) LastState() []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.States) == 0 {
		return nil
	}
	return f.States[len(f.States)-1]
}

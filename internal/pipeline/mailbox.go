package pipeline

import (
	"context"
	"errors"
	"sync"
)

// ErrMailboxClosed is returned by Take once the mailbox is closed and empty.
var ErrMailboxClosed = errors.New("mailbox closed")

// Mailbox hands frames from the reader to the decoder. It holds at most one
// frame: offering a new frame while one is pending replaces it.
type Mailbox struct {
	mu      sync.Mutex
	frame   []byte
	closed  bool
	dropped uint64
	ready   chan struct{}
}

func NewMailbox() *Mailbox {
	return &Mailbox{ready: make(chan struct{}, 1)}
}

// Offer stores frame and reports whether a pending frame was replaced.
// Frames offered after Close are ignored.
func (m *Mailbox) Offer(frame []byte) bool {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return false
	}
	replaced := m.frame != nil
	if replaced {
		m.dropped++
	}
	m.frame = frame
	m.mu.Unlock()

	m.signal()
	return replaced
}

// TryTake returns the pending frame without blocking.
func (m *Mailbox) TryTake() ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.frame == nil {
		return nil, false
	}
	frame := m.frame
	m.frame = nil
	return frame, true
}

// Take blocks until a frame is available, the context is done or the
// mailbox is closed. A frame pending at Close is still delivered.
func (m *Mailbox) Take(ctx context.Context) ([]byte, error) {
	for {
		m.mu.Lock()
		if m.frame != nil {
			frame := m.frame
			m.frame = nil
			m.mu.Unlock()
			return frame, nil
		}
		closed := m.closed
		m.mu.Unlock()
		if closed {
			return nil, ErrMailboxClosed
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-m.ready:
		}
	}
}

// Close wakes a blocked Take. It is safe to call more than once.
func (m *Mailbox) Close() {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	m.signal()
}

// Dropped returns how many frames were replaced before being taken.
func (m *Mailbox) Dropped() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dropped
}

func (m *Mailbox) signal() {
	select {
	case m.ready <- struct{}{}:
	default:
	}
}

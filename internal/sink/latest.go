package sink

import (
	"context"
	"sync"
	"time"

	"p1dlms/pkg/decoder"
)

// Latest keeps the most recent reading for readers on other goroutines.
type Latest struct {
	mu       sync.RWMutex
	envelope Envelope
	ok       bool
	now      func() time.Time
}

func NewLatest() *Latest {
	return &Latest{now: time.Now}
}

func (l *Latest) Name() string {
	return "latest"
}

func (l *Latest) OnReading(_ context.Context, r decoder.Reading) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.envelope = Envelope{ReceivedAt: l.now(), Reading: r}
	l.ok = true
	return nil
}

// Get returns the last reading and false if none has arrived yet.
func (l *Latest) Get() (Envelope, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.envelope, l.ok
}

package sink

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"p1dlms/pkg/decoder"
)

// Sink receives every reading the decoder emits. Only fields that were
// decoded are set; sinks must not report absent fields.
type Sink interface {
	Name() string
	OnReading(ctx context.Context, r decoder.Reading) error
}

// Envelope is the wire form of a reading for sinks that serialise it.
type Envelope struct {
	ReceivedAt time.Time `json:"received_at"`
	decoder.Reading
}

// Multi fans a reading out to several sinks. A failing sink is logged and
// reported to onError but never stops the others.
type Multi struct {
	sinks   []Sink
	logger  *zap.Logger
	onError func(sink string)
}

func NewMulti(logger *zap.Logger, onError func(sink string), sinks ...Sink) *Multi {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Multi{sinks: sinks, logger: logger, onError: onError}
}

func (m *Multi) Name() string {
	return "multi"
}

// Add appends a sink.
func (m *Multi) Add(s Sink) {
	m.sinks = append(m.sinks, s)
}

// Len returns the number of sinks.
func (m *Multi) Len() int {
	return len(m.sinks)
}

// OnReading delivers r to every sink and joins their errors.
func (m *Multi) OnReading(ctx context.Context, r decoder.Reading) error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.OnReading(ctx, r); err != nil {
			m.logger.Warn("sink failed", zap.String("sink", s.Name()), zap.Error(err))
			if m.onError != nil {
				m.onError(s.Name())
			}
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"p1dlms/internal/metrics"
	"p1dlms/internal/sink"
	"p1dlms/pkg/decoder"
	"p1dlms/pkg/framer"
	"p1dlms/pkg/pcap"
)

// Stats is a snapshot of the pipeline counters.
type Stats struct {
	Bytes     uint64
	Frames    uint64
	Overflows uint64
	Dropped   uint64
	Decoded   uint64
	Readings  uint64
	Captured  uint64
}

// Pipeline reads the meter port, splits the stream into frames and decodes
// the newest frame on a separate goroutine. Decodes never overlap.
type Pipeline struct {
	decoder      *decoder.Decoder
	sink         sink.Sink
	logger       *zap.Logger
	metrics      *metrics.Metrics
	capture      *pcap.Writer
	maxFrameSize int
	readSize     int
	now          func() time.Time

	mailbox   *Mailbox
	lastChunk time.Time
	bytes     atomic.Uint64
	frames    atomic.Uint64
	overflows atomic.Uint64
	decoded   atomic.Uint64
	readings  atomic.Uint64
	captured  atomic.Uint64
}

type Option func(*Pipeline)

func WithLogger(logger *zap.Logger) Option {
	return func(p *Pipeline) { p.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// WithCapture records every assembled frame to w. The tap is disabled
// when the reader of a capture pipe goes away.
func WithCapture(w *pcap.Writer) Option {
	return func(p *Pipeline) { p.capture = w }
}

func WithMaxFrameSize(n int) Option {
	return func(p *Pipeline) { p.maxFrameSize = n }
}

func New(dec *decoder.Decoder, s sink.Sink, opts ...Option) *Pipeline {
	p := &Pipeline{
		decoder:      dec,
		sink:         s,
		logger:       zap.NewNop(),
		maxFrameSize: framer.DefaultMaxFrameSize,
		readSize:     4096,
		now:          time.Now,
		mailbox:      NewMailbox(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Stats returns the running counters. It is safe to call from any goroutine.
func (p *Pipeline) Stats() Stats {
	return Stats{
		Bytes:     p.bytes.Load(),
		Frames:    p.frames.Load(),
		Overflows: p.overflows.Load(),
		Dropped:   p.mailbox.Dropped(),
		Decoded:   p.decoded.Load(),
		Readings:  p.readings.Load(),
		Captured:  p.captured.Load(),
	}
}

// Run consumes r until it fails, reaches EOF or ctx is done. A frame
// pending when the input ends is still decoded. Context cancellation and
// EOF are not errors.
func (p *Pipeline) Run(ctx context.Context, r io.Reader) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer p.mailbox.Close()
		return p.ingest(gctx, r)
	})
	g.Go(func() error {
		return p.decodeLoop(gctx)
	})

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

type chunk struct {
	data []byte
	ts   time.Time
}

func (p *Pipeline) ingest(ctx context.Context, r io.Reader) error {
	asm := framer.New(p.maxFrameSize, p.onFrame, framer.WithOverflowHandler(func(err error) {
		p.overflows.Add(1)
		if p.metrics != nil {
			p.metrics.BufferOverflows.Inc()
		}
		p.logger.Warn("discarding partial frame", zap.Error(err), zap.Int("max_frame_size", p.maxFrameSize))
	}))

	dataChan := make(chan chunk, 64)
	errChan := make(chan error, 1)
	done := make(chan struct{})
	defer close(done)

	// Reads block on a serial port, so they run apart from the select
	// below. The goroutine ends when the port is closed.
	go func() {
		buf := make([]byte, p.readSize)
		for {
			n, err := r.Read(buf)
			if n > 0 {
				data := make([]byte, n)
				copy(data, buf[:n])
				select {
				case dataChan <- chunk{data: data, ts: p.now()}:
				case <-done:
					return
				}
			}
			if err != nil {
				errChan <- err
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case c := <-dataChan:
			p.feed(asm, c)
		case err := <-errChan:
			// Anything read before the error is already queued.
			for drained := false; !drained; {
				select {
				case c := <-dataChan:
					p.feed(asm, c)
				default:
					drained = true
				}
			}
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("read: %w", err)
		}
	}
}

func (p *Pipeline) feed(asm *framer.Assembler, c chunk) {
	p.bytes.Add(uint64(len(c.data)))
	if p.metrics != nil {
		p.metrics.BytesReceived.Add(float64(len(c.data)))
	}
	p.lastChunk = c.ts
	_, _ = asm.Write(c.data)
}

// onFrame runs on the ingest goroutine for every complete frame.
func (p *Pipeline) onFrame(frame []byte) {
	p.frames.Add(1)
	if p.metrics != nil {
		p.metrics.FramesAssembled.Inc()
	}
	p.record(frame)
	if p.mailbox.Offer(frame) {
		if p.metrics != nil {
			p.metrics.FramesDropped.Inc()
		}
		p.logger.Debug("decoder busy, dropped older frame")
	}
}

func (p *Pipeline) record(frame []byte) {
	if p.capture == nil {
		return
	}
	// Re-add the flags so the capture shows the frame as it was on the wire.
	packet := make([]byte, 0, len(frame)+2)
	packet = append(packet, framer.Flag)
	packet = append(packet, frame...)
	packet = append(packet, framer.Flag)
	if err := p.capture.WritePacket(p.lastChunk, packet); err != nil {
		if errors.Is(err, syscall.EPIPE) {
			p.logger.Info("capture pipe closed by reader, capture stopped")
			p.capture = nil
			return
		}
		p.logger.Warn("write capture packet", zap.Error(err))
		return
	}
	p.captured.Add(1)
}

func (p *Pipeline) decodeLoop(ctx context.Context) error {
	for {
		frame, err := p.mailbox.Take(ctx)
		if err != nil {
			if errors.Is(err, ErrMailboxClosed) {
				return nil
			}
			return err
		}
		p.decode(ctx, frame)
	}
}

func (p *Pipeline) decode(ctx context.Context, frame []byte) {
	start := time.Now()
	rep := p.decoder.Decode(frame)
	p.decoded.Add(1)
	if p.metrics != nil {
		p.metrics.ObserveReport(rep, time.Since(start))
	}
	if !rep.Found {
		p.logger.Debug("frame carried no known quantities", zap.Int("length", len(frame)), zap.Stringer("stop", rep.Stop))
		return
	}
	p.readings.Add(1)
	if p.sink == nil {
		return
	}
	if err := p.sink.OnReading(ctx, rep.Reading); err != nil {
		p.logger.Debug("reading not delivered everywhere", zap.Error(err))
	}
}

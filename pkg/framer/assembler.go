package framer

import "errors"

// Flag delimits frames on the wire.
const Flag byte = 0x7E

// DefaultMaxFrameSize bounds the assembly buffer.
const DefaultMaxFrameSize = 1024

// ErrBufferOverflow is passed to the overflow hook when a frame outgrows
// the assembly buffer. The partial frame is discarded.
var ErrBufferOverflow = errors.New("frame buffer overflow")

// Stats counts what the assembler has seen.
type Stats struct {
	Bytes     uint64
	Frames    uint64
	Overflows uint64
}

// Assembler splits a byte stream into frames bounded by Flag bytes. The
// flags are stripped; bytes before the first flag are ignored. It is not
// safe for concurrent use.
type Assembler struct {
	buf        []byte
	inFrame    bool
	onFrame    func([]byte)
	onOverflow func(error)
	stats      Stats
}

// Option configures an Assembler.
type Option func(*Assembler)

// WithOverflowHandler registers fn to be called on every buffer overflow.
func WithOverflowHandler(fn func(error)) Option {
	return func(a *Assembler) { a.onOverflow = fn }
}

// New creates an Assembler with a buffer of maxSize bytes that calls
// onFrame with a fresh copy of every complete, non-empty frame.
func New(maxSize int, onFrame func([]byte), opts ...Option) *Assembler {
	if maxSize <= 0 {
		maxSize = DefaultMaxFrameSize
	}
	a := &Assembler{
		buf:     make([]byte, 0, maxSize),
		onFrame: onFrame,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Write feeds bytes into the assembler. It never fails, so an Assembler
// can sit behind io.Copy or an io.TeeReader.
func (a *Assembler) Write(p []byte) (int, error) {
	for _, b := range p {
		a.feed(b)
	}
	a.stats.Bytes += uint64(len(p))
	return len(p), nil
}

func (a *Assembler) feed(b byte) {
	if b == Flag {
		if a.inFrame && len(a.buf) > 0 {
			frame := make([]byte, len(a.buf))
			copy(frame, a.buf)
			a.stats.Frames++
			a.onFrame(frame)
		}
		a.buf = a.buf[:0]
		a.inFrame = true
		return
	}
	if !a.inFrame {
		return
	}
	if len(a.buf) == cap(a.buf) {
		// Resynchronise on the next flag.
		a.buf = a.buf[:0]
		a.inFrame = false
		a.stats.Overflows++
		if a.onOverflow != nil {
			a.onOverflow(ErrBufferOverflow)
		}
		return
	}
	a.buf = append(a.buf, b)
}

// Pending returns the number of bytes buffered for the current frame.
func (a *Assembler) Pending() int {
	return len(a.buf)
}

// Stats returns the running counters.
func (a *Assembler) Stats() Stats {
	return a.stats
}

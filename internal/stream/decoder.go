// ABOUTME: StreamDecoder: turns raw chunked bytes into typed agent events
// ABOUTME: Malformed frames are logged and skipped; the [DONE] sentinel ends decoding

package stream

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/bigduu/copilot-client-app-sub002/internal/event"
	"github.com/bigduu/copilot-client-app-sub002/internal/log"
	"github.com/bigduu/copilot-client-app-sub002/internal/sse"
)

// DefaultChunkSize is the read size used by Run when none is given.
const DefaultChunkSize = 4096

// FrameDecodeError describes a frame whose payload could not be decoded.
type FrameDecodeError struct {
	Frame string
	Err   error
}

func (e *FrameDecodeError) Error() string {
	frame := e.Frame
	if len(frame) > 120 {
		frame = frame[:120] + "..."
	}
	return fmt.Sprintf("decoding frame %q: %v", frame, e.Err)
}

func (e *FrameDecodeError) Unwrap() error { return e.Err }

// EndReason explains why Run returned.
type EndReason int

const (
	// EndSentinel means the literal end sentinel arrived.
	EndSentinel EndReason = iota + 1
	// EndEOF means the transport closed without a sentinel.
	EndEOF
	// EndStopped means the callback asked to stop.
	EndStopped
	// EndCancelled means the context was cancelled between reads.
	EndCancelled
)

func (r EndReason) String() string {
	switch r {
	case EndSentinel:
		return "sentinel"
	case EndEOF:
		return "eof"
	case EndStopped:
		return "stopped"
	case EndCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("EndReason(%d)", int(r))
	}
}

// Option configures a Decoder.
type Option func(*Decoder)

// WithDecodeErrorHandler is called for each skipped frame, after logging.
func WithDecodeErrorHandler(fn func(*FrameDecodeError)) Option {
	return func(d *Decoder) { d.onDecodeError = fn }
}

// Decoder converts a byte stream into events. Not safe for concurrent use:
// each session owns its own decoder.
type Decoder struct {
	sp            *sse.Splitter
	ended         bool
	skipped       int
	onDecodeError func(*FrameDecodeError)
}

// NewDecoder creates a Decoder.
func NewDecoder(opts ...Option) *Decoder {
	d := &Decoder{sp: sse.NewSplitter()}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Feed consumes one chunk and returns the events it completed, in order.
// ended reports that the sentinel was seen; input after it is ignored.
func (d *Decoder) Feed(chunk []byte) (events []event.Event, ended bool) {
	if d.ended {
		return nil, true
	}
	frames, err := d.sp.Feed(chunk)
	events = d.decode(frames)
	if errors.Is(err, sse.ErrFrameTooLarge) {
		d.skip(&FrameDecodeError{Frame: fmt.Sprintf("<%d+ bytes>", sse.MaxFrameSize), Err: err})
	}
	return events, d.ended
}

// Close flushes a trailing frame that was not followed by a blank line.
func (d *Decoder) Close() (events []event.Event, ended bool) {
	if d.ended {
		return nil, true
	}
	if f, ok := d.sp.Flush(); ok {
		events = d.decode([]sse.Frame{f})
	}
	return events, d.ended
}

// Ended reports whether the sentinel has been seen.
func (d *Decoder) Ended() bool { return d.ended }

// Skipped returns the number of frames dropped as malformed.
func (d *Decoder) Skipped() int { return d.skipped }

// Buffered returns the size of the pending partial frame.
func (d *Decoder) Buffered() int { return d.sp.Buffered() }

func (d *Decoder) decode(frames []sse.Frame) []event.Event {
	var out []event.Event
	for _, f := range frames {
		if d.ended {
			break
		}
		if f.IsDone() {
			d.ended = true
			break
		}
		if f.Data == "" {
			log.Debug("stream: ignoring frame without data (event=%q)", f.Event)
			continue
		}
		e, err := event.Unmarshal([]byte(f.Data))
		if err != nil {
			d.skip(&FrameDecodeError{Frame: f.Data, Err: err})
			continue
		}
		out = append(out, e)
	}
	return out
}

func (d *Decoder) skip(err *FrameDecodeError) {
	d.skipped++
	log.Warn("stream: skipping malformed frame: %v", err)
	if d.onDecodeError != nil {
		d.onDecodeError(err)
	}
}

// Run reads r in chunks and calls fn for every decoded event in order.
// Cancellation is checked between reads; fn returning false stops the loop.
// A non-nil error is a transport failure or the context error.
func (d *Decoder) Run(ctx context.Context, r io.Reader, chunkSize int, fn func(event.Event) bool) (EndReason, error) {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	buf := make([]byte, chunkSize)

	deliver := func(events []event.Event) bool {
		for _, e := range events {
			if ctx.Err() != nil {
				return false
			}
			if !fn(e) {
				return false
			}
		}
		return true
	}

	for {
		if err := ctx.Err(); err != nil {
			return EndCancelled, err
		}

		n, err := r.Read(buf)
		if n > 0 {
			events, ended := d.Feed(buf[:n])
			if !deliver(events) {
				if ctx.Err() != nil {
					return EndCancelled, ctx.Err()
				}
				return EndStopped, nil
			}
			if ended {
				return EndSentinel, nil
			}
		}

		if errors.Is(err, io.EOF) {
			events, ended := d.Close()
			if !deliver(events) {
				if ctx.Err() != nil {
					return EndCancelled, ctx.Err()
				}
				return EndStopped, nil
			}
			if ended {
				return EndSentinel, nil
			}
			return EndEOF, nil
		}
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return EndCancelled, ctxErr
			}
			return EndEOF, fmt.Errorf("reading event stream: %w", err)
		}
	}
}

// ABOUTME: Incremental Server-Sent Events frame splitter fed with raw transport chunks
// ABOUTME: Buffers partial frames across chunks; supports event, data, id fields and comments

package sse

import (
	"bytes"
	"errors"
	"io"
	"strings"
)

// DoneSentinel is the literal data payload that marks the end of a stream.
const DoneSentinel = "[DONE]"

// MaxFrameSize bounds how much undelimited data the splitter will hold.
const MaxFrameSize = 1024 * 1024 // 1MB

// ErrFrameTooLarge is returned by Feed when a frame exceeds MaxFrameSize.
// The oversized data is discarded and splitting resumes with the next chunk.
var ErrFrameTooLarge = errors.New("sse: frame exceeds maximum size")

var delimiter = []byte("\n\n")

// Frame is a single blank-line delimited SSE frame.
type Frame struct {
	Event string
	Data  string
	ID    string
}

// IsDone reports whether the frame carries the end-of-stream sentinel.
func (f Frame) IsDone() bool {
	return strings.TrimSpace(f.Data) == DoneSentinel
}

// Splitter accumulates chunks and yields complete frames.
// A Splitter is not safe for concurrent use; each stream owns one.
type Splitter struct {
	buf []byte
}

// NewSplitter creates an empty Splitter.
func NewSplitter() *Splitter {
	return &Splitter{}
}

// Feed appends chunk to the buffer and returns every frame completed by it.
// Frames without any field (only comments or blank lines) are not returned.
func (s *Splitter) Feed(chunk []byte) ([]Frame, error) {
	s.buf = append(s.buf, chunk...)
	// A CRLF pair may straddle two chunks, so normalize the whole buffer.
	if bytes.IndexByte(s.buf, '\r') >= 0 {
		s.buf = bytes.ReplaceAll(s.buf, []byte("\r\n"), []byte("\n"))
	}

	var frames []Frame
	for {
		idx := bytes.Index(s.buf, delimiter)
		if idx < 0 {
			break
		}
		raw := string(s.buf[:idx])
		s.buf = s.buf[idx+len(delimiter):]

		if f, ok := parseFrame(raw); ok {
			frames = append(frames, f)
		}
	}

	if len(s.buf) > MaxFrameSize {
		s.buf = s.buf[:0]
		return frames, ErrFrameTooLarge
	}

	// Reclaim the consumed prefix once the buffer drains.
	if len(s.buf) == 0 && cap(s.buf) > 64*1024 {
		s.buf = nil
	}

	return frames, nil
}

// Flush returns whatever partial frame remains buffered, as when the
// transport closes without a trailing blank line.
func (s *Splitter) Flush() (Frame, bool) {
	raw := strings.TrimRight(string(s.buf), "\n")
	s.buf = nil
	if raw == "" {
		return Frame{}, false
	}
	return parseFrame(raw)
}

// Buffered returns the number of bytes held for an incomplete frame.
func (s *Splitter) Buffered() int {
	return len(s.buf)
}

// Scan reads r in chunks of chunkSize and invokes fn for each frame in
// arrival order, including a trailing unterminated frame at EOF.
// Scanning stops early when fn returns false.
func Scan(r io.Reader, chunkSize int, fn func(Frame) bool) error {
	if chunkSize <= 0 {
		chunkSize = 4096
	}
	sp := NewSplitter()
	buf := make([]byte, chunkSize)

	for {
		n, err := r.Read(buf)
		if n > 0 {
			frames, ferr := sp.Feed(buf[:n])
			for _, f := range frames {
				if !fn(f) {
					return nil
				}
			}
			if ferr != nil {
				return ferr
			}
		}
		if errors.Is(err, io.EOF) {
			if f, ok := sp.Flush(); ok {
				fn(f)
			}
			return nil
		}
		if err != nil {
			return err
		}
	}
}

// parseFrame converts the lines of one frame into a Frame.
func parseFrame(raw string) (Frame, bool) {
	var f Frame
	var dataLines []string
	hasContent := false

	for _, line := range strings.Split(raw, "\n") {
		if line == "" || strings.HasPrefix(line, ":") {
			continue
		}
		field, value := parseLine(line)
		hasContent = applyField(&f, &dataLines, field, value, hasContent)
	}

	if len(dataLines) > 0 {
		f.Data = strings.Join(dataLines, "\n")
	}
	return f, hasContent
}

// parseLine splits an SSE line into field name and value.
func parseLine(line string) (string, string) {
	field, value, ok := strings.Cut(line, ":")
	if !ok {
		return line, ""
	}
	// Strip optional leading space after colon.
	return field, strings.TrimPrefix(value, " ")
}

// applyField applies a parsed field to the frame and returns whether the frame has content.
func applyField(f *Frame, dataLines *[]string, field, value string, hadContent bool) bool {
	switch field {
	case "event":
		f.Event = value
		return true
	case "data":
		*dataLines = append(*dataLines, value)
		return true
	case "id":
		f.ID = value
		return true
	default:
		return hadContent
	}
}

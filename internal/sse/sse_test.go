// ABOUTME: Table-driven tests for the incremental SSE splitter
// ABOUTME: Covers chunk boundaries, CRLF, comments, sentinel, oversize frames, and Scan

package sse

import (
	"errors"
	"strings"
	"testing"
	"testing/iotest"
)

func TestSplitterFeed(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		chunks []string
		want   []Frame
	}{
		{
			name:   "single frame with all fields",
			chunks: []string{"event: message\ndata: hello world\nid: 1\n\n"},
			want:   []Frame{{Event: "message", Data: "hello world", ID: "1"}},
		},
		{
			name:   "multi-line data",
			chunks: []string{"data: one\ndata: two\n\n"},
			want:   []Frame{{Data: "one\ntwo"}},
		},
		{
			name:   "frame split mid-payload",
			chunks: []string{`data: {"typ`, `e":"token"}` + "\n\n"},
			want:   []Frame{{Data: `{"type":"token"}`}},
		},
		{
			name:   "delimiter split across chunks",
			chunks: []string{"data: a\n", "\n", "data: b\n\n"},
			want:   []Frame{{Data: "a"}, {Data: "b"}},
		},
		{
			name:   "crlf pair split across chunks",
			chunks: []string{"data: a\r", "\n\r\n"},
			want:   []Frame{{Data: "a"}},
		},
		{
			name:   "comments only are dropped",
			chunks: []string{": keepalive\n\n", "data: x\n\n"},
			want:   []Frame{{Data: "x"}},
		},
		{
			name:   "no space after colon",
			chunks: []string{"data:value\n\n"},
			want:   []Frame{{Data: "value"}},
		},
		{
			name:   "data containing colon",
			chunks: []string{"data: key: value\n\n"},
			want:   []Frame{{Data: "key: value"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			sp := NewSplitter()
			var got []Frame
			for _, c := range tt.chunks {
				frames, err := sp.Feed([]byte(c))
				if err != nil {
					t.Fatalf("Feed: %v", err)
				}
				got = append(got, frames...)
			}

			if len(got) != len(tt.want) {
				t.Fatalf("got %d frames %+v, want %d", len(got), got, len(tt.want))
			}
			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Errorf("frame[%d] = %+v, want %+v", i, got[i], tt.want[i])
				}
			}
			if sp.Buffered() != 0 {
				t.Errorf("Buffered() = %d, want 0", sp.Buffered())
			}
		})
	}
}

func TestSplitterPartialFrameStaysBuffered(t *testing.T) {
	t.Parallel()

	sp := NewSplitter()
	frames, err := sp.Feed([]byte("data: partial"))
	if err != nil {
		t.Fatalf("Feed: %v", err)
	}
	if len(frames) != 0 {
		t.Fatalf("got %d frames before delimiter, want 0", len(frames))
	}
	if sp.Buffered() != len("data: partial") {
		t.Errorf("Buffered() = %d", sp.Buffered())
	}

	f, ok := sp.Flush()
	if !ok || f.Data != "partial" {
		t.Errorf("Flush() = %+v, %v; want partial frame", f, ok)
	}
}

func TestFrameIsDone(t *testing.T) {
	t.Parallel()

	if !(Frame{Data: " [DONE] "}).IsDone() {
		t.Error("padded sentinel not recognised")
	}
	if (Frame{Data: `{"type":"complete"}`}).IsDone() {
		t.Error("json payload treated as sentinel")
	}
}

func TestSplitterOversizedFrame(t *testing.T) {
	t.Parallel()

	sp := NewSplitter()
	_, err := sp.Feed([]byte("data: " + strings.Repeat("x", MaxFrameSize)))
	if !errors.Is(err, ErrFrameTooLarge) {
		t.Fatalf("err = %v, want ErrFrameTooLarge", err)
	}
	if sp.Buffered() != 0 {
		t.Errorf("buffer not reset after oversize frame")
	}

	frames, err := sp.Feed([]byte("data: ok\n\n"))
	if err != nil || len(frames) != 1 || frames[0].Data != "ok" {
		t.Errorf("splitter did not recover: %+v, %v", frames, err)
	}
}

func TestScan(t *testing.T) {
	t.Parallel()

	input := "data: one\n\ndata: two\n\ndata: tail"
	var got []string
	err := Scan(iotest.OneByteReader(strings.NewReader(input)), 3, func(f Frame) bool {
		got = append(got, f.Data)
		return true
	})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	want := []string{"one", "two", "tail"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestScanStopsEarly(t *testing.T) {
	t.Parallel()

	input := "data: one\n\ndata: [DONE]\n\ndata: never\n\n"
	var got []string
	err := Scan(strings.NewReader(input), 0, func(f Frame) bool {
		if f.IsDone() {
			return false
		}
		got = append(got, f.Data)
		return true
	})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(got) != 1 || got[0] != "one" {
		t.Errorf("got %v, want [one]", got)
	}
}

func BenchmarkSplitterFeed(b *testing.B) {
	payload := []byte(strings.Repeat(`data: {"type":"token","content":"hello"}`+"\n\n", 50))

	for b.Loop() {
		sp := NewSplitter()
		_, _ = sp.Feed(payload)
	}
}

package logging

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// RingBuffer keeps the most recent log records for crash.log and SIGUSR1
// dumps. Sized from [logs] ring_buffer_kb.
type RingBuffer struct {
	mu   sync.Mutex
	buf  []byte
	size int
	pos  int
	full bool

	// dropped counts bytes overwritten since creation.
	dropped int64
}

// NewRingBuffer creates a ring buffer with the given capacity in bytes.
func NewRingBuffer(size int) *RingBuffer {
	if size <= 0 {
		size = 1024 * 1024
	}
	return &RingBuffer{
		buf:  make([]byte, size),
		size: size,
	}
}

// Write implements io.Writer. Data wraps around when the buffer is full.
func (rb *RingBuffer) Write(p []byte) (int, error) {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	n := len(p)
	held := rb.pos
	if rb.full {
		held = rb.size
	}
	if over := held + n - rb.size; over > 0 {
		rb.dropped += int64(min(over, held))
	}

	if n >= rb.size {
		// keep only the last rb.size bytes
		rb.dropped += int64(n - rb.size)
		copy(rb.buf, p[n-rb.size:])
		rb.pos = 0
		rb.full = true
		return n, nil
	}

	space := rb.size - rb.pos
	if n <= space {
		copy(rb.buf[rb.pos:], p)
		rb.pos += n
		if rb.pos == rb.size {
			rb.pos = 0
			rb.full = true
		}
		return n, nil
	}

	// split write: fill to end, then wrap
	copy(rb.buf[rb.pos:], p[:space])
	copy(rb.buf, p[space:])
	rb.pos = n - space
	rb.full = true
	return n, nil
}

// Len reports how many bytes are currently held.
func (rb *RingBuffer) Len() int {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	if rb.full {
		return rb.size
	}
	return rb.pos
}

// Dropped reports how many bytes have been overwritten.
func (rb *RingBuffer) Dropped() int64 {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return rb.dropped
}

// Bytes returns the buffer contents in chronological order.
func (rb *RingBuffer) Bytes() []byte {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	if !rb.full {
		out := make([]byte, rb.pos)
		copy(out, rb.buf[:rb.pos])
		return out
	}

	// wrapped: [pos..end] + [0..pos]
	out := make([]byte, rb.size)
	copy(out, rb.buf[rb.pos:])
	copy(out[rb.size-rb.pos:], rb.buf[:rb.pos])
	return out
}

// Records returns the held contents starting at the first complete record.
// Once the buffer has wrapped, the oldest record is usually cut in half.
func (rb *RingBuffer) Records() []byte {
	data := rb.Bytes()
	if rb.Dropped() == 0 {
		return data
	}
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		return data[i+1:]
	}
	return nil
}

// DumpToFile writes a one-line header followed by the complete records,
// creating parent directories.
func (rb *RingBuffer) DumpToFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	records := rb.Records()
	var out bytes.Buffer
	fmt.Fprintf(&out, "# tmux-renamer log dump at %s (%d bytes, %d dropped)\n",
		time.Now().Format(time.RFC3339), len(records), rb.Dropped())
	out.Write(records)
	return os.WriteFile(path, out.Bytes(), 0o600)
}

package audio

import (
	"sync"
	"time"
)

// ChunkBuffer is a mutex-guarded FIFO of PCM16 samples. It backs the
// capture pending buffer, the keep-alive side buffer, and the reconnect
// replay buffer. Samples are appended by the capture callback and taken
// by the session thread; ownership moves with the returned slice.
type ChunkBuffer struct {
	mu      sync.Mutex
	samples []int16
}

// NewChunkBuffer creates an empty buffer.
func NewChunkBuffer() *ChunkBuffer {
	return &ChunkBuffer{}
}

// Append adds samples to the tail.
func (b *ChunkBuffer) Append(samples []int16) {
	if len(samples) == 0 {
		return
	}
	b.mu.Lock()
	b.samples = append(b.samples, samples...)
	b.mu.Unlock()
}

// TakeAll removes and returns everything buffered, oldest first.
// Returns nil when empty.
func (b *ChunkBuffer) TakeAll() []int16 {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.samples) == 0 {
		return nil
	}
	out := b.samples
	b.samples = nil
	return out
}

// TakeUpTo removes and returns at most n samples, oldest first.
func (b *ChunkBuffer) TakeUpTo(n int) []int16 {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.samples) == 0 || n <= 0 {
		return nil
	}
	if n > len(b.samples) {
		n = len(b.samples)
	}
	out := make([]int16, n)
	copy(out, b.samples[:n])
	rest := len(b.samples) - n
	copy(b.samples, b.samples[n:])
	b.samples = b.samples[:rest]
	return out
}

// Len returns the number of buffered samples.
func (b *ChunkBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.samples)
}

// Duration returns the buffered audio length at the given sample rate.
func (b *ChunkBuffer) Duration(rate int) time.Duration {
	if rate == 0 {
		return 0
	}
	return time.Duration(b.Len()) * time.Second / time.Duration(rate)
}

// Clear empties the buffer.
func (b *ChunkBuffer) Clear() {
	b.mu.Lock()
	b.samples = nil
	b.mu.Unlock()
}

// RingBuffer is a thread-safe FIFO used on the playback side: the player
// writes decoded synthesis audio in, the render callback drains it out.
// Unlike ChunkBuffer it reports how much is still pending so the player
// can wait for drain before announcing speech-ended.
type RingBuffer struct {
	mu   sync.Mutex
	data []int16
}

// NewRingBuffer creates an empty playback buffer.
func NewRingBuffer() *RingBuffer {
	return &RingBuffer{}
}

// Write appends samples for playback.
func (rb *RingBuffer) Write(samples []int16) {
	rb.mu.Lock()
	rb.data = append(rb.data, samples...)
	rb.mu.Unlock()
}

// Read fills dst with pending samples, zero-filling any shortfall, and
// returns how many real samples were consumed. Safe to call from a
// hardware render callback.
func (rb *RingBuffer) Read(dst []int16) int {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	n := copy(dst, rb.data)
	rest := len(rb.data) - n
	copy(rb.data, rb.data[n:])
	rb.data = rb.data[:rest]
	for i := n; i < len(dst); i++ {
		dst[i] = 0
	}
	return n
}

// Buffered returns the number of samples not yet rendered.
func (rb *RingBuffer) Buffered() int {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return len(rb.data)
}

// Clear drops all pending samples.
func (rb *RingBuffer) Clear() {
	rb.mu.Lock()
	rb.data = rb.data[:0]
	rb.mu.Unlock()
}

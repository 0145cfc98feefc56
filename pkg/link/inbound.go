package link

import (
	"sync"

	"github.com/rs/zerolog/log"
)

// DefaultInboundSize is the inbound buffer capacity in bytes.
const DefaultInboundSize = 512

// Inbound buffers bytes pushed by a radio callback until the session reads
// them. Bytes beyond the capacity are dropped.
type Inbound struct {
	mu   sync.Mutex
	buf  []byte
	size int
}

// NewInbound creates a buffer holding up to size bytes.
func NewInbound(size int) *Inbound {
	if size <= 0 {
		size = DefaultInboundSize
	}
	return &Inbound{buf: make([]byte, 0, size), size: size}
}

// Push appends p. It is called from the radio's notification handler.
func (b *Inbound) Push(p []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()

	room := b.size - len(b.buf)
	if len(p) > room {
		log.Warn().Int("dropped", len(p)-room).Msg("inbound buffer full")
		p = p[:room]
	}
	b.buf = append(b.buf, p...)
}

// Read copies buffered bytes into p. It returns 0, nil when nothing is
// buffered.
func (b *Inbound) Read(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := copy(p, b.buf)
	b.buf = append(b.buf[:0], b.buf[n:]...)
	return n, nil
}

// Buffered returns the number of unread bytes.
func (b *Inbound) Buffered() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.buf)
}

// Free returns how many more bytes fit.
func (b *Inbound) Free() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.size - len(b.buf)
}

// Reset discards unread bytes.
func (b *Inbound) Reset() {
	b.mu.Lock()
	b.buf = b.buf[:0]
	b.mu.Unlock()
}

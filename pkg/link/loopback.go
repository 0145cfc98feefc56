package link

import (
	"sync"
	"time"
)

// Responder answers one command byte. A nil reply means no reply.
type Responder interface {
	Respond(cmd byte) []byte
}

// Loopback is an in-process Radio. Advertisements are served from Names in
// order; a connected peer's UART hands every written byte to the Responder
// and queues the reply. Queued bytes reach the inbound buffer as it drains,
// the way notifications arrive over a real link.
type Loopback struct {
	Names     []string
	Responder Responder
	// Chunk limits each notification to this many bytes; 0 sends as much as
	// the inbound buffer has room for.
	Chunk int
	// Mute drops replies.
	Mute bool

	ScanErr    error
	ConnectErr error
	NoUART     bool

	mu      sync.Mutex
	peer    *loopPeer
	scans   int
	stops   int
	written []byte
}

type loopAdvertisement string

func (a loopAdvertisement) LocalName() string { return string(a) }

// Scan offers each name to found. timeout is not simulated.
func (l *Loopback) Scan(_ int, _ time.Duration, found func(Advertisement) bool) error {
	l.mu.Lock()
	l.scans++
	names := append([]string(nil), l.Names...)
	err := l.ScanErr
	l.mu.Unlock()

	if err != nil {
		return err
	}
	for _, n := range names {
		if found(loopAdvertisement(n)) {
			return nil
		}
	}
	return nil
}

func (l *Loopback) StopScan() error {
	l.mu.Lock()
	l.stops++
	l.mu.Unlock()
	return nil
}

func (l *Loopback) Connect(adv Advertisement) (Peer, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.ConnectErr != nil {
		return nil, l.ConnectErr
	}
	p := &loopPeer{radio: l, connected: true, in: NewInbound(DefaultInboundSize)}
	l.peer = p
	return p, nil
}

func (l *Loopback) Peers() []Peer {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.peer == nil || !l.peer.connected {
		return nil
	}
	return []Peer{l.peer}
}

func (l *Loopback) Connected() bool {
	return len(l.Peers()) > 0
}

// Drop breaks the link as if the peer went out of range.
func (l *Loopback) Drop() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.peer != nil {
		l.peer.connected = false
	}
}

// Written returns every byte written to the peer so far.
func (l *Loopback) Written() []byte {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]byte(nil), l.written...)
}

// Scans returns how many scans ran and how many times StopScan was called.
func (l *Loopback) Scans() (scans, stops int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.scans, l.stops
}

type loopPeer struct {
	radio     *Loopback
	connected bool
	in        *Inbound
	queued    []byte // guarded by radio.mu
}

func (p *loopPeer) Connected() bool {
	p.radio.mu.Lock()
	defer p.radio.mu.Unlock()
	return p.connected
}

func (p *loopPeer) UART() (Channel, bool) {
	if p.radio.NoUART {
		return nil, false
	}
	return p, true
}

func (p *loopPeer) Disconnect() error {
	p.radio.mu.Lock()
	defer p.radio.mu.Unlock()
	p.connected = false
	return nil
}

func (p *loopPeer) Write(b []byte) (int, error) {
	l := p.radio
	l.mu.Lock()
	if !p.connected {
		l.mu.Unlock()
		return 0, ErrNoLink
	}
	l.written = append(l.written, b...)
	responder, mute := l.Responder, l.Mute
	l.mu.Unlock()

	if responder == nil || mute {
		return len(b), nil
	}
	for _, c := range b {
		reply := responder.Respond(c)
		if len(reply) == 0 {
			continue
		}
		l.mu.Lock()
		p.queued = append(p.queued, reply...)
		l.mu.Unlock()
	}
	p.deliver()
	return len(b), nil
}

// deliver moves queued reply bytes into the inbound buffer while it has room.
func (p *loopPeer) deliver() {
	l := p.radio
	l.mu.Lock()
	defer l.mu.Unlock()

	for len(p.queued) > 0 {
		n := min(len(p.queued), p.in.Free())
		if l.Chunk > 0 {
			n = min(n, l.Chunk)
		}
		if n == 0 {
			return
		}
		p.in.Push(p.queued[:n])
		p.queued = p.queued[n:]
	}
}

func (p *loopPeer) Read(b []byte) (int, error) {
	p.deliver()
	return p.in.Read(b)
}

func (p *loopPeer) Buffered() int {
	p.deliver()
	return p.in.Buffered()
}

func (p *loopPeer) ResetInputBuffer() {
	p.radio.mu.Lock()
	p.queued = nil
	p.radio.mu.Unlock()
	p.in.Reset()
}

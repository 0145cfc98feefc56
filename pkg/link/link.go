// Package link manages the radio link to the billboard.
//
// A Radio finds advertisements and connects to them. Each connection is a
// Peer, and a Peer exposing the UART service yields a Channel, the byte
// stream the session exchanges requests and replies over. The Manager keeps
// at most one Channel, the link handle.
package link

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

var (
	ErrNoLink   = errors.New("no link")
	ErrNoUART   = errors.New("no peer offers the UART service")
	ErrNotFound = errors.New("peer not found")
)

// Advertisement is a scan result.
type Advertisement interface {
	LocalName() string
}

// Channel is the UART byte stream of a connected peer. Read never blocks;
// callers check Buffered first.
type Channel interface {
	io.Reader
	io.Writer
	Buffered() int
	ResetInputBuffer()
}

// Peer is one connection.
type Peer interface {
	Connected() bool
	// UART returns the peer's UART stream, or false if it has none.
	UART() (Channel, bool)
	Disconnect() error
}

// Radio is the central-role radio.
type Radio interface {
	// Scan delivers advertisements to found until found returns true, the
	// timeout passes or StopScan is called.
	Scan(bufferSize int, timeout time.Duration, found func(Advertisement) bool) error
	StopScan() error
	Connect(adv Advertisement) (Peer, error)
	Peers() []Peer
	Connected() bool
}

// State is the link state reported to the console.
type State uint8

const (
	StateDisconnected State = iota
	StateDiscovered
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateDiscovered:
		return "discovered"
	case StateConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

// ScanOptions bounds a scan.
type ScanOptions struct {
	BufferSize int
	Timeout    time.Duration
}

// Manager owns the link handle.
type Manager struct {
	radio   Radio
	opts    ScanOptions
	clock   clockwork.Clock
	channel Channel
	found   bool
}

// NewManager creates a manager for radio.
func NewManager(radio Radio, opts ScanOptions, clock clockwork.Clock) *Manager {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Manager{radio: radio, opts: opts, clock: clock}
}

// Scan returns the first advertisement named name, or nil. Scan errors are
// logged and reported as not found.
func (m *Manager) Scan(name string) Advertisement {
	var adv Advertisement
	start := m.clock.Now()

	defer func() {
		if err := m.radio.StopScan(); err != nil {
			log.Debug().Err(err).Msg("stop scan")
		}
	}()

	err := m.radio.Scan(m.opts.BufferSize, m.opts.Timeout, func(a Advertisement) bool {
		if a.LocalName() != name {
			return false
		}
		adv = a
		return true
	})
	if err != nil {
		log.Debug().Err(err).Str("peer", name).Msg("scan failed")
		return nil
	}

	elapsed := m.clock.Since(start)
	if adv == nil {
		log.Debug().Str("peer", name).Dur("elapsed", elapsed).Msg("peer not found")
		return nil
	}
	m.found = true
	log.Debug().Str("peer", name).Dur("elapsed", elapsed).Msg("peer found")
	return adv
}

// Connect connects to adv and takes the UART stream of the first connected
// peer that has one.
func (m *Manager) Connect(adv Advertisement) (Channel, error) {
	if adv == nil {
		return nil, ErrNotFound
	}
	m.found = false

	peer, err := m.radio.Connect(adv)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", adv.LocalName(), err)
	}

	for _, p := range m.radio.Peers() {
		if !p.Connected() {
			continue
		}
		if ch, ok := p.UART(); ok {
			m.channel = ch
			log.Info().Str("peer", adv.LocalName()).Msg("link established")
			return ch, nil
		}
	}

	// Connected but useless; free the radio for the next scan.
	if err := peer.Disconnect(); err != nil {
		log.Debug().Err(err).Msg("disconnect peer without uart")
	}
	return nil, fmt.Errorf("connect %s: %w", adv.LocalName(), ErrNoUART)
}

// Channel returns the link handle, nil when there is none.
func (m *Manager) Channel() Channel {
	return m.channel
}

// Linked reports whether the link handle exists and the radio is still
// connected. A dropped link clears the handle.
func (m *Manager) Linked() bool {
	if m.channel == nil {
		return false
	}
	if !m.radio.Connected() {
		log.Info().Msg("link dropped")
		m.channel = nil
		return false
	}
	return true
}

// Disconnect drops every connection and the link handle. It is safe to call
// with no link.
func (m *Manager) Disconnect() error {
	var errs []error
	for _, p := range m.radio.Peers() {
		if err := p.Disconnect(); err != nil {
			errs = append(errs, err)
		}
	}
	if m.channel != nil {
		log.Info().Msg("link closed")
	}
	m.channel = nil
	m.found = false
	return errors.Join(errs...)
}

// State reports the link state.
func (m *Manager) State() State {
	switch {
	case m.channel != nil:
		return StateConnected
	case m.found:
		return StateDiscovered
	default:
		return StateDisconnected
	}
}

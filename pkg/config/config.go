// Package config defines the remote's settings record and the runtime
// options derived from it.
// Settings use a fixed-size binary layout so they can be stored in flash.
package config

import (
	"encoding/binary"
	"errors"
	"time"
)

// CurrentVersion is the settings format version.
// Bump this when making breaking changes to the layout.
// When firmware boots and finds a different version in flash, settings are wiped.
const CurrentVersion uint16 = 1

// DefaultPeerName is the advertised name of the billboard to bind with.
const DefaultPeerName = "F-nRF52"

// Settings flags
const (
	FlagManualConnect uint32 = 1 << iota // connect only on A+B instead of autoconnect
	FlagDebug                            // verbose logging
)

// Display and protocol constants that are not user settings.
const (
	// ScanBufferSize keeps advertisement buffering small to save RAM.
	ScanBufferSize = 128
	ScanTimeout    = 2 * time.Second

	FadeStep = 0.1

	// ScrollThreshold is the longest text shown statically on one line.
	ScrollThreshold = 10
	ScrollPadding   = 10
	ScrollMaxChars  = 10
	ScrollInterval  = 300 * time.Millisecond

	// ContentScale is ceil(producer display width / local display width),
	// 252 and 64 pixels respectively.
	ContentScale = (252 + 64 - 1) / 64
	DefaultScale = 2

	White = 0xFFFFFF
	Green = 0x00FF00
)

// Settings is the persisted configuration of the remote.
// Total size: 32 bytes
// Layout:
//
//	[0-1]:   Version (uint16)
//	[2-5]:   Flags (uint32)
//	[6-21]:  PeerName ([16]byte)
//	[22-23]: ResponseDelayMs (uint16)
//	[24-25]: ButtonDelayMs (uint16)
//	[26]:    FadeDelayS (uint8)
//	[27]:    ProximityThreshold (uint8)
//	[28-31]: Reserved
type Settings struct {
	Version            uint16   // Settings format version
	Flags              uint32   // FlagManualConnect, FlagDebug
	PeerName           [16]byte // UTF-8 name (null-terminated if shorter)
	ResponseDelayMs    uint16   // Wait for the first reply byte
	ButtonDelayMs      uint16   // Button poll debounce
	FadeDelayS         uint8    // Idle time before each dimming step
	ProximityThreshold uint8    // Proximity reading that wakes the display
	Reserved           uint32
}

// SettingsSize is the encoded size of Settings.
const SettingsSize = 32

var (
	ErrInvalidSize = errors.New("invalid settings size")
)

// Defaults returns the factory settings.
func Defaults() Settings {
	s := Settings{
		Version:            CurrentVersion,
		ResponseDelayMs:    1000,
		ButtonDelayMs:      200,
		FadeDelayS:         10,
		ProximityThreshold: 5,
	}
	s.SetPeerName(DefaultPeerName)
	return s
}

// MarshalBinary implements encoding.BinaryMarshaler for Settings.
func (s *Settings) MarshalBinary() ([]byte, error) {
	buf := make([]byte, SettingsSize)
	binary.LittleEndian.PutUint16(buf[0:], s.Version)
	binary.LittleEndian.PutUint32(buf[2:], s.Flags)
	copy(buf[6:22], s.PeerName[:])
	binary.LittleEndian.PutUint16(buf[22:], s.ResponseDelayMs)
	binary.LittleEndian.PutUint16(buf[24:], s.ButtonDelayMs)
	buf[26] = s.FadeDelayS
	buf[27] = s.ProximityThreshold
	binary.LittleEndian.PutUint32(buf[28:], s.Reserved)
	return buf, nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler for Settings.
func (s *Settings) UnmarshalBinary(data []byte) error {
	if len(data) < SettingsSize {
		return ErrInvalidSize
	}

	s.Version = binary.LittleEndian.Uint16(data[0:])
	s.Flags = binary.LittleEndian.Uint32(data[2:])
	copy(s.PeerName[:], data[6:22])
	s.ResponseDelayMs = binary.LittleEndian.Uint16(data[22:])
	s.ButtonDelayMs = binary.LittleEndian.Uint16(data[24:])
	s.FadeDelayS = data[26]
	s.ProximityThreshold = data[27]
	s.Reserved = binary.LittleEndian.Uint32(data[28:])
	return nil
}

// GetPeerName returns the peer name as a string (up to null terminator).
func (s *Settings) GetPeerName() string {
	for i, b := range s.PeerName {
		if b == 0 {
			return string(s.PeerName[:i])
		}
	}
	return string(s.PeerName[:])
}

// SetPeerName sets the peer name from a string.
// If the name is longer than 15 bytes, it is truncated.
// The name is always null-terminated.
func (s *Settings) SetPeerName(name string) {
	b := []byte(name)
	if len(b) > 15 {
		b = b[:15]
	}
	s.PeerName = [16]byte{}
	copy(s.PeerName[:], b)
}

// HasFlag reports whether flag is set.
func (s *Settings) HasFlag(flag uint32) bool {
	return s.Flags&flag != 0
}

// SetFlag sets or clears flag.
func (s *Settings) SetFlag(flag uint32, on bool) {
	if on {
		s.Flags |= flag
	} else {
		s.Flags &^= flag
	}
}

// Options are the settings in the form the session works with.
type Options struct {
	PeerName           string
	ManualConnect      bool
	Debug              bool
	ResponseDelay      time.Duration
	ButtonDelay        time.Duration
	FadeDelay          time.Duration
	ProximityThreshold int
}

// Options derives runtime options. Zero durations fall back to defaults.
func (s *Settings) Options() Options {
	def := Defaults()
	pick16 := func(v, d uint16) uint16 {
		if v == 0 {
			return d
		}
		return v
	}
	fade := s.FadeDelayS
	if fade == 0 {
		fade = def.FadeDelayS
	}
	name := s.GetPeerName()
	if name == "" {
		name = DefaultPeerName
	}

	return Options{
		PeerName:           name,
		ManualConnect:      s.HasFlag(FlagManualConnect),
		Debug:              s.HasFlag(FlagDebug),
		ResponseDelay:      time.Duration(pick16(s.ResponseDelayMs, def.ResponseDelayMs)) * time.Millisecond,
		ButtonDelay:        time.Duration(pick16(s.ButtonDelayMs, def.ButtonDelayMs)) * time.Millisecond,
		FadeDelay:          time.Duration(fade) * time.Second,
		ProximityThreshold: int(s.ProximityThreshold),
	}
}

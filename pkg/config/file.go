//go:build !tinygo

package config

import (
	"fmt"

	"github.com/pelletier/go-toml/v2"
)

// File is the TOML form of Settings used by host tools.
type File struct {
	PeerName           string `toml:"peer_name"`
	ManualConnect      bool   `toml:"manual_connect"`
	Debug              bool   `toml:"debug"`
	ResponseDelayMs    uint16 `toml:"response_delay_ms"`
	ButtonDelayMs      uint16 `toml:"button_delay_ms"`
	FadeDelayS         uint8  `toml:"fade_delay_s"`
	ProximityThreshold uint8  `toml:"proximity_threshold"`
}

// ToFile returns s in TOML form.
func (s *Settings) ToFile() File {
	return File{
		PeerName:           s.GetPeerName(),
		ManualConnect:      s.HasFlag(FlagManualConnect),
		Debug:              s.HasFlag(FlagDebug),
		ResponseDelayMs:    s.ResponseDelayMs,
		ButtonDelayMs:      s.ButtonDelayMs,
		FadeDelayS:         s.FadeDelayS,
		ProximityThreshold: s.ProximityThreshold,
	}
}

// ApplyTOML overlays a TOML document on s. Keys missing from data keep their
// current values.
func (s *Settings) ApplyTOML(data []byte) error {
	f := s.ToFile()
	if err := toml.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("failed to unmarshal settings: %w", err)
	}

	s.SetPeerName(f.PeerName)
	s.SetFlag(FlagManualConnect, f.ManualConnect)
	s.SetFlag(FlagDebug, f.Debug)
	s.ResponseDelayMs = f.ResponseDelayMs
	s.ButtonDelayMs = f.ButtonDelayMs
	s.FadeDelayS = f.FadeDelayS
	s.ProximityThreshold = f.ProximityThreshold
	return nil
}

// MarshalTOML renders s as a TOML document.
func (s *Settings) MarshalTOML() ([]byte, error) {
	return toml.Marshal(s.ToFile())
}

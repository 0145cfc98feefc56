//go:build !tinygo

package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyTOMLOverlaysDefaults(t *testing.T) {
	s := Defaults()
	require.NoError(t, s.ApplyTOML([]byte(`
peer_name = "Lobby"
manual_connect = true
fade_delay_s = 30
`)))

	opts := s.Options()
	assert.Equal(t, "Lobby", opts.PeerName)
	assert.True(t, opts.ManualConnect)
	assert.False(t, opts.Debug)
	assert.Equal(t, 30*time.Second, opts.FadeDelay)
	assert.Equal(t, time.Second, opts.ResponseDelay, "missing keys keep their value")
	assert.Equal(t, 5, opts.ProximityThreshold)
}

func TestApplyTOMLInvalid(t *testing.T) {
	s := Defaults()
	assert.Error(t, s.ApplyTOML([]byte(`peer_name = `)))
	assert.Error(t, s.ApplyTOML([]byte(`fade_delay_s = 300`)), "out of range for uint8")
	assert.Equal(t, DefaultPeerName, s.GetPeerName())
}

func TestMarshalTOMLRoundTrip(t *testing.T) {
	s := Defaults()
	s.SetFlag(FlagDebug, true)

	data, err := s.MarshalTOML()
	require.NoError(t, err)
	assert.Contains(t, string(data), "peer_name = 'F-nRF52'")

	var back Settings
	require.NoError(t, back.ApplyTOML(data))
	assert.Equal(t, s.ToFile(), back.ToFile())
}

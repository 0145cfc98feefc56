package board

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/tuffrabit/tinygo-billboard-remote/pkg/input"
)

func TestVirtualButtons(t *testing.T) {
	v := NewVirtual()

	v.Press(input.State(0).With(input.ButtonB, true))
	assert.True(t, v.Buttons().IsPressed(input.ButtonB))
	assert.Zero(t, v.Buttons(), "presses are read once")

	v.Hold(input.Both)
	assert.True(t, v.Buttons().Both())
	assert.True(t, v.Buttons().Both(), "held buttons stay down")
}

func TestVirtualBrightness(t *testing.T) {
	v := NewVirtual()
	assert.Equal(t, 1.0, v.Brightness())

	v.SetBrightness(-0.2)
	assert.Equal(t, 0.0, v.Brightness())
	v.SetBrightness(3)
	assert.Equal(t, 1.0, v.Brightness())
}

func TestVirtualTones(t *testing.T) {
	v := NewVirtual()
	v.PlayTone(1459, time.Second)

	assert.Equal(t, []Tone{{Freq: 1459, Duration: time.Second}}, v.Tones())
	assert.Empty(t, v.Tones())
}

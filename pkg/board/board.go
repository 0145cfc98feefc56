// Package board provides the remote's buttons, proximity sensor, buzzer and
// backlight. CLUE drives the real hardware; Virtual stands in for it on the
// host.
package board

import (
	"sync"
	"time"

	"github.com/tuffrabit/tinygo-billboard-remote/pkg/input"
)

// Tone is one buzzer note.
type Tone struct {
	Freq     uint16
	Duration time.Duration
}

// Virtual is an in-memory board. Presses are latched until read once; held
// buttons stay down until released.
type Virtual struct {
	mu         sync.Mutex
	latch      input.Latch
	held       input.State
	proximity  int
	brightness float64
	tones      []Tone
}

// NewVirtual returns a board at full brightness with nothing pressed.
func NewVirtual() *Virtual {
	return &Virtual{brightness: 1}
}

// Press queues a press for the next Buttons call.
func (v *Virtual) Press(s input.State) {
	v.mu.Lock()
	v.latch.Press(s)
	v.mu.Unlock()
}

// Hold sets the buttons held down.
func (v *Virtual) Hold(s input.State) {
	v.mu.Lock()
	v.held = s
	v.mu.Unlock()
}

func (v *Virtual) Buttons() input.State {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.held | v.latch.Take()
}

func (v *Virtual) SetProximity(p int) {
	v.mu.Lock()
	v.proximity = p
	v.mu.Unlock()
}

func (v *Virtual) Proximity() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.proximity
}

// PlayTone records the tone without waiting for it.
func (v *Virtual) PlayTone(freq uint16, d time.Duration) {
	v.mu.Lock()
	v.tones = append(v.tones, Tone{Freq: freq, Duration: d})
	v.mu.Unlock()
}

// Tones returns and clears the recorded tones.
func (v *Virtual) Tones() []Tone {
	v.mu.Lock()
	defer v.mu.Unlock()
	t := v.tones
	v.tones = nil
	return t
}

func (v *Virtual) Brightness() float64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.brightness
}

func (v *Virtual) SetBrightness(b float64) {
	v.mu.Lock()
	v.brightness = clamp(b)
	v.mu.Unlock()
}

func clamp(b float64) float64 {
	switch {
	case b < 0:
		return 0
	case b > 1:
		return 1
	default:
		return b
	}
}

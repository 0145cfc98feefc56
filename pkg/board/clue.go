//go:build tinygo

package board

import (
	"machine"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tuffrabit/tinygo-billboard-remote/pkg/input"

	"tinygo.org/x/drivers/apds9960"
	"tinygo.org/x/drivers/buzzer"
)

// CLUE is the Adafruit CLUE board.
type CLUE struct {
	left  machine.Pin
	right machine.Pin

	sensor    apds9960.Device
	proximity int
	override  int

	bzr buzzer.Device

	pwm        *machine.PWM
	channel    uint8
	brightness float64

	latch input.Latch
}

// NewCLUE configures the buttons, sensor, speaker and backlight.
func NewCLUE() (*CLUE, error) {
	b := &CLUE{
		left:     machine.BUTTON_LEFT,
		right:    machine.BUTTON_RIGHT,
		override: -1,
	}
	b.left.Configure(machine.PinConfig{Mode: machine.PinInputPullup})
	b.right.Configure(machine.PinConfig{Mode: machine.PinInputPullup})

	if err := machine.I2C0.Configure(machine.I2CConfig{
		SCL: machine.SCL_PIN,
		SDA: machine.SDA_PIN,
	}); err != nil {
		return nil, err
	}
	b.sensor = apds9960.New(machine.I2C0)
	b.sensor.Configure(apds9960.Configuration{})
	if !b.sensor.Connected() {
		log.Warn().Msg("proximity sensor not found")
	}
	b.sensor.EnableProximity()

	machine.SPEAKER.Configure(machine.PinConfig{Mode: machine.PinOutput})
	b.bzr = buzzer.New(machine.SPEAKER)
	// One beat per second, so durations are in seconds
	b.bzr.BPM = 60

	b.pwm = machine.PWM0
	if err := b.pwm.Configure(machine.PWMConfig{}); err != nil {
		return nil, err
	}
	ch, err := b.pwm.Channel(machine.TFT_LITE)
	if err != nil {
		return nil, err
	}
	b.channel = ch
	b.SetBrightness(1)

	return b, nil
}

// Buttons reads the buttons. They are active low.
func (b *CLUE) Buttons() input.State {
	s := b.latch.Take()
	s = s.With(input.ButtonA, s.IsPressed(input.ButtonA) || !b.left.Get())
	s = s.With(input.ButtonB, s.IsPressed(input.ButtonB) || !b.right.Get())
	return s
}

// Press queues a press from the console.
func (b *CLUE) Press(s input.State) {
	b.latch.Press(s)
}

// Proximity returns the last proximity reading, 0 to 255.
func (b *CLUE) Proximity() int {
	if b.override >= 0 {
		p := b.override
		b.override = -1
		return p
	}
	if b.sensor.ProximityAvailable() {
		b.proximity = int(b.sensor.ReadProximity())
	}
	return b.proximity
}

// SetProximity overrides the next reading.
func (b *CLUE) SetProximity(p int) {
	b.override = p
}

// PlayTone blocks for the tone's duration.
func (b *CLUE) PlayTone(freq uint16, d time.Duration) {
	if err := b.bzr.Tone(float64(freq), d.Seconds()); err != nil {
		log.Debug().Err(err).Uint16("freq", freq).Msg("tone")
	}
}

func (b *CLUE) Brightness() float64 {
	return b.brightness
}

func (b *CLUE) SetBrightness(v float64) {
	b.brightness = clamp(v)
	b.pwm.Set(b.channel, uint32(float64(b.pwm.Top())*b.brightness))
}

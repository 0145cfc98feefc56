//go:build tinygo

package display

import (
	"machine"

	"github.com/jonboulle/clockwork"

	"tinygo.org/x/drivers/st7789"
)

const (
	screenWidth  = 240
	screenHeight = 240

	spiFrequency = 8000000
)

// NewST7789 configures the CLUE's TFT and returns a screen painting on it.
// The backlight pin is left to the board package, which dims it with PWM.
func NewST7789(clock clockwork.Clock) (*Screen, error) {
	spi := machine.SPI1
	if err := spi.Configure(machine.SPIConfig{
		Frequency: spiFrequency,
		SCK:       machine.TFT_SCK,
		SDO:       machine.TFT_SDO,
		Mode:      0,
	}); err != nil {
		return nil, err
	}

	dev := st7789.New(spi, machine.TFT_RESET, machine.TFT_DC, machine.TFT_CS, machine.NoPin)
	dev.Configure(st7789.Config{
		Width:    screenWidth,
		Height:   screenHeight,
		Rotation: st7789.ROTATION_180,
	})
	dev.FillScreen(black)

	return NewScreen(&dev, clock), nil
}

// Package display renders billboard content on the remote's screen.
//
// The screen holds three labels: the static content label, the scrolling
// content label and the status indicator in the lower left corner. Exactly
// one of the two content labels is visible after content is shown.
// Labels are painted with tinyfont onto any drivers.Displayer.
package display

import (
	"image/color"
	"strings"

	"github.com/jonboulle/clockwork"
	"github.com/tuffrabit/tinygo-billboard-remote/pkg/config"

	"tinygo.org/x/drivers"
	"tinygo.org/x/tinyfont"
	"tinygo.org/x/tinyfont/proggy"
)

const (
	// Label anchors, top-left corner in pixels
	contentX   = 5
	contentY   = 12
	indicatorX = 40
	indicatorY = 170
)

// Disconnected is the indicator text while no billboard is linked.
const Disconnected = "  BILLBOARD\nDISCONNECTED"

var black = color.RGBA{0, 0, 0, 255}

// Screen is the render surface.
type Screen struct {
	Static    *Label
	Scroll    *ScrollingLabel
	Indicator *Label

	target drivers.Displayer
	font   *tinyfont.Font
	clock  clockwork.Clock
}

// NewScreen creates the surface. target may be nil, in which case label state
// is tracked but nothing is painted.
func NewScreen(target drivers.Displayer, clock clockwork.Clock) *Screen {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	s := &Screen{
		Static:    newLabel(contentX, contentY, "", config.White, config.DefaultScale),
		Scroll:    newScrollingLabel(contentX, contentY, config.ScrollMaxChars, config.ScrollInterval),
		Indicator: newLabel(indicatorX, indicatorY, Disconnected, config.Green, config.DefaultScale),
		target:    target,
		font:      &proggy.TinySZ8pt7b,
		clock:     clock,
	}
	s.Scroll.SetHidden(true)
	return s
}

// Advance steps the scrolling label's animation.
func (s *Screen) Advance() {
	if !s.Scroll.Hidden() {
		s.Scroll.Advance(s.clock.Now())
	}
}

// Dirty reports whether any label changed since the last Refresh.
func (s *Screen) Dirty() bool {
	return s.Static.dirty || s.Scroll.dirty || s.Indicator.dirty
}

// Refresh repaints the screen if any label changed.
func (s *Screen) Refresh() error {
	if !s.Dirty() {
		return nil
	}
	s.Static.dirty = false
	s.Scroll.dirty = false
	s.Indicator.dirty = false

	if s.target == nil {
		return nil
	}

	w, h := s.target.Size()
	fillRect(s.target, 0, 0, w, h, black)

	if !s.Static.Hidden() {
		s.paint(s.Static, s.Static.Text())
	}
	if !s.Scroll.Hidden() {
		s.paint(&s.Scroll.Label, s.Scroll.Window())
	}
	if !s.Indicator.Hidden() {
		s.paint(s.Indicator, s.Indicator.Text())
	}

	return s.target.Display()
}

// paint draws text for l. Lines are split on '\n'.
func (s *Screen) paint(l *Label, text string) {
	scale := int16(l.Scale())
	lineH := int16(s.font.YAdvance)
	lines := strings.Split(text, "\n")
	up := &scaled{target: s.target, x: l.X, y: l.Y, scale: scale}

	if bg, ok := l.Background(); ok {
		var wMax uint32
		for _, line := range lines {
			if _, outbox := tinyfont.LineWidth(s.font, line); outbox > wMax {
				wMax = outbox
			}
		}
		fillRect(up, 0, 0, int16(wMax), lineH*int16(len(lines)), rgb(bg))
	}

	fg := rgb(l.Color())
	for i, line := range lines {
		// tinyfont positions text by its baseline
		baseline := lineH*int16(i+1) - 2
		tinyfont.WriteLine(up, s.font, 0, baseline, line, fg)
	}
}

func rgb(c uint32) color.RGBA {
	return color.RGBA{R: uint8(c >> 16), G: uint8(c >> 8), B: uint8(c), A: 255}
}

type rectFiller interface {
	FillRectangle(x, y, width, height int16, c color.RGBA) error
}

// fillRect uses the display's own rectangle fill when it has one; per-pixel
// SPI writes are slow.
func fillRect(d drivers.Displayer, x, y, w, h int16, c color.RGBA) {
	if f, ok := d.(rectFiller); ok {
		f.FillRectangle(x, y, w, h, c)
		return
	}
	for j := y; j < y+h; j++ {
		for i := x; i < x+w; i++ {
			d.SetPixel(i, j, c)
		}
	}
}

// scaled maps a label's unscaled coordinates onto the target, drawing each
// pixel as a scale×scale block.
type scaled struct {
	target drivers.Displayer
	x, y   int16
	scale  int16
}

func (s *scaled) Size() (x, y int16) {
	w, h := s.target.Size()
	return (w - s.x) / s.scale, (h - s.y) / s.scale
}

func (s *scaled) SetPixel(x, y int16, c color.RGBA) {
	if x < 0 || y < 0 {
		return
	}
	w, h := s.Size()
	if x >= w || y >= h {
		return
	}
	fillRect(s.target, s.x+x*s.scale, s.y+y*s.scale, s.scale, s.scale, c)
}

func (s *scaled) FillRectangle(x, y, width, height int16, c color.RGBA) error {
	fillRect(s.target, s.x+x*s.scale, s.y+y*s.scale, width*s.scale, height*s.scale, c)
	return nil
}

// Display is a no-op; the screen flushes once per Refresh.
func (s *scaled) Display() error {
	return nil
}

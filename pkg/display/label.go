package display

import (
	"time"
)

// Label is one text element of the screen.
type Label struct {
	X, Y   int16
	text   string
	fg     uint32
	bg     uint32
	hasBG  bool
	scale  int
	hidden bool
	dirty  bool
}

func newLabel(x, y int16, text string, fg uint32, scale int) *Label {
	return &Label{X: x, Y: y, text: text, fg: fg, scale: scale, dirty: true}
}

// SetText sets the label text.
func (l *Label) SetText(text string) {
	if l.text != text {
		l.text = text
		l.dirty = true
	}
}

// SetColor sets the 24-bit foreground colour.
func (l *Label) SetColor(c uint32) {
	if l.fg != c {
		l.fg = c
		l.dirty = true
	}
}

// SetBackground sets the 24-bit background colour; ok false means none.
func (l *Label) SetBackground(c uint32, ok bool) {
	if !ok {
		c = 0
	}
	if l.bg != c || l.hasBG != ok {
		l.bg = c
		l.hasBG = ok
		l.dirty = true
	}
}

// SetScale sets the integer upscaling factor.
func (l *Label) SetScale(scale int) {
	if scale < 1 {
		scale = 1
	}
	if l.scale != scale {
		l.scale = scale
		l.dirty = true
	}
}

// SetHidden shows or hides the label.
func (l *Label) SetHidden(hidden bool) {
	if l.hidden != hidden {
		l.hidden = hidden
		l.dirty = true
	}
}

func (l *Label) Text() string  { return l.text }
func (l *Label) Color() uint32 { return l.fg }
func (l *Label) Scale() int    { return l.scale }
func (l *Label) Hidden() bool  { return l.hidden }

// Background returns the background colour and whether one is set.
func (l *Label) Background() (uint32, bool) {
	return l.bg, l.hasBG
}

// ScrollingLabel shows a fixed-width window of its text that moves one
// character per interval and wraps around.
type ScrollingLabel struct {
	Label
	maxChars int
	interval time.Duration
	offset   int
	last     time.Time
}

func newScrollingLabel(x, y int16, maxChars int, interval time.Duration) *ScrollingLabel {
	return &ScrollingLabel{
		Label:    *newLabel(x, y, "", 0xFFFFFF, 2),
		maxChars: maxChars,
		interval: interval,
	}
}

// SetText sets the text and restarts the scroll from its first character.
func (l *ScrollingLabel) SetText(text string) {
	if l.text != text {
		l.offset = 0
	}
	l.Label.SetText(text)
}

// SetMaxCharacters sets the window width.
func (l *ScrollingLabel) SetMaxCharacters(n int) {
	if l.maxChars != n {
		l.maxChars = n
		l.offset = 0
		l.dirty = true
	}
}

func (l *ScrollingLabel) MaxCharacters() int { return l.maxChars }

// Advance moves the window by one character once the interval has passed
// since the previous move. It reports whether the window moved.
func (l *ScrollingLabel) Advance(now time.Time) bool {
	n := len([]rune(l.text))
	if l.maxChars <= 0 || n <= l.maxChars {
		return false
	}
	if !l.last.IsZero() && now.Sub(l.last) < l.interval {
		return false
	}
	l.last = now
	l.offset = (l.offset + 1) % n
	l.dirty = true
	return true
}

// Window returns the characters currently in view.
func (l *ScrollingLabel) Window() string {
	runes := []rune(l.text)
	if l.maxChars <= 0 || len(runes) <= l.maxChars {
		return l.text
	}
	out := make([]rune, l.maxChars)
	for i := range out {
		out[i] = runes[(l.offset+i)%len(runes)]
	}
	return string(out)
}

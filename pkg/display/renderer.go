package display

import (
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog/log"
	"github.com/tuffrabit/tinygo-billboard-remote/pkg/config"
	"github.com/tuffrabit/tinygo-billboard-remote/pkg/protocol"
)

// Fixed screen messages
const (
	AbsentMessage  = "Error in\nreturned content\n[A] or [B]\nto continue."
	InvalidMessage = "ERROR\nCONTENT INVALID\nCHECK BILLBOARD"
	RecordError    = "Error in dictionary content\n"
)

// Mode selects which content label is visible.
type Mode uint8

const (
	ModeStatic Mode = iota
	ModeScrolling
)

func (m Mode) String() string {
	if m == ModeScrolling {
		return "scrolling"
	}
	return "static"
}

type contentKind uint8

const (
	kindAbsent contentKind = iota
	kindRaw
	kindStructured
)

// Content is what the renderer is asked to show: a decoded record, a raw
// status string, or nothing (a reply that did not decode).
type Content struct {
	kind   contentKind
	raw    string
	record protocol.Record
}

// Absent is content for a reply that could not be decoded.
func Absent() Content {
	return Content{kind: kindAbsent}
}

// Raw is a status or error string shown as is.
func Raw(s string) Content {
	return Content{kind: kindRaw, raw: s}
}

// Structured is a decoded billboard record.
func Structured(r protocol.Record) Content {
	if r == nil {
		return Absent()
	}
	return Content{kind: kindStructured, record: r}
}

// State is what the screen shows after content is selected.
type State struct {
	Mode     Mode
	Text     string
	FG       uint32
	BG       uint32
	HasBG    bool
	Scale    int
	MaxChars int
}

// Select decides how content is presented. A record whose fields cannot be
// extracted is shown as its raw JSON behind an error line.
func Select(c Content) State {
	switch c.kind {
	case kindStructured:
		st, err := selectRecord(c.record)
		if err == nil {
			return st
		}
		log.Debug().Err(err).Str("record", c.record.JSON()).Msg("bad record content")
		return rawState(RecordError + c.record.JSON())
	case kindRaw:
		return rawState(c.raw)
	case kindAbsent:
		return rawState(AbsentMessage)
	default:
		return rawState(InvalidMessage)
	}
}

func rawState(s string) State {
	return State{
		Mode:  ModeStatic,
		Text:  s,
		FG:    config.White,
		Scale: config.DefaultScale,
	}
}

func selectRecord(r protocol.Record) (State, error) {
	text, err := r.Text()
	if err != nil {
		return State{}, err
	}
	fg, err := r.Color(protocol.FieldFG)
	if err != nil {
		return State{}, err
	}
	bg, err := r.Color(protocol.FieldBG)
	if err != nil {
		return State{}, err
	}

	st := State{
		Mode:  ModeStatic,
		Text:  text,
		FG:    fg,
		BG:    bg,
		HasBG: true,
		Scale: config.ContentScale,
	}
	if utf8.RuneCountInString(text) > config.ScrollThreshold && !strings.Contains(text, "\n") {
		st.Mode = ModeScrolling
		st.Text = strings.Repeat(" ", config.ScrollPadding) + text
		st.MaxChars = config.ScrollMaxChars
	}
	return st, nil
}

// Renderer applies selected content to the screen and remembers the result.
type Renderer struct {
	screen *Screen
	state  State
}

// NewRenderer creates a renderer drawing on screen.
func NewRenderer(screen *Screen) *Renderer {
	return &Renderer{
		screen: screen,
		state:  State{Scale: config.DefaultScale, FG: config.White},
	}
}

// Show selects and displays c.
func (r *Renderer) Show(c Content) State {
	st := Select(c)

	switch st.Mode {
	case ModeScrolling:
		l := r.screen.Scroll
		l.SetText(st.Text)
		l.SetColor(st.FG)
		l.SetBackground(st.BG, st.HasBG)
		l.SetScale(st.Scale)
		l.SetMaxCharacters(st.MaxChars)
		r.screen.Static.SetHidden(true)
		l.SetHidden(false)
	default:
		l := r.screen.Static
		l.SetText(st.Text)
		l.SetColor(st.FG)
		l.SetBackground(st.BG, st.HasBG)
		l.SetScale(st.Scale)
		r.screen.Scroll.SetHidden(true)
		l.SetHidden(false)
	}

	r.state = st
	return st
}

// State returns the last shown state.
func (r *Renderer) State() State {
	return r.state
}

// Scrolling reports whether the scrolling label is in use.
func (r *Renderer) Scrolling() bool {
	return r.state.Mode == ModeScrolling
}

// HideContent hides both content labels while the link is down.
func (r *Renderer) HideContent() {
	r.screen.Static.SetHidden(true)
	r.screen.Scroll.SetHidden(true)
}

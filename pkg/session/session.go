// Package session runs the remote: it keeps the billboard link up, turns
// button presses into requests and shows the replies.
package session

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
	"github.com/tuffrabit/tinygo-billboard-remote/pkg/config"
	"github.com/tuffrabit/tinygo-billboard-remote/pkg/display"
	"github.com/tuffrabit/tinygo-billboard-remote/pkg/input"
	"github.com/tuffrabit/tinygo-billboard-remote/pkg/link"
	"github.com/tuffrabit/tinygo-billboard-remote/pkg/protocol"
)

// Welcome is shown at start-up.
const Welcome = "No Billboard\nConnected\n[A+B] to scan\nfor billboard"

// Tone frequencies in Hz
const (
	toneDisconnect = 1459
	toneLow        = 887
	toneHigh       = 1024
)

// Board is the hardware the session drives.
type Board interface {
	Buttons() input.State
	Proximity() int
	PlayTone(freq uint16, d time.Duration)
	Brightness() float64
	SetBrightness(b float64)
}

// Poller is polled once per iteration, typically the debug console.
type Poller interface {
	Poll()
}

// Session is the remote's control loop and the state it carries between
// iterations.
type Session struct {
	opts     config.Options
	clock    clockwork.Clock
	board    Board
	link     *link.Manager
	screen   *display.Screen
	renderer *display.Renderer
	format   *display.Formatter
	framer   protocol.Framer
	rx       []byte

	pending     link.Advertisement
	lastErr     error
	displayTime time.Time
	buttonTime  time.Time
	console     Poller
}

// New creates a session and shows the welcome message.
func New(opts config.Options, clock clockwork.Clock, board Board, lm *link.Manager, screen *display.Screen) *Session {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	s := &Session{
		opts:     opts,
		clock:    clock,
		board:    board,
		link:     lm,
		screen:   screen,
		renderer: display.NewRenderer(screen),
		format:   display.NewFormatter(),
		rx:       make([]byte, link.DefaultInboundSize),
	}
	s.buttonTime = clock.Now()
	s.renderer.Show(display.Raw(Welcome))
	s.wake()
	return s
}

// SetConsole sets the poller run at the start of every iteration.
func (s *Session) SetConsole(p Poller) {
	s.console = p
}

// Renderer returns the session's renderer.
func (s *Session) Renderer() *display.Renderer {
	return s.renderer
}

// Run steps the session until ctx is done. An iteration in progress is not
// interrupted.
func (s *Session) Run(ctx context.Context) error {
	log.Info().Str("peer", s.opts.PeerName).Bool("manual", s.opts.ManualConnect).Msg("session started")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		s.Step()
		runtime.Gosched()
	}
}

// Step runs one iteration of the control loop.
func (s *Session) Step() {
	if s.console != nil {
		s.console.Poll()
	}

	s.fade()

	switch {
	case s.board.Proximity() > s.opts.ProximityThreshold:
		s.wake()
	case s.link.Linked():
		s.stepLinked()
	default:
		s.stepUnlinked()
	}

	if err := s.screen.Refresh(); err != nil {
		log.Error().Err(err).Msg("screen refresh")
	}
}

// fade dims the backlight one step per idle FadeDelay.
func (s *Session) fade() {
	now := s.clock.Now()
	if now.Sub(s.displayTime) <= s.opts.FadeDelay {
		return
	}
	b := s.board.Brightness()
	if b > config.FadeStep {
		b -= config.FadeStep
	} else {
		b = 0
	}
	s.board.SetBrightness(b)
	s.displayTime = now
}

// wake restores full brightness and restarts the idle timer.
func (s *Session) wake() {
	s.board.SetBrightness(1)
	s.displayTime = s.clock.Now()
}

func (s *Session) stepLinked() {
	if s.clock.Since(s.buttonTime) > s.opts.ButtonDelay {
		buttons := s.board.Buttons()
		switch {
		case buttons.Both():
			s.board.PlayTone(toneDisconnect, time.Second)
			if err := s.Disconnect(); err != nil {
				log.Debug().Err(err).Msg("disconnect")
			}
			s.wake()
		case buttons.IsPressed(input.ButtonB):
			s.screen.Indicator.SetText("B")
			s.playTones(toneLow, toneHigh, toneLow)
			s.Exchange(protocol.CmdNext)
			s.wake()
		case buttons.IsPressed(input.ButtonA):
			s.screen.Indicator.SetText("A")
			s.playTones(toneHigh, toneLow, toneHigh)
			s.Exchange(protocol.CmdPrev)
			s.wake()
		}
		s.buttonTime = s.clock.Now()
	}

	if s.renderer.Scrolling() {
		s.screen.Advance()
	}
}

// playTones plays a three note chime, the last note longest.
func (s *Session) playTones(first, second, third uint16) {
	s.board.PlayTone(first, 300*time.Millisecond)
	s.board.PlayTone(second, 300*time.Millisecond)
	s.board.PlayTone(third, 400*time.Millisecond)
}

func (s *Session) stepUnlinked() {
	s.screen.Indicator.SetHidden(false)

	if s.opts.ManualConnect {
		if s.board.Buttons().Both() {
			s.scanOrConnect()
		}
		return
	}

	s.renderer.HideContent()
	s.screen.Indicator.SetText(display.Disconnected)
	s.scanOrConnect()
}

func (s *Session) scanOrConnect() {
	if s.pending == nil {
		s.pending = s.link.Scan(s.opts.PeerName)
		if s.pending != nil && s.opts.ManualConnect {
			s.renderer.Show(display.Raw(fmt.Sprintf("Found %s \n[A+B] to connect", s.pending.LocalName())))
		}
		return
	}
	s.connect()
}

// connect uses up the pending advertisement whatever the outcome.
func (s *Session) connect() {
	adv := s.pending
	s.pending = nil

	if _, err := s.link.Connect(adv); err != nil {
		log.Debug().Err(err).Msg("connect failed")
		if !s.opts.ManualConnect {
			return
		}
		if errors.Is(err, link.ErrNoUART) {
			s.renderer.Show(display.Raw("Connection failed.\nTry rescan[A+B]."))
		} else {
			s.renderer.Show(display.Raw(fmt.Sprintf("Unable to connect \nto %s.\nPlease rescan[A+B].", adv.LocalName())))
		}
		return
	}

	s.screen.Indicator.SetHidden(true)
	s.Exchange(protocol.CmdConnect)
}

// Disconnect drops the link. The next iteration starts looking for the
// billboard again.
func (s *Session) Disconnect() error {
	return s.link.Disconnect()
}

// Status summarises the session for the console.
func (s *Session) Status() string {
	st := s.renderer.State()
	out := fmt.Sprintf("link %s\npeer %s\nshow %s\nlight %.1f",
		s.link.State(), s.opts.PeerName, s.format.FormatState(st), s.board.Brightness())
	if s.lastErr != nil {
		out += "\nerror " + s.format.FormatError(s.lastErr)
	}
	return out
}

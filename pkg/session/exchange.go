package session

import (
	"fmt"
	"runtime"

	"github.com/rs/zerolog/log"
	"github.com/tuffrabit/tinygo-billboard-remote/pkg/display"
	"github.com/tuffrabit/tinygo-billboard-remote/pkg/link"
	"github.com/tuffrabit/tinygo-billboard-remote/pkg/protocol"
)

// Exchange sends cmd and shows the reply. No reply within ResponseDelay
// leaves the screen as it is. Failures are shown as text and kept for
// Status; the link is kept.
func (s *Session) Exchange(cmd protocol.Command) {
	ch := s.link.Channel()
	if ch == nil {
		log.Error().Err(link.ErrNoLink).Stringer("cmd", cmd).Msg("exchange skipped")
		return
	}

	s.lastErr = s.exchange(ch, cmd)
	if s.lastErr != nil {
		log.Error().Err(s.lastErr).Stringer("cmd", cmd).Msg("exchange failed")
		s.renderer.Show(display.Raw(s.lastErr.Error()))
	}
}

func (s *Session) exchange(ch link.Channel, cmd protocol.Command) error {
	out, name := s.format.FormatCommand(cmd)
	log.Debug().Str("bytes", out).Str("cmd", name).Msg("send")

	ch.ResetInputBuffer()
	if _, err := ch.Write([]byte{byte(cmd)}); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}

	start := s.clock.Now()
	for ch.Buffered() == 0 {
		if s.clock.Since(start) > s.opts.ResponseDelay {
			log.Debug().Str("cmd", name).Msg("no reply")
			return nil
		}
		runtime.Gosched()
	}

	// Read until the braces balance. There is no time limit here: a reply
	// cut short stalls the loop.
	s.framer.Await()
	for s.framer.Awaiting() {
		n := ch.Buffered()
		if n == 0 {
			runtime.Gosched()
			continue
		}
		if n > len(s.rx) {
			n = len(s.rx)
		}
		n, err := ch.Read(s.rx[:n])
		if err != nil {
			return fmt.Errorf("read %s reply: %w", name, err)
		}
		s.framer.Capture(s.rx[:n])
	}

	reply := s.framer.Bytes()
	in, size := s.format.FormatReply(reply)
	log.Debug().Str("bytes", in).Str("reply", size).Msg("recv")

	rec, ok := protocol.Parse(reply)
	if !ok {
		log.Debug().Bytes("reply", reply).Msg("reply did not decode")
		s.renderer.Show(display.Absent())
		return nil
	}
	st := s.renderer.Show(display.Structured(rec))
	log.Debug().Str("state", s.format.FormatState(st)).Msg("shown")
	return nil
}

package session

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/tuffrabit/tinygo-billboard-remote/pkg/config"
	"github.com/tuffrabit/tinygo-billboard-remote/pkg/input"
	"github.com/tuffrabit/tinygo-billboard-remote/pkg/logging"
	"github.com/tuffrabit/tinygo-billboard-remote/pkg/storage"
	"github.com/tuffrabit/tinygo-billboard-remote/serial"
)

var (
	ErrNoStore    = errors.New("no settings storage")
	ErrNoInjector = errors.New("board does not take simulated input")
)

// SettingsStore persists settings.
type SettingsStore interface {
	SaveSettings(s *config.Settings) error
}

// flashStore is a store that can report and erase its contents.
type flashStore interface {
	GetStats() (*storage.Stats, error)
	ForceWipe() error
}

// Injector is a board that accepts presses and proximity readings from the
// console.
type Injector interface {
	Press(s input.State)
	SetProximity(p int)
}

// Registry is where console commands are registered.
type Registry interface {
	Handle(name, help string, fn serial.HandlerFunc)
}

// Register installs the console commands. Changes made through them apply
// to settings and take effect immediately; save writes settings to store.
func (s *Session) Register(r Registry, settings *config.Settings, store SettingsStore) {
	r.Handle("status", "show link and screen state", func([]string) (string, error) {
		return s.Status(), nil
	})

	r.Handle("press", "a|b|ab", func(args []string) (string, error) {
		inj, ok := s.board.(Injector)
		if !ok {
			return "", ErrNoInjector
		}
		if len(args) != 1 {
			return "", serial.ErrUsage
		}
		st, ok := input.Parse(args[0])
		if !ok {
			return "", serial.ErrUsage
		}
		inj.Press(st)
		return "", nil
	})

	r.Handle("near", "N (0-255)", func(args []string) (string, error) {
		inj, ok := s.board.(Injector)
		if !ok {
			return "", ErrNoInjector
		}
		if len(args) != 1 {
			return "", serial.ErrUsage
		}
		p, err := strconv.Atoi(args[0])
		if err != nil || p < 0 || p > 255 {
			return "", serial.ErrUsage
		}
		inj.SetProximity(p)
		return "", nil
	})

	r.Handle("peer", "NAME", func(args []string) (string, error) {
		if len(args) != 1 || args[0] == "" {
			return "", serial.ErrUsage
		}
		settings.SetPeerName(args[0])
		s.opts.PeerName = settings.GetPeerName()
		s.pending = nil
		return s.opts.PeerName, nil
	})

	r.Handle("mode", "auto|manual", func(args []string) (string, error) {
		if len(args) != 1 {
			return "", serial.ErrUsage
		}
		switch args[0] {
		case "auto":
			s.opts.ManualConnect = false
		case "manual":
			s.opts.ManualConnect = true
		default:
			return "", serial.ErrUsage
		}
		settings.SetFlag(config.FlagManualConnect, s.opts.ManualConnect)
		return "", nil
	})

	r.Handle("debug", "on|off", func(args []string) (string, error) {
		if len(args) != 1 {
			return "", serial.ErrUsage
		}
		switch args[0] {
		case "on":
			s.opts.Debug = true
		case "off":
			s.opts.Debug = false
		default:
			return "", serial.ErrUsage
		}
		settings.SetFlag(config.FlagDebug, s.opts.Debug)
		logging.SetDebug(s.opts.Debug)
		return "", nil
	})

	r.Handle("save", "write settings to flash", func([]string) (string, error) {
		if store == nil {
			return "", ErrNoStore
		}
		return "", store.SaveSettings(settings)
	})

	r.Handle("flash", "show flash usage", func([]string) (string, error) {
		st, ok := store.(flashStore)
		if !ok {
			return "", ErrNoStore
		}
		stats, err := st.GetStats()
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("used %d/%d\nsettings %t\ncontent %d",
			stats.UsedSpace, stats.TotalSpace, stats.HasSettings, stats.ContentSize), nil
	})

	r.Handle("wipe", "erase flash, defaults on next boot", func([]string) (string, error) {
		st, ok := store.(flashStore)
		if !ok {
			return "", ErrNoStore
		}
		return "", st.ForceWipe()
	})

	r.Handle("disconnect", "drop the billboard link", func([]string) (string, error) {
		return "", s.Disconnect()
	})
}

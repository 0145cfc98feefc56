//go:build tinygo

package main

import (
	"context"
	"errors"
	"machine"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
	"github.com/tuffrabit/tinygo-billboard-remote/pkg/board"
	"github.com/tuffrabit/tinygo-billboard-remote/pkg/config"
	"github.com/tuffrabit/tinygo-billboard-remote/pkg/display"
	"github.com/tuffrabit/tinygo-billboard-remote/pkg/link"
	"github.com/tuffrabit/tinygo-billboard-remote/pkg/logging"
	"github.com/tuffrabit/tinygo-billboard-remote/pkg/session"
	"github.com/tuffrabit/tinygo-billboard-remote/pkg/storage"
	"github.com/tuffrabit/tinygo-billboard-remote/serial"

	"tinygo.org/x/bluetooth"
)

// MAIN THREAD DUTIES
//

func main() {
	port := machine.Serial // USB CDC Serial
	logging.Setup(port, false)

	settings := config.Defaults()
	var store session.SettingsStore
	flash, err := storage.New(machine.Flash, true)
	if err != nil {
		log.Error().Err(err).Msg("storage unavailable, using defaults")
	} else {
		store = flash
		if err := flash.LoadSettings(&settings); err != nil {
			if !errors.Is(err, storage.ErrNotFound) {
				log.Warn().Err(err).Msg("bad settings, using defaults")
			}
			settings = config.Defaults()
		}
	}
	opts := settings.Options()
	logging.SetDebug(opts.Debug)

	clock := clockwork.NewRealClock()

	screen, err := display.NewST7789(clock)
	if err != nil {
		halt(err, "display")
	}
	clue, err := board.NewCLUE()
	if err != nil {
		halt(err, "board")
	}
	radio, err := link.NewBLE(bluetooth.DefaultAdapter, clock)
	if err != nil {
		halt(err, "bluetooth")
	}
	lm := link.NewManager(radio, link.ScanOptions{
		BufferSize: config.ScanBufferSize,
		Timeout:    config.ScanTimeout,
	}, clock)

	sess := session.New(opts, clock, clue, lm, screen)

	console := serial.NewConsole(port)
	sess.Register(console, &settings, store)
	sess.SetConsole(console)

	sess.Run(context.Background())
}

// halt logs a fatal start-up error and parks the main goroutine so the log
// can still be read over serial.
func halt(err error, what string) {
	log.Error().Err(err).Msgf("%s init failed", what)
	select {}
}

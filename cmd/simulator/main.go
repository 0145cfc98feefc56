// Command simulator runs the remote's session on the host. By default it
// talks to an in-process billboard serving a content document; with -ble it
// uses the host's bluetooth adapter instead. Console commands are read from
// stdin.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
	"github.com/tuffrabit/tinygo-billboard-remote/pkg/billboard"
	"github.com/tuffrabit/tinygo-billboard-remote/pkg/board"
	"github.com/tuffrabit/tinygo-billboard-remote/pkg/config"
	"github.com/tuffrabit/tinygo-billboard-remote/pkg/display"
	"github.com/tuffrabit/tinygo-billboard-remote/pkg/link"
	"github.com/tuffrabit/tinygo-billboard-remote/pkg/logging"
	"github.com/tuffrabit/tinygo-billboard-remote/pkg/session"
	"github.com/tuffrabit/tinygo-billboard-remote/pkg/storage"
	"github.com/tuffrabit/tinygo-billboard-remote/serial"

	"tinygo.org/x/bluetooth"
	"tinygo.org/x/tinyfs"
)

const sampleDoc = `{
	"welcome": {"text":"Welcome", "fg":"0xFFFFFF", "bg":"0x000000"},
	"menu":    {"text":"Today's specials on the board inside", "fg":"0xFFAA00", "bg":"0x000000"},
	"hours":   {"text":"Open\n9 to 5", "fg":"0x00FF00", "bg":"0x000044"}
}`

const stepInterval = 20 * time.Millisecond

func main() {
	contentPath := flag.String("content", "", "billboard content document (JSON)")
	configPath := flag.String("config", "", "settings file (TOML)")
	useBLE := flag.Bool("ble", false, "use the host bluetooth adapter")
	chunk := flag.Int("chunk", 20, "split loopback replies into chunks of this size")
	debug := flag.Bool("debug", false, "debug logging")
	flag.Parse()

	logging.Setup(os.Stderr, *debug)

	if err := run(*contentPath, *configPath, *useBLE, *chunk); err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("simulator failed")
		os.Exit(1)
	}
}

func run(contentPath, configPath string, useBLE bool, chunk int) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	settings := config.Defaults()
	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return fmt.Errorf("failed to read config file: %w", err)
		}
		if err := settings.ApplyTOML(data); err != nil {
			return err
		}
	}
	opts := settings.Options()
	if opts.Debug {
		logging.SetDebug(true)
	}

	store, err := storage.New(tinyfs.NewMemoryDevice(256, 4096, 64), true)
	if err != nil {
		return fmt.Errorf("failed to create flash: %w", err)
	}
	defer store.Close()

	if err := store.SaveSettings(&settings); err != nil {
		return err
	}
	if err := loadContent(store, contentPath); err != nil {
		return err
	}
	handler, err := billboard.Load(store)
	if err != nil {
		return err
	}
	live := billboard.NewLive(handler)

	clock := clockwork.NewRealClock()

	var radio link.Radio
	if useBLE {
		radio, err = link.NewBLE(bluetooth.DefaultAdapter, clock)
		if err != nil {
			return err
		}
	} else {
		radio = &link.Loopback{
			Names:     []string{opts.PeerName},
			Responder: live,
			Chunk:     chunk,
		}
	}

	if contentPath != "" && !useBLE {
		watcher, err := watchContent(contentPath, store, live)
		if err != nil {
			return err
		}
		defer watcher.Close()
	}

	lm := link.NewManager(radio, link.ScanOptions{
		BufferSize: config.ScanBufferSize,
		Timeout:    config.ScanTimeout,
	}, clock)
	screen := display.NewScreen(nil, clock)
	sess := session.New(opts, clock, board.NewVirtual(), lm, screen)

	console := serial.NewConsole(newStdinPort(os.Stdin, os.Stdout))
	sess.Register(console, &settings, store)
	console.Handle("settings", "print settings as TOML", settingsCommand(&settings))
	sess.SetConsole(console)

	return loop(ctx, clock, sess)
}

// loop steps the session and prints the screen whenever it changes.
func loop(ctx context.Context, clock clockwork.Clock, sess *session.Session) error {
	format := display.NewFormatter()
	ticker := clock.NewTicker(stepInterval)
	defer ticker.Stop()

	var last display.State
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.Chan():
		}

		sess.Step()
		if st := sess.Renderer().State(); st != last {
			last = st
			fmt.Printf("[%s]\n%s\n", format.FormatState(st), strings.TrimLeft(st.Text, " "))
		}
	}
}

func loadContent(store *storage.Manager, path string) error {
	doc := []byte(sampleDoc)
	if path != "" {
		var err error
		if doc, err = os.ReadFile(path); err != nil {
			return fmt.Errorf("failed to read content: %w", err)
		}
	}
	return store.SaveContent(doc)
}

// settingsCommand prints the current settings in the -config file format.
func settingsCommand(settings *config.Settings) serial.HandlerFunc {
	return func([]string) (string, error) {
		data, err := settings.MarshalTOML()
		if err != nil {
			return "", err
		}
		return strings.TrimRight(string(data), "\n"), nil
	}
}

// reloadContent checks the edited document before storing and serving it.
// A document that does not parse leaves the stored and served content alone.
func reloadContent(path string, store *storage.Manager, live *billboard.Live) error {
	doc, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read content: %w", err)
	}
	catalog, err := billboard.ParseCatalog(doc)
	if err != nil {
		return err
	}
	if err := store.SaveContent(doc); err != nil {
		return err
	}
	live.Swap(billboard.NewHandler(catalog))
	return nil
}

// watchContent reloads the billboard whenever the content file is written.
// The directory is watched since editors often replace the file.
func watchContent(path string, store *storage.Manager, live *billboard.Live) (*fsnotify.Watcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", path, err)
	}

	target := filepath.Clean(path)
	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != target || !event.Has(fsnotify.Write|fsnotify.Create) {
					continue
				}
				if err := reloadContent(path, store, live); err != nil {
					log.Warn().Err(err).Msg("content not reloaded")
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Warn().Err(err).Msg("content watcher")
			}
		}
	}()
	return watcher, nil
}

// stdinPort feeds console lines from a reader without blocking the session.
type stdinPort struct {
	in  *link.Inbound
	out io.Writer
}

func newStdinPort(r io.Reader, w io.Writer) *stdinPort {
	p := &stdinPort{in: link.NewInbound(link.DefaultInboundSize), out: w}
	go func() {
		sc := bufio.NewScanner(r)
		for sc.Scan() {
			p.in.Push([]byte(sc.Text() + "\n"))
		}
	}()
	return p
}

func (p *stdinPort) ReadByte() (byte, error) {
	var b [1]byte
	if n, _ := p.in.Read(b[:]); n == 0 {
		return 0, io.EOF
	}
	return b[0], nil
}

func (p *stdinPort) Write(b []byte) (int, error) { return p.out.Write(b) }
func (p *stdinPort) Buffered() int               { return p.in.Buffered() }

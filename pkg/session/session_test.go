package session

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tuffrabit/tinygo-billboard-remote/pkg/billboard"
	"github.com/tuffrabit/tinygo-billboard-remote/pkg/board"
	"github.com/tuffrabit/tinygo-billboard-remote/pkg/config"
	"github.com/tuffrabit/tinygo-billboard-remote/pkg/display"
	"github.com/tuffrabit/tinygo-billboard-remote/pkg/input"
	"github.com/tuffrabit/tinygo-billboard-remote/pkg/link"
	"github.com/tuffrabit/tinygo-billboard-remote/pkg/storage"
	"github.com/tuffrabit/tinygo-billboard-remote/serial"

	"tinygo.org/x/tinyfs"
)

const testDoc = `{
	"one":   {"text":"First",  "fg":"0xFFFFFF", "bg":"0x000000"},
	"two":   {"text":"Second", "fg":"0xFF0000", "bg":"0x000000"},
	"three": {"text":"A long scrolling message", "fg":"0x00FF00", "bg":"0x0000FF"}
}`

var (
	pressA = input.State(0).With(input.ButtonA, true)
	pressB = input.State(0).With(input.ButtonB, true)
)

// tickingRadio advances the fake clock whenever the session polls an empty
// channel, so reply timeouts elapse without sleeping.
type tickingRadio struct {
	*link.Loopback
	clock *clockwork.FakeClock
}

func (r tickingRadio) Peers() []link.Peer {
	peers := r.Loopback.Peers()
	for i, p := range peers {
		peers[i] = tickingPeer{Peer: p, clock: r.clock}
	}
	return peers
}

type tickingPeer struct {
	link.Peer
	clock *clockwork.FakeClock
}

func (p tickingPeer) UART() (link.Channel, bool) {
	ch, ok := p.Peer.UART()
	if !ok {
		return nil, false
	}
	return tickingChannel{Channel: ch, clock: p.clock}, true
}

type tickingChannel struct {
	link.Channel
	clock *clockwork.FakeClock
}

func (c tickingChannel) Buffered() int {
	n := c.Channel.Buffered()
	if n == 0 {
		c.clock.Advance(50 * time.Millisecond)
	}
	return n
}

type replyFunc func(cmd byte) []byte

func (f replyFunc) Respond(cmd byte) []byte { return f(cmd) }

type fixture struct {
	clock  *clockwork.FakeClock
	board  *board.Virtual
	radio  *link.Loopback
	screen *display.Screen
	sess   *Session
}

func newFixture(t *testing.T, manual bool) *fixture {
	t.Helper()

	catalog, err := billboard.ParseCatalog([]byte(testDoc))
	require.NoError(t, err)

	f := &fixture{
		clock: clockwork.NewFakeClock(),
		board: board.NewVirtual(),
		radio: &link.Loopback{
			Names:     []string{"Phone", config.DefaultPeerName},
			Responder: billboard.NewHandler(catalog),
			Chunk:     5,
		},
	}

	defaults := config.Defaults()
	opts := defaults.Options()
	opts.ManualConnect = manual

	lm := link.NewManager(tickingRadio{Loopback: f.radio, clock: f.clock},
		link.ScanOptions{BufferSize: config.ScanBufferSize, Timeout: config.ScanTimeout}, f.clock)
	f.screen = display.NewScreen(nil, f.clock)
	f.sess = New(opts, f.clock, f.board, lm, f.screen)
	return f
}

// connect runs the autoconnect scan and connect iterations.
func (f *fixture) connect(t *testing.T) {
	t.Helper()
	f.sess.Step()
	f.sess.Step()
	require.True(t, f.sess.link.Linked())
}

// press steps once with s pressed after the button delay has passed.
func (f *fixture) press(s input.State) {
	f.board.Press(s)
	f.clock.Advance(250 * time.Millisecond)
	f.sess.Step()
}

func (f *fixture) text() string {
	return f.sess.Renderer().State().Text
}

func TestStartupMessage(t *testing.T) {
	f := newFixture(t, false)

	assert.Equal(t, Welcome, f.text())
	assert.Equal(t, 1.0, f.board.Brightness())
	assert.False(t, f.screen.Static.Hidden())
}

func TestAutoconnect(t *testing.T) {
	f := newFixture(t, false)

	f.sess.Step()
	assert.True(t, f.screen.Static.Hidden(), "content hidden while disconnected")
	assert.True(t, f.screen.Scroll.Hidden())
	assert.False(t, f.screen.Indicator.Hidden())
	assert.Equal(t, display.Disconnected, f.screen.Indicator.Text())
	assert.Equal(t, link.StateDiscovered, f.sess.link.State())
	assert.Empty(t, f.radio.Written())

	f.sess.Step()
	assert.Equal(t, link.StateConnected, f.sess.link.State())
	assert.True(t, f.screen.Indicator.Hidden())
	assert.Equal(t, []byte("c"), f.radio.Written())
	assert.Equal(t, "First", f.text())
	assert.False(t, f.screen.Static.Hidden())
}

func TestPressBWritesOneNext(t *testing.T) {
	f := newFixture(t, false)
	f.connect(t)
	f.board.Tones()

	f.press(pressB)

	assert.Equal(t, []byte("cn"), f.radio.Written())
	assert.Equal(t, "Second", f.text())
	assert.Equal(t, "B", f.screen.Indicator.Text())
	assert.Equal(t, []board.Tone{
		{Freq: 887, Duration: 300 * time.Millisecond},
		{Freq: 1024, Duration: 300 * time.Millisecond},
		{Freq: 887, Duration: 400 * time.Millisecond},
	}, f.board.Tones())

	f.sess.Step()
	assert.Equal(t, []byte("cn"), f.radio.Written(), "no repeat without a press")
}

func TestPressAWritesPrev(t *testing.T) {
	f := newFixture(t, false)
	f.connect(t)
	f.board.Tones()

	f.press(pressA)

	assert.Equal(t, []byte("cp"), f.radio.Written())
	assert.Equal(t, "          A long scrolling message", f.text())
	assert.True(t, f.sess.Renderer().Scrolling())
	assert.Equal(t, "A", f.screen.Indicator.Text())
	assert.Equal(t, []board.Tone{
		{Freq: 1024, Duration: 300 * time.Millisecond},
		{Freq: 887, Duration: 300 * time.Millisecond},
		{Freq: 1024, Duration: 400 * time.Millisecond},
	}, f.board.Tones())
}

func TestButtonDelay(t *testing.T) {
	f := newFixture(t, false)
	f.connect(t)

	f.press(pressB)
	f.board.Press(pressB)
	f.clock.Advance(100 * time.Millisecond)
	f.sess.Step()

	assert.Equal(t, []byte("cn"), f.radio.Written(), "presses inside the delay are not read")
}

func TestScrollingAdvancesWhileLinked(t *testing.T) {
	f := newFixture(t, false)
	f.connect(t)
	f.press(pressA)
	require.True(t, f.sess.Renderer().Scrolling())

	before := f.screen.Scroll.Window()
	f.clock.Advance(time.Second)
	f.sess.Step()
	assert.NotEqual(t, before, f.screen.Scroll.Window())
}

func TestNoReplyLeavesScreenUnchanged(t *testing.T) {
	f := newFixture(t, false)
	f.connect(t)
	before := f.sess.Renderer().State()

	f.radio.Mute = true
	start := f.clock.Now()
	f.press(pressB)

	assert.Equal(t, []byte("cn"), f.radio.Written())
	assert.Equal(t, before, f.sess.Renderer().State())
	assert.Greater(t, f.clock.Since(start), time.Second, "waited out the reply delay")
	assert.True(t, f.sess.link.Linked())
}

func TestBadReplies(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		want  string
	}{
		{"not json", "{ nope }", display.AbsentMessage},
		{"bad field", `{"text":5,"fg":"0x0","bg":"0x0"}`, display.RecordError},
		{"bad colour", `{"text":"x","fg":"red","bg":"0x0"}`, display.RecordError},
		{"colour too wide", `{"text":"x","fg":"0x1FF0000","bg":"0x0"}`, display.RecordError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, false)
			f.radio.Responder = replyFunc(func(byte) []byte { return []byte(tt.reply) })
			f.connect(t)

			assert.True(t, strings.HasPrefix(f.text(), tt.want), f.text())
		})
	}
}

func TestReplyLargerThanInboundBuffer(t *testing.T) {
	long := strings.Repeat("A", 600)
	f := newFixture(t, false)
	f.radio.Responder = replyFunc(func(byte) []byte {
		return []byte(`{"text":"` + long + `","fg":"0xFFFFFF","bg":"0x000000"}`)
	})
	f.connect(t)

	assert.Equal(t, strings.Repeat(" ", 10)+long, f.text())
	assert.True(t, f.sess.Renderer().Scrolling())
	assert.Zero(t, f.sess.framer.Depth(), "braces balanced")
}

func TestExchangeErrorKeepsLink(t *testing.T) {
	f := newFixture(t, false)
	f.connect(t)

	f.radio.Drop()
	f.sess.Exchange('n')

	assert.Contains(t, f.text(), link.ErrNoLink.Error())
	assert.NotNil(t, f.sess.link.Channel(), "exchange does not drop the handle")
	assert.Contains(t, f.sess.Status(), "\nerror write Next..")
}

func TestExchangeWithoutLink(t *testing.T) {
	f := newFixture(t, false)

	f.sess.Exchange('n')
	assert.Empty(t, f.radio.Written())
	assert.Equal(t, Welcome, f.text())
}

func TestDisconnectOnBoth(t *testing.T) {
	f := newFixture(t, false)
	f.connect(t)
	f.board.Tones()
	f.board.SetBrightness(0.4)

	f.press(input.Both)

	assert.False(t, f.radio.Connected())
	assert.False(t, f.sess.link.Linked())
	assert.Equal(t, []byte("c"), f.radio.Written(), "A+B sends nothing")
	assert.Equal(t, []board.Tone{{Freq: 1459, Duration: time.Second}}, f.board.Tones())
	assert.Equal(t, 1.0, f.board.Brightness())
}

func TestDroppedLinkRestartsScan(t *testing.T) {
	f := newFixture(t, false)
	f.connect(t)

	f.radio.Drop()
	f.sess.Step()

	assert.Nil(t, f.sess.link.Channel())
	assert.False(t, f.screen.Indicator.Hidden())
	assert.Equal(t, display.Disconnected, f.screen.Indicator.Text())
	assert.True(t, f.screen.Static.Hidden())

	scans, _ := f.radio.Scans()
	assert.Equal(t, 2, scans)
}

func TestProximityWakesAndSkipsButtons(t *testing.T) {
	f := newFixture(t, false)
	f.connect(t)
	f.board.SetBrightness(0.3)
	f.board.SetProximity(10)

	f.press(pressB)

	assert.Equal(t, 1.0, f.board.Brightness())
	assert.Equal(t, []byte("c"), f.radio.Written())
}

func TestIdleFade(t *testing.T) {
	f := newFixture(t, false)
	f.radio.Names = nil

	f.clock.Advance(10*time.Second + time.Millisecond)
	f.sess.Step()
	assert.InDelta(t, 0.9, f.board.Brightness(), 1e-9)

	f.clock.Advance(5 * time.Second)
	f.sess.Step()
	assert.InDelta(t, 0.9, f.board.Brightness(), 1e-9, "one step per fade delay")

	f.clock.Advance(6 * time.Second)
	f.sess.Step()
	assert.InDelta(t, 0.8, f.board.Brightness(), 1e-9)

	f.board.SetBrightness(0.05)
	f.clock.Advance(11 * time.Second)
	f.sess.Step()
	assert.Zero(t, f.board.Brightness())
}

func TestManualConnect(t *testing.T) {
	f := newFixture(t, true)

	f.sess.Step()
	scans, _ := f.radio.Scans()
	assert.Zero(t, scans, "manual mode waits for A+B")
	assert.Equal(t, Welcome, f.text())
	assert.False(t, f.screen.Indicator.Hidden())

	f.board.Press(input.Both)
	f.sess.Step()
	assert.Equal(t, "Found F-nRF52 \n[A+B] to connect", f.text())

	f.board.Press(input.Both)
	f.sess.Step()
	assert.True(t, f.sess.link.Linked())
	assert.Equal(t, "First", f.text())
}

func TestManualConnectFailures(t *testing.T) {
	t.Run("radio error", func(t *testing.T) {
		f := newFixture(t, true)
		f.radio.ConnectErr = errors.New("timeout")

		f.board.Press(input.Both)
		f.sess.Step()
		f.board.Press(input.Both)
		f.sess.Step()

		assert.Equal(t, "Unable to connect \nto F-nRF52.\nPlease rescan[A+B].", f.text())
		assert.Nil(t, f.sess.pending, "advertisement is used up")
	})

	t.Run("no uart", func(t *testing.T) {
		f := newFixture(t, true)
		f.radio.NoUART = true

		f.board.Press(input.Both)
		f.sess.Step()
		f.board.Press(input.Both)
		f.sess.Step()

		assert.Equal(t, "Connection failed.\nTry rescan[A+B].", f.text())
	})
}

func TestRunStopsOnCancel(t *testing.T) {
	f := newFixture(t, false)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, f.sess.Run(ctx), context.Canceled)
}

type memPort struct {
	in  bytes.Buffer
	out bytes.Buffer
}

func (p *memPort) ReadByte() (byte, error)     { return p.in.ReadByte() }
func (p *memPort) Write(b []byte) (int, error) { return p.out.Write(b) }
func (p *memPort) Buffered() int               { return p.in.Len() }

type memStore struct {
	saved *config.Settings
}

func (m *memStore) SaveSettings(s *config.Settings) error {
	c := *s
	m.saved = &c
	return nil
}

func TestConsoleCommands(t *testing.T) {
	f := newFixture(t, false)
	port := &memPort{}
	console := serial.NewConsole(port)
	settings := config.Defaults()
	store := &memStore{}
	f.sess.Register(console, &settings, store)
	f.sess.SetConsole(console)

	f.connect(t)

	port.in.WriteString("press b\n")
	f.clock.Advance(250 * time.Millisecond)
	f.sess.Step()
	assert.Equal(t, []byte("cn"), f.radio.Written())

	port.in.WriteString("status\n")
	f.sess.Step()
	assert.Contains(t, port.out.String(), "link connected")
	assert.Contains(t, port.out.String(), "peer F-nRF52")
	assert.NotContains(t, port.out.String(), "error")

	console.Exec("mode manual")
	console.Exec("peer Lobby")
	console.Exec("save")
	require.NotNil(t, store.saved)
	assert.True(t, store.saved.HasFlag(config.FlagManualConnect))
	assert.Equal(t, "Lobby", store.saved.GetPeerName())

	console.Exec("near 300")
	assert.Contains(t, port.out.String(), "usage: near")

	console.Exec("disconnect")
	assert.False(t, f.radio.Connected())
}

func TestConsoleSaveToFlash(t *testing.T) {
	f := newFixture(t, false)
	mgr, err := storage.New(tinyfs.NewMemoryDevice(256, 4096, 64), true)
	require.NoError(t, err)
	defer mgr.Close()

	port := &memPort{}
	console := serial.NewConsole(port)
	settings := config.Defaults()
	f.sess.Register(console, &settings, mgr)

	console.Exec("debug on")
	console.Exec("save")
	console.Exec("flash")
	assert.Contains(t, port.out.String(), "settings true")

	var loaded config.Settings
	require.NoError(t, mgr.LoadSettings(&loaded))
	assert.True(t, loaded.HasFlag(config.FlagDebug))

	console.Exec("wipe")
	assert.ErrorIs(t, mgr.LoadSettings(&loaded), storage.ErrNotFound)

	console.Exec("debug off")
}

func TestConsoleWithoutStore(t *testing.T) {
	f := newFixture(t, false)
	port := &memPort{}
	console := serial.NewConsole(port)
	settings := config.Defaults()
	f.sess.Register(console, &settings, nil)

	console.Exec("save")
	console.Exec("flash")
	assert.Equal(t, "error: no settings storage\nerror: no settings storage\n", port.out.String())
}

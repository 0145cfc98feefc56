package serial

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePort struct {
	in  bytes.Buffer
	out bytes.Buffer
}

func (p *fakePort) ReadByte() (byte, error)     { return p.in.ReadByte() }
func (p *fakePort) Write(b []byte) (int, error) { return p.out.Write(b) }
func (p *fakePort) Buffered() int               { return p.in.Len() }

func TestConsoleDispatch(t *testing.T) {
	port := &fakePort{}
	c := NewConsole(port)

	var got []string
	c.Handle("peer", "NAME", func(args []string) (string, error) {
		got = args
		return "", nil
	})

	port.in.WriteString("peer \"My Billboard\"\r\n")
	c.Poll()

	assert.Equal(t, []string{"My Billboard"}, got)
	assert.Equal(t, "ok\n", port.out.String())
}

func TestConsolePartialLine(t *testing.T) {
	port := &fakePort{}
	c := NewConsole(port)

	calls := 0
	c.Handle("status", "show state", func([]string) (string, error) {
		calls++
		return "linked", nil
	})

	port.in.WriteString("sta")
	c.Poll()
	assert.Zero(t, calls)

	port.in.WriteString("tus\n")
	c.Poll()
	assert.Equal(t, 1, calls)
	assert.Equal(t, "linked\n", port.out.String())
}

func TestConsoleErrors(t *testing.T) {
	port := &fakePort{}
	c := NewConsole(port)
	c.Handle("near", "N", func([]string) (string, error) {
		return "", ErrUsage
	})
	c.Handle("save", "write settings", func([]string) (string, error) {
		return "", errors.New("flash full")
	})

	c.Exec("near")
	c.Exec("save")
	c.Exec("bogus")
	c.Exec("")
	c.Exec(`peer "unterminated`)

	lines := strings.Split(strings.TrimSpace(port.out.String()), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "usage: near N", lines[0])
	assert.Equal(t, "error: flash full", lines[1])
	assert.Equal(t, `unknown command "bogus", try help`, lines[2])
	assert.True(t, strings.HasPrefix(lines[3], "error: "))
}

func TestConsoleHelp(t *testing.T) {
	port := &fakePort{}
	c := NewConsole(port)
	c.Handle("status", "show state", func([]string) (string, error) { return "", nil })

	c.Exec("help")
	assert.Contains(t, port.out.String(), "help       list commands")
	assert.Contains(t, port.out.String(), "status     show state")
}

func TestConsoleLongLineDiscarded(t *testing.T) {
	port := &fakePort{}
	c := NewConsole(port)

	port.in.WriteString(strings.Repeat("x", 200) + "\n")
	c.Poll()

	// The tail after the overflow is kept and is not a command.
	assert.Contains(t, port.out.String(), "unknown command")
}

// Package serial implements the line-based debug console on the USB serial
// port.
package serial

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/google/shlex"
	"github.com/rs/zerolog/log"
)

var ErrUsage = errors.New("usage")

// Port is the subset of machine.Serialer the console needs.
type Port interface {
	io.Writer
	io.ByteReader
	Buffered() int
}

// HandlerFunc runs one command. The returned string is written back to the
// port.
type HandlerFunc func(args []string) (string, error)

type command struct {
	help string
	fn   HandlerFunc
}

// Console reads commands from a port without blocking.
type Console struct {
	port     Port
	inIndex  int
	inBuffer [128]byte
	commands map[string]command
}

// NewConsole creates a console on port with a built-in help command.
func NewConsole(port Port) *Console {
	c := &Console{
		port:     port,
		commands: make(map[string]command),
	}
	c.Handle("help", "list commands", func([]string) (string, error) {
		return c.help(), nil
	})
	return c
}

// Handle registers fn under name.
func (c *Console) Handle(name, help string, fn HandlerFunc) {
	c.commands[name] = command{help: help, fn: fn}
}

// Poll consumes buffered input and runs every completed line.
func (c *Console) Poll() {
	for c.port.Buffered() > 0 {
		if line, ok := c.read(); ok {
			c.Exec(line)
		}
	}
}

func (c *Console) read() (string, bool) {
	b, err := c.port.ReadByte()
	if err != nil {
		return "", false
	}

	switch b {
	case '\r':
		return "", false
	case '\n':
		in := string(c.inBuffer[:c.inIndex])
		c.inIndex = 0
		return in, true
	}

	if c.inIndex == len(c.inBuffer)-1 {
		log.Warn().Msg("console line too long, discarded")
		c.inIndex = 0
	}

	c.inBuffer[c.inIndex] = b
	c.inIndex++

	return "", false
}

// Exec runs one command line and writes its output.
func (c *Console) Exec(line string) {
	args, err := shlex.Split(line)
	if err != nil {
		c.write("error: " + err.Error())
		return
	}
	if len(args) == 0 {
		return
	}

	cmd, ok := c.commands[args[0]]
	if !ok {
		c.write(fmt.Sprintf("unknown command %q, try help", args[0]))
		return
	}

	out, err := cmd.fn(args[1:])
	switch {
	case errors.Is(err, ErrUsage):
		c.write(fmt.Sprintf("usage: %s %s", args[0], cmd.help))
	case err != nil:
		c.write("error: " + err.Error())
	case out != "":
		c.write(out)
	default:
		c.write("ok")
	}
}

func (c *Console) help() string {
	names := make([]string, 0, len(c.commands))
	for name := range c.commands {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	for i, name := range names {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%-10s %s", name, c.commands[name].help)
	}
	return b.String()
}

func (c *Console) write(out string) {
	c.port.Write([]byte(out + "\n"))
}

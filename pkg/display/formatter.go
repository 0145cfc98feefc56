package display

import (
	"fmt"
	"strings"

	"github.com/tuffrabit/tinygo-billboard-remote/pkg/protocol"
)

// Formatter formats link traffic for the debug log and console.
// It creates compact strings suitable for 16-character wide rows.
type Formatter struct{}

// NewFormatter creates a new formatter.
func NewFormatter() *Formatter {
	return &Formatter{}
}

// FormatCommand formats an outgoing command.
// Returns bytes string and parsed string.
func (f *Formatter) FormatCommand(cmd protocol.Command) (bytesStr, parsedStr string) {
	return fmt.Sprintf("O:%02X", byte(cmd)), cmd.String()
}

// FormatReply formats a received reply.
// Returns bytes string and parsed string.
func (f *Formatter) FormatReply(reply []byte) (bytesStr, parsedStr string) {
	var b strings.Builder
	b.WriteString("I:")

	// First few bytes only
	maxBytes := 4
	for i := 0; i < len(reply) && i < maxBytes; i++ {
		b.WriteString(fmt.Sprintf("%02X", reply[i]))
	}
	if len(reply) > maxBytes {
		b.WriteString("..")
	}

	return b.String(), fmt.Sprintf("Reply[%d]", len(reply))
}

// FormatState formats a display state.
func (f *Formatter) FormatState(st State) string {
	text := strings.ReplaceAll(strings.TrimLeft(st.Text, " "), "\n", "|")
	return fmt.Sprintf("%s x%d %s", st.Mode, st.Scale, truncate(text, 12))
}

// FormatError formats an error for display.
func (f *Formatter) FormatError(err error) string {
	return truncate(err.Error(), 12)
}

// truncate limits a string to maxLen runes, adding ".." if truncated.
func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 2 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-2]) + ".."
}

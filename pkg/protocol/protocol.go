// Package protocol implements the text protocol spoken with the billboard
// over the BLE UART link.
//
// Request format:
//
//	[CMD:1]
//	- CMD: 'c' (hello), 'n' (next message), 'p' (previous message)
//
// Reply format:
//
//	{"text":"...","fg":"0xRRGGBB","bg":"0xRRGGBB"}
//
// Replies carry no length prefix. The end of a reply is found by counting
// braces across the inbound stream (see Framer). A command may also get no
// reply at all.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Command is a single request byte.
type Command byte

const (
	CmdConnect Command = 'c'
	CmdNext    Command = 'n'
	CmdPrev    Command = 'p'
)

const (
	OpenDelim  = '{'
	CloseDelim = '}'

	FieldText = "text"
	FieldFG   = "fg"
	FieldBG   = "bg"
)

var (
	ErrMissingField = errors.New("missing field")
	ErrInvalidField = errors.New("invalid field")
)

// String returns a short name for the command.
func (c Command) String() string {
	switch c {
	case CmdConnect:
		return "Hello"
	case CmdNext:
		return "Next"
	case CmdPrev:
		return "Prev"
	default:
		return fmt.Sprintf("Cmd%02X", byte(c))
	}
}

// Message is the content of one billboard reply.
type Message struct {
	Text string `json:"text"`
	FG   string `json:"fg"`
	BG   string `json:"bg"`
}

// Encode renders m in the reply wire format.
func Encode(m Message) ([]byte, error) {
	return json.Marshal(m)
}

// Record is a decoded reply. Field values stay raw until extracted, so a bad
// field fails extraction instead of the whole decode.
type Record map[string]json.RawMessage

// Parse decodes a completed reply buffer. It reports false when buf is not a
// JSON object.
func Parse(buf []byte) (Record, bool) {
	var r Record
	if err := json.Unmarshal(buf, &r); err != nil {
		return nil, false
	}
	if r == nil {
		// "null" decodes without error
		return nil, false
	}
	return r, true
}

// String extracts a string field.
func (r Record) String(key string) (string, error) {
	raw, ok := r[key]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrMissingField, key)
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrInvalidField, key, err)
	}
	return s, nil
}

// Text extracts the message text.
func (r Record) Text() (string, error) {
	return r.String(FieldText)
}

// Color extracts a hex colour field such as "0xFF8800".
func (r Record) Color(key string) (uint32, error) {
	s, err := r.String(key)
	if err != nil {
		return 0, err
	}
	c, err := ParseColor(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", ErrInvalidField, key, err)
	}
	return c, nil
}

// Message extracts all fields as a Message.
func (r Record) Message() (Message, error) {
	var m Message
	var err error
	if m.Text, err = r.Text(); err != nil {
		return Message{}, err
	}
	if m.FG, err = r.String(FieldFG); err != nil {
		return Message{}, err
	}
	if m.BG, err = r.String(FieldBG); err != nil {
		return Message{}, err
	}
	return m, nil
}

// JSON re-serialises the record for error display.
func (r Record) JSON() string {
	b, err := json.Marshal(r)
	if err != nil {
		return "{}"
	}
	return string(b)
}

// ParseColor parses a base-16 24-bit RGB colour with an optional 0x prefix.
func ParseColor(s string) (uint32, error) {
	s = strings.TrimSpace(s)
	if len(s) > 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		s = s[2:]
	}
	v, err := strconv.ParseUint(s, 16, 24)
	if err != nil {
		return 0, err
	}
	return uint32(v), nil
}

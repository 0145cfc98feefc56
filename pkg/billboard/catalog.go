// Package billboard implements the peer end of the link: a catalog of keyed
// messages read from a content document, and the responder that answers the
// remote's commands from it.
package billboard

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tuffrabit/tinygo-billboard-remote/pkg/protocol"
)

// MaxMessages is the most messages a content document may hold.
const MaxMessages = 10

var (
	ErrInvalidDocument = errors.New("invalid content document")
	ErrTooManyMessages = errors.New("too many messages")
	ErrEmptyCatalog    = errors.New("catalog is empty")
)

// Entry is one keyed message of a content document.
type Entry struct {
	Key     string
	Message protocol.Message
	// Scroll is the producer's scroll rate; the remote does not use it.
	Scroll float64
}

type entryDoc struct {
	Text   string  `json:"text"`
	FG     string  `json:"fg"`
	BG     string  `json:"bg"`
	Scroll float64 `json:"scroll,omitempty"`
}

// Catalog holds entries in document order with a wrap-around cursor.
type Catalog struct {
	entries []Entry
	cur     int
}

// ParseCatalog reads a content document of the form
//
//	{"key":{"text":"...","fg":"0x..","bg":"0x.."}, ...}
//
// keeping the keys in the order they appear.
func ParseCatalog(doc []byte) (*Catalog, error) {
	dec := json.NewDecoder(bytes.NewReader(doc))

	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, fmt.Errorf("%w: top level is not an object", ErrInvalidDocument)
	}

	c := &Catalog{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("%w: unexpected %v", ErrInvalidDocument, tok)
		}

		var e entryDoc
		if err := dec.Decode(&e); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidDocument, key, err)
		}

		if len(c.entries) == MaxMessages {
			return nil, ErrTooManyMessages
		}
		c.entries = append(c.entries, Entry{
			Key:     key,
			Message: protocol.Message{Text: e.Text, FG: e.FG, BG: e.BG},
			Scroll:  e.Scroll,
		})
	}

	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}

	return c, nil
}

// Len returns the number of entries.
func (c *Catalog) Len() int {
	return len(c.entries)
}

// Keys returns the entry keys in document order.
func (c *Catalog) Keys() []string {
	keys := make([]string, len(c.entries))
	for i, e := range c.entries {
		keys[i] = e.Key
	}
	return keys
}

// Index returns the cursor position.
func (c *Catalog) Index() int {
	return c.cur
}

// Current returns the entry under the cursor.
func (c *Catalog) Current() (Entry, error) {
	if len(c.entries) == 0 {
		return Entry{}, ErrEmptyCatalog
	}
	return c.entries[c.cur], nil
}

// Next moves the cursor forward, wrapping to the first entry.
func (c *Catalog) Next() (Entry, error) {
	c.cur = c.bound(c.cur + 1)
	return c.Current()
}

// Prev moves the cursor back, wrapping to the last entry.
func (c *Catalog) Prev() (Entry, error) {
	c.cur = c.bound(c.cur - 1)
	return c.Current()
}

func (c *Catalog) bound(id int) int {
	last := len(c.entries) - 1
	if last < 0 {
		return 0
	}
	if id < 0 {
		return last
	}
	if id > last {
		return 0
	}
	return id
}

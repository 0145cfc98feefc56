package billboard

import (
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/tuffrabit/tinygo-billboard-remote/pkg/protocol"
)

// ContentSource supplies the stored content document.
type ContentSource interface {
	LoadContent() ([]byte, error)
}

// Handler answers remote commands from a catalog.
type Handler struct {
	catalog *Catalog
}

// NewHandler creates a handler over catalog.
func NewHandler(catalog *Catalog) *Handler {
	return &Handler{
		catalog: catalog,
	}
}

// Load builds a handler from the document held by src.
func Load(src ContentSource) (*Handler, error) {
	doc, err := src.LoadContent()
	if err != nil {
		return nil, fmt.Errorf("failed to load content: %w", err)
	}
	c, err := ParseCatalog(doc)
	if err != nil {
		return nil, err
	}
	return NewHandler(c), nil
}

// Catalog returns the handler's catalog.
func (h *Handler) Catalog() *Catalog {
	return h.catalog
}

// Respond processes a command byte and returns the encoded reply, or nil
// when the command gets no reply.
func (h *Handler) Respond(cmd byte) []byte {
	var (
		e   Entry
		err error
	)

	switch protocol.Command(cmd) {
	case protocol.CmdConnect:
		e, err = h.catalog.Current()
	case protocol.CmdNext:
		e, err = h.catalog.Next()
	case protocol.CmdPrev:
		e, err = h.catalog.Prev()
	default:
		log.Debug().Stringer("cmd", protocol.Command(cmd)).Msg("ignoring unknown command")
		return nil
	}

	if err != nil {
		if !errors.Is(err, ErrEmptyCatalog) {
			log.Error().Err(err).Msg("failed to select message")
		}
		return nil
	}

	reply, err := protocol.Encode(e.Message)
	if err != nil {
		log.Error().Err(err).Str("key", e.Key).Msg("failed to encode message")
		return nil
	}
	return reply
}

// Live serves from a handler that can be swapped while replies are being
// produced, for content edited at runtime.
type Live struct {
	mu sync.Mutex
	h  *Handler
}

// NewLive serves from h.
func NewLive(h *Handler) *Live {
	return &Live{h: h}
}

// Reload reads the document from src again. On error the current content
// stays in place.
func (l *Live) Reload(src ContentSource) error {
	h, err := Load(src)
	if err != nil {
		return err
	}
	l.Swap(h)
	return nil
}

// Swap serves from h from now on.
func (l *Live) Swap(h *Handler) {
	l.mu.Lock()
	l.h = h
	l.mu.Unlock()
	log.Info().Int("messages", h.Catalog().Len()).Msg("content reloaded")
}

// Respond answers cmd from the current handler.
func (l *Live) Respond(cmd byte) []byte {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.h.Respond(cmd)
}

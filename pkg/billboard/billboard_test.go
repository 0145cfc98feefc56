package billboard

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tuffrabit/tinygo-billboard-remote/pkg/protocol"
	"github.com/tuffrabit/tinygo-billboard-remote/pkg/storage"

	"tinygo.org/x/tinyfs"
)

const testDoc = `{
	"zeta":  {"text":"First",  "fg":"0xFFFFFF", "bg":"0x000000"},
	"alpha": {"text":"Second", "fg":"0xFF0000", "bg":"0x000000", "scroll": 0.05},
	"mid":   {"text":"Third\nline", "fg":"0x00FF00", "bg":"0x0000FF"}
}`

func TestParseCatalogKeepsDocumentOrder(t *testing.T) {
	c, err := ParseCatalog([]byte(testDoc))
	require.NoError(t, err)

	assert.Equal(t, 3, c.Len())
	assert.Equal(t, []string{"zeta", "alpha", "mid"}, c.Keys())

	e, err := c.Current()
	require.NoError(t, err)
	assert.Equal(t, "First", e.Message.Text)
	assert.Equal(t, 0, c.Index())
}

func TestCatalogWrapAround(t *testing.T) {
	c, err := ParseCatalog([]byte(testDoc))
	require.NoError(t, err)

	e, _ := c.Prev()
	assert.Equal(t, "mid", e.Key, "prev from first wraps to last")

	e, _ = c.Next()
	assert.Equal(t, "zeta", e.Key, "next from last wraps to first")

	e, _ = c.Next()
	assert.Equal(t, "alpha", e.Key)
	assert.InDelta(t, 0.05, e.Scroll, 1e-9)
}

func TestParseCatalogErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"empty", ""},
		{"array", `[{"text":"a"}]`},
		{"truncated", `{"a":{"text":"x"}`},
		{"bad entry", `{"a":"not an object"}`},
		{"bad field", `{"a":{"text":5}}`},
	}

	for _, tt := range tests {
		_, err := ParseCatalog([]byte(tt.doc))
		assert.ErrorIs(t, err, ErrInvalidDocument, tt.name)
	}
}

func TestParseCatalogTooManyMessages(t *testing.T) {
	var b strings.Builder
	b.WriteString("{")
	for i := 0; i <= MaxMessages; i++ {
		if i > 0 {
			b.WriteString(",")
		}
		fmt.Fprintf(&b, `"m%d":{"text":"%d","fg":"0x1","bg":"0x0"}`, i, i)
	}
	b.WriteString("}")

	_, err := ParseCatalog([]byte(b.String()))
	assert.ErrorIs(t, err, ErrTooManyMessages)
}

func TestEmptyCatalog(t *testing.T) {
	c, err := ParseCatalog([]byte(`{}`))
	require.NoError(t, err)

	_, err = c.Current()
	assert.ErrorIs(t, err, ErrEmptyCatalog)
	_, err = c.Next()
	assert.ErrorIs(t, err, ErrEmptyCatalog)
	assert.Equal(t, 0, c.Index())

	h := NewHandler(c)
	assert.Nil(t, h.Respond('c'))
}

func TestHandlerRespond(t *testing.T) {
	c, err := ParseCatalog([]byte(testDoc))
	require.NoError(t, err)
	h := NewHandler(c)

	decode := func(reply []byte) protocol.Message {
		t.Helper()
		rec, ok := protocol.Parse(reply)
		require.True(t, ok, "reply %q", reply)
		m, err := rec.Message()
		require.NoError(t, err)
		return m
	}

	assert.Equal(t, "First", decode(h.Respond('c')).Text)
	assert.Equal(t, "Second", decode(h.Respond('n')).Text)
	assert.Equal(t, "Second", decode(h.Respond('c')).Text, "hello does not move the cursor")

	m := decode(h.Respond('n'))
	assert.Equal(t, "Third\nline", m.Text)
	assert.Equal(t, "0x00FF00", m.FG)
	assert.Equal(t, "0x0000FF", m.BG)

	assert.Equal(t, "Second", decode(h.Respond('p')).Text)
	assert.Nil(t, h.Respond('x'))
}

func TestLoadFromStorage(t *testing.T) {
	mgr, err := storage.New(tinyfs.NewMemoryDevice(256, 4096, 64), true)
	require.NoError(t, err)
	defer mgr.Close()

	_, err = Load(mgr)
	require.ErrorIs(t, err, storage.ErrNotFound)

	require.NoError(t, mgr.SaveContent([]byte(testDoc)))

	h, err := Load(mgr)
	require.NoError(t, err)
	assert.Equal(t, []string{"zeta", "alpha", "mid"}, h.Catalog().Keys())
}

func TestLiveReload(t *testing.T) {
	mgr, err := storage.New(tinyfs.NewMemoryDevice(256, 4096, 64), true)
	require.NoError(t, err)
	defer mgr.Close()

	require.NoError(t, mgr.SaveContent([]byte(testDoc)))
	h, err := Load(mgr)
	require.NoError(t, err)
	live := NewLive(h)
	assert.Contains(t, string(live.Respond('c')), "First")

	require.NoError(t, mgr.SaveContent([]byte(`{"only":{"text":"Replaced","fg":"0x1","bg":"0x2"}}`)))
	require.NoError(t, live.Reload(mgr))
	assert.Contains(t, string(live.Respond('c')), "Replaced")

	require.NoError(t, mgr.SaveContent([]byte(`[]`)))
	assert.Error(t, live.Reload(mgr))
	assert.Contains(t, string(live.Respond('n')), "Replaced", "bad content keeps the old catalog")
}

package input

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStateButtons(t *testing.T) {
	var s State
	assert.False(t, s.IsPressed(ButtonA))

	s = s.With(ButtonA, true)
	assert.True(t, s.IsPressed(ButtonA))
	assert.False(t, s.IsPressed(ButtonB))
	assert.False(t, s.Both())

	s = s.With(ButtonB, true)
	assert.True(t, s.Both())
	assert.Equal(t, "AB", s.String())

	s = s.With(ButtonA, false)
	assert.Equal(t, "B", s.String())
	assert.False(t, s.IsPressed(Button(9)))
	assert.Equal(t, s, s.With(Button(9), true))
}

func TestParse(t *testing.T) {
	tests := []struct {
		in   string
		want State
		ok   bool
	}{
		{"a", State(0).With(ButtonA, true), true},
		{"B", State(0).With(ButtonB, true), true},
		{"ab", Both, true},
		{"ba", Both, true},
		{"", 0, false},
		{"c", 0, false},
	}

	for _, tt := range tests {
		got, ok := Parse(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestLatch(t *testing.T) {
	var l Latch
	assert.Equal(t, State(0), l.Take())

	l.Press(State(0).With(ButtonA, true))
	l.Press(State(0).With(ButtonB, true))
	assert.True(t, l.Take().Both())
	assert.Equal(t, State(0), l.Take(), "presses are consumed once")
}

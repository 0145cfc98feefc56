// Package input models the remote's two front buttons.
package input

// Button represents a front button.
type Button uint8

const (
	ButtonA Button = 0 // Left, "previous"
	ButtonB Button = 1 // Right, "next"
)

// State holds the pressed buttons as bits.
type State uint8

// Both is the state with A and B held together.
const Both = State(1<<ButtonA | 1<<ButtonB)

// With returns s with button set to pressed.
func (s State) With(button Button, pressed bool) State {
	if button > 7 {
		return s
	}
	if pressed {
		return s | (1 << button)
	}
	return s &^ (1 << button)
}

// IsPressed returns true if a button is pressed.
func (s State) IsPressed(button Button) bool {
	if button > 7 {
		return false
	}
	return s&(1<<button) != 0
}

// Both reports whether A and B are held together.
func (s State) Both() bool {
	return s&Both == Both
}

// String renders the state as "A", "B", "AB" or "".
func (s State) String() string {
	out := ""
	if s.IsPressed(ButtonA) {
		out += "A"
	}
	if s.IsPressed(ButtonB) {
		out += "B"
	}
	return out
}

// Parse reads a state from "a", "b", "ab" (any case, any order).
func Parse(s string) (State, bool) {
	var st State
	if s == "" {
		return 0, false
	}
	for _, r := range s {
		switch r {
		case 'a', 'A':
			st = st.With(ButtonA, true)
		case 'b', 'B':
			st = st.With(ButtonB, true)
		default:
			return 0, false
		}
	}
	return st, true
}

// Latch holds button presses injected from outside the hardware (the debug
// console, tests) until they are read once.
type Latch struct {
	pending State
}

// Press queues s for the next Take.
func (l *Latch) Press(s State) {
	l.pending |= s
}

// Take returns and clears the queued presses.
func (l *Latch) Take() State {
	s := l.pending
	l.pending = 0
	return s
}

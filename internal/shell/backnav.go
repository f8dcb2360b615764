package shell

import "time"

// debounceState is the exit debounce's two-state machine.
type debounceState int

const (
	debounceIdle debounceState = iota
	debounceArmed
)

// PressAction is what the shell should do with a back press that was not
// consumed by history navigation.
type PressAction int

const (
	// ActionArm shows the exit hint and suppresses the exit.
	ActionArm PressAction = iota
	// ActionExit allows the screen to close.
	ActionExit
)

// ExitDebounce decides whether a back press closes the screen. The first
// press arms exit for a fixed window; a second press inside the window
// confirms it. A press after the window expires re-arms instead.
type ExitDebounce struct {
	window     time.Duration
	state      debounceState
	armedUntil time.Time
}

// NewExitDebounce creates a debounce with the given confirmation window.
func NewExitDebounce(window time.Duration) *ExitDebounce {
	if window <= 0 {
		window = exitDebounceWindow
	}
	return &ExitDebounce{window: window}
}

// Press records a back press at now and returns the action to take.
func (d *ExitDebounce) Press(now time.Time) PressAction {
	if d.state == debounceArmed && now.Before(d.armedUntil) {
		d.state = debounceIdle
		return ActionExit
	}
	d.state = debounceArmed
	d.armedUntil = now.Add(d.window)
	return ActionArm
}

// Armed reports whether a confirmation press at now would exit.
func (d *ExitDebounce) Armed(now time.Time) bool {
	return d.state == debounceArmed && now.Before(d.armedUntil)
}

// Reset returns the debounce to idle, discarding any armed press.
func (d *ExitDebounce) Reset() {
	d.state = debounceIdle
	d.armedUntil = time.Time{}
}

package shell

import "time"

// Package-level constants to avoid magic numbers and improve readability.
const (
	// exitDebounceWindow is how long a first back press keeps exit armed.
	exitDebounceWindow = 2 * time.Second
	// noticeDuration is how long transient notices stay on screen.
	noticeDuration = 2 * time.Second

	loadChannelBuffer = 64

	// percentScale converts viewer progress callbacks (0–100) to [0,1].
	percentScale = 100.0

	headerHeight        = 2
	footerHeight        = 2
	progressBarMaxWidth = 80
)

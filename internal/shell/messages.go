package shell

import (
	"github.com/google/uuid"

	"github.com/halcyard/webwrap/internal/netwatch"
	"github.com/halcyard/webwrap/internal/permission"
	"github.com/halcyard/webwrap/internal/webview"
)

// Message types for the Bubble Tea update loop.

// permissionResultsMsg carries the startup capability grant outcomes.
type permissionResultsMsg struct {
	Results []permission.Result
}

// netStatusMsg carries a reachability observation from the watcher stream.
type netStatusMsg struct {
	Status netwatch.Status
}

// netStreamClosedMsg signals that the reachability subscription was released;
// no further status updates will arrive.
type netStreamClosedMsg struct{}

// retryResultMsg carries the outcome of a manual connectivity retry.
type retryResultMsg struct {
	Status netwatch.Status
}

// loadStartedMsg marks the beginning of a content load. Every load carries
// an ID so events from superseded loads can be discarded.
type loadStartedMsg struct {
	ID      uuid.UUID
	Address string
	Refresh bool
}

// loadProgressMsg carries viewer progress as a percentage in [0,100].
type loadProgressMsg struct {
	ID      uuid.UUID
	Percent int
}

// loadDoneMsg marks the end of a content load, successful or not.
type loadDoneMsg struct {
	ID   uuid.UUID
	Page *webview.Page
	Err  error
}

// clearNoticeMsg expires a transient notice. Only the notice with a matching
// ID is cleared; stale timers are ignored.
type clearNoticeMsg struct {
	ID int
}

// Package shell is the application's single screen: a Bubble Tea program
// that embeds the content viewer, tracks load progress, watches
// connectivity, and applies history-first back semantics with a
// double-press-to-exit debounce.
package shell

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"

	"github.com/halcyard/webwrap/internal/netwatch"
	"github.com/halcyard/webwrap/internal/permission"
	"github.com/halcyard/webwrap/internal/webview"
)

// Viewer is the embedded content viewer contract the shell drives. It is
// satisfied by *webview.Viewer; tests substitute their own.
type Viewer interface {
	Load(ctx context.Context, address string, onProgress webview.ProgressFunc) (*webview.Page, error)
	Reload(ctx context.Context, onProgress webview.ProgressFunc) (*webview.Page, error)
	CanGoBack() bool
	GoBack(ctx context.Context, onProgress webview.ProgressFunc) (*webview.Page, error)
	CanGoForward() bool
	GoForward(ctx context.Context, onProgress webview.ProgressFunc) (*webview.Page, error)
	Follow(ctx context.Context, n int, onProgress webview.ProgressFunc) (*webview.Page, error)
	Page() *webview.Page
	Location() string
	Target() string
}

// Deps are the screen's collaborators. Platform capabilities are passed in
// explicitly rather than reached for as ambient singletons.
type Deps struct {
	Viewer    Viewer
	Checker   netwatch.Checker
	NetEvents <-chan netwatch.Status
	Broker    permission.Broker

	PermissionKinds   []permission.Kind
	StrictPermissions bool

	// StartAddress is loaded on mount; defaults to the viewer target.
	StartAddress string
	// InitialStatus seeds connectionStatus before the first stream event.
	InitialStatus netwatch.Status
	// DebounceWindow overrides the exit confirmation window (tests).
	DebounceWindow time.Duration
	// Now overrides the clock (tests).
	Now func() time.Time
}

// Model is the root Bubble Tea model.
type Model struct {
	viewer  Viewer
	checker netwatch.Checker
	broker  permission.Broker

	permissionKinds   []permission.Kind
	strictPermissions bool

	// inbound event streams bridged into the update loop
	netEvents <-chan netwatch.Status
	loadCh    chan tea.Msg

	// connectivity state
	connected bool
	checking  bool

	// load state
	loading      bool
	refreshing   bool
	loadID       uuid.UUID
	loadProgress float64
	page         *webview.Page

	// exit debounce and transient notice
	debounce *ExitDebounce
	notice   string
	noticeID int
	nowFn    func() time.Time

	startAddress string

	// ui components
	progressBar progress.Model
	spin        spinner.Model
	pane        viewport.Model
	keys        keyMap
	helpVisible bool

	width    int
	height   int
	ready    bool
	quitting bool
	quitErr  error
}

// NewModel constructs the screen model from its dependencies.
func NewModel(deps Deps) Model {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	start := deps.StartAddress
	if start == "" && deps.Viewer != nil {
		start = deps.Viewer.Target()
	}

	sp := spinner.New(spinner.WithSpinner(spinner.Dot))
	return Model{
		viewer:            deps.Viewer,
		checker:           deps.Checker,
		broker:            deps.Broker,
		permissionKinds:   deps.PermissionKinds,
		strictPermissions: deps.StrictPermissions,
		netEvents:         deps.NetEvents,
		loadCh:            make(chan tea.Msg, loadChannelBuffer),
		connected:         deps.InitialStatus == netwatch.Connected,
		debounce:          NewExitDebounce(deps.DebounceWindow),
		nowFn:             now,
		startAddress:      start,
		progressBar:       progress.New(progress.WithDefaultGradient()),
		spin:              sp,
		keys:              newKeyMap(),
	}
}

// QuitErr returns the error the screen decided to exit with, if any.
func (m Model) QuitErr() error {
	return m.quitErr
}

// Connected reports the last known reachability.
func (m Model) Connected() bool {
	return m.connected
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{
		m.listenForNet(),
		m.listenForLoad(),
		m.spin.Tick,
	}
	if m.broker != nil && len(m.permissionKinds) > 0 {
		cmds = append(cmds, m.requestPermissions())
	}
	if m.connected {
		cmds = append(cmds, m.startLoad(false, m.startAddress, nil))
	}
	return tea.Batch(cmds...)
}

// listenForNet waits for the next reachability event. The stream ends when
// the subscription is released at teardown.
func (m Model) listenForNet() tea.Cmd {
	if m.netEvents == nil {
		return nil
	}
	return func() tea.Msg {
		status, ok := <-m.netEvents
		if !ok {
			return netStreamClosedMsg{}
		}
		return netStatusMsg{Status: status}
	}
}

// listenForLoad waits for the next load event from the fetch goroutine.
func (m Model) listenForLoad() tea.Cmd {
	return func() tea.Msg {
		return <-m.loadCh
	}
}

// requestPermissions resolves the startup capability grants once.
func (m Model) requestPermissions() tea.Cmd {
	broker, kinds := m.broker, m.permissionKinds
	return func() tea.Msg {
		return permissionResultsMsg{Results: permission.RequestAll(context.Background(), broker, kinds)}
	}
}

// loadOp is one viewer operation run as a load.
type loadOp func(ctx context.Context, onProgress webview.ProgressFunc) (*webview.Page, error)

// startLoad begins a viewer operation in the background. Progress and
// completion re-enter the update loop through loadCh, tagged with a fresh
// load ID so superseded loads can never move the bar. A nil op loads
// address.
func (m Model) startLoad(refresh bool, address string, op loadOp) tea.Cmd {
	id := uuid.New()
	ch := m.loadCh
	viewer := m.viewer
	if op == nil {
		op = func(ctx context.Context, onProgress webview.ProgressFunc) (*webview.Page, error) {
			return viewer.Load(ctx, address, onProgress)
		}
	}
	return func() tea.Msg {
		go func() {
			onProgress := func(pct int) {
				select {
				case ch <- loadProgressMsg{ID: id, Percent: pct}:
				default:
					// UI is behind; stale percent is worthless.
				}
			}
			page, err := op(context.Background(), onProgress)
			ch <- loadDoneMsg{ID: id, Page: page, Err: err}
		}()
		return loadStartedMsg{ID: id, Address: address, Refresh: refresh}
	}
}

// reloadCmd re-fetches the current page, or performs the first load when
// nothing is on screen yet.
func (m Model) reloadCmd(refresh bool) tea.Cmd {
	if m.viewer.Page() == nil {
		return m.startLoad(refresh, m.startAddress, nil)
	}
	viewer := m.viewer
	return m.startLoad(refresh, m.viewer.Location(), viewer.Reload)
}

// clearNoticeCmd expires the notice with the given ID after d.
func clearNoticeCmd(id int, d time.Duration) tea.Cmd {
	return tea.Tick(d, func(time.Time) tea.Msg {
		return clearNoticeMsg{ID: id}
	})
}

// retryCmd re-queries actual reachability after an optimistic manual retry.
func (m Model) retryCmd() tea.Cmd {
	checker := m.checker
	return func() tea.Msg {
		return retryResultMsg{Status: checker.Check(context.Background())}
	}
}

package shell

import (
	"context"
	"fmt"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/sirupsen/logrus"

	"github.com/halcyard/webwrap/internal/netwatch"
	"github.com/halcyard/webwrap/internal/permission"
	"github.com/halcyard/webwrap/internal/webview"
)

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) { //nolint:ireturn,gocyclo,cyclop // Single dispatch point for all screen events.
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case permissionResultsMsg:
		return m.handlePermissionResults(msg)

	case netStatusMsg:
		return m.handleNetStatus(msg.Status)

	case netStreamClosedMsg:
		// Subscription released at teardown; stop listening.
		return m, nil

	case retryResultMsg:
		return m.handleRetryResult(msg.Status)

	case loadStartedMsg:
		m.loadID = msg.ID
		m.loading = true
		m.refreshing = msg.Refresh
		m.loadProgress = 0
		return m, m.progressBar.SetPercent(0)

	case loadProgressMsg:
		// Events from superseded loads never move the bar.
		if msg.ID != m.loadID {
			return m, m.listenForLoad()
		}
		m.loadProgress = float64(msg.Percent) / percentScale
		return m, tea.Batch(m.listenForLoad(), m.progressBar.SetPercent(m.loadProgress))

	case loadDoneMsg:
		return m.handleLoadDone(msg)

	case clearNoticeMsg:
		if msg.ID == m.noticeID {
			m.notice = ""
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd

	case progress.FrameMsg:
		bar, cmd := m.progressBar.Update(msg)
		m.progressBar = bar.(progress.Model) //nolint:forcetypeassert // progress.Update returns progress.Model.
		return m, cmd
	}

	return m, nil
}

// handleKey routes key presses.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) { //nolint:ireturn
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.quitting = true
		return m, tea.Quit

	case key.Matches(msg, m.keys.Back):
		return m.handleBack()

	case key.Matches(msg, m.keys.Help):
		m.helpVisible = !m.helpVisible
		return m, nil

	case key.Matches(msg, m.keys.Retry):
		if !m.connected && !m.checking {
			return m.handleRetry()
		}
		return m, nil

	case key.Matches(msg, m.keys.Refresh):
		if !m.connected {
			return m.handleRetry()
		}
		m.refreshing = true
		return m, tea.Batch(m.reloadCmd(true), m.spin.Tick)

	case key.Matches(msg, m.keys.Forward):
		if m.viewer.CanGoForward() {
			return m, m.startLoad(false, "", m.viewer.GoForward)
		}
		return m, nil

	case key.Matches(msg, m.keys.Home):
		return m, m.startLoad(false, m.viewer.Target(), nil)
	}

	// Digits follow the numbered links of the current page.
	if s := msg.String(); len(s) == 1 && s[0] >= '1' && s[0] <= '9' {
		n := int(s[0] - '0')
		viewer := m.viewer
		return m, m.startLoad(false, "", func(ctx context.Context, onProgress webview.ProgressFunc) (*webview.Page, error) {
			return viewer.Follow(ctx, n, onProgress)
		})
	}

	var cmd tea.Cmd
	m.pane, cmd = m.pane.Update(msg)
	return m, cmd
}

// handleBack applies history-first back semantics: internal history always
// consumes the press; only a bare history reaches the exit debounce.
func (m Model) handleBack() (tea.Model, tea.Cmd) { //nolint:ireturn
	if m.viewer.CanGoBack() {
		return m, m.startLoad(false, "", m.viewer.GoBack)
	}

	switch m.debounce.Press(m.nowFn()) {
	case ActionExit:
		m.quitting = true
		return m, tea.Quit
	case ActionArm:
	}
	return m, m.setNotice("press esc again to exit")
}

// handleRetry optimistically flips to connected and re-queries the checker;
// the genuine answer arrives as retryResultMsg.
func (m Model) handleRetry() (tea.Model, tea.Cmd) { //nolint:ireturn
	m.connected = true
	m.checking = true
	return m, tea.Batch(m.retryCmd(), m.spin.Tick)
}

func (m Model) handleRetryResult(status netwatch.Status) (tea.Model, tea.Cmd) { //nolint:ireturn
	m.checking = false
	m.connected = status == netwatch.Connected
	if !m.connected {
		return m, m.setNotice("still offline")
	}
	return m, m.reloadCmd(false)
}

// handleNetStatus applies a watcher observation. Only the transition into
// connected triggers a reload, and each transition triggers exactly one.
func (m Model) handleNetStatus(status netwatch.Status) (tea.Model, tea.Cmd) { //nolint:ireturn
	prev := m.connected
	m.connected = status == netwatch.Connected
	logrus.WithField("status", status.String()).Debug("reachability update")

	cmds := []tea.Cmd{m.listenForNet()}
	if m.connected && !prev && m.viewer != nil {
		cmds = append(cmds, m.reloadCmd(false))
	}
	return m, tea.Batch(cmds...)
}

func (m Model) handleLoadDone(msg loadDoneMsg) (tea.Model, tea.Cmd) { //nolint:ireturn
	cmds := []tea.Cmd{m.listenForLoad()}
	if msg.ID != m.loadID {
		return m, tea.Batch(cmds...)
	}

	m.loading = false
	m.refreshing = false
	m.loadProgress = 1.0
	cmds = append(cmds, m.progressBar.SetPercent(1.0))

	if msg.Err != nil {
		// Not classified or retried; the connectivity monitor is the
		// recovery path.
		logrus.WithError(msg.Err).Debug("load failed")
		cmds = append(cmds, m.setNotice(fmt.Sprintf("load failed: %v", msg.Err)))
		return m, tea.Batch(cmds...)
	}

	m.page = msg.Page
	if m.ready {
		m.pane.SetContent(m.page.Text)
		m.pane.GotoTop()
	}
	return m, tea.Batch(cmds...)
}

func (m Model) handlePermissionResults(msg permissionResultsMsg) (tea.Model, tea.Cmd) { //nolint:ireturn
	for _, r := range msg.Results {
		logrus.WithFields(logrus.Fields{"kind": r.Kind, "outcome": r.Outcome}).Debug("permission resolved")
	}
	denied := permission.DeniedKinds(msg.Results)
	if len(denied) == 0 {
		return m, nil
	}
	if m.strictPermissions {
		m.quitErr = fmt.Errorf("required permissions denied: %v", denied)
		m.quitting = true
		return m, tea.Quit
	}
	// Lenient mode: note it and carry on.
	logrus.Warnf("permissions denied (continuing): %v", denied)
	return m, nil
}

// setNotice shows a transient notice and schedules its expiry. The bumped ID
// makes stale clear timers no-ops.
func (m *Model) setNotice(text string) tea.Cmd {
	m.noticeID++
	m.notice = text
	return clearNoticeCmd(m.noticeID, noticeDuration)
}

func (m *Model) resize(width, height int) {
	m.width, m.height = width, height
	paneHeight := height - headerHeight - footerHeight
	if paneHeight < 1 {
		paneHeight = 1
	}
	if !m.ready {
		m.pane = viewport.New(width, paneHeight)
		m.ready = true
		if m.page != nil {
			m.pane.SetContent(m.page.Text)
		}
		return
	}
	m.pane.Width = width
	m.pane.Height = paneHeight
}

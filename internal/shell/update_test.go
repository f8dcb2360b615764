//nolint:testpackage // White-box tests drive the update loop directly.
package shell

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/halcyard/webwrap/internal/netwatch"
	"github.com/halcyard/webwrap/internal/permission"
	"github.com/halcyard/webwrap/internal/webview"
)

// fakeViewer implements Viewer with an in-memory history depth and call
// counters.
type fakeViewer struct {
	mu       sync.Mutex
	depth    int
	forward  int
	page     *webview.Page
	loads    int
	reloads  int
	backs    int
	forwards int
	follows  int
	err      error
}

func (f *fakeViewer) result() (*webview.Page, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.page == nil {
		f.page = &webview.Page{URL: "https://wrapped.example/", Title: "Wrapped"}
	}
	return f.page, nil
}

func (f *fakeViewer) Load(context.Context, string, webview.ProgressFunc) (*webview.Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loads++
	return f.result()
}

func (f *fakeViewer) Reload(context.Context, webview.ProgressFunc) (*webview.Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reloads++
	return f.result()
}

func (f *fakeViewer) CanGoBack() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.depth > 0
}

func (f *fakeViewer) GoBack(context.Context, webview.ProgressFunc) (*webview.Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.backs++
	f.depth--
	f.forward++
	return f.result()
}

func (f *fakeViewer) CanGoForward() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.forward > 0
}

func (f *fakeViewer) GoForward(context.Context, webview.ProgressFunc) (*webview.Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.forwards++
	f.forward--
	f.depth++
	return f.result()
}

func (f *fakeViewer) Follow(_ context.Context, _ int, _ webview.ProgressFunc) (*webview.Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.follows++
	return f.result()
}

func (f *fakeViewer) Page() *webview.Page {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.page
}

func (f *fakeViewer) Location() string { return "https://wrapped.example/" }
func (f *fakeViewer) Target() string   { return "https://wrapped.example/" }

func (f *fakeViewer) counts() (loads, reloads, backs int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loads, f.reloads, f.backs
}

// staticChecker always answers the same status.
type staticChecker struct{ status netwatch.Status }

func (c staticChecker) Check(context.Context) netwatch.Status { return c.status }

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestModel(t *testing.T, v *fakeViewer, connected bool) (Model, *testClock, chan netwatch.Status) {
	t.Helper()
	clock := &testClock{now: time.Now()}
	events := make(chan netwatch.Status, 8)
	t.Cleanup(func() { close(events) })

	status := netwatch.Disconnected
	checkerStatus := netwatch.Disconnected
	if connected {
		status = netwatch.Connected
		checkerStatus = netwatch.Connected
	}
	m := NewModel(Deps{
		Viewer:         v,
		Checker:        staticChecker{status: checkerStatus},
		NetEvents:      events,
		InitialStatus:  status,
		DebounceWindow: 2 * time.Second,
		Now:            clock.Now,
	})
	return m, clock, events
}

func keyMsg(s string) tea.KeyMsg {
	switch s {
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	default:
		return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
	}
}

func updateModel(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	nm, ok := next.(Model)
	require.True(t, ok)
	return nm, cmd
}

// runCmds executes a command tree without blocking the test; messages from
// commands that never complete are simply never delivered.
func runCmds(cmd tea.Cmd) {
	if cmd == nil {
		return
	}
	go func() {
		msg := cmd()
		if batch, ok := msg.(tea.BatchMsg); ok {
			for _, c := range batch {
				runCmds(c)
			}
		}
	}()
}

func TestBackPress_WithHistoryAlwaysNavigates(t *testing.T) {
	v := &fakeViewer{depth: 3, page: &webview.Page{Title: "p"}}
	m, _, _ := newTestModel(t, v, true)

	for i := 0; i < 3; i++ {
		var cmd tea.Cmd
		m, cmd = updateModel(t, m, keyMsg("esc"))
		require.False(t, m.quitting, "press %d must not close the screen", i+1)
		require.NotNil(t, cmd)

		msg := cmd()
		_, started := msg.(loadStartedMsg)
		require.True(t, started, "press %d must be consumed by history navigation", i+1)
		require.Empty(t, m.notice, "history navigation shows no exit hint")

		require.Eventually(t, func() bool {
			_, _, backs := v.counts()
			return backs == i+1
		}, time.Second, 5*time.Millisecond)
	}

	// History exhausted: the next press arms the exit debounce instead.
	m, _ = updateModel(t, m, keyMsg("esc"))
	assert.False(t, m.quitting)
	assert.Equal(t, "press esc again to exit", m.notice)
}

func TestBackPress_DoubleWithinWindowExits(t *testing.T) {
	v := &fakeViewer{}
	m, clock, _ := newTestModel(t, v, true)

	m, _ = updateModel(t, m, keyMsg("esc"))
	require.False(t, m.quitting)
	require.Equal(t, "press esc again to exit", m.notice)
	firstNoticeID := m.noticeID

	clock.Advance(1500 * time.Millisecond)
	m, cmd := updateModel(t, m, keyMsg("esc"))
	assert.True(t, m.quitting)
	require.NotNil(t, cmd)
	assert.Equal(t, tea.QuitMsg{}, cmd())
	// The confirming press shows no second notice.
	assert.Equal(t, firstNoticeID, m.noticeID)
}

func TestBackPress_SpacedPressesNeverExit(t *testing.T) {
	v := &fakeViewer{}
	m, clock, _ := newTestModel(t, v, true)

	for i := 0; i < 4; i++ {
		var cmd tea.Cmd
		m, cmd = updateModel(t, m, keyMsg("esc"))
		require.False(t, m.quitting)
		require.NotNil(t, cmd)
		// Each triggering press shows the hint exactly once.
		assert.Equal(t, i+1, m.noticeID)
		clock.Advance(2001 * time.Millisecond)
	}
}

func TestNoticeExpiry_StaleTimerIgnored(t *testing.T) {
	v := &fakeViewer{}
	m, clock, _ := newTestModel(t, v, true)

	m, _ = updateModel(t, m, keyMsg("esc"))
	staleID := m.noticeID
	clock.Advance(2100 * time.Millisecond)
	m, _ = updateModel(t, m, keyMsg("esc"))

	// The first notice's timer fires after the second press re-armed.
	m, _ = updateModel(t, m, clearNoticeMsg{ID: staleID})
	assert.NotEmpty(t, m.notice, "stale timer must not clear the current notice")

	m, _ = updateModel(t, m, clearNoticeMsg{ID: m.noticeID})
	assert.Empty(t, m.notice)
}

func TestProgress_ResetAndForcedCompletion(t *testing.T) {
	v := &fakeViewer{}
	m, _, _ := newTestModel(t, v, true)

	id := uuid.New()
	m, _ = updateModel(t, m, loadStartedMsg{ID: id})
	assert.True(t, m.loading)
	assert.Zero(t, m.loadProgress)

	m, _ = updateModel(t, m, loadProgressMsg{ID: id, Percent: 37})
	assert.InDelta(t, 0.37, m.loadProgress, 1e-9)

	// Intermediate values never prevent the forced 1.0 at load-stop.
	m, _ = updateModel(t, m, loadProgressMsg{ID: id, Percent: 64})
	m, _ = updateModel(t, m, loadDoneMsg{ID: id, Page: &webview.Page{Title: "done"}})
	assert.False(t, m.loading)
	assert.InDelta(t, 1.0, m.loadProgress, 1e-9)

	// A new load resets to zero again.
	id2 := uuid.New()
	m, _ = updateModel(t, m, loadStartedMsg{ID: id2})
	assert.Zero(t, m.loadProgress)
}

func TestProgress_StaleLoadEventsDiscarded(t *testing.T) {
	v := &fakeViewer{}
	m, _, _ := newTestModel(t, v, true)

	current := uuid.New()
	stale := uuid.New()
	m, _ = updateModel(t, m, loadStartedMsg{ID: current})
	m, _ = updateModel(t, m, loadProgressMsg{ID: current, Percent: 20})

	m, _ = updateModel(t, m, loadProgressMsg{ID: stale, Percent: 90})
	assert.InDelta(t, 0.20, m.loadProgress, 1e-9, "stale progress must not move the bar")

	page := &webview.Page{Title: "current"}
	m, _ = updateModel(t, m, loadDoneMsg{ID: stale, Page: &webview.Page{Title: "stale"}})
	assert.True(t, m.loading, "stale completion must not end the current load")
	assert.Nil(t, m.page)

	m, _ = updateModel(t, m, loadDoneMsg{ID: current, Page: page})
	assert.Equal(t, "current", m.page.Title)
}

func TestReachability_ReconnectTriggersExactlyOneReload(t *testing.T) {
	v := &fakeViewer{page: &webview.Page{Title: "p"}}
	m, _, _ := newTestModel(t, v, false)

	m, cmd := updateModel(t, m, netStatusMsg{Status: netwatch.Connected})
	assert.True(t, m.Connected())
	runCmds(cmd)

	require.Eventually(t, func() bool {
		_, reloads, _ := v.counts()
		return reloads == 1
	}, time.Second, 5*time.Millisecond)

	// Give any spurious second reload time to surface.
	time.Sleep(50 * time.Millisecond)
	_, reloads, _ := v.counts()
	assert.Equal(t, 1, reloads)
}

func TestReachability_DisconnectNeverReloads(t *testing.T) {
	v := &fakeViewer{page: &webview.Page{Title: "p"}}
	m, _, _ := newTestModel(t, v, true)

	m, cmd := updateModel(t, m, netStatusMsg{Status: netwatch.Disconnected})
	assert.False(t, m.Connected())
	runCmds(cmd)

	time.Sleep(50 * time.Millisecond)
	loads, reloads, _ := v.counts()
	assert.Zero(t, loads)
	assert.Zero(t, reloads)
}

func TestReachability_FirstConnectLoadsStartPage(t *testing.T) {
	v := &fakeViewer{} // no page yet
	m, _, _ := newTestModel(t, v, false)

	_, cmd := updateModel(t, m, netStatusMsg{Status: netwatch.Connected})
	runCmds(cmd)

	require.Eventually(t, func() bool {
		loads, _, _ := v.counts()
		return loads == 1
	}, time.Second, 5*time.Millisecond)
	_, reloads, _ := v.counts()
	assert.Zero(t, reloads)
}

func TestManualRetry_OptimisticThenGenuine(t *testing.T) {
	v := &fakeViewer{page: &webview.Page{Title: "p"}}
	m, _, _ := newTestModel(t, v, false)

	// Retry flips to connected optimistically while the check runs.
	m, _ = updateModel(t, m, keyMsg("enter"))
	assert.True(t, m.Connected())
	assert.True(t, m.checking)

	// The checker says we are genuinely offline: no false-positive
	// reconnect, and no reload.
	m, _ = updateModel(t, m, retryResultMsg{Status: netwatch.Disconnected})
	assert.False(t, m.Connected())
	assert.False(t, m.checking)
	time.Sleep(20 * time.Millisecond)
	_, reloads, _ := v.counts()
	assert.Zero(t, reloads)
}

func TestManualRetry_GenuineReconnectReloads(t *testing.T) {
	v := &fakeViewer{page: &webview.Page{Title: "p"}}
	m, _, _ := newTestModel(t, v, false)

	m, _ = updateModel(t, m, keyMsg("enter"))
	_, cmd := updateModel(t, m, retryResultMsg{Status: netwatch.Connected})
	runCmds(cmd)

	require.Eventually(t, func() bool {
		_, reloads, _ := v.counts()
		return reloads == 1
	}, time.Second, 5*time.Millisecond)
}

func TestRetryCmd_QueriesChecker(t *testing.T) {
	v := &fakeViewer{}
	m, _, _ := newTestModel(t, v, false)

	msg := m.retryCmd()()
	assert.Equal(t, retryResultMsg{Status: netwatch.Disconnected}, msg)
}

func TestStreamClosed_StopsListening(t *testing.T) {
	v := &fakeViewer{}
	clock := &testClock{now: time.Now()}
	events := make(chan netwatch.Status)
	m := NewModel(Deps{
		Viewer:        v,
		Checker:       staticChecker{},
		NetEvents:     events,
		InitialStatus: netwatch.Connected,
		Now:           clock.Now,
	})

	close(events)
	msg := m.listenForNet()()
	require.Equal(t, netStreamClosedMsg{}, msg)

	// After disposal the stream produces no further state updates.
	before := m.Connected()
	next, cmd := m.Update(msg)
	nm, ok := next.(Model)
	require.True(t, ok)
	assert.Equal(t, before, nm.Connected())
	assert.Nil(t, cmd)
}

func TestLoadError_EndsRefreshIndication(t *testing.T) {
	v := &fakeViewer{}
	m, _, _ := newTestModel(t, v, true)

	id := uuid.New()
	m, _ = updateModel(t, m, loadStartedMsg{ID: id, Refresh: true})
	require.True(t, m.refreshing)

	m, _ = updateModel(t, m, loadDoneMsg{ID: id, Err: errors.New("boom")})
	assert.False(t, m.refreshing)
	assert.False(t, m.loading)
	assert.Contains(t, m.notice, "load failed")
	// No recovery beyond the notice; the page is untouched.
	assert.Nil(t, m.page)
}

func TestPermissions_StrictDeniedAborts(t *testing.T) {
	v := &fakeViewer{}
	m, _, _ := newTestModel(t, v, true)
	m.strictPermissions = true

	results := []permission.Result{
		{Kind: permission.Camera, Outcome: permission.Granted},
		{Kind: permission.Microphone, Outcome: permission.Denied},
	}
	m, cmd := updateModel(t, m, permissionResultsMsg{Results: results})
	assert.True(t, m.quitting)
	require.Error(t, m.QuitErr())
	assert.Contains(t, m.QuitErr().Error(), "microphone")
	require.NotNil(t, cmd)
	assert.Equal(t, tea.QuitMsg{}, cmd())
}

func TestPermissions_LenientDeniedProceeds(t *testing.T) {
	v := &fakeViewer{}
	m, _, _ := newTestModel(t, v, true)

	results := []permission.Result{
		{Kind: permission.Location, Outcome: permission.Denied},
	}
	m, _ = updateModel(t, m, permissionResultsMsg{Results: results})
	assert.False(t, m.quitting)
	assert.NoError(t, m.QuitErr())
}

func TestRefreshKey_Reloads(t *testing.T) {
	v := &fakeViewer{page: &webview.Page{Title: "p"}}
	m, _, _ := newTestModel(t, v, true)

	m, cmd := updateModel(t, m, keyMsg("r"))
	assert.True(t, m.refreshing)
	runCmds(cmd)

	require.Eventually(t, func() bool {
		_, reloads, _ := v.counts()
		return reloads == 1
	}, time.Second, 5*time.Millisecond)
}

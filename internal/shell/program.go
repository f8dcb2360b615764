package shell

import (
	"context"
	"fmt"
	"io"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/sirupsen/logrus"

	"github.com/halcyard/webwrap/internal/allowlist"
	"github.com/halcyard/webwrap/internal/config"
	"github.com/halcyard/webwrap/internal/netwatch"
	"github.com/halcyard/webwrap/internal/permission"
	"github.com/halcyard/webwrap/internal/storage"
	"github.com/halcyard/webwrap/internal/webview"
)

// Run builds the screen from configuration and blocks until it closes.
// The reachability subscription and watcher are torn down before Run
// returns; the last visited address is persisted on a clean exit.
func Run(ctx context.Context, cfg *config.Config, st *storage.Storage, resume bool) error {
	keeper := &allowlist.Keeper{Storage: st}

	viewer, err := newViewer(cfg, keeper)
	if err != nil {
		return fmt.Errorf("create viewer: %w", err)
	}

	checker := netwatch.NewHTTPChecker(cfg.Netwatch.ProbeURL,
		netwatch.WithProbeTimeout(cfg.Netwatch.Timeout))
	initial := checker.Check(ctx)

	watcher := netwatch.NewWatcher(checker, cfg.Netwatch.PollInterval)
	sub := watcher.Subscribe()
	watchCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go watcher.Start(watchCtx)
	defer sub.Close()

	broker, kinds, err := brokerFromConfig(cfg.Permissions)
	if err != nil {
		return err
	}

	start := ""
	if resume && st.Data.LastVisited != "" {
		start = st.Data.LastVisited
	}

	model := NewModel(Deps{
		Viewer:            viewer,
		Checker:           checker,
		NetEvents:         sub.Events(),
		Broker:            broker,
		PermissionKinds:   kinds,
		StrictPermissions: cfg.Permissions.Strict,
		StartAddress:      start,
		InitialStatus:     initial,
	})

	p := tea.NewProgram(model, tea.WithAltScreen())

	// Silence logs while the screen owns the terminal.
	prevOut := logrus.StandardLogger().Out
	logrus.SetOutput(io.Discard)
	defer logrus.SetOutput(prevOut)

	final, err := p.Run()
	if err != nil {
		return fmt.Errorf("run shell: %w", err)
	}

	if viewer.Page() != nil {
		st.Data.LastVisited = viewer.Location()
		if err := st.Save(); err != nil {
			logrus.WithError(err).Warn("could not persist last visited address")
		}
	}

	if m, ok := final.(Model); ok {
		return m.QuitErr()
	}
	return nil
}

// newViewer assembles the embedded viewer from its configuration toggles.
func newViewer(cfg *config.Config, keeper *allowlist.Keeper) (*webview.Viewer, error) {
	var cache *webview.Cache
	if !cfg.Viewer.DisableCache {
		cache = webview.NewCache(cfg.Viewer.CacheDir, cfg.Viewer.CacheMaxAge)
	}
	return webview.New(cfg.Target.URL, webview.Options{
		EnableCookies: !cfg.Viewer.DisableCookies,
		Cache:         cache,
		IncludeImages: !cfg.Viewer.DisableImages,
		FileAccess:    cfg.Viewer.FileAccess,
		MaxBodyBytes:  cfg.Viewer.MaxBodyBytes,
		Timeout:       cfg.Viewer.Timeout,
		AllowHost:     keeper.Allows,
	})
}

// brokerFromConfig builds the static broker and the kinds to request at
// startup from the permissions configuration.
func brokerFromConfig(pc config.PermissionsConfig) (permission.Broker, []permission.Kind, error) {
	kinds := make([]permission.Kind, 0, len(pc.Request))
	for _, name := range pc.Request {
		kind, err := permission.ParseKind(name)
		if err != nil {
			return nil, nil, fmt.Errorf("permissions config: %w", err)
		}
		kinds = append(kinds, kind)
	}

	grants := make(map[permission.Kind]permission.Outcome, len(pc.Grants))
	for name, granted := range pc.Grants {
		kind, err := permission.ParseKind(name)
		if err != nil {
			return nil, nil, fmt.Errorf("permissions config: %w", err)
		}
		outcome := permission.Granted
		if !granted {
			outcome = permission.Denied
		}
		grants[kind] = outcome
	}
	return permission.NewStaticBroker(grants), kinds, nil
}

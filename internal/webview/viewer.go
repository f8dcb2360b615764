// Package webview is the embedded content viewer: it fetches web pages,
// renders them as navigable text, and keeps the history stack the shell's
// back action walks. All heavy lifting (TLS, redirects, cookies) is
// delegated to net/http; this package owns rendering, gating and history.
package webview

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

const defaultLoadTimeout = 20 * time.Second

// ProgressFunc receives load progress as a percentage in [0,100]. It may be
// called from the fetch goroutine; nil means no progress reporting.
type ProgressFunc func(percent int)

// Options are the viewer behavior toggles.
type Options struct {
	// EnableCookies attaches an in-memory cookie jar to the HTTP client.
	EnableCookies bool
	// Cache, when non-nil, serves repeat loads from disk.
	Cache *Cache
	// IncludeImages renders image tags as alt-text placeholders.
	IncludeImages bool
	// FileAccess permits file:// addresses.
	FileAccess bool
	// MaxBodyBytes truncates oversized responses. Zero means no cap.
	MaxBodyBytes int64
	// Timeout bounds each fetch.
	Timeout time.Duration
	// AllowHost reports whether a host beyond the target host may be
	// navigated to. Nil allows only the target host.
	AllowHost func(host string) bool
	// UserAgent overrides the request User-Agent header.
	UserAgent string
}

// Viewer renders and navigates web content for exactly one shell screen.
type Viewer struct {
	target *url.URL
	client *http.Client
	opts   Options

	mu      sync.Mutex
	history []*Page
	cursor  int // index into history; -1 before the first load
}

// New constructs a viewer pinned to the given target address.
func New(target string, opts Options) (*Viewer, error) {
	u, err := url.Parse(target)
	if err != nil {
		return nil, fmt.Errorf("parse target address: %w", err)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultLoadTimeout
	}

	client := &http.Client{Timeout: opts.Timeout}
	if opts.EnableCookies {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, fmt.Errorf("create cookie jar: %w", err)
		}
		client.Jar = jar
	}

	return &Viewer{
		target: u,
		client: client,
		opts:   opts,
		cursor: -1,
	}, nil
}

// Target returns the address the viewer is pinned to.
func (v *Viewer) Target() string {
	return v.target.String()
}

// Load fetches address, renders it, and pushes it onto the history stack,
// truncating any forward entries.
func (v *Viewer) Load(ctx context.Context, address string, onProgress ProgressFunc) (*Page, error) {
	page, err := v.fetch(ctx, address, false, onProgress)
	if err != nil {
		return nil, err
	}

	v.mu.Lock()
	v.history = append(v.history[:v.cursor+1], page)
	v.cursor = len(v.history) - 1
	v.mu.Unlock()
	return page, nil
}

// Reload re-fetches the current address bypassing the cache. History is
// unchanged; the current entry is replaced in place.
func (v *Viewer) Reload(ctx context.Context, onProgress ProgressFunc) (*Page, error) {
	v.mu.Lock()
	if v.cursor < 0 {
		v.mu.Unlock()
		return nil, ErrNoPage
	}
	address := v.history[v.cursor].URL
	v.mu.Unlock()

	page, err := v.fetch(ctx, address, true, onProgress)
	if err != nil {
		return nil, err
	}

	v.mu.Lock()
	v.history[v.cursor] = page
	v.mu.Unlock()
	return page, nil
}

// CanGoBack reports whether the viewer has internal history behind the
// current page.
func (v *Viewer) CanGoBack() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.cursor > 0
}

// GoBack navigates one step back and returns the stored page. The snapshot
// is served as-is; a reload is the caller's call.
func (v *Viewer) GoBack(ctx context.Context, onProgress ProgressFunc) (*Page, error) {
	_ = ctx
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.cursor <= 0 {
		return nil, ErrNoHistory
	}
	v.cursor--
	if onProgress != nil {
		onProgress(100)
	}
	return v.history[v.cursor], nil
}

// CanGoForward reports whether forward history exists.
func (v *Viewer) CanGoForward() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.cursor >= 0 && v.cursor < len(v.history)-1
}

// GoForward navigates one step forward and returns the stored page.
func (v *Viewer) GoForward(ctx context.Context, onProgress ProgressFunc) (*Page, error) {
	_ = ctx
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.cursor < 0 || v.cursor >= len(v.history)-1 {
		return nil, ErrNoForward
	}
	v.cursor++
	if onProgress != nil {
		onProgress(100)
	}
	return v.history[v.cursor], nil
}

// Follow loads link number n (1-based) of the current page.
func (v *Viewer) Follow(ctx context.Context, n int, onProgress ProgressFunc) (*Page, error) {
	v.mu.Lock()
	if v.cursor < 0 {
		v.mu.Unlock()
		return nil, ErrNoPage
	}
	links := v.history[v.cursor].Links
	if n < 1 || n > len(links) {
		v.mu.Unlock()
		return nil, fmt.Errorf("%w: %d of %d", ErrNoSuchLink, n, len(links))
	}
	address := links[n-1].URL
	v.mu.Unlock()

	return v.Load(ctx, address, onProgress)
}

// Page returns the current page, or nil before the first load.
func (v *Viewer) Page() *Page {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.cursor < 0 {
		return nil
	}
	return v.history[v.cursor]
}

// Location returns the current address, falling back to the target before
// the first load.
func (v *Viewer) Location() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.cursor < 0 {
		return v.target.String()
	}
	return v.history[v.cursor].URL
}

// Depth returns the number of history entries.
func (v *Viewer) Depth() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.history)
}

// gate rejects addresses the viewer must not fetch. Blocked addresses never
// reach the HTTP client.
func (v *Viewer) gate(u *url.URL) error {
	switch u.Scheme {
	case "http", "https":
	case "file":
		if !v.opts.FileAccess {
			return fmt.Errorf("%w: file access disabled", ErrSchemeBlocked)
		}
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrSchemeBlocked, u.Scheme)
	}

	host := strings.ToLower(u.Hostname())
	if host == strings.ToLower(v.target.Hostname()) {
		return nil
	}
	if v.opts.AllowHost != nil && v.opts.AllowHost(host) {
		return nil
	}
	return fmt.Errorf("%w: %q", ErrHostBlocked, host)
}

func (v *Viewer) fetch(ctx context.Context, address string, bypassCache bool, onProgress ProgressFunc) (*Page, error) {
	u, err := url.Parse(address)
	if err != nil {
		return nil, &LoadError{URL: address, Err: err}
	}
	if err := v.gate(u); err != nil {
		return nil, &LoadError{URL: address, Err: err}
	}

	if !bypassCache && v.opts.Cache != nil {
		if page := v.opts.Cache.Get(u.String()); page != nil {
			logrus.Debugf("cache hit: %s", u)
			if onProgress != nil {
				onProgress(100)
			}
			return page, nil
		}
	}

	var raw string
	if u.Scheme == "file" {
		raw, err = v.readFile(u)
	} else {
		raw, err = v.fetchHTTP(ctx, u, onProgress)
	}
	if err != nil {
		return nil, &LoadError{URL: address, Err: err}
	}

	page := renderPage(u, raw, v.opts.IncludeImages)
	if v.opts.Cache != nil && u.Scheme != "file" {
		v.opts.Cache.Put(page)
	}
	return page, nil
}

func (v *Viewer) fetchHTTP(ctx context.Context, u *url.URL, onProgress ProgressFunc) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", err
	}
	if v.opts.UserAgent != "" {
		req.Header.Set("User-Agent", v.opts.UserAgent)
	}

	resp, err := v.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		_, _ = io.Copy(io.Discard, resp.Body)
		return "", &HTTPError{URL: u.String(), StatusCode: resp.StatusCode}
	}

	var body io.Reader = resp.Body
	if v.opts.MaxBodyBytes > 0 {
		body = io.LimitReader(resp.Body, v.opts.MaxBodyBytes)
	}
	// Percent comes from bytes over Content-Length; chunked responses
	// produce no intermediate progress events.
	if onProgress != nil && resp.ContentLength > 0 {
		body = &progressReader{r: body, total: resp.ContentLength, onProgress: onProgress}
	}

	data, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (v *Viewer) readFile(u *url.URL) (string, error) {
	data, err := os.ReadFile(u.Path)
	if err != nil {
		return "", err
	}
	if v.opts.MaxBodyBytes > 0 && int64(len(data)) > v.opts.MaxBodyBytes {
		data = data[:v.opts.MaxBodyBytes]
	}
	return string(data), nil
}

// progressReader reports read progress as a percentage of the expected
// total, emitting only when the integer percent advances.
type progressReader struct {
	r          io.Reader
	total      int64
	read       int64
	lastPct    int
	onProgress ProgressFunc
}

func (pr *progressReader) Read(p []byte) (int, error) {
	n, err := pr.r.Read(p)
	pr.read += int64(n)
	if pct := int(pr.read * 100 / pr.total); pct > pr.lastPct {
		if pct > 100 {
			pct = 100
		}
		pr.lastPct = pct
		pr.onProgress(pct)
	}
	return n, err
}

package webview

import (
	"fmt"
	"html"
	"net/url"
	"regexp"
	"strings"
	"time"
)

// Page is a rendered snapshot of one address: plain text plus a numbered
// link table for follow-up navigation.
type Page struct {
	URL       string    `json:"url"`
	Title     string    `json:"title"`
	Text      string    `json:"text"`
	Links     []Link    `json:"links,omitempty"`
	FetchedAt time.Time `json:"fetched_at"`
}

// Link is one anchor extracted from a page, with its reference resolved
// against the page address.
type Link struct {
	Text string `json:"text"`
	URL  string `json:"url"`
}

//nolint:gochecknoglobals // Compiled once; regexes are immutable.
var (
	reScriptStyle = regexp.MustCompile(`(?is)<(script|style)[^>]*>.*?</(script|style)>`)
	reTitle       = regexp.MustCompile(`(?is)<title[^>]*>(.*?)</title>`)
	reAnchor      = regexp.MustCompile(`(?is)<a\s[^>]*href\s*=\s*["']?([^"'\s>]+)[^>]*>(.*?)</a>`)
	reImg         = regexp.MustCompile(`(?is)<img\s[^>]*?alt\s*=\s*["']([^"']*)["'][^>]*>`)
	reTags        = regexp.MustCompile(`(?s)<[^>]+>`)
)

//nolint:gochecknoglobals // Immutable block-tag replacer shared across renders.
var blockReplacer = strings.NewReplacer(
	"<br>", "\n",
	"<br/>", "\n",
	"<br />", "\n",
	"</p>", "\n\n",
	"</div>", "\n\n",
	"</li>", "\n",
	"</tr>", "\n",
	"</h1>", "\n\n",
	"</h2>", "\n\n",
	"</h3>", "\n\n",
	"</h4>", "\n\n",
)

// renderPage converts raw HTML into a Page. Relative link references are
// resolved against base; fragment-only and non-navigable references are
// dropped from the link table.
func renderPage(base *url.URL, raw string, includeImages bool) *Page {
	p := &Page{
		URL:       base.String(),
		Title:     extractTitle(raw),
		FetchedAt: time.Now(),
	}

	body := reScriptStyle.ReplaceAllString(raw, "")
	p.Links = extractLinks(base, body)

	// Number the anchors in place so the rendered text matches the link
	// table, then strip the remaining markup.
	n := 0
	body = reAnchor.ReplaceAllStringFunc(body, func(match string) string {
		sub := reAnchor.FindStringSubmatch(match)
		if sub == nil || !navigable(sub[1]) {
			return match
		}
		n++
		return fmt.Sprintf("%s[%d]", sub[2], n)
	})

	if includeImages {
		body = reImg.ReplaceAllString(body, "[image: $1]")
	}

	body = blockReplacer.Replace(body)
	body = reTags.ReplaceAllString(body, "")
	p.Text = collapseWhitespace(html.UnescapeString(body))
	return p
}

func extractTitle(raw string) string {
	sub := reTitle.FindStringSubmatch(raw)
	if sub == nil {
		return ""
	}
	title := reTags.ReplaceAllString(sub[1], "")
	return strings.Join(strings.Fields(html.UnescapeString(title)), " ")
}

func extractLinks(base *url.URL, body string) []Link {
	var links []Link
	for _, sub := range reAnchor.FindAllStringSubmatch(body, -1) {
		ref := sub[1]
		if !navigable(ref) {
			continue
		}
		resolved, err := base.Parse(ref)
		if err != nil {
			continue
		}
		text := reTags.ReplaceAllString(sub[2], "")
		text = strings.Join(strings.Fields(html.UnescapeString(text)), " ")
		links = append(links, Link{Text: text, URL: resolved.String()})
	}
	return links
}

// navigable filters out references the viewer cannot follow.
func navigable(ref string) bool {
	switch {
	case ref == "", strings.HasPrefix(ref, "#"):
		return false
	case strings.HasPrefix(ref, "javascript:"), strings.HasPrefix(ref, "mailto:"), strings.HasPrefix(ref, "tel:"):
		return false
	}
	return true
}

// collapseWhitespace trims each line and squeezes runs of blank lines down
// to one.
func collapseWhitespace(s string) string {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		trimmed := strings.Join(strings.Fields(line), " ")
		if trimmed == "" {
			if len(out) > 0 && out[len(out)-1] == "" {
				continue
			}
			out = append(out, "")
			continue
		}
		out = append(out, trimmed)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}

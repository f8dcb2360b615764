package shell

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

//nolint:gochecknoglobals // Immutable styles shared across renders.
var (
	titleStyle    = lipgloss.NewStyle().Bold(true)
	locationStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	noticeStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("208")).Bold(true)
	footerStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	offlineStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	onlineStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("46")).Bold(true)
	helpStyle     = lipgloss.NewStyle().Border(lipgloss.NormalBorder()).Padding(0, 1).Foreground(lipgloss.Color("69"))
)

// View implements tea.Model.
func (m Model) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}
	if !m.ready {
		return "Starting..."
	}

	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString("\n")

	if m.helpVisible {
		b.WriteString(renderHelp())
		b.WriteString("\n")
	}

	if !m.connected {
		b.WriteString(m.renderOffline())
	} else {
		b.WriteString(m.renderContent())
	}

	b.WriteString("\n")
	b.WriteString(m.renderFooter())
	return b.String()
}

func (m Model) renderHeader() string {
	title := "webwrap"
	if m.page != nil && m.page.Title != "" {
		title = m.page.Title
	}

	badge := onlineStyle.Render("ONLINE")
	if !m.connected {
		badge = offlineStyle.Render("OFFLINE")
	}

	left := fmt.Sprintf("%s  %s", titleStyle.Render(title), locationStyle.Render(m.viewer.Location()))
	pad := m.width - lipgloss.Width(left) - lipgloss.Width(badge)
	if pad < 1 {
		pad = 1
	}
	return left + strings.Repeat(" ", pad) + badge
}

// renderOffline is the fallback screen shown while reachability is down.
func (m Model) renderOffline() string {
	var b strings.Builder
	b.WriteString("\n")
	b.WriteString(offlineStyle.Render("  You are offline."))
	b.WriteString("\n\n")
	if m.checking {
		b.WriteString(fmt.Sprintf("  %s checking connection...", m.spin.View()))
	} else {
		b.WriteString("  The connection will be retried automatically.\n")
		b.WriteString("  Press enter to retry now.")
	}
	b.WriteString("\n")
	if m.notice != "" {
		b.WriteString("\n")
		b.WriteString(noticeStyle.Render("  " + m.notice))
		b.WriteString("\n")
	}
	return b.String()
}

func (m Model) renderContent() string {
	var b strings.Builder

	if m.loading {
		bar := m.progressBar
		bar.Width = m.width
		if bar.Width > progressBarMaxWidth {
			bar.Width = progressBarMaxWidth
		}
		prefix := ""
		if m.refreshing {
			prefix = m.spin.View() + " "
		}
		b.WriteString(prefix + bar.View())
		b.WriteString("\n")
	}

	b.WriteString(m.pane.View())
	b.WriteString("\n")

	if m.notice != "" {
		b.WriteString(noticeStyle.Render(m.notice))
		b.WriteString("\n")
	}
	return b.String()
}

func (m Model) renderFooter() string {
	return footerStyle.Render("esc: back • r: refresh • f: forward • g: home • 1-9: follow link • h: help • ctrl+c: quit")
}

func renderHelp() string {
	content := []string{
		"Help",
		"",
		"esc/backspace: go back (twice to exit)",
		"f: go forward",
		"r: refresh the page",
		"g: return to the start page",
		"1-9: follow a numbered link",
		"↑/↓ or j/k: scroll",
		"enter: retry connection (offline)",
		"ctrl+c: force quit",
	}
	return helpStyle.Render(strings.Join(content, "\n"))
}

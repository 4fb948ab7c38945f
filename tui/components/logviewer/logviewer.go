// Package logviewer is a scrollable, follow-mode viewport for provisioning
// log lines.
package logviewer

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/grovetools/storefront/pkg/provision"
	"github.com/grovetools/storefront/tui/theme"
)

// Model is the TUI component for viewing logs.
type Model struct {
	viewport viewport.Model
	follow   bool
	ready    bool
	lines    []string
}

// New creates a new log viewer model.
func New(width, height int) Model {
	m := Model{
		viewport: viewport.New(width, height),
		follow:   true,
	}
	if width > 0 && height > 0 {
		m.ready = true
	}
	return m
}

// SetSize resizes the viewport.
func (m *Model) SetSize(width, height int) {
	m.viewport.Width = width
	m.viewport.Height = height
	m.ready = width > 0 && height > 0
	m.render()
}

// SetLines replaces the content. Lines only ever grow during a session, so
// follow mode keeps the newest line in view.
func (m *Model) SetLines(lines []string) {
	m.lines = append(m.lines[:0], lines...)
	m.render()
}

// Clear empties the viewer.
func (m *Model) Clear() {
	m.lines = nil
	m.viewport.SetContent("")
	m.viewport.GotoTop()
}

// GotoTop scrolls to the top of the log content.
func (m *Model) GotoTop() {
	m.viewport.GotoTop()
}

// GotoBottom scrolls to the bottom of the log content.
func (m *Model) GotoBottom() {
	m.viewport.GotoBottom()
}

// IsFollowing returns whether the log viewer is in follow mode.
func (m Model) IsFollowing() bool {
	return m.follow
}

// Lines returns the number of lines held.
func (m Model) Lines() int {
	return len(m.lines)
}

func (m *Model) render() {
	if !m.ready {
		return
	}

	// Leave one column for the scrollbar.
	wrapWidth := m.viewport.Width - 1
	if wrapWidth < 1 {
		wrapWidth = 1
	}
	wrapStyle := lipgloss.NewStyle().Width(wrapWidth)

	wrapped := make([]string, 0, len(m.lines))
	for _, line := range m.lines {
		wrapped = append(wrapped, wrapStyle.Render(styleSessionLine(line)))
	}
	m.viewport.SetContent(strings.Join(wrapped, "\n"))
	if m.follow {
		m.viewport.GotoBottom()
	}
}

// Init initializes the component.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case "f":
			m.follow = !m.follow
			if m.follow {
				m.viewport.GotoBottom()
			}
			return m, nil
		case "g":
			m.follow = false
			m.viewport.GotoTop()
			return m, nil
		case "G":
			m.viewport.GotoBottom()
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// View renders the log viewer with scrollbar.
func (m Model) View() string {
	if !m.ready {
		return ""
	}

	lines := strings.Split(m.viewport.View(), "\n")
	bar := scrollbar(m.viewport, len(lines))
	for i := range lines {
		lines[i] += bar[i]
	}
	return strings.Join(lines, "\n")
}

// scrollbar renders one column of track and thumb characters.
func scrollbar(vp viewport.Model, height int) []string {
	muted := theme.DefaultTheme.Muted
	bar := make([]string, height)

	total := vp.TotalLineCount()
	if total <= vp.Height || height == 0 {
		for i := range bar {
			bar[i] = " "
		}
		return bar
	}

	thumb := max(1, height*vp.Height/total)
	start := int(float64(height-thumb)*vp.ScrollPercent() + 0.5)
	for i := range bar {
		if i >= start && i < start+thumb {
			bar[i] = muted.Render("█")
		} else {
			bar[i] = muted.Render("│")
		}
	}
	return bar
}

// styleSessionLine highlights the lines the session itself appends.
func styleSessionLine(line string) string {
	t := theme.DefaultTheme
	switch line {
	case provision.LineConnected, provision.LineClosed:
		return t.Muted.Render(line)
	case provision.LineTransport:
		return t.Error.Render(line)
	}
	return line
}

// FormatLogLine renders one line of storefront's own JSON log file for a
// terminal. Lines that are not JSON pass through unchanged.
func FormatLogLine(line string) string {
	var logMap map[string]interface{}
	if err := json.Unmarshal([]byte(line), &logMap); err != nil {
		return line
	}

	msg, _ := logMap["msg"].(string)
	level, _ := logMap["level"].(string)
	ts, _ := logMap["time"].(string)
	component, _ := logMap["component"].(string)

	var timeStr string
	if parsed, err := time.Parse(time.RFC3339Nano, ts); err == nil {
		timeStr = parsed.Format("15:04:05")
	}

	t := theme.DefaultTheme
	levelStyle := t.Info
	switch strings.ToLower(level) {
	case "error", "fatal", "panic":
		levelStyle = t.Error
	case "warning", "warn":
		levelStyle = t.Warning
	case "debug", "trace":
		levelStyle = t.Muted
	}

	var parts []string
	if timeStr != "" {
		parts = append(parts, timeStr)
	}
	if component != "" {
		parts = append(parts, fmt.Sprintf("[%s]", t.Accent.Render(component)))
	}
	parts = append(parts, levelStyle.Render(strings.ToUpper(level))+":", msg)
	return strings.Join(parts, " ")
}

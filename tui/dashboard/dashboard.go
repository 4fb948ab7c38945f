// Package dashboard is the interactive store dashboard: the directory table,
// a create prompt and the provisioning log panel of the selected store.
package dashboard

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/cursor"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/grovetools/storefront/pkg/directory"
	"github.com/grovetools/storefront/pkg/models"
	"github.com/grovetools/storefront/pkg/provision"
	"github.com/grovetools/storefront/pkg/storeapi"
	"github.com/grovetools/storefront/pkg/viewer"
	"github.com/grovetools/storefront/tui/components/logviewer"
	"github.com/grovetools/storefront/tui/components/table"
	"github.com/grovetools/storefront/tui/keymap"
	"github.com/grovetools/storefront/tui/theme"
)

type mode int

const (
	modeBrowse mode = iota
	modeCreate
)

// Messages delivered to Update.
type (
	storesMsg  struct{ stores []models.Store }
	sessionMsg struct{ session *provision.Session }
	refreshMsg struct{ err error }
	createdMsg struct {
		store models.Store
		err   error
	}
	openedMsg struct {
		session *provision.Session
		err     error
	}
)

// StatusMsg shows a transient message in the footer.
type StatusMsg string

// sessionNotifier forwards viewer updates into the program, keeping only the
// newest pending one. Lines are read from the session when the message is
// handled, so a coalesced update loses nothing.
type sessionNotifier struct {
	ch chan *provision.Session
}

func (n *sessionNotifier) SessionUpdated(s *provision.Session) {
	select {
	case n.ch <- s:
		return
	default:
	}
	select {
	case <-n.ch:
	default:
	}
	select {
	case n.ch <- s:
	default:
	}
}

// Model is the dashboard's bubbletea model.
type Model struct {
	ctx     context.Context
	syncer  *directory.Synchronizer
	viewer  *viewer.Viewer
	updates chan directory.Update
	events  chan *provision.Session

	keys  keymap.Dashboard
	help  help.Model
	input textinput.Model
	logs  logviewer.Model
	theme *theme.Theme

	stores      []models.Store
	cursor      int
	mode        mode
	session     *provision.Session
	showSecrets bool
	refreshing  bool
	creating    bool
	status      string
	err         error

	width  int
	height int
}

// Option configures a Model.
type Option func(*Model)

// WithKeyMap replaces the default keymap.
func WithKeyMap(km keymap.Dashboard) Option {
	return func(m *Model) { m.keys = km }
}

// WithTheme replaces theme.DefaultTheme.
func WithTheme(t *theme.Theme) Option {
	return func(m *Model) { m.theme = t }
}

// New creates the dashboard. It owns a Viewer built from client and syncer;
// viewerOpts are applied to it.
func New(ctx context.Context, client storeapi.Client, syncer *directory.Synchronizer, opts []Option, viewerOpts ...viewer.Option) Model {
	notifier := &sessionNotifier{ch: make(chan *provision.Session, 1)}
	viewerOpts = append(viewerOpts, viewer.WithListener(notifier))

	input := textinput.New()
	input.Placeholder = "my-store"
	input.Prompt = "name: "
	input.CharLimit = 63
	input.Cursor.SetMode(cursor.CursorStatic)

	m := Model{
		ctx:     ctx,
		syncer:  syncer,
		viewer:  viewer.New(client, syncer, viewerOpts...),
		updates: syncer.Directory().Subscribe(),
		events:  notifier.ch,
		keys:    keymap.NewDashboard(),
		help:    help.New(),
		input:   input,
		logs:    logviewer.New(0, 0),
		theme:   theme.DefaultTheme,
		stores:  syncer.Directory().List(),
	}
	for _, opt := range opts {
		opt(&m)
	}
	return m
}

// Viewer returns the dashboard's log viewer.
func (m Model) Viewer() *viewer.Viewer {
	return m.viewer
}

// Close releases the viewer and the directory subscription.
func (m Model) Close() {
	m.viewer.Shutdown()
	m.syncer.Directory().Unsubscribe(m.updates)
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.refreshCmd(),
		waitForStores(m.updates),
		waitForSession(m.events),
	)
}

func waitForStores(ch chan directory.Update) tea.Cmd {
	return func() tea.Msg {
		u, ok := <-ch
		if !ok {
			return nil
		}
		return storesMsg{stores: u.Stores}
	}
}

func waitForSession(ch chan *provision.Session) tea.Cmd {
	return func() tea.Msg {
		return sessionMsg{session: <-ch}
	}
}

func (m Model) refreshCmd() tea.Cmd {
	syncer, ctx := m.syncer, m.ctx
	return func() tea.Msg {
		_, err := syncer.ListStores(ctx)
		return refreshMsg{err: err}
	}
}

func (m Model) createCmd(name string) tea.Cmd {
	syncer, ctx := m.syncer, m.ctx
	return func() tea.Msg {
		store, err := syncer.CreateStore(ctx, name)
		return createdMsg{store: store, err: err}
	}
}

func (m Model) openCmd(store models.Store) tea.Cmd {
	v, ctx := m.viewer, m.ctx
	return func() tea.Msg {
		s, err := v.Open(ctx, store.ID, store.Name)
		return openedMsg{session: s, err: err}
	}
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.help.Width = msg.Width
		m.logs.SetSize(msg.Width-2, m.logHeight())
		return m, nil

	case storesMsg:
		m.stores = msg.stores
		m.clampCursor()
		return m, waitForStores(m.updates)

	case sessionMsg:
		if msg.session != nil && msg.session == m.session {
			m.logs.SetLines(msg.session.Lines())
		}
		return m, waitForSession(m.events)

	case refreshMsg:
		m.refreshing = false
		m.err = msg.err
		return m, nil

	case createdMsg:
		m.creating = false
		if msg.err != nil {
			// The prompt stays open with the name for another try.
			m.err = msg.err
			m.status = ""
			return m, nil
		}
		m.err = nil
		m.mode = modeBrowse
		m.input.Blur()
		m.input.Reset()
		m.status = fmt.Sprintf("Created %s", msg.store.Name)
		m.selectID(msg.store.ID)
		return m, m.openCmd(msg.store)

	case openedMsg:
		// A dial failure still yields a FAILED session worth showing.
		if msg.session != nil {
			m.session = msg.session
			m.showSecrets = false
			m.logs.Clear()
			m.logs.SetLines(msg.session.Lines())
		}
		m.err = msg.err
		return m, nil

	case StatusMsg:
		m.status = string(msg)
		return m, nil

	case tea.KeyMsg:
		if m.mode == modeCreate {
			return m.updateCreate(msg)
		}
		return m.updateBrowse(msg)
	}

	return m, nil
}

func (m Model) updateCreate(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Back):
		m.mode = modeBrowse
		m.input.Blur()
		m.input.Reset()
		return m, nil
	case key.Matches(msg, m.keys.Confirm):
		if m.creating {
			return m, nil
		}
		name := strings.TrimSpace(m.input.Value())
		m.creating = true
		m.err = nil
		m.status = fmt.Sprintf("Creating %s...", name)
		return m, m.createCmd(name)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	if value := m.input.Value(); value != models.SanitizeStoreName(value) {
		m.input.SetValue(models.SanitizeStoreName(value))
		m.input.CursorEnd()
	}
	return m, cmd
}

func (m Model) updateBrowse(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		m.logs.SetSize(m.width-2, m.logHeight())
	case key.Matches(msg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
	case key.Matches(msg, m.keys.Down):
		if m.cursor < len(m.stores)-1 {
			m.cursor++
		}
	case key.Matches(msg, m.keys.Top):
		m.cursor = 0
	case key.Matches(msg, m.keys.Bottom):
		m.cursor = max(len(m.stores)-1, 0)
	case key.Matches(msg, m.keys.Refresh):
		m.refreshing = true
		return m, m.refreshCmd()
	case key.Matches(msg, m.keys.NewStore):
		m.mode = modeCreate
		m.err = nil
		cmd := m.input.Focus()
		return m, cmd
	case key.Matches(msg, m.keys.ViewLogs):
		if store, ok := m.selected(); ok {
			m.err = nil
			return m, m.openCmd(store)
		}
	case key.Matches(msg, m.keys.CloseLogs), key.Matches(msg, m.keys.Back):
		if m.session != nil {
			m.viewer.Close()
			m.session = nil
			m.showSecrets = false
			m.logs.Clear()
		}
	case key.Matches(msg, m.keys.ShowSecrets):
		m.showSecrets = !m.showSecrets
	case key.Matches(msg, m.keys.PageUp), key.Matches(msg, m.keys.PageDown):
		var cmd tea.Cmd
		m.logs, cmd = m.logs.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) selected() (models.Store, bool) {
	if m.cursor < 0 || m.cursor >= len(m.stores) {
		return models.Store{}, false
	}
	return m.stores[m.cursor], true
}

func (m *Model) selectID(id string) {
	m.stores = m.syncer.Directory().List()
	for i, s := range m.stores {
		if s.ID == id {
			m.cursor = i
			return
		}
	}
}

func (m *Model) clampCursor() {
	if m.cursor >= len(m.stores) {
		m.cursor = len(m.stores) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

func (m Model) logHeight() int {
	h := m.height - len(m.stores) - 14
	if m.help.ShowAll {
		h -= 4
	}
	return max(h, 3)
}

// View implements tea.Model.
func (m Model) View() string {
	t := m.theme
	var b strings.Builder

	title := t.Header.Render("storefront")
	if m.refreshing {
		title += " " + t.Muted.Render("refreshing...")
	}
	b.WriteString(title + "\n\n")

	if len(m.stores) == 0 {
		b.WriteString(t.Muted.Render("No stores yet. Press n to create one.") + "\n")
	} else {
		b.WriteString(table.RenderSelected(t, m.stores, m.cursor) + "\n")
	}

	if m.mode == modeCreate {
		b.WriteString("\n" + t.Input.Render(m.input.View()) + "\n")
	}

	if m.session != nil {
		b.WriteString("\n" + m.sessionView() + "\n")
	}

	b.WriteString("\n")
	switch {
	case m.err != nil:
		b.WriteString(t.Error.Render(m.err.Error()) + "\n")
	case m.status != "":
		b.WriteString(t.Muted.Render(m.status) + "\n")
	}
	b.WriteString(m.help.View(m.keys))
	return b.String()
}

func (m Model) sessionView() string {
	t := m.theme
	s := m.session
	state := string(s.State())
	header := lipgloss.JoinHorizontal(lipgloss.Left,
		t.Title.Render(s.StoreName()), " ",
		t.StatusStyle(state).Render(state))
	if s.Disconnected() && !s.Terminal() {
		header += " " + t.Warning.Render("(disconnected)")
	}

	parts := []string{header, m.logs.View()}
	if creds, ok := s.Credentials(); ok {
		pw := "********"
		if m.showSecrets {
			pw = creds.AdminPassword
		}
		if creds.AdminPassword == "" {
			pw = "-"
		}
		details := fmt.Sprintf("URL:      %s\nUser:     %s\nPassword: %s", creds.URL, creds.AdminUser, pw)
		parts = append(parts, t.DetailsBox.Render(details))
	}
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

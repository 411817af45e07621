// Package tui provides the interactive terminal UI for taskdeck.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/fentz26/taskdeck/internal/models"
	"github.com/fentz26/taskdeck/internal/notify"
	"github.com/fentz26/taskdeck/internal/state"
)

var (
	// Colors
	primaryColor = lipgloss.Color("#7C3AED")
	successColor = lipgloss.Color("#10B981")
	warningColor = lipgloss.Color("#F59E0B")
	errorColor   = lipgloss.Color("#EF4444")
	mutedColor   = lipgloss.Color("#6B7280")
	fgColor      = lipgloss.Color("#F9FAFB")
	cyanColor    = lipgloss.Color("#06B6D4")

	// Styles
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primaryColor).
			Padding(0, 1)

	statusBarStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("#374151")).
			Foreground(fgColor).
			Padding(0, 1)

	inputBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(primaryColor).
			Padding(0, 1)

	taskItemStyle = lipgloss.NewStyle().
			Padding(0, 2)

	selectedStyle = lipgloss.NewStyle().
			Background(primaryColor).
			Foreground(fgColor).
			Bold(true).
			Padding(0, 2)

	helpStyle = lipgloss.NewStyle().
			Foreground(mutedColor).
			Italic(true)

	labelStyle = lipgloss.NewStyle().
			Foreground(mutedColor)
)

type mode int

const (
	modeLogin mode = iota
	modeList
	modeDetail
)

// App is the main TUI model. It renders the state containers and drives them
// through tea commands.
type App struct {
	ctx   context.Context
	state *state.App
	notes *notify.Recorder

	mode        mode
	selectedIdx int
	width       int
	height      int

	login    *loginForm
	cmdBar   *cmdBar
	spinner  spinner.Model
	viewport viewport.Model

	busy    bool
	message string
	isError bool
	seen    int
}

// New creates the TUI over an already wired state.App. notes must be the
// Notifier the containers were built with.
func New(ctx context.Context, app *state.App, notes *notify.Recorder) *App {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(cyanColor)

	a := &App{
		ctx:      ctx,
		state:    app,
		notes:    notes,
		mode:     modeList,
		login:    newLoginForm(),
		cmdBar:   newCmdBar(),
		spinner:  sp,
		viewport: viewport.New(80, 20),
	}
	if !app.Auth.IsUserAuthenticated() {
		a.mode = modeLogin
	}
	return a
}

// Run starts the TUI application.
func (a *App) Run() error {
	p := tea.NewProgram(a, tea.WithAltScreen(), tea.WithContext(a.ctx))
	_, err := p.Run()
	return err
}

// Init implements tea.Model
func (a *App) Init() tea.Cmd {
	cmds := []tea.Cmd{textinput.Blink, a.spinner.Tick}
	if a.mode != modeLogin {
		cmds = append(cmds, a.loadSession())
	}
	return tea.Batch(cmds...)
}

// Update implements tea.Model
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return a, tea.Quit
		}
		switch {
		case a.mode == modeLogin:
			return a.updateLogin(msg)
		case a.cmdBar.focused:
			return a.updateCmdBar(msg)
		default:
			return a.updateKeys(msg)
		}

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.cmdBar.input.Width = msg.Width - 8
		a.viewport.Width = msg.Width - 4
		a.viewport.Height = max(msg.Height-12, 3)

	case spinner.TickMsg:
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		return a, cmd

	case loggedInMsg:
		a.busy = false
		if msg.err != nil {
			a.setError(msg.err)
			return a, nil
		}
		a.login.reset()
		a.mode = modeList
		a.selectedIdx = 0
		return a, a.loadSession()

	case sessionLoadedMsg:
		a.busy = false
		if msg.err != nil {
			a.setError(msg.err)
		}

	case pageLoadedMsg:
		a.busy = false
		if msg.err != nil {
			a.setError(msg.err)
			return a, nil
		}
		a.clampSelection()
		a.syncNotes()

	case taskLoadedMsg:
		a.busy = false
		if msg.err != nil {
			a.mode = modeList
			a.setError(msg.err)
			return a, nil
		}
		a.state.Tasks.SetCurrentTask(msg.task)
		a.viewport.SetContent(msg.task.Description)
		a.viewport.GotoTop()

	case mutatedMsg:
		a.busy = false
		if msg.err != nil {
			a.setError(msg.err)
			return a, nil
		}
		a.clampSelection()
		if msg.current != nil && a.mode == modeDetail {
			a.viewport.SetContent(msg.current.Description)
		}
		if msg.deleted && a.mode == modeDetail {
			a.mode = modeList
		}
		a.syncNotes()

	case loggedOutMsg:
		a.busy = false
		if msg.err != nil {
			a.setError(msg.err)
			return a, nil
		}
		a.mode = modeLogin
		a.selectedIdx = 0
		a.setMessage("Signed out")

	case infoMsg:
		a.busy = false
		a.setMessage(string(msg))
	}

	return a, nil
}

func (a *App) updateKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	list := a.state.Tasks.List()

	switch msg.String() {
	case "q":
		return a, tea.Quit

	case ":", "/":
		a.cmdBar.focus()
		return a, textinput.Blink

	case "esc":
		if a.mode == modeDetail {
			a.mode = modeList
			a.state.Tasks.SetCurrentTask(nil)
		}
		return a, nil

	case "up", "k":
		if a.mode == modeList && a.selectedIdx > 0 {
			a.selectedIdx--
		}

	case "down", "j":
		if a.mode == modeList && a.selectedIdx < len(list.Items)-1 {
			a.selectedIdx++
		}

	case "enter":
		if a.mode == modeList && len(list.Items) > 0 {
			a.mode = modeDetail
			return a, a.fetchTask(list.Items[a.selectedIdx].ID)
		}

	case "n":
		if a.mode == modeList && list.CurrentPage < list.TotalPages {
			a.selectedIdx = 0
			return a, a.fetchPage(list.CurrentPage+1, list.PageSize)
		}

	case "p":
		if a.mode == modeList && list.CurrentPage > 1 {
			a.selectedIdx = 0
			return a, a.fetchPage(list.CurrentPage-1, list.PageSize)
		}

	case "r":
		if a.mode == modeList {
			return a, a.fetchPage(list.CurrentPage, list.PageSize)
		}
	}

	if a.mode == modeDetail {
		var cmd tea.Cmd
		a.viewport, cmd = a.viewport.Update(msg)
		return a, cmd
	}
	return a, nil
}

func (a *App) updateCmdBar(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		a.cmdBar.blur()
		return a, nil
	case "tab":
		a.cmdBar.complete()
		return a, nil
	case "up":
		a.cmdBar.suggestions.Prev()
		return a, nil
	case "down":
		a.cmdBar.suggestions.Next()
		return a, nil
	case "enter":
		return a, a.execute(a.cmdBar.submit())
	}

	var cmd tea.Cmd
	a.cmdBar.input, cmd = a.cmdBar.input.Update(msg)
	a.cmdBar.suggestions.Update(a.cmdBar.input.Value())
	return a, cmd
}

func (a *App) updateLogin(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		return a, tea.Quit
	case "tab", "shift+tab", "up", "down":
		a.login.toggle()
		return a, textinput.Blink
	case "enter":
		username, password := a.login.values()
		if username == "" || password == "" {
			a.setMessage("Error: username and password are required")
			a.isError = true
			return a, nil
		}
		return a, a.doLogin(username, password)
	}
	return a, a.login.update(msg)
}

// View implements tea.Model
func (a *App) View() string {
	var b strings.Builder

	b.WriteString(a.renderHeader() + "\n")
	b.WriteString(strings.Repeat("─", max(a.width, 20)) + "\n")

	contentHeight := max(a.height-8, 5)

	switch a.mode {
	case modeLogin:
		b.WriteString(a.login.view())
	case modeList:
		b.WriteString(a.renderTaskList(contentHeight))
	case modeDetail:
		b.WriteString(a.renderTaskDetail())
	}

	// Message bar
	if a.message != "" {
		msgStyle := lipgloss.NewStyle().Foreground(successColor)
		if a.isError {
			msgStyle = lipgloss.NewStyle().Foreground(errorColor)
		}
		b.WriteString("\n" + msgStyle.Render(a.message))
	} else {
		b.WriteString("\n")
	}

	if a.mode != modeLogin {
		b.WriteString("\n")
		b.WriteString(inputBoxStyle.Render(a.cmdBar.view()))
		if a.cmdBar.focused && a.cmdBar.suggestions.IsVisible() {
			b.WriteString("\n")
			b.WriteString(a.cmdBar.suggestions.Render(max(a.width, 40)))
		}
	}
	b.WriteString("\n")

	b.WriteString(statusBarStyle.Width(a.width).Render(a.statusLine()))
	return b.String()
}

func (a *App) renderHeader() string {
	header := titleStyle.Render("taskdeck")

	userStatus := lipgloss.NewStyle().Foreground(mutedColor).Render("○ not signed in")
	if a.state.Auth.IsUserAuthenticated() {
		name := "signed in"
		if acc := a.state.Account.AccountDetails(); acc.ID != "" {
			name = models.DisplayName(acc)
		}
		userStatus = lipgloss.NewStyle().Foreground(successColor).Render("● " + name)
	}
	header += "  " + userStatus

	if a.busy {
		header += "  " + a.spinner.View()
	}
	if a.mode != modeLogin && a.state.Tasks.Stale() {
		header += "  " + lipgloss.NewStyle().Foreground(warningColor).Render("[stale: r to refresh]")
	}
	return header
}

func (a *App) renderTaskList(height int) string {
	list := a.state.Tasks.List()
	if a.state.Tasks.IsLoading() && len(list.Items) == 0 {
		return "\n  Loading tasks...\n"
	}
	if len(list.Items) == 0 {
		return "\n  No tasks found. Type :add <title> | <description> to create one.\n"
	}

	pageLabel := fmt.Sprintf(" Page %d of %d (%d tasks)", list.CurrentPage, max(list.TotalPages, 1), list.TotalCount)
	lines := []string{labelStyle.Render(pageLabel)}

	for i, task := range list.Items {
		if i == a.selectedIdx {
			lines = append(lines, selectedStyle.Render("▶ "+task.Title))
		} else {
			lines = append(lines, taskItemStyle.Render("  "+task.Title))
		}
	}

	// Limit visible lines
	if len(lines) > height {
		start := max(a.selectedIdx+1-height/2, 1)
		end := min(start+height-1, len(lines))
		lines = append(lines[:1], lines[start:end]...)
	}
	return strings.Join(lines, "\n")
}

func (a *App) renderTaskDetail() string {
	t := a.state.Tasks.CurrentTask()
	if t == nil {
		return "\n  Loading...\n"
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("\n  %s\n", lipgloss.NewStyle().Bold(true).Render(t.Title)))
	b.WriteString(labelStyle.Render("  ID: "+t.ID) + "\n\n")
	b.WriteString(a.viewport.View())
	b.WriteString("\n\n  " + helpStyle.Render("Commands: edit <title> | <description> | rm") + "\n")
	return b.String()
}

func (a *App) statusLine() string {
	switch {
	case a.mode == modeLogin:
		return " Tab:switch field | Enter:sign in | Esc:quit"
	case a.cmdBar.focused:
		return " Enter:run | Tab:complete | Esc:cancel"
	case a.mode == modeDetail:
		return " ↑↓:scroll | ::command | Esc:back | Ctrl+C:quit"
	default:
		return fmt.Sprintf(" Tasks: %d | ↑↓:nav | Enter:open | n/p:page | r:refresh | ::command | q:quit", len(a.state.Tasks.Items()))
	}
}

// setError shows err in the message bar. Errors from the containers already
// carry the normalised message.
func (a *App) setError(err error) {
	a.message = "Error: " + err.Error()
	a.isError = true
}

func (a *App) setMessage(s string) {
	a.message = s
	a.isError = false
}

// syncNotes surfaces the newest notification the containers emitted since
// the last call.
func (a *App) syncNotes() {
	if a.notes == nil {
		return
	}
	msgs := a.notes.Messages()
	if len(msgs) <= a.seen {
		return
	}
	a.seen = len(msgs)
	last := msgs[len(msgs)-1]
	a.message = last.Text
	a.isError = last.Kind == notify.KindError
}

func (a *App) clampSelection() {
	n := len(a.state.Tasks.Items())
	if a.selectedIdx >= n {
		a.selectedIdx = max(0, n-1)
	}
}

// selectedTask is the task commands act on: the open task in detail view,
// otherwise the highlighted row.
func (a *App) selectedTask() *models.Task {
	if a.mode == modeDetail {
		return a.state.Tasks.CurrentTask()
	}
	items := a.state.Tasks.Items()
	if a.selectedIdx < len(items) {
		t := items[a.selectedIdx]
		return &t
	}
	return nil
}

type loggedInMsg struct{ err error }

type loggedOutMsg struct{ err error }

type sessionLoadedMsg struct{ err error }

type pageLoadedMsg struct{ err error }

type taskLoadedMsg struct {
	task *models.Task
	err  error
}

type mutatedMsg struct {
	current *models.Task
	deleted bool
	err     error
}

type infoMsg string

func (a *App) doLogin(username, password string) tea.Cmd {
	a.busy = true
	return func() tea.Msg {
		_, err := a.state.Auth.Login(a.ctx, username, password)
		return loggedInMsg{err}
	}
}

// loadSession fetches the account and then the first page of tasks. Task
// calls need the account id, so the order matters.
func (a *App) loadSession() tea.Cmd {
	a.busy = true
	return func() tea.Msg {
		if _, err := a.state.Account.GetAccountDetails(a.ctx); err != nil {
			return sessionLoadedMsg{err}
		}
		return pageLoadedMsg{a.state.Tasks.FetchTasks(a.ctx, 1, 0)}
	}
}

func (a *App) fetchPage(page, size int) tea.Cmd {
	a.busy = true
	return func() tea.Msg {
		return pageLoadedMsg{a.state.Tasks.FetchTasks(a.ctx, page, size)}
	}
}

func (a *App) fetchTask(id string) tea.Cmd {
	a.busy = true
	return func() tea.Msg {
		task, err := a.state.Tasks.FetchTask(a.ctx, id)
		return taskLoadedMsg{task, err}
	}
}

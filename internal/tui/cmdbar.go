package tui

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/fentz26/taskdeck/internal/models"
)

var promptStyle = lipgloss.NewStyle().
	Foreground(lipgloss.Color("205")).
	Bold(true)

// cmdBar manages the command input bar.
type cmdBar struct {
	input       textinput.Model
	focused     bool
	suggestions *Suggestions
}

func newCmdBar() *cmdBar {
	ti := textinput.New()
	ti.Placeholder = "add <title> | <description>"
	ti.CharLimit = 512
	ti.Width = 80
	return &cmdBar{input: ti, suggestions: NewSuggestions()}
}

func (m *cmdBar) focus() {
	m.focused = true
	m.input.Focus()
}

func (m *cmdBar) blur() {
	m.focused = false
	m.input.Blur()
	m.input.SetValue("")
	m.suggestions.Update("")
}

// submit returns the current input and blurs.
func (m *cmdBar) submit() string {
	val := strings.TrimSpace(m.input.Value())
	m.blur()
	return val
}

// complete replaces the command word with the selected suggestion.
func (m *cmdBar) complete() {
	selected := m.suggestions.Selected()
	if selected == nil {
		return
	}
	m.input.SetValue(selected.Text + " ")
	m.input.CursorEnd()
	m.suggestions.Update("")
}

func (m *cmdBar) view() string {
	if m.focused {
		return promptStyle.Render(": ") + m.input.View()
	}
	return helpStyle.Render("Press : to enter a command (add, edit, rm, page, whoami, logout)")
}

// parseTaskInput reads "<title> | <description>".
func parseTaskInput(s string) (models.TaskInput, error) {
	title, desc, _ := strings.Cut(s, "|")
	in := models.TaskInput{Title: strings.TrimSpace(title), Description: strings.TrimSpace(desc)}
	if in.Title == "" {
		return in, errors.New("a title is required")
	}
	return in, nil
}

// execute runs one command line. Usage mistakes are reported through the
// task container so they show up with every other task error.
func (a *App) execute(input string) tea.Cmd {
	parts := strings.Fields(input)
	if len(parts) == 0 {
		return nil
	}

	cmd := parts[0]
	rest := strings.TrimSpace(strings.TrimPrefix(input, cmd))
	tasks := a.state.Tasks
	tasks.ClearError()

	usage := func(text string) tea.Cmd {
		tasks.ReportError(errors.New("Usage: " + text))
		a.setError(errors.New(tasks.Error().Message))
		return nil
	}

	switch cmd {
	case "add":
		in, err := parseTaskInput(rest)
		if err != nil {
			return usage("add <title> | <description>")
		}
		a.busy = true
		return func() tea.Msg {
			_, err := tasks.CreateTask(a.ctx, in)
			return mutatedMsg{err: err}
		}

	case "edit":
		target := a.selectedTask()
		if target == nil {
			return usage("select a task, then edit <title> | <description>")
		}
		in, err := parseTaskInput(rest)
		if err != nil {
			return usage("edit <title> | <description>")
		}
		a.busy = true
		return func() tea.Msg {
			updated, err := tasks.UpdateTask(a.ctx, target.ID, in)
			return mutatedMsg{current: updated, err: err}
		}

	case "rm", "delete":
		id := rest
		if id == "" {
			target := a.selectedTask()
			if target == nil {
				return usage("rm [task-id]")
			}
			id = target.ID
		}
		a.busy = true
		return func() tea.Msg {
			ok, err := tasks.DeleteTask(a.ctx, id)
			return mutatedMsg{deleted: ok, err: err}
		}

	case "page":
		n, err := strconv.Atoi(rest)
		if err != nil || n < 1 {
			return usage("page <n>")
		}
		a.selectedIdx = 0
		a.mode = modeList
		return a.fetchPage(n, tasks.List().PageSize)

	case "refresh":
		list := tasks.List()
		return a.fetchPage(list.CurrentPage, list.PageSize)

	case "whoami":
		acc := a.state.Account.AccountDetails()
		if acc.ID == "" {
			return func() tea.Msg { return infoMsg("Account details not loaded") }
		}
		who := models.DisplayName(acc)
		if acc.Username != "" {
			who = fmt.Sprintf("%s (%s)", who, acc.Username)
		} else if acc.PhoneNumber != nil {
			who = fmt.Sprintf("%s (%s)", who, models.DisplayPhoneNumber(*acc.PhoneNumber))
		}
		return func() tea.Msg { return infoMsg("Signed in as " + who) }

	case "logout":
		a.busy = true
		return func() tea.Msg {
			return loggedOutMsg{a.state.Auth.Logout()}
		}

	case "q", "quit", "exit":
		return tea.Quit

	default:
		return usage(fmt.Sprintf("unknown command %q (try: add, edit, rm, page, whoami, logout)", cmd))
	}
}

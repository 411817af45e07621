package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var loginBoxStyle = lipgloss.NewStyle().
	Border(lipgloss.RoundedBorder()).
	BorderForeground(mutedColor).
	Padding(1, 2)

// loginForm is the username/password prompt shown while signed out.
type loginForm struct {
	username textinput.Model
	password textinput.Model
	focus    int
}

func newLoginForm() *loginForm {
	u := textinput.New()
	u.Placeholder = "you@example.com"
	u.CharLimit = 254
	u.Width = 40
	u.Focus()

	p := textinput.New()
	p.Placeholder = "password"
	p.EchoMode = textinput.EchoPassword
	p.EchoCharacter = '•'
	p.CharLimit = 128
	p.Width = 40

	return &loginForm{username: u, password: p}
}

func (f *loginForm) toggle() {
	f.focus = 1 - f.focus
	if f.focus == 0 {
		f.password.Blur()
		f.username.Focus()
	} else {
		f.username.Blur()
		f.password.Focus()
	}
}

func (f *loginForm) values() (string, string) {
	return strings.TrimSpace(f.username.Value()), f.password.Value()
}

func (f *loginForm) reset() {
	f.password.SetValue("")
	if f.focus == 1 {
		f.toggle()
	}
}

func (f *loginForm) update(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	if f.focus == 0 {
		f.username, cmd = f.username.Update(msg)
	} else {
		f.password, cmd = f.password.Update(msg)
	}
	return cmd
}

func (f *loginForm) view() string {
	var b strings.Builder
	b.WriteString(lipgloss.NewStyle().Bold(true).Render("Sign in") + "\n\n")
	b.WriteString(labelStyle.Render("Username") + "\n")
	b.WriteString(f.username.View() + "\n\n")
	b.WriteString(labelStyle.Render("Password") + "\n")
	b.WriteString(f.password.View() + "\n\n")
	b.WriteString(helpStyle.Render("No account? Run: taskdeck signup"))
	return "\n" + loginBoxStyle.Render(b.String()) + "\n"
}

// Package notify delivers short user-facing messages, the terminal
// counterpart of toast notifications.
package notify

import (
	"fmt"
	"io"
	"sync"

	"github.com/charmbracelet/lipgloss"
)

// Notifier receives transient success and error messages.
type Notifier interface {
	Success(msg string)
	Error(msg string)
}

var (
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444"))
)

// Writer prints styled messages to an io.Writer.
type Writer struct {
	mu  sync.Mutex
	out io.Writer
}

// NewWriter returns a Writer that prints to out.
func NewWriter(out io.Writer) *Writer {
	return &Writer{out: out}
}

// Success implements Notifier.
func (w *Writer) Success(msg string) {
	w.print(successStyle.Render("✓ " + msg))
}

// Error implements Notifier.
func (w *Writer) Error(msg string) {
	w.print(errorStyle.Render("✗ " + msg))
}

func (w *Writer) print(s string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	fmt.Fprintln(w.out, s)
}

// Kind tells a recorded success apart from a recorded error.
type Kind string

const (
	KindSuccess Kind = "success"
	KindError   Kind = "error"
)

// Message is one recorded notification.
type Message struct {
	Kind Kind
	Text string
}

// Recorder keeps every notification it receives. Useful in tests and for
// UIs that render the latest message themselves.
type Recorder struct {
	mu       sync.Mutex
	messages []Message
}

// Success implements Notifier.
func (r *Recorder) Success(msg string) { r.add(KindSuccess, msg) }

// Error implements Notifier.
func (r *Recorder) Error(msg string) { r.add(KindError, msg) }

func (r *Recorder) add(k Kind, msg string) {
	r.mu.Lock()
	r.messages = append(r.messages, Message{Kind: k, Text: msg})
	r.mu.Unlock()
}

// Messages returns a copy of everything recorded so far.
func (r *Recorder) Messages() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Message, len(r.messages))
	copy(out, r.messages)
	return out
}

// Last returns the most recent message, if any.
func (r *Recorder) Last() (Message, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.messages) == 0 {
		return Message{}, false
	}
	return r.messages[len(r.messages)-1], true
}

// Nop discards every message.
type Nop struct{}

func (Nop) Success(string) {}
func (Nop) Error(string)   {}

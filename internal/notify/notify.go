package notify

import (
	"fmt"
	"io"
	"sync"
)

// Notifier accepts a message and the severity class it should be shown with.
type Notifier interface {
	Notify(message, severityClass string)
}

// Func adapts a function into a Notifier.
type Func func(message, severityClass string)

// Notify calls f.
func (f Func) Notify(message, severityClass string) {
	if f != nil {
		f(message, severityClass)
	}
}

// Multi fans one notification out to several notifiers. Nil entries are
// ignored.
type Multi []Notifier

// Notify implements Notifier.
func (m Multi) Notify(message, severityClass string) {
	for _, n := range m {
		if n != nil {
			n.Notify(message, severityClass)
		}
	}
}

// Writer prints notifications as "[LEVEL] message" lines, for the CLI.
type Writer struct {
	mu  sync.Mutex
	out io.Writer
}

// NewWriter returns a notifier printing to out.
func NewWriter(out io.Writer) *Writer {
	return &Writer{out: out}
}

// Notify implements Notifier.
func (w *Writer) Notify(message, severityClass string) {
	if w == nil || w.out == nil {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	fmt.Fprintf(w.out, "[%s] %s\n", LevelForClass(severityClass), message)
}

// Message is one recorded notification.
type Message struct {
	Text  string
	Class string
}

// Recorder keeps every notification in memory. The editor shows the latest
// one in its status line.
type Recorder struct {
	mu       sync.Mutex
	messages []Message
}

// Notify implements Notifier.
func (r *Recorder) Notify(message, severityClass string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, Message{Text: message, Class: severityClass})
}

// Last returns the most recent notification.
func (r *Recorder) Last() (Message, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.messages) == 0 {
		return Message{}, false
	}
	return r.messages[len(r.messages)-1], true
}

// Messages returns a copy of every recorded notification.
func (r *Recorder) Messages() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Message, len(r.messages))
	copy(out, r.messages)
	return out
}

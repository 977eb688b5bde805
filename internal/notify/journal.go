// Package notify delivers user-facing messages about submissions.
package notify

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Level is the journal severity of an entry.
type Level string

const (
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
)

// Severity classes understood by the notifiers in this package.
const (
	ClassError   = "errorHeader"
	ClassWarning = "warningHeader"
	ClassInfo    = "infoHeader"
)

// LevelForClass maps a severity class onto a journal level. Unknown classes
// are recorded as INFO.
func LevelForClass(class string) Level {
	switch strings.TrimSpace(class) {
	case ClassError:
		return LevelError
	case ClassWarning:
		return LevelWarn
	default:
		return LevelInfo
	}
}

// Journal appends notifications to a text file so they can be read after the
// editor exits.
type Journal struct {
	path  string
	mu    sync.Mutex
	clock func() time.Time
}

// NewJournal creates a journal writing to path.
func NewJournal(path string) (*Journal, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("notify: ensure journal dir: %w", err)
	}
	return &Journal{path: path, clock: time.Now}, nil
}

// Path returns the file backing this journal.
func (j *Journal) Path() string {
	if j == nil {
		return ""
	}
	return j.path
}

// Notify records message at the level matching severityClass.
func (j *Journal) Notify(message, severityClass string) {
	j.Append(LevelForClass(severityClass), message)
}

// Append writes a single entry. Write errors are dropped; a broken journal
// must not break a submission.
func (j *Journal) Append(level Level, message string) {
	if j == nil {
		return
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	line := fmt.Sprintf("%s %-5s %s\n",
		j.clock().UTC().Format(time.RFC3339),
		string(level),
		strings.Join(strings.Fields(message), " "),
	)
	file, err := os.OpenFile(j.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return
	}
	defer file.Close()
	_, _ = file.WriteString(line)
}

// Tail returns up to maxLines of the most recent entries and the total
// number of entries in the journal.
func (j *Journal) Tail(maxLines int) ([]string, int) {
	if j == nil || maxLines <= 0 {
		return nil, 0
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	file, err := os.Open(j.path)
	if err != nil {
		return nil, 0
	}
	defer file.Close()

	var lines []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	total := len(lines)
	if total > maxLines {
		lines = lines[total-maxLines:]
	}
	return lines, total
}

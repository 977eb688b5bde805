// internal/tui/app.go
//
// The matrix editor. It follows The Elm Architecture like every bubbletea
// program: App holds the state, Update turns key and mouse messages into
// selection and task changes, View renders the two panes. Navigation to the
// new version after a submission belongs to the submitter; the editor quits.
//
// Left pane: variants. A click selects only that variant, ctrl/alt+click adds
// or removes it, shift+click extends the selection as a range.
// Right pane: one tri-state checkbox per task present on the selected
// variants. Toggling it writes to every selected variant that has the task.

package tui

import (
	"context"
	"errors"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/kingrea/patchmatrix/internal/catalog"
	"github.com/kingrea/patchmatrix/internal/matrix"
	"github.com/kingrea/patchmatrix/internal/notify"
	"github.com/kingrea/patchmatrix/internal/submission"
)

// pane identifies which column has keyboard focus
type pane int

const (
	paneVariants pane = iota
	paneTasks
)

// Logger matches logging.Logger.
type Logger interface {
	Printf(format string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Printf(string, ...any) {}

// AppOption customizes App construction for tests and alternate runtimes.
type AppOption func(*App)

// WithLogger routes diagnostics to l.
func WithLogger(l Logger) AppOption {
	return func(a *App) {
		if l != nil {
			a.logger = l
		}
	}
}

// WithNotifications sets the recorder the status line reads failures from.
// It must be the same recorder the submitter notifies.
func WithNotifications(r *notify.Recorder) AppOption {
	return func(a *App) {
		if r != nil {
			a.notifications = r
		}
	}
}

// WithContext sets the context submissions run under.
func WithContext(ctx context.Context) AppOption {
	return func(a *App) {
		if ctx != nil {
			a.ctx = ctx
		}
	}
}

type submitResultMsg struct {
	result submission.Result
	err    error
}

// App is the editor model.
type App struct {
	ctx           context.Context
	patch         catalog.Patch
	matrix        *matrix.Matrix
	submitter     *submission.Submitter
	notifications *notify.Recorder
	logger        Logger

	keys keyMap
	help help.Model

	focus      pane
	cursor     int
	taskCursor int

	submitting bool
	version    string
	statusMsg  string
	errMsg     string

	width  int
	height int
}

// NewApp builds the editor for cat. The matrix starts with nothing selected
// and nothing checked.
func NewApp(cat catalog.Catalog, submitter *submission.Submitter, opts ...AppOption) *App {
	a := &App{
		ctx:           context.Background(),
		patch:         cat.Patch,
		matrix:        matrix.New(cat),
		submitter:     submitter,
		notifications: &notify.Recorder{},
		logger:        nopLogger{},
		keys:          defaultKeyMap(),
		help:          help.New(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}
	return a
}

// Matrix exposes the live selection state.
func (a *App) Matrix() *matrix.Matrix {
	return a.matrix
}

// Version returns the version id assigned by a successful submission.
func (a *App) Version() string {
	return a.version
}

// Init implements tea.Model.
func (a *App) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.help.Width = msg.Width
		return a, nil
	case tea.KeyMsg:
		return a, a.handleKey(msg)
	case tea.MouseMsg:
		return a, a.handleMouse(msg)
	case submitResultMsg:
		return a, a.handleSubmitResult(msg)
	}
	return a, nil
}

func (a *App) handleKey(msg tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(msg, a.keys.Quit):
		return tea.Quit
	case key.Matches(msg, a.keys.Help):
		a.help.ShowAll = !a.help.ShowAll
	case key.Matches(msg, a.keys.SwitchPane):
		a.switchPane()
	case key.Matches(msg, a.keys.Submit):
		return a.submit()
	case key.Matches(msg, a.keys.CheckAll):
		a.setAll(true)
	case key.Matches(msg, a.keys.UncheckAll):
		a.setAll(false)
	case key.Matches(msg, a.keys.Up):
		a.moveCursor(-1)
	case key.Matches(msg, a.keys.Down):
		a.moveCursor(1)
	case key.Matches(msg, a.keys.ExtendUp):
		a.extend(-1)
	case key.Matches(msg, a.keys.ExtendDown):
		a.extend(1)
	case key.Matches(msg, a.keys.Activate):
		if a.focus == paneVariants {
			a.selectVariant(a.cursor, matrix.Modifiers{})
		} else {
			a.toggleTaskAt(a.taskCursor)
		}
	case key.Matches(msg, a.keys.Toggle):
		if a.focus == paneVariants {
			a.selectVariant(a.cursor, matrix.Modifiers{CtrlOrMeta: true})
		} else {
			a.toggleTaskAt(a.taskCursor)
		}
	}
	return nil
}

func (a *App) handleMouse(msg tea.MouseMsg) tea.Cmd {
	if msg.Action != tea.MouseActionPress || msg.Button != tea.MouseButtonLeft {
		return nil
	}
	row := msg.Y - headerRows
	if row < 0 {
		return nil
	}
	if msg.X < a.variantPaneWidth() {
		if row >= a.matrix.Len() {
			return nil
		}
		a.focus = paneVariants
		a.cursor = row
		a.selectVariant(row, matrix.Modifiers{CtrlOrMeta: msg.Ctrl || msg.Alt, Shift: msg.Shift})
		return nil
	}
	if row >= len(a.matrix.Aggregator().ActiveTasks()) {
		return nil
	}
	a.focus = paneTasks
	a.taskCursor = row
	a.toggleTaskAt(row)
	return nil
}

func (a *App) selectVariant(index int, mods matrix.Modifiers) {
	if !a.matrix.Select(index, mods) {
		return
	}
	a.clampTaskCursor()
	a.errMsg = ""
	a.statusMsg = ""
	a.logger.Printf("select index=%d ctrl=%t shift=%t selected=%d", index, mods.CtrlOrMeta, mods.Shift, len(a.matrix.Selected()))
}

func (a *App) toggleTaskAt(row int) {
	tasks := a.matrix.Aggregator().ActiveTasks()
	if row < 0 || row >= len(tasks) {
		return
	}
	state := a.matrix.Aggregator().Toggle(tasks[row])
	a.errMsg = ""
	a.statusMsg = ""
	a.logger.Printf("toggle task=%s state=%s", tasks[row], state)
}

func (a *App) setAll(value bool) {
	n := a.matrix.Aggregator().SetAll(value)
	a.errMsg = ""
	if value {
		a.statusMsg = pluralize(n, "cell") + " checked"
	} else {
		a.statusMsg = pluralize(n, "cell") + " unchecked"
	}
}

func (a *App) moveCursor(delta int) {
	if a.focus == paneVariants {
		a.cursor = clamp(a.cursor+delta, 0, a.matrix.Len()-1)
		return
	}
	a.taskCursor = clamp(a.taskCursor+delta, 0, len(a.matrix.Aggregator().ActiveTasks())-1)
}

// extend moves the variant cursor and applies a shift-click at the new row.
func (a *App) extend(delta int) {
	if a.focus != paneVariants {
		a.moveCursor(delta)
		return
	}
	a.cursor = clamp(a.cursor+delta, 0, a.matrix.Len()-1)
	a.selectVariant(a.cursor, matrix.Modifiers{Shift: true})
}

func (a *App) switchPane() {
	if a.focus == paneVariants && len(a.matrix.Aggregator().ActiveTasks()) > 0 {
		a.focus = paneTasks
		a.clampTaskCursor()
		return
	}
	a.focus = paneVariants
}

func (a *App) clampTaskCursor() {
	n := len(a.matrix.Aggregator().ActiveTasks())
	a.taskCursor = clamp(a.taskCursor, 0, n-1)
	if n == 0 && a.focus == paneTasks {
		a.focus = paneVariants
	}
}

func (a *App) submit() tea.Cmd {
	if a.submitter == nil {
		a.errMsg = "no patch server configured"
		return nil
	}
	if a.submitting || a.submitter.InFlight() {
		a.statusMsg = "submission already in progress"
		return nil
	}
	payload := submission.Build(a.matrix)
	a.submitting = true
	a.errMsg = ""
	a.statusMsg = "submitting " + pluralize(payload.Len(), "task") + "…"
	ctx, submitter, patchID := a.ctx, a.submitter, a.patch.ID
	return func() tea.Msg {
		result, err := submitter.SubmitPayload(ctx, patchID, payload)
		return submitResultMsg{result: result, err: err}
	}
}

func (a *App) handleSubmitResult(msg submitResultMsg) tea.Cmd {
	a.submitting = false
	if msg.err != nil {
		a.statusMsg = ""
		a.errMsg = msg.err.Error()
		if errors.Is(msg.err, submission.ErrTransport) {
			if last, ok := a.notifications.Last(); ok {
				a.errMsg = last.Text
			}
		}
		a.logger.Printf("submit failed: %v", msg.err)
		return nil
	}
	a.version = msg.result.Version
	a.statusMsg = "created version " + a.version
	a.logger.Printf("submit ok: version=%s", a.version)
	return tea.Quit
}

func clamp(v, lo, hi int) int {
	if hi < lo {
		return lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

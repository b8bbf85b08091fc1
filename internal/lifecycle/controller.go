// Package lifecycle routes tray, window and launch events from the OS to
// the UI layer.
//
// A single Controller is built at startup. Event handlers run on whatever
// goroutine the host delivers them on and return promptly; delayed work
// (the quit grace period and the startup open-file delay) runs on detached
// timers that report back to the dispatcher loop started by Run.
package lifecycle

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/starford/mdnotebook/internal/apperr"
	"github.com/starford/mdnotebook/internal/validate"
)

// Tray menu item ids.
const (
	MenuShowHide  = "show_hide"
	MenuNewNote   = "new_note"
	MenuDailyNote = "daily_note"
	MenuQuit      = "quit"
)

// Notifications emitted to the UI layer.
const (
	EventOpenFile  = "open-file"
	EventNewNote   = "tray-new-note"
	EventDailyNote = "tray-daily-note"
	EventFlushSave = "flush-save"
)

// Default delays.
const (
	DefaultQuitGrace     = 600 * time.Millisecond
	DefaultOpenFileDelay = 1500 * time.Millisecond
	DefaultTooltip       = "MDNotebook"
)

// MenuItem is one fixed entry of the tray menu.
type MenuItem struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// MenuItems is the tray menu, in display order.
var MenuItems = []MenuItem{
	{ID: MenuShowHide, Label: "Show/Hide"},
	{ID: MenuNewNote, Label: "New Note"},
	{ID: MenuDailyNote, Label: "Daily Note"},
	{ID: MenuQuit, Label: "Quit"},
}

// Window is the main application window. The OS owns it; the controller
// only drives it.
type Window interface {
	Show() error
	Hide() error
	Focus() error
	IsVisible() (bool, error)
}

// Tray builds the system tray icon and menu.
type Tray interface {
	Build(tooltip string, items []MenuItem) error
}

// Emitter delivers an asynchronous notification to the UI layer.
type Emitter interface {
	Emit(event string, payload any)
}

// MouseButton identifies the tray icon button that was clicked.
type MouseButton string

// ButtonState is the state of the button when the click was reported.
type ButtonState string

const (
	ButtonLeft   MouseButton = "left"
	ButtonRight  MouseButton = "right"
	ButtonMiddle MouseButton = "middle"

	StateUp   ButtonState = "up"
	StateDown ButtonState = "down"
)

// Options tunes a Controller. Zero values select the defaults.
type Options struct {
	QuitGrace     time.Duration
	OpenFileDelay time.Duration
	Tooltip       string
	// Exit terminates the process. Required.
	Exit   func(code int)
	Logger *slog.Logger
}

type timerKind int

const (
	timerQuit timerKind = iota
	timerOpenFile
)

type timerMsg struct {
	kind timerKind
	path string
}

// Controller owns the tray menu and translates OS events into window
// commands and UI notifications.
type Controller struct {
	window Window
	tray   Tray
	emit   Emitter

	quitGrace     time.Duration
	openFileDelay time.Duration
	tooltip       string
	exit          func(code int)
	logger        *slog.Logger

	timers chan timerMsg
	done   chan struct{}
}

// New creates a Controller. Call Start once, then Run.
func New(w Window, t Tray, e Emitter, opts Options) *Controller {
	c := &Controller{
		window:        w,
		tray:          t,
		emit:          e,
		quitGrace:     opts.QuitGrace,
		openFileDelay: opts.OpenFileDelay,
		tooltip:       opts.Tooltip,
		exit:          opts.Exit,
		logger:        opts.Logger,
		timers:        make(chan timerMsg),
		done:          make(chan struct{}),
	}
	if c.quitGrace <= 0 {
		c.quitGrace = DefaultQuitGrace
	}
	if c.openFileDelay <= 0 {
		c.openFileDelay = DefaultOpenFileDelay
	}
	if c.tooltip == "" {
		c.tooltip = DefaultTooltip
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c
}

// Start builds the tray menu and, when the process was launched with a
// markdown file, schedules an open-file notification after the startup
// delay so the UI has time to initialize.
func (c *Controller) Start(args []string) error {
	if err := c.tray.Build(c.tooltip, MenuItems); err != nil {
		return fmt.Errorf("lifecycle: build tray: %w", err)
	}
	if path, ok := validate.LaunchFile(args); ok {
		c.logger.Info("lifecycle: launched with file", slog.String("path", path))
		c.schedule(c.openFileDelay, timerMsg{kind: timerOpenFile, path: path})
	}
	return nil
}

// Run dispatches timer completions until ctx is cancelled. Timers that fire
// after Run returns are dropped.
func (c *Controller) Run(ctx context.Context) error {
	defer close(c.done)
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg := <-c.timers:
			switch msg.kind {
			case timerQuit:
				c.logger.Info("lifecycle: quit grace period elapsed, exiting")
				c.exit(0)
			case timerOpenFile:
				c.emit.Emit(EventOpenFile, msg.path)
			}
		}
	}
}

// HandleMenu reacts to a tray menu activation.
func (c *Controller) HandleMenu(id string) error {
	switch id {
	case MenuShowHide:
		visible, err := c.window.IsVisible()
		if err != nil {
			c.logger.Warn("lifecycle: query visibility failed", slog.String("error", err.Error()))
			visible = false
		}
		if visible {
			c.hide()
		} else {
			c.showAndFocus()
		}
	case MenuNewNote:
		c.showAndFocus()
		c.emit.Emit(EventNewNote, nil)
	case MenuDailyNote:
		c.showAndFocus()
		c.emit.Emit(EventDailyNote, nil)
	case MenuQuit:
		// Best effort: the UI gets the grace period to persist, then the
		// process exits whether or not it finished.
		c.emit.Emit(EventFlushSave, nil)
		c.schedule(c.quitGrace, timerMsg{kind: timerQuit})
	default:
		return fmt.Errorf("%w: unknown menu item %q", apperr.ErrValidation, id)
	}
	return nil
}

// HandleTrayClick brings the window forward on a left-button release.
func (c *Controller) HandleTrayClick(button MouseButton, state ButtonState) {
	if button == ButtonLeft && state == StateUp {
		c.showAndFocus()
	}
}

// HandleCloseRequested hides the window instead of closing it. It always
// reports that the close should be prevented; quitting goes through the
// tray menu.
func (c *Controller) HandleCloseRequested() bool {
	c.hide()
	return true
}

// HandleSecondInstance is called in the running instance when another
// launch was suppressed. args are the positional arguments of that launch.
func (c *Controller) HandleSecondInstance(args []string) {
	c.showAndFocus()
	if path, ok := validate.LaunchFile(args); ok {
		c.emit.Emit(EventOpenFile, path)
	}
}

func (c *Controller) showAndFocus() {
	if err := c.window.Show(); err != nil {
		c.logger.Warn("lifecycle: show window failed", slog.String("error", err.Error()))
	}
	if err := c.window.Focus(); err != nil {
		c.logger.Warn("lifecycle: focus window failed", slog.String("error", err.Error()))
	}
}

func (c *Controller) hide() {
	if err := c.window.Hide(); err != nil {
		c.logger.Warn("lifecycle: hide window failed", slog.String("error", err.Error()))
	}
}

// schedule starts a detached timer. It cannot be cancelled; if the
// dispatcher has stopped by the time it fires the message is dropped.
func (c *Controller) schedule(d time.Duration, msg timerMsg) {
	go func() {
		time.Sleep(d)
		select {
		case c.timers <- msg:
		case <-c.done:
		}
	}()
}

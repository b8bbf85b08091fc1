// Package window tracks the main window and tray on behalf of the webview
// shell. The shell owns the real OS objects; this package keeps the host's
// view of their state and publishes every command on the event stream so
// the shell can apply it.
package window

import (
	"log/slog"
	"sync"

	"github.com/starford/mdnotebook/internal/lifecycle"
)

// Shell-facing events.
const (
	EventShow  = "window:show"
	EventHide  = "window:hide"
	EventFocus = "window:focus"
	EventTheme = "window:theme"
	EventTray  = "tray:build"
)

// State is a snapshot of the tracked window.
type State struct {
	Visible bool `json:"visible"`
	Focused bool `json:"focused"`
	Dark    bool `json:"dark"`
}

// Handle is a thread-safe reference to the main window, shared by the
// request path, the tray handlers and the lifecycle timers.
type Handle struct {
	mu    sync.Mutex
	state State
	emit  lifecycle.Emitter
}

var _ lifecycle.Window = (*Handle)(nil)

// NewHandle returns a handle for a window that starts visible, which is how
// the shell opens it.
func NewHandle(emit lifecycle.Emitter) *Handle {
	return &Handle{state: State{Visible: true}, emit: emit}
}

func (h *Handle) Show() error {
	h.mu.Lock()
	h.state.Visible = true
	h.mu.Unlock()
	h.emit.Emit(EventShow, nil)
	return nil
}

func (h *Handle) Hide() error {
	h.mu.Lock()
	h.state.Visible = false
	h.state.Focused = false
	h.mu.Unlock()
	h.emit.Emit(EventHide, nil)
	return nil
}

func (h *Handle) Focus() error {
	h.mu.Lock()
	h.state.Focused = h.state.Visible
	h.mu.Unlock()
	h.emit.Emit(EventFocus, nil)
	return nil
}

func (h *Handle) IsVisible() (bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state.Visible, nil
}

// SetTheme switches the native window chrome between dark and light.
func (h *Handle) SetTheme(dark bool) error {
	h.mu.Lock()
	h.state.Dark = dark
	h.mu.Unlock()
	theme := "light"
	if dark {
		theme = "dark"
	}
	h.emit.Emit(EventTheme, map[string]string{"theme": theme})
	return nil
}

// Snapshot returns the current state.
func (h *Handle) Snapshot() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// Tray records the menu built at startup and announces it to the shell.
type Tray struct {
	mu      sync.Mutex
	tooltip string
	items   []lifecycle.MenuItem
	emit    lifecycle.Emitter
	logger  *slog.Logger
}

var _ lifecycle.Tray = (*Tray)(nil)

// NewTray returns an unbuilt tray.
func NewTray(emit lifecycle.Emitter, logger *slog.Logger) *Tray {
	return &Tray{emit: emit, logger: logger}
}

// TrayMenu is the payload of EventTray and of the tray state endpoint.
type TrayMenu struct {
	Tooltip string               `json:"tooltip"`
	Items   []lifecycle.MenuItem `json:"items"`
}

func (t *Tray) Build(tooltip string, items []lifecycle.MenuItem) error {
	t.mu.Lock()
	t.tooltip = tooltip
	t.items = append([]lifecycle.MenuItem(nil), items...)
	t.mu.Unlock()
	t.logger.Info("tray: menu built", slog.String("tooltip", tooltip), slog.Int("items", len(items)))
	t.emit.Emit(EventTray, t.Menu())
	return nil
}

// Menu returns the built menu; it is empty before Build.
func (t *Tray) Menu() TrayMenu {
	t.mu.Lock()
	defer t.mu.Unlock()
	items := t.items
	if items == nil {
		items = []lifecycle.MenuItem{}
	}
	return TrayMenu{Tooltip: t.tooltip, Items: items}
}

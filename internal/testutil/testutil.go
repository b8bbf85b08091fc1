// Package testutil provides shared test helpers for setting up vaults, the
// recent-vault registry and a wired command service.
package testutil

import (
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"

	"github.com/starford/mdnotebook/internal/commands"
	"github.com/starford/mdnotebook/internal/dialog"
	"github.com/starford/mdnotebook/internal/recent"
	"github.com/starford/mdnotebook/internal/storage"
	"github.com/starford/mdnotebook/internal/window"
)

// TestDB creates a temporary registry database that is closed on cleanup.
func TestDB(t *testing.T) *recent.DB {
	t.Helper()
	db, err := recent.Open(filepath.Join(t.TempDir(), "mdnotebook-test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// Logger discards everything.
func Logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// Event is one recorded emission.
type Event struct {
	Name    string
	Payload any
}

// Recorder is an Emitter that keeps every event.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Emit(event string, payload any) {
	r.mu.Lock()
	r.events = append(r.events, Event{Name: event, Payload: payload})
	r.mu.Unlock()
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Names returns the recorded event names in order.
func (r *Recorder) Names() []string {
	var names []string
	for _, e := range r.Events() {
		names = append(names, e.Name)
	}
	return names
}

// Env is a command service wired to in-memory collaborators.
type Env struct {
	Service  *commands.Service
	Window   *window.Handle
	Events   *Recorder
	DB       *recent.DB
	Dialogs  *dialog.Static
	VaultDir string
}

// TestEnv builds a service over a fresh vault folder. The static dialogs pick
// the vault folder and save into it as "saved.md".
func TestEnv(t *testing.T) *Env {
	t.Helper()
	vaultDir := t.TempDir()
	rec := &Recorder{}
	win := window.NewHandle(rec)
	db := TestDB(t)
	dlg := &dialog.Static{Folder: vaultDir, SavePath: filepath.Join(vaultDir, "saved.md")}
	svc := commands.NewService(storage.New(), win, dlg, db, nil, Logger())
	return &Env{Service: svc, Window: win, Events: rec, DB: db, Dialogs: dlg, VaultDir: vaultDir}
}

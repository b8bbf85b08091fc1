// Package watch reports changes to a vault's vault.json made by other
// writers, such as a sync client or a second device.
package watch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/mdnotebook/internal/storage"
)

// EventChanged is emitted to the UI layer with {"folder": ...} when
// vault.json changes on disk from another writer.
const EventChanged = "vault-changed"

const defaultDebounce = 150 * time.Millisecond

// ChangeFunc is called with the vault folder whose vault.json changed.
type ChangeFunc func(folder string)

// Watcher follows one vault folder at a time.
type Watcher struct {
	logger   *slog.Logger
	onChange ChangeFunc
	debounce time.Duration

	mu       sync.Mutex
	folder   string
	expected map[string]string // folder -> checksum of the last known content
	followCh chan struct{}
}

// New returns a watcher that is not following any folder yet.
func New(logger *slog.Logger, onChange ChangeFunc) *Watcher {
	return &Watcher{
		logger:   logger,
		onChange: onChange,
		debounce: defaultDebounce,
		expected: make(map[string]string),
		followCh: make(chan struct{}, 1),
	}
}

// Follow switches the watched folder. An empty folder stops watching.
func (w *Watcher) Follow(folder string) {
	w.mu.Lock()
	w.folder = folder
	w.mu.Unlock()
	select {
	case w.followCh <- struct{}{}:
	default:
	}
}

// Expect records content this process is about to write to folder's
// vault.json so the resulting event is not reported as external.
func (w *Watcher) Expect(folder string, data []byte) {
	w.mu.Lock()
	w.expected[folder] = sum(data)
	w.mu.Unlock()
}

// Run watches until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()

	current := ""
	var debounceTimer *time.Timer
	var debounceCh <-chan time.Time

	schedule := func() {
		if debounceTimer == nil {
			debounceTimer = time.NewTimer(w.debounce)
			debounceCh = debounceTimer.C
		} else {
			debounceTimer.Reset(w.debounce)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			return nil

		case <-w.followCh:
			next := w.currentFolder()
			if next == current {
				continue
			}
			if current != "" {
				_ = fw.Remove(current)
			}
			current = ""
			if next == "" {
				continue
			}
			if addErr := fw.Add(next); addErr != nil {
				w.logger.Warn("watch: add folder failed", slog.String("folder", next), slog.String("error", addErr.Error()))
				continue
			}
			current = next
			w.seed(current)
			w.logger.Info("watch: following vault", slog.String("folder", current))

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Base(ev.Name) != storage.VaultFileName {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write) != 0 {
				schedule()
			}

		case <-debounceCh:
			if current != "" {
				w.check(current)
			}

		case watchErr, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("watch: error", slog.String("error", watchErr.Error()))
		}
	}
}

func (w *Watcher) currentFolder() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.folder
}

// seed records the on-disk content when a folder is first followed, unless
// a write is already expected.
func (w *Watcher) seed(folder string) {
	data, err := os.ReadFile(storage.VaultPath(folder))
	if err != nil {
		return
	}
	w.mu.Lock()
	if _, ok := w.expected[folder]; !ok {
		w.expected[folder] = sum(data)
	}
	w.mu.Unlock()
}

func (w *Watcher) check(folder string) {
	data, err := os.ReadFile(storage.VaultPath(folder))
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			w.logger.Warn("watch: read vault failed", slog.String("folder", folder), slog.String("error", err.Error()))
		}
		return
	}
	cs := sum(data)

	w.mu.Lock()
	known := w.expected[folder] == cs
	w.expected[folder] = cs
	w.mu.Unlock()

	if known {
		return
	}
	w.logger.Debug("watch: external change", slog.String("folder", folder))
	if w.onChange != nil {
		w.onChange(folder)
	}
}

func sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

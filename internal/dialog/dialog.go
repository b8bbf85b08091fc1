// Package dialog shows the native folder-pick and save-file dialogs.
package dialog

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// Backends.
const (
	BackendZenity = "zenity"
	BackendNone   = "none"
)

// Filter restricts a save dialog to a set of extensions.
type Filter struct {
	Name       string
	Extensions []string
}

// Dialogs opens blocking file dialogs. ok is false when the user cancels.
type Dialogs interface {
	PickFolder(ctx context.Context) (path string, ok bool, err error)
	SaveFile(ctx context.Context, defaultName string, filter Filter) (path string, ok bool, err error)
}

// New returns the dialogs for backend.
func New(backend string) (Dialogs, error) {
	switch backend {
	case BackendZenity, "":
		return NewZenity(), nil
	case BackendNone:
		return Static{}, nil
	default:
		return nil, fmt.Errorf("dialog: unknown backend %q", backend)
	}
}

// runFunc runs a command and returns its stdout.
type runFunc func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRun(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

// Zenity drives the zenity(1) file chooser.
type Zenity struct {
	run runFunc
}

// NewZenity returns dialogs backed by the zenity binary on PATH.
func NewZenity() *Zenity {
	return &Zenity{run: execRun}
}

func (z *Zenity) PickFolder(ctx context.Context) (string, bool, error) {
	return z.choose(ctx, "--file-selection", "--directory", "--title=Choose vault folder")
}

func (z *Zenity) SaveFile(ctx context.Context, defaultName string, filter Filter) (string, bool, error) {
	args := []string{"--file-selection", "--save", "--confirm-overwrite", "--filename=" + defaultName}
	if len(filter.Extensions) > 0 {
		patterns := make([]string, len(filter.Extensions))
		for i, ext := range filter.Extensions {
			patterns[i] = "*." + strings.TrimPrefix(ext, ".")
		}
		args = append(args, fmt.Sprintf("--file-filter=%s | %s", filter.Name, strings.Join(patterns, " ")))
	}
	return z.choose(ctx, args...)
}

// choose runs zenity; exit status 1 means the dialog was dismissed.
func (z *Zenity) choose(ctx context.Context, args ...string) (string, bool, error) {
	out, err := z.run(ctx, "zenity", args...)
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && exitErr.ExitCode() == 1 {
			return "", false, nil
		}
		return "", false, fmt.Errorf("dialog: zenity: %w", err)
	}
	path := strings.TrimRight(string(out), "\r\n")
	if path == "" {
		return "", false, nil
	}
	return path, true, nil
}

// Static answers every dialog with fixed results. With zero values every
// dialog is cancelled, which suits headless runs.
type Static struct {
	Folder   string
	SavePath string
}

func (s Static) PickFolder(context.Context) (string, bool, error) {
	return s.Folder, s.Folder != "", nil
}

func (s Static) SaveFile(context.Context, string, Filter) (string, bool, error) {
	return s.SavePath, s.SavePath != "", nil
}

// Package commands implements the request/response operations the UI layer
// calls. Each call blocks until its filesystem work is done.
package commands

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/starford/mdnotebook/internal/apperr"
	"github.com/starford/mdnotebook/internal/dialog"
	"github.com/starford/mdnotebook/internal/export"
	"github.com/starford/mdnotebook/internal/recent"
	"github.com/starford/mdnotebook/internal/storage"
)

// Theme applies the window theme.
type Theme interface {
	SetTheme(dark bool) error
}

// Registry persists the stored vault path and the recent-vault list.
type Registry interface {
	Stored() (string, bool, error)
	SetStored(folder string) error
	ClearStored() error
	List(limit int) ([]recent.Vault, error)
	Touch(folder string) error
	Forget(folder string) error
}

// Watcher is told which vault to follow and which writes are our own.
type Watcher interface {
	Follow(folder string)
	Expect(folder string, data []byte)
}

// SaveRequest is the input of SaveFile.
type SaveRequest struct {
	DefaultName      string
	Content          string
	FilterName       string
	FilterExtensions []string
}

// Service coordinates the stores with the window, dialogs and registry.
type Service struct {
	store    *storage.Store
	theme    Theme
	dialogs  dialog.Dialogs
	registry Registry
	watcher  Watcher
	logger   *slog.Logger
}

// NewService creates a new command service. watcher may be nil.
func NewService(store *storage.Store, theme Theme, dialogs dialog.Dialogs, registry Registry, watcher Watcher, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:    store,
		theme:    theme,
		dialogs:  dialogs,
		registry: registry,
		watcher:  watcher,
		logger:   logger,
	}
}

// SetWindowTheme switches the window between dark and light.
func (s *Service) SetWindowTheme(_ context.Context, dark bool) error {
	return s.theme.SetTheme(dark)
}

// PickVaultFolder asks the user for a vault folder and records it as the
// stored vault. Dismissing the dialog returns apperr.ErrCancelled.
func (s *Service) PickVaultFolder(ctx context.Context) (string, error) {
	folder, ok, err := s.dialogs.PickFolder(ctx)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", apperr.ErrCancelled
	}
	if err := s.SetStoredVault(ctx, folder); err != nil {
		s.logger.Warn("commands: record picked vault failed", slog.String("folder", folder), slog.String("error", err.Error()))
	}
	return folder, nil
}

// ReadVaultFile returns vault.json, or ok=false when the vault is new.
// Reading an existing vault moves it to the top of the recent list.
func (s *Service) ReadVaultFile(_ context.Context, folder string) (string, bool, error) {
	data, ok, err := s.store.ReadVault(folder)
	if err != nil || !ok {
		return data, ok, err
	}
	if err := s.registry.Touch(folder); err != nil {
		s.logger.Warn("commands: record opened vault failed", slog.String("folder", folder), slog.String("error", err.Error()))
	}
	return data, true, nil
}

// WriteVaultFile replaces vault.json.
func (s *Service) WriteVaultFile(_ context.Context, folder, data string) error {
	if s.watcher != nil {
		s.watcher.Expect(folder, []byte(data))
	}
	return s.store.WriteVault(folder, data)
}

// VaultFileExists reports whether the folder already holds a vault.
func (s *Service) VaultFileExists(_ context.Context, folder string) (bool, error) {
	return s.store.VaultExists(folder)
}

// ReadMarkdownFile reads a .md, .markdown or .txt file.
func (s *Service) ReadMarkdownFile(_ context.Context, path string) (string, error) {
	return s.store.ReadMarkdown(path)
}

// WriteVaultAsset stores an encrypted asset.
func (s *Service) WriteVaultAsset(_ context.Context, folder, id, data string) error {
	return s.store.WriteAsset(folder, id, data)
}

// ReadVaultAsset returns an encrypted asset.
func (s *Service) ReadVaultAsset(_ context.Context, folder, id string) (string, error) {
	return s.store.ReadAsset(folder, id)
}

// DeleteVaultAsset removes an asset. Missing assets are not an error.
func (s *Service) DeleteVaultAsset(_ context.Context, folder, id string) error {
	return s.store.DeleteAsset(folder, id)
}

// ListVaultAssets returns the asset ids present in the vault.
func (s *Service) ListVaultAssets(_ context.Context, folder string) ([]string, error) {
	return s.store.ListAssets(folder)
}

// SaveFile asks where to save content and writes it there. saved is false
// when the user cancels.
func (s *Service) SaveFile(ctx context.Context, req SaveRequest) (bool, error) {
	path, ok, err := s.dialogs.SaveFile(ctx, req.DefaultName, dialog.Filter{
		Name:       req.FilterName,
		Extensions: req.FilterExtensions,
	})
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}
	if err := storage.WriteFileAtomic(path, []byte(req.Content)); err != nil {
		return false, fmt.Errorf("commands: save file: %w", err)
	}
	return true, nil
}

// ExportNotesToFolder writes notes as markdown files into folder.
func (s *Service) ExportNotesToFolder(_ context.Context, folder string, notes []export.Note) error {
	return export.ToFolder(folder, notes)
}

// GetStoredVault returns the vault opened last, if any.
func (s *Service) GetStoredVault(_ context.Context) (string, bool, error) {
	return s.registry.Stored()
}

// SetStoredVault remembers folder as the vault to reopen and follows it for
// external changes.
func (s *Service) SetStoredVault(_ context.Context, folder string) error {
	if folder == "" {
		return fmt.Errorf("commands: folder is required: %w", apperr.ErrValidation)
	}
	if err := s.registry.SetStored(folder); err != nil {
		return err
	}
	if s.watcher != nil {
		s.watcher.Follow(folder)
	}
	return nil
}

// ClearStoredVault forgets the stored vault and stops following it.
func (s *Service) ClearStoredVault(_ context.Context) error {
	if err := s.registry.ClearStored(); err != nil {
		return err
	}
	if s.watcher != nil {
		s.watcher.Follow("")
	}
	return nil
}

// ListRecentVaults returns recently opened vaults, newest first.
func (s *Service) ListRecentVaults(_ context.Context, limit int) ([]recent.Vault, error) {
	if limit <= 0 {
		limit = recent.DefaultLimit
	}
	return s.registry.List(limit)
}

// ForgetRecentVault drops folder from the recent list. When it is the stored
// vault, that is cleared too and no longer followed.
func (s *Service) ForgetRecentVault(_ context.Context, folder string) error {
	if folder == "" {
		return fmt.Errorf("commands: folder is required: %w", apperr.ErrValidation)
	}
	stored, ok, err := s.registry.Stored()
	if err != nil {
		return err
	}
	if err := s.registry.Forget(folder); err != nil {
		return err
	}
	if ok && stored == folder && s.watcher != nil {
		s.watcher.Follow("")
	}
	return nil
}

// FollowStored starts following the stored vault, if there is one.
func (s *Service) FollowStored() {
	if s.watcher == nil {
		return
	}
	folder, ok, err := s.registry.Stored()
	if err != nil {
		s.logger.Warn("commands: load stored vault failed", slog.String("error", err.Error()))
		return
	}
	if ok {
		s.watcher.Follow(folder)
	}
}

package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"unicode/utf8"
)

// Layout names inside a vault folder.
const (
	VaultFileName = "vault.json"
	AssetsDirName = "vault-assets"
	AssetExt      = ".enc"
)

// Store reads and writes vault folders. Folders are supplied per call; the
// store holds no state of its own.
type Store struct{}

// New returns a Store.
func New() *Store {
	return &Store{}
}

// VaultPath returns the path of vault.json under folder.
func VaultPath(folder string) string {
	return filepath.Join(folder, VaultFileName)
}

// ReadVault returns the content of vault.json. ok is false when the file
// does not exist.
func (s *Store) ReadVault(folder string) (data string, ok bool, err error) {
	raw, err := os.ReadFile(VaultPath(folder))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("storage: failed to read vault.json: %w", err)
	}
	if !utf8.Valid(raw) {
		return "", false, fmt.Errorf("storage: failed to read vault.json: %w", errInvalidUTF8)
	}
	return string(raw), true, nil
}

// WriteVault atomically replaces vault.json under folder.
func (s *Store) WriteVault(folder, data string) error {
	if err := WriteFileAtomic(VaultPath(folder), []byte(data)); err != nil {
		return fmt.Errorf("storage: write vault.json: %w", err)
	}
	return nil
}

// VaultExists reports whether vault.json exists under folder.
func (s *Store) VaultExists(folder string) (bool, error) {
	_, err := os.Stat(VaultPath(folder))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, os.ErrNotExist):
		return false, nil
	default:
		return false, fmt.Errorf("storage: stat vault.json: %w", err)
	}
}

var errInvalidUTF8 = errors.New("stream did not contain valid UTF-8")

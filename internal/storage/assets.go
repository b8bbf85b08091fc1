package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/starford/mdnotebook/internal/apperr"
	"github.com/starford/mdnotebook/internal/validate"
)

// AssetsDir returns the vault-assets directory under folder.
func AssetsDir(folder string) string {
	return filepath.Join(folder, AssetsDirName)
}

func assetPath(folder, id string) string {
	return filepath.Join(AssetsDir(folder), id+AssetExt)
}

// WriteAsset stores an encrypted blob as vault-assets/<id>.enc, creating the
// directory if needed.
func (s *Store) WriteAsset(folder, id, data string) error {
	if err := validate.AssetID(id); err != nil {
		return err
	}
	if err := os.MkdirAll(AssetsDir(folder), 0o755); err != nil {
		return fmt.Errorf("storage: failed to create vault-assets directory: %w", err)
	}
	if err := WriteFileAtomic(assetPath(folder, id), []byte(data)); err != nil {
		return fmt.Errorf("storage: write asset %s: %w", id, err)
	}
	return nil
}

// ReadAsset returns the stored blob for id.
func (s *Store) ReadAsset(folder, id string) (string, error) {
	if err := validate.AssetID(id); err != nil {
		return "", err
	}
	raw, err := os.ReadFile(assetPath(folder, id))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("storage: read asset %s: %w", id, apperr.ErrNotFound)
		}
		return "", fmt.Errorf("storage: read asset %s: %w", id, err)
	}
	if !utf8.Valid(raw) {
		return "", fmt.Errorf("storage: read asset %s: %w", id, errInvalidUTF8)
	}
	return string(raw), nil
}

// DeleteAsset removes the blob for id. Deleting a missing asset succeeds.
func (s *Store) DeleteAsset(folder, id string) error {
	if err := validate.AssetID(id); err != nil {
		return err
	}
	err := os.Remove(assetPath(folder, id))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("storage: delete asset %s: %w", id, err)
	}
	return nil
}

// ListAssets returns the ids of every *.enc entry in vault-assets, sorted.
// A missing directory yields an empty list. Any unreadable entry fails the
// whole listing.
func (s *Store) ListAssets(folder string) ([]string, error) {
	entries, err := os.ReadDir(AssetsDir(folder))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("storage: failed to read vault-assets: %w", err)
	}
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if filepath.Ext(name) != AssetExt {
			continue
		}
		stem := strings.TrimSuffix(name, AssetExt)
		if stem == "" {
			continue
		}
		ids = append(ids, stem)
	}
	sort.Strings(ids)
	return ids, nil
}

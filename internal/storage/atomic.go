// Package storage persists vault state: the vault.json document and the
// per-id encrypted asset blobs under vault-assets/.
package storage

import (
	"fmt"
	"os"
)

// TempSuffix is appended to a target path to form its sibling temp file.
// Keeping the temp file next to the target keeps the rename on one filesystem.
const TempSuffix = ".tmp"

// rename is swapped in tests to simulate a failure between write and rename.
var rename = os.Rename

// WriteFileAtomic writes data to path via tmp file → fsync → rename.
// On any failure the temp file is removed and path keeps its previous
// content (or stays absent). Concurrent writers to the same path are not
// coordinated.
func WriteFileAtomic(path string, data []byte) error {
	tmpName := path + TempSuffix
	tmp, err := os.OpenFile(tmpName, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("storage: create temp: %w", err)
	}

	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("storage: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("storage: fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("storage: close temp: %w", err)
	}
	if err := rename(tmpName, path); err != nil {
		return fmt.Errorf("storage: rename temp: %w", err)
	}
	success = true
	return nil
}

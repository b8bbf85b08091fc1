package storage

import (
	"errors"
	"fmt"
	"os"
	"unicode/utf8"

	"github.com/starford/mdnotebook/internal/apperr"
	"github.com/starford/mdnotebook/internal/validate"
)

// ReadMarkdown returns the text of a markdown file opened from outside any
// vault. The extension is checked before the filesystem is touched.
func (s *Store) ReadMarkdown(path string) (string, error) {
	resolved, err := validate.MarkdownPath(path)
	if err != nil {
		return "", err
	}
	raw, err := os.ReadFile(resolved)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("storage: read %s: %w", path, apperr.ErrNotFound)
		}
		return "", fmt.Errorf("storage: read %s: %w", path, err)
	}
	if !utf8.Valid(raw) {
		return "", fmt.Errorf("storage: read %s: %w", path, errInvalidUTF8)
	}
	return string(raw), nil
}

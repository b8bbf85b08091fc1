// Package validate guards identifiers and paths coming from the UI layer
// before they reach the filesystem.
package validate

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/mdnotebook/internal/apperr"
)

// MaxAssetIDLen is the longest accepted asset id.
const MaxAssetIDLen = 64

var assetIDRe = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// MarkdownExtensions lists the extensions read_markdown_file accepts.
var MarkdownExtensions = []any{"md", "markdown", "txt"}

// AssetID rejects ids that are empty, longer than MaxAssetIDLen or contain
// anything outside [A-Za-z0-9_-].
func AssetID(id string) error {
	// Byte length matters here: the charset check below allows ASCII only.
	if len(id) > MaxAssetIDLen {
		return fmt.Errorf("%w: invalid asset ID length", apperr.ErrValidation)
	}
	err := validation.Validate(id,
		validation.Required.Error("invalid asset ID length"),
		validation.Match(assetIDRe).Error("invalid asset ID characters"),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", apperr.ErrValidation, err)
	}
	return nil
}

// MarkdownPath checks the extension of path against MarkdownExtensions and
// only then resolves it (symlinks, relative segments) to an absolute path
// that must name an existing regular file.
func MarkdownPath(path string) (string, error) {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	err := validation.Validate(ext,
		validation.Required,
		validation.In(MarkdownExtensions...),
	)
	if err != nil {
		return "", fmt.Errorf("%w: only .md, .markdown, and .txt files can be opened", apperr.ErrValidation)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("%w: file not found: %s", apperr.ErrNotFound, path)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", fmt.Errorf("%w: file not found: %s", apperr.ErrNotFound, path)
	}
	info, err := os.Stat(resolved)
	if err != nil {
		return "", fmt.Errorf("%w: file not found: %s", apperr.ErrNotFound, path)
	}
	if !info.Mode().IsRegular() {
		return "", fmt.Errorf("%w: not a file: %s", apperr.ErrValidation, path)
	}
	return resolved, nil
}

// Directory fails unless path names an existing directory.
func Directory(path string) error {
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return fmt.Errorf("%w: not a valid directory", apperr.ErrValidation)
	}
	return nil
}

// LaunchFile returns the markdown file named by the first positional launch
// argument, if any. File-association launches pass exactly that.
func LaunchFile(args []string) (string, bool) {
	if len(args) == 0 {
		return "", false
	}
	p := args[0]
	if strings.HasSuffix(p, ".md") || strings.HasSuffix(p, ".markdown") {
		return p, true
	}
	return "", false
}

// AbsLaunchArgs returns a copy of args whose first element, when relative,
// is joined onto cwd. Both the first launch and forwarded launches go
// through it so the tray and the UI always see absolute paths.
func AbsLaunchArgs(args []string, cwd string) []string {
	out := append([]string(nil), args...)
	if len(out) > 0 && out[0] != "" && cwd != "" && !filepath.IsAbs(out[0]) {
		out[0] = filepath.Join(cwd, out[0])
	}
	return out
}

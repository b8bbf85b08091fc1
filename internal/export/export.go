// Package export writes a batch of notes into a folder as individual
// Markdown files without overwriting anything already there.
package export

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"github.com/starford/mdnotebook/internal/storage"
	"github.com/starford/mdnotebook/internal/validate"
)

// UntitledName replaces names that sanitize to nothing.
const UntitledName = "Untitled"

// Note is one document in an export batch.
type Note struct {
	Name    string `json:"name"`
	Content string `json:"content"`
}

// ToFolder writes each note as <folder>/<name>.md in input order.
// Names are sanitized and de-duplicated case-insensitively against the
// folder's existing .md files and earlier notes in the batch. The batch is
// not transactional: on failure, files already written stay on disk.
func ToFolder(folder string, notes []Note) error {
	if err := validate.Directory(folder); err != nil {
		return err
	}

	used, err := existingStems(folder)
	if err != nil {
		return err
	}

	for _, n := range notes {
		base := SanitizeName(n.Name)
		name := base
		for suffix := 2; used[strings.ToLower(name)]; suffix++ {
			name = fmt.Sprintf("%s (%d)", base, suffix)
		}
		used[strings.ToLower(name)] = true

		if err := storage.WriteFileAtomic(filepath.Join(folder, name+".md"), []byte(n.Content)); err != nil {
			return fmt.Errorf("export: failed to write %s: %w", name, err)
		}
	}
	return nil
}

// SanitizeName keeps alphanumerics, spaces, '-' and '_', trims the result
// and falls back to UntitledName when nothing is left. Names are composed to
// NFC first so decomposed accents survive.
func SanitizeName(name string) string {
	var b strings.Builder
	for _, r := range norm.NFC.String(name) {
		if isAlphanumeric(r) || r == ' ' || r == '-' || r == '_' {
			b.WriteRune(r)
		}
	}
	safe := strings.TrimSpace(b.String())
	if safe == "" {
		return UntitledName
	}
	return safe
}

// isAlphanumeric reports whether r has the Unicode Alphabetic or Numeric
// property. Alphabetic includes the combining vowel signs of Indic scripts
// (Other_Alphabetic), which IsLetter alone drops.
func isAlphanumeric(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsNumber(r) || unicode.Is(unicode.Other_Alphabetic, r)
}

// existingStems collects the lowercased stems of *.md entries in folder.
func existingStems(folder string) (map[string]bool, error) {
	entries, err := os.ReadDir(folder)
	if err != nil {
		return nil, fmt.Errorf("export: failed to read export directory: %w", err)
	}
	used := make(map[string]bool, len(entries))
	for _, e := range entries {
		stem, ext := splitExt(e.Name())
		if strings.EqualFold(ext, "md") {
			used[strings.ToLower(norm.NFC.String(stem))] = true
		}
	}
	return used, nil
}

// splitExt splits at the last dot. A leading dot alone does not start an
// extension, so ".md" is a stem with none.
func splitExt(name string) (stem, ext string) {
	i := strings.LastIndexByte(name, '.')
	if i <= 0 {
		return name, ""
	}
	return name[:i], name[i+1:]
}

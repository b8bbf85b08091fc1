package export

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strings"
	"testing"

	"github.com/starford/mdnotebook/internal/apperr"
)

func listNames(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names
}

func TestToFolder_DuplicateNamesInBatch(t *testing.T) {
	dir := t.TempDir()
	notes := []Note{
		{Name: "Todo", Content: "one"},
		{Name: "Todo", Content: "two"},
		{Name: "Todo", Content: "three"},
	}
	if err := ToFolder(dir, notes); err != nil {
		t.Fatalf("ToFolder: %v", err)
	}
	want := []string{"Todo (2).md", "Todo (3).md", "Todo.md"}
	if got := listNames(t, dir); !reflect.DeepEqual(got, want) {
		t.Errorf("files = %v, want %v", got, want)
	}
	got, _ := os.ReadFile(filepath.Join(dir, "Todo (3).md"))
	if string(got) != "three" {
		t.Errorf("Todo (3).md = %q, want three", got)
	}
}

func TestToFolder_BlankNameBecomesUntitled(t *testing.T) {
	dir := t.TempDir()
	if err := ToFolder(dir, []Note{{Name: "  ", Content: "x"}, {Name: "???", Content: "y"}}); err != nil {
		t.Fatalf("ToFolder: %v", err)
	}
	want := []string{"Untitled (2).md", "Untitled.md"}
	if got := listNames(t, dir); !reflect.DeepEqual(got, want) {
		t.Errorf("files = %v, want %v", got, want)
	}
}

func TestToFolder_SecondRunAvoidsExisting(t *testing.T) {
	dir := t.TempDir()
	if err := ToFolder(dir, []Note{{Name: "Todo", Content: "first"}}); err != nil {
		t.Fatal(err)
	}
	if err := ToFolder(dir, []Note{{Name: "todo", Content: "second"}}); err != nil {
		t.Fatal(err)
	}
	got, _ := os.ReadFile(filepath.Join(dir, "Todo.md"))
	if string(got) != "first" {
		t.Errorf("existing file overwritten: %q", got)
	}
	if _, err := os.Stat(filepath.Join(dir, "todo (2).md")); err != nil {
		t.Errorf("expected todo (2).md: %v", err)
	}
}

func TestToFolder_ExistingUppercaseExtension(t *testing.T) {
	dir := t.TempDir()
	_ = os.WriteFile(filepath.Join(dir, "Plan.MD"), []byte("old"), 0o644)
	_ = os.WriteFile(filepath.Join(dir, "Other.txt"), []byte("old"), 0o644)
	if err := ToFolder(dir, []Note{{Name: "plan"}, {Name: "Other"}}); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(dir, "plan (2).md")); err != nil {
		t.Errorf("expected plan (2).md: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "Other.md")); err != nil {
		t.Errorf("a .txt file must not reserve a stem: %v", err)
	}
}

func TestToFolder_NotADirectory(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file")
	_ = os.WriteFile(f, []byte("x"), 0o644)
	err := ToFolder(f, []Note{{Name: "a"}})
	if !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("err = %v, want validation error", err)
	}
}

func TestToFolder_FailureMidBatchKeepsEarlierFiles(t *testing.T) {
	dir := t.TempDir()
	// A directory where B's temp file goes makes B's write fail.
	if err := os.Mkdir(filepath.Join(dir, "B.md.tmp"), 0o755); err != nil {
		t.Fatal(err)
	}
	notes := []Note{
		{Name: "A", Content: "a"},
		{Name: "B", Content: "b"},
		{Name: "C", Content: "c"},
	}
	err := ToFolder(dir, notes)
	if err == nil {
		t.Fatal("expected an error")
	}
	if !strings.Contains(err.Error(), "failed to write B") {
		t.Errorf("error = %v, want it to name B", err)
	}
	if got, _ := os.ReadFile(filepath.Join(dir, "A.md")); string(got) != "a" {
		t.Errorf("A.md = %q, want it kept", got)
	}
	for _, name := range []string{"B.md", "C.md"} {
		if _, err := os.Stat(filepath.Join(dir, name)); !os.IsNotExist(err) {
			t.Errorf("%s exists after failure: %v", name, err)
		}
	}
}

func TestToFolder_DecomposedExistingNameCollides(t *testing.T) {
	dir := t.TempDir()
	// macOS style decomposed name already on disk.
	if err := os.WriteFile(filepath.Join(dir, "Cafe\u0301.md"), []byte("old"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := ToFolder(dir, []Note{{Name: "Caf\u00e9", Content: "new"}}); err != nil {
		t.Fatal(err)
	}
	got, err := os.ReadFile(filepath.Join(dir, "Caf\u00e9 (2).md"))
	if err != nil || string(got) != "new" {
		t.Errorf("Caf\u00e9 (2).md = %q, %v", got, err)
	}
	old, _ := os.ReadFile(filepath.Join(dir, "Cafe\u0301.md"))
	if string(old) != "old" {
		t.Errorf("existing file overwritten: %q", old)
	}
}

func TestSanitizeName(t *testing.T) {
	cases := map[string]string{
		"Hello World":       "Hello World",
		"../../etc/passwd":  "etcpasswd",
		"  Trim me  ":       "Trim me",
		"a:b*c?d":           "abcd",
		"Заметка":           "Заметка",
		"under_score-dash":  "under_score-dash",
		"":                  UntitledName,
		"\t\n":              UntitledName,
		"Cafe\u0301":        "Caf\u00e9",
		"हिंदी":              "हिंदी",
		"नमस्ते दुनिया":      "नमस्ते दुनिया",
		"Ⅻ chapter":          "Ⅻ chapter",
		"emoji 🙂 note":       "emoji  note",
	}
	for in, want := range cases {
		if got := SanitizeName(in); got != want {
			t.Errorf("SanitizeName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSplitExt(t *testing.T) {
	cases := []struct{ in, stem, ext string }{
		{"a.md", "a", "md"},
		{"a.b.md", "a.b", "md"},
		{".md", ".md", ""},
		{"noext", "noext", ""},
	}
	for _, c := range cases {
		stem, ext := splitExt(c.in)
		if stem != c.stem || ext != c.ext {
			t.Errorf("splitExt(%q) = %q, %q", c.in, stem, ext)
		}
	}
}

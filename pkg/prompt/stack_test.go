package prompt_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/quill/pkg/model"
	"github.com/m-mizutani/quill/pkg/prompt"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	gt.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	gt.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func setupStacks(t *testing.T) string {
	t.Helper()
	base := t.TempDir()
	writeFile(t, filepath.Join(base, "writer", "02_poet.txt"), "You write poems.\n")
	writeFile(t, filepath.Join(base, "writer", "01_editor.txt"), "  You edit text.  \n")
	writeFile(t, filepath.Join(base, "writer", "notes.md"), "ignored")
	gt.NoError(t, os.MkdirAll(filepath.Join(base, "empty"), 0o755))
	writeFile(t, filepath.Join(base, "README"), "not a stack")
	return base
}

func TestListStacks(t *testing.T) {
	base := setupStacks(t)

	names, err := prompt.ListStacks(base)
	gt.NoError(t, err)
	gt.Equal(t, names, []string{"empty", "writer"})

	names, err = prompt.ListStacks(filepath.Join(base, "missing"))
	gt.NoError(t, err)
	gt.A(t, names).Length(0)
}

func TestLoadStack(t *testing.T) {
	base := setupStacks(t)

	stack, err := prompt.LoadStack(base, "writer")
	gt.NoError(t, err)
	gt.A(t, stack.Prompts).Length(2)

	p, ok := stack.Default()
	gt.True(t, ok)
	gt.Equal(t, p.Name, "01_editor")
	gt.Equal(t, p.Text, "You edit text.")

	_, err = prompt.LoadStack(base, "missing")
	gt.True(t, errors.Is(err, model.ErrNotFound))

	_, err = prompt.LoadStack(base, "../writer")
	gt.Error(t, err)
}

func TestSelect(t *testing.T) {
	base := setupStacks(t)

	p, err := prompt.Select(base, "writer")
	gt.NoError(t, err)
	gt.Equal(t, p.Name, "01_editor")

	p, err = prompt.Select(base, "writer/02_poet")
	gt.NoError(t, err)
	gt.Equal(t, p.Text, "You write poems.")

	_, err = prompt.Select(base, "writer/03_none")
	gt.True(t, errors.Is(err, model.ErrNotFound))

	_, err = prompt.Select(base, "empty")
	gt.True(t, errors.Is(err, model.ErrNotFound))
}

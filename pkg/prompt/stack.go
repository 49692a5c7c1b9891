// Package prompt loads system prompt stacks. A stack is a directory of
// *.txt files; prompts are ordered by file name and the first one is the
// default.
package prompt

import (
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/quill/pkg/model"
)

type Prompt struct {
	Name string // file name without extension
	Text string
}

type Stack struct {
	Name    string
	Prompts []*Prompt
}

// ListStacks returns the stack names under baseDir. A missing baseDir has no stacks.
func ListStacks(baseDir string) ([]string, error) {
	entries, err := os.ReadDir(baseDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, goerr.Wrap(err, "failed to read prompt stack directory", goerr.V("dir", baseDir))
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// LoadStack reads every *.txt prompt of a stack
func LoadStack(baseDir, name string) (*Stack, error) {
	if name == "" || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return nil, goerr.New("invalid prompt stack name", goerr.V("name", name))
	}

	dir := filepath.Join(baseDir, name)
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return nil, goerr.Wrap(model.ErrNotFound, "prompt stack does not exist", goerr.V("stack", name), goerr.V("dir", baseDir))
	}

	files, err := filepath.Glob(filepath.Join(dir, "*.txt"))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list prompts", goerr.V("stack", name))
	}
	sort.Strings(files)

	stack := &Stack{Name: name}
	for _, file := range files {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to read prompt", goerr.V("path", file))
		}
		stack.Prompts = append(stack.Prompts, &Prompt{
			Name: strings.TrimSuffix(filepath.Base(file), ".txt"),
			Text: strings.TrimSpace(string(data)),
		})
	}

	return stack, nil
}

// Default returns the first prompt of the stack
func (s *Stack) Default() (*Prompt, bool) {
	if len(s.Prompts) == 0 {
		return nil, false
	}
	return s.Prompts[0], true
}

// Find returns the prompt with the given name
func (s *Stack) Find(name string) (*Prompt, bool) {
	for _, p := range s.Prompts {
		if p.Name == name {
			return p, true
		}
	}
	return nil, false
}

// Select resolves "stack" or "stack/prompt" to a prompt. Without a prompt
// name the stack default is used.
func Select(baseDir, ref string) (*Prompt, error) {
	stackName, promptName, _ := strings.Cut(ref, "/")
	stack, err := LoadStack(baseDir, stackName)
	if err != nil {
		return nil, err
	}

	if promptName == "" {
		p, ok := stack.Default()
		if !ok {
			return nil, goerr.Wrap(model.ErrNotFound, "prompt stack is empty", goerr.V("stack", stackName))
		}
		return p, nil
	}

	p, ok := stack.Find(promptName)
	if !ok {
		return nil, goerr.Wrap(model.ErrNotFound, "prompt does not exist", goerr.V("stack", stackName), goerr.V("prompt", promptName))
	}
	return p, nil
}

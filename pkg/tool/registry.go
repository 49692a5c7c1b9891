package tool

import (
	"context"
	"sort"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/quill/pkg/model"
	"google.golang.org/genai"
)

// Registry manages available tools for the LLM
type Registry struct {
	tools    map[string]Tool
	allTools []Tool
	specs    []*genai.Tool
}

// New creates a new tool registry with the given tools. Nil tools and
// tools without declarations are skipped; a later tool declaring an
// already registered name replaces the earlier one.
func New(tools ...Tool) *Registry {
	r := &Registry{
		tools: make(map[string]Tool),
	}

	for _, t := range tools {
		if t == nil {
			continue
		}
		spec := t.Spec()
		if spec == nil || len(spec.FunctionDeclarations) == 0 {
			continue
		}

		r.allTools = append(r.allTools, t)
		r.specs = append(r.specs, spec)
		for _, fd := range spec.FunctionDeclarations {
			r.tools[fd.Name] = t
		}
	}

	return r
}

// Specs returns all tool specifications in registration order
func (r *Registry) Specs() []*genai.Tool {
	return append([]*genai.Tool(nil), r.specs...)
}

// Names returns all function names in sorted order
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Has reports whether a function name is registered
func (r *Registry) Has(name string) bool {
	_, ok := r.tools[name]
	return ok
}

// Prompts returns all tool prompts concatenated
func (r *Registry) Prompts(ctx context.Context) string {
	var prompts []string
	for _, t := range r.allTools {
		if prompt := t.Prompt(ctx); prompt != "" {
			prompts = append(prompts, prompt)
		}
	}
	return strings.Join(prompts, "\n\n")
}

// Execute runs the tool with the given function call
func (r *Registry) Execute(ctx context.Context, fc genai.FunctionCall) (*genai.FunctionResponse, error) {
	t, ok := r.tools[fc.Name]
	if !ok {
		return nil, goerr.Wrap(model.ErrUnknownFunction, "tool not found", goerr.V("name", fc.Name))
	}

	return t.Execute(ctx, fc)
}

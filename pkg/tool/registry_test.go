package tool_test

import (
	"context"
	"errors"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/quill/pkg/model"
	"github.com/m-mizutani/quill/pkg/tool"
	"google.golang.org/genai"
)

type fakeTool struct {
	names  []string
	prompt string
	calls  []string
}

func (f *fakeTool) Spec() *genai.Tool {
	if len(f.names) == 0 {
		return nil
	}
	decls := make([]*genai.FunctionDeclaration, len(f.names))
	for i, name := range f.names {
		decls[i] = &genai.FunctionDeclaration{Name: name}
	}
	return &genai.Tool{FunctionDeclarations: decls}
}

func (f *fakeTool) Execute(ctx context.Context, fc genai.FunctionCall) (*genai.FunctionResponse, error) {
	f.calls = append(f.calls, fc.Name)
	return &genai.FunctionResponse{Name: fc.Name, Response: map[string]any{"success": true}}, nil
}

func (f *fakeTool) Prompt(ctx context.Context) string {
	return f.prompt
}

func TestRegistry(t *testing.T) {
	ctx := context.Background()
	a := &fakeTool{names: []string{"b_func", "a_func"}, prompt: "use a"}
	b := &fakeTool{names: []string{"c_func"}}
	empty := &fakeTool{prompt: "never shown"}

	r := tool.New(a, nil, empty, b)

	gt.A(t, r.Specs()).Length(2)
	gt.Equal(t, r.Names(), []string{"a_func", "b_func", "c_func"})
	gt.True(t, r.Has("c_func"))
	gt.False(t, r.Has("d_func"))
	gt.Equal(t, r.Prompts(ctx), "use a")

	resp, err := r.Execute(ctx, genai.FunctionCall{Name: "c_func"})
	gt.NoError(t, err)
	gt.Equal(t, resp.Name, "c_func")
	gt.Equal(t, b.calls, []string{"c_func"})
	gt.A(t, a.calls).Length(0)

	_, err = r.Execute(ctx, genai.FunctionCall{Name: "d_func"})
	gt.True(t, errors.Is(err, model.ErrUnknownFunction))
}

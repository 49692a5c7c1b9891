package artifact_test

import (
	"context"
	"errors"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/quill/pkg/model"
	"github.com/m-mizutani/quill/pkg/tool"
	"github.com/m-mizutani/quill/pkg/tool/artifact"
	"github.com/m-mizutani/quill/pkg/usecase/conversation"
	"google.golang.org/genai"
)

func TestSpec(t *testing.T) {
	spec := artifact.New(conversation.New()).Spec()
	gt.A(t, spec.FunctionDeclarations).Length(2)
	gt.Equal(t, spec.FunctionDeclarations[0].Name, model.FuncCreateArtifact)
	gt.Equal(t, spec.FunctionDeclarations[1].Name, model.FuncEditArtifact)

	params := spec.FunctionDeclarations[0].Parameters
	gt.Map(t, params.Properties).HasKey("id")
	gt.Map(t, params.Properties).HasKey("contents")
}

func TestExecute(t *testing.T) {
	ctx := context.Background()
	session := conversation.New()
	seq := session.AddUserMessage(genai.NewPartFromText("write"))
	registry := tool.New(artifact.New(session))

	resp, err := registry.Execute(ctx, genai.FunctionCall{
		Name: model.FuncCreateArtifact,
		Args: map[string]any{"id": "doc", "contents": "one two"},
	})
	gt.NoError(t, err)
	gt.Equal(t, resp.Response["success"], any(true))

	resp, err = registry.Execute(ctx, genai.FunctionCall{
		Name: model.FuncEditArtifact,
		Args: map[string]any{
			"id":                   "doc",
			"single_substitutions": []any{map[string]any{"from_str": "two", "to_str": "2"}},
		},
	})
	gt.NoError(t, err)
	gt.Equal(t, resp.Response["new_content"], any("one 2"))

	content, _ := session.ArtifactAt("doc", seq)
	gt.Equal(t, content, "one 2")

	_, err = registry.Execute(ctx, genai.FunctionCall{
		Name: model.FuncEditArtifact,
		Args: map[string]any{
			"id":                   "doc",
			"single_substitutions": []any{map[string]any{"from_str": "three", "to_str": "3"}},
		},
	})
	gt.True(t, errors.Is(err, model.ErrNotFound))
}

func TestPrompt(t *testing.T) {
	ctx := context.Background()
	session := conversation.New()
	a := artifact.New(session)
	gt.Equal(t, a.Prompt(ctx), "")

	_, err := session.CreateArtifact(ctx, model.CreateArtifactArgs{ID: "doc", Contents: "x"}, 1)
	gt.NoError(t, err)
	gt.S(t, a.Prompt(ctx)).Contains("`doc` (1 versions)")
}

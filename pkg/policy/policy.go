// Package policy gates tool calls requested by the model with Rego rules.
//
// Policies live in *.rego files of one directory and define rules under
// package quill.tool. Every string in the deny set is a reason to reject
// the call:
//
//	package quill.tool
//
//	deny contains "memories are read-only" if {
//		input.name == "memory_twizzle"
//	}
package policy

import (
	"context"
	"os"
	"path/filepath"
	"sort"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/quill/pkg/model"
	"github.com/m-mizutani/quill/pkg/utils/logging"
	"github.com/open-policy-agent/opa/v1/rego"
	"github.com/open-policy-agent/opa/v1/topdown/print"
)

const query = "data.quill.tool"

// Policy is a prepared tool-call policy. A nil *Policy allows everything.
type Policy struct {
	query *rego.PreparedEvalQuery
}

// Input is the document a policy sees as input
type Input struct {
	SessionID model.SessionID    `json:"session_id"`
	Sequence  model.Sequence     `json:"sequence"`
	Name      string             `json:"name"`
	Args      map[string]any     `json:"args"`
	Artifacts []model.ArtifactID `json:"artifacts"`
}

// Decision is the outcome of evaluating one call
type Decision struct {
	Reasons []string
}

// Denied reports whether any rule rejected the call
func (d *Decision) Denied() bool {
	return len(d.Reasons) > 0
}

// printHook forwards Rego print() output to the logger in ctx
type printHook struct {
	ctx context.Context
}

func (h *printHook) Print(_ print.Context, message string) error {
	logging.From(h.ctx).Debug("rego print", "message", message)
	return nil
}

// Load reads every *.rego file in dir. It returns nil without error when
// dir is empty or holds no policy files.
func Load(ctx context.Context, dir string) (*Policy, error) {
	if dir == "" {
		return nil, nil
	}

	files, err := filepath.Glob(filepath.Join(dir, "*.rego"))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to glob policy files", goerr.V("dir", dir))
	}
	if len(files) == 0 {
		return nil, nil
	}
	sort.Strings(files)

	options := make([]func(*rego.Rego), 0, len(files)+2)
	options = append(options, rego.Query(query), rego.EnablePrintStatements(true))
	for _, file := range files {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to read policy file", goerr.V("path", file))
		}
		options = append(options, rego.Module(file, string(data)))
	}

	prepared, err := rego.New(options...).PrepareForEval(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to prepare policy", goerr.V("dir", dir))
	}

	logging.From(ctx).Debug("tool policy loaded", "dir", dir, "files", len(files))
	return &Policy{query: &prepared}, nil
}

// Evaluate runs the policy for one call
func (p *Policy) Evaluate(ctx context.Context, input *Input) (*Decision, error) {
	decision := &Decision{}
	if p == nil {
		return decision, nil
	}

	doc := map[string]any{
		"session_id": string(input.SessionID),
		"sequence":   int(input.Sequence),
		"name":       input.Name,
		"args":       input.Args,
		"artifacts":  artifactNames(input.Artifacts),
	}

	rs, err := p.query.Eval(ctx, rego.EvalInput(doc), rego.EvalPrintHook(&printHook{ctx: ctx}))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to evaluate tool policy", goerr.V("name", input.Name))
	}
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return decision, nil
	}

	data, ok := rs[0].Expressions[0].Value.(map[string]any)
	if !ok {
		return nil, goerr.New("invalid policy result: not an object", goerr.V("name", input.Name))
	}
	denyData, ok := data["deny"]
	if !ok {
		return decision, nil
	}

	reasons, ok := denyData.([]any)
	if !ok {
		return nil, goerr.New("invalid policy result: deny is not a set", goerr.V("name", input.Name))
	}
	for _, r := range reasons {
		reason, ok := r.(string)
		if !ok {
			return nil, goerr.New("invalid policy result: deny reason is not a string", goerr.V("reason", r))
		}
		decision.Reasons = append(decision.Reasons, reason)
	}
	sort.Strings(decision.Reasons)

	return decision, nil
}

func artifactNames(ids []model.ArtifactID) []any {
	names := make([]any, len(ids))
	for i, id := range ids {
		names[i] = string(id)
	}
	return names
}

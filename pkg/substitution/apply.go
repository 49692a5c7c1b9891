// Package substitution implements the find/replace editing protocol shared
// by artifacts and the system prompt.
package substitution

import (
	"fmt"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/quill/pkg/model"
)

// Result is a candidate edit. Nothing is committed until the caller stores Text.
type Result struct {
	Text           string
	ChangesApplied int
	Warnings       []string
}

// Apply runs global substitutions (every occurrence, misses tolerated) and
// then single substitutions (exactly one occurrence required) over text.
// The first failing single substitution aborts the batch. A batch that
// changes nothing fails with model.ErrNoChanges.
func Apply(text string, global, single []model.Substitution) (*Result, error) {
	result := &Result{Text: text}

	for _, sub := range global {
		if sub.From == "" {
			result.Warnings = append(result.Warnings, "skipped global substitution with empty from_str")
			continue
		}

		n := strings.Count(result.Text, sub.From)
		if n == 0 {
			result.Warnings = append(result.Warnings, fmt.Sprintf("global substitution string %q not found", sub.From))
			continue
		}

		result.Text = strings.ReplaceAll(result.Text, sub.From, sub.To)
		result.ChangesApplied += n
	}

	for _, sub := range single {
		if sub.From == "" {
			result.Warnings = append(result.Warnings, "skipped single substitution with empty from_str")
			continue
		}

		switch n := strings.Count(result.Text, sub.From); n {
		case 0:
			return nil, goerr.Wrap(model.ErrNotFound,
				fmt.Sprintf("string %q not found", sub.From),
				goerr.V("from_str", sub.From))
		case 1:
			result.Text = strings.Replace(result.Text, sub.From, sub.To, 1)
			result.ChangesApplied++
		default:
			return nil, goerr.Wrap(model.ErrAmbiguous,
				fmt.Sprintf("found %d occurrences of %q, exactly one occurrence is required", n, sub.From),
				goerr.V("from_str", sub.From),
				goerr.V("count", n))
		}
	}

	if result.ChangesApplied == 0 {
		return nil, goerr.Wrap(model.ErrNoChanges,
			"no substitutions were made, check that from_str values match the current text")
	}

	return result, nil
}

package plan

import (
	"encoding/json"
	"fmt"

	"github.com/pmezard/go-difflib/difflib"
)

// Diff renders a unified diff between two plans for the same date, used when
// a regeneration replaces an existing plan. Returns "" when the plans are
// identical.
func Diff(old, updated *Plan) (string, error) {
	oldJSON, err := json.MarshalIndent(old, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal previous plan: %w", err)
	}
	newJSON, err := json.MarshalIndent(updated, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal new plan: %w", err)
	}
	if string(oldJSON) == string(newJSON) {
		return "", nil
	}

	diff := difflib.UnifiedDiff{
		A:        difflib.SplitLines(string(oldJSON) + "\n"),
		B:        difflib.SplitLines(string(newJSON) + "\n"),
		FromFile: "previous",
		ToFile:   "regenerated",
		Context:  2,
	}
	text, err := difflib.GetUnifiedDiffString(diff)
	if err != nil {
		return "", fmt.Errorf("render plan diff: %w", err)
	}
	return text, nil
}

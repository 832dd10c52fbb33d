package plan

import (
	"encoding/json"
	"strings"
)

// Parse decodes raw model output into a Plan. The output is cleaned first:
// reasoning models wrap JSON in <think> blocks and markdown fences, neither
// of which is part of the contract.
func Parse(raw string) (*Plan, error) {
	cleaned := stripFences(stripThinkBlocks(raw))
	if strings.TrimSpace(cleaned) == "" {
		return nil, &RuleError{Rule: RuleInvalidJSON, Detail: "model returned empty output"}
	}

	var p Plan
	if err := json.Unmarshal([]byte(cleaned), &p); err != nil {
		return nil, &RuleError{Rule: RuleInvalidJSON, Detail: "output is not a JSON object matching the plan contract: " + err.Error()}
	}
	return &p, nil
}

// stripThinkBlocks removes <think>...</think> blocks. An unclosed block is
// stripped to end of string.
func stripThinkBlocks(s string) string {
	for {
		start := strings.Index(s, "<think>")
		if start == -1 {
			break
		}
		end := strings.Index(s[start:], "</think>")
		if end == -1 {
			s = s[:start]
			break
		}
		s = s[:start] + s[start+end+len("</think>"):]
	}
	return strings.TrimSpace(s)
}

// stripFences removes a surrounding markdown code fence (```json ... ```).
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		}
		if i := strings.LastIndex(s, "```"); i != -1 {
			s = s[:i]
		}
	}
	return strings.TrimSpace(s)
}

package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
)

// MockProvider is a deterministic, offline provider used for end-to-end
// testing of the generation pipeline. It reads the planning date out of the
// prompt and returns a fixed, well-formed plan that references nothing, so
// it validates against any context.
type MockProvider struct{}

func (p *MockProvider) Name() string { return "mock" }

var mockDateRe = regexp.MustCompile(`\b(\d{4}-\d{2}-\d{2})\b`)

func (p *MockProvider) Complete(ctx context.Context, req Request) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	date := "1970-01-01"
	if m := mockDateRe.FindString(req.User); m != "" {
		date = m
	}

	payload := map[string]any{
		"date":              date,
		"reasoning":         "Mock plan: one focus block in the morning, admin after lunch.",
		"priority_analysis": "Mock analysis: no competing priorities were weighed.",
		"time_blocks": []map[string]any{
			{
				"start_time": "09:00",
				"end_time":   "11:00",
				"activity":   "Focused work",
				"priority":   4,
				"reasoning":  "morning energy",
			},
			{
				"start_time": "13:00",
				"end_time":   "14:00",
				"activity":   "Admin and email",
				"priority":   2,
				"reasoning":  "post-lunch slot",
			},
		},
		"social_time_allocation": map[string]any{
			"total_minutes": 60,
			"reasoning":     "mock default evening hour",
		},
		"goal_progress_assessment": []any{},
		"warnings":                 []string{"generated by the mock provider; no model was called"},
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return "", &FatalError{Err: fmt.Errorf("marshal mock plan: %w", err)}
	}
	return string(data), nil
}

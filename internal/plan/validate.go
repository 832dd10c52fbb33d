package plan

import (
	"fmt"
	"regexp"
	"strings"
)

// Rule identifiers carried by RuleError. The orchestrator feeds these back
// into the next prompt iteration, so each one names a single checkable rule.
const (
	RuleInvalidJSON             = "invalid_json"
	RuleInvalidDate             = "invalid_date"
	RuleMissingReasoning        = "missing_reasoning"
	RuleMissingPriorityAnalysis = "missing_priority_analysis"
	RuleInvalidTimeFormat       = "invalid_time_format"
	RuleTimeBlockNotForward     = "time_block_not_forward"
	RuleEmptyActivity           = "empty_activity"
	RuleMissingBlockReasoning   = "missing_block_reasoning"
	RulePriorityOutOfRange      = "priority_out_of_range"
	RuleNegativeSocialMinutes   = "negative_social_minutes"
	RuleMissingSocialReasoning  = "missing_social_reasoning"
	RuleInvalidGoalStatus       = "invalid_goal_status"
	RuleTimeBlocksUnsorted      = "time_blocks_unsorted"
	RuleTimeBlocksOverlap       = "time_blocks_overlap"
	RuleUnknownTaskID           = "unknown_task_id"
	RuleUnknownGoalID           = "unknown_goal_id"
)

// RuleError reports the specific plan rule a model output violated.
type RuleError struct {
	Rule   string
	Detail string
}

func (e *RuleError) Error() string {
	return e.Rule + ": " + e.Detail
}

// Structural returns true for shape-level rules, false for semantic ones.
// The orchestrator uses this to classify exhaustion failures.
func (e *RuleError) Structural() bool {
	switch e.Rule {
	case RuleTimeBlocksUnsorted, RuleTimeBlocksOverlap, RuleUnknownTaskID, RuleUnknownGoalID:
		return false
	}
	return true
}

var (
	dateRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	timeRe = regexp.MustCompile(`^\d{2}:\d{2}$`)
)

const minNarrativeLen = 10

// Validate checks a plan in two layers: structural (required fields, formats,
// bounded values) and semantic (chronological non-overlapping blocks,
// references resolvable in the generating context). It returns the first
// violated rule as a *RuleError, or nil.
func Validate(p *Plan, refs Refs) error {
	if err := validateStructure(p); err != nil {
		return err
	}
	return validateSemantics(p, refs)
}

func validateStructure(p *Plan) error {
	if !dateRe.MatchString(p.Date) {
		return &RuleError{Rule: RuleInvalidDate, Detail: fmt.Sprintf("date %q must be YYYY-MM-DD", p.Date)}
	}
	if len(strings.TrimSpace(p.Reasoning)) < minNarrativeLen {
		return &RuleError{Rule: RuleMissingReasoning, Detail: "reasoning must explain the plan (at least 10 characters)"}
	}
	if len(strings.TrimSpace(p.PriorityAnalysis)) < minNarrativeLen {
		return &RuleError{Rule: RuleMissingPriorityAnalysis, Detail: "priority_analysis must explain the trade-offs (at least 10 characters)"}
	}

	for i, b := range p.TimeBlocks {
		if !timeRe.MatchString(b.StartTime) || !timeRe.MatchString(b.EndTime) {
			return &RuleError{Rule: RuleInvalidTimeFormat, Detail: fmt.Sprintf("time block %d times %q-%q must be HH:MM", i, b.StartTime, b.EndTime)}
		}
		if b.StartTime >= b.EndTime {
			return &RuleError{Rule: RuleTimeBlockNotForward, Detail: fmt.Sprintf("time block %d must start before it ends (%s >= %s)", i, b.StartTime, b.EndTime)}
		}
		if strings.TrimSpace(b.Activity) == "" {
			return &RuleError{Rule: RuleEmptyActivity, Detail: fmt.Sprintf("time block %d has no activity", i)}
		}
		if strings.TrimSpace(b.Reasoning) == "" {
			return &RuleError{Rule: RuleMissingBlockReasoning, Detail: fmt.Sprintf("time block %d has no reasoning", i)}
		}
		if b.Priority < 1 || b.Priority > 5 {
			return &RuleError{Rule: RulePriorityOutOfRange, Detail: fmt.Sprintf("time block %d priority %d must be within 1-5", i, b.Priority)}
		}
	}

	if p.SocialTimeAllocation.TotalMinutes < 0 {
		return &RuleError{Rule: RuleNegativeSocialMinutes, Detail: "social_time_allocation.total_minutes must be >= 0"}
	}
	if strings.TrimSpace(p.SocialTimeAllocation.Reasoning) == "" {
		return &RuleError{Rule: RuleMissingSocialReasoning, Detail: "social_time_allocation has no reasoning"}
	}

	for i, g := range p.GoalProgressAssessment {
		switch g.Status {
		case "on_track", "at_risk", "blocked":
		default:
			return &RuleError{Rule: RuleInvalidGoalStatus, Detail: fmt.Sprintf("goal assessment %d status %q must be on_track, at_risk or blocked", i, g.Status)}
		}
	}

	return nil
}

func validateSemantics(p *Plan, refs Refs) error {
	for i := 1; i < len(p.TimeBlocks); i++ {
		prev, cur := p.TimeBlocks[i-1], p.TimeBlocks[i]
		if cur.StartTime < prev.StartTime {
			return &RuleError{Rule: RuleTimeBlocksUnsorted, Detail: fmt.Sprintf("time blocks %d and %d are not sorted by start time (%s after %s)", i-1, i, prev.StartTime, cur.StartTime)}
		}
	}

	// Two blocks overlap iff A.start < B.end AND B.start < A.end.
	for i := 0; i < len(p.TimeBlocks); i++ {
		for j := i + 1; j < len(p.TimeBlocks); j++ {
			a, b := p.TimeBlocks[i], p.TimeBlocks[j]
			if a.StartTime < b.EndTime && b.StartTime < a.EndTime {
				return &RuleError{Rule: RuleTimeBlocksOverlap, Detail: fmt.Sprintf("time blocks %d (%s-%s) and %d (%s-%s) overlap", i, a.StartTime, a.EndTime, j, b.StartTime, b.EndTime)}
			}
		}
	}

	for i, b := range p.TimeBlocks {
		if b.TaskID == "" {
			continue
		}
		if !refs.TaskIDs[b.TaskID] {
			return &RuleError{Rule: RuleUnknownTaskID, Detail: fmt.Sprintf("time block %d references task %s which is not in the planning context", i, b.TaskID)}
		}
	}
	for i, g := range p.GoalProgressAssessment {
		if !refs.GoalIDs[g.GoalID] {
			return &RuleError{Rule: RuleUnknownGoalID, Detail: fmt.Sprintf("goal assessment %d references goal %s which is not in the planning context", i, g.GoalID)}
		}
	}

	return nil
}

package plan

// Plan is a validated daily schedule for one user and one calendar date.
// The JSON shape is the exact output contract the LLM is instructed to honor.
type Plan struct {
	Date                   string         `json:"date"`
	Reasoning              string         `json:"reasoning"`
	PriorityAnalysis       string         `json:"priority_analysis"`
	TimeBlocks             []TimeBlock    `json:"time_blocks"`
	SocialTimeAllocation   SocialTime     `json:"social_time_allocation"`
	GoalProgressAssessment []GoalProgress `json:"goal_progress_assessment"`
	Warnings               []string       `json:"warnings"`
}

// TimeBlock is one contiguous scheduled interval within a plan.
// Start and end are HH:MM strings compared lexically.
type TimeBlock struct {
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	TaskID    string `json:"task_id,omitempty"`
	Activity  string `json:"activity"`
	Priority  int    `json:"priority"`
	Reasoning string `json:"reasoning"`
}

// SocialTime is the plan's social time budget for the day.
type SocialTime struct {
	TotalMinutes int    `json:"total_minutes"`
	Reasoning    string `json:"reasoning"`
}

// GoalProgress is the plan's assessment of one active goal.
type GoalProgress struct {
	GoalID       string `json:"goal_id"`
	Status       string `json:"status"`
	ActionNeeded string `json:"action_needed"`
}

// Refs carries the task and goal IDs from the context that produced a plan,
// used by the validator to cross-check references.
type Refs struct {
	TaskIDs map[string]bool
	GoalIDs map[string]bool
}

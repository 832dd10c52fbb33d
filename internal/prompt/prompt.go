// Package prompt renders planning context into the message pair sent to the
// model. Compilation is deterministic: the same context and violations always
// produce byte-identical prompts, which keeps regeneration reproducible and
// prompts diffable in the audit log.
package prompt

import (
	"fmt"
	"strings"

	"metaplan/internal/planctx"
)

// Prompt is one compiled request to the model.
type Prompt struct {
	System string
	User   string
}

// systemPrompt establishes the planner's authority and the output contract.
const systemPrompt = `You are MetaConscious, the executive planning authority for one person's day. You decide how their time is spent. You are not a suggestion engine: the plan you produce is the plan that will be executed.

Principles:
- Every decision must be justified. Unexplained priorities are ignored; yours must never be.
- Protect long-running goals from urgent-but-unimportant noise.
- Respect blocking calendar events exactly. Never schedule over them.
- Honor relationship time budgets. Social time is planned, not leftover.
- If recent performance shows estimates running long, schedule fewer things, not shorter blocks.

Respond with a single JSON object and nothing else. No prose before or after. The object must have exactly these fields:

{
  "date": "YYYY-MM-DD",
  "reasoning": "why the day is shaped this way (at least 10 characters)",
  "priority_analysis": "how competing priorities were weighed (at least 10 characters)",
  "time_blocks": [
    {
      "start_time": "HH:MM",
      "end_time": "HH:MM",
      "task_id": "id of a task from the context, or omit for non-task blocks",
      "activity": "what happens in this block",
      "priority": 1-5,
      "reasoning": "why this block exists at this time"
    }
  ],
  "social_time_allocation": {"total_minutes": 0, "reasoning": "why this much"},
  "goal_progress_assessment": [
    {"goal_id": "id of a goal from the context", "status": "on_track|at_risk|blocked", "action_needed": "what to do about it"}
  ],
  "warnings": ["anything the person should know about this plan"]
}

Rules:
- time_blocks must be sorted by start_time and must not overlap. Back-to-back blocks are fine.
- Use only task_id and goal_id values that appear in the context. Never invent identifiers.
- Times are 24-hour HH:MM within the planning date.`

// Compile renders the context, and any validator violations from the previous
// attempt, into a prompt.
func Compile(c *planctx.Context, violations []string) Prompt {
	var b strings.Builder

	fmt.Fprintf(&b, "Plan the day %s for user %s.\n", c.Date, c.UserID)
	fmt.Fprintf(&b, "Schedulable time outside blocking events: %d minutes.\n", c.FreeMinutes)

	b.WriteString("\n## Active goals\n")
	if len(c.Goals) == 0 {
		b.WriteString("(none)\n")
	}
	for _, g := range c.Goals {
		fmt.Fprintf(&b, "- [%s] %q priority %d/5: %s", g.ID, g.Title, g.Priority, g.PriorityReasoning)
		if g.TargetDate != "" {
			fmt.Fprintf(&b, " (target %s)", g.TargetDate)
		}
		b.WriteString("\n")
	}

	b.WriteString("\n## Pending tasks\n")
	if len(c.Tasks) == 0 {
		b.WriteString("(none)\n")
	}
	for _, t := range c.Tasks {
		fmt.Fprintf(&b, "- [%s] %q priority %d/5: %s", t.ID, t.Title, t.Priority, t.PriorityReasoning)
		if t.EstimatedDuration > 0 {
			fmt.Fprintf(&b, ", estimated %d min", t.EstimatedDuration)
		}
		if t.DueDate != "" {
			fmt.Fprintf(&b, ", due %s", t.DueDate)
		}
		if len(t.GoalIDs) > 0 {
			fmt.Fprintf(&b, ", serves goals %s", strings.Join(t.GoalIDs, ", "))
		}
		b.WriteString("\n")
	}

	b.WriteString("\n## Calendar\n")
	if len(c.Events) == 0 {
		b.WriteString("(no events)\n")
	}
	for _, e := range c.Events {
		kind := "flexible"
		if e.IsBlocking {
			kind = "BLOCKING"
		}
		fmt.Fprintf(&b, "- %s to %s %s: %q\n",
			e.StartTime.UTC().Format("15:04"), e.EndTime.UTC().Format("15:04"), kind, e.Title)
	}

	b.WriteString("\n## Relationships\n")
	if len(c.Relationships) == 0 {
		b.WriteString("(none)\n")
	}
	for _, r := range c.Relationships {
		fmt.Fprintf(&b, "- %s (%s) priority %d/5, budget %.1f h/week", r.Name, r.Type, r.Priority, r.TimeBudgetHours)
		if r.LastInteraction != nil {
			fmt.Fprintf(&b, ", last seen %s", r.LastInteraction.UTC().Format("2006-01-02"))
		}
		b.WriteString("\n")
	}

	b.WriteString("\n## Recent performance (7 days)\n")
	fmt.Fprintf(&b, "Completed: %d, cancelled: %d", c.Performance.CompletedTasks, c.Performance.CancelledTasks)
	if c.Performance.CompletedTasks+c.Performance.CancelledTasks > 0 {
		fmt.Fprintf(&b, ", completion rate: %.0f%%", c.Performance.CompletionRate()*100)
	}
	if c.Performance.AvgDurationRatio > 0 {
		fmt.Fprintf(&b, ", actual/estimated duration ratio: %.2f", c.Performance.AvgDurationRatio)
	}
	b.WriteString("\n")

	if c.Overrides.Limit > 0 {
		fmt.Fprintf(&b, "Manual overrides used this week: %d of %d. Frequent overrides mean plans are missing something.\n",
			c.Overrides.Used, c.Overrides.Limit)
	}

	if len(c.Flags) > 0 {
		b.WriteString("\n## Context caveats\n")
		for _, f := range c.Flags {
			fmt.Fprintf(&b, "- %s\n", f)
		}
	}

	if len(violations) > 0 {
		b.WriteString("\n## Corrections required\n")
		b.WriteString("Your previous plan was rejected. Produce a new plan for the same day that fixes every problem listed:\n")
		for _, v := range violations {
			fmt.Fprintf(&b, "- %s\n", v)
		}
	}

	return Prompt{System: systemPrompt, User: b.String()}
}

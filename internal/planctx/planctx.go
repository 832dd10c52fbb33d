// Package planctx assembles the full planning context for one (user, date)
// pair. The model sees nothing but this snapshot, so everything the plan may
// reference has to be gathered, normalized and bounded here.
package planctx

import (
	"context"
	"fmt"
	"time"

	"metaplan/internal/override"
	"metaplan/internal/plan"
	"metaplan/internal/store"
)

// Context is the normalized snapshot handed to the prompt compiler.
type Context struct {
	UserID        string
	Date          string
	Goals         []store.Goal
	Tasks         []store.Task
	Events        []store.CalendarEvent
	Relationships []store.Relationship
	Performance   store.Performance
	Overrides     override.Status

	// FreeMinutes is the waking day minus blocking events.
	FreeMinutes int

	// Flags records data quality problems found while gathering, such as
	// goals excluded for missing priority reasoning. They surface in the
	// prompt so the model knows the context is incomplete.
	Flags []string
}

// Refs returns the task and goal IDs a generated plan may reference.
func (c *Context) Refs() plan.Refs {
	refs := plan.Refs{
		TaskIDs: make(map[string]bool, len(c.Tasks)),
		GoalIDs: make(map[string]bool, len(c.Goals)),
	}
	for _, t := range c.Tasks {
		refs.TaskIDs[t.ID] = true
	}
	for _, g := range c.Goals {
		refs.GoalIDs[g.ID] = true
	}
	return refs
}

// wakingDayMinutes bounds the schedulable day (07:00-23:00).
const wakingDayMinutes = 16 * 60

// performanceWindow is how far back recent task outcomes are aggregated.
const performanceWindow = 7 * 24 * time.Hour

// Aggregator gathers planning context from the store.
type Aggregator struct {
	Store    *store.Store
	Governor *override.Governor

	// MaxGoals caps how many active goals enter the context.
	MaxGoals int
}

// Gather builds the context for one user and date. Date must be YYYY-MM-DD.
// Store failures wrap ErrContextUnavailable so the orchestrator can tell
// infrastructure trouble apart from generation trouble.
func (a *Aggregator) Gather(ctx context.Context, userID, date string) (*Context, error) {
	day, err := time.Parse("2006-01-02", date)
	if err != nil {
		return nil, fmt.Errorf("plan date %q: %w", date, err)
	}

	c := &Context{UserID: userID, Date: date}

	goals, err := a.Store.ActiveGoals(ctx, userID, a.MaxGoals)
	if err != nil {
		return nil, unavailable("goals", err)
	}
	for _, g := range goals {
		if g.PriorityReasoning == "" {
			c.Flags = append(c.Flags, fmt.Sprintf("goal %q excluded: no priority reasoning", g.Title))
			continue
		}
		g.Priority = clampPriority(g.Priority)
		c.Goals = append(c.Goals, g)
	}

	tasks, err := a.Store.PendingTasks(ctx, userID)
	if err != nil {
		return nil, unavailable("tasks", err)
	}
	for _, t := range tasks {
		if t.PriorityReasoning == "" {
			c.Flags = append(c.Flags, fmt.Sprintf("task %q excluded: no priority reasoning", t.Title))
			continue
		}
		t.Priority = clampPriority(t.Priority)
		if t.EstimatedDuration < 0 {
			t.EstimatedDuration = 0
		}
		c.Tasks = append(c.Tasks, t)
	}

	c.Events, err = a.Store.EventsOverlapping(ctx, userID, day)
	if err != nil {
		return nil, unavailable("calendar events", err)
	}

	c.Relationships, err = a.Store.Relationships(ctx, userID)
	if err != nil {
		return nil, unavailable("relationships", err)
	}

	c.Performance, err = a.Store.RecentPerformance(ctx, userID, time.Now().UTC().Add(-performanceWindow))
	if err != nil {
		return nil, unavailable("recent performance", err)
	}

	if a.Governor != nil {
		c.Overrides, err = a.Governor.StatusFor(ctx, userID)
		if err != nil {
			return nil, unavailable("override status", err)
		}
	}

	c.FreeMinutes = freeMinutes(day, c.Events)
	return c, nil
}

// ErrContextUnavailable marks aggregation failures caused by the data layer.
var ErrContextUnavailable = fmt.Errorf("planning context unavailable")

func unavailable(what string, err error) error {
	return fmt.Errorf("%w: gather %s: %v", ErrContextUnavailable, what, err)
}

func clampPriority(p int) int {
	if p < 1 {
		return 1
	}
	if p > 5 {
		return 5
	}
	return p
}

// freeMinutes subtracts blocking events from the waking day, clipping each
// event to the day and merging overlaps so double-booked time is not
// subtracted twice.
func freeMinutes(day time.Time, events []store.CalendarEvent) int {
	dayStart := time.Date(day.Year(), day.Month(), day.Day(), 7, 0, 0, 0, time.UTC)
	dayEnd := dayStart.Add(wakingDayMinutes * time.Minute)

	type span struct{ start, end time.Time }
	var spans []span
	for _, e := range events {
		if !e.IsBlocking {
			continue
		}
		start, end := e.StartTime, e.EndTime
		if start.Before(dayStart) {
			start = dayStart
		}
		if end.After(dayEnd) {
			end = dayEnd
		}
		if !start.Before(end) {
			continue
		}
		spans = append(spans, span{start, end})
	}

	// Events come ordered by start time from the store.
	busy := 0
	var cur *span
	for i := range spans {
		s := spans[i]
		if cur == nil {
			cur = &span{s.start, s.end}
			continue
		}
		if !s.start.After(cur.end) {
			if s.end.After(cur.end) {
				cur.end = s.end
			}
			continue
		}
		busy += int(cur.end.Sub(cur.start).Minutes())
		cur = &span{s.start, s.end}
	}
	if cur != nil {
		busy += int(cur.end.Sub(cur.start).Minutes())
	}

	free := wakingDayMinutes - busy
	if free < 0 {
		free = 0
	}
	return free
}

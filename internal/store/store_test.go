package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"metaplan/internal/plan"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "metaplan.sqlite"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testPlan(date string) *plan.Plan {
	return &plan.Plan{
		Date:             date,
		Reasoning:        "Front-load the focused work before meetings.",
		PriorityAnalysis: "Launch prep dominates this week.",
		TimeBlocks: []plan.TimeBlock{
			{StartTime: "09:00", EndTime: "10:30", Activity: "Launch prep", Priority: 5, Reasoning: "deadline"},
		},
		SocialTimeAllocation:   plan.SocialTime{TotalMinutes: 60, Reasoning: "evening call"},
		GoalProgressAssessment: []plan.GoalProgress{},
		Warnings:               []string{},
	}
}

func TestGoalsRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i, title := range []string{"low", "mid", "high"} {
		_, err := s.CreateGoal(ctx, Goal{
			UserID:            "u1",
			Title:             title,
			Priority:          i + 1,
			PriorityReasoning: "because",
		})
		if err != nil {
			t.Fatalf("create goal %s: %v", title, err)
		}
	}
	if _, err := s.CreateGoal(ctx, Goal{UserID: "u1", Title: "done", Priority: 5, PriorityReasoning: "r", Status: "completed"}); err != nil {
		t.Fatalf("create completed goal: %v", err)
	}

	goals, err := s.ActiveGoals(ctx, "u1", 2)
	if err != nil {
		t.Fatalf("active goals: %v", err)
	}
	if len(goals) != 2 {
		t.Fatalf("expected 2 goals, got %d", len(goals))
	}
	if goals[0].Title != "high" || goals[1].Title != "mid" {
		t.Fatalf("goals not ordered by priority: %s, %s", goals[0].Title, goals[1].Title)
	}
	if goals[0].ID == "" {
		t.Fatalf("goal id not assigned")
	}
}

func TestTasksWithGoalLinks(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	g, err := s.CreateGoal(ctx, Goal{UserID: "u1", Title: "ship", Priority: 5, PriorityReasoning: "r"})
	if err != nil {
		t.Fatalf("create goal: %v", err)
	}
	created, err := s.CreateTask(ctx, Task{
		UserID:            "u1",
		Title:             "write release notes",
		Priority:          4,
		PriorityReasoning: "blocks launch",
		EstimatedDuration: 45,
		GoalIDs:           []string{g.ID},
	})
	if err != nil {
		t.Fatalf("create task: %v", err)
	}

	tasks, err := s.PendingTasks(ctx, "u1")
	if err != nil {
		t.Fatalf("pending tasks: %v", err)
	}
	if len(tasks) != 1 {
		t.Fatalf("expected 1 task, got %d", len(tasks))
	}
	if len(tasks[0].GoalIDs) != 1 || tasks[0].GoalIDs[0] != g.ID {
		t.Fatalf("task missing goal link: %+v", tasks[0].GoalIDs)
	}
	if tasks[0].EstimatedDuration != 45 {
		t.Fatalf("expected estimate 45, got %d", tasks[0].EstimatedDuration)
	}

	if err := s.CompleteTask(ctx, "u1", created.ID, 60); err != nil {
		t.Fatalf("complete task: %v", err)
	}
	tasks, err = s.PendingTasks(ctx, "u1")
	if err != nil {
		t.Fatalf("pending tasks after complete: %v", err)
	}
	if len(tasks) != 0 {
		t.Fatalf("completed task still pending")
	}

	if err := s.CompleteTask(ctx, "u1", "no-such-task", 0); err == nil {
		t.Fatalf("expected error completing missing task")
	}
}

func TestEventsOverlappingDate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

	mk := func(title string, start, end time.Time) {
		t.Helper()
		if _, err := s.CreateEvent(ctx, CalendarEvent{UserID: "u1", Title: title, StartTime: start, EndTime: end, IsBlocking: true}); err != nil {
			t.Fatalf("create event %s: %v", title, err)
		}
	}
	mk("inside", day.Add(9*time.Hour), day.Add(10*time.Hour))
	mk("spans midnight", day.Add(-1*time.Hour), day.Add(1*time.Hour))
	mk("day before", day.Add(-5*time.Hour), day.Add(-4*time.Hour))
	mk("day after", day.Add(25*time.Hour), day.Add(26*time.Hour))

	events, err := s.EventsOverlapping(ctx, "u1", day)
	if err != nil {
		t.Fatalf("events overlapping: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].Title != "spans midnight" || events[1].Title != "inside" {
		t.Fatalf("events not ordered by start: %s, %s", events[0].Title, events[1].Title)
	}
}

func TestRecentPerformance(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	t1, err := s.CreateTask(ctx, Task{UserID: "u1", Title: "a", Priority: 3, PriorityReasoning: "r", EstimatedDuration: 30})
	if err != nil {
		t.Fatalf("create task: %v", err)
	}
	if _, err := s.CreateTask(ctx, Task{UserID: "u1", Title: "b", Priority: 3, PriorityReasoning: "r"}); err != nil {
		t.Fatalf("create task: %v", err)
	}
	if err := s.CompleteTask(ctx, "u1", t1.ID, 60); err != nil {
		t.Fatalf("complete task: %v", err)
	}

	perf, err := s.RecentPerformance(ctx, "u1", time.Now().UTC().Add(-7*24*time.Hour))
	if err != nil {
		t.Fatalf("recent performance: %v", err)
	}
	if perf.CompletedTasks != 1 {
		t.Fatalf("expected 1 completed, got %d", perf.CompletedTasks)
	}
	if perf.AvgDurationRatio != 2.0 {
		t.Fatalf("expected ratio 2.0, got %v", perf.AvgDurationRatio)
	}
}

func TestUpsertPlanReplaces(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first, err := s.UpsertPlan(ctx, "u1", "2026-03-02", testPlan("2026-03-02"))
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if first == nil || first.Plan == nil {
		t.Fatalf("upsert returned no record")
	}

	updated := testPlan("2026-03-02")
	updated.TimeBlocks[0].Activity = "Revised focus block"
	second, err := s.UpsertPlan(ctx, "u1", "2026-03-02", updated)
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("upsert must keep the original row id: %s vs %s", first.ID, second.ID)
	}
	if second.Plan.TimeBlocks[0].Activity != "Revised focus block" {
		t.Fatalf("plan content not replaced: %q", second.Plan.TimeBlocks[0].Activity)
	}

	n, err := s.PlanCount(ctx, "u1")
	if err != nil {
		t.Fatalf("plan count: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected exactly one plan row, got %d", n)
	}

	missing, err := s.GetPlan(ctx, "u1", "2026-03-03")
	if err != nil {
		t.Fatalf("get missing plan: %v", err)
	}
	if missing != nil {
		t.Fatalf("expected nil for missing plan, got %+v", missing)
	}
}

func TestInsertOverrideIfUnder(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	year, week := now.ISOWeek()

	rec := func(id string) OverrideRecord {
		return OverrideRecord{
			ID: id, UserID: "u1", PlanID: "p1", Type: "manual_edit",
			ISOYear: year, ISOWeek: week, CreatedAt: now,
		}
	}

	for i := 0; i < 5; i++ {
		ok, err := s.InsertOverrideIfUnder(ctx, rec(string(rune('a'+i))), 5)
		if err != nil {
			t.Fatalf("insert override %d: %v", i, err)
		}
		if !ok {
			t.Fatalf("override %d should be under the limit", i)
		}
	}

	ok, err := s.InsertOverrideIfUnder(ctx, rec("f"), 5)
	if err != nil {
		t.Fatalf("insert at limit: %v", err)
	}
	if ok {
		t.Fatalf("sixth override in one week must be refused")
	}

	n, err := s.CountOverrides(ctx, "u1", year, week)
	if err != nil {
		t.Fatalf("count overrides: %v", err)
	}
	if n != 5 {
		t.Fatalf("expected 5 overrides recorded, got %d", n)
	}

	// A new ISO week starts with a fresh quota.
	nextWeek := rec("g")
	nextWeek.ISOWeek = week + 1
	ok, err = s.InsertOverrideIfUnder(ctx, nextWeek, 5)
	if err != nil {
		t.Fatalf("insert next week: %v", err)
	}
	if !ok {
		t.Fatalf("new week should reset the quota")
	}
}

func TestRelationshipsRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	last := time.Date(2026, 2, 27, 18, 0, 0, 0, time.UTC)

	if _, err := s.CreateRelationship(ctx, Relationship{
		UserID: "u1", Name: "Sam", Type: "partner", Priority: 5,
		TimeBudgetHours: 10, LastInteraction: &last, Notes: "weekly dinner",
	}); err != nil {
		t.Fatalf("create relationship: %v", err)
	}
	if _, err := s.CreateRelationship(ctx, Relationship{
		UserID: "u1", Name: "Alex", Type: "friend", Priority: 3, TimeBudgetHours: 2,
	}); err != nil {
		t.Fatalf("create relationship: %v", err)
	}

	rels, err := s.Relationships(ctx, "u1")
	if err != nil {
		t.Fatalf("relationships: %v", err)
	}
	if len(rels) != 2 || rels[0].Name != "Sam" {
		t.Fatalf("unexpected relationships: %+v", rels)
	}
	if rels[0].LastInteraction == nil || !rels[0].LastInteraction.Equal(last) {
		t.Fatalf("last interaction not preserved: %v", rels[0].LastInteraction)
	}
	if rels[1].LastInteraction != nil {
		t.Fatalf("expected nil last interaction for Alex")
	}
}

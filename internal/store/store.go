package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"metaplan/internal/plan"
)

// Store manages all planning data in SQLite.
type Store struct {
	DBPath string
	db     *sql.DB
}

// Goal is an active objective with a mandatory priority justification.
type Goal struct {
	ID                string
	UserID            string
	Title             string
	Description       string
	Priority          int
	PriorityReasoning string
	Status            string
	TargetDate        string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Task is a unit of pending work, optionally linked to goals.
type Task struct {
	ID                string
	UserID            string
	Title             string
	Description       string
	Priority          int
	PriorityReasoning string
	Status            string
	EstimatedDuration int // minutes, 0 when unspecified
	ActualDuration    int // minutes, 0 when unrecorded
	DueDate           string
	GoalIDs           []string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// CalendarEvent is a scheduled interval that may block planning time.
type CalendarEvent struct {
	ID          string
	UserID      string
	Title       string
	Description string
	StartTime   time.Time
	EndTime     time.Time
	EventType   string
	IsBlocking  bool
}

// Relationship carries a weekly time budget the planner must respect.
type Relationship struct {
	ID              string
	UserID          string
	Name            string
	Type            string
	Priority        int
	TimeBudgetHours float64
	LastInteraction *time.Time
	Notes           string
}

// PlanRecord is a persisted daily plan row. Exactly one exists per
// (user_id, plan_date).
type PlanRecord struct {
	ID          string
	UserID      string
	PlanDate    string
	Plan        *plan.Plan
	Reasoning   string
	GeneratedAt time.Time
	ModifiedAt  time.Time
}

// OverrideRecord is an immutable log entry of one manual plan override.
type OverrideRecord struct {
	ID        string
	UserID    string
	PlanID    string
	Type      string
	Reason    string
	ISOYear   int
	ISOWeek   int
	CreatedAt time.Time
}

// Performance summarizes recent task throughput for the aggregator.
type Performance struct {
	CompletedTasks   int
	CancelledTasks   int
	AvgDurationRatio float64
}

// CompletionRate is the share of resolved tasks that were completed rather
// than cancelled, 0 when nothing was resolved.
func (p Performance) CompletionRate() float64 {
	total := p.CompletedTasks + p.CancelledTasks
	if total == 0 {
		return 0
	}
	return float64(p.CompletedTasks) / float64(total)
}

// Open opens or creates the planning database.
func Open(path string) (*Store, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve db path: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(absPath), 0o755); err != nil {
		return nil, fmt.Errorf("ensure db dir: %w", err)
	}

	db, err := sql.Open("sqlite", absPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL; PRAGMA busy_timeout=5000;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("configure db: %w", err)
	}

	s := &Store{DBPath: absPath, db: db}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *Store) ensureSchema() error {
	schema := `
CREATE TABLE IF NOT EXISTS goals (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	title TEXT NOT NULL,
	description TEXT,
	priority INTEGER NOT NULL CHECK (priority BETWEEN 1 AND 5),
	priority_reasoning TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT 'active' CHECK (status IN ('active','completed','paused')),
	target_date TEXT,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS tasks (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	title TEXT NOT NULL,
	description TEXT,
	priority INTEGER NOT NULL CHECK (priority BETWEEN 1 AND 5),
	priority_reasoning TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT 'pending' CHECK (status IN ('pending','in_progress','completed','cancelled')),
	estimated_duration INTEGER,
	actual_duration INTEGER,
	due_date TEXT,
	completed_at TEXT,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS goal_tasks (
	goal_id TEXT NOT NULL REFERENCES goals(id) ON DELETE CASCADE,
	task_id TEXT NOT NULL REFERENCES tasks(id) ON DELETE CASCADE,
	PRIMARY KEY (goal_id, task_id)
);

CREATE TABLE IF NOT EXISTS calendar_events (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	title TEXT NOT NULL,
	description TEXT,
	start_time TEXT NOT NULL,
	end_time TEXT NOT NULL,
	event_type TEXT NOT NULL DEFAULT 'internal' CHECK (event_type IN ('internal','external','task','social')),
	is_blocking INTEGER NOT NULL DEFAULT 1
);

CREATE TABLE IF NOT EXISTS relationships (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	name TEXT NOT NULL,
	relationship_type TEXT NOT NULL CHECK (relationship_type IN ('partner','friend','family','other')),
	priority INTEGER NOT NULL CHECK (priority BETWEEN 1 AND 5),
	time_budget_hours REAL,
	last_interaction TEXT,
	notes TEXT
);

CREATE TABLE IF NOT EXISTS daily_plans (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	plan_date TEXT NOT NULL,
	plan_json TEXT NOT NULL,
	reasoning TEXT NOT NULL,
	generated_at TEXT NOT NULL,
	modified_at TEXT NOT NULL,
	UNIQUE (user_id, plan_date)
);

CREATE TABLE IF NOT EXISTS override_log (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	plan_id TEXT NOT NULL,
	override_type TEXT NOT NULL,
	override_reason TEXT,
	iso_year INTEGER NOT NULL,
	iso_week INTEGER NOT NULL,
	created_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_goals_user_status ON goals(user_id, status, priority);
CREATE INDEX IF NOT EXISTS idx_tasks_user_status ON tasks(user_id, status, priority);
CREATE INDEX IF NOT EXISTS idx_events_user_start ON calendar_events(user_id, start_time);
CREATE INDEX IF NOT EXISTS idx_overrides_week ON override_log(user_id, iso_year, iso_week);
`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// CreateGoal inserts a new active goal and returns it with its generated ID.
func (s *Store) CreateGoal(ctx context.Context, g Goal) (Goal, error) {
	g.ID = uuid.NewString()
	if g.Status == "" {
		g.Status = "active"
	}
	now := time.Now().UTC()
	g.CreatedAt, g.UpdatedAt = now, now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO goals (id, user_id, title, description, priority, priority_reasoning, status, target_date, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, g.ID, g.UserID, g.Title, g.Description, g.Priority, g.PriorityReasoning, g.Status, nullIfEmpty(g.TargetDate),
		now.Format(time.RFC3339), now.Format(time.RFC3339))
	if err != nil {
		return Goal{}, fmt.Errorf("insert goal: %w", err)
	}
	return g, nil
}

// ActiveGoals returns active goals ordered by priority descending, capped at limit.
func (s *Store) ActiveGoals(ctx context.Context, userID string, limit int) ([]Goal, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, title, description, priority, priority_reasoning, status, target_date, created_at, updated_at
		FROM goals
		WHERE user_id = ? AND status = 'active'
		ORDER BY priority DESC, created_at ASC
		LIMIT ?
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("query goals: %w", err)
	}
	defer rows.Close()

	var goals []Goal
	for rows.Next() {
		var g Goal
		var description, targetDate sql.NullString
		var createdAt, updatedAt string
		if err := rows.Scan(&g.ID, &g.UserID, &g.Title, &description, &g.Priority, &g.PriorityReasoning, &g.Status, &targetDate, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan goal: %w", err)
		}
		g.Description = description.String
		g.TargetDate = targetDate.String
		g.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		g.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
		goals = append(goals, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate goals: %w", err)
	}
	return goals, nil
}

// CreateTask inserts a new pending task and links it to any given goals.
func (s *Store) CreateTask(ctx context.Context, t Task) (Task, error) {
	t.ID = uuid.NewString()
	if t.Status == "" {
		t.Status = "pending"
	}
	now := time.Now().UTC()
	t.CreatedAt, t.UpdatedAt = now, now

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Task{}, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO tasks (id, user_id, title, description, priority, priority_reasoning, status, estimated_duration, due_date, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, t.ID, t.UserID, t.Title, t.Description, t.Priority, t.PriorityReasoning, t.Status,
		nullIfZero(t.EstimatedDuration), nullIfEmpty(t.DueDate), now.Format(time.RFC3339), now.Format(time.RFC3339))
	if err != nil {
		return Task{}, fmt.Errorf("insert task: %w", err)
	}

	for _, goalID := range t.GoalIDs {
		if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO goal_tasks (goal_id, task_id) VALUES (?, ?)`, goalID, t.ID); err != nil {
			return Task{}, fmt.Errorf("link task to goal %s: %w", goalID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return Task{}, fmt.Errorf("commit transaction: %w", err)
	}
	return t, nil
}

// PendingTasks returns pending and in-progress tasks with their goal links,
// ordered by priority then due date.
func (s *Store) PendingTasks(ctx context.Context, userID string) ([]Task, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT t.id, t.user_id, t.title, t.description, t.priority, t.priority_reasoning, t.status,
		       t.estimated_duration, t.actual_duration, t.due_date, t.created_at, t.updated_at
		FROM tasks t
		WHERE t.user_id = ? AND t.status IN ('pending', 'in_progress')
		ORDER BY t.priority DESC, t.due_date ASC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("query tasks: %w", err)
	}
	defer rows.Close()

	var tasks []Task
	for rows.Next() {
		var t Task
		var description, dueDate sql.NullString
		var estimated, actual sql.NullInt64
		var createdAt, updatedAt string
		if err := rows.Scan(&t.ID, &t.UserID, &t.Title, &description, &t.Priority, &t.PriorityReasoning, &t.Status,
			&estimated, &actual, &dueDate, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		t.Description = description.String
		t.DueDate = dueDate.String
		t.EstimatedDuration = int(estimated.Int64)
		t.ActualDuration = int(actual.Int64)
		t.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		t.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tasks: %w", err)
	}

	for i := range tasks {
		goalRows, err := s.db.QueryContext(ctx, `SELECT goal_id FROM goal_tasks WHERE task_id = ?`, tasks[i].ID)
		if err != nil {
			return nil, fmt.Errorf("query task goals: %w", err)
		}
		for goalRows.Next() {
			var goalID string
			if err := goalRows.Scan(&goalID); err != nil {
				goalRows.Close()
				return nil, fmt.Errorf("scan task goal: %w", err)
			}
			tasks[i].GoalIDs = append(tasks[i].GoalIDs, goalID)
		}
		if err := goalRows.Err(); err != nil {
			goalRows.Close()
			return nil, fmt.Errorf("iterate task goals: %w", err)
		}
		goalRows.Close()
	}
	return tasks, nil
}

// CompleteTask marks a task completed and records its actual duration.
func (s *Store) CompleteTask(ctx context.Context, userID, taskID string, actualDuration int) error {
	now := time.Now().UTC().Format(time.RFC3339)
	res, err := s.db.ExecContext(ctx, `
		UPDATE tasks
		SET status = 'completed', actual_duration = ?, completed_at = ?, updated_at = ?
		WHERE id = ? AND user_id = ?
	`, nullIfZero(actualDuration), now, now, taskID, userID)
	if err != nil {
		return fmt.Errorf("complete task: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("complete task: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("task not found: %s", taskID)
	}
	return nil
}

// CreateEvent inserts a calendar event.
func (s *Store) CreateEvent(ctx context.Context, e CalendarEvent) (CalendarEvent, error) {
	e.ID = uuid.NewString()
	if e.EventType == "" {
		e.EventType = "internal"
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO calendar_events (id, user_id, title, description, start_time, end_time, event_type, is_blocking)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, e.ID, e.UserID, e.Title, e.Description,
		e.StartTime.UTC().Format(time.RFC3339), e.EndTime.UTC().Format(time.RFC3339), e.EventType, boolToInt(e.IsBlocking))
	if err != nil {
		return CalendarEvent{}, fmt.Errorf("insert event: %w", err)
	}
	return e, nil
}

// EventsOverlapping returns events that overlap the given calendar date (UTC),
// ordered by start time.
func (s *Store) EventsOverlapping(ctx context.Context, userID string, date time.Time) ([]CalendarEvent, error) {
	dayStart := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)
	dayEnd := dayStart.Add(24 * time.Hour)

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, title, description, start_time, end_time, event_type, is_blocking
		FROM calendar_events
		WHERE user_id = ? AND start_time < ? AND end_time > ?
		ORDER BY start_time ASC
	`, userID, dayEnd.Format(time.RFC3339), dayStart.Format(time.RFC3339))
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var events []CalendarEvent
	for rows.Next() {
		var e CalendarEvent
		var description sql.NullString
		var start, end string
		var blocking int
		if err := rows.Scan(&e.ID, &e.UserID, &e.Title, &description, &start, &end, &e.EventType, &blocking); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		e.Description = description.String
		e.StartTime, _ = time.Parse(time.RFC3339, start)
		e.EndTime, _ = time.Parse(time.RFC3339, end)
		e.IsBlocking = blocking != 0
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}

// CreateRelationship inserts a relationship with its weekly time budget.
func (s *Store) CreateRelationship(ctx context.Context, r Relationship) (Relationship, error) {
	r.ID = uuid.NewString()
	var lastInteraction any
	if r.LastInteraction != nil {
		lastInteraction = r.LastInteraction.UTC().Format(time.RFC3339)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO relationships (id, user_id, name, relationship_type, priority, time_budget_hours, last_interaction, notes)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, r.ID, r.UserID, r.Name, r.Type, r.Priority, r.TimeBudgetHours, lastInteraction, r.Notes)
	if err != nil {
		return Relationship{}, fmt.Errorf("insert relationship: %w", err)
	}
	return r, nil
}

// Relationships returns all relationships ordered by priority descending.
func (s *Store) Relationships(ctx context.Context, userID string) ([]Relationship, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, name, relationship_type, priority, time_budget_hours, last_interaction, notes
		FROM relationships
		WHERE user_id = ?
		ORDER BY priority DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("query relationships: %w", err)
	}
	defer rows.Close()

	var rels []Relationship
	for rows.Next() {
		var r Relationship
		var budget sql.NullFloat64
		var lastInteraction, notes sql.NullString
		if err := rows.Scan(&r.ID, &r.UserID, &r.Name, &r.Type, &r.Priority, &budget, &lastInteraction, &notes); err != nil {
			return nil, fmt.Errorf("scan relationship: %w", err)
		}
		r.TimeBudgetHours = budget.Float64
		r.Notes = notes.String
		if lastInteraction.Valid {
			t, _ := time.Parse(time.RFC3339, lastInteraction.String)
			r.LastInteraction = &t
		}
		rels = append(rels, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate relationships: %w", err)
	}
	return rels, nil
}

// RecentPerformance aggregates task outcomes updated since the given time.
func (s *Store) RecentPerformance(ctx context.Context, userID string, since time.Time) (Performance, error) {
	var p Performance
	var ratio sql.NullFloat64
	err := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(CASE WHEN status = 'completed' THEN 1 END),
			COUNT(CASE WHEN status = 'cancelled' THEN 1 END),
			AVG(CASE WHEN actual_duration IS NOT NULL AND estimated_duration IS NOT NULL AND estimated_duration > 0
				THEN CAST(actual_duration AS REAL) / estimated_duration END)
		FROM tasks
		WHERE user_id = ? AND updated_at >= ?
	`, userID, since.UTC().Format(time.RFC3339)).Scan(&p.CompletedTasks, &p.CancelledTasks, &ratio)
	if err != nil {
		return Performance{}, fmt.Errorf("query performance: %w", err)
	}
	p.AvgDurationRatio = ratio.Float64
	return p, nil
}

// GetPlan returns the stored plan for (user, date), or nil when none exists.
func (s *Store) GetPlan(ctx context.Context, userID, planDate string) (*PlanRecord, error) {
	var rec PlanRecord
	var planJSON, generatedAt, modifiedAt string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, plan_date, plan_json, reasoning, generated_at, modified_at
		FROM daily_plans
		WHERE user_id = ? AND plan_date = ?
	`, userID, planDate).Scan(&rec.ID, &rec.UserID, &rec.PlanDate, &planJSON, &rec.Reasoning, &generatedAt, &modifiedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get plan: %w", err)
	}

	var p plan.Plan
	if err := json.Unmarshal([]byte(planJSON), &p); err != nil {
		return nil, fmt.Errorf("decode stored plan %s: %w", rec.ID, err)
	}
	rec.Plan = &p
	rec.GeneratedAt, _ = time.Parse(time.RFC3339, generatedAt)
	rec.ModifiedAt, _ = time.Parse(time.RFC3339, modifiedAt)
	return &rec, nil
}

// UpsertPlan stores a plan for (user, date), fully replacing any prior plan
// for that key. Regeneration is replacement, not merge.
func (s *Store) UpsertPlan(ctx context.Context, userID, planDate string, p *plan.Plan) (*PlanRecord, error) {
	planJSON, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshal plan: %w", err)
	}

	id := uuid.NewString()
	now := time.Now().UTC()
	nowStr := now.Format(time.RFC3339)

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO daily_plans (id, user_id, plan_date, plan_json, reasoning, generated_at, modified_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, plan_date) DO UPDATE SET
			plan_json = excluded.plan_json,
			reasoning = excluded.reasoning,
			modified_at = excluded.modified_at
	`, id, userID, planDate, string(planJSON), p.Reasoning, nowStr, nowStr)
	if err != nil {
		return nil, fmt.Errorf("upsert plan: %w", err)
	}

	// The conflict path keeps the original row id, so read the row back.
	return s.GetPlan(ctx, userID, planDate)
}

// PlanCount returns the number of stored plan rows for a user.
func (s *Store) PlanCount(ctx context.Context, userID string) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM daily_plans WHERE user_id = ?`, userID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count plans: %w", err)
	}
	return n, nil
}

// CountOverrides returns the number of overrides logged in the given ISO week.
func (s *Store) CountOverrides(ctx context.Context, userID string, isoYear, isoWeek int) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM override_log WHERE user_id = ? AND iso_year = ? AND iso_week = ?`,
		userID, isoYear, isoWeek).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count overrides: %w", err)
	}
	return n, nil
}

// InsertOverrideIfUnder atomically re-checks the weekly count against limit
// and inserts the record in the same transaction. Returns false without
// inserting when the count is already at the limit.
func (s *Store) InsertOverrideIfUnder(ctx context.Context, rec OverrideRecord, limit int) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	var count int
	err = tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM override_log WHERE user_id = ? AND iso_year = ? AND iso_week = ?`,
		rec.UserID, rec.ISOYear, rec.ISOWeek).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("count overrides: %w", err)
	}
	if count >= limit {
		return false, nil
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO override_log (id, user_id, plan_id, override_type, override_reason, iso_year, iso_week, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, rec.ID, rec.UserID, rec.PlanID, rec.Type, rec.Reason, rec.ISOYear, rec.ISOWeek, rec.CreatedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return false, fmt.Errorf("insert override: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit transaction: %w", err)
	}
	return true, nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullIfZero(n int) any {
	if n == 0 {
		return nil
	}
	return n
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

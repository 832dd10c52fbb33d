package chat

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"metaplan/internal/engine"
	"metaplan/internal/llm"
	"metaplan/internal/override"
	"metaplan/internal/planctx"
	"metaplan/internal/store"
)

func TestDetectIntent(t *testing.T) {
	cases := []struct {
		message string
		want    string
	}{
		{"Please plan my day", IntentGeneratePlan},
		{"can you plan tomorrow for me?", IntentGeneratePlan},
		{"REPLAN everything", IntentGeneratePlan},
		{"generate a plan", IntentGeneratePlan},
		{"generate plan for next week", IntentGeneratePlan},
		{"create plan", IntentGeneratePlan},
		{"schedule my day around the gym", IntentGeneratePlan},
		{"generate schedule", IntentGeneratePlan},
		{"help me structure the website rebuild", IntentStructureProjects},
		{"break this down into steps", IntentStructureProjects},
		{"split into tasks: garden overhaul", IntentStructureProjects},
		{"how was my week?", IntentPassthrough},
		{"", IntentPassthrough},
	}
	for _, tc := range cases {
		if got := DetectIntent(tc.message); got != tc.want {
			t.Fatalf("DetectIntent(%q) = %s, want %s", tc.message, got, tc.want)
		}
	}
}

func newBridge(t *testing.T, provider llm.Provider) *Bridge {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "metaplan.sqlite"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	agg := &planctx.Aggregator{Store: s, Governor: override.NewGovernor(s, 5), MaxGoals: 5}
	client := llm.NewClient(provider, 3, time.Millisecond, nil)
	eng := engine.New(agg, client, s, nil, nil, 3, 30*time.Second)

	b := NewBridge(eng, agg, client, nil, nil)
	b.Now = func() time.Time { return time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC) }
	return b
}

func TestRespondGeneratesPlan(t *testing.T) {
	b := newBridge(t, &llm.MockProvider{})

	reply := b.Respond(context.Background(), "u1", "plan my day please")
	if reply.Intent != IntentGeneratePlan {
		t.Fatalf("wrong intent: %s", reply.Intent)
	}
	if reply.Code != "" {
		t.Fatalf("unexpected error code %s: %s", reply.Code, reply.Text)
	}
	if !strings.Contains(reply.Text, "2026-03-02") {
		t.Fatalf("reply should name today's date:\n%s", reply.Text)
	}
	if !strings.Contains(reply.Text, "09:00-11:00") {
		t.Fatalf("reply should list the plan's blocks:\n%s", reply.Text)
	}
	if !reply.PlanUpdated {
		t.Fatalf("successful generation must set PlanUpdated")
	}
	if len(reply.Actions) != 1 || reply.Actions[0].Type != "generate_plan" || reply.Actions[0].PlanID == "" {
		t.Fatalf("unexpected actions: %+v", reply.Actions)
	}
	if reply.Actions[0].Date != "2026-03-02" || reply.Actions[0].Replaced {
		t.Fatalf("unexpected action details: %+v", reply.Actions[0])
	}
}

func TestRespondPlansTomorrow(t *testing.T) {
	b := newBridge(t, &llm.MockProvider{})

	reply := b.Respond(context.Background(), "u1", "plan tomorrow")
	if reply.Code != "" {
		t.Fatalf("unexpected error code %s: %s", reply.Code, reply.Text)
	}
	if !strings.Contains(reply.Text, "2026-03-03") {
		t.Fatalf("tomorrow should resolve to 2026-03-03:\n%s", reply.Text)
	}
}

func TestRespondSanitizesNotConfigured(t *testing.T) {
	b := newBridge(t, nil)

	reply := b.Respond(context.Background(), "u1", "plan my day")
	if reply.Code != CodeLLMNotConfigured {
		t.Fatalf("expected %s, got %s", CodeLLMNotConfigured, reply.Code)
	}
	if strings.Contains(reply.Text, "ErrNotConfigured") || strings.Contains(reply.Text, "llm provider") {
		t.Fatalf("internal error text leaked into reply: %s", reply.Text)
	}
}

type badJSONProvider struct{}

func (badJSONProvider) Name() string { return "bad" }
func (badJSONProvider) Complete(ctx context.Context, req llm.Request) (string, error) {
	return "definitely not a plan", nil
}

func TestRespondSanitizesGenerationFailure(t *testing.T) {
	b := newBridge(t, badJSONProvider{})

	reply := b.Respond(context.Background(), "u1", "plan my day")
	if reply.Code != CodePlanGenerationFailed {
		t.Fatalf("expected %s, got %s", CodePlanGenerationFailed, reply.Code)
	}
	if strings.Contains(reply.Text, "invalid_json") || strings.Contains(reply.Text, "round trips") {
		t.Fatalf("validator internals leaked into reply: %s", reply.Text)
	}
}

func TestRespondStructuresProjects(t *testing.T) {
	b := newBridge(t, &llm.MockProvider{})

	reply := b.Respond(context.Background(), "u1", "help me break down the kitchen renovation")
	if reply.Intent != IntentStructureProjects {
		t.Fatalf("wrong intent: %s", reply.Intent)
	}
	if reply.Code != "" || reply.Text == "" {
		t.Fatalf("unexpected reply: %+v", reply)
	}
}

func TestRespondPassthrough(t *testing.T) {
	b := newBridge(t, &llm.MockProvider{})

	reply := b.Respond(context.Background(), "u1", "how do priorities work?")
	if reply.Intent != IntentPassthrough {
		t.Fatalf("wrong intent: %s", reply.Intent)
	}
	if reply.Code != "" || reply.Text == "" {
		t.Fatalf("unexpected reply: %+v", reply)
	}
	if reply.PlanUpdated || len(reply.Actions) != 0 {
		t.Fatalf("passthrough must not carry actions: %+v", reply)
	}
}

// recordingProvider captures the last request so tests can inspect the
// prompt the bridge built.
type recordingProvider struct {
	last llm.Request
}

func (p *recordingProvider) Name() string { return "recording" }
func (p *recordingProvider) Complete(ctx context.Context, req llm.Request) (string, error) {
	p.last = req
	return "Priorities run 1 to 5.", nil
}

func TestPassthroughCarriesContextSummary(t *testing.T) {
	provider := &recordingProvider{}
	b := newBridge(t, provider)
	ctx := context.Background()

	if _, err := b.Aggregator.Store.CreateGoal(ctx, store.Goal{
		UserID: "u1", Title: "Ship v2", Priority: 5, PriorityReasoning: "contract deadline",
	}); err != nil {
		t.Fatalf("create goal: %v", err)
	}
	if _, err := b.Aggregator.Store.CreateTask(ctx, store.Task{
		UserID: "u1", Title: "Write migration", Priority: 4, PriorityReasoning: "blocks release",
	}); err != nil {
		t.Fatalf("create task: %v", err)
	}

	reply := b.Respond(ctx, "u1", "how do priorities work?")
	if reply.Intent != IntentPassthrough || reply.Code != "" {
		t.Fatalf("unexpected reply: %+v", reply)
	}

	user := provider.last.User
	for _, want := range []string{
		"Ship v2",
		"Write migration",
		"No plan exists for today yet",
		"overrides used this week: 0 of 5",
		"User message: how do priorities work?",
	} {
		if !strings.Contains(user, want) {
			t.Fatalf("passthrough prompt missing %q:\n%s", want, user)
		}
	}
}

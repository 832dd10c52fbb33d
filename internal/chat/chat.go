// Package chat maps conversational messages onto planning actions. The
// bridge classifies each message by intent, dispatches it, and turns every
// failure into a sanitized reply: error codes and plain language, never
// stack traces or provider responses.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"metaplan/internal/audit"
	"metaplan/internal/engine"
	"metaplan/internal/llm"
	"metaplan/internal/planctx"
)

// Intents the bridge can dispatch.
const (
	IntentGeneratePlan      = "generate_plan"
	IntentStructureProjects = "structure_projects"
	IntentPassthrough       = "passthrough"
)

// Error codes carried in replies. They are the whole error surface: callers
// and users never see underlying error text.
const (
	CodeLLMNotConfigured     = "llm_not_configured"
	CodePlanGenerationFailed = "plan_generation_failed"
	CodeGenerationInProgress = "generation_in_progress"
	CodeInternalError        = "internal_error"
)

// Action is one structured outcome attached to a reply, so callers can react
// to what happened without parsing the reply text.
type Action struct {
	Type     string `json:"type"`
	PlanID   string `json:"plan_id,omitempty"`
	Date     string `json:"date,omitempty"`
	Replaced bool   `json:"replaced,omitempty"`
}

// Reply is the bridge's answer to one message.
type Reply struct {
	Intent      string   `json:"intent"`
	Text        string   `json:"text"`
	Code        string   `json:"code,omitempty"`
	Actions     []Action `json:"actions,omitempty"`
	PlanUpdated bool     `json:"plan_updated"`
}

// Bridge dispatches chat messages to the planning engine and the model.
type Bridge struct {
	Engine     *engine.Orchestrator
	Aggregator *planctx.Aggregator
	Client     *llm.Client
	Audit      *audit.Logger
	Logger     *zap.Logger
	Now        func() time.Time
}

// NewBridge returns a Bridge over the given engine and model client. The
// aggregator feeds conversational replies the user's real planning state.
func NewBridge(e *engine.Orchestrator, agg *planctx.Aggregator, c *llm.Client, auditLog *audit.Logger, logger *zap.Logger) *Bridge {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bridge{Engine: e, Aggregator: agg, Client: c, Audit: auditLog, Logger: logger, Now: time.Now}
}

// Respond handles one message for one user.
func (b *Bridge) Respond(ctx context.Context, userID, message string) Reply {
	intent := DetectIntent(message)

	var reply Reply
	switch intent {
	case IntentGeneratePlan:
		reply = b.generatePlan(ctx, userID, message)
	case IntentStructureProjects:
		reply = b.structureProjects(ctx, message)
	default:
		reply = b.passthrough(ctx, userID, message)
	}
	reply.Intent = intent

	if b.Audit != nil {
		if err := b.Audit.LogEvent(userID, audit.EventChatAction, map[string]any{
			"intent": intent, "code": reply.Code,
		}); err != nil {
			b.Logger.Warn("audit log failed", zap.Error(err))
		}
	}
	return reply
}

// DetectIntent classifies a message by keyword. Planning phrases win over
// structuring phrases; everything else passes through to the model.
func DetectIntent(message string) string {
	m := strings.ToLower(message)

	planPhrases := []string{
		"plan my day", "plan today", "plan tomorrow",
		"generate plan", "generate a plan", "generate my plan",
		"create plan", "create a plan",
		"schedule my day", "generate schedule",
		"replan", "make me a plan", "new plan",
	}
	for _, p := range planPhrases {
		if strings.Contains(m, p) {
			return IntentGeneratePlan
		}
	}

	structurePhrases := []string{"structure", "break down", "break this down", "organize my project", "organize this project", "split into tasks"}
	for _, p := range structurePhrases {
		if strings.Contains(m, p) {
			return IntentStructureProjects
		}
	}

	return IntentPassthrough
}

func (b *Bridge) generatePlan(ctx context.Context, userID, message string) Reply {
	date := b.Now().UTC().Format("2006-01-02")
	if strings.Contains(strings.ToLower(message), "tomorrow") {
		date = b.Now().UTC().AddDate(0, 0, 1).Format("2006-01-02")
	}

	res, err := b.Engine.Generate(ctx, engine.Request{UserID: userID, Date: date})
	if err != nil {
		return b.sanitize(err, date)
	}

	var lines []string
	lines = append(lines, fmt.Sprintf("Your plan for %s is ready.", date))
	for _, tb := range res.Record.Plan.TimeBlocks {
		lines = append(lines, fmt.Sprintf("%s-%s %s", tb.StartTime, tb.EndTime, tb.Activity))
	}
	for _, w := range res.Record.Plan.Warnings {
		lines = append(lines, "Note: "+w)
	}
	if res.Replaced {
		lines = append(lines, "This replaces the previous plan for that day.")
	}
	return Reply{
		Text:        strings.Join(lines, "\n"),
		PlanUpdated: true,
		Actions: []Action{{
			Type:     "generate_plan",
			PlanID:   res.Record.ID,
			Date:     date,
			Replaced: res.Replaced,
		}},
	}
}

// sanitize converts internal failures into user-safe replies. Model output
// and error internals never reach the user.
func (b *Bridge) sanitize(err error, date string) Reply {
	switch {
	case errors.Is(err, llm.ErrNotConfigured):
		return Reply{
			Code: CodeLLMNotConfigured,
			Text: "Planning is not set up yet: no language model is configured. Add an API key and try again.",
		}
	case errors.Is(err, engine.ErrGenerationInProgress):
		return Reply{
			Code: CodeGenerationInProgress,
			Text: fmt.Sprintf("A plan for %s is already being generated. It will be ready shortly.", date),
		}
	}

	var ge *engine.GenerationError
	if errors.As(err, &ge) {
		b.Logger.Warn("plan generation failed", zap.String("reason", ge.Reason), zap.Error(err))
		return Reply{
			Code: CodePlanGenerationFailed,
			Text: fmt.Sprintf("I couldn't produce a valid plan for %s after several tries. Please try again in a bit.", date),
		}
	}

	b.Logger.Error("chat action failed", zap.Error(err))
	return Reply{
		Code: CodeInternalError,
		Text: "Something went wrong on my side. Please try again.",
	}
}

const structureSystemPrompt = `You help break vague projects into concrete, schedulable tasks. For the project described, respond with a short list of tasks. Each task gets one line: a verb-first title, an estimated duration in minutes, and a priority 1-5 with a one-clause justification.`

func (b *Bridge) structureProjects(ctx context.Context, message string) Reply {
	out, err := b.Client.Complete(ctx, llm.Request{
		System:      structureSystemPrompt,
		User:        message,
		Temperature: 0.7,
		MaxTokens:   800,
	})
	if err != nil {
		return b.sanitize(err, "")
	}
	// Proposals only. Nothing is written until the user adds tasks themselves.
	return Reply{
		Text:    strings.TrimSpace(out),
		Actions: []Action{{Type: "propose_tasks"}},
	}
}

const passthroughSystemPrompt = `You are the conversational side of a personal planning system. Answer briefly and practically, using the planning context when it is relevant. If the user seems to want a daily plan, tell them to ask you to plan their day.`

func (b *Bridge) passthrough(ctx context.Context, userID, message string) Reply {
	user := message
	if summary := b.contextSummary(ctx, userID); summary != "" {
		user = summary + "\nUser message: " + message
	}

	out, err := b.Client.Complete(ctx, llm.Request{
		System:      passthroughSystemPrompt,
		User:        user,
		Temperature: 0.7,
		MaxTokens:   500,
	})
	if err != nil {
		return b.sanitize(err, "")
	}
	return Reply{Text: strings.TrimSpace(out)}
}

// contextSummary renders a compact snapshot of the user's planning state for
// conversational replies. A failure to gather is not fatal: chat still
// answers, just without context.
func (b *Bridge) contextSummary(ctx context.Context, userID string) string {
	if b.Aggregator == nil {
		return ""
	}
	date := b.Now().UTC().Format("2006-01-02")
	c, err := b.Aggregator.Gather(ctx, userID, date)
	if err != nil {
		b.Logger.Warn("chat context unavailable", zap.Error(err))
		return ""
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Context for %s:\n", date)

	sb.WriteString("Active goals:\n")
	if len(c.Goals) == 0 {
		sb.WriteString("(none)\n")
	}
	for _, g := range c.Goals {
		fmt.Fprintf(&sb, "- %s (priority %d/5)\n", g.Title, g.Priority)
	}

	sb.WriteString("Pending tasks:\n")
	if len(c.Tasks) == 0 {
		sb.WriteString("(none)\n")
	}
	for _, t := range c.Tasks {
		fmt.Fprintf(&sb, "- %s (priority %d/5)\n", t.Title, t.Priority)
	}

	if rec, err := b.Aggregator.Store.GetPlan(ctx, userID, date); err == nil && rec != nil {
		fmt.Fprintf(&sb, "Today's plan has %d time blocks.\n", len(rec.Plan.TimeBlocks))
	} else {
		sb.WriteString("No plan exists for today yet.\n")
	}

	fmt.Fprintf(&sb, "Manual overrides used this week: %d of %d.\n", c.Overrides.Used, c.Overrides.Limit)
	return sb.String()
}

// Package engine orchestrates plan generation end to end: gather context,
// compile the prompt, call the model, validate the output, and retry the
// whole loop with feedback when validation rejects a plan. Only a plan that
// passed every check is ever written to the store.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"metaplan/internal/audit"
	"metaplan/internal/llm"
	"metaplan/internal/plan"
	"metaplan/internal/planctx"
	"metaplan/internal/prompt"
	"metaplan/internal/store"
)

// Failure reasons carried by GenerationError.
const (
	ReasonLLMUnavailable  = "llm_unavailable"
	ReasonSchemaInvalid   = "schema_invalid"
	ReasonSemanticInvalid = "semantic_invalid"
)

// GenerationError reports why generation gave up after exhausting its
// round-trip budget or hitting an unrecoverable model failure.
type GenerationError struct {
	Reason     string
	RoundTrips int
	Err        error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("plan generation failed (%s) after %d round trips: %v", e.Reason, e.RoundTrips, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// ErrGenerationInProgress is returned to non-waiting callers when another
// generation for the same (user, date) is already running.
var ErrGenerationInProgress = errors.New("plan generation already in progress for this user and date")

// ErrTimedOut is returned when one full generation exceeds its overall budget.
var ErrTimedOut = errors.New("plan generation timed out")

// Request asks for one plan.
type Request struct {
	UserID string
	Date   string

	// Wait makes the caller block on an in-flight generation for the same
	// key and share its result instead of failing fast.
	Wait bool
}

// Result is a completed generation.
type Result struct {
	Record     *store.PlanRecord
	RoundTrips int

	// Replaced is true when a prior plan for the date was overwritten.
	Replaced bool

	// Diff is a unified diff against the replaced plan, "" for first plans.
	Diff string
}

// Orchestrator runs the generation pipeline. At most one generation per
// (user, date) runs at a time; concurrent requests either share the winner's
// result or fail fast.
type Orchestrator struct {
	Aggregator *planctx.Aggregator
	Client     *llm.Client
	Store      *store.Store
	Audit      *audit.Logger
	Logger     *zap.Logger

	MaxRoundTrips   int
	GenerateTimeout time.Duration

	mu       sync.Mutex
	inflight map[string]*inflight
}

type inflight struct {
	done   chan struct{}
	result *Result
	err    error
}

// New returns an orchestrator with the given round-trip budget and timeout.
// The budget is floored at one round trip.
func New(agg *planctx.Aggregator, client *llm.Client, s *store.Store, auditLog *audit.Logger, logger *zap.Logger, maxRoundTrips int, timeout time.Duration) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxRoundTrips < 1 {
		maxRoundTrips = 1
	}
	return &Orchestrator{
		Aggregator:      agg,
		Client:          client,
		Store:           s,
		Audit:           auditLog,
		Logger:          logger,
		MaxRoundTrips:   maxRoundTrips,
		GenerateTimeout: timeout,
		inflight:        make(map[string]*inflight),
	}
}

// Generate produces, validates and stores a plan for (user, date). A second
// call for the same key while one is running either blocks and shares the
// result (Wait) or returns ErrGenerationInProgress.
func (o *Orchestrator) Generate(ctx context.Context, req Request) (*Result, error) {
	key := req.UserID + "\x00" + req.Date

	o.mu.Lock()
	if fl, ok := o.inflight[key]; ok {
		o.mu.Unlock()
		if !req.Wait {
			return nil, ErrGenerationInProgress
		}
		select {
		case <-fl.done:
			return fl.result, fl.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	fl := &inflight{done: make(chan struct{})}
	o.inflight[key] = fl
	o.mu.Unlock()

	fl.result, fl.err = o.generate(ctx, req)

	o.mu.Lock()
	delete(o.inflight, key)
	o.mu.Unlock()
	close(fl.done)

	return fl.result, fl.err
}

func (o *Orchestrator) generate(ctx context.Context, req Request) (*Result, error) {
	ctx, cancel := context.WithTimeout(ctx, o.GenerateTimeout)
	defer cancel()

	c, err := o.Aggregator.Gather(ctx, req.UserID, req.Date)
	if err != nil {
		return nil, err
	}
	refs := c.Refs()

	log := o.Logger.With(zap.String("user_id", req.UserID), zap.String("date", req.Date))

	var violations []string
	var lastRule *plan.RuleError
	for trip := 1; trip <= o.MaxRoundTrips; trip++ {
		p := prompt.Compile(c, violations)

		raw, err := o.Client.Complete(ctx, llm.Request{System: p.System, User: p.User, JSONMode: true})
		if err != nil {
			// Only the orchestrator's own deadline is a generation timeout.
			// A per-call timeout that exhausts the client's retries is the
			// provider being unavailable, not the budget running out.
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return nil, fmt.Errorf("%w after %s", ErrTimedOut, o.GenerateTimeout)
			}
			if errors.Is(err, context.Canceled) || errors.Is(err, llm.ErrNotConfigured) {
				return nil, err
			}
			o.auditEvent(req.UserID, audit.EventPlanRejected, map[string]any{
				"date": req.Date, "reason": ReasonLLMUnavailable, "round_trips": trip,
			})
			return nil, &GenerationError{Reason: ReasonLLMUnavailable, RoundTrips: trip, Err: err}
		}

		generated, rerr := validateAttempt(raw, req.Date, refs)
		if rerr != nil {
			lastRule = rerr
			violations = []string{rerr.Error()}
			log.Warn("generated plan rejected",
				zap.Int("round_trip", trip),
				zap.String("rule", rerr.Rule),
				zap.String("detail", rerr.Detail))
			continue
		}

		return o.commit(ctx, req, generated, trip, log)
	}

	reason := ReasonSchemaInvalid
	if lastRule != nil && !lastRule.Structural() {
		reason = ReasonSemanticInvalid
	}
	o.auditEvent(req.UserID, audit.EventPlanRejected, map[string]any{
		"date": req.Date, "reason": reason, "round_trips": o.MaxRoundTrips, "last_rule": lastRule.Rule,
	})
	return nil, &GenerationError{Reason: reason, RoundTrips: o.MaxRoundTrips, Err: lastRule}
}

// validateAttempt parses one model output and runs the full rule set,
// including the requested-date check the validator itself cannot know about.
func validateAttempt(raw, date string, refs plan.Refs) (*plan.Plan, *plan.RuleError) {
	p, err := plan.Parse(raw)
	if err != nil {
		var re *plan.RuleError
		if errors.As(err, &re) {
			return nil, re
		}
		return nil, &plan.RuleError{Rule: plan.RuleInvalidJSON, Detail: err.Error()}
	}
	if err := plan.Validate(p, refs); err != nil {
		var re *plan.RuleError
		if errors.As(err, &re) {
			return nil, re
		}
		return nil, &plan.RuleError{Rule: plan.RuleInvalidJSON, Detail: err.Error()}
	}
	if p.Date != date {
		return nil, &plan.RuleError{Rule: plan.RuleInvalidDate, Detail: fmt.Sprintf("plan is for %s, requested %s", p.Date, date)}
	}
	return p, nil
}

func (o *Orchestrator) commit(ctx context.Context, req Request, generated *plan.Plan, trips int, log *zap.Logger) (*Result, error) {
	prior, err := o.Store.GetPlan(ctx, req.UserID, req.Date)
	if err != nil {
		return nil, err
	}

	rec, err := o.Store.UpsertPlan(ctx, req.UserID, req.Date, generated)
	if err != nil {
		return nil, err
	}

	res := &Result{Record: rec, RoundTrips: trips, Replaced: prior != nil}
	event := audit.EventPlanGenerated
	if prior != nil {
		event = audit.EventPlanReplaced
		res.Diff, err = plan.Diff(prior.Plan, generated)
		if err != nil {
			log.Warn("plan diff failed", zap.Error(err))
			res.Diff = ""
		}
	}

	o.auditEvent(req.UserID, event, map[string]any{
		"date":        req.Date,
		"plan_id":     rec.ID,
		"round_trips": trips,
		"time_blocks": len(generated.TimeBlocks),
		"warnings":    generated.Warnings,
	})
	log.Info("plan stored",
		zap.String("plan_id", rec.ID),
		zap.Int("round_trips", trips),
		zap.Bool("replaced", res.Replaced))
	return res, nil
}

// auditEvent logs to the audit trail; audit trouble never fails generation.
func (o *Orchestrator) auditEvent(userID, eventType string, payload map[string]any) {
	if o.Audit == nil {
		return
	}
	if err := o.Audit.LogEvent(userID, eventType, payload); err != nil {
		o.Logger.Warn("audit log failed", zap.String("event", eventType), zap.Error(err))
	}
}

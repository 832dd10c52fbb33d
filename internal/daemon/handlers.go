package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"metaplan/internal/engine"
	"metaplan/internal/notify"
)

// DefaultHandlers returns the map of built-in daemon handlers.
func DefaultHandlers() map[string]HandlerFunc {
	return map[string]HandlerFunc{
		"plan_generate": handlePlanGenerate,
	}
}

// handlePlanGenerate runs the nightly plan generation. The payload names the
// plan date; without one the job plans the next calendar day. A generation
// that exhausts its retries fails the job and notifies, but a concurrent
// manual generation for the same date is not an error: the job waits and
// shares its result.
func handlePlanGenerate(ctx context.Context, d *Daemon, job *Job) (any, error) {
	if d.Engine == nil {
		return nil, fmt.Errorf("daemon has no generation engine")
	}

	var payload struct {
		PlanDate string `json:"plan_date"`
	}
	if job.PayloadJSON != "" && job.PayloadJSON != "{}" {
		if err := json.Unmarshal([]byte(job.PayloadJSON), &payload); err != nil {
			return nil, fmt.Errorf("parse payload: %w", err)
		}
	}

	date := payload.PlanDate
	if date == "" {
		date = time.Now().UTC().AddDate(0, 0, 1).Format("2006-01-02")
	} else if _, err := time.Parse("2006-01-02", date); err != nil {
		return nil, fmt.Errorf("parse plan_date: %w", err)
	}

	res, err := d.Engine.Generate(ctx, engine.Request{
		UserID: d.UserID,
		Date:   date,
		Wait:   true,
	})
	if err != nil {
		reason := "generation failed"
		var ge *engine.GenerationError
		if errors.As(err, &ge) {
			reason = ge.Reason
		}
		title, message := notify.FormatPlanFailed(date, reason)
		_ = d.Notifier.Send(title, message)
		return nil, fmt.Errorf("generate plan for %s: %w", date, err)
	}

	title, message := notify.FormatPlanReady(date, len(res.Record.Plan.TimeBlocks), len(res.Record.Plan.Warnings))
	_ = d.Notifier.Send(title, message)

	return map[string]any{
		"plan_id":     res.Record.ID,
		"plan_date":   date,
		"round_trips": res.RoundTrips,
		"replaced":    res.Replaced,
		"time_blocks": len(res.Record.Plan.TimeBlocks),
	}, nil
}

// Package override enforces the weekly manual-override quota. Plans are
// machine-generated; a manual change is an exception that is logged and
// counted against a fixed per-ISO-week budget.
package override

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"metaplan/internal/store"
)

// Status is a snapshot of the quota for one ISO week.
type Status struct {
	ISOYear   int    `json:"iso_year"`
	ISOWeek   int    `json:"iso_week"`
	Used      int    `json:"used"`
	Limit     int    `json:"limit"`
	Remaining int    `json:"remaining"`
	WeekEnds  string `json:"week_ends"`
}

// LimitExceededError is returned when the weekly budget is spent. It carries
// the status so callers can tell the user when the quota resets.
type LimitExceededError struct {
	Status Status
}

func (e *LimitExceededError) Error() string {
	return fmt.Sprintf("override limit reached: %d of %d used for week %d-W%02d, resets %s",
		e.Status.Used, e.Status.Limit, e.Status.ISOYear, e.Status.ISOWeek, e.Status.WeekEnds)
}

// Governor counts and admits overrides against the weekly limit.
type Governor struct {
	Store *store.Store
	Limit int
	Now   func() time.Time
}

// NewGovernor returns a Governor with the given weekly limit.
func NewGovernor(s *store.Store, limit int) *Governor {
	return &Governor{Store: s, Limit: limit, Now: time.Now}
}

// StatusFor returns the quota snapshot for the week containing now.
func (g *Governor) StatusFor(ctx context.Context, userID string) (Status, error) {
	now := g.Now().UTC()
	year, week := now.ISOWeek()
	used, err := g.Store.CountOverrides(ctx, userID, year, week)
	if err != nil {
		return Status{}, fmt.Errorf("override status: %w", err)
	}
	return g.status(now, year, week, used), nil
}

// Record logs one override if the weekly budget allows it. The count check
// and the insert happen in a single transaction, so concurrent calls cannot
// push the week past the limit. On refusal it returns *LimitExceededError.
func (g *Governor) Record(ctx context.Context, userID, planID, overrideType, reason string) (Status, error) {
	now := g.Now().UTC()
	year, week := now.ISOWeek()

	ok, err := g.Store.InsertOverrideIfUnder(ctx, store.OverrideRecord{
		ID:        uuid.NewString(),
		UserID:    userID,
		PlanID:    planID,
		Type:      overrideType,
		Reason:    reason,
		ISOYear:   year,
		ISOWeek:   week,
		CreatedAt: now,
	}, g.Limit)
	if err != nil {
		return Status{}, fmt.Errorf("record override: %w", err)
	}

	used, err := g.Store.CountOverrides(ctx, userID, year, week)
	if err != nil {
		return Status{}, fmt.Errorf("record override: %w", err)
	}
	st := g.status(now, year, week, used)
	if !ok {
		return st, &LimitExceededError{Status: st}
	}
	return st, nil
}

func (g *Governor) status(now time.Time, year, week, used int) Status {
	remaining := g.Limit - used
	if remaining < 0 {
		remaining = 0
	}
	return Status{
		ISOYear:   year,
		ISOWeek:   week,
		Used:      used,
		Limit:     g.Limit,
		Remaining: remaining,
		WeekEnds:  endOfISOWeek(now).Format("2006-01-02"),
	}
}

// endOfISOWeek returns the Sunday of the ISO week containing t.
func endOfISOWeek(t time.Time) time.Time {
	offset := (7 - int(t.Weekday())) % 7
	return t.AddDate(0, 0, offset)
}

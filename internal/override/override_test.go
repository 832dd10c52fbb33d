package override

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"metaplan/internal/store"
)

func newGovernor(t *testing.T, limit int, now time.Time) *Governor {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "metaplan.sqlite"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	g := NewGovernor(s, limit)
	g.Now = func() time.Time { return now }
	return g
}

func TestRecordUpToLimit(t *testing.T) {
	now := time.Date(2026, 3, 4, 12, 0, 0, 0, time.UTC) // Wednesday, week 10
	g := newGovernor(t, 5, now)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		st, err := g.Record(ctx, "u1", "p1", "manual_edit", "moved a block")
		if err != nil {
			t.Fatalf("record %d: %v", i, err)
		}
		if st.Used != i+1 || st.Remaining != 5-(i+1) {
			t.Fatalf("record %d: unexpected status %+v", i, st)
		}
	}

	st, err := g.Record(ctx, "u1", "p1", "manual_edit", "one too many")
	var lee *LimitExceededError
	if !errors.As(err, &lee) {
		t.Fatalf("expected LimitExceededError, got %v", err)
	}
	if st.Used != 5 || st.Remaining != 0 {
		t.Fatalf("refusal status should show a full week: %+v", st)
	}
	if lee.Status.WeekEnds != "2026-03-08" {
		t.Fatalf("expected week to end on Sunday 2026-03-08, got %s", lee.Status.WeekEnds)
	}

	// The refused override must not be logged.
	after, err := g.StatusFor(ctx, "u1")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if after.Used != 5 {
		t.Fatalf("refused override was recorded: %+v", after)
	}
}

func TestQuotaResetsAcrossISOWeeks(t *testing.T) {
	now := time.Date(2026, 3, 8, 23, 0, 0, 0, time.UTC) // Sunday, week 10
	g := newGovernor(t, 1, now)
	ctx := context.Background()

	if _, err := g.Record(ctx, "u1", "p1", "manual_edit", "first"); err != nil {
		t.Fatalf("record: %v", err)
	}
	if _, err := g.Record(ctx, "u1", "p1", "manual_edit", "second"); err == nil {
		t.Fatalf("expected limit error in same week")
	}

	// Monday of the next ISO week.
	g.Now = func() time.Time { return time.Date(2026, 3, 9, 1, 0, 0, 0, time.UTC) }
	st, err := g.Record(ctx, "u1", "p1", "manual_edit", "new week")
	if err != nil {
		t.Fatalf("record in new week: %v", err)
	}
	if st.Used != 1 {
		t.Fatalf("new week should start fresh: %+v", st)
	}
}

func TestQuotaBucketsAcrossYearBoundary(t *testing.T) {
	// Thursday 2026-12-31 falls in ISO week 2026-W53, and so does Friday
	// 2027-01-01: the calendar year changes mid-bucket.
	now := time.Date(2026, 12, 31, 12, 0, 0, 0, time.UTC)
	g := newGovernor(t, 1, now)
	ctx := context.Background()

	if _, err := g.Record(ctx, "u1", "p1", "manual_edit", "old year"); err != nil {
		t.Fatalf("record: %v", err)
	}

	g.Now = func() time.Time { return time.Date(2027, 1, 1, 12, 0, 0, 0, time.UTC) }
	st, err := g.StatusFor(ctx, "u1")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if st.ISOYear != 2026 || st.ISOWeek != 53 {
		t.Fatalf("2027-01-01 belongs to 2026-W53: %+v", st)
	}
	if st.Used != 1 {
		t.Fatalf("override from 2026-12-31 must count on 2027-01-01: %+v", st)
	}
	if _, err := g.Record(ctx, "u1", "p1", "manual_edit", "same bucket"); err == nil {
		t.Fatalf("expected limit error across the year boundary")
	}

	// Monday 2027-01-04 starts 2027-W01 and a fresh quota.
	g.Now = func() time.Time { return time.Date(2027, 1, 4, 12, 0, 0, 0, time.UTC) }
	st, err = g.Record(ctx, "u1", "p1", "manual_edit", "new iso year")
	if err != nil {
		t.Fatalf("record in new iso year: %v", err)
	}
	if st.ISOYear != 2027 || st.ISOWeek != 1 || st.Used != 1 {
		t.Fatalf("new iso year should start fresh: %+v", st)
	}
}

func TestStatusForEmptyWeek(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC) // ISO week 1 of 2026
	g := newGovernor(t, 5, now)

	st, err := g.StatusFor(context.Background(), "u1")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if st.Used != 0 || st.Remaining != 5 {
		t.Fatalf("unexpected status: %+v", st)
	}
	if st.ISOYear != 2026 || st.ISOWeek != 1 {
		t.Fatalf("unexpected iso week: %+v", st)
	}
}

func TestQuotasAreSeparatePerUser(t *testing.T) {
	now := time.Date(2026, 3, 4, 12, 0, 0, 0, time.UTC)
	g := newGovernor(t, 1, now)
	ctx := context.Background()

	if _, err := g.Record(ctx, "u1", "p1", "manual_edit", "r"); err != nil {
		t.Fatalf("record u1: %v", err)
	}
	if _, err := g.Record(ctx, "u2", "p2", "manual_edit", "r"); err != nil {
		t.Fatalf("u2 must have an independent quota: %v", err)
	}
}

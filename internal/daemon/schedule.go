package daemon

import (
	"fmt"
	"time"
)

// Scheduler enqueues the recurring planning jobs. The single recurring job
// is plan_generate, once per day at the configured planning hour in the
// user's timezone.
type Scheduler struct {
	store        *Store
	location     *time.Location
	planningHour int
}

// NewScheduler creates a scheduler with the given timezone location and
// daily planning hour.
func NewScheduler(store *Store, tzName string, planningHour int) (*Scheduler, error) {
	loc, err := time.LoadLocation(tzName)
	if err != nil {
		return nil, fmt.Errorf("load timezone %s: %w", tzName, err)
	}
	if planningHour < 0 || planningHour > 23 {
		return nil, fmt.Errorf("planning hour %d out of range", planningHour)
	}
	return &Scheduler{
		store:        store,
		location:     loc,
		planningHour: planningHour,
	}, nil
}

// Tick schedules any jobs that became due since the last tick.
func (s *Scheduler) Tick(now time.Time) error {
	watermarkStr, err := s.store.GetKV("scheduler_watermark")
	if err != nil {
		return fmt.Errorf("get scheduler watermark: %w", err)
	}

	var lastWatermark time.Time
	if watermarkStr != "" {
		lastWatermark, err = time.Parse(time.RFC3339, watermarkStr)
		if err != nil {
			return fmt.Errorf("parse watermark: %w", err)
		}
	}

	// On the first run, set the watermark and do not backfill past jobs.
	if lastWatermark.IsZero() {
		if err := s.store.SetKV("scheduler_watermark", now.UTC().Format(time.RFC3339)); err != nil {
			return fmt.Errorf("set initial watermark: %w", err)
		}
		return nil
	}

	if err := s.scheduleDailyAt(lastWatermark, now, "plan_generate", s.planningHour, 0); err != nil {
		return fmt.Errorf("schedule plan_generate: %w", err)
	}

	if err := s.store.SetKV("scheduler_watermark", now.UTC().Format(time.RFC3339)); err != nil {
		return fmt.Errorf("update watermark: %w", err)
	}

	return nil
}

// scheduleDailyAt enqueues one job per day at the specified local hour and
// minute, for every occurrence that fell between the watermark and now.
func (s *Scheduler) scheduleDailyAt(lastWatermark, now time.Time, jobType string, hour, minute int) error {
	start := lastWatermark.In(s.location).Truncate(24 * time.Hour)

	for current := start; !current.After(now); current = current.Add(24 * time.Hour) {
		scheduledTime := time.Date(
			current.Year(), current.Month(), current.Day(),
			hour, minute, 0, 0, s.location,
		)

		if scheduledTime.After(lastWatermark) && !scheduledTime.After(now) {
			// The nightly run prepares the next calendar day.
			payload := map[string]any{
				"scheduled_time": scheduledTime.Format(time.RFC3339),
				"plan_date":      scheduledTime.AddDate(0, 0, 1).Format("2006-01-02"),
			}
			_, _, err := s.store.EnqueueUnique(jobType, scheduledTime, payload)
			if err != nil {
				return fmt.Errorf("enqueue %s at %s: %w", jobType, scheduledTime, err)
			}
		}
	}

	return nil
}

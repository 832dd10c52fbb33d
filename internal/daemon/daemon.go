// Package daemon runs the nightly planning loop: a SQLite-backed job queue,
// a watermark scheduler that enqueues one plan_generate job per day, and a
// lease-based claim loop so multiple daemons never run the same job twice.
package daemon

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"metaplan/internal/audit"
	"metaplan/internal/engine"
	"metaplan/internal/notify"
	"metaplan/internal/workspace"
)

// HandlerFunc is the function signature for job handlers.
type HandlerFunc func(ctx context.Context, d *Daemon, job *Job) (any, error)

// Daemon is a long-running process that claims and executes jobs.
type Daemon struct {
	Workspace    *workspace.Workspace
	Store        *Store
	Scheduler    *Scheduler
	Engine       *engine.Orchestrator
	Handlers     map[string]HandlerFunc
	AuditLogger  *audit.Logger
	Notifier     *notify.Notifier
	Logger       *zap.Logger
	UserID       string
	LeaseOwner   string
	LeaseFor     time.Duration
	PollInterval time.Duration
}

// Config holds daemon configuration.
type Config struct {
	Workspace     *workspace.Workspace
	StorePath     string
	TimeZone      string
	PlanningHour  int
	Engine        *engine.Orchestrator
	UserID        string
	Logger        *zap.Logger
	LeaseOwner    string
	LeaseFor      time.Duration
	PollInterval  time.Duration
	Notifications bool
}

// New creates a new daemon with default handlers.
func New(cfg Config) (*Daemon, error) {
	store, err := Open(cfg.StorePath)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	scheduler, err := NewScheduler(store, cfg.TimeZone, cfg.PlanningHour)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("create scheduler: %w", err)
	}

	if cfg.LeaseOwner == "" {
		hostname, _ := os.Hostname()
		cfg.LeaseOwner = fmt.Sprintf("daemon-%s-%d", hostname, os.Getpid())
	}

	if cfg.LeaseFor == 0 {
		cfg.LeaseFor = 30 * time.Second
	}

	if cfg.PollInterval == 0 {
		cfg.PollInterval = 1 * time.Second
	}

	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	d := &Daemon{
		Workspace:    cfg.Workspace,
		Store:        store,
		Scheduler:    scheduler,
		Engine:       cfg.Engine,
		Handlers:     DefaultHandlers(),
		AuditLogger:  audit.NewLogger(cfg.Workspace.AuditDBPath),
		Notifier:     &notify.Notifier{Enabled: cfg.Notifications},
		Logger:       cfg.Logger,
		UserID:       cfg.UserID,
		LeaseOwner:   cfg.LeaseOwner,
		LeaseFor:     cfg.LeaseFor,
		PollInterval: cfg.PollInterval,
	}

	return d, nil
}

// RegisterHandler registers a handler for a specific job type.
func (d *Daemon) RegisterHandler(jobType string, handler HandlerFunc) {
	d.Handlers[jobType] = handler
}

// Run starts the daemon run loop.
func (d *Daemon) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	go func() {
		<-sigCh
		cancel()
	}()

	startPayload := map[string]any{
		"workspace":     d.Workspace.Root,
		"lease_owner":   d.LeaseOwner,
		"lease_for":     d.LeaseFor.String(),
		"poll_interval": d.PollInterval.String(),
	}
	if err := d.AuditLogger.LogEvent("daemon", "daemon_started", startPayload); err != nil {
		d.Logger.Warn("audit log failed", zap.Error(err))
	}
	d.Logger.Info("daemon started",
		zap.String("workspace", d.Workspace.Root),
		zap.String("lease_owner", d.LeaseOwner))

	ticker := time.NewTicker(d.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			_ = d.AuditLogger.LogEvent("daemon", "daemon_stopped", map[string]any{
				"workspace": d.Workspace.Root,
			})
			d.Logger.Info("daemon stopped")
			return nil

		case <-ticker.C:
			if err := d.Scheduler.Tick(time.Now()); err != nil {
				d.Logger.Error("scheduler tick failed", zap.Error(err))
			}

			if err := d.claimAndExecute(ctx); err != nil {
				d.Logger.Error("job execution failed", zap.Error(err))
			}
		}
	}
}

func (d *Daemon) claimAndExecute(ctx context.Context) error {
	job, err := d.Store.ClaimNext(time.Now(), d.LeaseOwner, d.LeaseFor)
	if err != nil {
		return fmt.Errorf("claim job: %w", err)
	}

	if job == nil {
		return nil
	}

	log := d.Logger.With(zap.String("job_id", job.ID), zap.String("job_type", job.Type))
	if err := d.AuditLogger.LogEvent("daemon", "job_started", map[string]any{
		"job_id":   job.ID,
		"job_type": job.Type,
		"payload":  job.PayloadJSON,
	}); err != nil {
		log.Warn("audit log failed", zap.Error(err))
	}

	handler, ok := d.Handlers[job.Type]
	if !ok {
		err := fmt.Errorf("no handler for job type: %s", job.Type)
		_ = d.Store.Fail(job.ID, err)
		_ = d.AuditLogger.LogEvent("daemon", "job_failed", map[string]any{
			"job_id":   job.ID,
			"job_type": job.Type,
			"error":    err.Error(),
		})
		return err
	}

	result, execErr := handler(ctx, d, job)

	if execErr != nil {
		_ = d.Store.Fail(job.ID, execErr)
		_ = d.AuditLogger.LogEvent("daemon", "job_failed", map[string]any{
			"job_id":   job.ID,
			"job_type": job.Type,
			"error":    execErr.Error(),
		})
		log.Error("job failed", zap.Error(execErr))
		return execErr
	}

	if err := d.Store.Succeed(job.ID, result); err != nil {
		return fmt.Errorf("mark job succeeded: %w", err)
	}

	_ = d.AuditLogger.LogEvent("daemon", "job_succeeded", map[string]any{
		"job_id":   job.ID,
		"job_type": job.Type,
		"result":   result,
	})
	log.Info("job succeeded")

	return nil
}

// Close closes the daemon's store.
func (d *Daemon) Close() error {
	return d.Store.Close()
}

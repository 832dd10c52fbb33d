package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"metaplan/internal/audit"
	"metaplan/internal/chat"
	"metaplan/internal/config"
	"metaplan/internal/daemon"
	"metaplan/internal/engine"
	"metaplan/internal/httpapi"
	"metaplan/internal/llm"
	"metaplan/internal/override"
	"metaplan/internal/plan"
	"metaplan/internal/planctx"
	"metaplan/internal/store"
	"metaplan/internal/workspace"
)

const appName = "metaplan"

func main() {
	flag.String("workspace", "", "Path to workspace root")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "%s: LLM-driven daily planning\n\n", appName)
		fmt.Fprintf(os.Stderr, "Usage:\n  %s [command] [flags]\n\n", appName)
		fmt.Fprintln(os.Stderr, "Commands:")
		fmt.Fprintln(os.Stderr, "  init      Initialize a new workspace")
		fmt.Fprintln(os.Stderr, "  serve     Run the HTTP API")
		fmt.Fprintln(os.Stderr, "  daemon    Manage the nightly planning daemon")
		fmt.Fprintln(os.Stderr, "  plan      Generate and inspect daily plans")
		fmt.Fprintln(os.Stderr, "  override  Manage the weekly override quota")
		fmt.Fprintln(os.Stderr, "  chat      Send one conversational message")
		fmt.Fprintln(os.Stderr, "  goal      Manage goals")
		fmt.Fprintln(os.Stderr, "  task      Manage tasks")
		fmt.Fprintln(os.Stderr, "  event     Manage calendar events")
		fmt.Fprintln(os.Stderr, "  help      Show this help")
		fmt.Fprintln(os.Stderr, "\nFlags:")
		flag.PrintDefaults()
	}

	workspacePath, remaining, err := extractWorkspaceFlag(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	args := remaining
	if len(args) == 0 || args[0] == "help" || args[0] == "-h" || args[0] == "--help" {
		flag.Usage()
		return
	}

	commands := map[string]func([]string, string) error{
		"init":     runInit,
		"serve":    runServe,
		"daemon":   runDaemon,
		"plan":     runPlan,
		"override": runOverride,
		"chat":     runChat,
		"goal":     runGoal,
		"task":     runTask,
		"event":    runEvent,
	}

	cmd, ok := commands[args[0]]
	if !ok {
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", args[0])
		flag.Usage()
		os.Exit(1)
	}
	if err := cmd(args[1:], workspacePath); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func extractWorkspaceFlag(args []string) (string, []string, error) {
	var workspacePath string
	remaining := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "--workspace" {
			if i+1 >= len(args) {
				return "", nil, fmt.Errorf("--workspace requires a value")
			}
			workspacePath = args[i+1]
			i++
			continue
		}
		if strings.HasPrefix(arg, "--workspace=") {
			workspacePath = strings.TrimPrefix(arg, "--workspace=")
			continue
		}
		remaining = append(remaining, arg)
	}
	return workspacePath, remaining, nil
}

// app bundles everything a command needs: configuration, the data store,
// and the generation pipeline built on top of it.
type app struct {
	Workspace  *workspace.Workspace
	Config     config.Config
	Store      *store.Store
	Governor   *override.Governor
	Aggregator *planctx.Aggregator
	Engine     *engine.Orchestrator
	Client     *llm.Client
	Audit      *audit.Logger
	Logger     *zap.Logger
}

func openApp(workspacePath string, verbose bool) (*app, error) {
	if strings.TrimSpace(workspacePath) == "" {
		return nil, fmt.Errorf("--workspace is required")
	}
	ws, err := workspace.Resolve(workspacePath)
	if err != nil {
		return nil, err
	}
	if err := ws.EnsureDirs(); err != nil {
		return nil, err
	}

	cfg, err := config.Load(ws)
	if err != nil {
		return nil, err
	}

	logger := zap.NewNop()
	if verbose {
		logger, err = zap.NewProduction()
		if err != nil {
			return nil, fmt.Errorf("build logger: %w", err)
		}
	}

	s, err := store.Open(ws.StoreDBPath)
	if err != nil {
		return nil, err
	}

	provider, err := buildProvider(cfg)
	if err != nil && !errors.Is(err, llm.ErrNotConfigured) {
		s.Close()
		return nil, err
	}
	client := llm.NewClient(provider, cfg.LLM.MaxAttempts, cfg.LLM.BackoffBase, logger)

	gov := override.NewGovernor(s, cfg.Planning.MaxWeeklyOverrides)
	agg := &planctx.Aggregator{Store: s, Governor: gov, MaxGoals: cfg.Planning.MaxContextGoals}
	auditLog := audit.NewLogger(ws.AuditDBPath)
	eng := engine.New(agg, client, s, auditLog, logger, cfg.Planning.MaxRoundTrips, cfg.Planning.GenerateTimeout)

	return &app{
		Workspace:  ws,
		Config:     cfg,
		Store:      s,
		Governor:   gov,
		Aggregator: agg,
		Engine:     eng,
		Client:     client,
		Audit:      auditLog,
		Logger:     logger,
	}, nil
}

// buildProvider returns the configured model provider. A missing API key is
// reported as llm.ErrNotConfigured with a nil provider, so read-only
// commands still work.
func buildProvider(cfg config.Config) (llm.Provider, error) {
	switch cfg.LLM.Provider {
	case "mock":
		return &llm.MockProvider{}, nil
	case "openai":
		p, err := llm.NewOpenAIProvider(cfg.LLM.BaseURL, cfg.LLM.APIKey, cfg.LLM.Model, cfg.LLM.Timeout)
		if err != nil {
			return nil, err
		}
		return p, nil
	default:
		return nil, fmt.Errorf("unknown llm provider: %s", cfg.LLM.Provider)
	}
}

func (a *app) Close() {
	a.Store.Close()
	_ = a.Logger.Sync()
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal output: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

func runInit(args []string, workspacePath string) error {
	fs := flag.NewFlagSet("init", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if strings.TrimSpace(workspacePath) == "" {
		return fmt.Errorf("--workspace is required")
	}

	root, err := workspace.ResolveRoot(workspacePath)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return fmt.Errorf("create workspace root: %w", err)
	}
	ws, err := workspace.Resolve(root)
	if err != nil {
		return err
	}
	if err := ws.EnsureDirs(); err != nil {
		return err
	}

	// Create the planning database so the first command finds a schema.
	s, err := store.Open(ws.StoreDBPath)
	if err != nil {
		return err
	}
	s.Close()

	logger := audit.NewLogger(ws.AuditDBPath)
	if err := logger.LogEvent("cli", "workspace_init", map[string]any{"workspace": ws.Root}); err != nil {
		fmt.Fprintln(os.Stderr, "audit log failed:", err)
	}

	fmt.Printf("Initialized %s workspace at %s\n", appName, ws.Root)
	return nil
}

func runServe(args []string, workspacePath string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	addr := fs.String("addr", "", "Listen address (default: from config)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	a, err := openApp(workspacePath, true)
	if err != nil {
		return err
	}
	defer a.Close()

	listenAddr := a.Config.Server.Addr
	if *addr != "" {
		listenAddr = *addr
	}

	bridge := chat.NewBridge(a.Engine, a.Aggregator, a.Client, a.Audit, a.Logger)
	srv := httpapi.NewServer(a.Engine, a.Store, a.Governor, bridge, a.Logger, a.Config.UserID)

	a.Logger.Info("http api listening", zap.String("addr", listenAddr))
	return http.ListenAndServe(listenAddr, srv.Router())
}

func runDaemon(args []string, workspacePath string) error {
	if len(args) == 0 || args[0] == "help" || args[0] == "-h" || args[0] == "--help" {
		return fmt.Errorf("%s daemon: missing subcommand (run, status)", appName)
	}

	switch args[0] {
	case "run":
		return runDaemonRun(args[1:], workspacePath)
	case "status":
		return runDaemonStatus(args[1:], workspacePath)
	default:
		return fmt.Errorf("%s daemon: unknown subcommand %q", appName, args[0])
	}
}

func runDaemonRun(args []string, workspacePath string) error {
	fs := flag.NewFlagSet("daemon run", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	tz := fs.String("tz", "Local", "Timezone for the planning schedule")
	notifications := fs.Bool("notifications", true, "Send system notifications")
	if err := fs.Parse(args); err != nil {
		return err
	}

	a, err := openApp(workspacePath, true)
	if err != nil {
		return err
	}
	defer a.Close()

	d, err := daemon.New(daemon.Config{
		Workspace:     a.Workspace,
		StorePath:     a.Workspace.DaemonDBPath,
		TimeZone:      *tz,
		PlanningHour:  a.Config.Planning.PlanningHour,
		Engine:        a.Engine,
		UserID:        a.Config.UserID,
		Logger:        a.Logger,
		Notifications: *notifications,
	})
	if err != nil {
		return err
	}
	defer d.Close()

	return d.Run(context.Background())
}

func runDaemonStatus(args []string, workspacePath string) error {
	fs := flag.NewFlagSet("daemon status", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	limit := fs.Int("limit", 10, "Number of recent jobs to show")
	if err := fs.Parse(args); err != nil {
		return err
	}

	a, err := openApp(workspacePath, false)
	if err != nil {
		return err
	}
	defer a.Close()

	ds, err := daemon.Open(a.Workspace.DaemonDBPath)
	if err != nil {
		return err
	}
	defer ds.Close()

	running, err := ds.ListRunning()
	if err != nil {
		return err
	}
	queued, err := ds.ListQueued(*limit)
	if err != nil {
		return err
	}
	completed, err := ds.ListRecentCompleted(*limit)
	if err != nil {
		return err
	}

	fmt.Printf("Running jobs: %d\n", len(running))
	for _, j := range running {
		fmt.Printf("  %s (%s) since %s by %s\n", j.ID, j.Type, j.StartedAt.Format(time.RFC3339), j.LeaseOwner)
	}
	fmt.Printf("Queued jobs: %d\n", len(queued))
	for _, j := range queued {
		fmt.Printf("  %s (%s) scheduled %s\n", j.ID, j.Type, j.ScheduledAt.Format(time.RFC3339))
	}
	fmt.Printf("Recently completed: %d\n", len(completed))
	for _, j := range completed {
		fmt.Printf("  %s (%s) %s\n", j.ID, j.Type, j.Status)
	}
	return nil
}

func runPlan(args []string, workspacePath string) error {
	if len(args) == 0 || args[0] == "help" || args[0] == "-h" || args[0] == "--help" {
		return fmt.Errorf("%s plan: missing subcommand (generate, show, diff)", appName)
	}

	switch args[0] {
	case "generate":
		return runPlanGenerate(args[1:], workspacePath)
	case "show":
		return runPlanShow(args[1:], workspacePath)
	case "diff":
		return runPlanDiff(args[1:], workspacePath)
	default:
		return fmt.Errorf("%s plan: unknown subcommand %q", appName, args[0])
	}
}

func runPlanGenerate(args []string, workspacePath string) error {
	fs := flag.NewFlagSet("plan generate", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	date := fs.String("date", time.Now().UTC().Format("2006-01-02"), "Plan date (YYYY-MM-DD)")
	wait := fs.Bool("wait", true, "Wait for an in-flight generation instead of failing")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if _, err := time.Parse("2006-01-02", *date); err != nil {
		return fmt.Errorf("parse --date: %w", err)
	}

	a, err := openApp(workspacePath, false)
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := a.Engine.Generate(context.Background(), engine.Request{
		UserID: a.Config.UserID,
		Date:   *date,
		Wait:   *wait,
	})
	if err != nil {
		return err
	}

	fmt.Printf("Plan %s stored for %s (%d round trips)\n", res.Record.ID, *date, res.RoundTrips)
	if res.Replaced && res.Diff != "" {
		fmt.Println("Replaced the previous plan:")
		fmt.Println(res.Diff)
	}
	return printJSON(res.Record.Plan)
}

func runPlanShow(args []string, workspacePath string) error {
	fs := flag.NewFlagSet("plan show", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	date := fs.String("date", time.Now().UTC().Format("2006-01-02"), "Plan date (YYYY-MM-DD)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	a, err := openApp(workspacePath, false)
	if err != nil {
		return err
	}
	defer a.Close()

	rec, err := a.Store.GetPlan(context.Background(), a.Config.UserID, *date)
	if err != nil {
		return err
	}
	if rec == nil {
		return fmt.Errorf("no plan for %s", *date)
	}
	return printJSON(rec.Plan)
}

func runPlanDiff(args []string, workspacePath string) error {
	fs := flag.NewFlagSet("plan diff", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	from := fs.String("from", "", "First plan date (YYYY-MM-DD)")
	to := fs.String("to", time.Now().UTC().Format("2006-01-02"), "Second plan date (YYYY-MM-DD)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *from == "" {
		return fmt.Errorf("--from is required")
	}

	a, err := openApp(workspacePath, false)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := context.Background()
	fromRec, err := a.Store.GetPlan(ctx, a.Config.UserID, *from)
	if err != nil {
		return err
	}
	if fromRec == nil {
		return fmt.Errorf("no plan for %s", *from)
	}
	toRec, err := a.Store.GetPlan(ctx, a.Config.UserID, *to)
	if err != nil {
		return err
	}
	if toRec == nil {
		return fmt.Errorf("no plan for %s", *to)
	}

	diff, err := plan.Diff(fromRec.Plan, toRec.Plan)
	if err != nil {
		return err
	}
	if diff == "" {
		fmt.Println("Plans are identical.")
		return nil
	}
	fmt.Print(diff)
	return nil
}

func runOverride(args []string, workspacePath string) error {
	if len(args) == 0 || args[0] == "help" || args[0] == "-h" || args[0] == "--help" {
		return fmt.Errorf("%s override: missing subcommand (status, log)", appName)
	}

	switch args[0] {
	case "status":
		return runOverrideStatus(args[1:], workspacePath)
	case "log":
		return runOverrideLog(args[1:], workspacePath)
	default:
		return fmt.Errorf("%s override: unknown subcommand %q", appName, args[0])
	}
}

func runOverrideStatus(args []string, workspacePath string) error {
	fs := flag.NewFlagSet("override status", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	if err := fs.Parse(args); err != nil {
		return err
	}

	a, err := openApp(workspacePath, false)
	if err != nil {
		return err
	}
	defer a.Close()

	st, err := a.Governor.StatusFor(context.Background(), a.Config.UserID)
	if err != nil {
		return err
	}
	return printJSON(st)
}

func runOverrideLog(args []string, workspacePath string) error {
	fs := flag.NewFlagSet("override log", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	planID := fs.String("plan", "", "Plan ID being overridden")
	overrideType := fs.String("type", "manual_edit", "Override type")
	reason := fs.String("reason", "", "Why the plan was overridden")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *planID == "" {
		return fmt.Errorf("--plan is required")
	}

	a, err := openApp(workspacePath, false)
	if err != nil {
		return err
	}
	defer a.Close()

	st, err := a.Governor.Record(context.Background(), a.Config.UserID, *planID, *overrideType, *reason)
	if err != nil {
		var lee *override.LimitExceededError
		if errors.As(err, &lee) {
			_ = a.Audit.LogEvent(a.Config.UserID, audit.EventOverrideDenied, map[string]any{"plan_id": *planID})
		}
		return err
	}

	_ = a.Audit.LogEvent(a.Config.UserID, audit.EventOverrideLogged, map[string]any{
		"plan_id": *planID, "type": *overrideType,
	})
	fmt.Printf("Override recorded (%d of %d used this week)\n", st.Used, st.Limit)
	return nil
}

func runChat(args []string, workspacePath string) error {
	fs := flag.NewFlagSet("chat", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	if err := fs.Parse(args); err != nil {
		return err
	}
	message := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if message == "" {
		return fmt.Errorf("usage: %s chat <message>", appName)
	}

	a, err := openApp(workspacePath, false)
	if err != nil {
		return err
	}
	defer a.Close()

	bridge := chat.NewBridge(a.Engine, a.Aggregator, a.Client, a.Audit, a.Logger)
	reply := bridge.Respond(context.Background(), a.Config.UserID, message)
	if reply.Code != "" {
		fmt.Fprintf(os.Stderr, "[%s]\n", reply.Code)
	}
	fmt.Println(reply.Text)
	return nil
}

func runGoal(args []string, workspacePath string) error {
	if len(args) == 0 || args[0] == "help" || args[0] == "-h" || args[0] == "--help" {
		return fmt.Errorf("%s goal: missing subcommand (add, list)", appName)
	}

	switch args[0] {
	case "add":
		return runGoalAdd(args[1:], workspacePath)
	case "list":
		return runGoalList(args[1:], workspacePath)
	default:
		return fmt.Errorf("%s goal: unknown subcommand %q", appName, args[0])
	}
}

func runGoalAdd(args []string, workspacePath string) error {
	fs := flag.NewFlagSet("goal add", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	title := fs.String("title", "", "Goal title")
	description := fs.String("description", "", "Goal description")
	priority := fs.Int("priority", 3, "Priority 1-5")
	reasoning := fs.String("reasoning", "", "Why this priority (required)")
	targetDate := fs.String("target", "", "Target date (YYYY-MM-DD)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *title == "" {
		return fmt.Errorf("--title is required")
	}
	if strings.TrimSpace(*reasoning) == "" {
		return fmt.Errorf("--reasoning is required: unexplained priorities are ignored by the planner")
	}

	a, err := openApp(workspacePath, false)
	if err != nil {
		return err
	}
	defer a.Close()

	g, err := a.Store.CreateGoal(context.Background(), store.Goal{
		UserID:            a.Config.UserID,
		Title:             *title,
		Description:       *description,
		Priority:          *priority,
		PriorityReasoning: *reasoning,
		TargetDate:        *targetDate,
	})
	if err != nil {
		return err
	}
	fmt.Printf("Goal %s created\n", g.ID)
	return nil
}

func runGoalList(args []string, workspacePath string) error {
	fs := flag.NewFlagSet("goal list", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	limit := fs.Int("limit", 20, "Maximum goals to list")
	if err := fs.Parse(args); err != nil {
		return err
	}

	a, err := openApp(workspacePath, false)
	if err != nil {
		return err
	}
	defer a.Close()

	goals, err := a.Store.ActiveGoals(context.Background(), a.Config.UserID, *limit)
	if err != nil {
		return err
	}
	if len(goals) == 0 {
		fmt.Println("No active goals.")
		return nil
	}
	for _, g := range goals {
		fmt.Printf("%s  [%d/5] %s\n    %s\n", g.ID, g.Priority, g.Title, g.PriorityReasoning)
	}
	return nil
}

func runTask(args []string, workspacePath string) error {
	if len(args) == 0 || args[0] == "help" || args[0] == "-h" || args[0] == "--help" {
		return fmt.Errorf("%s task: missing subcommand (add, list, done)", appName)
	}

	switch args[0] {
	case "add":
		return runTaskAdd(args[1:], workspacePath)
	case "list":
		return runTaskList(args[1:], workspacePath)
	case "done":
		return runTaskDone(args[1:], workspacePath)
	default:
		return fmt.Errorf("%s task: unknown subcommand %q", appName, args[0])
	}
}

func runTaskAdd(args []string, workspacePath string) error {
	fs := flag.NewFlagSet("task add", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	title := fs.String("title", "", "Task title")
	description := fs.String("description", "", "Task description")
	priority := fs.Int("priority", 3, "Priority 1-5")
	reasoning := fs.String("reasoning", "", "Why this priority (required)")
	estimate := fs.Int("estimate", 0, "Estimated duration in minutes")
	due := fs.String("due", "", "Due date (YYYY-MM-DD)")
	goals := fs.String("goals", "", "Comma-separated goal IDs this task serves")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *title == "" {
		return fmt.Errorf("--title is required")
	}
	if strings.TrimSpace(*reasoning) == "" {
		return fmt.Errorf("--reasoning is required: unexplained priorities are ignored by the planner")
	}

	a, err := openApp(workspacePath, false)
	if err != nil {
		return err
	}
	defer a.Close()

	var goalIDs []string
	if *goals != "" {
		for _, id := range strings.Split(*goals, ",") {
			goalIDs = append(goalIDs, strings.TrimSpace(id))
		}
	}

	task, err := a.Store.CreateTask(context.Background(), store.Task{
		UserID:            a.Config.UserID,
		Title:             *title,
		Description:       *description,
		Priority:          *priority,
		PriorityReasoning: *reasoning,
		EstimatedDuration: *estimate,
		DueDate:           *due,
		GoalIDs:           goalIDs,
	})
	if err != nil {
		return err
	}
	fmt.Printf("Task %s created\n", task.ID)
	return nil
}

func runTaskList(args []string, workspacePath string) error {
	fs := flag.NewFlagSet("task list", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	if err := fs.Parse(args); err != nil {
		return err
	}

	a, err := openApp(workspacePath, false)
	if err != nil {
		return err
	}
	defer a.Close()

	tasks, err := a.Store.PendingTasks(context.Background(), a.Config.UserID)
	if err != nil {
		return err
	}
	if len(tasks) == 0 {
		fmt.Println("No pending tasks.")
		return nil
	}
	for _, t := range tasks {
		line := fmt.Sprintf("%s  [%d/5] %s", t.ID, t.Priority, t.Title)
		if t.EstimatedDuration > 0 {
			line += fmt.Sprintf(" (~%d min)", t.EstimatedDuration)
		}
		if t.DueDate != "" {
			line += " due " + t.DueDate
		}
		fmt.Println(line)
	}
	return nil
}

func runTaskDone(args []string, workspacePath string) error {
	fs := flag.NewFlagSet("task done", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	id := fs.String("id", "", "Task ID")
	actual := fs.Int("actual", 0, "Actual duration in minutes")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *id == "" {
		return fmt.Errorf("--id is required")
	}

	a, err := openApp(workspacePath, false)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.Store.CompleteTask(context.Background(), a.Config.UserID, *id, *actual); err != nil {
		return err
	}
	fmt.Printf("Task %s completed\n", *id)
	return nil
}

func runEvent(args []string, workspacePath string) error {
	if len(args) == 0 || args[0] == "help" || args[0] == "-h" || args[0] == "--help" {
		return fmt.Errorf("%s event: missing subcommand (add, list)", appName)
	}

	switch args[0] {
	case "add":
		return runEventAdd(args[1:], workspacePath)
	case "list":
		return runEventList(args[1:], workspacePath)
	default:
		return fmt.Errorf("%s event: unknown subcommand %q", appName, args[0])
	}
}

func runEventAdd(args []string, workspacePath string) error {
	fs := flag.NewFlagSet("event add", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	title := fs.String("title", "", "Event title")
	start := fs.String("start", "", "Start time (RFC3339)")
	end := fs.String("end", "", "End time (RFC3339)")
	eventType := fs.String("type", "internal", "Event type (internal, external, task, social)")
	blocking := fs.Bool("blocking", true, "Whether the event blocks planning time")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *title == "" || *start == "" || *end == "" {
		return fmt.Errorf("--title, --start and --end are required")
	}

	startTime, err := time.Parse(time.RFC3339, *start)
	if err != nil {
		return fmt.Errorf("parse --start: %w", err)
	}
	endTime, err := time.Parse(time.RFC3339, *end)
	if err != nil {
		return fmt.Errorf("parse --end: %w", err)
	}
	if !startTime.Before(endTime) {
		return fmt.Errorf("--start must be before --end")
	}

	a, err := openApp(workspacePath, false)
	if err != nil {
		return err
	}
	defer a.Close()

	e, err := a.Store.CreateEvent(context.Background(), store.CalendarEvent{
		UserID:     a.Config.UserID,
		Title:      *title,
		StartTime:  startTime,
		EndTime:    endTime,
		EventType:  *eventType,
		IsBlocking: *blocking,
	})
	if err != nil {
		return err
	}
	fmt.Printf("Event %s created\n", e.ID)
	return nil
}

func runEventList(args []string, workspacePath string) error {
	fs := flag.NewFlagSet("event list", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	date := fs.String("date", time.Now().UTC().Format("2006-01-02"), "Date to list events for (YYYY-MM-DD)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	day, err := time.Parse("2006-01-02", *date)
	if err != nil {
		return fmt.Errorf("parse --date: %w", err)
	}

	a, err := openApp(workspacePath, false)
	if err != nil {
		return err
	}
	defer a.Close()

	events, err := a.Store.EventsOverlapping(context.Background(), a.Config.UserID, day)
	if err != nil {
		return err
	}
	if len(events) == 0 {
		fmt.Printf("No events on %s.\n", *date)
		return nil
	}
	for _, e := range events {
		kind := ""
		if e.IsBlocking {
			kind = " [blocking]"
		}
		fmt.Printf("%s  %s - %s  %s%s\n", e.ID,
			e.StartTime.UTC().Format("15:04"), e.EndTime.UTC().Format("15:04"), e.Title, kind)
	}
	return nil
}

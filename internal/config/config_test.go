package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"metaplan/internal/workspace"
)

func testWorkspace(t *testing.T) *workspace.Workspace {
	t.Helper()
	ws, err := workspace.Resolve(t.TempDir())
	if err != nil {
		t.Fatalf("resolve workspace: %v", err)
	}
	return ws
}

func TestLoadDefaults(t *testing.T) {
	c, err := Load(testWorkspace(t))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Planning.MaxRoundTrips != 3 {
		t.Fatalf("expected 3 round trips, got %d", c.Planning.MaxRoundTrips)
	}
	if c.Planning.MaxWeeklyOverrides != 5 {
		t.Fatalf("expected 5 weekly overrides, got %d", c.Planning.MaxWeeklyOverrides)
	}
	if c.Planning.PlanningHour != 2 {
		t.Fatalf("expected planning hour 2, got %d", c.Planning.PlanningHour)
	}
	if c.LLM.MaxAttempts != 3 || c.LLM.BackoffBase != time.Second {
		t.Fatalf("unexpected llm defaults: %+v", c.LLM)
	}
}

func TestLoadYAMLOverridesDefaults(t *testing.T) {
	ws := testWorkspace(t)
	yml := `
llm:
  model: local-planner
planning:
  max_round_trips: 5
  planning_hour: 4
`
	if err := os.WriteFile(ws.ConfigPath, []byte(yml), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	c, err := Load(ws)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.LLM.Model != "local-planner" {
		t.Fatalf("yaml model not applied: %q", c.LLM.Model)
	}
	if c.Planning.MaxRoundTrips != 5 || c.Planning.PlanningHour != 4 {
		t.Fatalf("yaml planning values not applied: %+v", c.Planning)
	}
	// Untouched keys keep their defaults.
	if c.Planning.MaxWeeklyOverrides != 5 {
		t.Fatalf("default lost on partial yaml: %d", c.Planning.MaxWeeklyOverrides)
	}
}

func TestLoadEnvWinsOverYAML(t *testing.T) {
	ws := testWorkspace(t)
	if err := os.WriteFile(ws.ConfigPath, []byte("planning:\n  planning_hour: 4\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("METAPLAN_PLANNING_HOUR", "6")
	t.Setenv("METAPLAN_LLM_API_KEY", "sk-test")

	c, err := Load(ws)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Planning.PlanningHour != 6 {
		t.Fatalf("env should win over yaml, got hour %d", c.Planning.PlanningHour)
	}
	if c.LLM.APIKey != "sk-test" {
		t.Fatalf("api key not read from env: %q", c.LLM.APIKey)
	}
}

func TestLoadDotEnvFile(t *testing.T) {
	ws := testWorkspace(t)
	if err := os.WriteFile(ws.EnvPath, []byte("METAPLAN_LLM_MODEL=dotenv-model\n"), 0o600); err != nil {
		t.Fatalf("write .env: %v", err)
	}
	os.Unsetenv("METAPLAN_LLM_MODEL")

	c, err := Load(ws)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.LLM.Model != "dotenv-model" {
		t.Fatalf(".env value not applied: %q", c.LLM.Model)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	ws := testWorkspace(t)
	t.Setenv("METAPLAN_PLANNING_HOUR", "25")
	if _, err := Load(ws); err == nil {
		t.Fatalf("expected error for planning hour 25")
	}

	t.Setenv("METAPLAN_PLANNING_HOUR", "2")
	t.Setenv("METAPLAN_MAX_ROUND_TRIPS", "0")
	if _, err := Load(ws); err == nil {
		t.Fatalf("expected error for zero round trips")
	}
}

func TestWorkspacePaths(t *testing.T) {
	ws := testWorkspace(t)
	if err := ws.EnsureDirs(); err != nil {
		t.Fatalf("ensure dirs: %v", err)
	}
	for _, p := range []string{ws.DataDir, ws.AuditDir} {
		info, err := os.Stat(p)
		if err != nil || !info.IsDir() {
			t.Fatalf("expected directory at %s: %v", p, err)
		}
	}
	if filepath.Dir(ws.StoreDBPath) != ws.DataDir {
		t.Fatalf("store db should live under data dir: %s", ws.StoreDBPath)
	}
}

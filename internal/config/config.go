package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"metaplan/internal/workspace"
)

// Config holds every tunable of the planning service. Values resolve in
// three layers: built-in defaults, then config.yml, then environment
// variables (highest precedence). A workspace .env file is loaded into the
// environment first without clobbering variables already set.
type Config struct {
	UserID string `yaml:"user_id"`

	LLM struct {
		Provider    string        `yaml:"provider"`
		BaseURL     string        `yaml:"base_url"`
		APIKey      string        `yaml:"-"`
		Model       string        `yaml:"model"`
		MaxAttempts int           `yaml:"max_attempts"`
		BackoffBase time.Duration `yaml:"backoff_base"`
		Timeout     time.Duration `yaml:"timeout"`
	} `yaml:"llm"`

	Planning struct {
		MaxRoundTrips      int           `yaml:"max_round_trips"`
		GenerateTimeout    time.Duration `yaml:"generate_timeout"`
		PlanningHour       int           `yaml:"planning_hour"`
		MaxWeeklyOverrides int           `yaml:"max_weekly_overrides"`
		MaxContextGoals    int           `yaml:"max_context_goals"`
	} `yaml:"planning"`

	Server struct {
		Addr string `yaml:"addr"`
	} `yaml:"server"`
}

// Default returns the built-in configuration.
func Default() Config {
	var c Config
	c.UserID = "default"
	c.LLM.Provider = "openai"
	c.LLM.Model = "gpt-4o"
	c.LLM.MaxAttempts = 3
	c.LLM.BackoffBase = time.Second
	c.LLM.Timeout = 60 * time.Second
	c.Planning.MaxRoundTrips = 3
	c.Planning.GenerateTimeout = 2 * time.Minute
	c.Planning.PlanningHour = 2
	c.Planning.MaxWeeklyOverrides = 5
	c.Planning.MaxContextGoals = 5
	c.Server.Addr = "127.0.0.1:8787"
	return c
}

// Load resolves configuration for a workspace.
func Load(ws *workspace.Workspace) (Config, error) {
	c := Default()

	if ws != nil {
		// Missing .env is fine; a present but unreadable one is not.
		if _, err := os.Stat(ws.EnvPath); err == nil {
			if err := godotenv.Load(ws.EnvPath); err != nil {
				return Config{}, fmt.Errorf("load %s: %w", ws.EnvPath, err)
			}
		}

		data, err := os.ReadFile(ws.ConfigPath)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &c); err != nil {
				return Config{}, fmt.Errorf("parse %s: %w", ws.ConfigPath, err)
			}
		case os.IsNotExist(err):
		default:
			return Config{}, fmt.Errorf("read %s: %w", ws.ConfigPath, err)
		}
	}

	applyEnv(&c)

	if err := c.validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func applyEnv(c *Config) {
	setString(&c.UserID, "METAPLAN_USER_ID")
	setString(&c.LLM.Provider, "METAPLAN_LLM_PROVIDER")
	setString(&c.LLM.BaseURL, "METAPLAN_LLM_BASE_URL")
	setString(&c.LLM.APIKey, "METAPLAN_LLM_API_KEY")
	setString(&c.LLM.APIKey, "OPENAI_API_KEY")
	setString(&c.LLM.Model, "METAPLAN_LLM_MODEL")
	setInt(&c.LLM.MaxAttempts, "METAPLAN_LLM_MAX_ATTEMPTS")
	setDuration(&c.LLM.Timeout, "METAPLAN_LLM_TIMEOUT")
	setInt(&c.Planning.MaxRoundTrips, "METAPLAN_MAX_ROUND_TRIPS")
	setDuration(&c.Planning.GenerateTimeout, "METAPLAN_GENERATE_TIMEOUT")
	setInt(&c.Planning.PlanningHour, "METAPLAN_PLANNING_HOUR")
	setInt(&c.Planning.MaxWeeklyOverrides, "METAPLAN_MAX_WEEKLY_OVERRIDES")
	setString(&c.Server.Addr, "METAPLAN_ADDR")
}

func (c Config) validate() error {
	if c.Planning.MaxRoundTrips < 1 {
		return fmt.Errorf("planning.max_round_trips must be at least 1, got %d", c.Planning.MaxRoundTrips)
	}
	if c.Planning.PlanningHour < 0 || c.Planning.PlanningHour > 23 {
		return fmt.Errorf("planning.planning_hour must be 0-23, got %d", c.Planning.PlanningHour)
	}
	if c.Planning.MaxWeeklyOverrides < 0 {
		return fmt.Errorf("planning.max_weekly_overrides must be >= 0, got %d", c.Planning.MaxWeeklyOverrides)
	}
	if c.LLM.MaxAttempts < 1 {
		return fmt.Errorf("llm.max_attempts must be at least 1, got %d", c.LLM.MaxAttempts)
	}
	return nil
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}

// Package config loads the service configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/Chative-creator-core/server/internal/agent/model"
	"github.com/Chative-creator-core/server/internal/core"
	pkgpostgres "github.com/Chative-creator-core/server/pkg/postgres"
	pkgredis "github.com/Chative-creator-core/server/pkg/redis"
)

// AppConfig defines every configurable parameter, sourced from environment
// variables (loaded from .env for local runs).
type AppConfig struct {
	Env      string `envconfig:"APP_ENV" default:"development"`
	LogLevel string `envconfig:"LOG_LEVEL"`

	// Infrastructure
	Redis    pkgredis.Config
	Postgres pkgpostgres.Config

	// LLM provider
	APIKey  string `envconfig:"GEMINI_API_KEY" required:"true"`
	BaseURL string `envconfig:"GEMINI_BASE_URL"`

	// Agent configs
	Response  model.ResponseModelConfig
	Prompt    model.ResponsePromptConfig
	Memory    model.MemoryConfig
	Quota     model.QuotaConfig
	OAuth     model.OAuthConfig
	Analytics model.AnalyticsConfig
	Executor  model.ExecutorConfig
	Planner   model.PlannerConfig
}

// Environment returns the parsed APP_ENV.
func (c AppConfig) Environment() core.Environment {
	return core.ParseEnvironment(c.Env)
}

// EnvironmentFromEnv reads APP_ENV directly, before the full config is processed.
func EnvironmentFromEnv() core.Environment {
	return core.ParseEnvironment(os.Getenv("APP_ENV"))
}

// LoadDotenv reads envFile when it exists. A missing file is not an error.
func LoadDotenv(envFile string) error {
	if envFile == "" {
		return nil
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", envFile, err)
	}
	return nil
}

// Load reads envFile, then processes the environment into AppConfig.
func Load(envFile string) (AppConfig, error) {
	var cfg AppConfig
	if err := LoadDotenv(envFile); err != nil {
		return cfg, err
	}
	if err := envconfig.Process("", &cfg); err != nil {
		return cfg, fmt.Errorf("process environment config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// LoadPlanner reads only the planner section, for commands that need no infrastructure.
func LoadPlanner(envFile string) (model.PlannerConfig, error) {
	var cfg model.PlannerConfig
	if err := LoadDotenv(envFile); err != nil {
		return cfg, err
	}
	if err := envconfig.Process("", &cfg); err != nil {
		return cfg, fmt.Errorf("process planner config: %w", err)
	}
	return cfg, nil
}

func (c AppConfig) validate() error {
	var errs []error
	if c.Quota.FreeDaily < 0 || c.Quota.ProDaily < 0 || c.Quota.AgencyDaily < 0 {
		errs = append(errs, errors.New("quota limits must be >= 0"))
	}
	if c.Memory.MaxMessages <= 0 {
		errs = append(errs, errors.New("MEMORY_MAX_MESSAGES must be positive"))
	}
	if c.Memory.TTL <= 0 {
		errs = append(errs, errors.New("MEMORY_TTL must be positive"))
	}
	if c.Analytics.LagDays < 0 {
		errs = append(errs, errors.New("ANALYTICS_LAG_DAYS must be >= 0"))
	}
	if c.Analytics.RPS <= 0 {
		errs = append(errs, errors.New("ANALYTICS_RPS must be positive"))
	}
	return errors.Join(errs...)
}

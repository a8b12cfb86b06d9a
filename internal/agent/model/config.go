package model

import "time"

// ================ Config ================
type MemoryConfig struct {
	TTL             time.Duration `envconfig:"MEMORY_TTL" default:"24h"`
	MaxMessages     int           `envconfig:"MEMORY_MAX_MESSAGES" default:"50"`
	ContextTurns    int           `envconfig:"MEMORY_CONTEXT_TURNS" default:"10"`
	LongTermMatches int           `envconfig:"MEMORY_LONG_TERM_MATCHES" default:"5"`
	LongTermScan    int           `envconfig:"MEMORY_LONG_TERM_SCAN" default:"200"`
}

type QuotaConfig struct {
	FreeDaily   int64 `envconfig:"QUOTA_FREE_DAILY" default:"3"`
	ProDaily    int64 `envconfig:"QUOTA_PRO_DAILY" default:"0"`
	AgencyDaily int64 `envconfig:"QUOTA_AGENCY_DAILY" default:"0"`
}

// Limit returns the daily limit of a tier; 0 means unlimited.
func (q QuotaConfig) Limit(t Tier) int64 {
	switch t {
	case TierFree:
		return q.FreeDaily
	case TierPro:
		return q.ProDaily
	case TierAgency:
		return q.AgencyDaily
	default:
		return q.FreeDaily
	}
}

type ResponseModelConfig struct {
	Model       string  `envconfig:"RESPONSE_MODEL" default:"gemini-2.5-flash"`
	MaxTokens   int     `envconfig:"RESPONSE_MAX_TOKENS" default:"2000"`
	Temperature float32 `envconfig:"RESPONSE_TEMPERATURE" default:"0.4"`
}

type ResponsePromptConfig struct {
	AssistantName string `envconfig:"PROMPT_ASSISTANT_NAME" default:"Creator Copilot"`
	Platform      string `envconfig:"PROMPT_PLATFORM" default:"YouTube"`
}

type OAuthConfig struct {
	ClientID     string `envconfig:"YOUTUBE_CLIENT_ID"`
	ClientSecret string `envconfig:"YOUTUBE_CLIENT_SECRET"`
	TokenURL     string `envconfig:"YOUTUBE_TOKEN_URL" default:"https://oauth2.googleapis.com/token"`
}

type AnalyticsConfig struct {
	BaseURL string        `envconfig:"ANALYTICS_BASE_URL" default:"https://youtubeanalytics.googleapis.com/v2"`
	DataURL string        `envconfig:"YOUTUBE_DATA_BASE_URL" default:"https://www.googleapis.com/youtube/v3"`
	RPS     float64       `envconfig:"ANALYTICS_RPS" default:"5"`
	Burst   int           `envconfig:"ANALYTICS_BURST" default:"5"`
	LagDays int           `envconfig:"ANALYTICS_LAG_DAYS" default:"3"`
	Timeout time.Duration `envconfig:"ANALYTICS_TIMEOUT" default:"15s"`
}

type ExecutorConfig struct {
	Timeout time.Duration `envconfig:"EXECUTOR_TIMEOUT" default:"60s"`
}

type PlannerConfig struct {
	RulesFile string `envconfig:"PLANNER_RULES_FILE"`
}

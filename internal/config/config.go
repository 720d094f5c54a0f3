package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"jobscout/pkg/models"
)

// DefaultPath is where the binary looks for its YAML file
const DefaultPath = "configs/config.yaml"

// MinPersistScore is the lowest relevance score that may ever be stored
const MinPersistScore = 70

// CompanyEntry is a company listed directly in the configuration file
type CompanyEntry struct {
	Name          string `yaml:"name" validate:"required"`
	URL           string `yaml:"url" validate:"required,url"`
	CareerPageURL string `yaml:"career_page_url" validate:"omitempty,url"`
	Type          string `yaml:"type" validate:"omitempty,oneof=company vc_firm"`
	Industry      string `yaml:"industry"`
	Location      string `yaml:"location"`
	FundingStage  string `yaml:"funding_stage"`
}

// Config represents the application configuration
type Config struct {
	Server struct {
		Port         int           `yaml:"port" env:"PORT" validate:"gte=0,lte=65535"`
		Host         string        `yaml:"host" env:"HOST"`
		ReadTimeout  time.Duration `yaml:"read_timeout"`
		WriteTimeout time.Duration `yaml:"write_timeout"`
		IdleTimeout  time.Duration `yaml:"idle_timeout"`
		AllowOrigins []string      `yaml:"allow_origins" env:"SERVER_ALLOW_ORIGINS" envSeparator:","`
	} `yaml:"server"`

	Database struct {
		Driver      string        `yaml:"driver" env:"DATABASE_DRIVER" validate:"oneof=sqlite postgres"`
		Path        string        `yaml:"path" env:"DATABASE_PATH"`
		URL         string        `yaml:"url" env:"DATABASE_URL"`
		BusyTimeout time.Duration `yaml:"busy_timeout" env:"DATABASE_BUSY_TIMEOUT"`
		MaxConns    int32         `yaml:"max_conns" env:"DATABASE_MAX_CONNS"`
	} `yaml:"database"`

	Redis struct {
		URL      string        `yaml:"url" env:"REDIS_URL"`
		Password string        `yaml:"password" env:"REDIS_PASSWORD"`
		DB       int           `yaml:"db" env:"REDIS_DB"`
		Timeout  time.Duration `yaml:"timeout" env:"REDIS_TIMEOUT"`
	} `yaml:"redis"`

	Quota struct {
		ProviderLimit int     `yaml:"provider_limit" env:"QUOTA_PROVIDER_LIMIT" validate:"gte=0"`
		SafetyMargin  float64 `yaml:"safety_margin" env:"QUOTA_SAFETY_MARGIN" validate:"gt=0,lte=1"`
		Period        string  `yaml:"period" env:"QUOTA_PERIOD" validate:"oneof=monthly daily"`
		Backend       string  `yaml:"backend" env:"QUOTA_BACKEND" validate:"oneof=memory database redis"`
	} `yaml:"quota"`

	Scraper struct {
		Engine              string        `yaml:"engine" env:"SCRAPER_ENGINE" validate:"oneof=firecrawl headed direct hybrid"`
		UserAgent           string        `yaml:"user_agent" env:"SCRAPER_USER_AGENT"`
		RequestTimeout      time.Duration `yaml:"request_timeout" env:"SCRAPER_REQUEST_TIMEOUT"`
		RequestsPerSecond   float64       `yaml:"requests_per_second" env:"SCRAPER_REQUESTS_PER_SECOND" validate:"gt=0"`
		Burst               int           `yaml:"burst" validate:"gte=1"`
		HeadlessMode        bool          `yaml:"headless_mode" env:"SCRAPER_HEADLESS"`
		StealthMode         bool          `yaml:"stealth_mode"`
		CareerPaths         []string      `yaml:"career_paths" env:"SCRAPER_CAREER_PATHS" envSeparator:","`
		NetworkRetryDelay   time.Duration `yaml:"network_retry_delay"`
		RateLimitRetryDelay time.Duration `yaml:"rate_limit_retry_delay"`
		BlockedDomainsPath  string        `yaml:"blocked_domains_path" env:"SCRAPER_BLOCKED_DOMAINS_PATH"`
	} `yaml:"scraper"`

	Firecrawl struct {
		APIKey          string        `yaml:"api_key" env:"FIRECRAWL_API_KEY"`
		APIURL          string        `yaml:"api_url" env:"FIRECRAWL_API_URL"`
		Timeout         time.Duration `yaml:"timeout"`
		Formats         []string      `yaml:"formats"`
		OnlyMainContent bool          `yaml:"only_main_content"`
	} `yaml:"firecrawl"`

	LLM struct {
		Provider    string        `yaml:"provider" env:"LLM_PROVIDER"`
		APIKey      string        `yaml:"api_key" env:"LLM_API_KEY"`
		Model       string        `yaml:"model" env:"LLM_MODEL"`
		MaxTokens   int           `yaml:"max_tokens"`
		Temperature float32       `yaml:"temperature"`
		Timeout     time.Duration `yaml:"timeout"`
	} `yaml:"llm"`

	Matching struct {
		MinScore int             `yaml:"min_score" env:"MATCHING_MIN_SCORE" validate:"gte=70,lte=100"`
		UseAI    bool            `yaml:"use_ai" env:"MATCHING_USE_AI"`
		Criteria models.Criteria `yaml:"criteria" envPrefix:"CRITERIA_"`
	} `yaml:"matching"`

	Discovery struct {
		UseCurated     bool           `yaml:"use_curated" env:"DISCOVERY_USE_CURATED"`
		IncludeVCFirms bool           `yaml:"include_vc_firms"`
		Companies      []CompanyEntry `yaml:"companies" validate:"dive"`
	} `yaml:"discovery"`

	Persistence struct {
		RetryDelays  []time.Duration `yaml:"retry_delays" validate:"min=1"`
		RecoveryPath string          `yaml:"recovery_path" env:"RECOVERY_PATH" validate:"required"`
	} `yaml:"persistence"`

	Notifications struct {
		Console  bool `yaml:"console"`
		Telegram struct {
			Enabled  bool   `yaml:"enabled" env:"TELEGRAM_ENABLED"`
			BotToken string `yaml:"bot_token" env:"TELEGRAM_BOT_TOKEN"`
			ChatID   int64  `yaml:"chat_id" env:"TELEGRAM_CHAT_ID"`
		} `yaml:"telegram"`
	} `yaml:"notifications"`

	Schedule struct {
		Cron       string `yaml:"cron" env:"SCHEDULE_CRON"`
		RunOnStart bool   `yaml:"run_on_start"`
	} `yaml:"schedule"`

	Runs struct {
		Store           string        `yaml:"store" env:"RUNS_STORE" validate:"oneof=memory redis"`
		MaxAge          time.Duration `yaml:"max_age"`
		CleanupInterval time.Duration `yaml:"cleanup_interval"`
		Timeout         time.Duration `yaml:"timeout"`
	} `yaml:"runs"`

	Logging struct {
		Level  string `yaml:"level" env:"LOG_LEVEL"`
		Format string `yaml:"format" env:"LOG_FORMAT"`

		Adapters []struct {
			Name    string                 `yaml:"name"`
			Type    string                 `yaml:"type"`
			Enabled bool                   `yaml:"enabled"`
			Options map[string]interface{} `yaml:"options"`
		} `yaml:"adapters"`
	} `yaml:"logging"`
}

// expandEnvVars expands ${VAR} and $VAR references. Unset variables expand to
// the empty string so a missing secret reads as not configured.
func expandEnvVars(s string) string {
	s = bracedVar.ReplaceAllStringFunc(s, func(match string) string {
		return os.Getenv(match[2 : len(match)-1])
	})
	return bareVar.ReplaceAllStringFunc(s, func(match string) string {
		return os.Getenv(match[1:])
	})
}

var (
	bracedVar = regexp.MustCompile(`\$\{([^}]+)\}`)
	bareVar   = regexp.MustCompile(`\$([A-Za-z_][A-Za-z0-9_]*)`)
)

// Default returns a configuration populated with built-in defaults only
func Default() *Config {
	config := &Config{}

	config.Server.Port = 8080
	config.Server.Host = "0.0.0.0"
	config.Server.ReadTimeout = 30 * time.Second
	config.Server.WriteTimeout = 30 * time.Second
	config.Server.IdleTimeout = 60 * time.Second

	config.Database.Driver = "sqlite"
	config.Database.Path = "data/jobscout.db"
	config.Database.BusyTimeout = 5 * time.Second
	config.Database.MaxConns = 4

	config.Redis.URL = "redis://localhost:6379"
	config.Redis.Timeout = 5 * time.Second

	config.Quota.ProviderLimit = 500
	config.Quota.SafetyMargin = 0.9
	config.Quota.Period = "monthly"
	config.Quota.Backend = "database"

	config.Scraper.Engine = "firecrawl"
	config.Scraper.UserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	config.Scraper.RequestTimeout = 30 * time.Second
	config.Scraper.RequestsPerSecond = 0.5
	config.Scraper.Burst = 1
	config.Scraper.HeadlessMode = true
	config.Scraper.StealthMode = true
	config.Scraper.CareerPaths = []string{"/careers", "/jobs", "/team", "/join-us"}
	config.Scraper.NetworkRetryDelay = 5 * time.Second
	config.Scraper.RateLimitRetryDelay = 60 * time.Second
	config.Scraper.BlockedDomainsPath = "data/blocked-domains.txt"

	config.Firecrawl.APIURL = "https://api.firecrawl.dev"
	config.Firecrawl.Timeout = 60 * time.Second
	config.Firecrawl.Formats = []string{"markdown", "html"}
	config.Firecrawl.OnlyMainContent = true

	config.LLM.Provider = "claude"
	config.LLM.Model = "claude-3-5-haiku-latest"
	config.LLM.MaxTokens = 1024
	config.LLM.Temperature = 0.1
	config.LLM.Timeout = 60 * time.Second

	config.Matching.MinScore = MinPersistScore
	config.Matching.UseAI = true
	config.Matching.Criteria = models.DefaultCriteria()

	config.Discovery.UseCurated = true
	config.Discovery.IncludeVCFirms = true

	config.Persistence.RetryDelays = []time.Duration{1 * time.Second, 2 * time.Second, 4 * time.Second}
	config.Persistence.RecoveryPath = "data/recovery.jsonl"

	config.Notifications.Console = true

	config.Schedule.Cron = "@every 24h"
	config.Schedule.RunOnStart = true

	config.Runs.Store = "memory"
	config.Runs.MaxAge = 24 * time.Hour
	config.Runs.CleanupInterval = time.Hour
	config.Runs.Timeout = 2 * time.Hour

	config.Logging.Level = "info"
	config.Logging.Format = "text"

	return config
}

// LoadConfig loads configuration from file and environment variables
func LoadConfig(configPath string) (*Config, error) {
	// Load .env file if it exists (ignore errors if file doesn't exist)
	_ = godotenv.Load()

	config := Default()

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		switch {
		case err == nil:
			yamlContent := expandEnvVars(string(data))
			if err := yaml.Unmarshal([]byte(yamlContent), config); err != nil {
				return nil, fmt.Errorf("parse %s: %w", configPath, err)
			}
		case !os.IsNotExist(err):
			return nil, fmt.Errorf("read %s: %w", configPath, err)
		}
	}

	if err := env.Parse(config); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	return config, nil
}

// Validate checks field constraints and cross-field requirements
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if c.Database.Driver == "sqlite" && c.Database.Path == "" {
		return fmt.Errorf("invalid configuration: database.path is required for sqlite")
	}
	if c.Database.Driver == "postgres" && c.Database.URL == "" {
		return fmt.Errorf("invalid configuration: database.url is required for postgres")
	}
	if (c.Scraper.Engine == "firecrawl" || c.Scraper.Engine == "hybrid") && c.Firecrawl.APIKey == "" {
		return fmt.Errorf("invalid configuration: firecrawl.api_key is required for the %s engine", c.Scraper.Engine)
	}
	if c.Notifications.Telegram.Enabled && (c.Notifications.Telegram.BotToken == "" || c.Notifications.Telegram.ChatID == 0) {
		return fmt.Errorf("invalid configuration: telegram requires bot_token and chat_id")
	}

	return nil
}

// AIEnabled reports whether the AI scoring strategy can be constructed
func (c *Config) AIEnabled() bool {
	return c.Matching.UseAI && c.LLM.APIKey != ""
}

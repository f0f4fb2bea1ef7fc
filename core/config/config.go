package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// SupportedProviders lists the provider names that may appear on the left
// side of a "provider:model" string.
var SupportedProviders = []string{
	"oneapi", "openai", "anthropic", "gemini", "deepseek",
	"siliconflow", "volcengine",
}

// ProviderCredentials holds whatever a single provider client needs to be
// constructed. BaseURL is only meaningful for OpenAI-compatible providers.
type ProviderCredentials struct {
	APIKey  string
	BaseURL string
}

// Config is the full environment-driven configuration surface. It is read
// once at startup and passed by value from then on.
type Config struct {
	DefaultProvider string
	// DefaultModel is a "provider:model" string used when an agent has no
	// override.
	DefaultModel string
	// BackupModel is tried once after the retry budget for the primary model
	// is exhausted.
	BackupModel string
	// AgentModels maps agent id -> "provider:model" override (MODEL_<id>).
	AgentModels map[string]string

	MaxTokens   int
	Temperature float64

	MaxRetries     int
	RetryBaseDelay time.Duration
	AttemptTimeout time.Duration
	PhaseTimeout   time.Duration

	DiscussionRounds  int
	MaxAgentsPerRound int

	SearchEnabled   bool
	SearXNGHostname string
	SearXNGSafe     int
	SearXNGEngines  []string
	TavilyAPIKey    string

	Providers map[string]ProviderCredentials

	AgentDBPath      string
	ConferenceDBPath string
	JournalDir       string
	ListenAddr       string
}

// Load reads configuration from the environment, loading a .env file first
// if one is present. Missing values fall back to defaults; Load never fails.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		DefaultProvider:   getString("DEFAULT_PROVIDER", "oneapi"),
		BackupModel:       getString("BACKUP_MODEL", ""),
		AgentModels:       agentModelOverrides(),
		MaxTokens:         getInt("MAX_TOKENS", 4096),
		Temperature:       getFloat("TEMPERATURE", 0.7),
		MaxRetries:        getInt("MAX_RETRIES", 3),
		RetryBaseDelay:    getDuration("RETRY_BASE_DELAY_MS", time.Millisecond, 1000),
		AttemptTimeout:    getDuration("ATTEMPT_TIMEOUT_SECONDS", time.Second, 60),
		PhaseTimeout:      getDuration("PHASE_TIMEOUT_SECONDS", time.Second, 600),
		DiscussionRounds:  getInt("DISCUSSION_ROUNDS", 2),
		MaxAgentsPerRound: getInt("MAX_AGENTS_PER_ROUND", 3),
		SearchEnabled:     getBool("SEARCH_ENABLED", true),
		SearXNGHostname:   getString("SEARXNG_HOSTNAME", "http://localhost:8080"),
		SearXNGSafe:       getInt("SEARXNG_SAFE", 0),
		SearXNGEngines:    getList("SEARXNG_ENGINES"),
		TavilyAPIKey:      getString("TAVILY_API_KEY", ""),
		AgentDBPath:       getString("AGENT_DB_PATH", "agents.db"),
		ConferenceDBPath:  getString("CONFERENCE_DB_PATH", "conferences.db"),
		JournalDir:        getString("JOURNAL_DIR", "."),
		ListenAddr:        getString("LISTEN_ADDR", ":8000"),
	}
	cfg.DefaultModel = getString("DEFAULT_MODEL", cfg.DefaultProvider+":gpt-3.5-turbo")

	cfg.Providers = map[string]ProviderCredentials{
		"oneapi": {
			APIKey:  os.Getenv("ONEAPI_API_KEY"),
			BaseURL: getString("ONEAPI_BASE_URL", "https://api.oneapi.com/v1"),
		},
		"openai": {
			APIKey:  os.Getenv("OPENAI_API_KEY"),
			BaseURL: getString("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		},
		"deepseek": {
			APIKey:  os.Getenv("DEEPSEEK_API_KEY"),
			BaseURL: getString("DEEPSEEK_BASE_URL", "https://api.deepseek.com/v1"),
		},
		"siliconflow": {
			APIKey:  os.Getenv("SILICONFLOW_API_KEY"),
			BaseURL: getString("SILICONFLOW_BASE_URL", "https://api.ffa.chat/v1"),
		},
		"volcengine": {
			APIKey:  os.Getenv("VOLCENGINE_API_KEY"),
			BaseURL: getString("VOLCENGINE_BASE_URL", "https://open.volcengineapi.com"),
		},
		"anthropic": {APIKey: os.Getenv("ANTHROPIC_API_KEY")},
		"gemini":    {APIKey: os.Getenv("GEMINI_API_KEY")},
	}

	return cfg
}

// ModelFor resolves the model string for an agent, preferring a per-agent
// override over the global default.
func (c Config) ModelFor(agentID string) string {
	if model, ok := c.AgentModels[agentID]; ok && model != "" {
		return model
	}
	return c.DefaultModel
}

func agentModelOverrides() map[string]string {
	overrides := map[string]string{}
	for _, entry := range os.Environ() {
		key, value, found := strings.Cut(entry, "=")
		if !found || value == "" {
			continue
		}
		if id, ok := strings.CutPrefix(key, "MODEL_"); ok && id != "" {
			overrides[id] = value
		}
	}
	return overrides
}

func getString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getList(key string) []string {
	var items []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			items = append(items, part)
		}
	}
	return items
}

func getDuration(key string, unit time.Duration, fallback int64) time.Duration {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			return time.Duration(n) * unit
		}
	}
	return time.Duration(fallback) * unit
}

package main

import (
	"log"
	"net/http"
	"strings"

	roundtable "github.com/maxwell66666/RoundTable-AI-Conference/core"
	"github.com/maxwell66666/RoundTable-AI-Conference/core/broadcast"
	"github.com/maxwell66666/RoundTable-AI-Conference/core/config"
	"github.com/maxwell66666/RoundTable-AI-Conference/core/directory"
	"github.com/maxwell66666/RoundTable-AI-Conference/core/journal"
	"github.com/maxwell66666/RoundTable-AI-Conference/core/llms"
	"github.com/maxwell66666/RoundTable-AI-Conference/core/llms/anthropic"
	"github.com/maxwell66666/RoundTable-AI-Conference/core/llms/gemini"
	"github.com/maxwell66666/RoundTable-AI-Conference/core/llms/openai"
	"github.com/maxwell66666/RoundTable-AI-Conference/core/registry"
	"github.com/maxwell66666/RoundTable-AI-Conference/core/search"
)

func main() {
	cfg := config.Load()

	agents, err := directory.Open(cfg.AgentDBPath)
	if err != nil {
		log.Fatalf("failed to open agent directory: %v", err)
	}
	defer agents.Close()
	if err := agents.SeedIfEmpty(seedAgents); err != nil {
		log.Fatalf("failed to seed agent directory: %v", err)
	}

	conferences, err := registry.Open(cfg.ConferenceDBPath, agents)
	if err != nil {
		log.Fatalf("failed to open conference registry: %v", err)
	}
	defer conferences.Close()

	providers := buildProviderRegistry(cfg)
	generator := llms.NewClient(providers,
		llms.WithMaxRetries(cfg.MaxRetries),
		llms.WithRetryBaseDelay(cfg.RetryBaseDelay),
		llms.WithAttemptTimeout(cfg.AttemptTimeout),
		llms.WithBackupModel(cfg.BackupModel),
	)

	hub := broadcast.NewHub()
	journals := journal.NewStore(cfg.JournalDir)

	engineOpts := []roundtable.EngineOption{
		roundtable.WithDirectory(agents),
		roundtable.WithRegistry(conferences),
		roundtable.WithGenerator(generator),
		roundtable.WithJournalStore(journals),
		roundtable.WithBroadcaster(fanout{hub, consoleLog{}}),
		roundtable.WithRounds(cfg.DiscussionRounds),
		roundtable.WithMaxAgentsPerRound(cfg.MaxAgentsPerRound),
		roundtable.WithGenerationDefaults(cfg.MaxTokens, cfg.Temperature),
		roundtable.WithModelResolver(cfg.ModelFor),
	}
	if fetcher := buildFetcher(cfg); fetcher != nil {
		engineOpts = append(engineOpts, roundtable.WithContextFetcher(fetcher))
	}
	engine := roundtable.NewEngine(engineOpts...)

	server := newServer(cfg, engine, agents, conferences, journals, hub, agendaClient(cfg))

	log.Printf("listening on %s", cfg.ListenAddr)
	if err := http.ListenAndServe(cfg.ListenAddr, server.routes()); err != nil {
		log.Fatalf("server stopped: %v", err)
	}
}

// buildProviderRegistry registers a factory per supported provider. The
// OpenAI chat-completions dialect covers every aggregator-style provider;
// only the base URL differs.
func buildProviderRegistry(cfg config.Config) *llms.Registry {
	providers := llms.NewRegistry(cfg.DefaultProvider)

	for _, name := range []string{"oneapi", "openai", "deepseek", "siliconflow", "volcengine"} {
		creds := cfg.Providers[name]
		providers.Register(name, func() (llms.Provider, error) {
			return openai.New(creds.APIKey, creds.BaseURL)
		})
	}
	providers.Register("anthropic", func() (llms.Provider, error) {
		return anthropic.New(cfg.Providers["anthropic"].APIKey)
	})
	providers.Register("gemini", func() (llms.Provider, error) {
		return gemini.New(cfg.Providers["gemini"].APIKey)
	})

	return providers
}

func buildFetcher(cfg config.Config) search.Fetcher {
	if !cfg.SearchEnabled {
		return nil
	}

	engines := []search.Fetcher{}
	if cfg.SearXNGHostname != "" {
		engines = append(engines, search.NewSearXNG(cfg.SearXNGHostname, strings.Join(cfg.SearXNGEngines, ","), cfg.SearXNGSafe))
	}
	if cfg.TavilyAPIKey != "" {
		engines = append(engines, search.NewTavily(cfg.TavilyAPIKey))
	}
	if len(engines) == 0 {
		return nil
	}
	return search.NewMulti(engines...)
}

// agendaClient builds the structured-output client used for agenda
// suggestions, or nil when the default provider has no usable credentials.
func agendaClient(cfg config.Config) *openai.Client {
	creds, ok := cfg.Providers[cfg.DefaultProvider]
	if !ok || creds.BaseURL == "" {
		return nil
	}
	client, err := openai.New(creds.APIKey, creds.BaseURL)
	if err != nil {
		log.Printf("agenda suggestions disabled: %v", err)
		return nil
	}
	return client
}

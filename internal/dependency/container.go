// Package dependency wires core inkwell services using go.uber.org/dig.
package dependency

import (
	"fmt"

	"go.uber.org/dig"

	"github.com/inkwell/inkwell/internal/agent"
	"github.com/inkwell/inkwell/internal/chat"
	"github.com/inkwell/inkwell/internal/config"
	"github.com/inkwell/inkwell/internal/imagen"
	"github.com/inkwell/inkwell/internal/providers"
	"github.com/inkwell/inkwell/internal/resume"
	"github.com/inkwell/inkwell/internal/schema"
	"github.com/inkwell/inkwell/internal/server"
	"github.com/inkwell/inkwell/internal/store"
	"github.com/inkwell/inkwell/internal/tools"
)

// Container holds the resolved core service singletons.
// Callers use the typed getter methods; they never need to import dig directly.
type Container struct {
	transport chat.Transport
	registry  *agent.Registry
	handler   *server.Handler
	repo      store.Repository
}

func (c *Container) Transport() chat.Transport    { return c.transport }
func (c *Container) Registry() *agent.Registry    { return c.registry }
func (c *Container) Handler() *server.Handler     { return c.handler }
func (c *Container) Repository() store.Repository { return c.repo }

// New builds and wires all core services from cfg.
func New(cfg *config.Config) (*Container, error) {
	d := dig.New()

	if err := d.Provide(func() *config.Config { return cfg }); err != nil {
		return nil, err
	}
	if err := d.Provide(newTransport); err != nil {
		return nil, err
	}
	if err := d.Provide(newProvider); err != nil {
		return nil, err
	}
	if err := d.Provide(newSearchTool); err != nil {
		return nil, err
	}
	if err := d.Provide(newPageFetcher); err != nil {
		return nil, err
	}
	if err := d.Provide(newStore); err != nil {
		return nil, err
	}
	if err := d.Provide(newAgentFactory); err != nil {
		return nil, err
	}
	if err := d.Provide(newRegistry); err != nil {
		return nil, err
	}
	if err := d.Provide(newImageService); err != nil {
		return nil, err
	}
	if err := d.Provide(newResumeAnalyzer); err != nil {
		return nil, err
	}
	if err := d.Provide(newServerHandler); err != nil {
		return nil, err
	}

	var result *Container
	err := d.Invoke(func(
		transport chat.Transport,
		registry *agent.Registry,
		handler *server.Handler,
		repo store.Repository,
	) {
		result = &Container{
			transport: transport,
			registry:  registry,
			handler:   handler,
			repo:      repo,
		}
	})
	return result, err
}

func newTransport(cfg *config.Config) (chat.Transport, error) {
	return chat.New(cfg.Chat)
}

func newProvider(cfg *config.Config) *providers.OpenAIProvider {
	return providers.NewOpenAIProvider(
		cfg.LLM.APIKey, cfg.LLM.APIBase, cfg.LLM.Model, cfg.LLM.ImageModel)
}

func newSearchTool(cfg *config.Config) *tools.SearchTool {
	return tools.NewSearchTool(cfg.Search.APIKey, cfg.Search.BaseURL, cfg.Search.MaxResults)
}

func newPageFetcher() *tools.PageFetcher {
	return tools.NewPageFetcher(0)
}

func newStore(cfg *config.Config) (store.Repository, error) {
	return store.NewSQLite(cfg.Store.Path)
}

// newAgentFactory returns the per-conversation constructor used by the
// registry. The credential check lives here so a missing API key fails the
// start call instead of every later turn.
func newAgentFactory(
	cfg *config.Config,
	transport chat.Transport,
	provider *providers.OpenAIProvider,
	search *tools.SearchTool,
) agent.Factory {
	settings := agent.Settings{
		SystemPrompt: cfg.Agent.SystemPrompt,
		HistoryLimit: cfg.Agent.HistoryLimit,
		HistoryKeep:  cfg.Agent.HistoryKeep,
		ChatOptions: schema.NewChatOptions(
			cfg.LLM.Model, cfg.LLM.MaxTokens, cfg.LLM.Temperature),
	}
	return func(conversationID string) (*agent.Agent, error) {
		if cfg.LLM.APIKey == "" {
			return nil, fmt.Errorf("LLM API key not configured — edit %s", config.ConfigPath())
		}
		return agent.New(conversationID, transport, provider, search, settings)
	}
}

func newRegistry(transport chat.Transport, factory agent.Factory) *agent.Registry {
	return agent.NewRegistry(transport, factory)
}

func newImageService(provider *providers.OpenAIProvider, repo store.Repository) *imagen.Service {
	return imagen.NewService(provider, repo)
}

func newResumeAnalyzer(
	cfg *config.Config,
	provider *providers.OpenAIProvider,
	fetch *tools.PageFetcher,
	repo store.Repository,
) *resume.Analyzer {
	opts := schema.NewChatOptions(cfg.LLM.Model, cfg.LLM.MaxTokens, cfg.LLM.Temperature)
	return resume.NewAnalyzer(provider, fetch, repo, opts)
}

func newServerHandler(
	registry *agent.Registry,
	images *imagen.Service,
	analyzer *resume.Analyzer,
	repo store.Repository,
) *server.Handler {
	return server.NewHandler(registry, images, analyzer, repo)
}

package cmd

import (
	"fmt"
	"net/http"
	"net/url"

	"github.com/spiffcs/tanuki/config"
	"github.com/spiffcs/tanuki/internal/api"
	"github.com/spiffcs/tanuki/internal/auth"
	"github.com/spiffcs/tanuki/internal/cache"
	"github.com/spiffcs/tanuki/internal/constants"
	"github.com/spiffcs/tanuki/internal/log"
	"github.com/spiffcs/tanuki/internal/markdown"
	"github.com/spiffcs/tanuki/internal/model"
	"github.com/spiffcs/tanuki/internal/repository"
)

// tokenService names the credential namespace in the token store.
const tokenService = "tanuki"

// app wires the core components for one command invocation.
type app struct {
	cfg    *config.Config
	tokens *auth.FileTokenStore
	oauth  *auth.OAuthClient
	auth   *auth.Manager
	client *api.Client

	cache    *cache.Store[model.Project]
	projects *repository.Projects
}

// loadApp loads configuration and builds the API and auth stack. The cache
// is opened separately by commands that need it.
func loadApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return newApp(cfg)
}

func newApp(cfg *config.Config) (*app, error) {
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base_url: %w", err)
	}

	tokenDir, err := auth.DefaultTokenDir()
	if err != nil {
		return nil, err
	}
	tokens := auth.NewFileTokenStore(tokenDir, tokenService, base.Host)

	oauthClient, err := auth.NewOAuthClient(cfg.BaseURL)
	if err != nil {
		return nil, err
	}
	manager := auth.NewManager(tokens, oauthClient, cfg.OAuth.ClientID)

	client, err := api.NewClient(cfg.BaseURL, cfg.APIPrefix,
		api.WithHTTPClient(&http.Client{Timeout: cfg.HTTP.Timeout}),
		api.WithAuthorizer(manager),
		api.WithRateLimit(cfg.HTTP.RequestsPerSecond, cfg.HTTP.Burst),
	)
	if err != nil {
		return nil, err
	}

	log.Debug("configured API client", "base_url", cfg.BaseURL, "api_prefix", cfg.APIPrefix)
	return &app{
		cfg:    cfg,
		tokens: tokens,
		oauth:  oauthClient,
		auth:   manager,
		client: client,
	}, nil
}

// openCache opens the page cache and the repository on top of it.
func (a *app) openCache() error {
	if a.cache != nil {
		return nil
	}
	store, err := cache.Open[model.Project](a.cfg.CachePath(),
		cache.WithMemoryCache(constants.ItemCacheSize, constants.ItemCacheTTL))
	if err != nil {
		return fmt.Errorf("failed to open cache: %w", err)
	}
	a.cache = store
	a.projects = repository.NewProjects(a.client, store, repository.WithTTL(a.cfg.Cache.TTL))
	return nil
}

func (a *app) markdown() *markdown.Service {
	return markdown.NewService(a.client)
}

// Close releases the cache.
func (a *app) Close() {
	if a.cache == nil {
		return
	}
	if err := a.cache.Close(); err != nil {
		log.Warn("failed to close cache", "error", err)
	}
}

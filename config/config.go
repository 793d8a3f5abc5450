package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/spiffcs/tanuki/internal/constants"
	"github.com/spiffcs/tanuki/internal/duration"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "TANUKI_"

// Default values
const (
	DefaultBaseURL     = "https://gitlab.com"
	DefaultRedirectURI = "http://127.0.0.1:7777/callback"
	DefaultFormat      = "table"
)

// DefaultScopes returns the OAuth scopes requested when none are configured.
func DefaultScopes() []string {
	return []string{"read_api", "read_user"}
}

// Config represents the application configuration
type Config struct {
	BaseURL       string `yaml:"base_url,omitempty" json:"base_url,omitempty" validate:"required,url"`
	APIPrefix     string `yaml:"api_prefix,omitempty" json:"api_prefix,omitempty" validate:"omitempty,startswith=/"`
	PerPage       int    `yaml:"per_page,omitempty" json:"per_page,omitempty" validate:"gte=1,lte=100"`
	DefaultFormat string `yaml:"default_format,omitempty" json:"default_format,omitempty" validate:"omitempty,oneof=table json"`

	OAuth OAuthConfig `yaml:"oauth,omitempty" json:"oauth"`
	Cache CacheConfig `yaml:"cache,omitempty" json:"cache"`
	HTTP  HTTPConfig  `yaml:"http,omitempty" json:"http"`
}

// OAuthConfig holds the OAuth application registration.
type OAuthConfig struct {
	ClientID    string   `yaml:"client_id,omitempty" json:"client_id,omitempty"`
	RedirectURI string   `yaml:"redirect_uri,omitempty" json:"redirect_uri,omitempty" validate:"omitempty,url"`
	Scopes      []string `yaml:"scopes,omitempty" json:"scopes,omitempty" validate:"dive,required"`
}

// CacheConfig controls the on-disk page cache.
type CacheConfig struct {
	Dir string        `yaml:"dir,omitempty" json:"dir,omitempty"`
	TTL time.Duration `yaml:"ttl,omitempty" json:"ttl,omitempty" validate:"gte=0"`
}

// HTTPConfig controls the API client.
type HTTPConfig struct {
	Timeout           time.Duration `yaml:"timeout,omitempty" json:"timeout,omitempty" validate:"gte=0"`
	RequestsPerSecond float64       `yaml:"requests_per_second,omitempty" json:"requests_per_second,omitempty" validate:"gte=0"`
	Burst             int           `yaml:"burst,omitempty" json:"burst,omitempty" validate:"gte=0"`
}

// DefaultConfig returns a fully populated config with all default values.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:       DefaultBaseURL,
		APIPrefix:     constants.DefaultAPIPrefix,
		PerPage:       constants.DefaultPerPage,
		DefaultFormat: DefaultFormat,
		OAuth: OAuthConfig{
			RedirectURI: DefaultRedirectURI,
			Scopes:      DefaultScopes(),
		},
		Cache: CacheConfig{
			TTL: constants.PageCacheTTL,
		},
		HTTP: HTTPConfig{
			Timeout: constants.DefaultRequestTimeout,
		},
	}
}

// DefaultConfigDir returns the default config directory
func DefaultConfigDir() string {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return ".tanuki"
	}
	return filepath.Join(configDir, "tanuki")
}

// ConfigPath returns the path to the config file
func ConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.yaml")
}

// LocalConfigPath returns the path to the local config file in the current directory
func LocalConfigPath() string {
	return ".tanuki.yaml"
}

// Load loads the configuration from disk and the environment.
// A .env file in the working directory is loaded first, then the global
// config, then any local .tanuki.yaml on top (local values take precedence),
// and finally TANUKI_* environment variables. The result is validated.
func Load() (*Config, error) {
	// A missing .env is not an error.
	_ = godotenv.Load()
	return LoadFrom(ConfigPath(), LocalConfigPath(), os.LookupEnv)
}

// LoadFrom is Load with explicit file locations and environment lookup.
// Missing files are skipped.
func LoadFrom(globalPath, localPath string, lookupEnv func(string) (string, bool)) (*Config, error) {
	cfg := DefaultConfig()

	global, err := readFile(globalPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load global config file: %w", err)
	}
	if global != nil {
		cfg = mergeConfig(cfg, global)
	}

	local, err := readFile(localPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load local config file: %w", err)
	}
	if local != nil {
		cfg = mergeConfig(cfg, local)
	}

	if lookupEnv != nil {
		if err := applyEnv(cfg, lookupEnv); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// readFile parses a config file, returning nil when it does not exist.
func readFile(path string) (*Config, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &cfg, nil
}

// mergeConfig merges overlay on top of base.
// Overlay values take precedence; unset overlay values preserve base values.
func mergeConfig(base, overlay *Config) *Config {
	result := *base
	result.OAuth.Scopes = append([]string(nil), base.OAuth.Scopes...)

	if overlay.BaseURL != "" {
		result.BaseURL = overlay.BaseURL
	}
	if overlay.APIPrefix != "" {
		result.APIPrefix = overlay.APIPrefix
	}
	if overlay.PerPage != 0 {
		result.PerPage = overlay.PerPage
	}
	if overlay.DefaultFormat != "" {
		result.DefaultFormat = overlay.DefaultFormat
	}

	if overlay.OAuth.ClientID != "" {
		result.OAuth.ClientID = overlay.OAuth.ClientID
	}
	if overlay.OAuth.RedirectURI != "" {
		result.OAuth.RedirectURI = overlay.OAuth.RedirectURI
	}
	// Arrays are replaced, not appended.
	if len(overlay.OAuth.Scopes) > 0 {
		result.OAuth.Scopes = append([]string(nil), overlay.OAuth.Scopes...)
	}

	if overlay.Cache.Dir != "" {
		result.Cache.Dir = overlay.Cache.Dir
	}
	if overlay.Cache.TTL != 0 {
		result.Cache.TTL = overlay.Cache.TTL
	}

	if overlay.HTTP.Timeout != 0 {
		result.HTTP.Timeout = overlay.HTTP.Timeout
	}
	if overlay.HTTP.RequestsPerSecond != 0 {
		result.HTTP.RequestsPerSecond = overlay.HTTP.RequestsPerSecond
	}
	if overlay.HTTP.Burst != 0 {
		result.HTTP.Burst = overlay.HTTP.Burst
	}

	return &result
}

// WithDefaults returns c layered over the defaults.
func WithDefaults(c *Config) *Config {
	return mergeConfig(DefaultConfig(), c)
}

// applyEnv sets every key that has a TANUKI_* variable.
func applyEnv(cfg *Config, lookupEnv func(string) (string, bool)) error {
	for _, key := range Keys() {
		name := EnvName(key)
		value, ok := lookupEnv(name)
		if !ok || value == "" {
			continue
		}
		if err := cfg.Set(key, value); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}

// EnvName returns the environment variable overriding key, e.g.
// oauth.client_id becomes TANUKI_OAUTH_CLIENT_ID.
func EnvName(key string) string {
	return EnvPrefix + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

// Keys returns every key accepted by Set.
func Keys() []string {
	return []string{
		"base_url",
		"api_prefix",
		"per_page",
		"default_format",
		"oauth.client_id",
		"oauth.redirect_uri",
		"oauth.scopes",
		"cache.dir",
		"cache.ttl",
		"http.timeout",
		"http.requests_per_second",
		"http.burst",
	}
}

// Set assigns a value by key. Scopes are comma separated and durations use
// Go syntax (5m, 30s).
func (c *Config) Set(key, value string) error {
	value = strings.TrimSpace(value)
	switch key {
	case "base_url":
		c.BaseURL = value
	case "api_prefix":
		c.APIPrefix = value
	case "per_page":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid per_page %q: %w", value, err)
		}
		c.PerPage = n
	case "default_format":
		c.DefaultFormat = value
	case "oauth.client_id":
		c.OAuth.ClientID = value
	case "oauth.redirect_uri":
		c.OAuth.RedirectURI = value
	case "oauth.scopes":
		c.OAuth.Scopes = splitList(value)
	case "cache.dir":
		c.Cache.Dir = value
	case "cache.ttl":
		d, err := duration.Parse(value)
		if err != nil {
			return fmt.Errorf("invalid cache.ttl %q: %w", value, err)
		}
		c.Cache.TTL = d
	case "http.timeout":
		d, err := duration.Parse(value)
		if err != nil {
			return fmt.Errorf("invalid http.timeout %q: %w", value, err)
		}
		c.HTTP.Timeout = d
	case "http.requests_per_second":
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid http.requests_per_second %q: %w", value, err)
		}
		c.HTTP.RequestsPerSecond = f
	case "http.burst":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid http.burst %q: %w", value, err)
		}
		c.HTTP.Burst = n
	default:
		return fmt.Errorf("unknown config key: %s", key)
	}
	return nil
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.FieldsFunc(value, func(r rune) bool { return r == ',' || r == ' ' }) {
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the configuration. An invalid configuration is fatal at
// startup.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// CacheDir returns the configured cache directory or the user cache default.
func (c *Config) CacheDir() string {
	if c.Cache.Dir != "" {
		return c.Cache.Dir
	}
	dir, err := os.UserCacheDir()
	if err != nil {
		return ".tanuki-cache"
	}
	return filepath.Join(dir, "tanuki")
}

// CachePath returns the location of the cache database.
func (c *Config) CachePath() string {
	return filepath.Join(c.CacheDir(), "cache.db")
}

// Save saves the configuration to the global config file
func (c *Config) Save() error {
	return c.SaveFile(ConfigPath())
}

// SaveFile writes the configuration to path.
func (c *Config) SaveFile(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	return SaveTo(path, string(data))
}

// LoadFile reads a single config file without defaults or environment.
// A missing file yields an empty config.
func LoadFile(path string) (*Config, error) {
	cfg, err := readFile(path)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		cfg = &Config{}
	}
	return cfg, nil
}

// ToYAML returns the config as a YAML string
func (c *Config) ToYAML() (string, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("failed to marshal config: %w", err)
	}
	return string(data), nil
}

// ConfigPathInfo contains information about config file paths
type ConfigPathInfo struct {
	GlobalPath   string
	GlobalExists bool
	LocalPath    string
	LocalExists  bool
}

// GetConfigPaths returns path info for both global and local configs
func GetConfigPaths() ConfigPathInfo {
	globalPath := ConfigPath()
	localPath := LocalConfigPath()

	absLocalPath, err := filepath.Abs(localPath)
	if err != nil {
		absLocalPath = localPath
	}

	_, globalErr := os.Stat(globalPath)
	_, localErr := os.Stat(localPath)

	return ConfigPathInfo{
		GlobalPath:   globalPath,
		GlobalExists: globalErr == nil,
		LocalPath:    absLocalPath,
		LocalExists:  localErr == nil,
	}
}

// MinimalConfig returns a minimal config template with comments
func MinimalConfig() string {
	return `# tanuki configuration file
# Every key can be overridden with a TANUKI_* environment variable,
# e.g. TANUKI_BASE_URL or TANUKI_OAUTH_CLIENT_ID.

# GitLab instance
base_url: https://gitlab.com
# api_prefix: /api/v4

# OAuth application (required for 'tanuki auth login')
oauth:
  client_id: ""
  redirect_uri: http://127.0.0.1:7777/callback
  scopes:
    - read_api
    - read_user

# Page cache
# cache:
#   dir: ~/.cache/tanuki
#   ttl: 5m

# API client
# http:
#   timeout: 30s
#   requests_per_second: 0
`
}

// SaveTo writes content to a specific path, creating directories as needed
func SaveTo(path string, content string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		return fmt.Errorf("failed to write file %s: %w", path, err)
	}

	return nil
}

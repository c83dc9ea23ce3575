package provider

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"
)

type ConfigCache struct {
	providersDir string
	cache        map[string]*Config
	mu           sync.RWMutex
}

func NewConfigCache(providersDir string) *ConfigCache {
	return &ConfigCache{
		providersDir: providersDir,
		cache:        make(map[string]*Config),
	}
}

// Run loads every <name>.yml in the providers directory. When the directory
// is missing or holds no definitions the built-in providers are used.
func (cc *ConfigCache) Run() error {
	files, err := filepath.Glob(filepath.Join(cc.providersDir, "*.yml"))
	if err != nil {
		return fmt.Errorf("failed to find YML files: %w", err)
	}

	if _, statErr := os.Stat(cc.providersDir); os.IsNotExist(statErr) || len(files) == 0 {
		slog.Info("No provider configurations found, using built-in providers", "dir", cc.providersDir)
		return cc.loadDefaults()
	}

	for _, file := range files {
		fileName := filepath.Base(file)
		providerName := fileName[:len(fileName)-4]

		config, err := cc.LoadConfig(providerName)
		if err != nil {
			return fmt.Errorf("error loading %s: %w", file, err)
		}

		slog.Debug("Configuration loaded", "provider", providerName, "kind", config.Kind, "category", config.Category, "enabled", config.Settings.Enabled)
	}

	return nil
}

func (cc *ConfigCache) LoadConfig(providerName string) (*Config, error) {
	configFile := cc.getConfigFilePath(providerName)
	data, err := os.ReadFile(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	config, err := parseConfig(data)
	if err != nil {
		return nil, err
	}

	config.Name = providerName

	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", configFile, err)
	}

	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.cache[config.Name] = config

	return config, nil
}

func (cc *ConfigCache) loadDefaults() error {
	cc.mu.Lock()
	defer cc.mu.Unlock()

	for _, config := range DefaultConfigs() {
		applyDefaults(config)
		if err := validateConfig(config); err != nil {
			return fmt.Errorf("invalid built-in provider %s: %w", config.Name, err)
		}
		cc.cache[config.Name] = config
	}

	return nil
}

func (cc *ConfigCache) GetConfig(providerName string) (*Config, error) {
	cc.mu.RLock()
	defer cc.mu.RUnlock()

	config, ok := cc.cache[providerName]
	if !ok {
		return nil, fmt.Errorf("provider config with name '%s' not found", providerName)
	}
	return config, nil
}

// GetConfigs returns every loaded configuration sorted by name.
func (cc *ConfigCache) GetConfigs() []*Config {
	cc.mu.RLock()
	defer cc.mu.RUnlock()

	configs := make([]*Config, 0, len(cc.cache))
	for _, v := range cc.cache {
		configs = append(configs, v)
	}
	sort.Slice(configs, func(i, j int) bool { return configs[i].Name < configs[j].Name })
	return configs
}

// GetEnabledConfigs returns the enabled configurations sorted by name.
func (cc *ConfigCache) GetEnabledConfigs() []*Config {
	all := cc.GetConfigs()
	enabled := make([]*Config, 0, len(all))
	for _, config := range all {
		if config.Settings.Enabled {
			enabled = append(enabled, config)
		}
	}
	return enabled
}

func (cc *ConfigCache) GetConfigCount() int {
	cc.mu.RLock()
	defer cc.mu.RUnlock()
	return len(cc.cache)
}

func parseConfig(data []byte) (*Config, error) {
	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	applyDefaults(&config)

	return &config, nil
}

func applyDefaults(config *Config) {
	if config.Settings.MaxItems == 0 {
		config.Settings.MaxItems = 8
	}
	if config.Settings.Timeout == 0 {
		config.Settings.Timeout = 15
	}
	if config.Settings.DescriptionLength == 0 {
		config.Settings.DescriptionLength = 200
	}
}

func validateConfig(config *Config) error {
	if config == nil {
		return fmt.Errorf("config is nil")
	}

	requiredFields := map[string]string{
		"provider name": config.Name,
		"kind":          config.Kind,
		"category":      config.Category,
	}

	for fieldName, fieldValue := range requiredFields {
		if fieldValue == "" {
			return fmt.Errorf("%s is required", fieldName)
		}
	}

	switch config.Kind {
	case KindRSS:
		if config.URL == "" {
			return fmt.Errorf("url is required for rss providers")
		}
	case KindReddit:
		if len(config.Subreddits) == 0 {
			return fmt.Errorf("at least one subreddit is required for reddit providers")
		}
	case KindDadJoke, KindHackerNews, KindJokeAPI:
	default:
		return fmt.Errorf("unknown kind: %s", config.Kind)
	}

	nonNegativeFields := map[string]int{
		"max items":          config.Settings.MaxItems,
		"timeout":            config.Settings.Timeout,
		"description length": config.Settings.DescriptionLength,
	}

	for fieldName, fieldValue := range nonNegativeFields {
		if fieldValue < 0 {
			return fmt.Errorf("%s must be non-negative", fieldName)
		}
	}

	validFields := map[string]bool{
		"title":       true,
		"description": true,
		"url":         true,
	}

	for i, filter := range config.Filters {
		if !validFields[filter.Field] {
			return fmt.Errorf("invalid filter field at index %d: %s", i, filter.Field)
		}
		if len(filter.Includes) == 0 && len(filter.Excludes) == 0 {
			return fmt.Errorf("filter at index %d must have at least one include or exclude rule", i)
		}
	}

	return nil
}

func (cc *ConfigCache) getConfigFilePath(providerName string) string {
	return filepath.Join(cc.providersDir, providerName+".yml")
}

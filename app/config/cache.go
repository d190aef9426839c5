package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/serpwatch/serp-watch/app/database"
)

type Cache struct {
	projectsDir string
	cache       map[string]*Config
	mu          sync.RWMutex
}

func NewCache(projectsDir string) *Cache {
	return &Cache{
		projectsDir: projectsDir,
		cache:       make(map[string]*Config),
	}
}

func (c *Cache) Run() error {
	if _, err := os.Stat(c.projectsDir); os.IsNotExist(err) {
		return nil
	}

	files, err := filepath.Glob(filepath.Join(c.projectsDir, "*.yml"))
	if err != nil {
		return fmt.Errorf("failed to find YML files: %w", err)
	}

	for _, file := range files {
		// Derive project name from filename (remove .yml extension)
		fileName := filepath.Base(file)
		projectName := strings.TrimSuffix(fileName, ".yml")

		projectConfig, err := c.LoadConfig(projectName)
		if err != nil {
			return fmt.Errorf("error loading %s: %w", file, err)
		}

		slog.Debug("Configuration loaded", "project", projectName,
			"enabled", projectConfig.Settings.Enabled, "keywords", len(projectConfig.Keywords))
	}

	return nil
}

func (c *Cache) LoadConfig(projectName string) (*Config, error) {
	configFile := c.getConfigFilePath(projectName)
	projectConfig, err := c.parseConfig(configFile)
	if err != nil {
		return nil, err
	}

	// Set project name from parameter
	projectConfig.Name = projectName

	if err := c.validateConfig(projectConfig); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", configFile, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache[projectConfig.Name] = projectConfig

	return projectConfig, nil
}

func (c *Cache) GetConfig(projectName string) (*Config, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	projectConfig, ok := c.cache[projectName]
	if !ok {
		return nil, fmt.Errorf("project config with name '%s' not found", projectName)
	}
	return projectConfig, nil
}

func (c *Cache) GetConfigs() map[string]*Config {
	c.mu.RLock()
	defer c.mu.RUnlock()

	configsCopy := make(map[string]*Config, len(c.cache))
	for k, v := range c.cache {
		configsCopy[k] = v
	}
	return configsCopy
}

func (c *Cache) GetEnabledConfigs() map[string]*Config {
	c.mu.RLock()
	defer c.mu.RUnlock()

	enabledConfigs := make(map[string]*Config)
	for k, v := range c.cache {
		if v.Settings.Enabled {
			enabledConfigs[k] = v
		}
	}
	return enabledConfigs
}

func (c *Cache) GetConfigCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.cache)
}

func (c *Cache) parseConfig(configFile string) (*Config, error) {
	data, err := os.ReadFile(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var projectConfig Config
	if err := yaml.Unmarshal(data, &projectConfig); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if projectConfig.Settings.Timeout == 0 {
		projectConfig.Settings.Timeout = 30
	}

	return &projectConfig, nil
}

func (c *Cache) validateConfig(projectConfig *Config) error {
	if projectConfig == nil {
		return fmt.Errorf("projectConfig is nil")
	}

	requiredFields := map[string]string{
		"project name": projectConfig.Name,
		"project URL":  projectConfig.URL,
	}

	for fieldName, fieldValue := range requiredFields {
		if fieldValue == "" {
			return fmt.Errorf("%s is required", fieldName)
		}
	}

	if projectConfig.Settings.Timeout < 0 {
		return fmt.Errorf("timeout must be non-negative")
	}

	validPriorities := map[string]bool{
		"":       true, // defaults to medium on registration
		"high":   true,
		"medium": true,
		"low":    true,
	}

	for i, kw := range projectConfig.Keywords {
		if kw.Text == "" {
			return fmt.Errorf("keyword at index %d must have text", i)
		}
		if !validPriorities[kw.Priority] {
			return fmt.Errorf("invalid keyword priority at index %d: %s", i, kw.Priority)
		}
	}

	for i, user := range projectConfig.Users {
		if user.Email == "" {
			return fmt.Errorf("user at index %d must have an email", i)
		}
	}

	validServices := map[string]bool{
		database.ServiceSearchConsole:  true,
		database.ServiceAnalytics:      true,
		database.ServicePageSpeed:      true,
		database.ServiceAds:            true,
		database.ServiceGemini:         true,
		database.ServiceMobileFriendly: true,
	}

	for i, cred := range projectConfig.Credentials {
		if !validServices[cred.Service] {
			return fmt.Errorf("invalid credential service at index %d: %s", i, cred.Service)
		}
		if len(cred.Values) == 0 {
			return fmt.Errorf("credential at index %d must have at least one value", i)
		}
	}

	return nil
}

func (c *Cache) getConfigFilePath(projectName string) string {
	return filepath.Join(c.projectsDir, projectName+".yml")
}

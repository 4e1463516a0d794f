package utils

import (
	"fmt"
	"os"
	"strconv"
	"sync"

	"gopkg.in/yaml.v3"
)

// Config represents the main application configuration
type Config struct {
	Server    ServerConfig    `yaml:"server" json:"server"`
	Warehouse WarehouseConfig `yaml:"warehouse" json:"warehouse"`
	Models    ModelsConfig    `yaml:"models" json:"models"`
	Report    ReportConfig    `yaml:"report" json:"report"`
	Logging   LoggingConfig   `yaml:"logging" json:"logging"`
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Host         string `yaml:"host" json:"host"`
	Port         int    `yaml:"port" json:"port"`
	ReadTimeout  int    `yaml:"read_timeout" json:"read_timeout"`   // seconds
	WriteTimeout int    `yaml:"write_timeout" json:"write_timeout"` // seconds
	EnableCORS   bool   `yaml:"enable_cors" json:"enable_cors"`
}

// WarehouseConfig holds warehouse connection configuration
type WarehouseConfig struct {
	Driver      string `yaml:"driver" json:"driver"` // "pgx" or "sqlite3"
	DSN         string `yaml:"dsn" json:"dsn"`
	Schema      string `yaml:"schema" json:"schema"`
	RefreshCron string `yaml:"refresh_cron" json:"refresh_cron"` // empty disables scheduled refresh
}

// ModelsConfig holds model artifact configuration
type ModelsConfig struct {
	Dir      string `yaml:"dir" json:"dir"`
	NumTrees int    `yaml:"num_trees" json:"num_trees"`
	Seed     int64  `yaml:"seed" json:"seed"`
}

// ReportConfig holds report output configuration
type ReportConfig struct {
	Path  string `yaml:"path" json:"path"`
	Title string `yaml:"title" json:"title"`
}

// LoggingConfig holds logging-related configuration
type LoggingConfig struct {
	Level  string `yaml:"level" json:"level"`   // debug, info, warn, error
	Format string `yaml:"format" json:"format"` // json, text
}

// ConfigManager manages application configuration
type ConfigManager struct {
	config     *Config
	configPath string
	mutex      sync.RWMutex
}

// NewConfigManager creates a new configuration manager
func NewConfigManager() *ConfigManager {
	return &ConfigManager{
		config: getDefaultConfig(),
	}
}

// LoadFromFile loads configuration from a YAML file
func (cm *ConfigManager) LoadFromFile(configPath string) error {
	cm.mutex.Lock()
	defer cm.mutex.Unlock()

	data, err := os.ReadFile(configPath)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	var newConfig Config
	if err := yaml.Unmarshal(data, &newConfig); err != nil {
		return fmt.Errorf("failed to parse YAML config: %w", err)
	}

	mergedConfig := mergeWithDefaults(&newConfig)
	if err := validateConfig(mergedConfig); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	cm.config = mergedConfig
	cm.configPath = configPath
	return nil
}

// LoadFromEnvironment overrides configuration from environment variables
func (cm *ConfigManager) LoadFromEnvironment() error {
	cm.mutex.Lock()
	defer cm.mutex.Unlock()

	if host := os.Getenv("ORDERLENS_HOST"); host != "" {
		cm.config.Server.Host = host
	}
	if port := os.Getenv("ORDERLENS_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cm.config.Server.Port = p
		}
	}
	if driver := os.Getenv("ORDERLENS_WAREHOUSE_DRIVER"); driver != "" {
		cm.config.Warehouse.Driver = driver
	}
	if dsn := os.Getenv("ORDERLENS_WAREHOUSE_DSN"); dsn != "" {
		cm.config.Warehouse.DSN = dsn
	}
	if schema := os.Getenv("ORDERLENS_WAREHOUSE_SCHEMA"); schema != "" {
		cm.config.Warehouse.Schema = schema
	}
	if dir := os.Getenv("ORDERLENS_MODELS_DIR"); dir != "" {
		cm.config.Models.Dir = dir
	}
	if logLevel := os.Getenv("ORDERLENS_LOG_LEVEL"); logLevel != "" {
		cm.config.Logging.Level = logLevel
	}

	return nil
}

// GetConfig returns the current configuration
func (cm *ConfigManager) GetConfig() *Config {
	cm.mutex.RLock()
	defer cm.mutex.RUnlock()

	// Return a copy to prevent external modifications
	configCopy := *cm.config
	return &configCopy
}

// GetConfigPath returns the current configuration file path
func (cm *ConfigManager) GetConfigPath() string {
	cm.mutex.RLock()
	defer cm.mutex.RUnlock()
	return cm.configPath
}

// getDefaultConfig returns the default configuration
func getDefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  30,
			WriteTimeout: 30,
			EnableCORS:   true,
		},
		Warehouse: WarehouseConfig{
			Driver: "sqlite3",
			DSN:    "./data/warehouse.db",
			Schema: "",
		},
		Models: ModelsConfig{
			Dir:      "./models",
			NumTrees: 100,
			Seed:     42,
		},
		Report: ReportConfig{
			Path:  "./report.pdf",
			Title: "E-Commerce Prediction Report",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// mergeWithDefaults merges user config with defaults
func mergeWithDefaults(userConfig *Config) *Config {
	merged := *getDefaultConfig()

	if userConfig.Server.Host != "" {
		merged.Server.Host = userConfig.Server.Host
	}
	if userConfig.Server.Port != 0 {
		merged.Server.Port = userConfig.Server.Port
	}
	if userConfig.Server.ReadTimeout != 0 {
		merged.Server.ReadTimeout = userConfig.Server.ReadTimeout
	}
	if userConfig.Server.WriteTimeout != 0 {
		merged.Server.WriteTimeout = userConfig.Server.WriteTimeout
	}
	merged.Server.EnableCORS = userConfig.Server.EnableCORS

	if userConfig.Warehouse.Driver != "" {
		merged.Warehouse.Driver = userConfig.Warehouse.Driver
	}
	if userConfig.Warehouse.DSN != "" {
		merged.Warehouse.DSN = userConfig.Warehouse.DSN
	}
	if userConfig.Warehouse.Schema != "" {
		merged.Warehouse.Schema = userConfig.Warehouse.Schema
	}
	if userConfig.Warehouse.RefreshCron != "" {
		merged.Warehouse.RefreshCron = userConfig.Warehouse.RefreshCron
	}

	if userConfig.Models.Dir != "" {
		merged.Models.Dir = userConfig.Models.Dir
	}
	if userConfig.Models.NumTrees != 0 {
		merged.Models.NumTrees = userConfig.Models.NumTrees
	}
	if userConfig.Models.Seed != 0 {
		merged.Models.Seed = userConfig.Models.Seed
	}

	if userConfig.Report.Path != "" {
		merged.Report.Path = userConfig.Report.Path
	}
	if userConfig.Report.Title != "" {
		merged.Report.Title = userConfig.Report.Title
	}

	if userConfig.Logging.Level != "" {
		merged.Logging.Level = userConfig.Logging.Level
	}
	if userConfig.Logging.Format != "" {
		merged.Logging.Format = userConfig.Logging.Format
	}

	return &merged
}

// validateConfig validates the configuration
func validateConfig(config *Config) error {
	if config.Server.Port < 1 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}

	if config.Warehouse.Driver != "pgx" && config.Warehouse.Driver != "sqlite3" {
		return fmt.Errorf("unsupported warehouse driver: %s", config.Warehouse.Driver)
	}
	if config.Warehouse.DSN == "" {
		return fmt.Errorf("warehouse DSN is required")
	}

	validLevels := []string{"debug", "info", "warn", "error"}
	if !contains(validLevels, config.Logging.Level) {
		return fmt.Errorf("invalid log level: %s", config.Logging.Level)
	}

	validFormats := []string{"json", "text"}
	if !contains(validFormats, config.Logging.Format) {
		return fmt.Errorf("invalid log format: %s", config.Logging.Format)
	}

	return nil
}

// contains checks if a slice contains a string
func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}

// Global configuration manager instance
var globalConfigManager *ConfigManager
var configOnce sync.Once

// GetConfigManager returns the global configuration manager instance
func GetConfigManager() *ConfigManager {
	configOnce.Do(func() {
		globalConfigManager = NewConfigManager()
	})
	return globalConfigManager
}

// LoadGlobalConfig loads configuration from default locations
func LoadGlobalConfig() (*Config, error) {
	cm := GetConfigManager()

	configPaths := []string{
		"./config.yaml",
		"./config.yml",
		"/etc/orderlens/config.yaml",
	}

	for _, path := range configPaths {
		if _, err := os.Stat(path); err == nil {
			if err := cm.LoadFromFile(path); err != nil {
				return nil, err
			}
			break
		}
	}

	// Environment variables override file config
	if err := cm.LoadFromEnvironment(); err != nil {
		return nil, err
	}
	return cm.GetConfig(), nil
}

package config

import (
	"fmt"
	"log"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Log      LogConfig      `mapstructure:"log"`
	Roster   RosterConfig   `mapstructure:"roster"`
}

// AppConfig holds application-specific configuration
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Host            string   `mapstructure:"host"`
	Port            string   `mapstructure:"port"`
	ReadTimeout     int      `mapstructure:"read_timeout"`
	WriteTimeout    int      `mapstructure:"write_timeout"`
	MaxHeaderBytes  int      `mapstructure:"max_header_bytes"`
	ShutdownTimeout int      `mapstructure:"shutdown_timeout"`
	AllowedOrigins  []string `mapstructure:"allowed_origins"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Driver   string `mapstructure:"driver"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	SSLMode  string `mapstructure:"ssl_mode"`
	MaxOpen  int    `mapstructure:"max_open_conns"`
	MaxIdle  int    `mapstructure:"max_idle_conns"`
}

// CacheConfig holds the snapshot store configuration. Type "memory"
// keeps snapshots in process, "redis" uses the redis server.
type CacheConfig struct {
	Type     string `mapstructure:"type"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Addr returns host:port of the redis server.
func (c CacheConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level    string `mapstructure:"level"`
	Format   string `mapstructure:"format"`
	Output   string `mapstructure:"output"`
	FilePath string `mapstructure:"file_path"`
}

// RosterConfig holds the data store limits and defaults.
type RosterConfig struct {
	MaxStudentsPerClass int    `mapstructure:"max_students_per_class"`
	DefaultMaxRating    int    `mapstructure:"default_max_rating"`
	DefaultGridColumns  int    `mapstructure:"default_grid_columns"`
	SnapshotPrefix      string `mapstructure:"snapshot_prefix"`
	NotifyBuffer        int    `mapstructure:"notify_buffer"`
}

var config *Config

// Init initializes the configuration
func Init() {
	config = &Config{}

	// Set default values
	setDefaults()

	// Unmarshal configuration from viper
	if err := viper.Unmarshal(config); err != nil {
		log.Fatalf("Unable to decode config: %v", err)
	}
	if err := config.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}
}

// Validate rejects settings the roster cannot run with.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "postgres", "memory":
	default:
		return fmt.Errorf("database.driver must be postgres or memory, got %q", c.Database.Driver)
	}
	switch c.Cache.Type {
	case "redis", "memory":
	default:
		return fmt.Errorf("cache.type must be redis or memory, got %q", c.Cache.Type)
	}
	if c.Roster.MaxStudentsPerClass < 1 {
		return fmt.Errorf("roster.max_students_per_class must be positive")
	}
	if c.Roster.DefaultMaxRating < 1 {
		return fmt.Errorf("roster.default_max_rating must be positive")
	}
	if c.Roster.DefaultGridColumns < 1 {
		return fmt.Errorf("roster.default_grid_columns must be positive")
	}
	if c.Server.ShutdownTimeout < 1 {
		return fmt.Errorf("server.shutdown_timeout must be at least one second")
	}
	return nil
}

// Get returns the global configuration
func Get() *Config {
	if config == nil {
		Init()
	}
	return config
}

// setDefaults sets default configuration values
func setDefaults() {
	// App defaults
	viper.SetDefault("app.name", "classroom-roster")
	viper.SetDefault("app.version", "1.0.0")
	viper.SetDefault("app.environment", "development")

	// Server defaults
	viper.SetDefault("server.host", "localhost")
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("server.read_timeout", 15)
	viper.SetDefault("server.write_timeout", 15)
	viper.SetDefault("server.max_header_bytes", 1048576)
	viper.SetDefault("server.shutdown_timeout", 10)
	viper.SetDefault("server.allowed_origins", []string{"*"})

	// Database defaults
	viper.SetDefault("database.driver", "postgres")
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.username", "postgres")
	viper.SetDefault("database.password", "")
	viper.SetDefault("database.name", "classroom_roster")
	viper.SetDefault("database.ssl_mode", "disable")
	viper.SetDefault("database.max_open_conns", 10)
	viper.SetDefault("database.max_idle_conns", 5)

	// Cache defaults
	viper.SetDefault("cache.type", "redis")
	viper.SetDefault("cache.host", "localhost")
	viper.SetDefault("cache.port", 6379)
	viper.SetDefault("cache.password", "")
	viper.SetDefault("cache.db", 0)

	// Log defaults
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "json")
	viper.SetDefault("log.output", "stdout")
	viper.SetDefault("log.file_path", "logs/roster.log")

	// Roster defaults
	viper.SetDefault("roster.max_students_per_class", 40)
	viper.SetDefault("roster.default_max_rating", 4)
	viper.SetDefault("roster.default_grid_columns", 6)
	viper.SetDefault("roster.snapshot_prefix", "roster:snapshot")
	viper.SetDefault("roster.notify_buffer", 64)
}

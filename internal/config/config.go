// internal/config/config.go
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Store     StoreConfig     `mapstructure:"store"`
	Discovery DiscoveryConfig `mapstructure:"discovery"`
	Printer   PrinterConfig   `mapstructure:"printer"`
	Payment   PaymentConfig   `mapstructure:"payment"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	App       AppConfig       `mapstructure:"app"`
}

// ServerConfig represents HTTP server configuration
type ServerConfig struct {
	Host           string        `mapstructure:"host"`
	Port           string        `mapstructure:"port"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	IdleTimeout    time.Duration `mapstructure:"idle_timeout"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
}

// StoreConfig represents connectivity state store configuration
type StoreConfig struct {
	Path string `mapstructure:"path"`
}

// DiscoveryConfig represents per-transport discovery configuration.
// Timeouts are configuration rather than constants; scanning remains
// cancellable regardless of the values chosen here.
type DiscoveryConfig struct {
	SerialScanTimeout time.Duration `mapstructure:"serial_scan_timeout"`
	USBScanTimeout    time.Duration `mapstructure:"usb_scan_timeout"`
	BLEScanTimeout    time.Duration `mapstructure:"ble_scan_timeout"`
	NFCScanTimeout    time.Duration `mapstructure:"nfc_scan_timeout"`
	ConnectTimeout    time.Duration `mapstructure:"connect_timeout"`
}

// PrinterConfig represents printer slot configuration
type PrinterConfig struct {
	PaperProfile        string        `mapstructure:"paper_profile"`
	BaudRate            int           `mapstructure:"baud_rate"`
	AckTimeout          time.Duration `mapstructure:"ack_timeout"`
	HealthCheckInterval time.Duration `mapstructure:"health_check_interval"`
}

// PaymentConfig represents payment collection configuration.
// Simulated mode is an explicit flag, never inferred from failures.
type PaymentConfig struct {
	BackendURL     string        `mapstructure:"backend_url"`
	Currency       string        `mapstructure:"currency"`
	Simulated      bool          `mapstructure:"simulated"`
	TokenTimeout   time.Duration `mapstructure:"token_timeout"`
	CollectTimeout time.Duration `mapstructure:"collect_timeout"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
	Compress   bool   `mapstructure:"compress"`
}

// AppConfig represents application metadata
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
	Debug       bool   `mapstructure:"debug"`
}

// Load loads configuration from file and environment variables
func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	// Environment variable support
	viper.SetEnvPrefix("TERMINAL_SERVICE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		// Missing config file is fine, defaults and env cover everything
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults() {
	// Server defaults
	viper.SetDefault("server.host", "127.0.0.1")
	viper.SetDefault("server.port", "8092")
	viper.SetDefault("server.read_timeout", "30s")
	viper.SetDefault("server.write_timeout", "30s")
	viper.SetDefault("server.idle_timeout", "120s")

	// Store defaults
	viper.SetDefault("store.path", "./data/connectivity.db")

	// Discovery defaults
	viper.SetDefault("discovery.serial_scan_timeout", "10s")
	viper.SetDefault("discovery.usb_scan_timeout", "10s")
	viper.SetDefault("discovery.ble_scan_timeout", "30s")
	viper.SetDefault("discovery.nfc_scan_timeout", "5s")
	viper.SetDefault("discovery.connect_timeout", "20s")

	// Printer defaults
	viper.SetDefault("printer.paper_profile", "80mm")
	viper.SetDefault("printer.baud_rate", 9600)
	viper.SetDefault("printer.ack_timeout", "3s")
	viper.SetDefault("printer.health_check_interval", "30s")

	// Payment defaults
	viper.SetDefault("payment.backend_url", "http://localhost:4242")
	viper.SetDefault("payment.currency", "usd")
	viper.SetDefault("payment.simulated", true)
	viper.SetDefault("payment.token_timeout", "10s")
	viper.SetDefault("payment.collect_timeout", "120s")

	// Logging defaults
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("logging.output", "stdout")
	viper.SetDefault("logging.max_size", 100)
	viper.SetDefault("logging.max_backups", 3)
	viper.SetDefault("logging.max_age", 28)
	viper.SetDefault("logging.compress", true)

	// App defaults
	viper.SetDefault("app.name", "terminal-service")
	viper.SetDefault("app.version", "1.0.0")
	viper.SetDefault("app.environment", "development")
	viper.SetDefault("app.debug", false)
}

// validate validates the configuration
func validate(config *Config) error {
	if config.Server.Host == "" {
		return fmt.Errorf("server.host is required")
	}
	if config.Server.Port == "" {
		return fmt.Errorf("server.port is required")
	}
	if config.Store.Path == "" {
		return fmt.Errorf("store.path is required")
	}

	switch config.Printer.PaperProfile {
	case "58mm", "80mm":
	default:
		return fmt.Errorf("printer.paper_profile must be 58mm or 80mm")
	}

	validEnvs := []string{"development", "staging", "production", "test"}
	isValidEnv := false
	for _, env := range validEnvs {
		if config.App.Environment == env {
			isValidEnv = true
			break
		}
	}
	if !isValidEnv {
		return fmt.Errorf("app.environment must be one of: %v", validEnvs)
	}

	validLevels := []string{"debug", "info", "warn", "error", "fatal"}
	isValidLevel := false
	for _, level := range validLevels {
		if config.Logging.Level == level {
			isValidLevel = true
			break
		}
	}
	if !isValidLevel {
		return fmt.Errorf("logging.level must be one of: %v", validLevels)
	}

	return nil
}

// GetServerAddr returns the server address
func (c *Config) GetServerAddr() string {
	return fmt.Sprintf("%s:%s", c.Server.Host, c.Server.Port)
}

// IsProduction checks if the environment is production
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// IsDevelopment checks if the environment is development
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development"
}

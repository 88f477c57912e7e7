// File: internal/config/config.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"

	"github.com/fitforge/fitroom-cli/api/schemas"
)

// Config holds the entire application configuration.
type Config struct {
	Logger  LoggerConfig  `mapstructure:"logger" yaml:"logger"`
	Gateway GatewayConfig `mapstructure:"gateway" yaml:"gateway"`
	Storage StorageConfig `mapstructure:"storage" yaml:"storage"`
	Studio  StudioConfig  `mapstructure:"studio" yaml:"studio"`
}

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Format      string `mapstructure:"format" yaml:"format"`
	AddSource   bool   `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int    `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int    `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool   `mapstructure:"compress" yaml:"compress"`
}

// GatewayConfig configures the image-generation service client.
type GatewayConfig struct {
	Model             string        `mapstructure:"model" yaml:"model"`
	APIKey            string        `mapstructure:"api_key" yaml:"-"`
	APITimeout        time.Duration `mapstructure:"api_timeout" yaml:"api_timeout"`
	MaxRetryElapsed   time.Duration `mapstructure:"max_retry_elapsed" yaml:"max_retry_elapsed"`
	RequestsPerMinute float64       `mapstructure:"requests_per_minute" yaml:"requests_per_minute"`
}

// StorageConfig locates the local lookbook database.
type StorageConfig struct {
	LookbookPath string `mapstructure:"lookbook_path" yaml:"lookbook_path"`
}

// StudioConfig carries the editing-session defaults.
type StudioConfig struct {
	DefaultAspectRatio string   `mapstructure:"default_aspect_ratio" yaml:"default_aspect_ratio"`
	Poses              []string `mapstructure:"poses" yaml:"poses"`
}

// DefaultPoses is the stock pose catalog. Index 0 is the initial full-frontal
// pose every new model photo is generated in.
func DefaultPoses() []string {
	return []string{
		"Full frontal view, hands on hips",
		"Slightly turned, 3/4 view",
		"Side profile view",
		"Walking towards camera",
		"Jumping in the air, mid-action shot",
		"Leaning against a wall",
	}
}

// SetDefaults initializes default values for all configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "fitroom-cli")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 50)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 14)
	v.SetDefault("logger.compress", true)

	// -- Gateway --
	v.SetDefault("gateway.model", "gemini-2.5-flash-image-preview")
	v.SetDefault("gateway.api_timeout", "90s")
	v.SetDefault("gateway.max_retry_elapsed", "2m")
	v.SetDefault("gateway.requests_per_minute", 30.0)

	// -- Storage --
	v.SetDefault("storage.lookbook_path", defaultLookbookPath())

	// -- Studio --
	v.SetDefault("studio.default_aspect_ratio", string(schemas.AspectPortrait))
	v.SetDefault("studio.poses", DefaultPoses())
}

// defaultLookbookPath resolves ~/.fitroom/lookbook.db, falling back to the
// working directory when the home directory cannot be determined.
func defaultLookbookPath() string {
	home, err := homedir.Dir()
	if err != nil {
		return "lookbook.db"
	}
	return filepath.Join(home, ".fitroom", "lookbook.db")
}

// NewDefaultConfig creates a configuration populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// Cannot happen with defaults only.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// NewConfigFromViper creates a configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	v.BindEnv("gateway.api_key", "FITROOM_GEMINI_API_KEY")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if cfg.Gateway.APIKey == "" {
		cfg.Gateway.APIKey = os.Getenv("FITROOM_GEMINI_API_KEY")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if c.Gateway.Model == "" {
		return fmt.Errorf("gateway.model is a required configuration field")
	}
	if c.Gateway.APITimeout <= 0 {
		return fmt.Errorf("gateway.api_timeout must be a positive duration")
	}
	if c.Gateway.RequestsPerMinute <= 0 {
		return fmt.Errorf("gateway.requests_per_minute must be positive")
	}
	if c.Storage.LookbookPath == "" {
		return fmt.Errorf("storage.lookbook_path is a required configuration field")
	}
	if !schemas.AspectRatio(c.Studio.DefaultAspectRatio).Valid() {
		return fmt.Errorf("studio.default_aspect_ratio %q is not a supported ratio", c.Studio.DefaultAspectRatio)
	}
	if len(c.Studio.Poses) == 0 {
		return fmt.Errorf("studio.poses must contain at least the initial pose")
	}
	return nil
}

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration.
type Config struct {
	Database DatabaseConfig
	Catalog  CatalogConfig
	Loader   LoaderConfig
	Stats    StatsConfig
	Viewer   ViewerConfig
	Log      LogConfig
	Metrics  MetricsConfig
}

// DatabaseConfig holds sqlite settings.
type DatabaseConfig struct {
	Path string
}

// CatalogConfig points at an optional sources file replacing the built-in list.
type CatalogConfig struct {
	SeedFile string `mapstructure:"seed_file"`
}

// LoaderConfig holds network settings for pyramid readers.
type LoaderConfig struct {
	HTTPTimeout time.Duration `mapstructure:"http_timeout"`
}

// StatsConfig holds channel statistics cache settings.
type StatsConfig struct {
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

// ViewerConfig holds presentation settings.
type ViewerConfig struct {
	DefaultSource string  `mapstructure:"default_source"`
	MaxChannels   int     `mapstructure:"max_channels"`
	ScaleWidth    float64 `mapstructure:"scale_width"`
	ScaleHeight   float64 `mapstructure:"scale_height"`
}

// LogConfig holds logging settings. The terminal belongs to the TUI, so logs
// go to a file.
type LogConfig struct {
	Level int
	File  string
}

// MetricsConfig holds the Prometheus listener address; empty disables it.
type MetricsConfig struct {
	Addr string
}

// Load reads configuration from file and env. Env var overrides use prefix PYRAMIDVIEW_.
func Load() (Config, error) {
	v := viper.New()

	home := os.Getenv("HOME")
	v.SetDefault("database.path", filepath.Join(home, ".local", "share", "pyramidview", "catalog.db"))
	v.SetDefault("catalog.seed_file", "")
	v.SetDefault("loader.http_timeout", 30*time.Second)
	v.SetDefault("stats.cache_ttl", 10*time.Minute)
	v.SetDefault("viewer.default_source", "tiff")
	v.SetDefault("viewer.max_channels", 6)
	v.SetDefault("viewer.scale_width", 1.0)
	v.SetDefault("viewer.scale_height", 1.0)
	v.SetDefault("log.level", 0)
	v.SetDefault("log.file", filepath.Join(home, ".local", "state", "pyramidview", "pyramidview.log"))
	v.SetDefault("metrics.addr", "")

	v.SetConfigType("toml")

	cfgPath := os.Getenv("PYRAMIDVIEW_CONFIG")
	if cfgPath != "" {
		v.SetConfigFile(cfgPath)
	} else {
		v.AddConfigPath(filepath.Join(home, ".config", "pyramidview"))
		v.SetConfigName("config")
	}

	v.SetEnvPrefix("PYRAMIDVIEW")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// read config file if present
	_ = v.ReadInConfig()

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if c.Viewer.MaxChannels <= 0 {
		return Config{}, fmt.Errorf("viewer.max_channels must be positive, got %d", c.Viewer.MaxChannels)
	}
	if c.Viewer.ScaleWidth <= 0 || c.Viewer.ScaleHeight <= 0 {
		return Config{}, fmt.Errorf("viewer scale must be positive, got %gx%g", c.Viewer.ScaleWidth, c.Viewer.ScaleHeight)
	}
	return c, nil
}

// Save writes the provided config to disk, creating the config directory if needed.
func Save(cfg Config) error {
	path := os.Getenv("PYRAMIDVIEW_CONFIG")
	if path == "" {
		path = filepath.Join(os.Getenv("HOME"), ".config", "pyramidview", "config.toml")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir config dir: %w", err)
	}

	v := viper.New()
	v.SetConfigType("toml")
	v.Set("database.path", cfg.Database.Path)
	v.Set("catalog.seed_file", cfg.Catalog.SeedFile)
	v.Set("loader.http_timeout", cfg.Loader.HTTPTimeout.String())
	v.Set("stats.cache_ttl", cfg.Stats.CacheTTL.String())
	v.Set("viewer.default_source", cfg.Viewer.DefaultSource)
	v.Set("viewer.max_channels", cfg.Viewer.MaxChannels)
	v.Set("viewer.scale_width", cfg.Viewer.ScaleWidth)
	v.Set("viewer.scale_height", cfg.Viewer.ScaleHeight)
	v.Set("log.level", cfg.Log.Level)
	v.Set("log.file", cfg.Log.File)
	v.Set("metrics.addr", cfg.Metrics.Addr)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	DataDir        string        `mapstructure:"data_dir"`
	User           string        `mapstructure:"user"`
	MinQueryLength int           `mapstructure:"min_query_length"`
	RecentLimit    int           `mapstructure:"recent_limit"`
	HTTPTimeout    time.Duration `mapstructure:"http_timeout"`
	Log            LogConfig     `mapstructure:"log"`
	Server         ServerConfig  `mapstructure:"server"`
	Sources        SourcesConfig `mapstructure:"sources"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // text or json
}

type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

// CatalogConfig configures one catalog adapter. BaseURL overrides the
// public endpoint; APIKey is only read by catalogs that require one.
type CatalogConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	BaseURL string `mapstructure:"base_url"`
	APIKey  string `mapstructure:"api_key"`
}

type SourcesConfig struct {
	Artic       CatalogConfig `mapstructure:"artic"`
	Harvard     CatalogConfig `mapstructure:"harvard"`
	Met         CatalogConfig `mapstructure:"met"`
	Cleveland   CatalogConfig `mapstructure:"cleveland"`
	VAM         CatalogConfig `mapstructure:"vam"`
	Smithsonian CatalogConfig `mapstructure:"smithsonian"`
}

func Load() (*Config, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}

	defaultDataDir := filepath.Join(homeDir, ".arthub")

	viper.SetDefault("data_dir", defaultDataDir)
	viper.SetDefault("user", "")
	viper.SetDefault("min_query_length", 3)
	viper.SetDefault("recent_limit", 10)
	viper.SetDefault("http_timeout", "30s")
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "text")
	viper.SetDefault("server.addr", ":8888")
	for _, name := range []string{"artic", "harvard", "met", "cleveland", "vam", "smithsonian"} {
		viper.SetDefault("sources."+name+".enabled", true)
	}

	// Environment variable overrides
	viper.SetEnvPrefix("ARTHUB")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	viper.BindEnv("data_dir", "ARTHUB_DATA_DIR")
	viper.BindEnv("user", "ARTHUB_USER")
	viper.BindEnv("sources.harvard.api_key", "ARTHUB_HARVARD_API_KEY", "HARVARD_API_KEY")
	viper.BindEnv("sources.smithsonian.api_key", "ARTHUB_SMITHSONIAN_API_KEY", "SMITHSONIAN_API_KEY")

	// Config file
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(defaultDataDir)

	// Read config file if exists (ignore error if not found)
	_ = viper.ReadInConfig()

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	// Ensure data directory exists
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Logger builds the process logger from the log section.
func (c *Config) Logger() *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}

	var h slog.Handler
	if c.Log.Format == "json" {
		h = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		h = slog.NewTextHandler(os.Stderr, opts)
	}
	return slog.New(h)
}

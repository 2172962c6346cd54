package main

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/tinytelemetry/onuwatch/internal/model"
)

const (
	defaultAPIURL          = "http://127.0.0.1:8000"
	defaultPollInterval    = model.DefaultPollInterval
	defaultPollTimeout     = model.DefaultPollTimeout
	defaultRefreshInterval = model.DefaultRefreshInterval
	defaultPageSize        = model.DefaultPageSize
	defaultMinHours        = model.DefaultMinHours
)

// cliConfig holds only TUI-relevant configuration.
type cliConfig struct {
	APIURL          string        `mapstructure:"api-url"`
	PollInterval    time.Duration `mapstructure:"poll-interval"`
	PollTimeout     time.Duration `mapstructure:"poll-timeout"`
	RefreshInterval time.Duration `mapstructure:"refresh-interval"`
	PageSize        int           `mapstructure:"page-size"`
	MinHours        int           `mapstructure:"min-hours"`
	LogLevel        string        `mapstructure:"log-level"`
	LogFile         string        `mapstructure:"tui-log-file"`
}

func loadCLIConfig(configPath string) (cliConfig, error) {
	var cfg cliConfig

	home, err := os.UserHomeDir()
	if err != nil {
		return cfg, fmt.Errorf("finding home directory: %w", err)
	}

	v := viper.New()
	v.SetEnvPrefix("ONUWATCH")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	v.SetDefault("api-url", defaultAPIURL)
	v.SetDefault("poll-interval", defaultPollInterval)
	v.SetDefault("poll-timeout", defaultPollTimeout)
	v.SetDefault("refresh-interval", defaultRefreshInterval)
	v.SetDefault("page-size", defaultPageSize)
	v.SetDefault("min-hours", defaultMinHours)
	v.SetDefault("log-level", "info")
	v.SetDefault("tui-log-file", "")

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigFile(filepath.Join(home, ".config", "onuwatch", "config.yml"))
	}

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFound) && !os.IsNotExist(err) {
			return cfg, err
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, err
	}

	if u, err := url.Parse(cfg.APIURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return cfg, fmt.Errorf("invalid api-url: %q", cfg.APIURL)
	}
	if cfg.PollInterval <= 0 {
		return cfg, fmt.Errorf("invalid poll-interval: %s", cfg.PollInterval)
	}
	if cfg.PollTimeout < cfg.PollInterval {
		return cfg, fmt.Errorf("invalid poll-timeout: %s is shorter than poll-interval", cfg.PollTimeout)
	}
	if cfg.RefreshInterval <= 0 {
		return cfg, fmt.Errorf("invalid refresh-interval: %s", cfg.RefreshInterval)
	}
	if cfg.PageSize <= 0 || cfg.PageSize > model.MaxPageSize {
		return cfg, fmt.Errorf("invalid page-size: %d", cfg.PageSize)
	}
	if cfg.MinHours < 0 {
		return cfg, fmt.Errorf("invalid min-hours: %d", cfg.MinHours)
	}

	if strings.HasPrefix(cfg.LogFile, "~/") {
		cfg.LogFile = filepath.Join(home, cfg.LogFile[2:])
	}

	return cfg, nil
}

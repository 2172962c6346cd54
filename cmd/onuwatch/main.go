package main

import (
	"errors"
	"flag"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

// Build variables - set by ldflags during build.
var (
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
	goVersion = "unknown"
)

func main() {
	var configPath string
	var showVersion bool

	flag.StringVar(&configPath, "config", "", "config file (default is $HOME/.config/onuwatch/config.yml)")
	flag.BoolVar(&showVersion, "version", false, "print version information")
	flag.Parse()

	if showVersion {
		fmt.Printf("onuwatch - Offline Clients Service\n")
		fmt.Printf("  Version:    %s\n", version)
		fmt.Printf("  Commit:     %s\n", commit)
		fmt.Printf("  Built:      %s\n", buildTime)
		fmt.Printf("  Go version: %s\n", goVersion)
		return
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	if err := runServer(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig(configPath string) (appConfig, error) {
	var cfg appConfig

	home, err := os.UserHomeDir()
	if err != nil {
		return cfg, fmt.Errorf("finding home directory: %w", err)
	}

	dataDir := filepath.Join(home, ".local", "share", "onuwatch")

	v := viper.New()
	v.SetEnvPrefix("ONUWATCH")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	v.SetDefault("api-port", defaultAPIPort)
	v.SetDefault("db-path", filepath.Join(dataDir, "onuwatch.duckdb"))
	v.SetDefault("query-timeout", defaultQueryTimeout)
	v.SetDefault("max-upload-mb", defaultMaxUploadMB)
	v.SetDefault("ingest-queue-size", defaultIngestQueueSize)
	v.SetDefault("insert-batch-size", defaultInsertBatchSize)
	v.SetDefault("journal-enabled", true)
	v.SetDefault("journal-path", filepath.Join(dataDir, "uploads.journal"))
	v.SetDefault("job-retention", defaultJobRetention)
	v.SetDefault("job-stale-after", defaultJobStaleAfter)
	v.SetDefault("region-map-path", "")
	v.SetDefault("log-level", defaultLogLevel)
	v.SetDefault("log-format", defaultLogFormat)
	v.SetDefault("log-file", "")
	v.SetDefault("backup-enabled", false)
	v.SetDefault("backup-interval", defaultBackupInterval)
	v.SetDefault("backup-local-dir", filepath.Join(dataDir, "backups"))
	v.SetDefault("backup-keep-last", defaultBackupKeepLast)
	v.SetDefault("backup-bucket-url", "")
	v.SetDefault("backup-s3-endpoint", "")
	v.SetDefault("backup-s3-region", "us-east-1")
	v.SetDefault("backup-s3-access-key", "")
	v.SetDefault("backup-s3-secret-key", "")
	v.SetDefault("backup-s3-session-token", "")
	v.SetDefault("backup-s3-use-ssl", true)

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
	cfg.ConfigPath = v.ConfigFileUsed()
	if _, statErr := os.Stat(cfg.ConfigPath); statErr != nil {
		cfg.ConfigPath = ""
	}

	if err := validateConfig(cfg); err != nil {
		return cfg, err
	}

	cfg.DBPath = expandHome(home, cfg.DBPath)
	cfg.JournalPath = expandHome(home, cfg.JournalPath)
	cfg.RegionMapPath = expandHome(home, cfg.RegionMapPath)
	cfg.LogFile = expandHome(home, cfg.LogFile)
	cfg.BackupLocalDir = expandHome(home, cfg.BackupLocalDir)

	if cfg.APIAddr == "" {
		cfg.APIAddr = net.JoinHostPort(defaultBindHost, strconv.Itoa(cfg.APIPort))
	}

	return cfg, nil
}

func validateConfig(cfg appConfig) error {
	if cfg.APIPort <= 0 || cfg.APIPort > 65535 {
		return fmt.Errorf("invalid api-port: %d", cfg.APIPort)
	}
	if cfg.QueryTimeout <= 0 {
		return fmt.Errorf("invalid query-timeout: %s", cfg.QueryTimeout)
	}
	if cfg.MaxUploadMB <= 0 {
		return fmt.Errorf("invalid max-upload-mb: %d", cfg.MaxUploadMB)
	}
	if cfg.IngestQueueSize <= 0 {
		return fmt.Errorf("invalid ingest-queue-size: %d", cfg.IngestQueueSize)
	}
	if cfg.InsertBatchSize <= 0 {
		return fmt.Errorf("invalid insert-batch-size: %d", cfg.InsertBatchSize)
	}
	if cfg.JournalEnabled && strings.TrimSpace(cfg.JournalPath) == "" {
		return errors.New("journal-path is required when journal-enabled is true")
	}
	if cfg.JobRetention < 0 {
		return fmt.Errorf("invalid job-retention: %d", cfg.JobRetention)
	}
	if cfg.JobStaleAfter < 0 {
		return fmt.Errorf("invalid job-stale-after: %s", cfg.JobStaleAfter)
	}
	switch strings.ToLower(cfg.LogFormat) {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log-format: %q", cfg.LogFormat)
	}

	if !cfg.BackupEnabled {
		return nil
	}
	if cfg.BackupInterval <= 0 {
		return fmt.Errorf("invalid backup-interval: %s", cfg.BackupInterval)
	}
	if cfg.BackupKeepLast <= 0 {
		return fmt.Errorf("invalid backup-keep-last: %d", cfg.BackupKeepLast)
	}
	if strings.TrimSpace(cfg.DBPath) == "" {
		return errors.New("backup-enabled requires a file db-path")
	}
	if cfg.BackupBucketURL != "" && (cfg.BackupS3AccessKey == "" || cfg.BackupS3SecretKey == "") {
		return errors.New("backup-s3-access-key and backup-s3-secret-key are required when backup-bucket-url is set")
	}
	return nil
}

func expandHome(home, path string) string {
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(home, path[2:])
	}
	return path
}

package main

import (
	"time"

	"github.com/tinytelemetry/onuwatch/internal/ingest"
)

const (
	defaultBindHost        = "0.0.0.0"
	defaultAPIPort         = 8000
	defaultQueryTimeout    = 30 * time.Second
	defaultMaxUploadMB     = 50
	defaultIngestQueueSize = ingest.DefaultQueueSize
	defaultInsertBatchSize = ingest.DefaultBatchSize
	defaultJobRetention    = 30 // days, 0 = disabled
	defaultJobStaleAfter   = 15 * time.Minute
	defaultLogLevel        = "info"
	defaultLogFormat       = "text"
	defaultBackupInterval  = 6 * time.Hour
	defaultBackupKeepLast  = 24
)

// appConfig is internal runtime configuration.
// It is package-private to keep defaults and shape local to the CLI entrypoint.
type appConfig struct {
	APIPort         int           `mapstructure:"api-port"`
	APIAddr         string        `mapstructure:"api-addr"`
	DBPath          string        `mapstructure:"db-path"`
	QueryTimeout    time.Duration `mapstructure:"query-timeout"`
	MaxUploadMB     int           `mapstructure:"max-upload-mb"`
	IngestQueueSize int           `mapstructure:"ingest-queue-size"`
	InsertBatchSize int           `mapstructure:"insert-batch-size"`
	JournalEnabled  bool          `mapstructure:"journal-enabled"`
	JournalPath     string        `mapstructure:"journal-path"`
	JobRetention    int           `mapstructure:"job-retention"`
	JobStaleAfter   time.Duration `mapstructure:"job-stale-after"`
	RegionMapPath   string        `mapstructure:"region-map-path"`
	LogLevel        string        `mapstructure:"log-level"`
	LogFormat       string        `mapstructure:"log-format"`
	LogFile         string        `mapstructure:"log-file"`

	BackupEnabled        bool          `mapstructure:"backup-enabled"`
	BackupInterval       time.Duration `mapstructure:"backup-interval"`
	BackupLocalDir       string        `mapstructure:"backup-local-dir"`
	BackupKeepLast       int           `mapstructure:"backup-keep-last"`
	BackupBucketURL      string        `mapstructure:"backup-bucket-url"`
	BackupS3Endpoint     string        `mapstructure:"backup-s3-endpoint"`
	BackupS3Region       string        `mapstructure:"backup-s3-region"`
	BackupS3AccessKey    string        `mapstructure:"backup-s3-access-key"`
	BackupS3SecretKey    string        `mapstructure:"backup-s3-secret-key"`
	BackupS3SessionToken string        `mapstructure:"backup-s3-session-token"`
	BackupS3UseSSL       bool          `mapstructure:"backup-s3-use-ssl"`

	ConfigPath string `mapstructure:"-"` // not from config file
}

func (c appConfig) maxUploadBytes() int64 {
	return int64(c.MaxUploadMB) << 20
}

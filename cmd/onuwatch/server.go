package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/tinytelemetry/onuwatch/internal/backup"
	"github.com/tinytelemetry/onuwatch/internal/duckdb"
	"github.com/tinytelemetry/onuwatch/internal/httpserver"
	"github.com/tinytelemetry/onuwatch/internal/ingest"
	"github.com/tinytelemetry/onuwatch/internal/journal"
	"github.com/tinytelemetry/onuwatch/internal/logging"
	"github.com/tinytelemetry/onuwatch/internal/region"
	"golang.org/x/sync/errgroup"
)

const (
	// shutdownDeadline bounds the API stop and the ingest drain together.
	shutdownDeadline = 15 * time.Second
	// forceExitGrace is left for backup, janitor and store teardown.
	forceExitGrace = 5 * time.Second
	forceExitAfter = shutdownDeadline + forceExitGrace
)

// runServer starts the ingestion worker and the HTTP API and blocks until
// SIGINT or SIGTERM.
func runServer(cfg appConfig) error {
	logPath := cfg.LogFile
	if logPath == "" {
		logPath = logging.DefaultPath("onuwatch")
	}
	logger, cleanupLogger, err := logging.Setup(cfg.LogLevel, cfg.LogFormat, logPath)
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer cleanupLogger()

	regions, err := region.Load(cfg.RegionMapPath)
	if err != nil {
		return fmt.Errorf("failed to load region map: %w", err)
	}

	store, err := duckdb.NewStore(cfg.DBPath, cfg.QueryTimeout)
	if err != nil {
		return fmt.Errorf("failed to initialize DuckDB: %w", err)
	}
	defer store.Close()

	// Accepted uploads stay on disk until their job settles.
	var uploadJournal *journal.Journal
	if cfg.JournalEnabled {
		uploadJournal, err = journal.Open(cfg.JournalPath)
		if err != nil {
			return fmt.Errorf("failed to open upload journal: %w", err)
		}
		defer uploadJournal.Close()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	service := ingest.NewService(store, ingest.Config{
		QueueSize: cfg.IngestQueueSize,
		BatchSize: cfg.InsertBatchSize,
		Journal:   uploadJournal,
		Regions:   regions,
	})
	if err := service.Start(ctx); err != nil {
		return fmt.Errorf("failed to start ingestion: %w", err)
	}
	ingestRunning := true
	defer func() {
		if !ingestRunning {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), shutdownDeadline)
		defer cancel()
		stopIngest(ctx, service, logger)
	}()

	janitor := duckdb.NewJobJanitor(store, duckdb.JanitorConfig{
		RetentionDays: cfg.JobRetention,
		StaleAfter:    cfg.JobStaleAfter,
	})
	if janitor != nil {
		defer janitor.Stop()
	}

	backupManager, err := backup.NewManager(store, backupConfig(cfg))
	if err != nil {
		return fmt.Errorf("failed to initialize backups: %w", err)
	}
	defer backupManager.Stop()

	apiServer := httpserver.NewServer(cfg.APIAddr, store, service, httpserver.Config{
		MaxUploadBytes: cfg.maxUploadBytes(),
	})
	if err := apiServer.Start(); err != nil {
		return fmt.Errorf("failed to start API server: %w", err)
	}

	printStartupBanner(cfg, regions.Len())
	logger.Info("onuwatch started",
		"version", version,
		"api_addr", cfg.APIAddr,
		"db_path", cfg.DBPath,
		"journal", cfg.JournalEnabled,
		"regions", regions.Len(),
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		select {
		case <-sigCh:
			fmt.Println("\nShutting down gracefully... (press Ctrl+C again to force)")
		case <-gctx.Done():
		}
		cancel()

		go func() {
			// Shutdown deadline starts now, not at boot.
			deadline := time.NewTimer(forceExitAfter)
			defer deadline.Stop()
			select {
			case <-sigCh:
				fmt.Println("\nForce shutdown.")
			case <-deadline.C:
				fmt.Println("Shutdown timed out, forcing exit.")
			}
			os.Exit(1)
		}()
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("server exited with error", "err", err)
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), shutdownDeadline)
	defer stopCancel()

	// The API goes first so no upload is accepted past this point.
	if err := apiServer.Stop(stopCtx); err != nil {
		logger.Warn("api server shutdown", "err", err)
	}
	stopIngest(stopCtx, service, logger)
	ingestRunning = false

	logger.Info("onuwatch stopped")
	return nil
}

func backupConfig(cfg appConfig) backup.Config {
	bc := backup.Config{
		Enabled:  cfg.BackupEnabled,
		Interval: cfg.BackupInterval,
		LocalDir: cfg.BackupLocalDir,
		KeepLast: cfg.BackupKeepLast,
	}
	if strings.TrimSpace(cfg.BackupBucketURL) != "" {
		bc.Remote = &backup.S3Config{
			BucketURL:    cfg.BackupBucketURL,
			Endpoint:     cfg.BackupS3Endpoint,
			Region:       cfg.BackupS3Region,
			AccessKey:    cfg.BackupS3AccessKey,
			SecretKey:    cfg.BackupS3SecretKey,
			SessionToken: cfg.BackupS3SessionToken,
			UseSSL:       cfg.BackupS3UseSSL,
		}
	}
	return bc
}

// stopIngest waits for the current job until ctx ends. Queued jobs stay
// PENDING in the journal and are picked up by the next start.
func stopIngest(ctx context.Context, service *ingest.Service, logger *slog.Logger) {
	if err := service.Stop(ctx); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			logger.Warn("ingestion did not finish before the shutdown deadline")
			return
		}
		logger.Warn("ingestion shutdown", "err", err)
	}
}

func printStartupBanner(cfg appConfig, regionCount int) {
	dim := lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	green := lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	cyan := lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	yellow := lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	bold := lipgloss.NewStyle().Bold(true)

	check := green.Render("●")
	dot := dim.Render("●")

	logo := cyan.Bold(true).Render(`
    ╔═╗╔╗╔╦ ╦╦ ╦╔═╗╔╦╗╔═╗╦ ╦
    ║ ║║║║║ ║║║║╠═╣ ║ ║  ╠═╣
    ╚═╝╝╚╝╚═╝╚╩╝╩ ╩ ╩ ╚═╝╩ ╩`)

	separator := dim.Render("    ─────────────────────────────────")
	status := func(on bool, label, value string) string {
		mark := dot
		if on {
			mark = check
		}
		return fmt.Sprintf("    %s  %-14s %s", mark, label, value)
	}

	lines := []string{
		"",
		logo,
		"    " + dim.Render("v"+version),
		"",
		separator,
		"",
		bold.Render("    Gateway"),
		"",
		status(true, "HTTP API", cyan.Render(cfg.APIAddr)),
		status(true, "Max Upload", dim.Render(fmt.Sprintf("%d MB", cfg.MaxUploadMB))),
		"",
		bold.Render("    Storage"),
		"",
		status(true, "Storage", dim.Render(shortenPath(cfg.DBPath))),
	}

	if cfg.JournalEnabled {
		lines = append(lines, status(true, "Journal", dim.Render(shortenPath(cfg.JournalPath))))
	} else {
		lines = append(lines, status(false, "Journal", dim.Render("disabled")))
	}
	if cfg.BackupEnabled {
		lines = append(lines, status(true, "Snapshots", dim.Render(shortenPath(cfg.BackupLocalDir))))
	} else {
		lines = append(lines, status(false, "Snapshots", dim.Render("disabled")))
	}

	lines = append(lines,
		"",
		bold.Render("    Runtime"),
		"",
		status(true, "Queue", dim.Render(fmt.Sprintf("%d uploads", cfg.IngestQueueSize))),
		status(true, "Regions", dim.Render(fmt.Sprintf("%d OLTs", regionCount))),
		"",
		bold.Render("    Config"),
		"",
	)
	if cfg.ConfigPath != "" {
		lines = append(lines, status(true, "Config File", dim.Render(shortenPath(cfg.ConfigPath))))
	} else {
		lines = append(lines, status(false, "Config File", dim.Render("default (no file)")))
	}

	lines = append(lines,
		"",
		separator,
		"",
		"    "+dim.Render("Press ")+yellow.Render("Ctrl+C")+dim.Render(" to stop"),
		"",
	)

	fmt.Println(strings.Join(lines, "\n"))
}

func shortenPath(path string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	if strings.HasPrefix(path, home) {
		return "~" + path[len(home):]
	}
	return path
}

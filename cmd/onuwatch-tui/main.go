package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/tinytelemetry/onuwatch/internal/apiclient"
	"github.com/tinytelemetry/onuwatch/internal/logging"
	"github.com/tinytelemetry/onuwatch/internal/tui"

	tea "github.com/charmbracelet/bubbletea"
)

var (
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
	goVersion = "unknown"
)

func main() {
	var configPath string
	var apiURL string
	var showVersion bool

	flag.StringVar(&configPath, "config", "", "config file (default is $HOME/.config/onuwatch/config.yml)")
	flag.StringVar(&apiURL, "api", "", "override the onuwatch API base URL")
	flag.BoolVar(&showVersion, "version", false, "print version information")
	flag.Parse()

	if showVersion {
		fmt.Printf("onuwatch CLI - Offline Clients Dashboard\n")
		fmt.Printf("  Version:    %s\n", version)
		fmt.Printf("  Commit:     %s\n", commit)
		fmt.Printf("  Built:      %s\n", buildTime)
		fmt.Printf("  Go version: %s\n", goVersion)
		return
	}

	cfg, err := loadCLIConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	if apiURL != "" {
		cfg.APIURL = apiURL
	}

	if err := runTUI(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runTUI(cfg cliConfig) error {
	// The terminal belongs to the dashboard, so logs always go to a file.
	logPath := cfg.LogFile
	if logPath == "" {
		logPath = logging.DefaultPath("onuwatch-tui")
	}
	if logPath == "" || logPath == "-" {
		logPath = os.DevNull
	}
	logger, cleanupLogger, err := logging.Setup(cfg.LogLevel, "text", logPath)
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer cleanupLogger()

	client, err := apiclient.New(cfg.APIURL, nil)
	if err != nil {
		return fmt.Errorf("cannot use onuwatch API at %s: %w", cfg.APIURL, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	opts := tui.Options{
		RefreshInterval: cfg.RefreshInterval,
		PollInterval:    cfg.PollInterval,
		PollTimeout:     cfg.PollTimeout,
		PageSize:        cfg.PageSize,
		MinHours:        cfg.MinHours,
	}
	app := tui.NewApp(
		tui.NewDashboardPage(ctx, client, opts),
		tui.NewJobsPage(ctx, client, opts),
	)

	logger.Info("dashboard starting", "api_url", cfg.APIURL, "version", version)

	p := tea.NewProgram(app, tea.WithAltScreen(), tea.WithMouseCellMotion())
	if _, err := p.Run(); err != nil {
		if strings.Contains(err.Error(), "TTY") || strings.Contains(err.Error(), "/dev/tty") {
			return fmt.Errorf("TUI requires a real terminal")
		}
		return fmt.Errorf("error running TUI: %w", err)
	}

	return nil
}

// boardsync keeps Basecamp todolists and the team's operations
// spreadsheets in sync, and serves the dashboard API on top of them.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/avasseur/boardsync/internal/basecamp"
	"github.com/avasseur/boardsync/internal/config"
	"github.com/avasseur/boardsync/internal/dashboard"
	"github.com/avasseur/boardsync/internal/server"
	"github.com/avasseur/boardsync/internal/sheets"
	boardsync "github.com/avasseur/boardsync/internal/sync"
)

var (
	version   = "1.0.0"
	cfgFile   string
	logLevel  string
	logFormat string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "boardsync",
	Short: "Basecamp to spreadsheet synchronization service",
	Long: `boardsync mirrors Basecamp todolists into per-team spreadsheet tabs on a
recurring schedule and exposes the dashboard API over the same data.

It supports:
- Hourly scheduled synchronization with a manual trigger
- Automatic creation of missing destination tabs
- ISO-week based discovery of availability and planning boards`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		setupLogging(config.LoggingConfig{Level: logLevel, Format: logFormat})
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("boardsync %s\n", version)
		fmt.Printf("Go version: %s\n", runtime.Version())
		fmt.Printf("OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the sync scheduler and HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		sheetsClient := sheets.NewClient(cfg.Sheets)
		basecampClient := basecamp.NewClient(cfg.Basecamp)
		syncer := boardsync.NewSyncer(cfg, basecampClient, sheetsClient)
		scheduler := boardsync.NewScheduler(syncer, cfg.Sync.Interval, cfg.Sync.PollInterval)
		dash := dashboard.NewService(cfg, sheetsClient)

		srv := server.New(cfg.Server, scheduler, dash)
		scheduler.OnRunStart(srv.NotifyRunStart)
		scheduler.OnRunComplete(srv.NotifyRunComplete)

		if err := srv.Start(); err != nil {
			return err
		}
		scheduler.Start()

		// Log level follows config file edits; everything else needs a
		// restart.
		watchCtx, stopWatch := context.WithCancel(context.Background())
		defer stopWatch()
		go func() {
			err := config.Watch(watchCtx, configPath(), func(updated *config.Config) {
				setupLogging(updated.Logging)
			})
			if err != nil {
				slog.Warn("config watcher unavailable", "error", err)
			}
		}()

		slog.Info("boardsync started",
			"version", version,
			"addr", srv.Addr(),
			"sync_interval", cfg.Sync.Interval)

		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig

		slog.Info("shutting down")
		scheduler.Stop()
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(ctx)
	},
}

var (
	syncGroups        []string
	syncDryRun        bool
	syncNoAutoCreate  bool
	syncExclCompleted bool
	syncExclArchived  bool
	syncOutput        string
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run one synchronization pass and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		sheetsClient := sheets.NewClient(cfg.Sheets)
		basecampClient := basecamp.NewClient(cfg.Basecamp)
		syncer := boardsync.NewSyncer(cfg, basecampClient, sheetsClient)

		ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		result, err := syncer.Run(ctx, boardsync.RunOptions{
			DryRun:           syncDryRun,
			Groups:           syncGroups,
			ExcludeCompleted: syncExclCompleted,
			ExcludeArchived:  syncExclArchived,
			NoAutoCreate:     syncNoAutoCreate,
		})
		if err != nil {
			return err
		}

		if err := printResult(result); err != nil {
			return err
		}
		if result.Failed > 0 {
			return fmt.Errorf("%d of %d groups failed", result.Failed, result.TotalGroups)
		}
		return nil
	},
}

var detectCreateMissing bool

var detectCmd = &cobra.Command{
	Use:   "detect-missing",
	Short: "Report destination tabs and mappings that are out of step",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		sheetsClient := sheets.NewClient(cfg.Sheets)
		basecampClient := basecamp.NewClient(cfg.Basecamp)
		syncer := boardsync.NewSyncer(cfg, basecampClient, sheetsClient)

		ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		report, err := syncer.DetectMissing(ctx)
		if err != nil {
			return err
		}

		if len(report.MissingTabs) == 0 && len(report.UnmappedGroups) == 0 {
			fmt.Println("mappings, todolists, and tabs are all in step")
			return nil
		}
		for _, tab := range report.MissingTabs {
			fmt.Printf("missing tab: %s\n", tab)
		}
		for _, group := range report.UnmappedGroups {
			fmt.Printf("unmapped group: %s\n", group)
		}

		if detectCreateMissing {
			for _, tab := range report.MissingTabs {
				if err := sheetsClient.CreateTabWithHeaders(ctx, cfg.Sheets.TodosSpreadsheetID, tab, boardsync.Headers); err != nil {
					slog.Warn("failed to create tab", "tab", tab, "error", err)
					continue
				}
				fmt.Printf("created tab: %s\n", tab)
			}
		}
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the scheduler status of a running boardsync server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		host := cfg.Server.Host
		if host == "0.0.0.0" || host == "" {
			host = "127.0.0.1"
		}
		url := fmt.Sprintf("http://%s:%d/api/v1/sync/status", host, cfg.Server.Port)

		client := &http.Client{Timeout: 5 * time.Second}
		resp, err := client.Get(url)
		if err != nil {
			return fmt.Errorf("no boardsync server reachable at %s: %w", url, err)
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		fmt.Println(strings.TrimSpace(string(body)))
		return nil
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the configuration file",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default configuration file",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := configPath()
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config file already exists: %s", path)
		}
		if err := config.Save(path, config.DefaultConfig()); err != nil {
			return err
		}
		fmt.Printf("wrote default config to %s\n", path)
		return nil
	},
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration file",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, warnings, err := config.Load(configPath())
		if err != nil {
			return err
		}
		for _, w := range warnings {
			fmt.Printf("warning: %s\n", w)
		}
		if errs := config.Validate(cfg); len(errs) > 0 {
			for _, e := range errs {
				fmt.Printf("error: %s\n", e)
			}
			return fmt.Errorf("configuration is invalid")
		}
		fmt.Println("configuration is valid")
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		// Tokens stay out of the output.
		cfg.Basecamp.AccessToken = redact(cfg.Basecamp.AccessToken)
		cfg.Sheets.AccessToken = redact(cfg.Sheets.AccessToken)

		data, err := json.MarshalIndent(cfg, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default: .boardsync/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log format (text, json)")

	syncCmd.Flags().StringSliceVar(&syncGroups, "groups", nil, "restrict the run to these groups")
	syncCmd.Flags().BoolVar(&syncDryRun, "dry-run", false, "fetch and transform without writing")
	syncCmd.Flags().BoolVar(&syncNoAutoCreate, "no-auto-create", false, "never create missing destination tabs")
	syncCmd.Flags().BoolVar(&syncExclCompleted, "exclude-completed", false, "leave completed tasks out")
	syncCmd.Flags().BoolVar(&syncExclArchived, "exclude-archived", false, "leave archived and trashed tasks out")
	syncCmd.Flags().StringVarP(&syncOutput, "output", "o", "text", "output format (text, json)")

	detectCmd.Flags().BoolVar(&detectCreateMissing, "create-missing", false, "create the missing tabs with header rows")

	configCmd.AddCommand(configInitCmd, configValidateCmd, configShowCmd)
	rootCmd.AddCommand(serveCmd, syncCmd, detectCmd, statusCmd, configCmd, versionCmd)
}

func configPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	return config.DefaultConfigPath(".")
}

func loadConfig() (*config.Config, error) {
	cfg, warnings, err := config.Load(configPath())
	if err != nil {
		return nil, err
	}
	for _, w := range warnings {
		slog.Warn(w)
	}
	if errs := config.Validate(cfg); len(errs) > 0 {
		for _, e := range errs {
			slog.Error("config error", "error", e)
		}
		return nil, fmt.Errorf("invalid configuration (%d errors)", len(errs))
	}

	// Flags override file settings for logging.
	if !rootCmd.PersistentFlags().Changed("log-level") && cfg.Logging.Level != "" {
		logLevel = cfg.Logging.Level
	}
	if !rootCmd.PersistentFlags().Changed("log-format") && cfg.Logging.Format != "" {
		logFormat = cfg.Logging.Format
	}
	logging := cfg.Logging
	logging.Level = logLevel
	logging.Format = logFormat
	setupLogging(logging)

	return cfg, nil
}

func setupLogging(cfg config.LoggingConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	var out io.Writer = os.Stderr
	if cfg.File != "" {
		out = &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
		}
	}

	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(out, opts)
	} else {
		handler = slog.NewTextHandler(out, opts)
	}

	slog.SetDefault(slog.New(handler))
}

func printResult(result *boardsync.RunResult) error {
	if syncOutput == "json" {
		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	}

	fmt.Printf("sync run at %s (dry_run=%v)\n", result.Timestamp.Format(time.RFC3339), result.DryRun)
	for _, d := range result.Details {
		if d.OK {
			fmt.Printf("  %-35s -> %-30s %4d rows\n", d.Group, d.Tab, d.Synced)
		} else {
			fmt.Printf("  %-35s -> %-30s FAILED: %s\n", d.Group, d.Tab, d.Error)
		}
	}
	if len(result.CreatedTabs) > 0 {
		fmt.Printf("created tabs: %s\n", strings.Join(result.CreatedTabs, ", "))
	}
	if len(result.UnmappedGroups) > 0 {
		fmt.Printf("unmapped groups: %s\n", strings.Join(result.UnmappedGroups, ", "))
	}
	stats := result.DateStats
	fmt.Printf("%d/%d groups ok, %d dates converted (%d failed), took %s\n",
		result.Successful, result.TotalGroups, stats.Converted, stats.Failed, result.Duration.Round(time.Millisecond))
	return nil
}

func redact(token string) string {
	if token == "" {
		return ""
	}
	if len(token) <= 8 {
		return "********"
	}
	return token[:4] + "..." + token[len(token)-4:]
}

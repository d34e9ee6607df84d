package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/IshaanNene/rallybrief/internal/config"
)

var (
	cfgFile   string
	verbose   bool
	headful   bool
	chromeBin string
	newsPath  string
	pdfDir    string
	targetURL string
	model     string
	logFormat string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "rallybrief",
		Short: "rallybrief: daily protest schedule briefing",
		Long: `rallybrief assembles a daily protest briefing.

It finds today's schedule article in search results and saves every line
marked with ▲, downloads the police bulletin PDF for today, asks a language
model to turn both into JSON, and forwards that JSON to a target server.

Commands:
  news       crawl today's schedule article into the news file
  bulletin   download today's bulletin PDF (or upload one)
  analyze    analyze the PDF on disk with the saved news
  auto       news, bulletin, analyze and forward in one run
  serve      HTTP API plus an optional daily schedule`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&headful, "headful", false, "show the browser window")
	rootCmd.PersistentFlags().StringVar(&chromeBin, "chrome", "", "path to a Chromium binary")
	rootCmd.PersistentFlags().StringVar(&newsPath, "news-path", "", "news text file path")
	rootCmd.PersistentFlags().StringVar(&pdfDir, "pdf-dir", "", "directory for the bulletin PDF")
	rootCmd.PersistentFlags().StringVar(&targetURL, "target-url", "", "server receiving the analysis JSON")
	rootCmd.PersistentFlags().StringVar(&model, "model", "", "language model name")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format: text, json")

	rootCmd.AddCommand(newsCmd())
	rootCmd.AddCommand(bulletinCmd())
	rootCmd.AddCommand(analyzeCmd())
	rootCmd.AddCommand(autoCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(versionCmd())
	rootCmd.AddCommand(configCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// setup loads and validates the configuration and builds the logger.
func setup() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	applyCLIOverrides(cfg)

	if err := config.Validate(cfg); err != nil {
		return nil, nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, setupLogger(cfg.Logging), nil
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

// versionCmd creates the "version" subcommand.
func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("rallybrief %s\n", config.Version)
		},
	}
}

// configCmd creates the "config" subcommand for inspecting configuration.
func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			applyCLIOverrides(cfg)

			fmt.Printf("Browser:\n")
			fmt.Printf("  Headless:          %v\n", cfg.Browser.Headless)
			fmt.Printf("  Window:            %dx%d\n", cfg.Browser.WindowWidth, cfg.Browser.WindowHeight)
			fmt.Printf("  User Agents:       %d configured\n", len(cfg.Browser.UserAgents))
			fmt.Printf("  Launch Timeout:    %s\n", cfg.Browser.LaunchTimeout)
			fmt.Printf("\nSearch:\n")
			fmt.Printf("  Query Template:    %s\n", cfg.Search.QueryTemplate)
			fmt.Printf("  Publisher:         %s\n", cfg.Search.PublisherDomain)
			fmt.Printf("  Max Attempts:      %d\n", cfg.Search.MaxAttempts)
			fmt.Printf("  Selectors:         %d configured\n", len(cfg.Search.Selectors))
			fmt.Printf("\nArticle:\n")
			fmt.Printf("  Container:         %s\n", cfg.Article.ContainerSelector)
			fmt.Printf("  Marker:            %s\n", cfg.Article.Marker)
			fmt.Printf("\nBulletin:\n")
			fmt.Printf("  Board:             %s\n", cfg.Bulletin.BoardURL)
			fmt.Printf("  PDF:               %s/%s\n", cfg.Bulletin.PDFDir, cfg.Bulletin.PDFName)
			fmt.Printf("\nAI:\n")
			fmt.Printf("  Provider:          %s\n", cfg.AI.Provider)
			fmt.Printf("  Model:             %s\n", cfg.AI.Model)
			fmt.Printf("  API Key:           %s\n", redact(cfg.AI.APIKey))
			fmt.Printf("\nStorage:\n")
			fmt.Printf("  News File:         %s\n", cfg.Storage.NewsPath)
			fmt.Printf("  Records:           %s\n", orNone(cfg.Storage.RecordsPath))
			fmt.Printf("  MongoDB:           %s\n", orNone(redactURI(cfg.Storage.MongoURI)))
			fmt.Printf("\nForward:\n")
			fmt.Printf("  Target:            %s\n", orNone(cfg.Forward.TargetURL))
			fmt.Printf("\nServer:\n")
			fmt.Printf("  Port:              %d\n", cfg.Server.Port)
			fmt.Printf("  Schedule:          %s\n", orNone(cfg.Server.Schedule))
			fmt.Printf("  Timezone:          %s\n", cfg.Server.Timezone)
			fmt.Printf("  Metrics:           %v (%s)\n", cfg.Metrics.Enabled, cfg.Metrics.Path)
			return nil
		},
	}
	return cmd
}

// setupLogger creates a structured logger.
func setupLogger(cfg config.LoggingConfig) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	if verbose {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	if strings.ToLower(cfg.Format) == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	return slog.New(handler)
}

// applyCLIOverrides applies command-line flag values to the config.
func applyCLIOverrides(cfg *config.Config) {
	if headful {
		cfg.Browser.Headless = false
	}
	if chromeBin != "" {
		cfg.Browser.Bin = chromeBin
	}
	if newsPath != "" {
		cfg.Storage.NewsPath = newsPath
	}
	if pdfDir != "" {
		cfg.Bulletin.PDFDir = pdfDir
	}
	if targetURL != "" {
		cfg.Forward.TargetURL = targetURL
	}
	if model != "" {
		cfg.AI.Model = model
	}
	if logFormat != "" {
		cfg.Logging.Format = strings.ToLower(logFormat)
	}
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}

func redact(secret string) string {
	if secret == "" {
		return "(not set)"
	}
	if len(secret) <= 8 {
		return "********"
	}
	return secret[:4] + "…" + secret[len(secret)-4:]
}

// redactURI hides the password in a connection string.
func redactURI(uri string) string {
	at := strings.LastIndex(uri, "@")
	scheme := strings.Index(uri, "://")
	if at < 0 || scheme < 0 || at < scheme {
		return uri
	}
	creds := uri[scheme+3 : at]
	if colon := strings.Index(creds, ":"); colon >= 0 {
		creds = creds[:colon] + ":****"
	}
	return uri[:scheme+3] + creds + uri[at:]
}

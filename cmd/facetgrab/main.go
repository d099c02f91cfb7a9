package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/IshaanNene/FacetGrab/internal/browser"
	"github.com/IshaanNene/FacetGrab/internal/config"
	"github.com/IshaanNene/FacetGrab/internal/media"
	"github.com/IshaanNene/FacetGrab/internal/observability"
	"github.com/IshaanNene/FacetGrab/internal/scrape"
	"github.com/IshaanNene/FacetGrab/internal/storage"
)

var (
	cfgFile     string
	verbose     bool
	metalType   string
	baseURL     string
	destination string
	outputType  string
	headful     bool
	maxScrolls  int
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "facetgrab",
		Short: "FacetGrab: product image scraper for ring catalogs",
		Long: `FacetGrab walks a retailer's ring listing, opens every product page and
saves its gallery images into <destination>/<metal>/<cut>/<product>/.

Settings come from facetgrab.yaml, FACETGRAB_* environment variables,
a .env file, and the flags below.`,
		SilenceUsage: true,
		RunE:         runScrape,
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.Flags().StringVarP(&metalType, "metal", "m", "", "metal type label used as the top-level folder")
	rootCmd.Flags().StringVarP(&baseURL, "url", "u", "", "listing page URL (overrides settings.base_url)")
	rootCmd.Flags().StringVarP(&destination, "output", "o", "", "destination folder (overrides settings.destination_folder)")
	rootCmd.Flags().StringVar(&outputType, "manifest", "", "manifest format: json, jsonl, csv, mongodb, none")
	rootCmd.Flags().BoolVar(&headful, "headful", false, "show the browser window")
	rootCmd.Flags().IntVar(&maxScrolls, "max-scrolls", 0, "upper bound on listing expand cycles")

	rootCmd.AddCommand(versionCmd())
	rootCmd.AddCommand(configCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// runScrape executes one full pass over the listing.
func runScrape(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	applyCLIOverrides(cfg)

	logger, closeLog, err := setupLogger(cfg.Logging)
	if err != nil {
		return err
	}
	defer closeLog()

	if err := config.Validate(cfg); err != nil {
		logger.Error("invalid configuration", "error", err)
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runID := uuid.NewString()
	logger = logger.With("run_id", runID)
	logger.Info("starting facetgrab",
		"version", config.Version,
		"url", cfg.Settings.BaseURL,
		"destination", cfg.Settings.DestinationFolder,
		"metal", cfg.Scrape.MetalType,
	)

	layout := storage.NewLayout(cfg.Settings.DestinationFolder)

	store, err := storage.New(ctx, cfg.Storage, layout, logger)
	if err != nil {
		return fmt.Errorf("create storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("failed to close storage", "backend", store.Name(), "error", err)
		}
	}()

	images := media.NewDownloader(cfg.Fetcher, logger)
	defer images.Close()

	metrics := observability.NewMetrics(logger)
	if cfg.Metrics.Enabled {
		srv, err := metrics.StartServer(cfg.Metrics.Port, cfg.Metrics.Path)
		if err != nil {
			logger.Warn("failed to start metrics server", "error", err)
		} else {
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = srv.Shutdown(shutdownCtx)
			}()
		}
	}

	session, err := browser.NewRodSession(cfg.Browser, logger)
	if err != nil {
		return fmt.Errorf("start browser: %w", err)
	}
	defer func() {
		if err := session.Close(); err != nil {
			logger.Warn("failed to close browser", "error", err)
		}
	}()

	scraper := scrape.NewScraper(cfg, scrape.ProcessorDeps{
		Session: session,
		Layout:  layout,
		Images:  images,
		Store:   store,
		Metrics: metrics,
	}, runID, logger)

	sum, err := scraper.Run(ctx, cfg.Scrape.MetalType)
	printSummary(cmd.OutOrStdout(), sum, cfg)

	if errors.Is(err, context.Canceled) {
		logger.Info("received signal, stopped early")
	}
	return err
}

func printSummary(w io.Writer, sum *scrape.Summary, cfg *config.Config) {
	if sum == nil {
		return
	}
	fmt.Fprintf(w, "\nScrape finished in %s\n", sum.Elapsed.Round(time.Millisecond))
	fmt.Fprintf(w, "   Listing:   %d items after %d expand cycles\n", sum.Listed, sum.Cycles)
	fmt.Fprintf(w, "   Products:  %d processed, %d skipped, %d not found\n", sum.Processed, sum.Skipped, sum.NotFound)
	fmt.Fprintf(w, "   Images:    %d saved, %d failed, %d bytes\n", sum.ImagesSaved, sum.ImagesFailed, sum.Bytes)
	fmt.Fprintf(w, "   Output:    %s\n", cfg.Settings.DestinationFolder)
}

// versionCmd creates the "version" subcommand.
func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "FacetGrab %s\n", config.Version)
		},
	}
}

// configCmd creates the "config" subcommand for inspecting configuration.
func configCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Show effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "Settings:\n")
			fmt.Fprintf(w, "  Base URL:          %s\n", cfg.Settings.BaseURL)
			fmt.Fprintf(w, "  Destination:       %s\n", cfg.Settings.DestinationFolder)
			fmt.Fprintf(w, "\nScrape:\n")
			fmt.Fprintf(w, "  Metal Type:        %s\n", cfg.Scrape.MetalType)
			fmt.Fprintf(w, "  Render Wait:       %s\n", cfg.Scrape.InitialRenderWait)
			fmt.Fprintf(w, "  Scroll Wait:       %s\n", cfg.Scrape.ScrollWait)
			fmt.Fprintf(w, "  Max Scrolls:       %d\n", cfg.Scrape.MaxScrolls)
			fmt.Fprintf(w, "  Element Timeout:   %s\n", cfg.Scrape.ElementTimeout)
			fmt.Fprintf(w, "  Courtesy Delay:    %s\n", cfg.Scrape.CourtesyDelay)
			fmt.Fprintf(w, "\nBrowser:\n")
			fmt.Fprintf(w, "  Headless:          %v\n", cfg.Browser.Headless)
			fmt.Fprintf(w, "  Stealth:           %v\n", cfg.Browser.Stealth)
			fmt.Fprintf(w, "  Page Load Timeout: %s\n", cfg.Browser.PageLoadTimeout)
			fmt.Fprintf(w, "  Chromium found:    %v\n", browser.Available(cfg.Browser.Bin))
			fmt.Fprintf(w, "\nFetcher:\n")
			fmt.Fprintf(w, "  Max Body Size:     %d bytes\n", cfg.Fetcher.MaxBodySize)
			fmt.Fprintf(w, "  User Agents:       %d configured\n", len(cfg.Fetcher.UserAgents))
			fmt.Fprintf(w, "\nStorage:\n")
			fmt.Fprintf(w, "  Type:              %s\n", cfg.Storage.Type)
			fmt.Fprintf(w, "  Manifest Path:     %s\n", cfg.Storage.ManifestPath)
			fmt.Fprintf(w, "  S3 Bucket:         %s\n", cfg.Storage.S3Bucket)
			fmt.Fprintf(w, "\nMetrics:\n")
			fmt.Fprintf(w, "  Enabled:           %v\n", cfg.Metrics.Enabled)
			fmt.Fprintf(w, "  Port:              %d\n", cfg.Metrics.Port)
			return nil
		},
	}
}

// setupLogger creates a structured logger from the logging config.
// The returned func closes the log file when one was opened.
func setupLogger(cfg config.LoggingConfig) (*slog.Logger, func(), error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	if verbose {
		level = slog.LevelDebug
	}

	var out io.Writer = os.Stderr
	closeFn := func() {}
	switch strings.ToLower(cfg.Output) {
	case "", "stderr":
	case "stdout":
		out = os.Stdout
	default:
		f, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		out = f
		closeFn = func() { _ = f.Close() }
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(out, opts)
	} else {
		handler = slog.NewTextHandler(out, opts)
	}
	return slog.New(handler), closeFn, nil
}

// applyCLIOverrides applies command-line flag values to the config.
func applyCLIOverrides(cfg *config.Config) {
	if metalType != "" {
		cfg.Scrape.MetalType = metalType
	}
	if baseURL != "" {
		cfg.Settings.BaseURL = baseURL
	}
	if destination != "" {
		cfg.Settings.DestinationFolder = destination
	}
	if outputType != "" {
		cfg.Storage.Type = strings.ToLower(outputType)
	}
	if headful {
		cfg.Browser.Headless = false
	}
	if maxScrolls > 0 {
		cfg.Scrape.MaxScrolls = maxScrolls
	}
}

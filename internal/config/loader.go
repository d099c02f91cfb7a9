package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Load reads configuration from file, environment, and a .env file.
// Priority (highest to lowest): env vars > config file > defaults.
// CLI flags are applied by the caller on the returned struct.
func Load(configPath string) (*Config, error) {
	// A missing .env is normal; anything else it sets becomes plain env.
	_ = godotenv.Load()

	cfg := DefaultConfig()

	v := viper.New()
	v.SetConfigType("yaml")

	setDefaults(v, cfg)

	v.SetEnvPrefix("FACETGRAB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Unprefixed names kept for existing deployments.
	_ = v.BindEnv("settings.base_url", "FACETGRAB_SETTINGS_BASE_URL", "BASE_URL")
	_ = v.BindEnv("settings.destination_folder", "FACETGRAB_SETTINGS_DESTINATION_FOLDER", "DESTINATION_FOLDER")

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("facetgrab")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		home, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(filepath.Join(home, ".facetgrab"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configPath != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return cfg, nil
}

// setDefaults registers default values in viper so that every key can be
// overridden from the environment.
func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("settings.base_url", cfg.Settings.BaseURL)
	v.SetDefault("settings.destination_folder", cfg.Settings.DestinationFolder)

	v.SetDefault("scrape.metal_type", cfg.Scrape.MetalType)
	v.SetDefault("scrape.initial_render_wait", cfg.Scrape.InitialRenderWait)
	v.SetDefault("scrape.load_more_timeout", cfg.Scrape.LoadMoreTimeout)
	v.SetDefault("scrape.load_more_settle", cfg.Scrape.LoadMoreSettle)
	v.SetDefault("scrape.scroll_wait", cfg.Scrape.ScrollWait)
	v.SetDefault("scrape.max_scrolls", cfg.Scrape.MaxScrolls)
	v.SetDefault("scrape.element_timeout", cfg.Scrape.ElementTimeout)
	v.SetDefault("scrape.courtesy_delay", cfg.Scrape.CourtesyDelay)

	v.SetDefault("browser.headless", cfg.Browser.Headless)
	v.SetDefault("browser.bin", cfg.Browser.Bin)
	v.SetDefault("browser.stealth", cfg.Browser.Stealth)
	v.SetDefault("browser.user_data_dir", cfg.Browser.UserDataDir)
	v.SetDefault("browser.window_size", cfg.Browser.WindowSize)
	v.SetDefault("browser.user_agent", cfg.Browser.UserAgent)
	v.SetDefault("browser.no_sandbox", cfg.Browser.NoSandbox)
	v.SetDefault("browser.page_load_timeout", cfg.Browser.PageLoadTimeout)

	v.SetDefault("fetcher.timeout", cfg.Fetcher.Timeout)
	v.SetDefault("fetcher.max_body_size", cfg.Fetcher.MaxBodySize)
	v.SetDefault("fetcher.user_agents", cfg.Fetcher.UserAgents)

	v.SetDefault("site.load_more", cfg.Site.LoadMore)
	v.SetDefault("site.list_items", cfg.Site.ListItems)
	v.SetDefault("site.item_anchor", cfg.Site.ItemAnchor)
	v.SetDefault("site.details", cfg.Site.Details)
	v.SetDefault("site.heading", cfg.Site.Heading)
	v.SetDefault("site.thumbnail_container", cfg.Site.ThumbnailContainer)
	v.SetDefault("site.thumbnail_images", cfg.Site.ThumbnailImages)
	v.SetDefault("site.main_container", cfg.Site.MainContainer)
	v.SetDefault("site.main_images", cfg.Site.MainImages)

	v.SetDefault("storage.type", cfg.Storage.Type)
	v.SetDefault("storage.manifest_path", cfg.Storage.ManifestPath)
	v.SetDefault("storage.mongo_uri", cfg.Storage.MongoURI)
	v.SetDefault("storage.mongo_database", cfg.Storage.MongoDatabase)
	v.SetDefault("storage.mongo_collection", cfg.Storage.MongoCollection)
	v.SetDefault("storage.s3_bucket", cfg.Storage.S3Bucket)
	v.SetDefault("storage.s3_region", cfg.Storage.S3Region)
	v.SetDefault("storage.s3_prefix", cfg.Storage.S3Prefix)

	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.format", cfg.Logging.Format)
	v.SetDefault("logging.output", cfg.Logging.Output)

	v.SetDefault("metrics.enabled", cfg.Metrics.Enabled)
	v.SetDefault("metrics.port", cfg.Metrics.Port)
	v.SetDefault("metrics.path", cfg.Metrics.Path)
}

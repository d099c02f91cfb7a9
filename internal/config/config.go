package config

import (
	"time"
)

// Version is set at build time via ldflags.
var Version = "dev"

// DefaultMetalType is the metal label used when neither config nor CLI names one.
const DefaultMetalType = "18k Yellow Gold"

// Config is the root configuration for FacetGrab.
type Config struct {
	Settings SettingsConfig `mapstructure:"settings" yaml:"settings"`
	Scrape   ScrapeConfig   `mapstructure:"scrape"   yaml:"scrape"`
	Browser  BrowserConfig  `mapstructure:"browser"  yaml:"browser"`
	Fetcher  FetcherConfig  `mapstructure:"fetcher"  yaml:"fetcher"`
	Site     SiteConfig     `mapstructure:"site"     yaml:"site"`
	Storage  StorageConfig  `mapstructure:"storage"  yaml:"storage"`
	Logging  LoggingConfig  `mapstructure:"logging"  yaml:"logging"`
	Metrics  MetricsConfig  `mapstructure:"metrics"  yaml:"metrics"`
}

// SettingsConfig holds the two settings a run cannot start without.
type SettingsConfig struct {
	BaseURL           string `mapstructure:"base_url"           yaml:"base_url"           validate:"required,url"`
	DestinationFolder string `mapstructure:"destination_folder" yaml:"destination_folder" validate:"required"`
}

// ScrapeConfig controls the listing walk and product processing.
type ScrapeConfig struct {
	MetalType         string        `mapstructure:"metal_type"          yaml:"metal_type"          validate:"required"`
	InitialRenderWait time.Duration `mapstructure:"initial_render_wait" yaml:"initial_render_wait" validate:"gte=0"`
	LoadMoreTimeout   time.Duration `mapstructure:"load_more_timeout"   yaml:"load_more_timeout"   validate:"gte=0"`
	LoadMoreSettle    time.Duration `mapstructure:"load_more_settle"    yaml:"load_more_settle"    validate:"gte=0"`
	ScrollWait        time.Duration `mapstructure:"scroll_wait"         yaml:"scroll_wait"         validate:"gte=0"`
	MaxScrolls        int           `mapstructure:"max_scrolls"         yaml:"max_scrolls"         validate:"gte=0"`
	ElementTimeout    time.Duration `mapstructure:"element_timeout"     yaml:"element_timeout"     validate:"gt=0"`
	CourtesyDelay     time.Duration `mapstructure:"courtesy_delay"      yaml:"courtesy_delay"      validate:"gte=0"`
}

// BrowserConfig controls the Chromium instance driven by rod.
type BrowserConfig struct {
	Headless    bool   `mapstructure:"headless"      yaml:"headless"`
	Bin         string `mapstructure:"bin"           yaml:"bin"`
	Stealth     bool   `mapstructure:"stealth"       yaml:"stealth"`
	UserDataDir string `mapstructure:"user_data_dir" yaml:"user_data_dir"`
	WindowSize  string `mapstructure:"window_size"   yaml:"window_size"`
	UserAgent   string `mapstructure:"user_agent"    yaml:"user_agent"`
	NoSandbox   bool   `mapstructure:"no_sandbox"    yaml:"no_sandbox"`

	// PageLoadTimeout bounds navigation plus the load event for each tab.
	PageLoadTimeout time.Duration `mapstructure:"page_load_timeout" yaml:"page_load_timeout" validate:"gte=0"`
}

// FetcherConfig controls the image HTTP client.
type FetcherConfig struct {
	// Timeout of 0 keeps the net/http default (no client timeout).
	Timeout     time.Duration `mapstructure:"timeout"       yaml:"timeout"       validate:"gte=0"`
	MaxBodySize int64         `mapstructure:"max_body_size" yaml:"max_body_size" validate:"gt=0"`
	UserAgents  []string      `mapstructure:"user_agents"   yaml:"user_agents"`
}

// SiteConfig holds the XPath selectors for the retailer's markup.
type SiteConfig struct {
	LoadMore           string `mapstructure:"load_more"           yaml:"load_more"           validate:"required"`
	ListItems          string `mapstructure:"list_items"          yaml:"list_items"          validate:"required"`
	ItemAnchor         string `mapstructure:"item_anchor"         yaml:"item_anchor"         validate:"required"`
	Details            string `mapstructure:"details"             yaml:"details"             validate:"required"`
	Heading            string `mapstructure:"heading"             yaml:"heading"             validate:"required"`
	ThumbnailContainer string `mapstructure:"thumbnail_container" yaml:"thumbnail_container" validate:"required"`
	ThumbnailImages    string `mapstructure:"thumbnail_images"    yaml:"thumbnail_images"    validate:"required"`
	MainContainer      string `mapstructure:"main_container"      yaml:"main_container"      validate:"required"`
	MainImages         string `mapstructure:"main_images"         yaml:"main_images"         validate:"required"`
}

// StorageConfig controls the manifest of saved images.
type StorageConfig struct {
	Type            string `mapstructure:"type"             yaml:"type"             validate:"oneof=json jsonl csv mongodb none"`
	ManifestPath    string `mapstructure:"manifest_path"    yaml:"manifest_path"`
	MongoURI        string `mapstructure:"mongo_uri"        yaml:"mongo_uri"`
	MongoDatabase   string `mapstructure:"mongo_database"   yaml:"mongo_database"`
	MongoCollection string `mapstructure:"mongo_collection" yaml:"mongo_collection"`
	S3Bucket        string `mapstructure:"s3_bucket"        yaml:"s3_bucket"`
	S3Region        string `mapstructure:"s3_region"        yaml:"s3_region"`
	S3Prefix        string `mapstructure:"s3_prefix"        yaml:"s3_prefix"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level  string `mapstructure:"level"  yaml:"level"  validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" yaml:"format" validate:"oneof=text json"`
	Output string `mapstructure:"output" yaml:"output"`
}

// MetricsConfig controls the Prometheus text endpoint.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Port    int    `mapstructure:"port"    yaml:"port"`
	Path    string `mapstructure:"path"    yaml:"path"`
}

// DefaultConfig returns a Config with sensible defaults. Settings are left
// empty on purpose: a run must be told where to go and where to write.
func DefaultConfig() *Config {
	return &Config{
		Scrape: ScrapeConfig{
			MetalType:         DefaultMetalType,
			InitialRenderWait: 10 * time.Second,
			LoadMoreTimeout:   10 * time.Second,
			LoadMoreSettle:    2 * time.Second,
			ScrollWait:        10 * time.Second,
			MaxScrolls:        500,
			ElementTimeout:    10 * time.Second,
			CourtesyDelay:     2 * time.Second,
		},
		Browser: BrowserConfig{
			Headless:        true,
			Stealth:         true,
			WindowSize:      "1920,1080",
			NoSandbox:       true,
			PageLoadTimeout: 60 * time.Second,
		},
		Fetcher: FetcherConfig{
			MaxBodySize: 50 * 1024 * 1024, // 50MB
			UserAgents: []string{
				"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
				"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			},
		},
		Site: SiteConfig{
			LoadMore:           `//button[@class="shine-button load-more svelte-128ewnv"]`,
			ListItems:          `//ul[contains(@class, "root") and contains(@class, "Thumbs")]//li`,
			ItemAnchor:         `.//a`,
			Details:            `//section[@class='details svelte-gwj5u7']`,
			Heading:            `//h1[@class='svelte-gwj5u7']`,
			ThumbnailContainer: `//div[@class='thumbs svelte-1ysrele']`,
			ThumbnailImages:    `.//div[@class="thumb"]/img`,
			MainContainer:      `//div[@class='scroll-content svelte-rexg8n']`,
			MainImages:         `.//img`,
		},
		Storage: StorageConfig{
			Type:            "jsonl",
			MongoDatabase:   "facetgrab",
			MongoCollection: "images",
		},
		Logging: LoggingConfig{
			Level:  "debug",
			Format: "text",
			Output: "stderr",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Port:    9090,
			Path:    "/metrics",
		},
	}
}

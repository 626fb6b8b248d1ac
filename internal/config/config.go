// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/nrs-project/notice-crawler/internal/crawler"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server  ServerConfig           `mapstructure:"server"`
	Crawler CrawlerConfig          `mapstructure:"crawler"`
	HTTP    HTTPConfig             `mapstructure:"http"`
	OCR     OCRConfig              `mapstructure:"ocr"`
	DB      DBConfig               `mapstructure:"db"`
	Index   IndexConfig            `mapstructure:"index"`
	Logging LoggingConfig          `mapstructure:"logging"`
	Sources []crawler.SourceConfig `mapstructure:"sources"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// CrawlerConfig governs pipeline and scheduler behavior.
type CrawlerConfig struct {
	Concurrency     int  `mapstructure:"concurrency"`
	IntervalSeconds int  `mapstructure:"interval_seconds"`
	AutoCrawl       bool `mapstructure:"auto_crawl"`
}

// HTTPConfig configures fetch timeout and retry behavior.
type HTTPConfig struct {
	TimeoutSeconds int `mapstructure:"timeout_seconds"`
	MaxRetries     int `mapstructure:"max_retries"`
}

// OCRConfig locates the external tesseract installation. An empty
// command disables OCR entirely.
type OCRConfig struct {
	TesseractCmd string `mapstructure:"tesseract_cmd"`
	TessdataDir  string `mapstructure:"tessdata_dir"`
	Languages    string `mapstructure:"languages"`
}

// DBConfig controls the embedded record store.
type DBConfig struct {
	Path string `mapstructure:"path"`
}

// IndexConfig points at the vector index sink. An empty base URL or
// Enabled=false turns indexing into a no-op.
type IndexConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	BaseURL        string `mapstructure:"base_url"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("CRAWLER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8000)
	v.SetDefault("crawler.concurrency", 5)
	v.SetDefault("crawler.interval_seconds", 3600)
	v.SetDefault("crawler.auto_crawl", true)
	v.SetDefault("http.timeout_seconds", 30)
	v.SetDefault("http.max_retries", 3)
	v.SetDefault("ocr.tesseract_cmd", "")
	v.SetDefault("ocr.tessdata_dir", "")
	v.SetDefault("ocr.languages", "chi_sim+eng")
	v.SetDefault("db.path", "./data/crawler.db")
	v.SetDefault("index.enabled", true)
	v.SetDefault("index.base_url", "")
	v.SetDefault("index.timeout_seconds", 10)
	v.SetDefault("logging.development", true)
	v.SetDefault("sources", defaultSources())
}

// defaultSources ships the built-in crawl target so the service works
// out of the box; config files replace the whole list when present.
func defaultSources() []map[string]any {
	return []map[string]any{
		{
			"id":        "bksy_ggtz",
			"name":      "本科生院-公告通知",
			"base_url":  "https://jw.nju.edu.cn",
			"list_url":  "https://jw.nju.edu.cn/ggtz/list1.htm",
			"max_pages": 5,
			"headers": map[string]string{
				"User-Agent": "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
					"(KHTML, like Gecko) Chrome/142.0.0.0 Safari/537.36 Edg/142.0.0.0",
				"Host": "jw.nju.edu.cn",
			},
			"list": map[string]any{
				"item_container": "#wp_news_w6 li.news",
				"date":           ".news_meta",
				"title":          ".news_title a",
				"url":            ".news_title a",
				"type":           ".wjj .lj",
			},
			"detail": map[string]any{
				"text": map[string]any{
					"container": "#d-container",
					"selector":  ".wp_articlecontent",
				},
				"images": map[string]any{
					"container": "#d-container",
					"selector":  ".wp_articlecontent img[src]",
				},
				"pdf": map[string]any{
					"container": "#d-container",
					"selector":  `.wp_articlecontent a[href$=".pdf"]`,
				},
				"doc": map[string]any{
					"container": "#d-container",
					"selector":  `.wp_articlecontent a[href$=".doc"], .wp_articlecontent a[href$=".docx"]`,
				},
				"embedded_pdf": map[string]any{
					"selector": ".wp_articlecontent iframe.wp_pdf_player",
				},
			},
		},
	}
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Crawler.Concurrency <= 0 {
		return fmt.Errorf("crawler.concurrency must be > 0")
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be > 0")
	}
	if c.HTTP.MaxRetries < 1 {
		return fmt.Errorf("http.max_retries must be >= 1")
	}
	if c.DB.Path == "" {
		return fmt.Errorf("db.path must be set")
	}
	seen := make(map[string]bool, len(c.Sources))
	for _, src := range c.Sources {
		if err := validateSource(src); err != nil {
			return err
		}
		if seen[src.ID] {
			return fmt.Errorf("duplicate source id %q", src.ID)
		}
		seen[src.ID] = true
	}
	return nil
}

func validateSource(src crawler.SourceConfig) error {
	if src.ID == "" {
		return fmt.Errorf("source id must be set")
	}
	if src.BaseURL == "" || src.ListURL == "" {
		return fmt.Errorf("source %q: base_url and list_url must be set", src.ID)
	}
	if src.List.ItemContainer == "" {
		return fmt.Errorf("source %q: list.item_container must be set", src.ID)
	}
	return nil
}

// FetchTimeout converts the per-attempt timeout into a duration.
func (c Config) FetchTimeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}

// CrawlInterval converts the scheduler interval into a duration.
func (c Config) CrawlInterval() time.Duration {
	return time.Duration(c.Crawler.IntervalSeconds) * time.Second
}

// Source returns the config for the given id, or false when unknown.
func (c Config) Source(id string) (crawler.SourceConfig, bool) {
	for _, src := range c.Sources {
		if src.ID == id {
			return src, true
		}
	}
	return crawler.SourceConfig{}, false
}

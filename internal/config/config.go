package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/elonfeng/vidradar/internal/logger"
	"github.com/elonfeng/vidradar/pkg/source"
	"github.com/elonfeng/vidradar/pkg/trend"
)

// Config is the root configuration.
type Config struct {
	Database DatabaseConfig                `yaml:"database"`
	Log      logger.Config                 `yaml:"log"`
	Momentum MomentumConfig                `yaml:"momentum"`
	Filter   trend.FilterThresholds        `yaml:"filter"`
	Ranking  RankingConfig                 `yaml:"ranking"`
	Regions  map[string]trend.KeywordTable `yaml:"regions"`
	Sources  SourcesConfig                 `yaml:"sources"`
	Schedule ScheduleConfig                `yaml:"schedule"`
	Watch    []WatchEntry                  `yaml:"watch"`
	Alerts   AlertsConfig                  `yaml:"alerts"`
	Server   ServerConfig                  `yaml:"server"`
}

// DatabaseConfig configures SQLite storage.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// MomentumConfig selects a scoring preset and optional overrides.
type MomentumConfig struct {
	Strategy string `yaml:"strategy"`
	// Weights replace the preset weights when set.
	Weights *WeightsConfig `yaml:"weights"`
	// HalfLifeHours and TrendingBonus replace the preset when non-zero.
	HalfLifeHours float64 `yaml:"half_life_hours"`
	TrendingBonus float64 `yaml:"trending_bonus"`
}

// WeightsConfig holds the momentum component weights.
type WeightsConfig struct {
	Velocity   float64 `yaml:"velocity"`
	Engagement float64 `yaml:"engagement"`
	Freshness  float64 `yaml:"freshness"`
}

// RankingConfig configures the engine.
type RankingConfig struct {
	DefaultRegion    string   `yaml:"default_region"`
	SupportedRegions []string `yaml:"supported_regions"`
	DefaultTop       int      `yaml:"default_top"`
	Normalization    string   `yaml:"normalization"`
	Workers          int      `yaml:"workers"`
	SpamPhrases      []string `yaml:"spam_phrases"`
}

// SourcesConfig holds configuration for all collectors.
type SourcesConfig struct {
	YouTube YouTubeConfig `yaml:"youtube"`
	Scraper ScraperConfig `yaml:"scraper"`
	Feeds   FeedsConfig   `yaml:"feeds"`
}

// YouTubeConfig for the catalog API collector.
type YouTubeConfig struct {
	Enabled      bool   `yaml:"enabled"`
	APIKey       string `yaml:"api_key"`
	Endpoint     string `yaml:"endpoint"`
	Limit        int    `yaml:"limit"`
	SearchWindow string `yaml:"search_window"`
	SkipChart    bool   `yaml:"skip_chart"`
}

// ScraperConfig for the trending page scraper.
type ScraperConfig struct {
	Enabled   bool   `yaml:"enabled"`
	BaseURL   string `yaml:"base_url"`
	UserAgent string `yaml:"user_agent"`
	Limit     int    `yaml:"limit"`
	Timeout   string `yaml:"timeout"`
}

// FeedsConfig for the channel feed collector.
type FeedsConfig struct {
	Enabled  bool                 `yaml:"enabled"`
	MaxAge   string               `yaml:"max_age"`
	Exclude  []string             `yaml:"exclude"`
	Channels []source.ChannelFeed `yaml:"channels"`
}

// ScheduleConfig configures the ranking loop.
type ScheduleConfig struct {
	RankInterval string `yaml:"rank_interval"`
}

// ParseRankInterval returns the rank interval as time.Duration.
func (s ScheduleConfig) ParseRankInterval() time.Duration {
	d, err := time.ParseDuration(s.RankInterval)
	if err != nil || d <= 0 {
		return 30 * time.Minute
	}
	return d
}

// WatchEntry is one query the scheduler ranks on every tick.
type WatchEntry struct {
	Query  string `yaml:"query"`
	Region string `yaml:"region"`
	Top    int    `yaml:"top"`
}

// AlertsConfig configures alert destinations.
type AlertsConfig struct {
	Slack   SlackConfig   `yaml:"slack"`
	Discord DiscordConfig `yaml:"discord"`
	Webhook WebhookConfig `yaml:"webhook"`
}

// SlackConfig for Slack webhook alerts.
type SlackConfig struct {
	Enabled    bool   `yaml:"enabled"`
	WebhookURL string `yaml:"webhook_url"`
}

// DiscordConfig for Discord webhook alerts.
type DiscordConfig struct {
	Enabled    bool   `yaml:"enabled"`
	WebhookURL string `yaml:"webhook_url"`
}

// WebhookConfig for generic webhook alerts.
type WebhookConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`
	Secret  string `yaml:"secret"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port int `yaml:"port"`
	// RateLimit is the number of requests per minute allowed per client. Zero disables it.
	RateLimit int `yaml:"rate_limit"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{Path: "./vidradar.db"},
		Log:      logger.Config{Level: "info", Format: "json"},
		Momentum: MomentumConfig{Strategy: trend.StrategyBasic},
		Filter:   trend.DefaultFilterThresholds(),
		Ranking: RankingConfig{
			DefaultRegion:    trend.DefaultRegion,
			SupportedRegions: slices.Clone(trend.DefaultSupportedRegions),
			DefaultTop:       trend.DefaultTop,
			Normalization:    string(trend.NormalizeBlended),
		},
		Sources: SourcesConfig{
			YouTube: YouTubeConfig{Enabled: true, Limit: 25, SearchWindow: "48h"},
			Scraper: ScraperConfig{Enabled: true, Limit: 50, Timeout: "30s"},
			Feeds: FeedsConfig{
				Enabled: false,
				MaxAge:  "48h",
			},
		},
		Schedule: ScheduleConfig{RankInterval: "30m"},
		Watch: []WatchEntry{
			{Region: "DE"},
		},
		Server: ServerConfig{Port: 8080, RateLimit: 60},
	}
}

// Load reads configuration from a YAML file and applies env var overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// applyEnvOverrides overrides config values with environment variables.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("VIDRADAR_DB_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("VIDRADAR_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("YOUTUBE_API_KEY"); v != "" {
		cfg.Sources.YouTube.APIKey = v
	}
	if v := os.Getenv("SLACK_WEBHOOK_URL"); v != "" {
		cfg.Alerts.Slack.WebhookURL = v
		cfg.Alerts.Slack.Enabled = true
	}
	if v := os.Getenv("DISCORD_WEBHOOK_URL"); v != "" {
		cfg.Alerts.Discord.WebhookURL = v
		cfg.Alerts.Discord.Enabled = true
	}
}

// Validate reports every invalid setting.
func (c *Config) Validate() error {
	var errs []error

	if _, err := c.MomentumParams(); err != nil {
		errs = append(errs, err)
	}
	if err := c.Filter.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("filter: %w", err))
	}
	if _, err := trend.ParseNormalization(c.Ranking.Normalization); err != nil {
		errs = append(errs, fmt.Errorf("ranking: %w", err))
	}
	if c.Ranking.DefaultTop < 0 {
		errs = append(errs, errors.New("ranking: default_top must not be negative"))
	}
	if c.Ranking.Workers < 0 {
		errs = append(errs, errors.New("ranking: workers must not be negative"))
	}
	if c.Server.RateLimit < 0 {
		errs = append(errs, errors.New("server: rate_limit must not be negative"))
	}
	for _, d := range []struct{ name, v string }{
		{"sources.youtube.search_window", c.Sources.YouTube.SearchWindow},
		{"sources.scraper.timeout", c.Sources.Scraper.Timeout},
		{"sources.feeds.max_age", c.Sources.Feeds.MaxAge},
		{"schedule.rank_interval", c.Schedule.RankInterval},
	} {
		if d.v == "" {
			continue
		}
		if _, err := time.ParseDuration(d.v); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", d.name, err))
		}
	}
	for i, w := range c.Watch {
		if strings.TrimSpace(w.Region) == "" && c.Ranking.DefaultRegion == "" {
			errs = append(errs, fmt.Errorf("watch[%d]: region required", i))
		}
	}
	if c.Alerts.Webhook.Enabled && c.Alerts.Webhook.URL == "" {
		errs = append(errs, errors.New("alerts.webhook: url required"))
	}
	return errors.Join(errs...)
}

// MomentumParams resolves the strategy preset and applies the overrides.
func (c *Config) MomentumParams() (trend.MomentumParams, error) {
	m := c.Momentum
	p, err := trend.StrategyParams(m.Strategy)
	if err != nil {
		return trend.MomentumParams{}, fmt.Errorf("momentum: %w", err)
	}

	if w := m.Weights; w != nil {
		if w.Velocity < 0 || w.Engagement < 0 || w.Freshness < 0 {
			return trend.MomentumParams{}, errors.New("momentum: weights must not be negative")
		}
		if w.Velocity+w.Engagement+w.Freshness == 0 {
			return trend.MomentumParams{}, errors.New("momentum: weights must not sum to zero")
		}
		p.VelocityWeight, p.EngagementWeight, p.FreshnessWeight = w.Velocity, w.Engagement, w.Freshness
	}
	switch {
	case m.HalfLifeHours < 0:
		return trend.MomentumParams{}, errors.New("momentum: half_life_hours must be positive")
	case m.HalfLifeHours > 0:
		p.HalfLifeHours = m.HalfLifeHours
	}
	switch {
	case m.TrendingBonus != 0 && m.TrendingBonus < 1:
		return trend.MomentumParams{}, errors.New("momentum: trending_bonus must be at least 1")
	case m.TrendingBonus >= 1:
		p.TrendingBonus = m.TrendingBonus
	}
	return p, nil
}

// EngineOptions builds the ranking engine options.
func (c *Config) EngineOptions(log logger.Logger) (trend.Options, error) {
	p, err := c.MomentumParams()
	if err != nil {
		return trend.Options{}, err
	}
	norm, err := trend.ParseNormalization(c.Ranking.Normalization)
	if err != nil {
		return trend.Options{}, err
	}
	return trend.Options{
		Momentum:         p,
		Filter:           c.Filter,
		SupportedRegions: c.Ranking.SupportedRegions,
		ExtraKeywords:    c.Regions,
		SpamPhrases:      c.Ranking.SpamPhrases,
		DefaultRegion:    c.Ranking.DefaultRegion,
		DefaultTop:       c.Ranking.DefaultTop,
		Normalization:    norm,
		Workers:          c.Ranking.Workers,
		Logger:           log,
	}, nil
}

// CatalogConfig returns the catalog collector settings.
func (c *Config) CatalogConfig() source.CatalogConfig {
	y := c.Sources.YouTube
	return source.CatalogConfig{
		APIKey:       y.APIKey,
		Endpoint:     y.Endpoint,
		Limit:        y.Limit,
		SearchWindow: parseDuration(y.SearchWindow),
		SkipChart:    y.SkipChart,
	}
}

// ScraperConfig returns the trending page scraper settings.
func (c *Config) ScraperConfig() source.ScraperConfig {
	s := c.Sources.Scraper
	return source.ScraperConfig{
		BaseURL:   s.BaseURL,
		UserAgent: s.UserAgent,
		Limit:     s.Limit,
		Timeout:   parseDuration(s.Timeout),
	}
}

// FeedsConfig returns the channel feed collector settings.
func (c *Config) FeedsConfig() source.FeedsConfig {
	f := c.Sources.Feeds
	return source.FeedsConfig{
		Channels: f.Channels,
		MaxAge:   parseDuration(f.MaxAge),
		Exclude:  f.Exclude,
	}
}

// parseDuration returns zero for empty or invalid values so collectors use their defaults.
func parseDuration(s string) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0
	}
	return d
}

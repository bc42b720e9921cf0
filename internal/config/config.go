// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New(ctx) initializer to build a Config with defaults.
// - External errors are wrapped with this package's sentinel kinds.
package config

import (
	"context"
	"fmt"
	"runtime"
	"strings"
	"time"
	_ "time/tzdata"
)

// DefaultFeedName names the feed configured through events_url.
const DefaultFeedName = "default"

// FeedConfig describes one event feed.
type FeedConfig struct {
	Name   string `koanf:"name"`
	URL    string `koanf:"url"`
	Format string `koanf:"format"`
}

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the log handler: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// VenuesURL locates the venue feed; VenuesFormat overrides format detection.
	VenuesURL    string `koanf:"venues_url"`
	VenuesFormat string `koanf:"venues_format"`

	// EventsURL is a shortcut for a single feed named "default".
	EventsURL string `koanf:"events_url"`

	// EventFeeds lists named event feeds, fetched in order.
	EventFeeds []FeedConfig `koanf:"event_feeds"`

	// Fetch tuning for HTTP feeds.
	FetchTimeoutMS int `koanf:"fetch_timeout_ms"`
	FetchRetries   int `koanf:"fetch_retries"`
	FetchBackoffMS int `koanf:"fetch_backoff_ms"`

	// PassTimeoutMS bounds one ingestion pass; 0 disables the deadline.
	PassTimeoutMS int `koanf:"pass_timeout_ms"`

	// RowWorkers sets the parallelism of the per-row stage.
	RowWorkers int `koanf:"row_workers"`

	// TimeBucketMinutes is the fingerprint time granularity.
	TimeBucketMinutes int `koanf:"time_bucket_minutes"`

	// DefaultTimezone applies to timestamps without an offset.
	DefaultTimezone string `koanf:"default_timezone"`

	// ListSeparator splits multi-valued cells such as tags and aliases.
	ListSeparator string `koanf:"list_separator"`

	// CategoryAliases maps source categories onto catalog categories.
	CategoryAliases map[string]string `koanf:"category_aliases"`
}

// New creates a Config with defaults. Context is accepted first to satisfy
// the project-wide convention and is currently unused.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:          "info",
		LogFormat:         "text",
		Addr:              ":9080",
		FetchTimeoutMS:    30_000,
		FetchRetries:      2,
		FetchBackoffMS:    250,
		PassTimeoutMS:     120_000,
		RowWorkers:        runtime.NumCPU(),
		TimeBucketMinutes: 30,
		DefaultTimezone:   "UTC",
		ListSeparator:     "|",
		CategoryAliases:   map[string]string{},
	}
}

// Validate checks value ranges. Feed locations are checked per pass, so a
// service without feeds can still boot.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Addr) == "" {
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	}
	if m := c.TimeBucketMinutes; m < 1 || m > 1440 || 1440%m != 0 {
		return fmt.Errorf("%w: time_bucket_minutes %d must divide 1440", ErrInvalidConfig, m)
	}
	if c.RowWorkers < 1 {
		return fmt.Errorf("%w: row_workers must be at least 1", ErrInvalidConfig)
	}
	if c.FetchRetries < 0 || c.FetchTimeoutMS < 0 || c.FetchBackoffMS < 0 || c.PassTimeoutMS < 0 {
		return fmt.Errorf("%w: fetch and pass settings must not be negative", ErrInvalidConfig)
	}
	if c.ListSeparator == "" {
		return fmt.Errorf("%w: list_separator must not be empty", ErrInvalidConfig)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	seen := map[string]struct{}{}
	for _, f := range c.Feeds() {
		if _, dup := seen[f.Name]; dup {
			return fmt.Errorf("%w: duplicate feed name %q", ErrInvalidConfig, f.Name)
		}
		seen[f.Name] = struct{}{}
	}
	return nil
}

// Location loads DefaultTimezone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(strings.TrimSpace(c.DefaultTimezone))
	if err != nil {
		return nil, fmt.Errorf("%w: default_timezone %q: %w", ErrInvalidConfig, c.DefaultTimezone, err)
	}
	return loc, nil
}

// Feeds returns the configured event feeds: events_url first as "default",
// then event_feeds. Unnamed feeds are named after their position.
func (c *Config) Feeds() []FeedConfig {
	var out []FeedConfig
	if u := strings.TrimSpace(c.EventsURL); u != "" {
		out = append(out, FeedConfig{Name: DefaultFeedName, URL: u})
	}
	for i, f := range c.EventFeeds {
		if strings.TrimSpace(f.URL) == "" {
			continue
		}
		if strings.TrimSpace(f.Name) == "" {
			f.Name = fmt.Sprintf("feed-%d", i+1)
		}
		out = append(out, f)
	}
	return out
}

// FetchTimeout returns the per-request fetch timeout.
func (c *Config) FetchTimeout() time.Duration {
	return time.Duration(c.FetchTimeoutMS) * time.Millisecond
}

// FetchBackoff returns the initial retry backoff.
func (c *Config) FetchBackoff() time.Duration {
	return time.Duration(c.FetchBackoffMS) * time.Millisecond
}

// PassTimeout returns the pass deadline; zero means none.
func (c *Config) PassTimeout() time.Duration {
	return time.Duration(c.PassTimeoutMS) * time.Millisecond
}
